package auth

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rencana-app/rencana/internal/shared"
	"github.com/rencana-app/rencana/internal/users"
)

type stubUsers struct {
	byEmail map[string]users.User
	byID    map[int64]users.User
}

func (s *stubUsers) GetByEmail(_ context.Context, email string) (users.User, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return users.User{}, fmt.Errorf("user %s: %w", email, shared.ErrNotFound)
	}
	return u, nil
}

func (s *stubUsers) Get(_ context.Context, id int64) (users.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return users.User{}, fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return u, nil
}

func fixture(t *testing.T) (*Service, users.User) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	u := users.User{ID: 1, Name: "Admin", Email: "admin@example.com", PasswordHash: string(hash), Active: true}
	source := &stubUsers{
		byEmail: map[string]users.User{u.Email: u},
		byID:    map[int64]users.User{u.ID: u},
	}
	return NewService(source), u
}

func TestAuthenticateSuccess(t *testing.T) {
	svc, u := fixture(t)

	got, err := svc.Authenticate(context.Background(), u.Email, "correct horse")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc, u := fixture(t)

	_, err := svc.Authenticate(context.Background(), u.Email, "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateUnknownEmailSameError(t *testing.T) {
	svc, _ := fixture(t)

	_, err := svc.Authenticate(context.Background(), "nobody@example.com", "whatever")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateInactiveAccount(t *testing.T) {
	svc, u := fixture(t)
	inactive := u
	inactive.Active = false
	svc.users.(*stubUsers).byEmail[u.Email] = inactive

	_, err := svc.Authenticate(context.Background(), u.Email, "correct horse")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestCurrentUserRequiresSession(t *testing.T) {
	svc, _ := fixture(t)

	_, err := svc.CurrentUser(context.Background(), 0)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}
