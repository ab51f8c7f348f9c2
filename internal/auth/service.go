package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/rencana-app/rencana/internal/shared"
	"github.com/rencana-app/rencana/internal/users"
)

// UserSource resolves accounts for credential checks.
type UserSource interface {
	GetByEmail(ctx context.Context, email string) (users.User, error)
	Get(ctx context.Context, id int64) (users.User, error)
}

type Service struct {
	users UserSource
}

func NewService(source UserSource) *Service {
	return &Service{users: source}
}

// Authenticate verifies the credentials. Unknown email and wrong
// password return the same error so the response does not leak which
// accounts exist.
func (s *Service) Authenticate(ctx context.Context, email, password string) (users.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return users.User{}, shared.ErrInvalidCredentials
		}
		return users.User{}, err
	}
	if !u.Active {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	return u, nil
}

// CurrentUser loads the account behind an authenticated session.
func (s *Service) CurrentUser(ctx context.Context, id int64) (users.User, error) {
	if id <= 0 {
		return users.User{}, fmt.Errorf("%w: not signed in", shared.ErrUnauthorized)
	}
	return s.users.Get(ctx, id)
}
