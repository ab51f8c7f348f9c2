package users

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rencana-app/rencana/internal/shared"
)

type memoryRepo struct {
	seq   int64
	users map[int64]User
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[int64]User)}
}

func (r *memoryRepo) List(_ context.Context, _ shared.ListFilters) ([]User, int, error) {
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return u, nil
}

func (r *memoryRepo) GetByEmail(_ context.Context, email string) (User, error) {
	for _, u := range r.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("user %s: %w", email, shared.ErrNotFound)
}

func (r *memoryRepo) Create(_ context.Context, u User) (User, error) {
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return User{}, fmt.Errorf("user email: %w", shared.ErrDuplicate)
		}
	}
	r.seq++
	u.ID = r.seq
	r.users[u.ID] = u
	return u, nil
}

func (r *memoryRepo) Update(_ context.Context, id int64, u User) error {
	existing, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	u.ID = id
	u.PasswordHash = existing.PasswordHash
	r.users[id] = u
	return nil
}

func (r *memoryRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	u.PasswordHash = hash
	r.users[id] = u
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.users[id]; !ok {
		return fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	delete(r.users, id)
	return nil
}

func TestCreateHashesPasswordAndNormalisesEmail(t *testing.T) {
	svc := NewService(newMemoryRepo())

	u, err := svc.Create(context.Background(), User{Name: "Budi", Email: " Budi@Example.COM "}, "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, "budi@example.com", u.Email)
	require.True(t, u.Active)
	require.NotEqual(t, "s3cret-pass", u.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret-pass")))
}

func TestCreateRejectsShortPassword(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Create(context.Background(), User{Name: "Budi", Email: "budi@example.com"}, "short")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Create(context.Background(), User{Name: "A", Email: "dup@example.com"}, "password1")
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), User{Name: "B", Email: "dup@example.com"}, "password2")
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestChangePasswordReplacesHash(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	u, err := svc.Create(context.Background(), User{Name: "Budi", Email: "budi@example.com"}, "first-pass")
	require.NoError(t, err)

	require.NoError(t, svc.ChangePassword(context.Background(), u.ID, "second-pass"))
	stored := repo.users[u.ID]
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("second-pass")))
}

func TestUpdateKeepsPasswordHash(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	u, err := svc.Create(context.Background(), User{Name: "Budi", Email: "budi@example.com"}, "first-pass")
	require.NoError(t, err)

	require.NoError(t, svc.Update(context.Background(), u.ID, User{Name: "Budi S", Email: "budi@example.com", Active: true}))
	stored := repo.users[u.ID]
	require.Equal(t, "Budi S", stored.Name)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("first-pass")))
}
