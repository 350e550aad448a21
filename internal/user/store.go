package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")

	errEmptyHash = errors.New("create user: password not set")
)

// Store persists users. Implementations store PasswordHash verbatim.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	// Create fails with ErrEmailTaken when the normalized email exists.
	Create(ctx context.Context, u *User) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}
