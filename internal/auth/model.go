// Package auth manages gateway users and the bearer tokens the ledger
// endpoints require. Tokens are opaque random values held in process
// memory; restarting the gateway invalidates them all.
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials is returned for an unknown user or a wrong
	// password. Callers must not be able to tell the two apart.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInactive is returned when the credentials are correct but the
	// account has not been activated.
	ErrInactive = errors.New("account is inactive")

	// ErrMalformed is returned for tokens that are not well-formed.
	ErrMalformed = errors.New("malformed token")

	// ErrExpired is returned for tokens past their expiry.
	ErrExpired = errors.New("token expired")

	// ErrUnknown is returned for well-formed tokens the store has never
	// issued or has already evicted.
	ErrUnknown = errors.New("unknown token")

	// ErrEmailTaken is returned when registering an address that
	// already has an account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrNotFound is returned by repositories for missing users.
	ErrNotFound = errors.New("user not found")
)

// User is a gateway account. New registrations start inactive and stay
// locked out of the token endpoint until an administrator activates
// them.
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	Active       bool
	Superuser    bool
	CreatedAt    time.Time
}

// Repository persists gateway users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	List(ctx context.Context) ([]User, error)
	SetActive(ctx context.Context, id string, active bool) error
}
