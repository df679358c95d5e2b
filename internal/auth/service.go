package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service manages user lifecycle and token issuance.
type Service struct {
	repo   Repository
	tokens *tokenStore
	ttl    time.Duration
}

// NewService creates an auth service issuing tokens valid for ttl.
func NewService(repo Repository, ttl time.Duration) *Service {
	return &Service{repo: repo, tokens: newTokenStore(ttl), ttl: ttl}
}

// TokenTTL reports the configured token lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.ttl
}

// Register creates a new inactive user. An administrator has to
// activate the account before it can obtain tokens.
func (s *Service) Register(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, errors.New("a valid email address is required")
	}
	if len(password) < 8 {
		return User{}, errors.New("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Active:       false,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Issue verifies credentials and returns a fresh bearer token. Wrong
// password and unknown user collapse into ErrInvalidCredentials.
func (s *Service) Issue(ctx context.Context, email, password string) (Token, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Token{}, ErrInvalidCredentials
		}
		return Token{}, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return Token{}, ErrInvalidCredentials
	}
	if !user.Active {
		return Token{}, ErrInactive
	}
	return s.tokens.issue(user.ID)
}

// Validate resolves a bearer token to the user id it was issued for.
func (s *Service) Validate(token string) (string, error) {
	return s.tokens.validate(token)
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Find returns one user by id.
func (s *Service) Find(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// SetActive activates or deactivates a user. Deactivation also revokes
// every token the user holds.
func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	if !active {
		s.tokens.revokeSubject(id)
	}
	return nil
}

// EnsureAdmin creates the seed superuser when it does not exist yet.
// Called once at startup with the configured admin credentials.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user := User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Active:       true,
		Superuser:    true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil && !errors.Is(err, ErrEmailTaken) {
		return fmt.Errorf("seed admin user: %w", err)
	}
	return nil
}
