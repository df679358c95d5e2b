package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(NewMemoryRepository(), time.Hour)
}

func registerActive(t *testing.T, svc *Service, email, password string) User {
	t.Helper()
	ctx := context.Background()
	user, err := svc.Register(ctx, email, password)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.SetActive(ctx, user.ID, true); err != nil {
		t.Fatalf("activate: %v", err)
	}
	return user
}

func TestRegisterStartsInactive(t *testing.T) {
	svc := newTestService(t)
	user, err := svc.Register(context.Background(), "ops@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Active {
		t.Fatal("new users must start inactive")
	}
	if user.Superuser {
		t.Fatal("new users must not be superusers")
	}

	_, err = svc.Issue(context.Background(), "ops@example.com", "s3cret-pass")
	if !errors.Is(err, ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
}

func TestRegisterRejectsWeakInput(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Register(context.Background(), "not-an-email", "s3cret-pass"); err == nil {
		t.Fatal("invalid email accepted")
	}
	if _, err := svc.Register(context.Background(), "ops@example.com", "short"); err == nil {
		t.Fatal("short password accepted")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Register(context.Background(), "ops@example.com", "s3cret-pass"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := svc.Register(context.Background(), "OPS@example.com", "other-pass1")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestIssueAndValidate(t *testing.T) {
	svc := newTestService(t)
	user := registerActive(t, svc, "ops@example.com", "s3cret-pass")

	token, err := svc.Issue(context.Background(), "ops@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token.Value == "" || token.Subject != user.ID {
		t.Fatalf("token: %+v", token)
	}

	subject, err := svc.Validate(token.Value)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if subject != user.ID {
		t.Fatalf("expected subject %s, got %s", user.ID, subject)
	}
}

func TestIssueWrongPasswordAndUnknownUserLookAlike(t *testing.T) {
	svc := newTestService(t)
	registerActive(t, svc, "ops@example.com", "s3cret-pass")

	_, errWrong := svc.Issue(context.Background(), "ops@example.com", "wrong-pass1")
	_, errUnknown := svc.Issue(context.Background(), "ghost@example.com", "s3cret-pass")
	if !errors.Is(errWrong, ErrInvalidCredentials) || !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Fatalf("both failures must be ErrInvalidCredentials: %v / %v", errWrong, errUnknown)
	}
}

func TestValidateRejectsBadTokens(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Validate(""); !errors.Is(err, ErrMalformed) {
		t.Fatalf("empty token: %v", err)
	}
	if _, err := svc.Validate("not base64url!!"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("malformed token: %v", err)
	}
	if _, err := svc.Validate("dW5rbm93bi10b2tlbg"); !errors.Is(err, ErrUnknown) {
		t.Fatalf("unknown token: %v", err)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	svc := NewService(NewMemoryRepository(), time.Minute)
	registerActive(t, svc, "ops@example.com", "s3cret-pass")

	token, err := svc.Issue(context.Background(), "ops@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	svc.tokens.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := svc.Validate(token.Value); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	// Expired entries are evicted, a second lookup no longer finds them.
	if _, err := svc.Validate(token.Value); !errors.Is(err, ErrUnknown) {
		t.Fatalf("expected ErrUnknown after eviction, got %v", err)
	}
}

func TestDeactivateRevokesTokens(t *testing.T) {
	svc := newTestService(t)
	user := registerActive(t, svc, "ops@example.com", "s3cret-pass")

	token, err := svc.Issue(context.Background(), "ops@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := svc.SetActive(context.Background(), user.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.Validate(token.Value); !errors.Is(err, ErrUnknown) {
		t.Fatalf("expected revoked token, got %v", err)
	}
	if _, err := svc.Issue(context.Background(), "ops@example.com", "s3cret-pass"); !errors.Is(err, ErrInactive) {
		t.Fatalf("deactivated user must not get tokens: %v", err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	svc := newTestService(t)
	if err := svc.EnsureAdmin(context.Background(), "admin@example.com", "admin-pass1"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}

	token, err := svc.Issue(context.Background(), "admin@example.com", "admin-pass1")
	if err != nil {
		t.Fatalf("admin must be active immediately: %v", err)
	}
	subject, err := svc.Validate(token.Value)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	admin, err := svc.Find(context.Background(), subject)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !admin.Superuser {
		t.Fatal("seed admin must be a superuser")
	}

	// Idempotent on restart.
	if err := svc.EnsureAdmin(context.Background(), "admin@example.com", "admin-pass1"); err != nil {
		t.Fatalf("second ensure admin: %v", err)
	}
}
