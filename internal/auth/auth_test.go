package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/attendgate/internal/auth"
	"github.com/example/attendgate/internal/persistence"
	"github.com/example/attendgate/pkg/logging"
)

type fakeAdmins struct {
	admin persistence.Admin
}

func (f *fakeAdmins) GetAdminByEmail(_ context.Context, email string) (persistence.Admin, error) {
	if email == f.admin.Email {
		return f.admin, nil
	}
	return persistence.Admin{}, persistence.ErrNotFound
}

func newService(t *testing.T, password string) (*auth.Service, *auth.JWTVerifier) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	admins := &fakeAdmins{admin: persistence.Admin{
		Email:        "admin@example.com",
		FirstName:    "Admin",
		LastName:     "User",
		PasswordHash: hash,
	}}
	const secret = "test-secret"
	return auth.NewService(admins, secret, time.Hour, logging.Discard()), auth.NewJWTVerifier(secret)
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	svc, verifier := newService(t, "hunter2")

	token, admin, err := svc.Login(context.Background(), "admin@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if admin.FirstName != "Admin" {
		t.Errorf("unexpected admin profile: %+v", admin)
	}

	identity, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify rejected a freshly issued token: %v", err)
	}
	if identity != "admin@example.com" {
		t.Errorf("expected identity admin@example.com, got %s", identity)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, _ := newService(t, "hunter2")

	_, _, err := svc.Login(context.Background(), "admin@example.com", "wrong")
	if !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginRejectsUnknownAccount(t *testing.T) {
	svc, _ := newService(t, "hunter2")

	_, _, err := svc.Login(context.Background(), "nobody@example.com", "hunter2")
	if !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	verifier := auth.NewJWTVerifier("test-secret")

	for _, tok := range []string{"", "not-a-jwt", "aaa.bbb.ccc"} {
		if _, err := verifier.Verify(tok); !errors.Is(err, auth.ErrInvalidToken) {
			t.Errorf("Verify(%q) = %v, want ErrInvalidToken", tok, err)
		}
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	svc, _ := newService(t, "hunter2")
	otherVerifier := auth.NewJWTVerifier("a-different-secret")

	token, err := svc.IssueToken("admin@example.com")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if _, err := otherVerifier.Verify(token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for foreign signature, got %v", err)
	}
}
