package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/attendgate/internal/persistence"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for both unknown accounts and wrong
// passwords so callers cannot probe for registered emails.
var ErrInvalidCredentials = errors.New("auth: invalid email or password")

// Service authenticates dashboard admins and issues the viewer tokens
// they present on the socket.
type Service struct {
	admins persistence.AdminRepository
	secret []byte
	ttl    time.Duration
	logger *slog.Logger
}

func NewService(admins persistence.AdminRepository, secret string, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{
		admins: admins,
		secret: []byte(secret),
		ttl:    ttl,
		logger: logger.With(slog.String("component", "auth_service")),
	}
}

// Login verifies the password against the stored bcrypt hash and
// returns a signed token plus the admin profile.
func (s *Service) Login(ctx context.Context, email, password string) (string, persistence.Admin, error) {
	admin, err := s.admins.GetAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return "", persistence.Admin{}, ErrInvalidCredentials
		}
		return "", persistence.Admin{}, fmt.Errorf("look up admin: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("Password mismatch on login attempt", slog.String("email", admin.Email))
		return "", persistence.Admin{}, ErrInvalidCredentials
	}

	token, err := s.IssueToken(admin.Email)
	if err != nil {
		return "", persistence.Admin{}, err
	}
	return token, admin, nil
}

// IssueToken signs an HMAC token whose subject is the viewer identity.
func (s *Service) IssueToken(subject string) (string, error) {
	now := time.Now()
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// HashPassword produces the bcrypt hash stored for an admin account.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
