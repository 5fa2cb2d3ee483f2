package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/STS-Engineer/llc-backend/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Repository provides user persistence.
type Repository interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// Service manages accounts and sessions. Sessions are signed JWTs; the only
// claims that matter downstream are the plant and role scopes.
type Service struct {
	users     Repository
	secret    []byte
	tokenTTL  time.Duration
	logger    *slog.Logger
	validator func(plant string) (string, error)
	admins    map[string]bool
}

// NewService creates a new account service. validatePlant rejects sign-ups
// for plants outside the configured plant mapping. Addresses listed in
// admins are granted the admin role on sign-up; everyone else is an editor.
func NewService(users Repository, secret string, tokenTTL time.Duration, validatePlant func(plant string) (string, error), admins []string, logger *slog.Logger) *Service {
	adminSet := make(map[string]bool, len(admins))
	for _, a := range admins {
		adminSet[strings.ToLower(strings.TrimSpace(a))] = true
	}
	return &Service{
		users:     users,
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		logger:    logger,
		validator: validatePlant,
		admins:    adminSet,
	}
}

// SignUpRequest carries the fields for account creation.
type SignUpRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Plant    string `json:"plant"`
	Password string `json:"password"`
}

type sessionClaims struct {
	Email string `json:"email"`
	Plant string `json:"plant"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// SignUp registers a new editor account for a known plant.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") ||
		strings.TrimSpace(req.Name) == "" || len(req.Password) < 8 {
		return nil, ErrInvalidInput
	}
	if _, err := s.validator(req.Plant); err != nil {
		return nil, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	role := RoleEditor
	if s.admins[email] {
		role = RoleAdmin
	}

	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		Plant:        strings.TrimSpace(req.Plant),
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user registered", "user_id", u.ID, "plant", u.Plant)
	return u, nil
}

// SignIn verifies credentials and returns a signed session token. Unknown
// email and wrong password are indistinguishable to the caller.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, *User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("loading user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now()
	claims := sessionClaims{
		Email: u.Email,
		Plant: u.Plant,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("signing session: %w", err)
	}
	return tok, u, nil
}

// VerifySession parses and validates a session token and returns its
// principal.
func (s *Service) VerifySession(tokenString string) (*Principal, error) {
	var claims sessionClaims
	tok, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalidSession
	}
	return &Principal{
		UserID: claims.Subject,
		Email:  claims.Email,
		Plant:  claims.Plant,
		Role:   claims.Role,
	}, nil
}
