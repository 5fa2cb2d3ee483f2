package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/STS-Engineer/llc-backend/internal/repository"
)

// Service issues, validates, and consumes single-purpose capability tokens.
// Secrets are 32 random bytes, hex-encoded, stored only as SHA-256 hashes.
type Service struct {
	tokens TokenRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new token service.
func NewService(tokens TokenRepository, logger *slog.Logger) *Service {
	return &Service{
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
}

// Issue mints a fresh token for (purpose, resourceID) and returns the secret.
// Any previously issued token for the pair is replaced, which invalidates it.
func (s *Service) Issue(ctx context.Context, purpose Purpose, resourceID string, ttl time.Duration) (string, error) {
	secret, err := newSecret()
	if err != nil {
		return "", fmt.Errorf("generating token secret: %w", err)
	}

	now := s.now()
	tok := &CapabilityToken{
		Purpose:    purpose,
		ResourceID: resourceID,
		SecretHash: hashSecret(secret),
		ExpiresAt:  now.Add(ttl),
		Consumed:   false,
		CreatedAt:  now,
	}

	if err := s.tokens.Put(ctx, tok); err != nil {
		return "", fmt.Errorf("storing token: %w", err)
	}

	return secret, nil
}

// Validate checks that secret is a live token for (purpose, resourceID).
// Every failure mode collapses to ErrInvalidOrExpired.
func (s *Service) Validate(ctx context.Context, purpose Purpose, resourceID, secret string) error {
	tok, err := s.tokens.Get(ctx, purpose, resourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpired
		}
		return fmt.Errorf("loading token: %w", err)
	}

	if tok.Consumed || !s.now().Before(tok.ExpiresAt) || tok.SecretHash != hashSecret(secret) {
		s.logger.Debug("token validation failed",
			"purpose", purpose,
			"resource_id", resourceID,
			"consumed", tok.Consumed,
			"expired", !s.now().Before(tok.ExpiresAt))
		return ErrInvalidOrExpired
	}

	return nil
}

// Consume validates secret and marks the token spent in one step. It must be
// called inside the same transaction as the state change it authorizes, so a
// replay after the transition fails even before the expiry instant.
func (s *Service) Consume(ctx context.Context, purpose Purpose, resourceID, secret string) error {
	updated, err := s.tokens.MarkConsumed(ctx, purpose, resourceID, hashSecret(secret), s.now())
	if err != nil {
		return fmt.Errorf("consuming token: %w", err)
	}
	if !updated {
		return ErrInvalidOrExpired
	}
	return nil
}

// InvalidateResource revokes every outstanding token for the given resources.
// Used when a record is resubmitted and the previous review cycle is voided.
func (s *Service) InvalidateResource(ctx context.Context, resourceIDs ...string) error {
	if len(resourceIDs) == 0 {
		return nil
	}
	if err := s.tokens.DeleteByResource(ctx, resourceIDs...); err != nil {
		return fmt.Errorf("invalidating tokens: %w", err)
	}
	return nil
}

func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
