package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/STS-Engineer/llc-backend/internal/domain/token"
	"github.com/STS-Engineer/llc-backend/internal/repository"
)

// TokenStore implements token.TokenRepository for SQLite.
type TokenStore struct {
	db *DB
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(db *DB) *TokenStore {
	return &TokenStore{db: db}
}

// Put stores tok, replacing any previous token for the same
// (purpose, resource) pair.
func (s *TokenStore) Put(ctx context.Context, tok *token.CapabilityToken) error {
	q := s.db.runner(ctx)

	_, err := q.ExecContext(ctx, `
		INSERT INTO capability_token (
			purpose, resource_id, secret_hash, expires_at, consumed, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (purpose, resource_id) DO UPDATE SET
			secret_hash = excluded.secret_hash,
			expires_at = excluded.expires_at,
			consumed = excluded.consumed,
			created_at = excluded.created_at
	`,
		tok.Purpose,
		tok.ResourceID,
		tok.SecretHash,
		tok.ExpiresAt,
		tok.Consumed,
		tok.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Get retrieves the token for a (purpose, resource) pair.
func (s *TokenStore) Get(ctx context.Context, purpose token.Purpose, resourceID string) (*token.CapabilityToken, error) {
	q := s.db.runner(ctx)

	var tok token.CapabilityToken
	err := q.QueryRowContext(ctx, `
		SELECT purpose, resource_id, secret_hash, expires_at, consumed, created_at
		FROM capability_token
		WHERE purpose = ? AND resource_id = ?
	`, purpose, resourceID).Scan(
		&tok.Purpose,
		&tok.ResourceID,
		&tok.SecretHash,
		&tok.ExpiresAt,
		&tok.Consumed,
		&tok.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return &tok, nil
}

// MarkConsumed flips the consumed flag for an unconsumed, unexpired token
// matching the given hash. The WHERE clause is the whole check; a stale,
// spent, or forged secret simply updates zero rows.
func (s *TokenStore) MarkConsumed(ctx context.Context, purpose token.Purpose, resourceID, secretHash string, now time.Time) (bool, error) {
	q := s.db.runner(ctx)

	res, err := q.ExecContext(ctx, `
		UPDATE capability_token SET consumed = 1
		WHERE purpose = ? AND resource_id = ? AND secret_hash = ?
		  AND consumed = 0 AND expires_at > ?
	`, purpose, resourceID, secretHash, now)
	if err != nil {
		return false, fmt.Errorf("failed to consume token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check consume: %w", err)
	}
	return n > 0, nil
}

// DeleteByResource removes every token bound to any of the given resource
// IDs, regardless of purpose.
func (s *TokenStore) DeleteByResource(ctx context.Context, resourceIDs ...string) error {
	if len(resourceIDs) == 0 {
		return nil
	}
	q := s.db.runner(ctx)

	placeholders := strings.Repeat("?, ", len(resourceIDs)-1) + "?"
	args := make([]any, len(resourceIDs))
	for i, id := range resourceIDs {
		args[i] = id
	}

	_, err := q.ExecContext(ctx,
		`DELETE FROM capability_token WHERE resource_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to delete tokens: %w", err)
	}
	return nil
}
