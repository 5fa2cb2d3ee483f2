package token

import (
	"context"
	"time"
)

// TokenRepository provides persistence for capability tokens. Implementations
// must participate in the caller's transaction when one is carried in ctx, so
// that Consume happens atomically with the status write it authorizes.
type TokenRepository interface {
	// Put stores tok, replacing any previous token for the same
	// (purpose, resource) pair.
	Put(ctx context.Context, tok *CapabilityToken) error
	Get(ctx context.Context, purpose Purpose, resourceID string) (*CapabilityToken, error)
	// MarkConsumed flips the consumed flag for an unconsumed token matching
	// the given hash whose expiry is after now. It reports whether a row was
	// updated.
	MarkConsumed(ctx context.Context, purpose Purpose, resourceID, secretHash string, now time.Time) (bool, error)
	// DeleteByResource removes every token bound to any of the given
	// resource IDs, regardless of purpose.
	DeleteByResource(ctx context.Context, resourceIDs ...string) error
}
