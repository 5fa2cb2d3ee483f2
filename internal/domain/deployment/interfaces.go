package deployment

import (
	"context"
	"time"

	"github.com/STS-Engineer/llc-backend/internal/domain/llc"
	"github.com/STS-Engineer/llc-backend/internal/domain/token"
	"github.com/STS-Engineer/llc-backend/internal/notify"
)

// UnitRepository provides persistence for processing units.
type UnitRepository interface {
	Create(ctx context.Context, unit *ProcessingUnit) error
	Get(ctx context.Context, id string) (*ProcessingUnit, error)
	Update(ctx context.Context, unit *ProcessingUnit, expected Decision) error
	ListByRecord(ctx context.Context, recordID string) ([]ProcessingUnit, error)
}

// RecordRepository provides the record operations the aggregator needs.
type RecordRepository interface {
	Get(ctx context.Context, id string) (*llc.Record, error)
	Update(ctx context.Context, rec *llc.Record, expected llc.Status) error
	GetTargets(ctx context.Context, id string) ([]string, error)
}

// TokenService issues and consumes the capability tokens that authorize
// evidence submission, unit review, and rework.
type TokenService interface {
	Issue(ctx context.Context, purpose token.Purpose, resourceID string, ttl time.Duration) (string, error)
	Consume(ctx context.Context, purpose token.Purpose, resourceID, secret string) error
}

// Outbox enqueues mail inside the caller's transaction.
type Outbox interface {
	Enqueue(ctx context.Context, msg *notify.Message) error
}

// Waker nudges the mail dispatcher to drain the outbox once a transaction
// that enqueued mail has committed.
type Waker interface {
	Kick()
}

// ContactResolver returns the notification address for a distribution site.
type ContactResolver interface {
	ContactFor(plant string) (string, error)
}
