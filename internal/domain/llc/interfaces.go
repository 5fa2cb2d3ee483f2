package llc

import (
	"context"
	"time"

	"github.com/STS-Engineer/llc-backend/internal/domain/token"
	"github.com/STS-Engineer/llc-backend/internal/notify"
	"github.com/STS-Engineer/llc-backend/internal/render"
)

// Repository provides persistence for records and their children.
type Repository interface {
	Create(ctx context.Context, rec *Record, causes []RootCause, atts []Attachment) error
	Get(ctx context.Context, id string) (*Record, error)
	GetDetail(ctx context.Context, id string) (*Detail, error)
	Update(ctx context.Context, rec *Record, expected Status) error
	ReplaceContent(ctx context.Context, rec *Record, causes []RootCause, atts []Attachment, expected Status) error
	SetGeneratedDoc(ctx context.Context, id, path string) error
	SetTargets(ctx context.Context, id string, targets []string) error
	GetTargets(ctx context.Context, id string) ([]string, error)
	List(ctx context.Context, opts ListOptions) ([]Ref, error)
	Delete(ctx context.Context, id string) error
}

// UnitCleanup removes a record's processing units when a review cycle is
// voided, returning their IDs so the tokens bound to them can be revoked.
type UnitCleanup interface {
	DeleteByRecord(ctx context.Context, recordID string) ([]string, error)
}

// TokenService provides the capability-token operations the orchestrator
// composes around each transition.
type TokenService interface {
	Issue(ctx context.Context, purpose token.Purpose, resourceID string, ttl time.Duration) (string, error)
	Validate(ctx context.Context, purpose token.Purpose, resourceID, secret string) error
	Consume(ctx context.Context, purpose token.Purpose, resourceID, secret string) error
	InvalidateResource(ctx context.Context, resourceIDs ...string) error
}

// TargetResolver resolves distribution targets and reviewer addresses from
// the injected plant configuration.
type TargetResolver interface {
	Targets(productLine, originPlant string) ([]string, error)
	ValidatorFor(plant string) (string, error)
	ContactFor(plant string) (string, error)
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

// Renderer produces the record's report document.
type Renderer interface {
	Render(ctx context.Context, data render.ReportData) ([]byte, error)
}

// DocumentStore persists rendered documents.
type DocumentStore interface {
	Save(name string, data []byte) (string, error)
}

// ListOptions provides filtering options for listing records.
type ListOptions struct {
	Status Status
	Plant  string
	Limit  int
	Offset int
}
