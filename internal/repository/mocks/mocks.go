// Package mocks provides testify mocks for the persistence and collaborator
// interfaces the domain services consume.
package mocks

import (
	"context"
	"time"

	"github.com/STS-Engineer/llc-backend/internal/domain/deployment"
	"github.com/STS-Engineer/llc-backend/internal/domain/llc"
	"github.com/STS-Engineer/llc-backend/internal/domain/token"
	"github.com/STS-Engineer/llc-backend/internal/domain/user"
	"github.com/STS-Engineer/llc-backend/internal/notify"
	"github.com/STS-Engineer/llc-backend/internal/render"
	"github.com/stretchr/testify/mock"
)

// TxRunner satisfies repository.Tx by running fn directly; service tests
// assert ordering, not transactionality.
type TxRunner struct{}

func (TxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// LlcRepository is a mock for llc.Repository.
type LlcRepository struct {
	mock.Mock
}

func (m *LlcRepository) Create(ctx context.Context, rec *llc.Record, causes []llc.RootCause, atts []llc.Attachment) error {
	args := m.Called(ctx, rec, causes, atts)
	return args.Error(0)
}

func (m *LlcRepository) Get(ctx context.Context, id string) (*llc.Record, error) {
	args := m.Called(ctx, id)
	if rec, ok := args.Get(0).(*llc.Record); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LlcRepository) GetDetail(ctx context.Context, id string) (*llc.Detail, error) {
	args := m.Called(ctx, id)
	if detail, ok := args.Get(0).(*llc.Detail); ok {
		return detail, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LlcRepository) Update(ctx context.Context, rec *llc.Record, expected llc.Status) error {
	args := m.Called(ctx, rec, expected)
	return args.Error(0)
}

func (m *LlcRepository) ReplaceContent(ctx context.Context, rec *llc.Record, causes []llc.RootCause, atts []llc.Attachment, expected llc.Status) error {
	args := m.Called(ctx, rec, causes, atts, expected)
	return args.Error(0)
}

func (m *LlcRepository) SetGeneratedDoc(ctx context.Context, id, path string) error {
	args := m.Called(ctx, id, path)
	return args.Error(0)
}

func (m *LlcRepository) SetTargets(ctx context.Context, id string, targets []string) error {
	args := m.Called(ctx, id, targets)
	return args.Error(0)
}

func (m *LlcRepository) GetTargets(ctx context.Context, id string) ([]string, error) {
	args := m.Called(ctx, id)
	if targets, ok := args.Get(0).([]string); ok {
		return targets, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LlcRepository) List(ctx context.Context, opts llc.ListOptions) ([]llc.Ref, error) {
	args := m.Called(ctx, opts)
	if refs, ok := args.Get(0).([]llc.Ref); ok {
		return refs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LlcRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// UnitRepository is a mock for deployment.UnitRepository and llc.UnitCleanup.
type UnitRepository struct {
	mock.Mock
}

func (m *UnitRepository) Create(ctx context.Context, unit *deployment.ProcessingUnit) error {
	args := m.Called(ctx, unit)
	return args.Error(0)
}

func (m *UnitRepository) Get(ctx context.Context, id string) (*deployment.ProcessingUnit, error) {
	args := m.Called(ctx, id)
	if unit, ok := args.Get(0).(*deployment.ProcessingUnit); ok {
		return unit, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UnitRepository) Update(ctx context.Context, unit *deployment.ProcessingUnit, expected deployment.Decision) error {
	args := m.Called(ctx, unit, expected)
	return args.Error(0)
}

func (m *UnitRepository) ListByRecord(ctx context.Context, recordID string) ([]deployment.ProcessingUnit, error) {
	args := m.Called(ctx, recordID)
	if units, ok := args.Get(0).([]deployment.ProcessingUnit); ok {
		return units, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UnitRepository) DeleteByRecord(ctx context.Context, recordID string) ([]string, error) {
	args := m.Called(ctx, recordID)
	if ids, ok := args.Get(0).([]string); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

// TokenRepository is a mock for token.TokenRepository.
type TokenRepository struct {
	mock.Mock
}

func (m *TokenRepository) Put(ctx context.Context, tok *token.CapabilityToken) error {
	args := m.Called(ctx, tok)
	return args.Error(0)
}

func (m *TokenRepository) Get(ctx context.Context, purpose token.Purpose, resourceID string) (*token.CapabilityToken, error) {
	args := m.Called(ctx, purpose, resourceID)
	if tok, ok := args.Get(0).(*token.CapabilityToken); ok {
		return tok, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TokenRepository) MarkConsumed(ctx context.Context, purpose token.Purpose, resourceID, secretHash string, now time.Time) (bool, error) {
	args := m.Called(ctx, purpose, resourceID, secretHash, now)
	return args.Bool(0), args.Error(1)
}

func (m *TokenRepository) DeleteByResource(ctx context.Context, resourceIDs ...string) error {
	args := m.Called(ctx, resourceIDs)
	return args.Error(0)
}

// TokenService is a mock for the token service surface the workflow services
// consume.
type TokenService struct {
	mock.Mock
}

func (m *TokenService) Issue(ctx context.Context, purpose token.Purpose, resourceID string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, purpose, resourceID, ttl)
	return args.String(0), args.Error(1)
}

func (m *TokenService) Validate(ctx context.Context, purpose token.Purpose, resourceID, secret string) error {
	args := m.Called(ctx, purpose, resourceID, secret)
	return args.Error(0)
}

func (m *TokenService) Consume(ctx context.Context, purpose token.Purpose, resourceID, secret string) error {
	args := m.Called(ctx, purpose, resourceID, secret)
	return args.Error(0)
}

func (m *TokenService) InvalidateResource(ctx context.Context, resourceIDs ...string) error {
	args := m.Called(ctx, resourceIDs)
	return args.Error(0)
}

// Outbox records enqueued messages for assertion.
type Outbox struct {
	Messages []*notify.Message
	Err      error
}

func (o *Outbox) Enqueue(_ context.Context, msg *notify.Message) error {
	if o.Err != nil {
		return o.Err
	}
	o.Messages = append(o.Messages, msg)
	return nil
}

// Recipients returns the recipients in enqueue order.
func (o *Outbox) Recipients() []string {
	out := make([]string, len(o.Messages))
	for i, m := range o.Messages {
		out[i] = m.Recipient
	}
	return out
}

// Waker records dispatcher kicks.
type Waker struct {
	Kicks int
}

func (w *Waker) Kick() { w.Kicks++ }

// Resolver is a mock for llc.TargetResolver and deployment.ContactResolver.
type Resolver struct {
	mock.Mock
}

func (m *Resolver) Targets(productLine, originPlant string) ([]string, error) {
	args := m.Called(productLine, originPlant)
	if targets, ok := args.Get(0).([]string); ok {
		return targets, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Resolver) ValidatorFor(plant string) (string, error) {
	args := m.Called(plant)
	return args.String(0), args.Error(1)
}

func (m *Resolver) ContactFor(plant string) (string, error) {
	args := m.Called(plant)
	return args.String(0), args.Error(1)
}

// Renderer is a mock for llc.Renderer.
type Renderer struct {
	mock.Mock
}

func (m *Renderer) Render(ctx context.Context, data render.ReportData) ([]byte, error) {
	args := m.Called(ctx, data)
	if doc, ok := args.Get(0).([]byte); ok {
		return doc, args.Error(1)
	}
	return nil, args.Error(1)
}

// DocumentStore is a mock for llc.DocumentStore.
type DocumentStore struct {
	mock.Mock
}

func (m *DocumentStore) Save(name string, data []byte) (string, error) {
	args := m.Called(name, data)
	return args.String(0), args.Error(1)
}

// UserRepository is a mock for user.Repository.
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) Create(ctx context.Context, u *user.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *UserRepository) Get(ctx context.Context, id string) (*user.User, error) {
	args := m.Called(ctx, id)
	if u, ok := args.Get(0).(*user.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	if u, ok := args.Get(0).(*user.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
