// Package notify handles outbound mail. State transitions enqueue messages
// into a persistent outbox inside the same transaction as the status write;
// a background dispatcher delivers them after commit. Delivery failure is
// logged and retried, never propagated back to the request that caused it.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// MessageStatus tracks outbox delivery progress.
type MessageStatus string

const (
	StatusPending MessageStatus = "PENDING"
	StatusSent    MessageStatus = "SENT"
	StatusFailed  MessageStatus = "FAILED"
)

// maxAttempts is how many deliveries are tried before a message is parked
// as FAILED.
const maxAttempts = 5

// Message is one outbound mail.
type Message struct {
	ID        string        `json:"id"`
	Recipient string        `json:"recipient"`
	Subject   string        `json:"subject"`
	Body      string        `json:"body"`
	Status    MessageStatus `json:"status"`
	Attempts  int           `json:"attempts"`
	LastError string        `json:"last_error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	SentAt    *time.Time    `json:"sent_at,omitempty"`
}

// OutboxRepository persists queued messages. Enqueue participates in the
// caller's transaction when one is carried in ctx.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg *Message) error
	ListPending(ctx context.Context, limit int) ([]Message, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, lastErr string, parked bool) error
}

// Mailer delivers a single message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Dispatcher drains the outbox in the background.
type Dispatcher struct {
	outbox   OutboxRepository
	mailer   Mailer
	logger   *slog.Logger
	interval time.Duration
	batch    int
	kick     chan struct{}
}

// NewDispatcher creates a dispatcher polling the outbox at the given interval.
func NewDispatcher(outbox OutboxRepository, mailer Mailer, logger *slog.Logger, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Dispatcher{
		outbox:   outbox,
		mailer:   mailer,
		logger:   logger,
		interval: interval,
		batch:    20,
		kick:     make(chan struct{}, 1),
	}
}

// Kick asks the dispatcher to drain soon instead of waiting for the next tick.
// Called by the orchestrator after a transaction that enqueued mail commits.
func (d *Dispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Run drains the outbox until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.kick:
		}
		d.drain(ctx)
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	msgs, err := d.outbox.ListPending(ctx, d.batch)
	if err != nil {
		d.logger.Error("listing pending outbox messages", "error", err)
		return
	}

	for _, msg := range msgs {
		if err := d.mailer.Send(ctx, msg.Recipient, msg.Subject, msg.Body); err != nil {
			attempts := msg.Attempts + 1
			parked := attempts >= maxAttempts
			d.logger.Error("mail delivery failed",
				"message_id", msg.ID,
				"recipient", msg.Recipient,
				"attempts", attempts,
				"parked", parked,
				"error", err)
			if markErr := d.outbox.MarkFailed(ctx, msg.ID, attempts, err.Error(), parked); markErr != nil {
				d.logger.Error("marking outbox message failed", "message_id", msg.ID, "error", markErr)
			}
			continue
		}

		if err := d.outbox.MarkSent(ctx, msg.ID, time.Now()); err != nil {
			d.logger.Error("marking outbox message sent", "message_id", msg.ID, "error", err)
		}
	}
}
