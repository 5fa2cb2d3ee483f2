package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/STS-Engineer/llc-backend/internal/notify"
	"github.com/STS-Engineer/llc-backend/internal/repository"
)

// OutboxStore implements notify.OutboxRepository for SQLite. Enqueue joins
// the caller's transaction, which is what makes the notification pattern
// "after commit": a rolled-back transition leaves no mail behind.
type OutboxStore struct {
	db *DB
}

// NewOutboxStore creates a new OutboxStore.
func NewOutboxStore(db *DB) *OutboxStore {
	return &OutboxStore{db: db}
}

// Enqueue inserts a pending message.
func (s *OutboxStore) Enqueue(ctx context.Context, msg *notify.Message) error {
	q := s.db.runner(ctx)

	_, err := q.ExecContext(ctx, `
		INSERT INTO outbox (id, recipient, subject, body, status, attempts, last_error, created_at, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.Recipient, msg.Subject, msg.Body, msg.Status,
		msg.Attempts, msg.LastError, msg.CreatedAt, msg.SentAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}
	return nil
}

// ListPending returns up to limit undelivered messages, oldest first.
func (s *OutboxStore) ListPending(ctx context.Context, limit int) ([]notify.Message, error) {
	q := s.db.runner(ctx)

	rows, err := q.QueryContext(ctx, `
		SELECT id, recipient, subject, body, status, attempts, last_error, created_at, sent_at
		FROM outbox WHERE status = ? ORDER BY created_at, id LIMIT ?
	`, notify.StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending messages: %w", err)
	}
	defer rows.Close()

	var msgs []notify.Message
	for rows.Next() {
		var m notify.Message
		if err := rows.Scan(&m.ID, &m.Recipient, &m.Subject, &m.Body,
			&m.Status, &m.Attempts, &m.LastError, &m.CreatedAt, &m.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return msgs, nil
}

// MarkSent records a successful delivery.
func (s *OutboxStore) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	q := s.db.runner(ctx)

	res, err := q.ExecContext(ctx, `
		UPDATE outbox SET status = ?, sent_at = ?, last_error = '' WHERE id = ?
	`, notify.StatusSent, sentAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark message sent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// MarkFailed records a delivery failure; parked messages move to FAILED and
// leave the dispatcher's queue.
func (s *OutboxStore) MarkFailed(ctx context.Context, id string, attempts int, lastErr string, parked bool) error {
	q := s.db.runner(ctx)

	status := notify.StatusPending
	if parked {
		status = notify.StatusFailed
	}
	res, err := q.ExecContext(ctx, `
		UPDATE outbox SET status = ?, attempts = ?, last_error = ? WHERE id = ?
	`, status, attempts, lastErr, id)
	if err != nil {
		return fmt.Errorf("failed to mark message failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
