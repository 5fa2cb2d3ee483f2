package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memOutbox struct {
	mu   sync.Mutex
	msgs map[string]*Message
}

func newMemOutbox() *memOutbox {
	return &memOutbox{msgs: make(map[string]*Message)}
}

func (m *memOutbox) Enqueue(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	m.msgs[msg.ID] = &cp
	return nil
}

func (m *memOutbox) ListPending(_ context.Context, limit int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Message
	for _, msg := range m.msgs {
		if msg.Status == StatusPending {
			out = append(out, *msg)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memOutbox) MarkSent(_ context.Context, id string, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.msgs[id]
	msg.Status = StatusSent
	msg.SentAt = &sentAt
	return nil
}

func (m *memOutbox) MarkFailed(_ context.Context, id string, attempts int, lastErr string, parked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.msgs[id]
	msg.Attempts = attempts
	msg.LastError = lastErr
	if parked {
		msg.Status = StatusFailed
	}
	return nil
}

func (m *memOutbox) get(id string) Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.msgs[id]
}

type stubMailer struct {
	mu   sync.Mutex
	err  error
	sent []string
}

func (s *stubMailer) Send(_ context.Context, to, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, to)
	return nil
}

func (s *stubMailer) sentTo() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func testDispatcher(outbox OutboxRepository, mailer Mailer) *Dispatcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDispatcher(outbox, mailer, logger, time.Hour)
}

func TestDispatcherDrainDelivers(t *testing.T) {
	ctx := context.Background()
	outbox := newMemOutbox()
	mailer := &stubMailer{}

	msg := NewMessage("a@avocarbon.com", "subject", "body")
	require.NoError(t, outbox.Enqueue(ctx, msg))

	d := testDispatcher(outbox, mailer)
	d.drain(ctx)

	require.Equal(t, []string{"a@avocarbon.com"}, mailer.sentTo())
	got := outbox.get(msg.ID)
	require.Equal(t, StatusSent, got.Status)
	require.NotNil(t, got.SentAt)
}

func TestDispatcherDrainRetriesThenParks(t *testing.T) {
	ctx := context.Background()
	outbox := newMemOutbox()
	mailer := &stubMailer{err: errors.New("smtp timeout")}

	msg := NewMessage("a@avocarbon.com", "subject", "body")
	require.NoError(t, outbox.Enqueue(ctx, msg))

	d := testDispatcher(outbox, mailer)
	for i := 0; i < maxAttempts; i++ {
		d.drain(ctx)
	}

	got := outbox.get(msg.ID)
	require.Equal(t, StatusFailed, got.Status)
	require.Equal(t, maxAttempts, got.Attempts)
	require.Equal(t, "smtp timeout", got.LastError)

	// Parked messages are not retried.
	d.drain(ctx)
	require.Equal(t, maxAttempts, outbox.get(msg.ID).Attempts)
}

func TestDispatcherKickTriggersDrain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outbox := newMemOutbox()
	mailer := &stubMailer{}
	require.NoError(t, outbox.Enqueue(ctx, NewMessage("a@avocarbon.com", "s", "b")))

	d := testDispatcher(outbox, mailer)
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	d.Kick()
	require.Eventually(t, func() bool {
		return len(mailer.sentTo()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
