package store

import (
	"context"
	"log/slog"
	"time"
)

// DefaultOutboxMaxAttempts is the number of send attempts before a reply is abandoned.
const DefaultOutboxMaxAttempts = 5

// OutboxSendFunc performs the transport send of one outbox message.
type OutboxSendFunc func(ctx context.Context, msg OutboxMessage) error

// OutboxSender claims due outbox messages and hands them to the transport,
// retrying failures with exponential backoff.
type OutboxSender struct {
	repo           OutboxRepo
	sendFunc       OutboxSendFunc
	pollInterval   time.Duration
	staleThreshold time.Duration
	claimLimit     int
	maxAttempts    int
	now            func() time.Time
	wake           chan struct{}
}

// OutboxSenderOption configures an OutboxSender.
type OutboxSenderOption func(*OutboxSender)

// WithOutboxMaxAttempts overrides DefaultOutboxMaxAttempts.
func WithOutboxMaxAttempts(n int) OutboxSenderOption {
	return func(s *OutboxSender) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithOutboxClock overrides the time source.
func WithOutboxClock(now func() time.Time) OutboxSenderOption {
	return func(s *OutboxSender) { s.now = now }
}

// NewOutboxSender creates a new OutboxSender.
func NewOutboxSender(repo OutboxRepo, sendFunc OutboxSendFunc, pollInterval time.Duration, opts ...OutboxSenderOption) *OutboxSender {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	s := &OutboxSender{
		repo:           repo,
		sendFunc:       sendFunc,
		pollInterval:   pollInterval,
		staleThreshold: 5 * time.Minute,
		claimLimit:     10,
		maxAttempts:    DefaultOutboxMaxAttempts,
		now:            time.Now,
		wake:           make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecoverStaleMessages requeues messages stuck in sending state (crash recovery).
// Should be called once at startup.
func (s *OutboxSender) RecoverStaleMessages(ctx context.Context) error {
	n, err := s.repo.RequeueStaleSendingMessages(ctx, s.now().Add(-s.staleThreshold))
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("OutboxSender.RecoverStaleMessages: requeued stale messages", "count", n)
	}
	return nil
}

// Notify wakes the polling loop so a freshly enqueued reply goes out without
// waiting for the next tick.
func (s *OutboxSender) Notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run starts the polling loop. It blocks until the context is cancelled.
func (s *OutboxSender) Run(ctx context.Context) {
	slog.Info("OutboxSender.Run: starting outbox sender", "pollInterval", s.pollInterval)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("OutboxSender.Run: stopping")
			return
		case <-ticker.C:
			s.Flush(ctx)
		case <-s.wake:
			s.Flush(ctx)
		}
	}
}

// Flush claims and sends every message due now. It returns the number sent.
func (s *OutboxSender) Flush(ctx context.Context) int {
	now := s.now()
	msgs, err := s.repo.ClaimDueOutboxMessages(ctx, now, s.claimLimit)
	if err != nil {
		slog.Error("OutboxSender.Flush: claim failed", "error", err)
		return 0
	}

	sent := 0
	for _, msg := range msgs {
		if err := s.sendFunc(ctx, msg); err != nil {
			s.fail(ctx, msg, err, now)
			continue
		}
		if err := s.repo.MarkOutboxMessageSent(ctx, msg.ID); err != nil {
			slog.Error("OutboxSender.Flush: mark sent error", "id", msg.ID, "error", err)
		}
		sent++
		slog.Debug("OutboxSender.Flush: message sent", "id", msg.ID, "recipient", msg.RecipientID)
	}
	return sent
}

func (s *OutboxSender) fail(ctx context.Context, msg OutboxMessage, sendErr error, now time.Time) {
	if msg.Attempts+1 >= s.maxAttempts {
		slog.Error("OutboxSender.fail: giving up", "id", msg.ID, "recipient", msg.RecipientID, "attempts", msg.Attempts+1, "error", sendErr)
		if err := s.repo.AbandonOutboxMessage(ctx, msg.ID, sendErr.Error()); err != nil {
			slog.Error("OutboxSender.fail: abandon error", "id", msg.ID, "error", err)
		}
		return
	}
	// Exponential backoff: 10s, 20s, 40s, ...
	backoff := time.Duration(10*(1<<msg.Attempts)) * time.Second
	slog.Warn("OutboxSender.fail: send failed, retrying", "id", msg.ID, "attempts", msg.Attempts+1, "backoff", backoff, "error", sendErr)
	if err := s.repo.FailOutboxMessage(ctx, msg.ID, sendErr.Error(), now.Add(backoff)); err != nil {
		slog.Error("OutboxSender.fail: fail message error", "id", msg.ID, "error", err)
	}
}
