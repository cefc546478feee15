package store

import (
	"context"
	"time"
)

// OutboxStatus represents the lifecycle state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusQueued  OutboxStatus = "queued"
	OutboxStatusSending OutboxStatus = "sending"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusFailed  OutboxStatus = "failed"
)

// OutboxKindReply is the kind used for turn replies.
const OutboxKindReply = "reply"

// OutboxMessage is a durable outgoing reply.
type OutboxMessage struct {
	ID            string       `json:"id"`
	RecipientID   string       `json:"recipient_id"`
	Kind          string       `json:"kind"`
	Body          string       `json:"body"`
	Status        OutboxStatus `json:"status"`
	Attempts      int          `json:"attempts"`
	NextAttemptAt *time.Time   `json:"next_attempt_at"`
	DedupeKey     string       `json:"dedupe_key"`
	LockedAt      *time.Time   `json:"locked_at"`
	LastError     string       `json:"last_error"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// OutboxRepo persists replies so they survive a crash between the turn and
// the transport send.
type OutboxRepo interface {
	// EnqueueOutboxMessage inserts a reply. When dedupeKey is non-empty and a
	// queued or sending message already carries it, the existing ID is returned.
	EnqueueOutboxMessage(ctx context.Context, recipientID, kind, body, dedupeKey string) (string, error)

	// ClaimDueOutboxMessages moves up to limit due queued messages to sending.
	ClaimDueOutboxMessages(ctx context.Context, now time.Time, limit int) ([]OutboxMessage, error)

	MarkOutboxMessageSent(ctx context.Context, id string) error

	// FailOutboxMessage records a failed attempt and requeues the message for
	// nextAttemptAt.
	FailOutboxMessage(ctx context.Context, id, errMsg string, nextAttemptAt time.Time) error

	// AbandonOutboxMessage records a final failure; the message is not retried.
	AbandonOutboxMessage(ctx context.Context, id, errMsg string) error

	// RequeueStaleSendingMessages resets messages stuck in sending since
	// before staleBefore (crash recovery).
	RequeueStaleSendingMessages(ctx context.Context, staleBefore time.Time) (int, error)
}
