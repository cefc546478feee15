package store

import (
	"context"
	"time"
)

// DedupRecord is one inbound transport message seen by the bot.
type DedupRecord struct {
	MessageID   string     `json:"message_id"`
	SenderID    string     `json:"sender_id"`
	ReceivedAt  time.Time  `json:"received_at"`
	ProcessedAt *time.Time `json:"processed_at"`
}

// DedupRepo suppresses duplicate webhook and socket deliveries.
type DedupRepo interface {
	// IsDuplicate reports whether messageID was already recorded.
	IsDuplicate(ctx context.Context, messageID string) (bool, error)

	// RecordInbound records messageID. It returns false when the message was
	// already recorded, in which case the turn must not run again.
	RecordInbound(ctx context.Context, messageID, senderID string) (bool, error)

	// MarkProcessed stamps the time the turn for messageID finished.
	MarkProcessed(ctx context.Context, messageID string) error

	// ReleaseInbound forgets an unprocessed messageID so that a redelivery
	// runs the turn again. Processed records are kept.
	ReleaseInbound(ctx context.Context, messageID string) error

	// PruneDedup deletes records received before cutoff.
	PruneDedup(ctx context.Context, cutoff time.Time) (int, error)
}
