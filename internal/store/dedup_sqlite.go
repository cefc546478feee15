package store

import (
	"context"
	"fmt"
	"time"
)

func (s *SQLiteStore) IsDuplicate(ctx context.Context, messageID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM inbound_dedup WHERE message_id = ?`, messageID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) RecordInbound(ctx context.Context, messageID, senderID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO inbound_dedup (message_id, sender_id, received_at) VALUES (?, ?, ?)`,
		messageID, senderID, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (s *SQLiteStore) MarkProcessed(ctx context.Context, messageID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE inbound_dedup SET processed_at = ? WHERE message_id = ?`,
		time.Now().UTC(), messageID,
	)
	if err != nil {
		return fmt.Errorf("mark processed failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReleaseInbound(ctx context.Context, messageID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM inbound_dedup WHERE message_id = ? AND processed_at IS NULL`, messageID)
	if err != nil {
		return fmt.Errorf("release inbound failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PruneDedup(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM inbound_dedup WHERE received_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune dedup failed: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
