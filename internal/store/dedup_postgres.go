package store

import (
	"context"
	"fmt"
	"time"
)

func (s *PostgresStore) IsDuplicate(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM inbound_dedup WHERE message_id = $1)`, messageID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) RecordInbound(ctx context.Context, messageID, senderID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO inbound_dedup (message_id, sender_id, received_at) VALUES ($1, $2, $3) ON CONFLICT (message_id) DO NOTHING`,
		messageID, senderID, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, messageID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE inbound_dedup SET processed_at = $1 WHERE message_id = $2`,
		time.Now().UTC(), messageID,
	)
	if err != nil {
		return fmt.Errorf("mark processed failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReleaseInbound(ctx context.Context, messageID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM inbound_dedup WHERE message_id = $1 AND processed_at IS NULL`, messageID)
	if err != nil {
		return fmt.Errorf("release inbound failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) PruneDedup(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM inbound_dedup WHERE received_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune dedup failed: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
