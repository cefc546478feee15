package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Maintenance job kinds.
const (
	JobKindPurgeSessions = "purge_sessions"
	JobKindPruneDedup    = "prune_dedup"
)

// DefaultDedupRetention is how long inbound message IDs are remembered.
const DefaultDedupRetention = 72 * time.Hour

// Maintenance keeps the session and dedup tables bounded. Each run
// reschedules itself one interval later; slot-based dedupe keys keep a single
// pending run per kind across restarts.
type Maintenance struct {
	store          Store
	interval       time.Duration
	dedupRetention time.Duration
	now            func() time.Time
}

// NewMaintenance creates a Maintenance running every interval.
func NewMaintenance(s Store, interval time.Duration) *Maintenance {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Maintenance{store: s, interval: interval, dedupRetention: DefaultDedupRetention, now: time.Now}
}

// Register attaches the maintenance handlers to r.
func (m *Maintenance) Register(r *JobRunner) {
	r.RegisterHandler(JobKindPurgeSessions, func(ctx context.Context, _ string) error {
		n, err := m.store.PurgeExpiredSessions(ctx, m.now())
		if err != nil {
			return err
		}
		slog.Debug("Maintenance.purgeSessions: done", "purged", n)
		return m.schedule(ctx, JobKindPurgeSessions, m.nextSlot())
	})
	r.RegisterHandler(JobKindPruneDedup, func(ctx context.Context, _ string) error {
		n, err := m.store.PruneDedup(ctx, m.now().Add(-m.dedupRetention))
		if err != nil {
			return err
		}
		slog.Debug("Maintenance.pruneDedup: done", "pruned", n)
		return m.schedule(ctx, JobKindPruneDedup, m.nextSlot())
	})
}

// Schedule enqueues the next run of every maintenance job.
func (m *Maintenance) Schedule(ctx context.Context) error {
	for _, kind := range []string{JobKindPurgeSessions, JobKindPruneDedup} {
		if err := m.schedule(ctx, kind, m.nextSlot()); err != nil {
			return err
		}
	}
	return nil
}

func (m *Maintenance) nextSlot() time.Time {
	return m.now().Truncate(m.interval).Add(m.interval)
}

func (m *Maintenance) schedule(ctx context.Context, kind string, runAt time.Time) error {
	key := fmt.Sprintf("%s:%d", kind, runAt.Unix())
	if _, err := m.store.EnqueueJob(ctx, kind, runAt, "{}", key); err != nil {
		return fmt.Errorf("schedule %s: %w", kind, err)
	}
	return nil
}
