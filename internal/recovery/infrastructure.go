package recovery

import (
	"context"
	"log/slog"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/store"
)

// OutboxRecovery requeues replies stuck in sending by a crashed process.
func OutboxRecovery(sender *store.OutboxSender) Recoverable {
	return RecoverFunc(func(ctx context.Context, _ *RecoveryRegistry) error {
		return sender.RecoverStaleMessages(ctx)
	})
}

// JobRecovery requeues jobs that were running when the process stopped.
func JobRecovery(runner *store.JobRunner) Recoverable {
	return RecoverFunc(func(ctx context.Context, _ *RecoveryRegistry) error {
		return runner.RecoverStaleJobs(ctx)
	})
}

// SessionPurge deletes sessions that expired while the bot was down.
func SessionPurge() Recoverable {
	return RecoverFunc(func(ctx context.Context, reg *RecoveryRegistry) error {
		n, err := reg.GetStore().PurgeExpiredSessions(ctx, reg.Now())
		if err != nil {
			return err
		}
		if n > 0 {
			slog.Info("recovery.SessionPurge: purged expired sessions", "count", n)
		}
		return nil
	})
}

// MaintenanceSchedule makes sure the periodic maintenance jobs are queued.
func MaintenanceSchedule(m *store.Maintenance) Recoverable {
	return RecoverFunc(func(ctx context.Context, _ *RecoveryRegistry) error {
		return m.Schedule(ctx)
	})
}

// NewStartupManager returns a manager with the standard startup steps in
// order: session purge, outbox recovery, job recovery, maintenance schedule.
func NewStartupManager(st store.Store, sender *store.OutboxSender, runner *store.JobRunner, m *store.Maintenance) *RecoveryManager {
	rm := NewRecoveryManager(st, nil)
	rm.RegisterRecoverable("sessions", SessionPurge())
	rm.RegisterRecoverable("outbox", OutboxRecovery(sender))
	rm.RegisterRecoverable("jobs", JobRecovery(runner))
	rm.RegisterRecoverable("maintenance", MaintenanceSchedule(m))
	return rm
}
