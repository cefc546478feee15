package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// JobHandler executes one job. It receives the job's payload JSON.
type JobHandler func(ctx context.Context, payload string) error

// JobRunner periodically claims due jobs and dispatches them to the handler
// registered for their kind.
type JobRunner struct {
	repo           JobRepo
	handlers       map[string]JobHandler
	mu             sync.RWMutex
	pollInterval   time.Duration
	staleThreshold time.Duration
	claimLimit     int
	now            func() time.Time
}

// NewJobRunner creates a new JobRunner.
func NewJobRunner(repo JobRepo, pollInterval time.Duration) *JobRunner {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	return &JobRunner{
		repo:           repo,
		handlers:       make(map[string]JobHandler),
		pollInterval:   pollInterval,
		staleThreshold: 5 * time.Minute,
		claimLimit:     10,
		now:            time.Now,
	}
}

// RegisterHandler registers a handler for a given job kind.
func (r *JobRunner) RegisterHandler(kind string, handler JobHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = handler
	slog.Debug("JobRunner.RegisterHandler", "kind", kind)
}

// RecoverStaleJobs requeues jobs that were running when the process crashed.
// Should be called once at startup.
func (r *JobRunner) RecoverStaleJobs(ctx context.Context) error {
	n, err := r.repo.RequeueStaleRunningJobs(ctx, r.now().Add(-r.staleThreshold))
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("JobRunner.RecoverStaleJobs: requeued stale jobs", "count", n)
	}
	return nil
}

// Run starts the polling loop. It blocks until the context is cancelled.
func (r *JobRunner) Run(ctx context.Context) {
	slog.Info("JobRunner.Run: starting job runner", "pollInterval", r.pollInterval)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("JobRunner.Run: stopping")
			return
		case <-ticker.C:
			r.RunDue(ctx)
		}
	}
}

// MaxJobBackoff caps the delay before a failed job is retried.
const MaxJobBackoff = time.Hour

// jobBackoff doubles from 30s per attempt up to MaxJobBackoff.
func jobBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 7 {
		return MaxJobBackoff
	}
	return min(30*time.Second<<attempt, MaxJobBackoff)
}

// RunDue claims and executes every job due now.
func (r *JobRunner) RunDue(ctx context.Context) {
	now := r.now()
	jobs, err := r.repo.ClaimDueJobs(ctx, now, r.claimLimit)
	if err != nil {
		slog.Error("JobRunner.RunDue: claim failed", "error", err)
		return
	}
	for _, job := range jobs {
		r.runJob(ctx, job, now)
	}
}

func (r *JobRunner) runJob(ctx context.Context, job Job, now time.Time) {
	r.mu.RLock()
	handler, ok := r.handlers[job.Kind]
	r.mu.RUnlock()

	var runErr error
	if !ok {
		runErr = fmt.Errorf("no handler registered for kind %q", job.Kind)
	} else {
		runErr = handler(ctx, job.PayloadJSON)
	}
	if runErr != nil {
		retryAt := now.Add(jobBackoff(job.Attempt))
		slog.Warn("JobRunner.runJob: job failed", "id", job.ID, "kind", job.Kind, "attempt", job.Attempt, "retryAt", retryAt, "error", runErr)
		if err := r.repo.FailJob(ctx, job.ID, runErr.Error(), retryAt); err != nil {
			slog.Error("JobRunner.runJob: record failure", "id", job.ID, "error", err)
		}
		return
	}
	if err := r.repo.CompleteJob(ctx, job.ID); err != nil {
		slog.Error("JobRunner.runJob: complete", "id", job.ID, "error", err)
		return
	}
	slog.Debug("JobRunner.runJob: done", "id", job.ID, "kind", job.Kind)
}
