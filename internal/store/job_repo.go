package store

import (
	"context"
	"time"
)

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// DefaultJobMaxAttempts bounds retries of a failing job.
const DefaultJobMaxAttempts = 3

// Job is a durable scheduled unit of background work.
type Job struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	RunAt       time.Time  `json:"run_at"`
	PayloadJSON string     `json:"payload_json"`
	Status      JobStatus  `json:"status"`
	Attempt     int        `json:"attempt"`
	MaxAttempts int        `json:"max_attempts"`
	LastError   string     `json:"last_error"`
	LockedAt    *time.Time `json:"locked_at"`
	DedupeKey   string     `json:"dedupe_key"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// JobRepo persists scheduled jobs.
type JobRepo interface {
	// EnqueueJob inserts a job. When dedupeKey is non-empty and a queued or
	// running job already carries it, the existing ID is returned.
	EnqueueJob(ctx context.Context, kind string, runAt time.Time, payloadJSON, dedupeKey string) (string, error)

	// ClaimDueJobs moves up to limit queued jobs with run_at <= now to running.
	ClaimDueJobs(ctx context.Context, now time.Time, limit int) ([]Job, error)

	CompleteJob(ctx context.Context, id string) error

	// FailJob records a failure and reschedules the job at nextRunAt, or marks
	// it failed once MaxAttempts is reached.
	FailJob(ctx context.Context, id, errMsg string, nextRunAt time.Time) error

	// RequeueStaleRunningJobs resets jobs running since before staleBefore.
	RequeueStaleRunningJobs(ctx context.Context, staleBefore time.Time) (int, error)

	// GetJob returns ErrNotFound for unknown IDs.
	GetJob(ctx context.Context, id string) (*Job, error)
}
