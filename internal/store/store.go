// Package store provides persistence for the bot: member profiles, TTL-bound
// sessions, conversational memory, inbound deduplication, the reply outbox
// and durable maintenance jobs.
//
// Three backends implement Store: InMemoryStore for tests and local runs,
// SQLiteStore and PostgresStore for deployments.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
)

var (
	// ErrNotFound is returned when a keyed record does not exist or has expired.
	ErrNotFound = errors.New("record not found")
	// ErrCorruptRecord is returned when a stored record cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt record")
)

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
}

// Option configures a store.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns the database/sql driver name for dsn: "postgres" for
// URLs and key=value connection strings, "sqlite3" for everything else.
func DetectDSNType(dsn string) string {
	d := strings.TrimSpace(dsn)
	if strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(d, "host=") || strings.Contains(d, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// ProfileRepo persists member profiles.
type ProfileRepo interface {
	// GetProfile returns ErrNotFound when the member has no profile yet.
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)

	// CreateProfile inserts p unless a profile for p.UserID exists, in which
	// case the existing record is left untouched.
	CreateProfile(ctx context.Context, p *models.Profile) error

	// SetField writes one validated field.
	SetField(ctx context.Context, userID string, field models.FieldName, value models.FieldValue) error

	// MarkCompleted sets the completed flag; it fails if a required field is missing.
	MarkCompleted(ctx context.Context, userID string, at time.Time) error

	// MarkVerified records that the member proved ownership of email. It
	// fails with models.ErrEmailMismatch when a different email is on file.
	MarkVerified(ctx context.Context, userID, email string) error

	// SearchProfiles returns completed profiles whose searchable text contains
	// any of terms, most recently updated first. No terms matches every
	// completed profile.
	SearchProfiles(ctx context.Context, terms []string, limit int) ([]models.Profile, error)
}

// SessionRepo persists TTL-bound sessions.
type SessionRepo interface {
	// GetSession returns ErrNotFound for absent or expired sessions and wraps
	// ErrCorruptRecord when the stored session cannot be decoded.
	GetSession(ctx context.Context, userID string) (*models.Session, error)

	// PutSession stores sess and sets its expiry to now+ttl.
	PutSession(ctx context.Context, sess *models.Session, ttl time.Duration) error

	DeleteSession(ctx context.Context, userID string) error

	// PurgeExpiredSessions deletes sessions that expired before now.
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

// MemoryRepo persists conversational memory.
type MemoryRepo interface {
	// GetMemory returns ErrNotFound when the member has no memory yet.
	GetMemory(ctx context.Context, userID string) (*models.Memory, error)
	PutMemory(ctx context.Context, mem *models.Memory) error
}

// Store is the full persistence surface used by the bot.
type Store interface {
	ProfileRepo
	SessionRepo
	MemoryRepo
	DedupRepo
	OutboxRepo
	JobRepo
	Close() error
}
