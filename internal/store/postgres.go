package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "embed"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

var _ Store = (*PostgresStore)(nil)

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to PostgreSQL and applies migrations.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}

// --- profiles ---

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM profiles WHERE user_id = $1`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", userID, err)
	}
	return decodeProfile(data)
}

func (s *PostgresStore) CreateProfile(ctx context.Context, p *models.Profile) error {
	if p == nil || p.UserID == "" {
		return fmt.Errorf("create profile: user id required")
	}
	c := p.Clone()
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	data, text, err := encodeProfile(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, email, completed, search_text, data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (user_id) DO NOTHING`,
		c.UserID, nilIfEmpty(c.Basic.Email), c.Enhanced.Completed, text, string(data), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore.CreateProfile failed", "error", err, "user", c.UserID)
		return fmt.Errorf("create profile %s: %w", c.UserID, err)
	}
	return nil
}

func (s *PostgresStore) SetField(ctx context.Context, userID string, field models.FieldName, value models.FieldValue) error {
	return s.updateProfile(ctx, userID, func(p *models.Profile) error {
		return p.ApplyField(field, value)
	})
}

func (s *PostgresStore) MarkCompleted(ctx context.Context, userID string, at time.Time) error {
	return s.updateProfile(ctx, userID, func(p *models.Profile) error {
		return p.MarkCompleted(at)
	})
}

func (s *PostgresStore) MarkVerified(ctx context.Context, userID, email string) error {
	return s.updateProfile(ctx, userID, func(p *models.Profile) error {
		return p.MarkVerified(email)
	})
}

// updateProfile locks the row, applies mutate and writes the result back.
func (s *PostgresStore) updateProfile(ctx context.Context, userID string, mutate func(*models.Profile) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin profile update: %w", err)
	}
	defer tx.Rollback()

	var data []byte
	err = tx.QueryRowContext(ctx, `SELECT data FROM profiles WHERE user_id = $1 FOR UPDATE`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load profile %s: %w", userID, err)
	}
	p, err := decodeProfile(data)
	if err != nil {
		return err
	}
	if err := mutate(p); err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()
	encoded, text, err := encodeProfile(p)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE profiles SET email = $1, completed = $2, search_text = $3, data = $4, updated_at = $5 WHERE user_id = $6`,
		nilIfEmpty(p.Basic.Email), p.Enhanced.Completed, text, string(encoded), p.UpdatedAt, userID,
	)
	if err != nil {
		slog.Error("PostgresStore.updateProfile failed", "error", err, "user", userID)
		return fmt.Errorf("update profile %s: %w", userID, err)
	}
	return tx.Commit()
}

func (s *PostgresStore) SearchProfiles(ctx context.Context, terms []string, limit int) ([]models.Profile, error) {
	terms = normalizeTerms(terms)
	query := `SELECT data FROM profiles WHERE completed = TRUE`
	args := make([]any, 0, len(terms)+1)
	if len(terms) > 0 {
		clauses := make([]string, len(terms))
		for i, t := range terms {
			args = append(args, likePattern(t))
			clauses[i] = fmt.Sprintf(`search_text LIKE $%d ESCAPE '\'`, len(args))
		}
		query += ` AND (` + strings.Join(clauses, " OR ") + `)`
	}
	query += ` ORDER BY updated_at DESC, user_id ASC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("PostgresStore.SearchProfiles query failed", "error", err)
		return nil, fmt.Errorf("search profiles: %w", err)
	}
	defer rows.Close()

	var out []models.Profile
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p, err := decodeProfile(data)
		if err != nil {
			slog.Warn("PostgresStore.SearchProfiles: skipping undecodable profile", "error", err)
			continue
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}

// --- sessions ---

func (s *PostgresStore) GetSession(ctx context.Context, userID string) (*models.Session, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM sessions WHERE user_id = $1 AND expires_at > $2`, userID, time.Now().UTC(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", userID, err)
	}
	return decodeSession(data)
}

func (s *PostgresStore) PutSession(ctx context.Context, sess *models.Session, ttl time.Duration) error {
	now := time.Now().UTC()
	sess.UpdatedAt = now
	sess.ExpiresAt = now.Add(ttl)
	data, err := encodeJSON(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (user_id, data, expires_at, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at`,
		sess.UserID, data, sess.ExpiresAt, now,
	)
	if err != nil {
		slog.Error("PostgresStore.PutSession failed", "error", err, "user", sess.UserID)
		return fmt.Errorf("put session %s: %w", sess.UserID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete session %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) PurgeExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		slog.Info("PostgresStore.PurgeExpiredSessions", "purged", n)
	}
	return int(n), nil
}

// --- memory ---

func (s *PostgresStore) GetMemory(ctx context.Context, userID string) (*models.Memory, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM memories WHERE user_id = $1`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get memory %s: %w", userID, err)
	}
	return decodeMemory(data)
}

func (s *PostgresStore) PutMemory(ctx context.Context, mem *models.Memory) error {
	mem.UpdatedAt = time.Now().UTC()
	data, err := encodeJSON(mem)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (user_id, data, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		mem.UserID, data, mem.UpdatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore.PutMemory failed", "error", err, "user", mem.UserID)
		return fmt.Errorf("put memory %s: %w", mem.UserID, err)
	}
	return nil
}
