package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore is a Store backed by a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the SQLite database at the DSN
// path and applies migrations.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(strings.TrimPrefix(dsn, "file:"))
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// One writer at a time; SQLite would otherwise report "database is locked".
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "dir", dir)
	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

// --- profiles ---

func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM profiles WHERE user_id = ?`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", userID, err)
	}
	return decodeProfile([]byte(data))
}

func (s *SQLiteStore) CreateProfile(ctx context.Context, p *models.Profile) error {
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
		 VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT(user_id) DO NOTHING`,
		c.UserID, nilIfEmpty(c.Basic.Email), c.Enhanced.Completed, text, string(data), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore.CreateProfile failed", "error", err, "user", c.UserID)
		return fmt.Errorf("create profile %s: %w", c.UserID, err)
	}
	slog.Debug("SQLiteStore.CreateProfile succeeded", "user", c.UserID)
	return nil
}

func (s *SQLiteStore) SetField(ctx context.Context, userID string, field models.FieldName, value models.FieldValue) error {
	return s.updateProfile(ctx, userID, func(p *models.Profile) error {
		return p.ApplyField(field, value)
	})
}

func (s *SQLiteStore) MarkCompleted(ctx context.Context, userID string, at time.Time) error {
	return s.updateProfile(ctx, userID, func(p *models.Profile) error {
		return p.MarkCompleted(at)
	})
}

func (s *SQLiteStore) MarkVerified(ctx context.Context, userID, email string) error {
	return s.updateProfile(ctx, userID, func(p *models.Profile) error {
		return p.MarkVerified(email)
	})
}

// updateProfile runs a read-modify-write of one profile inside a transaction.
func (s *SQLiteStore) updateProfile(ctx context.Context, userID string, mutate func(*models.Profile) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin profile update: %w", err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx, `SELECT data FROM profiles WHERE user_id = ?`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load profile %s: %w", userID, err)
	}
	p, err := decodeProfile([]byte(data))
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
		`UPDATE profiles SET email = ?, completed = ?, search_text = ?, data = ?, updated_at = ? WHERE user_id = ?`,
		nilIfEmpty(p.Basic.Email), p.Enhanced.Completed, text, string(encoded), p.UpdatedAt, userID,
	)
	if err != nil {
		slog.Error("SQLiteStore.updateProfile failed", "error", err, "user", userID)
		return fmt.Errorf("update profile %s: %w", userID, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) SearchProfiles(ctx context.Context, terms []string, limit int) ([]models.Profile, error) {
	terms = normalizeTerms(terms)
	query := `SELECT data FROM profiles WHERE completed = 1`
	args := make([]any, 0, len(terms)+1)
	if len(terms) > 0 {
		clauses := make([]string, len(terms))
		for i, t := range terms {
			clauses[i] = `search_text LIKE ? ESCAPE '\'`
			args = append(args, likePattern(t))
		}
		query += ` AND (` + strings.Join(clauses, " OR ") + `)`
	}
	query += ` ORDER BY updated_at DESC, user_id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("SQLiteStore.SearchProfiles query failed", "error", err)
		return nil, fmt.Errorf("search profiles: %w", err)
	}
	defer rows.Close()

	var out []models.Profile
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p, err := decodeProfile([]byte(data))
		if err != nil {
			slog.Warn("SQLiteStore.SearchProfiles: skipping undecodable profile", "error", err)
			continue
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	slog.Debug("SQLiteStore.SearchProfiles succeeded", "terms", len(terms), "count", len(out))
	return out, nil
}

// --- sessions ---

func (s *SQLiteStore) GetSession(ctx context.Context, userID string) (*models.Session, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM sessions WHERE user_id = ? AND expires_at > ?`, userID, time.Now().UTC(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", userID, err)
	}
	return decodeSession([]byte(data))
}

func (s *SQLiteStore) PutSession(ctx context.Context, sess *models.Session, ttl time.Duration) error {
	now := time.Now().UTC()
	sess.UpdatedAt = now
	sess.ExpiresAt = now.Add(ttl)
	data, err := encodeJSON(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (user_id, data, expires_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at, updated_at = excluded.updated_at`,
		sess.UserID, data, sess.ExpiresAt, now,
	)
	if err != nil {
		slog.Error("SQLiteStore.PutSession failed", "error", err, "user", sess.UserID)
		return fmt.Errorf("put session %s: %w", sess.UserID, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete session %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore.DeleteSession succeeded", "user", userID)
	return nil
}

func (s *SQLiteStore) PurgeExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		slog.Info("SQLiteStore.PurgeExpiredSessions", "purged", n)
	}
	return int(n), nil
}

// --- memory ---

func (s *SQLiteStore) GetMemory(ctx context.Context, userID string) (*models.Memory, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM memories WHERE user_id = ?`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get memory %s: %w", userID, err)
	}
	return decodeMemory([]byte(data))
}

func (s *SQLiteStore) PutMemory(ctx context.Context, mem *models.Memory) error {
	mem.UpdatedAt = time.Now().UTC()
	data, err := encodeJSON(mem)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (user_id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		mem.UserID, data, mem.UpdatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore.PutMemory failed", "error", err, "user", mem.UserID)
		return fmt.Errorf("put memory %s: %w", mem.UserID, err)
	}
	return nil
}
