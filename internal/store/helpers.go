package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanJob(row rowScanner) (Job, error) {
	var j Job
	var payloadJSON, lastError, dedupeKey sql.NullString
	var lockedAt sql.NullTime
	err := row.Scan(
		&j.ID, &j.Kind, &j.RunAt, &payloadJSON, &j.Status, &j.Attempt, &j.MaxAttempts,
		&lastError, &lockedAt, &dedupeKey, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return j, err
	}
	j.PayloadJSON = payloadJSON.String
	j.LastError = lastError.String
	j.DedupeKey = dedupeKey.String
	if lockedAt.Valid {
		j.LockedAt = &lockedAt.Time
	}
	return j, nil
}

func scanOutboxMessage(row rowScanner) (OutboxMessage, error) {
	var m OutboxMessage
	var dedupeKey, lastError sql.NullString
	var nextAttemptAt, lockedAt sql.NullTime
	err := row.Scan(
		&m.ID, &m.RecipientID, &m.Kind, &m.Body, &m.Status, &m.Attempts,
		&nextAttemptAt, &dedupeKey, &lockedAt, &lastError, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return m, fmt.Errorf("scan outbox message failed: %w", err)
	}
	m.DedupeKey = dedupeKey.String
	m.LastError = lastError.String
	if nextAttemptAt.Valid {
		m.NextAttemptAt = &nextAttemptAt.Time
	}
	if lockedAt.Valid {
		m.LockedAt = &lockedAt.Time
	}
	return m, nil
}

const outboxColumns = `id, recipient_id, kind, body, status, attempts, next_attempt_at, dedupe_key, locked_at, last_error, created_at, updated_at`

const jobColumns = `id, kind, run_at, payload_json, status, attempt, max_attempts, last_error, locked_at, dedupe_key, created_at, updated_at`

// searchText flattens the searchable attributes of p into one lowercase string.
func searchText(p *models.Profile) string {
	e := p.Enhanced
	parts := []string{
		p.Basic.Name, e.FullName, e.ProfessionalRole, e.Country, e.Address, e.Domain,
	}
	parts = append(parts, e.YatraImpact...)
	parts = append(parts, e.CommunityAsks...)
	parts = append(parts, e.CommunityGives...)
	var kept []string
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.ToLower(strings.Join(kept, " | "))
}

// matchesAny reports whether text contains any of terms (all lowercase).
func matchesAny(text string, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// normalizeTerms lowercases, trims and dedupes search terms.
func normalizeTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	var out []string
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// likePattern escapes LIKE wildcards in term; queries use ESCAPE '\'.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

func decodeProfile(data []byte) (*models.Profile, error) {
	var p models.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: profile: %v", ErrCorruptRecord, err)
	}
	return &p, nil
}

func decodeSession(data []byte) (*models.Session, error) {
	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: session: %v", ErrCorruptRecord, err)
	}
	return &s, nil
}

func decodeMemory(data []byte) (*models.Memory, error) {
	var m models.Memory
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: memory: %v", ErrCorruptRecord, err)
	}
	return &m, nil
}

// encodeProfile returns the JSON document and search text stored for p.
func encodeProfile(p *models.Profile) ([]byte, string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, "", fmt.Errorf("encode profile: %w", err)
	}
	return data, searchText(p), nil
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %T: %w", v, err)
	}
	return string(data), nil
}
