package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/util"
)

var _ Store = (*InMemoryStore)(nil)

// InMemoryStore is a process-local Store. Records are deep-copied on the way
// in and out so callers never share state with the store.
type InMemoryStore struct {
	mu       sync.RWMutex
	now      func() time.Time
	profiles map[string]*models.Profile
	sessions map[string][]byte
	expiry   map[string]time.Time
	memories map[string][]byte
	dedup    map[string]*DedupRecord
	outbox   map[string]*OutboxMessage
	jobs     map[string]*Job
}

// InMemoryOption configures an InMemoryStore.
type InMemoryOption func(*InMemoryStore)

// WithInMemoryClock overrides the time source used for TTLs and timestamps.
func WithInMemoryClock(now func() time.Time) InMemoryOption {
	return func(s *InMemoryStore) { s.now = now }
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore(opts ...InMemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		now:      time.Now,
		profiles: make(map[string]*models.Profile),
		sessions: make(map[string][]byte),
		expiry:   make(map[string]time.Time),
		memories: make(map[string][]byte),
		dedup:    make(map[string]*DedupRecord),
		outbox:   make(map[string]*OutboxMessage),
		jobs:     make(map[string]*Job),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

// --- profiles ---

func (s *InMemoryStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *InMemoryStore) CreateProfile(ctx context.Context, p *models.Profile) error {
	if p == nil || p.UserID == "" {
		return fmt.Errorf("create profile: user id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[p.UserID]; exists {
		return nil
	}
	c := p.Clone()
	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.profiles[p.UserID] = c
	slog.Debug("InMemoryStore.CreateProfile", "user", p.UserID)
	return nil
}

func (s *InMemoryStore) SetField(ctx context.Context, userID string, field models.FieldName, value models.FieldValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	c := p.Clone()
	if err := c.ApplyField(field, value); err != nil {
		return err
	}
	c.UpdatedAt = s.now()
	s.profiles[userID] = c
	return nil
}

func (s *InMemoryStore) MarkCompleted(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	c := p.Clone()
	if err := c.MarkCompleted(at); err != nil {
		return err
	}
	c.UpdatedAt = s.now()
	s.profiles[userID] = c
	return nil
}

func (s *InMemoryStore) MarkVerified(ctx context.Context, userID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	c := p.Clone()
	if err := c.MarkVerified(email); err != nil {
		return err
	}
	c.UpdatedAt = s.now()
	s.profiles[userID] = c
	return nil
}

func (s *InMemoryStore) SearchProfiles(ctx context.Context, terms []string, limit int) ([]models.Profile, error) {
	terms = normalizeTerms(terms)
	s.mu.RLock()
	var out []models.Profile
	for _, p := range s.profiles {
		if !p.Enhanced.Completed || !matchesAny(searchText(p), terms) {
			continue
		}
		out = append(out, *p.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- sessions ---

func (s *InMemoryStore) GetSession(ctx context.Context, userID string) (*models.Session, error) {
	s.mu.RLock()
	data, ok := s.sessions[userID]
	exp := s.expiry[userID]
	s.mu.RUnlock()
	if !ok || !s.now().Before(exp) {
		return nil, ErrNotFound
	}
	return decodeSession(data)
}

func (s *InMemoryStore) PutSession(ctx context.Context, sess *models.Session, ttl time.Duration) error {
	now := s.now()
	sess.UpdatedAt = now
	sess.ExpiresAt = now.Add(ttl)
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = data
	s.expiry[sess.UserID] = sess.ExpiresAt
	return nil
}

func (s *InMemoryStore) DeleteSession(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	delete(s.expiry, userID)
	return nil
}

func (s *InMemoryStore) PurgeExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, exp := range s.expiry {
		if exp.Before(now) {
			delete(s.sessions, id)
			delete(s.expiry, id)
			n++
		}
	}
	return n, nil
}

// putRawSession stores undecodable bytes; tests use it to simulate corruption.
func (s *InMemoryStore) putRawSession(userID string, data []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = data
	s.expiry[userID] = s.now().Add(ttl)
}

// --- memory ---

func (s *InMemoryStore) GetMemory(ctx context.Context, userID string) (*models.Memory, error) {
	s.mu.RLock()
	data, ok := s.memories[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decodeMemory(data)
}

func (s *InMemoryStore) PutMemory(ctx context.Context, mem *models.Memory) error {
	mem.UpdatedAt = s.now()
	data, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("encode memory: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories[mem.UserID] = data
	return nil
}

// --- dedup ---

func (s *InMemoryStore) IsDuplicate(ctx context.Context, messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.dedup[messageID]
	return ok, nil
}

func (s *InMemoryStore) RecordInbound(ctx context.Context, messageID, senderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dedup[messageID]; ok {
		return false, nil
	}
	s.dedup[messageID] = &DedupRecord{MessageID: messageID, SenderID: senderID, ReceivedAt: s.now()}
	return true, nil
}

func (s *InMemoryStore) MarkProcessed(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.dedup[messageID]; ok {
		now := s.now()
		rec.ProcessedAt = &now
	}
	return nil
}

func (s *InMemoryStore) ReleaseInbound(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.dedup[messageID]; ok && rec.ProcessedAt == nil {
		delete(s.dedup, messageID)
	}
	return nil
}

func (s *InMemoryStore) PruneDedup(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, rec := range s.dedup {
		if rec.ReceivedAt.Before(cutoff) {
			delete(s.dedup, id)
			n++
		}
	}
	return n, nil
}

// --- outbox ---

func (s *InMemoryStore) EnqueueOutboxMessage(ctx context.Context, recipientID, kind, body, dedupeKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dedupeKey != "" {
		for _, m := range s.outbox {
			if m.DedupeKey == dedupeKey && (m.Status == OutboxStatusQueued || m.Status == OutboxStatusSending) {
				return m.ID, nil
			}
		}
	}
	now := s.now()
	m := &OutboxMessage{
		ID:          util.GenerateOutboxID(),
		RecipientID: recipientID,
		Kind:        kind,
		Body:        body,
		Status:      OutboxStatusQueued,
		DedupeKey:   dedupeKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.outbox[m.ID] = m
	return m.ID, nil
}

func (s *InMemoryStore) ClaimDueOutboxMessages(ctx context.Context, now time.Time, limit int) ([]OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*OutboxMessage
	for _, m := range s.outbox {
		if m.Status == OutboxStatusQueued && (m.NextAttemptAt == nil || !m.NextAttemptAt.After(now)) {
			due = append(due, m)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	out := make([]OutboxMessage, 0, len(due))
	for _, m := range due {
		locked := now
		m.Status = OutboxStatusSending
		m.LockedAt = &locked
		m.UpdatedAt = now
		out = append(out, *m)
	}
	return out, nil
}

func (s *InMemoryStore) MarkOutboxMessageSent(ctx context.Context, id string) error {
	return s.updateOutbox(id, func(m *OutboxMessage) {
		m.Status = OutboxStatusSent
		m.LockedAt = nil
	})
}

func (s *InMemoryStore) FailOutboxMessage(ctx context.Context, id, errMsg string, nextAttemptAt time.Time) error {
	return s.updateOutbox(id, func(m *OutboxMessage) {
		m.Status = OutboxStatusQueued
		m.Attempts++
		m.LastError = errMsg
		next := nextAttemptAt
		m.NextAttemptAt = &next
		m.LockedAt = nil
	})
}

func (s *InMemoryStore) AbandonOutboxMessage(ctx context.Context, id, errMsg string) error {
	return s.updateOutbox(id, func(m *OutboxMessage) {
		m.Status = OutboxStatusFailed
		m.Attempts++
		m.LastError = errMsg
		m.LockedAt = nil
	})
}

func (s *InMemoryStore) RequeueStaleSendingMessages(ctx context.Context, staleBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.outbox {
		if m.Status == OutboxStatusSending && m.LockedAt != nil && m.LockedAt.Before(staleBefore) {
			m.Status = OutboxStatusQueued
			m.LockedAt = nil
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) updateOutbox(id string, fn func(*OutboxMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.outbox[id]
	if !ok {
		return ErrNotFound
	}
	fn(m)
	m.UpdatedAt = s.now()
	return nil
}

// OutboxMessages returns copies of all outbox messages ordered by creation.
func (s *InMemoryStore) OutboxMessages() []OutboxMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]OutboxMessage, 0, len(s.outbox))
	for _, m := range s.outbox {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// --- jobs ---

func (s *InMemoryStore) EnqueueJob(ctx context.Context, kind string, runAt time.Time, payloadJSON, dedupeKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dedupeKey != "" {
		for _, j := range s.jobs {
			if j.DedupeKey == dedupeKey && (j.Status == JobStatusQueued || j.Status == JobStatusRunning) {
				return j.ID, nil
			}
		}
	}
	now := s.now()
	j := &Job{
		ID:          util.GenerateJobID(),
		Kind:        kind,
		RunAt:       runAt,
		PayloadJSON: payloadJSON,
		Status:      JobStatusQueued,
		MaxAttempts: DefaultJobMaxAttempts,
		DedupeKey:   dedupeKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.jobs[j.ID] = j
	return j.ID, nil
}

func (s *InMemoryStore) ClaimDueJobs(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*Job
	for _, j := range s.jobs {
		if j.Status == JobStatusQueued && !j.RunAt.After(now) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(i, k int) bool { return due[i].RunAt.Before(due[k].RunAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	out := make([]Job, 0, len(due))
	for _, j := range due {
		locked := now
		j.Status = JobStatusRunning
		j.LockedAt = &locked
		j.UpdatedAt = now
		out = append(out, *j)
	}
	return out, nil
}

func (s *InMemoryStore) CompleteJob(ctx context.Context, id string) error {
	return s.updateJob(id, func(j *Job) {
		j.Status = JobStatusDone
		j.LockedAt = nil
	})
}

func (s *InMemoryStore) FailJob(ctx context.Context, id, errMsg string, nextRunAt time.Time) error {
	return s.updateJob(id, func(j *Job) {
		j.Attempt++
		j.LastError = errMsg
		j.LockedAt = nil
		if j.Attempt >= j.MaxAttempts {
			j.Status = JobStatusFailed
			return
		}
		j.Status = JobStatusQueued
		j.RunAt = nextRunAt
	})
}

func (s *InMemoryStore) RequeueStaleRunningJobs(ctx context.Context, staleBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if j.Status == JobStatusRunning && j.LockedAt != nil && j.LockedAt.Before(staleBefore) {
			j.Status = JobStatusQueued
			j.LockedAt = nil
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) GetJob(ctx context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *j
	return &c, nil
}

func (s *InMemoryStore) updateJob(id string, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	fn(j)
	j.UpdatedAt = s.now()
	return nil
}
