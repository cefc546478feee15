// Package memory maintains per-member conversational memory: a bounded turn
// log, the last-search context used for follow-ups, keyword interest counters
// and behavior metrics.
package memory

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
)

// Default bounds.
const (
	DefaultMaxTurns   = 200
	DefaultMaxHistory = 20
)

// Interest vocabularies. Keys are matched as lowercase substrings of search queries.
var (
	DomainKeywords = []string{
		"technology", "tech", "healthcare", "health", "education", "edtech", "agriculture",
		"agritech", "finance", "fintech", "banking", "manufacturing", "social impact", "ngo",
		"government", "policy", "media", "entertainment", "retail", "e-commerce", "ecommerce",
		"energy", "environment", "climate", "startup",
	}
	SkillKeywords = []string{
		"react", "node", "python", "java", "golang", "javascript", "flutter", "android", "ios",
		"data science", "machine learning", "ai", "ml", "design", "ui", "ux", "marketing",
		"sales", "product", "fundraising", "legal", "accounting", "hr", "operations", "content",
		"devops", "cloud", "blockchain",
	}
	LocationKeywords = []string{
		"mumbai", "delhi", "bangalore", "bengaluru", "pune", "hyderabad", "chennai", "kolkata",
		"ahmedabad", "jaipur", "lucknow", "indore", "bhopal", "patna", "chandigarh", "kochi",
		"goa", "nagpur", "surat", "gurgaon", "noida", "madurai", "varanasi", "bihar",
		"maharashtra", "karnataka", "gujarat", "rajasthan", "kerala", "punjab",
	}
)

// TurnRecord is the outcome of one orchestrated turn.
type TurnRecord struct {
	Message    string
	Reply      string
	Intent     models.IntentType
	IsFollowUp bool

	// Query is the executed search query for search and follow-up turns.
	Query       string
	ResultIDs   []string
	ResultCount int
}

// Manager applies turn outcomes to a memory record. It holds no per-member state.
type Manager struct {
	now        func() time.Time
	maxTurns   int
	maxHistory int
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLimits overrides the turn log and search history bounds.
func WithLimits(maxTurns, maxHistory int) Option {
	return func(m *Manager) {
		if maxTurns > 0 {
			m.maxTurns = maxTurns
		}
		if maxHistory > 0 {
			m.maxHistory = maxHistory
		}
	}
}

// NewManager creates a Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{now: time.Now, maxTurns: DefaultMaxTurns, maxHistory: DefaultMaxHistory}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ensure returns mem or a fresh record when mem is nil.
func (m *Manager) Ensure(userID string, mem *models.Memory) *models.Memory {
	if mem != nil {
		if mem.Interests.Domains == nil {
			mem.Interests.Domains = make(map[string]int)
		}
		if mem.Interests.Skills == nil {
			mem.Interests.Skills = make(map[string]int)
		}
		if mem.Interests.Locations == nil {
			mem.Interests.Locations = make(map[string]int)
		}
		return mem
	}
	return models.NewMemory(userID, m.now())
}

// RecordTurn appends the turn and updates context, history, interests and metrics.
func (m *Manager) RecordTurn(mem *models.Memory, rec TurnRecord) {
	now := m.now()
	mem.Turns = append(mem.Turns, models.Turn{
		Message:    rec.Message,
		Reply:      rec.Reply,
		Intent:     rec.Intent,
		IsFollowUp: rec.IsFollowUp,
		Timestamp:  now,
	})
	if over := len(mem.Turns) - m.maxTurns; over > 0 {
		mem.Turns = append([]models.Turn(nil), mem.Turns[over:]...)
	}
	mem.Metrics.TotalInteractions++

	switch {
	case rec.IsFollowUp:
		m.recordFollowUp(mem, rec, now)
	case rec.Intent == models.IntentSearch && rec.Query != "":
		m.recordSearch(mem, rec, now)
	}
	mem.UpdatedAt = now

	slog.Debug("Memory.RecordTurn: recorded", "user", mem.UserID, "intent", rec.Intent,
		"followUp", rec.IsFollowUp, "turns", len(mem.Turns))
}

func (m *Manager) recordSearch(mem *models.Memory, rec TurnRecord, now time.Time) {
	mem.CurrentContext = models.SearchContext{
		Topic:               topicOf(rec.Query),
		LastSearchQuery:     rec.Query,
		LastSearchAt:        now,
		LastSearchResultIDs: append([]string(nil), rec.ResultIDs...),
	}
	m.pushHistory(mem, rec, now)
	countInterests(mem, rec.Query)
	mem.Metrics.TotalSearches++
}

// recordFollowUp keeps the original query as the base for further refinement
// and accumulates shown results so later batches exclude everything already seen.
func (m *Manager) recordFollowUp(mem *models.Memory, rec TurnRecord, now time.Time) {
	ctx := &mem.CurrentContext
	ctx.FollowUpCount++
	ctx.LastSearchAt = now
	ctx.LastSearchResultIDs = mergeIDs(ctx.LastSearchResultIDs, rec.ResultIDs)
	if rec.Query != "" {
		m.pushHistory(mem, rec, now)
		countInterests(mem, rec.Query)
	}
	mem.Metrics.FollowUpSearches++
}

func (m *Manager) pushHistory(mem *models.Memory, rec TurnRecord, now time.Time) {
	mem.SearchHistory = append(mem.SearchHistory, models.SearchHistoryEntry{
		Query:       rec.Query,
		At:          now,
		ResultCount: rec.ResultCount,
	})
	if over := len(mem.SearchHistory) - m.maxHistory; over > 0 {
		mem.SearchHistory = append([]models.SearchHistoryEntry(nil), mem.SearchHistory[over:]...)
	}
}

func countInterests(mem *models.Memory, query string) {
	q := " " + strings.ToLower(query) + " "
	bump(mem.Interests.Domains, q, DomainKeywords)
	bump(mem.Interests.Skills, q, SkillKeywords)
	bump(mem.Interests.Locations, q, LocationKeywords)
}

func bump(counts map[string]int, q string, vocab []string) {
	for _, kw := range vocab {
		// Short keywords need word boundaries, "ai" would otherwise match "chennai".
		if len(kw) <= 3 {
			if strings.Contains(q, " "+kw+" ") {
				counts[kw]++
			}
			continue
		}
		if strings.Contains(q, kw) {
			counts[kw]++
		}
	}
}

func mergeIDs(prev, next []string) []string {
	seen := make(map[string]bool, len(prev)+len(next))
	out := make([]string, 0, len(prev)+len(next))
	for _, ids := range [][]string{prev, next} {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

var topicStopwords = map[string]bool{
	"looking": true, "for": true, "anyone": true, "from": true, "in": true, "need": true,
	"help": true, "with": true, "someone": true, "who": true, "is": true, "a": true, "an": true,
	"the": true, "find": true, "me": true, "show": true, "any": true, "of": true, "to": true,
}

// topicOf keeps the first few content words of a query.
func topicOf(query string) string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,!?")
		if w == "" || topicStopwords[w] {
			continue
		}
		words = append(words, w)
		if len(words) == 3 {
			break
		}
	}
	return strings.Join(words, " ")
}

// TopInterests returns up to n keywords across all vocabularies, highest count first.
func TopInterests(mem *models.Memory, n int) []string {
	if mem == nil || n <= 0 {
		return nil
	}
	type kv struct {
		key   string
		count int
	}
	var all []kv
	for _, counts := range []map[string]int{mem.Interests.Domains, mem.Interests.Skills, mem.Interests.Locations} {
		for k, c := range counts {
			all = append(all, kv{k, c})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].key < all[j].key
	})
	if len(all) > n {
		all = all[:n]
	}
	out := make([]string, len(all))
	for i, e := range all {
		out[i] = e.key
	}
	return out
}
