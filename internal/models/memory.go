package models

import "time"

// Turn is one logged exchange.
type Turn struct {
	Message    string     `json:"message"`
	Reply      string     `json:"reply"`
	Intent     IntentType `json:"intent"`
	IsFollowUp bool       `json:"isFollowUp,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// SearchContext remembers the most recent search so that follow-ups can refine it.
type SearchContext struct {
	Topic               string    `json:"topic,omitempty"`
	LastSearchQuery     string    `json:"lastSearchQuery,omitempty"`
	LastSearchAt        time.Time `json:"lastSearchAt,omitempty"`
	LastSearchResultIDs []string  `json:"lastSearchResultIds,omitempty"`
	FollowUpCount       int       `json:"followUpCount"`
}

// SearchHistoryEntry records one executed search.
type SearchHistoryEntry struct {
	Query       string    `json:"query"`
	At          time.Time `json:"at"`
	ResultCount int       `json:"resultCount"`
}

// InterestCounters count keyword hits per fixed vocabulary.
type InterestCounters struct {
	Domains   map[string]int `json:"domains,omitempty"`
	Skills    map[string]int `json:"skills,omitempty"`
	Locations map[string]int `json:"locations,omitempty"`
}

// BehaviorMetrics are the raw counters behind the engagement level.
type BehaviorMetrics struct {
	TotalSearches     int `json:"totalSearches"`
	FollowUpSearches  int `json:"followUpSearches"`
	TotalInteractions int `json:"totalInteractions"`
}

// Memory is the persisted conversational memory of one member.
type Memory struct {
	UserID         string               `json:"userId"`
	Turns          []Turn               `json:"turns,omitempty"`
	CurrentContext SearchContext        `json:"currentContext"`
	SearchHistory  []SearchHistoryEntry `json:"searchHistory,omitempty"`
	Interests      InterestCounters     `json:"interests"`
	Metrics        BehaviorMetrics      `json:"metrics"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

// NewMemory returns an empty memory record.
func NewMemory(userID string, now time.Time) *Memory {
	return &Memory{
		UserID: userID,
		Interests: InterestCounters{
			Domains:   make(map[string]int),
			Skills:    make(map[string]int),
			Locations: make(map[string]int),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasRecentSearch reports whether a search happened within window of now.
func (m *Memory) HasRecentSearch(now time.Time, window time.Duration) bool {
	if m == nil || m.CurrentContext.LastSearchQuery == "" || m.CurrentContext.LastSearchAt.IsZero() {
		return false
	}
	return now.Sub(m.CurrentContext.LastSearchAt) <= window
}
