// Package ratelimit implements admission control for inbound turns: a
// per-member token bucket with a cooldown after bursts, and a daily search
// quota.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Kind is the type of request being admitted.
type Kind string

const (
	// KindMessage is any inbound message; checked before a turn starts.
	KindMessage Kind = "message"
	// KindSearch is a search execution; checked before the search engine runs.
	KindSearch Kind = "search"
)

// Reason explains a denial.
type Reason string

const (
	ReasonRateLimited        Reason = "rate_limited"
	ReasonCooldown           Reason = "cooldown"
	ReasonDailyLimitExceeded Reason = "daily_limit_exceeded"
)

// Defaults.
const (
	DefaultBurst            = 8
	DefaultRefillEvery      = 3 * time.Second
	DefaultCooldown         = time.Minute
	DefaultDailySearchLimit = 30
	DefaultIdleEviction     = 24 * time.Hour
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	Reason     Reason
	RetryAfter time.Duration
}

// Message returns the member-facing text for a denial.
func (d Decision) Message() string {
	switch d.Reason {
	case ReasonRateLimited, ReasonCooldown:
		return "You're sending messages too quickly. Please wait a minute and try again."
	case ReasonDailyLimitExceeded:
		return "You've reached today's search limit. Searches reset at midnight, see you tomorrow!"
	case "":
		return ""
	default:
		return "Please try again in a little while."
	}
}

// Admitter decides whether a request may proceed. A denial is not an error.
type Admitter interface {
	CheckAdmission(ctx context.Context, userID string, kind Kind) Decision
}

type member struct {
	bucket        *rate.Limiter
	cooldownUntil time.Time
	searchDay     string
	searches      int
	lastSeen      time.Time
}

// Limiter is the in-process Admitter. The key is the sender identifier only.
type Limiter struct {
	mu          sync.Mutex
	members     map[string]*member
	limit       rate.Limit
	burst       int
	cooldown    time.Duration
	dailyLimit  int
	location    *time.Location
	now         func() time.Time
	idleEvictAt time.Duration
}

var _ Admitter = (*Limiter)(nil)

// Option configures a Limiter.
type Option func(*Limiter)

// WithBurst sets the bucket size and refill interval.
func WithBurst(burst int, refillEvery time.Duration) Option {
	return func(l *Limiter) {
		if burst > 0 {
			l.burst = burst
		}
		if refillEvery > 0 {
			l.limit = rate.Every(refillEvery)
		}
	}
}

// WithCooldown sets how long a member is muted after exhausting the bucket.
func WithCooldown(d time.Duration) Option {
	return func(l *Limiter) { l.cooldown = d }
}

// WithDailySearchLimit sets the number of searches allowed per calendar day.
func WithDailySearchLimit(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.dailyLimit = n
		}
	}
}

// WithLocation sets the time zone that defines the calendar day.
func WithLocation(loc *time.Location) Option {
	return func(l *Limiter) {
		if loc != nil {
			l.location = loc
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter creates a Limiter.
func NewLimiter(opts ...Option) *Limiter {
	l := &Limiter{
		members:     make(map[string]*member),
		limit:       rate.Every(DefaultRefillEvery),
		burst:       DefaultBurst,
		cooldown:    DefaultCooldown,
		dailyLimit:  DefaultDailySearchLimit,
		location:    time.UTC,
		now:         time.Now,
		idleEvictAt: DefaultIdleEviction,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckAdmission implements Admitter.
func (l *Limiter) CheckAdmission(ctx context.Context, userID string, kind Kind) Decision {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	m := l.memberLocked(userID)
	m.lastSeen = now

	var d Decision
	switch kind {
	case KindSearch:
		d = l.admitSearch(m, now)
	default:
		d = l.admitMessage(m, now)
	}
	if !d.Allowed {
		slog.Info("Limiter.CheckAdmission: denied", "user", userID, "kind", kind, "reason", d.Reason, "retryAfter", d.RetryAfter)
	}
	return d
}

func (l *Limiter) admitMessage(m *member, now time.Time) Decision {
	if now.Before(m.cooldownUntil) {
		return Decision{Reason: ReasonCooldown, RetryAfter: m.cooldownUntil.Sub(now)}
	}
	if !m.bucket.AllowN(now, 1) {
		m.cooldownUntil = now.Add(l.cooldown)
		return Decision{Reason: ReasonRateLimited, RetryAfter: l.cooldown}
	}
	return Decision{Allowed: true}
}

func (l *Limiter) admitSearch(m *member, now time.Time) Decision {
	local := now.In(l.location)
	day := local.Format("2006-01-02")
	if m.searchDay != day {
		m.searchDay = day
		m.searches = 0
	}
	if m.searches >= l.dailyLimit {
		y, mo, d := local.Date()
		midnight := time.Date(y, mo, d+1, 0, 0, 0, 0, l.location)
		return Decision{Reason: ReasonDailyLimitExceeded, RetryAfter: midnight.Sub(local)}
	}
	m.searches++
	return Decision{Allowed: true}
}

// SearchesToday returns how many searches userID has used today.
func (l *Limiter) SearchesToday(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.members[userID]
	if !ok || m.searchDay != l.now().In(l.location).Format("2006-01-02") {
		return 0
	}
	return m.searches
}

func (l *Limiter) memberLocked(userID string) *member {
	m, ok := l.members[userID]
	if !ok {
		m = &member{bucket: rate.NewLimiter(l.limit, l.burst)}
		l.members[userID] = m
	}
	return m
}

// Evict drops members idle since before cutoff and returns how many were removed.
func (l *Limiter) Evict(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for id, m := range l.members {
		if m.lastSeen.Before(cutoff) && !m.cooldownUntil.After(cutoff) {
			delete(l.members, id)
			n++
		}
	}
	return n
}

// Run evicts idle members every interval until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Evict(l.now().Add(-l.idleEvictAt)); n > 0 {
				slog.Debug("Limiter.Run: evicted idle members", "count", n)
			}
		}
	}
}

// String describes the limiter configuration for startup logs.
func (l *Limiter) String() string {
	return fmt.Sprintf("burst=%d refill=%v cooldown=%v dailySearches=%d", l.burst, l.limit, l.cooldown, l.dailyLimit)
}
