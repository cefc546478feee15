// Package followup decides whether a message continues the previous search and,
// if so, derives the refined query and exclusion set. It never runs a search.
package followup

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/memory"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
)

// DefaultWindow is how long a search stays eligible for follow-ups.
const DefaultWindow = 5 * time.Minute

// MaxShortTokens is the longest message treated as a follow-up without a lexicon hit.
const MaxShortTokens = 3

var lexicon = []string{
	"more", "another", "else", "similar", "also", "what about", "how about", "other",
	"others", "again", "next", "additional", "further", "few more", "any more", "anymore",
	"senior", "junior", "experienced", "fresher", "startup", "nearby", "same city",
	"different",
}

var (
	seniorTerms   = []string{"senior", "experienced", "seasoned", "veteran"}
	juniorTerms   = []string{"junior", "fresher", "freshers", "entry level", "entry-level", "beginner"}
	startupTerms  = []string{"startup", "start-up", "founder"}
	sameCityTerms = []string{"same city", "nearby", "near me", "my city", "around me", "close to me", "my area"}
	differentTerm = []string{"different", "someone else", "other people", "new ones"}

	locationRegex     = regexp.MustCompile(`(?i)\b(?:in|from|near|around|at)\s+([a-z]+(?:\s+[a-z]+)?)\s*[?.!]*$`)
	trailingLocRegex  = regexp.MustCompile(`(?i)\s+(?:in|from|near|around|at)\s+[a-z]+(?:\s+[a-z]+)?$`)
	notLocationWords  = map[string]bool{"it": true, "this": true, "that": true, "them": true, "there": true, "general": true, "all": true, "total": true, "more": true, "the": true}
	whitespaceCleanup = regexp.MustCompile(`\s+`)
)

// Resolution is the refined search derived from a follow-up message.
type Resolution struct {
	EnhancedQuery string
	Refinement    models.RefinementType
	ExcludeIDs    []string
	// Location is set for same_city and location refinements.
	Location string
}

// Resolver implements follow-up detection and refinement.
type Resolver struct {
	window time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithWindow overrides the follow-up window.
func WithWindow(d time.Duration) Option {
	return func(r *Resolver) { r.window = d }
}

// NewResolver creates a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{window: DefaultWindow}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Window returns the follow-up window.
func (r *Resolver) Window() time.Duration { return r.window }

// IsFollowUp reports whether msg continues the search remembered in mem at time now.
func (r *Resolver) IsFollowUp(msg string, mem *models.Memory, now time.Time) bool {
	if !mem.HasRecentSearch(now, r.window) {
		return false
	}
	text := normalize(msg)
	if text == "" {
		return false
	}
	if containsAny(text, lexicon) {
		return true
	}
	return len(strings.Fields(text)) <= MaxShortTokens
}

// HasCue reports whether msg contains a follow-up lexicon term.
func HasCue(msg string) bool {
	return containsAny(normalize(msg), lexicon)
}

// Resolve derives the refined query. profile may be nil.
func (r *Resolver) Resolve(msg string, mem *models.Memory, profile *models.Profile) Resolution {
	text := normalize(msg)
	base := strings.TrimSpace(mem.CurrentContext.LastSearchQuery)
	previous := append([]string(nil), mem.CurrentContext.LastSearchResultIDs...)

	switch {
	case containsAny(text, seniorTerms):
		return Resolution{EnhancedQuery: "senior " + stripSeniority(base), Refinement: models.RefinementSenior}
	case containsAny(text, juniorTerms):
		return Resolution{EnhancedQuery: "junior " + stripSeniority(base), Refinement: models.RefinementJunior}
	case containsAny(text, startupTerms):
		return Resolution{EnhancedQuery: base + " startup experience", Refinement: models.RefinementStartup}
	case containsAny(text, sameCityTerms):
		if city := profile.City(); city != "" {
			return Resolution{
				EnhancedQuery: trailingLocRegex.ReplaceAllString(base, "") + " in " + city,
				Refinement:    models.RefinementSameCity,
				Location:      city,
			}
		}
	}
	if city, ok := mentionedLocation(text); ok {
		return Resolution{
			EnhancedQuery: trailingLocRegex.ReplaceAllString(base, "") + " in " + city,
			Refinement:    models.RefinementLocation,
			Location:      city,
		}
	}
	if containsAny(text, differentTerm) {
		return Resolution{EnhancedQuery: base, Refinement: models.RefinementExcludePrevious, ExcludeIDs: previous}
	}
	return Resolution{EnhancedQuery: base, Refinement: models.RefinementNextBatch, ExcludeIDs: previous}
}

// ReplyPrefix returns the header placed before refined results.
func ReplyPrefix(res Resolution) string {
	switch res.Refinement {
	case models.RefinementSenior:
		return "Here are more senior professionals:"
	case models.RefinementJunior:
		return "Here are some early-career members:"
	case models.RefinementStartup:
		return "Here are members with startup experience:"
	case models.RefinementSameCity:
		return fmt.Sprintf("Here are members near you in %s:", res.Location)
	case models.RefinementLocation:
		return fmt.Sprintf("Here are members in %s:", res.Location)
	case models.RefinementExcludePrevious:
		return "Here are some different profiles:"
	default:
		return "Here are more results:"
	}
}

func mentionedLocation(text string) (string, bool) {
	m := locationRegex.FindStringSubmatch(text)
	if m == nil {
		for _, loc := range memory.LocationKeywords {
			if containsAny(text, []string{loc}) {
				return titleWords(strings.Fields(loc)), true
			}
		}
		return "", false
	}
	words := strings.Fields(m[1])
	for len(words) > 0 && notLocationWords[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	if len(words) == 0 || notLocationWords[words[0]] {
		return "", false
	}
	return titleWords(words), true
}

func titleWords(words []string) string {
	out := make([]string, len(words))
	for i, w := range words {
		rs := []rune(w)
		rs[0] = unicode.ToUpper(rs[0])
		out[i] = string(rs)
	}
	return strings.Join(out, " ")
}

func stripSeniority(q string) string {
	for _, prefix := range []string{"senior ", "junior "} {
		if strings.HasPrefix(strings.ToLower(q), prefix) {
			return q[len(prefix):]
		}
	}
	return q
}

func normalize(msg string) string {
	s := strings.ToLower(strings.TrimSpace(msg))
	return whitespaceCleanup.ReplaceAllString(s, " ")
}

// containsAny matches single words on word boundaries and phrases as substrings.
func containsAny(text string, terms []string) bool {
	padded := " " + strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			return r
		}
		return ' '
	}, text) + " "
	for _, term := range terms {
		if strings.Contains(padded, " "+term+" ") {
			return true
		}
	}
	return false
}
