// Package search executes member searches over completed community profiles
// and renders the results as chat text.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
)

const (
	// DefaultPageSize is the number of members shown per reply.
	DefaultPageSize = 3
	// DefaultCandidateLimit bounds the candidates fetched per query.
	DefaultCandidateLimit = 200
)

// Result is one rendered page of search results.
type Result struct {
	Text string
	// IDs are the member IDs shown on this page, in display order.
	IDs []string
	// Total is the number of matching members before paging.
	Total int
}

// Engine runs a query, skipping excludeIDs.
type Engine interface {
	Search(ctx context.Context, query string, excludeIDs []string) (Result, error)
}

// ProfileSource supplies candidate profiles.
type ProfileSource interface {
	SearchProfiles(ctx context.Context, terms []string, limit int) ([]models.Profile, error)
}

// ProfileSearch ranks completed profiles by the number of query terms they match.
type ProfileSearch struct {
	source         ProfileSource
	pageSize       int
	candidateLimit int
}

var _ Engine = (*ProfileSearch)(nil)

// Option configures a ProfileSearch.
type Option func(*ProfileSearch)

// WithPageSize overrides DefaultPageSize.
func WithPageSize(n int) Option {
	return func(s *ProfileSearch) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// NewProfileSearch creates a ProfileSearch over source.
func NewProfileSearch(source ProfileSource, opts ...Option) *ProfileSearch {
	s := &ProfileSearch{source: source, pageSize: DefaultPageSize, candidateLimit: DefaultCandidateLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var tokenRegex = regexp.MustCompile(`[\p{L}\p{N}+#.]+`)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "any": true, "are": true, "at": true, "can": true,
	"connect": true, "experience": true, "find": true, "for": true, "from": true, "help": true,
	"i": true, "in": true, "is": true, "looking": true, "me": true, "member": true, "members": true,
	"my": true, "near": true, "need": true, "of": true, "or": true, "people": true, "person": true,
	"search": true, "show": true, "someone": true, "the": true, "to": true, "want": true, "who": true,
	"with": true, "more": true, "other": true, "others": true, "around": true, "some": true, "get": true,
}

// Terms extracts the searchable terms of query.
func Terms(query string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range tokenRegex.FindAllString(strings.ToLower(query), -1) {
		tok = strings.Trim(tok, ".")
		if len(tok) < 2 || stopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// Search implements Engine.
func (s *ProfileSearch) Search(ctx context.Context, query string, excludeIDs []string) (Result, error) {
	terms := Terms(query)
	if len(terms) == 0 {
		return Result{Text: "Tell me who you're looking for, e.g. \"fintech founders in Bengaluru\"."}, nil
	}
	candidates, err := s.source.SearchProfiles(ctx, terms, s.candidateLimit)
	if err != nil {
		return Result{}, fmt.Errorf("search %q: %w", query, err)
	}

	skip := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		skip[id] = true
	}
	type scored struct {
		p     models.Profile
		score int
	}
	var ranked []scored
	for _, p := range candidates {
		if skip[p.UserID] {
			continue
		}
		if n := score(&p, terms); n > 0 {
			ranked = append(ranked, scored{p: p, score: n})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	res := Result{Total: len(ranked)}
	if len(ranked) == 0 {
		res.Text = fmt.Sprintf("I couldn't find more members matching %q. Try a different city, role or domain.", query)
		slog.Debug("ProfileSearch.Search: no results", "query", query, "excluded", len(excludeIDs))
		return res, nil
	}
	page := ranked
	if len(page) > s.pageSize {
		page = page[:s.pageSize]
	}
	var b strings.Builder
	for i, r := range page {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(formatProfile(i+1, &r.p))
		res.IDs = append(res.IDs, r.p.UserID)
	}
	if more := len(ranked) - len(page); more > 0 {
		fmt.Fprintf(&b, "\n\n%d more found. Reply *more* to see them.", more)
	}
	res.Text = b.String()
	slog.Debug("ProfileSearch.Search: done", "query", query, "terms", len(terms), "total", res.Total, "shown", len(res.IDs))
	return res, nil
}

func score(p *models.Profile, terms []string) int {
	e := p.Enhanced
	fields := []string{e.FullName, e.ProfessionalRole, e.Address, e.Country, e.Domain,
		strings.Join(e.CommunityGives, " "), strings.Join(e.CommunityAsks, " "), strings.Join(e.YatraImpact, " ")}
	text := strings.ToLower(strings.Join(fields, " | "))
	n := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			n++
		}
	}
	return n
}

func formatProfile(n int, p *models.Profile) string {
	e := p.Enhanced
	var b strings.Builder
	fmt.Fprintf(&b, "%d. *%s*", n, p.DisplayName())
	var meta []string
	for _, s := range []string{e.ProfessionalRole, e.Domain, e.Address} {
		if s != "" {
			meta = append(meta, s)
		}
	}
	if len(meta) > 0 {
		b.WriteString("\n   " + strings.Join(meta, " · "))
	}
	if len(e.CommunityGives) > 0 {
		b.WriteString("\n   Can help with: " + strings.Join(e.CommunityGives, ", "))
	}
	if e.LinkedInProfile != "" {
		b.WriteString("\n   " + e.LinkedInProfile)
	}
	return b.String()
}
