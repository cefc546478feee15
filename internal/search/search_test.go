package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
	"github.com/google/go-cmp/cmp"
)

type fakeSource struct {
	profiles []models.Profile
	terms    []string
	err      error
}

func (f *fakeSource) SearchProfiles(ctx context.Context, terms []string, limit int) ([]models.Profile, error) {
	f.terms = terms
	if f.err != nil {
		return nil, f.err
	}
	return f.profiles, nil
}

func member(id, name, role, domain, city string) models.Profile {
	return models.Profile{
		UserID: id,
		Enhanced: models.EnhancedProfile{
			FullName:         name,
			ProfessionalRole: role,
			Domain:           domain,
			Address:          city,
			CommunityGives:   []string{"Mentorship"},
			LinkedInProfile:  "https://linkedin.com/in/" + id,
			Completed:        true,
		},
	}
}

func TestTerms(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"looking for fintech founders in Pune", []string{"fintech", "founders", "pune"}},
		{"senior React developers", []string{"senior", "react", "developers"}},
		{"AI, ML and c++ people", []string{"ai", "ml", "c++"}},
		{"find someone", nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, Terms(tt.query)); diff != "" {
			t.Errorf("Terms(%q) mismatch (-want +got):\n%s", tt.query, diff)
		}
	}
}

func TestSearchRanksAndPages(t *testing.T) {
	src := &fakeSource{profiles: []models.Profile{
		member("a", "Asha", "Entrepreneur", "Agriculture", "Nashik, Maharashtra"),
		member("b", "Bala", "Entrepreneur", "Healthcare", "Pune, Maharashtra"),
		member("c", "Chitra", "Student", "Healthcare", "Pune, Maharashtra"),
		member("d", "Dev", "Entrepreneur", "Healthcare", "Pune, Maharashtra"),
		member("e", "Esha", "Entrepreneur", "Healthcare", "Pune, Maharashtra"),
	}}
	s := NewProfileSearch(src)

	res, err := s.Search(context.Background(), "healthcare entrepreneurs in Pune", []string{"e"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if diff := cmp.Diff([]string{"healthcare", "entrepreneurs", "pune"}, src.terms); diff != "" {
		t.Errorf("terms mismatch (-want +got):\n%s", diff)
	}
	// "entrepreneurs" does not occur; healthcare+pune ties keep source order.
	if diff := cmp.Diff([]string{"b", "c", "d"}, res.IDs); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}
	if res.Total != 3 {
		t.Errorf("Total = %d, want 3", res.Total)
	}
	if !strings.Contains(res.Text, "1. *Bala*") || !strings.Contains(res.Text, "linkedin.com/in/b") {
		t.Errorf("unexpected text:\n%s", res.Text)
	}
}

func TestSearchMoreHint(t *testing.T) {
	var ps []models.Profile
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		ps = append(ps, member(id, strings.ToUpper(id), "Student", "Education", "Gaya, Bihar"))
	}
	s := NewProfileSearch(&fakeSource{profiles: ps}, WithPageSize(2))
	res, err := s.Search(context.Background(), "students in gaya", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.IDs) != 2 || res.Total != 5 {
		t.Errorf("got %d shown of %d", len(res.IDs), res.Total)
	}
	if !strings.Contains(res.Text, "3 more found") {
		t.Errorf("missing more hint:\n%s", res.Text)
	}
}

func TestSearchNoResultsAndErrors(t *testing.T) {
	s := NewProfileSearch(&fakeSource{})
	res, err := s.Search(context.Background(), "astronauts", nil)
	if err != nil || len(res.IDs) != 0 || !strings.Contains(res.Text, "couldn't find") {
		t.Errorf("no results = %+v, %v", res, err)
	}

	res, err = s.Search(context.Background(), "find someone", nil)
	if err != nil || !strings.Contains(res.Text, "looking for") {
		t.Errorf("empty query = %+v, %v", res, err)
	}

	failing := NewProfileSearch(&fakeSource{err: errors.New("db down")})
	if _, err := failing.Search(context.Background(), "pune", nil); err == nil {
		t.Error("expected source error")
	}
}
