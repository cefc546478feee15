package followup

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
)

var baseTime = time.Date(2025, 5, 10, 18, 0, 0, 0, time.UTC)

func memoryWithSearch(query string, ago time.Duration, ids ...string) *models.Memory {
	mem := models.NewMemory("919812345678", baseTime.Add(-time.Hour))
	mem.CurrentContext = models.SearchContext{
		LastSearchQuery:     query,
		LastSearchAt:        baseTime.Add(-ago),
		LastSearchResultIDs: ids,
	}
	return mem
}

func TestIsFollowUp(t *testing.T) {
	r := NewResolver()
	tests := []struct {
		name string
		msg  string
		mem  *models.Memory
		want bool
	}{
		{"any more two minutes later", "any more", memoryWithSearch("react developers in mumbai", 2*time.Minute), true},
		{"any more six minutes later", "any more", memoryWithSearch("react developers in mumbai", 6*time.Minute), false},
		{"no previous search", "more", models.NewMemory("u", baseTime), false},
		{"nil memory", "more", nil, false},
		{"lexicon in long message", "can you show me some other people who do this kind of work", memoryWithSearch("designers", time.Minute), true},
		{"short message", "in pune?", memoryWithSearch("designers", time.Minute), true},
		{"long unrelated message", "I want to find a chartered accountant for my company taxes", memoryWithSearch("designers", time.Minute), false},
		{"empty", "   ", memoryWithSearch("designers", time.Minute), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.IsFollowUp(tt.msg, tt.mem, baseTime); got != tt.want {
				t.Errorf("IsFollowUp(%q) = %v, want %v", tt.msg, got, tt.want)
			}
		})
	}
}

func TestResolveNextBatchCarriesShownIDs(t *testing.T) {
	r := NewResolver()
	mem := memoryWithSearch("react developers in mumbai", 2*time.Minute, "p1", "p2", "p3")

	got := r.Resolve("any more", mem, nil)
	want := Resolution{
		EnhancedQuery: "react developers in mumbai",
		Refinement:    models.RefinementNextBatch,
		ExcludeIDs:    []string{"p1", "p2", "p3"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
	}

	got.ExcludeIDs[0] = "changed"
	if mem.CurrentContext.LastSearchResultIDs[0] != "p1" {
		t.Error("Resolve() aliased the memory slice")
	}
}

func TestResolveRefinements(t *testing.T) {
	r := NewResolver()
	profile := &models.Profile{UserID: "u1"}
	profile.Enhanced.Address = "Indore, Madhya Pradesh"

	tests := []struct {
		msg        string
		wantQuery  string
		wantType   models.RefinementType
		wantLoc    string
		wantPrefix string
	}{
		{"more senior ones", "senior react developers in mumbai", models.RefinementSenior, "", "Here are more senior professionals:"},
		{"any freshers?", "junior react developers in mumbai", models.RefinementJunior, "", "Here are some early-career members:"},
		{"with startup background", "react developers in mumbai startup experience", models.RefinementStartup, "", "Here are members with startup experience:"},
		{"anyone nearby", "react developers in Indore", models.RefinementSameCity, "Indore", "Here are members near you in Indore:"},
		{"any in pune?", "react developers in Pune", models.RefinementLocation, "Pune", "Here are members in Pune:"},
		{"what about bangalore", "react developers in Bangalore", models.RefinementLocation, "Bangalore", "Here are members in Bangalore:"},
		{"show me different ones", "react developers in mumbai", models.RefinementExcludePrevious, "", "Here are some different profiles:"},
		{"next", "react developers in mumbai", models.RefinementNextBatch, "", "Here are more results:"},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			mem := memoryWithSearch("react developers in mumbai", time.Minute, "p1")
			got := r.Resolve(tt.msg, mem, profile)
			if got.EnhancedQuery != tt.wantQuery {
				t.Errorf("EnhancedQuery = %q, want %q", got.EnhancedQuery, tt.wantQuery)
			}
			if got.Refinement != tt.wantType {
				t.Errorf("Refinement = %s, want %s", got.Refinement, tt.wantType)
			}
			if got.Location != tt.wantLoc {
				t.Errorf("Location = %q, want %q", got.Location, tt.wantLoc)
			}
			if p := ReplyPrefix(got); p != tt.wantPrefix {
				t.Errorf("ReplyPrefix() = %q, want %q", p, tt.wantPrefix)
			}
		})
	}
}

func TestSameCityWithoutProfileFallsThrough(t *testing.T) {
	r := NewResolver()
	mem := memoryWithSearch("designers", time.Minute, "p9")
	got := r.Resolve("nearby", mem, nil)
	if got.Refinement != models.RefinementNextBatch {
		t.Errorf("Refinement = %s, want next_batch", got.Refinement)
	}
	if len(got.ExcludeIDs) != 1 {
		t.Errorf("ExcludeIDs = %v", got.ExcludeIDs)
	}
}
