// Package testutil provides shared fixtures and assertions for the bot's tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/store"
)

// VerifiedProfile returns a profile that has passed email verification and
// has no other fields.
func VerifiedProfile(userID string) *models.Profile {
	return &models.Profile{
		UserID: userID,
		Basic:  models.BasicProfile{Email: userID + "@example.org", Verified: true},
	}
}

// CompleteProfile returns a searchable profile located in city with the
// given professional role, completed at completedAt.
func CompleteProfile(userID, city, role string, completedAt time.Time) *models.Profile {
	no := false
	p := VerifiedProfile(userID)
	p.Enhanced = models.EnhancedProfile{
		FullName:           "Member " + userID,
		Gender:             "Female",
		ProfessionalRole:   role,
		DateOfBirth:        "15-08-1995",
		Country:            "India",
		Address:            city + ", India",
		PhoneNumber:        "+919876543210",
		LinkedInProfile:    "https://linkedin.com/in/" + userID,
		Domain:             "Technology & Software",
		YatraImpact:        []string{"Expanded professional network"},
		CommunityAsks:      []string{"Mentorship & Guidance"},
		CommunityGives:     []string{"Mentorship"},
		HasAdditionalEmail: &no,
		HasInstagram:       &no,
	}
	if err := p.MarkCompleted(completedAt); err != nil {
		panic("testutil.CompleteProfile: " + err.Error())
	}
	return p
}

// SeedProfiles creates each profile in repo.
func SeedProfiles(t *testing.T, repo store.ProfileRepo, profiles ...*models.Profile) {
	t.Helper()
	ctx := context.Background()
	for _, p := range profiles {
		if err := repo.CreateProfile(ctx, p); err != nil {
			t.Fatalf("seed profile %s: %v", p.UserID, err)
		}
	}
}

// AssertHTTPStatus fails the test when actual differs from expected.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes an APIResponse and checks its status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expected models.APIStatus) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if resp.Status != string(expected) {
		t.Errorf("expected status %q, got %q (message %q)", expected, resp.Status, resp.Message)
	}
	return resp
}

// CreateHTTPRequest builds a request with an optional JSON body.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		buf.Write(MustMarshalJSON(t, body))
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// MustMarshalJSON marshals v and fails the test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals data into target and fails the test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
