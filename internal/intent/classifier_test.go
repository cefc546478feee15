package intent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
)

var now = time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)

func idleSession() *models.Session {
	s := models.NewSession("919800000001", now, time.Hour)
	s.Authenticated = true
	return s
}

func collectingSession(field models.FieldName, remaining ...models.FieldName) *models.Session {
	s := idleSession()
	s.WaitingFor = models.UpdatingField{Field: field, Remaining: remaining}
	return s
}

func memoryWithSearch(ago time.Duration) *models.Memory {
	mem := models.NewMemory("919800000001", now.Add(-time.Hour))
	mem.CurrentContext.LastSearchQuery = "react developers in mumbai"
	mem.CurrentContext.LastSearchAt = now.Add(-ago)
	mem.CurrentContext.LastSearchResultIDs = []string{"p1", "p2"}
	return mem
}

func TestCascadeOrder(t *testing.T) {
	c := NewClassifier()
	tests := []struct {
		name     string
		msg      string
		wantType models.IntentType
		wantConf models.Confidence
	}{
		{"skip strong", "stop", models.IntentSkip, models.ConfidenceHigh},
		{"skip medium", "skip for now", models.IntentSkip, models.ConfidenceMedium},
		{"later", "later!", models.IntentSkip, models.ConfidenceMedium},
		{"email", "my email is Priya@Example.com", models.IntentEmail, models.ConfidenceHigh},
		{"otp", " 482913 ", models.IntentOTP, models.ConfidenceHigh},
		{"update profile", "I want to update my profile", models.IntentProfileUpdateRequest, models.ConfidenceHigh},
		{"edit details", "edit details please", models.IntentProfileUpdateRequest, models.ConfidenceHigh},
		{"change field", "change my linkedin", models.IntentProfileUpdateRequest, models.ConfidenceMedium},
		{"profile and field", "profile linkedin", models.IntentProfileUpdateRequest, models.ConfidenceMedium},
		{"my field profile", "my linkedin profile", models.IntentProfileUpdateRequest, models.ConfidenceMedium},
		{"field in profile", "phone number in profile", models.IntentProfileUpdateRequest, models.ConfidenceMedium},
		{"yes", "Yes!", models.IntentAffirmative, models.ConfidenceHigh},
		{"haan", "haan", models.IntentAffirmative, models.ConfidenceHigh},
		{"ok is affirmative", "ok", models.IntentAffirmative, models.ConfidenceHigh},
		{"no", "nahi", models.IntentNegative, models.ConfidenceHigh},
		{"numbers", "1, 3 5", models.IntentNumericList, models.ConfidenceHigh},
		{"single number", "4", models.IntentNumericList, models.ConfidenceHigh},
		{"greeting", "Hello there!", models.IntentCasual, models.ConfidenceHigh},
		{"thanks", "thank you so much", models.IntentCasual, models.ConfidenceHigh},
		{"search high", "looking for react developers in pune", models.IntentSearch, models.ConfidenceHigh},
		{"search pattern only", "anyone from my batch?", models.IntentSearch, models.ConfidenceMedium},
		{"search keywords only", "fintech founders bangalore", models.IntentSearch, models.ConfidenceMedium},
		{"search single keyword", "mentorship", models.IntentSearch, models.ConfidenceLow},
		{"linkedin url never search", "linkedin.com/in/react-developer-pune", models.IntentCasual, models.ConfidenceLow},
		{"fallback", "the weather is lovely today", models.IntentCasual, models.ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.ClassifyRules(Input{Message: tt.msg, Session: idleSession(), Now: now})
			if got.Type != tt.wantType {
				t.Fatalf("Classify(%q).Type = %s, want %s (%+v)", tt.msg, got.Type, tt.wantType, got)
			}
			if got.Confidence != tt.wantConf {
				t.Errorf("Classify(%q).Confidence = %s, want %s", tt.msg, got.Confidence, tt.wantConf)
			}
			if got.Source != models.SourceRules {
				t.Errorf("Source = %s, want rules", got.Source)
			}
		})
	}
}

func TestIntentPayloads(t *testing.T) {
	c := NewClassifier()
	in := func(msg string) Input { return Input{Message: msg, Session: idleSession(), Now: now} }

	if got := c.ClassifyRules(in("Reach me at Priya@Example.com")); got.Value != "priya@example.com" {
		t.Errorf("email value = %q", got.Value)
	}
	if got := c.ClassifyRules(in("phone number in profile")); got.Field != models.FieldPhoneNumber {
		t.Errorf("field = %q, want phoneNumber", got.Field)
	}
	if got := c.ClassifyRules(in("2, 4,7")); !cmp.Equal(got.Numbers, []int{2, 4, 7}) {
		t.Errorf("numbers = %v", got.Numbers)
	}
	if got := c.ClassifyRules(in("hey")); got.Subtype != models.CasualGreeting {
		t.Errorf("subtype = %s, want greeting", got.Subtype)
	}
	if got := c.ClassifyRules(in("bye")); got.Subtype != models.CasualFarewell {
		t.Errorf("subtype = %s, want farewell", got.Subtype)
	}
	if got := c.ClassifyRules(in("update my phone number")); got.Field != models.FieldPhoneNumber {
		t.Errorf("field = %s, want phoneNumber", got.Field)
	}
	got := c.ClassifyRules(in("I am looking for react developers in pune"))
	if got.Query != "react developers in pune" {
		t.Errorf("query = %q", got.Query)
	}
	if diff := cmp.Diff([]string{"developers", "react", "pune"}, got.Keywords); diff != "" {
		t.Errorf("keywords (-want +got):\n%s", diff)
	}
}

func TestFieldInputPreemptsEverything(t *testing.T) {
	c := NewClassifier()
	sess := collectingSession(models.FieldFullName, models.FieldGender)

	for _, msg := range []string{"looking for react developers", "hello", "yes", "John Doe", "482913", "a@b.com"} {
		got := c.ClassifyRules(Input{Message: msg, Session: sess, Memory: memoryWithSearch(time.Minute), Now: now})
		if got.Type != models.IntentProfileFieldInput {
			t.Errorf("Classify(%q).Type = %s, want profile_field_input", msg, got.Type)
			continue
		}
		if got.Field != models.FieldFullName || got.Value != msg {
			t.Errorf("Classify(%q) = field %s value %q", msg, got.Field, got.Value)
		}
	}

	got := c.ClassifyRules(Input{Message: "skip", Session: sess, Now: now})
	if got.Type != models.IntentSkip {
		t.Errorf("skip during collection = %s, want skip", got.Type)
	}

	sub := idleSession()
	sub.WaitingFor = models.InstagramURLInput{}
	got = c.ClassifyRules(Input{Message: "@traveller", Session: sub, Now: now})
	if got.Type != models.IntentProfileFieldInput || got.Field != models.FieldInstagram {
		t.Errorf("instagram sub-state = %+v", got)
	}
}

func TestFollowUpWindow(t *testing.T) {
	c := NewClassifier()
	profile := &models.Profile{UserID: "919800000001"}

	got := c.ClassifyRules(Input{Message: "any more", Session: idleSession(), Memory: memoryWithSearch(2 * time.Minute), Profile: profile, Now: now})
	if got.Type != models.IntentFollowUpSearch {
		t.Fatalf("two minutes: Type = %s, want follow_up_search", got.Type)
	}
	if got.Refinement != models.RefinementNextBatch {
		t.Errorf("Refinement = %s, want next_batch", got.Refinement)
	}
	if got.Query != "react developers in mumbai" {
		t.Errorf("Query = %q", got.Query)
	}

	got = c.ClassifyRules(Input{Message: "any more", Session: idleSession(), Memory: memoryWithSearch(6 * time.Minute), Profile: profile, Now: now})
	if got.Type == models.IntentFollowUpSearch {
		t.Errorf("six minutes: Type = follow_up_search, want anything else")
	}

	got = c.ClassifyRules(Input{Message: "thanks", Session: idleSession(), Memory: memoryWithSearch(time.Minute), Now: now})
	if got.Type != models.IntentCasual {
		t.Errorf("thanks after search = %s, want casual", got.Type)
	}
}

func TestClassifyIsPure(t *testing.T) {
	c := NewClassifier()
	msgs := []string{"any more", "looking for mentors in delhi", "hi", "1,2", "skip", "update profile", "random words"}
	for _, msg := range msgs {
		in := Input{Message: msg, Session: idleSession(), Memory: memoryWithSearch(time.Minute), Now: now}
		first := c.Classify(context.Background(), in)
		for i := 0; i < 5; i++ {
			if diff := cmp.Diff(first, c.Classify(context.Background(), in)); diff != "" {
				t.Fatalf("Classify(%q) not deterministic:\n%s", msg, diff)
			}
		}
	}
}

type stubAI struct {
	result AIResult
	err    error
	delay  time.Duration
	calls  int
}

func (s *stubAI) ClassifyIntent(ctx context.Context, text string, hint AIContext) (AIResult, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return AIResult{}, ctx.Err()
		}
	}
	return s.result, s.err
}

func TestAIOverride(t *testing.T) {
	tests := []struct {
		name     string
		ai       *stubAI
		msg      string
		sess     *models.Session
		wantType models.IntentType
		wantSrc  models.IntentSource
	}{
		{
			name:     "confident search wins",
			ai:       &stubAI{result: AIResult{Type: "search", Confidence: 0.9, ExtractedTerms: []string{"ca"}}},
			msg:      "my company needs a chartered accountant",
			sess:     idleSession(),
			wantType: models.IntentSearch,
			wantSrc:  models.SourceAI,
		},
		{
			name:     "low confidence falls through",
			ai:       &stubAI{result: AIResult{Type: "search", Confidence: 0.3}},
			msg:      "hello",
			sess:     idleSession(),
			wantType: models.IntentCasual,
			wantSrc:  models.SourceRules,
		},
		{
			name:     "unknown type falls through",
			ai:       &stubAI{result: AIResult{Type: "smalltalk", Confidence: 0.99}},
			msg:      "yes",
			sess:     idleSession(),
			wantType: models.IntentAffirmative,
			wantSrc:  models.SourceRules,
		},
		{
			name:     "error falls through",
			ai:       &stubAI{err: errors.New("boom")},
			msg:      "3,4",
			sess:     idleSession(),
			wantType: models.IntentNumericList,
			wantSrc:  models.SourceRules,
		},
		{
			name:     "timeout falls through",
			ai:       &stubAI{result: AIResult{Type: "search", Confidence: 1}, delay: time.Second},
			msg:      "namaste",
			sess:     idleSession(),
			wantType: models.IntentCasual,
			wantSrc:  models.SourceRules,
		},
		{
			name:     "otp claim without digits rejected",
			ai:       &stubAI{result: AIResult{Type: "otp", Confidence: 0.95}},
			msg:      "here is my code",
			sess:     idleSession(),
			wantType: models.IntentCasual,
			wantSrc:  models.SourceRules,
		},
		{
			name:     "never bypasses field input",
			ai:       &stubAI{result: AIResult{Type: "search", Confidence: 1}},
			msg:      "looking for investors",
			sess:     collectingSession(models.FieldAddress),
			wantType: models.IntentProfileFieldInput,
			wantSrc:  models.SourceRules,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(WithAI(tt.ai), WithAITimeout(20*time.Millisecond))
			got := c.Classify(context.Background(), Input{Message: tt.msg, Session: tt.sess, Now: now})
			if got.Type != tt.wantType || got.Source != tt.wantSrc {
				t.Errorf("Classify(%q) = %s/%s, want %s/%s", tt.msg, got.Type, got.Source, tt.wantType, tt.wantSrc)
			}
		})
	}
}

func TestAISkippedForFieldInput(t *testing.T) {
	ai := &stubAI{result: AIResult{Type: "search", Confidence: 1}}
	c := NewClassifier(WithAI(ai))
	c.Classify(context.Background(), Input{Message: "Mumbai", Session: collectingSession(models.FieldAddress), Now: now})
	c.Classify(context.Background(), Input{Message: "skip", Session: idleSession(), Now: now})
	if ai.calls != 0 {
		t.Errorf("AI consulted %d times, want 0", ai.calls)
	}
}

func TestAIKeepsHalfTheTurnBudget(t *testing.T) {
	ai := &stubAI{result: AIResult{Type: "search", Confidence: 1}, delay: time.Hour}
	c := NewClassifier(WithAI(ai), WithAITimeout(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	got := c.Classify(ctx, Input{Message: "hi", Session: idleSession(), Now: now})
	if err := ctx.Err(); err != nil {
		t.Fatalf("AI call used the whole turn budget: %v", err)
	}
	if got.Source != models.SourceRules || got.Type != models.IntentCasual {
		t.Errorf("Classify = %s/%s, want casual/rules", got.Type, got.Source)
	}
	if ai.calls != 1 {
		t.Errorf("AI consulted %d times, want 1", ai.calls)
	}
}

func TestCallBudget(t *testing.T) {
	c := NewClassifier(WithAITimeout(5 * time.Second))
	if got := c.callBudget(context.Background()); got != 5*time.Second {
		t.Errorf("budget without deadline = %v, want 5s", got)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if got := c.callBudget(ctx); got > time.Second {
		t.Errorf("budget with 2s left = %v, want at most 1s", got)
	}
}
