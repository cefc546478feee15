package profileflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/intent"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
)

const testUser = "919811112222"

// memoryWriter is an in-memory ProfileWriter.
type memoryWriter struct {
	profile  *models.Profile
	failSet  error
	setCalls int
}

func newMemoryWriter() *memoryWriter {
	return &memoryWriter{profile: &models.Profile{UserID: testUser}}
}

func (w *memoryWriter) SetField(ctx context.Context, userID string, field models.FieldName, value models.FieldValue) error {
	w.setCalls++
	if w.failSet != nil {
		return w.failSet
	}
	return w.profile.ApplyField(field, value)
}

func (w *memoryWriter) MarkCompleted(ctx context.Context, userID string, at time.Time) error {
	return w.profile.MarkCompleted(at)
}

var validAnswers = map[models.FieldName]string{
	models.FieldFullName:         "John Doe",
	models.FieldGender:           "1",
	models.FieldProfessionalRole: "Working Professional",
	models.FieldDateOfBirth:      "15-08-1995",
	models.FieldCountry:          "India",
	models.FieldAddress:          "Pune, Maharashtra",
	models.FieldPhoneNumber:      "9876543210",
	models.FieldLinkedIn:         "johndoe",
	models.FieldDomain:           "1",
	models.FieldYatraImpact:      "1, 2",
	models.FieldCommunityAsks:    "3",
	models.FieldCommunityGives:   "1 4",
}

func newSession() *models.Session {
	s := models.NewSession(testUser, time.Now(), time.Hour)
	s.Authenticated = true
	return s
}

func TestFullNameAdvancesToGender(t *testing.T) {
	w := newMemoryWriter()
	m := NewMachine(w)
	sess := newSession()
	sess.WaitingFor = models.UpdatingField{
		Field:     models.FieldFullName,
		Remaining: []models.FieldName{models.FieldGender, models.FieldProfessionalRole, models.FieldDateOfBirth},
	}

	res, err := m.HandleInput(context.Background(), sess, w.profile, "John Doe")
	if err != nil {
		t.Fatalf("HandleInput() error = %v", err)
	}
	if !res.Saved {
		t.Error("expected Saved")
	}
	if w.profile.Enhanced.FullName != "John Doe" {
		t.Errorf("persisted name = %q", w.profile.Enhanced.FullName)
	}
	want := models.UpdatingField{
		Field:     models.FieldGender,
		Remaining: []models.FieldName{models.FieldProfessionalRole, models.FieldDateOfBirth},
	}
	if diff := cmp.Diff(models.WaitingFor(want), sess.State()); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(res.Reply, "gender") {
		t.Errorf("reply should ask for gender: %q", res.Reply)
	}
}

// walk answers every prompt until the session leaves the wizard.
func walk(t *testing.T, m *Machine, sess *models.Session, w *memoryWriter, addEmail, addInstagram bool) Result {
	t.Helper()
	var last Result
	for i := 0; i < 40; i++ {
		var answer string
		switch s := sess.State().(type) {
		case models.UpdatingField:
			switch s.Field {
			case models.FieldAdditionalEmail:
				answer = map[bool]string{true: "yes", false: "no"}[addEmail]
			case models.FieldInstagram:
				answer = map[bool]string{true: "1", false: "2"}[addInstagram]
			default:
				answer = validAnswers[s.Field]
			}
		case models.AdditionalEmailInput:
			answer = "John.Work@Example.com"
		case models.InstagramURLInput:
			answer = "@john.doe"
		default:
			return last
		}
		res, err := m.HandleInput(context.Background(), sess, w.profile, answer)
		if err != nil {
			t.Fatalf("HandleInput(%q) error = %v", answer, err)
		}
		if !res.Saved {
			t.Fatalf("HandleInput(%q) rejected: %s", answer, res.Reply)
		}
		last = res
	}
	t.Fatal("wizard did not terminate")
	return last
}

func TestWizardCompletesForAllGateCombinations(t *testing.T) {
	for _, email := range []bool{true, false} {
		for _, insta := range []bool{true, false} {
			t.Run(fmt.Sprintf("email=%v/instagram=%v", email, insta), func(t *testing.T) {
				w := newMemoryWriter()
				m := NewMachine(w)
				sess := newSession()

				m.Start(sess, w.profile, EntryGreeting)
				res := walk(t, m, sess, w, email, insta)

				if !res.Completed {
					t.Fatal("last step did not report completion")
				}
				if !w.profile.Enhanced.Completed || !w.profile.IsComplete() {
					t.Fatalf("profile not completed: missing %v", w.profile.MissingRequiredFields())
				}
				if sess.State().Kind() != models.WaitingReady || !sess.Ready {
					t.Errorf("state = %s, want ready", sess.State().Kind())
				}
				if len(sess.Attempts) != 0 || sess.ProfileSkipped {
					t.Errorf("flow fields not cleared: %+v", sess)
				}
				if got := w.profile.Enhanced.AdditionalEmail != ""; got != email {
					t.Errorf("additional email set = %v, want %v", got, email)
				}
				if got := w.profile.Enhanced.InstagramProfile == "https://instagram.com/john.doe"; got != insta {
					t.Errorf("instagram = %q", w.profile.Enhanced.InstagramProfile)
				}

				search := models.Intent{Type: models.IntentSearch, Confidence: models.ConfidenceHigh}
				if got := intent.ValidateIntentForUserState(search, sess, w.profile); got.Blocked {
					t.Errorf("search still blocked after completion: %s", got.BlockReason)
				}
			})
		}
	}
}

func TestWizardFromPartiallyFilledProfile(t *testing.T) {
	w := newMemoryWriter()
	w.profile.Enhanced.FullName = "Asha Rao"
	w.profile.Enhanced.Country = "India"
	m := NewMachine(w)
	sess := newSession()

	m.Start(sess, w.profile, EntryUpdateRequest)
	first, ok := sess.State().(models.UpdatingField)
	if !ok || first.Field != models.FieldGender {
		t.Fatalf("first state = %+v, want gender", sess.State())
	}
	for _, f := range first.Remaining {
		if f == models.FieldFullName || f == models.FieldCountry {
			t.Errorf("queue contains already filled field %s", f)
		}
	}
	walk(t, m, sess, w, false, false)
	if !w.profile.Enhanced.Completed {
		t.Error("profile not completed")
	}
	if w.profile.Enhanced.FullName != "Asha Rao" {
		t.Errorf("existing name overwritten: %q", w.profile.Enhanced.FullName)
	}
}

func TestSkipPreservesPersistedFields(t *testing.T) {
	total := len(models.FieldCatalog)
	for answered := 0; answered < total; answered++ {
		t.Run(fmt.Sprintf("after_%d", answered), func(t *testing.T) {
			w := newMemoryWriter()
			m := NewMachine(w)
			sess := newSession()
			m.Start(sess, w.profile, EntryGreeting)

			for i := 0; i < answered; i++ {
				s, ok := sess.State().(models.UpdatingField)
				if !ok {
					t.Fatalf("unexpected state %s", sess.State().Kind())
				}
				answer := validAnswers[s.Field]
				if answer == "" {
					answer = "no"
				}
				if _, err := m.HandleInput(context.Background(), sess, w.profile, answer); err != nil {
					t.Fatal(err)
				}
			}
			before := w.profile.Clone()
			calls := w.setCalls

			reply := m.Skip(sess, w.profile)
			if reply == "" {
				t.Error("empty skip reply")
			}
			if sess.State().Kind() != models.WaitingReady || !sess.ProfileSkipped {
				t.Errorf("state = %s skipped = %v", sess.State().Kind(), sess.ProfileSkipped)
			}
			if w.setCalls != calls {
				t.Error("skip wrote to the profile store")
			}
			if diff := cmp.Diff(before, w.profile); diff != "" {
				t.Errorf("profile changed by skip (-before +after):\n%s", diff)
			}
			if w.profile.Enhanced.Completed {
				t.Error("skip completed the profile")
			}

			m.Skip(sess, w.profile)
			if sess.State().Kind() != models.WaitingReady {
				t.Error("second skip changed state")
			}
		})
	}
}

func TestRetryTiersEscalateAndCap(t *testing.T) {
	w := newMemoryWriter()
	m := NewMachine(w)
	sess := newSession()
	sess.WaitingFor = models.UpdatingField{Field: models.FieldDateOfBirth, Remaining: []models.FieldName{models.FieldCountry}}

	var replies []string
	for i := 0; i < 6; i++ {
		res, err := m.HandleInput(context.Background(), sess, w.profile, "sometime in 95")
		if err != nil {
			t.Fatal(err)
		}
		if res.Saved {
			t.Fatal("invalid date accepted")
		}
		replies = append(replies, res.Reply)
	}
	if sess.Attempts[models.FieldDateOfBirth] != 6 {
		t.Errorf("attempts = %d, want 6", sess.Attempts[models.FieldDateOfBirth])
	}
	if strings.Contains(replies[0], "For example") {
		t.Error("tier 1 should not include an example")
	}
	if !strings.Contains(replies[1], "For example: 15-08-1995") {
		t.Errorf("tier 2 missing example: %q", replies[1])
	}
	if !strings.Contains(replies[2], "• 01/12/1988") {
		t.Errorf("tier 3 missing example list: %q", replies[2])
	}
	if !strings.Contains(replies[3], `"sometime in 95"`) || !strings.Contains(replies[3], "skip") {
		t.Errorf("tier 4 missing breakdown: %q", replies[3])
	}
	if replies[4] != replies[3] || replies[5] != replies[3] {
		t.Error("tiers beyond the last should reuse the last tier")
	}
	if _, ok := sess.State().(models.UpdatingField); !ok {
		t.Error("state changed on validation failure")
	}

	if _, err := m.HandleInput(context.Background(), sess, w.profile, "15-08-1995"); err != nil {
		t.Fatal(err)
	}
	if _, ok := sess.Attempts[models.FieldDateOfBirth]; ok {
		t.Error("attempts not reset after success")
	}
}

func TestPersistFailureLeavesSessionUnchanged(t *testing.T) {
	w := newMemoryWriter()
	w.failSet = errors.New("db down")
	m := NewMachine(w)
	sess := newSession()
	state := models.UpdatingField{Field: models.FieldFullName, Remaining: []models.FieldName{models.FieldGender}}
	sess.WaitingFor = state

	if _, err := m.HandleInput(context.Background(), sess, w.profile, "John Doe"); err == nil {
		t.Fatal("expected error")
	}
	if diff := cmp.Diff(models.WaitingFor(state), sess.State()); diff != "" {
		t.Errorf("state changed (-want +got):\n%s", diff)
	}
}

func TestGateSubStateRetries(t *testing.T) {
	w := newMemoryWriter()
	m := NewMachine(w)
	sess := newSession()
	sess.WaitingFor = models.UpdatingField{Field: models.FieldInstagram, Remaining: []models.FieldName{models.FieldDomain}}

	if _, err := m.HandleInput(context.Background(), sess, w.profile, "yes"); err != nil {
		t.Fatal(err)
	}
	sub, ok := sess.State().(models.InstagramURLInput)
	if !ok {
		t.Fatalf("state = %s, want instagram_url_input", sess.State().Kind())
	}
	if diff := cmp.Diff([]models.FieldName{models.FieldDomain}, sub.Remaining); diff != "" {
		t.Errorf("remaining (-want +got):\n%s", diff)
	}

	res, _ := m.HandleInput(context.Background(), sess, w.profile, "instagram.com/")
	if res.Saved || sess.Attempts[models.FieldInstagram] != 1 {
		t.Errorf("invalid handle accepted or attempts not counted: %+v", sess.Attempts)
	}

	if _, err := m.HandleInput(context.Background(), sess, w.profile, "@wanderer"); err != nil {
		t.Fatal(err)
	}
	if s, ok := sess.State().(models.UpdatingField); !ok || s.Field != models.FieldDomain {
		t.Errorf("state = %+v, want domain", sess.State())
	}
}

func TestFieldMenuSelection(t *testing.T) {
	w := newMemoryWriter()
	m := NewMachine(w)
	sess := newSession()
	m.Start(sess, w.profile, EntryGreeting)
	walk(t, m, sess, w, false, false)

	menu := m.FieldMenu(sess, w.profile)
	if !sess.FieldMenuOpen || !strings.Contains(menu, "9. LinkedIn Profile: https://linkedin.com/in/johndoe") {
		t.Fatalf("menu = %q", menu)
	}

	reply, err := m.SelectFromMenu(sess, w.profile, []int{9, 7})
	if err != nil {
		t.Fatal(err)
	}
	want := models.UpdatingField{Field: models.FieldPhoneNumber, Remaining: []models.FieldName{models.FieldLinkedIn}}
	if diff := cmp.Diff(models.WaitingFor(want), sess.State()); diff != "" {
		t.Errorf("state (-want +got):\n%s\nreply: %s", diff, reply)
	}

	if _, err := m.HandleInput(context.Background(), sess, w.profile, "9123456789"); err != nil {
		t.Fatal(err)
	}
	res, err := m.HandleInput(context.Background(), sess, w.profile, "https://www.linkedin.com/in/john-d")
	if err != nil {
		t.Fatal(err)
	}
	if res.Completed {
		t.Error("an update of a complete profile should not report first completion")
	}
	if w.profile.Enhanced.PhoneNumber != "+919123456789" || w.profile.Enhanced.LinkedInProfile != "https://linkedin.com/in/john-d" {
		t.Errorf("updated values = %q %q", w.profile.Enhanced.PhoneNumber, w.profile.Enhanced.LinkedInProfile)
	}
	if sess.State().Kind() != models.WaitingReady {
		t.Errorf("state = %s, want ready", sess.State().Kind())
	}

	out, _ := m.SelectFromMenu(sess, w.profile, []int{99})
	if !strings.Contains(out, "between 1 and") {
		t.Errorf("out of range reply = %q", out)
	}
}

func TestRetryTier(t *testing.T) {
	for attempts, want := range map[int]int{0: 1, 1: 1, 2: 2, 3: 3, 4: 4, 10: 4} {
		if got := RetryTier(attempts); got != want {
			t.Errorf("RetryTier(%d) = %d, want %d", attempts, got, want)
		}
	}
}
