// Package profileflow implements the profile completion wizard: a state
// machine over the session's WaitingFor union that walks a member through the
// ordered queue of incomplete fields, persisting one validated field at a time.
package profileflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/validate"
)

// ProfileWriter persists wizard results.
type ProfileWriter interface {
	SetField(ctx context.Context, userID string, field models.FieldName, value models.FieldValue) error
	MarkCompleted(ctx context.Context, userID string, at time.Time) error
}

// EntryReason says why the wizard was entered.
type EntryReason string

const (
	EntryGreeting      EntryReason = "greeting"
	EntrySearchLocked  EntryReason = "search_locked"
	EntryUpdateRequest EntryReason = "update_request"
	EntryResume        EntryReason = "resume"
)

// ErrNotCollecting is returned when input arrives while no field is awaited.
var ErrNotCollecting = errors.New("session is not collecting a profile field")

// Result is the outcome of one wizard step.
type Result struct {
	Reply string
	// Saved is true when a field value was persisted.
	Saved bool
	// Completed is true when this step finished the wizard.
	Completed bool
}

// Machine drives the wizard. It is stateless; all state lives in the session.
type Machine struct {
	validator *validate.Validator
	writer    ProfileWriter
	catalog   Catalog
	now       func() time.Time
}

// Option configures a Machine.
type Option func(*Machine)

// WithCatalog overrides the prompt catalog.
func WithCatalog(c Catalog) Option {
	return func(m *Machine) { m.catalog = c }
}

// WithValidator overrides the validator.
func WithValidator(v *validate.Validator) Option {
	return func(m *Machine) { m.validator = v }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// NewMachine creates a Machine persisting through writer.
func NewMachine(writer ProfileWriter, opts ...Option) *Machine {
	m := &Machine{
		validator: validate.New(),
		writer:    writer,
		catalog:   DefaultCatalog(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start enters the wizard at the first incomplete field. When nothing is
// missing the session goes to Ready and the reply says so.
func (m *Machine) Start(sess *models.Session, profile *models.Profile, reason EntryReason) string {
	if profile == nil {
		profile = &models.Profile{UserID: sess.UserID}
	}
	fields := profile.IncompleteFields()
	if len(fields) == 0 {
		sess.WaitingFor = models.Ready{}
		sess.Ready = true
		return "Your profile is already complete. You can search the community anytime."
	}
	sess.ProfileSkipped = false
	sess.Ready = false
	sess.FieldMenuOpen = false
	sess.WaitingFor = models.UpdatingField{Field: fields[0], Remaining: fields[1:]}
	sess.ProfileSnapshot = profile.Clone()

	slog.Debug("Machine.Start: entering wizard", "user", sess.UserID, "reason", reason, "fields", len(fields))
	return m.entryHeader(profile, reason, len(fields)) + "\n\n" + m.catalog.promptFor(sess.WaitingFor)
}

// StartFields enters the wizard over an explicit field list, in catalog order.
func (m *Machine) StartFields(sess *models.Session, profile *models.Profile, fields []models.FieldName) (string, error) {
	ordered := catalogOrder(fields)
	if len(ordered) == 0 {
		return "", fmt.Errorf("%w: no known fields selected", models.ErrUnknownField)
	}
	sess.ProfileSkipped = false
	sess.Ready = false
	sess.FieldMenuOpen = false
	sess.WaitingFor = models.UpdatingField{Field: ordered[0], Remaining: ordered[1:]}
	sess.ProfileSnapshot = profile.Clone()
	return "Sure, let's update that.\n\n" + m.catalog.promptFor(sess.WaitingFor), nil
}

func (m *Machine) entryHeader(profile *models.Profile, reason EntryReason, missing int) string {
	pct := profile.CompletionPercentage()
	name := profile.DisplayName()
	greeting := "Hi"
	if name != "" {
		greeting = "Hi " + name
	}
	switch reason {
	case EntrySearchLocked:
		return fmt.Sprintf("🔒 Search unlocks once your profile is complete. You're %d%% there, %d questions to go.", pct, missing)
	case EntryUpdateRequest:
		return fmt.Sprintf("Let's complete your profile. You're %d%% there, %d questions to go.", pct, missing)
	case EntryResume:
		return fmt.Sprintf("Great, let's pick up where we left off (%d%% complete).", pct)
	default:
		return fmt.Sprintf("%s! Your profile is %d%% complete. Let's finish it so you can connect with the community.", greeting, pct)
	}
}

// Prompt returns the question for the current state, or "" when not collecting.
func (m *Machine) Prompt(sess *models.Session) string {
	return m.catalog.promptFor(sess.State())
}

// HandleInput validates raw for the awaited field and advances the session.
// Validation failures are not errors; they produce a retry reply. An error is
// returned only when persistence fails, in which case the session is unchanged.
func (m *Machine) HandleInput(ctx context.Context, sess *models.Session, profile *models.Profile, raw string) (Result, error) {
	state := sess.State()
	field, ok := models.CollectingField(state)
	if !ok {
		return Result{}, ErrNotCollecting
	}
	if sess.Attempts == nil {
		sess.Attempts = make(map[models.FieldName]int)
	}

	var (
		value     models.FieldValue
		err       error
		remaining []models.FieldName
		subInput  bool
	)
	switch s := state.(type) {
	case models.UpdatingField:
		value, err = m.validator.Validate(field, raw)
		remaining = s.Remaining
	case models.AdditionalEmailInput:
		value, err = m.validator.ValidateGatedInput(field, raw)
		remaining, subInput = s.Remaining, true
	case models.InstagramURLInput:
		value, err = m.validator.ValidateGatedInput(field, raw)
		remaining, subInput = s.Remaining, true
	}
	if err != nil {
		if _, isValidation := validate.AsError(err); !isValidation {
			return Result{}, err
		}
		sess.Attempts[field]++
		p := m.catalog.Lookup(field)
		prompt, examples := p.Prompt, p.Examples
		if subInput {
			prompt, examples = p.InputPrompt, p.InputExamples
		}
		slog.Debug("Machine.HandleInput: validation failed", "user", sess.UserID, "field", field, "attempts", sess.Attempts[field])
		return Result{Reply: retryMessage(p, prompt, examples, raw, err, sess.Attempts[field])}, nil
	}

	if err := m.writer.SetField(ctx, sess.UserID, field, value); err != nil {
		return Result{}, fmt.Errorf("save %s: %w", field, err)
	}
	snapshot := sess.ProfileSnapshot
	if snapshot == nil {
		snapshot = profile.Clone()
	}
	if snapshot == nil {
		snapshot = &models.Profile{UserID: sess.UserID}
	}
	if err := snapshot.ApplyField(field, value); err != nil {
		return Result{}, err
	}
	sess.ProfileSnapshot = snapshot
	delete(sess.Attempts, field)

	saved := fmt.Sprintf("✅ %s saved.", m.catalog.Lookup(field).DisplayName)
	if value.Kind == models.ValueKindBool && value.Bool {
		if field == models.FieldAdditionalEmail {
			sess.WaitingFor = models.AdditionalEmailInput{Remaining: remaining}
		} else {
			sess.WaitingFor = models.InstagramURLInput{Remaining: remaining}
		}
		return Result{Reply: m.catalog.promptFor(sess.WaitingFor), Saved: true}, nil
	}
	return m.advance(ctx, sess, snapshot, remaining, saved)
}

func (m *Machine) advance(ctx context.Context, sess *models.Session, snapshot *models.Profile, remaining []models.FieldName, saved string) (Result, error) {
	if len(remaining) == 0 {
		// Fields skipped in an earlier session are still missing; keep asking.
		remaining = snapshot.MissingRequiredFields()
	}
	if len(remaining) > 0 {
		sess.WaitingFor = models.UpdatingField{Field: remaining[0], Remaining: append([]models.FieldName(nil), remaining[1:]...)}
		return Result{Reply: saved + "\n\n" + m.catalog.promptFor(sess.WaitingFor), Saved: true}, nil
	}

	wasComplete := snapshot.Enhanced.Completed
	if !wasComplete {
		at := m.now()
		if err := m.writer.MarkCompleted(ctx, sess.UserID, at); err != nil {
			return Result{}, fmt.Errorf("mark completed: %w", err)
		}
		if err := snapshot.MarkCompleted(at); err != nil {
			return Result{}, err
		}
	}
	sess.ClearProfileFlow()
	sess.WaitingFor = models.Ready{}
	sess.Ready = true

	if wasComplete {
		return Result{Reply: saved + "\n\nYour profile is up to date.", Saved: true}, nil
	}
	slog.Info("Machine.advance: profile completed", "user", sess.UserID)
	return Result{
		Reply:     saved + "\n\n🎉 Your profile is complete! You can now search the community, e.g. \"looking for mentors in fintech\".",
		Saved:     true,
		Completed: true,
	}, nil
}

// Skip leaves the wizard without touching persisted values.
func (m *Machine) Skip(sess *models.Session, profile *models.Profile) string {
	sess.WaitingFor = models.Ready{}
	sess.Ready = true
	sess.ProfileSkipped = true
	sess.FieldMenuOpen = false

	current := profile
	if sess.ProfileSnapshot != nil {
		current = sess.ProfileSnapshot
	}
	if current.CanSearch() {
		return "No problem, your profile stays as it is."
	}
	if current == nil {
		current = &models.Profile{UserID: sess.UserID}
	}
	return fmt.Sprintf("No problem! Your profile is %d%% complete. Search unlocks once it's finished; say \"update profile\" whenever you're ready.",
		current.CompletionPercentage())
}

// FieldMenu opens the numbered update menu for a complete profile.
func (m *Machine) FieldMenu(sess *models.Session, profile *models.Profile) string {
	sess.FieldMenuOpen = true
	sess.ProfileSnapshot = profile.Clone()

	var b strings.Builder
	b.WriteString("Which details would you like to update? Reply with the numbers, e.g. 1, 3.\n")
	for i, spec := range models.FieldCatalog {
		current := ""
		if profile != nil {
			if v, err := profile.FieldValue(spec.Name); err == nil {
				current = v.String()
			}
		}
		if current == "" {
			current = "not set"
		}
		fmt.Fprintf(&b, "\n%d. %s: %s", i+1, m.catalog.Lookup(spec.Name).DisplayName, current)
	}
	return b.String()
}

// SelectFromMenu starts updating the fields chosen by menu number.
func (m *Machine) SelectFromMenu(sess *models.Session, profile *models.Profile, numbers []int) (string, error) {
	var fields []models.FieldName
	for _, n := range numbers {
		if n < 1 || n > len(models.FieldCatalog) {
			return fmt.Sprintf("Please choose numbers between 1 and %d.", len(models.FieldCatalog)), nil
		}
		fields = append(fields, models.FieldCatalog[n-1].Name)
	}
	return m.StartFields(sess, profile, fields)
}

// catalogOrder dedupes fields and sorts them in wizard order, dropping unknown names.
func catalogOrder(fields []models.FieldName) []models.FieldName {
	want := make(map[models.FieldName]bool, len(fields))
	for _, f := range fields {
		want[f] = true
	}
	var out []models.FieldName
	for _, spec := range models.FieldCatalog {
		if want[spec.Name] {
			out = append(out, spec.Name)
		}
	}
	return out
}
