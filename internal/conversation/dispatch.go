package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/followup"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/memory"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/profileflow"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/ratelimit"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/search"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/verify"
)

const (
	welcomeText  = "👋 Welcome to the Jagriti Yatra community! Please share the email address you registered with so I can verify you."
	mismatchText = "That email doesn't match the one registered for this number. Please send the email you registered with."
	helpText     = "I can help you find fellow Yatris. Try \"healthcare founders in Pune\" or say *update profile* to edit your details."
)

// dispatch routes a classified turn. An error means an infrastructure failure;
// the session must then not be persisted.
func (o *Orchestrator) dispatch(ctx context.Context, t *turn) (string, error) {
	it := t.intent
	if !t.sess.Authenticated && it.Type != models.IntentEmail && it.Type != models.IntentOTP {
		return o.welcome(t), nil
	}

	if it.Blocked {
		switch it.BlockReason {
		case models.BlockProfileUpdateInProgress:
			return "Let's finish your profile first. Type *skip* to stop for now.\n\n" + o.machine.Prompt(t.sess), nil
		case models.BlockProfileIncomplete:
			return o.machine.Start(t.sess, t.profile, profileflow.EntrySearchLocked), nil
		}
	}

	// The field menu only answers the very next message.
	if it.Type != models.IntentNumericList && it.Type != models.IntentSkip {
		t.sess.FieldMenuOpen = false
	}

	switch it.Type {
	case models.IntentEmail:
		return o.handleEmail(ctx, t)
	case models.IntentOTP:
		return o.handleOTP(ctx, t)
	case models.IntentProfileFieldInput:
		return o.handleFieldInput(ctx, t)
	case models.IntentSkip:
		return o.handleSkip(t), nil
	case models.IntentProfileUpdateRequest:
		return o.handleUpdateRequest(t)
	case models.IntentNumericList:
		if t.sess.FieldMenuOpen {
			return o.machine.SelectFromMenu(t.sess, t.profile, it.Numbers)
		}
		return "I'm not sure what those numbers refer to. " + helpText, nil
	case models.IntentAffirmative:
		if !t.profile.CanSearch() {
			return o.machine.Start(t.sess, t.profile, profileflow.EntryResume), nil
		}
		return "Great! Who would you like to connect with?", nil
	case models.IntentNegative:
		if !t.profile.CanSearch() {
			return "No problem. Say *update profile* whenever you're ready to finish your profile.", nil
		}
		return "Okay! I'm here whenever you need me.", nil
	case models.IntentSearch:
		return o.runSearch(ctx, t, searchQuery(it, t.text))
	case models.IntentFollowUpSearch:
		return o.runFollowUp(ctx, t)
	default:
		return o.casualReply(t), nil
	}
}

func (o *Orchestrator) welcome(t *turn) string {
	if t.sess.PendingOTP != "" {
		return fmt.Sprintf("Please reply with the %d-digit code I sent to %s, or send your email again for a new code.",
			verify.CodeDigits, t.sess.PendingEmail)
	}
	return welcomeText
}

func (o *Orchestrator) handleEmail(ctx context.Context, t *turn) (string, error) {
	if t.sess.Authenticated {
		return "You're already verified. " + helpText, nil
	}
	if !t.profile.MatchesEmail(t.intent.Value) {
		slog.Info("Orchestrator.handleEmail: email does not match profile", "user", t.sess.UserID)
		return mismatchText, nil
	}
	if err := o.issuer.Issue(ctx, t.sess, t.intent.Value); err != nil {
		return "", err
	}
	return fmt.Sprintf("📧 I've sent a %d-digit code to %s. Reply with the code to verify.", verify.CodeDigits, t.sess.PendingEmail), nil
}

func (o *Orchestrator) handleOTP(ctx context.Context, t *turn) (string, error) {
	email, err := o.issuer.Verify(t.sess, t.intent.Value)
	switch {
	case errors.Is(err, verify.ErrNoPendingCode):
		if t.sess.Authenticated {
			return "You're already verified. " + helpText, nil
		}
		return welcomeText, nil
	case errors.Is(err, verify.ErrCodeExpired):
		return "That code has expired. Send your email again to get a new one.", nil
	case errors.Is(err, verify.ErrCodeMismatch):
		return "That code doesn't match. Please check it and try again.", nil
	case err != nil:
		return "", err
	}

	if t.profile == nil {
		p := &models.Profile{
			UserID:    t.sess.UserID,
			Basic:     models.BasicProfile{Email: email, Verified: true},
			CreatedAt: t.now,
			UpdatedAt: t.now,
		}
		if err := o.repo.CreateProfile(ctx, p); err != nil {
			return "", fmt.Errorf("create profile: %w", err)
		}
		t.profile = p
	} else {
		err := o.repo.MarkVerified(ctx, t.sess.UserID, email)
		if errors.Is(err, models.ErrEmailMismatch) {
			t.sess.Authenticated = false
			return mismatchText, nil
		}
		if err != nil {
			return "", fmt.Errorf("mark verified: %w", err)
		}
		if err := t.profile.MarkVerified(email); err != nil {
			return "", err
		}
	}
	slog.Info("Orchestrator.handleOTP: member verified", "user", t.sess.UserID)

	if t.profile.CanSearch() {
		name := t.profile.DisplayName()
		if name == "" {
			return "✅ Verified! " + helpText, nil
		}
		return fmt.Sprintf("✅ Verified! Welcome back, %s. %s", name, helpText), nil
	}
	return "✅ Email verified!\n\n" + o.machine.Start(t.sess, t.profile, profileflow.EntryGreeting), nil
}

func (o *Orchestrator) handleFieldInput(ctx context.Context, t *turn) (string, error) {
	res, err := o.machine.HandleInput(ctx, t.sess, t.profile, t.intent.Value)
	if errors.Is(err, profileflow.ErrNotCollecting) {
		return o.casualReply(t), nil
	}
	if err != nil {
		return "", err
	}
	if res.Completed {
		slog.Info("Orchestrator.handleFieldInput: profile completed", "user", t.sess.UserID)
	}
	return res.Reply, nil
}

func (o *Orchestrator) handleSkip(t *turn) string {
	switch {
	case models.IsCollecting(t.sess.State()) || t.sess.FieldMenuOpen:
		return o.machine.Skip(t.sess, t.profile)
	case t.sess.PendingOTP != "":
		t.sess.ClearVerification()
		return "Okay, verification cancelled."
	default:
		return "There's nothing to skip right now. " + helpText
	}
}

func (o *Orchestrator) handleUpdateRequest(t *turn) (string, error) {
	switch {
	case t.intent.Field != "":
		return o.machine.StartFields(t.sess, t.profile, []models.FieldName{t.intent.Field})
	case t.profile.CanSearch():
		return o.machine.FieldMenu(t.sess, t.profile), nil
	default:
		return o.machine.Start(t.sess, t.profile, profileflow.EntryUpdateRequest), nil
	}
}

func (o *Orchestrator) casualReply(t *turn) string {
	switch t.intent.Subtype {
	case models.CasualGreeting:
		return o.greeting(t)
	case models.CasualGratitude:
		return "You're welcome! Happy to help anytime. 🙏"
	case models.CasualFarewell:
		return "Goodbye! Come back whenever you want to meet more Yatris."
	case models.CasualAcknowledgment:
		return "👍"
	default:
		return helpText
	}
}

// greeting starts the wizard for incomplete profiles and otherwise adapts to
// how engaged the member is.
func (o *Orchestrator) greeting(t *turn) string {
	if !t.profile.CanSearch() {
		if t.sess.ProfileSkipped {
			return fmt.Sprintf("Hi again! Your profile is %d%% complete. Say *update profile* whenever you're ready to finish it.",
				t.profile.CompletionPercentage())
		}
		return o.machine.Start(t.sess, t.profile, profileflow.EntryGreeting)
	}

	hello := "Hi"
	if name := t.profile.DisplayName(); name != "" {
		hello = "Hi " + name
	}
	level := memory.Engagement(t.mem.Metrics)
	switch {
	case level.AtLeast(memory.EngagementEngaged):
		if top := memory.TopInterests(t.mem, 2); len(top) > 0 {
			return fmt.Sprintf("%s, welcome back! Looking for more people in %s today?", hello, strings.Join(top, " or "))
		}
		return hello + ", welcome back! Who would you like to connect with today?"
	case level.AtLeast(memory.EngagementModerate):
		return hello + "! Good to see you again. Who are you looking for today?"
	default:
		return hello + "! 👋 " + helpText
	}
}

func searchQuery(it models.Intent, text string) string {
	if q := strings.TrimSpace(it.Query); q != "" {
		return q
	}
	return text
}

// admitSearch charges the daily quota. A denial discards the turn.
func (o *Orchestrator) admitSearch(ctx context.Context, t *turn) (string, bool) {
	d := o.admitter.CheckAdmission(ctx, t.sess.UserID, ratelimit.KindSearch)
	if d.Allowed {
		return "", true
	}
	slog.Info("Orchestrator.admitSearch: search denied", "user", t.sess.UserID, "reason", d.Reason, "retryAfter", d.RetryAfter)
	t.discard = true
	return d.Message(), false
}

func (o *Orchestrator) runSearch(ctx context.Context, t *turn, query string) (string, error) {
	if msg, ok := o.admitSearch(ctx, t); !ok {
		return msg, nil
	}
	res, err := o.engine.Search(ctx, query, []string{t.sess.UserID})
	if err != nil {
		return "", err
	}
	o.shown.Set(t.sess.UserID, res.IDs)
	if len(search.Terms(query)) > 0 {
		t.record.Query = query
		t.record.ResultIDs = res.IDs
		t.record.ResultCount = res.Total
	}
	if len(res.IDs) == 0 {
		return res.Text, nil
	}
	return fmt.Sprintf("🔍 Found %d members for \"%s\":\n\n%s", res.Total, query, res.Text), nil
}

func (o *Orchestrator) runFollowUp(ctx context.Context, t *turn) (string, error) {
	if !t.profile.CanSearch() {
		return o.machine.Start(t.sess, t.profile, profileflow.EntrySearchLocked), nil
	}
	// An AI classification may arrive without a live search to refine.
	if !t.mem.HasRecentSearch(t.now, o.resolver.Window()) {
		return o.runSearch(ctx, t, t.text)
	}

	res := o.resolver.Resolve(t.text, t.mem, t.profile)
	continues := res.Refinement == models.RefinementNextBatch || res.Refinement == models.RefinementExcludePrevious
	exclude := append([]string{t.sess.UserID}, res.ExcludeIDs...)
	if continues {
		if ids, ok := o.shown.Get(t.sess.UserID); ok {
			exclude = append(exclude, ids...)
		}
	}

	if msg, ok := o.admitSearch(ctx, t); !ok {
		return msg, nil
	}
	out, err := o.engine.Search(ctx, res.EnhancedQuery, exclude)
	if err != nil {
		return "", err
	}
	if continues {
		o.shown.Update(t.sess.UserID, func(old []string, _ bool) []string {
			return append(append([]string(nil), old...), out.IDs...)
		})
	} else {
		o.shown.Set(t.sess.UserID, out.IDs)
	}

	t.record.IsFollowUp = true
	t.record.Query = res.EnhancedQuery
	t.record.ResultIDs = out.IDs
	t.record.ResultCount = out.Total
	slog.Debug("Orchestrator.runFollowUp: refined", "user", t.sess.UserID, "refinement", res.Refinement,
		"query", res.EnhancedQuery, "excluded", len(exclude), "shown", len(out.IDs))

	if len(out.IDs) == 0 {
		return out.Text, nil
	}
	return followup.ReplyPrefix(res) + "\n\n" + out.Text, nil
}
