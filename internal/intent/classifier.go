// Package intent classifies inbound messages with an ordered, first-match-wins
// rule cascade that is aware of the member's session state and memory. An
// optional AI classifier may override the structural and lexical steps but
// never the profile-field pre-emption or the skip keywords.
package intent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/followup"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/validate"
)

// Defaults for the AI override path.
const (
	DefaultAITimeout       = 10 * time.Second
	DefaultMinAIConfidence = 0.7
)

// AIContext is the state summary handed to the AI classifier.
type AIContext struct {
	State           models.WaitingKind
	Authenticated   bool
	ProfileComplete bool
	LastSearchQuery string
	RecentMessages  []string
}

// AIResult is a classification proposed by the AI classifier. Type may be any
// string; unknown values are ignored.
type AIResult struct {
	Type           string
	Confidence     float64
	ExtractedTerms []string
}

// AIClassifier is an optional external classifier.
type AIClassifier interface {
	ClassifyIntent(ctx context.Context, text string, hint AIContext) (AIResult, error)
}

// Classifier runs the rule cascade.
type Classifier struct {
	resolver        *followup.Resolver
	ai              AIClassifier
	aiTimeout       time.Duration
	minAIConfidence float64
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithAI enables the AI override.
func WithAI(ai AIClassifier) Option {
	return func(c *Classifier) { c.ai = ai }
}

// WithAITimeout bounds each AI call.
func WithAITimeout(d time.Duration) Option {
	return func(c *Classifier) { c.aiTimeout = d }
}

// WithMinAIConfidence sets the confidence an AI result needs to be used.
func WithMinAIConfidence(v float64) Option {
	return func(c *Classifier) { c.minAIConfidence = v }
}

// WithResolver sets the follow-up resolver.
func WithResolver(r *followup.Resolver) Option {
	return func(c *Classifier) { c.resolver = r }
}

// NewClassifier creates a Classifier.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		resolver:        followup.NewResolver(),
		aiTimeout:       DefaultAITimeout,
		minAIConfidence: DefaultMinAIConfidence,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Input bundles what classification depends on. Now is part of the input so
// that the rule path stays a pure function.
type Input struct {
	Message string
	Session *models.Session
	Memory  *models.Memory
	Profile *models.Profile
	Now     time.Time
}

// Classify runs the full cascade, consulting the AI classifier when configured.
func (c *Classifier) Classify(ctx context.Context, in Input) models.Intent {
	if it, ok := c.preempt(in); ok {
		return it
	}
	if c.ai != nil {
		if it, ok := c.classifyAI(ctx, in); ok {
			return it
		}
	}
	return c.cascade(in)
}

// ClassifyRules runs the rule cascade only.
func (c *Classifier) ClassifyRules(in Input) models.Intent {
	if it, ok := c.preempt(in); ok {
		return it
	}
	return c.cascade(in)
}

// preempt covers field input during collection and the skip keywords.
func (c *Classifier) preempt(in Input) (models.Intent, bool) {
	text := normalizeText(in.Message)
	skipConf, isSkip := matchSkip(text)

	if in.Session != nil {
		if field, ok := models.CollectingField(in.Session.State()); ok && !isSkip {
			return models.Intent{
				Type:       models.IntentProfileFieldInput,
				Confidence: models.ConfidenceHigh,
				Field:      field,
				Value:      strings.TrimSpace(in.Message),
				Source:     models.SourceRules,
			}, true
		}
	}
	if isSkip {
		return models.Intent{Type: models.IntentSkip, Confidence: skipConf, Source: models.SourceRules}, true
	}
	return models.Intent{}, false
}

func (c *Classifier) cascade(in Input) models.Intent {
	raw := strings.TrimSpace(in.Message)
	text := normalizeText(raw)

	if email, ok := validate.ExtractEmail(raw); ok {
		return models.Intent{Type: models.IntentEmail, Confidence: models.ConfidenceHigh, Value: email, Source: models.SourceRules}
	}
	if otpRegex.MatchString(text) {
		return models.Intent{Type: models.IntentOTP, Confidence: models.ConfidenceHigh, Value: text, Source: models.SourceRules}
	}

	if it, ok := profileUpdateRequest(text); ok {
		return it
	}

	if yes, ok := validate.ParseYesNo(text); ok {
		t := models.IntentNegative
		if yes {
			t = models.IntentAffirmative
		}
		return models.Intent{Type: t, Confidence: models.ConfidenceHigh, Source: models.SourceRules}
	}

	if numericListRegex.MatchString(text) {
		return models.Intent{Type: models.IntentNumericList, Confidence: models.ConfidenceHigh, Numbers: parseNumbers(text), Source: models.SourceRules}
	}

	subtype, isCasual := casualSubtype(text)

	// Pure chatter ("thanks") right after a search is not a request for more results.
	if !isCasual && c.resolver.IsFollowUp(raw, in.Memory, in.Now) {
		res := c.resolver.Resolve(raw, in.Memory, in.Profile)
		conf := models.ConfidenceMedium
		if followup.HasCue(raw) {
			conf = models.ConfidenceHigh
		}
		return models.Intent{
			Type:       models.IntentFollowUpSearch,
			Confidence: conf,
			Refinement: res.Refinement,
			Query:      res.EnhancedQuery,
			Source:     models.SourceRules,
		}
	}

	if isCasual {
		return models.Intent{Type: models.IntentCasual, Confidence: models.ConfidenceHigh, Subtype: subtype, Source: models.SourceRules}
	}

	if it, ok := detectSearch(raw, text); ok {
		return it
	}

	return models.Intent{Type: models.IntentCasual, Confidence: models.ConfidenceLow, Subtype: models.CasualGeneric, Source: models.SourceRules}
}

func profileUpdateRequest(text string) (models.Intent, bool) {
	clean := stripPunct(text)
	hasVerb := updateVerbRegex.MatchString(clean)
	hasNoun := profileNounRegex.MatchString(clean)
	field, hasField := mentionedField(clean)

	switch {
	case hasVerb && hasNoun:
		it := models.Intent{Type: models.IntentProfileUpdateRequest, Confidence: models.ConfidenceHigh, Source: models.SourceRules}
		if hasField {
			it.Field = field
		}
		return it, true
	case hasVerb && hasField && strings.Contains(" "+clean+" ", " my "):
		return models.Intent{Type: models.IntentProfileUpdateRequest, Confidence: models.ConfidenceMedium, Field: field, Source: models.SourceRules}, true
	case hasField && profileWordRegex.MatchString(clean):
		return models.Intent{Type: models.IntentProfileUpdateRequest, Confidence: models.ConfidenceMedium, Field: field, Source: models.SourceRules}, true
	}
	return models.Intent{}, false
}

func detectSearch(raw, text string) (models.Intent, bool) {
	if profileURLRegex.MatchString(raw) {
		return models.Intent{}, false
	}
	keywords := searchKeywords(text)
	pattern := matchesSearchPattern(text)

	var conf models.Confidence
	switch {
	case pattern && len(keywords) >= 2:
		conf = models.ConfidenceHigh
	case pattern || len(keywords) >= 2:
		conf = models.ConfidenceMedium
	case len(keywords) == 1:
		conf = models.ConfidenceLow
	default:
		return models.Intent{}, false
	}
	return models.Intent{
		Type:       models.IntentSearch,
		Confidence: conf,
		Query:      extractQuery(text),
		Keywords:   keywords,
		Source:     models.SourceRules,
	}, true
}

// callBudget is the AI timeout, capped at half of what remains of the turn so
// a slow AI still leaves time for the reply to be built and saved.
func (c *Classifier) callBudget(ctx context.Context) time.Duration {
	budget := c.aiTimeout
	if dl, ok := ctx.Deadline(); ok {
		if half := time.Until(dl) / 2; half < budget {
			budget = half
		}
	}
	return budget
}

func (c *Classifier) classifyAI(ctx context.Context, in Input) (models.Intent, bool) {
	hint := AIContext{}
	if in.Session != nil {
		hint.State = in.Session.State().Kind()
		hint.Authenticated = in.Session.Authenticated
	}
	hint.ProfileComplete = in.Profile.CanSearch()
	if in.Memory != nil {
		hint.LastSearchQuery = in.Memory.CurrentContext.LastSearchQuery
		turns := in.Memory.Turns
		if len(turns) > 3 {
			turns = turns[len(turns)-3:]
		}
		for _, t := range turns {
			hint.RecentMessages = append(hint.RecentMessages, t.Message)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.callBudget(ctx))
	defer cancel()

	res, err := c.ai.ClassifyIntent(ctx, in.Message, hint)
	if err != nil {
		slog.Warn("Classifier.classifyAI: falling back to rules", "error", err)
		return models.Intent{}, false
	}
	t, ok := models.ParseIntentType(res.Type)
	if !ok {
		slog.Debug("Classifier.classifyAI: unknown intent, falling back", "type", res.Type)
		return models.Intent{}, false
	}
	if res.Confidence < c.minAIConfidence {
		slog.Debug("Classifier.classifyAI: low confidence, falling back", "type", t, "confidence", res.Confidence)
		return models.Intent{}, false
	}

	it := models.Intent{Type: t, Confidence: models.ConfidenceHigh, Keywords: res.ExtractedTerms, Source: models.SourceAI}
	if res.Confidence < 0.85 {
		it.Confidence = models.ConfidenceMedium
	}
	raw := strings.TrimSpace(in.Message)
	text := normalizeText(raw)

	// Only accept types whose payload can be recovered from the message itself.
	switch t {
	case models.IntentEmail:
		email, ok := validate.ExtractEmail(raw)
		if !ok {
			return models.Intent{}, false
		}
		it.Value = email
	case models.IntentOTP:
		if !otpRegex.MatchString(text) {
			return models.Intent{}, false
		}
		it.Value = text
	case models.IntentNumericList:
		nums := parseNumbers(text)
		if len(nums) == 0 {
			return models.Intent{}, false
		}
		it.Numbers = nums
	case models.IntentFollowUpSearch:
		if !in.Memory.HasRecentSearch(in.Now, c.resolver.Window()) {
			return models.Intent{}, false
		}
		res := c.resolver.Resolve(raw, in.Memory, in.Profile)
		it.Refinement = res.Refinement
		it.Query = res.EnhancedQuery
	case models.IntentSearch:
		if profileURLRegex.MatchString(raw) {
			return models.Intent{}, false
		}
		it.Query = extractQuery(text)
		if len(it.Keywords) == 0 {
			it.Keywords = searchKeywords(text)
		}
	case models.IntentCasual:
		subtype, ok := casualSubtype(text)
		if !ok {
			subtype = models.CasualGeneric
		}
		it.Subtype = subtype
	case models.IntentProfileUpdateRequest:
		if field, ok := mentionedField(text); ok {
			it.Field = field
		}
	case models.IntentProfileFieldInput:
		// Field input only exists while collecting, which preempt already handled.
		return models.Intent{}, false
	}
	return it, true
}
