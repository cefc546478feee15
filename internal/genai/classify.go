package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/intent"
)

// ErrInvalidClassification is returned when the model reply is not the expected JSON.
var ErrInvalidClassification = errors.New("invalid classification reply")

var _ intent.AIClassifier = (*Client)(nil)

const classifySystemPrompt = `You classify WhatsApp messages sent to the Jagriti Yatra community bot.
Members verify with email and a 6-digit code, complete a profile, then search for other members.

Answer with one JSON object and nothing else:
{"intent": "<type>", "confidence": <0..1>, "extractedTerms": ["..."]}

Intent types:
- email: the message contains an email address
- otp: the message is a 6-digit verification code
- skip: the member wants to stop or postpone the current question
- profile_update_request: the member wants to change their profile
- affirmative / negative: a plain yes or no
- numeric_list: only numbers, choosing from a list
- follow_up_search: refines or continues the previous search ("more", "any in Pune?", "someone senior")
- search: looking for members by skill, role, domain or place
- casual: greetings, thanks, chit-chat

extractedTerms holds the search keywords for search and follow_up_search, otherwise [].`

type classification struct {
	Intent         string   `json:"intent"`
	Confidence     float64  `json:"confidence"`
	ExtractedTerms []string `json:"extractedTerms"`
}

// ClassifyIntent implements intent.AIClassifier.
func (c *Client) ClassifyIntent(ctx context.Context, text string, hint intent.AIContext) (intent.AIResult, error) {
	reply, err := c.generate(ctx, "ClassifyIntent", buildClassifyMessages(text, hint))
	if err != nil {
		return intent.AIResult{}, err
	}
	parsed, err := parseClassification(reply)
	if err != nil {
		return intent.AIResult{}, err
	}
	return intent.AIResult{
		Type:           parsed.Intent,
		Confidence:     parsed.Confidence,
		ExtractedTerms: parsed.ExtractedTerms,
	}, nil
}

func buildClassifyMessages(text string, hint intent.AIContext) []openai.ChatCompletionMessageParamUnion {
	var b strings.Builder
	fmt.Fprintf(&b, "Conversation state: %s\n", hint.State)
	fmt.Fprintf(&b, "Verified: %t\n", hint.Authenticated)
	fmt.Fprintf(&b, "Profile complete: %t\n", hint.ProfileComplete)
	if hint.LastSearchQuery != "" {
		fmt.Fprintf(&b, "Previous search: %q\n", hint.LastSearchQuery)
	}
	if len(hint.RecentMessages) > 0 {
		b.WriteString("Recent messages:\n")
		for _, m := range hint.RecentMessages {
			fmt.Fprintf(&b, "- %s\n", m)
		}
	}
	return []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(classifySystemPrompt),
		openai.SystemMessage(b.String()),
		openai.UserMessage(text),
	}
}

// parseClassification accepts the JSON object optionally wrapped in a code fence.
func parseClassification(reply string) (classification, error) {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}
	var out classification
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return classification{}, fmt.Errorf("%w: %v", ErrInvalidClassification, err)
	}
	out.Intent = strings.ToLower(strings.TrimSpace(out.Intent))
	if out.Intent == "" {
		return classification{}, fmt.Errorf("%w: missing intent", ErrInvalidClassification)
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return classification{}, fmt.Errorf("%w: confidence %v out of range", ErrInvalidClassification, out.Confidence)
	}
	return out, nil
}
