package profileflow

import (
	"fmt"
	"strings"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/validate"
)

// MaxRetryTier is the last tier; higher attempt counts reuse it.
const MaxRetryTier = 4

// RetryTier maps an attempt count to a tier in [1, MaxRetryTier].
func RetryTier(attempts int) int {
	switch {
	case attempts < 1:
		return 1
	case attempts > MaxRetryTier:
		return MaxRetryTier
	default:
		return attempts
	}
}

// retryMessage builds the error reply for a failed validation. The detail
// grows with the tier.
func retryMessage(p FieldPrompt, prompt string, examples []string, input string, err error, attempts int) string {
	var b strings.Builder
	switch RetryTier(attempts) {
	case 1:
		fmt.Fprintf(&b, "That doesn't look like a valid %s.\n%s", p.DisplayName, prompt)
	case 2:
		fmt.Fprintf(&b, "That still doesn't look like a valid %s.\n%s", p.DisplayName, prompt)
		if len(examples) > 0 {
			fmt.Fprintf(&b, "\n\nFor example: %s", examples[0])
		}
	case 3:
		fmt.Fprintf(&b, "Let's try once more. %s", prompt)
		if len(examples) > 0 {
			b.WriteString("\n\nExamples:")
			for _, ex := range examples {
				fmt.Fprintf(&b, "\n• %s", ex)
			}
		}
	default:
		fmt.Fprintf(&b, "I couldn't accept %q as your %s.", strings.TrimSpace(input), p.DisplayName)
		if ve, ok := validate.AsError(err); ok && ve.Detail != "" {
			fmt.Fprintf(&b, "\nWhat's wrong: %s.", ve.Detail)
		}
		fmt.Fprintf(&b, "\n\n%s", prompt)
		if len(examples) > 0 {
			b.WriteString("\n\nExamples:")
			for _, ex := range examples {
				fmt.Fprintf(&b, "\n• %s", ex)
			}
		}
		b.WriteString("\n\nYou can also type *skip* to finish your profile later.")
	}
	return b.String()
}
