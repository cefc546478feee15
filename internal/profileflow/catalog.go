package profileflow

import (
	"fmt"
	"strings"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/validate"
)

// FieldPrompt is the display data for one field.
type FieldPrompt struct {
	DisplayName string
	Prompt      string
	Examples    []string

	// InputPrompt and InputExamples apply to the text step of gated fields.
	InputPrompt   string
	InputExamples []string
}

// Catalog maps catalog fields to their prompts.
type Catalog map[models.FieldName]FieldPrompt

// DefaultCatalog returns the built-in prompts.
func DefaultCatalog() Catalog {
	return Catalog{
		models.FieldFullName: {
			DisplayName: "Full Name",
			Prompt:      "What is your full name?",
			Examples:    []string{"Priya Sharma", "Rahul Kumar Verma", "Anita D'Souza"},
		},
		models.FieldGender: {
			DisplayName: "Gender",
			Prompt:      "What is your gender?\n" + numbered(validate.GenderOptions),
			Examples:    []string{"1", "Female", "Others"},
		},
		models.FieldProfessionalRole: {
			DisplayName: "Professional Role",
			Prompt:      "What best describes your current role?\n" + numbered(validate.RoleOptions),
			Examples:    []string{"1", "Working Professional", "Student"},
		},
		models.FieldDateOfBirth: {
			DisplayName: "Date of Birth",
			Prompt:      "What is your date of birth? (DD-MM-YYYY)",
			Examples:    []string{"15-08-1995", "01/12/1988", "23.04.2001"},
		},
		models.FieldCountry: {
			DisplayName: "Country",
			Prompt:      "Which country do you live in?",
			Examples:    []string{"India", "United States", "Nepal"},
		},
		models.FieldAddress: {
			DisplayName: "City/Location",
			Prompt:      "Which city and state are you based in?",
			Examples:    []string{"Pune, Maharashtra", "Madurai, Tamil Nadu", "Gaya, Bihar"},
		},
		models.FieldPhoneNumber: {
			DisplayName: "Phone Number",
			Prompt:      "What is your phone number? Add the country code if you are outside India.",
			Examples:    []string{"9876543210", "+91 98765 43210", "+1 415 555 0123"},
		},
		models.FieldAdditionalEmail: {
			DisplayName:   "Additional Email",
			Prompt:        "Do you have another email address you would like to add?\n1. Yes\n2. No",
			Examples:      []string{"yes", "no", "2"},
			InputPrompt:   "Please share your additional email address.",
			InputExamples: []string{"priya.work@company.com", "rahul@startup.in"},
		},
		models.FieldLinkedIn: {
			DisplayName: "LinkedIn Profile",
			Prompt:      "Please share your LinkedIn profile link or username.",
			Examples:    []string{"https://linkedin.com/in/priyasharma", "linkedin.com/in/rahul-verma-01", "priyasharma"},
		},
		models.FieldInstagram: {
			DisplayName:   "Instagram Profile",
			Prompt:        "Would you like to add your Instagram profile?\n1. Yes\n2. No",
			Examples:      []string{"yes", "no", "1"},
			InputPrompt:   "Please share your Instagram handle or profile link.",
			InputExamples: []string{"@priya.travels", "https://instagram.com/rahul_builds"},
		},
		models.FieldDomain: {
			DisplayName: "Domain",
			Prompt:      "Which domain do you work in?\n" + numbered(validate.DomainOptions),
			Examples:    []string{"1", "Healthcare", "Agriculture"},
		},
		models.FieldYatraImpact: {
			DisplayName: "Yatra Impact",
			Prompt: fmt.Sprintf("How did the Yatra impact you? Pick up to %d, separated by commas.\n%s",
				validate.MaxYatraImpact, numbered(validate.YatraImpactOptions)),
			Examples: []string{"1, 2", "3", "Found a mentor, Expanded professional network"},
		},
		models.FieldCommunityAsks: {
			DisplayName: "Community Asks",
			Prompt: fmt.Sprintf("What would you like from the community? Pick up to %d.\n%s",
				validate.MaxCommunityAsks, numbered(validate.CommunityAskOptions)),
			Examples: []string{"1, 3", "2", "Mentorship & Guidance, Market Access"},
		},
		models.FieldCommunityGives: {
			DisplayName: "Community Gives",
			Prompt: fmt.Sprintf("What can you offer the community? Pick up to %d.\n%s",
				validate.MaxCommunityGives, numbered(validate.CommunityGiveOptions)),
			Examples: []string{"1, 4", "2 3 8", "Mentorship, Domain Knowledge"},
		},
	}
}

// Lookup returns the prompt for field, falling back to the raw field name.
func (c Catalog) Lookup(field models.FieldName) FieldPrompt {
	if p, ok := c[field]; ok {
		return p
	}
	return FieldPrompt{DisplayName: string(field), Prompt: fmt.Sprintf("Please share your %s.", field)}
}

// promptFor returns the question for the current state.
func (c Catalog) promptFor(state models.WaitingFor) string {
	switch s := state.(type) {
	case models.UpdatingField:
		return c.Lookup(s.Field).Prompt
	case models.AdditionalEmailInput:
		return c.Lookup(models.FieldAdditionalEmail).InputPrompt
	case models.InstagramURLInput:
		return c.Lookup(models.FieldInstagram).InputPrompt
	}
	return ""
}

func numbered(options []string) string {
	var b strings.Builder
	for i, opt := range options {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, opt)
	}
	return b.String()
}
