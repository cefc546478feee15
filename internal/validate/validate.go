// Package validate turns raw member replies into normalized profile field values.
//
// Every validator is a pure function of its input (date of birth additionally
// depends on the injected clock). Failures are reported as *Error values that
// carry a machine reason and a human explanation of what was wrong with the
// literal input, which the profile flow uses to build escalating retry prompts.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
)

// Reason codes for validation failures.
const (
	ReasonEmpty         = "empty"
	ReasonTooShort      = "too_short"
	ReasonTooLong       = "too_long"
	ReasonInvalidFormat = "invalid_format"
	ReasonInvalidChars  = "invalid_characters"
	ReasonOutOfRange    = "out_of_range"
	ReasonUnknownOption = "unknown_option"
	ReasonTooMany       = "too_many_selections"
	ReasonNotAnswer     = "not_an_answer"
)

// Error is a field validation failure.
type Error struct {
	Field  models.FieldName
	Input  string
	Reason string
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s (%s): %s", e.Field, e.Reason, e.Detail)
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func fail(field models.FieldName, input, reason, detail string) error {
	return &Error{Field: field, Input: input, Reason: reason, Detail: detail}
}

// Selection limits for multi-select fields.
const (
	MaxYatraImpact    = 3
	MaxCommunityAsks  = 3
	MaxCommunityGives = 5
)

// Age bounds for date of birth.
const (
	MinAge = 16
	MaxAge = 100
)

var (
	emailRegex       = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	dateRegex        = regexp.MustCompile(`^(\d{1,2})[-/.](\d{1,2})[-/.](\d{4})$`)
	phoneStripRegex  = regexp.MustCompile(`[\s\-().]`)
	phoneRegex       = regexp.MustCompile(`^\+?\d{10,15}$`)
	linkedInURLRegex = regexp.MustCompile(`(?i)^(?:https?://)?(?:[a-z]{2,3}\.)?linkedin\.com/(?:in|pub)/([A-Za-z0-9\-_%]{3,100})/?(?:[?#].*)?$`)
	linkedInBare     = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\-_]{2,99}$`)
	instagramURL     = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?instagram\.com/([A-Za-z0-9._]{1,30})/?(?:[?#].*)?$`)
	instagramHandle  = regexp.MustCompile(`^@?([A-Za-z0-9._]{1,30})$`)
	listSplitRegex   = regexp.MustCompile(`\s*(?:,|;|\band\b)\s*`)
	numberListRegex  = regexp.MustCompile(`^\d+(?:[\s,]+\d+)*$`)
)

// Validator validates wizard input. The zero value is not usable; use New.
type Validator struct {
	now func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock overrides the clock used for age checks.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate validates a reply to the wizard question for field. Gated fields
// return a boolean value for their yes/no question.
func (v *Validator) Validate(field models.FieldName, raw string) (models.FieldValue, error) {
	input := strings.TrimSpace(raw)
	spec, ok := models.LookupField(field)
	if !ok {
		return models.FieldValue{}, fmt.Errorf("%w: %s", models.ErrUnknownField, field)
	}
	if input == "" {
		return models.FieldValue{}, fail(field, raw, ReasonEmpty, "the reply was empty")
	}
	if spec.Gated {
		b, err := Gate(field, input)
		if err != nil {
			return models.FieldValue{}, err
		}
		return models.BoolValue(b), nil
	}

	var (
		text string
		list []string
		err  error
	)
	switch field {
	case models.FieldFullName:
		text, err = FullName(input)
	case models.FieldGender:
		text, err = selectOne(field, input, GenderOptions, genderAliases)
	case models.FieldProfessionalRole:
		text, err = selectOne(field, input, RoleOptions, nil)
	case models.FieldDateOfBirth:
		text, err = v.DateOfBirth(input)
	case models.FieldCountry:
		text, err = Country(input)
	case models.FieldAddress:
		text, err = Address(input)
	case models.FieldPhoneNumber:
		text, err = Phone(input)
	case models.FieldLinkedIn:
		text, err = LinkedIn(input)
	case models.FieldDomain:
		text, err = selectOne(field, input, DomainOptions, nil)
	case models.FieldYatraImpact:
		list, err = selectMany(field, input, YatraImpactOptions, MaxYatraImpact)
	case models.FieldCommunityAsks:
		list, err = selectMany(field, input, CommunityAskOptions, MaxCommunityAsks)
	case models.FieldCommunityGives:
		list, err = selectMany(field, input, CommunityGiveOptions, MaxCommunityGives)
	}
	if err != nil {
		return models.FieldValue{}, err
	}
	if spec.Kind == models.ValueKindList {
		return models.ListValue(list), nil
	}
	return models.TextValue(text), nil
}

// ValidateGatedInput validates the text collected after a "yes" on a gated field.
func (v *Validator) ValidateGatedInput(field models.FieldName, raw string) (models.FieldValue, error) {
	input := strings.TrimSpace(raw)
	switch field {
	case models.FieldAdditionalEmail:
		email, err := Email(input)
		if err != nil {
			return models.FieldValue{}, err
		}
		return models.TextValue(email), nil
	case models.FieldInstagram:
		url, err := Instagram(input)
		if err != nil {
			return models.FieldValue{}, err
		}
		return models.TextValue(url), nil
	}
	return models.FieldValue{}, fmt.Errorf("%w: %s is not a gated field", models.ErrUnknownField, field)
}

// Gate parses the answer to a gated yes/no question. "1" means yes, "2" means no.
func Gate(field models.FieldName, raw string) (bool, error) {
	switch normalizeWord(raw) {
	case "1":
		return true, nil
	case "2":
		return false, nil
	}
	if b, ok := ParseYesNo(raw); ok {
		return b, nil
	}
	return false, fail(field, raw, ReasonNotAnswer, "please answer yes or no")
}

// FullName validates and tidies a person's name.
func FullName(raw string) (string, error) {
	field := models.FieldFullName
	name := strings.Join(strings.Fields(raw), " ")
	if notNames[strings.ToLower(name)] {
		return "", fail(field, raw, ReasonInvalidFormat, fmt.Sprintf("%q does not look like a name", name))
	}
	letters := 0
	for _, r := range name {
		switch {
		case unicode.IsLetter(r):
			letters++
		case r == ' ' || r == '.' || r == '\'' || r == '-':
		case unicode.IsDigit(r):
			return "", fail(field, raw, ReasonInvalidChars, "names cannot contain numbers")
		default:
			return "", fail(field, raw, ReasonInvalidChars, fmt.Sprintf("the character %q is not allowed in a name", r))
		}
	}
	if letters < 2 {
		return "", fail(field, raw, ReasonTooShort, "a name needs at least 2 letters")
	}
	if len(name) > 100 {
		return "", fail(field, raw, ReasonTooLong, "a name can be at most 100 characters")
	}
	words := strings.Fields(name)
	for i, w := range words {
		rs := []rune(w)
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " "), nil
}

// DateOfBirth validates DD-MM-YYYY (also / or . separators) and normalizes to DD-MM-YYYY.
func (v *Validator) DateOfBirth(raw string) (string, error) {
	field := models.FieldDateOfBirth
	m := dateRegex.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", fail(field, raw, ReasonInvalidFormat, "the date must be written as DD-MM-YYYY")
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 {
		return "", fail(field, raw, ReasonOutOfRange, fmt.Sprintf("month %d does not exist", month))
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Day() != day || int(date.Month()) != month {
		return "", fail(field, raw, ReasonOutOfRange, fmt.Sprintf("day %d does not exist in month %d", day, month))
	}
	now := v.now().UTC()
	if date.After(now) {
		return "", fail(field, raw, ReasonOutOfRange, "the date is in the future")
	}
	age := now.Year() - year
	if now.YearDay() < date.YearDay() {
		age--
	}
	if age < MinAge {
		return "", fail(field, raw, ReasonOutOfRange, fmt.Sprintf("members must be at least %d years old", MinAge))
	}
	if age > MaxAge {
		return "", fail(field, raw, ReasonOutOfRange, fmt.Sprintf("the year %d is too far in the past", year))
	}
	return fmt.Sprintf("%02d-%02d-%04d", day, month, year), nil
}

// Country validates a country name, mapping common aliases.
func Country(raw string) (string, error) {
	field := models.FieldCountry
	s := normalizeWord(raw)
	if canonical, ok := countryAliases[s]; ok {
		return canonical, nil
	}
	if len(s) < 2 {
		return "", fail(field, raw, ReasonTooShort, "a country name needs at least 2 letters")
	}
	if len(s) > 56 {
		return "", fail(field, raw, ReasonTooLong, "that is too long for a country name")
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && r != ' ' && r != '-' && r != '.' && r != '\'' {
			return "", fail(field, raw, ReasonInvalidChars, "a country name should only contain letters")
		}
	}
	return titleCase(s), nil
}

// Address validates a free-text "City, State" location.
func Address(raw string) (string, error) {
	field := models.FieldAddress
	s := strings.Join(strings.Fields(raw), " ")
	s = strings.Trim(s, " ,.;")
	if len(s) < 3 {
		return "", fail(field, raw, ReasonTooShort, "the location needs at least 3 characters")
	}
	if len(s) > 200 {
		return "", fail(field, raw, ReasonTooLong, "the location can be at most 200 characters")
	}
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return "", fail(field, raw, ReasonInvalidFormat, "the location must name a city or state")
	}
	return s, nil
}

// Phone validates a phone number and normalizes it to +<country><number>.
// Ten-digit numbers without a country code are treated as Indian numbers.
func Phone(raw string) (string, error) {
	field := models.FieldPhoneNumber
	s := phoneStripRegex.ReplaceAllString(strings.TrimSpace(raw), "")
	if !phoneRegex.MatchString(s) {
		digits := 0
		for _, r := range s {
			if unicode.IsDigit(r) {
				digits++
			}
		}
		if digits != len(strings.TrimPrefix(s, "+")) {
			return "", fail(field, raw, ReasonInvalidChars, "a phone number may only contain digits and a leading +")
		}
		if digits < 10 {
			return "", fail(field, raw, ReasonTooShort, fmt.Sprintf("it has %d digits, at least 10 are needed", digits))
		}
		return "", fail(field, raw, ReasonTooLong, fmt.Sprintf("it has %d digits, at most 15 are allowed", digits))
	}
	if strings.HasPrefix(s, "+") {
		return s, nil
	}
	switch {
	case len(s) == 10:
		return "+91" + s, nil
	case len(s) == 11 && strings.HasPrefix(s, "0"):
		return "+91" + s[1:], nil
	default:
		return "+" + s, nil
	}
}

// LinkedIn validates a LinkedIn profile URL or bare username and returns the
// canonical https://linkedin.com/in/<slug> form. Normalization is idempotent.
func LinkedIn(raw string) (string, error) {
	field := models.FieldLinkedIn
	s := strings.TrimSpace(raw)
	if m := linkedInURLRegex.FindStringSubmatch(s); m != nil {
		return "https://linkedin.com/in/" + m[1], nil
	}
	if strings.Contains(strings.ToLower(s), "linkedin.com") {
		return "", fail(field, raw, ReasonInvalidFormat, "the link must point to a personal profile (linkedin.com/in/your-name)")
	}
	if strings.ContainsAny(s, " \t") {
		return "", fail(field, raw, ReasonInvalidChars, "a LinkedIn username cannot contain spaces")
	}
	if linkedInBare.MatchString(s) {
		return "https://linkedin.com/in/" + s, nil
	}
	return "", fail(field, raw, ReasonInvalidFormat, "that is neither a LinkedIn profile link nor a username")
}

// Instagram validates an Instagram profile URL or handle and returns the canonical URL.
func Instagram(raw string) (string, error) {
	field := models.FieldInstagram
	s := strings.TrimSpace(raw)
	if m := instagramURL.FindStringSubmatch(s); m != nil {
		return "https://instagram.com/" + m[1], nil
	}
	if strings.Contains(strings.ToLower(s), "instagram.com") {
		return "", fail(field, raw, ReasonInvalidFormat, "the link must point to a profile (instagram.com/your_handle)")
	}
	if m := instagramHandle.FindStringSubmatch(s); m != nil {
		return "https://instagram.com/" + m[1], nil
	}
	return "", fail(field, raw, ReasonInvalidFormat, "handles may only use letters, numbers, dots and underscores")
}

// Email validates an email address and lowercases it.
func Email(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if !emailRegex.MatchString(s) {
		detail := "an email looks like name@example.com"
		if !strings.Contains(s, "@") {
			detail = "the @ sign is missing"
		}
		return "", fail(models.FieldAdditionalEmail, raw, ReasonInvalidFormat, detail)
	}
	return s, nil
}

// selectOne resolves a single choice given as an option number, an exact name,
// an alias, or a unique prefix of at least three letters.
func selectOne(field models.FieldName, raw string, options []string, aliases map[string]string) (string, error) {
	s := normalizeWord(raw)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > len(options) {
			return "", fail(field, raw, ReasonOutOfRange, fmt.Sprintf("choose a number between 1 and %d", len(options)))
		}
		return options[n-1], nil
	}
	if canonical, ok := aliases[s]; ok {
		return canonical, nil
	}
	if opt, ok := matchOption(s, options); ok {
		return opt, nil
	}
	return "", fail(field, raw, ReasonUnknownOption, fmt.Sprintf("%q is not one of the listed options", strings.TrimSpace(raw)))
}

// selectMany resolves a comma separated list of option numbers or names.
func selectMany(field models.FieldName, raw string, options []string, max int) ([]string, error) {
	s := strings.TrimSpace(raw)
	var parts []string
	if numberListRegex.MatchString(s) {
		parts = strings.FieldsFunc(s, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
	} else {
		parts = listSplitRegex.Split(s, -1)
	}

	seen := make(map[string]bool)
	var out []string
	for _, part := range parts {
		p := normalizeWord(part)
		if p == "" {
			continue
		}
		var opt string
		if n, err := strconv.Atoi(p); err == nil {
			if n < 1 || n > len(options) {
				return nil, fail(field, raw, ReasonOutOfRange, fmt.Sprintf("%d is not between 1 and %d", n, len(options)))
			}
			opt = options[n-1]
		} else if match, ok := matchOption(p, options); ok {
			opt = match
		} else {
			return nil, fail(field, raw, ReasonUnknownOption, fmt.Sprintf("%q is not one of the listed options", strings.TrimSpace(part)))
		}
		if !seen[opt] {
			seen[opt] = true
			out = append(out, opt)
		}
	}
	if len(out) == 0 {
		return nil, fail(field, raw, ReasonEmpty, "no option was selected")
	}
	if len(out) > max {
		return nil, fail(field, raw, ReasonTooMany, fmt.Sprintf("%d options were selected, at most %d are allowed", len(out), max))
	}
	return out, nil
}

func matchOption(s string, options []string) (string, bool) {
	for _, opt := range options {
		if strings.EqualFold(opt, s) {
			return opt, true
		}
	}
	if len(s) < 3 {
		return "", false
	}
	var found string
	for _, opt := range options {
		if strings.HasPrefix(strings.ToLower(opt), s) {
			if found != "" {
				return "", false
			}
			found = opt
		}
	}
	return found, found != ""
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		rs := []rune(w)
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}

// ExtractEmail returns the first email address embedded in text.
func ExtractEmail(text string) (string, bool) {
	for _, tok := range strings.Fields(text) {
		tok = strings.Trim(tok, "<>()[],;:!?\"'")
		tok = strings.TrimSuffix(tok, ".")
		if emailRegex.MatchString(tok) {
			return strings.ToLower(tok), true
		}
	}
	return "", false
}
