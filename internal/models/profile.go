package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// FieldName identifies one collectable field of the enhanced profile.
type FieldName string

// Enhanced profile fields, in the order the completion wizard asks for them.
const (
	FieldFullName         FieldName = "fullName"
	FieldGender           FieldName = "gender"
	FieldProfessionalRole FieldName = "professionalRole"
	FieldDateOfBirth      FieldName = "dateOfBirth"
	FieldCountry          FieldName = "country"
	FieldAddress          FieldName = "address"
	FieldPhoneNumber      FieldName = "phoneNumber"
	FieldAdditionalEmail  FieldName = "additionalEmail"
	FieldLinkedIn         FieldName = "linkedInProfile"
	FieldInstagram        FieldName = "instagramProfile"
	FieldDomain           FieldName = "domain"
	FieldYatraImpact      FieldName = "yatraImpact"
	FieldCommunityAsks    FieldName = "communityAsks"
	FieldCommunityGives   FieldName = "communityGives"
)

// ValueKind describes the shape of a validated field value.
type ValueKind string

const (
	ValueKindText ValueKind = "text"
	ValueKindList ValueKind = "list"
	ValueKindBool ValueKind = "bool"
)

// FieldSpec describes a catalog entry.
type FieldSpec struct {
	Name     FieldName
	Kind     ValueKind
	Required bool
	// Gated fields are first asked as a yes/no question; a "yes" leads to a
	// separate input step that collects the actual text value.
	Gated bool
}

// FieldCatalog is the fixed, ordered set of collectable fields.
var FieldCatalog = []FieldSpec{
	{Name: FieldFullName, Kind: ValueKindText, Required: true},
	{Name: FieldGender, Kind: ValueKindText, Required: true},
	{Name: FieldProfessionalRole, Kind: ValueKindText, Required: true},
	{Name: FieldDateOfBirth, Kind: ValueKindText, Required: true},
	{Name: FieldCountry, Kind: ValueKindText, Required: true},
	{Name: FieldAddress, Kind: ValueKindText, Required: true},
	{Name: FieldPhoneNumber, Kind: ValueKindText, Required: true},
	{Name: FieldAdditionalEmail, Kind: ValueKindBool, Gated: true},
	{Name: FieldLinkedIn, Kind: ValueKindText, Required: true},
	{Name: FieldInstagram, Kind: ValueKindBool, Gated: true},
	{Name: FieldDomain, Kind: ValueKindText, Required: true},
	{Name: FieldYatraImpact, Kind: ValueKindList, Required: true},
	{Name: FieldCommunityAsks, Kind: ValueKindList, Required: true},
	{Name: FieldCommunityGives, Kind: ValueKindList, Required: true},
}

// ErrUnknownField is returned when a field name is not part of the catalog.
var ErrUnknownField = errors.New("unknown profile field")

// ErrValueKindMismatch is returned when a value does not fit the target field.
var ErrValueKindMismatch = errors.New("field value kind mismatch")

// ErrEmailMismatch is returned when a member verifies an email other than the
// one registered on their profile.
var ErrEmailMismatch = errors.New("email does not match registered email")

// LookupField returns the catalog entry for name.
func LookupField(name FieldName) (FieldSpec, bool) {
	for _, spec := range FieldCatalog {
		if spec.Name == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

// IsKnownField reports whether name is part of the catalog.
func IsKnownField(name FieldName) bool {
	_, ok := LookupField(name)
	return ok
}

// RequiredFieldCount returns the number of required catalog fields.
func RequiredFieldCount() int {
	n := 0
	for _, spec := range FieldCatalog {
		if spec.Required {
			n++
		}
	}
	return n
}

// FieldValue is a validated, normalized value for one field.
type FieldValue struct {
	Kind ValueKind `json:"kind"`
	Text string    `json:"text,omitempty"`
	List []string  `json:"list,omitempty"`
	Bool bool      `json:"bool,omitempty"`
}

// TextValue builds a text field value.
func TextValue(s string) FieldValue { return FieldValue{Kind: ValueKindText, Text: s} }

// ListValue builds a list field value.
func ListValue(items []string) FieldValue {
	return FieldValue{Kind: ValueKindList, List: append([]string(nil), items...)}
}

// BoolValue builds a boolean field value.
func BoolValue(b bool) FieldValue { return FieldValue{Kind: ValueKindBool, Bool: b} }

// String renders the value for display.
func (v FieldValue) String() string {
	switch v.Kind {
	case ValueKindList:
		return strings.Join(v.List, ", ")
	case ValueKindBool:
		if v.Bool {
			return "Yes"
		}
		return "No"
	default:
		return v.Text
	}
}

// BasicProfile holds the identity data known before the wizard runs.
type BasicProfile struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Verified bool   `json:"verified"`
}

// EnhancedProfile holds the fields collected by the completion wizard.
type EnhancedProfile struct {
	FullName         string   `json:"fullName,omitempty"`
	Gender           string   `json:"gender,omitempty"`
	ProfessionalRole string   `json:"professionalRole,omitempty"`
	DateOfBirth      string   `json:"dateOfBirth,omitempty"`
	Country          string   `json:"country,omitempty"`
	Address          string   `json:"address,omitempty"`
	PhoneNumber      string   `json:"phoneNumber,omitempty"`
	LinkedInProfile  string   `json:"linkedInProfile,omitempty"`
	Domain           string   `json:"domain,omitempty"`
	YatraImpact      []string `json:"yatraImpact,omitempty"`
	CommunityAsks    []string `json:"communityAsks,omitempty"`
	CommunityGives   []string `json:"communityGives,omitempty"`

	HasAdditionalEmail *bool  `json:"hasAdditionalEmail,omitempty"`
	AdditionalEmail    string `json:"additionalEmail,omitempty"`
	HasInstagram       *bool  `json:"hasInstagram,omitempty"`
	InstagramProfile   string `json:"instagramProfile,omitempty"`

	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Profile is the persisted member record keyed by the sender identifier.
type Profile struct {
	UserID    string          `json:"userId"`
	Basic     BasicProfile    `json:"basic"`
	Enhanced  EnhancedProfile `json:"enhanced"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.Enhanced.YatraImpact = append([]string(nil), p.Enhanced.YatraImpact...)
	c.Enhanced.CommunityAsks = append([]string(nil), p.Enhanced.CommunityAsks...)
	c.Enhanced.CommunityGives = append([]string(nil), p.Enhanced.CommunityGives...)
	if p.Enhanced.HasAdditionalEmail != nil {
		b := *p.Enhanced.HasAdditionalEmail
		c.Enhanced.HasAdditionalEmail = &b
	}
	if p.Enhanced.HasInstagram != nil {
		b := *p.Enhanced.HasInstagram
		c.Enhanced.HasInstagram = &b
	}
	if p.Enhanced.CompletedAt != nil {
		t := *p.Enhanced.CompletedAt
		c.Enhanced.CompletedAt = &t
	}
	return &c
}

// IsFieldFilled reports whether a field already holds a value.
// Gated fields count as filled once the yes/no question was answered.
func (p *Profile) IsFieldFilled(name FieldName) bool {
	if p == nil {
		return false
	}
	e := &p.Enhanced
	switch name {
	case FieldFullName:
		return e.FullName != ""
	case FieldGender:
		return e.Gender != ""
	case FieldProfessionalRole:
		return e.ProfessionalRole != ""
	case FieldDateOfBirth:
		return e.DateOfBirth != ""
	case FieldCountry:
		return e.Country != ""
	case FieldAddress:
		return e.Address != ""
	case FieldPhoneNumber:
		return e.PhoneNumber != ""
	case FieldLinkedIn:
		return e.LinkedInProfile != ""
	case FieldDomain:
		return e.Domain != ""
	case FieldYatraImpact:
		return len(e.YatraImpact) > 0
	case FieldCommunityAsks:
		return len(e.CommunityAsks) > 0
	case FieldCommunityGives:
		return len(e.CommunityGives) > 0
	case FieldAdditionalEmail:
		return e.HasAdditionalEmail != nil && (!*e.HasAdditionalEmail || e.AdditionalEmail != "")
	case FieldInstagram:
		return e.HasInstagram != nil && (!*e.HasInstagram || e.InstagramProfile != "")
	}
	return false
}

// IncompleteFields lists the unfilled catalog fields in wizard order.
func (p *Profile) IncompleteFields() []FieldName {
	var out []FieldName
	for _, spec := range FieldCatalog {
		if !p.IsFieldFilled(spec.Name) {
			out = append(out, spec.Name)
		}
	}
	return out
}

// MissingRequiredFields lists the unfilled required fields.
func (p *Profile) MissingRequiredFields() []FieldName {
	var out []FieldName
	for _, spec := range FieldCatalog {
		if spec.Required && !p.IsFieldFilled(spec.Name) {
			out = append(out, spec.Name)
		}
	}
	return out
}

// IsComplete reports whether every required field is filled.
func (p *Profile) IsComplete() bool {
	return len(p.MissingRequiredFields()) == 0
}

// CanSearch reports whether the member may use search.
func (p *Profile) CanSearch() bool {
	return p != nil && p.Enhanced.Completed
}

// CompletionPercentage returns the share of required fields currently populated.
func (p *Profile) CompletionPercentage() int {
	total := RequiredFieldCount()
	if total == 0 {
		return 100
	}
	filled := total - len(p.MissingRequiredFields())
	return filled * 100 / total
}

// FieldValue returns the stored value for name.
func (p *Profile) FieldValue(name FieldName) (FieldValue, error) {
	e := &p.Enhanced
	switch name {
	case FieldFullName:
		return TextValue(e.FullName), nil
	case FieldGender:
		return TextValue(e.Gender), nil
	case FieldProfessionalRole:
		return TextValue(e.ProfessionalRole), nil
	case FieldDateOfBirth:
		return TextValue(e.DateOfBirth), nil
	case FieldCountry:
		return TextValue(e.Country), nil
	case FieldAddress:
		return TextValue(e.Address), nil
	case FieldPhoneNumber:
		return TextValue(e.PhoneNumber), nil
	case FieldLinkedIn:
		return TextValue(e.LinkedInProfile), nil
	case FieldDomain:
		return TextValue(e.Domain), nil
	case FieldYatraImpact:
		return ListValue(e.YatraImpact), nil
	case FieldCommunityAsks:
		return ListValue(e.CommunityAsks), nil
	case FieldCommunityGives:
		return ListValue(e.CommunityGives), nil
	case FieldAdditionalEmail:
		return TextValue(e.AdditionalEmail), nil
	case FieldInstagram:
		return TextValue(e.InstagramProfile), nil
	}
	return FieldValue{}, fmt.Errorf("%w: %s", ErrUnknownField, name)
}

// ApplyField writes a validated value into the profile.
// A boolean value on a gated field records the answer to the gate question;
// a text value on a gated field stores the collected input.
func (p *Profile) ApplyField(name FieldName, v FieldValue) error {
	spec, ok := LookupField(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	e := &p.Enhanced

	if spec.Gated {
		switch v.Kind {
		case ValueKindBool:
			b := v.Bool
			if name == FieldAdditionalEmail {
				e.HasAdditionalEmail = &b
				if !b {
					e.AdditionalEmail = ""
				}
			} else {
				e.HasInstagram = &b
				if !b {
					e.InstagramProfile = ""
				}
			}
			return nil
		case ValueKindText:
			yes := true
			if name == FieldAdditionalEmail {
				e.HasAdditionalEmail = &yes
				e.AdditionalEmail = v.Text
			} else {
				e.HasInstagram = &yes
				e.InstagramProfile = v.Text
			}
			return nil
		}
		return fmt.Errorf("%w: %s expects bool or text, got %s", ErrValueKindMismatch, name, v.Kind)
	}

	if v.Kind != spec.Kind {
		return fmt.Errorf("%w: %s expects %s, got %s", ErrValueKindMismatch, name, spec.Kind, v.Kind)
	}
	switch name {
	case FieldFullName:
		e.FullName = v.Text
	case FieldGender:
		e.Gender = v.Text
	case FieldProfessionalRole:
		e.ProfessionalRole = v.Text
	case FieldDateOfBirth:
		e.DateOfBirth = v.Text
	case FieldCountry:
		e.Country = v.Text
	case FieldAddress:
		e.Address = v.Text
	case FieldPhoneNumber:
		e.PhoneNumber = v.Text
	case FieldLinkedIn:
		e.LinkedInProfile = v.Text
	case FieldDomain:
		e.Domain = v.Text
	case FieldYatraImpact:
		e.YatraImpact = append([]string(nil), v.List...)
	case FieldCommunityAsks:
		e.CommunityAsks = append([]string(nil), v.List...)
	case FieldCommunityGives:
		e.CommunityGives = append([]string(nil), v.List...)
	}
	return nil
}

// MarkCompleted sets the completed flag. It refuses when a required field is missing.
func (p *Profile) MarkCompleted(at time.Time) error {
	if missing := p.MissingRequiredFields(); len(missing) > 0 {
		return fmt.Errorf("profile %s has %d missing required fields", p.UserID, len(missing))
	}
	p.Enhanced.Completed = true
	p.Enhanced.CompletedAt = &at
	return nil
}

// MatchesEmail reports whether email may be used to verify p. A profile
// without a registered email accepts any address.
func (p *Profile) MatchesEmail(email string) bool {
	if p == nil || p.Basic.Email == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(p.Basic.Email), strings.TrimSpace(email))
}

// MarkVerified records a verified email.
func (p *Profile) MarkVerified(email string) error {
	if !p.MatchesEmail(email) {
		return ErrEmailMismatch
	}
	if p.Basic.Email == "" {
		p.Basic.Email = strings.TrimSpace(email)
	}
	p.Basic.Verified = true
	return nil
}

// City returns the first component of the address, used as the member's location.
func (p *Profile) City() string {
	if p == nil {
		return ""
	}
	city, _, _ := strings.Cut(p.Enhanced.Address, ",")
	return strings.TrimSpace(city)
}

// DisplayName prefers the collected full name over the basic name.
func (p *Profile) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.Enhanced.FullName != "" {
		return p.Enhanced.FullName
	}
	return p.Basic.Name
}
