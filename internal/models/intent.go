package models

// IntentType is the closed enumeration of classified purposes.
type IntentType string

const (
	IntentEmail                IntentType = "email"
	IntentOTP                  IntentType = "otp"
	IntentSkip                 IntentType = "skip"
	IntentProfileUpdateRequest IntentType = "profile_update_request"
	IntentAffirmative          IntentType = "affirmative"
	IntentNegative             IntentType = "negative"
	IntentNumericList          IntentType = "numeric_list"
	IntentFollowUpSearch       IntentType = "follow_up_search"
	IntentCasual               IntentType = "casual"
	IntentSearch               IntentType = "search"
	IntentProfileFieldInput    IntentType = "profile_field_input"
)

// ParseIntentType maps a string onto a known intent type.
func ParseIntentType(s string) (IntentType, bool) {
	switch t := IntentType(s); t {
	case IntentEmail, IntentOTP, IntentSkip, IntentProfileUpdateRequest,
		IntentAffirmative, IntentNegative, IntentNumericList, IntentFollowUpSearch,
		IntentCasual, IntentSearch, IntentProfileFieldInput:
		return t, true
	}
	return "", false
}

// Confidence is a coarse certainty level.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// CasualSubtype refines a casual intent.
type CasualSubtype string

const (
	CasualGreeting       CasualSubtype = "greeting"
	CasualGratitude      CasualSubtype = "gratitude"
	CasualFarewell       CasualSubtype = "farewell"
	CasualAcknowledgment CasualSubtype = "acknowledgment"
	CasualGeneric        CasualSubtype = "generic"
)

// RefinementType is the category of adjustment applied to a follow-up query.
type RefinementType string

const (
	RefinementSenior          RefinementType = "seniority_senior"
	RefinementJunior          RefinementType = "seniority_junior"
	RefinementStartup         RefinementType = "startup"
	RefinementSameCity        RefinementType = "same_city"
	RefinementLocation        RefinementType = "location"
	RefinementExcludePrevious RefinementType = "exclude_previous"
	RefinementNextBatch       RefinementType = "next_batch"
)

// BlockReason explains why an intent may not be acted on.
type BlockReason string

const (
	BlockProfileUpdateInProgress BlockReason = "profile_update_in_progress"
	BlockProfileIncomplete       BlockReason = "profile_incomplete"
)

// IntentSource records which path produced an intent.
type IntentSource string

const (
	SourceRules IntentSource = "rules"
	SourceAI    IntentSource = "ai"
)

// Intent is the classified purpose of one inbound message.
type Intent struct {
	Type       IntentType     `json:"type"`
	Confidence Confidence     `json:"confidence"`
	Field      FieldName      `json:"field,omitempty"`
	Value      string         `json:"value,omitempty"`
	Subtype    CasualSubtype  `json:"subtype,omitempty"`
	Refinement RefinementType `json:"refinement,omitempty"`
	Numbers    []int          `json:"numbers,omitempty"`
	Query      string         `json:"query,omitempty"`
	Keywords   []string       `json:"keywords,omitempty"`

	Blocked     bool         `json:"blocked,omitempty"`
	BlockReason BlockReason  `json:"blockReason,omitempty"`
	Source      IntentSource `json:"source"`
}
