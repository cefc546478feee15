package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// WaitingKind names a variant of the session state set.
type WaitingKind string

const (
	WaitingIdle                 WaitingKind = "idle"
	WaitingUpdatingField        WaitingKind = "updating_field"
	WaitingAdditionalEmailInput WaitingKind = "additional_email_input"
	WaitingInstagramURLInput    WaitingKind = "instagram_url_input"
	WaitingReady                WaitingKind = "ready"
)

// WaitingFor is the closed set of profile-flow states. Only the types in this
// file implement it.
type WaitingFor interface {
	Kind() WaitingKind
	sealed()
}

// Idle is the initial state for complete profiles and unauthenticated users.
type Idle struct{}

// UpdatingField collects Field; Remaining holds the fields still to ask.
type UpdatingField struct {
	Field     FieldName
	Remaining []FieldName
}

// AdditionalEmailInput collects the additional email after a "yes" to the gate question.
type AdditionalEmailInput struct {
	Remaining []FieldName
}

// InstagramURLInput collects the Instagram profile after a "yes" to the gate question.
type InstagramURLInput struct {
	Remaining []FieldName
}

// Ready means the wizard finished or was skipped for this session.
type Ready struct{}

func (Idle) Kind() WaitingKind                 { return WaitingIdle }
func (UpdatingField) Kind() WaitingKind        { return WaitingUpdatingField }
func (AdditionalEmailInput) Kind() WaitingKind { return WaitingAdditionalEmailInput }
func (InstagramURLInput) Kind() WaitingKind    { return WaitingInstagramURLInput }
func (Ready) Kind() WaitingKind                { return WaitingReady }

func (Idle) sealed()                 {}
func (UpdatingField) sealed()        {}
func (AdditionalEmailInput) sealed() {}
func (InstagramURLInput) sealed()    {}
func (Ready) sealed()                {}

// CollectingField returns the field whose value the state is waiting for.
// The boolean is false for Idle and Ready.
func CollectingField(w WaitingFor) (FieldName, bool) {
	switch s := w.(type) {
	case UpdatingField:
		return s.Field, true
	case AdditionalEmailInput:
		return FieldAdditionalEmail, true
	case InstagramURLInput:
		return FieldInstagram, true
	}
	return "", false
}

// IsCollecting reports whether the state pre-empts classification with field input.
func IsCollecting(w WaitingFor) bool {
	_, ok := CollectingField(w)
	return ok
}

// Session is the short-lived per-user record describing where the member is
// in the profile flow.
type Session struct {
	UserID          string
	WaitingFor      WaitingFor
	Authenticated   bool
	ProfileSnapshot *Profile
	Attempts        map[FieldName]int
	Ready           bool
	ProfileSkipped  bool
	FieldMenuOpen   bool

	PendingEmail string
	PendingOTP   string
	OTPExpiresAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// NewSession returns a fresh Idle session.
func NewSession(userID string, now time.Time, ttl time.Duration) *Session {
	return &Session{
		UserID:     userID,
		WaitingFor: Idle{},
		Attempts:   make(map[FieldName]int),
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
}

// State returns the current state, treating a nil state as Idle.
func (s *Session) State() WaitingFor {
	if s.WaitingFor == nil {
		return Idle{}
	}
	return s.WaitingFor
}

// Expired reports whether the session outlived its TTL.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// ClearProfileFlow drops all profile-flow bookkeeping.
func (s *Session) ClearProfileFlow() {
	s.Attempts = make(map[FieldName]int)
	s.ProfileSkipped = false
	s.FieldMenuOpen = false
}

// ClearVerification drops pending email/OTP data.
func (s *Session) ClearVerification() {
	s.PendingEmail = ""
	s.PendingOTP = ""
	s.OTPExpiresAt = time.Time{}
}

type waitingRecord struct {
	Kind      WaitingKind `json:"kind"`
	Field     FieldName   `json:"field,omitempty"`
	Remaining []FieldName `json:"remaining,omitempty"`
}

type sessionRecord struct {
	UserID          string            `json:"userId"`
	WaitingFor      waitingRecord     `json:"waitingFor"`
	Authenticated   bool              `json:"authenticated"`
	ProfileSnapshot *Profile          `json:"profileSnapshot,omitempty"`
	Attempts        map[FieldName]int `json:"attempts,omitempty"`
	Ready           bool              `json:"ready"`
	ProfileSkipped  bool              `json:"profileSkipped"`
	FieldMenuOpen   bool              `json:"fieldMenuOpen,omitempty"`
	PendingEmail    string            `json:"pendingEmail,omitempty"`
	PendingOTP      string            `json:"pendingOtp,omitempty"`
	OTPExpiresAt    time.Time         `json:"otpExpiresAt,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	ExpiresAt       time.Time         `json:"expiresAt"`
}

// MarshalJSON encodes the state union as a tagged object.
func (s Session) MarshalJSON() ([]byte, error) {
	rec := sessionRecord{
		UserID:          s.UserID,
		Authenticated:   s.Authenticated,
		ProfileSnapshot: s.ProfileSnapshot,
		Attempts:        s.Attempts,
		Ready:           s.Ready,
		ProfileSkipped:  s.ProfileSkipped,
		FieldMenuOpen:   s.FieldMenuOpen,
		PendingEmail:    s.PendingEmail,
		PendingOTP:      s.PendingOTP,
		OTPExpiresAt:    s.OTPExpiresAt,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		ExpiresAt:       s.ExpiresAt,
	}
	switch w := s.State().(type) {
	case UpdatingField:
		rec.WaitingFor = waitingRecord{Kind: WaitingUpdatingField, Field: w.Field, Remaining: w.Remaining}
	case AdditionalEmailInput:
		rec.WaitingFor = waitingRecord{Kind: WaitingAdditionalEmailInput, Remaining: w.Remaining}
	case InstagramURLInput:
		rec.WaitingFor = waitingRecord{Kind: WaitingInstagramURLInput, Remaining: w.Remaining}
	default:
		rec.WaitingFor = waitingRecord{Kind: w.Kind()}
	}
	return json.Marshal(rec)
}

// UnmarshalJSON decodes a tagged state object, rejecting unknown kinds and
// fields outside the catalog.
func (s *Session) UnmarshalJSON(data []byte) error {
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	for _, f := range rec.WaitingFor.Remaining {
		if !IsKnownField(f) {
			return fmt.Errorf("%w in queue: %s", ErrUnknownField, f)
		}
	}

	var w WaitingFor
	switch rec.WaitingFor.Kind {
	case WaitingIdle, "":
		w = Idle{}
	case WaitingReady:
		w = Ready{}
	case WaitingUpdatingField:
		if !IsKnownField(rec.WaitingFor.Field) {
			return fmt.Errorf("%w: %q", ErrUnknownField, rec.WaitingFor.Field)
		}
		w = UpdatingField{Field: rec.WaitingFor.Field, Remaining: rec.WaitingFor.Remaining}
	case WaitingAdditionalEmailInput:
		w = AdditionalEmailInput{Remaining: rec.WaitingFor.Remaining}
	case WaitingInstagramURLInput:
		w = InstagramURLInput{Remaining: rec.WaitingFor.Remaining}
	default:
		return fmt.Errorf("unknown session state %q", rec.WaitingFor.Kind)
	}

	*s = Session{
		UserID:          rec.UserID,
		WaitingFor:      w,
		Authenticated:   rec.Authenticated,
		ProfileSnapshot: rec.ProfileSnapshot,
		Attempts:        rec.Attempts,
		Ready:           rec.Ready,
		ProfileSkipped:  rec.ProfileSkipped,
		FieldMenuOpen:   rec.FieldMenuOpen,
		PendingEmail:    rec.PendingEmail,
		PendingOTP:      rec.PendingOTP,
		OTPExpiresAt:    rec.OTPExpiresAt,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
		ExpiresAt:       rec.ExpiresAt,
	}
	if s.Attempts == nil {
		s.Attempts = make(map[FieldName]int)
	}
	return nil
}
