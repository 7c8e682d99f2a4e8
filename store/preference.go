package store

import (
	"regexp"
	"time"

	"github.com/daybreakhq/daybreak/internal/errors"
	"github.com/daybreakhq/daybreak/server/timezone"
)

// Voice identifies a synthesis voice for the daily briefing call.
type Voice string

const (
	VoiceAria    Voice = "aria"
	VoiceRiver   Voice = "river"
	VoiceSage    Voice = "sage"
	VoiceJuniper Voice = "juniper"
	VoiceCove    Voice = "cove"
)

// Voices lists every supported synthesis voice. The first entry is the
// default applied when the wire payload omits the field.
var Voices = []Voice{VoiceAria, VoiceRiver, VoiceSage, VoiceJuniper, VoiceCove}

// DefaultVoice returns the voice applied when none is configured.
func DefaultVoice() Voice {
	return Voices[0]
}

// IsValid reports whether v is a member of the supported voice set.
func (v Voice) IsValid() bool {
	for _, known := range Voices {
		if v == known {
			return true
		}
	}
	return false
}

const (
	// DefaultCallTime is the scheduled time applied when none is configured.
	DefaultCallTime = "09:00"
	// DefaultNoAnswerAction is the wire-level no-answer behavior applied on
	// create. The field has no domain meaning and is passed through opaquely.
	DefaultNoAnswerAction = "voicemail"
	// DefaultRetryCount is the wire-level retry count applied on create.
	// Passed through opaquely, never interpreted locally.
	DefaultRetryCount = 1
)

// DefaultWeekdays returns the Monday-first weekday mask applied when none is
// configured: Monday through Friday enabled, weekend disabled.
func DefaultWeekdays() []bool {
	return []bool{true, true, true, true, true, false, false}
}

var (
	callTimeRegexp = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	e164Regexp     = regexp.MustCompile(`^\+[1-9][0-9]{1,14}$`)
)

// PreferenceRecord is the domain form of a user's daily call preferences.
// Exactly one record exists per user; it is created lazily on first read
// and mutated only through the update coordinator.
type PreferenceRecord struct {
	UserID          string `json:"userId"`
	Enabled         bool   `json:"enabled"`
	Time            string `json:"time"`
	Timezone        string `json:"timezone"`
	PhoneNumber     string `json:"phoneNumber"`
	Voice           Voice  `json:"voice"`
	IncludeCalendar bool   `json:"includeCalendar"`
	IncludeEmails   bool   `json:"includeEmails"`
	IncludeBills    bool   `json:"includeBills"`
	Weekdays        []bool `json:"weekdays"`

	// NoAnswerAction and RetryCount exist only on the wire schema. They are
	// carried opaquely so round-trips never drop them.
	NoAnswerAction string `json:"noAnswerAction"`
	RetryCount     int    `json:"retryCount"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultPreferenceRecord returns the documented default record for a user.
// Used when neither the remote endpoint nor the fallback snapshot has data.
// The caller is responsible for not persisting it until the first
// successful write.
func DefaultPreferenceRecord(userID string) *PreferenceRecord {
	now := time.Now().UTC()
	return &PreferenceRecord{
		UserID:          userID,
		Enabled:         false,
		Time:            DefaultCallTime,
		Timezone:        "UTC",
		PhoneNumber:     "",
		Voice:           DefaultVoice(),
		IncludeCalendar: true,
		IncludeEmails:   true,
		IncludeBills:    true,
		Weekdays:        DefaultWeekdays(),
		NoAnswerAction:  DefaultNoAnswerAction,
		RetryCount:      DefaultRetryCount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Clone returns a deep copy of the record.
func (r *PreferenceRecord) Clone() *PreferenceRecord {
	if r == nil {
		return nil
	}
	dup := *r
	dup.Weekdays = append([]bool(nil), r.Weekdays...)
	return &dup
}

// Validate checks the record against the domain invariants.
func (r *PreferenceRecord) Validate() error {
	if r.UserID == "" {
		return errors.Validation("user id is required")
	}
	if !callTimeRegexp.MatchString(r.Time) {
		return errors.Validationf("call time %q is not a valid HH:MM value", r.Time)
	}
	if len(r.Weekdays) != 7 {
		return errors.Validationf("weekday mask must have 7 entries, got %d", len(r.Weekdays))
	}
	if !r.Voice.IsValid() {
		return errors.Validationf("unknown voice %q", r.Voice)
	}
	if !timezone.IsValidTimezone(r.Timezone) {
		return errors.Validationf("invalid timezone %q", r.Timezone)
	}
	if r.PhoneNumber != "" && !e164Regexp.MatchString(r.PhoneNumber) {
		return errors.Validationf("phone number %q is not E.164 formatted", r.PhoneNumber)
	}
	return nil
}

// PreferenceDelta is a partial mutation of a PreferenceRecord. Nil fields
// are untouched; set fields must satisfy the same invariants as the record.
type PreferenceDelta struct {
	Enabled         *bool   `json:"enabled,omitempty"`
	Time            *string `json:"time,omitempty"`
	Timezone        *string `json:"timezone,omitempty"`
	PhoneNumber     *string `json:"phoneNumber,omitempty"`
	Voice           *Voice  `json:"voice,omitempty"`
	IncludeCalendar *bool   `json:"includeCalendar,omitempty"`
	IncludeEmails   *bool   `json:"includeEmails,omitempty"`
	IncludeBills    *bool   `json:"includeBills,omitempty"`
	Weekdays        []bool  `json:"weekdays,omitempty"`
	NoAnswerAction  *string `json:"noAnswerAction,omitempty"`
	RetryCount      *int    `json:"retryCount,omitempty"`
}

// IsEmpty reports whether the delta mutates nothing.
func (d *PreferenceDelta) IsEmpty() bool {
	return d == nil || (d.Enabled == nil && d.Time == nil && d.Timezone == nil &&
		d.PhoneNumber == nil && d.Voice == nil && d.IncludeCalendar == nil &&
		d.IncludeEmails == nil && d.IncludeBills == nil && d.Weekdays == nil &&
		d.NoAnswerAction == nil && d.RetryCount == nil)
}

// Validate rejects deltas that violate domain invariants. Violations are
// rejected here, before any network call, never corrected silently.
func (d *PreferenceDelta) Validate() error {
	if d.IsEmpty() {
		return errors.Validation("delta mutates no fields")
	}
	if d.Time != nil && !callTimeRegexp.MatchString(*d.Time) {
		return errors.Validationf("call time %q is not a valid HH:MM value", *d.Time)
	}
	if d.Weekdays != nil && len(d.Weekdays) != 7 {
		return errors.Validationf("weekday mask must have 7 entries, got %d", len(d.Weekdays))
	}
	if d.Voice != nil && !d.Voice.IsValid() {
		return errors.Validationf("unknown voice %q", *d.Voice)
	}
	if d.Timezone != nil && !timezone.IsValidTimezone(*d.Timezone) {
		return errors.Validationf("invalid timezone %q", *d.Timezone)
	}
	if d.PhoneNumber != nil && *d.PhoneNumber != "" && !e164Regexp.MatchString(*d.PhoneNumber) {
		return errors.Validationf("phone number %q is not E.164 formatted", *d.PhoneNumber)
	}
	return nil
}

// Apply mutates the record in place with every field the delta sets.
func (r *PreferenceRecord) Apply(d *PreferenceDelta) {
	if d == nil {
		return
	}
	if d.Enabled != nil {
		r.Enabled = *d.Enabled
	}
	if d.Time != nil {
		r.Time = *d.Time
	}
	if d.Timezone != nil {
		r.Timezone = *d.Timezone
	}
	if d.PhoneNumber != nil {
		r.PhoneNumber = *d.PhoneNumber
	}
	if d.Voice != nil {
		r.Voice = *d.Voice
	}
	if d.IncludeCalendar != nil {
		r.IncludeCalendar = *d.IncludeCalendar
	}
	if d.IncludeEmails != nil {
		r.IncludeEmails = *d.IncludeEmails
	}
	if d.IncludeBills != nil {
		r.IncludeBills = *d.IncludeBills
	}
	if d.Weekdays != nil {
		r.Weekdays = append([]bool(nil), d.Weekdays...)
	}
	if d.NoAnswerAction != nil {
		r.NoAnswerAction = *d.NoAnswerAction
	}
	if d.RetryCount != nil {
		r.RetryCount = *d.RetryCount
	}
}
