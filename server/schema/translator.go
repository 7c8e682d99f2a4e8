// Package schema translates between the remote preference endpoint's wire
// schema (snake_case, flat) and the internal domain schema (camelCase,
// typed). The field mapping is total and explicit; there is no
// reflection-based snake/camel conversion, so the round-trip property
// stays provable.
package schema

import (
	"time"

	"github.com/daybreakhq/daybreak/store"
)

// WireRecord is the remote endpoint's representation of a preference
// record. Every field is a pointer so a partially-populated payload is
// distinguishable from explicit zero values, both inbound (tolerate
// missing keys) and outbound (partial update must not clobber unrelated
// remote fields).
type WireRecord struct {
	UserID          *string `json:"user_id,omitempty"`
	IsActive        *bool   `json:"is_active,omitempty"`
	CallTime        *string `json:"call_time,omitempty"`
	Timezone        *string `json:"timezone,omitempty"`
	PhoneNumber     *string `json:"phone_number,omitempty"`
	Voice           *string `json:"voice,omitempty"`
	IncludeCalendar *bool   `json:"include_calendar,omitempty"`
	IncludeEmails   *bool   `json:"include_emails,omitempty"`
	IncludeBills    *bool   `json:"include_bills,omitempty"`
	Weekdays        []bool  `json:"weekdays,omitempty"`
	NoAnswerAction  *string `json:"no_answer_action,omitempty"`
	RetryCount      *int    `json:"retry_count,omitempty"`
	CreatedAt       *string `json:"created_at,omitempty"`
	UpdatedAt       *string `json:"updated_at,omitempty"`
}

// ToDomain maps a wire record to a full domain record. Missing keys take
// the documented defaults: voice falls back to the first enumerated voice,
// is_active to false, weekdays to Monday-Friday. The userID parameter wins
// over any user_id on the wire.
func ToDomain(userID string, w *WireRecord) *store.PreferenceRecord {
	record := store.DefaultPreferenceRecord(userID)
	if w == nil {
		return record
	}
	MergeWire(record, w)
	record.UserID = userID
	return record
}

// MergeWire folds every field the wire record defines into the domain
// record, leaving absent fields untouched. An unknown voice value is left
// as-is for validation to reject; it is never corrected silently.
func MergeWire(record *store.PreferenceRecord, w *WireRecord) {
	if w == nil {
		return
	}
	if w.IsActive != nil {
		record.Enabled = *w.IsActive
	}
	if w.CallTime != nil {
		record.Time = *w.CallTime
	}
	if w.Timezone != nil {
		record.Timezone = *w.Timezone
	}
	if w.PhoneNumber != nil {
		record.PhoneNumber = *w.PhoneNumber
	}
	if w.Voice != nil {
		record.Voice = store.Voice(*w.Voice)
	}
	if w.IncludeCalendar != nil {
		record.IncludeCalendar = *w.IncludeCalendar
	}
	if w.IncludeEmails != nil {
		record.IncludeEmails = *w.IncludeEmails
	}
	if w.IncludeBills != nil {
		record.IncludeBills = *w.IncludeBills
	}
	if w.Weekdays != nil {
		record.Weekdays = append([]bool(nil), w.Weekdays...)
	}
	if w.NoAnswerAction != nil {
		record.NoAnswerAction = *w.NoAnswerAction
	}
	if w.RetryCount != nil {
		record.RetryCount = *w.RetryCount
	}
	if w.CreatedAt != nil {
		if ts, err := time.Parse(time.RFC3339, *w.CreatedAt); err == nil {
			record.CreatedAt = ts
		}
	}
	if w.UpdatedAt != nil {
		if ts, err := time.Parse(time.RFC3339, *w.UpdatedAt); err == nil {
			record.UpdatedAt = ts
		}
	}
}

// ToWire translates a domain delta into an outgoing wire patch. Only
// fields present in the delta are included; absent fields are omitted,
// never coerced to null or defaults.
func ToWire(d *store.PreferenceDelta) *WireRecord {
	w := &WireRecord{}
	if d == nil {
		return w
	}
	if d.Enabled != nil {
		w.IsActive = boolPtr(*d.Enabled)
	}
	if d.Time != nil {
		w.CallTime = stringPtr(*d.Time)
	}
	if d.Timezone != nil {
		w.Timezone = stringPtr(*d.Timezone)
	}
	if d.PhoneNumber != nil {
		w.PhoneNumber = stringPtr(*d.PhoneNumber)
	}
	if d.Voice != nil {
		w.Voice = stringPtr(string(*d.Voice))
	}
	if d.IncludeCalendar != nil {
		w.IncludeCalendar = boolPtr(*d.IncludeCalendar)
	}
	if d.IncludeEmails != nil {
		w.IncludeEmails = boolPtr(*d.IncludeEmails)
	}
	if d.IncludeBills != nil {
		w.IncludeBills = boolPtr(*d.IncludeBills)
	}
	if d.Weekdays != nil {
		w.Weekdays = append([]bool(nil), d.Weekdays...)
	}
	if d.NoAnswerAction != nil {
		w.NoAnswerAction = stringPtr(*d.NoAnswerAction)
	}
	if d.RetryCount != nil {
		w.RetryCount = intPtr(*d.RetryCount)
	}
	return w
}

// RecordToWire maps a full domain record to a fully-populated wire record.
// Used by tests to prove the round-trip property and by callers that need
// the complete wire form rather than a patch.
func RecordToWire(r *store.PreferenceRecord) *WireRecord {
	if r == nil {
		return nil
	}
	return &WireRecord{
		UserID:          stringPtr(r.UserID),
		IsActive:        boolPtr(r.Enabled),
		CallTime:        stringPtr(r.Time),
		Timezone:        stringPtr(r.Timezone),
		PhoneNumber:     stringPtr(r.PhoneNumber),
		Voice:           stringPtr(string(r.Voice)),
		IncludeCalendar: boolPtr(r.IncludeCalendar),
		IncludeEmails:   boolPtr(r.IncludeEmails),
		IncludeBills:    boolPtr(r.IncludeBills),
		Weekdays:        append([]bool(nil), r.Weekdays...),
		NoAnswerAction:  stringPtr(r.NoAnswerAction),
		RetryCount:      intPtr(r.RetryCount),
		CreatedAt:       stringPtr(r.CreatedAt.UTC().Format(time.RFC3339)),
		UpdatedAt:       stringPtr(r.UpdatedAt.UTC().Format(time.RFC3339)),
	}
}

func stringPtr(s string) *string { return &s }
func boolPtr(b bool) *bool       { return &b }
func intPtr(i int) *int          { return &i }
