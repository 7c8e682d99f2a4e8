package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybreakhq/daybreak/store"
)

func TestToDomain_PartialWirePayload(t *testing.T) {
	// Scenario: wire returns only a few fields; everything else takes
	// the documented defaults.
	raw := `{"phone_number":"+15551234567","call_time":"07:30","is_active":false}`
	wire := &WireRecord{}
	require.NoError(t, json.Unmarshal([]byte(raw), wire))

	record := ToDomain("user-1", wire)

	assert.Equal(t, "user-1", record.UserID)
	assert.Equal(t, "+15551234567", record.PhoneNumber)
	assert.Equal(t, "07:30", record.Time)
	assert.False(t, record.Enabled)

	// Defaults for absent keys.
	assert.Equal(t, store.DefaultVoice(), record.Voice)
	assert.Equal(t, store.DefaultWeekdays(), record.Weekdays)
	assert.Equal(t, store.DefaultNoAnswerAction, record.NoAnswerAction)
	assert.Equal(t, store.DefaultRetryCount, record.RetryCount)
}

func TestToDomain_NilWireUsesDefaults(t *testing.T) {
	record := ToDomain("user-2", nil)

	assert.Equal(t, "user-2", record.UserID)
	assert.False(t, record.Enabled)
	assert.Equal(t, store.DefaultCallTime, record.Time)
	assert.Equal(t, store.DefaultVoice(), record.Voice)
	assert.Equal(t, store.DefaultWeekdays(), record.Weekdays)
	assert.NoError(t, record.Validate())
}

func TestToDomain_WireUserIDNeverWins(t *testing.T) {
	other := "someone-else"
	record := ToDomain("user-3", &WireRecord{UserID: &other})
	assert.Equal(t, "user-3", record.UserID)
}

func TestToWire_DeltaAware(t *testing.T) {
	enabled := true
	delta := &store.PreferenceDelta{Enabled: &enabled}

	wire := ToWire(delta)

	require.NotNil(t, wire.IsActive)
	assert.True(t, *wire.IsActive)

	// Absent fields must be omitted from the payload entirely, never
	// coerced to null or defaults.
	payload, err := json.Marshal(wire)
	require.NoError(t, err)
	assert.JSONEq(t, `{"is_active":true}`, string(payload))
}

func TestToWire_EmptyDeltaEmitsNothing(t *testing.T) {
	payload, err := json.Marshal(ToWire(&store.PreferenceDelta{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(payload))
}

func TestRoundTrip_DeltaThroughWire(t *testing.T) {
	// toDomain(toWire(X)) restores every field of X for a valid delta X.
	enabled := true
	callTime := "06:45"
	tz := "America/New_York"
	phone := "+447911123456"
	voice := store.VoiceSage
	calendar := false
	emails := true
	bills := false
	weekdays := []bool{true, false, true, false, true, false, true}
	noAnswer := "hangup"
	retries := 3

	delta := &store.PreferenceDelta{
		Enabled:         &enabled,
		Time:            &callTime,
		Timezone:        &tz,
		PhoneNumber:     &phone,
		Voice:           &voice,
		IncludeCalendar: &calendar,
		IncludeEmails:   &emails,
		IncludeBills:    &bills,
		Weekdays:        weekdays,
		NoAnswerAction:  &noAnswer,
		RetryCount:      &retries,
	}
	require.NoError(t, delta.Validate())

	record := ToDomain("user-4", ToWire(delta))

	assert.Equal(t, enabled, record.Enabled)
	assert.Equal(t, callTime, record.Time)
	assert.Equal(t, tz, record.Timezone)
	assert.Equal(t, phone, record.PhoneNumber)
	assert.Equal(t, voice, record.Voice)
	assert.Equal(t, calendar, record.IncludeCalendar)
	assert.Equal(t, emails, record.IncludeEmails)
	assert.Equal(t, bills, record.IncludeBills)
	assert.Equal(t, weekdays, record.Weekdays)
	assert.Equal(t, noAnswer, record.NoAnswerAction)
	assert.Equal(t, retries, record.RetryCount)
}

func TestRoundTrip_WireThroughDomain(t *testing.T) {
	// toWire(toDomain(w)) preserves every field w defines, including the
	// wire-only no_answer_action and retry_count fields.
	raw := `{
		"user_id": "user-5",
		"is_active": true,
		"call_time": "07:15",
		"timezone": "Europe/Paris",
		"phone_number": "+33612345678",
		"voice": "juniper",
		"include_calendar": true,
		"include_emails": false,
		"include_bills": true,
		"weekdays": [true,true,true,true,true,true,false],
		"no_answer_action": "text_summary",
		"retry_count": 2,
		"created_at": "2026-01-05T08:00:00Z",
		"updated_at": "2026-02-11T17:30:00Z"
	}`
	wire := &WireRecord{}
	require.NoError(t, json.Unmarshal([]byte(raw), wire))

	back := RecordToWire(ToDomain("user-5", wire))

	assert.Equal(t, *wire.IsActive, *back.IsActive)
	assert.Equal(t, *wire.CallTime, *back.CallTime)
	assert.Equal(t, *wire.Timezone, *back.Timezone)
	assert.Equal(t, *wire.PhoneNumber, *back.PhoneNumber)
	assert.Equal(t, *wire.Voice, *back.Voice)
	assert.Equal(t, *wire.IncludeCalendar, *back.IncludeCalendar)
	assert.Equal(t, *wire.IncludeEmails, *back.IncludeEmails)
	assert.Equal(t, *wire.IncludeBills, *back.IncludeBills)
	assert.Equal(t, wire.Weekdays, back.Weekdays)
	assert.Equal(t, *wire.NoAnswerAction, *back.NoAnswerAction)
	assert.Equal(t, *wire.RetryCount, *back.RetryCount)
	assert.Equal(t, *wire.CreatedAt, *back.CreatedAt)
	assert.Equal(t, *wire.UpdatedAt, *back.UpdatedAt)
}

func TestMergeWire_LeavesAbsentFieldsUntouched(t *testing.T) {
	record := store.DefaultPreferenceRecord("user-6")
	record.PhoneNumber = "+15550001111"
	record.Voice = store.VoiceCove

	newTime := "10:30"
	MergeWire(record, &WireRecord{CallTime: &newTime})

	assert.Equal(t, "10:30", record.Time)
	assert.Equal(t, "+15550001111", record.PhoneNumber)
	assert.Equal(t, store.VoiceCove, record.Voice)
}

func TestMergeWire_Timestamps(t *testing.T) {
	record := store.DefaultPreferenceRecord("user-7")
	updated := "2026-03-01T09:30:00Z"
	MergeWire(record, &WireRecord{UpdatedAt: &updated})

	expected, err := time.Parse(time.RFC3339, updated)
	require.NoError(t, err)
	assert.True(t, record.UpdatedAt.Equal(expected))
}
