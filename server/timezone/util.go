// Package timezone provides timezone utilities for the Daybreak application.
//
// This package handles timezone validation, parsing, and formatting
// to ensure consistent time handling across the application.
package timezone

import (
	"fmt"
	"time"
)

// Default location constants
var (
	// UTC is the coordinated universal time timezone
	UTC = time.UTC

	// Local is the local timezone
	Local = time.Local
)

// ParseTimezone parses an IANA timezone identifier (e.g., "America/New_York").
// If the timezone is invalid, returns UTC and an error.
func ParseTimezone(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return UTC, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return UTC, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}

	return loc, nil
}

// MustParseTimezone parses a timezone or panics if invalid.
// Use this for constants that are known to be valid at compile time.
func MustParseTimezone(tz string) *time.Location {
	loc, err := ParseTimezone(tz)
	if err != nil {
		panic(err)
	}
	return loc
}

// GetDefaultTimezone returns the default timezone (UTC).
func GetDefaultTimezone() *time.Location {
	return UTC
}

// IsValidTimezone checks if a timezone identifier is valid.
func IsValidTimezone(tz string) bool {
	if tz == "" || tz == "UTC" {
		return true
	}

	_, err := time.LoadLocation(tz)
	return err == nil
}

// NowInTimezone returns the current time in the given timezone.
func NowInTimezone(tz *time.Location) time.Time {
	if tz == nil {
		tz = UTC
	}
	return time.Now().In(tz)
}

// NextScheduledCall computes the next time a daily call scheduled at
// callTime ("HH:MM", 24-hour) fires in the given timezone, considering the
// Monday-first weekday mask. Returns the zero time if no weekday is enabled.
func NextScheduledCall(now time.Time, callTime string, tz *time.Location, weekdays []bool) (time.Time, error) {
	if tz == nil {
		tz = UTC
	}
	parsed, err := time.Parse("15:04", callTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid call time %q: %w", callTime, err)
	}
	if len(weekdays) != 7 {
		return time.Time{}, fmt.Errorf("weekday mask must have 7 entries, got %d", len(weekdays))
	}

	local := now.In(tz)
	for offset := 0; offset < 8; offset++ {
		day := local.AddDate(0, 0, offset)
		candidate := time.Date(day.Year(), day.Month(), day.Day(), parsed.Hour(), parsed.Minute(), 0, 0, tz)
		if !candidate.After(local) {
			continue
		}
		// time.Weekday is Sunday-first; the mask is Monday-first.
		idx := (int(candidate.Weekday()) + 6) % 7
		if weekdays[idx] {
			return candidate, nil
		}
	}
	return time.Time{}, nil
}
