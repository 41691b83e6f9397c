package routine

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates crossing the service boundary.
const DateLayout = "2006-01-02"

// TimeOfDayLayout is the wire format for scheduled start times.
const TimeOfDayLayout = "15:04"

// DateOf truncates an instant to its calendar date, normalized to UTC midnight.
// All scheduling arithmetic in this module operates on such normalized dates.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("routine: invalid date %q: %w", value, err)
	}
	return DateOf(t), nil
}

// FormatDate renders a normalized date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ValidTimeOfDay reports whether value is a well-formed HH:MM time of day.
// Exactly five characters; single-digit hours are rejected.
func ValidTimeOfDay(value string) bool {
	if len(value) != len(TimeOfDayLayout) {
		return false
	}
	_, err := time.Parse(TimeOfDayLayout, value)
	return err == nil
}
