package util

import (
	"strings"
	"time"
)

// DayLayout is the calendar day format used on the wire.
const DayLayout = "2006-01-02"

// NowUTC exposes time.Now for deterministic testing.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// StartOfDay returns local midnight of the calendar day containing t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = t.Location()
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// AddDays moves a midnight by whole calendar days. Day lengths follow the
// location, so a DST transition day is 23 or 25 hours long.
func AddDays(midnight time.Time, days int) time.Time {
	return time.Date(midnight.Year(), midnight.Month(), midnight.Day()+days, 0, 0, 0, 0, midnight.Location())
}

// ParseDay parses a YYYY-MM-DD value as local midnight in loc.
func ParseDay(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DayLayout, strings.TrimSpace(value), loc)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return StartOfDay(a, loc).Equal(StartOfDay(b, loc))
}
