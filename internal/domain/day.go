package domain

import (
	"fmt"
	"time"
)

// DayLayout is the canonical calendar-day format.
const DayLayout = "2006-01-02"

// DayOf truncates t to its calendar day in UTC.
//
// All day bucketing goes through here: timestamps carrying an offset are
// converted to UTC first, and naive timestamps are parsed as UTC upstream,
// so the bucket is always the UTC calendar date.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDay formats a day as YYYY-MM-DD.
func FormatDay(d time.Time) string {
	return d.UTC().Format(DayLayout)
}

// ParseDay parses a YYYY-MM-DD string into a UTC day.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, s, time.UTC)
}

// FormatRange formats a day range for display.
// Single day: "Feb 06, 2020"
// Range: "Feb 01 - Feb 06, 2020" (or with both years when they differ)
func FormatRange(start, end time.Time) string {
	if start.Equal(end) {
		return start.Format("Jan 02, 2006")
	}
	if start.Year() != end.Year() {
		return fmt.Sprintf("%s - %s", start.Format("Jan 02, 2006"), end.Format("Jan 02, 2006"))
	}
	return fmt.Sprintf("%s - %s", start.Format("Jan 02"), end.Format("Jan 02, 2006"))
}
