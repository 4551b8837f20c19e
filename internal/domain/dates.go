package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the wire format for day-granular activity dates.
const DateLayout = "2006-01-02"

// Day is the scheduling unit.
const Day = 24 * time.Hour

// ParseDate parses one YYYY-MM-DD value into a UTC-midnight time.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidDate
	}
	ts, err := time.Parse(DateLayout, raw)
	if err != nil {
		// Accept full timestamps and drop the clock part.
		ts, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
		}
	}
	return NormalizeDate(ts), nil
}

// NormalizeDate truncates a timestamp to midnight UTC of its calendar day.
func NormalizeDate(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Time{}
	}
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a day-granular date, or "" for the zero value.
func FormatDate(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(DateLayout)
}

// SpanDays returns ceil((end-start)/day), floored at one day.
func SpanDays(start, end time.Time) int {
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// WeekStart returns the first day of the week containing ts.
func WeekStart(ts time.Time, first time.Weekday) time.Time {
	day := NormalizeDate(ts)
	if day.IsZero() {
		return day
	}
	offset := (int(day.Weekday()) - int(first) + 7) % 7
	return day.AddDate(0, 0, -offset)
}

// ParseWeekday maps a weekday name onto time.Weekday.
func ParseWeekday(raw string) (time.Weekday, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "monday", "mon":
		return time.Monday, true
	case "tuesday", "tue":
		return time.Tuesday, true
	case "wednesday", "wed":
		return time.Wednesday, true
	case "thursday", "thu":
		return time.Thursday, true
	case "friday", "fri":
		return time.Friday, true
	case "saturday", "sat":
		return time.Saturday, true
	case "sunday", "sun":
		return time.Sunday, true
	default:
		return time.Monday, false
	}
}
