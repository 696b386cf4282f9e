package domain

import (
	"fmt"
	"time"
	_ "time/tzdata" // embedded zoneinfo fallback
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// Day normalises t to midnight UTC of its civil date in t's own location.
// All calendar dates in the domain are values returned by Day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays shifts a calendar date by n days.
func AddDays(day time.Time, n int) time.Time {
	return Day(day).AddDate(0, 0, n)
}

// DaysBetween returns the number of calendar days from a to b.
// Negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// ParseDate parses a YYYY-MM-DD string into a calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return Day(t).Format(DateLayout)
}

// FormatDatePtr renders an optional date, "" when nil.
func FormatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatDate(*t)
}

// LoadTimezone resolves an IANA zone name. An empty name means UTC.
func LoadTimezone(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &Error{Code: CodeInvalidTimezone, Message: fmt.Sprintf("unknown timezone %q", name)}
	}
	return loc, nil
}
