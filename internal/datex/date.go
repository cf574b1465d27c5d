// Package datex provides calendar-date helpers for the diary. Entry dates are
// ISO "YYYY-MM-DD" strings and months are keyed "YYYY-MM".
package datex

import (
	"fmt"
	"time"
)

// ISOLayout is the wire format of entry dates.
const ISOLayout = "2006-01-02"

// ToISODate formats t as an ISO calendar date.
func ToISODate(t time.Time) string {
	return t.Format(ISOLayout)
}

// ParseISODate parses an ISO calendar date in UTC.
func ParseISODate(s string) (time.Time, error) {
	return time.ParseInLocation(ISOLayout, s, time.UTC)
}

// MonthKey returns the "YYYY-MM" month bucket an ISO date belongs to.
func MonthKey(isoDate string) string {
	if len(isoDate) < 7 {
		return isoDate
	}
	return isoDate[:7]
}

// FormatMonthKey builds a "YYYY-MM" key from numeric year and month.
func FormatMonthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// MonthRange returns the first and last day of the given month as ISO dates.
func MonthRange(year, month int) (first, last string) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return ToISODate(start), ToISODate(end)
}

// WeekContaining returns the seven dates of the Monday-based week that
// contains t, in order.
func WeekContaining(t time.Time) []time.Time {
	mondayIndex := (int(t.Weekday()) + 6) % 7
	start := t.AddDate(0, 0, -mondayIndex)
	week := make([]time.Time, 0, 7)
	for i := 0; i < 7; i++ {
		week = append(week, start.AddDate(0, 0, i))
	}
	return week
}

// FormatMonthLabel renders a month for calendar headers, e.g. "Mar 2024".
func FormatMonthLabel(t time.Time) string {
	return t.Format("Jan 2006")
}
