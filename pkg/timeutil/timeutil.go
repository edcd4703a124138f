// Package timeutil provides calendar-date utilities for InnerLight Progress Hub.
// Streaks and daily check-ins are anchored to UTC calendar days: a user's
// device clock never decides whether a streak continues. All day-boundary
// math in the service goes through this package.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// FormatDate is the canonical wire/storage format for calendar dates.
const FormatDate = "2006-01-02"

// ═══════════════════════════════════════════════════════════════════════════
// CalendarDate
// ═══════════════════════════════════════════════════════════════════════════

// CalendarDate is a timezone-free calendar day (no time-of-day component).
// The zero value means "no date recorded".
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the UTC calendar date of the given instant.
func DateOf(t time.Time) CalendarDate {
	u := t.UTC()
	return CalendarDate{Year: u.Year(), Month: u.Month(), Day: u.Day()}
}

// NewDate builds a CalendarDate from its components.
func NewDate(year int, month time.Month, day int) CalendarDate {
	// Normalize through time.Date so Feb 30 becomes Mar 2, matching
	// the standard library's date arithmetic.
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDate parses a date in FormatDate ("2006-01-02").
func ParseDate(s string) (CalendarDate, error) {
	t, err := time.Parse(FormatDate, s)
	if err != nil {
		return CalendarDate{}, fmt.Errorf("timeutil: invalid calendar date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// IsZero reports whether no date has been recorded.
func (d CalendarDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time returns midnight UTC of the date.
func (d CalendarDate) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// String returns the date in FormatDate.
func (d CalendarDate) String() string {
	return d.Time().Format(FormatDate)
}

// AddDays returns the date n days later (n may be negative).
func (d CalendarDate) AddDays(n int) CalendarDate {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Equal reports whether two dates are the same calendar day.
func (d CalendarDate) Equal(o CalendarDate) bool {
	return d.Year == o.Year && d.Month == o.Month && d.Day == o.Day
}

// Before reports whether d is strictly earlier than o.
func (d CalendarDate) Before(o CalendarDate) bool {
	return d.Time().Before(o.Time())
}

// DaysUntil returns the number of whole days from d to o.
// Positive when o is later than d.
func (d CalendarDate) DaysUntil(o CalendarDate) int {
	return int(o.Time().Sub(d.Time()).Hours() / 24)
}

// MarshalText implements encoding.TextMarshaler. The zero date marshals
// to an empty string so unset streak dates round-trip through JSON.
func (d CalendarDate) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte(""), nil
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *CalendarDate) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*d = CalendarDate{}
		return nil
	}
	parsed, err := ParseDate(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Day helpers
// ═══════════════════════════════════════════════════════════════════════════

// StartOfDay returns midnight UTC of the instant's calendar day.
func StartOfDay(t time.Time) time.Time {
	return DateOf(t).Time()
}

// EndOfDay returns the last nanosecond of the instant's UTC calendar day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24*time.Hour - time.Nanosecond)
}

// SameDay reports whether two instants fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return DateOf(a).Equal(DateOf(b))
}

// DaysBetween returns the number of whole calendar days between two instants.
func DaysBetween(from, to time.Time) int {
	return DateOf(from).DaysUntil(DateOf(to))
}

// ═══════════════════════════════════════════════════════════════════════════
// Clock
// ═══════════════════════════════════════════════════════════════════════════

// Clock supplies the current instant and calendar day. The ledger takes a
// Clock rather than calling time.Now so streak behavior is testable and
// day boundaries stay consistent across the service.
type Clock interface {
	// Now returns the current instant.
	Now() time.Time

	// Today returns the current UTC calendar date.
	Today() CalendarDate
}

// SystemClock is the production Clock backed by the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Today implements Clock.
func (SystemClock) Today() CalendarDate {
	return DateOf(time.Now())
}

// FixedClock is a Clock pinned to a single instant, for tests.
type FixedClock struct {
	Instant time.Time
}

// Now implements Clock.
func (c FixedClock) Now() time.Time {
	return c.Instant
}

// Today implements Clock.
func (c FixedClock) Today() CalendarDate {
	return DateOf(c.Instant)
}
