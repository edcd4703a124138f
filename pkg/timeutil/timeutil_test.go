package timeutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf_UsesUTCDay(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("UTC-5", -5*60*60)
	local := time.Date(2026, time.March, 1, 23, 30, 0, 0, loc)

	d := DateOf(local)
	assert.Equal(t, NewDate(2026, time.March, 2), d)
}

func TestCalendarDate_DaysUntil(t *testing.T) {
	d := NewDate(2026, time.February, 27)

	assert.Equal(t, 0, d.DaysUntil(d))
	assert.Equal(t, 1, d.DaysUntil(d.AddDays(1)))
	assert.Equal(t, 2, d.DaysUntil(NewDate(2026, time.March, 1))) // leap-year boundary
	assert.Equal(t, -3, d.DaysUntil(d.AddDays(-3)))
}

func TestCalendarDate_JSONRoundTrip(t *testing.T) {
	type doc struct {
		Last CalendarDate `json:"last"`
	}

	out, err := json.Marshal(doc{Last: NewDate(2026, time.August, 31)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"last":"2026-08-31"}`, string(out))

	var in doc
	require.NoError(t, json.Unmarshal(out, &in))
	assert.Equal(t, NewDate(2026, time.August, 31), in.Last)
}

func TestCalendarDate_ZeroValueRoundTrip(t *testing.T) {
	type doc struct {
		Last CalendarDate `json:"last"`
	}

	out, err := json.Marshal(doc{})
	require.NoError(t, err)

	var in doc
	require.NoError(t, json.Unmarshal(out, &in))
	assert.True(t, in.Last.IsZero())
}

func TestParseDate_Invalid(t *testing.T) {
	_, err := ParseDate("31/08/2026")
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	morning := time.Date(2026, time.January, 1, 0, 5, 0, 0, time.UTC)
	night := time.Date(2026, time.January, 2, 23, 55, 0, 0, time.UTC)

	// Calendar days, not 24h windows.
	assert.Equal(t, 1, DaysBetween(morning, night))
	assert.True(t, SameDay(morning, morning.Add(23*time.Hour)))
	assert.False(t, SameDay(morning, night))
}

func TestFixedClock(t *testing.T) {
	instant := time.Date(2026, time.July, 4, 18, 0, 0, 0, time.UTC)
	clock := FixedClock{Instant: instant}

	assert.Equal(t, instant, clock.Now())
	assert.Equal(t, NewDate(2026, time.July, 4), clock.Today())
}
