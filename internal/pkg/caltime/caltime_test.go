package caltime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	m, err := ParseClock("18:30")
	require.NoError(t, err)
	assert.Equal(t, 18*60+30, m)

	for _, bad := range []string{"", "7:00", "24:00", "18:3", "ab:cd"} {
		_, err := ParseClock(bad)
		assert.ErrorIs(t, err, ErrInvalidClock, bad)
	}
}

func TestValidRange(t *testing.T) {
	assert.True(t, ValidRange("18:00", "19:00"))
	assert.False(t, ValidRange("19:00", "18:00"))
	assert.False(t, ValidRange("18:00", "18:00"))
	assert.False(t, ValidRange("18:00", "nope"))
}

func TestAtUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	at, err := At("2026-10-19", "18:00", loc)
	require.NoError(t, err)
	assert.Equal(t, 13, at.UTC().Hour())
	assert.Equal(t, time.Monday, at.Weekday())
}

func TestWeekday(t *testing.T) {
	wd, err := Weekday("2026-10-18")
	require.NoError(t, err)
	assert.Equal(t, 0, wd)

	wd, err = Weekday("2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, 1, wd)
}

func TestDates(t *testing.T) {
	ds, err := Dates("2026-10-30", "2026-11-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-30", "2026-10-31", "2026-11-01", "2026-11-02"}, ds)

	_, err = Dates("2026-11-02", "2026-10-30")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestBookingHorizon(t *testing.T) {
	cases := []struct {
		today string
		want  string
	}{
		{"2026-10-12", "2026-10-18"}, // Monday
		{"2026-10-15", "2026-10-18"}, // Thursday
		{"2026-10-17", "2026-10-18"}, // Saturday
		{"2026-10-18", "2026-10-25"}, // Sunday unlocks next week
	}
	for _, tc := range cases {
		d, err := ParseDate(tc.today, time.UTC)
		require.NoError(t, err)
		assert.Equal(t, tc.want, FormatDate(BookingHorizon(d.Add(15*time.Hour))), tc.today)
	}
}
