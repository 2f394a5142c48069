// Package caltime holds the calendar arithmetic shared by the schedule and
// booking code. Dates travel as "2006-01-02" strings and wall-clock times as
// "15:04" strings; both are interpreted in the club's location.
package caltime

import (
	"errors"
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var (
	ErrInvalidDate  = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidClock = errors.New("invalid time, expected HH:MM")
)

// ParseDate returns midnight of the given calendar date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// FormatDate renders the calendar date of t.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseClock returns the number of minutes after midnight for an "HH:MM" value.
func ParseClock(s string) (int, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil || len(s) != len(ClockLayout) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ValidRange reports whether start and end are valid clocks with end after start.
func ValidRange(start, end string) bool {
	s, err := ParseClock(start)
	if err != nil {
		return false
	}
	e, err := ParseClock(end)
	if err != nil {
		return false
	}
	return e > s
}

// At combines a calendar date and a wall-clock time into an instant in loc.
func At(date, clock string, loc *time.Location) (time.Time, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	mins, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), mins/60, mins%60, 0, 0, day.Location()), nil
}

// Weekday returns the day of week of a "2006-01-02" date, 0 = Sunday.
func Weekday(date string) (int, error) {
	d, err := ParseDate(date, time.UTC)
	if err != nil {
		return 0, err
	}
	return int(d.Weekday()), nil
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// AddDays moves a "2006-01-02" date by n calendar days.
func AddDays(date string, n int) (string, error) {
	d, err := ParseDate(date, time.UTC)
	if err != nil {
		return "", err
	}
	return FormatDate(d.AddDate(0, 0, n)), nil
}

// Dates lists every calendar date from start to end inclusive.
func Dates(start, end string) ([]string, error) {
	s, err := ParseDate(start, time.UTC)
	if err != nil {
		return nil, err
	}
	e, err := ParseDate(end, time.UTC)
	if err != nil {
		return nil, err
	}
	if e.Before(s) {
		return nil, fmt.Errorf("%w: end %s before start %s", ErrInvalidDate, end, start)
	}
	out := make([]string, 0, int(e.Sub(s).Hours()/24)+1)
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		out = append(out, FormatDate(d))
	}
	return out, nil
}

// BookingHorizon returns the last calendar date a member may book when today
// is the given day. Bookings open one week at a time: Monday to Saturday the
// horizon is the coming Sunday, and on Sunday the following week unlocks too.
func BookingHorizon(today time.Time) time.Time {
	today = StartOfDay(today)
	wd := today.Weekday()
	if wd == time.Sunday {
		return today.AddDate(0, 0, 7)
	}
	return today.AddDate(0, 0, 7-int(wd))
}
