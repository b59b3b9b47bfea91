package schedule

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// The shop plans at second resolution. Hour fractions finer than that are
// rounded when converted back to timestamps.

// HoursBetween returns the span from a to b in hours.
func HoursBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours()
}

// AddHours returns t advanced by h hours, rounded to whole seconds.
func AddHours(t time.Time, h float64) time.Time {
	return t.Add(time.Duration(math.Round(h*3600)) * time.Second)
}

// DateOf truncates t to midnight in its own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// WeekdayIndex maps t's weekday onto the shop convention 0=Monday..6=Sunday.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// ParseClock parses a wall-clock "HH:MM" string.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("clock %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("clock %q: bad hour", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock %q: bad minute", s)
	}
	return hour, minute, nil
}

// At places a wall-clock "HH:MM" string on the given date.
func At(date time.Time, clock string) (time.Time, error) {
	h, m, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := date.Date()
	return time.Date(y, mo, d, h, m, 0, 0, date.Location()), nil
}
