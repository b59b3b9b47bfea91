package schedule

import (
	"testing"
	"time"
)

func mustAt(t *testing.T, date time.Time, clock string) time.Time {
	t.Helper()
	ts, err := At(date, clock)
	if err != nil {
		t.Fatalf("At(%s): %v", clock, err)
	}
	return ts
}

func TestClipRecomputesHours(t *testing.T) {
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	iv := Interval{
		Employee: "Ana",
		Key:      TaskKey{Customer: "Smith", Job: "Dresser", Service: "Restore", Stage: "Sand"},
	}.Retime(mustAt(t, day, "07:00"), mustAt(t, day, "10:00"))

	clipped, ok := iv.Clip(mustAt(t, day, "08:00"), mustAt(t, day, "16:00"))
	if !ok {
		t.Fatalf("clip dropped an overlapping interval")
	}
	if !clipped.Start.Equal(mustAt(t, day, "08:00")) || !clipped.End.Equal(mustAt(t, day, "10:00")) {
		t.Fatalf("clip bounds = [%v, %v)", clipped.Start, clipped.End)
	}
	if clipped.Hours != 2 {
		t.Fatalf("clipped hours = %v, want 2", clipped.Hours)
	}
	if clipped.Key != iv.Key {
		t.Fatalf("clip changed the identity key")
	}
}

func TestClipDropsDisjoint(t *testing.T) {
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	iv := Interval{}.Retime(mustAt(t, day, "06:00"), mustAt(t, day, "07:00"))
	if _, ok := iv.Clip(mustAt(t, day, "08:00"), mustAt(t, day, "16:00")); ok {
		t.Fatalf("clip kept an interval outside the window")
	}
}

func TestValid(t *testing.T) {
	day := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		start time.Time
		end   time.Time
		want  bool
	}{
		{"ok", day, day.Add(time.Hour), true},
		{"zero start", time.Time{}, day, false},
		{"zero end", day, time.Time{}, false},
		{"inverted", day.Add(time.Hour), day, false},
	}
	for _, tc := range cases {
		iv := Interval{Start: tc.start, End: tc.end}
		if got := iv.Valid(); got != tc.want {
			t.Errorf("%s: Valid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestWeekdayIndex(t *testing.T) {
	// 2025-03-03 is a Monday.
	mon := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		if got := WeekdayIndex(mon.AddDate(0, 0, i)); got != i {
			t.Fatalf("weekday index for Monday+%d = %d, want %d", i, got, i)
		}
	}
}

func TestParseClock(t *testing.T) {
	if h, m, err := ParseClock("08:30"); err != nil || h != 8 || m != 30 {
		t.Fatalf("ParseClock(08:30) = %d:%d, %v", h, m, err)
	}
	for _, bad := range []string{"", "8", "25:00", "08:61", "ab:cd"} {
		if _, _, err := ParseClock(bad); err == nil {
			t.Errorf("ParseClock(%q): want error", bad)
		}
	}
}

func TestAddHoursFraction(t *testing.T) {
	base := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	got := AddHours(base, 1.5)
	want := time.Date(2025, 3, 3, 10, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("AddHours(1.5) = %v, want %v", got, want)
	}
}

func TestTaskKeyUnit(t *testing.T) {
	k := TaskKey{Customer: "Smith", Job: "6 Chairs", Service: "Restore", Stage: "Sand", Item: 2}
	u := k.Unit()
	if u.Stage != "" || u.Item != 2 || u.Customer != "Smith" {
		t.Fatalf("Unit() = %+v", u)
	}
	if k.Stage != "Sand" {
		t.Fatalf("Unit() mutated the receiver")
	}
}
