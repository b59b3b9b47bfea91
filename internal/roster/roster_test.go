package roster

import (
	"testing"
	"time"
)

// 2025-03-04 is a Tuesday (weekday index 1).
var tuesday = time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)

func TestSegmentsForSplitShift(t *testing.T) {
	cal := NewCalendar(
		[]Employee{{Name: "Ana", CanPrep: true}},
		[]ShiftRule{
			{Employee: "Ana", Weekday: 1, Start: "13:00", End: "16:00"},
			{Employee: "Ana", Weekday: 1, Start: "08:00", End: "12:00"},
		},
		nil,
	)

	segs := cal.SegmentsFor("Ana", tuesday)
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if segs[0].Start.Hour() != 8 || segs[0].End.Hour() != 12 {
		t.Fatalf("first segment = [%v, %v)", segs[0].Start, segs[0].End)
	}
	if segs[1].Start.Hour() != 13 || segs[1].End.Hour() != 16 {
		t.Fatalf("second segment = [%v, %v)", segs[1].Start, segs[1].End)
	}
	if got := segs[0].Hours() + segs[1].Hours(); got != 7 {
		t.Fatalf("total capacity = %v, want 7", got)
	}
}

func TestSegmentsForDayOff(t *testing.T) {
	cal := NewCalendar(
		[]Employee{{Name: "Ana"}},
		[]ShiftRule{{Employee: "Ana", Weekday: 1, Start: "08:00", End: "16:00"}},
		[]DayOff{{Employee: "Ana", Date: tuesday}},
	)
	if segs := cal.SegmentsFor("Ana", tuesday); segs != nil {
		t.Fatalf("day off still yielded %d segments", len(segs))
	}
	// The template still applies a week later.
	if segs := cal.SegmentsFor("Ana", tuesday.AddDate(0, 0, 7)); len(segs) != 1 {
		t.Fatalf("next week got %d segments, want 1", len(segs))
	}
}

func TestSegmentsForNoTemplate(t *testing.T) {
	cal := NewCalendar([]Employee{{Name: "Ana"}}, nil, nil)
	if segs := cal.SegmentsFor("Ana", tuesday); segs != nil {
		t.Fatalf("no template still yielded %d segments", len(segs))
	}
}

func TestSegmentsForMalformedRuleSkipped(t *testing.T) {
	cal := NewCalendar(
		[]Employee{{Name: "Ana"}},
		[]ShiftRule{
			{Employee: "Ana", Weekday: 1, Start: "bogus", End: "16:00"},
			{Employee: "Ana", Weekday: 1, Start: "16:00", End: "09:00"}, // inverted
			{Employee: "Ana", Weekday: 1, Start: "08:00", End: "12:00"},
		},
		nil,
	)
	segs := cal.SegmentsFor("Ana", tuesday)
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1 (malformed rows skipped)", len(segs))
	}
}

func TestSegmentsForCoalescesOverlap(t *testing.T) {
	cal := NewCalendar(
		[]Employee{{Name: "Ana"}},
		[]ShiftRule{
			{Employee: "Ana", Weekday: 1, Start: "08:00", End: "12:00"},
			{Employee: "Ana", Weekday: 1, Start: "11:00", End: "15:00"},
		},
		nil,
	)
	segs := cal.SegmentsFor("Ana", tuesday)
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1 merged window", len(segs))
	}
	if segs[0].Hours() != 7 {
		t.Fatalf("merged window = %vh, want 7h", segs[0].Hours())
	}
}

func TestKnownAndLookup(t *testing.T) {
	cal := NewCalendar([]Employee{{Name: "Ana", CanFinish: true}}, nil, nil)
	if !cal.Known("Ana") || cal.Known("Bob") {
		t.Fatalf("Known lookup wrong")
	}
	e, ok := cal.Lookup("Ana")
	if !ok || !e.CanFinish {
		t.Fatalf("Lookup(Ana) = %+v, %v", e, ok)
	}
}
