package refine

import (
	"testing"
	"time"

	"arksched/internal/schedule"
)

func batch(t *testing.T, p *Pipeline, in []schedule.Interval) ([]schedule.Interval, Report) {
	t.Helper()
	var rep Report
	out := p.batchAll(in, &rep)
	schedule.SortIntervals(out)
	return out, rep
}

func TestBatchGroupsFamilies(t *testing.T) {
	p := newTestPipeline(fixedSegments(), ddlFunc(noDeadlines), Options{})

	sandA := key("Smith", "Job A", "Sand")
	sandB := key("Smith", "Job B", "Sand")
	paint := key("Smith", "Job A", "Paint 1")
	in := []schedule.Interval{
		iv(sandA, at(9, 0), at(10, 0)),
		iv(paint, at(10, 0), at(12, 0)),
		iv(sandB, at(13, 0), at(14, 0)),
	}
	out, rep := batch(t, p, in)

	if len(out) != 3 {
		t.Fatalf("got %d intervals, want 3", len(out))
	}
	byKey := map[schedule.TaskKey]schedule.Interval{}
	for _, x := range out {
		byKey[x.Key] = x
	}
	// Sand B keeps its floor: never earlier than 13:00.
	if !byKey[sandB].Start.Equal(at(13, 0)) || !byKey[sandB].End.Equal(at(14, 0)) {
		t.Fatalf("sand B = [%v, %v)", byKey[sandB].Start, byKey[sandB].End)
	}
	// Paint re-lays after the sand family.
	if !byKey[paint].Start.Equal(at(14, 0)) || !byKey[paint].End.Equal(at(16, 0)) {
		t.Fatalf("paint = [%v, %v)", byKey[paint].Start, byKey[paint].End)
	}
	if rep.Moves != 1 || rep.Skips != 0 {
		t.Fatalf("report = %+v", rep)
	}
	assertMonotonic(t, in, out)
}

func TestBatchCursorPastFloor(t *testing.T) {
	p := newTestPipeline(fixedSegments(), ddlFunc(noDeadlines), Options{})

	sandA := key("Smith", "Job A", "Sand")
	sandB := key("Smith", "Job B", "Sand")
	in := []schedule.Interval{
		iv(sandA, at(9, 0), at(14, 0)),
		iv(sandB, at(13, 0), at(14, 30)),
	}
	out, _ := batch(t, p, in)

	byKey := map[schedule.TaskKey]schedule.Interval{}
	for _, x := range out {
		byKey[x.Key] = x
	}
	// The cursor already passed 13:00, so sand B starts at the cursor.
	got := byKey[sandB]
	if !got.Start.Equal(at(14, 0)) || !got.End.Equal(at(15, 30)) {
		t.Fatalf("sand B = [%v, %v), want [14:00, 15:30)", got.Start, got.End)
	}
	if got.Hours != 1.5 {
		t.Fatalf("sand B hours = %v, want 1.5", got.Hours)
	}
}

func TestBatchDeadlineSkip(t *testing.T) {
	ddl := ddlFunc(func(customer, stage string) (time.Time, bool) {
		if stage == "Paint 1" {
			return at(12, 0), true
		}
		return time.Time{}, false
	})
	p := newTestPipeline(fixedSegments(), ddl, Options{})

	sandA := key("Smith", "Job A", "Sand")
	sandB := key("Smith", "Job B", "Sand")
	paint := key("Smith", "Job A", "Paint 1")
	in := []schedule.Interval{
		iv(sandA, at(9, 0), at(10, 0)),
		iv(paint, at(10, 0), at(12, 0)),
		iv(sandB, at(13, 0), at(14, 0)),
	}
	out, rep := batch(t, p, in)

	byKey := map[schedule.TaskKey]schedule.Interval{}
	for _, x := range out {
		byKey[x.Key] = x
	}
	// Moving paint to 14:00 would end at 16:00, past its 12:00 deadline:
	// the move is skipped and the original placement kept.
	got := byKey[paint]
	if !got.Start.Equal(at(10, 0)) || !got.End.Equal(at(12, 0)) {
		t.Fatalf("paint = [%v, %v), want original [10:00, 12:00)", got.Start, got.End)
	}
	if rep.Skips != 1 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestBatchDeadlineBoundaryExact(t *testing.T) {
	ddl := ddlFunc(func(customer, stage string) (time.Time, bool) {
		if stage == "Paint 1" {
			return at(16, 0), true
		}
		return time.Time{}, false
	})
	p := newTestPipeline(fixedSegments(), ddl, Options{})

	in := []schedule.Interval{
		iv(key("Smith", "Job A", "Sand"), at(9, 0), at(10, 0)),
		iv(key("Smith", "Job A", "Paint 1"), at(10, 0), at(12, 0)),
		iv(key("Smith", "Job B", "Sand"), at(13, 0), at(14, 0)),
	}
	out, rep := batch(t, p, in)

	// Landing exactly on the deadline is allowed.
	var paintEnd time.Time
	for _, x := range out {
		if x.Key.Stage == "Paint 1" {
			paintEnd = x.End
		}
	}
	if !paintEnd.Equal(at(16, 0)) || rep.Skips != 0 {
		t.Fatalf("paint end = %v, skips = %d", paintEnd, rep.Skips)
	}
}

func TestBatchSingleIntervalUntouched(t *testing.T) {
	p := newTestPipeline(fixedSegments(), ddlFunc(noDeadlines), Options{})
	in := []schedule.Interval{iv(key("Smith", "Job A", "Sand"), at(9, 0), at(10, 0))}
	out, rep := batch(t, p, in)
	if len(out) != 1 || !out[0].Start.Equal(at(9, 0)) || rep.Moves != 0 {
		t.Fatalf("single interval changed: %+v rep=%+v", out, rep)
	}
}

func TestBatchSeparateDays(t *testing.T) {
	p := newTestPipeline(fixedSegments(), ddlFunc(noDeadlines), Options{})

	tue := at(9, 0).AddDate(0, 0, 1)
	in := []schedule.Interval{
		iv(key("Smith", "Job A", "Sand"), at(9, 0), at(10, 0)),
		iv(key("Smith", "Job B", "Sand"), tue, tue.Add(time.Hour)),
	}
	out, rep := batch(t, p, in)

	if rep.Moves != 0 {
		t.Fatalf("cross-day batching happened: %+v", rep)
	}
	if !out[1].Start.Equal(tue) {
		t.Fatalf("tuesday interval moved: %+v", out[1])
	}
}
