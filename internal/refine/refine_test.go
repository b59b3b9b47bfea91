package refine

import (
	"testing"
	"time"

	"arksched/internal/schedule"
	"arksched/pkg/logx"
)

// All tests run on Monday 2025-03-03 unless they say otherwise.
func at(h, m int) time.Time {
	return time.Date(2025, 3, 3, h, m, 0, 0, time.UTC)
}

func key(customer, job, stage string) schedule.TaskKey {
	return schedule.TaskKey{Customer: customer, Job: job, Service: "Restore", Stage: stage}
}

func iv(k schedule.TaskKey, from, to time.Time) schedule.Interval {
	return schedule.Interval{Employee: "Ana", Key: k}.Retime(from, to)
}

type calFunc func(employee string, date time.Time) []schedule.Segment

func (f calFunc) SegmentsFor(e string, d time.Time) []schedule.Segment { return f(e, d) }

func fixedSegments(segs ...schedule.Segment) calFunc {
	return func(string, time.Time) []schedule.Segment { return segs }
}

type ddlFunc func(customer, stage string) (time.Time, bool)

func (f ddlFunc) DeadlineFor(c, s string) (time.Time, bool) { return f(c, s) }

func noDeadlines(string, string) (time.Time, bool) { return time.Time{}, false }

func newTestPipeline(cal ShiftCalendar, ddl DeadlineIndex, opts Options) *Pipeline {
	return New(cal, ddl, opts, logx.Nop())
}

func assertMonotonic(t *testing.T, in, out []schedule.Interval) {
	t.Helper()
	orig := make(map[schedule.TaskKey]time.Time, len(in))
	for _, x := range in {
		orig[x.Key] = x.Start
	}
	for _, x := range out {
		if o, ok := orig[x.Key]; ok && x.Start.Before(o) {
			t.Fatalf("%s moved earlier: %v -> %v", x.Key, o, x.Start)
		}
	}
}

func TestRefineEmptyInput(t *testing.T) {
	p := newTestPipeline(fixedSegments(), ddlFunc(noDeadlines), Options{})
	out, rep := p.Refine(nil)
	if len(out) != 0 || rep.Merges != 0 || len(rep.FailedStages) != 0 {
		t.Fatalf("empty input: out=%v rep=%+v", out, rep)
	}
}

func TestRefineEndToEnd(t *testing.T) {
	seg := schedule.Segment{Start: at(8, 0), End: at(16, 0)}
	p := newTestPipeline(fixedSegments(seg), ddlFunc(noDeadlines), Options{})

	sand := key("Smith", "Dresser", "Sand")
	paint := key("Smith", "Dresser", "Paint 1")
	in := []schedule.Interval{
		iv(sand, at(9, 0), at(10, 30)),
		iv(paint, at(11, 30), at(12, 30)),
		iv(sand, at(10, 30), at(11, 30)),
	}

	out, rep := p.Refine(in)
	if rep.Merges != 1 {
		t.Fatalf("merges = %d, want 1", rep.Merges)
	}
	if len(out) != 2 {
		t.Fatalf("got %d intervals, want 2", len(out))
	}
	if !out[0].Start.Equal(at(9, 0)) || !out[0].End.Equal(at(11, 30)) || out[0].Hours != 2.5 {
		t.Fatalf("merged sand = %+v", out[0])
	}
	if out[1].Key != paint {
		t.Fatalf("second interval = %+v", out[1])
	}
	assertMonotonic(t, in, out)
}

func TestRefineFailOpenConsolidate(t *testing.T) {
	panicky := calFunc(func(string, time.Time) []schedule.Segment {
		panic("boom")
	})
	p := newTestPipeline(panicky, ddlFunc(noDeadlines), Options{})

	in := []schedule.Interval{
		iv(key("Smith", "Dresser", "Sand"), at(8, 0), at(9, 0)),
		iv(key("Smith", "Dresser", "Paint 1"), at(10, 0), at(11, 0)),
	}
	out, rep := p.Refine(in)

	if len(rep.FailedStages) != 1 || rep.FailedStages[0] != "consolidate" {
		t.Fatalf("failed stages = %v", rep.FailedStages)
	}
	// Consolidation degraded to identity; batching still ran and left the
	// already-ordered day alone.
	if len(out) != 2 {
		t.Fatalf("got %d intervals, want 2", len(out))
	}
	if !out[0].Start.Equal(at(8, 0)) || !out[1].Start.Equal(at(10, 0)) {
		t.Fatalf("placements changed: %+v", out)
	}
}

func TestRefineFailOpenBatch(t *testing.T) {
	seg := schedule.Segment{Start: at(8, 0), End: at(16, 0)}
	panicky := ddlFunc(func(string, string) (time.Time, bool) {
		panic("boom")
	})
	p := newTestPipeline(fixedSegments(seg), panicky, Options{})

	// Sequential non-overlapping singletons: consolidation never consults
	// the deadline index, batching does on every placement.
	in := []schedule.Interval{
		iv(key("Smith", "Dresser", "Sand"), at(8, 0), at(9, 0)),
		iv(key("Smith", "Dresser", "Paint 1"), at(9, 0), at(10, 0)),
	}
	out, rep := p.Refine(in)

	if len(rep.FailedStages) != 1 || rep.FailedStages[0] != "batch" {
		t.Fatalf("failed stages = %v", rep.FailedStages)
	}
	if len(out) != 2 {
		t.Fatalf("got %d intervals, want 2", len(out))
	}
	for i, want := range []time.Time{at(8, 0), at(9, 0)} {
		if !out[i].Start.Equal(want) {
			t.Fatalf("interval %d start = %v, want %v", i, out[i].Start, want)
		}
	}
}

func TestRefineInvalidPassthrough(t *testing.T) {
	seg := schedule.Segment{Start: at(8, 0), End: at(16, 0)}
	p := newTestPipeline(fixedSegments(seg), ddlFunc(noDeadlines), Options{})

	broken := schedule.Interval{Employee: "Ana", Key: key("Smith", "Dresser", "Sand"), Start: at(9, 0)}
	in := []schedule.Interval{
		broken,
		iv(key("Smith", "Dresser", "Paint 1"), at(10, 0), at(11, 0)),
	}
	out, _ := p.Refine(in)
	if len(out) != 2 {
		t.Fatalf("got %d intervals, want 2", len(out))
	}
	var found bool
	for _, x := range out {
		if x.Key == broken.Key && x.End.IsZero() && x.Start.Equal(at(9, 0)) {
			found = true
		}
	}
	if !found {
		t.Fatalf("broken interval was not passed through: %+v", out)
	}
}
