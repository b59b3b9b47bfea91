package planner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"arksched/internal/carryover"
	"arksched/internal/catalog"
	"arksched/internal/eventbus"
	"arksched/internal/metrics"
	"arksched/internal/roster"
	"arksched/internal/schedule"
	"arksched/internal/store"
	"arksched/pkg/logx"
)

// Monday 2025-03-03 in local time, matching how day columns round-trip.
func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

var monday = day(2025, 3, 3)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "arksched.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seedShop installs a one-person crew working Mon..Fri 08:00-16:00 and a
// fixed two-week window starting Monday.
func seedShop(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	if err := s.UpsertEmployee(ctx, roster.Employee{Name: "Ana", CanPrep: true, CanFinish: true}); err != nil {
		t.Fatalf("seed employee: %v", err)
	}
	for wd := 0; wd < 5; wd++ {
		if _, err := s.AddShift(ctx, roster.ShiftRule{Employee: "Ana", Weekday: wd, Start: "08:00", End: "16:00"}); err != nil {
			t.Fatalf("seed shift: %v", err)
		}
	}
	st, err := s.GetSettings(ctx)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	st.WindowStart = monday
	st.WindowEnd = monday.AddDate(0, 0, 13)
	if err := s.PutSettings(ctx, st); err != nil {
		t.Fatalf("put settings: %v", err)
	}
}

func newTestPlanner(t *testing.T, s *store.Store, opts Options) *Planner {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return New(s, cat, opts, logx.Nop(), nil, nil)
}

func TestRebuildPublishesRun(t *testing.T) {
	s := newTestStore(t)
	seedShop(t, s)
	ctx := context.Background()

	if _, err := s.UpsertOrder(ctx, catalog.Order{
		Customer: "Smith", Job: "Dresser", Service: "Restore",
		StageCompleted: catalog.StageNotStarted, Qty: 1,
	}); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	_, met := metrics.NewRegistry()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	p := New(s, cat, Options{}, logx.Nop(), bus, met)

	run, err := p.Rebuild(ctx, false)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if run.ID == "" || len(run.Intervals) == 0 {
		t.Fatalf("run = %+v", run)
	}
	if len(run.Unscheduled) != 0 {
		t.Fatalf("unscheduled = %+v", run.Unscheduled)
	}
	first := run.Intervals[0]
	if first.Key.Stage != "Strip" || !first.Start.Equal(monday.Add(8*time.Hour)) {
		t.Fatalf("first interval = %+v", first)
	}
	for _, iv := range run.Intervals {
		if iv.Start.Before(run.WindowStart) || iv.End.After(run.WindowEnd.AddDate(0, 0, 1)) {
			t.Fatalf("interval outside window: %+v", iv)
		}
	}

	select {
	case e := <-events:
		if e.Type != EventRunPublished || e.Data != run.ID {
			t.Fatalf("event = %+v", e)
		}
	default:
		t.Fatalf("no run.published event")
	}

	// A fresh planner on the same store must see the run via the payload.
	p2 := newTestPlanner(t, s, Options{})
	got, ok, err := p2.Latest(ctx)
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if got.ID != run.ID || len(got.Intervals) != len(run.Intervals) {
		t.Fatalf("reloaded run = %+v", got)
	}
}

func TestRebuildCacheAndForce(t *testing.T) {
	s := newTestStore(t)
	seedShop(t, s)
	ctx := context.Background()

	p := newTestPlanner(t, s, Options{CacheTTL: time.Hour})
	now := monday.Add(6 * time.Hour)
	p.now = func() time.Time { return now }

	run1, err := p.Rebuild(ctx, false)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	now = now.Add(time.Minute)
	run2, err := p.Rebuild(ctx, false)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if run2.ID != run1.ID {
		t.Fatalf("cache miss inside TTL: %s vs %s", run2.ID, run1.ID)
	}

	run3, err := p.Rebuild(ctx, true)
	if err != nil {
		t.Fatalf("forced rebuild: %v", err)
	}
	if run3.ID == run1.ID {
		t.Fatalf("force did not recompute")
	}

	now = now.Add(2 * time.Hour)
	run4, err := p.Rebuild(ctx, false)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if run4.ID == run3.ID {
		t.Fatalf("expired cache still served")
	}
}

func TestRebuildConsumesLedgerExactlyOnce(t *testing.T) {
	s := newTestStore(t)
	seedShop(t, s)
	ctx := context.Background()

	entry := carryover.Entry{
		Employee:       "Ana",
		Key:            schedule.TaskKey{Customer: "Smith", Job: "Dresser", Service: "Restore", Stage: "Sand"},
		HoursPlanned:   4,
		HoursDone:      1,
		HoursRemaining: 3,
		ReportedOn:     monday,
		ResumeOn:       monday.AddDate(0, 0, 1),
	}
	if _, err := s.AddEntry(ctx, entry); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	p := newTestPlanner(t, s, Options{})
	run, err := p.Rebuild(ctx, false)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if run.Carryover.Injected != 1 || run.Carryover.Consumed != 1 {
		t.Fatalf("carryover = %+v", run.Carryover)
	}
	var continuation *schedule.Interval
	for i := range run.Intervals {
		if run.Intervals[i].Label != "" {
			continuation = &run.Intervals[i]
		}
	}
	if continuation == nil || !strings.Contains(continuation.Label, "Carryover") {
		t.Fatalf("no continuation interval: %+v", run.Intervals)
	}
	if continuation.Key.Stage != "Sand" || continuation.Hours != 3 {
		t.Fatalf("continuation = %+v", continuation)
	}

	open, err := s.ListEntries(ctx, false)
	if err != nil || len(open) != 0 {
		t.Fatalf("open entries after run = %+v, err=%v", open, err)
	}

	// The next run sees a consumed ledger: nothing to inject, no double
	// blocking.
	run2, err := p.Rebuild(ctx, true)
	if err != nil {
		t.Fatalf("second rebuild: %v", err)
	}
	if run2.Carryover.Injected != 0 || run2.Carryover.Consumed != 0 {
		t.Fatalf("second carryover = %+v", run2.Carryover)
	}
	for _, iv := range run2.Intervals {
		if iv.Label != "" {
			t.Fatalf("stale continuation in second run: %+v", iv)
		}
	}
}

func TestRebuildWindowDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.UpsertEmployee(ctx, roster.Employee{Name: "Ana", CanPrep: true}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	p := newTestPlanner(t, s, Options{})
	fixed := monday.Add(10 * time.Hour)
	p.now = func() time.Time { return fixed }

	run, err := p.Rebuild(ctx, false)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if !run.WindowStart.Equal(monday) {
		t.Fatalf("window start = %v, want %v", run.WindowStart, monday)
	}
	if !run.WindowEnd.Equal(monday.AddDate(0, 0, DefaultWindowDays)) {
		t.Fatalf("window end = %v", run.WindowEnd)
	}
}

func TestRebuildReportsUnknownService(t *testing.T) {
	s := newTestStore(t)
	seedShop(t, s)
	ctx := context.Background()

	if _, err := s.UpsertOrder(ctx, catalog.Order{
		Customer: "Smith", Job: "Dresser", Service: "Gilding",
		StageCompleted: catalog.StageNotStarted, Qty: 1,
	}); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	p := newTestPlanner(t, s, Options{})
	run, err := p.Rebuild(ctx, false)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if len(run.Intervals) != 0 {
		t.Fatalf("intervals = %+v", run.Intervals)
	}
	if len(run.Unscheduled) != 1 || !strings.Contains(run.Unscheduled[0].Reason, "unknown service") {
		t.Fatalf("unscheduled = %+v", run.Unscheduled)
	}
}

func TestRebuildWritesSnapshot(t *testing.T) {
	s := newTestStore(t)
	seedShop(t, s)

	path := filepath.Join(t.TempDir(), "schedule.json")
	p := newTestPlanner(t, s, Options{SnapshotPath: path})

	run, err := p.Rebuild(context.Background(), false)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !bytes.Contains(b, []byte(run.ID)) {
		t.Fatalf("snapshot missing run id %s", run.ID)
	}
}

func TestWriteCSV(t *testing.T) {
	k := schedule.TaskKey{Customer: "Smith", Job: "6 Chairs", Service: "3-Coat", Stage: "Paint 1", Item: 2}
	plain := schedule.Interval{Employee: "Ana", Key: k}.
		Retime(monday.Add(9*time.Hour), monday.Add(10*time.Hour+30*time.Minute))
	cont := schedule.Interval{
		Employee: "Ben",
		Key:      schedule.TaskKey{Customer: "Jones", Job: "Table", Service: "Restore", Stage: "Sand"},
		Label:    "Carryover: Jones/Table/Restore/Sand",
	}.Retime(monday.Add(8*time.Hour), monday.Add(11*time.Hour))

	var buf bytes.Buffer
	if err := WriteCSV(&buf, []schedule.Interval{plain, cont}); err != nil {
		t.Fatalf("write: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	if lines[0] != "Customer,Job,Service,Stage,Assigned To,Start,End,Hours" {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "6 Chairs #2") || !strings.Contains(lines[1], "1.5") {
		t.Fatalf("row = %q", lines[1])
	}
	if !strings.Contains(lines[2], "Sand (carryover)") || !strings.Contains(lines[2], "2025-03-03 08:00") {
		t.Fatalf("row = %q", lines[2])
	}
}
