// Package planner runs the full scheduling computation: load state from the
// store, propagate carryover, assign, refine, validate, publish. A run is a
// snapshot; results may be served from a bounded cache, and ledger entries
// written during the cache's lifetime are only consumed by the next fresh
// run.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"arksched/internal/assign"
	"arksched/internal/carryover"
	"arksched/internal/catalog"
	"arksched/internal/eventbus"
	"arksched/internal/metrics"
	"arksched/internal/priority"
	"arksched/internal/refine"
	"arksched/internal/schedule"
	"arksched/internal/store"
	"arksched/pkg/logx"
)

// EventRunPublished is emitted on the bus after every successful rebuild.
const EventRunPublished = "run.published"

// DefaultWindowDays is the window length when global settings carry no
// explicit start or end: today plus thirteen days, two full shop weeks.
const DefaultWindowDays = 13

type Options struct {
	// CacheTTL bounds how long Rebuild serves the previous run instead of
	// recomputing. Zero disables caching.
	CacheTTL time.Duration

	// SnapshotPath, when set, receives the latest run as an atomic JSON
	// file after every publish.
	SnapshotPath string

	// MissingTemplate configures the consolidator's fallback for days
	// without shift rows.
	MissingTemplate refine.MissingTemplateMode
}

// CarryoverReport summarizes one run's ledger propagation.
type CarryoverReport struct {
	Injected int                 `json:"injected"`
	Consumed int                 `json:"consumed"`
	Skipped  []carryover.Skipped `json:"skipped,omitempty"`
	Dropped  []carryover.Drop    `json:"dropped,omitempty"`
}

// Run is one published scheduling result.
type Run struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	Intervals   []schedule.Interval     `json:"intervals"`
	Unscheduled []catalog.Unschedulable `json:"unscheduled,omitempty"`

	Refine     refine.Report      `json:"refine"`
	Carryover  CarryoverReport    `json:"carryover"`
	Violations []assign.Violation `json:"violations,omitempty"`
}

// Planner owns the rebuild pipeline. One instance serves the whole process;
// rebuilds are serialized.
type Planner struct {
	st  *store.Store
	cat *catalog.Catalog
	log logx.Logger
	bus eventbus.Bus
	met *metrics.Metrics

	now func() time.Time

	mu       sync.Mutex
	opts     Options
	cached   *Run
	cachedAt time.Time
}

// New wires a planner. bus and met may be nil.
func New(st *store.Store, cat *catalog.Catalog, opts Options, log logx.Logger, bus eventbus.Bus, met *metrics.Metrics) *Planner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Planner{st: st, cat: cat, opts: opts, log: log, bus: bus, met: met, now: time.Now}
}

// SetOptions applies new options; the next rebuild uses them.
func (p *Planner) SetOptions(opts Options) {
	p.mu.Lock()
	p.opts = opts
	p.mu.Unlock()
}

// Rebuild recomputes and publishes a run, or returns the cached one when it
// is still fresh and force is false.
func (p *Planner) Rebuild(ctx context.Context, force bool) (*Run, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !force && p.cached != nil && p.opts.CacheTTL > 0 && !p.cachedAt.IsZero() {
		if p.now().Sub(p.cachedAt) < p.opts.CacheTTL {
			p.countRun("cached")
			return p.cached, nil
		}
	}

	started := p.now()
	run, consumedIDs, err := p.build(ctx, started)
	if err != nil {
		p.countRun("error")
		return nil, err
	}
	run.FinishedAt = p.now()

	payload, err := json.Marshal(run)
	if err != nil {
		p.countRun("error")
		return nil, fmt.Errorf("encode run: %w", err)
	}
	rec := store.RunRecord{
		ID:          run.ID,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		WindowStart: run.WindowStart,
		WindowEnd:   run.WindowEnd,
		Payload:     payload,
	}
	if err := p.st.PublishRun(ctx, rec, consumedIDs); err != nil {
		p.countRun("error")
		return nil, fmt.Errorf("publish run: %w", err)
	}

	if p.opts.SnapshotPath != "" {
		if err := store.WriteSnapshot(p.opts.SnapshotPath, payload); err != nil {
			// The run is already durable; a broken snapshot is not fatal.
			p.log.Warn("snapshot write failed",
				logx.String("path", p.opts.SnapshotPath), logx.Err(err))
		}
	}

	p.cached = run
	p.cachedAt = p.now()
	p.observe(run, started)
	if p.bus != nil {
		p.bus.Publish(eventbus.Event{Type: EventRunPublished, Data: run.ID})
	}
	p.log.Info("run published",
		logx.String("run", run.ID),
		logx.Int("intervals", len(run.Intervals)),
		logx.Int("unscheduled", len(run.Unscheduled)),
		logx.Int("violations", len(run.Violations)),
		logx.Duration("took", run.FinishedAt.Sub(run.StartedAt)))
	return run, nil
}

// Latest returns the cached run, falling back to the most recent published
// run in the store. ok is false when nothing was ever published.
func (p *Planner) Latest(ctx context.Context) (*Run, bool, error) {
	p.mu.Lock()
	if p.cached != nil {
		run := p.cached
		p.mu.Unlock()
		return run, true, nil
	}
	p.mu.Unlock()

	rec, ok, err := p.st.LatestRun(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	var run Run
	if err := json.Unmarshal(rec.Payload, &run); err != nil {
		return nil, false, fmt.Errorf("decode run %s: %w", rec.ID, err)
	}

	p.mu.Lock()
	if p.cached == nil {
		// cachedAt stays zero: serving history never satisfies the TTL.
		p.cached = &run
	}
	p.mu.Unlock()
	return &run, true, nil
}

// build computes one run without publishing it. Mutex held by caller.
func (p *Planner) build(ctx context.Context, started time.Time) (*Run, []int64, error) {
	cal, err := p.st.Calendar(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load roster: %w", err)
	}
	orders, err := p.st.ListOrders(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load orders: %w", err)
	}
	weightRows, err := p.st.ListWeights(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load weights: %w", err)
	}
	targetRows, err := p.st.ListTargets(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load targets: %w", err)
	}
	projects, err := p.st.ListProjects(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load projects: %w", err)
	}
	settings, err := p.st.GetSettings(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load settings: %w", err)
	}
	entries, err := p.st.ListEntries(ctx, false)
	if err != nil {
		return nil, nil, fmt.Errorf("load ledger: %w", err)
	}

	windowStart, windowEnd := p.window(settings, started)
	weights := priority.NewWeights(weightRows)
	deadlines := priority.NewDeadlines(targetRows)
	rules := assign.Rules{
		GapAfterFinishHours:    settings.GapAfterFinishHours,
		GapBeforeAssemblyHours: settings.GapBeforeAssemblyHours,
		AssemblyEarliestHour:   settings.AssemblyEarliestHour,
	}

	prop := carryover.New(cal, p.log).Propagate(entries, windowStart, windowEnd)

	blocks := make([]schedule.Block, 0, len(projects)+len(prop.Blocks))
	for _, pr := range projects {
		blocks = append(blocks, pr.Block())
	}
	blocks = append(blocks, prop.Blocks...)

	reqs, unscheduled := p.cat.Decompose(orders)

	asn := assign.New(cal, p.log)
	raw, failed := asn.Assign(reqs, assign.Constraints{
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Blocks:      blocks,
		Weights:     weights,
		Deadlines:   deadlines,
		Rules:       rules,
	})
	unscheduled = append(unscheduled, failed...)

	pipe := refine.New(cal, deadlines, refine.Options{MissingTemplate: p.opts.MissingTemplate}, p.log)
	refined, report := pipe.Refine(raw)

	// Continuations are part of the presented schedule, pinned where
	// propagation placed them.
	for _, b := range prop.Blocks {
		refined = append(refined, schedule.Interval{
			Employee: b.Employee,
			Key:      b.Key,
			Label:    b.Label,
		}.Retime(b.Start, b.End))
	}
	schedule.SortIntervals(refined)

	violations := assign.Validate(refined, rules)
	for _, v := range violations {
		p.log.Warn("schedule violation",
			logx.String("kind", v.Kind),
			logx.String("task", v.Key.String()),
			logx.String("detail", v.Detail))
	}

	run := &Run{
		ID:          uuid.NewString(),
		StartedAt:   started,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Intervals:   refined,
		Unscheduled: unscheduled,
		Refine:      report,
		Carryover: CarryoverReport{
			Injected: len(prop.Blocks),
			Consumed: len(prop.ConsumedIDs),
			Skipped:  prop.Skipped,
			Dropped:  prop.Dropped,
		},
		Violations: violations,
	}
	return run, prop.ConsumedIDs, nil
}

// window resolves the scheduling window from settings, filling in whichever
// bound is missing from the clock.
func (p *Planner) window(s store.Settings, now time.Time) (time.Time, time.Time) {
	start := s.WindowStart
	if start.IsZero() {
		start = schedule.DateOf(now)
	}
	end := s.WindowEnd
	if end.IsZero() || end.Before(start) {
		end = start.AddDate(0, 0, DefaultWindowDays)
	}
	return start, end
}

func (p *Planner) countRun(result string) {
	if p.met != nil {
		p.met.Runs.WithLabelValues(result).Inc()
	}
}

func (p *Planner) observe(run *Run, started time.Time) {
	if p.met == nil {
		return
	}
	p.met.Runs.WithLabelValues("ok").Inc()
	p.met.RunDuration.Observe(p.now().Sub(started).Seconds())
	p.met.Intervals.Set(float64(len(run.Intervals)))
	p.met.Unscheduled.Set(float64(len(run.Unscheduled)))
	p.met.RefineMerges.Add(float64(run.Refine.Merges))
	p.met.RefineRejects.Add(float64(run.Refine.Rejects))
	p.met.RefineMoves.Add(float64(run.Refine.Moves))
	p.met.RefineSkips.Add(float64(run.Refine.Skips))
	for _, pass := range run.Refine.FailedStages {
		p.met.RefineFailures.WithLabelValues(pass).Inc()
	}
	p.met.CarryoverConsumed.Add(float64(run.Carryover.Consumed))
	p.met.CarryoverSkipped.Add(float64(len(run.Carryover.Skipped)))
	var dropped float64
	for _, d := range run.Carryover.Dropped {
		dropped += d.Hours
	}
	p.met.CarryoverDroppedHours.Add(dropped)
}
