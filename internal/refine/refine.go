package refine

import (
	"sort"
	"time"

	"arksched/internal/schedule"
	"arksched/pkg/logx"
)

// ShiftCalendar resolves working windows per employee and date.
// *roster.Calendar satisfies this.
type ShiftCalendar interface {
	SegmentsFor(employee string, date time.Time) []schedule.Segment
}

// DeadlineIndex resolves the earliest completion deadline for a
// (customer, stage) pair. *priority.Deadlines satisfies this.
type DeadlineIndex interface {
	DeadlineFor(customer, stage string) (time.Time, bool)
}

// MissingTemplateMode picks the consolidator's behavior for a day without
// shift template rows.
type MissingTemplateMode string

const (
	// MissingTemplateSynthetic derives one segment spanning the day's
	// observed task bounds. Original behavior; a guess, not a guarantee.
	MissingTemplateSynthetic MissingTemplateMode = "synthetic"

	// MissingTemplateSkip leaves such days unrefined.
	MissingTemplateSkip MissingTemplateMode = "skip"
)

type Options struct {
	MissingTemplate MissingTemplateMode
}

// Report counts what the pipeline did to one schedule.
type Report struct {
	Merges  int `json:"merges"`  // consolidation merges committed
	Rejects int `json:"rejects"` // consolidation merges rejected
	Moves   int `json:"moves"`   // batching placements moved later
	Skips   int `json:"skips"`   // batching moves skipped to keep a deadline

	// FailedStages names passes degraded to identity by a recovered panic.
	FailedStages []string `json:"failed_stages,omitempty"`
}

// Pipeline refines schedules. Collaborators are injected; the pipeline keeps
// no state between calls.
type Pipeline struct {
	cal  ShiftCalendar
	ddl  DeadlineIndex
	opts Options
	log  logx.Logger
}

func New(cal ShiftCalendar, ddl DeadlineIndex, opts Options, log logx.Logger) *Pipeline {
	if opts.MissingTemplate == "" {
		opts.MissingTemplate = MissingTemplateSynthetic
	}
	return &Pipeline{cal: cal, ddl: ddl, opts: opts, log: log}
}

// Refine consolidates then batches. The input is not mutated; the returned
// slice is sorted by employee and start.
func (p *Pipeline) Refine(intervals []schedule.Interval) ([]schedule.Interval, Report) {
	var rep Report
	out := p.failOpen("consolidate", intervals, &rep, func(in []schedule.Interval) []schedule.Interval {
		return p.consolidateAll(in, &rep)
	})
	out = p.failOpen("batch", out, &rep, func(in []schedule.Interval) []schedule.Interval {
		return p.batchAll(in, &rep)
	})
	schedule.SortIntervals(out)
	return out, rep
}

// failOpen runs one pass, returning the pass input unchanged if it panics.
func (p *Pipeline) failOpen(stage string, in []schedule.Interval, rep *Report, fn func([]schedule.Interval) []schedule.Interval) (out []schedule.Interval) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("refinement pass failed, keeping its input",
				logx.String("pass", stage),
				logx.Any("panic", r),
				logx.Stack(logx.StackTrace(3, 32)))
			rep.FailedStages = append(rep.FailedStages, stage)
			out = in
		}
	}()
	return fn(in)
}

// dayKey groups intervals per employee and calendar date.
type dayKey struct {
	employee string
	day      string // yyyy-mm-dd
}

// splitDays partitions valid intervals into employee/day groups and returns
// the rest (unusable timestamps) for passthrough. Group keys come back
// sorted so runs are deterministic.
func splitDays(intervals []schedule.Interval) (map[dayKey][]schedule.Interval, []dayKey, []schedule.Interval) {
	groups := make(map[dayKey][]schedule.Interval)
	var passthrough []schedule.Interval
	for _, iv := range intervals {
		if !iv.Valid() {
			passthrough = append(passthrough, iv)
			continue
		}
		k := dayKey{employee: iv.Employee, day: iv.Start.Format("2006-01-02")}
		groups[k] = append(groups[k], iv)
	}
	keys := make([]dayKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].employee != keys[j].employee {
			return keys[i].employee < keys[j].employee
		}
		return keys[i].day < keys[j].day
	})
	return groups, keys, passthrough
}

// sortGroup puts one day's intervals into canonical order: start, end, key.
func sortGroup(ivs []schedule.Interval) {
	sort.SliceStable(ivs, func(i, j int) bool {
		a, b := ivs[i], ivs[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		return a.Key.String() < b.Key.String()
	})
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
