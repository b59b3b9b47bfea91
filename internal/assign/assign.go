// Package assign places decomposed task requests onto the crew calendar. It
// is a deterministic greedy pass: customers with lower priority weight go
// first, every stage waits for its predecessor plus the shop's cure gaps, and
// each stage lands on whichever able employee can finish it soonest. Work
// splits across free gaps, segments, and days as needed; the fragments share
// one task identity key and are exactly what the refinement pipeline later
// merges back together.
package assign

import (
	"fmt"
	"sort"
	"time"

	"arksched/internal/catalog"
	"arksched/internal/priority"
	"arksched/internal/roster"
	"arksched/internal/schedule"
	"arksched/pkg/logx"
)

// Hour arithmetic runs on floats; treat anything this small as zero.
const hoursEps = 1e-9

// Rules carries the shop's cure-time constraints between consecutive stages
// of one unit.
type Rules struct {
	// GapAfterFinishHours keeps the next stage off a freshly sprayed piece.
	GapAfterFinishHours float64 `json:"gap_after_finish_hours"`

	// GapBeforeAssemblyHours is the cure time before a piece may be put
	// back together.
	GapBeforeAssemblyHours float64 `json:"gap_before_assembly_hours"`

	// AssemblyEarliestHour is the earliest wall-clock hour an assembly
	// stage may start on any day.
	AssemblyEarliestHour int `json:"assembly_earliest_hour"`
}

// DefaultRules mirrors the shop's stock settings: 2h after a coat, 12h
// before assembly, assembly never before 09:00.
func DefaultRules() Rules {
	return Rules{GapAfterFinishHours: 2, GapBeforeAssemblyHours: 12, AssemblyEarliestHour: 9}
}

// Constraints bundles everything the assigner honors besides the calendar.
type Constraints struct {
	WindowStart time.Time
	WindowEnd   time.Time

	// Blocks is fixed unavailability: special projects and carryover
	// continuations injected by a previous run's propagation.
	Blocks []schedule.Block

	// Weights orders customers; nil weighs everyone the same.
	Weights *priority.Weights

	// Deadlines breaks weight ties: a unit with an earlier stage target
	// schedules before one with none. Nil disables the tie-break.
	Deadlines *priority.Deadlines

	Rules Rules
}

// Assigner produces the initial, possibly fragmented schedule.
type Assigner struct {
	cal *roster.Calendar
	log logx.Logger
}

func New(cal *roster.Calendar, log logx.Logger) *Assigner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Assigner{cal: cal, log: log}
}

// span is a half-open busy window [start, end).
type span struct {
	start time.Time
	end   time.Time
}

// unit is one physical piece: its stages run in sequence.
type unit struct {
	key      schedule.TaskKey // stage cleared
	weight   float64
	deadline time.Time // earliest stage target; zero when none
	stages   []schedule.Request
}

// Assign places every request inside the window, honoring segments, days
// off, fixed blocks, abilities, stage order, and cure gaps. Units that stall
// are reported once, at the stage that failed, and never abort the rest.
func (a *Assigner) Assign(reqs []schedule.Request, c Constraints) ([]schedule.Interval, []catalog.Unschedulable) {
	if len(reqs) == 0 {
		return nil, nil
	}

	units := groupUnits(reqs, c)
	busy := busyByEmployee(c.Blocks)

	var out []schedule.Interval
	var unscheduled []catalog.Unschedulable

	for _, u := range units {
		skipped, reason, stage, item := a.placeUnit(u, c, busy, &out)
		if reason == "" {
			continue
		}
		if skipped > 0 {
			reason = fmt.Sprintf("%s; %d later stage(s) skipped", reason, skipped)
		}
		a.log.Debug("unit stalled",
			logx.String("unit", u.key.String()),
			logx.String("reason", reason))
		unscheduled = append(unscheduled, catalog.Unschedulable{
			Customer: u.key.Customer,
			Job:      u.key.Job,
			Service:  u.key.Service,
			Stage:    stage,
			Item:     item,
			Reason:   reason,
		})
	}

	schedule.SortIntervals(out)
	return out, unscheduled
}

// placeUnit walks one unit's stage chain. On the first stage that cannot be
// placed it stops and reports how many later stages were skipped with it.
func (a *Assigner) placeUnit(u unit, c Constraints, busy map[string][]span, out *[]schedule.Interval) (skipped int, reason, stage string, item int) {
	var prevEnd time.Time
	var prevFinishing bool

	for i, st := range u.stages {
		if st.Hours <= hoursEps {
			continue
		}

		floor := c.WindowStart
		if !prevEnd.IsZero() {
			floor = maxTime(floor, prevEnd)
			if prevFinishing && c.Rules.GapAfterFinishHours > 0 {
				floor = maxTime(floor, schedule.AddHours(prevEnd, c.Rules.GapAfterFinishHours))
			}
			if st.Assembly && c.Rules.GapBeforeAssemblyHours > 0 {
				floor = maxTime(floor, schedule.AddHours(prevEnd, c.Rules.GapBeforeAssemblyHours))
			}
		}

		emp, frags, ok := a.bestPlacement(st, floor, c, busy)
		if !ok {
			able := a.ableEmployees(st)
			if len(able) == 0 {
				reason = fmt.Sprintf("no employee can run stage %q", st.Key.Stage)
			} else {
				reason = fmt.Sprintf("stage %q does not fit before the window end", st.Key.Stage)
			}
			return len(u.stages) - i - 1, reason, st.Key.Stage, st.Key.Item
		}

		for _, f := range frags {
			*out = append(*out, schedule.Interval{Employee: emp, Key: st.Key}.Retime(f.start, f.end))
			busy[emp] = insertSpan(busy[emp], f)
		}
		prevEnd = frags[len(frags)-1].end
		prevFinishing = st.NeedsFinish
	}
	return 0, "", "", 0
}

// bestPlacement simulates the stage on every able employee and commits to
// the one finishing soonest. Ties go to the earlier first fragment, then to
// the lexically smaller name via iteration order.
func (a *Assigner) bestPlacement(st schedule.Request, floor time.Time, c Constraints, busy map[string][]span) (string, []span, bool) {
	var bestEmp string
	var bestFrags []span

	for _, e := range a.ableEmployees(st) {
		frags, ok := a.simulate(e.Name, busy[e.Name], st.Hours, floor, st.Assembly, c)
		if !ok {
			continue
		}
		if bestFrags == nil || better(frags, bestFrags) {
			bestEmp, bestFrags = e.Name, frags
		}
	}
	return bestEmp, bestFrags, bestFrags != nil
}

func better(a, b []span) bool {
	ae, be := a[len(a)-1].end, b[len(b)-1].end
	if !ae.Equal(be) {
		return ae.Before(be)
	}
	return a[0].start.Before(b[0].start)
}

func (a *Assigner) ableEmployees(st schedule.Request) []roster.Employee {
	var able []roster.Employee
	for _, e := range a.cal.Employees() {
		if st.NeedsFinish && !e.CanFinish {
			continue
		}
		if !st.NeedsFinish && !e.CanPrep {
			continue
		}
		able = append(able, e)
	}
	return able
}

// simulate finds where the stage's hours would land for one employee without
// mutating the busy set. ok is false when the window ends first.
func (a *Assigner) simulate(emp string, busy []span, hours float64, floor time.Time, assembly bool, c Constraints) ([]span, bool) {
	remaining := hours
	var frags []span

	day := schedule.DateOf(maxTime(floor, c.WindowStart))
	lastDay := schedule.DateOf(c.WindowEnd)
	for ; !day.After(lastDay) && remaining > hoursEps; day = day.AddDate(0, 0, 1) {
		for _, seg := range a.cal.SegmentsFor(emp, day) {
			from := maxTime(seg.Start, floor)
			if assembly && c.Rules.AssemblyEarliestHour > 0 {
				from = maxTime(from, clockOn(day, c.Rules.AssemblyEarliestHour))
			}
			to := minTime(seg.End, c.WindowEnd)
			if !to.After(from) {
				continue
			}
			for _, gap := range freeWithin(from, to, busy) {
				take := schedule.HoursBetween(gap.start, gap.end)
				if take > remaining {
					take = remaining
				}
				frags = append(frags, span{start: gap.start, end: schedule.AddHours(gap.start, take)})
				remaining -= take
				if remaining <= hoursEps {
					break
				}
			}
			if remaining <= hoursEps {
				break
			}
		}
	}

	if remaining > hoursEps {
		return nil, false
	}
	return frags, true
}

// freeWithin subtracts the busy spans from [from, to), returning the free
// gaps in order. busy must be sorted by start; overlaps are tolerated.
func freeWithin(from, to time.Time, busy []span) []span {
	var free []span
	cursor := from
	for _, b := range busy {
		if !b.end.After(cursor) {
			continue
		}
		if !b.start.Before(to) {
			break
		}
		if b.start.After(cursor) {
			free = append(free, span{start: cursor, end: minTime(b.start, to)})
		}
		cursor = maxTime(cursor, b.end)
		if !cursor.Before(to) {
			return free
		}
	}
	if cursor.Before(to) {
		free = append(free, span{start: cursor, end: to})
	}
	return free
}

// insertSpan keeps the employee's busy list sorted by start.
func insertSpan(busy []span, s span) []span {
	i := sort.Search(len(busy), func(i int) bool { return busy[i].start.After(s.start) })
	busy = append(busy, span{})
	copy(busy[i+1:], busy[i:])
	busy[i] = s
	return busy
}

func busyByEmployee(blocks []schedule.Block) map[string][]span {
	m := make(map[string][]span)
	for _, b := range blocks {
		if !b.End.After(b.Start) {
			continue
		}
		m[b.Employee] = insertSpan(m[b.Employee], span{start: b.Start, end: b.End})
	}
	return m
}

// groupUnits buckets requests per physical piece and fixes the scheduling
// order: weight, then earliest stage target, then name for determinism.
func groupUnits(reqs []schedule.Request, c Constraints) []unit {
	byKey := make(map[schedule.TaskKey]*unit)
	var order []schedule.TaskKey
	for _, r := range reqs {
		uk := r.Key.Unit()
		u, ok := byKey[uk]
		if !ok {
			u = &unit{key: uk, weight: priority.DefaultWeight}
			if c.Weights != nil {
				u.weight = c.Weights.For(uk.Customer)
			}
			byKey[uk] = u
			order = append(order, uk)
		}
		u.stages = append(u.stages, r)
		if c.Deadlines != nil {
			if d, ok := c.Deadlines.DeadlineFor(r.Key.Customer, r.Key.Stage); ok {
				if u.deadline.IsZero() || d.Before(u.deadline) {
					u.deadline = d
				}
			}
		}
	}

	units := make([]unit, 0, len(order))
	for _, k := range order {
		u := byKey[k]
		sort.SliceStable(u.stages, func(i, j int) bool { return u.stages[i].Seq < u.stages[j].Seq })
		units = append(units, *u)
	}
	sort.SliceStable(units, func(i, j int) bool {
		a, b := units[i], units[j]
		if a.weight != b.weight {
			return a.weight < b.weight
		}
		if !a.deadline.Equal(b.deadline) {
			// A zero deadline sorts last: dated work goes first.
			if a.deadline.IsZero() || b.deadline.IsZero() {
				return !a.deadline.IsZero()
			}
			return a.deadline.Before(b.deadline)
		}
		if a.key.Customer != b.key.Customer {
			return a.key.Customer < b.key.Customer
		}
		if a.key.Job != b.key.Job {
			return a.key.Job < b.key.Job
		}
		return a.key.Item < b.key.Item
	})
	return units
}

func clockOn(day time.Time, hour int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, day.Location())
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
