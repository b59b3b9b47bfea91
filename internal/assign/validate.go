package assign

import (
	"fmt"
	"sort"
	"time"

	"arksched/internal/schedule"
)

// Violation is one broken scheduling rule found after the fact. The planner
// logs violations instead of failing the run: refinement is allowed to trade
// a cure gap for batching efficiency, but the trade must be visible.
type Violation struct {
	Key    schedule.TaskKey `json:"key"`
	Kind   string           `json:"kind"`
	Detail string           `json:"detail"`
}

// Violation kinds.
const (
	ViolationFinishGap    = "finish_gap"
	ViolationAssemblyGap  = "assembly_gap"
	ViolationAssemblyHour = "assembly_hour"
	ViolationOverlap      = "overlap"
)

// Validate re-checks the cure-gap and overlap rules on a finished schedule.
// Synthetic intervals (carryover continuations) are exempt from gap checks
// since their timing was fixed by an earlier run.
func Validate(ivs []schedule.Interval, r Rules) []Violation {
	var out []Violation
	out = append(out, checkUnits(ivs, r)...)
	out = append(out, checkOverlaps(ivs)...)
	return out
}

// stageWindow is the outer envelope of one stage's intervals within a unit.
type stageWindow struct {
	stage string
	first time.Time
	last  time.Time
}

func checkUnits(ivs []schedule.Interval, r Rules) []Violation {
	byUnit := make(map[schedule.TaskKey][]schedule.Interval)
	var order []schedule.TaskKey
	for _, iv := range ivs {
		if !iv.Valid() || iv.Label != "" {
			continue
		}
		uk := iv.Key.Unit()
		if _, ok := byUnit[uk]; !ok {
			order = append(order, uk)
		}
		byUnit[uk] = append(byUnit[uk], iv)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].String() < order[j].String() })

	var out []Violation
	for _, uk := range order {
		unit := byUnit[uk]
		sort.SliceStable(unit, func(i, j int) bool { return unit[i].Start.Before(unit[j].Start) })

		var windows []stageWindow
		idx := make(map[string]int)
		for _, iv := range unit {
			if schedule.IsAssembly(iv.Key.Stage) && iv.Start.Hour() < r.AssemblyEarliestHour {
				out = append(out, Violation{
					Key:  iv.Key,
					Kind: ViolationAssemblyHour,
					Detail: fmt.Sprintf("assembly starts %s, before %02d:00",
						iv.Start.Format("15:04"), r.AssemblyEarliestHour),
				})
			}
			i, ok := idx[iv.Key.Stage]
			if !ok {
				idx[iv.Key.Stage] = len(windows)
				windows = append(windows, stageWindow{stage: iv.Key.Stage, first: iv.Start, last: iv.End})
				continue
			}
			if iv.End.After(windows[i].last) {
				windows[i].last = iv.End
			}
		}

		for i := 1; i < len(windows); i++ {
			prev, next := windows[i-1], windows[i]
			gap := schedule.HoursBetween(prev.last, next.first)
			k := uk
			k.Stage = next.stage
			if schedule.IsFinishing(prev.stage) && gap+hoursEps < r.GapAfterFinishHours {
				out = append(out, Violation{
					Key:  k,
					Kind: ViolationFinishGap,
					Detail: fmt.Sprintf("%.1fh after %q, need %.1fh",
						gap, prev.stage, r.GapAfterFinishHours),
				})
			}
			if schedule.IsAssembly(next.stage) && gap+hoursEps < r.GapBeforeAssemblyHours {
				out = append(out, Violation{
					Key:  k,
					Kind: ViolationAssemblyGap,
					Detail: fmt.Sprintf("%.1fh before assembly, need %.1fh",
						gap, r.GapBeforeAssemblyHours),
				})
			}
		}
	}
	return out
}

func checkOverlaps(ivs []schedule.Interval) []Violation {
	sorted := make([]schedule.Interval, 0, len(ivs))
	for _, iv := range ivs {
		if iv.Valid() {
			sorted = append(sorted, iv)
		}
	}
	schedule.SortIntervals(sorted)

	var out []Violation
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if cur.Employee != prev.Employee {
			continue
		}
		if cur.Start.Before(prev.End) && schedule.HoursBetween(cur.Start, prev.End) > hoursEps {
			out = append(out, Violation{
				Key:  cur.Key,
				Kind: ViolationOverlap,
				Detail: fmt.Sprintf("%s overlaps %s for %s",
					cur.Key.String(), prev.Key.String(), cur.Employee),
			})
		}
	}
	return out
}
