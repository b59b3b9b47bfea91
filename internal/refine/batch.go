package refine

import (
	"sort"
	"time"

	"arksched/internal/schedule"
)

// batchAll re-orders each employee/day so same-family stages run together.
func (p *Pipeline) batchAll(intervals []schedule.Interval, rep *Report) []schedule.Interval {
	groups, keys, out := splitDays(intervals)
	for _, k := range keys {
		group := append([]schedule.Interval(nil), groups[k]...)
		sortGroup(group)
		out = append(out, p.batchDay(group, rep)...)
	}
	return out
}

// batchDay lays one day's intervals back out in family order. An interval
// never starts before its original start, and a move that would push the
// interval past its own deadline keeps the original placement instead.
func (p *Pipeline) batchDay(day []schedule.Interval, rep *Report) []schedule.Interval {
	if len(day) < 2 {
		return day
	}

	// Family priority = earliest original start among members.
	first := make(map[string]time.Time)
	for _, iv := range day {
		fam := schedule.StageFamily(iv.Key.Stage)
		if t, ok := first[fam]; !ok || iv.Start.Before(t) {
			first[fam] = iv.Start
		}
	}
	families := make([]string, 0, len(first))
	for fam := range first {
		families = append(families, fam)
	}
	sort.Slice(families, func(i, j int) bool {
		a, b := families[i], families[j]
		if !first[a].Equal(first[b]) {
			return first[a].Before(first[b])
		}
		return a < b
	})

	// Concatenate by family, keeping each family's internal order.
	ordered := make([]schedule.Interval, 0, len(day))
	for _, fam := range families {
		for _, iv := range day {
			if schedule.StageFamily(iv.Key.Stage) == fam {
				ordered = append(ordered, iv)
			}
		}
	}

	out := make([]schedule.Interval, 0, len(ordered))
	cursor := ordered[0].Start
	for _, iv := range ordered {
		newStart := maxTime(cursor, iv.Start)
		newEnd := schedule.AddHours(newStart, iv.Hours)

		if p.ddl != nil {
			if d, ok := p.ddl.DeadlineFor(iv.Key.Customer, iv.Key.Stage); ok && newEnd.After(d) {
				// Keep the original placement; advance past the original end.
				out = append(out, iv)
				cursor = maxTime(cursor, iv.End)
				rep.Skips++
				continue
			}
		}

		moved := iv.Retime(newStart, newEnd)
		if !moved.Start.Equal(iv.Start) {
			rep.Moves++
		}
		out = append(out, moved)
		cursor = maxTime(cursor, newEnd)
	}
	return out
}
