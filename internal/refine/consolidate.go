package refine

import (
	"arksched/internal/schedule"
	"arksched/pkg/logx"
)

// consolidateAll merges same-task fragments per employee, date, and shift
// segment. Segments are processed independently so a merge never spans a
// break.
func (p *Pipeline) consolidateAll(intervals []schedule.Interval, rep *Report) []schedule.Interval {
	groups, keys, out := splitDays(intervals)

	for _, k := range keys {
		group := append([]schedule.Interval(nil), groups[k]...)
		sortGroup(group)
		date := schedule.DateOf(group[0].Start)

		segs := p.cal.SegmentsFor(k.employee, date)
		if len(segs) == 0 {
			switch p.opts.MissingTemplate {
			case MissingTemplateSkip:
				p.log.Debug("no shift template, day left unrefined",
					logx.String("employee", k.employee), logx.String("day", k.day))
				out = append(out, group...)
				continue
			default:
				segs = []schedule.Segment{syntheticSegment(group)}
			}
		}

		// Track which intervals landed in at least one segment; the rest
		// pass through so work outside every window is never lost.
		placed := make([]bool, len(group))
		for _, seg := range segs {
			var clipped []schedule.Interval
			for i, iv := range group {
				if c, ok := iv.Clip(seg.Start, seg.End); ok {
					clipped = append(clipped, c)
					placed[i] = true
				}
			}
			if len(clipped) == 0 {
				continue
			}
			out = append(out, p.consolidateSegment(seg, clipped, rep)...)
		}
		for i, iv := range group {
			if !placed[i] {
				out = append(out, iv)
			}
		}
	}
	return out
}

// syntheticSegment spans the day's observed task bounds. Used only when the
// roster has no window for the day and the fallback mode allows guessing.
func syntheticSegment(group []schedule.Interval) schedule.Segment {
	seg := schedule.Segment{Start: group[0].Start, End: group[0].End}
	for _, iv := range group[1:] {
		if iv.Start.Before(seg.Start) {
			seg.Start = iv.Start
		}
		if iv.End.After(seg.End) {
			seg.End = iv.End
		}
	}
	return seg
}

// consolidateSegment walks one segment's clipped intervals with a cursor and
// a consumed set, merging same-key runs where the segment and the deadline
// index allow.
func (p *Pipeline) consolidateSegment(seg schedule.Segment, ivs []schedule.Interval, rep *Report) []schedule.Interval {
	sortGroup(ivs)

	out := make([]schedule.Interval, 0, len(ivs))
	consumed := make([]bool, len(ivs))
	cursor := seg.Start

	for i, r := range ivs {
		if consumed[i] {
			continue
		}

		effStart := maxTime(cursor, r.Start)
		combined := r.Hours
		var siblings []int
		for j := i + 1; j < len(ivs); j++ {
			if !consumed[j] && ivs[j].Key == r.Key {
				siblings = append(siblings, j)
				combined += ivs[j].Hours
			}
		}
		proposedEnd := schedule.AddHours(effStart, combined)

		reject := proposedEnd.After(seg.End)
		if !reject && p.ddl != nil {
			// A pending interval the merged block would overrun gets pushed
			// past its own start; refuse if its deadline precedes the merged
			// end.
			for j := i + 1; j < len(ivs); j++ {
				if consumed[j] || ivs[j].Key == r.Key {
					continue
				}
				q := ivs[j]
				if !q.Start.Before(proposedEnd) {
					continue
				}
				if d, ok := p.ddl.DeadlineFor(q.Key.Customer, q.Key.Stage); ok && d.Before(proposedEnd) {
					reject = true
					break
				}
			}
		}

		if reject {
			// Emit the head at its clipped position; siblings stay pending
			// and may still merge among themselves later.
			out = append(out, r)
			cursor = maxTime(cursor, r.End)
			rep.Rejects++
			continue
		}

		merged := r.Retime(effStart, proposedEnd)
		out = append(out, merged)
		for _, j := range siblings {
			consumed[j] = true
		}
		cursor = proposedEnd
		if len(siblings) > 0 {
			rep.Merges++
		}
	}
	return out
}
