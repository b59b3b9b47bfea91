// Package carryover tracks work that was planned but not finished, and turns
// it back into blocked time on later days so the next scheduling run cannot
// double-book the employee. Entries are append-only history; propagation is
// the only thing that ever flips their consumed flag, exactly once.
package carryover

import (
	"fmt"
	"sort"
	"time"

	"arksched/internal/schedule"
	"arksched/pkg/logx"
)

// Entry is one durable record of unfinished work, written by end-of-day
// feedback from the shop floor.
type Entry struct {
	ID       int64            `json:"id"`
	Employee string           `json:"employee"`
	Key      schedule.TaskKey `json:"key"`

	HoursPlanned   float64 `json:"hours_planned"`
	HoursDone      float64 `json:"hours_done"`
	HoursRemaining float64 `json:"hours_remaining"`

	ReportedOn time.Time `json:"reported_on"`
	ResumeOn   time.Time `json:"resume_on"`
	Notes      string    `json:"notes,omitempty"`
	Consumed   bool      `json:"consumed"`
}

// Calendar is the roster view propagation needs. *roster.Calendar satisfies
// this; SegmentsFor returns nothing on days off.
type Calendar interface {
	Known(employee string) bool
	SegmentsFor(employee string, date time.Time) []schedule.Segment
}

// Skipped is an entry propagation refused to touch. It stays unconsumed so a
// later run can retry after the underlying problem is fixed.
type Skipped struct {
	EntryID int64  `json:"entry_id"`
	Reason  string `json:"reason"`
}

// Drop records remaining hours lost because the scheduling window ended
// before the entry was fully placed.
type Drop struct {
	EntryID int64   `json:"entry_id"`
	Hours   float64 `json:"hours"`
}

// Result is one propagation pass. ConsumedIDs lists entries whose flag must
// be flipped in the same transaction that publishes the run using Blocks.
type Result struct {
	Blocks      []schedule.Block
	ConsumedIDs []int64
	Skipped     []Skipped
	Dropped     []Drop
}

// ContinuationLabel renders the marker carried by injected blocks.
func ContinuationLabel(k schedule.TaskKey) string {
	return "Carryover: " + k.String()
}

// Propagator walks unconsumed entries across the scheduling window.
type Propagator struct {
	cal Calendar
	log logx.Logger
}

func New(cal Calendar, log logx.Logger) *Propagator {
	return &Propagator{cal: cal, log: log}
}

// Hour arithmetic runs on floats; treat anything this small as zero.
const hoursEps = 1e-9

// Propagate selects unconsumed entries resuming inside [windowStart,
// windowEnd] and allocates their remaining hours into blocking intervals at
// segment starts, day by day. Entries resuming after the window stay
// untouched for a later run; entries resuming before it are reported so an
// operator can reschedule them. A window that ends before an entry is fully
// placed still consumes the entry; the lost remainder is reported, never
// silently discarded.
//
// Propagate itself has no side effects. Flipping the consumed flags listed
// in the result is the caller's job and must be atomic with publishing the
// run.
func (p *Propagator) Propagate(entries []Entry, windowStart, windowEnd time.Time) Result {
	var res Result

	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].ResumeOn.Equal(sorted[j].ResumeOn) {
			return sorted[i].ResumeOn.Before(sorted[j].ResumeOn)
		}
		return sorted[i].ID < sorted[j].ID
	})

	startDay := schedule.DateOf(windowStart)
	endDay := schedule.DateOf(windowEnd)

	for _, e := range sorted {
		if e.Consumed {
			continue
		}
		resume := schedule.DateOf(e.ResumeOn)
		if resume.After(endDay) {
			continue
		}
		if resume.Before(startDay) {
			res.Skipped = append(res.Skipped, Skipped{
				EntryID: e.ID,
				Reason:  fmt.Sprintf("resume date %s precedes window start %s", resume.Format("2006-01-02"), startDay.Format("2006-01-02")),
			})
			continue
		}
		if !p.cal.Known(e.Employee) {
			res.Skipped = append(res.Skipped, Skipped{
				EntryID: e.ID,
				Reason:  fmt.Sprintf("unknown employee %q", e.Employee),
			})
			continue
		}

		remaining := e.HoursRemaining
		label := ContinuationLabel(e.Key)
		for cursor := resume; remaining > hoursEps && !cursor.After(endDay); cursor = cursor.AddDate(0, 0, 1) {
			// Days off and template-less weekdays both come back empty.
			for _, seg := range p.cal.SegmentsFor(e.Employee, cursor) {
				capacity := seg.Hours()
				if capacity <= hoursEps {
					continue
				}
				alloc := remaining
				if capacity < alloc {
					alloc = capacity
				}
				res.Blocks = append(res.Blocks, schedule.Block{
					Employee: e.Employee,
					Start:    seg.Start,
					End:      schedule.AddHours(seg.Start, alloc),
					Label:    label,
					Key:      e.Key,
				})
				remaining -= alloc
				if remaining <= hoursEps {
					break
				}
			}
		}

		res.ConsumedIDs = append(res.ConsumedIDs, e.ID)
		if remaining > hoursEps {
			res.Dropped = append(res.Dropped, Drop{EntryID: e.ID, Hours: remaining})
			p.log.Warn("carryover window exhausted, dropping remainder",
				logx.Int64("entry", e.ID),
				logx.String("employee", e.Employee),
				logx.String("task", e.Key.String()),
				logx.Float64("dropped_hours", remaining))
		}
	}

	return res
}
