// Package schedule holds the domain vocabulary shared by the assignment and
// refinement stages: task identity keys, timed work intervals, blocking
// intervals, and shift segments.
package schedule

import (
	"fmt"
	"sort"
	"time"
)

// TaskKey identifies one unit of work. It stays constant while the
// refinement pipeline moves the interval around: consolidation and batching
// may change start/end but never the key.
type TaskKey struct {
	Customer string `json:"customer"`
	Job      string `json:"job"`
	Service  string `json:"service"`
	Stage    string `json:"stage"`

	// Item is the 1-based unit index when an order covers several physical
	// pieces ("6 Chairs"). Zero means the order is a single unit.
	Item int `json:"item,omitempty"`
}

// Unit returns the key with the stage cleared. Two requests with equal Unit
// keys belong to the same physical piece and must run in stage order.
func (k TaskKey) Unit() TaskKey {
	k.Stage = ""
	return k
}

func (k TaskKey) String() string {
	if k.Item > 0 {
		return fmt.Sprintf("%s/%s/%s/%s#%d", k.Customer, k.Job, k.Service, k.Stage, k.Item)
	}
	return fmt.Sprintf("%s/%s/%s/%s", k.Customer, k.Job, k.Service, k.Stage)
}

// Interval is one scheduled block of work for one employee.
//
// Invariants: End > Start and Hours == End−Start for every interval the
// pipeline emits. Mutations go through Retime so Hours can never drift.
type Interval struct {
	Employee string    `json:"employee"`
	Key      TaskKey   `json:"key"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Hours    float64   `json:"hours"`

	// Label carries display text for synthetic intervals, e.g. carryover
	// continuations. Empty for regular assigned work.
	Label string `json:"label,omitempty"`
}

// Valid reports whether the interval carries usable timestamps. Invalid
// intervals pass through the refinement stages untouched.
func (iv Interval) Valid() bool {
	return !iv.Start.IsZero() && !iv.End.IsZero() && iv.End.After(iv.Start)
}

// Retime returns a copy placed at [start, end) with Hours recomputed.
func (iv Interval) Retime(start, end time.Time) Interval {
	iv.Start = start
	iv.End = end
	iv.Hours = HoursBetween(start, end)
	return iv
}

// Clip bounds the interval to [from, to). ok is false when nothing remains.
func (iv Interval) Clip(from, to time.Time) (Interval, bool) {
	s, e := iv.Start, iv.End
	if s.Before(from) {
		s = from
	}
	if e.After(to) {
		e = to
	}
	if !e.After(s) {
		return Interval{}, false
	}
	return iv.Retime(s, e), true
}

// Block is fixed unavailability for one employee: special projects and
// carryover continuations. The assigner never places work over a block.
// Key is set only on carryover continuations, naming the task being resumed.
type Block struct {
	Employee string    `json:"employee"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Label    string    `json:"label,omitempty"`
	Key      TaskKey   `json:"key,omitzero"`
}

func (b Block) Hours() float64 { return HoursBetween(b.Start, b.End) }

// Segment is a contiguous working window for one employee on one date.
// Segments for the same day never overlap and are kept in start order.
type Segment struct {
	Start time.Time
	End   time.Time
}

func (s Segment) Hours() float64 { return HoursBetween(s.Start, s.End) }

// Request is one unit-stage of work awaiting assignment.
type Request struct {
	Key   TaskKey
	Hours float64

	// Seq orders the request within its unit's remaining stage sequence.
	Seq int

	// NeedsFinish marks stages reserved for finishers (prime/paint/clear).
	// All other stages only need prep ability.
	NeedsFinish bool

	// Assembly marks assembly stages, which obey the cure-gap and
	// earliest-clock-hour rules.
	Assembly bool
}

// SortIntervals orders intervals deterministically: employee, start, end,
// then key text as the final tie-break.
func SortIntervals(ivs []Interval) {
	sort.SliceStable(ivs, func(i, j int) bool {
		a, b := ivs[i], ivs[j]
		if a.Employee != b.Employee {
			return a.Employee < b.Employee
		}
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		return a.Key.String() < b.Key.String()
	})
}
