// Package roster models the crew: employees with ability flags, weekly shift
// templates, and full-day absences. A Calendar answers the one question the
// rest of the system asks: which working windows does this employee have on
// this date?
package roster

import (
	"sort"
	"time"

	"arksched/internal/schedule"
)

// Employee is one crew member. Abilities gate stage assignment: finishing
// stages (prime, paint, clear) need CanFinish, everything else needs CanPrep.
type Employee struct {
	ID        int64  `json:"id,omitempty"`
	Name      string `json:"name"`
	CanPrep   bool   `json:"can_prep"`
	CanFinish bool   `json:"can_finish"`
}

// ShiftRule is one weekly-template row: a working window on one weekday.
// Weekday follows the shop convention 0=Monday..6=Sunday.
type ShiftRule struct {
	ID       int64  `json:"id,omitempty"`
	Employee string `json:"employee"`
	Weekday  int    `json:"weekday"`
	Start    string `json:"start"` // "HH:MM"
	End      string `json:"end"`   // "HH:MM"
}

// DayOff marks a full-day absence.
type DayOff struct {
	ID       int64     `json:"id,omitempty"`
	Employee string    `json:"employee"`
	Date     time.Time `json:"date"`
}

// Calendar resolves shift segments per employee and date from the weekly
// template minus days off. It is immutable once built; rebuild it from
// storage for each scheduling run.
type Calendar struct {
	employees map[string]Employee
	shifts    map[string][]ShiftRule
	daysOff   map[string]map[string]bool // employee -> yyyy-mm-dd
}

func NewCalendar(employees []Employee, shifts []ShiftRule, daysOff []DayOff) *Calendar {
	c := &Calendar{
		employees: make(map[string]Employee, len(employees)),
		shifts:    make(map[string][]ShiftRule),
		daysOff:   make(map[string]map[string]bool),
	}
	for _, e := range employees {
		c.employees[e.Name] = e
	}
	for _, s := range shifts {
		c.shifts[s.Employee] = append(c.shifts[s.Employee], s)
	}
	for _, d := range daysOff {
		m := c.daysOff[d.Employee]
		if m == nil {
			m = make(map[string]bool)
			c.daysOff[d.Employee] = m
		}
		m[d.Date.Format("2006-01-02")] = true
	}
	return c
}

// Known reports whether the employee exists in the roster.
func (c *Calendar) Known(employee string) bool {
	_, ok := c.employees[employee]
	return ok
}

// Lookup returns the employee record by name.
func (c *Calendar) Lookup(employee string) (Employee, bool) {
	e, ok := c.employees[employee]
	return e, ok
}

// Employees returns the roster sorted by name.
func (c *Calendar) Employees() []Employee {
	out := make([]Employee, 0, len(c.employees))
	for _, e := range c.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DayOff reports whether the employee is absent for the whole date.
func (c *Calendar) DayOff(employee string, date time.Time) bool {
	return c.daysOff[employee][date.Format("2006-01-02")]
}

// SegmentsFor returns the ordered, non-overlapping working windows for one
// employee on one date. Empty when the day is off, the weekday has no
// template row, or every row for that weekday is malformed.
func (c *Calendar) SegmentsFor(employee string, date time.Time) []schedule.Segment {
	if c.DayOff(employee, date) {
		return nil
	}
	wd := schedule.WeekdayIndex(date)
	var segs []schedule.Segment
	for _, rule := range c.shifts[employee] {
		if rule.Weekday != wd {
			continue
		}
		start, err := schedule.At(date, rule.Start)
		if err != nil {
			continue
		}
		end, err := schedule.At(date, rule.End)
		if err != nil || !end.After(start) {
			continue
		}
		segs = append(segs, schedule.Segment{Start: start, End: end})
	}
	if len(segs) == 0 {
		return nil
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].Start.Before(segs[j].Start) })
	return coalesce(segs)
}

// coalesce unions overlapping or touching windows so callers always see
// disjoint segments in start order.
func coalesce(segs []schedule.Segment) []schedule.Segment {
	out := segs[:1]
	for _, s := range segs[1:] {
		last := &out[len(out)-1]
		if !s.Start.After(last.End) {
			if s.End.After(last.End) {
				last.End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out
}
