package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"arksched/internal/schedule"
)

// StageNotStarted is the order-book marker for "no stage done yet".
const StageNotStarted = "Not Started"

// Order is one order-book row as the shop records it.
type Order struct {
	ID             int64  `json:"id,omitempty"`
	Customer       string `json:"customer"`
	Job            string `json:"job"`
	Service        string `json:"service"`
	StageCompleted string `json:"stage_completed"`
	Qty            int    `json:"qty"`
}

// Unschedulable reports an order (or unit) that decomposition or assignment
// could not place, with a human-readable reason. Stage and Item are set only
// by the assigner; decomposition failures cover the whole order.
type Unschedulable struct {
	Customer string `json:"customer"`
	Job      string `json:"job"`
	Service  string `json:"service"`
	Stage    string `json:"stage,omitempty"`
	Item     int    `json:"item,omitempty"`
	Reason   string `json:"reason"`
}

var leadingQty = regexp.MustCompile(`^\s*(\d+)\b`)

// Units resolves the unit count for an order: a leading integer in the job
// text ("6 Chairs") overrides the qty column; both default to one.
func Units(o Order) int {
	if m := leadingQty.FindStringSubmatch(o.Job); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	if o.Qty > 0 {
		return o.Qty
	}
	return 1
}

// Decompose expands orders into per-unit, per-remaining-stage task requests.
// Orders that cannot be expanded are reported, never returned as an error;
// fully completed orders expand to nothing.
func (c *Catalog) Decompose(orders []Order) ([]schedule.Request, []Unschedulable) {
	var reqs []schedule.Request
	var skipped []Unschedulable

	for _, o := range orders {
		remaining, reason := c.remainingStages(o)
		if reason != "" {
			skipped = append(skipped, Unschedulable{
				Customer: o.Customer, Job: o.Job, Service: o.Service, Reason: reason,
			})
			continue
		}
		if len(remaining) == 0 {
			continue
		}

		piece, _ := c.DetectPiece(o.Job)
		units := Units(o)
		for unit := 1; unit <= units; unit++ {
			item := unit
			if units == 1 {
				item = 0
			}
			for seq, stage := range remaining {
				hours, _ := c.HoursFor(o.Service, piece, stage)
				reqs = append(reqs, schedule.Request{
					Key: schedule.TaskKey{
						Customer: o.Customer,
						Job:      o.Job,
						Service:  o.Service,
						Stage:    stage,
						Item:     item,
					},
					Hours:       hours,
					Seq:         seq,
					NeedsFinish: schedule.IsFinishing(stage),
					Assembly:    schedule.IsAssembly(stage),
				})
			}
		}
	}

	return reqs, skipped
}

// remainingStages resolves the stages still to run for one order. A non-empty
// reason marks the order unschedulable.
func (c *Catalog) remainingStages(o Order) ([]string, string) {
	stages, ok := c.StagesFor(o.Service)
	if !ok {
		return nil, fmt.Sprintf("unknown service %q", o.Service)
	}
	piece, ok := c.DetectPiece(o.Job)
	if !ok {
		return nil, fmt.Sprintf("no piece type matched %q", o.Job)
	}

	// Keep only stages this piece carries hours for.
	withHours := make([]string, 0, len(stages))
	for _, s := range stages {
		if _, ok := c.HoursFor(o.Service, piece, s); ok {
			withHours = append(withHours, s)
		}
	}
	if len(withHours) == 0 {
		return nil, fmt.Sprintf("dictionary has no hours for %s %s", o.Service, piece)
	}

	done := strings.TrimSpace(o.StageCompleted)
	if done == "" || strings.EqualFold(done, StageNotStarted) {
		return withHours, ""
	}
	for i, s := range withHours {
		if strings.EqualFold(s, done) {
			return withHours[i+1:], ""
		}
	}
	return nil, fmt.Sprintf("completed stage %q not in %s stages", o.StageCompleted, o.Service)
}
