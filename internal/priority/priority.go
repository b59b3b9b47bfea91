// Package priority carries the two customer-facing knobs the pipeline reads:
// scheduling weights (lower goes first) and stage completion targets. Targets
// collapse to the earliest deadline per (customer, stage) pair.
package priority

import (
	"strings"
	"time"
)

// DefaultWeight applies to customers without an explicit weight row.
const DefaultWeight = 1.0

// Weight orders customers in the base scheduler: lower schedules first.
type Weight struct {
	Customer string  `json:"customer"`
	Weight   float64 `json:"weight"`
}

// Target is a stage-by-date commitment for one customer.
type Target struct {
	ID       int64     `json:"id,omitempty"`
	Customer string    `json:"customer"`
	Stage    string    `json:"stage"`
	By       time.Time `json:"by"`
}

type pairKey struct {
	customer string
	stage    string
}

func keyOf(customer, stage string) pairKey {
	return pairKey{
		customer: strings.ToLower(strings.TrimSpace(customer)),
		stage:    strings.ToLower(strings.TrimSpace(stage)),
	}
}

// Deadlines indexes targets for the refinement pipeline. Duplicate
// (customer, stage) targets collapse to the earliest date.
type Deadlines struct {
	byPair map[pairKey]time.Time
}

func NewDeadlines(targets []Target) *Deadlines {
	d := &Deadlines{byPair: make(map[pairKey]time.Time, len(targets))}
	for _, t := range targets {
		if t.By.IsZero() {
			continue
		}
		k := keyOf(t.Customer, t.Stage)
		if cur, ok := d.byPair[k]; !ok || t.By.Before(cur) {
			d.byPair[k] = t.By
		}
	}
	return d
}

// DeadlineFor returns the earliest deadline for the pair. ok is false when no
// target exists, which callers treat as "no constraint".
func (d *Deadlines) DeadlineFor(customer, stage string) (time.Time, bool) {
	t, ok := d.byPair[keyOf(customer, stage)]
	return t, ok
}

// Weights resolves customer scheduling weights.
type Weights struct {
	byCustomer map[string]float64
}

func NewWeights(rows []Weight) *Weights {
	w := &Weights{byCustomer: make(map[string]float64, len(rows))}
	for _, r := range rows {
		w.byCustomer[strings.ToLower(strings.TrimSpace(r.Customer))] = r.Weight
	}
	return w
}

// For returns the customer's weight, or DefaultWeight when unlisted.
func (w *Weights) For(customer string) float64 {
	if v, ok := w.byCustomer[strings.ToLower(strings.TrimSpace(customer))]; ok {
		return v
	}
	return DefaultWeight
}
