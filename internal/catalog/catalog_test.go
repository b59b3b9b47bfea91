package catalog

import (
	"strings"
	"testing"
)

func defaultCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Default()
	if err != nil {
		t.Fatalf("Default(): %v", err)
	}
	return c
}

func TestDefaultDictionary(t *testing.T) {
	c := defaultCatalog(t)

	stages, ok := c.StagesFor("Restore")
	if !ok {
		t.Fatalf("StagesFor(Restore) missing")
	}
	want := []string{"Strip", "Repair", "Sand", "Stain", "Clear 1", "Scuff", "Clear 2", "Assembly"}
	if len(stages) != len(want) {
		t.Fatalf("Restore stages = %v", stages)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("Restore stage[%d] = %q, want %q", i, stages[i], want[i])
		}
	}

	if h, ok := c.HoursFor("Restore", "chair", "Sand"); !ok || h != 1.0 {
		t.Fatalf("HoursFor(Restore, chair, Sand) = %v, %v", h, ok)
	}
	// Service lookup is case-insensitive.
	if _, ok := c.StagesFor("restore"); !ok {
		t.Fatalf("StagesFor should fold case")
	}
	if got := c.Services(); len(got) != 3 {
		t.Fatalf("Services() = %v", got)
	}
}

func TestLoadRejectsBadRows(t *testing.T) {
	cases := []struct {
		name string
		csv  string
	}{
		{"bad hours", "service,piece,stage,hours\nRestore,chair,Sand,zero\n"},
		{"zero hours", "service,piece,stage,hours\nRestore,chair,Sand,0\n"},
		{"empty field", "service,piece,stage,hours\nRestore,,Sand,1\n"},
		{"duplicate", "service,piece,stage,hours\nRestore,chair,Sand,1\nRestore,chair,Sand,2\n"},
		{"no rows", "service,piece,stage,hours\n"},
	}
	for _, tc := range cases {
		if _, err := Load(strings.NewReader(tc.csv)); err == nil {
			t.Errorf("%s: want error", tc.name)
		}
	}
}

func TestDetectPiece(t *testing.T) {
	c := defaultCatalog(t)
	cases := []struct {
		job   string
		piece string
		ok    bool
	}{
		{"6 Dining Chairs", "chair", true},
		{"Oak Night Stand", "nightstand", true},
		{"China Hutch", "cabinet", true},
		{"Writing Desk", "table", true},
		{"Cedar Chest", "dresser", true},
		{"Mystery Thing", "", false},
	}
	for _, tc := range cases {
		got, ok := c.DetectPiece(tc.job)
		if ok != tc.ok || got != tc.piece {
			t.Errorf("DetectPiece(%q) = %q, %v; want %q, %v", tc.job, got, ok, tc.piece, tc.ok)
		}
	}
}

func TestUnits(t *testing.T) {
	cases := []struct {
		job  string
		qty  int
		want int
	}{
		{"6 Chairs", 1, 6},
		{"Dresser", 3, 3},
		{"Dresser", 0, 1},
		{"2 End Tables", 5, 2}, // leading count wins over the column
	}
	for _, tc := range cases {
		got := Units(Order{Job: tc.job, Qty: tc.qty})
		if got != tc.want {
			t.Errorf("Units(%q, qty=%d) = %d, want %d", tc.job, tc.qty, got, tc.want)
		}
	}
}

func TestDecomposeSingleUnit(t *testing.T) {
	c := defaultCatalog(t)
	reqs, skipped := c.Decompose([]Order{{
		Customer: "Smith", Job: "Walnut Dresser", Service: "Restore",
		StageCompleted: StageNotStarted, Qty: 1,
	}})
	if len(skipped) != 0 {
		t.Fatalf("skipped = %+v", skipped)
	}
	if len(reqs) != 8 {
		t.Fatalf("got %d requests, want 8", len(reqs))
	}
	for i, r := range reqs {
		if r.Key.Item != 0 {
			t.Fatalf("single unit request has Item = %d", r.Key.Item)
		}
		if r.Seq != i {
			t.Fatalf("request %d has Seq %d", i, r.Seq)
		}
	}
	if !reqs[4].NeedsFinish || reqs[4].Key.Stage != "Clear 1" {
		t.Fatalf("Clear 1 should need finish ability: %+v", reqs[4])
	}
	if reqs[2].NeedsFinish {
		t.Fatalf("Sand should not need finish ability")
	}
	last := reqs[len(reqs)-1]
	if !last.Assembly || last.Key.Stage != "Assembly" {
		t.Fatalf("last stage = %+v, want Assembly", last)
	}
}

func TestDecomposeMultiUnit(t *testing.T) {
	c := defaultCatalog(t)
	reqs, _ := c.Decompose([]Order{{
		Customer: "Smith", Job: "3 Chairs", Service: "Resurface", Qty: 1,
	}})
	// Resurface chairs carry 5 stages each.
	if len(reqs) != 15 {
		t.Fatalf("got %d requests, want 15", len(reqs))
	}
	items := map[int]int{}
	for _, r := range reqs {
		items[r.Key.Item]++
	}
	for unit := 1; unit <= 3; unit++ {
		if items[unit] != 5 {
			t.Fatalf("unit %d got %d stages, want 5", unit, items[unit])
		}
	}
}

func TestDecomposeStageCompleted(t *testing.T) {
	c := defaultCatalog(t)
	reqs, skipped := c.Decompose([]Order{{
		Customer: "Smith", Job: "Walnut Dresser", Service: "Restore",
		StageCompleted: "sand", Qty: 1,
	}})
	if len(skipped) != 0 {
		t.Fatalf("skipped = %+v", skipped)
	}
	if len(reqs) != 5 || reqs[0].Key.Stage != "Stain" {
		t.Fatalf("after Sand: %d requests, first %q", len(reqs), reqs[0].Key.Stage)
	}

	// Completing the final stage leaves nothing to schedule.
	reqs, skipped = c.Decompose([]Order{{
		Customer: "Smith", Job: "Walnut Dresser", Service: "Restore",
		StageCompleted: "Assembly", Qty: 1,
	}})
	if len(reqs) != 0 || len(skipped) != 0 {
		t.Fatalf("completed order: %d requests, %d skipped", len(reqs), len(skipped))
	}
}

func TestDecomposeUnschedulable(t *testing.T) {
	c := defaultCatalog(t)
	orders := []Order{
		{Customer: "A", Job: "Chair", Service: "Gilding"},
		{Customer: "B", Job: "Garden Gnome", Service: "Restore"},
		{Customer: "C", Job: "Chair", Service: "Restore", StageCompleted: "Polish"},
	}
	reqs, skipped := c.Decompose(orders)
	if len(reqs) != 0 {
		t.Fatalf("requests = %+v", reqs)
	}
	if len(skipped) != 3 {
		t.Fatalf("got %d skipped, want 3", len(skipped))
	}
	for i, want := range []string{"unknown service", "no piece type", "not in"} {
		if !strings.Contains(skipped[i].Reason, want) {
			t.Errorf("reason[%d] = %q, want to contain %q", i, skipped[i].Reason, want)
		}
	}
}

func TestDecomposeDoorSkipsAssembly(t *testing.T) {
	c := defaultCatalog(t)
	reqs, _ := c.Decompose([]Order{{
		Customer: "Smith", Job: "Front Door", Service: "3-Coat", Qty: 1,
	}})
	for _, r := range reqs {
		if r.Assembly {
			t.Fatalf("door request includes assembly: %+v", r)
		}
	}
	if len(reqs) != 5 {
		t.Fatalf("door 3-Coat requests = %d, want 5", len(reqs))
	}
}
