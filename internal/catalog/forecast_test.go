package catalog

import (
	"strings"
	"testing"
)

func TestParseForecast(t *testing.T) {
	in := `Customer,Job,Service,Stage Completed,Qty
Smith,Dresser,Restore,Not Started,1
Jones,6 Chairs,3-Coat,Sand,6

Miller,Table,Resurface,,
`
	orders, err := ParseForecast(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("orders = %+v", orders)
	}
	if orders[1].Customer != "Jones" || orders[1].StageCompleted != "Sand" || orders[1].Qty != 6 {
		t.Fatalf("row = %+v", orders[1])
	}
	// Blank stage and qty fall back to defaults.
	if orders[2].StageCompleted != StageNotStarted || orders[2].Qty != 0 {
		t.Fatalf("row = %+v", orders[2])
	}
}

func TestParseForecastHeaderVariants(t *testing.T) {
	in := "customer,JOB,Service,stage\nSmith,Dresser,Restore,Sand\n"
	orders, err := ParseForecast(strings.NewReader(in))
	if err != nil || len(orders) != 1 || orders[0].StageCompleted != "Sand" {
		t.Fatalf("orders = %+v, err=%v", orders, err)
	}
}

func TestParseForecastRejects(t *testing.T) {
	cases := []struct {
		name string
		csv  string
	}{
		{"empty", ""},
		{"missing service column", "Customer,Job\nSmith,Dresser\n"},
		{"missing field", "Customer,Job,Service\nSmith,,Restore\n"},
		{"bad qty", "Customer,Job,Service,Qty\nSmith,Dresser,Restore,six\n"},
	}
	for _, tc := range cases {
		if _, err := ParseForecast(strings.NewReader(tc.csv)); err == nil {
			t.Errorf("%s: want error", tc.name)
		}
	}
}
