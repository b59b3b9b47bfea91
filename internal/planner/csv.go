package planner

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"arksched/internal/schedule"
)

// csvTimeFormat is what the shop's spreadsheets expect.
const csvTimeFormat = "2006-01-02 15:04"

var csvHeader = []string{"Customer", "Job", "Service", "Stage", "Assigned To", "Start", "End", "Hours"}

// WriteCSV renders intervals as the export the shop pins to the wall. Multi
// unit orders show the unit in the job column; carryover continuations are
// marked on the stage.
func WriteCSV(w io.Writer, ivs []schedule.Interval) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, iv := range ivs {
		job := iv.Key.Job
		if iv.Key.Item > 0 {
			job = fmt.Sprintf("%s #%d", job, iv.Key.Item)
		}
		stage := iv.Key.Stage
		if iv.Label != "" {
			stage += " (carryover)"
		}
		rec := []string{
			iv.Key.Customer,
			job,
			iv.Key.Service,
			stage,
			iv.Employee,
			iv.Start.Format(csvTimeFormat),
			iv.End.Format(csvTimeFormat),
			strconv.FormatFloat(iv.Hours, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
