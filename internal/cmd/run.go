package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"arksched/internal/planner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute and publish a schedule once, then print it",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		asCSV, _ := cmd.Flags().GetBool("csv")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		run, err := a.Planner().Rebuild(cmd.Context(), force)
		if err != nil {
			return err
		}
		if asCSV {
			return planner.WriteCSV(cmd.OutOrStdout(), run.Intervals)
		}
		return printRun(cmd.OutOrStdout(), run)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("force", false, "recompute even when a cached run is still fresh")
	runCmd.Flags().Bool("csv", false, "print the schedule as CSV instead of a table")
}

const printTimeFormat = "2006-01-02 15:04"

func printRun(w io.Writer, run *planner.Run) error {
	fmt.Fprintf(w, "run %s  window %s .. %s\n",
		run.ID,
		run.WindowStart.Format("2006-01-02"),
		run.WindowEnd.Format("2006-01-02"))
	fmt.Fprintf(w, "%d intervals, %d unscheduled; carryover %d injected / %d consumed\n\n",
		len(run.Intervals), len(run.Unscheduled),
		run.Carryover.Injected, run.Carryover.Consumed)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMPLOYEE\tCUSTOMER\tJOB\tSERVICE\tSTAGE\tSTART\tEND\tHOURS")
	for _, iv := range run.Intervals {
		job := iv.Key.Job
		if iv.Key.Item > 0 {
			job = fmt.Sprintf("%s #%d", job, iv.Key.Item)
		}
		stage := iv.Key.Stage
		if iv.Label != "" {
			stage += " (carryover)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.2f\n",
			iv.Employee, iv.Key.Customer, job, iv.Key.Service, stage,
			iv.Start.Format(printTimeFormat), iv.End.Format(printTimeFormat), iv.Hours)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(run.Carryover.Skipped) > 0 {
		fmt.Fprintln(w, "\ncarryover skipped:")
		for _, sk := range run.Carryover.Skipped {
			fmt.Fprintf(w, "  entry %d: %s\n", sk.EntryID, sk.Reason)
		}
	}
	if len(run.Carryover.Dropped) > 0 {
		fmt.Fprintln(w, "\ncarryover dropped (window exhausted):")
		for _, d := range run.Carryover.Dropped {
			fmt.Fprintf(w, "  entry %d: %.2fh unallocated\n", d.EntryID, d.Hours)
		}
	}
	if len(run.Unscheduled) > 0 {
		fmt.Fprintln(w, "\nunscheduled:")
		for _, u := range run.Unscheduled {
			fmt.Fprintf(w, "  %s / %s / %s: %s\n", u.Customer, u.Job, u.Service, u.Reason)
		}
	}
	if len(run.Violations) > 0 {
		fmt.Fprintln(w, "\nrule violations:")
		for _, v := range run.Violations {
			fmt.Fprintf(w, "  [%s] %s\n", v.Kind, v.Detail)
		}
	}
	return nil
}
