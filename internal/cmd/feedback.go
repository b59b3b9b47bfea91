package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"arksched/internal/carryover"
	"arksched/internal/schedule"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record partially finished work so the next rebuild carries it over",
	RunE: func(cmd *cobra.Command, args []string) error {
		fl := cmd.Flags()
		employee, _ := fl.GetString("employee")
		customer, _ := fl.GetString("customer")
		job, _ := fl.GetString("job")
		service, _ := fl.GetString("service")
		stage, _ := fl.GetString("stage")
		item, _ := fl.GetInt("item")
		planned, _ := fl.GetFloat64("planned")
		done, _ := fl.GetFloat64("done")
		resume, _ := fl.GetString("resume")
		reported, _ := fl.GetString("reported")
		notes, _ := fl.GetString("notes")

		required := []struct{ name, value string }{
			{"employee", employee},
			{"customer", customer},
			{"job", job},
			{"service", service},
			{"stage", stage},
			{"resume", resume},
		}
		for _, f := range required {
			if f.value == "" {
				return fmt.Errorf("feedback: --%s is required", f.name)
			}
		}
		if planned <= 0 {
			return fmt.Errorf("feedback: --planned must be > 0")
		}
		if done < 0 || done >= planned {
			return fmt.Errorf("feedback: --done must be in [0, planned); finished work needs no feedback")
		}

		resumeOn, err := parseDayFlag("resume", resume)
		if err != nil {
			return err
		}
		reportedOn := time.Now()
		if reported != "" {
			if reportedOn, err = parseDayFlag("reported", reported); err != nil {
				return err
			}
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		entry := carryover.Entry{
			Employee: employee,
			Key: schedule.TaskKey{
				Customer: customer,
				Job:      job,
				Service:  service,
				Stage:    stage,
				Item:     item,
			},
			HoursPlanned:   planned,
			HoursDone:      done,
			HoursRemaining: planned - done,
			ReportedOn:     reportedOn,
			ResumeOn:       resumeOn,
			Notes:          notes,
		}
		id, err := a.Store().AddEntry(cmd.Context(), entry)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "recorded entry %d: %.2fh remaining, resumes %s\n",
			id, entry.HoursRemaining, resumeOn.Format("2006-01-02"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(feedbackCmd)
	fl := feedbackCmd.Flags()
	fl.String("employee", "", "employee the work was assigned to")
	fl.String("customer", "", "customer name")
	fl.String("job", "", "job description from the forecast")
	fl.String("service", "", "service the job was booked under")
	fl.String("stage", "", "stage that was interrupted")
	fl.Int("item", 0, "1-based unit index for multi-piece jobs")
	fl.Float64("planned", 0, "hours the stage was planned for")
	fl.Float64("done", 0, "hours actually worked before stopping")
	fl.String("resume", "", "earliest day to resume, YYYY-MM-DD")
	fl.String("reported", "", "day the feedback applies to, YYYY-MM-DD (default today)")
	fl.String("notes", "", "free-form note stored with the entry")
}

func parseDayFlag(name, value string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("feedback: --%s: want YYYY-MM-DD, got %q", name, value)
	}
	return t, nil
}
