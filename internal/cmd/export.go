package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"arksched/internal/planner"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the latest published schedule as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		run, ok, err := a.Planner().Latest(cmd.Context())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("export: no run published yet")
		}

		var w io.Writer = cmd.OutOrStdout()
		if out != "" {
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			defer f.Close()
			w = f
		}
		if err := planner.WriteCSV(w, run.Intervals); err != nil {
			return err
		}
		if out != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d intervals to %s\n", len(run.Intervals), out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("out", "", "destination file (default stdout)")
}
