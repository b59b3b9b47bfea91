// Package cmd wires the arksched command line: a long-running serve daemon
// and one-shot commands for the shop floor (run, import, export, feedback).
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"arksched/internal/app"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "arksched",
	Short: "Production scheduler for a furniture refinishing shop",
	Long: `arksched plans a refinishing shop's work weeks: it decomposes the order
book into production stages, assigns them across the crew's shifts under
cure-time rules, consolidates the raw result into workable blocks, and
carries unfinished work forward from end-of-day feedback.`,
	SilenceUsage: true,
}

// ExecuteContext runs the CLI. Commands read ctx via cmd.Context().
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "./arksched.yaml", "path to config file (YAML or JSON)")
}

// openApp builds the one-shot App from --config. A missing file is fine as
// long as the flag was left at its default: built-in defaults apply then.
func openApp() (*app.App, error) {
	if _, err := os.Stat(cfgPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !rootCmd.PersistentFlags().Changed("config") {
			return app.NewDefault()
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	return app.New(cfgPath)
}
