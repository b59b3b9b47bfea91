package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"arksched/internal/catalog"
)

var importCmd = &cobra.Command{
	Use:   "import <forecast.csv>",
	Short: "Load forecast orders from a CSV file into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		replace, _ := cmd.Flags().GetBool("replace")

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}
		defer f.Close()

		orders, err := catalog.ParseForecast(f)
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		n, err := a.Store().ImportOrders(cmd.Context(), orders, replace)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d orders\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().Bool("replace", false, "clear existing orders before importing")
}
