package cmd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"arksched/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler daemon (HTTP API, cron triggers, config hot reload)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cfgPath)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if err := a.Start(ctx); err != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = a.Stop(stopCtx, app.StopFatalError)
			return err
		}
		// Under systemd Type=notify this flips the unit to active; elsewhere
		// it is a no-op.
		_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

		reason := app.StopRequested
		select {
		case <-ctx.Done():
			reason = app.StopSignal
		case <-a.Done():
			if ctx.Err() != nil {
				reason = app.StopSignal
			} else {
				reason = app.StopFatalError
			}
		}
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := a.Stop(stopCtx, reason); err != nil {
			return err
		}
		if reason == app.StopFatalError {
			return a.Err()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
