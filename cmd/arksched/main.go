package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"arksched/internal/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		if ctx.Err() != nil {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
