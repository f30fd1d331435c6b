package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	initHelp(rootCmd)

	// Ctrl-C cancels long scans; similarity searches return what they scored.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		outputError(os.Stderr, err)
		os.Exit(1)
	}
}
