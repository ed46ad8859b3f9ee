package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/marcelocantos/retrack/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Cancel in-flight backend calls on interrupt.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return cli.Run(ctx, os.Args[1:], cli.Options{Version: version})
}
