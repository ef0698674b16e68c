// Command icalctl lists and edits calendars and reminders from a terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tazhate/icalbridge/config"
	"github.com/tazhate/icalbridge/internal/app"
	"github.com/tazhate/icalbridge/internal/cli"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "icalctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := app.Logger(cfg)

	st, closeStore, err := app.OpenStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	manager := app.NewManager(cfg, st, logger)
	return cli.NewRootCommand(manager.Get).ExecuteContext(ctx)
}
