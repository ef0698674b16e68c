// Command mcp serves the calendar tools to an MCP client over stdio.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tazhate/icalbridge/config"
	"github.com/tazhate/icalbridge/internal/app"
	"github.com/tazhate/icalbridge/internal/mcpserver"
	"github.com/tazhate/icalbridge/internal/scheduler"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "icalbridge-mcp: %v\n", err)
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

	sched := scheduler.New(cfg, app.Pruner(manager), logger)
	go func() {
		if err := sched.Start(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()
	defer sched.Stop()

	app.ServeMetrics(ctx, cfg.MetricsAddr, logger)

	srv, err := mcpserver.New(mcpserver.Config{Name: "Calendar", Version: version, Logger: logger}, manager.Get)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}
