// Command bot runs the Telegram front end with its webhook server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tazhate/icalbridge/config"
	"github.com/tazhate/icalbridge/internal/app"
	"github.com/tazhate/icalbridge/internal/bot"
	applog "github.com/tazhate/icalbridge/internal/log"
	"github.com/tazhate/icalbridge/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		applog.New(nil).Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := app.Logger(cfg)

	st, closeStore, err := app.OpenStore(cfg, logger)
	if err != nil {
		logger.Error("failed to init storage", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	manager := app.NewManager(cfg, st, logger)

	tgBot, err := bot.New(cfg, manager.Get, logger)
	if err != nil {
		logger.Error("failed to init bot", "error", err)
		os.Exit(1)
	}

	if err := tgBot.SetupWebhook(); err != nil {
		logger.Error("failed to setup webhook", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(cfg, app.Pruner(manager), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	go func() {
		if err := tgBot.Start(ctx); err != nil {
			logger.Error("bot error", "error", err)
		}
	}()

	app.ServeMetrics(ctx, cfg.MetricsAddr, logger)

	logger.Info("icalbridge bot started", "backend", cfg.Backend)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")

	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := tgBot.Stop(shutdownCtx); err != nil {
		logger.Error("error stopping bot", "error", err)
	}

	logger.Info("icalbridge bot stopped")
}
