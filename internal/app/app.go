// Package app wires configuration into the store, manager and background
// jobs shared by every binary.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/tazhate/icalbridge/config"
	"github.com/tazhate/icalbridge/internal/clients/caldav"
	applog "github.com/tazhate/icalbridge/internal/log"
	"github.com/tazhate/icalbridge/internal/metrics"
	"github.com/tazhate/icalbridge/internal/scheduler"
	"github.com/tazhate/icalbridge/internal/service"
	"github.com/tazhate/icalbridge/internal/storage"
	"github.com/tazhate/icalbridge/internal/store"
)

// Logger builds the process logger. Output goes to stderr.
func Logger(cfg *config.Config) *slog.Logger {
	return applog.New(&applog.Config{
		Level:  cfg.LogLevel,
		Format: applog.Format(cfg.LogFormat),
		Output: os.Stderr,
	})
}

// OpenStore builds the configured backend. The returned close func is never
// nil.
func OpenStore(cfg *config.Config, logger *slog.Logger) (store.Store, func() error, error) {
	switch cfg.Backend {
	case config.BackendCalDAV:
		client := caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword)
		st := caldav.NewStore(client, caldav.Options{
			Location:        cfg.Timezone,
			DefaultCalendar: cfg.CalDAVCalendar,
			Logger:          applog.WithComponent(logger, "caldav"),
		})
		logger.Info("using CalDAV backend", "url", client.BaseURL())
		return st, func() error { return nil }, nil

	case config.BackendSQLite, "":
		st, err := storage.New(cfg.DatabasePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open storage: %w", err)
		}
		logger.Info("using SQLite backend", "path", cfg.DatabasePath)
		return st, st.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// NewManager returns a manager built on first use, so access is requested
// lazily
func NewManager(cfg *config.Config, st store.Store, logger *slog.Logger) *service.Lazy[*service.CalendarManager] {
	return service.NewLazy(func(ctx context.Context) (*service.CalendarManager, error) {
		return service.NewCalendarManager(ctx, st, service.Config{
			Location:      cfg.Timezone,
			BridgeTimeout: cfg.BridgeTimeout,
			DefaultSource: cfg.CalendarSource,
			Logger:        logger,
		})
	})
}

// Pruner hands the scheduler the manager once it exists
func Pruner(lazy *service.Lazy[*service.CalendarManager]) func() scheduler.Pruner {
	return func() scheduler.Pruner {
		if m, ok := lazy.Peek(); ok {
			return m
		}
		return nil
	}
}

// ServeMetrics exposes /metrics on addr until ctx is done. An empty addr
// disables it.
func ServeMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
