// Package scheduler runs the periodic housekeeping jobs of long-running
// processes.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tazhate/icalbridge/config"
	applog "github.com/tazhate/icalbridge/internal/log"
)

// Pruner drops handle-table entries older than maxAge
type Pruner interface {
	PruneHandles(maxAge time.Duration) int
}

type Scheduler struct {
	cron   *cron.Cron
	spec   string
	ttl    time.Duration
	target func() Pruner
	log    *slog.Logger
}

// New builds a scheduler pruning whatever target returns. target may return
// nil while the manager has not been built yet.
func New(cfg *config.Config, target func() Pruner, logger *slog.Logger) *Scheduler {
	location := cfg.Timezone
	if location == nil {
		location = time.Local
	}
	if logger == nil {
		logger = applog.Discard()
	}

	c := cron.New(cron.WithLocation(location))

	return &Scheduler{
		cron:   c,
		spec:   cfg.PruneCron,
		ttl:    cfg.HandleTTL,
		target: target,
		log:    applog.WithComponent(logger, "scheduler"),
	}
}

// Start registers the jobs and blocks until ctx is done
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, s.pruneHandles); err != nil {
		return fmt.Errorf("add handle pruning: %w", err)
	}

	s.cron.Start()
	s.log.Info("scheduler started", "prune_cron", s.spec, "handle_ttl", s.ttl)

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) pruneHandles() {
	p := s.target()
	if p == nil {
		return
	}
	if n := p.PruneHandles(s.ttl); n > 0 {
		s.log.Debug("pruned handles", "count", n)
	}
}
