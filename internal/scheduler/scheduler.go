package scheduler

import (
	"context"
	"log/slog"
	"time"

	"meme_digest/internal/domain"
)

const defaultRunTimeout = 5 * time.Minute

type Ingester interface {
	Ingest(ctx context.Context) (*domain.IngestStats, error)
}

// Scheduler runs ingestion once on start and then on every tick until the
// context is cancelled. A failed run is logged and the next tick retries.
type Scheduler struct {
	ingester   Ingester
	interval   time.Duration
	runTimeout time.Duration
	logger     *slog.Logger
}

func NewScheduler(ingester Ingester, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		ingester:   ingester,
		interval:   interval,
		runTimeout: defaultRunTimeout,
		logger:     logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runIngest(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runIngest(ctx)
		}
	}
}

func (s *Scheduler) runIngest(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	stats, err := s.ingester.Ingest(runCtx)
	if err != nil {
		s.logger.Error("ingestion failed", "error", err)
		return
	}
	if failed := stats.Failures(); len(failed) > 0 {
		s.logger.Warn("ingestion finished with failed items", "failed", len(failed))
	}
}
