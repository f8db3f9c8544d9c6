package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"meme_digest/internal/domain"
	"meme_digest/internal/report"
)

// Runner exposes ingestion and report generation to entry points.
type Runner struct {
	ingester Ingester
	reports  ReportGenerator
	logger   *slog.Logger
}

func NewRunner(ingester Ingester, reports ReportGenerator, logger *slog.Logger) *Runner {
	return &Runner{ingester: ingester, reports: reports, logger: logger}
}

func (r *Runner) Ingest(ctx context.Context) (*domain.IngestStats, error) {
	return r.ingester.Ingest(ctx)
}

func (r *Runner) Report(ctx context.Context) (*report.Result, error) {
	return r.reports.Generate(ctx)
}

// DailyReport ingests a fresh batch and then reports on the window. A feed
// failure still yields a report from what is already stored; an
// unavailable store aborts.
func (r *Runner) DailyReport(ctx context.Context) (*domain.IngestStats, *report.Result, error) {
	stats, err := r.ingester.Ingest(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			return stats, nil, fmt.Errorf("ingest: %w", err)
		}
		r.logger.Warn("ingestion failed, reporting on stored memes", "error", err)
	}

	result, err := r.reports.Generate(ctx)
	if err != nil {
		return stats, nil, err
	}

	return stats, result, nil
}
