package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"meme_digest/internal/domain"
	"meme_digest/internal/report"
)

// ReportService runs select, resolve, summarize and assemble for one report.
type ReportService struct {
	selector  *Selector
	resolver  MediaResolver
	chart     ChartRenderer
	assembler ReportAssembler
	logger    *slog.Logger
	now       func() time.Time
}

func NewReportService(
	selector *Selector,
	resolver MediaResolver,
	chart ChartRenderer,
	assembler ReportAssembler,
	logger *slog.Logger,
) *ReportService {
	return &ReportService{
		selector:  selector,
		resolver:  resolver,
		chart:     chart,
		assembler: assembler,
		logger:    logger,
		now:       time.Now,
	}
}

// Generate produces the report for the current window. Media failures
// degrade to links inside the document; only selection, chart and
// assembly failures are returned.
func (s *ReportService) Generate(ctx context.Context) (*report.Result, error) {
	generatedAt := s.now()

	memes, err := s.selector.Select(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("generating report", "memes", len(memes))

	media := s.resolver.ResolveAll(ctx, memes)
	logMediaSummary(s.logger, media)

	chartPath, err := s.chart.Render(memes)
	if err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}

	result, err := s.assembler.Assemble(ctx, report.Input{
		Memes:       memes,
		Media:       media,
		ChartPath:   chartPath,
		GeneratedAt: generatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("assemble report: %w", err)
	}

	return result, nil
}

func logMediaSummary(logger *slog.Logger, media []domain.Media) {
	embedded, linked, unavailable := 0, 0, 0
	for _, m := range media {
		switch {
		case m.Kind == domain.MediaEmbeddable:
			embedded++
		case m.Unavailable():
			unavailable++
		default:
			linked++
		}
	}
	logger.Info("media resolved",
		"embedded", embedded,
		"link_only", linked,
		"unavailable", unavailable,
	)
}
