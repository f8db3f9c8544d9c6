package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"meme_digest/internal/domain"
	"meme_digest/internal/report"
)

type MemeStore interface {
	Ping(ctx context.Context) error
	Upsert(ctx context.Context, meme *domain.Meme, observedAt time.Time) (bool, error)
	Query(ctx context.Context, window time.Duration, limit int) ([]domain.Meme, error)
}

type Source interface {
	Name() string
	FetchTop(ctx context.Context, limit int) ([]domain.Meme, error)
}

type Publisher interface {
	Publish(ctx context.Context, meme *domain.Meme, isNew bool) error
	Close() error
}

type MediaResolver interface {
	ResolveAll(ctx context.Context, memes []domain.Meme) []domain.Media
}

type ChartRenderer interface {
	Render(memes []domain.Meme) (string, error)
}

type ReportAssembler interface {
	Assemble(ctx context.Context, in report.Input) (*report.Result, error)
}

type Ingester interface {
	Ingest(ctx context.Context) (*domain.IngestStats, error)
}

type ReportGenerator interface {
	Generate(ctx context.Context) (*report.Result, error)
}
