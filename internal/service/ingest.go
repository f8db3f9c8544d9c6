package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"meme_digest/internal/config"
	"meme_digest/internal/domain"
)

// IngestService reconciles the feed's current top posts into the store.
type IngestService struct {
	source    Source
	memes     MemeStore
	publisher Publisher
	logger    *slog.Logger
	config    config.IngestConfig
	now       func() time.Time
}

func NewIngestService(
	source Source,
	memes MemeStore,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.IngestConfig,
) *IngestService {
	return &IngestService{
		source:    source,
		memes:     memes,
		publisher: publisher,
		logger:    logger.With("source", source.Name()),
		config:    cfg,
		now:       time.Now,
	}
}

// Ingest fetches one batch and upserts every item independently. Failed
// items are reported in the stats; an error is returned only when the feed
// or the store is unavailable.
func (s *IngestService) Ingest(ctx context.Context) (*domain.IngestStats, error) {
	startTime := s.now()
	s.logger.Info("starting ingestion", "max_items", s.config.MaxItems)

	if err := s.memes.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping store: %w: %w", domain.ErrStoreUnavailable, err)
	}

	memes, err := s.source.FetchTop(ctx, s.config.MaxItems)
	if err != nil {
		return nil, fmt.Errorf("fetch memes: %w", err)
	}
	if len(memes) > s.config.MaxItems {
		memes = memes[:s.config.MaxItems]
	}

	s.logger.Info("fetched memes from source", "count", len(memes))

	stats := &domain.IngestStats{
		Source:   s.source.Name(),
		Fetched:  len(memes),
		Outcomes: make([]domain.ItemOutcome, 0, len(memes)),
	}

	observedAt := s.now().UTC()
	storeFailures := 0

	for i := range memes {
		meme := &memes[i]
		outcome := s.saveMeme(ctx, meme, observedAt)
		stats.Outcomes = append(stats.Outcomes, outcome)

		if !outcome.OK() {
			stats.Failed++
			if outcome.Cause == domain.CauseStore {
				storeFailures++
			}
			s.logger.Warn("failed to store meme",
				"rank", i+1,
				"external_id", meme.ExternalID,
				"cause", outcome.Cause,
				"error", outcome.Err,
			)
			continue
		}

		if outcome.Created {
			stats.New++
		} else {
			stats.Updated++
		}

		s.logger.Debug("saved meme",
			"external_id", meme.ExternalID,
			"title", meme.Title,
			"author", meme.Author,
			"score", meme.Score,
		)

		if s.publisher != nil {
			if err := s.publisher.Publish(ctx, meme, outcome.Created); err != nil {
				stats.PublishErrors++
				s.logger.Warn("failed to publish meme", "external_id", meme.ExternalID, "error", err)
			} else {
				stats.Published++
			}
		}
	}

	stats.Duration = s.now().Sub(startTime)

	s.logger.Info("ingestion completed",
		"fetched", stats.Fetched,
		"new", stats.New,
		"updated", stats.Updated,
		"failed", stats.Failed,
		"published", stats.Published,
		"duration", stats.Duration,
	)

	if len(memes) > 0 && storeFailures == len(memes) {
		return stats, fmt.Errorf("store every meme: %w", domain.ErrStoreUnavailable)
	}

	return stats, nil
}

func (s *IngestService) saveMeme(ctx context.Context, meme *domain.Meme, observedAt time.Time) domain.ItemOutcome {
	outcome := domain.ItemOutcome{ExternalID: meme.ExternalID}

	if err := meme.Validate(); err != nil {
		outcome.Cause = domain.CauseInvalid
		outcome.Err = err
		return outcome
	}

	created, err := s.memes.Upsert(ctx, meme, observedAt)
	if err != nil {
		outcome.Cause = domain.CauseStore
		if errors.Is(err, domain.ErrInvalidMeme) {
			outcome.Cause = domain.CauseInvalid
		}
		outcome.Err = err
		return outcome
	}

	outcome.Created = created
	return outcome
}
