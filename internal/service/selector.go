package service

import (
	"context"
	"fmt"
	"time"

	"meme_digest/internal/domain"
)

// DefaultWindow is the trailing range a report covers.
const DefaultWindow = 24 * time.Hour

// Selector picks the ranked working set of a report.
type Selector struct {
	memes  MemeStore
	window time.Duration
	limit  int
}

func NewSelector(memes MemeStore, window time.Duration, limit int) *Selector {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Selector{memes: memes, window: window, limit: limit}
}

// Select returns at most limit memes observed within the window, highest
// score first.
func (s *Selector) Select(ctx context.Context) ([]domain.Meme, error) {
	memes, err := s.memes.Query(ctx, s.window, s.limit)
	if err != nil {
		return nil, fmt.Errorf("select memes: %w", err)
	}
	return memes, nil
}
