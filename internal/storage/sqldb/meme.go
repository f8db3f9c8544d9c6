package sqldb

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"meme_digest/internal/domain"
)

const (
	countQuery = `SELECT COUNT(*) FROM memes WHERE external_id = ?`

	upsertQuery = `
		INSERT INTO memes (
			external_id, title, author, score, media_url, permalink,
			posted_at, created_at, fetched_at
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?, ?
		)
		ON CONFLICT (external_id) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			score = excluded.score,
			media_url = excluded.media_url,
			permalink = excluded.permalink,
			posted_at = excluded.posted_at,
			fetched_at = excluded.fetched_at`

	windowQuery = `
		SELECT id, external_id, title, author, score, media_url, permalink,
			posted_at, created_at, fetched_at
		FROM memes
		WHERE fetched_at >= ?
		ORDER BY score DESC, id ASC
		LIMIT ?`
)

// MemeStore keeps harvested memes keyed by their external id.
type MemeStore struct {
	db  *sqlx.DB
	tx  *TransactionManager
	now func() time.Time
}

func NewMemeStore(db *sqlx.DB) *MemeStore {
	return &MemeStore{
		db:  db,
		tx:  NewTransactionManager(db),
		now: time.Now,
	}
}

func (s *MemeStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Upsert inserts the meme or overwrites the mutable fields of the existing
// row with the same external id. created_at is only written on insert.
// The returned flag reports whether a new row was created.
func (s *MemeStore) Upsert(ctx context.Context, meme *domain.Meme, observedAt time.Time) (bool, error) {
	if err := meme.Validate(); err != nil {
		return false, err
	}

	observedAt = observedAt.UTC()
	var created bool

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		exec := GetExecutor(ctx, s.db)

		var count int
		if err := sqlx.GetContext(ctx, exec, &count, exec.Rebind(countQuery), meme.ExternalID); err != nil {
			return fmt.Errorf("check existing: %w", err)
		}
		created = count == 0

		_, err := exec.ExecContext(ctx, exec.Rebind(upsertQuery),
			meme.ExternalID,
			meme.Title,
			meme.Author,
			meme.Score,
			meme.MediaURL,
			meme.Permalink,
			meme.PostedAt.UTC(),
			observedAt,
			observedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert meme %s: %w", meme.ExternalID, err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	meme.FetchedAt = observedAt
	if created {
		meme.CreatedAt = observedAt
	}

	return created, nil
}

// Query returns memes observed within the trailing window, highest score
// first, ties broken by insertion order.
func (s *MemeStore) Query(ctx context.Context, window time.Duration, limit int) ([]domain.Meme, error) {
	memes := []domain.Meme{}
	if limit <= 0 {
		return memes, nil
	}

	cutoff := s.now().Add(-window).UTC()
	exec := GetExecutor(ctx, s.db)

	if err := sqlx.SelectContext(ctx, exec, &memes, exec.Rebind(windowQuery), cutoff, limit); err != nil {
		return nil, fmt.Errorf("query memes: %w", err)
	}

	return memes, nil
}

// Get returns the stored meme with the given external id.
func (s *MemeStore) Get(ctx context.Context, externalID string) (*domain.Meme, error) {
	var meme domain.Meme
	exec := GetExecutor(ctx, s.db)
	query := exec.Rebind(`
		SELECT id, external_id, title, author, score, media_url, permalink,
			posted_at, created_at, fetched_at
		FROM memes
		WHERE external_id = ?`)

	if err := sqlx.GetContext(ctx, exec, &meme, query, externalID); err != nil {
		return nil, err
	}
	return &meme, nil
}

func (s *MemeStore) Count(ctx context.Context) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &count, "SELECT COUNT(*) FROM memes")
	return count, err
}
