package sqldb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"

	"meme_digest/internal/config"
	"meme_digest/internal/domain"
)

type MemeStoreSuite struct {
	suite.Suite
	ctx   context.Context
	db    *sqlx.DB
	store *MemeStore
	now   time.Time
}

func (s *MemeStoreSuite) SetupTest() {
	s.ctx = context.Background()

	db, err := sqlx.Connect(config.DriverSQLite, "file::memory:?_time_format=sqlite")
	s.Require().NoError(err)
	db.SetMaxOpenConns(1)
	s.Require().NoError(Migrate(s.ctx, db))
	s.db = db

	s.now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	s.store = NewMemeStore(db)
	s.store.now = func() time.Time { return s.now }
}

func (s *MemeStoreSuite) TearDownTest() {
	s.db.Close()
}

func TestMemeStoreSuite(t *testing.T) {
	suite.Run(t, new(MemeStoreSuite))
}

func newMeme(id string, score int) *domain.Meme {
	return &domain.Meme{
		ExternalID: id,
		Title:      "meme " + id,
		Author:     "poster",
		Score:      score,
		MediaURL:   "https://i.redd.it/" + id + ".png",
		Permalink:  "https://redd.it/" + id,
		PostedAt:   time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC),
	}
}

func (s *MemeStoreSuite) TestUpsert_Insert() {
	meme := newMeme("abc", 10)

	created, err := s.store.Upsert(s.ctx, meme, s.now)
	s.NoError(err)
	s.True(created)

	stored, err := s.store.Get(s.ctx, "abc")
	s.Require().NoError(err)
	s.Greater(stored.ID, int64(0))
	s.Equal("meme abc", stored.Title)
	s.Equal(10, stored.Score)
	s.True(s.now.Equal(stored.CreatedAt))
	s.True(s.now.Equal(stored.FetchedAt))
	s.True(meme.PostedAt.Equal(stored.PostedAt))
}

func (s *MemeStoreSuite) TestUpsert_Idempotent() {
	first := s.now.Add(-2 * time.Hour)
	second := s.now.Add(-1 * time.Hour)

	created, err := s.store.Upsert(s.ctx, newMeme("abc", 10), first)
	s.NoError(err)
	s.True(created)

	created, err = s.store.Upsert(s.ctx, newMeme("abc", 10), second)
	s.NoError(err)
	s.False(created)

	count, err := s.store.Count(s.ctx)
	s.NoError(err)
	s.Equal(1, count)

	stored, err := s.store.Get(s.ctx, "abc")
	s.Require().NoError(err)
	s.True(first.Equal(stored.CreatedAt), "created_at must not change")
	s.True(second.Equal(stored.FetchedAt), "fetched_at must advance")
}

func (s *MemeStoreSuite) TestUpsert_OverwritesMutableFields() {
	_, err := s.store.Upsert(s.ctx, newMeme("abc", 10), s.now.Add(-time.Hour))
	s.NoError(err)

	updated := newMeme("abc", 15)
	updated.Title = "new title"
	updated.Author = domain.DeletedAuthor
	updated.MediaURL = "https://v.redd.it/abc"

	created, err := s.store.Upsert(s.ctx, updated, s.now)
	s.NoError(err)
	s.False(created)

	stored, err := s.store.Get(s.ctx, "abc")
	s.Require().NoError(err)
	s.Equal(15, stored.Score)
	s.Equal("new title", stored.Title)
	s.Equal(domain.DeletedAuthor, stored.Author)
	s.Equal("https://v.redd.it/abc", stored.MediaURL)
}

func (s *MemeStoreSuite) TestUpsert_RejectsInvalid() {
	meme := newMeme("", 10)

	created, err := s.store.Upsert(s.ctx, meme, s.now)
	s.False(created)
	s.True(errors.Is(err, domain.ErrInvalidMeme))

	count, err := s.store.Count(s.ctx)
	s.NoError(err)
	s.Equal(0, count)
}

func (s *MemeStoreSuite) TestUpsert_Uniqueness() {
	ids := []string{"a", "b", "a", "c", "b", "a"}
	for i, id := range ids {
		_, err := s.store.Upsert(s.ctx, newMeme(id, i), s.now.Add(time.Duration(i)*time.Minute))
		s.NoError(err)
	}

	var dupes int
	err := s.db.GetContext(s.ctx, &dupes,
		"SELECT COUNT(*) FROM (SELECT external_id FROM memes GROUP BY external_id HAVING COUNT(*) > 1)")
	s.NoError(err)
	s.Equal(0, dupes)

	count, err := s.store.Count(s.ctx)
	s.NoError(err)
	s.Equal(3, count)
}

func (s *MemeStoreSuite) TestQuery_TopNWithinWindow() {
	for i := 0; i < 25; i++ {
		_, err := s.store.Upsert(s.ctx, newMeme(fmt.Sprintf("m%02d", i), 100-5*i), s.now.Add(-time.Duration(i)*time.Minute))
		s.Require().NoError(err)
	}

	memes, err := s.store.Query(s.ctx, 24*time.Hour, 20)
	s.NoError(err)
	s.Len(memes, 20)

	for i, m := range memes {
		s.Equal(100-5*i, m.Score)
		s.Equal(fmt.Sprintf("m%02d", i), m.ExternalID)
	}
}

func (s *MemeStoreSuite) TestQuery_ExcludesStale() {
	_, err := s.store.Upsert(s.ctx, newMeme("old", 1000), s.now.Add(-48*time.Hour))
	s.NoError(err)
	_, err = s.store.Upsert(s.ctx, newMeme("fresh", 5), s.now.Add(-time.Hour))
	s.NoError(err)

	memes, err := s.store.Query(s.ctx, 24*time.Hour, 20)
	s.NoError(err)
	s.Require().Len(memes, 1)
	s.Equal("fresh", memes[0].ExternalID)
}

func (s *MemeStoreSuite) TestQuery_ReobservationRefreshesWindow() {
	_, err := s.store.Upsert(s.ctx, newMeme("abc", 7), s.now.Add(-48*time.Hour))
	s.NoError(err)
	_, err = s.store.Upsert(s.ctx, newMeme("abc", 9), s.now.Add(-time.Minute))
	s.NoError(err)

	memes, err := s.store.Query(s.ctx, 24*time.Hour, 20)
	s.NoError(err)
	s.Require().Len(memes, 1)
	s.Equal(9, memes[0].Score)
	s.True(s.now.Add(-48 * time.Hour).Equal(memes[0].CreatedAt))
}

func (s *MemeStoreSuite) TestQuery_TiesKeepInsertionOrder() {
	for _, id := range []string{"x", "y", "z"} {
		_, err := s.store.Upsert(s.ctx, newMeme(id, 42), s.now)
		s.Require().NoError(err)
	}

	memes, err := s.store.Query(s.ctx, 24*time.Hour, 20)
	s.NoError(err)
	s.Require().Len(memes, 3)
	s.Equal("x", memes[0].ExternalID)
	s.Equal("y", memes[1].ExternalID)
	s.Equal("z", memes[2].ExternalID)
}

func (s *MemeStoreSuite) TestQuery_ZeroLimit() {
	_, err := s.store.Upsert(s.ctx, newMeme("abc", 1), s.now)
	s.NoError(err)

	memes, err := s.store.Query(s.ctx, 24*time.Hour, 0)
	s.NoError(err)
	s.Empty(memes)
}

func (s *MemeStoreSuite) TestTransaction_Rollback() {
	tm := NewTransactionManager(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if _, err := s.store.Upsert(ctx, newMeme("rolled", 1), s.now); err != nil {
			return err
		}
		return context.Canceled
	})
	s.ErrorIs(err, context.Canceled)

	count, err := s.store.Count(s.ctx)
	s.NoError(err)
	s.Equal(0, count)
}
