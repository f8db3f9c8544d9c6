//go:build integration

package sqldb

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db

	s.Require().NoError(Migrate(s.ctx, db))
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM memes")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) TestMigrate_Idempotent() {
	s.NoError(Migrate(s.ctx, s.db))
}

func (s *PostgresIntegrationSuite) TestMemeStore_UpsertInsertThenUpdate() {
	store := NewMemeStore(s.db)
	first := time.Now().Add(-time.Hour).Truncate(time.Microsecond)
	second := time.Now().Truncate(time.Microsecond)

	created, err := store.Upsert(s.ctx, newMeme("pg1", 10), first)
	s.NoError(err)
	s.True(created)

	created, err = store.Upsert(s.ctx, newMeme("pg1", 15), second)
	s.NoError(err)
	s.False(created)

	stored, err := store.Get(s.ctx, "pg1")
	s.Require().NoError(err)
	s.Equal(15, stored.Score)
	s.WithinDuration(first, stored.CreatedAt, time.Millisecond)
	s.WithinDuration(second, stored.FetchedAt, time.Millisecond)

	count, err := store.Count(s.ctx)
	s.NoError(err)
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestMemeStore_QueryWindowAndOrder() {
	store := NewMemeStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	_, err := store.Upsert(s.ctx, newMeme("stale", 999), now.Add(-36*time.Hour))
	s.NoError(err)
	for i, score := range []int{5, 50, 20} {
		_, err := store.Upsert(s.ctx, newMeme(string(rune('a'+i)), score), now)
		s.NoError(err)
	}

	memes, err := store.Query(s.ctx, 24*time.Hour, 2)
	s.NoError(err)
	s.Require().Len(memes, 2)
	s.Equal(50, memes[0].Score)
	s.Equal(20, memes[1].Score)
}

func (s *PostgresIntegrationSuite) TestTransaction_Commit() {
	tm := NewTransactionManager(s.db)
	store := NewMemeStore(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		_, err := store.Upsert(ctx, newMeme("tx", 1), time.Now())
		return err
	})
	s.NoError(err)

	count, err := store.Count(s.ctx)
	s.NoError(err)
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestTransaction_Rollback() {
	tm := NewTransactionManager(s.db)
	store := NewMemeStore(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if _, err := store.Upsert(ctx, newMeme("rollback", 1), time.Now()); err != nil {
			return err
		}
		return context.Canceled
	})
	s.Error(err)

	count, err := store.Count(s.ctx)
	s.NoError(err)
	s.Equal(0, count)
}
