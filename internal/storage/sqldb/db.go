package sqldb

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"meme_digest/internal/config"
)

func init() {
	sqlx.BindDriver(config.DriverSQLite, sqlx.QUESTION)
}

var schemas = map[string][]string{
	config.DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS memes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			score INTEGER NOT NULL DEFAULT 0,
			media_url TEXT NOT NULL DEFAULT '',
			permalink TEXT NOT NULL,
			posted_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL,
			fetched_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memes_fetched_at ON memes (fetched_at)`,
	},
	config.DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS memes (
			id BIGSERIAL PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			score INTEGER NOT NULL DEFAULT 0,
			media_url TEXT NOT NULL DEFAULT '',
			permalink TEXT NOT NULL,
			posted_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			fetched_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memes_fetched_at ON memes (fetched_at)`,
	},
}

// Open connects to the configured database and creates the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}

	// sqlite allows a single writer.
	if cfg.Driver == config.DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func Migrate(ctx context.Context, db *sqlx.DB) error {
	stmts, ok := schemas[db.DriverName()]
	if !ok {
		return fmt.Errorf("no schema for driver %q", db.DriverName())
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
