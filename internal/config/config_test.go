package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "log_level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "memes.db", cfg.Database.Path)
	assert.Equal(t, 20, cfg.Ingest.MaxItems)
	assert.Equal(t, 5*time.Second, cfg.Media.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Report.Window)
	assert.Equal(t, "chart.png", cfg.Report.ChartFile)
	assert.Equal(t, "letter", cfg.Report.PageSize)
	assert.Equal(t, "memes", cfg.Reddit.Subreddit)
	assert.False(t, cfg.RabbitMQ.Enabled())
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_REDDIT_SECRET", "s3cret")

	cfg, err := Load(writeConfig(t, `
reddit:
  client_id: id
  client_secret: ${TEST_REDDIT_SECRET}
ingest:
  max_items: 25
media:
  timeout: 2s
`))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Reddit.ClientSecret)
	assert.Equal(t, 25, cfg.Ingest.MaxItems)
	assert.Equal(t, 2*time.Second, cfg.Media.Timeout)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	_, err = Load(writeConfig(t, "database: [oops"))
	assert.ErrorContains(t, err, "parse config")

	_, err = Load(writeConfig(t, "database:\n  driver: mysql\n"))
	assert.ErrorContains(t, err, "unsupported database driver")

	_, err = Load(writeConfig(t, "report:\n  page_size: tabloid\n"))
	assert.ErrorContains(t, err, "unsupported page size")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	sqlite := DatabaseConfig{Driver: DriverSQLite, Path: "memes.db"}
	dsn := sqlite.DSN()
	assert.True(t, strings.HasPrefix(dsn, "file:memes.db?"))
	assert.Contains(t, dsn, "_time_format=sqlite")

	pg := DatabaseConfig{
		Driver: DriverPostgres, Host: "db", Port: 5432,
		User: "u", Password: "p", DBName: "memes", SSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=memes sslmode=disable", pg.DSN())
}
