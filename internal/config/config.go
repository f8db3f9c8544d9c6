package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Reddit   RedditConfig   `yaml:"reddit"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Media    MediaConfig    `yaml:"media"`
	Report   ReportConfig   `yaml:"report"`
	LogLevel string         `yaml:"log_level"`
	LogFile  string         `yaml:"log_file"`
}

// RabbitMQConfig is optional: an empty URL disables publishing.
type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

func (r RabbitMQConfig) Enabled() bool {
	return r.URL != ""
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		q := url.Values{}
		q.Add("_pragma", "busy_timeout(5000)")
		q.Add("_pragma", "foreign_keys(1)")
		q.Set("_time_format", "sqlite")
		return "file:" + d.Path + "?" + q.Encode()
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type RedditConfig struct {
	BaseURL           string        `yaml:"base_url"`
	TokenURL          string        `yaml:"token_url"`
	ClientID          string        `yaml:"client_id"`
	ClientSecret      string        `yaml:"client_secret"`
	UserAgent         string        `yaml:"user_agent"`
	Subreddit         string        `yaml:"subreddit"`
	TimeFilter        string        `yaml:"time_filter"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Retry             RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type IngestConfig struct {
	// MaxItems caps both the fetched batch and the report selection.
	MaxItems int           `yaml:"max_items"`
	Interval time.Duration `yaml:"interval"`
}

type MediaConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxBytes    int64         `yaml:"max_bytes"`
	Concurrency int           `yaml:"concurrency"`
}

type ReportConfig struct {
	Dir       string        `yaml:"dir"`
	ChartFile string        `yaml:"chart_file"`
	PageSize  string        `yaml:"page_size"`
	Window    time.Duration `yaml:"window"`
	Title     string        `yaml:"title"`
	Brand     string        `yaml:"brand"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Path == "" {
		c.Database.Path = "memes.db"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "meme_digest"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "memes"
	}
	if c.RabbitMQ.QueueName == "" {
		c.RabbitMQ.QueueName = "harvested_memes"
	}
	if c.Reddit.TokenURL == "" {
		c.Reddit.TokenURL = "https://www.reddit.com/api/v1/access_token"
	}
	if c.Reddit.UserAgent == "" {
		c.Reddit.UserAgent = "meme_digest/1.0"
	}
	if c.Reddit.Subreddit == "" {
		c.Reddit.Subreddit = "memes"
	}
	if c.Reddit.TimeFilter == "" {
		c.Reddit.TimeFilter = "day"
	}
	if c.Reddit.Timeout == 0 {
		c.Reddit.Timeout = 30 * time.Second
	}
	if c.Reddit.RequestsPerSecond == 0 {
		c.Reddit.RequestsPerSecond = 1
	}
	if c.Reddit.Retry.MaxAttempts == 0 {
		c.Reddit.Retry.MaxAttempts = 3
	}
	if c.Reddit.Retry.InitialBackoff == 0 {
		c.Reddit.Retry.InitialBackoff = 1 * time.Second
	}
	if c.Reddit.Retry.MaxBackoff == 0 {
		c.Reddit.Retry.MaxBackoff = 30 * time.Second
	}
	if c.Ingest.MaxItems == 0 {
		c.Ingest.MaxItems = 20
	}
	if c.Ingest.Interval == 0 {
		c.Ingest.Interval = 1 * time.Hour
	}
	if c.Media.Timeout == 0 {
		c.Media.Timeout = 5 * time.Second
	}
	if c.Media.MaxBytes == 0 {
		c.Media.MaxBytes = 10 << 20
	}
	if c.Media.Concurrency == 0 {
		c.Media.Concurrency = 4
	}
	if c.Report.Dir == "" {
		c.Report.Dir = "."
	}
	if c.Report.ChartFile == "" {
		c.Report.ChartFile = "chart.png"
	}
	if c.Report.PageSize == "" {
		c.Report.PageSize = "letter"
	}
	if c.Report.Window == 0 {
		c.Report.Window = 24 * time.Hour
	}
	if c.Report.Title == "" {
		c.Report.Title = "Meme Insights Report"
	}
	if c.Report.Brand == "" {
		c.Report.Brand = "HEPMIL Media"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch strings.ToLower(c.Report.PageSize) {
	case "letter", "legal", "a4":
	default:
		return fmt.Errorf("unsupported page size %q", c.Report.PageSize)
	}
	if c.Ingest.MaxItems < 0 {
		return fmt.Errorf("ingest.max_items must not be negative")
	}
	return nil
}
