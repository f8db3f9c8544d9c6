package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"meme_digest/internal/chart"
	"meme_digest/internal/config"
	"meme_digest/internal/media"
	"meme_digest/internal/publisher"
	"meme_digest/internal/report"
	"meme_digest/internal/scheduler"
	"meme_digest/internal/service"
	"meme_digest/internal/source/reddit"
	"meme_digest/internal/storage/sqldb"
)

const usage = "usage: digest [-config config.yaml] <ingest|report|daily|schedule>"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "daily"
	}

	logger, closeLog := setupLogger("info", "")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, closeLog = setupLogger(cfg.LogLevel, cfg.LogFile)
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, command, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("command failed", "command", command, "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, cfg *config.Config, logger *slog.Logger) error {
	db, err := sqldb.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	logger.Info("connected to database", "driver", cfg.Database.Driver)

	var pub service.Publisher
	if cfg.RabbitMQ.Enabled() {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			return fmt.Errorf("connect to rabbitmq: %w", err)
		}
		defer rabbitMQ.Close()
		pub = rabbitMQ
	}

	memeStore := sqldb.NewMemeStore(db)

	redditSource := reddit.New(reddit.Config{
		BaseURL:           cfg.Reddit.BaseURL,
		TokenURL:          cfg.Reddit.TokenURL,
		ClientID:          cfg.Reddit.ClientID,
		ClientSecret:      cfg.Reddit.ClientSecret,
		UserAgent:         cfg.Reddit.UserAgent,
		Subreddit:         cfg.Reddit.Subreddit,
		TimeFilter:        cfg.Reddit.TimeFilter,
		Timeout:           cfg.Reddit.Timeout,
		RequestsPerSecond: cfg.Reddit.RequestsPerSecond,
		MaxAttempts:       cfg.Reddit.Retry.MaxAttempts,
		InitialBackoff:    cfg.Reddit.Retry.InitialBackoff,
		MaxBackoff:        cfg.Reddit.Retry.MaxBackoff,
	}, logger)

	ingestService := service.NewIngestService(redditSource, memeStore, pub, logger, cfg.Ingest)

	reportService := service.NewReportService(
		service.NewSelector(memeStore, cfg.Report.Window, cfg.Ingest.MaxItems),
		media.New(media.Config{
			Timeout:     cfg.Media.Timeout,
			MaxBytes:    cfg.Media.MaxBytes,
			Concurrency: cfg.Media.Concurrency,
			UserAgent:   cfg.Reddit.UserAgent,
		}, logger),
		chart.NewRenderer(filepath.Join(cfg.Report.Dir, cfg.Report.ChartFile)),
		report.NewAssembler(report.Config{
			Dir:       cfg.Report.Dir,
			PageSize:  cfg.Report.PageSize,
			Title:     cfg.Report.Title,
			Subreddit: cfg.Reddit.Subreddit,
			Brand:     cfg.Report.Brand,
			Window:    cfg.Report.Window,
		}, logger),
		logger,
	)

	runner := service.NewRunner(ingestService, reportService, logger)

	switch command {
	case "ingest":
		_, err := runner.Ingest(ctx)
		return err
	case "report":
		result, err := runner.Report(ctx)
		if err != nil {
			return err
		}
		fmt.Println(result.Path)
		return nil
	case "daily":
		_, result, err := runner.DailyReport(ctx)
		if err != nil {
			return err
		}
		fmt.Println(result.Path)
		return nil
	case "schedule":
		logger.Info("starting meme ingestion",
			"source", redditSource.Name(),
			"interval", cfg.Ingest.Interval,
			"max_items", cfg.Ingest.MaxItems,
		)
		return scheduler.NewScheduler(runner, cfg.Ingest.Interval, logger).Start(ctx)
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

func setupLogger(level, logFile string) (*slog.Logger, func()) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	closeFn := func() {}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			out = io.MultiWriter(os.Stderr, f)
			closeFn = func() { _ = f.Close() }
		}
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(out, opts)
	return slog.New(handler), closeFn
}
