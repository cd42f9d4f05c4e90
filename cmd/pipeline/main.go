// Package main runs the wallet evaluation pipeline: feed ingestion into the
// trade archive, triggered feature computation, and persona classification.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"mirrorlab/internal/config"
	"mirrorlab/internal/features"
	"mirrorlab/internal/feed"
	"mirrorlab/internal/observability"
	"mirrorlab/internal/persona"
	"mirrorlab/internal/pipeline"
	"mirrorlab/internal/pricing"
	"mirrorlab/internal/screen"
	chstore "mirrorlab/internal/storage/clickhouse"
	"mirrorlab/internal/storage/migrations"
	pgstore "mirrorlab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.toml", "Path to TOML configuration file")
	once := flag.Bool("once", false, "Run a single evaluation cycle and exit")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics listen address (empty to disable)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	logger := newLogger(cfg.LogLevel)

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	// Storage
	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if cfg.Storage.RunMigrations {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			log.Fatalf("postgres migrations: %v", err)
		}
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		log.Fatalf("clickhouse: %v", err)
	}
	defer chConn.Close()

	cache, err := pricing.New(ctx, pricing.Options{
		Client: pricing.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		TTL:     cfg.Redis.PriceTTL.Duration,
		Timeout: cfg.Feed.PriceTimeout.Duration,
	})
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	defer cache.Close()

	trades := chstore.NewWalletTradeStore(chConn)
	featureStore := pgstore.NewFeatureStore(pool)
	classifications := pgstore.NewClassificationStore(pool)
	markets := pgstore.NewMarketStore(pool)

	// Evaluation stages
	filter := screen.NewFilter(screen.Options{
		Trades: trades,
		Config: cfg.StageOne,
		Logger: logger,
	})
	engine := features.NewEngine(features.Options{
		Trades:  trades,
		Markets: markets,
		Prices:  cache,
		Config:  cfg.Features,
		Logger:  logger,
	})
	classifier := persona.NewClassifier(cfg.Persona)

	notifier := pipeline.NewNotifier()
	runner := pipeline.NewRunner(pipeline.Options{
		Trades:           trades,
		Features:         featureStore,
		Classifications:  classifications,
		Filter:           filter,
		Engine:           engine,
		Classifier:       classifier,
		Notifier:         notifier,
		WindowDays:       cfg.Pipeline.WindowDays,
		Workers:          cfg.Pipeline.Workers,
		PeriodicInterval: cfg.Pipeline.PeriodicInterval.Duration,
		Logger:           logger,
	})

	if *once {
		stats, err := runner.RunCycle(ctx)
		if err != nil {
			log.Fatalf("evaluation cycle: %v", err)
		}
		fmt.Printf("Cycle %s: %d wallets, %d followable, %d excluded, %d unclassified, %d skipped\n",
			stats.CycleID, stats.Wallets, stats.Followable, stats.Excluded, stats.Unclassified, stats.Skipped)
		return
	}

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, logger)
	}

	// Feed ingestion wakes the pipeline after new trades land
	client := feed.NewClient(cfg.Feed.WsURL, cfg.Feed.ReconnectWait.Duration, logger)
	if err := client.Connect(ctx); err != nil {
		log.Fatalf("connect feed: %v", err)
	}
	defer client.Close()

	feed.NewIngestor(client, feed.IngestorOptions{
		Trades:  trades,
		Prices:  cache,
		Trigger: notifier.Trigger,
		Logger:  logger,
	})
	if err := client.Subscribe("market", nil); err != nil {
		log.Fatalf("subscribe feed: %v", err)
	}

	logger.Info("pipeline started",
		"window_days", cfg.Pipeline.WindowDays,
		"workers", cfg.Pipeline.Workers,
		"periodic_interval", cfg.Pipeline.PeriodicInterval.Duration)

	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("pipeline: %v", err)
	}
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	logger.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics endpoint failed", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
