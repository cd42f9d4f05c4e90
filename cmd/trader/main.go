// Package main runs the copy-trade simulator: it watches the trade archive
// for new fills by followable wallets, mirrors them through the risk gates,
// and settles open copies when markets resolve.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mirrorlab/internal/config"
	"mirrorlab/internal/feed"
	"mirrorlab/internal/mirror"
	"mirrorlab/internal/observability"
	"mirrorlab/internal/pipeline"
	"mirrorlab/internal/risk"
	"mirrorlab/internal/settlement"
	"mirrorlab/internal/storage"
	chstore "mirrorlab/internal/storage/clickhouse"
	"mirrorlab/internal/storage/migrations"
	pgstore "mirrorlab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.toml", "Path to TOML configuration file")
	pollInterval := flag.Duration("poll-interval", 2*time.Second, "Archive poll fallback interval")
	replay := flag.Bool("replay", false, "Start from the beginning of the trade archive instead of now")
	metricsAddr := flag.String("metrics-addr", ":9091", "Prometheus metrics listen address (empty to disable)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	logger := newLogger(cfg.LogLevel)

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

	trades := chstore.NewWalletTradeStore(chConn)
	classifications := pgstore.NewClassificationStore(pool)
	markets := pgstore.NewMarketStore(pool)
	exec := pgstore.NewExecutionStore(pool)
	simTrades := pgstore.NewSimulatedTradeStore(pool)
	fidelity := pgstore.NewFidelityEventStore(pool)
	slippage := pgstore.NewSlippageRecordStore(pool)
	riskStates := pgstore.NewRiskStateStore(pool)

	// Rebuild the in-process risk ledger from the durable rows
	ledger := risk.NewLedger()
	states, err := riskStates.GetAll(ctx)
	if err != nil {
		log.Fatalf("rehydrate risk ledger: %v", err)
	}
	ledger.Rehydrate(states)
	logger.Info("risk ledger rehydrated", "keys", len(states))
	go rollover(ctx, ledger, riskStates, logger)

	gates := risk.NewEngine(risk.Options{
		Ledger:   ledger,
		Fidelity: fidelity,
		Slippage: slippage,
		Config:   cfg.Risk,
		Bankroll: cfg.Trading.BankrollUSD,
		Logger:   logger,
	})
	bankroll := mirror.NewBankrollEstimator(trades, cfg.Trading.BankrollWindowDays, nil)
	engine := mirror.NewEngine(mirror.Options{
		Exec:     exec,
		Markets:  markets,
		Gates:    gates,
		Ledger:   ledger,
		Bankroll: bankroll,
		Config:   cfg.Trading,
		Logger:   logger,
	})

	since := time.Now().Unix() - 1
	if *replay {
		since = 0
	}
	detector := mirror.NewDetector(mirror.DetectorOptions{
		Trades:          trades,
		Classifications: classifications,
		Engine:          engine,
		Workers:         cfg.Pipeline.Workers,
		Since:           since,
		Logger:          logger,
	})

	settler := settlement.NewEngine(settlement.Options{
		Exec:   exec,
		Trades: simTrades,
		Ledger: ledger,
		Logger: logger,
	})

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, logger)
	}

	// Feed: resolutions settle directly, trade arrivals wake the detector.
	// Trades archived here are usually duplicates of the pipeline's inserts
	// and are absorbed silently; the poll ticker covers the quiet case.
	notifier := pipeline.NewNotifier()
	client := feed.NewClient(cfg.Feed.WsURL, cfg.Feed.ReconnectWait.Duration, logger)
	if err := client.Connect(ctx); err != nil {
		log.Fatalf("connect feed: %v", err)
	}
	defer client.Close()

	feed.NewIngestor(client, feed.IngestorOptions{
		Trades:   trades,
		Resolver: settler,
		Trigger:  notifier.Trigger,
		Logger:   logger,
	})
	if err := client.Subscribe("market", nil); err != nil {
		log.Fatalf("subscribe feed: %v", err)
	}

	logger.Info("trader started",
		"bankroll_usd", cfg.Trading.BankrollUSD,
		"proportional_sizing", cfg.Trading.ProportionalSizing,
		"poll_interval", *pollInterval,
		"replay", *replay)

	if err := run(ctx, detector, notifier, *pollInterval, logger); err != nil && ctx.Err() == nil {
		log.Fatalf("trader: %v", err)
	}
}

// rollover zeroes the daily pnl window at every UTC midnight, and the
// weekly window on Mondays, then persists the reset so a restart does not
// rehydrate a stale window.
func rollover(ctx context.Context, ledger *risk.Ledger, states storage.RiskStateStore, logger *slog.Logger) {
	for {
		now := time.Now().UTC()
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		next := midnight.Add(24 * time.Hour)

		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
		}

		ts := time.Now().Unix()
		ledger.ResetDaily(ts)
		weekly := next.Weekday() == time.Monday
		if weekly {
			ledger.ResetWeekly(ts)
		}
		for _, s := range ledger.SnapshotAll() {
			if err := states.Put(ctx, s); err != nil {
				logger.Error("persist pnl window reset",
					"key", s.Key,
					"error", err)
			}
		}
		logger.Info("pnl windows rolled over", "weekly", weekly)
	}
}

// run polls the archive on every trigger or tick until the context ends.
// Triggers that arrive mid-poll coalesce into exactly one follow-up poll.
func run(ctx context.Context, detector *mirror.Detector, notifier *pipeline.Notifier, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-notifier.Wait():
		case <-ticker.C:
		}

		for {
			observed := notifier.Observe()
			if _, err := detector.Poll(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Error("trade detection failed", "error", err)
			}
			if !notifier.Pending(observed) {
				break
			}
		}
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
