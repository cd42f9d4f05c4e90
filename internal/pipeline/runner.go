package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/features"
	"mirrorlab/internal/observability"
	"mirrorlab/internal/persona"
	"mirrorlab/internal/screen"
	"mirrorlab/internal/storage"
)

// Runner drives the wallet evaluation cycle: stage one gate and feature
// computation fan out across a bounded worker pool, then one writer
// commits features and classifications for the whole batch. The split
// keeps a wallet's verdict from ever being torn between two writers.
type Runner struct {
	trades          storage.WalletTradeStore
	featureStore    storage.FeatureStore
	classifications storage.ClassificationStore
	filter          *screen.Filter
	engine          *features.Engine
	classifier      *persona.Classifier
	notifier        *Notifier
	windowDays      int
	workers         int
	interval        time.Duration
	log             *slog.Logger
	now             func() time.Time
}

// Options for creating a pipeline Runner.
type Options struct {
	Trades          storage.WalletTradeStore
	Features        storage.FeatureStore
	Classifications storage.ClassificationStore
	Filter          *screen.Filter
	Engine          *features.Engine
	Classifier      *persona.Classifier
	Notifier        *Notifier
	WindowDays      int
	Workers         int

	// PeriodicInterval bounds how stale the pipeline can go when no
	// trigger arrives. The fallback cycle self-heals a lost trigger.
	PeriodicInterval time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// NewRunner creates a pipeline runner.
func NewRunner(opts Options) *Runner {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		trades:          opts.Trades,
		featureStore:    opts.Features,
		classifications: opts.Classifications,
		filter:          opts.Filter,
		engine:          opts.Engine,
		classifier:      opts.Classifier,
		notifier:        opts.Notifier,
		windowDays:      opts.WindowDays,
		workers:         workers,
		interval:        opts.PeriodicInterval,
		log:             log,
		now:             now,
	}
}

// CycleStats summarizes one evaluation cycle.
type CycleStats struct {
	CycleID      string
	Wallets      int
	Followable   int
	Excluded     int
	Unclassified int
	Skipped      int // wallets skipped on read errors
}

// walletOutcome is everything the read phase produced for one wallet.
type walletOutcome struct {
	wallet   string
	features *domain.WalletFeatures
	verdict  persona.Verdict
	err      error
}

// RunCycle evaluates every wallet in the archive once. Read work runs in
// parallel; a wallet whose data cannot be read is skipped and logged, it
// never aborts the batch. The write phase is strictly serial.
func (r *Runner) RunCycle(ctx context.Context) (*CycleStats, error) {
	cycleID := uuid.NewString()
	start := r.now()
	status := "error"
	defer func() {
		observability.RecordCycle(status, r.now().Sub(start).Seconds(), r.now().Unix())
	}()

	wallets, err := r.trades.Wallets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}

	outcomes := make([]walletOutcome, len(wallets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, wallet := range wallets {
		i, wallet := i, wallet
		g.Go(func() error {
			outcomes[i] = r.evaluate(gctx, wallet)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &CycleStats{CycleID: cycleID, Wallets: len(wallets)}
	classifiedAt := r.now().Unix()
	for _, o := range outcomes {
		if o.err != nil {
			stats.Skipped++
			observability.RecordWalletSkipped()
			r.log.Warn("skipping wallet this cycle",
				"wallet", o.wallet,
				"cycle_id", cycleID,
				"error", o.err)
			continue
		}
		if o.features != nil {
			if err := r.featureStore.Upsert(ctx, o.features); err != nil {
				return stats, fmt.Errorf("store features for %s: %w", o.wallet, err)
			}
		}
		c := classification(o, cycleID, classifiedAt)
		if err := r.classifications.Upsert(ctx, c); err != nil {
			return stats, fmt.Errorf("store classification for %s: %w", o.wallet, err)
		}
		observability.RecordClassification(string(c.Kind))
		switch c.Kind {
		case domain.KindPersona:
			stats.Followable++
		case domain.KindExclusion:
			stats.Excluded++
		default:
			stats.Unclassified++
		}
	}

	r.log.Info("evaluation cycle complete",
		"cycle_id", cycleID,
		"wallets", stats.Wallets,
		"followable", stats.Followable,
		"excluded", stats.Excluded,
		"unclassified", stats.Unclassified,
		"skipped", stats.Skipped,
		"elapsed", r.now().Sub(start))
	status = "ok"
	return stats, nil
}

// evaluate is the read-only phase for one wallet: stage one gate, feature
// vector, verdict. No writes happen here.
func (r *Runner) evaluate(ctx context.Context, wallet string) walletOutcome {
	o := walletOutcome{wallet: wallet}

	gate, err := r.filter.Check(ctx, wallet)
	if err != nil {
		o.err = err
		return o
	}
	if !gate.Pass {
		o.verdict = persona.Verdict{
			Kind:      domain.KindExclusion,
			Exclusion: gate.Exclusion,
			Metric:    gate.Metric,
			Threshold: gate.Threshold,
		}
		return o
	}

	feats, _, err := r.engine.Compute(ctx, wallet, r.windowDays)
	if err != nil {
		if errors.Is(err, features.ErrInsufficientData) {
			o.verdict = persona.Verdict{Kind: domain.KindUnclassified}
			return o
		}
		o.err = err
		return o
	}

	o.features = feats
	o.verdict = r.classifier.Classify(feats, gate.AgeDays)
	return o
}

func classification(o walletOutcome, cycleID string, classifiedAt int64) *domain.Classification {
	c := &domain.Classification{
		Wallet:       o.wallet,
		CycleID:      cycleID,
		Kind:         o.verdict.Kind,
		Persona:      o.verdict.Persona,
		Exclusion:    o.verdict.Exclusion,
		Metric:       o.verdict.Metric,
		Threshold:    o.verdict.Threshold,
		ClassifiedAt: classifiedAt,
	}
	if c.Kind == domain.KindPersona {
		c.FollowMode = domain.FollowModeFor(c.Persona)
	}
	return c
}

// Run serves triggers until the context is cancelled. Rapid triggers
// coalesce: however many arrive while a cycle is in flight, exactly one
// more cycle follows. The ticker is the lost-trigger fallback.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.notifier.Wait():
		case <-ticker.C:
		}

		for {
			observed := r.notifier.Observe()
			if _, err := r.RunCycle(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.log.Error("evaluation cycle failed", "error", err)
			}
			if !r.notifier.Pending(observed) {
				break
			}
		}
	}
}
