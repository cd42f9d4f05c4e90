package mirror

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage"
)

// Detector finds source trades that arrived since the last poll and feeds
// the ones made by followable wallets to the mirror engine. Wallets are
// processed concurrently, trades within one wallet in timestamp order.
//
// The watermark trails the newest seen timestamp by one second so trades
// landing late within the same second are still picked up; the seen set
// keeps those overlap trades from being handed to the engine twice.
type Detector struct {
	trades          storage.WalletTradeStore
	classifications storage.ClassificationStore
	engine          *Engine
	workers         int
	log             *slog.Logger

	watermark int64
	seen      map[string]int64 // trade_id -> timestamp, pruned as watermark advances
}

// DetectorOptions for creating a trade Detector.
type DetectorOptions struct {
	Trades          storage.WalletTradeStore
	Classifications storage.ClassificationStore
	Engine          *Engine
	Workers         int

	// Since sets the initial watermark. Zero replays the full archive.
	Since int64

	Logger *slog.Logger
}

// NewDetector creates a trade detector.
func NewDetector(opts DetectorOptions) *Detector {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Detector{
		trades:          opts.Trades,
		classifications: opts.Classifications,
		engine:          opts.Engine,
		workers:         workers,
		log:             log,
		watermark:       opts.Since,
		seen:            make(map[string]int64),
	}
}

// Poll mirrors every new followable trade and advances the watermark.
// Returns the number of trades handed to the engine. Not safe for
// concurrent use; the pipeline runner is its single caller.
func (d *Detector) Poll(ctx context.Context) (int, error) {
	followable, err := d.classifications.ListFollowable(ctx)
	if err != nil {
		return 0, fmt.Errorf("list followable wallets: %w", err)
	}
	if len(followable) == 0 {
		return 0, nil
	}
	wanted := make(map[string]bool, len(followable))
	for _, c := range followable {
		wanted[c.Wallet] = true
	}

	fresh, err := d.trades.GetSince(ctx, d.watermark)
	if err != nil {
		return 0, fmt.Errorf("load trades since %d: %w", d.watermark, err)
	}

	byWallet := make(map[string][]*domain.SourceTrade)
	var maxTS int64
	processed := 0
	for _, t := range fresh {
		if t.Timestamp > maxTS {
			maxTS = t.Timestamp
		}
		if _, dup := d.seen[t.TradeID]; dup {
			continue
		}
		d.seen[t.TradeID] = t.Timestamp
		if !wanted[t.Wallet] {
			continue
		}
		byWallet[t.Wallet] = append(byWallet[t.Wallet], t)
		processed++
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for _, trades := range byWallet {
		trades := trades
		g.Go(func() error {
			for _, t := range trades {
				if _, _, err := d.engine.Mirror(gctx, t); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return processed, err
	}

	if maxTS > 0 {
		d.advance(maxTS - 1)
	}
	return processed, nil
}

// advance moves the watermark forward and drops seen entries it now covers.
func (d *Detector) advance(to int64) {
	if to <= d.watermark {
		return
	}
	d.watermark = to
	for id, ts := range d.seen {
		if ts <= d.watermark {
			delete(d.seen, id)
		}
	}
}
