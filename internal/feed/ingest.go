package feed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/observability"
	"mirrorlab/internal/storage"
)

// PriceSink receives last trade prices to keep the mark price cache warm.
type PriceSink interface {
	Set(ctx context.Context, marketID string, price float64, ts time.Time) error
}

// Resolver settles a market when the feed announces its resolution.
type Resolver interface {
	Settle(ctx context.Context, res *domain.MarketResolution) (int, error)
}

// Ingestor lands feed messages in the trade archive and wakes the
// pipeline. Duplicate fills from the feed are absorbed by the archive's
// trade id key.
type Ingestor struct {
	trades   storage.WalletTradeStore
	prices   PriceSink
	resolver Resolver
	trigger  func()
	log      *slog.Logger
}

// IngestorOptions for creating an Ingestor.
type IngestorOptions struct {
	Trades   storage.WalletTradeStore
	Prices   PriceSink // optional
	Resolver Resolver  // optional

	// Trigger wakes the evaluation pipeline after new trades land.
	Trigger func()

	Logger *slog.Logger
}

// NewIngestor creates a feed ingestor and registers it on the client.
func NewIngestor(client *Client, opts IngestorOptions) *Ingestor {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	trigger := opts.Trigger
	if trigger == nil {
		trigger = func() {}
	}
	ing := &Ingestor{
		trades:   opts.Trades,
		prices:   opts.Prices,
		resolver: opts.Resolver,
		trigger:  trigger,
		log:      log,
	}
	client.OnTrade(ing.handleTrade)
	client.OnResolution(ing.handleResolution)
	return ing
}

func (ing *Ingestor) handleTrade(m *TradeMessage) {
	ctx := context.Background()

	trade, err := m.ToDomain()
	if err != nil {
		observability.RecordMalformedMessage("trade")
		ing.log.Warn("dropping malformed feed trade",
			"wallet", m.Wallet,
			"market_id", m.MarketID,
			"error", err)
		return
	}

	if err := ing.trades.Insert(ctx, trade); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			observability.RecordDuplicateTrade()
			return
		}
		ing.log.Error("failed to archive feed trade",
			"trade_id", trade.TradeID,
			"error", err)
		return
	}
	observability.RecordTradeIngested()

	if ing.prices != nil {
		ts := time.Unix(trade.Timestamp, 0)
		if err := ing.prices.Set(ctx, trade.MarketID, trade.Price, ts); err != nil {
			ing.log.Warn("failed to cache last trade price",
				"market_id", trade.MarketID,
				"error", err)
		}
	}

	ing.trigger()
}

func (ing *Ingestor) handleResolution(m *ResolutionMessage) {
	if ing.resolver == nil {
		return
	}
	ctx := context.Background()

	res, err := m.ToDomain()
	if err != nil {
		observability.RecordMalformedMessage("resolution")
		ing.log.Warn("dropping malformed resolution",
			"market_id", m.MarketID,
			"error", err)
		return
	}

	observability.RecordResolution()

	n, err := ing.resolver.Settle(ctx, res)
	if err != nil {
		ing.log.Error("settlement failed",
			"market_id", res.MarketID,
			"error", err)
		return
	}
	if n > 0 {
		ing.trigger()
	}
}
