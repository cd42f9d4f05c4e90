package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"mirrorlab/internal/config"
	"mirrorlab/internal/domain"
	"mirrorlab/internal/idhash"
	"mirrorlab/internal/observability"
	"mirrorlab/internal/risk"
	"mirrorlab/internal/storage"
)

// Engine turns detected source trades on followable wallets into simulated
// copies. Each wallet mirrors strictly sequentially: the risk gates read
// exposure before deciding, so two in-flight copies for one wallet could
// both pass a check their sum would fail.
type Engine struct {
	exec     storage.ExecutionStore
	markets  storage.MarketStore
	gates    *risk.Engine
	ledger   *risk.Ledger
	bankroll *BankrollEstimator
	cfg      config.TradingConfig
	log      *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	walletMu map[string]*sync.Mutex
}

// Options for creating a mirror Engine.
type Options struct {
	Exec     storage.ExecutionStore
	Markets  storage.MarketStore
	Gates    *risk.Engine
	Ledger   *risk.Ledger
	Bankroll *BankrollEstimator
	Config   config.TradingConfig

	Logger *slog.Logger
	Now    func() time.Time
}

// NewEngine creates a mirror execution engine.
func NewEngine(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		exec:     opts.Exec,
		markets:  opts.Markets,
		gates:    opts.Gates,
		ledger:   opts.Ledger,
		bankroll: opts.Bankroll,
		cfg:      opts.Config,
		log:      log,
		now:      now,
		walletMu: make(map[string]*sync.Mutex),
	}
}

// Mirror processes one detected source trade end to end: sizing, risk
// gates, simulated fill, durable unit, ledger deltas. A non-nil Rejection
// means a gate refused and a skip event was recorded. Replaying a source
// trade already mirrored is a no-op.
func (e *Engine) Mirror(ctx context.Context, trade *domain.SourceTrade) (*domain.SimulatedTrade, *risk.Rejection, error) {
	mu := e.lockWallet(trade.Wallet)
	mu.Lock()
	defer mu.Unlock()

	now := e.now()

	if reason := malformed(trade); reason != "" {
		e.log.Warn("skipping malformed source trade",
			"trade_id", trade.TradeID,
			"wallet", trade.Wallet,
			"reason", reason)
		skip := &domain.FidelityEvent{
			EventID:       idhash.ComputeFidelityEventID(trade.TradeID, domain.FidelitySkippedMalformed),
			Wallet:        trade.Wallet,
			MarketID:      trade.MarketID,
			SourceTradeID: trade.TradeID,
			Outcome:       domain.FidelitySkippedMalformed,
			Detail:        reason,
			CreatedAt:     now.Unix(),
		}
		if err := e.exec.RecordSkip(ctx, skip); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return nil, nil, fmt.Errorf("record malformed skip: %w", err)
		}
		observability.RecordTradeSkipped(string(domain.FidelitySkippedMalformed))
		return nil, nil, nil
	}

	theirBankroll, err := e.bankroll.Estimate(ctx, trade.Wallet)
	if err != nil {
		return nil, nil, err
	}
	ourSize, method := proposeSize(trade, theirBankroll, e.cfg)
	proposedUSD := ourSize * trade.Price

	rej, err := e.gates.Check(ctx, trade.Wallet, proposedUSD)
	if err != nil {
		return nil, nil, err
	}
	if rej != nil {
		e.log.Info("risk gate rejected copy",
			"trade_id", trade.TradeID,
			"wallet", trade.Wallet,
			"gate", string(rej.Gate),
			"value", rej.Value,
			"limit", rej.Limit)
		skip := &domain.FidelityEvent{
			EventID:       idhash.ComputeFidelityEventID(trade.TradeID, rej.Scope),
			Wallet:        trade.Wallet,
			MarketID:      trade.MarketID,
			SourceTradeID: trade.TradeID,
			Outcome:       rej.Scope,
			Detail:        fmt.Sprintf("%s: %s", rej.Gate, rej.Reason),
			CreatedAt:     now.Unix(),
		}
		if err := e.exec.RecordSkip(ctx, skip); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return nil, nil, fmt.Errorf("record risk skip: %w", err)
		}
		observability.RecordTradeSkipped(string(rej.Scope))
		observability.RecordGateRejection(string(rej.Gate))
		return nil, rej, nil
	}

	entry, fee := entryPrice(trade.Price, trade.Side, e.cfg.SlippageFrac, e.feeBearing(ctx, trade.MarketID))
	detectionMs := now.UnixMilli() - trade.Timestamp*1000
	if detectionMs < 0 {
		detectionMs = 0
	}

	simID := idhash.ComputeSimTradeID(trade.TradeID, trade.Wallet, trade.MarketID)
	sim := &domain.SimulatedTrade{
		SimTradeID:    simID,
		Wallet:        trade.Wallet,
		MarketID:      trade.MarketID,
		Side:          trade.Side,
		SourceTradeID: trade.TradeID,
		TheirPrice:    trade.Price,
		TheirSize:     trade.Size,
		TheirTime:     trade.Timestamp,
		OurSize:       ourSize,
		OurEntryPrice: entry,
		SlippageFrac:  e.cfg.SlippageFrac,
		FeeApplied:    fee,
		SizingMethod:  method,
		DetectionMs:   detectionMs,
		Status:        domain.TradeStatusOpen,
		CreatedAt:     now.Unix(),
	}
	exposure := ourSize * entry
	delta := domain.RiskDelta{Exposure: exposure, OpenPositions: 1}
	unit := &storage.MirrorUnit{
		Trade: sim,
		Fidelity: &domain.FidelityEvent{
			EventID:       idhash.ComputeFidelityEventID(trade.TradeID, domain.FidelityCopied),
			Wallet:        trade.Wallet,
			MarketID:      trade.MarketID,
			SourceTradeID: trade.TradeID,
			Outcome:       domain.FidelityCopied,
			CreatedAt:     now.Unix(),
		},
		Slippage: &domain.SlippageRecord{
			RecordID:      idhash.ComputeSlippageRecordID(simID),
			Wallet:        trade.Wallet,
			MarketID:      trade.MarketID,
			SourceTradeID: trade.TradeID,
			SimTradeID:    simID,
			TheirPrice:    trade.Price,
			OurPrice:      entry,
			EntryGapCents: math.Abs(entry-trade.Price) * 100,
			FeeApplied:    fee,
			DetectionMs:   detectionMs,
			CreatedAt:     now.Unix(),
		},
		WalletDelta:    delta,
		PortfolioDelta: delta,
	}

	if err := e.exec.RecordMirror(ctx, unit); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			e.log.Debug("source trade already mirrored",
				"trade_id", trade.TradeID,
				"wallet", trade.Wallet)
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("record mirror unit: %w", err)
	}

	ts := now.Unix()
	e.ledger.Apply(trade.Wallet, delta, ts)
	e.ledger.Apply(domain.RiskPortfolioKey, delta, ts)
	observability.RecordTradeCopied(float64(detectionMs)/1000, ts)

	e.log.Info("mirrored source trade",
		"trade_id", trade.TradeID,
		"wallet", trade.Wallet,
		"market_id", trade.MarketID,
		"side", trade.Side.String(),
		"our_size", ourSize,
		"entry", entry,
		"sizing", method)
	return sim, nil, nil
}

// feeBearing reports whether the market belongs to the fee category. An
// unknown market or disabled category means no fee.
func (e *Engine) feeBearing(ctx context.Context, marketID string) bool {
	if e.cfg.FeeCategory == "" {
		return false
	}
	m, err := e.markets.Get(ctx, marketID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.log.Warn("market lookup failed, assuming no fee",
				"market_id", marketID,
				"error", err)
		}
		return false
	}
	return m.Category == e.cfg.FeeCategory
}

func (e *Engine) lockWallet(wallet string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	mu, ok := e.walletMu[wallet]
	if !ok {
		mu = &sync.Mutex{}
		e.walletMu[wallet] = mu
	}
	return mu
}

func malformed(t *domain.SourceTrade) string {
	switch {
	case t.Wallet == "" || t.MarketID == "":
		return "missing wallet or market id"
	case !t.Side.IsValid():
		return fmt.Sprintf("invalid side %q", t.Side)
	case !finitePositive(t.Price) || t.Price >= 1:
		return fmt.Sprintf("price %v outside (0, 1)", t.Price)
	case t.Timestamp <= 0:
		return "missing timestamp"
	}
	return ""
}
