package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage"
)

// ExecutionStore implements storage.ExecutionStore using PostgreSQL. Each
// unit runs in one transaction so a crash leaves either the whole unit
// visible or none of it.
type ExecutionStore struct {
	pool *Pool
}

// NewExecutionStore creates a new ExecutionStore.
func NewExecutionStore(pool *Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ExecutionStore = (*ExecutionStore)(nil)

const insertSimulatedTradeQuery = `
	INSERT INTO simulated_trades (` + simulatedTradeColumns + `
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		$11, $12, $13, $14, $15, $16, $17, $18, $19
	)
`

const upsertPositionQuery = `
	INSERT INTO simulated_positions (wallet, market_id, side, total_size, avg_entry_price, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (wallet, market_id, side) DO UPDATE SET
		avg_entry_price = (simulated_positions.avg_entry_price * simulated_positions.total_size
			+ EXCLUDED.avg_entry_price * EXCLUDED.total_size)
			/ (simulated_positions.total_size + EXCLUDED.total_size),
		total_size = simulated_positions.total_size + EXCLUDED.total_size,
		updated_at = EXCLUDED.updated_at
`

const insertFidelityEventQuery = `
	INSERT INTO fidelity_events (` + fidelityEventColumns + `
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
`

const insertSlippageRecordQuery = `
	INSERT INTO slippage_records (` + slippageRecordColumns + `
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

// applyRiskDeltaQuery increments a risk_state row, creating it on first
// touch. The pnl high-water mark is re-derived from the resulting lifetime
// pnl on every update.
const applyRiskDeltaQuery = `
	INSERT INTO risk_state (
		key, total_exposure, daily_pnl, weekly_pnl, current_pnl, peak_pnl,
		open_positions, halted, halt_reason, updated_at
	) VALUES ($1, $2, $3, $4, $5, GREATEST($5, 0), $6, FALSE, '', $7)
	ON CONFLICT (key) DO UPDATE SET
		total_exposure = risk_state.total_exposure + EXCLUDED.total_exposure,
		daily_pnl = risk_state.daily_pnl + EXCLUDED.daily_pnl,
		weekly_pnl = risk_state.weekly_pnl + EXCLUDED.weekly_pnl,
		current_pnl = risk_state.current_pnl + EXCLUDED.current_pnl,
		peak_pnl = GREATEST(risk_state.peak_pnl, risk_state.current_pnl + EXCLUDED.current_pnl),
		open_positions = risk_state.open_positions + EXCLUDED.open_positions,
		updated_at = EXCLUDED.updated_at
`

// RecordMirror persists one copy decision atomically. Returns
// ErrDuplicateKey without side effects when the source trade was already
// mirrored.
func (s *ExecutionStore) RecordMirror(ctx context.Context, u *storage.MirrorUnit) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin mirror unit: %w", err)
	}
	defer tx.Rollback(ctx)

	t := u.Trade
	_, err = tx.Exec(ctx, insertSimulatedTradeQuery,
		t.SimTradeID, t.Wallet, t.MarketID, string(t.Side), t.SourceTradeID,
		t.TheirPrice, t.TheirSize, t.TheirTime,
		t.OurSize, t.OurEntryPrice, t.SlippageFrac, t.FeeApplied,
		t.SizingMethod, t.DetectionMs,
		string(t.Status), t.ExitPrice, t.PnL, t.CreatedAt, t.SettledAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert simulated trade: %w", err)
	}

	_, err = tx.Exec(ctx, upsertPositionQuery,
		t.Wallet, t.MarketID, string(t.Side), t.OurSize, t.OurEntryPrice, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("merge simulated position: %w", err)
	}

	e := u.Fidelity
	_, err = tx.Exec(ctx, insertFidelityEventQuery,
		e.EventID, e.Wallet, e.MarketID, e.SourceTradeID, string(e.Outcome), e.Detail, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fidelity event: %w", err)
	}

	r := u.Slippage
	_, err = tx.Exec(ctx, insertSlippageRecordQuery,
		r.RecordID, r.Wallet, r.MarketID, r.SourceTradeID, r.SimTradeID,
		r.TheirPrice, r.OurPrice, r.EntryGapCents, r.FeeApplied, r.DetectionMs, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert slippage record: %w", err)
	}

	if err := applyRiskDelta(ctx, tx, t.Wallet, u.WalletDelta, t.CreatedAt); err != nil {
		return err
	}
	if err := applyRiskDelta(ctx, tx, domain.RiskPortfolioKey, u.PortfolioDelta, t.CreatedAt); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit mirror unit: %w", err)
	}
	return nil
}

// RecordSkip appends a skip-decision fidelity event. Returns ErrDuplicateKey
// when the decision was already recorded.
func (s *ExecutionStore) RecordSkip(ctx context.Context, e *domain.FidelityEvent) error {
	_, err := s.pool.Exec(ctx, insertFidelityEventQuery,
		e.EventID, e.Wallet, e.MarketID, e.SourceTradeID, string(e.Outcome), e.Detail, e.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert fidelity event: %w", err)
	}
	return nil
}

// ApplySettlement finalizes every trade in the unit atomically.
func (s *ExecutionStore) ApplySettlement(ctx context.Context, u *storage.SettlementUnit) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin settlement unit: %w", err)
	}
	defer tx.Rollback(ctx)

	settleQuery := `
		UPDATE simulated_trades
		SET status = $2, exit_price = $3, pnl = $4, settled_at = $5
		WHERE sim_trade_id = $1
	`
	for _, t := range u.Trades {
		_, err := tx.Exec(ctx, settleQuery,
			t.SimTradeID, string(t.Status), t.ExitPrice, t.PnL, t.SettledAt,
		)
		if err != nil {
			return fmt.Errorf("settle simulated trade %s: %w", t.SimTradeID, err)
		}
	}

	_, err = tx.Exec(ctx, `DELETE FROM simulated_positions WHERE market_id = $1`, u.MarketID)
	if err != nil {
		return fmt.Errorf("delete settled positions: %w", err)
	}

	for wallet, delta := range u.WalletDeltas {
		if err := applyRiskDelta(ctx, tx, wallet, delta, u.ResolvedAt); err != nil {
			return err
		}
	}
	if err := applyRiskDelta(ctx, tx, domain.RiskPortfolioKey, u.PortfolioDelta, u.ResolvedAt); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit settlement unit: %w", err)
	}
	return nil
}

func applyRiskDelta(ctx context.Context, tx pgx.Tx, key string, d domain.RiskDelta, now int64) error {
	_, err := tx.Exec(ctx, applyRiskDeltaQuery,
		key, d.Exposure, d.DailyPnL, d.WeeklyPnL, d.CurrentPnL, d.OpenPositions, now,
	)
	if err != nil {
		return fmt.Errorf("apply risk delta for %s: %w", key, err)
	}
	return nil
}
