package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage"
)

// SimulatedTradeStore implements storage.SimulatedTradeStore using PostgreSQL.
// Reads only; writes go through ExecutionStore units.
type SimulatedTradeStore struct {
	pool *Pool
}

// NewSimulatedTradeStore creates a new SimulatedTradeStore.
func NewSimulatedTradeStore(pool *Pool) *SimulatedTradeStore {
	return &SimulatedTradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SimulatedTradeStore = (*SimulatedTradeStore)(nil)

const simulatedTradeColumns = `
	sim_trade_id, wallet, market_id, side, source_trade_id,
	their_price, their_size, their_time,
	our_size, our_entry_price, slippage_frac, fee_applied,
	sizing_method, detection_ms,
	status, exit_price, pnl, created_at, settled_at`

// GetBySourceTradeID retrieves the simulated trade mirroring a source trade.
func (s *SimulatedTradeStore) GetBySourceTradeID(ctx context.Context, sourceTradeID string) (*domain.SimulatedTrade, error) {
	query := `
		SELECT ` + simulatedTradeColumns + `
		FROM simulated_trades
		WHERE source_trade_id = $1
	`

	row := s.pool.QueryRow(ctx, query, sourceTradeID)
	t, err := scanSimulatedTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get simulated trade by source: %w", err)
	}
	return t, nil
}

// GetOpenByMarket retrieves all open simulated trades in a market.
func (s *SimulatedTradeStore) GetOpenByMarket(ctx context.Context, marketID string) ([]*domain.SimulatedTrade, error) {
	query := `
		SELECT ` + simulatedTradeColumns + `
		FROM simulated_trades
		WHERE market_id = $1 AND status = $2
		ORDER BY created_at ASC, sim_trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, marketID, string(domain.TradeStatusOpen))
	if err != nil {
		return nil, fmt.Errorf("get open simulated trades: %w", err)
	}
	defer rows.Close()

	return scanSimulatedTrades(rows)
}

// GetByWallet retrieves all simulated trades copied from a wallet, newest first.
func (s *SimulatedTradeStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.SimulatedTrade, error) {
	query := `
		SELECT ` + simulatedTradeColumns + `
		FROM simulated_trades
		WHERE wallet = $1
		ORDER BY created_at DESC, sim_trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("get simulated trades by wallet: %w", err)
	}
	defer rows.Close()

	return scanSimulatedTrades(rows)
}

// GetByWalletTimeRange retrieves trades created within [start, end] inclusive.
func (s *SimulatedTradeStore) GetByWalletTimeRange(ctx context.Context, wallet string, start, end int64) ([]*domain.SimulatedTrade, error) {
	query := `
		SELECT ` + simulatedTradeColumns + `
		FROM simulated_trades
		WHERE wallet = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at ASC, sim_trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet, start, end)
	if err != nil {
		return nil, fmt.Errorf("get simulated trades by time range: %w", err)
	}
	defer rows.Close()

	return scanSimulatedTrades(rows)
}

func scanSimulatedTrade(row pgx.Row) (*domain.SimulatedTrade, error) {
	var (
		t      domain.SimulatedTrade
		side   string
		status string
	)
	err := row.Scan(
		&t.SimTradeID, &t.Wallet, &t.MarketID, &side, &t.SourceTradeID,
		&t.TheirPrice, &t.TheirSize, &t.TheirTime,
		&t.OurSize, &t.OurEntryPrice, &t.SlippageFrac, &t.FeeApplied,
		&t.SizingMethod, &t.DetectionMs,
		&status, &t.ExitPrice, &t.PnL, &t.CreatedAt, &t.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	t.Side = domain.Side(side)
	t.Status = domain.TradeStatus(status)
	return &t, nil
}

func scanSimulatedTrades(rows pgx.Rows) ([]*domain.SimulatedTrade, error) {
	var out []*domain.SimulatedTrade
	for rows.Next() {
		t, err := scanSimulatedTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan simulated trade row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate simulated trade rows: %w", err)
	}
	return out, nil
}
