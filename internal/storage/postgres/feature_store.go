package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage"
)

// FeatureStore implements storage.FeatureStore using PostgreSQL.
type FeatureStore struct {
	pool *Pool
}

// NewFeatureStore creates a new FeatureStore.
func NewFeatureStore(pool *Pool) *FeatureStore {
	return &FeatureStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

const featureColumns = `
	wallet, window_days, feature_date, computed_at,
	trade_count, unique_markets, win_count, loss_count,
	cashflow_pnl, fifo_realized_pnl, unrealized_pnl, total_pnl,
	realized_roi, max_pair_loss, avg_win_pnl, top_trade_pnl_share,
	open_positions_count, avg_position_size, avg_hold_hours,
	max_drawdown_pct, sharpe_like, trades_per_day, trades_per_week,
	concentration_ratio, size_cv, buy_sell_balance,
	mid_fill_ratio, extreme_fill_ratio, burstiness_ratio,
	dominant_category, dominant_category_share`

// Upsert writes a feature vector, overwriting any prior row for
// (wallet, window_days, feature_date).
func (s *FeatureStore) Upsert(ctx context.Context, f *domain.WalletFeatures) error {
	query := `
		INSERT INTO wallet_features (` + featureColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31
		)
		ON CONFLICT (wallet, window_days, feature_date) DO UPDATE SET
			computed_at = EXCLUDED.computed_at,
			trade_count = EXCLUDED.trade_count,
			unique_markets = EXCLUDED.unique_markets,
			win_count = EXCLUDED.win_count,
			loss_count = EXCLUDED.loss_count,
			cashflow_pnl = EXCLUDED.cashflow_pnl,
			fifo_realized_pnl = EXCLUDED.fifo_realized_pnl,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			total_pnl = EXCLUDED.total_pnl,
			realized_roi = EXCLUDED.realized_roi,
			max_pair_loss = EXCLUDED.max_pair_loss,
			avg_win_pnl = EXCLUDED.avg_win_pnl,
			top_trade_pnl_share = EXCLUDED.top_trade_pnl_share,
			open_positions_count = EXCLUDED.open_positions_count,
			avg_position_size = EXCLUDED.avg_position_size,
			avg_hold_hours = EXCLUDED.avg_hold_hours,
			max_drawdown_pct = EXCLUDED.max_drawdown_pct,
			sharpe_like = EXCLUDED.sharpe_like,
			trades_per_day = EXCLUDED.trades_per_day,
			trades_per_week = EXCLUDED.trades_per_week,
			concentration_ratio = EXCLUDED.concentration_ratio,
			size_cv = EXCLUDED.size_cv,
			buy_sell_balance = EXCLUDED.buy_sell_balance,
			mid_fill_ratio = EXCLUDED.mid_fill_ratio,
			extreme_fill_ratio = EXCLUDED.extreme_fill_ratio,
			burstiness_ratio = EXCLUDED.burstiness_ratio,
			dominant_category = EXCLUDED.dominant_category,
			dominant_category_share = EXCLUDED.dominant_category_share
	`

	_, err := s.pool.Exec(ctx, query, featureArgs(f)...)
	if err != nil {
		return fmt.Errorf("upsert wallet features: %w", err)
	}
	return nil
}

// GetLatest retrieves the most recent vector for a wallet and window.
func (s *FeatureStore) GetLatest(ctx context.Context, wallet string, windowDays int) (*domain.WalletFeatures, error) {
	query := `
		SELECT ` + featureColumns + `
		FROM wallet_features
		WHERE wallet = $1 AND window_days = $2
		ORDER BY computed_at DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, wallet, windowDays)
	f, err := scanFeatures(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest features: %w", err)
	}
	return f, nil
}

// GetByWallet retrieves all stored vectors for a wallet, newest first.
func (s *FeatureStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.WalletFeatures, error) {
	query := `
		SELECT ` + featureColumns + `
		FROM wallet_features
		WHERE wallet = $1
		ORDER BY computed_at DESC, window_days ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("get features by wallet: %w", err)
	}
	defer rows.Close()

	var out []*domain.WalletFeatures
	for rows.Next() {
		f, err := scanFeatures(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature rows: %w", err)
	}
	return out, nil
}

func featureArgs(f *domain.WalletFeatures) []any {
	return []any{
		f.Wallet, f.WindowDays, f.FeatureDate, f.ComputedAt,
		f.TradeCount, f.UniqueMarkets, f.WinCount, f.LossCount,
		f.CashflowPnL, f.FIFORealizedPnL, f.UnrealizedPnL, f.TotalPnL,
		f.RealizedROI, f.MaxPairLoss, f.AvgWinPnL, f.TopTradePnLShare,
		f.OpenPositionsCount, f.AvgPositionSize, f.AvgHoldHours,
		f.MaxDrawdownPct, f.SharpeLike, f.TradesPerDay, f.TradesPerWeek,
		f.ConcentrationRatio, f.SizeCV, f.BuySellBalance,
		f.MidFillRatio, f.ExtremeFillRatio, f.BurstinessRatio,
		f.DominantCategory, f.DominantCategoryShare,
	}
}

func scanFeatures(row pgx.Row) (*domain.WalletFeatures, error) {
	var f domain.WalletFeatures
	err := row.Scan(
		&f.Wallet, &f.WindowDays, &f.FeatureDate, &f.ComputedAt,
		&f.TradeCount, &f.UniqueMarkets, &f.WinCount, &f.LossCount,
		&f.CashflowPnL, &f.FIFORealizedPnL, &f.UnrealizedPnL, &f.TotalPnL,
		&f.RealizedROI, &f.MaxPairLoss, &f.AvgWinPnL, &f.TopTradePnLShare,
		&f.OpenPositionsCount, &f.AvgPositionSize, &f.AvgHoldHours,
		&f.MaxDrawdownPct, &f.SharpeLike, &f.TradesPerDay, &f.TradesPerWeek,
		&f.ConcentrationRatio, &f.SizeCV, &f.BuySellBalance,
		&f.MidFillRatio, &f.ExtremeFillRatio, &f.BurstinessRatio,
		&f.DominantCategory, &f.DominantCategoryShare,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
