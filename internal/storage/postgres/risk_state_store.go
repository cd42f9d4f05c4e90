package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage"
)

// RiskStateStore implements storage.RiskStateStore using PostgreSQL.
type RiskStateStore struct {
	pool *Pool
}

// NewRiskStateStore creates a new RiskStateStore.
func NewRiskStateStore(pool *Pool) *RiskStateStore {
	return &RiskStateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RiskStateStore = (*RiskStateStore)(nil)

const riskStateColumns = `
	key, total_exposure, daily_pnl, weekly_pnl, current_pnl, peak_pnl,
	open_positions, halted, halt_reason, updated_at`

// Put writes a full row, overwriting any prior one.
func (s *RiskStateStore) Put(ctx context.Context, st *domain.RiskState) error {
	query := `
		INSERT INTO risk_state (` + riskStateColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (key) DO UPDATE SET
			total_exposure = EXCLUDED.total_exposure,
			daily_pnl = EXCLUDED.daily_pnl,
			weekly_pnl = EXCLUDED.weekly_pnl,
			current_pnl = EXCLUDED.current_pnl,
			peak_pnl = EXCLUDED.peak_pnl,
			open_positions = EXCLUDED.open_positions,
			halted = EXCLUDED.halted,
			halt_reason = EXCLUDED.halt_reason,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		st.Key, st.TotalExposure, st.DailyPnL, st.WeeklyPnL, st.CurrentPnL, st.PeakPnL,
		st.OpenPositions, st.Halted, st.HaltReason, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put risk state: %w", err)
	}
	return nil
}

// Get retrieves one row.
func (s *RiskStateStore) Get(ctx context.Context, key string) (*domain.RiskState, error) {
	query := `
		SELECT ` + riskStateColumns + `
		FROM risk_state
		WHERE key = $1
	`

	row := s.pool.QueryRow(ctx, query, key)
	st, err := scanRiskState(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get risk state: %w", err)
	}
	return st, nil
}

// GetAll retrieves every row for ledger rehydration.
func (s *RiskStateStore) GetAll(ctx context.Context) ([]*domain.RiskState, error) {
	query := `
		SELECT ` + riskStateColumns + `
		FROM risk_state
		ORDER BY key ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all risk state: %w", err)
	}
	defer rows.Close()

	var out []*domain.RiskState
	for rows.Next() {
		st, err := scanRiskState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan risk state row: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate risk state rows: %w", err)
	}
	return out, nil
}

func scanRiskState(row pgx.Row) (*domain.RiskState, error) {
	var st domain.RiskState
	err := row.Scan(
		&st.Key, &st.TotalExposure, &st.DailyPnL, &st.WeeklyPnL, &st.CurrentPnL, &st.PeakPnL,
		&st.OpenPositions, &st.Halted, &st.HaltReason, &st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
