package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage"
)

// SimulatedPositionStore implements storage.SimulatedPositionStore using
// PostgreSQL. Reads only; accumulation and deletion happen inside
// ExecutionStore units.
type SimulatedPositionStore struct {
	pool *Pool
}

// NewSimulatedPositionStore creates a new SimulatedPositionStore.
func NewSimulatedPositionStore(pool *Pool) *SimulatedPositionStore {
	return &SimulatedPositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SimulatedPositionStore = (*SimulatedPositionStore)(nil)

const simulatedPositionColumns = `
	wallet, market_id, side, total_size, avg_entry_price, updated_at`

// Get retrieves the accumulator row for (wallet, market, side).
func (s *SimulatedPositionStore) Get(ctx context.Context, wallet, marketID string, side domain.Side) (*domain.SimulatedPosition, error) {
	query := `
		SELECT ` + simulatedPositionColumns + `
		FROM simulated_positions
		WHERE wallet = $1 AND market_id = $2 AND side = $3
	`

	row := s.pool.QueryRow(ctx, query, wallet, marketID, string(side))
	p, err := scanSimulatedPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get simulated position: %w", err)
	}
	return p, nil
}

// GetByMarket retrieves all open positions in a market.
func (s *SimulatedPositionStore) GetByMarket(ctx context.Context, marketID string) ([]*domain.SimulatedPosition, error) {
	query := `
		SELECT ` + simulatedPositionColumns + `
		FROM simulated_positions
		WHERE market_id = $1
		ORDER BY wallet ASC, side ASC
	`

	rows, err := s.pool.Query(ctx, query, marketID)
	if err != nil {
		return nil, fmt.Errorf("get simulated positions by market: %w", err)
	}
	defer rows.Close()

	var out []*domain.SimulatedPosition
	for rows.Next() {
		p, err := scanSimulatedPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan simulated position row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate simulated position rows: %w", err)
	}
	return out, nil
}

func scanSimulatedPosition(row pgx.Row) (*domain.SimulatedPosition, error) {
	var (
		p    domain.SimulatedPosition
		side string
	)
	err := row.Scan(&p.Wallet, &p.MarketID, &side, &p.TotalSize, &p.AvgEntryPrice, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Side = domain.Side(side)
	return &p, nil
}
