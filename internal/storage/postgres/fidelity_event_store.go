package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage"
)

// FidelityEventStore implements storage.FidelityEventStore using PostgreSQL.
// Reads only; appends happen inside ExecutionStore units.
type FidelityEventStore struct {
	pool *Pool
}

// NewFidelityEventStore creates a new FidelityEventStore.
func NewFidelityEventStore(pool *Pool) *FidelityEventStore {
	return &FidelityEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FidelityEventStore = (*FidelityEventStore)(nil)

const fidelityEventColumns = `
	event_id, wallet, market_id, source_trade_id, outcome, detail, created_at`

// GetByWallet retrieves all decisions for a wallet, ordered by creation ASC.
func (s *FidelityEventStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.FidelityEvent, error) {
	query := `
		SELECT ` + fidelityEventColumns + `
		FROM fidelity_events
		WHERE wallet = $1
		ORDER BY created_at ASC, event_id ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("get fidelity events by wallet: %w", err)
	}
	defer rows.Close()

	return scanFidelityEvents(rows)
}

// GetByWalletTimeRange retrieves decisions within [start, end] inclusive.
func (s *FidelityEventStore) GetByWalletTimeRange(ctx context.Context, wallet string, start, end int64) ([]*domain.FidelityEvent, error) {
	query := `
		SELECT ` + fidelityEventColumns + `
		FROM fidelity_events
		WHERE wallet = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at ASC, event_id ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet, start, end)
	if err != nil {
		return nil, fmt.Errorf("get fidelity events by time range: %w", err)
	}
	defer rows.Close()

	return scanFidelityEvents(rows)
}

// CountByWallet returns (copied, total) decision counts for a wallet.
func (s *FidelityEventStore) CountByWallet(ctx context.Context, wallet string) (int64, int64, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE outcome = $2),
			COUNT(*)
		FROM fidelity_events
		WHERE wallet = $1
	`

	var copied, total int64
	err := s.pool.QueryRow(ctx, query, wallet, string(domain.FidelityCopied)).Scan(&copied, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("count fidelity events: %w", err)
	}
	return copied, total, nil
}

func scanFidelityEvent(row pgx.Row) (*domain.FidelityEvent, error) {
	var (
		e       domain.FidelityEvent
		outcome string
	)
	err := row.Scan(&e.EventID, &e.Wallet, &e.MarketID, &e.SourceTradeID, &outcome, &e.Detail, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Outcome = domain.FidelityOutcome(outcome)
	return &e, nil
}

func scanFidelityEvents(rows pgx.Rows) ([]*domain.FidelityEvent, error) {
	var out []*domain.FidelityEvent
	for rows.Next() {
		e, err := scanFidelityEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fidelity event row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fidelity event rows: %w", err)
	}
	return out, nil
}
