package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage"
)

// SlippageRecordStore implements storage.SlippageRecordStore using PostgreSQL.
// Reads only; appends happen inside ExecutionStore units.
type SlippageRecordStore struct {
	pool *Pool
}

// NewSlippageRecordStore creates a new SlippageRecordStore.
func NewSlippageRecordStore(pool *Pool) *SlippageRecordStore {
	return &SlippageRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SlippageRecordStore = (*SlippageRecordStore)(nil)

const slippageRecordColumns = `
	record_id, wallet, market_id, source_trade_id, sim_trade_id,
	their_price, our_price, entry_gap_cents, fee_applied, detection_ms, created_at`

// GetByWallet retrieves all records for a wallet, ordered by creation ASC.
func (s *SlippageRecordStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.SlippageRecord, error) {
	query := `
		SELECT ` + slippageRecordColumns + `
		FROM slippage_records
		WHERE wallet = $1
		ORDER BY created_at ASC, record_id ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("get slippage records by wallet: %w", err)
	}
	defer rows.Close()

	return scanSlippageRecords(rows)
}

// GetByWalletTimeRange retrieves records within [start, end] inclusive.
func (s *SlippageRecordStore) GetByWalletTimeRange(ctx context.Context, wallet string, start, end int64) ([]*domain.SlippageRecord, error) {
	query := `
		SELECT ` + slippageRecordColumns + `
		FROM slippage_records
		WHERE wallet = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at ASC, record_id ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet, start, end)
	if err != nil {
		return nil, fmt.Errorf("get slippage records by time range: %w", err)
	}
	defer rows.Close()

	return scanSlippageRecords(rows)
}

// RecentAvgGapCents returns the mean entry gap over the wallet's last n
// records. Returns 0 with no error when the wallet has no records.
func (s *SlippageRecordStore) RecentAvgGapCents(ctx context.Context, wallet string, n int) (float64, error) {
	query := `
		SELECT COALESCE(AVG(entry_gap_cents), 0)
		FROM (
			SELECT entry_gap_cents
			FROM slippage_records
			WHERE wallet = $1
			ORDER BY created_at DESC, record_id DESC
			LIMIT $2
		) recent
	`

	var avg float64
	if err := s.pool.QueryRow(ctx, query, wallet, n).Scan(&avg); err != nil {
		return 0, fmt.Errorf("average slippage gap: %w", err)
	}
	return avg, nil
}

func scanSlippageRecord(row pgx.Row) (*domain.SlippageRecord, error) {
	var r domain.SlippageRecord
	err := row.Scan(
		&r.RecordID, &r.Wallet, &r.MarketID, &r.SourceTradeID, &r.SimTradeID,
		&r.TheirPrice, &r.OurPrice, &r.EntryGapCents, &r.FeeApplied, &r.DetectionMs, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanSlippageRecords(rows pgx.Rows) ([]*domain.SlippageRecord, error) {
	var out []*domain.SlippageRecord
	for rows.Next() {
		r, err := scanSlippageRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slippage record row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slippage record rows: %w", err)
	}
	return out, nil
}
