package clickhouse

import (
	"context"
	"fmt"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage"
)

// WalletTradeStore implements storage.WalletTradeStore using ClickHouse.
// The archive is append-only; MergeTree does not enforce uniqueness, so
// duplicate trade ids are rejected by explicit checks before insert.
type WalletTradeStore struct {
	conn *Conn
}

// NewWalletTradeStore creates a new WalletTradeStore.
func NewWalletTradeStore(conn *Conn) *WalletTradeStore {
	return &WalletTradeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.WalletTradeStore = (*WalletTradeStore)(nil)

const walletTradeColumns = `trade_id, wallet, market_id, side, size, price, timestamp`

// Insert adds one source trade. Returns ErrDuplicateKey if trade_id exists.
func (s *WalletTradeStore) Insert(ctx context.Context, t *domain.SourceTrade) error {
	return s.InsertBulk(ctx, []*domain.SourceTrade{t})
}

// InsertBulk adds multiple source trades atomically. Fails entire batch on any duplicate.
func (s *WalletTradeStore) InsertBulk(ctx context.Context, trades []*domain.SourceTrade) error {
	if len(trades) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{})
	for _, t := range trades {
		if _, exists := seen[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[t.TradeID] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, t := range trades {
		exists, err := s.exists(ctx, t.TradeID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO wallet_trades (`+walletTradeColumns+`)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range trades {
		err = batch.Append(
			t.TradeID, t.Wallet, t.MarketID, string(t.Side),
			t.Size, t.Price, uint64(t.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByWallet retrieves a wallet's full trade log, ordered by timestamp ASC.
func (s *WalletTradeStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.SourceTrade, error) {
	query := `
		SELECT ` + walletTradeColumns + `
		FROM wallet_trades
		WHERE wallet = ?
		ORDER BY timestamp ASC, trade_id ASC
	`

	rows, err := s.conn.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("query by wallet: %w", err)
	}
	defer rows.Close()

	return scanWalletTrades(rows)
}

// GetByWalletTimeRange retrieves a wallet's trades within [start, end] (inclusive), ordered ASC.
func (s *WalletTradeStore) GetByWalletTimeRange(ctx context.Context, wallet string, start, end int64) ([]*domain.SourceTrade, error) {
	query := `
		SELECT ` + walletTradeColumns + `
		FROM wallet_trades
		WHERE wallet = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, trade_id ASC
	`

	rows, err := s.conn.Query(ctx, query, wallet, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanWalletTrades(rows)
}

// GetSince retrieves all trades with timestamp > since, ordered ASC.
func (s *WalletTradeStore) GetSince(ctx context.Context, since int64) ([]*domain.SourceTrade, error) {
	query := `
		SELECT ` + walletTradeColumns + `
		FROM wallet_trades
		WHERE timestamp > ?
		ORDER BY timestamp ASC, trade_id ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(since))
	if err != nil {
		return nil, fmt.Errorf("query since: %w", err)
	}
	defer rows.Close()

	return scanWalletTrades(rows)
}

// Wallets lists every distinct wallet present in the archive.
func (s *WalletTradeStore) Wallets(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT wallet
		FROM wallet_trades
		ORDER BY wallet ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query wallets: %w", err)
	}
	defer rows.Close()

	var wallets []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return wallets, nil
}

// exists checks if a trade with the given id exists.
func (s *WalletTradeStore) exists(ctx context.Context, tradeID string) (bool, error) {
	query := `
		SELECT count(*) FROM wallet_trades
		WHERE trade_id = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, tradeID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanWalletTrades scans multiple rows.
func scanWalletTrades(rows chRows) ([]*domain.SourceTrade, error) {
	var trades []*domain.SourceTrade

	for rows.Next() {
		var t domain.SourceTrade
		var side string
		var timestamp uint64

		err := rows.Scan(
			&t.TradeID, &t.Wallet, &t.MarketID, &side,
			&t.Size, &t.Price, &timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan wallet trade row: %w", err)
		}

		t.Side = domain.Side(side)
		t.Timestamp = int64(timestamp)
		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet trade rows: %w", err)
	}

	return trades, nil
}
