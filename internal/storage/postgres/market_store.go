package postgres

import (
	"context"
	"fmt"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage"
)

// MarketStore implements storage.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *Pool
}

// NewMarketStore creates a new MarketStore.
func NewMarketStore(pool *Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MarketStore = (*MarketStore)(nil)

// Upsert writes market metadata, overwriting any prior row.
func (s *MarketStore) Upsert(ctx context.Context, m *domain.MarketInfo) error {
	query := `
		INSERT INTO markets (market_id, title, slug, category, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (market_id) DO UPDATE SET
			title = EXCLUDED.title,
			slug = EXCLUDED.slug,
			category = EXCLUDED.category,
			active = EXCLUDED.active
	`

	_, err := s.pool.Exec(ctx, query, m.MarketID, m.Title, m.Slug, m.Category, m.Active, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert market: %w", err)
	}
	return nil
}

// Get retrieves one market.
func (s *MarketStore) Get(ctx context.Context, marketID string) (*domain.MarketInfo, error) {
	query := `
		SELECT market_id, title, slug, category, active, created_at
		FROM markets
		WHERE market_id = $1
	`

	var m domain.MarketInfo
	err := s.pool.QueryRow(ctx, query, marketID).Scan(
		&m.MarketID, &m.Title, &m.Slug, &m.Category, &m.Active, &m.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get market: %w", err)
	}
	return &m, nil
}
