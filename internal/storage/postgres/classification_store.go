package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage"
)

// ClassificationStore implements storage.ClassificationStore using PostgreSQL.
type ClassificationStore struct {
	pool *Pool
}

// NewClassificationStore creates a new ClassificationStore.
func NewClassificationStore(pool *Pool) *ClassificationStore {
	return &ClassificationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ClassificationStore = (*ClassificationStore)(nil)

const classificationColumns = `
	wallet, cycle_id, kind, persona, follow_mode,
	exclusion, metric, threshold, classified_at`

// Upsert writes a wallet's current verdict, overwriting any prior one.
func (s *ClassificationStore) Upsert(ctx context.Context, c *domain.Classification) error {
	query := `
		INSERT INTO wallet_classifications (` + classificationColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (wallet) DO UPDATE SET
			cycle_id = EXCLUDED.cycle_id,
			kind = EXCLUDED.kind,
			persona = EXCLUDED.persona,
			follow_mode = EXCLUDED.follow_mode,
			exclusion = EXCLUDED.exclusion,
			metric = EXCLUDED.metric,
			threshold = EXCLUDED.threshold,
			classified_at = EXCLUDED.classified_at
	`

	_, err := s.pool.Exec(ctx, query,
		c.Wallet, c.CycleID, string(c.Kind), string(c.Persona), string(c.FollowMode),
		string(c.Exclusion), c.Metric, c.Threshold, c.ClassifiedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert classification: %w", err)
	}
	return nil
}

// Get retrieves a wallet's current verdict.
func (s *ClassificationStore) Get(ctx context.Context, wallet string) (*domain.Classification, error) {
	query := `
		SELECT ` + classificationColumns + `
		FROM wallet_classifications
		WHERE wallet = $1
	`

	row := s.pool.QueryRow(ctx, query, wallet)
	c, err := scanClassification(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get classification: %w", err)
	}
	return c, nil
}

// ListFollowable retrieves every wallet currently classified as a persona.
func (s *ClassificationStore) ListFollowable(ctx context.Context) ([]*domain.Classification, error) {
	return s.list(ctx, domain.KindPersona)
}

// ListByKind retrieves all verdicts of one kind.
func (s *ClassificationStore) ListByKind(ctx context.Context, kind domain.ClassificationKind) ([]*domain.Classification, error) {
	return s.list(ctx, kind)
}

func (s *ClassificationStore) list(ctx context.Context, kind domain.ClassificationKind) ([]*domain.Classification, error) {
	query := `
		SELECT ` + classificationColumns + `
		FROM wallet_classifications
		WHERE kind = $1
		ORDER BY wallet ASC
	`

	rows, err := s.pool.Query(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list classifications: %w", err)
	}
	defer rows.Close()

	return scanClassifications(rows)
}

func scanClassification(row pgx.Row) (*domain.Classification, error) {
	var (
		c          domain.Classification
		kind       string
		persona    string
		followMode string
		exclusion  string
	)
	err := row.Scan(
		&c.Wallet, &c.CycleID, &kind, &persona, &followMode,
		&exclusion, &c.Metric, &c.Threshold, &c.ClassifiedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Kind = domain.ClassificationKind(kind)
	c.Persona = domain.Persona(persona)
	c.FollowMode = domain.FollowMode(followMode)
	c.Exclusion = domain.ExclusionCode(exclusion)
	return &c, nil
}

func scanClassifications(rows pgx.Rows) ([]*domain.Classification, error) {
	var out []*domain.Classification
	for rows.Next() {
		c, err := scanClassification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan classification row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classification rows: %w", err)
	}
	return out, nil
}
