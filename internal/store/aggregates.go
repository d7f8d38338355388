package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reviewpulse/backend/internal/models"
)

const aggregateColumns = `source_id, total_reviews, average_rating,
	positive_count, negative_count, neutral_count,
	positive_percent, negative_percent, neutral_percent, recalculated_at`

// PgAggregateStore is the Postgres implementation of AggregateStore
type PgAggregateStore struct {
	db *pgxpool.Pool
}

// NewAggregateStore creates a Postgres-backed aggregate store
func NewAggregateStore(db *pgxpool.Pool) *PgAggregateStore {
	return &PgAggregateStore{db: db}
}

func scanAggregate(row pgx.Row) (*models.DashboardAggregate, error) {
	var a models.DashboardAggregate
	err := row.Scan(
		&a.SourceID, &a.TotalReviews, &a.AverageRating,
		&a.PositiveCount, &a.NegativeCount, &a.NeutralCount,
		&a.PositivePercent, &a.NegativePercent, &a.NeutralPercent, &a.RecalculatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan aggregate: %w", err)
	}
	return &a, nil
}

// Upsert writes the single aggregate row for a source
func (s *PgAggregateStore) Upsert(ctx context.Context, agg *models.DashboardAggregate) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO dashboard_aggregates (
			source_id, total_reviews, average_rating,
			positive_count, negative_count, neutral_count,
			positive_percent, negative_percent, neutral_percent, recalculated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (source_id) DO UPDATE SET
			total_reviews = EXCLUDED.total_reviews,
			average_rating = EXCLUDED.average_rating,
			positive_count = EXCLUDED.positive_count,
			negative_count = EXCLUDED.negative_count,
			neutral_count = EXCLUDED.neutral_count,
			positive_percent = EXCLUDED.positive_percent,
			negative_percent = EXCLUDED.negative_percent,
			neutral_percent = EXCLUDED.neutral_percent,
			recalculated_at = EXCLUDED.recalculated_at
	`, agg.SourceID, agg.TotalReviews, agg.AverageRating,
		agg.PositiveCount, agg.NegativeCount, agg.NeutralCount,
		agg.PositivePercent, agg.NegativePercent, agg.NeutralPercent, agg.RecalculatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert aggregate: %w", err)
	}
	return nil
}

// GetBySource retrieves the aggregate row for a source
func (s *PgAggregateStore) GetBySource(ctx context.Context, sourceID uuid.UUID) (*models.DashboardAggregate, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+aggregateColumns+` FROM dashboard_aggregates WHERE source_id = $1`, sourceID)
	return scanAggregate(row)
}

// ListByBrand retrieves the aggregates of all sources belonging to a brand
func (s *PgAggregateStore) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]models.DashboardAggregate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+aggregateColumns+`
		FROM dashboard_aggregates a
		JOIN review_sources rs ON rs.id = a.source_id
		WHERE rs.brand_id = $1
	`, brandID)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregates: %w", err)
	}
	defer rows.Close()

	var aggs []models.DashboardAggregate
	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, err
		}
		aggs = append(aggs, *agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating aggregates: %w", err)
	}
	return aggs, nil
}
