package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reviewpulse/backend/internal/models"
)

const sourceColumns = `id, brand_id, platform, external_profile_id, active,
	last_sync_at, last_sync_status, last_sync_error, next_scheduled_sync_at,
	created_at, updated_at`

// PgSourceStore is the Postgres implementation of SourceStore
type PgSourceStore struct {
	db *pgxpool.Pool
}

// NewSourceStore creates a Postgres-backed source store
func NewSourceStore(db *pgxpool.Pool) *PgSourceStore {
	return &PgSourceStore{db: db}
}

func scanSource(row pgx.Row) (*models.ReviewSource, error) {
	var s models.ReviewSource
	err := row.Scan(
		&s.ID, &s.BrandID, &s.Platform, &s.ExternalProfileID, &s.Active,
		&s.LastSyncAt, &s.LastSyncStatus, &s.LastSyncError, &s.NextScheduledAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan source: %w", err)
	}
	return &s, nil
}

// Create inserts a new review source
func (s *PgSourceStore) Create(ctx context.Context, source *models.ReviewSource) error {
	if source.ID == uuid.Nil {
		source.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO review_sources (id, brand_id, platform, external_profile_id, active, next_scheduled_sync_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING last_sync_status, created_at, updated_at
	`, source.ID, source.BrandID, source.Platform, source.ExternalProfileID,
		source.Active, source.NextScheduledAt,
	).Scan(&source.LastSyncStatus, &source.CreatedAt, &source.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create source: %w", err)
	}
	return nil
}

// GetByID retrieves a source by id
func (s *PgSourceStore) GetByID(ctx context.Context, id uuid.UUID) (*models.ReviewSource, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM review_sources WHERE id = $1`, id)
	return scanSource(row)
}

// ListByBrand retrieves all sources for a brand
func (s *PgSourceStore) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]models.ReviewSource, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+sourceColumns+` FROM review_sources WHERE brand_id = $1 ORDER BY created_at`, brandID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()
	return collectSources(rows)
}

// ListDue retrieves active sources whose scheduled sync time has passed
func (s *PgSourceStore) ListDue(ctx context.Context, now time.Time) ([]models.ReviewSource, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+sourceColumns+`
		FROM review_sources
		WHERE active AND next_scheduled_sync_at <= $1
		ORDER BY next_scheduled_sync_at
	`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due sources: %w", err)
	}
	defer rows.Close()
	return collectSources(rows)
}

func collectSources(rows pgx.Rows) ([]models.ReviewSource, error) {
	var sources []models.ReviewSource
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sources: %w", err)
	}
	return sources, nil
}

// SetActive activates or deactivates a source. Sources are never deleted on
// pause; deactivation just removes them from scheduling.
func (s *PgSourceStore) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := s.db.Exec(ctx, `
		UPDATE review_sources SET active = $1, updated_at = now() WHERE id = $2
	`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AdvanceSchedule moves the source's next scheduled sync time forward
func (s *PgSourceStore) AdvanceSchedule(ctx context.Context, id uuid.UUID, next time.Time) error {
	result, err := s.db.Exec(ctx, `
		UPDATE review_sources SET next_scheduled_sync_at = $1, updated_at = now() WHERE id = $2
	`, next, id)
	if err != nil {
		return fmt.Errorf("failed to advance schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordSyncResult stamps the outcome of the latest sync on the source
func (s *PgSourceStore) RecordSyncResult(ctx context.Context, id uuid.UUID, status models.SyncStatus, at time.Time, syncErr *string) error {
	result, err := s.db.Exec(ctx, `
		UPDATE review_sources
		SET last_sync_status = $1, last_sync_at = $2, last_sync_error = $3, updated_at = now()
		WHERE id = $4
	`, status, at, syncErr, id)
	if err != nil {
		return fmt.Errorf("failed to record sync result: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
