// Package store holds the repository layer: narrow interfaces per entity with
// pgx-backed implementations. Components depend on the interfaces so the
// pipeline is testable without a database.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/reviewpulse/backend/internal/models"
)

// Store errors
var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicate       = errors.New("record already exists")
	ErrActiveJobExists = errors.New("an active sync job already exists for this source")
)

// isUniqueViolation reports whether err is a Postgres unique constraint violation
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// SourceStore persists review sources
type SourceStore interface {
	Create(ctx context.Context, source *models.ReviewSource) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ReviewSource, error)
	ListByBrand(ctx context.Context, brandID uuid.UUID) ([]models.ReviewSource, error)
	ListDue(ctx context.Context, now time.Time) ([]models.ReviewSource, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	AdvanceSchedule(ctx context.Context, id uuid.UUID, next time.Time) error
	RecordSyncResult(ctx context.Context, id uuid.UUID, status models.SyncStatus, at time.Time, syncErr *string) error
}

// JobStore persists sync jobs. Create must be atomic with respect to the
// at-most-one-active-job-per-source invariant.
type JobStore interface {
	Create(ctx context.Context, sourceID uuid.UUID, jobType models.SyncJobType) (*models.SyncJob, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.SyncJob, error)
	ListBySource(ctx context.Context, sourceID uuid.UUID, limit int) ([]models.SyncJob, error)
	MarkRunning(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, fetched, created, updated int) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	FailStale(ctx context.Context, olderThan time.Time, errMsg string) ([]models.SyncJob, error)
}

// ReviewStats are the raw counts an aggregate is computed from
type ReviewStats struct {
	Total     int
	RatingSum int64
	Positive  int
	Negative  int
	Neutral   int
}

// ReviewStore persists ingested reviews
type ReviewStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
	GetByExternalID(ctx context.Context, sourceID uuid.UUID, externalID string) (*models.Review, error)
	Create(ctx context.Context, review *models.Review) error
	Update(ctx context.Context, review *models.Review) error
	ListBySource(ctx context.Context, sourceID uuid.UUID, limit int) ([]models.Review, error)
	CorrectSentiment(ctx context.Context, id uuid.UUID, sentiment models.Sentiment) error
	Stats(ctx context.Context, sourceID uuid.UUID) (*ReviewStats, error)
}

// AggregateStore persists precomputed dashboard statistics
type AggregateStore interface {
	Upsert(ctx context.Context, agg *models.DashboardAggregate) error
	GetBySource(ctx context.Context, sourceID uuid.UUID) (*models.DashboardAggregate, error)
	ListByBrand(ctx context.Context, brandID uuid.UUID) ([]models.DashboardAggregate, error)
}

// SummaryStore persists AI summaries, append-only
type SummaryStore interface {
	Insert(ctx context.Context, summary *models.AISummary) error
	LatestBySource(ctx context.Context, sourceID uuid.UUID) (*models.AISummary, error)
}

// BrandStore persists brands
type BrandStore interface {
	Create(ctx context.Context, brand *models.Brand) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Brand, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Brand, error)
}
