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

const jobColumns = `id, source_id, job_type, status, fetched_count, new_count,
	updated_count, error_message, created_at, started_at, completed_at`

// PgJobStore is the Postgres implementation of JobStore
type PgJobStore struct {
	db *pgxpool.Pool
}

// NewJobStore creates a Postgres-backed sync job store
func NewJobStore(db *pgxpool.Pool) *PgJobStore {
	return &PgJobStore{db: db}
}

func scanJob(row pgx.Row) (*models.SyncJob, error) {
	var j models.SyncJob
	err := row.Scan(
		&j.ID, &j.SourceID, &j.Type, &j.Status, &j.FetchedCount, &j.NewCount,
		&j.UpdatedCount, &j.ErrorMessage, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	return &j, nil
}

// Create inserts a new QUEUED job. Racing creations for the same source are
// resolved by the partial unique index on active jobs; the loser gets
// ErrActiveJobExists.
func (s *PgJobStore) Create(ctx context.Context, sourceID uuid.UUID, jobType models.SyncJobType) (*models.SyncJob, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO sync_jobs (id, source_id, job_type, status)
		VALUES ($1, $2, $3, $4)
		RETURNING `+jobColumns+`
	`, uuid.New(), sourceID, jobType, models.SyncJobStatusQueued)

	job, err := scanJob(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrActiveJobExists
		}
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

// GetByID retrieves a job by id
func (s *PgJobStore) GetByID(ctx context.Context, id uuid.UUID) (*models.SyncJob, error) {
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM sync_jobs WHERE id = $1`, id)
	return scanJob(row)
}

// ListBySource retrieves the most recent jobs for a source
func (s *PgJobStore) ListBySource(ctx context.Context, sourceID uuid.UUID, limit int) ([]models.SyncJob, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+jobColumns+`
		FROM sync_jobs
		WHERE source_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.SyncJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}
	return jobs, nil
}

// MarkRunning transitions a job from QUEUED to RUNNING. The status guard in
// the WHERE clause keeps transitions monotonic.
func (s *PgJobStore) MarkRunning(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.Exec(ctx, `
		UPDATE sync_jobs SET status = $1, started_at = now()
		WHERE id = $2 AND status = $3
	`, models.SyncJobStatusRunning, id, models.SyncJobStatusQueued)
	if err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkCompleted records counts and transitions a RUNNING job to COMPLETED
func (s *PgJobStore) MarkCompleted(ctx context.Context, id uuid.UUID, fetched, created, updated int) error {
	result, err := s.db.Exec(ctx, `
		UPDATE sync_jobs
		SET status = $1, fetched_count = $2, new_count = $3, updated_count = $4, completed_at = now()
		WHERE id = $5 AND status = $6
	`, models.SyncJobStatusCompleted, fetched, created, updated, id, models.SyncJobStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed transitions a non-terminal job to FAILED with an error message
func (s *PgJobStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	result, err := s.db.Exec(ctx, `
		UPDATE sync_jobs
		SET status = $1, error_message = $2, completed_at = now()
		WHERE id = $3 AND status IN ($4, $5)
	`, models.SyncJobStatusFailed, errMsg, id,
		models.SyncJobStatusQueued, models.SyncJobStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FailStale marks RUNNING jobs started before the cutoff as FAILED and
// returns them. Used by the startup reconciliation sweep after a crash.
func (s *PgJobStore) FailStale(ctx context.Context, olderThan time.Time, errMsg string) ([]models.SyncJob, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE sync_jobs
		SET status = $1, error_message = $2, completed_at = now()
		WHERE status = $3 AND started_at < $4
		RETURNING `+jobColumns+`
	`, models.SyncJobStatusFailed, errMsg, models.SyncJobStatusRunning, olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to fail stale jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.SyncJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stale jobs: %w", err)
	}
	return jobs, nil
}
