package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reviewpulse/backend/internal/logging"
	"github.com/reviewpulse/backend/internal/models"
	"github.com/reviewpulse/backend/internal/monitoring"
	"github.com/reviewpulse/backend/internal/platform"
	"github.com/reviewpulse/backend/internal/store"
)

// Orchestrator errors
var (
	ErrSourceNotFound  = errors.New("source not found")
	ErrSourceInactive  = errors.New("source is deactivated")
	ErrActiveJobExists = errors.New("an active sync job already exists for this source")
)

// Recalculator recomputes a source's dashboard aggregate after ingestion
type Recalculator interface {
	Recalculate(ctx context.Context, source *models.ReviewSource) error
}

// Orchestrator owns the sync job lifecycle: creation under the one-active-job
// invariant, dispatch to the platform fetch, ingestion, aggregation and the
// terminal status transition.
type Orchestrator struct {
	sources   store.SourceStore
	jobs      store.JobStore
	fetchers  *platform.Registry
	ingestor  *Ingestor
	recalc    Recalculator
	errMaxLen int
	logger    zerolog.Logger
}

// NewOrchestrator creates a sync job orchestrator
func NewOrchestrator(
	sources store.SourceStore,
	jobs store.JobStore,
	fetchers *platform.Registry,
	ingestor *Ingestor,
	recalc Recalculator,
	errMaxLen int,
) *Orchestrator {
	if errMaxLen <= 0 {
		errMaxLen = 500
	}
	return &Orchestrator{
		sources:   sources,
		jobs:      jobs,
		fetchers:  fetchers,
		ingestor:  ingestor,
		recalc:    recalc,
		errMaxLen: errMaxLen,
		logger:    logging.NewLogger("orchestrator"),
	}
}

// CreateJob persists a new QUEUED job for the source. Fails with
// ErrActiveJobExists when a QUEUED or RUNNING job already exists; the check
// is atomic at the storage layer, so concurrent triggers yield exactly one job.
func (o *Orchestrator) CreateJob(ctx context.Context, sourceID uuid.UUID, jobType models.SyncJobType) (*models.SyncJob, *models.ReviewSource, error) {
	source, err := o.sources.GetByID(ctx, sourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrSourceNotFound
		}
		return nil, nil, fmt.Errorf("failed to load source: %w", err)
	}
	if !source.Active {
		return nil, nil, ErrSourceInactive
	}

	job, err := o.jobs.Create(ctx, sourceID, jobType)
	if err != nil {
		if errors.Is(err, store.ErrActiveJobExists) {
			return nil, nil, ErrActiveJobExists
		}
		return nil, nil, fmt.Errorf("failed to create job: %w", err)
	}

	o.logger.Info().
		Str("job_id", job.ID.String()).
		Str("source_id", sourceID.String()).
		Str("type", string(jobType)).
		Msg("Sync job queued")

	return job, source, nil
}

// RunJob executes a queued job to its terminal state. Every failure mode
// (fetch, ingestion, aggregation, persistence) ends in exactly one FAILED
// transition; nothing retries within this invocation.
func (o *Orchestrator) RunJob(ctx context.Context, source *models.ReviewSource, job *models.SyncJob) {
	start := time.Now()

	monitoring.Get().SyncJobsActive.Inc()
	defer monitoring.Get().SyncJobsActive.Dec()

	if err := o.jobs.MarkRunning(ctx, job.ID); err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID.String()).Msg("Failed to start job")
		return
	}

	result, err := o.execute(ctx, source)
	if err != nil {
		o.failJob(ctx, source, job, err)
		monitoring.RecordSyncJob(string(source.Platform), string(job.Type), "failed", time.Since(start))
		logging.LogSyncJob(job.ID.String(), source.ID.String(), string(source.Platform), "failed", 0, 0, 0, time.Since(start))
		return
	}

	if err := o.jobs.MarkCompleted(ctx, job.ID, result.Fetched, result.New, result.Updated); err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID.String()).Msg("Failed to complete job")
		return
	}

	now := time.Now()
	if err := o.sources.RecordSyncResult(ctx, source.ID, models.SyncStatusCompleted, now, nil); err != nil {
		o.logger.Error().Err(err).Str("source_id", source.ID.String()).Msg("Failed to record sync result")
	}

	monitoring.RecordSyncJob(string(source.Platform), string(job.Type), "completed", time.Since(start))
	logging.LogSyncJob(job.ID.String(), source.ID.String(), string(source.Platform), "completed",
		result.Fetched, result.New, result.Updated, time.Since(start))
}

// execute runs fetch, ingest and aggregate recalculation for a source
func (o *Orchestrator) execute(ctx context.Context, source *models.ReviewSource) (*IngestResult, error) {
	fetcher, err := o.fetchers.Fetcher(source.Platform)
	if err != nil {
		return nil, err
	}

	raws, err := fetcher.Fetch(ctx, source.ExternalProfileID, source.LastSyncAt)
	if err != nil {
		return nil, err
	}

	result, err := o.ingestor.Ingest(ctx, source, raws)
	if err != nil {
		return nil, err
	}

	if err := o.recalc.Recalculate(ctx, source); err != nil {
		return nil, fmt.Errorf("failed to recalculate aggregate: %w", err)
	}

	return result, nil
}

// failJob records the terminal FAILED state on the job and the source
func (o *Orchestrator) failJob(ctx context.Context, source *models.ReviewSource, job *models.SyncJob, cause error) {
	msg := truncate(cause.Error(), o.errMaxLen)

	if err := o.jobs.MarkFailed(ctx, job.ID, msg); err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID.String()).Msg("Failed to mark job failed")
	}
	if err := o.sources.RecordSyncResult(ctx, source.ID, models.SyncStatusFailed, time.Now(), &msg); err != nil {
		o.logger.Error().Err(err).Str("source_id", source.ID.String()).Msg("Failed to record sync failure")
	}

	o.logger.Warn().
		Str("job_id", job.ID.String()).
		Str("source_id", source.ID.String()).
		Str("platform", string(source.Platform)).
		Str("error_kind", string(platform.KindOf(cause))).
		Err(cause).
		Msg("Sync job failed")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
