package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reviewpulse/backend/internal/config"
	"github.com/reviewpulse/backend/internal/logging"
	"github.com/reviewpulse/backend/internal/models"
	"github.com/reviewpulse/backend/internal/monitoring"
	"github.com/reviewpulse/backend/internal/store"
)

// workItem is one queued job handed to the worker pool
type workItem struct {
	source *models.ReviewSource
	job    *models.SyncJob
}

// Scheduler drives the periodic sync cycle: it finds due sources, creates
// scheduled jobs and hands them to a bounded worker pool. Manual triggers
// enter through the same pool. Work for a single source is sequential by
// construction: only one active job per source can exist.
type Scheduler struct {
	cfg     *config.SyncConfig
	sources store.SourceStore
	jobs    store.JobStore
	orch    *Orchestrator
	limiter *ManualLimiter
	loc     *time.Location
	now     func() time.Time

	workCh  chan workItem
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	lastRun time.Time
	logger  zerolog.Logger
}

// NewScheduler creates a sync scheduler
func NewScheduler(
	cfg *config.SyncConfig,
	sources store.SourceStore,
	jobs store.JobStore,
	orch *Orchestrator,
	limiter *ManualLimiter,
) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		sources: sources,
		jobs:    jobs,
		orch:    orch,
		limiter: limiter,
		loc:     time.Local,
		now:     time.Now,
		workCh:  make(chan workItem, 256),
		stopCh:  make(chan struct{}),
		logger:  logging.NewLogger("scheduler"),
	}
}

// Start launches the worker pool and the scheduling loop. It first runs the
// reconciliation sweep so jobs orphaned by a crash reach a terminal state
// before new work is scheduled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.reconcileStale(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Stale job reconciliation failed")
	}

	for w := 0; w < s.cfg.Workers; w++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info().
		Int("workers", s.cfg.Workers).
		Dur("check_interval", s.cfg.CheckInterval).
		Int("sync_hour", s.cfg.SyncHour).
		Msg("Sync scheduler started")
	return nil
}

// Stop stops the scheduling loop and waits for in-flight jobs to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info().Msg("Sync scheduler stopped")
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// run is the main scheduler loop
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	s.Cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Cycle(ctx)
		}
	}
}

// worker drains the job queue
func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case item := <-s.workCh:
			s.orch.RunJob(ctx, item.source, item.job)
		}
	}
}

// Cycle runs one scheduling pass: every active source whose scheduled time
// has passed and that has no active job gets exactly one scheduled job, and
// its schedule advances to the next daily occurrence. Sources with an active
// job are skipped untouched and reconsidered next cycle.
func (s *Scheduler) Cycle(ctx context.Context) {
	now := s.now()
	monitoring.Get().SchedulerCycles.Inc()

	due, err := s.sources.ListDue(ctx, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list due sources")
		return
	}
	if len(due) == 0 {
		return
	}

	dispatched := 0
	for idx := range due {
		source := &due[idx]

		job, _, err := s.orch.CreateJob(ctx, source.ID, models.SyncJobTypeScheduled)
		if err != nil {
			if err == ErrActiveJobExists {
				// Leave the schedule untouched; the source is reconsidered
				// once its current job finishes.
				continue
			}
			s.logger.Error().Err(err).Str("source_id", source.ID.String()).Msg("Failed to create scheduled job")
			continue
		}

		if err := s.sources.AdvanceSchedule(ctx, source.ID, s.nextRun(now)); err != nil {
			s.logger.Error().Err(err).Str("source_id", source.ID.String()).Msg("Failed to advance schedule")
		}

		s.dispatch(ctx, workItem{source: source, job: job})
		dispatched++
	}

	s.mu.Lock()
	s.lastRun = now
	s.mu.Unlock()

	monitoring.Get().SourcesDispatched.Add(float64(dispatched))
	s.logger.Info().
		Int("due", len(due)).
		Int("dispatched", dispatched).
		Msg("Scheduler cycle completed")
}

// TriggerManual creates and dispatches a manual job for the source,
// bypassing the schedule. At most one manual trigger per source is accepted
// within the cooldown window; the second caller of two concurrent triggers
// gets ErrActiveJobExists from the storage constraint.
func (s *Scheduler) TriggerManual(ctx context.Context, sourceID uuid.UUID) (*models.SyncJob, error) {
	if s.limiter != nil {
		if err := s.limiter.Reserve(ctx, sourceID); err != nil {
			return nil, err
		}
	}

	job, source, err := s.orch.CreateJob(ctx, sourceID, models.SyncJobTypeManual)
	if err != nil {
		if s.limiter != nil {
			// The trigger produced no job; give the slot back.
			s.limiter.Release(ctx, sourceID)
		}
		return nil, err
	}

	s.dispatch(ctx, workItem{source: source, job: job})
	return job, nil
}

// dispatch enqueues a job for the worker pool
func (s *Scheduler) dispatch(ctx context.Context, item workItem) {
	select {
	case s.workCh <- item:
	case <-ctx.Done():
	case <-s.stopCh:
	}
}

func (s *Scheduler) nextRun(now time.Time) time.Time {
	return NextRun(now, s.cfg.SyncHour, s.loc)
}

// NextRun returns the next daily occurrence of the sync hour strictly
// after now
func NextRun(now time.Time, hour int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// reconcileStale marks RUNNING jobs older than the stale timeout as FAILED.
// This is the only crash-recovery mechanism: a process dying mid-sync leaves
// the job RUNNING until this sweep at the next startup.
func (s *Scheduler) reconcileStale(ctx context.Context) error {
	cutoff := s.now().Add(-s.cfg.StaleTimeout)

	stale, err := s.jobs.FailStale(ctx, cutoff, "interrupted: job exceeded stale timeout")
	if err != nil {
		return err
	}

	for i := range stale {
		job := &stale[i]
		msg := "interrupted: job exceeded stale timeout"
		if err := s.sources.RecordSyncResult(ctx, job.SourceID, models.SyncStatusFailed, s.now(), &msg); err != nil {
			s.logger.Error().Err(err).Str("source_id", job.SourceID.String()).Msg("Failed to record stale sync failure")
		}
		s.logger.Warn().
			Str("job_id", job.ID.String()).
			Str("source_id", job.SourceID.String()).
			Msg("Marked stale job as failed")
	}

	if len(stale) > 0 {
		s.logger.Info().Int("count", len(stale)).Msg("Stale job reconciliation completed")
	}
	return nil
}
