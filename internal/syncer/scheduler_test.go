package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewpulse/backend/internal/config"
	"github.com/reviewpulse/backend/internal/models"
	"github.com/reviewpulse/backend/internal/platform"
)

func testSyncConfig() *config.SyncConfig {
	return &config.SyncConfig{
		CheckInterval:  15 * time.Minute,
		SyncHour:       3,
		Workers:        2,
		StaleTimeout:   2 * time.Hour,
		ManualCooldown: 24 * time.Hour,
		ErrorMaxLen:    500,
	}
}

func newTestScheduler(sources *fakeSourceStore, jobs *fakeJobStore, fetcher *fakeFetcher, at time.Time) *Scheduler {
	reviews := newFakeReviewStore()
	ing := NewIngestor(reviews, &fakeClassifier{})
	orch := NewOrchestrator(sources, jobs, platform.NewRegistry(fetcher), ing, &fakeRecalc{}, 500)

	s := NewScheduler(testSyncConfig(), sources, jobs, orch, nil)
	s.loc = time.UTC
	s.now = func() time.Time { return at }
	return s
}

func TestNextRun(t *testing.T) {
	loc := time.UTC

	before := time.Date(2026, 3, 10, 1, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 10, 3, 0, 0, 0, loc), NextRun(before, 3, loc))

	after := time.Date(2026, 3, 10, 14, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 11, 3, 0, 0, 0, loc), NextRun(after, 3, loc))

	exactly := time.Date(2026, 3, 10, 3, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 11, 3, 0, 0, 0, loc), NextRun(exactly, 3, loc))
}

func TestCycleDispatchesDueSources(t *testing.T) {
	now := time.Date(2026, 3, 10, 3, 5, 0, 0, time.UTC)

	due := testSource()
	due.NextScheduledAt = now.Add(-5 * time.Minute)
	notDue := testSource()
	notDue.NextScheduledAt = now.Add(10 * time.Hour)

	sources := newFakeSourceStore(due, notDue)
	jobs := newFakeJobStore()
	s := newTestScheduler(sources, jobs, &fakeFetcher{platform: models.PlatformGoogle}, now)

	s.Cycle(context.Background())

	dueJobs, err := jobs.ListBySource(context.Background(), due.ID, 50)
	require.NoError(t, err)
	require.Len(t, dueJobs, 1)
	assert.Equal(t, models.SyncJobTypeScheduled, dueJobs[0].Type)

	notDueJobs, err := jobs.ListBySource(context.Background(), notDue.ID, 50)
	require.NoError(t, err)
	assert.Empty(t, notDueJobs)

	// Schedule advanced to the next daily window
	advanced, err := sources.GetByID(context.Background(), due.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC), advanced.NextScheduledAt)

	// One queued item waiting for the worker pool
	assert.Len(t, s.workCh, 1)
}

func TestCycleSkipsInactiveSources(t *testing.T) {
	now := time.Date(2026, 3, 10, 3, 5, 0, 0, time.UTC)

	src := testSource()
	src.Active = false
	src.NextScheduledAt = now.Add(-time.Hour)

	sources := newFakeSourceStore(src)
	jobs := newFakeJobStore()
	s := newTestScheduler(sources, jobs, &fakeFetcher{platform: models.PlatformGoogle}, now)

	s.Cycle(context.Background())

	created, err := jobs.ListBySource(context.Background(), src.ID, 50)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestCycleSkipsSourceWithActiveJob(t *testing.T) {
	now := time.Date(2026, 3, 10, 3, 5, 0, 0, time.UTC)

	src := testSource()
	scheduledAt := now.Add(-5 * time.Minute)
	src.NextScheduledAt = scheduledAt

	sources := newFakeSourceStore(src)
	jobs := newFakeJobStore()
	_, err := jobs.Create(context.Background(), src.ID, models.SyncJobTypeManual)
	require.NoError(t, err)

	s := newTestScheduler(sources, jobs, &fakeFetcher{platform: models.PlatformGoogle}, now)
	s.Cycle(context.Background())

	all, err := jobs.ListBySource(context.Background(), src.ID, 50)
	require.NoError(t, err)
	assert.Len(t, all, 1, "no second job while one is active")

	// Schedule untouched so the source is retried next cycle
	stored, err := sources.GetByID(context.Background(), src.ID)
	require.NoError(t, err)
	assert.True(t, stored.NextScheduledAt.Equal(scheduledAt))
}

func TestTriggerManual(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	src := testSource()
	src.NextScheduledAt = now.Add(10 * time.Hour)

	sources := newFakeSourceStore(src)
	jobs := newFakeJobStore()
	s := newTestScheduler(sources, jobs, &fakeFetcher{platform: models.PlatformGoogle}, now)

	job, err := s.TriggerManual(context.Background(), src.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncJobTypeManual, job.Type)
	assert.Equal(t, models.SyncJobStatusQueued, job.Status)
	assert.Len(t, s.workCh, 1)

	_, err = s.TriggerManual(context.Background(), src.ID)
	assert.ErrorIs(t, err, ErrActiveJobExists)
}

func TestReconcileStaleJobs(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	src := testSource()
	sources := newFakeSourceStore(src)
	jobs := newFakeJobStore()

	stale, err := jobs.Create(context.Background(), src.ID, models.SyncJobTypeScheduled)
	require.NoError(t, err)
	require.NoError(t, jobs.MarkRunning(context.Background(), stale.ID))
	// Backdate the start beyond the stale timeout
	jobs.mu.Lock()
	started := now.Add(-3 * time.Hour)
	jobs.jobs[stale.ID].StartedAt = &started
	jobs.mu.Unlock()

	s := newTestScheduler(sources, jobs, &fakeFetcher{platform: models.PlatformGoogle}, now)
	require.NoError(t, s.reconcileStale(context.Background()))

	stored, err := jobs.GetByID(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncJobStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "interrupted")

	updatedSource, err := sources.GetByID(context.Background(), src.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusFailed, updatedSource.LastSyncStatus)

	// A fresh RUNNING job survives the sweep
	fresh, err := jobs.Create(context.Background(), src.ID, models.SyncJobTypeScheduled)
	require.NoError(t, err)
	require.NoError(t, jobs.MarkRunning(context.Background(), fresh.ID))
	jobs.mu.Lock()
	recent := now.Add(-10 * time.Minute)
	jobs.jobs[fresh.ID].StartedAt = &recent
	jobs.mu.Unlock()

	require.NoError(t, s.reconcileStale(context.Background()))
	stored, err = jobs.GetByID(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncJobStatusRunning, stored.Status)
}

func TestSchedulerStartStop(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	src := testSource()
	src.NextScheduledAt = now.Add(-time.Minute)

	sources := newFakeSourceStore(src)
	jobs := newFakeJobStore()
	fetcher := &fakeFetcher{platform: models.PlatformGoogle}
	s := newTestScheduler(sources, jobs, fetcher, now)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start(context.Background()), "second start must fail")

	// The initial cycle created a job and a worker ran it
	require.Eventually(t, func() bool {
		all, err := jobs.ListBySource(context.Background(), src.ID, 50)
		if err != nil || len(all) != 1 {
			return false
		}
		return all[0].Status.Terminal()
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
}
