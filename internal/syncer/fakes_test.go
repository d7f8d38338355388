package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reviewpulse/backend/internal/models"
	"github.com/reviewpulse/backend/internal/platform"
	"github.com/reviewpulse/backend/internal/store"
)

// In-memory store implementations shared by the pipeline tests.

type fakeSourceStore struct {
	mu      sync.Mutex
	sources map[uuid.UUID]*models.ReviewSource
}

func newFakeSourceStore(sources ...*models.ReviewSource) *fakeSourceStore {
	s := &fakeSourceStore{sources: make(map[uuid.UUID]*models.ReviewSource)}
	for _, src := range sources {
		s.sources[src.ID] = src
	}
	return s
}

func (s *fakeSourceStore) Create(ctx context.Context, source *models.ReviewSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if source.ID == uuid.Nil {
		source.ID = uuid.New()
	}
	s.sources[source.ID] = source
	return nil
}

func (s *fakeSourceStore) GetByID(ctx context.Context, id uuid.UUID) (*models.ReviewSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *src
	return &cp, nil
}

func (s *fakeSourceStore) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]models.ReviewSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReviewSource
	for _, src := range s.sources {
		if src.BrandID == brandID {
			out = append(out, *src)
		}
	}
	return out, nil
}

func (s *fakeSourceStore) ListDue(ctx context.Context, now time.Time) ([]models.ReviewSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReviewSource
	for _, src := range s.sources {
		if src.Active && !src.NextScheduledAt.After(now) {
			out = append(out, *src)
		}
	}
	return out, nil
}

func (s *fakeSourceStore) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return store.ErrNotFound
	}
	src.Active = active
	return nil
}

func (s *fakeSourceStore) AdvanceSchedule(ctx context.Context, id uuid.UUID, next time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return store.ErrNotFound
	}
	src.NextScheduledAt = next
	return nil
}

func (s *fakeSourceStore) RecordSyncResult(ctx context.Context, id uuid.UUID, status models.SyncStatus, at time.Time, syncErr *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return store.ErrNotFound
	}
	src.LastSyncAt = &at
	src.LastSyncStatus = status
	src.LastSyncError = syncErr
	return nil
}

type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*models.SyncJob
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[uuid.UUID]*models.SyncJob)}
}

func (s *fakeJobStore) Create(ctx context.Context, sourceID uuid.UUID, jobType models.SyncJobType) (*models.SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.SourceID == sourceID && !j.Status.Terminal() {
			return nil, store.ErrActiveJobExists
		}
	}
	job := &models.SyncJob{
		ID:        uuid.New(),
		SourceID:  sourceID,
		Type:      jobType,
		Status:    models.SyncJobStatusQueued,
		CreatedAt: time.Now(),
	}
	s.jobs[job.ID] = job
	cp := *job
	return &cp, nil
}

func (s *fakeJobStore) GetByID(ctx context.Context, id uuid.UUID) (*models.SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *fakeJobStore) ListBySource(ctx context.Context, sourceID uuid.UUID, limit int) ([]models.SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SyncJob
	for _, j := range s.jobs {
		if j.SourceID == sourceID {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (s *fakeJobStore) MarkRunning(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if job.Status != models.SyncJobStatusQueued {
		return fmt.Errorf("job %s is %s, not queued", id, job.Status)
	}
	now := time.Now()
	job.Status = models.SyncJobStatusRunning
	job.StartedAt = &now
	return nil
}

func (s *fakeJobStore) MarkCompleted(ctx context.Context, id uuid.UUID, fetched, created, updated int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if job.Status != models.SyncJobStatusRunning {
		return fmt.Errorf("job %s is %s, not running", id, job.Status)
	}
	now := time.Now()
	job.Status = models.SyncJobStatusCompleted
	job.FetchedCount = fetched
	job.NewCount = created
	job.UpdatedCount = updated
	job.CompletedAt = &now
	return nil
}

func (s *fakeJobStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s is already %s", id, job.Status)
	}
	now := time.Now()
	job.Status = models.SyncJobStatusFailed
	job.ErrorMessage = &errMsg
	job.CompletedAt = &now
	return nil
}

func (s *fakeJobStore) FailStale(ctx context.Context, olderThan time.Time, errMsg string) ([]models.SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var failed []models.SyncJob
	for _, j := range s.jobs {
		if j.Status == models.SyncJobStatusRunning && j.StartedAt != nil && j.StartedAt.Before(olderThan) {
			now := time.Now()
			j.Status = models.SyncJobStatusFailed
			j.ErrorMessage = &errMsg
			j.CompletedAt = &now
			failed = append(failed, *j)
		}
	}
	return failed, nil
}

type reviewKey struct {
	sourceID   uuid.UUID
	externalID string
}

type fakeReviewStore struct {
	mu      sync.Mutex
	reviews map[reviewKey]*models.Review
	updates int
}

func newFakeReviewStore(reviews ...*models.Review) *fakeReviewStore {
	s := &fakeReviewStore{reviews: make(map[reviewKey]*models.Review)}
	for _, r := range reviews {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		s.reviews[reviewKey{r.SourceID, r.ExternalID}] = r
	}
	return s
}

func (s *fakeReviewStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reviews {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeReviewStore) GetByExternalID(ctx context.Context, sourceID uuid.UUID, externalID string) (*models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[reviewKey{sourceID, externalID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *fakeReviewStore) Create(ctx context.Context, review *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := reviewKey{review.SourceID, review.ExternalID}
	if _, ok := s.reviews[key]; ok {
		return store.ErrDuplicate
	}
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	cp := *review
	s.reviews[key] = &cp
	return nil
}

func (s *fakeReviewStore) Update(ctx context.Context, review *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := reviewKey{review.SourceID, review.ExternalID}
	if _, ok := s.reviews[key]; !ok {
		return store.ErrNotFound
	}
	cp := *review
	s.reviews[key] = &cp
	s.updates++
	return nil
}

func (s *fakeReviewStore) ListBySource(ctx context.Context, sourceID uuid.UUID, limit int) ([]models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Review
	for _, r := range s.reviews {
		if r.SourceID == sourceID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeReviewStore) CorrectSentiment(ctx context.Context, id uuid.UUID, sentiment models.Sentiment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reviews {
		if r.ID == id {
			sent := sentiment
			r.Sentiment = &sent
			r.SentimentCorrected = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *fakeReviewStore) Stats(ctx context.Context, sourceID uuid.UUID) (*store.ReviewStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats store.ReviewStats
	for _, r := range s.reviews {
		if r.SourceID != sourceID {
			continue
		}
		stats.Total++
		stats.RatingSum += int64(r.Rating)
		if r.Sentiment == nil {
			continue
		}
		switch *r.Sentiment {
		case models.SentimentPositive:
			stats.Positive++
		case models.SentimentNegative:
			stats.Negative++
		case models.SentimentNeutral:
			stats.Neutral++
		}
	}
	return &stats, nil
}

func (s *fakeReviewStore) get(sourceID uuid.UUID, externalID string) *models.Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reviews[reviewKey{sourceID, externalID}]
}

// fakeClassifier labels every review via fn, or positive when fn is nil
type fakeClassifier struct {
	mu         sync.Mutex
	batchMax   int
	fn         func(texts []string) ([]models.Sentiment, error)
	batchSizes []int
}

func (c *fakeClassifier) BatchMax() int {
	if c.batchMax <= 0 {
		return 20
	}
	return c.batchMax
}

func (c *fakeClassifier) Classify(ctx context.Context, texts []string) ([]models.Sentiment, error) {
	c.mu.Lock()
	c.batchSizes = append(c.batchSizes, len(texts))
	c.mu.Unlock()
	if c.fn != nil {
		return c.fn(texts)
	}
	out := make([]models.Sentiment, len(texts))
	for i := range out {
		out[i] = models.SentimentPositive
	}
	return out, nil
}

// fakeFetcher hands back canned reviews and records the since cursor
type fakeFetcher struct {
	platform  models.Platform
	raws      []platform.RawReview
	err       error
	lastSince *time.Time
	calls     int
}

func (f *fakeFetcher) Platform() models.Platform {
	return f.platform
}

func (f *fakeFetcher) Fetch(ctx context.Context, profileID string, since *time.Time) ([]platform.RawReview, error) {
	f.calls++
	f.lastSince = since
	if f.err != nil {
		return nil, f.err
	}
	return f.raws, nil
}

type fakeRecalc struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *fakeRecalc) Recalculate(ctx context.Context, source *models.ReviewSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func (r *fakeRecalc) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
