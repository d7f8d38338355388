package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewpulse/backend/internal/ai"
	"github.com/reviewpulse/backend/internal/models"
	"github.com/reviewpulse/backend/internal/store"
)

type stubSummaries struct {
	mu     sync.Mutex
	latest *models.AISummary
}

func (s *stubSummaries) Insert(ctx context.Context, summary *models.AISummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *summary
	s.latest = &cp
	return nil
}

func (s *stubSummaries) LatestBySource(ctx context.Context, sourceID uuid.UUID) (*models.AISummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil || s.latest.SourceID != sourceID {
		return nil, store.ErrNotFound
	}
	cp := *s.latest
	return &cp, nil
}

type stubSummaryReviews struct {
	store.ReviewStore
	reviews []models.Review
}

func (s *stubSummaryReviews) Stats(ctx context.Context, sourceID uuid.UUID) (*store.ReviewStats, error) {
	return &store.ReviewStats{Total: len(s.reviews)}, nil
}

func (s *stubSummaryReviews) ListBySource(ctx context.Context, sourceID uuid.UUID, limit int) ([]models.Review, error) {
	if limit < len(s.reviews) {
		return s.reviews[:limit], nil
	}
	return s.reviews, nil
}

type stubSummarizer struct {
	mu     sync.Mutex
	result *ai.SummaryResult
	err    error
	calls  int
}

func (s *stubSummarizer) Summarize(ctx context.Context, reviews []models.Review) (*ai.SummaryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubSummarizer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func someReviews(n int) []models.Review {
	out := make([]models.Review, n)
	for i := range out {
		out[i] = models.Review{
			ID:      uuid.New(),
			Rating:  4,
			Content: "nice",
		}
	}
	return out
}

func TestGetSummaryFreshReturned(t *testing.T) {
	sourceID := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	summaries := &stubSummaries{latest: &models.AISummary{
		ID:          uuid.New(),
		SourceID:    sourceID,
		Summary:     "customers love the coffee",
		GeneratedAt: now.Add(-time.Hour),
		ValidUntil:  now.Add(23 * time.Hour),
	}}
	summarizer := &stubSummarizer{}

	svc := NewSummaryService(&stubSummaryReviews{reviews: someReviews(5)}, summaries, summarizer, newMemCache(), 100, 24*time.Hour)
	svc.now = func() time.Time { return now }

	got, err := svc.GetSummary(context.Background(), sourceID)
	require.NoError(t, err)
	assert.Equal(t, "customers love the coffee", got.Summary)
	assert.Equal(t, 0, summarizer.callCount(), "fresh summary must not trigger generation")
}

func TestGetSummaryExpiredRegenerates(t *testing.T) {
	sourceID := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	summaries := &stubSummaries{latest: &models.AISummary{
		ID:         uuid.New(),
		SourceID:   sourceID,
		Summary:    "old take",
		ValidUntil: now.Add(-time.Minute),
	}}
	summarizer := &stubSummarizer{result: &ai.SummaryResult{
		Text:       "fresh take",
		Model:      "gpt-4o-mini",
		TokenCount: 120,
	}}

	svc := NewSummaryService(&stubSummaryReviews{reviews: someReviews(5)}, summaries, summarizer, newMemCache(), 100, 24*time.Hour)
	svc.now = func() time.Time { return now }

	_, err := svc.GetSummary(context.Background(), sourceID)
	assert.ErrorIs(t, err, ErrSummaryPending)

	// Background generation replaces the expired summary
	require.Eventually(t, func() bool {
		latest, err := summaries.LatestBySource(context.Background(), sourceID)
		return err == nil && latest.Summary == "fresh take"
	}, 2*time.Second, 10*time.Millisecond)

	latest, err := summaries.LatestBySource(context.Background(), sourceID)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", latest.Model)
	assert.Equal(t, 120, latest.TokenCount)
	assert.True(t, latest.ValidUntil.Equal(now.Add(24*time.Hour)))

	// Now the summary is usable and served without another generation
	calls := summarizer.callCount()
	got, err := svc.GetSummary(context.Background(), sourceID)
	require.NoError(t, err)
	assert.Equal(t, "fresh take", got.Summary)
	assert.Equal(t, calls, summarizer.callCount())
}

func TestGetSummaryNoReviews(t *testing.T) {
	sourceID := uuid.New()
	summarizer := &stubSummarizer{}

	svc := NewSummaryService(&stubSummaryReviews{}, &stubSummaries{}, summarizer, newMemCache(), 100, 24*time.Hour)

	_, err := svc.GetSummary(context.Background(), sourceID)
	assert.ErrorIs(t, err, ErrNoReviews)
	assert.Equal(t, 0, summarizer.callCount())
}

func TestGetSummaryGenerationFailure(t *testing.T) {
	sourceID := uuid.New()
	summarizer := &stubSummarizer{err: errors.New("model unavailable")}

	svc := NewSummaryService(&stubSummaryReviews{reviews: someReviews(3)}, &stubSummaries{}, summarizer, newMemCache(), 100, 24*time.Hour)

	_, err := svc.GetSummary(context.Background(), sourceID)
	assert.ErrorIs(t, err, ErrSummaryPending)

	require.Eventually(t, func() bool {
		return summarizer.callCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Still pending on the next poll; no summary was stored
	_, err = svc.GetSummary(context.Background(), sourceID)
	assert.ErrorIs(t, err, ErrSummaryPending)
}
