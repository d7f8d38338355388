package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reviewpulse/backend/internal/ai"
	"github.com/reviewpulse/backend/internal/cache"
	"github.com/reviewpulse/backend/internal/logging"
	"github.com/reviewpulse/backend/internal/models"
	"github.com/reviewpulse/backend/internal/monitoring"
	"github.com/reviewpulse/backend/internal/store"
)

// Summary service errors
var (
	// ErrSummaryPending means no usable summary exists yet and a
	// regeneration has been started
	ErrSummaryPending = errors.New("summary generation in progress")
	// ErrNoReviews means the source has no reviews to summarize
	ErrNoReviews = errors.New("source has no reviews to summarize")
)

// SummaryService serves the latest usable AI summary for a source and
// regenerates expired ones in the background. At most one generation per
// source runs at a time; concurrent requests for a pending summary all get
// ErrSummaryPending.
type SummaryService struct {
	reviews    store.ReviewStore
	summaries  store.SummaryStore
	summarizer ai.Summarizer
	cache      cache.Store
	maxReviews int
	validity   time.Duration
	now        func() time.Time

	mu      sync.Mutex
	pending map[uuid.UUID]struct{}
	logger  zerolog.Logger
}

// NewSummaryService creates an AI summary service
func NewSummaryService(
	reviews store.ReviewStore,
	summaries store.SummaryStore,
	summarizer ai.Summarizer,
	cacheStore cache.Store,
	maxReviews int,
	validity time.Duration,
) *SummaryService {
	if maxReviews <= 0 {
		maxReviews = 100
	}
	if validity <= 0 {
		validity = 24 * time.Hour
	}
	return &SummaryService{
		reviews:    reviews,
		summaries:  summaries,
		summarizer: summarizer,
		cache:      cacheStore,
		maxReviews: maxReviews,
		validity:   validity,
		now:        time.Now,
		pending:    make(map[uuid.UUID]struct{}),
		logger:     logging.NewLogger("summary"),
	}
}

// GetSummary returns the latest usable summary for the source. When none
// exists or the latest has expired it kicks off an async regeneration and
// returns ErrSummaryPending. A source with no reviews gets ErrNoReviews
// without a generation attempt.
func (s *SummaryService) GetSummary(ctx context.Context, sourceID uuid.UUID) (*models.AISummary, error) {
	key := cache.SummaryKey(sourceID)
	if raw, ok := s.cache.Get(ctx, cache.ClassSummary, key); ok {
		var cached models.AISummary
		if err := json.Unmarshal([]byte(raw), &cached); err == nil && cached.Usable(s.now()) {
			return &cached, nil
		}
		s.cache.Invalidate(ctx, key)
	}

	latest, err := s.summaries.LatestBySource(ctx, sourceID)
	if err != nil && err != store.ErrNotFound {
		return nil, fmt.Errorf("failed to load summary: %w", err)
	}
	if latest != nil && latest.Usable(s.now()) {
		s.cacheSummary(ctx, latest)
		return latest, nil
	}

	stats, err := s.reviews.Stats(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load review stats: %w", err)
	}
	if stats.Total == 0 {
		return nil, ErrNoReviews
	}

	s.startGeneration(sourceID)
	return nil, ErrSummaryPending
}

// startGeneration launches a background generation unless one is already
// running for the source
func (s *SummaryService) startGeneration(sourceID uuid.UUID) {
	s.mu.Lock()
	if _, running := s.pending[sourceID]; running {
		s.mu.Unlock()
		return
	}
	s.pending[sourceID] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.pending, sourceID)
			s.mu.Unlock()
		}()

		// Detached from the request context: the requester already got 202.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if err := s.generate(ctx, sourceID); err != nil {
			monitoring.RecordSummaryGenerated("failed")
			s.logger.Error().Err(err).Str("source_id", sourceID.String()).Msg("Summary generation failed")
			return
		}
		monitoring.RecordSummaryGenerated("completed")
	}()
}

// generate produces and stores a fresh summary from the source's most
// recent reviews
func (s *SummaryService) generate(ctx context.Context, sourceID uuid.UUID) error {
	reviews, err := s.reviews.ListBySource(ctx, sourceID, s.maxReviews)
	if err != nil {
		return fmt.Errorf("failed to list reviews: %w", err)
	}
	if len(reviews) == 0 {
		return ErrNoReviews
	}

	result, err := s.summarizer.Summarize(ctx, reviews)
	if err != nil {
		return fmt.Errorf("summarizer failed: %w", err)
	}

	now := s.now()
	summary := &models.AISummary{
		ID:          uuid.New(),
		SourceID:    sourceID,
		Summary:     result.Text,
		Model:       result.Model,
		TokenCount:  result.TokenCount,
		GeneratedAt: now,
		ValidUntil:  now.Add(s.validity),
	}
	if err := s.summaries.Insert(ctx, summary); err != nil {
		return fmt.Errorf("failed to store summary: %w", err)
	}
	s.cacheSummary(ctx, summary)

	s.logger.Info().
		Str("source_id", sourceID.String()).
		Str("model", summary.Model).
		Int("token_count", summary.TokenCount).
		Int("reviews", len(reviews)).
		Msg("Summary generated")
	return nil
}

func (s *SummaryService) cacheSummary(ctx context.Context, summary *models.AISummary) {
	data, err := json.Marshal(summary)
	if err != nil {
		s.logger.Warn().Err(err).Str("source_id", summary.SourceID.String()).Msg("Failed to marshal summary for cache")
		return
	}
	s.cache.Set(ctx, cache.ClassSummary, cache.SummaryKey(summary.SourceID), string(data))
}
