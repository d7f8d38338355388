package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/reviewpulse/backend/internal/cache"
	"github.com/reviewpulse/backend/internal/logging"
	"github.com/reviewpulse/backend/internal/models"
	"github.com/reviewpulse/backend/internal/store"
)

// SourceView is the dashboard payload for one review source
type SourceView struct {
	SourceID        uuid.UUID       `json:"source_id"`
	Platform        models.Platform `json:"platform"`
	TotalReviews    int             `json:"total_reviews"`
	AverageRating   decimal.Decimal `json:"average_rating"`
	PositiveCount   int             `json:"positive_count"`
	NegativeCount   int             `json:"negative_count"`
	NeutralCount    int             `json:"neutral_count"`
	PositivePercent decimal.Decimal `json:"positive_percent"`
	NegativePercent decimal.Decimal `json:"negative_percent"`
	NeutralPercent  decimal.Decimal `json:"neutral_percent"`
	LastSyncAt      *time.Time      `json:"last_sync_at,omitempty"`
	LastSyncStatus  models.SyncStatus `json:"last_sync_status"`
	RecalculatedAt  time.Time       `json:"recalculated_at"`
}

// BrandView is the dashboard payload aggregated over all of a brand's
// sources. The average is weighted by each source's review count.
type BrandView struct {
	BrandID         uuid.UUID       `json:"brand_id"`
	TotalReviews    int             `json:"total_reviews"`
	AverageRating   decimal.Decimal `json:"average_rating"`
	PositiveCount   int             `json:"positive_count"`
	NegativeCount   int             `json:"negative_count"`
	NeutralCount    int             `json:"neutral_count"`
	PositivePercent decimal.Decimal `json:"positive_percent"`
	NegativePercent decimal.Decimal `json:"negative_percent"`
	NeutralPercent  decimal.Decimal `json:"neutral_percent"`
	Sources         []SourceView    `json:"sources"`
}

// Service serves dashboard reads from precomputed aggregates with a
// read-through cache in front. Concurrent misses on the same key rebuild
// the view once.
type Service struct {
	sources    store.SourceStore
	aggregates store.AggregateStore
	cache      cache.Store
	sf         singleflight.Group
	logger     zerolog.Logger
}

// NewService creates a dashboard read service
func NewService(sources store.SourceStore, aggregates store.AggregateStore, cacheStore cache.Store) *Service {
	return &Service{
		sources:    sources,
		aggregates: aggregates,
		cache:      cacheStore,
		logger:     logging.NewLogger("dashboard"),
	}
}

// GetSourceDashboard returns the dashboard view for one source
func (s *Service) GetSourceDashboard(ctx context.Context, source *models.ReviewSource) (*SourceView, error) {
	key := cache.DashboardSourceKey(source.ID)
	if raw, ok := s.cache.Get(ctx, cache.ClassDashboard, key); ok {
		var view SourceView
		if err := json.Unmarshal([]byte(raw), &view); err == nil {
			return &view, nil
		}
		s.cache.Invalidate(ctx, key)
	}

	v, err, _ := s.sf.Do(key, func() (any, error) {
		view, err := s.buildSourceView(ctx, source)
		if err != nil {
			return nil, err
		}
		s.cacheView(ctx, key, view)
		return view, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SourceView), nil
}

// GetBrandDashboard returns the combined dashboard for all of a brand's
// sources, active and inactive alike
func (s *Service) GetBrandDashboard(ctx context.Context, brandID uuid.UUID) (*BrandView, error) {
	key := cache.DashboardBrandKey(brandID)
	if raw, ok := s.cache.Get(ctx, cache.ClassDashboard, key); ok {
		var view BrandView
		if err := json.Unmarshal([]byte(raw), &view); err == nil {
			return &view, nil
		}
		s.cache.Invalidate(ctx, key)
	}

	v, err, _ := s.sf.Do(key, func() (any, error) {
		return s.buildBrandView(ctx, brandID, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*BrandView), nil
}

func (s *Service) buildBrandView(ctx context.Context, brandID uuid.UUID, key string) (*BrandView, error) {
	srcs, err := s.sources.ListByBrand(ctx, brandID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	view := &BrandView{
		BrandID: brandID,
		Sources: make([]SourceView, 0, len(srcs)),
	}
	var ratingSum decimal.Decimal
	for i := range srcs {
		sv, err := s.buildSourceView(ctx, &srcs[i])
		if err != nil {
			return nil, err
		}
		view.Sources = append(view.Sources, *sv)
		view.TotalReviews += sv.TotalReviews
		view.PositiveCount += sv.PositiveCount
		view.NegativeCount += sv.NegativeCount
		view.NeutralCount += sv.NeutralCount
		ratingSum = ratingSum.Add(sv.AverageRating.Mul(decimal.NewFromInt(int64(sv.TotalReviews))))
	}

	if view.TotalReviews > 0 {
		total := decimal.NewFromInt(int64(view.TotalReviews))
		view.AverageRating = ratingSum.Div(total).Round(2)
		view.PositivePercent = percentOf(view.PositiveCount, total)
		view.NegativePercent = percentOf(view.NegativeCount, total)
		view.NeutralPercent = percentOf(view.NeutralCount, total)
	} else {
		view.AverageRating = decimal.Zero
		view.PositivePercent = decimal.Zero
		view.NegativePercent = decimal.Zero
		view.NeutralPercent = decimal.Zero
	}

	s.cacheView(ctx, key, view)
	return view, nil
}

// buildSourceView loads the source's aggregate. A source that has never been
// synced has no aggregate row and gets an all-zero view.
func (s *Service) buildSourceView(ctx context.Context, source *models.ReviewSource) (*SourceView, error) {
	agg, err := s.aggregates.GetBySource(ctx, source.ID)
	if err != nil {
		if err != store.ErrNotFound {
			return nil, fmt.Errorf("failed to load aggregate: %w", err)
		}
		agg = BuildAggregate(source.ID, &store.ReviewStats{}, time.Time{})
	}

	return &SourceView{
		SourceID:        source.ID,
		Platform:        source.Platform,
		TotalReviews:    agg.TotalReviews,
		AverageRating:   agg.AverageRating,
		PositiveCount:   agg.PositiveCount,
		NegativeCount:   agg.NegativeCount,
		NeutralCount:    agg.NeutralCount,
		PositivePercent: agg.PositivePercent,
		NegativePercent: agg.NegativePercent,
		NeutralPercent:  agg.NeutralPercent,
		LastSyncAt:      source.LastSyncAt,
		LastSyncStatus:  source.LastSyncStatus,
		RecalculatedAt:  agg.RecalculatedAt,
	}, nil
}

func (s *Service) cacheView(ctx context.Context, key string, view any) {
	data, err := json.Marshal(view)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to marshal dashboard view for cache")
		return
	}
	s.cache.Set(ctx, cache.ClassDashboard, key, string(data))
}
