package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewpulse/backend/internal/cache"
	"github.com/reviewpulse/backend/internal/models"
	"github.com/reviewpulse/backend/internal/store"
)

type stubSources struct {
	store.SourceStore
	sources []models.ReviewSource
}

func (s *stubSources) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]models.ReviewSource, error) {
	return s.sources, nil
}

type multiAggregates struct {
	store.AggregateStore
	bySource map[uuid.UUID]*models.DashboardAggregate
}

func (s *multiAggregates) GetBySource(ctx context.Context, sourceID uuid.UUID) (*models.DashboardAggregate, error) {
	agg, ok := s.bySource[sourceID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *agg
	return &cp, nil
}

func TestGetSourceDashboardNeverSynced(t *testing.T) {
	source := &models.ReviewSource{
		ID:             uuid.New(),
		BrandID:        uuid.New(),
		Platform:       models.PlatformGoogle,
		LastSyncStatus: models.SyncStatusNever,
	}

	svc := NewService(&stubSources{}, &multiAggregates{bySource: map[uuid.UUID]*models.DashboardAggregate{}}, newMemCache())

	view, err := svc.GetSourceDashboard(context.Background(), source)
	require.NoError(t, err)
	assert.Equal(t, 0, view.TotalReviews)
	assert.True(t, view.AverageRating.IsZero())
	assert.Equal(t, models.SyncStatusNever, view.LastSyncStatus)
}

func TestGetSourceDashboardCached(t *testing.T) {
	source := &models.ReviewSource{ID: uuid.New(), BrandID: uuid.New(), Platform: models.PlatformGoogle}
	aggs := &multiAggregates{bySource: map[uuid.UUID]*models.DashboardAggregate{
		source.ID: BuildAggregate(source.ID, &store.ReviewStats{Total: 10, RatingSum: 40, Positive: 10}, time.Now()),
	}}
	cacheStore := newMemCache()
	svc := NewService(&stubSources{}, aggs, cacheStore)

	view, err := svc.GetSourceDashboard(context.Background(), source)
	require.NoError(t, err)
	assert.Equal(t, 10, view.TotalReviews)

	_, ok := cacheStore.Get(context.Background(), cache.ClassDashboard, cache.DashboardSourceKey(source.ID))
	assert.True(t, ok, "view must be cached after the first read")

	// A second read is served from cache even after the aggregate changes
	aggs.bySource[source.ID].TotalReviews = 99
	view, err = svc.GetSourceDashboard(context.Background(), source)
	require.NoError(t, err)
	assert.Equal(t, 10, view.TotalReviews)
}

func TestGetBrandDashboardWeightedAverage(t *testing.T) {
	brandID := uuid.New()
	a := models.ReviewSource{ID: uuid.New(), BrandID: brandID, Platform: models.PlatformGoogle}
	b := models.ReviewSource{ID: uuid.New(), BrandID: brandID, Platform: models.PlatformTrustpilot}

	aggs := &multiAggregates{bySource: map[uuid.UUID]*models.DashboardAggregate{
		// 10 reviews averaging 5.00, all positive
		a.ID: BuildAggregate(a.ID, &store.ReviewStats{Total: 10, RatingSum: 50, Positive: 10}, time.Now()),
		// 30 reviews averaging 3.00, all negative
		b.ID: BuildAggregate(b.ID, &store.ReviewStats{Total: 30, RatingSum: 90, Negative: 30}, time.Now()),
	}}

	svc := NewService(&stubSources{sources: []models.ReviewSource{a, b}}, aggs, newMemCache())

	view, err := svc.GetBrandDashboard(context.Background(), brandID)
	require.NoError(t, err)

	assert.Equal(t, 40, view.TotalReviews)
	// (10*5 + 30*3) / 40 = 3.5, weighted by review count
	assert.Equal(t, "3.50", view.AverageRating.StringFixed(2))
	assert.Equal(t, "25.00", view.PositivePercent.StringFixed(2))
	assert.Equal(t, "75.00", view.NegativePercent.StringFixed(2))
	assert.Len(t, view.Sources, 2)
}

func TestGetBrandDashboardNoSources(t *testing.T) {
	svc := NewService(&stubSources{}, &multiAggregates{bySource: map[uuid.UUID]*models.DashboardAggregate{}}, newMemCache())

	view, err := svc.GetBrandDashboard(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, view.TotalReviews)
	assert.True(t, view.AverageRating.IsZero())
	assert.Empty(t, view.Sources)
}
