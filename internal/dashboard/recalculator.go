package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/reviewpulse/backend/internal/cache"
	"github.com/reviewpulse/backend/internal/logging"
	"github.com/reviewpulse/backend/internal/models"
	"github.com/reviewpulse/backend/internal/store"
)

var hundred = decimal.NewFromInt(100)

// Recalculator rebuilds a source's dashboard aggregate from the full review
// set and invalidates the cached dashboard views. It runs synchronously at
// the end of every sync job that ingested at least one new or updated review,
// and after a manual sentiment correction.
type Recalculator struct {
	reviews    store.ReviewStore
	aggregates store.AggregateStore
	cache      cache.Store
	now        func() time.Time
	logger     zerolog.Logger
}

// NewRecalculator creates an aggregate recalculator
func NewRecalculator(reviews store.ReviewStore, aggregates store.AggregateStore, cacheStore cache.Store) *Recalculator {
	return &Recalculator{
		reviews:    reviews,
		aggregates: aggregates,
		cache:      cacheStore,
		now:        time.Now,
		logger:     logging.NewLogger("recalculator"),
	}
}

// Recalculate recomputes the aggregate for the source and upserts it.
// Reviews with no sentiment still count toward the total and the average but
// toward none of the sentiment buckets, so the percentages of a source with
// unclassified reviews do not sum to 100.
func (r *Recalculator) Recalculate(ctx context.Context, source *models.ReviewSource) error {
	stats, err := r.reviews.Stats(ctx, source.ID)
	if err != nil {
		return fmt.Errorf("failed to load review stats: %w", err)
	}

	agg := BuildAggregate(source.ID, stats, r.now())
	if err := r.aggregates.Upsert(ctx, agg); err != nil {
		return fmt.Errorf("failed to upsert aggregate: %w", err)
	}

	r.cache.Invalidate(ctx,
		cache.DashboardSourceKey(source.ID),
		cache.DashboardBrandKey(source.BrandID),
	)

	r.logger.Debug().
		Str("source_id", source.ID.String()).
		Int("total_reviews", agg.TotalReviews).
		Str("average_rating", agg.AverageRating.String()).
		Msg("Aggregate recalculated")
	return nil
}

// BuildAggregate computes a dashboard aggregate from raw review stats.
// A source with zero reviews gets a zero average and zero percentages.
func BuildAggregate(sourceID uuid.UUID, stats *store.ReviewStats, at time.Time) *models.DashboardAggregate {
	agg := &models.DashboardAggregate{
		SourceID:       sourceID,
		TotalReviews:   stats.Total,
		PositiveCount:  stats.Positive,
		NegativeCount:  stats.Negative,
		NeutralCount:   stats.Neutral,
		RecalculatedAt: at,
	}

	if stats.Total == 0 {
		agg.AverageRating = decimal.Zero
		agg.PositivePercent = decimal.Zero
		agg.NegativePercent = decimal.Zero
		agg.NeutralPercent = decimal.Zero
		return agg
	}

	total := decimal.NewFromInt(int64(stats.Total))
	agg.AverageRating = decimal.NewFromInt(stats.RatingSum).Div(total).Round(2)
	agg.PositivePercent = percentOf(stats.Positive, total)
	agg.NegativePercent = percentOf(stats.Negative, total)
	agg.NeutralPercent = percentOf(stats.Neutral, total)
	return agg
}

// percentOf returns count/total as a percentage rounded to two decimals,
// half up
func percentOf(count int, total decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(count)).Mul(hundred).Div(total).Round(2)
}
