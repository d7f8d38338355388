package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DashboardAggregate holds precomputed per-source review statistics.
// It is a cache over the reviews table and always derivable by recomputation.
type DashboardAggregate struct {
	SourceID        uuid.UUID       `json:"source_id" db:"source_id"`
	TotalReviews    int             `json:"total_reviews" db:"total_reviews"`
	AverageRating   decimal.Decimal `json:"average_rating" db:"average_rating"`
	PositiveCount   int             `json:"positive_count" db:"positive_count"`
	NegativeCount   int             `json:"negative_count" db:"negative_count"`
	NeutralCount    int             `json:"neutral_count" db:"neutral_count"`
	PositivePercent decimal.Decimal `json:"positive_percent" db:"positive_percent"`
	NegativePercent decimal.Decimal `json:"negative_percent" db:"negative_percent"`
	NeutralPercent  decimal.Decimal `json:"neutral_percent" db:"neutral_percent"`
	RecalculatedAt  time.Time       `json:"recalculated_at" db:"recalculated_at"`
}
