package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reviewpulse/backend/internal/models"
)

const reviewColumns = `id, source_id, external_id, rating, content, author,
	published_at, sentiment, sentiment_corrected, created_at, updated_at`

// PgReviewStore is the Postgres implementation of ReviewStore
type PgReviewStore struct {
	db *pgxpool.Pool
}

// NewReviewStore creates a Postgres-backed review store
func NewReviewStore(db *pgxpool.Pool) *PgReviewStore {
	return &PgReviewStore{db: db}
}

func scanReview(row pgx.Row) (*models.Review, error) {
	var r models.Review
	err := row.Scan(
		&r.ID, &r.SourceID, &r.ExternalID, &r.Rating, &r.Content, &r.Author,
		&r.PublishedAt, &r.Sentiment, &r.SentimentCorrected, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan review: %w", err)
	}
	return &r, nil
}

// GetByID retrieves a review by primary key
func (s *PgReviewStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+reviewColumns+`
		FROM reviews
		WHERE id = $1
	`, id)
	return scanReview(row)
}

// GetByExternalID looks up a review by its natural key
func (s *PgReviewStore) GetByExternalID(ctx context.Context, sourceID uuid.UUID, externalID string) (*models.Review, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+reviewColumns+`
		FROM reviews
		WHERE source_id = $1 AND external_id = $2
	`, sourceID, externalID)
	return scanReview(row)
}

// Create inserts a newly ingested review
func (s *PgReviewStore) Create(ctx context.Context, review *models.Review) error {
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO reviews (id, source_id, external_id, rating, content, author, published_at, sentiment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, review.ID, review.SourceID, review.ExternalID, review.Rating,
		review.Content, review.Author, review.PublishedAt, review.Sentiment,
	).Scan(&review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an existing review
func (s *PgReviewStore) Update(ctx context.Context, review *models.Review) error {
	result, err := s.db.Exec(ctx, `
		UPDATE reviews
		SET rating = $1, content = $2, author = $3, published_at = $4,
		    sentiment = $5, updated_at = now()
		WHERE id = $6
	`, review.Rating, review.Content, review.Author, review.PublishedAt,
		review.Sentiment, review.ID)
	if err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBySource retrieves reviews for a source, newest first
func (s *PgReviewStore) ListBySource(ctx context.Context, sourceID uuid.UUID, limit int) ([]models.Review, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+reviewColumns+`
		FROM reviews
		WHERE source_id = $1
		ORDER BY published_at DESC
		LIMIT $2
	`, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, *review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}
	return reviews, nil
}

// Stats computes the raw counts for a source's aggregate in one query
func (s *PgReviewStore) Stats(ctx context.Context, sourceID uuid.UUID) (*ReviewStats, error) {
	var stats ReviewStats
	err := s.db.QueryRow(ctx, `
		SELECT
			COUNT(*) as total,
			COALESCE(SUM(rating), 0) as rating_sum,
			COUNT(*) FILTER (WHERE sentiment = 'positive') as positive,
			COUNT(*) FILTER (WHERE sentiment = 'negative') as negative,
			COUNT(*) FILTER (WHERE sentiment = 'neutral') as neutral
		FROM reviews
		WHERE source_id = $1
	`, sourceID).Scan(
		&stats.Total, &stats.RatingSum,
		&stats.Positive, &stats.Negative, &stats.Neutral,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute review stats: %w", err)
	}
	return &stats, nil
}

// CorrectSentiment applies a manual sentiment override. The corrected flag
// makes the label sticky: future syncs update content but not sentiment.
func (s *PgReviewStore) CorrectSentiment(ctx context.Context, id uuid.UUID, sentiment models.Sentiment) error {
	result, err := s.db.Exec(ctx, `
		UPDATE reviews
		SET sentiment = $1, sentiment_corrected = true, updated_at = now()
		WHERE id = $2
	`, sentiment, id)
	if err != nil {
		return fmt.Errorf("failed to correct sentiment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
