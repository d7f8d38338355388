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

// PgSummaryStore is the Postgres implementation of SummaryStore
type PgSummaryStore struct {
	db *pgxpool.Pool
}

// NewSummaryStore creates a Postgres-backed AI summary store
func NewSummaryStore(db *pgxpool.Pool) *PgSummaryStore {
	return &PgSummaryStore{db: db}
}

// Insert appends a new summary row. Rows are never mutated; the newest row
// for a source supersedes older ones.
func (s *PgSummaryStore) Insert(ctx context.Context, summary *models.AISummary) error {
	if summary.ID == uuid.Nil {
		summary.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO ai_summaries (id, source_id, summary, model, token_count, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING generated_at
	`, summary.ID, summary.SourceID, summary.Summary, summary.Model,
		summary.TokenCount, summary.ValidUntil,
	).Scan(&summary.GeneratedAt)
	if err != nil {
		return fmt.Errorf("failed to insert summary: %w", err)
	}
	return nil
}

// LatestBySource retrieves the most recent summary for a source
func (s *PgSummaryStore) LatestBySource(ctx context.Context, sourceID uuid.UUID) (*models.AISummary, error) {
	var sm models.AISummary
	err := s.db.QueryRow(ctx, `
		SELECT id, source_id, summary, model, token_count, generated_at, valid_until
		FROM ai_summaries
		WHERE source_id = $1
		ORDER BY generated_at DESC
		LIMIT 1
	`, sourceID).Scan(
		&sm.ID, &sm.SourceID, &sm.Summary, &sm.Model,
		&sm.TokenCount, &sm.GeneratedAt, &sm.ValidUntil,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	return &sm, nil
}
