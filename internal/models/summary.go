package models

import (
	"time"

	"github.com/google/uuid"
)

// AISummary is a cached AI-generated text summary for a source.
// Rows are append-only; a regeneration supersedes older rows by recency.
type AISummary struct {
	ID          uuid.UUID `json:"id" db:"id"`
	SourceID    uuid.UUID `json:"source_id" db:"source_id"`
	Summary     string    `json:"summary" db:"summary"`
	Model       string    `json:"model" db:"model"`
	TokenCount  int       `json:"token_count" db:"token_count"`
	GeneratedAt time.Time `json:"generated_at" db:"generated_at"`
	ValidUntil  time.Time `json:"valid_until" db:"valid_until"`
}

// Usable reports whether the summary is still fresh at the given instant
func (s *AISummary) Usable(now time.Time) bool {
	return now.Before(s.ValidUntil)
}
