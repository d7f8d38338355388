package models

import (
	"time"

	"github.com/google/uuid"
)

// Sentiment is the classified tone of a review
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Valid reports whether s is a known sentiment label
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// Review is one customer review ingested from a platform.
// (SourceID, ExternalID) is the natural key: re-fetching the same review
// updates the existing row. Sentiment is nil when classification was
// unavailable for the batch the review arrived in.
type Review struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	SourceID           uuid.UUID  `json:"source_id" db:"source_id"`
	ExternalID         string     `json:"external_id" db:"external_id"`
	Rating             int        `json:"rating" db:"rating"`
	Content            string     `json:"content" db:"content"`
	Author             string     `json:"author" db:"author"`
	PublishedAt        time.Time  `json:"published_at" db:"published_at"`
	Sentiment          *Sentiment `json:"sentiment,omitempty" db:"sentiment"`
	SentimentCorrected bool       `json:"sentiment_corrected" db:"sentiment_corrected"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}
