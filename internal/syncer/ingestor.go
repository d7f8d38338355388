package syncer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/reviewpulse/backend/internal/ai"
	"github.com/reviewpulse/backend/internal/logging"
	"github.com/reviewpulse/backend/internal/models"
	"github.com/reviewpulse/backend/internal/monitoring"
	"github.com/reviewpulse/backend/internal/platform"
	"github.com/reviewpulse/backend/internal/store"
)

// IngestResult holds the counts recorded on the sync job
type IngestResult struct {
	Fetched int `json:"fetched"`
	New     int `json:"new"`
	Updated int `json:"updated"`
}

// Ingestor deduplicates raw platform reviews against stored ones, classifies
// sentiment and upserts review rows
type Ingestor struct {
	reviews    store.ReviewStore
	classifier ai.Classifier
	logger     zerolog.Logger
}

// NewIngestor creates a review ingestor
func NewIngestor(reviews store.ReviewStore, classifier ai.Classifier) *Ingestor {
	return &Ingestor{
		reviews:    reviews,
		classifier: classifier,
		logger:     logging.NewLogger("ingestor"),
	}
}

// pending is a raw review on its way into the database, with its
// classification slot
type pending struct {
	raw       platform.RawReview
	existing  *models.Review // nil for new reviews
	sentiment *models.Sentiment
}

// Ingest processes raw reviews for a source and returns the aggregate counts.
// Classification failures degrade to unset sentiment; persistence failures
// abort the ingestion.
func (i *Ingestor) Ingest(ctx context.Context, source *models.ReviewSource, raws []platform.RawReview) (*IngestResult, error) {
	result := &IngestResult{Fetched: len(raws)}

	var toClassify []pending
	var corrected []pending
	unchanged := 0

	// Page overlap in the paginated fetch can repeat an external ID within
	// one batch; only the first occurrence is processed.
	seen := make(map[string]struct{}, len(raws))

	for _, raw := range raws {
		if _, dup := seen[raw.ExternalID]; dup {
			unchanged++
			continue
		}
		seen[raw.ExternalID] = struct{}{}

		existing, err := i.reviews.GetByExternalID(ctx, source.ID, raw.ExternalID)
		if err != nil {
			if err != store.ErrNotFound {
				return nil, fmt.Errorf("failed to look up review %q: %w", raw.ExternalID, err)
			}
			toClassify = append(toClassify, pending{raw: raw})
			continue
		}

		if !materiallyChanged(existing, raw) {
			unchanged++
			continue
		}

		if existing.SentimentCorrected {
			// A human label outranks the classifier: update the fields,
			// keep the sentiment.
			corrected = append(corrected, pending{raw: raw, existing: existing})
			continue
		}

		toClassify = append(toClassify, pending{raw: raw, existing: existing})
	}

	i.classifyAll(ctx, source, toClassify)

	for idx := range toClassify {
		p := &toClassify[idx]
		if p.existing == nil {
			review := &models.Review{
				SourceID:    source.ID,
				ExternalID:  p.raw.ExternalID,
				Rating:      p.raw.Rating,
				Content:     p.raw.Content,
				Author:      p.raw.Author,
				PublishedAt: p.raw.PublishedAt,
				Sentiment:   p.sentiment,
			}
			if err := i.reviews.Create(ctx, review); err != nil {
				return nil, fmt.Errorf("failed to create review %q: %w", p.raw.ExternalID, err)
			}
			result.New++
			continue
		}

		applyRaw(p.existing, p.raw)
		p.existing.Sentiment = p.sentiment
		if err := i.reviews.Update(ctx, p.existing); err != nil {
			return nil, fmt.Errorf("failed to update review %q: %w", p.raw.ExternalID, err)
		}
		result.Updated++
	}

	for idx := range corrected {
		p := &corrected[idx]
		applyRaw(p.existing, p.raw)
		if err := i.reviews.Update(ctx, p.existing); err != nil {
			return nil, fmt.Errorf("failed to update review %q: %w", p.raw.ExternalID, err)
		}
		result.Updated++
	}

	monitoring.RecordReviewsIngested(string(source.Platform), result.New, result.Updated, unchanged)

	return result, nil
}

// classifyAll assigns sentiment to the pending reviews in bounded batches.
// A failed batch leaves its reviews' sentiment unset.
func (i *Ingestor) classifyAll(ctx context.Context, source *models.ReviewSource, items []pending) {
	batchMax := i.classifier.BatchMax()

	for start := 0; start < len(items); start += batchMax {
		end := start + batchMax
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		texts := make([]string, len(batch))
		for j, p := range batch {
			texts[j] = p.raw.Content
		}

		labels, err := i.classifier.Classify(ctx, texts)
		if err != nil {
			i.logger.Warn().
				Err(err).
				Str("source_id", source.ID.String()).
				Int("batch_size", len(batch)).
				Msg("Classification batch failed, leaving sentiment unset")
			continue
		}

		for j := range batch {
			label := labels[j]
			batch[j].sentiment = &label
		}
	}
}

// materiallyChanged reports whether a re-fetched review differs from the
// stored one in the fields a sync is allowed to touch
func materiallyChanged(existing *models.Review, raw platform.RawReview) bool {
	return existing.Rating != raw.Rating ||
		existing.Content != raw.Content ||
		!existing.PublishedAt.Equal(raw.PublishedAt)
}

func applyRaw(review *models.Review, raw platform.RawReview) {
	review.Rating = raw.Rating
	review.Content = raw.Content
	review.Author = raw.Author
	review.PublishedAt = raw.PublishedAt
}
