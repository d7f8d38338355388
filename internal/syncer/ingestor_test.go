package syncer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/reviewpulse/backend/internal/models"
	"github.com/reviewpulse/backend/internal/platform"
)

func testSource() *models.ReviewSource {
	return &models.ReviewSource{
		ID:       uuid.New(),
		BrandID:  uuid.New(),
		Platform: models.PlatformGoogle,
		Active:   true,
	}
}

func rawReview(externalID string, rating int, content string) platform.RawReview {
	return platform.RawReview{
		ExternalID:  externalID,
		Rating:      rating,
		Content:     content,
		Author:      "Reviewer",
		PublishedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func sentimentPtr(s models.Sentiment) *models.Sentiment {
	return &s
}

func TestIngestNewReviewsClassified(t *testing.T) {
	source := testSource()
	reviews := newFakeReviewStore()
	classifier := &fakeClassifier{fn: func(texts []string) ([]models.Sentiment, error) {
		return []models.Sentiment{
			models.SentimentPositive,
			models.SentimentNegative,
			models.SentimentNeutral,
		}, nil
	}}
	ing := NewIngestor(reviews, classifier)

	result, err := ing.Ingest(context.Background(), source, []platform.RawReview{
		rawReview("r1", 5, "great place"),
		rawReview("r2", 1, "terrible"),
		rawReview("r3", 3, "it was fine"),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 3, result.New)
	assert.Equal(t, 0, result.Updated)

	r1 := reviews.get(source.ID, "r1")
	require.NotNil(t, r1)
	assert.Equal(t, models.SentimentPositive, *r1.Sentiment)
	r2 := reviews.get(source.ID, "r2")
	assert.Equal(t, models.SentimentNegative, *r2.Sentiment)
	r3 := reviews.get(source.ID, "r3")
	assert.Equal(t, models.SentimentNeutral, *r3.Sentiment)
}

func TestIngestUnchangedReviewSkipped(t *testing.T) {
	source := testSource()
	raw := rawReview("r1", 4, "solid")
	reviews := newFakeReviewStore(&models.Review{
		SourceID:    source.ID,
		ExternalID:  raw.ExternalID,
		Rating:      raw.Rating,
		Content:     raw.Content,
		Author:      raw.Author,
		PublishedAt: raw.PublishedAt,
		Sentiment:   sentimentPtr(models.SentimentPositive),
	})
	classifier := &fakeClassifier{}
	ing := NewIngestor(reviews, classifier)

	result, err := ing.Ingest(context.Background(), source, []platform.RawReview{raw})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Fetched)
	assert.Equal(t, 0, result.New)
	assert.Equal(t, 0, result.Updated)
	assert.Empty(t, classifier.batchSizes, "unchanged reviews must not be classified")
	assert.Equal(t, 0, reviews.updates)
}

func TestIngestChangedReviewReclassified(t *testing.T) {
	source := testSource()
	reviews := newFakeReviewStore(&models.Review{
		SourceID:    source.ID,
		ExternalID:  "r1",
		Rating:      5,
		Content:     "loved it",
		Author:      "Reviewer",
		PublishedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Sentiment:   sentimentPtr(models.SentimentPositive),
	})
	classifier := &fakeClassifier{fn: func(texts []string) ([]models.Sentiment, error) {
		return []models.Sentiment{models.SentimentNegative}, nil
	}}
	ing := NewIngestor(reviews, classifier)

	result, err := ing.Ingest(context.Background(), source, []platform.RawReview{
		rawReview("r1", 1, "edited: actually awful"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.New)

	stored := reviews.get(source.ID, "r1")
	assert.Equal(t, 1, stored.Rating)
	assert.Equal(t, "edited: actually awful", stored.Content)
	assert.Equal(t, models.SentimentNegative, *stored.Sentiment)
}

func TestIngestCorrectedSentimentPreserved(t *testing.T) {
	source := testSource()
	reviews := newFakeReviewStore(&models.Review{
		SourceID:           source.ID,
		ExternalID:         "r1",
		Rating:             2,
		Content:            "sarcastic praise",
		Author:             "Reviewer",
		PublishedAt:        time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Sentiment:          sentimentPtr(models.SentimentNegative),
		SentimentCorrected: true,
	})
	classifier := &fakeClassifier{}
	ing := NewIngestor(reviews, classifier)

	result, err := ing.Ingest(context.Background(), source, []platform.RawReview{
		rawReview("r1", 5, "edited to be even more sarcastic"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Updated)
	assert.Empty(t, classifier.batchSizes, "corrected reviews must not be re-classified")

	stored := reviews.get(source.ID, "r1")
	assert.Equal(t, 5, stored.Rating)
	assert.Equal(t, "edited to be even more sarcastic", stored.Content)
	assert.Equal(t, models.SentimentNegative, *stored.Sentiment, "manual label must survive the update")
	assert.True(t, stored.SentimentCorrected)
}

func TestIngestClassifierFailureLeavesSentimentUnset(t *testing.T) {
	source := testSource()
	reviews := newFakeReviewStore()
	classifier := &fakeClassifier{fn: func(texts []string) ([]models.Sentiment, error) {
		return nil, errors.New("model unavailable")
	}}
	ing := NewIngestor(reviews, classifier)

	result, err := ing.Ingest(context.Background(), source, []platform.RawReview{
		rawReview("r1", 5, "great"),
		rawReview("r2", 2, "not great"),
	})
	require.NoError(t, err, "classification failure must not fail the ingestion")

	assert.Equal(t, 2, result.New)
	assert.Nil(t, reviews.get(source.ID, "r1").Sentiment)
	assert.Nil(t, reviews.get(source.ID, "r2").Sentiment)
}

func TestIngestDuplicateExternalIDsWithinFetch(t *testing.T) {
	// The same review appearing twice in one fetch: the second occurrence
	// sees the row created by the first and is treated as unchanged.
	source := testSource()
	reviews := newFakeReviewStore()
	ing := NewIngestor(reviews, &fakeClassifier{})

	raw := rawReview("r1", 4, "good")
	result, err := ing.Ingest(context.Background(), source, []platform.RawReview{raw})
	require.NoError(t, err)
	assert.Equal(t, 1, result.New)

	result, err = ing.Ingest(context.Background(), source, []platform.RawReview{raw, raw})
	require.NoError(t, err)
	assert.Equal(t, 0, result.New)
	assert.Equal(t, 0, result.Updated)
}

func TestIngestDuplicateExternalIDsNotYetStored(t *testing.T) {
	// Page overlap repeats a review the store has never seen. The second
	// occurrence must not reach Create and fail the job on the unique
	// constraint; exactly one row is created.
	source := testSource()
	reviews := newFakeReviewStore()
	ing := NewIngestor(reviews, &fakeClassifier{})

	raw := rawReview("dup", 5, "great")
	result, err := ing.Ingest(context.Background(), source, []platform.RawReview{raw, raw})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 1, result.New)
	assert.Equal(t, 0, result.Updated)

	stored, err := reviews.GetByExternalID(context.Background(), source.ID, "dup")
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Rating)
}

func TestIngestClassificationBatchBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 100).Draw(t, "reviews")
		batchMax := rapid.IntRange(1, 25).Draw(t, "batchMax")

		source := testSource()
		reviews := newFakeReviewStore()
		classifier := &fakeClassifier{batchMax: batchMax}
		ing := NewIngestor(reviews, classifier)

		raws := make([]platform.RawReview, n)
		for i := range raws {
			raws[i] = rawReview(fmt.Sprintf("r%d", i), 1+i%5, fmt.Sprintf("review %d", i))
		}

		result, err := ing.Ingest(context.Background(), source, raws)
		if err != nil {
			t.Fatalf("ingest failed: %v", err)
		}
		if result.New != n {
			t.Fatalf("expected %d new reviews, got %d", n, result.New)
		}

		total := 0
		for _, size := range classifier.batchSizes {
			if size > batchMax {
				t.Fatalf("batch of %d exceeds max %d", size, batchMax)
			}
			if size == 0 {
				t.Fatalf("classifier called with empty batch")
			}
			total += size
		}
		if total != n {
			t.Fatalf("classified %d texts, expected %d", total, n)
		}
	})
}
