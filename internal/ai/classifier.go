package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/reviewpulse/backend/internal/config"
	"github.com/reviewpulse/backend/internal/models"
	"github.com/reviewpulse/backend/internal/monitoring"
)

const classifierSystemPrompt = `You are a sentiment classifier for customer reviews.
You receive a JSON array of review texts. Respond with a JSON object of the form
{"labels": [...]} where labels[i] is the sentiment of the i-th review, one of
"positive", "negative" or "neutral". Return exactly one label per review and
nothing else.`

// Classifier assigns sentiment labels to batches of review texts.
// Batches passed to Classify must not exceed BatchMax.
type Classifier interface {
	BatchMax() int
	Classify(ctx context.Context, texts []string) ([]models.Sentiment, error)
}

// LLMClassifier classifies review sentiment via an OpenAI-compatible chat model
type LLMClassifier struct {
	model    llms.Model
	name     string
	batchMax int
}

// NewClassifier creates an LLM-backed sentiment classifier
func NewClassifier(cfg *config.AIConfig) (*LLMClassifier, error) {
	model, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.ClassifierModel),
		openai.WithResponseFormat(&openai.ResponseFormat{
			Type: "json_object",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier client: %w", err)
	}

	return &LLMClassifier{
		model:    model,
		name:     cfg.ClassifierModel,
		batchMax: cfg.ClassifierBatchMax,
	}, nil
}

// BatchMax returns the largest batch Classify accepts
func (c *LLMClassifier) BatchMax() int {
	return c.batchMax
}

// Classify returns one sentiment label per input text, in order
func (c *LLMClassifier) Classify(ctx context.Context, texts []string) ([]models.Sentiment, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > c.batchMax {
		return nil, fmt.Errorf("batch size %d exceeds limit %d", len(texts), c.batchMax)
	}

	payload, err := json.Marshal(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(classifierSystemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(string(payload))},
		},
	}

	start := time.Now()
	resp, err := c.model.GenerateContent(ctx, messages, llms.WithTemperature(0))
	if err != nil {
		monitoring.RecordClassifierBatch("error", time.Since(start))
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	monitoring.RecordClassifierBatch("ok", time.Since(start))

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("classifier returned no choices")
	}

	labels, err := parseLabels(resp.Choices[0].Content, len(texts))
	if err != nil {
		return nil, err
	}
	return labels, nil
}

func parseLabels(content string, want int) ([]models.Sentiment, error) {
	var out struct {
		Labels []string `json:"labels"`
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}
	if len(out.Labels) != want {
		return nil, fmt.Errorf("classifier returned %d labels for %d reviews", len(out.Labels), want)
	}

	labels := make([]models.Sentiment, len(out.Labels))
	for i, raw := range out.Labels {
		label := models.Sentiment(strings.ToLower(strings.TrimSpace(raw)))
		if !label.Valid() {
			return nil, fmt.Errorf("classifier returned unknown label %q", raw)
		}
		labels[i] = label
	}
	return labels, nil
}
