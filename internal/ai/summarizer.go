package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/reviewpulse/backend/internal/config"
	"github.com/reviewpulse/backend/internal/models"
)

const summarySystemPrompt = `You summarize customer reviews for a business owner.
Given a list of reviews with ratings, write a short plain-text summary (at most
150 words) of what customers praise and complain about, and the overall trend.
Do not use markdown or bullet points.`

// SummaryResult is the outcome of one summary generation
type SummaryResult struct {
	Text       string
	Model      string
	TokenCount int
}

// Summarizer generates dashboard summaries from a sample of reviews
type Summarizer interface {
	Summarize(ctx context.Context, reviews []models.Review) (*SummaryResult, error)
}

// LLMSummarizer generates summaries via an OpenAI-compatible chat model
type LLMSummarizer struct {
	model llms.Model
	name  string
}

// NewSummarizer creates an LLM-backed review summarizer
func NewSummarizer(cfg *config.AIConfig) (*LLMSummarizer, error) {
	model, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.SummaryModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create summarizer client: %w", err)
	}

	return &LLMSummarizer{model: model, name: cfg.SummaryModel}, nil
}

// Summarize produces a summary over the given reviews
func (s *LLMSummarizer) Summarize(ctx context.Context, reviews []models.Review) (*SummaryResult, error) {
	if len(reviews) == 0 {
		return nil, fmt.Errorf("no reviews to summarize")
	}

	var sb strings.Builder
	for _, r := range reviews {
		fmt.Fprintf(&sb, "[%d/5] %s\n", r.Rating, r.Content)
	}

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(summarySystemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(sb.String())},
		},
	}

	resp, err := s.model.GenerateContent(ctx, messages, llms.WithTemperature(0.3))
	if err != nil {
		return nil, fmt.Errorf("summary request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("summarizer returned no choices")
	}

	choice := resp.Choices[0]
	return &SummaryResult{
		Text:       strings.TrimSpace(choice.Content),
		Model:      s.name,
		TokenCount: totalTokens(choice.GenerationInfo),
	}, nil
}

func totalTokens(info map[string]any) int {
	if info == nil {
		return 0
	}
	if v, ok := info["TotalTokens"].(int); ok {
		return v
	}
	return 0
}
