package stage

import (
	"context"
	"fmt"

	"herald/internal/news"
	"herald/pkg/llm"
	"herald/pkg/logging"
)

// Relevance drops articles that don't belong on the channel: hardware
// announcements, funding rounds, tutorials, opinion pieces. The prompt
// leans toward keeping borderline articles.
type Relevance struct {
	gen    Generator
	model  string
	logger logging.Logger
}

func NewRelevance(gen Generator, model string, logger logging.Logger) *Relevance {
	return &Relevance{gen: gen, model: model, logger: logger}
}

func (r *Relevance) Name() string { return "relevance" }

type relevanceResult struct {
	IsRelevant bool   `json:"is_relevant"`
	Reason     string `json:"reason"`
}

func (r *Relevance) Run(ctx context.Context, article *news.Article) (*news.Article, error) {
	var result relevanceResult
	err := r.gen.CompleteJSON(ctx, llm.Request{
		Model:       r.model,
		System:      relevanceSystem,
		Input:       "## Article text:\n" + article.Summary,
		Temperature: 0.3,
		MaxTokens:   1500,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("relevance check: %w", err)
	}

	if !result.IsRelevant {
		r.logger.WithFields(logging.Fields{
			"stage":  r.Name(),
			"title":  article.Title,
			"reason": result.Reason,
		}).Info("Article not relevant")
		return nil, nil
	}

	out := *article
	out.RelevanceReason = result.Reason
	if out.RelevanceReason == "" {
		out.RelevanceReason = "No reason provided"
	}
	return &out, nil
}
