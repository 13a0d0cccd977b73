package stage

import (
	"context"
	"fmt"
	"strings"

	"herald/internal/news"
	"herald/pkg/llm"
	"herald/pkg/logging"
)

// skipSentinel is the model's signal that an article has no extractable
// news event.
const skipSentinel = "SKIP"

// Summarize condenses raw article text to the essential facts and a
// short event title. Runs first; articles the model marks SKIP are
// dropped before any further model spend.
type Summarize struct {
	gen    Generator
	model  string
	logger logging.Logger
}

func NewSummarize(gen Generator, model string, logger logging.Logger) *Summarize {
	return &Summarize{gen: gen, model: model, logger: logger}
}

func (s *Summarize) Name() string { return "summarize" }

type summaryResult struct {
	ArticleTitle string `json:"article_title"`
	ArticleText  string `json:"article_text"`
}

func (s *Summarize) Run(ctx context.Context, article *news.Article) (*news.Article, error) {
	input := truncate(article.RawText, maxSummarizeInput)

	var result summaryResult
	err := s.gen.CompleteJSON(ctx, llm.Request{
		Model:       s.model,
		System:      summarizeSystem,
		Input:       "## Article text:\n" + input,
		Temperature: 0.2,
		MaxTokens:   2000,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	title := strings.TrimSpace(result.ArticleTitle)
	text := strings.TrimSpace(result.ArticleText)
	if title == "" || text == "" || title == skipSentinel || text == skipSentinel {
		s.logger.WithFields(logging.Fields{
			"stage": s.Name(),
			"url":   article.URL,
		}).Info("Article skipped, no extractable news event")
		return nil, nil
	}

	out := *article
	out.Title = title
	out.Summary = text
	return &out, nil
}
