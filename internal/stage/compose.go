package stage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"herald/internal/news"
	"herald/pkg/llm"
	"herald/pkg/logging"
)

// minPostLength guards against truncated or refused completions; a real
// post is always well past this.
const minPostLength = 50

// Compose writes the final English post body in Telegram HTML. The
// current date goes into the system prompt so the model doesn't date
// events by its training cutoff.
type Compose struct {
	gen    Generator
	model  string
	logger logging.Logger
	now    func() time.Time
}

func NewCompose(gen Generator, model string, logger logging.Logger) *Compose {
	return &Compose{gen: gen, model: model, logger: logger, now: time.Now}
}

func (c *Compose) Name() string { return "compose" }

func (c *Compose) Run(ctx context.Context, article *news.Article) (*news.Article, error) {
	today := c.now().UTC().Format("2006-01-02")
	system := strings.ReplaceAll(composeSystem, "{today}", today)

	text, err := c.gen.Complete(ctx, llm.Request{
		Model:       c.model,
		System:      system,
		Input:       article.Summary,
		Temperature: 0.7,
		MaxTokens:   1500,
	})
	if err != nil {
		return nil, fmt.Errorf("compose post: %w", err)
	}

	text = strings.TrimSpace(text)
	if len(text) < minPostLength {
		return nil, fmt.Errorf("compose post: output too short (%d chars)", len(text))
	}

	c.logger.WithFields(logging.Fields{
		"stage": c.Name(),
		"title": article.Title,
		"chars": len(text),
	}).Info("Post composed")

	out := *article
	out.PostText = text
	return &out, nil
}
