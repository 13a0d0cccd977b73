package stage

import (
	"context"

	"herald/internal/news"
	"herald/pkg/llm"
)

// Stage is one step of the article pipeline. Run returns the article to
// hand to the next stage, (nil, nil) to drop it silently, or an error
// when the stage faulted. Stages never mutate their input on the drop
// and error paths.
type Stage interface {
	Name() string
	Run(ctx context.Context, article *news.Article) (*news.Article, error)
}

// Generator is the model adapter the LLM-backed stages call. Satisfied
// by *llm.Client.
type Generator interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
	CompleteJSON(ctx context.Context, req llm.Request, out any) error
}

// maxSummarizeInput bounds how much raw article text goes into the
// summarizer prompt.
const maxSummarizeInput = 8000

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
