package source

import (
	"context"
	"net/http"
	"time"

	"herald/internal/news"
)

// Source produces candidate articles for one ingestion cycle. Adapters
// must preserve the upstream emission order and never mutate shared
// state; per-item failures are handled internally so one bad entry does
// not abort the rest of the batch.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]news.Article, error)
}

// URLChecker answers whether a URL was already ingested. Sources use it
// to skip known articles before paying for full-text extraction.
type URLChecker interface {
	Exists(ctx context.Context, url string) (bool, error)
}

const (
	defaultMaxItems    = 5
	defaultHTTPTimeout = 30 * time.Second
	userAgent          = "herald/1.0 (+news pipeline)"
)

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}
