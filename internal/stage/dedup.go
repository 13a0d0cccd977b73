package stage

import (
	"context"
	"fmt"
	"strings"

	"herald/internal/news"
	"herald/pkg/cache"
	"herald/pkg/llm"
	"herald/pkg/logging"
)

// recentPostsKey is the single cache key for the duplicate-comparison
// window; the window is global, not per-article.
const recentPostsKey = "recent-posts"

// DedupStore is the slice of the article store the duplicate filter
// needs.
type DedupStore interface {
	Exists(ctx context.Context, url string) (bool, error)
	QueryRecent(ctx context.Context, windowDays int, excludeCategory string) ([]news.RecentPost, error)
}

// DuplicateFilter drops articles already covered. Layer 1 is the
// authoritative URL check; layer 2 asks the model whether the article
// reports the same event as any recent post. A missed duplicate only
// costs reviewer attention, a false drop loses a story, so every
// adapter failure fails open.
type DuplicateFilter struct {
	store      DedupStore
	gen        Generator
	model      string
	windowDays int
	recent     *cache.Cache
	logger     logging.Logger
}

func NewDuplicateFilter(store DedupStore, gen Generator, model string, windowDays int, recent *cache.Cache, logger logging.Logger) *DuplicateFilter {
	if windowDays <= 0 {
		windowDays = 3
	}
	return &DuplicateFilter{
		store:      store,
		gen:        gen,
		model:      model,
		windowDays: windowDays,
		recent:     recent,
		logger:     logger,
	}
}

func (d *DuplicateFilter) Name() string { return "dedup" }

type dedupResult struct {
	IsDuplicate bool   `json:"is_duplicate"`
	DuplicateOf string `json:"duplicate_of"`
	Reason      string `json:"reason"`
}

func (d *DuplicateFilter) Run(ctx context.Context, article *news.Article) (*news.Article, error) {
	exists, err := d.store.Exists(ctx, article.URL)
	if err != nil {
		d.failOpen(article, "url check failed", err)
		return article, nil
	}
	if exists {
		d.logger.WithFields(logging.Fields{
			"stage": d.Name(),
			"url":   article.URL,
		}).Info("URL already ingested")
		return nil, nil
	}

	recent, err := d.recentPosts(ctx)
	if err != nil {
		d.failOpen(article, "recent window unavailable", err)
		return article, nil
	}
	if len(recent) == 0 {
		return article, nil
	}

	var result dedupResult
	err = d.gen.CompleteJSON(ctx, llm.Request{
		Model:       d.model,
		System:      dedupSystem,
		Input:       dedupPrompt(article, recent),
		Temperature: 0.2,
		MaxTokens:   1500,
	}, &result)
	if err != nil {
		d.failOpen(article, "semantic comparison failed", err)
		return article, nil
	}

	if result.IsDuplicate {
		d.logger.WithFields(logging.Fields{
			"stage":        d.Name(),
			"title":        article.Title,
			"duplicate_of": result.DuplicateOf,
			"reason":       result.Reason,
		}).Info("Duplicate article dropped")
		return nil, nil
	}
	return article, nil
}

func (d *DuplicateFilter) recentPosts(ctx context.Context) ([]news.RecentPost, error) {
	val, ok, err := d.recent.Get(ctx, recentPostsKey, func(ctx context.Context, _ string) (interface{}, bool, error) {
		posts, err := d.store.QueryRecent(ctx, d.windowDays, news.CategoryTool)
		if err != nil {
			return nil, false, err
		}
		return posts, true, nil
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	posts, _ := val.([]news.RecentPost)
	return posts, nil
}

func dedupPrompt(article *news.Article, recent []news.RecentPost) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## New article:\nTitle: %s\nText: %s\n\n## Existing recent posts:\n",
		article.Title, truncate(article.Summary, 1000))
	for i, post := range recent {
		fmt.Fprintf(&sb, "\n%d. Title: %s\n   Text: %s\n", i+1, post.Title, truncate(post.PostText, 200))
	}
	return sb.String()
}

func (d *DuplicateFilter) failOpen(article *news.Article, msg string, err error) {
	d.logger.WithFields(logging.Fields{
		"stage": d.Name(),
		"title": article.Title,
		"error": err.Error(),
	}).Warn("Duplicate check failed, allowing article through: " + msg)
}
