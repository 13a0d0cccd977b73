package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"herald/internal/news"
	"herald/pkg/logging"
)

// RSSSource ingests the newest entries of one RSS/Atom feed. Entries
// whose URL is already in the store are skipped before extraction.
type RSSSource struct {
	name     string
	feedURL  string
	parser   *gofeed.Parser
	extract  *extractor
	checker  URLChecker
	maxItems int
	logger   logging.Logger
}

// NewRSSSource builds an adapter for one feed. maxItems caps how many
// of the newest entries are examined per cycle; zero means the default.
func NewRSSSource(name, feedURL string, checker URLChecker, client *http.Client, maxItems int, logger logging.Logger) *RSSSource {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	return &RSSSource{
		name:     name,
		feedURL:  feedURL,
		parser:   parser,
		extract:  newExtractor(client),
		checker:  checker,
		maxItems: maxItems,
		logger:   logger,
	}
}

func (s *RSSSource) Name() string {
	return s.name
}

// Fetch parses the feed and returns extracted articles in feed order.
// Extraction failures for individual entries are logged and skipped so
// a single broken page never sinks the whole feed.
func (s *RSSSource) Fetch(ctx context.Context) ([]news.Article, error) {
	feed, err := s.parser.ParseURLWithContext(s.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", s.feedURL, err)
	}

	items := feed.Items
	if len(items) > s.maxItems {
		items = items[:s.maxItems]
	}

	var articles []news.Article
	for _, item := range items {
		if item == nil || item.Link == "" {
			continue
		}

		exists, err := s.checker.Exists(ctx, item.Link)
		if err != nil {
			return articles, fmt.Errorf("check existing url: %w", err)
		}
		if exists {
			continue
		}

		article, err := s.buildArticle(ctx, item)
		if err != nil {
			s.logger.WithFields(logging.Fields{
				"source": s.name,
				"url":    item.Link,
				"error":  err.Error(),
			}).Warn("Skipping feed entry, extraction failed")
			continue
		}
		articles = append(articles, article)
	}
	return articles, nil
}

func (s *RSSSource) buildArticle(ctx context.Context, item *gofeed.Item) (news.Article, error) {
	content, err := s.extract.Extract(ctx, item.Link)
	if err != nil || content.Text == "" {
		// Some feeds carry the full article inline; use it before
		// giving up on the entry.
		inline := item.Content
		if inline == "" {
			inline = item.Description
		}
		if inline == "" {
			if err == nil {
				err = fmt.Errorf("page yielded no readable text")
			}
			return news.Article{}, err
		}
		content, err = s.extract.ExtractFromHTML(inline, item.Link)
		if err != nil {
			return news.Article{}, err
		}
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = content.Title
	}

	publishedAt := time.Now().UTC()
	if item.PublishedParsed != nil {
		publishedAt = item.PublishedParsed.UTC()
	}

	images := content.Images
	if item.Image != nil && item.Image.URL != "" {
		images = append([]string{item.Image.URL}, images...)
	}
	videos := content.Videos
	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		switch {
		case strings.HasPrefix(enc.Type, "video/") || hasVideoSuffix(enc.URL):
			videos = append(videos, enc.URL)
		case strings.HasPrefix(enc.Type, "image/"):
			images = append(images, enc.URL)
		}
	}

	return news.Article{
		Source:      s.name,
		URL:         item.Link,
		RawText:     content.Text,
		Title:       title,
		PublishedAt: publishedAt,
		Images:      images,
		Videos:      videos,
	}, nil
}
