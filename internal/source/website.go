package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"herald/internal/news"
	"herald/pkg/logging"
)

// WebSource ingests articles from a site without a feed: it scrapes a
// listing page with a CSS selector that yields article links, then runs
// each new link through the same extraction path as the RSS adapter.
type WebSource struct {
	name         string
	listURL      string
	linkSelector string
	client       *http.Client
	extract      *extractor
	checker      URLChecker
	maxItems     int
	logger       logging.Logger
}

// NewWebSource builds a list-page adapter. linkSelector must match
// anchor elements on the listing page, e.g. "article h2 a".
func NewWebSource(name, listURL, linkSelector string, checker URLChecker, client *http.Client, maxItems int, logger logging.Logger) *WebSource {
	if client == nil {
		client = defaultHTTPClient()
	}
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	return &WebSource{
		name:         name,
		listURL:      listURL,
		linkSelector: linkSelector,
		client:       client,
		extract:      newExtractor(client),
		checker:      checker,
		maxItems:     maxItems,
		logger:       logger,
	}
}

func (s *WebSource) Name() string {
	return s.name
}

// Fetch scrapes the listing page and extracts articles for new links in
// page order, newest first by site convention.
func (s *WebSource) Fetch(ctx context.Context) ([]news.Article, error) {
	links, err := s.collectLinks(ctx)
	if err != nil {
		return nil, err
	}

	var articles []news.Article
	for _, link := range links {
		exists, err := s.checker.Exists(ctx, link)
		if err != nil {
			return articles, fmt.Errorf("check existing url: %w", err)
		}
		if exists {
			continue
		}

		content, err := s.extract.Extract(ctx, link)
		if err != nil || content.Text == "" {
			s.logger.WithFields(logging.Fields{
				"source": s.name,
				"url":    link,
			}).Warn("Skipping listed page, extraction failed")
			continue
		}

		articles = append(articles, news.Article{
			Source:      s.name,
			URL:         link,
			RawText:     content.Text,
			Title:       content.Title,
			PublishedAt: time.Now().UTC(),
			Images:      content.Images,
			Videos:      content.Videos,
		})
	}
	return articles, nil
}

func (s *WebSource) collectLinks(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request listing page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	base, _ := url.Parse(s.listURL)
	seen := map[string]struct{}{}
	var links []string
	doc.Find(s.linkSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		abs := resolveRef(base, strings.TrimSpace(href))
		if abs == "" {
			return true
		}
		if _, dup := seen[abs]; dup {
			return true
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
		return len(links) < s.maxItems
	})
	return links, nil
}
