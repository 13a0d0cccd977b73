package stage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"herald/internal/news"
	"herald/pkg/cache"
	"herald/pkg/llm"
	"herald/pkg/logging"
)

// fakeGen scripts Generator responses and records every request.
type fakeGen struct {
	jsonResponse string
	textResponse string
	err          error
	requests     []llm.Request
}

func (f *fakeGen) Complete(_ context.Context, req llm.Request) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.textResponse, nil
}

func (f *fakeGen) CompleteJSON(_ context.Context, req llm.Request, out any) error {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.jsonResponse), out)
}

func testArticle() *news.Article {
	return &news.Article{
		Source:  "ai-news",
		URL:     "https://x.test/a",
		Title:   "Model Release",
		RawText: "A new language model shipped today.",
		Summary: "A new language model shipped today with tool calling support.",
	}
}

func TestSummarizeSetsTitleAndSummary(t *testing.T) {
	gen := &fakeGen{jsonResponse: `{"article_title": "OpenAI Releases SDK", "article_text": "The SDK embeds GPT into apps."}`}
	s := NewSummarize(gen, "test-model", logging.NewLogger())

	out, err := s.Run(context.Background(), testArticle())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out == nil {
		t.Fatal("expected article to pass")
	}
	if out.Title != "OpenAI Releases SDK" {
		t.Fatalf("unexpected title %q", out.Title)
	}
	if out.Summary != "The SDK embeds GPT into apps." {
		t.Fatalf("unexpected summary %q", out.Summary)
	}
	if out.RawText == "" {
		t.Fatal("raw text must be preserved")
	}
}

func TestSummarizeSkipSentinelDrops(t *testing.T) {
	gen := &fakeGen{jsonResponse: `{"article_title": "SKIP", "article_text": "SKIP"}`}
	s := NewSummarize(gen, "test-model", logging.NewLogger())

	out, err := s.Run(context.Background(), testArticle())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != nil {
		t.Fatal("expected article to be dropped")
	}
}

func TestSummarizeTruncatesInput(t *testing.T) {
	gen := &fakeGen{jsonResponse: `{"article_title": "T", "article_text": "X"}`}
	s := NewSummarize(gen, "test-model", logging.NewLogger())

	article := testArticle()
	article.RawText = strings.Repeat("a", maxSummarizeInput+5000)
	if _, err := s.Run(context.Background(), article); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(gen.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(gen.requests))
	}
	input := gen.requests[0].Input
	if strings.Count(input, "a") != maxSummarizeInput {
		t.Fatalf("expected input truncated to %d chars of body", maxSummarizeInput)
	}
}

func TestSummarizeErrorPropagates(t *testing.T) {
	gen := &fakeGen{err: errors.New("upstream down")}
	s := NewSummarize(gen, "test-model", logging.NewLogger())

	if _, err := s.Run(context.Background(), testArticle()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRelevancePasses(t *testing.T) {
	gen := &fakeGen{jsonResponse: `{"is_relevant": true, "reason": "usable API"}`}
	r := NewRelevance(gen, "test-model", logging.NewLogger())

	out, err := r.Run(context.Background(), testArticle())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out == nil {
		t.Fatal("expected article to pass")
	}
	if out.RelevanceReason != "usable API" {
		t.Fatalf("unexpected reason %q", out.RelevanceReason)
	}
}

func TestRelevanceDrops(t *testing.T) {
	gen := &fakeGen{jsonResponse: `{"is_relevant": false, "reason": "funding round"}`}
	r := NewRelevance(gen, "test-model", logging.NewLogger())

	out, err := r.Run(context.Background(), testArticle())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != nil {
		t.Fatal("expected article to be dropped")
	}
}

type fakeDedupStore struct {
	exists     bool
	existsErr  error
	recent     []news.RecentPost
	recentErr  error
	queryCalls int
}

func (f *fakeDedupStore) Exists(_ context.Context, _ string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeDedupStore) QueryRecent(_ context.Context, _ int, _ string) ([]news.RecentPost, error) {
	f.queryCalls++
	return f.recent, f.recentErr
}

func newRecentCache() *cache.Cache {
	return cache.New(cache.Options{TTL: time.Minute}, cache.MetricsHooks{})
}

func TestDedupDropsKnownURL(t *testing.T) {
	store := &fakeDedupStore{exists: true}
	d := NewDuplicateFilter(store, &fakeGen{}, "test-model", 3, newRecentCache(), logging.NewLogger())

	out, err := d.Run(context.Background(), testArticle())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != nil {
		t.Fatal("expected known URL to be dropped")
	}
}

func TestDedupSemanticDuplicateDropped(t *testing.T) {
	store := &fakeDedupStore{recent: []news.RecentPost{{Title: "Same Event", PostText: "post"}}}
	gen := &fakeGen{jsonResponse: `{"is_duplicate": true, "duplicate_of": "Same Event", "reason": "same launch"}`}
	d := NewDuplicateFilter(store, gen, "test-model", 3, newRecentCache(), logging.NewLogger())

	out, err := d.Run(context.Background(), testArticle())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != nil {
		t.Fatal("expected duplicate to be dropped")
	}
	if len(gen.requests) != 1 {
		t.Fatalf("expected 1 model call, got %d", len(gen.requests))
	}
	if !strings.Contains(gen.requests[0].Input, "Same Event") {
		t.Fatal("recent posts missing from prompt")
	}
}

func TestDedupUniquePassesAndCachesWindow(t *testing.T) {
	store := &fakeDedupStore{recent: []news.RecentPost{{Title: "Other Event"}}}
	gen := &fakeGen{jsonResponse: `{"is_duplicate": false, "duplicate_of": "", "reason": "different product"}`}
	d := NewDuplicateFilter(store, gen, "test-model", 3, newRecentCache(), logging.NewLogger())

	for i := 0; i < 2; i++ {
		out, err := d.Run(context.Background(), testArticle())
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if out == nil {
			t.Fatalf("run %d: expected article to pass", i)
		}
	}
	// second run must be served from the cache
	if store.queryCalls != 1 {
		t.Fatalf("expected 1 store query, got %d", store.queryCalls)
	}
}

func TestDedupFailsOpen(t *testing.T) {
	cases := []struct {
		name  string
		store *fakeDedupStore
		gen   *fakeGen
	}{
		{"url check error", &fakeDedupStore{existsErr: errors.New("db down")}, &fakeGen{}},
		{"recent window error", &fakeDedupStore{recentErr: errors.New("db down")}, &fakeGen{}},
		{
			"model error",
			&fakeDedupStore{recent: []news.RecentPost{{Title: "X"}}},
			&fakeGen{err: errors.New("upstream down")},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDuplicateFilter(tc.store, tc.gen, "test-model", 3, newRecentCache(), logging.NewLogger())
			out, err := d.Run(context.Background(), testArticle())
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if out == nil {
				t.Fatal("adapter failure must fail open")
			}
		})
	}
}

func TestDedupEmptyWindowSkipsModel(t *testing.T) {
	gen := &fakeGen{}
	d := NewDuplicateFilter(&fakeDedupStore{}, gen, "test-model", 3, newRecentCache(), logging.NewLogger())

	out, err := d.Run(context.Background(), testArticle())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out == nil {
		t.Fatal("expected article to pass")
	}
	if len(gen.requests) != 0 {
		t.Fatal("no model call expected with an empty window")
	}
}

func TestComposeSetsPostText(t *testing.T) {
	post := "<b>OpenAI ships a new SDK 🚀</b>\n\nDevelopers can now embed the model into their own apps with streaming and function calling."
	gen := &fakeGen{textResponse: post}
	c := NewCompose(gen, "test-model", logging.NewLogger())
	c.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }

	out, err := c.Run(context.Background(), testArticle())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.PostText != post {
		t.Fatalf("unexpected post text %q", out.PostText)
	}
	if !strings.Contains(gen.requests[0].System, "2026-08-30") {
		t.Fatal("today's date missing from system prompt")
	}
}

func TestComposeRejectsShortOutput(t *testing.T) {
	gen := &fakeGen{textResponse: "too short"}
	c := NewCompose(gen, "test-model", logging.NewLogger())

	if _, err := c.Run(context.Background(), testArticle()); err == nil {
		t.Fatal("expected error for short output")
	}
}
