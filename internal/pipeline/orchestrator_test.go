package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"herald/internal/news"
	"herald/internal/source"
	"herald/internal/stage"
	"herald/internal/store"
	"herald/pkg/logging"
)

type fakeSource struct {
	name     string
	articles []news.Article
	err      error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(_ context.Context) ([]news.Article, error) {
	return f.articles, f.err
}

// funcStage adapts a function to the Stage interface.
type funcStage struct {
	name string
	fn   func(ctx context.Context, a *news.Article) (*news.Article, error)
}

func (s *funcStage) Name() string { return s.name }

func (s *funcStage) Run(ctx context.Context, a *news.Article) (*news.Article, error) {
	return s.fn(ctx, a)
}

func passStage(name string) stage.Stage {
	return &funcStage{name: name, fn: func(_ context.Context, a *news.Article) (*news.Article, error) {
		return a, nil
	}}
}

type fakeRecordStore struct {
	mu        sync.Mutex
	existing  map[string]bool
	created   []news.Record
	nextID    int
	createErr error
}

func (f *fakeRecordStore) Exists(_ context.Context, url string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[url], nil
}

func (f *fakeRecordStore) Create(_ context.Context, rec news.Record) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	rec.ID = fmt.Sprintf("id-%d", f.nextID)
	f.created = append(f.created, rec)
	return rec.ID, nil
}

type fakeRegistry struct {
	mu    sync.Mutex
	posts []news.PendingPost
}

func (f *fakeRegistry) Register(post news.PendingPost) {
	f.mu.Lock()
	f.posts = append(f.posts, post)
	f.mu.Unlock()
}

type fakePreviewer struct {
	mu    sync.Mutex
	posts []news.PendingPost
	err   error
}

func (f *fakePreviewer) SendPreview(_ context.Context, post news.PendingPost) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.posts = append(f.posts, post)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	errors []error
}

func (f *recordingNotifier) ReportError(_ string, err error) {
	f.mu.Lock()
	f.errors = append(f.errors, err)
	f.mu.Unlock()
}

type fixture struct {
	store    *fakeRecordStore
	registry *fakeRegistry
	preview  *fakePreviewer
	notifier *recordingNotifier
}

func newOrchestrator(sources []*fakeSource, stages []stage.Stage) (*Orchestrator, *fixture) {
	f := &fixture{
		store:    &fakeRecordStore{existing: map[string]bool{}},
		registry: &fakeRegistry{},
		preview:  &fakePreviewer{},
		notifier: &recordingNotifier{},
	}
	wrapped := make([]source.Source, len(sources))
	for i, s := range sources {
		wrapped[i] = s
	}
	o := NewOrchestrator(wrapped, stages, f.store, f.registry, f.preview, f.notifier,
		logging.NewLogger(), Metrics{}, time.Minute)
	return o, f
}

func article(url string) news.Article {
	return news.Article{
		Source:          "test",
		URL:             url,
		Title:           "Title",
		RawText:         "raw",
		Summary:         "summary",
		RelevanceReason: "reason",
		PostText:        "<b>post</b>",
		Creative:        news.Creative{Kind: news.CreativeNone, URL: news.NoCreative},
	}
}

func TestCycleSubmitsSurvivingArticle(t *testing.T) {
	src := &fakeSource{name: "rss", articles: []news.Article{article("https://x.test/a")}}
	o, f := newOrchestrator([]*fakeSource{src}, []stage.Stage{passStage("s1"), passStage("s2")})

	o.runCycle(context.Background())

	if len(f.store.created) != 1 {
		t.Fatalf("expected 1 record, got %d", len(f.store.created))
	}
	rec := f.store.created[0]
	if rec.Status != news.StatusPendingApproval {
		t.Fatalf("unexpected status %s", rec.Status)
	}
	if len(f.registry.posts) != 1 || f.registry.posts[0].ID != rec.ID {
		t.Fatalf("pending registration missing or mismatched: %+v", f.registry.posts)
	}
	if len(f.preview.posts) != 1 {
		t.Fatalf("expected 1 preview, got %d", len(f.preview.posts))
	}
}

func TestStageDropStopsSequence(t *testing.T) {
	src := &fakeSource{name: "rss", articles: []news.Article{article("https://x.test/a")}}
	var afterDropRan bool
	stages := []stage.Stage{
		&funcStage{name: "drop", fn: func(_ context.Context, _ *news.Article) (*news.Article, error) {
			return nil, nil
		}},
		&funcStage{name: "after", fn: func(_ context.Context, a *news.Article) (*news.Article, error) {
			afterDropRan = true
			return a, nil
		}},
	}
	o, f := newOrchestrator([]*fakeSource{src}, stages)

	o.runCycle(context.Background())

	if afterDropRan {
		t.Fatal("stages after a drop must not run")
	}
	if len(f.store.created) != 0 {
		t.Fatal("dropped article must not be persisted")
	}
	if len(f.notifier.errors) != 0 {
		t.Fatal("a silent drop is not an error")
	}
}

func TestStageErrorDropsAndNotifies(t *testing.T) {
	src := &fakeSource{name: "rss", articles: []news.Article{
		article("https://x.test/a"),
		article("https://x.test/b"),
	}}
	calls := 0
	stages := []stage.Stage{
		&funcStage{name: "flaky", fn: func(_ context.Context, a *news.Article) (*news.Article, error) {
			calls++
			if a.URL == "https://x.test/a" {
				return nil, errors.New("model unavailable")
			}
			return a, nil
		}},
	}
	o, f := newOrchestrator([]*fakeSource{src}, stages)

	o.runCycle(context.Background())

	if calls != 2 {
		t.Fatalf("both articles must be attempted, got %d calls", calls)
	}
	if len(f.store.created) != 1 || f.store.created[0].SourceURL != "https://x.test/b" {
		t.Fatalf("unexpected created records %+v", f.store.created)
	}
	if len(f.notifier.errors) != 1 {
		t.Fatalf("expected 1 operator alert, got %d", len(f.notifier.errors))
	}
}

func TestStagePanicIsContained(t *testing.T) {
	src := &fakeSource{name: "rss", articles: []news.Article{
		article("https://x.test/a"),
		article("https://x.test/b"),
	}}
	stages := []stage.Stage{
		&funcStage{name: "boom", fn: func(_ context.Context, a *news.Article) (*news.Article, error) {
			if a.URL == "https://x.test/a" {
				panic("nil dereference")
			}
			return a, nil
		}},
	}
	o, f := newOrchestrator([]*fakeSource{src}, stages)

	o.runCycle(context.Background())

	if len(f.store.created) != 1 || f.store.created[0].SourceURL != "https://x.test/b" {
		t.Fatalf("second article must survive the first one's panic: %+v", f.store.created)
	}
	if len(f.notifier.errors) != 1 {
		t.Fatalf("expected panic alert, got %d", len(f.notifier.errors))
	}
}

func TestSubmitRechecksURL(t *testing.T) {
	src := &fakeSource{name: "rss", articles: []news.Article{article("https://x.test/a")}}
	o, f := newOrchestrator([]*fakeSource{src}, []stage.Stage{passStage("s1")})
	f.store.existing["https://x.test/a"] = true

	o.runCycle(context.Background())

	if len(f.store.created) != 0 {
		t.Fatal("article ingested elsewhere must not be persisted again")
	}
}

func TestPreviewFailureLeavesRecordPending(t *testing.T) {
	src := &fakeSource{name: "rss", articles: []news.Article{article("https://x.test/a")}}
	o, f := newOrchestrator([]*fakeSource{src}, []stage.Stage{passStage("s1")})
	f.preview.err = errors.New("telegram down")

	o.runCycle(context.Background())

	if len(f.store.created) != 1 {
		t.Fatal("record must be persisted before the preview attempt")
	}
	if f.store.created[0].Status != news.StatusPendingApproval {
		t.Fatalf("unexpected status %s", f.store.created[0].Status)
	}
	if len(f.notifier.errors) != 1 {
		t.Fatal("operator must hear about the failed preview")
	}
}

func TestSourceFailureIsolated(t *testing.T) {
	broken := &fakeSource{name: "broken", err: errors.New("feed unreachable")}
	healthy := &fakeSource{name: "healthy", articles: []news.Article{article("https://x.test/a")}}
	o, f := newOrchestrator([]*fakeSource{broken, healthy}, []stage.Stage{passStage("s1")})

	o.runCycle(context.Background())

	if len(f.store.created) != 1 {
		t.Fatalf("healthy source must still deliver, got %d records", len(f.store.created))
	}
	if len(f.notifier.errors) != 1 {
		t.Fatalf("broken source must be reported, got %d alerts", len(f.notifier.errors))
	}
}

func TestSourceOrderPreserved(t *testing.T) {
	first := &fakeSource{name: "first", articles: []news.Article{
		article("https://x.test/1"),
		article("https://x.test/2"),
	}}
	second := &fakeSource{name: "second", articles: []news.Article{article("https://x.test/3")}}
	o, f := newOrchestrator([]*fakeSource{first, second}, []stage.Stage{passStage("s1")})

	o.runCycle(context.Background())

	var urls []string
	for _, rec := range f.store.created {
		urls = append(urls, rec.SourceURL)
	}
	want := []string{"https://x.test/1", "https://x.test/2", "https://x.test/3"}
	for i := range want {
		if urls[i] != want[i] {
			t.Fatalf("unexpected order %v", urls)
		}
	}
}

func TestSubmitDropsOnUniqueConstraintRace(t *testing.T) {
	src := &fakeSource{name: "rss", articles: []news.Article{article("https://x.test/a")}}
	o, f := newOrchestrator([]*fakeSource{src}, []stage.Stage{passStage("s1")})
	f.store.createErr = store.ErrDuplicateURL

	o.runCycle(context.Background())

	if len(f.registry.posts) != 0 {
		t.Fatalf("expected no registration, got %d", len(f.registry.posts))
	}
	if len(f.preview.posts) != 0 {
		t.Fatalf("expected no preview, got %d", len(f.preview.posts))
	}
	if len(f.notifier.errors) != 0 {
		t.Fatalf("losing the insert race is not a fault, got %d reports", len(f.notifier.errors))
	}
}
