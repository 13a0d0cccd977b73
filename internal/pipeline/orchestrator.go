package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"herald/internal/news"
	"herald/internal/source"
	"herald/internal/stage"
	"herald/internal/store"
	"herald/pkg/logging"
)

// RecordStore is the slice of the article store the orchestrator needs.
type RecordStore interface {
	Exists(ctx context.Context, url string) (bool, error)
	Create(ctx context.Context, rec news.Record) (string, error)
}

// PendingRegistry receives every previewed post; the approval gate
// implements it.
type PendingRegistry interface {
	Register(post news.PendingPost)
}

// Previewer sends the rendered post to the admin channel for review.
type Previewer interface {
	SendPreview(ctx context.Context, post news.PendingPost) error
}

// Metrics bundles the pipeline's prometheus instruments; a zero value
// disables them.
type Metrics struct {
	Cycles        *prometheus.CounterVec
	Articles      *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
}

// Orchestrator drives the ingestion loop: fetch sources, run each new
// article through the stage sequence, persist survivors, and hand them
// to the approval flow. Cycles run on their own goroutine so a slow
// cycle never delays a reviewer's decision.
type Orchestrator struct {
	sources  []source.Source
	stages   []stage.Stage
	store    RecordStore
	registry PendingRegistry
	preview  Previewer
	notifier Notifier
	logger   logging.Logger
	metrics  Metrics

	interval     time.Duration
	cycleTimeout time.Duration
}

func NewOrchestrator(
	sources []source.Source,
	stages []stage.Stage,
	st RecordStore,
	registry PendingRegistry,
	preview Previewer,
	notifier Notifier,
	logger logging.Logger,
	metrics Metrics,
	interval time.Duration,
) *Orchestrator {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Orchestrator{
		sources:  sources,
		stages:   stages,
		store:    st,
		registry: registry,
		preview:  preview,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
		interval: interval,
		// A cycle must finish before the next tick would pile up on it.
		cycleTimeout: interval,
	}
}

// Start blocks until ctx is cancelled, running one cycle immediately
// and then one per interval.
func (o *Orchestrator) Start(ctx context.Context) {
	o.logger.WithFields(logging.Fields{
		"interval": o.interval.String(),
		"sources":  len(o.sources),
	}).Info("Pipeline orchestrator started")

	o.runCycle(ctx)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("Pipeline orchestrator stopped")
			return
		case <-ticker.C:
			o.runCycle(ctx)
		}
	}
}

// runCycle is one full ingestion pass. A panic or fault anywhere inside
// aborts only this cycle.
func (o *Orchestrator) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			o.countCycle("panic")
			err := fmt.Errorf("pipeline cycle panicked: %v", r)
			o.logger.Error(err.Error())
			o.notifier.ReportError("pipeline", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, o.cycleTimeout)
	defer cancel()

	articles := o.fetchAll(ctx)
	if len(articles) == 0 {
		o.logger.Info("No new articles this cycle")
		o.countCycle("ok")
		return
	}
	o.logger.WithFields(logging.Fields{"count": len(articles)}).Info("Processing new articles")

	for _, article := range articles {
		if ctx.Err() != nil {
			o.countCycle("timeout")
			return
		}
		o.processArticle(ctx, article)
	}
	o.countCycle("ok")
}

// fetchAll queries every source concurrently. A failing source is
// logged and reported but never stops the others; each source's own
// emission order is preserved.
func (o *Orchestrator) fetchAll(ctx context.Context) []news.Article {
	results := make([][]news.Article, len(o.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range o.sources {
		i, src := i, src
		g.Go(func() error {
			articles, err := src.Fetch(gctx)
			if err != nil {
				o.logger.WithFields(logging.Fields{
					"source": src.Name(),
					"error":  err.Error(),
				}).Error("Source fetch failed")
				o.notifier.ReportError("source:"+src.Name(), err)
			}
			results[i] = articles
			return nil
		})
	}
	g.Wait()

	var all []news.Article
	for _, batch := range results {
		all = append(all, batch...)
	}
	return all
}

// processArticle runs one article through the stage sequence and, if it
// survives, persists it and sends the preview. Faults drop the article
// and alert the operator; the cycle moves on.
func (o *Orchestrator) processArticle(ctx context.Context, article news.Article) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("article %s panicked: %v", article.URL, r)
			o.logger.Error(err.Error())
			o.notifier.ReportError("pipeline", err)
		}
	}()

	current := &article
	for _, st := range o.stages {
		var err error
		started := time.Now()
		current, err = st.Run(ctx, current)
		o.observeStage(st.Name(), started)
		if err != nil {
			o.countArticle(st.Name(), "error")
			o.logger.WithFields(logging.Fields{
				"stage": st.Name(),
				"url":   article.URL,
				"error": err.Error(),
			}).Error("Stage failed, dropping article")
			o.notifier.ReportError("stage:"+st.Name(), err)
			return
		}
		if current == nil {
			o.countArticle(st.Name(), "dropped")
			return
		}
		o.countArticle(st.Name(), "passed")
	}

	o.submit(ctx, current)
}

// submit persists the finished article and opens the approval window.
func (o *Orchestrator) submit(ctx context.Context, article *news.Article) {
	// The stages take minutes; re-check the URL to narrow the
	// check-and-write window against a concurrent cycle.
	if exists, err := o.store.Exists(ctx, article.URL); err == nil && exists {
		o.countArticle("submit", "dropped")
		o.logger.WithFields(logging.Fields{"url": article.URL}).Info("URL ingested mid-pipeline, dropping")
		return
	}

	id, err := o.store.Create(ctx, news.Record{
		Title:       article.Title,
		SourceURL:   article.URL,
		PostText:    article.PostText,
		WhyRelevant: article.RelevanceReason,
		CreativeURL: article.Creative.URL,
		Category:    news.CategoryNews,
		Status:      news.StatusPendingApproval,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateURL) {
			// Lost the insert race to a concurrent cycle; not a fault.
			o.countArticle("submit", "dropped")
			o.logger.WithFields(logging.Fields{"url": article.URL}).Info("URL ingested mid-pipeline, dropping")
			return
		}
		o.countArticle("submit", "error")
		o.logger.WithFields(logging.Fields{
			"url":   article.URL,
			"error": err.Error(),
		}).Error("Failed to persist record")
		o.notifier.ReportError("store", err)
		return
	}

	post := news.PendingPost{
		ID:       id,
		Title:    article.Title,
		PostText: article.PostText,
		Creative: article.Creative,
	}
	o.registry.Register(post)

	if err := o.preview.SendPreview(ctx, post); err != nil {
		// The record stays PendingApproval: durable, inspectable, and
		// decidable once an operator notices the alert.
		o.countArticle("submit", "preview_failed")
		o.logger.WithFields(logging.Fields{
			"correlation_id": id,
			"error":          err.Error(),
		}).Error("Preview send failed, record left pending")
		o.notifier.ReportError("preview", err)
		return
	}
	o.countArticle("submit", "submitted")
}

func (o *Orchestrator) countCycle(status string) {
	if o.metrics.Cycles != nil {
		o.metrics.Cycles.WithLabelValues(status).Inc()
	}
}

func (o *Orchestrator) countArticle(stageName, outcome string) {
	if o.metrics.Articles != nil {
		o.metrics.Articles.WithLabelValues(stageName, outcome).Inc()
	}
}

func (o *Orchestrator) observeStage(stageName string, started time.Time) {
	if o.metrics.StageDuration != nil {
		o.metrics.StageDuration.WithLabelValues(stageName).Observe(time.Since(started).Seconds())
	}
}
