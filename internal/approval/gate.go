package approval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"herald/internal/news"
	"herald/internal/publish"
	"herald/internal/store"
	"herald/pkg/cache"
	"herald/pkg/logging"
)

// Outcome is a reviewer's action on a pending post.
type Outcome string

const (
	OutcomeApprove Outcome = "approve"
	OutcomeDecline Outcome = "decline"
)

// ResultCode tells the reviewer what the decision ultimately did.
type ResultCode string

const (
	ResultPosted          ResultCode = "posted"
	ResultDeclined        ResultCode = "declined"
	ResultAlreadyPosted   ResultCode = "already_posted"
	ResultAlreadyDeclined ResultCode = "already_declined"
)

// Result is the definitive answer to one decision attempt.
type Result struct {
	Code         ResultCode
	Title        string
	PermanentURL string
}

// Primary posts approved content to the main channel.
type Primary interface {
	SendPrimary(ctx context.Context, post news.PendingPost) (publish.PostResult, error)
}

// Translator runs the secondary-channel pipeline for a posted item.
type Translator interface {
	Run(ctx context.Context, post news.PendingPost)
}

// TaskRunner detaches a named task into a supervised group.
type TaskRunner interface {
	Go(name string, fn func(ctx context.Context))
}

// DecisionStore is the slice of the article store the gate needs.
type DecisionStore interface {
	Fetch(ctx context.Context, id string) (news.Record, error)
	UpdateStatus(ctx context.Context, id string, status news.Status, postURL string) error
}

// Notifier alerts the operator channel.
type Notifier interface {
	ReportError(component string, err error)
}

// Gate turns reviewer actions into channel posts and durable status
// transitions. The pending cache is only an optimization; every
// decision can be reconstructed from the store, so decisions survive
// process restarts and repeated button presses.
type Gate struct {
	store      DecisionStore
	pending    *cache.Cache
	primary    Primary
	translator Translator
	tasks      TaskRunner
	notifier   Notifier
	logger     logging.Logger

	decisions *prometheus.CounterVec
	failures  *prometheus.CounterVec

	// Decisions are serialized per correlation ID so two near-simultaneous
	// presses cannot both pass the terminal-status check, while a slow
	// publish on one post never blocks a decision on another. mu guards
	// the lock map only.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewGate(
	st DecisionStore,
	pending *cache.Cache,
	primary Primary,
	translator Translator,
	tasks TaskRunner,
	notifier Notifier,
	logger logging.Logger,
	decisions, failures *prometheus.CounterVec,
) *Gate {
	return &Gate{
		store:      st,
		pending:    pending,
		primary:    primary,
		translator: translator,
		tasks:      tasks,
		notifier:   notifier,
		logger:     logger,
		decisions:  decisions,
		failures:   failures,
		locks:      make(map[string]*sync.Mutex),
	}
}

// pendingTTL bounds how long an undecided post stays cached. Posts
// older than this fall back to store reconstruction on decide.
const pendingTTL = 72 * time.Hour

// Register caches a freshly previewed post so the usual decision path
// skips the store round-trip.
func (g *Gate) Register(post news.PendingPost) {
	g.pending.Set(post.ID, post, pendingTTL)
}

// Decide applies one reviewer action. Idempotent: deciding an already
// terminal record reports the prior outcome without side effects, and
// a failed approve leaves the record pending so the reviewer can press
// the button again.
func (g *Gate) Decide(ctx context.Context, correlationID string, outcome Outcome) (Result, error) {
	lock := g.decisionLock(correlationID)
	lock.Lock()
	defer lock.Unlock()

	post, status, err := g.resolve(ctx, correlationID)
	if err != nil {
		return Result{}, err
	}

	if status.Terminal() {
		code := ResultAlreadyPosted
		if status == news.StatusDeclined {
			code = ResultAlreadyDeclined
		}
		g.count(string(code))
		return Result{Code: code, Title: post.Title}, nil
	}

	switch outcome {
	case OutcomeApprove:
		return g.approve(ctx, post)
	case OutcomeDecline:
		return g.decline(ctx, post)
	default:
		return Result{}, fmt.Errorf("unknown outcome %q", outcome)
	}
}

// decisionLock returns the mutex for one correlation ID. Entries are
// never removed; the set is bounded by the posts decided in one process
// lifetime.
func (g *Gate) decisionLock(correlationID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[correlationID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[correlationID] = l
	}
	return l
}

// resolve returns the pending post and its durable status. The cache
// holds only non-terminal posts, but the store stays authoritative for
// the status check.
func (g *Gate) resolve(ctx context.Context, correlationID string) (news.PendingPost, news.Status, error) {
	rec, err := g.store.Fetch(ctx, correlationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.pending.Delete(correlationID)
		}
		return news.PendingPost{}, "", fmt.Errorf("resolve decision %s: %w", correlationID, err)
	}

	if cached, ok := g.pending.Peek(correlationID); ok {
		if post, ok := cached.(news.PendingPost); ok {
			return post, rec.Status, nil
		}
	}

	// Cache miss: the process restarted since the preview went out.
	// The record has everything except the creative classification,
	// which is reinferred from the stored URL.
	post := news.PendingPost{
		ID:       rec.ID,
		Title:    rec.Title,
		PostText: rec.PostText,
		Creative: news.Creative{
			Kind: news.InferCreativeKind(rec.CreativeURL),
			URL:  rec.CreativeURL,
		},
	}
	if post.Creative.Kind == news.CreativeNone {
		post.Creative.URL = news.NoCreative
	}
	return post, rec.Status, nil
}

func (g *Gate) approve(ctx context.Context, post news.PendingPost) (Result, error) {
	result, err := g.primary.SendPrimary(ctx, post)
	if err != nil {
		// Record stays PendingApproval; the reviewer may retry.
		if g.failures != nil {
			g.failures.WithLabelValues("primary").Inc()
		}
		g.notifier.ReportError("approval", err)
		return Result{}, fmt.Errorf("approve %s: %w", post.ID, err)
	}

	if err := g.store.UpdateStatus(ctx, post.ID, news.StatusPosted, result.PermanentURL); err != nil {
		// The post is live but the record didn't transition; surface it
		// loudly, a second press would double-post otherwise.
		g.notifier.ReportError("approval", fmt.Errorf("posted %s but status update failed: %w", post.ID, err))
		return Result{}, fmt.Errorf("approve %s: record update: %w", post.ID, err)
	}

	g.pending.Delete(post.ID)
	g.count(string(ResultPosted))
	g.logger.WithFields(logging.Fields{
		"correlation_id": post.ID,
		"post_url":       result.PermanentURL,
	}).Info("Post approved and published")

	// Secondary-channel translation runs detached: its failures are the
	// operator's problem, never the reviewer's.
	g.tasks.Go("secondary:"+post.ID, func(taskCtx context.Context) {
		g.translator.Run(taskCtx, post)
	})

	return Result{Code: ResultPosted, Title: post.Title, PermanentURL: result.PermanentURL}, nil
}

func (g *Gate) decline(ctx context.Context, post news.PendingPost) (Result, error) {
	if err := g.store.UpdateStatus(ctx, post.ID, news.StatusDeclined, ""); err != nil {
		g.notifier.ReportError("approval", err)
		return Result{}, fmt.Errorf("decline %s: %w", post.ID, err)
	}
	g.pending.Delete(post.ID)
	g.count(string(ResultDeclined))
	g.logger.WithFields(logging.Fields{"correlation_id": post.ID}).Info("Post declined")
	return Result{Code: ResultDeclined, Title: post.Title}, nil
}

func (g *Gate) count(outcome string) {
	if g.decisions != nil {
		g.decisions.WithLabelValues(outcome).Inc()
	}
}

// HandleAction adapts a raw callback action to a reviewer-facing
// outcome line. Every press gets a definitive answer, including on
// errors.
func (g *Gate) HandleAction(ctx context.Context, correlationID, action string) string {
	result, err := g.Decide(ctx, correlationID, Outcome(action))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("⚠️ Error: post data not found (%s)", correlationID)
		}
		g.logger.WithFields(logging.Fields{
			"correlation_id": correlationID,
			"action":         action,
			"error":          err.Error(),
		}).Error("Decision failed")
		return fmt.Sprintf("⚠️ Error processing action: %s", truncateForReviewer(err.Error()))
	}

	switch result.Code {
	case ResultPosted:
		return fmt.Sprintf("✅ Approved & Posted: %s", result.Title)
	case ResultDeclined:
		return fmt.Sprintf("❌ Declined: %s", result.Title)
	case ResultAlreadyPosted:
		return fmt.Sprintf("✅ Already Posted: %s", result.Title)
	case ResultAlreadyDeclined:
		return fmt.Sprintf("❌ Already Declined: %s", result.Title)
	default:
		return fmt.Sprintf("⚠️ Unknown outcome for %s", correlationID)
	}
}

func truncateForReviewer(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max]
}
