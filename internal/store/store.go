// Package store persists article records in PostgreSQL. The store is the
// single source of truth for approval state; in-memory copies elsewhere
// are never required for correctness.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"herald/internal/news"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateURL is returned when an insert loses the race against the
// source_url unique constraint. Callers treat it as a drop, not a fault.
var ErrDuplicateURL = errors.New("source url already tracked")

// ArticleStore is the durable store contract used by the pipeline and the
// approval gate.
type ArticleStore interface {
	Exists(ctx context.Context, url string) (bool, error)
	QueryRecent(ctx context.Context, windowDays int, excludeCategory string) ([]news.RecentPost, error)
	Create(ctx context.Context, rec news.Record) (string, error)
	UpdateStatus(ctx context.Context, id string, status news.Status, postURL string) error
	Fetch(ctx context.Context, id string) (news.Record, error)
}

// SQLArticleStore implements ArticleStore over database/sql.
type SQLArticleStore struct {
	db *sql.DB
}

// New creates a store backed by the given database handle.
func New(db *sql.DB) *SQLArticleStore {
	return &SQLArticleStore{db: db}
}

// Exists checks whether an article URL is already tracked. This is the
// authoritative O(1) duplicate check.
func (s *SQLArticleStore) Exists(ctx context.Context, url string) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("article store unavailable")
	}

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM herald_posts WHERE source_url = $1)`,
		url,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check url exists: %w", err)
	}
	return exists, nil
}

// QueryRecent returns records newer than the window, excluding the given
// category, for semantic duplicate comparison.
func (s *SQLArticleStore) QueryRecent(ctx context.Context, windowDays int, excludeCategory string) ([]news.RecentPost, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("article store unavailable")
	}
	if windowDays <= 0 {
		windowDays = 3
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT title, source_url, post_text
		FROM herald_posts
		WHERE created_at >= NOW() - ($1 * INTERVAL '1 day')
		AND category <> $2
		ORDER BY created_at DESC
	`, windowDays, excludeCategory)
	if err != nil {
		return nil, fmt.Errorf("query recent posts: %w", err)
	}
	defer rows.Close()

	var posts []news.RecentPost
	for rows.Next() {
		var p news.RecentPost
		if err := rows.Scan(&p.Title, &p.SourceURL, &p.PostText); err != nil {
			return nil, fmt.Errorf("scan recent post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent posts: %w", err)
	}
	return posts, nil
}

// Create inserts a new record and returns the assigned primary key. The
// key doubles as the approval correlation ID.
func (s *SQLArticleStore) Create(ctx context.Context, rec news.Record) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("article store unavailable")
	}

	status := rec.Status
	if status == "" {
		status = news.StatusPendingApproval
	}
	category := rec.Category
	if category == "" {
		category = news.CategoryNews
	}

	var creative sql.NullString
	if rec.CreativeURL != "" && rec.CreativeURL != news.NoCreative {
		creative = sql.NullString{String: rec.CreativeURL, Valid: true}
	}

	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO herald_posts (
			title,
			source_url,
			post_text,
			why_relevant,
			creative_url,
			category,
			status,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id
	`,
		rec.Title,
		rec.SourceURL,
		rec.PostText,
		rec.WhyRelevant,
		creative,
		category,
		string(status),
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return "", ErrDuplicateURL
		}
		return "", fmt.Errorf("insert record: %w", err)
	}
	return id, nil
}

// UpdateStatus transitions a record's status and optionally sets the
// permanent post URL. Status is the only field mutated after creation
// besides the post URL.
func (s *SQLArticleStore) UpdateStatus(ctx context.Context, id string, status news.Status, postURL string) error {
	if s == nil || s.db == nil {
		return errors.New("article store unavailable")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE herald_posts
		SET status = $2, post_url = COALESCE(NULLIF($3, ''), post_url)
		WHERE id = $1
	`, id, string(status), postURL)
	if err != nil {
		return fmt.Errorf("update record status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record status: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Fetch loads a record by its primary key. Used by the approval gate to
// recover decision context after a restart.
func (s *SQLArticleStore) Fetch(ctx context.Context, id string) (news.Record, error) {
	if s == nil || s.db == nil {
		return news.Record{}, errors.New("article store unavailable")
	}

	var rec news.Record
	var creative, postURL sql.NullString
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, source_url, post_text, why_relevant, creative_url, category, status, post_url, created_at
		FROM herald_posts
		WHERE id = $1
	`, id).Scan(
		&rec.ID,
		&rec.Title,
		&rec.SourceURL,
		&rec.PostText,
		&rec.WhyRelevant,
		&creative,
		&rec.Category,
		&status,
		&postURL,
		&rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return news.Record{}, ErrNotFound
	}
	if err != nil {
		return news.Record{}, fmt.Errorf("fetch record: %w", err)
	}

	rec.Status = news.Status(status)
	if creative.Valid {
		rec.CreativeURL = creative.String
	}
	if postURL.Valid {
		rec.PostURL = postURL.String
	}
	return rec, nil
}
