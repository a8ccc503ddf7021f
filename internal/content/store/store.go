// Package store implements content.Source on PostgreSQL. Every query runs
// through a circuit breaker, jittered retry and a per-attempt timeout, so
// the search layer above only ever sees a bounded call that either returns
// rows or an error wrapping ErrUpstreamUnavailable.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/content"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/content-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/resilience"
)

const postColumns = `
	SELECT p.id, p.title, p.content, p.author_id, COALESCE(a.name, ''), p.tags,
	       p.genre, p.views, p.avg_read_seconds, p.engagement_score, p.created_at, p.deleted
	FROM posts p
	LEFT JOIN authors a ON a.id = p.author_id`

const authorColumns = `SELECT id, name, username, email, about FROM authors`

// Store reads posts and authors from PostgreSQL.
//
// It expects the CRUD layer's tables:
//
//	CREATE TABLE authors (
//	    id       TEXT PRIMARY KEY,
//	    name     TEXT NOT NULL,
//	    username TEXT NOT NULL UNIQUE,
//	    email    TEXT NOT NULL UNIQUE,
//	    about    TEXT NOT NULL DEFAULT ''
//	);
//	CREATE TABLE posts (
//	    id               TEXT PRIMARY KEY,
//	    title            TEXT NOT NULL,
//	    content          TEXT NOT NULL,
//	    author_id        TEXT REFERENCES authors(id),
//	    tags             TEXT[] NOT NULL DEFAULT '{}',
//	    genre            TEXT NOT NULL DEFAULT '',
//	    views            INTEGER NOT NULL DEFAULT 0,
//	    avg_read_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    engagement_score DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    deleted          BOOLEAN NOT NULL DEFAULT FALSE
//	);
type Store struct {
	db      *postgres.Client
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	timeout time.Duration
	logger  *slog.Logger
}

var _ content.Source = (*Store)(nil)

// New creates a Store. Breaker transitions are published through m.
func New(db *postgres.Client, cfg config.SearchConfig, m *metrics.Metrics) *Store {
	countable := func(err error) bool {
		return !errors.Is(err, context.Canceled)
	}
	return &Store{
		db: db,
		breaker: resilience.NewCircuitBreaker("content-store", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     15 * time.Second,
			IsFailure:        countable,
			OnStateChange: func(name string, to resilience.State) {
				m.BreakerState(name, int(to))
			},
		}),
		retry: resilience.RetryConfig{
			MaxAttempts:  2,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     250 * time.Millisecond,
			Retryable:    countable,
		},
		timeout: cfg.UpstreamTimeout,
		logger:  slog.Default().With("component", "content-store"),
	}
}

// Ping checks database connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// PostsByTitle returns posts whose title equals title, ignoring case.
func (s *Store) PostsByTitle(ctx context.Context, title string, limit int) ([]Post, error) {
	return s.queryPosts(ctx, "posts-by-title",
		postColumns+` WHERE NOT p.deleted AND lower(p.title) = lower($1)
		ORDER BY p.created_at DESC LIMIT $2`,
		title, limit,
	)
}

// PostsByContent returns posts whose body contains term, ignoring case.
func (s *Store) PostsByContent(ctx context.Context, term string, limit int) ([]Post, error) {
	return s.queryPosts(ctx, "posts-by-content",
		postColumns+` WHERE NOT p.deleted AND p.content ILIKE $1 ESCAPE '\'
		ORDER BY p.created_at DESC LIMIT $2`,
		containsPattern(term), limit,
	)
}

// PostsByTag returns posts carrying tag. Tags are stored lowercase.
func (s *Store) PostsByTag(ctx context.Context, tag string, limit int) ([]Post, error) {
	return s.queryPosts(ctx, "posts-by-tag",
		postColumns+` WHERE NOT p.deleted AND $1 = ANY(p.tags)
		ORDER BY p.created_at DESC LIMIT $2`,
		strings.ToLower(tag), limit,
	)
}

// ListPosts returns the newest non-deleted posts.
func (s *Store) ListPosts(ctx context.Context, limit int) ([]Post, error) {
	return s.queryPosts(ctx, "list-posts",
		postColumns+` WHERE NOT p.deleted ORDER BY p.created_at DESC LIMIT $1`,
		limit,
	)
}

// AuthorByEmail returns the author registered under email, or nil.
func (s *Store) AuthorByEmail(ctx context.Context, email string) (*Author, error) {
	return s.queryAuthor(ctx, "author-by-email",
		authorColumns+` WHERE lower(email) = lower($1)`, email)
}

// AuthorByUsername returns the author with the given username, or nil.
func (s *Store) AuthorByUsername(ctx context.Context, username string) (*Author, error) {
	return s.queryAuthor(ctx, "author-by-username",
		authorColumns+` WHERE lower(username) = lower($1)`, username)
}

// ListAuthors returns up to limit authors ordered by name.
func (s *Store) ListAuthors(ctx context.Context, limit int) ([]Author, error) {
	return run(ctx, s, "list-authors", func(ctx context.Context) ([]Author, error) {
		rows, err := s.db.DB.QueryContext(ctx, authorColumns+` ORDER BY name LIMIT $1`, limit)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var authors []Author
		for rows.Next() {
			var a Author
			if err := rows.Scan(&a.ID, &a.Name, &a.Username, &a.Email, &a.About); err != nil {
				return nil, fmt.Errorf("scanning author row: %w", err)
			}
			authors = append(authors, a)
		}
		return authors, rows.Err()
	})
}

type (
	Post   = content.Post
	Author = content.Author
)

func (s *Store) queryPosts(ctx context.Context, op, query string, args ...any) ([]Post, error) {
	return run(ctx, s, op, func(ctx context.Context) ([]Post, error) {
		rows, err := s.db.DB.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var posts []Post
		for rows.Next() {
			var p Post
			if err := rows.Scan(
				&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.AuthorName, pq.Array(&p.Tags),
				&p.Genre, &p.Views, &p.AverageReadTimeSeconds, &p.EngagementScore, &p.CreatedAt, &p.Deleted,
			); err != nil {
				return nil, fmt.Errorf("scanning post row: %w", err)
			}
			posts = append(posts, p)
		}
		return posts, rows.Err()
	})
}

func (s *Store) queryAuthor(ctx context.Context, op, query string, arg string) (*Author, error) {
	return run(ctx, s, op, func(ctx context.Context) (*Author, error) {
		var a Author
		err := s.db.DB.QueryRowContext(ctx, query, arg).Scan(&a.ID, &a.Name, &a.Username, &a.Email, &a.About)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &a, nil
	})
}

// run executes fn under the breaker, retry and timeout policy. An attempt
// abandoned by its timeout may still finish in the background, so the
// result is handed over under a lock.
func run[T any](ctx context.Context, s *Store, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		mu  sync.Mutex
		out T
	)
	start := time.Now()
	err := s.breaker.Execute(func() error {
		return resilience.Retry(ctx, op, s.retry, func() error {
			return resilience.WithTimeout(ctx, s.timeout, op, func(ctx context.Context) error {
				v, err := fn(ctx)
				if err != nil {
					return err
				}
				mu.Lock()
				out = v
				mu.Unlock()
				return nil
			})
		})
	})
	if err != nil {
		s.logger.Warn("query failed", "op", op, "error", err)
		var zero T
		return zero, fmt.Errorf("%s: %w: %w", op, apperrors.ErrUpstreamUnavailable, err)
	}
	s.logger.Debug("query completed", "op", op, "duration", time.Since(start))
	mu.Lock()
	defer mu.Unlock()
	return out, nil
}

// containsPattern builds an ILIKE pattern matching term anywhere, with LIKE
// metacharacters in term escaped.
func containsPattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}
