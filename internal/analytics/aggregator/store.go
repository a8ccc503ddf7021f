// Package aggregator persists search analytics snapshots to PostgreSQL. The
// counters, latency percentiles and query leaderboards are stored as columns
// so snapshots can be compared in SQL without decoding documents.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/postgres"
)

// Schema creates the snapshot table. Query leaderboards are parallel arrays
// of query text and count, highest count first.
const Schema = `CREATE TABLE IF NOT EXISTS analytics_snapshots (
	id                  BIGSERIAL PRIMARY KEY,
	captured_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	total_searches      BIGINT NOT NULL,
	cache_hits          BIGINT NOT NULL,
	cache_misses        BIGINT NOT NULL,
	zero_results        BIGINT NOT NULL,
	degraded            BIGINT NOT NULL,
	feed_requests       BIGINT NOT NULL,
	avg_latency_ms      DOUBLE PRECISION NOT NULL,
	p50_latency_ms      BIGINT NOT NULL,
	p95_latency_ms      BIGINT NOT NULL,
	p99_latency_ms      BIGINT NOT NULL,
	queries_per_minute  DOUBLE PRECISION NOT NULL,
	by_filter           JSONB NOT NULL,
	top_queries         TEXT[] NOT NULL,
	top_query_counts    BIGINT[] NOT NULL,
	zero_result_queries TEXT[] NOT NULL,
	zero_result_counts  BIGINT[] NOT NULL
)`

const snapshotColumns = `id, captured_at, total_searches, cache_hits, cache_misses, zero_results,
	degraded, feed_requests, avg_latency_ms, p50_latency_ms, p95_latency_ms, p99_latency_ms,
	queries_per_minute, by_filter, top_queries, top_query_counts, zero_result_queries, zero_result_counts`

type Store struct {
	db     *postgres.Client
	now    func() time.Time
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default().With("component", "analytics-store"),
	}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating analytics_snapshots: %w", err)
	}
	return nil
}

// SaveSnapshot stores stats and returns the new snapshot's id.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) (int64, error) {
	byFilter, err := json.Marshal(stats.ByFilter)
	if err != nil {
		return 0, fmt.Errorf("encoding filter counts: %w", err)
	}
	topQueries, topCounts := splitCounts(stats.TopQueries)
	zeroQueries, zeroCounts := splitCounts(stats.ZeroResultQueries)

	var id int64
	err = s.db.DB.QueryRowContext(ctx,
		`INSERT INTO analytics_snapshots (captured_at, total_searches, cache_hits, cache_misses,
			zero_results, degraded, feed_requests, avg_latency_ms, p50_latency_ms, p95_latency_ms,
			p99_latency_ms, queries_per_minute, by_filter, top_queries, top_query_counts,
			zero_result_queries, zero_result_counts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`,
		s.now(), stats.TotalSearches, stats.CacheHits, stats.CacheMisses,
		stats.ZeroResultCount, stats.DegradedCount, stats.FeedRequests, stats.AvgLatencyMs,
		stats.P50LatencyMs, stats.P95LatencyMs, stats.P99LatencyMs, stats.QueriesPerMinute,
		byFilter, pq.Array(topQueries), pq.Array(topCounts),
		pq.Array(zeroQueries), pq.Array(zeroCounts),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("saving analytics snapshot: %w", err)
	}

	s.logger.Info("analytics snapshot saved",
		"id", id,
		"total_searches", stats.TotalSearches,
		"zero_result_count", stats.ZeroResultCount,
	)
	return id, nil
}

// LatestSnapshot returns nil, nil when nothing has been saved yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.Snapshot, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT 1`)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	return &snap, nil
}

// ListSnapshots returns the last limit snapshots, newest first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.Snapshot, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []analytics.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// StartPeriodicSave snapshots agg every interval, skipping ticks with no new
// searches or feed requests, and takes a final snapshot when ctx is
// cancelled. The returned channel is closed once that final save is done.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last activity
		saved := false
		save := func(ctx context.Context, reason string) {
			stats := agg.Stats()
			cur := activityOf(stats)
			if saved && cur == last {
				s.logger.Debug("no search activity since last snapshot", "reason", reason)
				return
			}
			if _, err := s.SaveSnapshot(ctx, stats); err != nil {
				s.logger.Error("analytics snapshot failed", "reason", reason, "error", err)
				return
			}
			last, saved = cur, true
		}

		for {
			select {
			case <-ticker.C:
				save(ctx, "periodic")
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				save(shutdownCtx, "shutdown")
				cancel()
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
	return done
}

type activity struct {
	searches int64
	feeds    int64
}

func activityOf(stats analytics.AggregatedStats) activity {
	return activity{searches: stats.TotalSearches, feeds: stats.FeedRequests}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (analytics.Snapshot, error) {
	var (
		snap                    analytics.Snapshot
		byFilter                []byte
		topQueries, zeroQueries []string
		topCounts, zeroCounts   []int64
	)
	st := &snap.Stats
	err := row.Scan(&snap.ID, &snap.CapturedAt, &st.TotalSearches, &st.CacheHits, &st.CacheMisses,
		&st.ZeroResultCount, &st.DegradedCount, &st.FeedRequests, &st.AvgLatencyMs,
		&st.P50LatencyMs, &st.P95LatencyMs, &st.P99LatencyMs, &st.QueriesPerMinute, &byFilter,
		pq.Array(&topQueries), pq.Array(&topCounts), pq.Array(&zeroQueries), pq.Array(&zeroCounts))
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(byFilter, &st.ByFilter); err != nil {
		return snap, fmt.Errorf("decoding filter counts: %w", err)
	}
	st.TopQueries = joinCounts(topQueries, topCounts)
	st.ZeroResultQueries = joinCounts(zeroQueries, zeroCounts)
	return snap, nil
}

func splitCounts(counts []analytics.QueryCount) ([]string, []int64) {
	queries := make([]string, len(counts))
	totals := make([]int64, len(counts))
	for i, c := range counts {
		queries[i] = c.Query
		totals[i] = c.Count
	}
	return queries, totals
}

func joinCounts(queries []string, totals []int64) []analytics.QueryCount {
	n := min(len(queries), len(totals))
	out := make([]analytics.QueryCount, n)
	for i := range n {
		out[i] = analytics.QueryCount{Query: queries[i], Count: totals[i]}
	}
	return out
}
