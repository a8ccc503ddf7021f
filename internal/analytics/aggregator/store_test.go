package aggregator

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/postgres"
)

func TestLeaderboardColumnsRoundTrip(t *testing.T) {
	counts := []analytics.QueryCount{{Query: "react", Count: 9}, {Query: "go", Count: 4}}
	queries, totals := splitCounts(counts)
	assert.Equal(t, []string{"react", "go"}, queries)
	assert.Equal(t, []int64{9, 4}, totals)
	assert.Equal(t, counts, joinCounts(queries, totals))

	assert.Equal(t, []analytics.QueryCount{{Query: "react", Count: 9}}, joinCounts(queries, totals[:1]))
	assert.Empty(t, joinCounts(nil, nil))
}

func TestActivityTracksSearchesAndFeeds(t *testing.T) {
	agg := analytics.NewAggregator()
	before := activityOf(agg.Stats())
	agg.RecordFeed(analytics.FeedEvent{})
	assert.NotEqual(t, before, activityOf(agg.Stats()))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("CS_TEST_POSTGRES") == "" {
		t.Skip("CS_TEST_POSTGRES not set")
	}
	cfg, err := config.Load("")
	require.NoError(t, err)
	db, err := postgres.New(cfg.Postgres)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.DB.ExecContext(context.Background(), `DROP TABLE IF EXISTS analytics_snapshots`)
	require.NoError(t, err)
	s := NewStore(db)
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func countSnapshots(t *testing.T, s *Store) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.DB.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM analytics_snapshots`).Scan(&n))
	return n
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	latest, err := s.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	agg := analytics.NewAggregator()
	agg.RecordSearch(analytics.SearchEvent{Query: "react", Filter: "all", Returned: 3, LatencyMs: 12})
	first, err := s.SaveSnapshot(ctx, agg.Stats())
	require.NoError(t, err)
	agg.RecordSearch(analytics.SearchEvent{Query: "zzz", Filter: "tags", Returned: 0})
	agg.RecordSearch(analytics.SearchEvent{Query: "react", Filter: "all", Returned: 2, CacheHit: true})
	second, err := s.SaveSnapshot(ctx, agg.Stats())
	require.NoError(t, err)
	assert.Greater(t, second, first)

	latest, err = s.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second, latest.ID)
	assert.Equal(t, int64(3), latest.Stats.TotalSearches)
	assert.Equal(t, int64(1), latest.Stats.CacheHits)
	assert.Equal(t, int64(1), latest.Stats.ZeroResultCount)
	assert.Equal(t, map[string]int64{"all": 2, "tags": 1}, latest.Stats.ByFilter)
	assert.Equal(t, analytics.QueryCount{Query: "react", Count: 2}, latest.Stats.TopQueries[0])
	assert.Equal(t, []analytics.QueryCount{{Query: "zzz", Count: 1}}, latest.Stats.ZeroResultQueries)

	snaps, err := s.ListSnapshots(ctx, 10)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, first, snaps[1].ID)
	assert.Equal(t, int64(1), snaps[1].Stats.TotalSearches)
	assert.Empty(t, snaps[1].Stats.ZeroResultQueries)
}

func TestPeriodicSaveSkipsIdleTicks(t *testing.T) {
	s := openTestStore(t)
	agg := analytics.NewAggregator()
	agg.RecordSearch(analytics.SearchEvent{Query: "go", Filter: "all", Returned: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := s.StartPeriodicSave(ctx, agg, 10*time.Millisecond)
	require.Eventually(t, func() bool { return countSnapshots(t, s) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, countSnapshots(t, s))

	agg.RecordSearch(analytics.SearchEvent{Query: "rust", Filter: "all", Returned: 0})
	cancel()
	<-done
	assert.Equal(t, 2, countSnapshots(t, s))
}

func TestPeriodicSaveWritesFinalSnapshot(t *testing.T) {
	s := openTestStore(t)
	agg := analytics.NewAggregator()
	agg.RecordSearch(analytics.SearchEvent{Query: "go", Returned: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := s.StartPeriodicSave(ctx, agg, time.Hour)
	cancel()
	<-done

	latest, err := s.LatestSnapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(1), latest.Stats.TotalSearches)
}
