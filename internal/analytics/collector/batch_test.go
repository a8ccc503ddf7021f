package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/metrics"
)

type fakePublisher struct {
	mu      sync.Mutex
	fail    error
	batches [][]kafka.Event
}

func (p *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.batches = append(p.batches, events)
	return nil
}

func (p *fakePublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func search(query, filter string, returned int, cacheHit bool) analytics.SearchEvent {
	return analytics.NewSearchEvent(query, filter, 10, returned, cacheHit, false, time.Millisecond, "req")
}

func TestFlushOnBatchSize(t *testing.T) {
	pub := &fakePublisher{}
	bc := New(pub, Config{BatchSize: 3, FlushInterval: time.Hour})
	for _, q := range []string{"go", "react", "rust"} {
		bc.Track("all", search(q, "all", 1, false))
	}
	require.Eventually(t, func() bool { return pub.published() == 3 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, bc.BufferLen())
}

func TestFinalFlushOnShutdown(t *testing.T) {
	pub := &fakePublisher{}
	bc := New(pub, Config{BatchSize: 100, FlushInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	bc.Start(ctx)
	bc.Track("title", search("go", "title", 1, false))
	bc.Track("feed", analytics.FeedEvent{Type: analytics.EventFeed, Returned: 6})
	cancel()
	bc.Close()
	assert.Equal(t, 2, pub.published())
}

func TestPublishedCountedPerFilter(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	pub := &fakePublisher{}
	bc := New(pub, Config{BatchSize: 100, FlushInterval: time.Hour, Metrics: m})
	bc.Track("all", search("go", "all", 1, false))
	bc.Track("all", search("react", "all", 2, true))
	bc.Track("tags", search("#go", "tags", 1, false))
	bc.flush(context.Background())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnalyticsPublished.WithLabelValues("all")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalyticsPublished.WithLabelValues("tags")))
	assert.Zero(t, testutil.ToFloat64(m.AnalyticsBuffered))
}

func TestFailedFlushShedsCacheHitsFirst(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	pub := &fakePublisher{fail: errors.New("broker down")}
	bc := New(pub, Config{BatchSize: 4, FlushInterval: time.Hour, MaxBuffered: 4, Metrics: m})

	bc.mu.Lock()
	for _, ev := range []analytics.SearchEvent{
		search("zzz", "all", 0, false),
		search("go", "all", 3, true),
		search("go", "all", 3, false),
		search("qqq", "title", 0, false),
		search("go", "all", 3, true),
		search("react", "all", 5, true),
	} {
		bc.buffer = append(bc.buffer, entry{event: kafka.Event{Key: ev.Filter, Value: ev}, kind: kindOf(ev)})
	}
	bc.mu.Unlock()

	bc.flush(context.Background())

	require.Equal(t, 4, bc.BufferLen())
	var kinds []analytics.EventType
	for _, e := range bc.buffer {
		kinds = append(kinds, e.kind)
	}
	assert.Equal(t, []analytics.EventType{
		analytics.EventZeroResult, analytics.EventCacheMiss, analytics.EventZeroResult, analytics.EventCacheHit,
	}, kinds)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnalyticsDropped.WithLabelValues(string(analytics.EventCacheHit))))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.AnalyticsBuffered))
}

func TestZeroResultEventsSurviveOverflow(t *testing.T) {
	pub := &fakePublisher{fail: errors.New("broker down")}
	bc := New(pub, Config{BatchSize: 100, FlushInterval: time.Hour, MaxBuffered: 100})
	// Hold off size-triggered flushes so only the explicit one runs.
	bc.flushing.Store(true)
	for i := 0; i < 90; i++ {
		bc.Track("all", search("go", "all", 3, false))
	}
	for i := 0; i < 20; i++ {
		bc.Track("all", search("nothing", "all", 0, false))
	}
	bc.flush(context.Background())

	require.Equal(t, 100, bc.BufferLen())
	zero := 0
	for _, e := range bc.buffer {
		if e.kind == analytics.EventZeroResult {
			zero++
		}
	}
	assert.Equal(t, 20, zero)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, analytics.EventCacheHit, kindOf(search("go", "all", 1, true)))
	assert.Equal(t, analytics.EventZeroResult, kindOf(&analytics.SearchEvent{Type: analytics.EventZeroResult}))
	assert.Equal(t, analytics.EventFeed, kindOf(analytics.FeedEvent{}))
	assert.Equal(t, analytics.EventSearch, kindOf(analytics.SearchEvent{}))
	assert.Equal(t, analytics.EventSearch, kindOf("raw"))
}
