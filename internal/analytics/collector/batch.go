// Package collector buffers search analytics events and publishes them to
// Kafka in batches. Events are keyed by search filter so one filter's events
// stay on one partition.
package collector

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/metrics"
)

// shedOrder is the order event types are dropped in when the buffer is
// full. Zero-result events back the zero-result query report and go last.
var shedOrder = []analytics.EventType{
	analytics.EventCacheHit,
	analytics.EventCacheMiss,
	analytics.EventSearch,
	analytics.EventFeed,
	analytics.EventZeroResult,
}

// Publisher writes a batch of events; *kafka.Producer satisfies it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Config configures a BatchCollector. MaxBuffered caps events held across
// failed flushes and defaults to three batches.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	MaxBuffered   int
	Metrics       *metrics.Metrics
}

type entry struct {
	event kafka.Event
	kind  analytics.EventType
}

// BatchCollector satisfies analytics.Sink. It flushes when BatchSize events
// are waiting or every FlushInterval, whichever comes first.
type BatchCollector struct {
	publisher Publisher
	cfg       Config
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu       sync.Mutex
	buffer   []entry
	flushing atomic.Bool
	done     chan struct{}
}

func New(publisher Publisher, cfg Config) *BatchCollector {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.MaxBuffered < cfg.BatchSize {
		cfg.MaxBuffered = cfg.BatchSize * 3
	}
	return &BatchCollector{
		publisher: publisher,
		cfg:       cfg,
		metrics:   cfg.Metrics,
		logger:    slog.Default().With("component", "analytics-batcher"),
		buffer:    make([]entry, 0, cfg.BatchSize),
		done:      make(chan struct{}),
	}
}

// Start launches the flush loop. Cancelling ctx triggers a final flush.
func (bc *BatchCollector) Start(ctx context.Context) {
	go func() {
		defer close(bc.done)
		ticker := time.NewTicker(bc.cfg.FlushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				bc.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				bc.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	bc.logger.Info("analytics batcher started",
		"batch_size", bc.cfg.BatchSize,
		"flush_interval", bc.cfg.FlushInterval,
		"max_buffered", bc.cfg.MaxBuffered,
	)
}

// Track buffers one event under key, the search filter for search events.
func (bc *BatchCollector) Track(key string, value any) {
	bc.mu.Lock()
	bc.buffer = append(bc.buffer, entry{event: kafka.Event{Key: key, Value: value}, kind: kindOf(value)})
	dropped := bc.shedLocked()
	n := len(bc.buffer)
	bc.mu.Unlock()

	bc.reportShed(dropped)
	bc.metrics.AnalyticsBacklog(n)
	if n >= bc.cfg.BatchSize && bc.flushing.CompareAndSwap(false, true) {
		go func() {
			defer bc.flushing.Store(false)
			bc.flush(context.Background())
		}()
	}
}

// Close waits for the flush loop started by Start to finish.
func (bc *BatchCollector) Close() {
	<-bc.done
}

func (bc *BatchCollector) BufferLen() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.buffer)
}

func (bc *BatchCollector) flush(ctx context.Context) {
	bc.mu.Lock()
	if len(bc.buffer) == 0 {
		bc.mu.Unlock()
		return
	}
	batch := bc.buffer
	bc.buffer = make([]entry, 0, bc.cfg.BatchSize)
	bc.mu.Unlock()

	events := make([]kafka.Event, len(batch))
	perKey := make(map[string]int)
	for i, e := range batch {
		events[i] = e.event
		perKey[e.event.Key]++
	}

	if err := bc.publisher.PublishBatch(ctx, events); err != nil {
		bc.logger.Error("analytics batch publish failed", "events", len(batch), "error", err)
		bc.mu.Lock()
		bc.buffer = append(batch, bc.buffer...)
		dropped := bc.shedLocked()
		n := len(bc.buffer)
		bc.mu.Unlock()
		bc.reportShed(dropped)
		bc.metrics.AnalyticsBacklog(n)
		return
	}

	for key, n := range perKey {
		bc.metrics.AnalyticsPublishedBy(key, n)
	}
	bc.metrics.AnalyticsBacklog(bc.BufferLen())
	bc.logger.Debug("analytics batch published", "events", len(batch), "filters", len(perKey))
}

// shedLocked drops the oldest events of the least useful type until the
// buffer fits MaxBuffered.
func (bc *BatchCollector) shedLocked() map[analytics.EventType]int {
	over := len(bc.buffer) - bc.cfg.MaxBuffered
	if over <= 0 {
		return nil
	}
	dropped := make(map[analytics.EventType]int)
	for _, kind := range shedOrder {
		if over == 0 {
			break
		}
		kept := bc.buffer[:0]
		for _, e := range bc.buffer {
			if over > 0 && e.kind == kind {
				dropped[kind]++
				over--
				continue
			}
			kept = append(kept, e)
		}
		bc.buffer = kept
	}
	return dropped
}

func (bc *BatchCollector) reportShed(dropped map[analytics.EventType]int) {
	for kind, n := range dropped {
		bc.metrics.AnalyticsShed(string(kind), n)
		bc.logger.Warn("analytics buffer full, events dropped", "type", kind, "dropped", n)
	}
}

func kindOf(v any) analytics.EventType {
	switch e := v.(type) {
	case analytics.SearchEvent:
		return searchKind(e.Type)
	case *analytics.SearchEvent:
		return searchKind(e.Type)
	case analytics.FeedEvent, *analytics.FeedEvent:
		return analytics.EventFeed
	}
	return analytics.EventSearch
}

func searchKind(t analytics.EventType) analytics.EventType {
	switch t {
	case analytics.EventCacheHit, analytics.EventCacheMiss, analytics.EventZeroResult:
		return t
	}
	return analytics.EventSearch
}
