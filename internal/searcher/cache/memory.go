package cache

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/result"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/metrics"
)

// MemoryConfig configures the in-process tier.
type MemoryConfig struct {
	// MaxEntries bounds the number of keys; the least recently used entry is
	// evicted beyond it.
	MaxEntries int
	Now        func() time.Time
	Metrics    *metrics.Metrics
}

// Memory is an in-process LRU bounded TTL cache.
type Memory struct {
	entries *lru.Cache[string, entry]
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

var _ Cache = (*Memory)(nil)

func NewMemory(cfg MemoryConfig) (*Memory, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	entries, err := lru.New[string, entry](cfg.MaxEntries)
	if err != nil {
		return nil, err
	}
	return &Memory{
		entries: entries,
		now:     cfg.Now,
		metrics: cfg.Metrics,
		logger:  slog.Default().With("component", "result-cache", "tier", "memory"),
	}, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]result.Result, bool) {
	e, ok := m.entries.Get(key)
	if !ok {
		m.misses.Add(1)
		return nil, false
	}
	if !e.live(m.now()) {
		m.entries.Remove(key)
		m.sizeChanged()
		m.misses.Add(1)
		return nil, false
	}
	m.hits.Add(1)
	return clone(e.Results), true
}

func (m *Memory) Set(_ context.Context, key string, results []result.Result, ttl time.Duration) {
	m.put(key, entry{Results: clone(results), CreatedAt: m.now(), TTL: normalizeTTL(ttl)})
}

func (m *Memory) put(key string, e entry) {
	m.entries.Add(key, e)
	m.sizeChanged()
}

func (m *Memory) Invalidate(_ context.Context, key string) {
	m.entries.Remove(key)
	m.sizeChanged()
}

func (m *Memory) Clear(_ context.Context) {
	m.entries.Purge()
	m.sizeChanged()
}

// Stats lists the live keys in sorted order.
func (m *Memory) Stats(_ context.Context) Stats {
	now := m.now()
	keys := make([]string, 0, m.entries.Len())
	for _, k := range m.entries.Keys() {
		if e, ok := m.entries.Peek(k); ok && e.live(now) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	hits, misses := m.hits.Load(), m.misses.Load()
	return Stats{
		Size:    len(keys),
		Keys:    keys,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate(hits, misses),
	}
}

// Sweep deletes every expired entry and returns how many were removed.
func (m *Memory) Sweep() int {
	now := m.now()
	removed := 0
	for _, k := range m.entries.Keys() {
		if e, ok := m.entries.Peek(k); ok && !e.live(now) {
			m.entries.Remove(k)
			removed++
		}
	}
	if removed > 0 {
		m.sizeChanged()
	}
	return removed
}

// StartJanitor sweeps expired entries every interval until ctx is done.
func (m *Memory) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					m.logger.Debug("expired entries swept", "removed", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	m.logger.Info("cache janitor started", "interval", interval)
}

func (m *Memory) sizeChanged() {
	m.metrics.CacheSize(m.entries.Len())
}
