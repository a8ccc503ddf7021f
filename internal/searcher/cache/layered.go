package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/result"
)

// Layered fronts the shared Redis tier with the in-process tier. A Redis hit
// is promoted into memory for the entry's remaining lifetime, so neither tier
// extends an entry past its original expiry.
type Layered struct {
	local  *Memory
	shared *Redis
	hits   atomic.Int64
	misses atomic.Int64
}

var _ Cache = (*Layered)(nil)

func NewLayered(local *Memory, shared *Redis) *Layered {
	return &Layered{local: local, shared: shared}
}

func (l *Layered) Get(ctx context.Context, key string) ([]result.Result, bool) {
	if rs, ok := l.local.Get(ctx, key); ok {
		l.hits.Add(1)
		return rs, true
	}
	e, ok := l.shared.load(ctx, key)
	if !ok {
		l.misses.Add(1)
		return nil, false
	}
	l.local.put(key, entry{Results: clone(e.Results), CreatedAt: e.CreatedAt, TTL: e.TTL})
	l.hits.Add(1)
	return e.Results, true
}

func (l *Layered) Set(ctx context.Context, key string, results []result.Result, ttl time.Duration) {
	e := entry{Results: clone(results), CreatedAt: l.local.now(), TTL: normalizeTTL(ttl)}
	l.local.put(key, e)
	l.shared.put(ctx, key, e)
}

func (l *Layered) Invalidate(ctx context.Context, key string) {
	l.local.Invalidate(ctx, key)
	l.shared.Invalidate(ctx, key)
}

func (l *Layered) Clear(ctx context.Context) {
	l.local.Clear(ctx)
	l.shared.Clear(ctx)
}

// Stats reports the keys held by this replica and the combined hit rate.
func (l *Layered) Stats(ctx context.Context) Stats {
	s := l.local.Stats(ctx)
	s.Hits, s.Misses = l.hits.Load(), l.misses.Load()
	s.HitRate = hitRate(s.Hits, s.Misses)
	return s
}
