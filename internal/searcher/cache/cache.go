// Package cache stores final search result lists under their query cache key
// for a fixed TTL. An entry is visible only while now < createdAt+ttl;
// expired entries read as absent and are deleted lazily, with an optional
// janitor sweeping them in the background.
package cache

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/result"
)

// DefaultTTL is used when Set is called with a non-positive ttl.
const DefaultTTL = 5 * time.Minute

// Cache is a TTL result cache. Implementations are safe for concurrent use
// and degrade backend failures to misses.
type Cache interface {
	Get(ctx context.Context, key string) ([]result.Result, bool)
	Set(ctx context.Context, key string, results []result.Result, ttl time.Duration)
	Invalidate(ctx context.Context, key string)
	Clear(ctx context.Context)
	Stats(ctx context.Context) Stats
}

// Stats is the operational view of a cache.
type Stats struct {
	Size    int      `json:"size"`
	Keys    []string `json:"keys"`
	Hits    int64    `json:"hits"`
	Misses  int64    `json:"misses"`
	HitRate float64  `json:"hit_rate"`
}

func hitRate(hits, misses int64) float64 {
	if total := hits + misses; total > 0 {
		return float64(hits) / float64(total)
	}
	return 0
}

// entry is the stored form of a cached list.
type entry struct {
	Results   []result.Result `json:"results"`
	CreatedAt time.Time       `json:"created_at"`
	TTL       time.Duration   `json:"ttl"`
}

func (e entry) live(now time.Time) bool {
	return now.Before(e.CreatedAt.Add(e.TTL))
}

func (e entry) remaining(now time.Time) time.Duration {
	return e.CreatedAt.Add(e.TTL).Sub(now)
}

// valid rejects entries that could not have been written by Set.
func (e entry) valid() bool {
	if e.TTL <= 0 || e.CreatedAt.IsZero() {
		return false
	}
	for _, r := range e.Results {
		if !r.Valid() {
			return false
		}
	}
	return true
}

// clone deep-copies the list, records included, so callers cannot mutate a
// cached entry.
func clone(rs []result.Result) []result.Result {
	return result.CloneAll(rs)
}

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
