package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/result"
	pkgredis "github.com/Adithya-Monish-Kumar-K/content-search/pkg/redis"
)

const keyPrefix = "search:"

// Store is the subset of the Redis client the shared tier needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

var _ Store = (*pkgredis.Client)(nil)

// Redis is the result cache tier shared by every replica. Entries are stored
// as JSON with a Redis expiry equal to their TTL; the stored createdAt is
// still checked on read so both tiers agree on visibility.
type Redis struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

var _ Cache = (*Redis)(nil)

func NewRedis(store Store, now func() time.Time) *Redis {
	if now == nil {
		now = time.Now
	}
	return &Redis{
		store:  store,
		now:    now,
		logger: slog.Default().With("component", "result-cache", "tier", "redis"),
	}
}

func (c *Redis) Get(ctx context.Context, key string) ([]result.Result, bool) {
	e, ok := c.load(ctx, key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.Results, true
}

// load reads and validates an entry. Corrupt and expired entries are deleted
// and reported absent.
func (c *Redis) load(ctx context.Context, key string) (entry, bool) {
	data, err := c.store.Get(ctx, keyPrefix+key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		return entry{}, false
	}
	var e entry
	if err := json.Unmarshal([]byte(data), &e); err != nil || !e.valid() {
		c.logger.Warn("discarding unparseable cache entry", "key", key, "error", err)
		c.drop(ctx, key)
		return entry{}, false
	}
	if !e.live(c.now()) {
		c.drop(ctx, key)
		return entry{}, false
	}
	return e, true
}

func (c *Redis) Set(ctx context.Context, key string, results []result.Result, ttl time.Duration) {
	c.put(ctx, key, entry{Results: results, CreatedAt: c.now(), TTL: normalizeTTL(ttl)})
}

func (c *Redis) put(ctx context.Context, key string, e entry) {
	data, err := json.Marshal(e)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, keyPrefix+key, data, e.TTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *Redis) Invalidate(ctx context.Context, key string) {
	c.drop(ctx, key)
}

func (c *Redis) drop(ctx context.Context, key string) {
	if err := c.store.Del(ctx, keyPrefix+key); err != nil {
		c.logger.Error("cache delete failed", "key", key, "error", err)
	}
}

func (c *Redis) Clear(ctx context.Context) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		c.logger.Error("cache clear failed", "error", err)
		return
	}
	c.logger.Info("cache cleared", "keys_deleted", deleted)
}

func (c *Redis) Stats(ctx context.Context) Stats {
	raw, err := c.store.Keys(ctx, keyPrefix+"*")
	if err != nil {
		c.logger.Error("cache key scan failed", "error", err)
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, strings.TrimPrefix(k, keyPrefix))
	}
	sort.Strings(keys)
	hits, misses := c.hits.Load(), c.misses.Load()
	return Stats{
		Size:    len(keys),
		Keys:    keys,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate(hits, misses),
	}
}
