// Package invalidator keeps the result cache consistent with the data store
// by consuming post mutation events.
package invalidator

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/kafka"
)

// TriggerEvent labels cache clears caused by mutation events.
const TriggerEvent = "event"

type MutationType string

const (
	PostCreated MutationType = "created"
	PostUpdated MutationType = "updated"
	PostDeleted MutationType = "deleted"
)

// Mutation is a post-mutations message. CacheKey, when set, limits the
// invalidation to that one entry.
type Mutation struct {
	Type     MutationType `json:"type"`
	PostID   string       `json:"post_id"`
	CacheKey string       `json:"cache_key,omitempty"`
}

// Cache is the part of the router the invalidator drives.
type Cache interface {
	ClearCache(ctx context.Context, trigger string)
	InvalidateCache(ctx context.Context, key, trigger string)
}

type Invalidator struct {
	cache  Cache
	logger *slog.Logger
}

func New(c Cache) *Invalidator {
	return &Invalidator{
		cache:  c,
		logger: slog.Default().With("component", "cache-invalidator"),
	}
}

// Handler returns the Kafka message handler. Malformed and unknown events
// are logged and skipped so they do not block the partition.
func (i *Invalidator) Handler() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		m, err := kafka.DecodeJSON[Mutation](value)
		if err != nil {
			i.logger.Warn("skipping malformed mutation event", "key", string(key), "error", err)
			return nil
		}
		i.Apply(ctx, m)
		return nil
	}
}

// Apply invalidates the cache for one mutation.
func (i *Invalidator) Apply(ctx context.Context, m Mutation) {
	switch m.Type {
	case PostCreated, PostUpdated, PostDeleted:
	default:
		i.logger.Warn("ignoring unknown mutation type", "type", m.Type, "post_id", m.PostID)
		return
	}
	if m.CacheKey != "" {
		i.cache.InvalidateCache(ctx, m.CacheKey, TriggerEvent)
		return
	}
	// Any post change can alter results for arbitrary keys.
	i.cache.ClearCache(ctx, TriggerEvent)
	i.logger.Debug("cache cleared for mutation", "type", m.Type, "post_id", m.PostID)
}
