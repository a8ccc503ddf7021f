// Package router resolves a search query: it consults the result cache,
// dispatches to the entity adapters selected by the filter, scores and
// orders the merged hits and writes successful resolutions back to the
// cache. Identical concurrent queries share one upstream resolution.
package router

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/content"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/adapter"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/result"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/scorer"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/tracing"
)

// Sub-limit percentages for the all filter.
const (
	blendedPostsPercent    = 60
	blendedAuthorsPercent  = 30
	blendedTagsPercent     = 10
	titleHitAuthorsPercent = 40
	titleHitTagsPercent    = 10
)

// Cache status labels reported to metrics and analytics.
const (
	StatusHit     = "hit"
	StatusMiss    = "miss"
	StatusSkipped = "skipped"
)

// Adapters is the set of adapters the router dispatches to.
type Adapters struct {
	Posts      adapter.Adapter
	Title      adapter.Adapter
	Content    adapter.Adapter
	TitleExact adapter.Adapter
	Blended    adapter.Adapter
	Authors    adapter.Adapter
	Tags       adapter.Adapter
}

// NewAdapters builds the standard adapter set over src.
func NewAdapters(src content.Source, opts adapter.Options) Adapters {
	return Adapters{
		Posts:      adapter.NewPosts(src, adapter.ModePosts, opts),
		Title:      adapter.NewPosts(src, adapter.ModeTitle, opts),
		Content:    adapter.NewPosts(src, adapter.ModeContent, opts),
		TitleExact: adapter.NewPosts(src, adapter.ModeTitleExact, opts),
		Blended:    adapter.NewPosts(src, adapter.ModeBlended, opts),
		Authors:    adapter.NewAuthors(src, opts),
		Tags:       adapter.NewTags(src, opts),
	}
}

// Config tunes a Router.
type Config struct {
	CacheTTL time.Duration
	// MaxConcurrentQueries bounds adapter calls in flight across all searches.
	MaxConcurrentQueries int64
	Now                  func() time.Time
	Metrics              *metrics.Metrics
}

// Response is a resolved search.
type Response struct {
	Results  []result.Result
	CacheHit bool
	// Degraded is set when at least one sub-search failed. Degraded
	// responses are served but never cached.
	Degraded bool
}

// CacheStatus returns the metrics label for the response.
func (r Response) CacheStatus() string {
	if r.CacheHit {
		return StatusHit
	}
	return StatusMiss
}

type Router struct {
	adapters Adapters
	cache    cache.Cache
	ttl      time.Duration
	group    singleflight.Group
	sem      *semaphore.Weighted
	now      func() time.Time
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(adapters Adapters, c cache.Cache, cfg Config) *Router {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	if cfg.MaxConcurrentQueries <= 0 {
		cfg.MaxConcurrentQueries = 64
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Router{
		adapters: adapters,
		cache:    c,
		ttl:      cfg.CacheTTL,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrentQueries),
		now:      cfg.Now,
		metrics:  cfg.Metrics,
		logger:   slog.Default().With("component", "query-router"),
	}
}

// Search returns the ordered hits for q, at most q.Limit of them. It never
// fails: invalid queries and total upstream failure both yield an empty list.
func (r *Router) Search(ctx context.Context, q query.Query) []result.Result {
	return r.Resolve(ctx, q).Results
}

// Resolve is Search with cache and degradation details.
func (r *Router) Resolve(ctx context.Context, q query.Query) Response {
	start := time.Now()
	if !q.Valid() {
		r.metrics.ObserveSearch(string(q.Filter), StatusSkipped, time.Since(start).Seconds(), 0)
		return Response{Results: []result.Result{}}
	}

	key := q.CacheKey()
	if rs, ok := r.cache.Get(ctx, key); ok {
		r.metrics.CacheLookup(true)
		resp := Response{Results: rs, CacheHit: true}
		r.observe(ctx, q, resp, start)
		return resp
	}
	r.metrics.CacheLookup(false)

	v, _, shared := r.group.Do(key, func() (interface{}, error) {
		// The flight outlives any single caller, so it runs detached from
		// the first caller's cancellation; adapter calls stay bounded by the
		// data store's own timeouts.
		flightCtx := context.WithoutCancel(ctx)
		if rs, ok := r.cache.Get(flightCtx, key); ok {
			return Response{Results: rs, CacheHit: true}, nil
		}
		resp := r.dispatch(flightCtx, q)
		if !resp.Degraded && len(resp.Results) > 0 {
			r.cache.Set(flightCtx, key, resp.Results, r.ttl)
		}
		return resp, nil
	})
	resp := v.(Response)
	resp.Results = append([]result.Result{}, resp.Results...)
	if shared {
		logger.FromContext(ctx).Debug("search shared in-flight resolution", "key", key)
	}
	r.observe(ctx, q, resp, start)
	return resp
}

func (r *Router) observe(ctx context.Context, q query.Query, resp Response, start time.Time) {
	elapsed := time.Since(start)
	r.metrics.ObserveSearch(string(q.Filter), resp.CacheStatus(), elapsed.Seconds(), len(resp.Results))
	logger.FromContext(ctx).Info("search completed",
		"term", q.Term,
		"filter", q.Filter,
		"limit", q.Limit,
		"results", len(resp.Results),
		"cache", resp.CacheStatus(),
		"degraded", resp.Degraded,
		"latency_ms", elapsed.Milliseconds(),
	)
}

// dispatch performs the upstream resolution for a valid query.
func (r *Router) dispatch(ctx context.Context, q query.Query) Response {
	ctx, span := tracing.StartSpan(ctx, "search", logger.RequestID(ctx))
	span.SetAttr("filter", string(q.Filter))
	defer func() {
		span.End()
		span.Log(r.logger)
	}()

	var (
		rs       []result.Result
		degraded bool
		titleHit bool
		err      error
	)
	switch q.Filter {
	case query.FilterTitle:
		rs, err = r.call(ctx, r.adapters.Title, q)
	case query.FilterContent:
		rs, err = r.call(ctx, r.adapters.Content, q)
	case query.FilterTags:
		rs, err = r.call(ctx, r.adapters.Tags, q)
	case query.FilterAuthors:
		rs, err = r.call(ctx, r.adapters.Authors, q)
	case query.FilterPosts:
		rs, err = r.call(ctx, r.adapters.Posts, q)
	case query.FilterAll:
		rs, degraded, titleHit = r.searchAll(ctx, q)
	}
	degraded = degraded || err != nil

	// A title hit keeps its grouped layout; everything else is ranked globally.
	if !titleHit {
		scorer.ScoreAll(rs, q.Normalized(), r.now())
		result.Sort(rs)
	}
	rs = result.Truncate(rs, q.Limit)
	if rs == nil {
		rs = []result.Result{}
	}
	span.SetAttr("results", len(rs))
	return Response{Results: rs, Degraded: degraded}
}

// searchAll runs the two-phase all-filter strategy: an exact title hit is
// combined with a small author and tag sample; otherwise posts, authors and
// tags are searched together with a 60/30/10 split of the limit.
//
// On a title hit the list is the hit, then authors, then tags, each group
// scored and ranked on its own, and titleHit is true. That layout is not
// globally sorted: a tag equal to the term outscores the hit's 100.
func (r *Router) searchAll(ctx context.Context, q query.Query) (rs []result.Result, degraded, titleHit bool) {
	if !q.IsTagSearch() {
		hit, err := r.call(ctx, r.adapters.TitleExact, q.WithLimit(1))
		degraded = err != nil
		if len(hit) > 0 {
			lists, failed := r.fanOut(ctx,
				subSearch{r.adapters.Authors, q.WithLimit(query.SubLimit(q.Limit, titleHitAuthorsPercent))},
				subSearch{r.adapters.Tags, q.WithLimit(query.SubLimit(q.Limit, titleHitTagsPercent))},
			)
			term, now := q.Normalized(), r.now()
			groups := [][]result.Result{hit, lists[0], lists[1]}
			for _, g := range groups {
				scorer.ScoreAll(g, term, now)
				result.Sort(g)
			}
			return concat(groups...), failed, true
		}
	}
	lists, failed := r.fanOut(ctx,
		subSearch{r.adapters.Blended, q.WithLimit(query.SubLimit(q.Limit, blendedPostsPercent))},
		subSearch{r.adapters.Authors, q.WithLimit(query.SubLimit(q.Limit, blendedAuthorsPercent))},
		subSearch{r.adapters.Tags, q.WithLimit(query.SubLimit(q.Limit, blendedTagsPercent))},
	)
	return concat(lists...), degraded || failed, false
}

// ClearCache drops every cached result list.
func (r *Router) ClearCache(ctx context.Context, trigger string) {
	r.cache.Clear(ctx)
	r.metrics.CacheCleared(trigger)
	r.logger.Info("result cache cleared", "trigger", trigger)
}

// InvalidateCache drops one cached key.
func (r *Router) InvalidateCache(ctx context.Context, key, trigger string) {
	r.cache.Invalidate(ctx, key)
	r.metrics.CacheCleared(trigger)
	r.logger.Info("result cache key invalidated", "key", key, "trigger", trigger)
}

// CacheStats reports the cache's size and live keys.
func (r *Router) CacheStats(ctx context.Context) cache.Stats {
	return r.cache.Stats(ctx)
}
