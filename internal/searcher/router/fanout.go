package router

import (
	"context"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/adapter"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/result"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/tracing"
)

// subSearch is one adapter call in a fan-out.
type subSearch struct {
	adapter adapter.Adapter
	query   query.Query
}

// fanOut runs every sub-search concurrently and waits for all of them. The
// returned lists keep the order of subs; a failed sub-search contributes an
// empty list and sets degraded.
func (r *Router) fanOut(ctx context.Context, subs ...subSearch) (lists [][]result.Result, degraded bool) {
	type outcome struct {
		results []result.Result
		failed  bool
	}
	outcomes := make([]outcome, len(subs))
	var wg sync.WaitGroup
	for i, s := range subs {
		wg.Add(1)
		go func(idx int, s subSearch) {
			defer wg.Done()
			rs, err := r.call(ctx, s.adapter, s.query)
			outcomes[idx] = outcome{results: rs, failed: err != nil}
		}(i, s)
	}
	wg.Wait()

	lists = make([][]result.Result, len(subs))
	for i, o := range outcomes {
		lists[i] = o.results
		degraded = degraded || o.failed
	}
	return lists, degraded
}

// call runs a single adapter under the concurrency limit. Errors are logged
// and returned so the caller can mark the response degraded; results are
// always safe to use.
func (r *Router) call(ctx context.Context, a adapter.Adapter, q query.Query) ([]result.Result, error) {
	if q.Limit <= 0 {
		return nil, nil
	}
	ctx, span := tracing.StartChildSpan(ctx, "adapter."+a.Name())
	defer span.End()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.logger.Warn("sub-search not started", "adapter", a.Name(), "error", err)
		span.SetAttr("error", err.Error())
		return nil, err
	}
	defer r.sem.Release(1)

	rs, err := a.Search(ctx, q)
	if err != nil {
		r.logger.Warn("sub-search failed", "adapter", a.Name(), "term", q.Term, "error", err)
		span.SetAttr("error", err.Error())
		return nil, err
	}
	span.SetAttr("results", len(rs))
	return rs, nil
}

func concat(lists ...[]result.Result) []result.Result {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	out := make([]result.Result, 0, n)
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
