// Package adapter wraps the content data source in per-entity search
// adapters. Each adapter is an ordered list of lookup strategies (a direct
// server-side lookup first, a bounded bulk scan last) evaluated by
// FirstNonEmpty, and every hit carries a provisional relevance reflecting how
// it was found.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/result"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/metrics"
)

// Provisional relevances for direct and fallback routes.
const (
	RelevanceTitleDirect   = 100
	RelevanceTitleFallback = 80
	RelevanceContentDirect = 90
	RelevanceTagDirect     = 95
	RelevanceTagFallback   = 75
	RelevanceEmailExact    = 25
)

// Adapter searches one entity kind.
type Adapter interface {
	Name() string
	// Search returns hits for q, at most q.Limit of them. It returns an error
	// only when every strategy failed.
	Search(ctx context.Context, q query.Query) ([]result.Result, error)
}

// Strategy is one lookup attempt in an adapter's fallback chain.
type Strategy struct {
	Name string
	Run  func(ctx context.Context) ([]result.Result, error)
}

// Options configures the adapters.
type Options struct {
	// FallbackPageSize bounds the bulk listings scanned by fallback strategies.
	FallbackPageSize int
	Now              func() time.Time
	Metrics          *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.FallbackPageSize <= 0 {
		o.FallbackPageSize = 50
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// FirstNonEmpty evaluates strategies in order and returns the first
// non-empty result. A strategy that errors is logged and skipped. If no
// strategy produced results, the error is nil when at least one strategy
// succeeded with an empty list, and the joined strategy errors otherwise.
func FirstNonEmpty(ctx context.Context, logger *slog.Logger, strategies ...Strategy) ([]result.Result, string, error) {
	var errs []error
	succeeded := false
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rs, err := s.Run(ctx)
		if err != nil {
			logger.Warn("strategy failed", "strategy", s.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		succeeded = true
		if len(rs) > 0 {
			return rs, s.Name, nil
		}
	}
	if succeeded || len(errs) == 0 {
		return nil, "", nil
	}
	return nil, "", errors.Join(errs...)
}

// base carries what every adapter shares.
type base struct {
	name   string
	opts   Options
	logger *slog.Logger
}

func newBase(name string, opts Options) base {
	return base{
		name:   name,
		opts:   opts.withDefaults(),
		logger: slog.Default().With("component", "adapter", "adapter", name),
	}
}

func (b base) Name() string { return b.name }

// run evaluates a strategy chain and records failures.
func (b base) run(ctx context.Context, q query.Query, strategies ...Strategy) ([]result.Result, error) {
	rs, winner, err := FirstNonEmpty(ctx, b.logger, strategies...)
	if err != nil {
		b.opts.Metrics.AdapterFailed(b.name)
		return nil, fmt.Errorf("%s adapter: %w", b.name, err)
	}
	b.logger.Debug("adapter resolved",
		"term", q.Term,
		"strategy", winner,
		"results", len(rs),
	)
	return result.Truncate(rs, q.Limit), nil
}

// fixed assigns the same final relevance to every hit.
func fixed(rs []result.Result, relevance int) []result.Result {
	for i := range rs {
		rs[i] = rs[i].WithRelevance(relevance)
	}
	return rs
}
