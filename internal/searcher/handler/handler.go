// Package handler exposes the query router over HTTP: one-shot searches,
// cache administration and a WebSocket search-as-you-type session.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/result"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/router"
	apperrors "github.com/Adithya-Monish-Kumar-K/content-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/middleware"
)

// Config tunes a Handler. AllowOrigins are the cross-origin pages allowed to
// open live sessions; without any, only same-origin upgrades succeed.
type Config struct {
	DefaultLimit  int
	MaxResults    int
	DebounceDelay time.Duration
	AllowOrigins  []string
	Metrics       *metrics.Metrics
}

type Handler struct {
	router    *router.Router
	collector *analytics.Collector
	cfg       Config
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// New creates a Handler. collector may be nil.
func New(rt *router.Router, collector *analytics.Collector, cfg Config) *Handler {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxResults < cfg.DefaultLimit {
		cfg.MaxResults = cfg.DefaultLimit
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}
	if len(cfg.AllowOrigins) > 0 {
		upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || middleware.OriginAllowed(cfg.AllowOrigins, origin) {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		}
	}
	return &Handler{
		router:    rt,
		collector: collector,
		cfg:       cfg,
		upgrader:  upgrader,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/clear", h.CacheClear)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

type searchResponse struct {
	Query     string          `json:"query"`
	Filter    query.Filter    `json:"filter"`
	Limit     int             `json:"limit"`
	Results   []result.Result `json:"results"`
	CacheHit  bool            `json:"cache_hit"`
	Degraded  bool            `json:"degraded,omitempty"`
	LatencyMs int64           `json:"latency_ms"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	params := r.URL.Query()
	if !params.Has("q") {
		h.writeError(w, apperrors.Invalid("query parameter 'q' is required"))
		return
	}
	q, err := h.buildQuery(params.Get("q"), params.Get("filter"), params.Get("limit"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := h.router.Resolve(ctx, q)
	latency := time.Since(start)

	log.Info("search completed",
		"query", q.Term,
		"filter", q.Filter,
		"returned", len(resp.Results),
		"cache_hit", resp.CacheHit,
		"degraded", resp.Degraded,
		"latency_ms", latency.Milliseconds(),
	)
	if q.Valid() {
		h.collector.TrackSearch(analytics.NewSearchEvent(
			q.Term, string(q.Filter), q.Limit, len(resp.Results),
			resp.CacheHit, resp.Degraded, latency, logger.RequestID(ctx),
		))
	}

	h.writeJSON(w, http.StatusOK, searchResponse{
		Query:     q.Term,
		Filter:    q.Filter,
		Limit:     q.Limit,
		Results:   resp.Results,
		CacheHit:  resp.CacheHit,
		Degraded:  resp.Degraded,
		LatencyMs: latency.Milliseconds(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.router.CacheStats(r.Context()))
}

func (h *Handler) CacheClear(w http.ResponseWriter, r *http.Request) {
	h.router.ClearCache(r.Context(), "api")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// CacheInvalidate drops one entry, named either by ?key= or by the same
// q, filter and limit parameters a search would use.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	key := params.Get("key")
	if key == "" {
		if !params.Has("q") {
			h.writeError(w, apperrors.Invalid("either 'key' or 'q' is required"))
			return
		}
		q, err := h.buildQuery(params.Get("q"), params.Get("filter"), params.Get("limit"))
		if err != nil {
			h.writeError(w, err)
			return
		}
		key = q.CacheKey()
	}
	h.router.InvalidateCache(r.Context(), key, "api")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated", "key": key})
}

// buildQuery applies the default limit and clamps to MaxResults.
func (h *Handler) buildQuery(term, filter, limitStr string) (query.Query, error) {
	limit := h.cfg.DefaultLimit
	if limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			return query.Query{}, apperrors.Invalid("limit must be a positive integer, got %q", limitStr)
		}
		limit = parsed
	}
	return h.newQuery(term, filter, limit), nil
}

func (h *Handler) newQuery(term, filter string, limit int) query.Query {
	if limit <= 0 {
		limit = h.cfg.DefaultLimit
	}
	if limit > h.cfg.MaxResults {
		limit = h.cfg.MaxResults
	}
	return query.New(term, query.ParseFilter(filter), limit)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": err.Error()})
}
