package feed

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/content"
	apperrors "github.com/Adithya-Monish-Kumar-K/content-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/metrics"
)

const maxRequestBytes = 1 << 20

// Request is the POST /api/v1/feed body. When History is set and Profile has
// no affinities, the profile is derived from History.
type Request struct {
	Profile    ViewerProfile  `json:"profile"`
	History    map[string]int `json:"history,omitempty"`
	Candidates []content.Post `json:"candidates,omitempty"`
	TopN       int            `json:"top_n,omitempty"`
}

type Response struct {
	Items []Scored `json:"items"`
}

type Handler struct {
	service   *Service
	collector *analytics.Collector
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewHandler(service *Service, collector *analytics.Collector, m *metrics.Metrics) *Handler {
	return &Handler{
		service:   service,
		collector: collector,
		metrics:   m,
		logger:    slog.Default().With("component", "feed-handler"),
	}
}

func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		h.writeError(w, apperrors.Invalid("decoding feed request: %v", err))
		return
	}
	if req.TopN < 0 {
		h.writeError(w, apperrors.Invalid("top_n must not be negative"))
		return
	}
	if len(req.Profile.GenreAffinity) == 0 && len(req.History) > 0 {
		req.Profile = ProfileFromHistory(req.History)
	}

	items, err := h.service.Build(ctx, req.Profile, req.Candidates, req.TopN)
	if err != nil {
		log.Error("feed build failed", "error", err)
		h.writeError(w, err)
		return
	}

	h.metrics.FeedRequested()
	h.collector.TrackFeed(analytics.FeedEvent{
		Type:       analytics.EventFeed,
		Candidates: len(req.Candidates),
		Returned:   len(items),
		LatencyMs:  time.Since(start).Milliseconds(),
		Timestamp:  time.Now().UTC(),
		RequestID:  logger.RequestID(ctx),
	})
	h.writeJSON(w, http.StatusOK, Response{Items: items})
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
