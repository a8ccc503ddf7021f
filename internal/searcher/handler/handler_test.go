package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/content"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/content/contenttest"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/adapter"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/result"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/router"
)

type searchBody struct {
	Query    string          `json:"query"`
	Filter   string          `json:"filter"`
	Limit    int             `json:"limit"`
	Results  []result.Result `json:"results"`
	CacheHit bool            `json:"cache_hit"`
}

func fixture() *contenttest.Source {
	created := time.Now().Add(-30 * 24 * time.Hour)
	return &contenttest.Source{
		Posts: []content.Post{
			{ID: "p1", Title: "golang", Content: "channels", Tags: []string{"golang"}, CreatedAt: created},
			{ID: "p2", Title: "generics in golang", Content: "type params", Tags: []string{"golang", "generics"}, CreatedAt: created},
		},
		Authors: []content.Author{
			{ID: "a1", Name: "Rob", Username: "golang", Email: "rob@example.com"},
		},
	}
}

func newTestHandler(t *testing.T, src *contenttest.Source) (*Handler, *analytics.Aggregator) {
	t.Helper()
	mem, err := cache.NewMemory(cache.MemoryConfig{MaxEntries: 100})
	require.NoError(t, err)
	rt := router.New(router.NewAdapters(src, adapter.Options{FallbackPageSize: 50}), mem, router.Config{CacheTTL: time.Minute})
	agg := analytics.NewAggregator()
	h := New(rt, analytics.NewCollector(agg, nil, true), Config{
		DefaultLimit:  10,
		MaxResults:    25,
		DebounceDelay: 10 * time.Millisecond,
	})
	return h, agg
}

func newMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/search/live", h.Live)
	return mux
}

func doSearch(t *testing.T, mux http.Handler, target string) (*httptest.ResponseRecorder, searchBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body searchBody
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestSearchEndpoint(t *testing.T) {
	h, agg := newTestHandler(t, fixture())
	mux := newMux(h)

	rec, body := doSearch(t, mux, "/api/v1/search?q=golang&filter=title")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "golang", body.Query)
	assert.Equal(t, "title", body.Filter)
	assert.Equal(t, 10, body.Limit)
	require.NotEmpty(t, body.Results)
	assert.Equal(t, "p1", body.Results[0].Post.ID)
	assert.False(t, body.CacheHit)

	_, again := doSearch(t, mux, "/api/v1/search?q=golang&filter=title")
	assert.True(t, again.CacheHit)

	stats := agg.Stats()
	assert.Equal(t, int64(2), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
}

func TestSearchDefaultsAndClamping(t *testing.T) {
	h, _ := newTestHandler(t, fixture())
	mux := newMux(h)

	_, body := doSearch(t, mux, "/api/v1/search?q=golang&limit=500")
	assert.Equal(t, 25, body.Limit)
	assert.Equal(t, "all", body.Filter)

	_, body = doSearch(t, mux, "/api/v1/search?q=golang&filter=bogus")
	assert.Equal(t, "none", body.Filter)
	assert.Empty(t, body.Results)
}

func TestSearchRejectsBadInput(t *testing.T) {
	h, _ := newTestHandler(t, fixture())
	mux := newMux(h)

	rec, _ := doSearch(t, mux, "/api/v1/search?filter=all")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doSearch(t, mux, "/api/v1/search?q=golang&limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doSearch(t, mux, "/api/v1/search?q=golang&limit=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBlankTermReturnsEmptyWithoutIO(t *testing.T) {
	src := fixture()
	h, agg := newTestHandler(t, src)
	rec, body := doSearch(t, newMux(h), "/api/v1/search?q=%20%20")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body.Results)
	assert.Zero(t, src.TotalCalls())
	assert.Zero(t, agg.Stats().TotalSearches)
}

func TestCacheAdministration(t *testing.T) {
	h, _ := newTestHandler(t, fixture())
	mux := newMux(h)
	doSearch(t, mux, "/api/v1/search?q=golang&filter=tags")
	doSearch(t, mux, "/api/v1/search?q=golang&filter=title")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats cache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Size)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate?q=golang&filter=tags", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "golang|tags|10")
	assert.Equal(t, 1, h.router.CacheStats(t.Context()).Size)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/clear", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, h.router.CacheStats(t.Context()).Size)
}

type liveSnapshot struct {
	State      string          `json:"state"`
	Generation uint64          `json:"generation"`
	Loading    bool            `json:"loading"`
	Results    []result.Result `json:"results"`
}

func readUntil(t *testing.T, conn *websocket.Conn, state string) liveSnapshot {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var snap liveSnapshot
		require.NoError(t, conn.ReadJSON(&snap))
		if snap.State == state {
			return snap
		}
	}
}

func TestLiveSession(t *testing.T) {
	h, _ := newTestHandler(t, fixture())
	srv := httptest.NewServer(newMux(h))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/search/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(liveFrame{Term: "golang", Filter: "title"}))

	resolved := readUntil(t, conn, "resolved")
	assert.False(t, resolved.Loading)
	require.NotEmpty(t, resolved.Results)
	assert.Equal(t, "p1", resolved.Results[0].Post.ID)

	require.NoError(t, conn.WriteJSON(liveFrame{Clear: true}))
	readUntil(t, conn, "cancelled")
	idle := readUntil(t, conn, "idle")
	assert.Empty(t, idle.Results)
}
