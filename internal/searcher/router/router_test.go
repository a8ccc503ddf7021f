package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/content"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/content/contenttest"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/adapter"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/result"
)

var errDown = errors.New("upstream down")

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newRouter(t *testing.T, src content.Source) (*Router, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	mem, err := cache.NewMemory(cache.MemoryConfig{MaxEntries: 100, Now: clk.Now})
	require.NoError(t, err)
	adapters := NewAdapters(src, adapter.Options{FallbackPageSize: 50, Now: clk.Now})
	return New(adapters, mem, Config{CacheTTL: 5 * time.Minute, Now: clk.Now}), clk
}

// reactFixture has one post titled exactly "react", ten authors and two
// react-ish tags.
func reactFixture() *contenttest.Source {
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &contenttest.Source{
		Posts: []content.Post{
			{ID: "p1", Title: "react", Content: "intro", Tags: []string{"frontend"}, CreatedAt: old},
			{ID: "p2", Title: "react hooks", Content: "react state", Tags: []string{"reactjs"}, CreatedAt: old},
			{ID: "p3", Title: "server components", Content: "react on the server", Tags: []string{"reactjs", "react-native"}, CreatedAt: old},
			{ID: "p4", Title: "go", Content: "channels", Tags: []string{"golang"}, CreatedAt: old},
		},
	}
	for i := 0; i < 10; i++ {
		src.Authors = append(src.Authors, content.Author{
			ID:       fmt.Sprintf("a%d", i),
			Name:     fmt.Sprintf("Author %d", i),
			Username: fmt.Sprintf("author%d", i),
			Email:    fmt.Sprintf("author%d@example.com", i),
			About:    "writes react tutorials",
		})
	}
	return src
}

func kinds(rs []result.Result) map[result.Kind]int {
	out := make(map[result.Kind]int)
	for _, r := range rs {
		out[r.Kind]++
	}
	return out
}

func TestTitleHitScenario(t *testing.T) {
	src := reactFixture()
	r, _ := newRouter(t, src)

	rs := r.Search(context.Background(), query.New("react", query.FilterAll, 20))

	require.NotEmpty(t, rs)
	assert.Equal(t, "post:p1", rs[0].ID())
	assert.Equal(t, 100, rs[0].Relevance)
	assert.Equal(t, map[result.Kind]int{result.KindPost: 1, result.KindAuthor: 8, result.KindTag: 2}, kinds(rs))
	assertTitleHitLayout(t, rs)
	assert.Zero(t, src.Calls(contenttest.MethodPostsByContent), "blended search must not run")
}

// assertTitleHitLayout checks the title-hit shape: one post, then authors,
// then tags, each group ranked by relevance.
func assertTitleHitLayout(t *testing.T, rs []result.Result) {
	t.Helper()
	require.NotEmpty(t, rs)
	assert.Equal(t, result.KindPost, rs[0].Kind)
	rank := map[result.Kind]int{result.KindPost: 0, result.KindAuthor: 1, result.KindTag: 2}
	for i := 1; i < len(rs); i++ {
		prev, cur := rs[i-1], rs[i]
		require.LessOrEqual(t, rank[prev.Kind], rank[cur.Kind], "group order broken at %d", i)
		if prev.Kind == cur.Kind {
			assert.GreaterOrEqual(t, prev.Relevance, cur.Relevance, "group not ranked at %d", i)
		}
	}
}

func TestTitleHitStaysFirstAboveExactTag(t *testing.T) {
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &contenttest.Source{
		Posts: []content.Post{
			{ID: "p1", Title: "react", Content: "intro", Tags: []string{"react"}, CreatedAt: old},
			{ID: "p2", Title: "react hooks", Content: "react state", Tags: []string{"react"}, CreatedAt: old},
		},
	}
	r, _ := newRouter(t, src)

	rs := r.Search(context.Background(), query.New("react", query.FilterAll, 20))

	require.Len(t, rs, 2)
	assert.Equal(t, "post:p1", rs[0].ID())
	assert.Equal(t, 100, rs[0].Relevance)
	assert.Equal(t, "tag:react", rs[1].ID())
	assert.Greater(t, rs[1].Relevance, rs[0].Relevance)

	cached := r.Search(context.Background(), query.New("react", query.FilterAll, 20))
	assert.Equal(t, rs, cached)
}

func TestTitleHitCappedAtLimit(t *testing.T) {
	r, _ := newRouter(t, reactFixture())

	rs := r.Search(context.Background(), query.New("react", query.FilterAll, 3))

	require.Len(t, rs, 3)
	assert.Equal(t, "post:p1", rs[0].ID())
	assertTitleHitLayout(t, rs)
}

func TestBlendedWhenNoTitleHit(t *testing.T) {
	src := reactFixture()
	r, _ := newRouter(t, src)

	rs := r.Search(context.Background(), query.New("server", query.FilterAll, 10))

	require.NotEmpty(t, rs)
	assert.Equal(t, 1, src.Calls(contenttest.MethodPostsByTitle))
	assert.Equal(t, 1, src.Calls(contenttest.MethodPostsByContent))
	assert.Equal(t, "post:p3", rs[0].ID())
	assert.Equal(t, adapter.RelevanceContentDirect, rs[0].Relevance)
	assert.LessOrEqual(t, len(rs), 10)
}

func TestTagScenario(t *testing.T) {
	src := &contenttest.Source{}
	for i := 0; i < 12; i++ {
		src.Posts = append(src.Posts, content.Post{ID: fmt.Sprintf("g%d", i), Tags: []string{"golang"}})
	}
	for i := 0; i < 3; i++ {
		src.Posts = append(src.Posts, content.Post{ID: fmt.Sprintf("t%d", i), Tags: []string{"golang-tips"}})
	}
	r, _ := newRouter(t, src)

	rs := r.Search(context.Background(), query.New("#golang", query.FilterTags, 5))

	require.Len(t, rs, 2)
	assert.Equal(t, "golang", rs[0].Tag.Name)
	assert.Equal(t, 112, rs[0].Relevance)
	assert.Equal(t, "golang-tips", rs[1].Tag.Name)
	assert.Equal(t, 53, rs[1].Relevance)
}

func TestInvalidQueriesDoNoIO(t *testing.T) {
	src := reactFixture()
	r, _ := newRouter(t, src)
	ctx := context.Background()

	for _, q := range []query.Query{
		query.New("react", query.FilterNone, 20),
		query.New("   ", query.FilterAll, 20),
		query.New("react", query.ParseFilter("comments"), 20),
		query.New("react", query.FilterAll, 0),
	} {
		rs := r.Search(ctx, q)
		assert.NotNil(t, rs)
		assert.Empty(t, rs)
	}
	assert.Zero(t, src.TotalCalls())
	assert.Zero(t, r.CacheStats(ctx).Size)
}

func TestIdempotentWithinTTL(t *testing.T) {
	src := reactFixture()
	r, clk := newRouter(t, src)
	ctx := context.Background()
	q := query.New("React", query.FilterAll, 20)

	first := r.Resolve(ctx, q)
	calls := src.TotalCalls()
	clk.Advance(4 * time.Minute)
	second := r.Resolve(ctx, query.New("react", query.FilterAll, 20))

	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, calls, src.TotalCalls())
	assert.Equal(t, []string{"react|all|20"}, r.CacheStats(ctx).Keys)
}

func TestExpiredEntryRefetches(t *testing.T) {
	src := reactFixture()
	r, clk := newRouter(t, src)
	ctx := context.Background()
	q := query.New("react", query.FilterTitle, 5)

	r.Search(ctx, q)
	require.Equal(t, 1, src.Calls(contenttest.MethodPostsByTitle))

	clk.Advance(5 * time.Minute)
	rs := r.Search(ctx, q)
	assert.NotEmpty(t, rs)
	assert.Equal(t, 2, src.Calls(contenttest.MethodPostsByTitle))
}

func TestPartialFailureKeepsSuccessfulSubSearches(t *testing.T) {
	src := reactFixture()
	src.Fail(contenttest.MethodAuthorByUsername, errDown)
	src.Fail(contenttest.MethodListAuthors, errDown)
	r, _ := newRouter(t, src)
	ctx := context.Background()
	q := query.New("server", query.FilterAll, 20)

	resp := r.Resolve(ctx, q)
	assert.True(t, resp.Degraded)
	got := kinds(resp.Results)
	assert.Positive(t, got[result.KindPost])
	assert.Zero(t, got[result.KindAuthor])

	// Degraded responses are not cached.
	before := src.TotalCalls()
	r.Search(ctx, q)
	assert.Greater(t, src.TotalCalls(), before)
}

func TestTotalFailureIsEmptyAndUncached(t *testing.T) {
	src := reactFixture()
	for _, m := range []string{
		contenttest.MethodPostsByTitle, contenttest.MethodPostsByContent, contenttest.MethodPostsByTag,
		contenttest.MethodListPosts, contenttest.MethodAuthorByUsername, contenttest.MethodListAuthors,
	} {
		src.Fail(m, errDown)
	}
	r, _ := newRouter(t, src)
	ctx := context.Background()

	rs := r.Search(ctx, query.New("react", query.FilterAll, 20))
	assert.NotNil(t, rs)
	assert.Empty(t, rs)
	assert.Zero(t, r.CacheStats(ctx).Size)
}

func TestEmptyResultsAreNotCached(t *testing.T) {
	src := reactFixture()
	r, _ := newRouter(t, src)
	ctx := context.Background()

	assert.Empty(t, r.Search(ctx, query.New("kubernetes", query.FilterPosts, 5)))
	assert.Zero(t, r.CacheStats(ctx).Size)
}

func TestHashtagIsolation(t *testing.T) {
	src := &contenttest.Source{Posts: []content.Post{
		{ID: "literal", Title: "#react", Content: "#react everywhere"},
		{ID: "tagged", Title: "Hooks", Tags: []string{"react"}},
	}}
	r, _ := newRouter(t, src)

	rs := r.Search(context.Background(), query.New("#react", query.FilterAll, 10))
	var posts []string
	for _, res := range rs {
		if res.Kind == result.KindPost {
			posts = append(posts, res.ID())
		}
	}
	assert.Equal(t, []string{"post:tagged"}, posts)
	assert.Zero(t, src.Calls(contenttest.MethodPostsByTitle))
	assert.Zero(t, src.Calls(contenttest.MethodListAuthors))
}

func TestExactTitleOutranksSubstring(t *testing.T) {
	src := &contenttest.Source{Posts: []content.Post{
		{ID: "sub", Title: "react in depth", Content: "more react"},
		{ID: "exact", Title: "React"},
	}}
	src.Fail(contenttest.MethodPostsByTitle, errDown)
	src.Fail(contenttest.MethodPostsByContent, errDown)
	r, _ := newRouter(t, src)

	rs := r.Search(context.Background(), query.New("react", query.FilterPosts, 10))
	require.Len(t, rs, 2)
	assert.Equal(t, "post:exact", rs[0].ID())
	assert.Greater(t, rs[0].Relevance, rs[1].Relevance)
}

func TestOrderingAndLimitAcrossFilters(t *testing.T) {
	src := reactFixture()
	r, _ := newRouter(t, src)
	ctx := context.Background()

	for _, f := range []query.Filter{
		query.FilterAll, query.FilterPosts, query.FilterTitle,
		query.FilterContent, query.FilterTags, query.FilterAuthors,
	} {
		for _, limit := range []int{1, 3, 7, 20} {
			for _, term := range []string{"react", "server", "#reactjs", "author3@example.com", "zzz"} {
				rs := r.Search(ctx, query.New(term, f, limit))
				assert.LessOrEqual(t, len(rs), limit, "%s %s %d", term, f, limit)
				if f == query.FilterAll && term == "react" {
					assertTitleHitLayout(t, rs)
				} else {
					assert.True(t, result.IsSorted(rs), "%s %s %d", term, f, limit)
				}
				for _, res := range rs {
					assert.GreaterOrEqual(t, res.Relevance, 0)
				}
			}
		}
	}
}

func TestConcurrentIdenticalQueriesShareOneFetch(t *testing.T) {
	src := reactFixture()
	r, _ := newRouter(t, src)
	release := src.Block()
	q := query.New("react", query.FilterTitle, 5)

	var wg sync.WaitGroup
	out := make([][]result.Result, 8)
	for i := range out {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out[i] = r.Search(context.Background(), q)
		}(i)
	}
	require.Eventually(t, func() bool {
		return src.Calls(contenttest.MethodPostsByTitle) == 1
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	release()
	wg.Wait()

	assert.Equal(t, 1, src.Calls(contenttest.MethodPostsByTitle))
	for _, rs := range out {
		assert.Equal(t, out[0], rs)
	}
}

func TestClearAndInvalidate(t *testing.T) {
	src := reactFixture()
	r, _ := newRouter(t, src)
	ctx := context.Background()

	r.Search(ctx, query.New("react", query.FilterTitle, 5))
	r.Search(ctx, query.New("react", query.FilterPosts, 5))
	require.Equal(t, 2, r.CacheStats(ctx).Size)

	r.InvalidateCache(ctx, "react|title|5", "api")
	assert.Equal(t, []string{"react|posts|5"}, r.CacheStats(ctx).Keys)

	r.ClearCache(ctx, "api")
	assert.Zero(t, r.CacheStats(ctx).Size)
}
