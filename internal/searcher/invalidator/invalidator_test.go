package invalidator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCache struct {
	mu          sync.Mutex
	clears      []string
	invalidated []string
}

func (c *recordingCache) ClearCache(_ context.Context, trigger string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears = append(c.clears, trigger)
}

func (c *recordingCache) InvalidateCache(_ context.Context, key, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, key)
}

func send(t *testing.T, inv *Invalidator, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, inv.Handler()(context.Background(), []byte("k"), raw))
}

func TestMutationsClearCache(t *testing.T) {
	for _, typ := range []MutationType{PostCreated, PostUpdated, PostDeleted} {
		t.Run(string(typ), func(t *testing.T) {
			c := &recordingCache{}
			send(t, New(c), Mutation{Type: typ, PostID: "p1"})
			assert.Equal(t, []string{TriggerEvent}, c.clears)
			assert.Empty(t, c.invalidated)
		})
	}
}

func TestCacheKeyInvalidatesOneEntry(t *testing.T) {
	c := &recordingCache{}
	send(t, New(c), Mutation{Type: PostUpdated, PostID: "p1", CacheKey: "react|all|10"})
	assert.Empty(t, c.clears)
	assert.Equal(t, []string{"react|all|10"}, c.invalidated)
}

func TestBadEventsAreSkipped(t *testing.T) {
	c := &recordingCache{}
	inv := New(c)
	require.NoError(t, inv.Handler()(context.Background(), nil, []byte("{broken")))
	send(t, inv, Mutation{Type: "archived", PostID: "p1"})
	assert.Empty(t, c.clears)
	assert.Empty(t, c.invalidated)
}
