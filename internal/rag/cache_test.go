package rag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetThenGetHits(t *testing.T) {
	c := NewCache(10, time.Minute)
	c.Set("k", RAGResult{Content: "hello"})
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, 1.0, c.HitRate())
}

func TestCache_MissIncrementsMissCount(t *testing.T) {
	c := NewCache(10, time.Minute)
	_, ok := c.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 0.0, c.HitRate())
}

func TestCache_EvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	c := NewCache(2, time.Minute)
	c.Set("a", RAGResult{Content: "a"})
	c.Set("b", RAGResult{Content: "b"})
	c.Set("c", RAGResult{Content: "c"}) // evicts "a" (least recently used)

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCache_GetRefreshesRecency(t *testing.T) {
	c := NewCache(2, time.Minute)
	c.Set("a", RAGResult{Content: "a"})
	c.Set("b", RAGResult{Content: "b"})
	c.Get("a")                          // "a" is now most-recently-used
	c.Set("c", RAGResult{Content: "c"}) // should evict "b", not "a"

	_, ok := c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := NewCache(10, -time.Second) // already-expired TTL
	c.Set("k", RAGResult{Content: "stale"})
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	c := NewCache(10, 0)
	c.Set("k", RAGResult{Content: "forever"})
	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestCache_Clear(t *testing.T) {
	c := NewCache(10, time.Minute)
	c.Set("k", RAGResult{Content: "v"})
	c.Clear()
	_, ok := c.Get("k")
	assert.False(t, ok)
}
