package insights

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProfileCache_RoundTrip(t *testing.T) {
	c := NewProfileCache(4)
	_, ok := c.Get("fp1")
	require.False(t, ok)

	entry := &CacheEntry{Profile: &TableProfile{Table: "Scope 1", Rows: 3}}
	c.Put("fp1", entry)

	got, ok := c.Get("fp1")
	require.True(t, ok)
	require.Same(t, entry, got)
	require.Equal(t, 1, c.Len())
}

func TestProfileCache_Invalidate(t *testing.T) {
	c := NewProfileCache(4)
	c.Put("fp1", &CacheEntry{})

	require.True(t, c.Invalidate("fp1"))
	require.False(t, c.Invalidate("fp1"))
	_, ok := c.Get("fp1")
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}

func TestProfileCache_EvictsOldestFirst(t *testing.T) {
	c := NewProfileCache(2)
	c.Put("a", &CacheEntry{})
	c.Put("b", &CacheEntry{})
	c.Put("c", &CacheEntry{})

	_, ok := c.Get("a")
	require.False(t, ok)
	_, ok = c.Get("b")
	require.True(t, ok)
	_, ok = c.Get("c")
	require.True(t, ok)
	require.Equal(t, 2, c.Len())
}

func TestProfileCache_UpdateDoesNotEvict(t *testing.T) {
	c := NewProfileCache(2)
	c.Put("a", &CacheEntry{})
	c.Put("b", &CacheEntry{})

	// Rewriting a live key must not push anything out
	updated := &CacheEntry{Insights: []Insight{{Kind: InsightFallback, Message: "x"}}}
	c.Put("a", updated)

	got, ok := c.Get("a")
	require.True(t, ok)
	require.Same(t, updated, got)
	_, ok = c.Get("b")
	require.True(t, ok)
}

func TestProfileCache_Reset(t *testing.T) {
	c := NewProfileCache(8)
	for i := 0; i < 5; i++ {
		c.Put(fmt.Sprintf("fp%d", i), &CacheEntry{})
	}
	require.Equal(t, 5, c.Len())

	c.Reset()
	require.Equal(t, 0, c.Len())
	_, ok := c.Get("fp0")
	require.False(t, ok)
}
