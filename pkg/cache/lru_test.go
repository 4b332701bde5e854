package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLRU(t *testing.T) {
	t.Run("valid parameters", func(t *testing.T) {
		c := NewLRU[string, int](100, 5*time.Minute)
		assert.Equal(t, 100, c.maxSize)
		assert.Equal(t, 5*time.Minute, c.ttl)
	})

	t.Run("non-positive maxSize uses default", func(t *testing.T) {
		assert.Equal(t, DefaultMaxSize, NewLRU[string, int](0, 0).maxSize)
		assert.Equal(t, DefaultMaxSize, NewLRU[string, int](-10, 0).maxSize)
	})
}

func TestLRU_GetPut(t *testing.T) {
	c := NewLRU[string, int](10, 0)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Put("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Put("a", 2)
	v, _ = c.Get("a")
	assert.Equal(t, 2, v, "put replaces")
	assert.Equal(t, 1, c.Len())
}

func TestLRU_TTL(t *testing.T) {
	c := NewLRU[string, int](10, 20*time.Millisecond)
	c.Put("a", 1)

	_, ok := c.Get("a")
	assert.True(t, ok)

	time.Sleep(40 * time.Millisecond)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Zero(t, c.Len(), "expired entries are dropped on access")
}

func TestLRU_Eviction(t *testing.T) {
	c := NewLRU[int, int](3, 0)
	c.Put(1, 1)
	c.Put(2, 2)
	c.Put(3, 3)

	// Touch 1 so that 2 is the least recently used.
	c.Get(1)
	c.Put(4, 4)

	_, ok := c.Get(2)
	assert.False(t, ok)
	for _, k := range []int{1, 3, 4} {
		_, ok := c.Get(k)
		assert.True(t, ok, "key %d", k)
	}
	assert.Equal(t, 3, c.Len())
}

func TestLRU_RemoveClear(t *testing.T) {
	c := NewLRU[string, int](10, 0)
	c.Put("a", 1)
	c.Put("b", 2)

	c.Remove("a")
	c.Remove("missing")
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Zero(t, c.Len())
	_, ok := c.Get("b")
	assert.False(t, ok)
}

func TestLRU_Stats(t *testing.T) {
	c := NewLRU[string, int](10, 0)
	assert.Zero(t, c.Stats().HitRate)

	c.Put("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("a")
	c.Get("b")

	stats := c.Stats()
	assert.Equal(t, Stats{Size: 1, MaxSize: 10, Hits: 3, Misses: 1, HitRate: 75}, stats)
}

func TestLRU_ConcurrentAccess(t *testing.T) {
	c := NewLRU[int, int](50, 0)

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				k := (g*31 + i) % 100
				c.Put(k, i)
				c.Get(k)
				if i%7 == 0 {
					c.Remove(k)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
}
