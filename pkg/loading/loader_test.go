package loading

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/netgraph/pkg/graph"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := OpenCache(CacheOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestCache(t *testing.T) {
	cache := openTestCache(t)
	key := KeyOf([]byte("a b\n"))

	_, err := cache.Get(key)
	assert.ErrorIs(t, err, ErrCacheMiss)

	pairs := []Pair{{Source: "a", Target: "b"}, {Source: "b", Target: "c", Weight: 1.5, HasWeight: true}}
	require.NoError(t, cache.Put(key, pairs))

	got, err := cache.Get(key)
	require.NoError(t, err)
	assert.Equal(t, pairs, got)

	_, err = cache.Get(KeyOf([]byte("a c\n")))
	assert.ErrorIs(t, err, ErrCacheMiss, "different content, different key")

	stats, err := cache.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, uint64(1), stats.Hot.Hits)
	assert.Equal(t, 1, stats.Hot.Size)

	require.NoError(t, cache.Clear())
	_, err = cache.Get(key)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.Close())
	require.NoError(t, cache.Close())
	assert.Error(t, cache.Put(key, pairs))
}

func TestCachePersists(t *testing.T) {
	dir := t.TempDir()
	key := KeyOf([]byte("x y"))

	cache, err := OpenCache(CacheOptions{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, cache.Put(key, []Pair{{Source: "x", Target: "y"}}))
	require.NoError(t, cache.Close())

	cache, err = OpenCache(CacheOptions{Dir: dir})
	require.NoError(t, err)
	defer cache.Close()

	got, err := cache.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []Pair{{Source: "x", Target: "y"}}, got)
}

func TestCacheWithoutHotLayer(t *testing.T) {
	cache, err := OpenCache(CacheOptions{InMemory: true, HotEntries: -1})
	require.NoError(t, err)
	defer cache.Close()

	key := KeyOf([]byte("p q 2"))
	pairs := []Pair{{Source: "p", Target: "q", Weight: 2, HasWeight: true}}
	require.NoError(t, cache.Put(key, pairs))

	got, err := cache.Get(key)
	require.NoError(t, err)
	assert.Equal(t, pairs, got)

	stats, err := cache.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Hot)
}

func TestLoader(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "first.txt", "a b\nb c 3\n")
	second := writeFile(t, dir, "second.txt", "c d\n\"e f\" g\n")

	t.Run("parse through the cache", func(t *testing.T) {
		cache := openTestCache(t)
		l := NewLoader(Options{Cache: cache})

		doc, err := l.ParseFile(context.Background(), first)
		require.NoError(t, err)
		assert.False(t, doc.Cached)
		assert.Len(t, doc.Pairs, 2)

		doc, err = l.ParseFile(context.Background(), first)
		require.NoError(t, err)
		assert.True(t, doc.Cached)
		assert.Equal(t, Pair{Source: "b", Target: "c", Weight: 3, HasWeight: true}, doc.Pairs[1])
	})

	t.Run("load several files into one store", func(t *testing.T) {
		var mu sync.Mutex
		progress := make(map[string]int)
		l := NewLoader(Options{
			Workers: 2,
			Progress: func(path string, percent int) {
				mu.Lock()
				defer mu.Unlock()
				progress[path] = percent
			},
		})

		store := graph.NewStore()
		tr := graph.NewTracker(store)
		defer tr.Close()

		changes := 0
		store.Subscribe(graph.ListenerFuncs{Changed: func(*graph.Store, *graph.ChangeSet) { changes++ }})

		result, err := l.LoadInto(context.Background(), store, []string{first, second})
		require.NoError(t, err)

		assert.Equal(t, 1, changes, "one transaction for everything")
		assert.Equal(t, 6, result.NumNodes())
		assert.Equal(t, 6, store.NumNodes())
		assert.Equal(t, 4, store.NumEdges())
		assert.Equal(t, 2, tr.NumComponents())
		assert.Equal(t, "e f", result.NodeNames[result.NodeIDs["e f"]])
		assert.Equal(t, map[graph.EdgeID]float64{1: 3}, result.EdgeWeights)
		assert.Equal(t, map[string]int{first: 100, second: 100}, progress)

		assert.Equal(t, tr.ComponentIDOfNode(result.NodeIDs["a"]), tr.ComponentIDOfNode(result.NodeIDs["d"]),
			"names are shared across files")
	})

	t.Run("missing file", func(t *testing.T) {
		store := graph.NewStore()
		_, err := NewLoader(Options{}).LoadInto(context.Background(), store, []string{first, filepath.Join(dir, "nope")})
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.Zero(t, store.NumNodes())
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		store := graph.NewStore()
		_, err := NewLoader(Options{}).LoadInto(ctx, store, []string{first})
		assert.ErrorIs(t, err, ErrCancelled)
		assert.Zero(t, store.NumNodes())
	})
}
