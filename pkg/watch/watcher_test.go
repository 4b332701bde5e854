package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/netgraph/pkg/graph"
	"github.com/orneryd/netgraph/pkg/loading"
)

type reload struct {
	result *loading.Result
	err    error
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitReload(t *testing.T, ch <-chan reload) reload {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
		return reload{}
	}
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "edges.txt")
	require.NoError(t, os.WriteFile(path, []byte("a b\nc d\n"), 0o644))

	live := graph.NewStore()
	tr := graph.NewTracker(live)
	defer tr.Close()

	w, err := New(live, []string{path}, Options{Logger: quietLogger()})
	require.NoError(t, err)
	defer w.Close()

	result, err := w.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, result.NumNodes())
	assert.Equal(t, 2, tr.NumComponents())
	assert.Same(t, result, w.Result())

	t.Run("unchanged file produces no events", func(t *testing.T) {
		var events []graph.ComponentEvent
		unsubscribe := tr.Subscribe(func(batch []graph.ComponentEvent) { events = append(events, batch...) })
		defer unsubscribe()

		_, err := w.Reload(context.Background())
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("failure leaves the live store alone", func(t *testing.T) {
		require.NoError(t, os.Remove(path))
		_, err := w.Reload(context.Background())
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.Equal(t, 4, live.NumNodes())
		assert.Same(t, result, w.Result())
	})
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "edges.txt")
	require.NoError(t, os.WriteFile(path, []byte("a b\nc d\n"), 0o644))

	live := graph.NewStore()
	tr := graph.NewTracker(live)
	defer tr.Close()

	reloads := make(chan reload, 16)
	w, err := New(live, []string{path}, Options{
		Debounce: 20 * time.Millisecond,
		Logger:   quietLogger(),
		OnReload: func(result *loading.Result, err error) { reloads <- reload{result, err} },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	r := waitReload(t, reloads)
	require.NoError(t, r.err)
	assert.Equal(t, 2, tr.NumComponents())

	require.NoError(t, os.WriteFile(path, []byte("a b\nb c\nc d\n"), 0o644))
	r = waitReload(t, reloads)
	require.NoError(t, r.err)
	assert.Equal(t, 1, tr.NumComponents())
	assert.Equal(t, 3, live.NumEdges())

	// Files that are not watched do not trigger reloads.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x y\n"), 0o644))
	select {
	case r := <-reloads:
		t.Fatalf("unexpected reload: %+v", r)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}

func TestNewRequiresPaths(t *testing.T) {
	_, err := New(graph.NewStore(), nil, Options{})
	assert.Error(t, err)
}
