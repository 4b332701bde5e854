// Package watch keeps a live graph in sync with the pairwise files it was
// loaded from.
//
// Every reload parses the files into a fresh store and then copies it into
// the live store with CloneFrom, so trackers attached to the live store see
// one transaction describing exactly what changed.
//
// Example:
//
//	live := graph.NewStore()
//	tracker := graph.NewTracker(live)
//	w, err := watch.New(live, []string{"edges.txt"}, watch.Options{})
//	if err != nil {
//		return err
//	}
//	defer w.Close()
//	return w.Run(ctx)
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/orneryd/netgraph/pkg/graph"
	"github.com/orneryd/netgraph/pkg/loading"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 250 * time.Millisecond

// ReloadFunc is called after every reload attempt. result is nil when err is
// not.
type ReloadFunc func(result *loading.Result, err error)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long to wait for more file events before reloading.
	Debounce time.Duration

	// Loader parses the files. Defaults to a single-worker loader without a
	// cache.
	Loader *loading.Loader

	// OnReload observes each reload.
	OnReload ReloadFunc

	Logger *slog.Logger
}

// Watcher reloads a set of files into a live store whenever one of them
// changes.
//
// # Thread Safety
//
// Run must be called at most once. Reload and Result are safe to call from
// any goroutine; reloads are serialised.
type Watcher struct {
	live     *graph.Store
	paths    []string
	watched  map[string]struct{}
	debounce time.Duration
	loader   *loading.Loader
	onReload ReloadFunc
	logger   *slog.Logger

	fsw       *fsnotify.Watcher
	closeOnce sync.Once

	reloadMu sync.Mutex
	mu       sync.RWMutex
	result   *loading.Result
}

// New creates a watcher for paths. Parent directories are watched rather
// than the files themselves so that editors replacing a file by rename are
// still noticed.
func New(live *graph.Store, paths []string, opts Options) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("watch: no paths given")
	}

	w := &Watcher{
		live:     live,
		watched:  make(map[string]struct{}, len(paths)),
		debounce: opts.Debounce,
		loader:   opts.Loader,
		onReload: opts.OnReload,
		logger:   opts.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.loader == nil {
		w.loader = loading.NewLoader(loading.Options{Logger: opts.Logger})
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	w.fsw = fsw

	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		w.paths = append(w.paths, abs)
		w.watched[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	return w, nil
}

// Reload parses the files and copies the result into the live store. On
// failure the live store is left untouched.
func (w *Watcher) Reload(ctx context.Context) (*loading.Result, error) {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	start := time.Now()
	fresh := graph.NewStore(graph.WithLogger(w.logger))
	defer fresh.Close()

	result, err := w.loader.LoadInto(ctx, fresh, w.paths)
	if err != nil {
		w.logger.Warn("reload failed", "error", err)
		w.notify(nil, err)
		return nil, err
	}

	diff := w.live.DiffTo(fresh)
	w.live.CloneFrom(fresh)

	w.mu.Lock()
	w.result = result
	w.mu.Unlock()

	w.logger.Info("graph reloaded",
		"nodes_added", len(diff.NodesAdded),
		"nodes_removed", len(diff.NodesRemoved),
		"edges_added", len(diff.EdgesAdded),
		"edges_removed", len(diff.EdgesRemoved),
		"duration", time.Since(start),
	)
	w.notify(result, nil)
	return result, nil
}

// Result returns the name table of the last successful reload, or nil.
func (w *Watcher) Result() *loading.Result {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.result
}

// Run performs an initial reload and then reloads after every debounced
// burst of changes to the watched files, until ctx is cancelled or the
// watcher is closed. Reload failures are reported through OnReload and the
// log; they do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := w.Reload(ctx); err != nil && ctx.Err() != nil {
		return nil
	}

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("file changed", "path", event.Name, "op", event.Op.String())

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			if _, err := w.Reload(ctx); err != nil && ctx.Err() != nil {
				return nil
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

// Close stops watching. Run returns shortly afterwards.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() { err = w.fsw.Close() })
	return err
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return false
	}
	_, ok := w.watched[filepath.Clean(event.Name)]
	return ok
}

func (w *Watcher) notify(result *loading.Result, err error) {
	if w.onReload != nil {
		w.onReload(result, err)
	}
}
