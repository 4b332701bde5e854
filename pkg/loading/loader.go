package loading

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/orneryd/netgraph/pkg/graph"
)

// Document is the parsed content of one file.
type Document struct {
	Path   string
	Pairs  []Pair
	Cached bool
}

// Options configures a Loader.
type Options struct {
	// Workers bounds how many files are parsed at once. Zero means one.
	Workers int

	// Cache, when set, is consulted before parsing and filled afterwards.
	Cache *Cache

	// Progress receives per-file progress. Calls for different files may
	// interleave when Workers > 1.
	Progress func(path string, percent int)

	Logger *slog.Logger
}

// Loader parses pairwise files and applies them to a store.
type Loader struct {
	workers  int
	cache    *Cache
	progress func(path string, percent int)
	logger   *slog.Logger
}

// NewLoader returns a loader configured by opts.
func NewLoader(opts Options) *Loader {
	l := &Loader{
		workers:  max(opts.Workers, 1),
		cache:    opts.Cache,
		progress: opts.Progress,
		logger:   opts.Logger,
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// ParseFile reads and parses one file, going through the cache when there is
// one. Cache failures are logged and otherwise ignored.
func (l *Loader) ParseFile(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var key CacheKey
	if l.cache != nil {
		key = KeyOf(content)
		pairs, err := l.cache.Get(key)
		switch {
		case err == nil:
			l.logger.Debug("parse cache hit", "path", path, "pairs", len(pairs))
			l.report(path, 100)
			return &Document{Path: path, Pairs: pairs, Cached: true}, nil
		case !errors.Is(err, ErrCacheMiss):
			l.logger.Warn("parse cache read failed", "path", path, "error", err)
		}
	}

	start := time.Now()
	var progress ProgressFunc
	if l.progress != nil {
		progress = func(percent int) { l.progress(path, percent) }
	}

	pairs, err := ParsePairwise(ctx, bytes.NewReader(content), int64(len(content)), progress)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	l.logger.Debug("parsed file",
		"path", path,
		"pairs", len(pairs),
		"bytes", len(content),
		"duration", time.Since(start),
	)

	if l.cache != nil {
		if err := l.cache.Put(key, pairs); err != nil {
			l.logger.Warn("parse cache write failed", "path", path, "error", err)
		}
	}
	return &Document{Path: path, Pairs: pairs}, nil
}

// ParseFiles parses every path concurrently and returns the documents in the
// order given. The first failure cancels the remaining work.
func (l *Loader) ParseFiles(ctx context.Context, paths []string) ([]*Document, error) {
	docs := make([]*Document, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)

	for i, path := range paths {
		g.Go(func() error {
			doc, err := l.ParseFile(ctx, path)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// LoadInto parses paths and adds their content to store in one transaction.
// Names are shared across files, so the same token always maps to the same
// node. Nothing is added when parsing fails or ctx is cancelled.
func (l *Loader) LoadInto(ctx context.Context, store *graph.Store, paths []string) (*Result, error) {
	docs, err := l.ParseFiles(ctx, paths)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	result := NewResult()
	store.Update(func(tx *graph.Tx) {
		for _, doc := range docs {
			result.Apply(tx, doc.Pairs)
		}
	})

	l.logger.Info("graph loaded",
		"files", len(paths),
		"nodes", result.NumNodes(),
		"edges", store.NumEdges(),
	)
	return result, nil
}

func (l *Loader) report(path string, percent int) {
	if l.progress != nil {
		l.progress(path, percent)
	}
}
