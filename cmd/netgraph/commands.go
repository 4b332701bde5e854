package main

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/orneryd/netgraph/pkg/config"
	"github.com/orneryd/netgraph/pkg/graph"
	"github.com/orneryd/netgraph/pkg/loading"
	"github.com/orneryd/netgraph/pkg/metrics"
	"github.com/orneryd/netgraph/pkg/watch"
)

// environment is what every command needs: resolved configuration, a logger
// and a loader wired to the parse cache.
type environment struct {
	cfg    *config.Config
	logger *slog.Logger
	cache  *loading.Cache
	loader *loading.Loader
}

func setup(cmd *cobra.Command) (*environment, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.Logging.Format = format
	}
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	env := &environment{
		cfg:    cfg,
		logger: newLogger(cmd.ErrOrStderr(), cfg.Logging),
	}
	env.logger.Debug("configuration loaded", "config", cfg.String())

	if cfg.Cache.Enabled {
		cache, err := loading.OpenCache(loading.CacheOptions{
			Dir:        cfg.Cache.Dir,
			InMemory:   cfg.Cache.InMemory,
			SyncWrites: cfg.Cache.SyncWrites,
			HotEntries: cfg.Cache.HotEntries,
			Logger:     env.logger,
		})
		if err != nil {
			// A broken cache only costs time.
			env.logger.Warn("parse cache unavailable", "dir", cfg.Cache.Dir, "error", err)
		} else {
			env.cache = cache
		}
	}

	env.loader = loading.NewLoader(loading.Options{
		Workers: cfg.Loader.Workers,
		Cache:   env.cache,
		Logger:  env.logger,
	})
	return env, nil
}

func (e *environment) Close() {
	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			e.logger.Warn("closing parse cache", "error", err)
		}
	}
}

func (e *environment) trackerOptions() []graph.TrackerOption {
	return []graph.TrackerOption{
		graph.WithTrackerLogger(e.logger),
		graph.WithLockWarningThreshold(e.cfg.Tracker.LockWarningThreshold),
	}
}

func newLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func runComponents(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	names, _ := cmd.Flags().GetBool("names")

	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	store := graph.NewStore(graph.WithLogger(env.logger))
	tr := graph.NewTracker(store, env.trackerOptions()...)
	defer tr.Close()

	result, err := env.loader.LoadInto(cmd.Context(), store, args)
	if err != nil {
		return err
	}

	printComponents(cmd.OutOrStdout(), store, tr, result, limit, names)
	return nil
}

func runContract(cmd *cobra.Command, args []string) error {
	minWeight, _ := cmd.Flags().GetFloat64("min-weight")

	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	store := graph.NewStore(graph.WithLogger(env.logger))
	tr := graph.NewTracker(store, env.trackerOptions()...)
	defer tr.Close()

	result, err := env.loader.LoadInto(cmd.Context(), store, args)
	if err != nil {
		return err
	}

	var heavy []graph.EdgeID
	for edgeID, w := range result.EdgeWeights {
		if w >= minWeight {
			heavy = append(heavy, edgeID)
		}
	}
	slices.Sort(heavy)

	before := countHeads(store)
	componentsBefore := tr.NumComponents()
	store.ContractEdges(heavy)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "contracted %d edges with weight >= %g\n", len(heavy), minWeight)
	fmt.Fprintf(out, "  nodes:      %d -> %d\n", before, countHeads(store))
	fmt.Fprintf(out, "  components: %d -> %d\n", componentsBefore, tr.NumComponents())
	return nil
}

func countHeads(s *graph.Store) int {
	n := 0
	for _, id := range s.NodeIDs() {
		if s.NodeType(id) != graph.Tail {
			n++
		}
	}
	return n
}

func printComponents(out io.Writer, store *graph.Store, tr *graph.Tracker, result *loading.Result, limit int, names bool) {
	weights := graph.NewComponentArray(tr, 0.0)
	defer weights.Release()
	for edgeID, w := range result.EdgeWeights {
		id := tr.ComponentIDOfEdge(edgeID)
		weights.Set(id, weights.Get(id)+w)
	}

	components := make([]*graph.Component, 0, tr.NumComponents())
	for _, id := range tr.ComponentIDs() {
		components = append(components, tr.Component(id))
	}
	slices.SortFunc(components, func(a, b *graph.Component) int {
		if c := cmp.Compare(b.NumNodes(), a.NumNodes()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})

	fmt.Fprintf(out, "%d nodes, %d edges, %d components\n",
		store.NumNodes(), store.NumEdges(), len(components))

	for i, c := range components {
		if limit > 0 && i == limit {
			fmt.Fprintf(out, "... %d more\n", len(components)-limit)
			break
		}
		fmt.Fprintf(out, "component %d: %d nodes, %d edges", c.ID(), c.NumNodes(), c.NumEdges())
		if w := weights.Get(c.ID()); w != 0 {
			fmt.Fprintf(out, ", weight %g", w)
		}
		fmt.Fprintln(out)

		if names {
			labels := make([]string, 0, c.NumNodes())
			for _, nodeID := range c.NodeIDs() {
				labels = append(labels, result.NodeNames[nodeID])
			}
			fmt.Fprintf(out, "  %s\n", strings.Join(labels, ", "))
		}
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	if metricsAddr == "" && env.cfg.Metrics.Enabled {
		metricsAddr = env.cfg.Metrics.Addr
	}

	storeOpts := []graph.StoreOption{graph.WithLogger(env.logger)}
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		storeOpts = append(storeOpts, graph.WithMetrics(metrics.New(reg)))

		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				env.logger.Error("metrics server failed", "addr", metricsAddr, "error", err)
			}
		}()
		defer srv.Close()
		env.logger.Info("serving metrics", "addr", metricsAddr)
	}

	live := graph.NewStore(storeOpts...)
	tr := graph.NewTracker(live, env.trackerOptions()...)
	defer tr.Close()

	out := cmd.OutOrStdout()
	unsubscribe := tr.Subscribe(func(events []graph.ComponentEvent) {
		for _, ev := range events {
			fmt.Fprintln(out, ev)
		}
	})
	defer unsubscribe()

	w, err := watch.New(live, args, watch.Options{
		Debounce: env.cfg.Watch.Debounce,
		Loader:   env.loader,
		Logger:   env.logger,
		OnReload: func(result *loading.Result, err error) {
			if err != nil {
				fmt.Fprintf(out, "reload failed: %v\n", err)
				return
			}
			fmt.Fprintf(out, "%d nodes, %d edges, %d components\n",
				live.NumNodes(), live.NumEdges(), tr.NumComponents())
		},
	})
	if err != nil {
		return err
	}
	defer w.Close()

	env.logger.Info("watching", "files", args)
	return w.Run(cmd.Context())
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	cache, env, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	stats, err := cache.Stats()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Parse cache: %s\n", env.cfg.Cache.Dir)
	fmt.Fprintf(out, "  Entries:   %d\n", stats.Entries)
	fmt.Fprintf(out, "  LSM size:  %d bytes\n", stats.LSMSize)
	fmt.Fprintf(out, "  VLog size: %d bytes\n", stats.VLogSize)
	fmt.Fprintf(out, "  Hot:       %d/%d entries\n", stats.Hot.Size, stats.Hot.MaxSize)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cache, env, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := cache.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Parse cache cleared")
	return nil
}

func openCache(cmd *cobra.Command) (*loading.Cache, *environment, error) {
	env, err := setup(cmd)
	if err != nil {
		return nil, nil, err
	}
	if env.cache == nil {
		env.Close()
		if !env.cfg.Cache.Enabled {
			return nil, nil, errors.New("parse cache is disabled")
		}
		return nil, nil, fmt.Errorf("parse cache at %s could not be opened", env.cfg.Cache.Dir)
	}
	return env.cache, env, nil
}
