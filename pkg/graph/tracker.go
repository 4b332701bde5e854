package graph

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

// NodeFilter reports whether a node should be ignored by a Tracker.
type NodeFilter func(id NodeID) bool

// EdgeFilter reports whether an edge should be ignored by a Tracker.
type EdgeFilter func(id EdgeID) bool

type trackerConfig struct {
	nodeFilters   []NodeFilter
	edgeFilters   []EdgeFilter
	logger        *slog.Logger
	metrics       MetricsCollector
	lockThreshold time.Duration
}

// TrackerOption configures a Tracker.
type TrackerOption func(*trackerConfig)

// WithNodeFilter adds a predicate; nodes matching any predicate are invisible
// to connectivity and never get a component id. Filters run while the store
// is locked and must not call Store read methods.
func WithNodeFilter(f NodeFilter) TrackerOption {
	return func(c *trackerConfig) {
		if f != nil {
			c.nodeFilters = append(c.nodeFilters, f)
		}
	}
}

// WithEdgeFilter adds an edge predicate; see WithNodeFilter.
func WithEdgeFilter(f EdgeFilter) TrackerOption {
	return func(c *trackerConfig) {
		if f != nil {
			c.edgeFilters = append(c.edgeFilters, f)
		}
	}
}

// WithTrackerLogger overrides the logger inherited from the store.
func WithTrackerLogger(l *slog.Logger) TrackerOption {
	return func(c *trackerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTrackerMetrics overrides the metrics collector inherited from the store.
func WithTrackerMetrics(m MetricsCollector) TrackerOption {
	return func(c *trackerConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithLockWarningThreshold sets how long a read of the tracker may block
// before a warning is logged. Defaults to DefaultLockWarningThreshold.
func WithLockWarningThreshold(d time.Duration) TrackerOption {
	return func(c *trackerConfig) {
		if d > 0 {
			c.lockThreshold = d
		}
	}
}

// Tracker maintains the partition of a Store into connected components and
// keeps it current after every committed transaction, without recomputing
// from scratch when ids can be carried over.
//
// Only head elements participate: multi-element tails are always filtered and
// share their head's component. After each commit that changed the graph the
// tracker produces an ordered []ComponentEvent describing exactly which
// components merged, split, appeared or disappeared and which elements joined
// or left a component; subscribers receive that batch once the tracker's
// state has been updated.
//
// Queries are safe from any goroutine. They block while an update is being
// computed, and log a warning when that takes longer than the configured
// threshold.
//
// ELI12:
//
// Think of the graph as islands joined by bridges. Each island has a number
// painted on it. When bridges are built or knocked down, the tracker walks
// over the islands again and repaints only what it must: two islands that got
// joined keep one of their numbers, and an island that was cut in two keeps
// its old number on one half and gets a new number on the other.
type Tracker struct {
	store *Store

	mu      sync.RWMutex
	lock    timedLock
	logger  *slog.Logger
	metrics MetricsCollector

	nodeFilters []NodeFilter
	edgeFilters []EdgeFilter

	nodesComponentID []ComponentID
	edgesComponentID []ComponentID
	componentIDs     []ComponentID
	components       map[ComponentID]*Component
	nextComponentID  ComponentID
	vacated          []ComponentID
	dirty            *roaring.Bitmap

	arraysMu     sync.Mutex
	arrays       map[componentArray]struct{}
	arraysClosed bool

	subscribers listenerSet[func([]ComponentEvent)]
	unsubscribe func()
	closeOnce   sync.Once
}

// NewTracker computes the components of s and keeps them up to date until
// Close is called. It must not be called from inside a transaction on s.
func NewTracker(s *Store, opts ...TrackerOption) *Tracker {
	cfg := trackerConfig{
		logger:        s.logger,
		metrics:       s.metrics,
		lockThreshold: DefaultLockWarningThreshold,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s.mu.RLock()
	t := newTracker(s, cfg)
	s.mu.RUnlock()

	t.unsubscribe = s.Subscribe(t)
	return t
}

// newTracker builds a tracker and runs the initial update. The caller holds
// s.mu and s's id lists are current.
func newTracker(s *Store, cfg trackerConfig) *Tracker {
	if cfg.lockThreshold <= 0 {
		cfg.lockThreshold = DefaultLockWarningThreshold
	}

	t := &Tracker{
		store:      s,
		logger:     cfg.logger,
		metrics:    cfg.metrics,
		components: make(map[ComponentID]*Component),
		dirty:      roaring.New(),
		arrays:     make(map[componentArray]struct{}),
	}
	t.lock = timedLock{threshold: cfg.lockThreshold, logger: cfg.logger, metrics: cfg.metrics}

	// Ignore all multi-element tails
	t.nodeFilters = append([]NodeFilter{func(id NodeID) bool {
		return s.n.merged.typeOf(id) == Tail
	}}, cfg.nodeFilters...)
	t.edgeFilters = append([]EdgeFilter{func(id EdgeID) bool {
		return s.e.merged.typeOf(id) == Tail
	}}, cfg.edgeFilters...)

	t.update()
	return t
}

// Close stops tracking and invalidates every ComponentArray registered with
// the tracker. Arrays stay safe to use but read as their default value.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		if t.unsubscribe != nil {
			t.unsubscribe()
		}

		t.arraysMu.Lock()
		defer t.arraysMu.Unlock()
		for a := range t.arrays {
			a.invalidate()
		}
		clear(t.arrays)
		t.arraysClosed = true
	})
}

// Subscribe registers fn to receive every non-empty event batch. fn runs on
// the writer goroutine after the tracker has been updated. The returned
// function unsubscribes.
func (t *Tracker) Subscribe(fn func(events []ComponentEvent)) (unsubscribe func()) {
	return t.subscribers.add(fn)
}

// GraphWillChange implements Listener.
func (t *Tracker) GraphWillChange(*Store) {}

// GraphChanged implements Listener: it recomputes the partition and delivers
// the resulting events.
func (t *Tracker) GraphChanged(s *Store, cs *ChangeSet) {
	if !cs.Changed {
		return
	}

	t.logger.Debug("componentising", "changes", len(cs.Changes))

	s.mu.RLock()
	unlock := t.lock.acquire(&t.mu, "update")
	events := t.update()
	unlock()
	s.mu.RUnlock()

	if len(events) == 0 {
		return
	}
	for _, fn := range t.subscribers.snapshot() {
		fn(events)
	}
}

func (t *Tracker) rlock(op string) func() {
	return t.lock.acquire(readLocker{&t.mu}, op)
}

// ComponentIDs returns the live component ids in ascending order.
func (t *Tracker) ComponentIDs() []ComponentID {
	defer t.rlock("ComponentIDs")()
	return slices.Clone(t.componentIDs)
}

// NumComponents returns the number of live components.
func (t *Tracker) NumComponents() int {
	defer t.rlock("NumComponents")()
	return len(t.componentIDs)
}

// ContainsComponent reports whether id is a live component.
func (t *Tracker) ContainsComponent(id ComponentID) bool {
	defer t.rlock("ContainsComponent")()
	_, ok := t.components[id]
	return ok
}

// Component returns the cached membership of a live component, or nil.
func (t *Tracker) Component(id ComponentID) *Component {
	defer t.rlock("Component")()
	c, ok := t.components[id]
	if !ok {
		t.logger.Warn("unknown component requested", "component", int(id))
		return nil
	}
	return c
}

// ComponentIDOfNode returns the component owning id, or NullComponentID for
// null, filtered or unknown ids. Tails report their head's component.
func (t *Tracker) ComponentIDOfNode(id NodeID) ComponentID {
	if id.IsNull() {
		return NullComponentID
	}
	defer t.rlock("ComponentIDOfNode")()
	if int(id) >= len(t.nodesComponentID) {
		return NullComponentID
	}
	return t.live(t.nodesComponentID[id])
}

// ComponentIDOfEdge returns the component owning id, or NullComponentID.
func (t *Tracker) ComponentIDOfEdge(id EdgeID) ComponentID {
	if id.IsNull() {
		return NullComponentID
	}
	defer t.rlock("ComponentIDOfEdge")()
	if int(id) >= len(t.edgesComponentID) {
		return NullComponentID
	}
	return t.live(t.edgesComponentID[id])
}

func (t *Tracker) live(id ComponentID) ComponentID {
	if _, ok := t.components[id]; ok {
		return id
	}
	return NullComponentID
}

// LargestComponentID returns the live component with the most nodes, the
// lowest id winning ties, or NullComponentID when there are none.
func (t *Tracker) LargestComponentID() ComponentID {
	defer t.rlock("LargestComponentID")()
	largest, size := NullComponentID, -1
	for _, id := range t.componentIDs {
		if n := len(t.components[id].nodeIDs); n > size {
			largest, size = id, n
		}
	}
	return largest
}

// Capacity is the length every ComponentArray must have to be indexable by
// any component id handed out so far.
func (t *Tracker) Capacity() int {
	defer t.rlock("Capacity")()
	return int(t.nextComponentID)
}

func (t *Tracker) nodeFiltered(id NodeID) bool {
	for _, f := range t.nodeFilters {
		if f(id) {
			return true
		}
	}
	return false
}

func (t *Tracker) edgeFiltered(id EdgeID) bool {
	for _, f := range t.edgeFilters {
		if f(id) {
			return true
		}
	}
	return false
}
