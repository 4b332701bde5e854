package graph

import "sync"

// ChangeKind is the kind of a single recorded mutation.
type ChangeKind int

const (
	NodeAdded ChangeKind = iota
	NodeRemoved
	EdgeAdded
	EdgeRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case NodeAdded:
		return "node_added"
	case NodeRemoved:
		return "node_removed"
	case EdgeAdded:
		return "edge_added"
	case EdgeRemoved:
		return "edge_removed"
	default:
		return "unknown"
	}
}

// GraphChange records one node or edge addition/removal. Only the field
// matching Kind is set; the other holds its null value.
type GraphChange struct {
	Kind   ChangeKind
	NodeID NodeID
	EdgeID EdgeID
}

// ChangeSet is everything one outermost transaction did, in the order it was
// done. Changed is true whenever topology or multi-element membership changed,
// even if Changes is empty (for example a pure MergeNodes).
type ChangeSet struct {
	Changes []GraphChange
	Changed bool
}

// NodesAdded returns the ids recorded as added, in order.
func (cs *ChangeSet) NodesAdded() []NodeID { return cs.nodes(NodeAdded) }

// NodesRemoved returns the ids recorded as removed, in order.
func (cs *ChangeSet) NodesRemoved() []NodeID { return cs.nodes(NodeRemoved) }

// EdgesAdded returns the ids recorded as added, in order.
func (cs *ChangeSet) EdgesAdded() []EdgeID { return cs.edges(EdgeAdded) }

// EdgesRemoved returns the ids recorded as removed, in order.
func (cs *ChangeSet) EdgesRemoved() []EdgeID { return cs.edges(EdgeRemoved) }

func (cs *ChangeSet) nodes(kind ChangeKind) []NodeID {
	var out []NodeID
	for _, c := range cs.Changes {
		if c.Kind == kind {
			out = append(out, c.NodeID)
		}
	}
	return out
}

func (cs *ChangeSet) edges(kind ChangeKind) []EdgeID {
	var out []EdgeID
	for _, c := range cs.Changes {
		if c.Kind == kind {
			out = append(out, c.EdgeID)
		}
	}
	return out
}

// Listener observes transaction boundaries on a Store.
//
// GraphWillChange is called on the writer goroutine before the outermost
// transaction takes the store lock. GraphChanged is called after the lock has
// been released, so implementations may read the store.
type Listener interface {
	GraphWillChange(s *Store)
	GraphChanged(s *Store, cs *ChangeSet)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	WillChange func(s *Store)
	Changed    func(s *Store, cs *ChangeSet)
}

func (f ListenerFuncs) GraphWillChange(s *Store) {
	if f.WillChange != nil {
		f.WillChange(s)
	}
}

func (f ListenerFuncs) GraphChanged(s *Store, cs *ChangeSet) {
	if f.Changed != nil {
		f.Changed(s, cs)
	}
}

type listenerEntry[F any] struct {
	id int
	fn F
}

// listenerSet keeps callbacks in subscription order.
type listenerSet[F any] struct {
	mu      sync.Mutex
	next    int
	entries []listenerEntry[F]
}

func (ls *listenerSet[F]) add(fn F) func() {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	id := ls.next
	ls.next++
	ls.entries = append(ls.entries, listenerEntry[F]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			ls.mu.Lock()
			defer ls.mu.Unlock()
			for i, e := range ls.entries {
				if e.id == id {
					ls.entries = append(ls.entries[:i:i], ls.entries[i+1:]...)
					return
				}
			}
		})
	}
}

func (ls *listenerSet[F]) snapshot() []F {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	out := make([]F, len(ls.entries))
	for i, e := range ls.entries {
		out[i] = e.fn
	}
	return out
}
