package graph

import (
	"slices"
	"time"
)

// Tx is a handle on an open transaction. The outermost handle, obtained from
// Store.Begin, holds the store's write lock; nested handles from Tx.Begin
// share it. Committing the last open handle publishes the batch: id lists are
// rebuilt, the lock is released and listeners receive one GraphChanged.
//
// Mutations made through any handle of the same transaction are observed as a
// single atomic batch. Transactions cannot be rolled back: once begun they run
// to completion.
//
// Example:
//
//	tx := store.Begin()
//	a := tx.AddNode()
//	b := tx.AddNode()
//	tx.AddEdge(a, b)
//	tx.Commit()
type Tx struct {
	s     *Store
	done  bool
	start time.Time
}

// Begin opens the outermost transaction. It notifies listeners that the graph
// is about to change and then blocks until the store's write lock is
// available. Calling Begin again on the same goroutine before committing
// deadlocks; use Tx.Begin to nest.
func (s *Store) Begin() *Tx {
	if s.closed.Load() {
		violation(ErrStoreClosed, "begin")
	}

	for _, l := range s.listeners.snapshot() {
		l.GraphWillChange(s)
	}

	s.mu.Lock()
	s.depth.Add(1)
	s.changes = &ChangeSet{}
	return &Tx{s: s, start: time.Now()}
}

// Update runs fn inside a transaction and commits it.
func (s *Store) Update(fn func(tx *Tx)) {
	tx := s.Begin()
	defer tx.Commit()
	fn(tx)
}

// Begin opens a nested scope of the same transaction.
func (tx *Tx) Begin() *Tx {
	tx.checkOpen()
	tx.s.depth.Add(1)
	return &Tx{s: tx.s, start: tx.start}
}

// Commit closes this handle. When it was the last open handle of the
// transaction the batch is published. Committing a handle twice panics.
func (tx *Tx) Commit() {
	tx.checkOpen()
	tx.done = true

	if tx.s.depth.Add(-1) > 0 {
		return
	}
	tx.s.commit(tx.start)
}

func (tx *Tx) checkOpen() {
	if tx.done {
		violation(ErrTransactionClosed, "handle reused")
	}
}

func (s *Store) commit(start time.Time) {
	cs := s.changes
	s.changes = nil

	if s.updateRequired {
		cs.Changed = true
		s.refreshIDLists()
	}
	numNodes, numEdges := len(s.nodeIDs), len(s.edgeIDs)
	s.mu.Unlock()

	duration := time.Since(start)
	s.metrics.RecordCommit(len(cs.Changes), duration)
	s.logger.Debug("transaction committed",
		"changed", cs.Changed,
		"changes", len(cs.Changes),
		"nodes", numNodes,
		"edges", numEdges,
		"duration", duration,
	)

	for _, l := range s.listeners.snapshot() {
		l.GraphChanged(s, cs)
	}
}

// ---------------------------------------------------------------------------
// Reads inside a transaction. These see uncommitted changes and do not lock.
// ---------------------------------------------------------------------------

// NodeIDs returns the node ids currently in use, including those added by
// this transaction, in ascending order.
func (tx *Tx) NodeIDs() []NodeID {
	out := make([]NodeID, 0, tx.s.n.inUse.GetCardinality())
	it := tx.s.n.inUse.Iterator()
	for it.HasNext() {
		out = append(out, NodeID(it.Next()))
	}
	return out
}

// EdgeIDs returns the edge ids currently in use in ascending order.
func (tx *Tx) EdgeIDs() []EdgeID {
	out := make([]EdgeID, 0, tx.s.e.inUse.GetCardinality())
	it := tx.s.e.inUse.Iterator()
	for it.HasNext() {
		out = append(out, EdgeID(it.Next()))
	}
	return out
}

func (tx *Tx) ContainsNode(id NodeID) bool { return tx.s.containsNode(id) }
func (tx *Tx) ContainsEdge(id EdgeID) bool { return tx.s.containsEdge(id) }
func (tx *Tx) Edge(id EdgeID) Edge         { return tx.s.edge(id) }

func (tx *Tx) InEdgeIDs(id NodeID) []EdgeID  { return slices.Clone(tx.s.nodeRef(id).in) }
func (tx *Tx) OutEdgeIDs(id NodeID) []EdgeID { return slices.Clone(tx.s.nodeRef(id).out) }

func (tx *Tx) NodeType(id NodeID) MultiElementType { return tx.s.n.merged.typeOf(id) }
func (tx *Tx) EdgeType(id EdgeID) MultiElementType { return tx.s.e.merged.typeOf(id) }

// ---------------------------------------------------------------------------
// Mutations.
// ---------------------------------------------------------------------------

// AddNode adds a node, taking the oldest freed id if there is one.
func (tx *Tx) AddNode() NodeID {
	tx.checkOpen()
	return tx.s.addNode(tx.s.popUnusedNodeID())
}

// AddNodeWithID adds a node with the requested id. If the id is out of range
// or already in use a fresh id is appended instead.
func (tx *Tx) AddNodeWithID(id NodeID) NodeID {
	tx.checkOpen()
	return tx.s.addNode(id)
}

// RemoveNode removes an in-use node together with every edge touching it and
// releases any multi-element membership.
func (tx *Tx) RemoveNode(id NodeID) {
	tx.checkOpen()
	tx.s.removeNode(id)
}

// RemoveNodes removes every node in ids.
func (tx *Tx) RemoveNodes(ids []NodeID) {
	tx.checkOpen()
	for _, id := range ids {
		tx.s.removeNode(id)
	}
}

// AddEdge adds an edge between two in-use nodes.
func (tx *Tx) AddEdge(source, target NodeID) EdgeID {
	tx.checkOpen()
	return tx.s.addEdge(tx.s.popUnusedEdgeID(), source, target)
}

// AddEdgeWithID adds an edge with the requested id when it is available.
func (tx *Tx) AddEdgeWithID(id EdgeID, source, target NodeID) EdgeID {
	tx.checkOpen()
	return tx.s.addEdge(id, source, target)
}

// RemoveEdge removes an in-use edge.
func (tx *Tx) RemoveEdge(id EdgeID) {
	tx.checkOpen()
	tx.s.removeEdge(id)
}

// RemoveEdges removes every edge in ids.
func (tx *Tx) RemoveEdges(ids []EdgeID) {
	tx.checkOpen()
	for _, id := range ids {
		tx.s.removeEdge(id)
	}
}

// MergeNodes adds b, and any group b heads, as tails of a's group and returns
// the head.
func (tx *Tx) MergeNodes(a, b NodeID) NodeID {
	tx.checkOpen()
	return tx.s.mergeNodes(a, b)
}

// MergeEdges adds b, and any group b heads, as tails of a's group and returns
// the head.
func (tx *Tx) MergeEdges(a, b EdgeID) EdgeID {
	tx.checkOpen()
	if !tx.s.containsEdge(a) {
		violation(ErrEdgeNotFound, "merge edge %d", a)
	}
	if !tx.s.containsEdge(b) {
		violation(ErrEdgeNotFound, "merge edge %d", b)
	}
	tx.s.updateRequired = true
	return tx.s.e.merged.add(a, b)
}

func (s *Store) mergeNodes(a, b NodeID) NodeID {
	if !s.containsNode(a) {
		violation(ErrNodeNotFound, "merge node %d", a)
	}
	if !s.containsNode(b) {
		violation(ErrNodeNotFound, "merge node %d", b)
	}
	s.updateRequired = true
	return s.n.merged.add(a, b)
}
