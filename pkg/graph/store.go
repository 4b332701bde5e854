package graph

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
)

type node struct {
	in  []EdgeID
	out []EdgeID
}

type nodeArena struct {
	nodes  []node
	inUse  *roaring.Bitmap
	merged *multiElements[NodeID]
}

func newNodeArena() nodeArena {
	return nodeArena{inUse: roaring.New(), merged: newMultiElements[NodeID]()}
}

func (a nodeArena) clone() nodeArena {
	nodes := make([]node, len(a.nodes))
	for i, n := range a.nodes {
		nodes[i] = node{in: slices.Clone(n.in), out: slices.Clone(n.out)}
	}
	return nodeArena{nodes: nodes, inUse: a.inUse.Clone(), merged: a.merged.clone()}
}

type edgeArena struct {
	edges       []Edge
	inUse       *roaring.Bitmap
	merged      *multiElements[EdgeID]
	connections map[undirectedEdge][]EdgeID
}

func newEdgeArena() edgeArena {
	return edgeArena{
		inUse:       roaring.New(),
		merged:      newMultiElements[EdgeID](),
		connections: make(map[undirectedEdge][]EdgeID),
	}
}

func (a edgeArena) clone() edgeArena {
	connections := make(map[undirectedEdge][]EdgeID, len(a.connections))
	for k, ids := range a.connections {
		connections[k] = slices.Clone(ids)
	}
	return edgeArena{
		edges:       slices.Clone(a.edges),
		inUse:       a.inUse.Clone(),
		merged:      a.merged.clone(),
		connections: connections,
	}
}

// Store is a mutable graph whose node and edge ids stay stable for as long as
// the element is in use, so arrays indexed by id held elsewhere remain valid.
//
// All mutation happens inside a transaction (see Begin). A single writer is
// assumed: the outermost transaction holds the store's write lock until it
// commits, and read accessors take the read lock, so readers never observe a
// partially applied batch.
type Store struct {
	mu sync.RWMutex

	n nodeArena
	e edgeArena

	// Dense id lists and FIFO free lists, rebuilt from the in-use bitmaps when
	// the outermost transaction commits.
	nodeIDs       []NodeID
	unusedNodeIDs []NodeID
	edgeIDs       []EdgeID
	unusedEdgeIDs []EdgeID

	depth          atomic.Int32
	changes        *ChangeSet
	silent         int
	updateRequired bool
	closed         atomic.Bool

	listeners listenerSet[Listener]
	logger    *slog.Logger
	metrics   MetricsCollector
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics collector used by the store and, unless
// overridden, by trackers attached to it.
func WithMetrics(m MetricsCollector) StoreOption {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewStore returns an empty graph.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		n:       newNodeArena(),
		e:       newEdgeArena(),
		logger:  slog.Default(),
		metrics: NoopMetricsCollector{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers l for transaction notifications and returns a function
// that removes it again.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	return s.listeners.add(l)
}

// Close marks the store as unusable. Closing while a transaction is open is a
// contract violation. Close waits for in-flight readers.
func (s *Store) Close() {
	if s.depth.Load() > 0 {
		violation(ErrTransactionOpen, "close with transaction depth %d", s.depth.Load())
	}
	s.mu.Lock()
	s.closed.Store(true)
	s.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Read accessors. These take the read lock; inside a transaction use the
// equivalent Tx methods instead.
// ---------------------------------------------------------------------------

// NodeIDs returns the in-use node ids in ascending order as of the last
// commit. The slice must not be modified.
func (s *Store) NodeIDs() []NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodeIDs
}

// EdgeIDs returns the in-use edge ids in ascending order as of the last
// commit. The slice must not be modified.
func (s *Store) EdgeIDs() []EdgeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edgeIDs
}

// NumNodes returns the number of nodes in use.
func (s *Store) NumNodes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodeIDs)
}

// NumEdges returns the number of edges in use.
func (s *Store) NumEdges() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edgeIDs)
}

// NextNodeID is one past the largest node id ever allocated.
func (s *Store) NextNodeID() NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextNodeID()
}

// NextEdgeID is one past the largest edge id ever allocated.
func (s *Store) NextEdgeID() EdgeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextEdgeID()
}

// ContainsNode reports whether id is in use.
func (s *Store) ContainsNode(id NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.containsNode(id)
}

// ContainsEdge reports whether id is in use.
func (s *Store) ContainsEdge(id EdgeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.containsEdge(id)
}

// Edge returns the topology of an in-use edge.
func (s *Store) Edge(id EdgeID) Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edge(id)
}

// InEdgeIDs returns a copy of the ids of edges targeting id.
func (s *Store) InEdgeIDs(id NodeID) []EdgeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.nodeRef(id).in)
}

// OutEdgeIDs returns a copy of the ids of edges leaving id.
func (s *Store) OutEdgeIDs(id NodeID) []EdgeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.nodeRef(id).out)
}

// EdgeIDsForNode returns in-edges followed by out-edges. A self-loop appears
// twice.
func (s *Store) EdgeIDsForNode(id NodeID) []EdgeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edgeIDsForNode(id)
}

// InEdgeIDsForNodes returns the in-edges of every node in ids, concatenated.
func (s *Store) InEdgeIDsForNodes(ids []NodeID) []EdgeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inEdgeIDsForNodes(ids)
}

// OutEdgeIDsForNodes returns the out-edges of every node in ids, concatenated.
func (s *Store) OutEdgeIDsForNodes(ids []NodeID) []EdgeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outEdgeIDsForNodes(ids)
}

// EdgeIDsBetween returns the parallel edges connecting a and b in either
// direction, in insertion order.
func (s *Store) EdgeIDsBetween(a, b NodeID) []EdgeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.e.connections[newUndirectedEdge(a, b)])
}

// NumConnections returns the number of distinct unordered endpoint pairs.
func (s *Store) NumConnections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.e.connections)
}

// NodeType returns the multi-element role of id.
func (s *Store) NodeType(id NodeID) MultiElementType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.n.merged.typeOf(id)
}

// EdgeType returns the multi-element role of id.
func (s *Store) EdgeType(id EdgeID) MultiElementType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.e.merged.typeOf(id)
}

// MergedNodeIDs returns every node merged with id, head first.
func (s *Store) MergedNodeIDs(id NodeID) []NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.n.merged.membersOf(id))
}

// MergedEdgeIDs returns every edge merged with id, head first.
func (s *Store) MergedEdgeIDs(id EdgeID) []EdgeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.e.merged.membersOf(id))
}

// ---------------------------------------------------------------------------
// Mutation API. Each call runs in its own transaction; to batch several,
// use Begin or Update and call the Tx methods.
// ---------------------------------------------------------------------------

// AddNode adds a node, reusing a freed id when one is available.
func (s *Store) AddNode() (id NodeID) {
	s.Update(func(tx *Tx) { id = tx.AddNode() })
	return id
}

// AddNodeWithID adds a node with the requested id, or an automatically
// allocated one when the id is out of range or already in use.
func (s *Store) AddNodeWithID(requested NodeID) (id NodeID) {
	s.Update(func(tx *Tx) { id = tx.AddNodeWithID(requested) })
	return id
}

// RemoveNode removes id and every edge touching it.
func (s *Store) RemoveNode(id NodeID) {
	s.Update(func(tx *Tx) { tx.RemoveNode(id) })
}

// RemoveNodes removes every node in ids.
func (s *Store) RemoveNodes(ids []NodeID) {
	s.Update(func(tx *Tx) { tx.RemoveNodes(ids) })
}

// AddEdge adds an edge between two in-use nodes.
func (s *Store) AddEdge(source, target NodeID) (id EdgeID) {
	s.Update(func(tx *Tx) { id = tx.AddEdge(source, target) })
	return id
}

// AddEdgeWithID adds an edge with the requested id when it is available.
func (s *Store) AddEdgeWithID(requested EdgeID, source, target NodeID) (id EdgeID) {
	s.Update(func(tx *Tx) { id = tx.AddEdgeWithID(requested, source, target) })
	return id
}

// RemoveEdge removes an in-use edge.
func (s *Store) RemoveEdge(id EdgeID) {
	s.Update(func(tx *Tx) { tx.RemoveEdge(id) })
}

// RemoveEdges removes every edge in ids.
func (s *Store) RemoveEdges(ids []EdgeID) {
	s.Update(func(tx *Tx) { tx.RemoveEdges(ids) })
}

// MergeNodes makes b a tail of a's group and returns the head.
func (s *Store) MergeNodes(a, b NodeID) (head NodeID) {
	s.Update(func(tx *Tx) { head = tx.MergeNodes(a, b) })
	return head
}

// MergeEdges makes b a tail of a's group and returns the head.
func (s *Store) MergeEdges(a, b EdgeID) (head EdgeID) {
	s.Update(func(tx *Tx) { head = tx.MergeEdges(a, b) })
	return head
}

// ContractEdge collapses an edge; see Tx.ContractEdge.
func (s *Store) ContractEdge(id EdgeID) {
	s.Update(func(tx *Tx) { tx.ContractEdge(id) })
}

// ContractEdges collapses a set of edges; see Tx.ContractEdges.
func (s *Store) ContractEdges(ids []EdgeID) {
	s.Update(func(tx *Tx) { tx.ContractEdges(ids) })
}

// CloneFrom replaces the content of s with a deep copy of other; see
// Tx.CloneFrom.
func (s *Store) CloneFrom(other *Store) {
	s.Update(func(tx *Tx) { tx.CloneFrom(other) })
}

// Clear removes every node and edge and resets id allocation.
func (s *Store) Clear() {
	s.Update(func(tx *Tx) { tx.Clear() })
}

// ---------------------------------------------------------------------------
// Unlocked internals. Callers hold s.mu (read or write as appropriate).
// ---------------------------------------------------------------------------

func (s *Store) nextNodeID() NodeID { return NodeID(len(s.n.nodes)) }
func (s *Store) nextEdgeID() EdgeID { return EdgeID(len(s.e.edges)) }

func (s *Store) containsNode(id NodeID) bool {
	return id >= 0 && s.n.inUse.Contains(uint32(id))
}

func (s *Store) containsEdge(id EdgeID) bool {
	return id >= 0 && s.e.inUse.Contains(uint32(id))
}

func (s *Store) nodeRef(id NodeID) *node {
	if !s.containsNode(id) {
		violation(ErrNodeNotFound, "%d", id)
	}
	return &s.n.nodes[id]
}

func (s *Store) edge(id EdgeID) Edge {
	if !s.containsEdge(id) {
		violation(ErrEdgeNotFound, "%d", id)
	}
	return s.e.edges[id]
}

func (s *Store) edgeIDsForNode(id NodeID) []EdgeID {
	n := s.nodeRef(id)
	out := make([]EdgeID, 0, len(n.in)+len(n.out))
	out = append(out, n.in...)
	return append(out, n.out...)
}

func (s *Store) inEdgeIDsForNodes(ids []NodeID) []EdgeID {
	var out []EdgeID
	for _, id := range ids {
		out = append(out, s.nodeRef(id).in...)
	}
	return out
}

func (s *Store) outEdgeIDsForNodes(ids []NodeID) []EdgeID {
	var out []EdgeID
	for _, id := range ids {
		out = append(out, s.nodeRef(id).out...)
	}
	return out
}

func (s *Store) record(c GraphChange) {
	if s.silent > 0 || s.changes == nil {
		return
	}
	s.changes.Changes = append(s.changes.Changes, c)
}

func (s *Store) reserveNodeID(id NodeID) {
	if id < s.nextNodeID() {
		return
	}
	s.n.nodes = append(s.n.nodes, make([]node, int(id)+1-len(s.n.nodes))...)
	s.n.merged.resize(len(s.n.nodes))
}

func (s *Store) reserveEdgeID(id EdgeID) {
	if id < s.nextEdgeID() {
		return
	}
	s.e.edges = append(s.e.edges, make([]Edge, int(id)+1-len(s.e.edges))...)
	s.e.merged.resize(len(s.e.edges))
}

// popUnusedNodeID takes the oldest freed id. Entries can be stale when an id
// was reclaimed explicitly by AddNodeWithID, so in-use ids are skipped.
func (s *Store) popUnusedNodeID() NodeID {
	for len(s.unusedNodeIDs) > 0 {
		id := s.unusedNodeIDs[0]
		s.unusedNodeIDs = s.unusedNodeIDs[1:]
		if !s.containsNode(id) && id < s.nextNodeID() {
			return id
		}
	}
	return s.nextNodeID()
}

func (s *Store) popUnusedEdgeID() EdgeID {
	for len(s.unusedEdgeIDs) > 0 {
		id := s.unusedEdgeIDs[0]
		s.unusedEdgeIDs = s.unusedEdgeIDs[1:]
		if !s.containsEdge(id) && id < s.nextEdgeID() {
			return id
		}
	}
	return s.nextEdgeID()
}

func (s *Store) addNode(id NodeID) NodeID {
	if id.IsNull() {
		violation(ErrNullID, "add node")
	}

	// The requested id is unavailable or out of range, so append
	if id >= s.nextNodeID() || s.containsNode(id) {
		id = s.nextNodeID()
		s.reserveNodeID(id)
	}

	s.n.inUse.Add(uint32(id))
	s.n.nodes[id] = node{}

	s.record(GraphChange{Kind: NodeAdded, NodeID: id, EdgeID: NullEdgeID})
	s.updateRequired = true
	return id
}

func (s *Store) removeNode(id NodeID) {
	if !s.containsNode(id) {
		violation(ErrNodeNotFound, "remove node %d", id)
	}

	for _, edgeID := range slices.Clone(s.n.nodes[id].in) {
		s.removeEdge(edgeID)
	}

	// Separate pass: a self-loop is in both lists and is already gone
	for _, edgeID := range slices.Clone(s.n.nodes[id].out) {
		s.removeEdge(edgeID)
	}

	s.n.merged.remove(id)
	s.n.inUse.Remove(uint32(id))
	s.n.nodes[id] = node{}
	s.unusedNodeIDs = append(s.unusedNodeIDs, id)

	s.record(GraphChange{Kind: NodeRemoved, NodeID: id, EdgeID: NullEdgeID})
	s.updateRequired = true
}

func (s *Store) addEdge(id EdgeID, source, target NodeID) EdgeID {
	if id.IsNull() {
		violation(ErrNullID, "add edge")
	}
	if !s.containsNode(source) {
		violation(ErrNodeNotFound, "edge source %d", source)
	}
	if !s.containsNode(target) {
		violation(ErrNodeNotFound, "edge target %d", target)
	}

	if id >= s.nextEdgeID() || s.containsEdge(id) {
		id = s.nextEdgeID()
		s.reserveEdgeID(id)
	}

	s.e.inUse.Add(uint32(id))
	s.e.edges[id] = Edge{ID: id, Source: source, Target: target}

	s.n.nodes[source].out = append(s.n.nodes[source].out, id)
	s.n.nodes[target].in = append(s.n.nodes[target].in, id)

	key := newUndirectedEdge(source, target)
	s.e.connections[key] = append(s.e.connections[key], id)

	s.record(GraphChange{Kind: EdgeAdded, NodeID: NullNodeID, EdgeID: id})
	s.updateRequired = true
	return id
}

func (s *Store) removeEdge(id EdgeID) {
	if !s.containsEdge(id) {
		violation(ErrEdgeNotFound, "remove edge %d", id)
	}

	e := s.e.edges[id]
	src, tgt := &s.n.nodes[e.Source], &s.n.nodes[e.Target]
	src.out = deleteValue(src.out, id)
	tgt.in = deleteValue(tgt.in, id)

	key := newUndirectedEdge(e.Source, e.Target)
	connection := deleteValue(s.e.connections[key], id)
	if len(connection) == 0 {
		delete(s.e.connections, key)
	} else {
		s.e.connections[key] = connection
	}

	s.e.merged.remove(id)
	s.e.inUse.Remove(uint32(id))
	s.e.edges[id] = Edge{ID: NullEdgeID, Source: NullNodeID, Target: NullNodeID}
	s.unusedEdgeIDs = append(s.unusedEdgeIDs, id)

	s.record(GraphChange{Kind: EdgeRemoved, NodeID: NullNodeID, EdgeID: id})
	s.updateRequired = true
}

// refreshIDLists rebuilds the dense and free id lists from the bitmaps.
// Free lists come out in ascending order.
func (s *Store) refreshIDLists() {
	if !s.updateRequired {
		return
	}
	s.updateRequired = false
	s.refreshInUseIDs()

	s.unusedNodeIDs = s.unusedNodeIDs[:0:0]
	for id := NodeID(0); id < s.nextNodeID(); id++ {
		if !s.n.inUse.Contains(uint32(id)) {
			s.unusedNodeIDs = append(s.unusedNodeIDs, id)
		}
	}

	s.unusedEdgeIDs = s.unusedEdgeIDs[:0:0]
	for id := EdgeID(0); id < s.nextEdgeID(); id++ {
		if !s.e.inUse.Contains(uint32(id)) {
			s.unusedEdgeIDs = append(s.unusedEdgeIDs, id)
		}
	}
}

// refreshInUseIDs rebuilds only the dense id lists. The free lists and
// updateRequired are left alone, so it is safe in the middle of a
// transaction.
func (s *Store) refreshInUseIDs() {
	s.nodeIDs = make([]NodeID, 0, s.n.inUse.GetCardinality())
	for it := s.n.inUse.Iterator(); it.HasNext(); {
		s.nodeIDs = append(s.nodeIDs, NodeID(it.Next()))
	}

	s.edgeIDs = make([]EdgeID, 0, s.e.inUse.GetCardinality())
	for it := s.e.inUse.Iterator(); it.HasNext(); {
		s.edgeIDs = append(s.edgeIDs, EdgeID(it.Next()))
	}
}

func (s *Store) connectionKeys() []undirectedEdge {
	return slices.Collect(maps.Keys(s.e.connections))
}

func deleteValue[T comparable](ids []T, v T) []T {
	if i := slices.Index(ids, v); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}
