package graph

import (
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// ContractEdge collapses edge id: the edge is removed and the endpoint with
// the larger id is absorbed into the one with the smaller id, which inherits
// every remaining edge of the absorbed node and becomes the head of their
// multi-element group. Contracting an edge that does not exist is a no-op.
func (tx *Tx) ContractEdge(id EdgeID) {
	tx.checkOpen()

	s := tx.s
	if !s.containsEdge(id) {
		return
	}

	e := s.e.edges[id]
	keep, absorb := min(e.Source, e.Target), max(e.Source, e.Target)

	s.removeEdge(id)
	s.moveEdgesTo(keep,
		slices.Clone(s.n.nodes[absorb].in),
		slices.Clone(s.n.nodes[absorb].out))
	s.mergeNodes(keep, absorb)
}

// ContractEdges collapses every edge in ids at once. The nodes connected by
// the given edges form clusters; each cluster is reduced to its smallest
// node id, whatever order the edges are in. Edges not in ids that run between
// nodes of the same cluster become self-loops and parallel edges are kept.
// Ids that are not in use are ignored.
func (tx *Tx) ContractEdges(ids []EdgeID) {
	tx.checkOpen()

	s := tx.s
	contract := roaring.New()
	for _, id := range ids {
		if s.containsEdge(id) {
			contract.Add(uint32(id))
		}
	}
	if contract.IsEmpty() {
		return
	}

	// Partition into clusters, ignoring every edge that is not being
	// contracted, so that each component is a set of nodes to merge
	s.refreshInUseIDs()
	clusters := newTracker(s, trackerConfig{
		edgeFilters: []EdgeFilter{func(id EdgeID) bool {
			return !contract.Contains(uint32(id))
		}},
		logger:  s.logger,
		metrics: NoopMetricsCollector{},
	})

	it := contract.Iterator()
	for it.HasNext() {
		s.removeEdge(EdgeID(it.Next()))
	}

	for _, componentID := range clusters.componentIDs {
		component := clusters.components[componentID]

		// Nothing to contract
		if len(component.nodeIDs) < 2 {
			continue
		}

		keep := slices.Min(component.nodeIDs)
		s.moveEdgesTo(keep,
			s.inEdgeIDsForNodes(component.nodeIDs),
			s.outEdgeIDsForNodes(component.nodeIDs))

		for _, nodeID := range component.nodeIDs {
			s.mergeNodes(keep, nodeID)
		}
	}
}

// moveEdgesTo reattaches edges to nodeID: in-edges get nodeID as target,
// out-edges get it as source. Edges keep their ids and multi-element
// membership and no add/remove changes are recorded, so the rewiring shows up
// as part of the enclosing contraction only.
func (s *Store) moveEdgesTo(nodeID NodeID, inEdgeIDs, outEdgeIDs []EdgeID) {
	s.silent++
	defer func() { s.silent-- }()

	for _, id := range inEdgeIDs {
		e := s.e.edges[id]
		s.rewireEdge(id, e.Source, nodeID)
	}

	for _, id := range outEdgeIDs {
		e := s.e.edges[id]
		s.rewireEdge(id, nodeID, e.Target)
	}
}

func (s *Store) rewireEdge(id EdgeID, source, target NodeID) {
	e := s.e.edges[id]
	if e.Source == source && e.Target == target {
		return
	}

	s.n.nodes[e.Source].out = deleteValue(s.n.nodes[e.Source].out, id)
	s.n.nodes[e.Target].in = deleteValue(s.n.nodes[e.Target].in, id)

	oldKey := newUndirectedEdge(e.Source, e.Target)
	if connection := deleteValue(s.e.connections[oldKey], id); len(connection) == 0 {
		delete(s.e.connections, oldKey)
	} else {
		s.e.connections[oldKey] = connection
	}

	s.e.edges[id] = Edge{ID: id, Source: source, Target: target}
	s.n.nodes[source].out = append(s.n.nodes[source].out, id)
	s.n.nodes[target].in = append(s.n.nodes[target].in, id)

	newKey := newUndirectedEdge(source, target)
	s.e.connections[newKey] = append(s.e.connections[newKey], id)

	s.updateRequired = true
}
