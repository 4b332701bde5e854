package graph

import (
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// Diff lists the ids present in exactly one of two stores, ascending.
type Diff struct {
	NodesAdded   []NodeID
	NodesRemoved []NodeID
	EdgesAdded   []EdgeID
	EdgesRemoved []EdgeID
}

// Empty reports whether the two stores have the same ids in use.
func (d Diff) Empty() bool {
	return len(d.NodesAdded) == 0 && len(d.NodesRemoved) == 0 &&
		len(d.EdgesAdded) == 0 && len(d.EdgesRemoved) == 0
}

// DiffTo returns what would be added and removed to turn s into other.
func (s *Store) DiffTo(other *Store) Diff {
	if other == s {
		return Diff{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	other.mu.RLock()
	defer other.mu.RUnlock()
	return s.diffTo(other)
}

func (s *Store) diffTo(other *Store) Diff {
	return Diff{
		NodesAdded:   bitmapIDs[NodeID](roaring.AndNot(other.n.inUse, s.n.inUse)),
		NodesRemoved: bitmapIDs[NodeID](roaring.AndNot(s.n.inUse, other.n.inUse)),
		EdgesAdded:   bitmapIDs[EdgeID](roaring.AndNot(other.e.inUse, s.e.inUse)),
		EdgesRemoved: bitmapIDs[EdgeID](roaring.AndNot(s.e.inUse, other.e.inUse)),
	}
}

func bitmapIDs[T ~int32](b *roaring.Bitmap) []T {
	if b.IsEmpty() {
		return nil
	}
	out := make([]T, 0, b.GetCardinality())
	it := b.Iterator()
	for it.HasNext() {
		out = append(out, T(it.Next()))
	}
	return out
}

// CloneFrom replaces the content of the store with a deep copy of other.
// The difference between the two is computed before the copy and replayed
// afterwards as node-added, edge-added, edge-removed and node-removed
// changes, so listeners see a coherent change sequence instead of a silent
// swap. Cloning an unchanged source twice records nothing the second time.
func (tx *Tx) CloneFrom(other *Store) {
	tx.checkOpen()

	s := tx.s
	if other == s {
		return
	}

	other.mu.RLock()
	defer other.mu.RUnlock()

	diff := s.diffTo(other)

	s.n = other.n.clone()
	s.nodeIDs = slices.Clone(other.nodeIDs)
	s.unusedNodeIDs = slices.Clone(other.unusedNodeIDs)

	s.e = other.e.clone()
	s.edgeIDs = slices.Clone(other.edgeIDs)
	s.unusedEdgeIDs = slices.Clone(other.unusedEdgeIDs)

	for _, id := range diff.NodesAdded {
		s.record(GraphChange{Kind: NodeAdded, NodeID: id, EdgeID: NullEdgeID})
	}
	for _, id := range diff.EdgesAdded {
		s.record(GraphChange{Kind: EdgeAdded, NodeID: NullNodeID, EdgeID: id})
	}
	for _, id := range diff.EdgesRemoved {
		s.record(GraphChange{Kind: EdgeRemoved, NodeID: NullNodeID, EdgeID: id})
	}
	for _, id := range diff.NodesRemoved {
		s.record(GraphChange{Kind: NodeRemoved, NodeID: id, EdgeID: NullEdgeID})
	}

	s.updateRequired = true
}

// Clear removes every node, and with them every edge, then resets the arenas
// so that ids are allocated from zero again.
func (tx *Tx) Clear() {
	tx.checkOpen()

	s := tx.s
	for _, id := range tx.NodeIDs() {
		s.removeNode(id)
	}

	s.n = newNodeArena()
	s.e = newEdgeArena()
	s.unusedNodeIDs = nil
	s.unusedEdgeIDs = nil
	s.updateRequired = true
}
