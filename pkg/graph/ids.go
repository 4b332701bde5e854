package graph

import "strconv"

// NodeID is a dense, stable handle for a node. It is only meaningful while the
// node is in use; once removed the id goes back to the store's free list.
type NodeID int32

// EdgeID is a dense, stable handle for an edge.
type EdgeID int32

// ComponentID identifies a live connected component. Ids are recycled through
// a FIFO queue once a component disappears.
type ComponentID int32

// Null handles denote absence.
const (
	NullNodeID      NodeID      = -1
	NullEdgeID      EdgeID      = -1
	NullComponentID ComponentID = -1
)

// IsNull reports whether id is NullNodeID.
func (id NodeID) IsNull() bool { return id < 0 }

// IsNull reports whether id is NullEdgeID.
func (id EdgeID) IsNull() bool { return id < 0 }

// IsNull reports whether id is NullComponentID.
func (id ComponentID) IsNull() bool { return id < 0 }

func (id NodeID) String() string {
	if id.IsNull() {
		return "NodeID(null)"
	}
	return "NodeID(" + strconv.Itoa(int(id)) + ")"
}

func (id EdgeID) String() string {
	if id.IsNull() {
		return "EdgeID(null)"
	}
	return "EdgeID(" + strconv.Itoa(int(id)) + ")"
}

func (id ComponentID) String() string {
	if id.IsNull() {
		return "ComponentID(null)"
	}
	return "ComponentID(" + strconv.Itoa(int(id)) + ")"
}

// Edge is the topology of a single edge.
type Edge struct {
	ID     EdgeID
	Source NodeID
	Target NodeID
}

// Opposite returns the endpoint of e that is not nodeID. For a self-loop
// both endpoints are nodeID.
func (e Edge) Opposite(nodeID NodeID) NodeID {
	if e.Source == nodeID {
		return e.Target
	}
	return e.Source
}

// undirectedEdge keys the connection index by unordered endpoint pair.
type undirectedEdge struct {
	lo, hi NodeID
}

func newUndirectedEdge(a, b NodeID) undirectedEdge {
	if a > b {
		a, b = b, a
	}
	return undirectedEdge{lo: a, hi: b}
}
