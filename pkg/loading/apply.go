package loading

import (
	"github.com/orneryd/netgraph/pkg/graph"
)

// Result maps the names used in the input to the ids they were given.
type Result struct {
	NodeIDs     map[string]graph.NodeID
	NodeNames   map[graph.NodeID]string
	EdgeWeights map[graph.EdgeID]float64
}

// NewResult returns an empty name table.
func NewResult() *Result {
	return &Result{
		NodeIDs:     make(map[string]graph.NodeID),
		NodeNames:   make(map[graph.NodeID]string),
		EdgeWeights: make(map[graph.EdgeID]float64),
	}
}

// NumNodes returns the number of distinct names seen.
func (r *Result) NumNodes() int { return len(r.NodeIDs) }

// Apply adds the pairs to the graph through tx. A name seen before, in this
// call or an earlier one with the same Result, reuses its node.
func (r *Result) Apply(tx *graph.Tx, pairs []Pair) {
	for _, p := range pairs {
		source := r.node(tx, p.Source)
		target := r.node(tx, p.Target)

		edgeID := tx.AddEdge(source, target)
		if p.HasWeight {
			r.EdgeWeights[edgeID] = p.Weight
		}
	}
}

func (r *Result) node(tx *graph.Tx, name string) graph.NodeID {
	if id, ok := r.NodeIDs[name]; ok {
		return id
	}
	id := tx.AddNode()
	r.NodeIDs[name] = id
	r.NodeNames[id] = name
	return id
}
