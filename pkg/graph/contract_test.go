package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContractEdge(t *testing.T) {
	t.Run("keeps the smaller endpoint", func(t *testing.T) {
		for _, reversed := range []bool{false, true} {
			s := NewStore()
			var contracted, other EdgeID
			s.Update(func(tx *Tx) {
				for range 4 {
					tx.AddNode()
				}
				if reversed {
					contracted = tx.AddEdge(1, 3)
				} else {
					contracted = tx.AddEdge(3, 1)
				}
				other = tx.AddEdge(3, 2)
			})

			s.ContractEdge(contracted)

			assert.False(t, s.ContainsEdge(contracted))
			assert.Equal(t, Head, s.NodeType(1))
			assert.Equal(t, Tail, s.NodeType(3))
			assert.Equal(t, Edge{ID: other, Source: 1, Target: 2}, s.Edge(other),
				"edge keeps its id and moves to the survivor")
			assert.Empty(t, s.InEdgeIDs(3))
			assert.Empty(t, s.OutEdgeIDs(3))
			checkInvariants(t, s)
		}
	})

	t.Run("rewiring is not reported as add and remove", func(t *testing.T) {
		s := NewStore()
		s.Update(func(tx *Tx) {
			a, b, c := tx.AddNode(), tx.AddNode(), tx.AddNode()
			tx.AddEdge(a, b)
			tx.AddEdge(b, c)
		})

		l := &recordingListener{}
		s.Subscribe(l)
		s.ContractEdge(0)

		require.Len(t, l.changes, 1)
		assert.Equal(t, []GraphChange{
			{Kind: EdgeRemoved, NodeID: NullNodeID, EdgeID: 0},
		}, l.changes[0].Changes)
		assert.True(t, l.changes[0].Changed)
		assert.Equal(t, Edge{ID: 1, Source: 0, Target: 2}, s.Edge(1))
	})

	t.Run("parallel edges become self-loops", func(t *testing.T) {
		s := NewStore()
		s.Update(func(tx *Tx) {
			a, b := tx.AddNode(), tx.AddNode()
			tx.AddEdge(a, b)
			tx.AddEdge(b, a)
		})

		s.ContractEdge(0)
		assert.Equal(t, Edge{ID: 1, Source: 0, Target: 0}, s.Edge(1))
		assert.Equal(t, []EdgeID{1}, s.EdgeIDsBetween(0, 0))
		checkInvariants(t, s)
	})

	t.Run("unknown edge is a no-op", func(t *testing.T) {
		s := NewStore()
		s.AddNode()
		l := &recordingListener{}
		s.Subscribe(l)

		assert.NotPanics(t, func() { s.ContractEdge(3) })
		require.Len(t, l.changes, 1)
		assert.False(t, l.changes[0].Changed)
	})
}

func TestContractEdges(t *testing.T) {
	// 0 -e0- 1 -e1- 2 -e3- 3 -e2- 4
	build := func() *Store {
		s := NewStore()
		s.Update(func(tx *Tx) {
			for range 5 {
				tx.AddNode()
			}
			tx.AddEdge(0, 1)
			tx.AddEdge(1, 2)
			tx.AddEdge(3, 4)
			tx.AddEdge(2, 3)
		})
		return s
	}

	t.Run("one survivor per cluster", func(t *testing.T) {
		s := build()
		s.ContractEdges([]EdgeID{1, 0, 2})

		assert.Equal(t, []EdgeID{3}, s.EdgeIDs())
		assert.Equal(t, Edge{ID: 3, Source: 0, Target: 3}, s.Edge(3))
		assert.Equal(t, []NodeID{0, 1, 2}, s.MergedNodeIDs(2))
		assert.Equal(t, []NodeID{3, 4}, s.MergedNodeIDs(4))
		assert.Equal(t, Head, s.NodeType(0))
		assert.Equal(t, Head, s.NodeType(3))
		assert.Equal(t, 5, s.NumNodes(), "tails stay in use")
		checkInvariants(t, s)
	})

	t.Run("order of ids does not matter", func(t *testing.T) {
		a, b := build(), build()
		a.ContractEdges([]EdgeID{0, 1, 2})
		b.ContractEdges([]EdgeID{2, 1, 0})

		for _, id := range a.NodeIDs() {
			assert.Equal(t, a.NodeType(id), b.NodeType(id))
			assert.Equal(t, a.MergedNodeIDs(id), b.MergedNodeIDs(id))
		}
		assert.Equal(t, a.Edge(3), b.Edge(3))
	})

	t.Run("internal edges become self-loops", func(t *testing.T) {
		s := build()
		s.Update(func(tx *Tx) { tx.AddEdge(2, 0) })
		s.ContractEdges([]EdgeID{0, 1})

		assert.Equal(t, Edge{ID: 4, Source: 0, Target: 0}, s.Edge(4))
		checkInvariants(t, s)
	})

	t.Run("unknown ids are ignored", func(t *testing.T) {
		s := build()
		s.ContractEdges([]EdgeID{42})
		assert.Len(t, s.EdgeIDs(), 4)
		s.ContractEdges(nil)
		assert.Len(t, s.EdgeIDs(), 4)
	})

	t.Run("inside a larger transaction", func(t *testing.T) {
		s := build()
		s.Update(func(tx *Tx) {
			n := tx.AddNode()
			e := tx.AddEdge(4, n)
			tx.ContractEdges([]EdgeID{2, e})
		})

		assert.Equal(t, []NodeID{3, 4, 5}, s.MergedNodeIDs(5))
		checkInvariants(t, s)
	})

	t.Run("freed ids keep their order within the transaction", func(t *testing.T) {
		s := build()
		var recycled []EdgeID
		s.Update(func(tx *Tx) {
			tx.RemoveEdge(3)
			tx.RemoveEdge(1)
			tx.ContractEdges([]EdgeID{2})
			recycled = append(recycled, tx.AddEdge(0, 1), tx.AddEdge(0, 1), tx.AddEdge(0, 1))
		})

		assert.Equal(t, []EdgeID{3, 1, 2}, recycled)
		checkInvariants(t, s)
	})
}
