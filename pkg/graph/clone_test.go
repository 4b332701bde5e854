package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneFrom(t *testing.T) {
	source := NewStore()
	source.Update(func(tx *Tx) {
		a, b, c := tx.AddNode(), tx.AddNode(), tx.AddNode()
		tx.AddEdge(a, b)
		tx.AddEdge(b, c)
		tx.MergeNodes(b, c)
	})

	target := NewStore()
	target.Update(func(tx *Tx) {
		a, b := tx.AddNode(), tx.AddNode()
		tx.AddNode()
		tx.AddNode()
		tx.AddEdge(b, a)
		tx.RemoveNode(3)
	})

	t.Run("diff", func(t *testing.T) {
		diff := target.DiffTo(source)
		assert.Empty(t, diff.NodesAdded)
		assert.Empty(t, diff.NodesRemoved)
		assert.Equal(t, []EdgeID{1}, diff.EdgesAdded)
		assert.Empty(t, diff.EdgesRemoved)
		assert.False(t, diff.Empty())
		assert.True(t, source.DiffTo(source).Empty())
	})

	l := &recordingListener{}
	target.Subscribe(l)

	t.Run("replays the difference", func(t *testing.T) {
		target.CloneFrom(source)

		require.Len(t, l.changes, 1)
		assert.Equal(t, []GraphChange{
			{Kind: EdgeAdded, NodeID: NullNodeID, EdgeID: 1},
		}, l.changes[0].Changes)

		assert.Equal(t, source.NodeIDs(), target.NodeIDs())
		assert.Equal(t, source.EdgeIDs(), target.EdgeIDs())
		assert.Equal(t, source.Edge(0), target.Edge(0))
		assert.Equal(t, Tail, target.NodeType(2))
		assert.True(t, target.DiffTo(source).Empty())
		checkInvariants(t, target)
	})

	t.Run("second clone records nothing", func(t *testing.T) {
		target.CloneFrom(source)
		require.Len(t, l.changes, 2)
		assert.Empty(t, l.changes[1].Changes)
	})

	t.Run("copy is deep", func(t *testing.T) {
		source.RemoveEdge(0)
		assert.True(t, target.ContainsEdge(0))
		assert.Equal(t, []NodeID{1, 2}, target.MergedNodeIDs(1))

		target.CloneFrom(source)
		assert.Equal(t, []EdgeID{0}, l.changes[2].EdgesRemoved())
	})

	t.Run("removals are replayed", func(t *testing.T) {
		empty := NewStore()
		target.CloneFrom(empty)

		cs := l.changes[3]
		assert.Equal(t, []EdgeID{1}, cs.EdgesRemoved())
		assert.Equal(t, []NodeID{0, 1, 2}, cs.NodesRemoved())
		assert.Zero(t, target.NumNodes())
	})

	t.Run("cloning itself is a no-op", func(t *testing.T) {
		assert.NotPanics(t, func() { source.CloneFrom(source) })
	})
}
