package graph

import (
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/orneryd/netgraph/pkg/pool"
)

var frontiers = pool.NewSlicePool[NodeID](64)

// update recomputes the partition from the store's current topology and
// returns the events describing how it differs from the previous one. The
// caller holds the store lock and, for a subscribed tracker, t.mu.
func (t *Tracker) update() []ComponentEvent {
	start := time.Now()
	s := t.store

	newNodes := nullComponentIDs(int(s.nextNodeID()))
	newEdges := nullComponentIDs(int(s.nextEdgeID()))

	componentIDs := roaring.New()
	splits := make(map[ComponentID]*roaring.Bitmap)
	splitIDs := roaring.New()
	merges := make(map[ComponentID]*roaring.Bitmap)
	mergedIDs := roaring.New()
	t.dirty.Clear()

	// Search for merges and splits. The first node to reach a previous id
	// claims it; any later node still carrying that id lies in a piece that
	// was cut off.
	for _, nodeID := range s.nodeIDs {
		if t.nodeFiltered(nodeID) || !newNodes[nodeID].IsNull() {
			continue
		}

		previous := t.previousNodeComponentID(nodeID)
		if previous.IsNull() {
			continue
		}

		if componentIDs.Contains(uint32(previous)) {
			newID := t.generateComponentID()
			componentIDs.Add(uint32(newID))
			t.floodFill(nodeID, newID, newNodes, newEdges)

			t.dirty.Add(uint32(previous))
			t.dirty.Add(uint32(newID))

			if _, ok := splits[previous]; !ok {
				splits[previous] = roaring.BitmapOf(uint32(previous))
			}
			splits[previous].Add(uint32(newID))
			splitIDs.Add(uint32(newID))
			continue
		}

		componentIDs.Add(uint32(previous))
		affected := t.floodFill(nodeID, previous, newNodes, newEdges)
		t.dirty.Add(uint32(previous))

		if affected.GetCardinality() > 1 {
			merges[previous] = affected.Clone()
			affected.Remove(uint32(previous))
			mergedIDs.Or(affected)
		}
	}

	// Entirely new components
	for _, nodeID := range s.nodeIDs {
		if t.nodeFiltered(nodeID) || !newNodes[nodeID].IsNull() ||
			!t.previousNodeComponentID(nodeID).IsNull() {
			continue
		}

		newID := t.generateComponentID()
		componentIDs.Add(uint32(newID))
		t.floodFill(nodeID, newID, newNodes, newEdges)
		t.dirty.Add(uint32(newID))
	}

	t.resizeArrays()

	previousIDs := roaring.New()
	for _, id := range t.componentIDs {
		previousIDs.Add(uint32(id))
	}
	added := bitmapIDs[ComponentID](roaring.AndNot(componentIDs, previousIDs))
	removed := bitmapIDs[ComponentID](roaring.AndNot(previousIDs, componentIDs))

	// Elements that gained or lost a component
	nodeAdds := make(map[ComponentID][]NodeID)
	nodeRemoves := make(map[ComponentID][]NodeID)
	for i := range max(len(t.nodesComponentID), len(newNodes)) {
		id := NodeID(i)
		before, after := t.previousNodeComponentID(id), componentIDAt(newNodes, i)
		switch {
		case before.IsNull() && !after.IsNull():
			nodeAdds[after] = append(nodeAdds[after], id)
		case !before.IsNull() && after.IsNull():
			nodeRemoves[before] = append(nodeRemoves[before], id)
		}
	}

	edgeAdds := make(map[ComponentID][]EdgeID)
	edgeRemoves := make(map[ComponentID][]EdgeID)
	for i := range max(len(t.edgesComponentID), len(newEdges)) {
		id := EdgeID(i)
		before, after := componentIDAt(t.edgesComponentID, i), componentIDAt(newEdges, i)
		switch {
		case before.IsNull() && !after.IsNull():
			edgeAdds[after] = append(edgeAdds[after], id)
		case !before.IsNull() && after.IsNull():
			edgeRemoves[before] = append(edgeRemoves[before], id)
		}
	}

	var events []ComponentEvent

	for _, id := range sortedKeys(merges) {
		ev := newEvent(ComponentsWillMerge, id)
		ev.ComponentIDs = bitmapIDs[ComponentID](merges[id])
		events = append(events, ev)
	}

	for _, id := range removed {
		ev := newEvent(ComponentWillBeRemoved, id)
		ev.HasMerged = mergedIDs.Contains(uint32(id))
		ev.Component = t.components[id]
		events = append(events, ev)

		// A component that vanished on its own is reported once, not per
		// element
		if !ev.HasMerged {
			delete(nodeRemoves, id)
			delete(edgeRemoves, id)
		}

		t.removeComponent(id)
	}

	t.nodesComponentID = newNodes
	t.edgesComponentID = newEdges
	t.rebuildDirtyComponents()
	t.componentIDs = bitmapIDs[ComponentID](componentIDs)

	for _, id := range added {
		ev := newEvent(ComponentAdded, id)
		ev.HasSplit = splitIDs.Contains(uint32(id))
		events = append(events, ev)

		if !ev.HasSplit {
			delete(nodeAdds, id)
			delete(edgeAdds, id)
		}
	}

	for _, id := range sortedKeys(splits) {
		ev := newEvent(ComponentSplit, id)
		ev.ComponentIDs = bitmapIDs[ComponentID](splits[id])
		events = append(events, ev)
	}

	for _, id := range sortedKeys(nodeAdds) {
		for _, nodeID := range nodeAdds[id] {
			ev := newEvent(NodeAddedToComponent, id)
			ev.NodeID = nodeID
			events = append(events, ev)
		}
	}
	for _, id := range sortedKeys(edgeAdds) {
		for _, edgeID := range edgeAdds[id] {
			ev := newEvent(EdgeAddedToComponent, id)
			ev.EdgeID = edgeID
			events = append(events, ev)
		}
	}
	for _, id := range sortedKeys(nodeRemoves) {
		for _, nodeID := range nodeRemoves[id] {
			ev := newEvent(NodeRemovedFromComponent, id)
			ev.NodeID = nodeID
			events = append(events, ev)
		}
	}
	for _, id := range sortedKeys(edgeRemoves) {
		for _, edgeID := range edgeRemoves[id] {
			ev := newEvent(EdgeRemovedFromComponent, id)
			ev.EdgeID = edgeID
			events = append(events, ev)
		}
	}

	stats := UpdateStats{
		Components: len(t.componentIDs),
		Added:      len(added),
		Removed:    len(removed),
		Merged:     int(mergedIDs.GetCardinality()),
		Split:      int(splitIDs.GetCardinality()),
		Events:     len(events),
	}
	duration := time.Since(start)
	t.metrics.RecordComponentUpdate(stats, duration)
	t.logger.Debug("components updated",
		"components", stats.Components,
		"added", stats.Added,
		"removed", stats.Removed,
		"merged", stats.Merged,
		"split", stats.Split,
		"events", stats.Events,
		"duration", duration,
	)

	return events
}

// floodFill assigns componentID to everything reachable from root over
// unfiltered edges, including edges whose other end is filtered, and returns the distinct previous component ids seen on
// the way. Multi-element partners are assigned together with their head.
func (t *Tracker) floodFill(root NodeID, componentID ComponentID, nodes, edges []ComponentID) *roaring.Bitmap {
	s := t.store
	affected := roaring.New()

	assignNode := func(id NodeID) {
		for _, merged := range s.n.merged.membersOf(id) {
			nodes[merged] = componentID
		}
	}

	assignNode(root)
	queue := append(frontiers.Get(), root)
	defer func() { frontiers.Put(queue) }()

	for head := 0; head < len(queue); head++ {
		nodeID := queue[head]

		if previous := t.previousNodeComponentID(nodeID); !previous.IsNull() {
			affected.Add(uint32(previous))
		}

		for _, edgeID := range s.edgeIDsForNode(nodeID) {
			if t.edgeFiltered(edgeID) {
				continue
			}

			for _, merged := range s.e.merged.membersOf(edgeID) {
				edges[merged] = componentID
			}

			// The edge belongs here even when its far end is filtered, but
			// the search stops there.
			opposite := s.e.edges[edgeID].Opposite(nodeID)
			if t.nodeFiltered(opposite) {
				continue
			}

			if nodes[opposite] != componentID {
				assignNode(opposite)
				queue = append(queue, opposite)
			}
		}
	}

	return affected
}

// generateComponentID drains the vacated queue before growing the counter so
// live ids stay dense.
func (t *Tracker) generateComponentID() ComponentID {
	if len(t.vacated) > 0 {
		id := t.vacated[0]
		t.vacated = t.vacated[1:]
		return id
	}

	id := t.nextComponentID
	t.nextComponentID++
	return id
}

func (t *Tracker) removeComponent(id ComponentID) {
	if _, ok := t.components[id]; !ok {
		return
	}
	delete(t.components, id)
	t.vacated = append(t.vacated, id)
	t.dirty.Remove(uint32(id))
	t.resetArrays(id)
}

// rebuildDirtyComponents replaces the cached membership of every component
// touched by the update.
func (t *Tracker) rebuildDirtyComponents() {
	s := t.store

	rebuilt := make(map[ComponentID]*Component, t.dirty.GetCardinality())
	it := t.dirty.Iterator()
	for it.HasNext() {
		id := ComponentID(it.Next())
		rebuilt[id] = &Component{id: id}
	}

	for _, nodeID := range s.nodeIDs {
		if t.nodeFiltered(nodeID) {
			continue
		}
		if c, ok := rebuilt[t.nodesComponentID[nodeID]]; ok {
			c.nodeIDs = append(c.nodeIDs, nodeID)
		}
	}

	for _, edgeID := range s.edgeIDs {
		if t.edgeFiltered(edgeID) {
			continue
		}
		if c, ok := rebuilt[t.edgesComponentID[edgeID]]; ok {
			c.edgeIDs = append(c.edgeIDs, edgeID)
		}
	}

	for id, c := range rebuilt {
		t.components[id] = c
	}
	t.dirty.Clear()
}

func (t *Tracker) previousNodeComponentID(id NodeID) ComponentID {
	return componentIDAt(t.nodesComponentID, int(id))
}

func componentIDAt(ids []ComponentID, i int) ComponentID {
	if i < 0 || i >= len(ids) {
		return NullComponentID
	}
	return ids[i]
}

func nullComponentIDs(n int) []ComponentID {
	ids := make([]ComponentID, n)
	for i := range ids {
		ids[i] = NullComponentID
	}
	return ids
}

func sortedKeys[V any](m map[ComponentID]V) []ComponentID {
	keys := make([]ComponentID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
