package graph

import "fmt"

// ComponentEventType identifies what a ComponentEvent reports.
type ComponentEventType int

const (
	// ComponentsWillMerge: ComponentIDs merge into ComponentID (which is also
	// a member of ComponentIDs).
	ComponentsWillMerge ComponentEventType = iota
	// ComponentWillBeRemoved: ComponentID is retired. HasMerged is set when it
	// disappeared into another component. Component holds its last cached
	// node and edge lists.
	ComponentWillBeRemoved
	// ComponentAdded: ComponentID is new. HasSplit is set when it split off an
	// existing component.
	ComponentAdded
	// ComponentSplit: ComponentID split into ComponentIDs (which include
	// ComponentID itself).
	ComponentSplit
	NodeAddedToComponent
	EdgeAddedToComponent
	NodeRemovedFromComponent
	EdgeRemovedFromComponent
)

func (t ComponentEventType) String() string {
	switch t {
	case ComponentsWillMerge:
		return "components_will_merge"
	case ComponentWillBeRemoved:
		return "component_will_be_removed"
	case ComponentAdded:
		return "component_added"
	case ComponentSplit:
		return "component_split"
	case NodeAddedToComponent:
		return "node_added_to_component"
	case EdgeAddedToComponent:
		return "edge_added_to_component"
	case NodeRemovedFromComponent:
		return "node_removed_from_component"
	case EdgeRemovedFromComponent:
		return "edge_removed_from_component"
	default:
		return "unknown"
	}
}

// ComponentEvent is one entry of the ordered sequence a Tracker produces per
// committed transaction. The order within a batch is fixed: merges, removals,
// additions, splits, node additions, edge additions, node removals, edge
// removals.
type ComponentEvent struct {
	Type         ComponentEventType
	ComponentID  ComponentID
	ComponentIDs []ComponentID
	NodeID       NodeID
	EdgeID       EdgeID
	HasMerged    bool
	HasSplit     bool
	Component    *Component
}

func (e ComponentEvent) String() string {
	switch e.Type {
	case ComponentsWillMerge:
		return fmt.Sprintf("%s %v -> %d", e.Type, e.ComponentIDs, e.ComponentID)
	case ComponentSplit:
		return fmt.Sprintf("%s %d -> %v", e.Type, e.ComponentID, e.ComponentIDs)
	case ComponentWillBeRemoved:
		return fmt.Sprintf("%s %d merged=%t", e.Type, e.ComponentID, e.HasMerged)
	case ComponentAdded:
		return fmt.Sprintf("%s %d split=%t", e.Type, e.ComponentID, e.HasSplit)
	case NodeAddedToComponent, NodeRemovedFromComponent:
		return fmt.Sprintf("%s node=%d component=%d", e.Type, e.NodeID, e.ComponentID)
	default:
		return fmt.Sprintf("%s edge=%d component=%d", e.Type, e.EdgeID, e.ComponentID)
	}
}

func newEvent(t ComponentEventType, id ComponentID) ComponentEvent {
	return ComponentEvent{Type: t, ComponentID: id, NodeID: NullNodeID, EdgeID: NullEdgeID}
}

// Component is a read-only snapshot of one connected component's cached
// membership. The tracker replaces, rather than mutates, a component's
// snapshot when it changes, so a *Component may be kept and read freely.
type Component struct {
	id      ComponentID
	nodeIDs []NodeID
	edgeIDs []EdgeID
}

// ID returns the component's id.
func (c *Component) ID() ComponentID { return c.id }

// NodeIDs returns the unfiltered nodes in the component, ascending.
func (c *Component) NodeIDs() []NodeID { return c.nodeIDs }

// EdgeIDs returns the unfiltered edges in the component, ascending.
func (c *Component) EdgeIDs() []EdgeID { return c.edgeIDs }

// NumNodes returns len(NodeIDs()).
func (c *Component) NumNodes() int { return len(c.nodeIDs) }

// NumEdges returns len(EdgeIDs()).
func (c *Component) NumEdges() int { return len(c.edgeIDs) }
