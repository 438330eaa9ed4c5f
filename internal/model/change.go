package model

// ChangeKind classifies a graph change.
type ChangeKind int

const (
	NodeAdded ChangeKind = iota + 1
	NodeRemoved
	EdgeAdded
	EdgeRemoved
	EdgeReconnected
	SocketsChanged
	ValueChanged
	AttributeChanged
)

var changeKindNames = map[ChangeKind]string{
	NodeAdded:        "node_added",
	NodeRemoved:      "node_removed",
	EdgeAdded:        "edge_added",
	EdgeRemoved:      "edge_removed",
	EdgeReconnected:  "edge_reconnected",
	SocketsChanged:   "sockets_changed",
	ValueChanged:     "value_changed",
	AttributeChanged: "attribute_changed",
}

func (k ChangeKind) String() string {
	if s, ok := changeKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Topology reports whether the change alters the shape of the graph.
func (k ChangeKind) Topology() bool {
	return k >= NodeAdded && k <= SocketsChanged
}

// Change is raised synchronously by graph mutators.
type Change struct {
	Kind   ChangeKind
	NodeID string
	EdgeID string
	Field  string
}

// Listener receives changes. Changes raised inside Graph.Batch arrive in a
// single call.
type Listener interface {
	GraphChanged(g *Graph, changes []Change)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(g *Graph, changes []Change)

func (f ListenerFunc) GraphChanged(g *Graph, changes []Change) { f(g, changes) }
