package registry

import (
	"fmt"
	"sync"

	"github.com/gyaneshwarpardhi/nodegraph/internal/model"
	"github.com/gyaneshwarpardhi/nodegraph/internal/scene"
)

// DefaultEdgeType is used when no edge type is registered for a data type.
const DefaultEdgeType = "default"

// NodeType pairs the model and view constructors of a node kind.
type NodeType struct {
	Name     string
	Title    string
	Category string
	New      func() *model.Node
	View     func(n *model.Node) *scene.NodeItem
}

// EdgeType pairs the model and view constructors of an edge kind. DataType
// restricts the kind to sockets of that data type; empty accepts any.
type EdgeType struct {
	Name     string
	Title    string
	DataType string
	New      func() *model.Edge
	View     func(e *model.Edge) *scene.EdgeItem
}

// UnresolvedTypeError is returned when a type name is not registered.
type UnresolvedTypeError struct {
	Kind string // "node" | "edge"
	Name string
}

func (e *UnresolvedTypeError) Error() string {
	return fmt.Sprintf("no %s type registered as %q", e.Kind, e.Name)
}

// Registry maps type names to constructor pairs.
// It is safe for concurrent reads; Register* should only be called at startup.
type Registry struct {
	mu        sync.RWMutex
	nodes     map[string]NodeType
	edges     map[string]EdgeType
	nodeOrder []string
	edgeOrder []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		nodes: make(map[string]NodeType),
		edges: make(map[string]EdgeType),
	}
}

// RegisterNode adds a node kind. Panics on duplicate or incomplete types to
// surface misconfiguration early.
func (r *Registry) RegisterNode(t NodeType) {
	if t.Name == "" || t.New == nil {
		panic(fmt.Sprintf("registry: node type %q needs a name and a constructor", t.Name))
	}
	if t.View == nil {
		t.View = DefaultNodeView(t)
	}
	if t.Title == "" {
		t.Title = t.Name
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.nodes[t.Name]; exists {
		panic(fmt.Sprintf("registry: duplicate node type %q", t.Name))
	}
	r.nodes[t.Name] = t
	r.nodeOrder = append(r.nodeOrder, t.Name)
}

// RegisterEdge adds an edge kind. Panics on duplicate or incomplete types.
func (r *Registry) RegisterEdge(t EdgeType) {
	if t.Name == "" || t.New == nil {
		panic(fmt.Sprintf("registry: edge type %q needs a name and a constructor", t.Name))
	}
	if t.View == nil {
		t.View = DefaultEdgeView
	}
	if t.Title == "" {
		t.Title = t.Name
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.edges[t.Name]; exists {
		panic(fmt.Sprintf("registry: duplicate edge type %q", t.Name))
	}
	r.edges[t.Name] = t
	r.edgeOrder = append(r.edgeOrder, t.Name)
}

// Node returns the node kind registered as name.
func (r *Registry) Node(name string) (NodeType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.nodes[name]
	if !ok {
		return NodeType{}, &UnresolvedTypeError{Kind: "node", Name: name}
	}
	return t, nil
}

// Edge returns the edge kind registered as name.
func (r *Registry) Edge(name string) (EdgeType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.edges[name]
	if !ok {
		return EdgeType{}, &UnresolvedTypeError{Kind: "edge", Name: name}
	}
	return t, nil
}

// EdgeTypeFor returns the first edge kind registered for dataType, falling
// back to DefaultEdgeType.
func (r *Registry) EdgeTypeFor(dataType string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.edgeOrder {
		if r.edges[name].DataType == dataType {
			return name
		}
	}
	return DefaultEdgeType
}

// NodeTypes returns the node kinds in registration order.
func (r *Registry) NodeTypes() []NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]NodeType, 0, len(r.nodeOrder))
	for _, name := range r.nodeOrder {
		out = append(out, r.nodes[name])
	}
	return out
}

// EdgeTypes returns the edge kinds in registration order.
func (r *Registry) EdgeTypes() []EdgeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EdgeType, 0, len(r.edgeOrder))
	for _, name := range r.edgeOrder {
		out = append(out, r.edges[name])
	}
	return out
}
