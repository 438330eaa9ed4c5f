package model

import (
	"fmt"
	"log/slog"
	"slices"

	"cogentcore.org/core/base/keylist"
)

// Graph owns nodes and edges and keeps them addressable by id.
// It is not safe for concurrent use; all mutation happens on one goroutine.
type Graph struct {
	Name string

	nodes    keylist.List[string, *Node]
	edges    keylist.List[string, *Edge]
	counters map[string]int

	listeners  []Listener
	batchDepth int
	pending    []Change
	log        *slog.Logger
}

// NewGraph allocates an empty Graph.
func NewGraph(name string, logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{
		Name:     name,
		counters: make(map[string]int),
		log:      logger,
	}
}

// Subscribe registers a listener for changes.
func (g *Graph) Subscribe(l Listener) {
	g.listeners = append(g.listeners, l)
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []*Node { return slices.Clone(g.nodes.Values) }

// Edges returns the edges in insertion order.
func (g *Graph) Edges() []*Edge { return slices.Clone(g.edges.Values) }

// Node returns a node by id.
func (g *Graph) Node(id string) (*Node, bool) { return g.nodes.AtTry(id) }

// Edge returns an edge by id.
func (g *Graph) Edge(id string) (*Edge, bool) { return g.edges.AtTry(id) }

// NodeIndex returns the insertion position of a node, or -1.
func (g *Graph) NodeIndex(id string) int { return g.nodes.IndexByKey(id) }

func (g *Graph) NodeCount() int { return g.nodes.Len() }
func (g *Graph) EdgeCount() int { return g.edges.Len() }

// HasNode reports whether n itself (not merely its id) is a member.
func (g *Graph) HasNode(n *Node) bool {
	cur, ok := g.nodes.AtTry(n.id)
	return ok && cur == n
}

// HasEdge reports whether e itself is a member.
func (g *Graph) HasEdge(e *Edge) bool {
	cur, ok := g.edges.AtTry(e.id)
	return ok && cur == e
}

// AddNode makes n a member. A node without an id gets one from
// GenerateItemID using its type name as prefix.
func (g *Graph) AddNode(n *Node) error {
	if n.member {
		return &DuplicateMembershipError{Entity: "node", ID: n.id}
	}
	if n.id == "" {
		n.id = g.GenerateItemID(prefixFor(n.typeName, "Node"))
	}
	if g.idTaken(n.id) {
		return &DuplicateMembershipError{Entity: "node", ID: n.id}
	}
	if err := g.nodes.Add(n.id, n); err != nil {
		return &DuplicateMembershipError{Entity: "node", ID: n.id}
	}
	n.member = true
	n.notify = g.emit
	g.emit(Change{Kind: NodeAdded, NodeID: n.id})
	return nil
}

// AddEdge makes e a member. Any endpoint already set must belong to a
// member node.
func (g *Graph) AddEdge(e *Edge) error {
	if e.notify != nil {
		return &DuplicateMembershipError{Entity: "edge", ID: e.id}
	}
	for _, s := range []*Socket{e.start, e.end} {
		if s != nil && (s.node == nil || !g.HasNode(s.node)) {
			return &MissingMembershipError{Entity: "node", ID: s.NodeID()}
		}
	}
	if e.id == "" {
		e.id = g.GenerateItemID(prefixFor(e.typeName, "Edge"))
	}
	if g.idTaken(e.id) {
		return &DuplicateMembershipError{Entity: "edge", ID: e.id}
	}
	if err := g.edges.Add(e.id, e); err != nil {
		return &DuplicateMembershipError{Entity: "edge", ID: e.id}
	}
	e.notify = g.emit
	g.emit(Change{Kind: EdgeAdded, EdgeID: e.id})
	return nil
}

// DeleteEdge detaches both endpoints of e and removes it.
func (g *Graph) DeleteEdge(e *Edge) error {
	if !g.HasEdge(e) {
		return &MissingMembershipError{Entity: "edge", ID: e.id}
	}
	e.notify = nil
	e.Disconnect()
	g.edges.DeleteByKey(e.id)
	g.emit(Change{Kind: EdgeRemoved, EdgeID: e.id})
	return nil
}

// DeleteNode removes n after destroying every edge attached to it. Open
// edges that are not members only lose the endpoint on n.
func (g *Graph) DeleteNode(n *Node) error {
	if !g.HasNode(n) {
		return &MissingMembershipError{Entity: "node", ID: n.id}
	}
	return g.Batch(func() error {
		for _, e := range n.Edges() {
			if g.HasEdge(e) {
				if err := g.DeleteEdge(e); err != nil {
					return err
				}
				continue
			}
			if e.start != nil && e.start.node == n {
				_ = e.SetStart(nil)
			}
			if e.end != nil && e.end.node == n {
				_ = e.SetEnd(nil)
			}
		}
		g.nodes.DeleteByKey(n.id)
		n.member = false
		n.notify = nil
		g.emit(Change{Kind: NodeRemoved, NodeID: n.id})
		return nil
	})
}

// ClearAll destroys every edge, then every node.
func (g *Graph) ClearAll() {
	_ = g.Batch(func() error {
		for _, e := range g.Edges() {
			if err := g.DeleteEdge(e); err != nil {
				g.log.Error("clear: delete edge", "edge", e.id, "err", err)
			}
		}
		for _, n := range g.Nodes() {
			if err := g.DeleteNode(n); err != nil {
				g.log.Error("clear: delete node", "node", n.id, "err", err)
			}
		}
		return nil
	})
}

// GenerateItemID returns "{prefix}-{n}" with n one past the last number
// handed out for prefix, skipping any id already held by a node or edge.
func (g *Graph) GenerateItemID(prefix string) string {
	n := g.counters[prefix]
	for {
		n++
		id := fmt.Sprintf("%s-%d", prefix, n)
		if !g.idTaken(id) {
			g.counters[prefix] = n
			return id
		}
	}
}

func (g *Graph) idTaken(id string) bool {
	return g.nodes.IndexByKey(id) >= 0 || g.edges.IndexByKey(id) >= 0
}

func prefixFor(typeName, fallback string) string {
	if typeName == "" {
		return fallback
	}
	return typeName
}

// Batch runs fn and delivers every change it raised in one call once the
// outermost batch returns.
func (g *Graph) Batch(fn func() error) error {
	g.batchDepth++
	err := fn()
	g.batchDepth--
	if g.batchDepth == 0 && len(g.pending) > 0 {
		changes := g.pending
		g.pending = nil
		g.deliver(changes)
	}
	return err
}

func (g *Graph) emit(c Change) {
	if g.batchDepth > 0 {
		g.pending = append(g.pending, c)
		return
	}
	g.deliver([]Change{c})
}

func (g *Graph) deliver(changes []Change) {
	for _, l := range g.listeners {
		l.GraphChanged(g, changes)
	}
}
