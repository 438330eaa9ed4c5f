package controller

import (
	"github.com/gyaneshwarpardhi/nodegraph/internal/model"
	"github.com/gyaneshwarpardhi/nodegraph/internal/scene"
)

// SocketView describes one socket for the view layer.
type SocketView struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Degree   int    `json:"degree"`
	Edges    int    `json:"edges"`
}

// NodeView is a node as the view layer sees it: its scene record plus the
// model state it displays.
type NodeView struct {
	*scene.NodeItem
	Attributes map[string]any `json:"attributes"`
	Inputs     []SocketView   `json:"inputs"`
	Outputs    []SocketView   `json:"outputs"`
}

// PassView summarises the last execution pass.
type PassView struct {
	Full       bool     `json:"full"`
	Ran        []string `json:"ran"`
	Error      string   `json:"error,omitempty"`
	DurationMS float64  `json:"duration_ms"`
}

// Snapshot is a point-in-time copy of everything the view layer draws.
type Snapshot struct {
	Name     string            `json:"name"`
	State    string            `json:"state"`
	Viewport [9]float64        `json:"viewport_transform"`
	Nodes    []NodeView        `json:"nodes"`
	Edges    []*scene.EdgeItem `json:"edges"`
	LastPass PassView          `json:"last_pass"`
}

// Snapshot copies the current graph and scene.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Name:     c.graph.Name,
		State:    c.graph.State().String(),
		Viewport: c.scene.Viewport(),
		Nodes:    make([]NodeView, 0, c.graph.NodeCount()),
		Edges:    make([]*scene.EdgeItem, 0, c.scene.EdgeCount()),
	}
	for _, n := range c.graph.Nodes() {
		if v, ok := c.viewOf(n); ok {
			s.Nodes = append(s.Nodes, v)
		}
	}
	for _, e := range c.scene.Edges() {
		cp := *e
		s.Edges = append(s.Edges, &cp)
	}
	s.LastPass = c.LastPass()
	return s
}

// LastPass summarises the most recent execution pass.
func (c *Controller) LastPass() PassView {
	p := c.graph.LastPass()
	v := PassView{
		Full:       p.Full,
		Ran:        p.Ran,
		DurationMS: float64(p.Duration.Microseconds()) / 1000,
	}
	if p.Err != nil {
		v.Error = p.Err.Error()
	}
	return v
}

// NodeView copies one node's view.
func (c *Controller) NodeView(id string) (NodeView, error) {
	n, err := c.node(id)
	if err != nil {
		return NodeView{}, err
	}
	v, ok := c.viewOf(n)
	if !ok {
		return NodeView{}, &model.MissingMembershipError{Entity: "scene node", ID: id}
	}
	return v, nil
}

// EdgeView copies one edge's scene record, open or connected.
func (c *Controller) EdgeView(id string) (scene.EdgeItem, error) {
	item, ok := c.scene.Edge(id)
	if !ok {
		return scene.EdgeItem{}, &model.MissingMembershipError{Entity: "edge", ID: id}
	}
	return *item, nil
}

func (c *Controller) viewOf(n *model.Node) (NodeView, bool) {
	item, ok := c.scene.Node(n.ID())
	if !ok {
		return NodeView{}, false
	}
	cp := *item
	v := NodeView{
		NodeItem:   &cp,
		Attributes: make(map[string]any),
		Inputs:     socketViews(n.Inputs()),
		Outputs:    socketViews(n.Outputs()),
	}
	n.Attributes().Serialize(v.Attributes)
	return v, true
}

func socketViews(sockets []*model.Socket) []SocketView {
	out := make([]SocketView, 0, len(sockets))
	for _, s := range sockets {
		out = append(out, SocketView{Name: s.Name(), DataType: s.DataType(), Degree: s.Degree(), Edges: s.EdgeCount()})
	}
	return out
}
