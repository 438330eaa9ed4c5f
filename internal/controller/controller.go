package controller

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/gyaneshwarpardhi/nodegraph/internal/dag"
	"github.com/gyaneshwarpardhi/nodegraph/internal/model"
	"github.com/gyaneshwarpardhi/nodegraph/internal/registry"
	"github.com/gyaneshwarpardhi/nodegraph/internal/scene"
)

// ErrEdgeOpen is returned when an edge without both endpoints is reported
// as connected.
var ErrEdgeOpen = errors.New("edge is open")

// Ticker is implemented by behaviours that advance on a clock, such as a
// ramp generator. Tick reports whether the node's value changed.
type Ticker interface {
	Tick(n *model.Node, now time.Time) bool
}

// NodeSpec describes a node to create.
type NodeSpec struct {
	TypeName   string
	ID         string // empty = generated
	Name       string // empty = type default
	Position   model.Point
	Attributes map[string]any
}

// EdgeSpec describes an edge to create.
type EdgeSpec struct {
	TypeName   string
	ID         string
	Attributes map[string]any
}

// Controller mediates every request of the view layer. It owns the
// executable graph and the scene records the view layer draws from.
//
// Edges are created open, get their endpoints while the view drags them and
// join the graph on EdgeConnected. Whatever path removes an edge, the
// teardown is the same: detach both sockets, remove it from the graph, then
// drop its scene record when the EdgeRemoved change arrives.
type Controller struct {
	reg   *registry.Registry
	graph *dag.ExecutableGraph
	scene *scene.Scene
	log   *slog.Logger

	pending map[string]*model.Edge // open edges not yet in the graph
}

// New creates a controller around a fresh executable graph.
func New(name string, reg *registry.Registry, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	g := model.NewGraph(name, logger)
	c := &Controller{
		reg:     reg,
		graph:   dag.New(g, logger),
		scene:   scene.New(),
		log:     logger,
		pending: make(map[string]*model.Edge),
	}
	g.Subscribe(c)
	return c
}

func (c *Controller) Graph() *dag.ExecutableGraph  { return c.graph }
func (c *Controller) Scene() *scene.Scene          { return c.scene }
func (c *Controller) Registry() *registry.Registry { return c.reg }

// CreateNode instantiates a registered node kind and adds it to the graph.
// Attribute keys the kind does not declare are ignored.
func (c *Controller) CreateNode(spec NodeSpec) (*scene.NodeItem, error) {
	nt, err := c.reg.Node(spec.TypeName)
	if err != nil {
		return nil, err
	}
	n := nt.New()
	n.SetID(spec.ID)
	if spec.Name != "" {
		n.SetName(spec.Name)
	}
	n.SetPosition(spec.Position)
	if err := n.Attributes().Deserialize(spec.Attributes); err != nil {
		return nil, err
	}
	if err := c.graph.AddNode(n); err != nil {
		return nil, err
	}
	item, _ := c.scene.Node(n.ID())
	c.log.Debug("node created", "node", n.ID(), "type", spec.TypeName)
	return item, nil
}

// DestroyNode removes a node and every edge attached to it.
func (c *Controller) DestroyNode(id string) error {
	n, err := c.node(id)
	if err != nil {
		return err
	}
	for eid, e := range c.pending {
		if touches(e, n) {
			c.dropPending(eid)
		}
	}
	return c.graph.DeleteNode(n)
}

// CreateEdge creates an open edge of a registered kind. It joins the graph
// once EdgeConnected is called.
func (c *Controller) CreateEdge(spec EdgeSpec) (*scene.EdgeItem, error) {
	et, err := c.reg.Edge(spec.TypeName)
	if err != nil {
		return nil, err
	}
	id := spec.ID
	if id == "" {
		id = c.graph.GenerateItemID(spec.TypeName)
	}
	if _, taken := c.pending[id]; taken {
		return nil, &model.DuplicateMembershipError{Entity: "edge", ID: id}
	}
	if _, taken := c.graph.Edge(id); taken {
		return nil, &model.DuplicateMembershipError{Entity: "edge", ID: id}
	}
	if _, taken := c.graph.Node(id); taken {
		return nil, &model.DuplicateMembershipError{Entity: "edge", ID: id}
	}
	e := et.New()
	e.SetID(id)
	if err := e.Attributes().Deserialize(spec.Attributes); err != nil {
		return nil, err
	}
	item := et.View(e)
	if err := c.scene.AddEdge(item); err != nil {
		return nil, err
	}
	c.pending[id] = e
	return item, nil
}

// SetEdgeStart attaches an open edge to an output socket.
func (c *Controller) SetEdgeStart(edgeID, nodeID, socket string) error {
	e, err := c.pendingEdge(edgeID)
	if err != nil {
		return err
	}
	s, err := c.output(nodeID, socket)
	if err != nil {
		return err
	}
	if err := e.SetStart(s); err != nil {
		return err
	}
	c.refreshEdge(e)
	return nil
}

// SetEdgeEnd attaches an open edge to an input socket.
func (c *Controller) SetEdgeEnd(edgeID, nodeID, socket string) error {
	e, err := c.pendingEdge(edgeID)
	if err != nil {
		return err
	}
	s, err := c.input(nodeID, socket)
	if err != nil {
		return err
	}
	if err := e.SetEnd(s); err != nil {
		return err
	}
	c.refreshEdge(e)
	return nil
}

// EdgeConnected adds a closed edge to the graph.
func (c *Controller) EdgeConnected(id string) error {
	e, err := c.pendingEdge(id)
	if err != nil {
		return err
	}
	if e.IsOpen() {
		return fmt.Errorf("edge %s: %w", id, ErrEdgeOpen)
	}
	if err := c.graph.AddEdge(e); err != nil {
		return err
	}
	delete(c.pending, id)
	return nil
}

// EdgeDisconnect tears an edge down, whether it is still being dragged or
// already part of the graph.
func (c *Controller) EdgeDisconnect(id string) error {
	if _, ok := c.pending[id]; ok {
		c.dropPending(id)
		return nil
	}
	e, ok := c.graph.Edge(id)
	if !ok {
		return &model.MissingMembershipError{Entity: "edge", ID: id}
	}
	return c.graph.DeleteEdge(e)
}

// DestroyEdge is EdgeDisconnect under the name the view layer uses when it
// deletes an edge item.
func (c *Controller) DestroyEdge(id string) error {
	return c.EdgeDisconnect(id)
}

// EdgeTypeForStartSocket returns the edge kind to create when a drag starts
// at the given output socket.
func (c *Controller) EdgeTypeForStartSocket(nodeID, socket string) (string, error) {
	s, err := c.output(nodeID, socket)
	if err != nil {
		return "", err
	}
	return c.reg.EdgeTypeFor(s.DataType()), nil
}

// EdgeCanConnect reports whether an edge may run from the start output to
// the end input. Unknown nodes or sockets yield false.
func (c *Controller) EdgeCanConnect(startNode, startSocket, endNode, endSocket string) bool {
	start, err := c.output(startNode, startSocket)
	if err != nil {
		c.log.Debug("edge can connect: start", "err", err)
		return false
	}
	end, err := c.input(endNode, endSocket)
	if err != nil {
		c.log.Debug("edge can connect: end", "err", err)
		return false
	}
	return start.CanConnect(end) && end.CanConnect(start)
}

// Connect creates an edge between two sockets in one step. On failure
// nothing is left behind.
func (c *Controller) Connect(spec EdgeSpec, startNode, startSocket, endNode, endSocket string) (*scene.EdgeItem, error) {
	if spec.TypeName == "" {
		t, err := c.EdgeTypeForStartSocket(startNode, startSocket)
		if err != nil {
			return nil, err
		}
		spec.TypeName = t
	}
	item, err := c.CreateEdge(spec)
	if err != nil {
		return nil, err
	}
	err = c.SetEdgeStart(item.ID, startNode, startSocket)
	if err == nil {
		err = c.SetEdgeEnd(item.ID, endNode, endSocket)
	}
	if err == nil {
		err = c.EdgeConnected(item.ID)
	}
	if err != nil {
		c.dropPending(item.ID)
		return nil, err
	}
	item, _ = c.scene.Edge(item.ID)
	return item, nil
}

// SetAttribute writes one node attribute. Input attributes do not report
// changes on their own, so the node is marked changed explicitly.
func (c *Controller) SetAttribute(nodeID, name string, v any) error {
	n, err := c.node(nodeID)
	if err != nil {
		return err
	}
	if err := n.SetAttribute(name, v); err != nil {
		return err
	}
	if f, _ := n.Attributes().Field(name); f.Role == model.RoleInput {
		n.MarkValueChanged()
	}
	return nil
}

// SetAttributes writes several attributes and runs at most one pass. Every
// value is checked first, so a rejected call leaves the node untouched.
func (c *Controller) SetAttributes(nodeID string, values map[string]any) error {
	n, err := c.node(nodeID)
	if err != nil {
		return err
	}
	names := slices.Sorted(maps.Keys(values))
	for _, name := range names {
		if err := n.Attributes().Check(name, values[name]); err != nil {
			return err
		}
	}
	return c.graph.Batch(func() error {
		for _, name := range names {
			v := values[name]
			if err := c.SetAttribute(nodeID, name, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetPosition moves a node. Positions do not affect execution.
func (c *Controller) SetPosition(nodeID string, p model.Point) error {
	n, err := c.node(nodeID)
	if err != nil {
		return err
	}
	n.SetPosition(p)
	if item, ok := c.scene.Node(nodeID); ok {
		item.Position = p
	}
	return nil
}

func (c *Controller) SetViewport(m [9]float64) error { return c.scene.SetViewport(m) }

// Tick advances every clock-driven node. Changes from one tick are run in a
// single pass. It returns how many nodes changed.
func (c *Controller) Tick(now time.Time) int {
	changed := 0
	_ = c.graph.Batch(func() error {
		for _, n := range c.graph.Nodes() {
			if t, ok := n.Behavior().(Ticker); ok && t.Tick(n, now) {
				changed++
			}
		}
		return nil
	})
	return changed
}

// Execute runs a full pass.
func (c *Controller) Execute() error { return c.graph.ExecuteGraph() }

// ClearAll removes every edge, then every node, and resets the viewport.
func (c *Controller) ClearAll() {
	for id := range c.pending {
		c.dropPending(id)
	}
	c.graph.ClearAll()
	c.scene.Clear()
}

// GraphChanged implements model.Listener. It keeps the scene in step with
// the graph.
func (c *Controller) GraphChanged(g *model.Graph, changes []model.Change) {
	for _, ch := range changes {
		switch ch.Kind {
		case model.NodeAdded:
			c.addNodeItem(ch.NodeID)
		case model.NodeRemoved:
			c.scene.RemoveNode(ch.NodeID)
			for _, e := range c.pending {
				c.refreshEdge(e)
			}
		case model.EdgeAdded, model.EdgeReconnected:
			if e, ok := g.Edge(ch.EdgeID); ok {
				c.refreshEdge(e)
			}
		case model.EdgeRemoved:
			c.scene.RemoveEdge(ch.EdgeID)
		}
	}
}

func (c *Controller) addNodeItem(id string) {
	if _, ok := c.scene.Node(id); ok {
		return
	}
	n, ok := c.graph.Node(id)
	if !ok {
		return
	}
	nt, err := c.reg.Node(n.TypeName())
	if err != nil {
		nt = registry.NodeType{Name: n.TypeName()}
		nt.View = registry.DefaultNodeView(nt)
	}
	if err := c.scene.AddNode(nt.View(n)); err != nil {
		c.log.Error("scene: add node item", "node", id, "err", err)
	}
}

// refreshEdge rebuilds the scene record of e from its endpoints.
func (c *Controller) refreshEdge(e *model.Edge) {
	view := registry.DefaultEdgeView
	if et, err := c.reg.Edge(e.TypeName()); err == nil {
		view = et.View
	}
	item := view(e)
	if cur, ok := c.scene.Edge(e.ID()); ok {
		*cur = *item
		return
	}
	if err := c.scene.AddEdge(item); err != nil {
		c.log.Error("scene: add edge item", "edge", e.ID(), "err", err)
	}
}

func (c *Controller) dropPending(id string) {
	if e, ok := c.pending[id]; ok {
		e.Disconnect()
		delete(c.pending, id)
	}
	c.scene.RemoveEdge(id)
}

func (c *Controller) pendingEdge(id string) (*model.Edge, error) {
	e, ok := c.pending[id]
	if !ok {
		if _, member := c.graph.Edge(id); member {
			return nil, &model.DuplicateMembershipError{Entity: "edge", ID: id}
		}
		return nil, &model.MissingMembershipError{Entity: "edge", ID: id}
	}
	return e, nil
}

func (c *Controller) node(id string) (*model.Node, error) {
	n, ok := c.graph.Node(id)
	if !ok {
		return nil, &model.MissingMembershipError{Entity: "node", ID: id}
	}
	return n, nil
}

func (c *Controller) output(nodeID, name string) (*model.Socket, error) {
	n, err := c.node(nodeID)
	if err != nil {
		return nil, err
	}
	s, ok := n.Output(name)
	if !ok {
		return nil, &model.MissingMembershipError{Entity: "output socket", ID: nodeID + "/" + name}
	}
	return s, nil
}

func (c *Controller) input(nodeID, name string) (*model.Socket, error) {
	n, err := c.node(nodeID)
	if err != nil {
		return nil, err
	}
	s, ok := n.Input(name)
	if !ok {
		return nil, &model.MissingMembershipError{Entity: "input socket", ID: nodeID + "/" + name}
	}
	return s, nil
}

func touches(e *model.Edge, n *model.Node) bool {
	return (e.Start() != nil && e.Start().Node() == n) || (e.End() != nil && e.End().Node() == n)
}
