package model

import (
	"fmt"

	"cogentcore.org/core/base/keylist"
)

// Behavior is the computation a node kind performs during a graph pass.
// Update reads current input values and pushes results through
// Output(name).PropagateChange.
type Behavior interface {
	Update(n *Node) error
}

// ValueSetter is implemented by behaviours that take over how values
// arriving on input sockets are stored.
type ValueSetter interface {
	SetValue(n *Node, key string, v any)
}

// Point is a node position in scene coordinates.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is a graph vertex with ordered, name-indexed input and output sockets.
type Node struct {
	id       string
	typeName string
	name     string
	position Point

	inputs   keylist.List[string, *Socket]
	outputs  keylist.List[string, *Socket]
	attrs    *Attributes
	behavior Behavior

	member bool
	notify func(Change)
}

// SocketSpec declares a socket of a node kind.
type SocketSpec struct {
	Name     string
	DataType string
	Degree   int
}

// Template declares the fixed shape of a node kind. When Inputs or Outputs
// is nil the sockets are derived from the schema fields with the matching
// role: input fields get degree 1, output fields are unlimited.
type Template struct {
	TypeName string
	Name     string
	Schema   Schema
	Inputs   []SocketSpec
	Outputs  []SocketSpec
}

// Instantiate creates a node of this kind. It panics when the template
// declares the same socket name twice.
func (t Template) Instantiate(b Behavior) *Node {
	n := NewNode(t.TypeName, t.Schema, b)
	if t.Name != "" {
		n.name = t.Name
	}
	inputs, outputs := t.Inputs, t.Outputs
	if inputs == nil {
		inputs = socketsForRole(t.Schema, RoleInput, 1)
	}
	if outputs == nil {
		outputs = socketsForRole(t.Schema, RoleOutput, 0)
	}
	for _, s := range inputs {
		if err := n.AddInput(NewSocket(s.Name, s.DataType, s.Degree)); err != nil {
			panic(fmt.Sprintf("template %s: %v", t.TypeName, err))
		}
	}
	for _, s := range outputs {
		if err := n.AddOutput(NewSocket(s.Name, s.DataType, s.Degree)); err != nil {
			panic(fmt.Sprintf("template %s: %v", t.TypeName, err))
		}
	}
	return n
}

func socketsForRole(schema Schema, role Role, degree int) []SocketSpec {
	var out []SocketSpec
	for _, f := range schema {
		r := f.Role
		if r == "" {
			r = RoleProperty
		}
		if r == role {
			out = append(out, SocketSpec{Name: f.Name, DataType: string(f.Kind), Degree: degree})
		}
	}
	return out
}

// NewNode creates a node without sockets.
func NewNode(typeName string, schema Schema, b Behavior) *Node {
	n := &Node{
		typeName: typeName,
		name:     typeName,
		attrs:    NewAttributes(schema),
		behavior: b,
	}
	n.attrs.onChange = n.attributeChanged
	return n
}

func (n *Node) ID() string              { return n.id }
func (n *Node) TypeName() string        { return n.typeName }
func (n *Node) Name() string            { return n.name }
func (n *Node) Position() Point         { return n.position }
func (n *Node) Attributes() *Attributes { return n.attrs }
func (n *Node) Behavior() Behavior      { return n.behavior }

// SetID renames a node that is not yet a graph member.
func (n *Node) SetID(id string) {
	if !n.member {
		n.id = id
	}
}

func (n *Node) SetName(name string) { n.name = name }

func (n *Node) SetPosition(p Point) { n.position = p }

// Inputs returns the input sockets in order.
func (n *Node) Inputs() []*Socket { return append([]*Socket(nil), n.inputs.Values...) }

// Outputs returns the output sockets in order.
func (n *Node) Outputs() []*Socket { return append([]*Socket(nil), n.outputs.Values...) }

// Input looks up an input socket by name.
func (n *Node) Input(name string) (*Socket, bool) { return n.inputs.AtTry(name) }

// Output looks up an output socket by name.
func (n *Node) Output(name string) (*Socket, bool) { return n.outputs.AtTry(name) }

func (n *Node) AddInput(s *Socket) error  { return n.addSocket(&n.inputs, s, Input) }
func (n *Node) AddOutput(s *Socket) error { return n.addSocket(&n.outputs, s, Output) }

func (n *Node) RemoveInput(name string) error  { return n.removeSocket(&n.inputs, name) }
func (n *Node) RemoveOutput(name string) error { return n.removeSocket(&n.outputs, name) }

func (n *Node) addSocket(list *keylist.List[string, *Socket], s *Socket, typ SocketType) error {
	if s.node != nil && s.node != n {
		return fmt.Errorf("socket %s already belongs to node %s", s.name, s.node.id)
	}
	if err := list.Add(s.name, s); err != nil {
		return fmt.Errorf("node %s: %w", n.id, err)
	}
	s.node = n
	s.typ = typ
	s.index = list.Len() - 1
	n.socketsChanged()
	return nil
}

func (n *Node) removeSocket(list *keylist.List[string, *Socket], name string) error {
	s, ok := list.AtTry(name)
	if !ok {
		return fmt.Errorf("node %s: no socket %q", n.id, name)
	}
	if len(s.edges) > 0 {
		return &SocketInUseError{Socket: s.ID(), Edges: len(s.edges)}
	}
	list.DeleteByKey(name)
	for i, rest := range list.Values {
		rest.index = i
	}
	s.node = nil
	n.socketsChanged()
	return nil
}

// SetValue stores a value delivered to the input socket key. Behaviours
// implementing ValueSetter decide themselves; otherwise a same-named
// attribute is written silently.
func (n *Node) SetValue(key string, v any) {
	if vs, ok := n.behavior.(ValueSetter); ok {
		vs.SetValue(n, key, v)
		return
	}
	if n.attrs.Has(key) {
		_, _, _ = n.attrs.assign(key, v)
	}
}

// InputValue returns the current value for an input: the same-named
// attribute if declared, else the last value the socket received.
func (n *Node) InputValue(name string) any {
	if v, ok := n.attrs.Get(name); ok {
		return v
	}
	if s, ok := n.inputs.AtTry(name); ok {
		return s.value
	}
	return nil
}

// Update runs the node's behaviour, if any.
func (n *Node) Update() error {
	if n.behavior == nil {
		return nil
	}
	return n.behavior.Update(n)
}

// SetAttribute writes an attribute through its schema checks.
func (n *Node) SetAttribute(name string, v any) error {
	return n.attrs.Set(name, v)
}

// MarkValueChanged reports a change of node state that lives outside the
// attributes, such as a generator's current value.
func (n *Node) MarkValueChanged() {
	if n.notify != nil {
		n.notify(Change{Kind: ValueChanged, NodeID: n.id})
	}
}

// Edges returns every edge attached to any of the node's sockets.
func (n *Node) Edges() []*Edge {
	var out []*Edge
	for _, list := range [][]*Socket{n.inputs.Values, n.outputs.Values} {
		for _, s := range list {
			out = append(out, s.edges...)
		}
	}
	return out
}

func (n *Node) attributeChanged(f Field) {
	if n.notify != nil {
		n.notify(Change{Kind: AttributeChanged, NodeID: n.id, Field: f.Name})
	}
}

func (n *Node) socketsChanged() {
	if n.notify != nil {
		n.notify(Change{Kind: SocketsChanged, NodeID: n.id})
	}
}
