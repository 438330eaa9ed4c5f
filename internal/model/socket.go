package model

import (
	"fmt"
	"log/slog"
	"slices"
)

// SocketType is the direction of a socket.
type SocketType int

const (
	Input SocketType = iota + 1
	Output
)

func (t SocketType) String() string {
	switch t {
	case Input:
		return "input"
	case Output:
		return "output"
	}
	return "unattached"
}

// Socket is a typed connection point on a node.
type Socket struct {
	name     string
	index    int
	typ      SocketType
	dataType string
	degree   int // 0 = unlimited

	node  *Node // owner, not owned
	edges []*Edge
	value any
}

// NewSocket creates a socket that becomes an input or output once added to
// a node.
func NewSocket(name, dataType string, degree int) *Socket {
	return &Socket{name: name, dataType: dataType, degree: degree}
}

func (s *Socket) Name() string         { return s.name }
func (s *Socket) Index() int           { return s.index }
func (s *Socket) Type() SocketType     { return s.typ }
func (s *Socket) DataType() string     { return s.dataType }
func (s *Socket) Degree() int          { return s.degree }
func (s *Socket) Node() *Node          { return s.node }
func (s *Socket) Value() any           { return s.value }
func (s *Socket) EdgeCount() int       { return len(s.edges) }
func (s *Socket) Edges() []*Edge       { return slices.Clone(s.edges) }
func (s *Socket) HasEdge(e *Edge) bool { return slices.Contains(s.edges, e) }

// NodeID returns the id of the owning node, or "" for a detached socket.
func (s *Socket) NodeID() string {
	if s.node == nil {
		return ""
	}
	return s.node.ID()
}

// ID identifies the socket within its graph.
func (s *Socket) ID() string {
	return fmt.Sprintf("%s/%s/%s", s.NodeID(), s.typ, s.name)
}

// CanConnect reports whether an edge between this socket and other would be
// accepted: the data types match and this socket has spare degree.
func (s *Socket) CanConnect(other interface{ DataType() string }) bool {
	return s.dataType == other.DataType() && s.hasCapacity()
}

func (s *Socket) hasCapacity() bool {
	return s.degree == 0 || len(s.edges) < s.degree
}

func (s *Socket) checkCapacity() error {
	if s.hasCapacity() {
		return nil
	}
	return &DegreeExceededError{NodeID: s.NodeID(), Socket: s.name, Degree: s.degree}
}

func (s *Socket) attach(e *Edge) error {
	if slices.Contains(s.edges, e) {
		return nil
	}
	if err := s.checkCapacity(); err != nil {
		return err
	}
	s.edges = append(s.edges, e)
	return nil
}

func (s *Socket) detach(e *Edge) {
	i := slices.Index(s.edges, e)
	if i < 0 {
		slog.Warn("socket detach: edge not attached", "socket", s.ID(), "edge", e.ID())
		return
	}
	s.edges = slices.Delete(s.edges, i, i+1)
}

// ReceiveValue stores a value arriving on an input socket and hands it to
// the owning node.
func (s *Socket) ReceiveValue(v any) {
	s.value = v
	if s.node != nil {
		s.node.SetValue(s.name, v)
	}
}

// PropagateChange pushes a value from an output socket to every connected
// input socket. Only edges that are graph members carry values; a pending
// edge holds its sockets for degree accounting alone.
func (s *Socket) PropagateChange(v any) {
	s.value = v
	for _, e := range slices.Clone(s.edges) {
		if e.end != nil && e.member() {
			e.end.ReceiveValue(v)
		}
	}
}
