package model

import "fmt"

// DuplicateMembershipError is returned when a node or edge is added to a
// graph that already holds it, or holds another entity under the same id.
type DuplicateMembershipError struct {
	Entity string // "node" | "edge"
	ID     string
}

func (e *DuplicateMembershipError) Error() string {
	return fmt.Sprintf("%s %q is already a member of the graph", e.Entity, e.ID)
}

// MissingMembershipError is returned when removing or referencing an entity
// the graph does not hold.
type MissingMembershipError struct {
	Entity string
	ID     string
}

func (e *MissingMembershipError) Error() string {
	return fmt.Sprintf("%s %q is not a member of the graph", e.Entity, e.ID)
}

// TypeMismatchError is returned when two sockets with different data types
// would be joined by an edge.
type TypeMismatchError struct {
	From string // data type of the start (output) side
	To   string // data type of the end (input) side
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("incompatible type for connection %s->%s", e.From, e.To)
}

// DegreeExceededError is returned when a socket already carries as many
// edges as its degree allows.
type DegreeExceededError struct {
	NodeID string
	Socket string
	Degree int
}

func (e *DegreeExceededError) Error() string {
	return fmt.Sprintf("too many links on %s:%s (degree %d)", e.NodeID, e.Socket, e.Degree)
}

// DirectionError is returned when an input socket is used as an edge start
// or an output socket as an edge end.
type DirectionError struct {
	Socket string
	Want   SocketType
	Got    SocketType
}

func (e *DirectionError) Error() string {
	return fmt.Sprintf("socket %s is %s, need %s", e.Socket, e.Got, e.Want)
}

// SocketInUseError is returned when removing a socket that still has edges.
type SocketInUseError struct {
	Socket string
	Edges  int
}

func (e *SocketInUseError) Error() string {
	return fmt.Sprintf("socket %s still has %d edge(s)", e.Socket, e.Edges)
}

// AttributeError reports an unknown attribute name or an unusable value.
type AttributeError struct {
	Name   string
	Reason string
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("attribute %q: %s", e.Name, e.Reason)
}
