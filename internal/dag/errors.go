package dag

import (
	"fmt"
	"strings"
)

// CyclicGraphError is returned when the graph cannot be ordered. Nodes
// lists every node that is on, or downstream of, a cycle.
type CyclicGraphError struct {
	Nodes []string
}

func (e *CyclicGraphError) Error() string {
	return fmt.Sprintf("graph contains a cycle through [%s]", strings.Join(e.Nodes, ", "))
}

// UpdateError wraps a failure raised by one node's behaviour.
type UpdateError struct {
	NodeID string
	Err    error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("node %s: %v", e.NodeID, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }
