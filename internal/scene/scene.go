package scene

import (
	"fmt"
	"math"
	"slices"

	"cogentcore.org/core/base/keylist"

	"github.com/gyaneshwarpardhi/nodegraph/internal/model"
)

// Identity is the identity viewport transform, row-major 3×3.
var Identity = [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

// SocketRef names one end of an edge as the view layer sees it.
type SocketRef struct {
	NodeID string `json:"node_id"`
	Socket string `json:"socket"`
}

func (r SocketRef) IsZero() bool { return r.NodeID == "" && r.Socket == "" }

// NodeItem is the view-side record of a node.
type NodeItem struct {
	ID       string      `json:"id"`
	TypeName string      `json:"type_name"`
	Title    string      `json:"title"`
	Category string      `json:"category,omitempty"`
	Color    string      `json:"color,omitempty"`
	Position model.Point `json:"position"`
	Width    float64     `json:"width"`
	Height   float64     `json:"height"`
}

// EdgeItem is the view-side record of an edge.
type EdgeItem struct {
	ID        string    `json:"id"`
	TypeName  string    `json:"type_name"`
	Source    SocketRef `json:"source"`
	Target    SocketRef `json:"target"`
	Connected bool      `json:"connected"`
	Color     string    `json:"color,omitempty"`
}

// Scene keeps the view records the controller hands to the view layer.
// Like the model it is touched from one goroutine only.
type Scene struct {
	nodes    keylist.List[string, *NodeItem]
	edges    keylist.List[string, *EdgeItem]
	viewport [9]float64
}

func New() *Scene {
	return &Scene{viewport: Identity}
}

func (s *Scene) AddNode(it *NodeItem) error {
	if err := s.nodes.Add(it.ID, it); err != nil {
		return fmt.Errorf("scene: node %s: %w", it.ID, err)
	}
	return nil
}

func (s *Scene) AddEdge(it *EdgeItem) error {
	if err := s.edges.Add(it.ID, it); err != nil {
		return fmt.Errorf("scene: edge %s: %w", it.ID, err)
	}
	return nil
}

// RemoveNode drops a node record. It reports whether one was present.
func (s *Scene) RemoveNode(id string) bool { return s.nodes.DeleteByKey(id) }

// RemoveEdge drops an edge record. It reports whether one was present.
func (s *Scene) RemoveEdge(id string) bool { return s.edges.DeleteByKey(id) }

func (s *Scene) Node(id string) (*NodeItem, bool) { return s.nodes.AtTry(id) }
func (s *Scene) Edge(id string) (*EdgeItem, bool) { return s.edges.AtTry(id) }

func (s *Scene) Nodes() []*NodeItem { return slices.Clone(s.nodes.Values) }
func (s *Scene) Edges() []*EdgeItem { return slices.Clone(s.edges.Values) }

func (s *Scene) NodeCount() int { return s.nodes.Len() }
func (s *Scene) EdgeCount() int { return s.edges.Len() }

func (s *Scene) Viewport() [9]float64 { return s.viewport }

// ValidViewport rejects transforms with non-finite entries or a singular
// linear part.
func ValidViewport(m [9]float64) error {
	for i, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("scene: viewport entry %d is not finite", i)
		}
	}
	if det := m[0]*m[4] - m[1]*m[3]; det == 0 {
		return fmt.Errorf("scene: viewport transform is singular")
	}
	return nil
}

// SetViewport replaces the viewport transform if ValidViewport accepts it.
func (s *Scene) SetViewport(m [9]float64) error {
	if err := ValidViewport(m); err != nil {
		return err
	}
	s.viewport = m
	return nil
}

// Clear drops every record and resets the viewport.
func (s *Scene) Clear() {
	s.nodes.Reset()
	s.edges.Reset()
	s.viewport = Identity
}
