package registry

import (
	"github.com/gyaneshwarpardhi/nodegraph/internal/model"
	"github.com/gyaneshwarpardhi/nodegraph/internal/scene"
)

const (
	nodeWidth     = 180
	titleHeight   = 24
	socketSpacing = 22
	padding       = 8
)

// DefaultNodeView sizes a node box from its socket count.
func DefaultNodeView(t NodeType) func(n *model.Node) *scene.NodeItem {
	return func(n *model.Node) *scene.NodeItem {
		rows := max(len(n.Inputs()), len(n.Outputs()), 1)
		return &scene.NodeItem{
			ID:       n.ID(),
			TypeName: n.TypeName(),
			Title:    n.Name(),
			Category: t.Category,
			Position: n.Position(),
			Width:    nodeWidth,
			Height:   titleHeight + float64(rows*socketSpacing) + 2*padding,
		}
	}
}

// DefaultEdgeView mirrors the edge's endpoints.
func DefaultEdgeView(e *model.Edge) *scene.EdgeItem {
	it := &scene.EdgeItem{ID: e.ID(), TypeName: e.TypeName()}
	if s := e.Start(); s != nil {
		it.Source = scene.SocketRef{NodeID: s.NodeID(), Socket: s.Name()}
	}
	if s := e.End(); s != nil {
		it.Target = scene.SocketRef{NodeID: s.NodeID(), Socket: s.Name()}
	}
	it.Connected = !e.IsOpen()
	return it
}
