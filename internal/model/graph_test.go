package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/nodegraph/internal/model"
)

// recorder collects delivered change batches.
type recorder struct {
	batches [][]model.Change
}

func (r *recorder) GraphChanged(_ *model.Graph, changes []model.Change) {
	r.batches = append(r.batches, changes)
}

func (r *recorder) kinds() []model.ChangeKind {
	var out []model.ChangeKind
	for _, b := range r.batches {
		for _, c := range b {
			out = append(out, c.Kind)
		}
	}
	return out
}

func assertConsistent(t *testing.T, g *model.Graph) {
	t.Helper()
	seen := map[string]bool{}
	for _, n := range g.Nodes() {
		require.False(t, seen[n.ID()], "duplicate node id %s", n.ID())
		seen[n.ID()] = true
		got, ok := g.Node(n.ID())
		require.True(t, ok)
		require.Same(t, n, got)
	}
	seen = map[string]bool{}
	for _, e := range g.Edges() {
		require.False(t, seen[e.ID()], "duplicate edge id %s", e.ID())
		seen[e.ID()] = true
		got, ok := g.Edge(e.ID())
		require.True(t, ok)
		require.Same(t, e, got)
	}
	assert.Equal(t, len(g.Nodes()), g.NodeCount())
	assert.Equal(t, len(g.Edges()), g.EdgeCount())
}

func twoNodeGraph(t *testing.T) (*model.Graph, *model.Node, *model.Node, *model.Edge) {
	t.Helper()
	g := model.NewGraph("test", nil)
	a := makeNode(t, "", nil, []model.SocketSpec{in("out", "int", 0)})
	b := makeNode(t, "", []model.SocketSpec{in("in", "int", 1)}, nil)
	require.NoError(t, g.AddNode(a))
	require.NoError(t, g.AddNode(b))
	e := model.NewEdge("default", nil)
	require.NoError(t, e.Connect(socket(t, a, "out"), socket(t, b, "in")))
	require.NoError(t, g.AddEdge(e))
	return g, a, b, e
}

func TestGraph_AddAssignsIDs(t *testing.T) {
	g, a, b, e := twoNodeGraph(t)
	assert.Equal(t, "test-1", a.ID())
	assert.Equal(t, "test-2", b.ID())
	assert.Equal(t, "default-1", e.ID())
	assertConsistent(t, g)
}

func TestGraph_DuplicateMembership(t *testing.T) {
	g, a, _, e := twoNodeGraph(t)

	var dup *model.DuplicateMembershipError
	require.ErrorAs(t, g.AddNode(a), &dup)
	assert.Equal(t, "node", dup.Entity)
	require.ErrorAs(t, g.AddEdge(e), &dup)
	assert.Equal(t, "edge", dup.Entity)

	clash := makeNode(t, a.ID(), nil, nil)
	require.ErrorAs(t, g.AddNode(clash), &dup)

	// ids are unique across kinds
	edgeClash := model.NewEdge("default", nil)
	edgeClash.SetID(a.ID())
	require.ErrorAs(t, g.AddEdge(edgeClash), &dup)

	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 1, g.EdgeCount())
	assertConsistent(t, g)
}

func TestGraph_MissingMembership(t *testing.T) {
	g, _, _, _ := twoNodeGraph(t)

	var missing *model.MissingMembershipError
	stranger := makeNode(t, "stranger", nil, nil)
	require.ErrorAs(t, g.DeleteNode(stranger), &missing)
	require.ErrorAs(t, g.DeleteEdge(model.NewEdge("default", nil)), &missing)
	assertConsistent(t, g)
}

func TestGraph_AddEdgeRequiresMemberNodes(t *testing.T) {
	g := model.NewGraph("g", nil)
	a := makeNode(t, "a", nil, []model.SocketSpec{in("out", "int", 0)})
	b := makeNode(t, "b", []model.SocketSpec{in("in", "int", 0)}, nil)
	require.NoError(t, g.AddNode(a))

	e := model.NewEdge("default", nil)
	require.NoError(t, e.Connect(socket(t, a, "out"), socket(t, b, "in")))

	var missing *model.MissingMembershipError
	require.ErrorAs(t, g.AddEdge(e), &missing)
	assert.Equal(t, "b", missing.ID)
}

func TestGraph_DeleteEdgeDetaches(t *testing.T) {
	g, a, b, e := twoNodeGraph(t)

	require.NoError(t, g.DeleteEdge(e))
	assert.Equal(t, 0, socket(t, a, "out").EdgeCount())
	assert.Equal(t, 0, socket(t, b, "in").EdgeCount())
	assert.True(t, e.IsOpen())
	assertConsistent(t, g)
}

func TestGraph_DeleteNodeDestroysEdges(t *testing.T) {
	g := model.NewGraph("g", nil)
	src := makeNode(t, "src", nil, []model.SocketSpec{in("out", "int", 0)})
	mid := makeNode(t, "mid", []model.SocketSpec{in("in", "int", 1)}, []model.SocketSpec{in("out", "int", 0)})
	sink := makeNode(t, "sink", []model.SocketSpec{in("in", "int", 1)}, nil)
	for _, n := range []*model.Node{src, mid, sink} {
		require.NoError(t, g.AddNode(n))
	}
	e1 := model.NewEdge("default", nil)
	require.NoError(t, e1.Connect(socket(t, src, "out"), socket(t, mid, "in")))
	require.NoError(t, g.AddEdge(e1))
	e2 := model.NewEdge("default", nil)
	require.NoError(t, e2.Connect(socket(t, mid, "out"), socket(t, sink, "in")))
	require.NoError(t, g.AddEdge(e2))

	// an open edge dragged out of mid that never became a member
	dragging := model.NewEdge("default", nil)
	require.NoError(t, dragging.SetStart(socket(t, mid, "out")))

	rec := &recorder{}
	g.Subscribe(rec)
	require.NoError(t, g.DeleteNode(mid))

	assert.Equal(t, 0, g.EdgeCount())
	assert.Equal(t, 2, g.NodeCount())
	for _, n := range g.Nodes() {
		for _, s := range append(n.Inputs(), n.Outputs()...) {
			assert.Zero(t, s.EdgeCount(), "dangling edge on %s", s.ID())
		}
	}
	assert.Nil(t, dragging.Start())
	require.Len(t, rec.batches, 1, "node deletion is delivered as one batch")
	assert.Equal(t, []model.ChangeKind{model.EdgeRemoved, model.EdgeRemoved, model.NodeRemoved}, rec.kinds())
	assertConsistent(t, g)
}

func TestGraph_GenerateItemIDSkipsExisting(t *testing.T) {
	g := model.NewGraph("g", nil)
	for _, id := range []string{"Node-1", "Node-2", "Node-7"} {
		require.NoError(t, g.AddNode(makeNode(t, id, nil, nil)))
	}
	e := model.NewEdge("default", nil)
	e.SetID("Node-3")
	require.NoError(t, g.AddEdge(e))

	assert.Equal(t, "Node-4", g.GenerateItemID("Node"))
	assert.Equal(t, "Node-5", g.GenerateItemID("Node"))
	assert.Equal(t, "Edge-1", g.GenerateItemID("Edge"))

	require.NoError(t, g.AddNode(makeNode(t, "Node-6", nil, nil)))
	assert.Equal(t, "Node-8", g.GenerateItemID("Node"))
}

func TestGraph_ClearAll(t *testing.T) {
	g, a, b, _ := twoNodeGraph(t)
	rec := &recorder{}
	g.Subscribe(rec)

	g.ClearAll()

	assert.Zero(t, g.NodeCount())
	assert.Zero(t, g.EdgeCount())
	assert.Zero(t, socket(t, a, "out").EdgeCount())
	assert.Zero(t, socket(t, b, "in").EdgeCount())
	assert.Equal(t, []model.ChangeKind{model.EdgeRemoved, model.NodeRemoved, model.NodeRemoved}, rec.kinds())

	// removed nodes can join again
	require.NoError(t, g.AddNode(a))
}

func TestGraph_ChangeEvents(t *testing.T) {
	g := model.NewGraph("g", nil)
	rec := &recorder{}
	g.Subscribe(rec)

	n := model.Template{
		TypeName: "src",
		Schema: model.Schema{
			{Name: "value", Kind: model.KindInt, Role: model.RoleOutput},
			{Name: "scale", Kind: model.KindFloat, Role: model.RoleProperty, Default: 1.0},
			{Name: "in", Kind: model.KindInt, Role: model.RoleInput},
		},
	}.Instantiate(nil)
	require.NoError(t, g.AddNode(n))

	require.NoError(t, n.SetAttribute("value", 3))
	require.NoError(t, n.SetAttribute("scale", 2.5))
	require.NoError(t, n.SetAttribute("scale", 2.5)) // unchanged, silent
	require.NoError(t, n.SetAttribute("in", 9))      // input role, silent
	n.MarkValueChanged()

	assert.Equal(t, []model.ChangeKind{
		model.NodeAdded,
		model.AttributeChanged,
		model.AttributeChanged,
		model.ValueChanged,
	}, rec.kinds())
	assert.Equal(t, "scale", rec.batches[2][0].Field)
	assert.True(t, model.NodeAdded.Topology())
	assert.False(t, model.AttributeChanged.Topology())
}

func TestGraph_EdgeReconnectRaisesTopology(t *testing.T) {
	g := model.NewGraph("g", nil)
	a := makeNode(t, "a", nil, []model.SocketSpec{in("o1", "int", 0), in("o2", "int", 0)})
	b := makeNode(t, "b", []model.SocketSpec{in("in", "int", 0)}, nil)
	require.NoError(t, g.AddNode(a))
	require.NoError(t, g.AddNode(b))
	e := model.NewEdge("default", nil)
	require.NoError(t, e.Connect(socket(t, a, "o1"), socket(t, b, "in")))
	require.NoError(t, g.AddEdge(e))

	rec := &recorder{}
	g.Subscribe(rec)
	require.NoError(t, e.SetStart(socket(t, a, "o2")))

	assert.Equal(t, []model.ChangeKind{model.EdgeReconnected}, rec.kinds())
	assert.True(t, model.EdgeReconnected.Topology())
}
