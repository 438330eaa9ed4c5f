package dag

import (
	"slices"

	mapset "github.com/deckarep/golang-set"

	"github.com/gyaneshwarpardhi/nodegraph/internal/model"
)

// Arc is one closed edge of the graph seen as a directed connection
// between two nodes.
type Arc struct {
	EdgeID string
	From   string
	To     string
}

// Projection is a read-only directed multigraph derived from a
// model.Graph. It is rebuilt whenever the topology changes.
type Projection struct {
	order []string       // node ids in graph insertion order
	index map[string]int // node id → position in order
	arcs  []Arc
	out   map[string][]Arc
	in    map[string][]Arc
}

// Build derives the projection of g. Open edges are not part of it.
func Build(g *model.Graph) *Projection {
	nodes := g.Nodes()
	p := &Projection{
		order: make([]string, 0, len(nodes)),
		index: make(map[string]int, len(nodes)),
		out:   make(map[string][]Arc),
		in:    make(map[string][]Arc),
	}
	for i, n := range nodes {
		p.order = append(p.order, n.ID())
		p.index[n.ID()] = i
	}
	for _, e := range g.Edges() {
		if e.IsOpen() {
			continue
		}
		a := Arc{EdgeID: e.ID(), From: e.Start().NodeID(), To: e.End().NodeID()}
		if _, ok := p.index[a.From]; !ok {
			continue
		}
		if _, ok := p.index[a.To]; !ok {
			continue
		}
		p.arcs = append(p.arcs, a)
		p.out[a.From] = append(p.out[a.From], a)
		p.in[a.To] = append(p.in[a.To], a)
	}
	return p
}

// Nodes returns the node ids in insertion order.
func (p *Projection) Nodes() []string { return slices.Clone(p.order) }

// Arcs returns every arc in edge insertion order.
func (p *Projection) Arcs() []Arc { return slices.Clone(p.arcs) }

func (p *Projection) NodeCount() int { return len(p.order) }
func (p *Projection) ArcCount() int  { return len(p.arcs) }

// Successors returns the targets of the arcs leaving id, one entry per arc.
func (p *Projection) Successors(id string) []string {
	out := make([]string, 0, len(p.out[id]))
	for _, a := range p.out[id] {
		out = append(out, a.To)
	}
	return out
}

// Predecessors returns the sources of the arcs entering id.
func (p *Projection) Predecessors(id string) []string {
	out := make([]string, 0, len(p.in[id]))
	for _, a := range p.in[id] {
		out = append(out, a.From)
	}
	return out
}

// TopologicalSort orders the nodes so that every arc goes from an earlier
// node to a later one. Among nodes that are ready at the same time the one
// inserted first comes first. A cycle yields a *CyclicGraphError listing
// the nodes that could not be ordered.
func (p *Projection) TopologicalSort() ([]string, error) {
	indegree := make([]int, len(p.order))
	for _, a := range p.arcs {
		indegree[p.index[a.To]]++
	}
	// ready holds positions in p.order, kept sorted.
	var ready []int
	for i, d := range indegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}
	sorted := make([]string, 0, len(p.order))
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		id := p.order[i]
		sorted = append(sorted, id)
		for _, a := range p.out[id] {
			j := p.index[a.To]
			indegree[j]--
			if indegree[j] == 0 {
				pos, _ := slices.BinarySearch(ready, j)
				ready = slices.Insert(ready, pos, j)
			}
		}
	}
	if len(sorted) < len(p.order) {
		var stuck []string
		for i, d := range indegree {
			if d > 0 {
				stuck = append(stuck, p.order[i])
			}
		}
		return nil, &CyclicGraphError{Nodes: stuck}
	}
	return sorted, nil
}

// Downstream returns the seeds that belong to the projection together with
// every node reachable from them.
func (p *Projection) Downstream(seeds ...string) mapset.Set {
	seen := mapset.NewThreadUnsafeSet()
	var queue []string
	for _, id := range seeds {
		if _, ok := p.index[id]; ok && seen.Add(id) {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, a := range p.out[id] {
			if seen.Add(a.To) {
				queue = append(queue, a.To)
			}
		}
	}
	return seen
}
