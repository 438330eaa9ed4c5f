package dag

import (
	"errors"
	"log/slog"
	"time"

	mapset "github.com/deckarep/golang-set"

	"github.com/gyaneshwarpardhi/nodegraph/internal/metrics"
	"github.com/gyaneshwarpardhi/nodegraph/internal/model"
)

// ErrPassInProgress is returned when a pass is requested while one is
// already running.
var ErrPassInProgress = errors.New("execution pass already in progress")

// State is the executor state.
type State int

const (
	Idle State = iota
	TopologyDirty
	ValuesDirty
	Executing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case TopologyDirty:
		return "topology_dirty"
	case ValuesDirty:
		return "values_dirty"
	case Executing:
		return "executing"
	}
	return "unknown"
}

// Pass describes the most recent execution pass.
type Pass struct {
	Full     bool
	Ran      []string
	Err      error
	Duration time.Duration
}

// ExecutableGraph is a Graph that re-runs node updates in topological order
// whenever its topology or values change.
//
// Topology changes invalidate the projection and make the next pass a full
// one. Value changes that name a node only run that node and everything
// downstream of it. With AutoExecute on, the pass runs as soon as the
// change is delivered; otherwise changes accumulate until Flush.
type ExecutableGraph struct {
	*model.Graph

	log         *slog.Logger
	autoExecute bool

	state      State
	executing  bool
	projection *Projection
	order      []string

	full    bool       // next pass runs every node
	pending mapset.Set // nodes whose values changed since the last pass

	last   Pass
	passes int
}

// New wraps g and subscribes to its changes.
func New(g *model.Graph, logger *slog.Logger) *ExecutableGraph {
	if logger == nil {
		logger = slog.Default()
	}
	x := &ExecutableGraph{
		Graph:       g,
		log:         logger,
		autoExecute: true,
		state:       TopologyDirty,
		full:        true,
		pending:     mapset.NewThreadUnsafeSet(),
	}
	g.Subscribe(x)
	return x
}

func (x *ExecutableGraph) State() State { return x.state }

// LastPass returns a description of the most recent pass.
func (x *ExecutableGraph) LastPass() Pass { return x.last }

// Passes returns how many passes have run.
func (x *ExecutableGraph) Passes() int { return x.passes }

func (x *ExecutableGraph) AutoExecute() bool { return x.autoExecute }

// SetAutoExecute toggles running a pass on every delivered change.
func (x *ExecutableGraph) SetAutoExecute(on bool) { x.autoExecute = on }

// GraphChanged implements model.Listener.
func (x *ExecutableGraph) GraphChanged(_ *model.Graph, changes []model.Change) {
	for _, c := range changes {
		switch {
		case c.Kind.Topology():
			x.invalidate()
		case x.executing:
			// Values written by the running pass itself.
		case c.NodeID == "":
			x.full = true
			x.markValues()
		default:
			x.pending.Add(c.NodeID)
			x.markValues()
		}
	}
	if x.executing || !x.autoExecute {
		return
	}
	_ = x.Flush()
}

func (x *ExecutableGraph) invalidate() {
	x.projection = nil
	x.order = nil
	x.full = true
	x.pending.Clear()
	if !x.executing {
		x.state = TopologyDirty
	}
}

func (x *ExecutableGraph) markValues() {
	if x.state == Idle {
		x.state = ValuesDirty
	}
}

// Projection returns the current projection, rebuilding it if the topology
// changed since it was last derived.
func (x *ExecutableGraph) Projection() *Projection {
	if x.projection == nil {
		x.projection = Build(x.Graph)
		x.order = nil
		metrics.TopologyRebuilds.Inc()
		metrics.GraphNodes.Set(float64(x.NodeCount()))
		metrics.GraphEdges.Set(float64(x.EdgeCount()))
		x.log.Debug("projection rebuilt", "graph", x.Name,
			"nodes", x.projection.NodeCount(), "arcs", x.projection.ArcCount())
	}
	return x.projection
}

// Order returns the cached topological order.
func (x *ExecutableGraph) Order() ([]string, error) {
	p := x.Projection()
	if x.order == nil {
		order, err := p.TopologicalSort()
		if err != nil {
			return nil, err
		}
		x.order = order
	}
	return x.order, nil
}

// Flush runs whatever pass the pending changes call for. It is a no-op
// when nothing changed.
func (x *ExecutableGraph) Flush() error {
	switch x.state {
	case TopologyDirty:
		return x.run(true, nil)
	case ValuesDirty:
		if x.full {
			return x.run(true, nil)
		}
		return x.run(false, toStrings(x.pending.ToSlice()))
	case Executing:
		return ErrPassInProgress
	}
	return nil
}

// ExecuteGraph runs every node once in topological order.
func (x *ExecutableGraph) ExecuteGraph() error {
	return x.run(true, nil)
}

// ExecuteFrom runs the given nodes and everything downstream of them.
func (x *ExecutableGraph) ExecuteFrom(ids ...string) error {
	return x.run(false, ids)
}

func (x *ExecutableGraph) run(full bool, seeds []string) error {
	if x.executing {
		x.log.Warn("execute graph: nested pass suppressed", "graph", x.Name)
		return ErrPassInProgress
	}
	start := time.Now()
	mode := "partial"
	if full {
		mode = "full"
	}

	x.executing = true
	x.state = Executing
	x.full = false
	x.pending.Clear()
	defer func() {
		x.executing = false
		if x.projection == nil {
			x.state = TopologyDirty
		} else {
			x.state = Idle
		}
	}()

	pass := Pass{Full: full}
	order, err := x.Order()
	if err != nil {
		metrics.CyclicGraphErrors.Inc()
		metrics.GraphPasses.WithLabelValues(mode, "cycle").Inc()
		x.log.Error("execute graph: cannot order nodes", "graph", x.Name, "err", err)
		pass.Err = err
		x.finish(pass, start)
		return err
	}

	var affected mapset.Set
	if !full {
		affected = x.projection.Downstream(seeds...)
	}

	var errs []error
	for _, id := range order {
		if affected != nil && !affected.Contains(id) {
			continue
		}
		n, ok := x.Node(id)
		if !ok {
			continue // removed during the pass
		}
		pass.Ran = append(pass.Ran, id)
		if err := n.Update(); err != nil {
			metrics.NodeUpdates.WithLabelValues(n.TypeName(), "error").Inc()
			x.log.Warn("node update failed", "graph", x.Name, "node", id, "type", n.TypeName(), "err", err)
			errs = append(errs, &UpdateError{NodeID: id, Err: err})
			continue
		}
		metrics.NodeUpdates.WithLabelValues(n.TypeName(), "ok").Inc()
	}

	pass.Err = errors.Join(errs...)
	outcome := "ok"
	if pass.Err != nil {
		outcome = "error"
	}
	metrics.GraphPasses.WithLabelValues(mode, outcome).Inc()
	x.finish(pass, start)
	return pass.Err
}

func (x *ExecutableGraph) finish(p Pass, start time.Time) {
	p.Duration = time.Since(start)
	metrics.PassDuration.Observe(float64(p.Duration.Microseconds()) / 1000)
	x.last = p
	x.passes++
	x.log.Debug("execute graph: pass done", "graph", x.Name,
		"full", p.Full, "ran", len(p.Ran), "duration", p.Duration)
}

func toStrings(items []interface{}) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
