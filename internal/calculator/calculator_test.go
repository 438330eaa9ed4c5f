package calculator_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/nodegraph/internal/calculator"
	"github.com/gyaneshwarpardhi/nodegraph/internal/dag"
	"github.com/gyaneshwarpardhi/nodegraph/internal/model"
	"github.com/gyaneshwarpardhi/nodegraph/internal/registry"
)

type harness struct {
	reg *registry.Registry
	x   *dag.ExecutableGraph
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg := registry.New()
	calculator.Register(reg)
	x := dag.New(model.NewGraph("calc", nil), nil)
	x.SetAutoExecute(false)
	return &harness{reg: reg, x: x}
}

func (h *harness) node(t *testing.T, typeName string, attrs map[string]any) *model.Node {
	t.Helper()
	nt, err := h.reg.Node(typeName)
	require.NoError(t, err)
	n := nt.New()
	for k, v := range attrs {
		require.NoError(t, n.SetAttribute(k, v), "%s.%s", typeName, k)
	}
	require.NoError(t, h.x.AddNode(n))
	return n
}

func (h *harness) connect(t *testing.T, from *model.Node, out string, to *model.Node, in string) {
	t.Helper()
	s, ok := from.Output(out)
	require.True(t, ok, "%s has no output %s", from.ID(), out)
	d, ok := to.Input(in)
	require.True(t, ok, "%s has no input %s", to.ID(), in)
	et, err := h.reg.Edge(h.reg.EdgeTypeFor(s.DataType()))
	require.NoError(t, err)
	e := et.New()
	require.NoError(t, e.Connect(s, d))
	require.NoError(t, h.x.AddEdge(e))
}

func TestRegister_AllKinds(t *testing.T) {
	reg := registry.New()
	calculator.Register(reg)

	want := []string{
		"integer_input", "float_input", "text_input", "ramp_generator",
		"integer_output", "float_output", "text_output", "graph_output",
		"unary_operator", "binary_operator", "formula",
		"int_to_float", "float_to_int", "int_to_text", "float_to_text",
	}
	var got []string
	for _, nt := range reg.NodeTypes() {
		got = append(got, nt.Name)
		n := nt.New()
		assert.Equal(t, nt.Name, n.TypeName())
		assert.Positive(t, len(n.Inputs())+len(n.Outputs()), "%s has sockets", nt.Name)
	}
	assert.Equal(t, want, got)
	assert.Equal(t, registry.DefaultEdgeType, reg.EdgeTypeFor("float"))
}

func TestAdderScenario(t *testing.T) {
	h := newHarness(t)
	input := h.node(t, "float_input", map[string]any{"value": 3})
	adder := h.node(t, "binary_operator", map[string]any{"operator": "add", "in2": 4})
	output := h.node(t, "float_output", nil)
	h.connect(t, input, "value", adder, "in1")
	h.connect(t, adder, "result", output, "value")

	require.NoError(t, h.x.ExecuteGraph())
	assert.Equal(t, 7.0, output.Attributes().Float("value"))
	assert.Equal(t, 7.0, adder.Attributes().Float("result"))
}

func TestSocketsFromSchema(t *testing.T) {
	h := newHarness(t)
	op := h.node(t, "binary_operator", nil)

	var ins []string
	for _, s := range op.Inputs() {
		ins = append(ins, s.Name())
		assert.Equal(t, 1, s.Degree())
		assert.Equal(t, "float", s.DataType())
	}
	assert.Equal(t, []string{"in1", "in2"}, ins)
	res, ok := op.Output("result")
	require.True(t, ok)
	assert.Equal(t, 0, res.Degree())

	assert.Error(t, op.SetAttribute("operator", "pow"), "choices are enforced")
}

func TestIntegerChain(t *testing.T) {
	h := newHarness(t)
	in := h.node(t, "integer_input", map[string]any{"value": 42})
	toFloat := h.node(t, "int_to_float", nil)
	toText := h.node(t, "float_to_text", nil)
	text := h.node(t, "text_output", nil)
	toIntText := h.node(t, "int_to_text", nil)
	text2 := h.node(t, "text_output", nil)

	h.connect(t, in, "value", toFloat, "in1")
	h.connect(t, toFloat, "result", toText, "in1")
	h.connect(t, toText, "result", text, "value")
	h.connect(t, in, "value", toIntText, "in1")
	h.connect(t, toIntText, "result", text2, "value")

	require.NoError(t, h.x.ExecuteGraph())
	assert.Equal(t, "42.000", text.Attributes().Text("value"))
	assert.Equal(t, "42", text2.Attributes().Text("value"))
}

func TestFloatToInt(t *testing.T) {
	cases := []struct {
		method string
		in     float64
		want   int
	}{
		{"round", 2.5, 3},
		{"round", -2.4, -2},
		{"floor", 2.7, 2},
		{"ceil", 2.1, 3},
	}
	for _, tc := range cases {
		t.Run(tc.method, func(t *testing.T) {
			h := newHarness(t)
			src := h.node(t, "float_input", map[string]any{"value": tc.in})
			conv := h.node(t, "float_to_int", map[string]any{"method": tc.method})
			dst := h.node(t, "integer_output", nil)
			h.connect(t, src, "value", conv, "in1")
			h.connect(t, conv, "result", dst, "value")

			require.NoError(t, h.x.ExecuteGraph())
			assert.Equal(t, tc.want, dst.Attributes().Int("value"))
		})
	}
}

func TestUnaryOperator(t *testing.T) {
	h := newHarness(t)
	src := h.node(t, "float_input", map[string]any{"value": 180})
	op := h.node(t, "unary_operator", map[string]any{"operator": "deg2rad"})
	dst := h.node(t, "float_output", nil)
	h.connect(t, src, "value", op, "in1")
	h.connect(t, op, "result", dst, "value")

	require.NoError(t, h.x.ExecuteGraph())
	assert.InDelta(t, 3.14159265, dst.Attributes().Float("value"), 1e-6)

	require.NoError(t, op.SetAttribute("operator", "log10"))
	require.NoError(t, src.SetAttribute("value", 100))
	require.NoError(t, h.x.ExecuteGraph())
	assert.InDelta(t, 2.0, dst.Attributes().Float("value"), 1e-9)
}

func TestDomainErrorsKeepPreviousResult(t *testing.T) {
	h := newHarness(t)
	a := h.node(t, "float_input", map[string]any{"value": 8})
	b := h.node(t, "float_input", map[string]any{"value": 2})
	div := h.node(t, "binary_operator", map[string]any{"operator": "div"})
	dst := h.node(t, "float_output", nil)
	h.connect(t, a, "value", div, "in1")
	h.connect(t, b, "value", div, "in2")
	h.connect(t, div, "result", dst, "value")

	require.NoError(t, h.x.ExecuteGraph())
	assert.Equal(t, 4.0, dst.Attributes().Float("value"))

	require.NoError(t, b.SetAttribute("value", 0))
	err := h.x.ExecuteGraph()
	require.ErrorIs(t, err, calculator.ErrDivisionByZero)
	var ue *dag.UpdateError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, div.ID(), ue.NodeID)
	assert.Equal(t, 4.0, dst.Attributes().Float("value"), "previous result stays")
}

func TestFormula(t *testing.T) {
	h := newHarness(t)
	a := h.node(t, "float_input", map[string]any{"value": 3})
	b := h.node(t, "float_input", map[string]any{"value": 4})
	f := h.node(t, "formula", map[string]any{"expression": "sqrt(a*a + b*b)"})
	dst := h.node(t, "float_output", nil)
	h.connect(t, a, "value", f, "a")
	h.connect(t, b, "value", f, "b")
	h.connect(t, f, "result", dst, "value")

	require.NoError(t, h.x.ExecuteGraph())
	assert.Equal(t, 5.0, dst.Attributes().Float("value"))

	require.NoError(t, f.SetAttribute("expression", "a > b"))
	require.NoError(t, h.x.ExecuteGraph())
	assert.Equal(t, 0.0, dst.Attributes().Float("value"))

	require.NoError(t, f.SetAttribute("expression", "a +"))
	assert.Error(t, h.x.ExecuteGraph())
	assert.Equal(t, 0.0, dst.Attributes().Float("value"))
}

func TestGraphOutputWindow(t *testing.T) {
	h := newHarness(t)
	src := h.node(t, "float_input", nil)
	g := h.node(t, "graph_output", map[string]any{"max_entries": 3})
	h.connect(t, src, "value", g, "value")

	for i := 1; i <= 5; i++ {
		require.NoError(t, src.SetAttribute("value", i))
		require.NoError(t, h.x.ExecuteGraph())
	}
	assert.Equal(t, []any{3.0, 4.0, 5.0}, g.Attributes().List("values"))
}

func TestRampTick(t *testing.T) {
	h := newHarness(t)
	ramp := h.node(t, "ramp_generator", map[string]any{"interval": 10, "min_value": 1, "max_value": 3})
	dst := h.node(t, "integer_output", nil)
	h.connect(t, ramp, "value", dst, "value")
	behavior, ok := ramp.Behavior().(*calculator.Ramp)
	require.True(t, ok)

	t0 := time.Unix(0, 0)
	assert.False(t, behavior.Tick(ramp, t0), "stopped ramps do not advance")

	require.NoError(t, ramp.SetAttribute("is_running", true))
	assert.False(t, behavior.Tick(ramp, t0), "first tick only arms the timer")
	assert.False(t, behavior.Tick(ramp, t0.Add(5*time.Millisecond)))

	var seen []int
	for i := 1; i <= 4; i++ {
		require.True(t, behavior.Tick(ramp, t0.Add(time.Duration(i*10)*time.Millisecond)))
		require.NoError(t, h.x.ExecuteGraph())
		seen = append(seen, dst.Attributes().Int("value"))
	}
	assert.Equal(t, []int{1, 2, 3, 1}, seen, "value wraps to min_value")
}
