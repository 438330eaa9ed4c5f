package calculator

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/gyaneshwarpardhi/nodegraph/internal/formula"
	"github.com/gyaneshwarpardhi/nodegraph/internal/model"
)

var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrDomain         = errors.New("argument out of domain")
)

// propagate pushes v out of the named output socket, if the node has one.
func propagate(n *model.Node, socket string, v any) {
	if s, ok := n.Output(socket); ok {
		s.PropagateChange(v)
	}
}

// publish stores a computed result and propagates it. Non-finite results
// are refused so every stored value stays encodable.
func publish(n *model.Node, name string, v any) error {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return keep(n, name, fmt.Errorf("%w: result %v", ErrDomain, f))
	}
	if err := n.SetAttribute(name, v); err != nil {
		return err
	}
	propagate(n, name, v)
	return nil
}

// keep propagates the previous result after a failed computation.
func keep(n *model.Node, name string, cause error) error {
	v, _ := n.Attributes().Get(name)
	propagate(n, name, v)
	return fmt.Errorf("%s: %w", n.TypeName(), cause)
}

// source pushes each output-role attribute through the same-named socket.
type source struct{}

func (source) Update(n *model.Node) error {
	for _, s := range n.Outputs() {
		if v, ok := n.Attributes().Get(s.Name()); ok {
			s.PropagateChange(v)
		}
	}
	return nil
}

// sink only stores what it receives; Node.SetValue writes the attribute.
type sink struct{}

func (sink) Update(*model.Node) error { return nil }

// graphOutput keeps a rolling window of the values it receives.
type graphOutput struct{}

func (graphOutput) Update(*model.Node) error { return nil }

func (graphOutput) SetValue(n *model.Node, key string, v any) {
	if key != "value" {
		return
	}
	a := n.Attributes()
	limit := max(a.Int("max_entries"), 1)
	values := append(a.List("values"), v)
	if len(values) > limit {
		values = values[len(values)-limit:]
	}
	_ = n.SetAttribute("values", values)
}

var unaryOps = map[string]func(float64) (float64, error){
	"deg2rad": func(x float64) (float64, error) { return x * math.Pi / 180, nil },
	"rad2deg": func(x float64) (float64, error) { return x * 180 / math.Pi, nil },
	"sin":     func(x float64) (float64, error) { return math.Sin(x), nil },
	"cos":     func(x float64) (float64, error) { return math.Cos(x), nil },
	"log10": func(x float64) (float64, error) {
		if x <= 0 {
			return 0, fmt.Errorf("%w: log10(%v)", ErrDomain, x)
		}
		return math.Log10(x), nil
	},
}

type unaryOperator struct{}

func (unaryOperator) Update(n *model.Node) error {
	a := n.Attributes()
	op, ok := unaryOps[a.Text("operator")]
	if !ok {
		return keep(n, "result", fmt.Errorf("invalid operator %q", a.Text("operator")))
	}
	r, err := op(a.Float("in1"))
	if err != nil {
		return keep(n, "result", err)
	}
	return publish(n, "result", r)
}

var binaryOps = map[string]func(x, y float64) (float64, error){
	"add": func(x, y float64) (float64, error) { return x + y, nil },
	"sub": func(x, y float64) (float64, error) { return x - y, nil },
	"mul": func(x, y float64) (float64, error) { return x * y, nil },
	"div": func(x, y float64) (float64, error) {
		if y == 0 {
			return 0, ErrDivisionByZero
		}
		return x / y, nil
	},
}

type binaryOperator struct{}

func (binaryOperator) Update(n *model.Node) error {
	a := n.Attributes()
	op, ok := binaryOps[a.Text("operator")]
	if !ok {
		return keep(n, "result", fmt.Errorf("invalid operator %q", a.Text("operator")))
	}
	r, err := op(a.Float("in1"), a.Float("in2"))
	if err != nil {
		return keep(n, "result", err)
	}
	return publish(n, "result", r)
}

// Formula evaluates its expression over the inputs a and b. The parsed
// expression is cached until the source text changes.
type Formula struct {
	src  string
	expr formula.Expr
}

func (f *Formula) Update(n *model.Node) error {
	a := n.Attributes()
	src := a.Text("expression")
	if f.expr == nil || src != f.src {
		expr, err := formula.Parse(src)
		if err != nil {
			return keep(n, "result", fmt.Errorf("parse %q: %w", src, err))
		}
		f.src, f.expr = src, expr
	}
	r, err := formula.EvalFloat(f.expr, formula.Vars{"a": a.Float("a"), "b": a.Float("b")})
	if err != nil {
		return keep(n, "result", err)
	}
	return publish(n, "result", r)
}

type intToFloat struct{}

func (intToFloat) Update(n *model.Node) error {
	return publish(n, "result", float64(n.Attributes().Int("in1")))
}

type floatToInt struct{}

func (floatToInt) Update(n *model.Node) error {
	a := n.Attributes()
	x := a.Float("in1")
	var r float64
	switch a.Text("method") {
	case "round":
		r = math.Round(x)
	case "floor":
		r = math.Floor(x)
	case "ceil":
		r = math.Ceil(x)
	default:
		return keep(n, "result", fmt.Errorf("invalid method %q", a.Text("method")))
	}
	if r > math.MaxInt32 || r < math.MinInt32 {
		return keep(n, "result", fmt.Errorf("%w: %v does not fit an integer", ErrDomain, x))
	}
	return publish(n, "result", int(r))
}

type intToText struct{}

func (intToText) Update(n *model.Node) error {
	return publish(n, "result", strconv.Itoa(n.Attributes().Int("in1")))
}

type floatToText struct{}

func (floatToText) Update(n *model.Node) error {
	return publish(n, "result", strconv.FormatFloat(n.Attributes().Float("in1"), 'f', 3, 64))
}
