package formula

import (
	"fmt"
	"math"
	"strings"
)

// Scope provides variable values for evaluation.
type Scope interface {
	Resolve(path []string) (any, bool)
}

// Vars is a flat Scope keyed by the first path element.
type Vars map[string]any

func (v Vars) Resolve(path []string) (any, bool) {
	if len(path) != 1 {
		return nil, false
	}
	val, ok := v[path[0]]
	return val, ok
}

type builtin struct {
	arity int
	fn    func(args []float64) (float64, error)
}

var builtins = map[string]builtin{
	"abs":   {1, func(a []float64) (float64, error) { return math.Abs(a[0]), nil }},
	"sqrt":  {1, domain("sqrt", math.Sqrt, func(x float64) bool { return x >= 0 })},
	"sin":   {1, func(a []float64) (float64, error) { return math.Sin(a[0]), nil }},
	"cos":   {1, func(a []float64) (float64, error) { return math.Cos(a[0]), nil }},
	"log10": {1, domain("log10", math.Log10, func(x float64) bool { return x > 0 })},
	"floor": {1, func(a []float64) (float64, error) { return math.Floor(a[0]), nil }},
	"ceil":  {1, func(a []float64) (float64, error) { return math.Ceil(a[0]), nil }},
	"round": {1, func(a []float64) (float64, error) { return math.Round(a[0]), nil }},
	"min":   {2, func(a []float64) (float64, error) { return math.Min(a[0], a[1]), nil }},
	"max":   {2, func(a []float64) (float64, error) { return math.Max(a[0], a[1]), nil }},
	"pow":   {2, func(a []float64) (float64, error) { return math.Pow(a[0], a[1]), nil }},
}

func domain(name string, f func(float64) float64, ok func(float64) bool) func([]float64) (float64, error) {
	return func(a []float64) (float64, error) {
		if !ok(a[0]) {
			return 0, fmt.Errorf("%s: argument %v out of domain", name, a[0])
		}
		return f(a[0]), nil
	}
}

// Eval walks the AST and returns a float64, bool or string.
func Eval(expr Expr, scope Scope) (any, error) {
	switch e := expr.(type) {
	case *LiteralExpr:
		return e.Value, nil
	case *VarExpr:
		val, ok := scope.Resolve(e.Path)
		if !ok {
			return nil, fmt.Errorf("variable %q not found", strings.Join(e.Path, "."))
		}
		if f, ok := toFloat64(val); ok {
			return f, nil
		}
		return val, nil
	case *NegExpr:
		f, err := evalNumber(e.Expr, scope)
		if err != nil {
			return nil, err
		}
		return -f, nil
	case *ArithExpr:
		return evalArith(e, scope)
	case *CallExpr:
		return evalCall(e, scope)
	case *ComparisonExpr:
		left, err := Eval(e.Left, scope)
		if err != nil {
			return nil, err
		}
		right, err := Eval(e.Right, scope)
		if err != nil {
			return nil, err
		}
		return compare(e.Op, left, right)
	case *NotExpr:
		v, err := Evaluate(e.Expr, scope)
		if err != nil {
			return nil, err
		}
		return !v, nil
	case *LogicalExpr:
		return evalLogical(e, scope)
	default:
		return nil, fmt.Errorf("unknown expr type %T", expr)
	}
}

// Evaluate evaluates expr and requires a boolean result.
func Evaluate(expr Expr, scope Scope) (bool, error) {
	v, err := Eval(expr, scope)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expected boolean result, got %T", v)
	}
	return b, nil
}

// EvalFloat evaluates expr and requires a numeric result. Booleans map to
// 1 and 0.
func EvalFloat(expr Expr, scope Scope) (float64, error) {
	v, err := Eval(expr, scope)
	if err != nil {
		return 0, err
	}
	if b, ok := v.(bool); ok {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	f, ok := toFloat64(v)
	if !ok {
		return 0, fmt.Errorf("expected numeric result, got %T", v)
	}
	return f, nil
}

func evalNumber(expr Expr, scope Scope) (float64, error) {
	v, err := Eval(expr, scope)
	if err != nil {
		return 0, err
	}
	f, ok := toFloat64(v)
	if !ok {
		return 0, fmt.Errorf("operand %v is not numeric", v)
	}
	return f, nil
}

func evalArith(e *ArithExpr, scope Scope) (any, error) {
	left, err := Eval(e.Left, scope)
	if err != nil {
		return nil, err
	}
	right, err := Eval(e.Right, scope)
	if err != nil {
		return nil, err
	}
	// + concatenates text.
	if e.Op == '+' {
		ls, lok := left.(string)
		rs, rok := right.(string)
		if lok && rok {
			return ls + rs, nil
		}
	}
	lf, lok := toFloat64(left)
	rf, rok := toFloat64(right)
	if !lok || !rok {
		return nil, fmt.Errorf("operator %c requires numeric operands, got %T and %T", e.Op, left, right)
	}
	switch e.Op {
	case '+':
		return lf + rf, nil
	case '-':
		return lf - rf, nil
	case '*':
		return lf * rf, nil
	case '/':
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return lf / rf, nil
	case '%':
		if rf == 0 {
			return nil, fmt.Errorf("modulo by zero")
		}
		return math.Mod(lf, rf), nil
	}
	return nil, fmt.Errorf("unknown operator %c", e.Op)
}

func evalCall(e *CallExpr, scope Scope) (any, error) {
	b, ok := builtins[e.Name]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", e.Name)
	}
	args := make([]float64, len(e.Args))
	for i, a := range e.Args {
		f, err := evalNumber(a, scope)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name, err)
		}
		args[i] = f
	}
	return b.fn(args)
}

func evalLogical(e *LogicalExpr, scope Scope) (any, error) {
	left, err := Evaluate(e.Left, scope)
	if err != nil {
		return nil, err
	}
	switch strings.ToUpper(e.Op) {
	case "AND":
		if !left {
			return false, nil // short-circuit
		}
		return Evaluate(e.Right, scope)
	case "OR":
		if left {
			return true, nil // short-circuit
		}
		return Evaluate(e.Right, scope)
	default:
		return nil, fmt.Errorf("unknown logical op %q", e.Op)
	}
}
