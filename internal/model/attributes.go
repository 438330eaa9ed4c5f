package model

import (
	"fmt"
	"math"
	"slices"
)

// Kind is the value kind of an attribute field. Scalar kinds double as the
// data type tags carried by sockets.
type Kind string

const (
	KindInt   Kind = "int"
	KindFloat Kind = "float"
	KindBool  Kind = "bool"
	KindText  Kind = "text"
	KindList  Kind = "list"
)

// Role tells the executor which way a field flows.
type Role string

const (
	RoleProperty Role = "property"
	RoleInput    Role = "input"
	RoleOutput   Role = "output"
)

// Field declares one attribute of a node kind.
type Field struct {
	Name        string
	DisplayName string
	Kind        Kind
	Elem        Kind // element kind when Kind is KindList
	Default     any
	Role        Role
	Choices     []string // allowed values for text fields; empty = any
}

// Schema is the ordered field list a node kind declares once.
type Schema []Field

// Attributes is the typed field bag owned by a node.
type Attributes struct {
	schema   Schema
	index    map[string]int
	values   []any
	onChange func(f Field)
}

// NewAttributes builds an attribute bag holding the schema defaults.
// It panics on a default that does not fit its field, since schemas are
// declared in code.
func NewAttributes(schema Schema) *Attributes {
	a := &Attributes{
		schema: slices.Clone(schema),
		index:  make(map[string]int, len(schema)),
		values: make([]any, len(schema)),
	}
	for i, f := range schema {
		if f.Role == "" {
			a.schema[i].Role = RoleProperty
		}
		if f.DisplayName == "" {
			a.schema[i].DisplayName = f.Name
		}
		if _, dup := a.index[f.Name]; dup {
			panic(fmt.Sprintf("attributes: duplicate field %q", f.Name))
		}
		a.index[f.Name] = i
		def := f.Default
		if def == nil {
			def = zeroOf(f.Kind)
		}
		v, err := coerce(f, def)
		if err != nil {
			panic(fmt.Sprintf("attributes: default for %q: %v", f.Name, err))
		}
		a.values[i] = v
	}
	return a
}

// Schema returns the declared fields.
func (a *Attributes) Schema() Schema {
	if a == nil {
		return nil
	}
	return a.schema
}

// Field looks up a field declaration by name.
func (a *Attributes) Field(name string) (Field, bool) {
	if a == nil {
		return Field{}, false
	}
	i, ok := a.index[name]
	if !ok {
		return Field{}, false
	}
	return a.schema[i], true
}

// Has reports whether the bag declares name.
func (a *Attributes) Has(name string) bool {
	_, ok := a.Field(name)
	return ok
}

// Get returns the current value of name.
func (a *Attributes) Get(name string) (any, bool) {
	if a == nil {
		return nil, false
	}
	i, ok := a.index[name]
	if !ok {
		return nil, false
	}
	return cloneValue(a.values[i]), true
}

func (a *Attributes) Int(name string) int {
	v, _ := a.Get(name)
	n, _ := v.(int)
	return n
}

func (a *Attributes) Float(name string) float64 {
	v, _ := a.Get(name)
	f, _ := toFloat64(v)
	return f
}

func (a *Attributes) Bool(name string) bool {
	v, _ := a.Get(name)
	b, _ := v.(bool)
	return b
}

func (a *Attributes) Text(name string) string {
	v, _ := a.Get(name)
	s, _ := v.(string)
	return s
}

// List returns a copy of a list field.
func (a *Attributes) List(name string) []any {
	v, _ := a.Get(name)
	l, _ := v.([]any)
	return l
}

// Set validates and stores a value. Changes to property and output fields
// are reported to the owning node.
func (a *Attributes) Set(name string, v any) error {
	f, changed, err := a.assign(name, v)
	if err != nil {
		return err
	}
	if changed && f.Role != RoleInput && a.onChange != nil {
		a.onChange(f)
	}
	return nil
}

// Check reports whether Set would accept v, without storing it.
func (a *Attributes) Check(name string, v any) error {
	if a == nil {
		return &AttributeError{Name: name, Reason: "no attributes declared"}
	}
	i, ok := a.index[name]
	if !ok {
		return &AttributeError{Name: name, Reason: "unknown attribute"}
	}
	if _, err := coerce(a.schema[i], v); err != nil {
		return &AttributeError{Name: name, Reason: err.Error()}
	}
	return nil
}

// assign stores a value without reporting it.
func (a *Attributes) assign(name string, v any) (Field, bool, error) {
	if a == nil {
		return Field{}, false, &AttributeError{Name: name, Reason: "no attributes declared"}
	}
	i, ok := a.index[name]
	if !ok {
		return Field{}, false, &AttributeError{Name: name, Reason: "unknown attribute"}
	}
	f := a.schema[i]
	cv, err := coerce(f, v)
	if err != nil {
		return f, false, &AttributeError{Name: name, Reason: err.Error()}
	}
	if valueEqual(a.values[i], cv) {
		return f, false, nil
	}
	a.values[i] = cv
	return f, true, nil
}

// Serialize writes every field into archive.
func (a *Attributes) Serialize(archive map[string]any) {
	if a == nil {
		return
	}
	for i, f := range a.schema {
		archive[f.Name] = cloneValue(a.values[i])
	}
}

// Deserialize reads declared fields from archive, leaving absent ones at
// their current value. Keys the schema does not declare are ignored.
func (a *Attributes) Deserialize(archive map[string]any) error {
	if a == nil {
		return nil
	}
	for _, f := range a.schema {
		raw, ok := archive[f.Name]
		if !ok {
			continue
		}
		if _, _, err := a.assign(f.Name, raw); err != nil {
			return err
		}
	}
	return nil
}

func zeroOf(k Kind) any {
	switch k {
	case KindInt:
		return 0
	case KindFloat:
		return 0.0
	case KindBool:
		return false
	case KindText:
		return ""
	case KindList:
		return []any{}
	}
	return nil
}

func coerce(f Field, v any) (any, error) {
	switch f.Kind {
	case KindList:
		items, ok := toSlice(v)
		if !ok {
			return nil, fmt.Errorf("want list, got %T", v)
		}
		out := make([]any, len(items))
		for i, it := range items {
			cv, err := coerceScalar(f.Elem, it)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = cv
		}
		return out, nil
	default:
		cv, err := coerceScalar(f.Kind, v)
		if err != nil {
			return nil, err
		}
		if s, ok := cv.(string); ok && len(f.Choices) > 0 && !slices.Contains(f.Choices, s) {
			return nil, fmt.Errorf("%q is not one of %v", s, f.Choices)
		}
		return cv, nil
	}
}

func coerceScalar(k Kind, v any) (any, error) {
	switch k {
	case KindInt:
		if n, ok := toInt(v); ok {
			return n, nil
		}
		return nil, fmt.Errorf("want int, got %T(%v)", v, v)
	case KindFloat:
		if f, ok := toFloat64(v); ok {
			return f, nil
		}
		return nil, fmt.Errorf("want float, got %T(%v)", v, v)
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("want bool, got %T(%v)", v, v)
	case KindText:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("want text, got %T(%v)", v, v)
	}
	return nil, fmt.Errorf("unsupported kind %q", k)
}

// toFloat64 coerces a numeric value to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// toInt accepts integers and integral floats (JSON numbers decode as
// float64). Values outside the int range are refused.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		if n < math.MinInt || n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case uint:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		if uint64(n) > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	}
	return 0, false
}

// floatToInt converts an integral float inside [MinInt, MaxInt]. 2^63 is
// exactly representable and one past MaxInt64, hence the open upper bound.
func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt || f >= -math.MinInt {
		return 0, false
	}
	return int(f), true
}

func toSlice(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []float64:
		out := make([]any, len(l))
		for i, x := range l {
			out[i] = x
		}
		return out, true
	case []int:
		out := make([]any, len(l))
		for i, x := range l {
			out[i] = x
		}
		return out, true
	case []string:
		out := make([]any, len(l))
		for i, x := range l {
			out[i] = x
		}
		return out, true
	case []bool:
		out := make([]any, len(l))
		for i, x := range l {
			out[i] = x
		}
		return out, true
	}
	return nil, false
}

func cloneValue(v any) any {
	if l, ok := v.([]any); ok {
		return slices.Clone(l)
	}
	return v
}

func valueEqual(a, b any) bool {
	la, aok := a.([]any)
	lb, bok := b.([]any)
	if aok || bok {
		return aok && bok && slices.Equal(la, lb)
	}
	return a == b
}
