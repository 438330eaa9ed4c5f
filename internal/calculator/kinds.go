package calculator

import (
	"github.com/gyaneshwarpardhi/nodegraph/internal/model"
	"github.com/gyaneshwarpardhi/nodegraph/internal/registry"
)

// Node categories shown by the view layer.
const (
	CategoryInput     = "input"
	CategoryOutput    = "output"
	CategoryOperator  = "operator"
	CategoryConverter = "converter"
)

type kind struct {
	template model.Template
	category string
	behavior func() model.Behavior
}

func valueField(k model.Kind, role model.Role) model.Field {
	return model.Field{Name: "value", DisplayName: "Value", Kind: k, Role: role}
}

func in(name string, k model.Kind) model.Field {
	return model.Field{Name: name, DisplayName: name, Kind: k, Role: model.RoleInput}
}

func out(name string, k model.Kind) model.Field {
	return model.Field{Name: name, DisplayName: name, Kind: k, Role: model.RoleOutput}
}

func stateless(b model.Behavior) func() model.Behavior {
	return func() model.Behavior { return b }
}

var kinds = []kind{
	// Inputs
	{
		template: model.Template{TypeName: "integer_input", Name: "Integer Input",
			Schema: model.Schema{valueField(model.KindInt, model.RoleOutput)}},
		category: CategoryInput,
		behavior: stateless(source{}),
	},
	{
		template: model.Template{TypeName: "float_input", Name: "Float Input",
			Schema: model.Schema{valueField(model.KindFloat, model.RoleOutput)}},
		category: CategoryInput,
		behavior: stateless(source{}),
	},
	{
		template: model.Template{TypeName: "text_input", Name: "Text Input",
			Schema: model.Schema{valueField(model.KindText, model.RoleOutput)}},
		category: CategoryInput,
		behavior: stateless(source{}),
	},
	{
		template: model.Template{TypeName: "ramp_generator", Name: "Ramp Generator",
			Schema: model.Schema{
				{Name: "is_running", DisplayName: "Is Running", Kind: model.KindBool},
				{Name: "interval", DisplayName: "Interval", Kind: model.KindInt, Default: 100},
				{Name: "min_value", DisplayName: "Min Value", Kind: model.KindInt, Default: 0},
				{Name: "max_value", DisplayName: "Max Value", Kind: model.KindInt, Default: 10},
				valueField(model.KindInt, model.RoleOutput),
			}},
		category: CategoryInput,
		behavior: func() model.Behavior { return &Ramp{} },
	},

	// Outputs
	{
		template: model.Template{TypeName: "integer_output", Name: "Integer Output",
			Schema: model.Schema{valueField(model.KindInt, model.RoleInput)}},
		category: CategoryOutput,
		behavior: stateless(sink{}),
	},
	{
		template: model.Template{TypeName: "float_output", Name: "Float Output",
			Schema: model.Schema{valueField(model.KindFloat, model.RoleInput)}},
		category: CategoryOutput,
		behavior: stateless(sink{}),
	},
	{
		template: model.Template{TypeName: "text_output", Name: "Text Output",
			Schema: model.Schema{valueField(model.KindText, model.RoleInput)}},
		category: CategoryOutput,
		behavior: stateless(sink{}),
	},
	{
		template: model.Template{TypeName: "graph_output", Name: "Graph Output",
			Schema: model.Schema{
				{Name: "values", DisplayName: "Values", Kind: model.KindList, Elem: model.KindFloat},
				{Name: "max_entries", DisplayName: "Max Entries", Kind: model.KindInt, Default: 50},
			},
			Inputs: []model.SocketSpec{{Name: "value", DataType: string(model.KindFloat), Degree: 1}},
		},
		category: CategoryOutput,
		behavior: stateless(graphOutput{}),
	},

	// Operators
	{
		template: model.Template{TypeName: "unary_operator", Name: "Unary Operator",
			Schema: model.Schema{
				{Name: "operator", DisplayName: "Operator", Kind: model.KindText, Default: "deg2rad",
					Choices: []string{"deg2rad", "rad2deg", "sin", "cos", "log10"}},
				in("in1", model.KindFloat),
				out("result", model.KindFloat),
			}},
		category: CategoryOperator,
		behavior: stateless(unaryOperator{}),
	},
	{
		template: model.Template{TypeName: "binary_operator", Name: "Binary Operator",
			Schema: model.Schema{
				{Name: "operator", DisplayName: "Operator", Kind: model.KindText, Default: "add",
					Choices: []string{"add", "sub", "mul", "div"}},
				in("in1", model.KindFloat),
				in("in2", model.KindFloat),
				out("result", model.KindFloat),
			}},
		category: CategoryOperator,
		behavior: stateless(binaryOperator{}),
	},
	{
		template: model.Template{TypeName: "formula", Name: "Formula",
			Schema: model.Schema{
				{Name: "expression", DisplayName: "Expression", Kind: model.KindText, Default: "a + b"},
				in("a", model.KindFloat),
				in("b", model.KindFloat),
				out("result", model.KindFloat),
			}},
		category: CategoryOperator,
		behavior: func() model.Behavior { return &Formula{} },
	},

	// Converters
	{
		template: model.Template{TypeName: "int_to_float", Name: "Integer to Float",
			Schema: model.Schema{in("in1", model.KindInt), out("result", model.KindFloat)}},
		category: CategoryConverter,
		behavior: stateless(intToFloat{}),
	},
	{
		template: model.Template{TypeName: "float_to_int", Name: "Float to Integer",
			Schema: model.Schema{
				{Name: "method", DisplayName: "Method", Kind: model.KindText, Default: "round",
					Choices: []string{"round", "floor", "ceil"}},
				in("in1", model.KindFloat),
				out("result", model.KindInt),
			}},
		category: CategoryConverter,
		behavior: stateless(floatToInt{}),
	},
	{
		template: model.Template{TypeName: "int_to_text", Name: "Integer to Text",
			Schema: model.Schema{in("in1", model.KindInt), out("result", model.KindText)}},
		category: CategoryConverter,
		behavior: stateless(intToText{}),
	},
	{
		template: model.Template{TypeName: "float_to_text", Name: "Float to Text",
			Schema: model.Schema{in("in1", model.KindFloat), out("result", model.KindText)}},
		category: CategoryConverter,
		behavior: stateless(floatToText{}),
	},
}

// Register adds every calculator node kind and the default edge kind to reg.
func Register(reg *registry.Registry) {
	for _, k := range kinds {
		reg.RegisterNode(registry.NodeType{
			Name:     k.template.TypeName,
			Title:    k.template.Name,
			Category: k.category,
			New:      func() *model.Node { return k.template.Instantiate(k.behavior()) },
		})
	}
	reg.RegisterEdge(registry.EdgeType{
		Name:  registry.DefaultEdgeType,
		Title: "Connection",
		New:   func() *model.Edge { return model.NewEdge(registry.DefaultEdgeType, nil) },
	})
}
