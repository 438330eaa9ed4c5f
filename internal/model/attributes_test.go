package model_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/nodegraph/internal/model"
)

var testSchema = model.Schema{
	{Name: "count", DisplayName: "Count", Kind: model.KindInt, Default: 3},
	{Name: "ratio", Kind: model.KindFloat, Default: 0.5},
	{Name: "enabled", Kind: model.KindBool},
	{Name: "op", Kind: model.KindText, Default: "add", Choices: []string{"add", "sub"}},
	{Name: "history", Kind: model.KindList, Elem: model.KindFloat},
}

func TestAttributes_Defaults(t *testing.T) {
	a := model.NewAttributes(testSchema)

	assert.Equal(t, 3, a.Int("count"))
	assert.Equal(t, 0.5, a.Float("ratio"))
	assert.False(t, a.Bool("enabled"))
	assert.Equal(t, "add", a.Text("op"))
	assert.Empty(t, a.List("history"))

	f, ok := a.Field("ratio")
	require.True(t, ok)
	assert.Equal(t, "ratio", f.DisplayName, "display name falls back to the field name")
	assert.Equal(t, model.RoleProperty, f.Role)
}

func TestAttributes_Set(t *testing.T) {
	cases := []struct {
		name    string
		field   string
		value   any
		want    any
		wantErr bool
	}{
		{name: "int from int", field: "count", value: 7, want: 7},
		{name: "int from integral float", field: "count", value: float64(8), want: 8},
		{name: "int from fraction", field: "count", value: 1.5, wantErr: true},
		{name: "int from text", field: "count", value: "1", wantErr: true},
		{name: "int from huge float", field: "count", value: 1e300, wantErr: true},
		{name: "int from huge negative float", field: "count", value: -1e300, wantErr: true},
		{name: "int from 2^63", field: "count", value: float64(1 << 63), wantErr: true},
		{name: "int from int64 keeps precision", field: "count", value: int64(1<<53 + 1), want: 1<<53 + 1},
		{name: "int from uint64 overflow", field: "count", value: uint64(math.MaxUint64), wantErr: true},
		{name: "int from small uint64", field: "count", value: uint64(9), want: 9},
		{name: "float from int", field: "ratio", value: 2, want: 2.0},
		{name: "bool", field: "enabled", value: true, want: true},
		{name: "choice ok", field: "op", value: "sub", want: "sub"},
		{name: "choice rejected", field: "op", value: "mul", wantErr: true},
		{name: "list from floats", field: "history", value: []float64{1, 2}, want: []any{1.0, 2.0}},
		{name: "list from mixed numbers", field: "history", value: []any{1, 2.5}, want: []any{1.0, 2.5}},
		{name: "list bad item", field: "history", value: []any{"x"}, wantErr: true},
		{name: "unknown field", field: "nope", value: 1, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := model.NewAttributes(testSchema)
			err := a.Set(tc.field, tc.value)
			if tc.wantErr {
				var attrErr *model.AttributeError
				require.ErrorAs(t, err, &attrErr)
				return
			}
			require.NoError(t, err)
			got, ok := a.Get(tc.field)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAttributes_RejectedSetKeepsValue(t *testing.T) {
	a := model.NewAttributes(testSchema)
	require.Error(t, a.Set("op", "mul"))
	assert.Equal(t, "add", a.Text("op"))
}

func TestAttributes_ListIsCopied(t *testing.T) {
	a := model.NewAttributes(testSchema)
	require.NoError(t, a.Set("history", []float64{1}))
	l := a.List("history")
	l[0] = 99.0
	assert.Equal(t, []any{1.0}, a.List("history"))
}

func TestAttributes_SerializeRoundTrip(t *testing.T) {
	a := model.NewAttributes(testSchema)
	require.NoError(t, a.Set("count", 11))
	require.NoError(t, a.Set("enabled", true))
	require.NoError(t, a.Set("history", []float64{0.25, 4}))

	archive := map[string]any{}
	a.Serialize(archive)
	assert.Len(t, archive, len(testSchema))

	// JSON-style numbers and an unknown key
	archive["count"] = float64(11)
	archive["extra"] = "ignored"

	b := model.NewAttributes(testSchema)
	require.NoError(t, b.Deserialize(archive))
	for _, f := range testSchema {
		av, _ := a.Get(f.Name)
		bv, _ := b.Get(f.Name)
		assert.Equal(t, av, bv, f.Name)
	}
}

func TestAttributes_DeserializeBadKind(t *testing.T) {
	b := model.NewAttributes(testSchema)
	err := b.Deserialize(map[string]any{"enabled": "yes"})
	var attrErr *model.AttributeError
	require.ErrorAs(t, err, &attrErr)
	assert.Equal(t, "enabled", attrErr.Name)
}

func TestAttributes_BadDefaultPanics(t *testing.T) {
	assert.Panics(t, func() {
		model.NewAttributes(model.Schema{{Name: "x", Kind: model.KindInt, Default: "zero"}})
	})
	assert.Panics(t, func() {
		model.NewAttributes(model.Schema{{Name: "x", Kind: model.KindInt}, {Name: "x", Kind: model.KindInt}})
	})
}
