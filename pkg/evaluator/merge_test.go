package evaluator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandrolain/gorhyme/pkg/types"
)

func TestDeepMerge(t *testing.T) {
	tests := []struct {
		name string
		a, b interface{}
		want interface{}
	}{
		{"undefined left", nil, 1.0, 1.0},
		{"undefined right", "x", nil, "x"},
		{"equal scalars", 2.0, 2.0, 2.0},
		{"equal arrays", []interface{}{1.0}, []interface{}{1.0}, []interface{}{1.0}},
		{"disjoint objects", types.ObjectOf("a", 1.0), types.ObjectOf("b", 2.0), map[string]interface{}{"a": 1.0, "b": 2.0}},
		{"nested objects", types.ObjectOf("x", types.ObjectOf("a", 1.0)), map[string]interface{}{"x": map[string]interface{}{"b": 2.0}},
			map[string]interface{}{"x": map[string]interface{}{"a": 1.0, "b": 2.0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := deepMerge(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, types.ToPlain(got))
		})
	}
}

func TestDeepMergeConflicts(t *testing.T) {
	tests := []struct {
		name string
		a, b interface{}
	}{
		{"numbers", 1.0, 2.0},
		{"number and string", 1.0, "1"},
		{"object and scalar", types.ObjectOf("a", 1.0), 1.0},
		{"nested", types.ObjectOf("a", 1.0), types.ObjectOf("a", 2.0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := deepMerge(tt.a, tt.b)
			var qe *types.Error
			require.ErrorAs(t, err, &qe)
			assert.Equal(t, types.ErrMergeConflict, qe.Code)
			assert.True(t, errors.Is(err, types.MergeConflictError))
		})
	}
}

func TestDeepMergeKeepsInputs(t *testing.T) {
	left := types.ObjectOf("a", 1.0)
	right := types.ObjectOf("b", 2.0)
	_, err := deepMerge(left, right)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, left.Keys())
	assert.Equal(t, []string{"b"}, right.Keys())
}

func TestDropUnmatched(t *testing.T) {
	obj := types.ObjectOf("a", 1.0, "b", 2.0, "c", 3.0)
	got := dropUnmatched(obj, map[string]bool{"a": true, "b": true}, map[string]bool{"b": true})
	assert.Equal(t, []string{"b", "c"}, got.(*types.Object).Keys())
	assert.Equal(t, 3, obj.Len())

	assert.Same(t, obj, dropUnmatched(obj, nil, nil))
	assert.Nil(t, dropUnmatched(types.ObjectOf("a", 1.0), map[string]bool{"a": true}, nil))
}

func TestProjectionKey(t *testing.T) {
	ids := types.NewVarSet(0, 1)
	a := projectionKey(binding{0: 1.0, 1: "x"}, ids)
	b := projectionKey(binding{0: "1", 1: "x"}, ids)
	c := projectionKey(binding{0: 1.0, 1: "x", 2: "ignored"}, ids)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, c)
}

func TestAccumulator(t *testing.T) {
	sum := newAccumulator(types.AggSum)
	require.NoError(t, sum.add(1.0))
	require.NoError(t, sum.add(nil))
	require.NoError(t, sum.add(2.5))
	assert.Equal(t, 3.5, sum.result())
	assert.Error(t, sum.add("x"))

	count := newAccumulator(types.AggCount)
	assert.Equal(t, 0.0, count.result())
	require.NoError(t, count.add(nil))
	assert.Equal(t, 0.0, count.result())
	require.NoError(t, count.add("x"))
	assert.Equal(t, 1.0, count.result())

	array := newAccumulator(types.AggArray)
	assert.Nil(t, array.result())

	join := newAccumulator(types.AggJoin)
	v, err := join.pack([]interface{}{1.0, 2.0})
	require.NoError(t, err)
	assert.Equal(t, "1,2", v)
}

func TestEnvWithout(t *testing.T) {
	e := &env{vals: binding{0: 1.0, 1: "a"}}
	assert.Same(t, e, e.without(types.NewVarSet(5)))
	out := e.without(types.NewVarSet(0))
	assert.Equal(t, types.NewVarSet(1), out.bound())
	assert.Equal(t, types.NewVarSet(0, 1), e.bound())
}
