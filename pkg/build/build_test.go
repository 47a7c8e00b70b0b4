package build_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandrolain/gorhyme/pkg/build"
	"github.com/sandrolain/gorhyme/pkg/types"
)

func TestBuilders(t *testing.T) {
	tests := []struct {
		name string
		node *types.ASTNode
		want string
	}{
		{"path", build.Path("data.*.key"), "data.*.key"},
		{"sum", build.Sum("data.*.value"), "(sum data.*.value)"},
		{"average", build.Div(build.Sum("data.*.value"), build.Count("data.*.value")), "(div (sum data.*.value) (count data.*.value))"},
		{"fdiv", build.FDiv(build.Sum("data.*.value"), build.Sum("data.*B.value")), "(fdiv (sum data.*.value) (sum data.*B.value))"},
		{"plus literal", build.Plus(build.Sum("data.*.value"), 0), "(plus (sum data.*.value) 0)"},
		{"nested arrays", build.Arr(build.Arr("data.*.value")), "[[data.*.value]]"},
		{"join", build.Join(build.Array("data.*.value")), "(join (array data.*.value))"},
		{"literal text", build.Lit("data.*.value"), `"data.*.value"`},
		{"apply", build.Apply("udf.formatDollar", "data.*.price"), "(udf.formatDollar data.*.price)"},
		{"object", build.Obj("total", build.Sum("data.*.value"), "data.*.key", build.Sum("data.*.value")), "{total: (sum data.*.value), data.*.key: (sum data.*.value)}"},
		{"expression key", build.Obj(build.Path("data.*.key"), 1), "{data.*.key: 1}"},
		{"merge", build.Merge(build.Get(build.Obj("other.*O.country", "other.*O.region"), "data.*.country"), build.Obj("data.*.city", build.Sum("data.*.population"))),
			"(merge (get {other.*O.country: other.*O.region}).(data.*.country) {data.*.city: (sum data.*.population)})"},
		{"rh", build.Rh("array (udf.guard *B (array data3.*.sub.*B))"), "(array (udf.guard *B (array data3.*.sub.*B)))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, types.FirstError(tt.node))
			assert.Equal(t, tt.want, tt.node.String())
		})
	}
}

func TestRhSlots(t *testing.T) {
	q0 := build.Obj("data3.*A.key", build.Obj("*A", "data3.*A"))
	q1 := build.Rh("udf.guard *K (array (udf.guard *B (array $1.*K.*.sub.*B)))", q0)
	require.NoError(t, types.FirstError(q1))

	var get *types.ASTNode
	types.Walk(q1, func(n *types.ASTNode) bool {
		if n.Type == types.NodeGet {
			get = n
		}
		return true
	})
	require.NotNil(t, get)
	assert.Same(t, q0, get.Query)

	// map values are accepted as built queries
	q2 := build.Rh("$1.*K", map[string]interface{}{"data.*A.key": true})
	assert.NoError(t, types.FirstError(q2))
}

func TestDeferredErrors(t *testing.T) {
	tests := []struct {
		name string
		node *types.ASTNode
	}{
		{"malformed path", build.Sum("data..value")},
		{"odd object", build.Obj("a")},
		{"bad key type", build.Obj(1, 2)},
		{"slot is not a query", build.Rh("sum $1", "data.*.value")},
		{"missing slot", build.Rh("sum $1")},
		{"bad get key", build.Get(build.Sum("x"), "a.(")},
		{"empty apply", build.Apply("")},
		{"nested", build.Obj("x", build.Merge("a.*", build.Arr("b..c")))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := types.FirstError(tt.node)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ParseError), err.Error())
		})
	}
}
