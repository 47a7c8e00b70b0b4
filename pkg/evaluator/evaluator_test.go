package evaluator_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandrolain/gorhyme/pkg/build"
	"github.com/sandrolain/gorhyme/pkg/compiler"
	"github.com/sandrolain/gorhyme/pkg/evaluator"
	"github.com/sandrolain/gorhyme/pkg/functions"
	"github.com/sandrolain/gorhyme/pkg/types"
)

const (
	dataJSON = `[
		{"key": "A", "value": 10},
		{"key": "B", "value": 20},
		{"key": "A", "value": 30}
	]`
	countryJSON = `[
		{"region": "Asia", "country": "Japan", "city": "Tokyo", "population": 30},
		{"region": "Asia", "country": "China", "city": "Beijing", "population": 20},
		{"region": "Europe", "country": "France", "city": "Paris", "population": 10},
		{"region": "Europe", "country": "UK", "city": "London", "population": 10}
	]`
	regionJSON = `[
		{"region": "Asia", "country": "Japan"},
		{"region": "Asia", "country": "China"},
		{"region": "Europe", "country": "France"},
		{"region": "Europe", "country": "UK"}
	]`
	data3JSON = `[
		{"key": "A", "sub": [110, 120]},
		{"key": "A", "sub": [330]},
		{"key": "B", "sub": [200]}
	]`
)

// Helper functions

func decode(t *testing.T, s string) interface{} {
	t.Helper()
	v, err := types.DecodeJSON([]byte(s))
	require.NoError(t, err)
	return v
}

func evalRaw(t *testing.T, query interface{}, data interface{}, opts ...evaluator.EvalOption) *evaluator.Result {
	t.Helper()
	plan, err := compiler.Compile(query)
	require.NoError(t, err)
	res, err := evaluator.New().Eval(context.Background(), plan, data, opts...)
	require.NoError(t, err)
	return res
}

func evalPlain(t *testing.T, query interface{}, data interface{}, opts ...evaluator.EvalOption) interface{} {
	t.Helper()
	return types.ToPlain(evalRaw(t, query, data, opts...).Value)
}

func evalErr(t *testing.T, query interface{}, data interface{}, opts ...evaluator.EvalOption) error {
	t.Helper()
	plan, err := compiler.Compile(query)
	require.NoError(t, err)
	res, err := evaluator.New().Eval(context.Background(), plan, data, opts...)
	require.Error(t, err)
	assert.Nil(t, res)
	return err
}

func guard(_ context.Context, args ...interface{}) (interface{}, error) {
	if len(args) < 2 {
		return nil, nil
	}
	return args[1], nil
}

type m = map[string]interface{}
type a = []interface{}

func TestAggregates(t *testing.T) {
	data := m{"data": decode(t, dataJSON)}
	tests := []struct {
		name  string
		query interface{}
		want  interface{}
	}{
		{"plain sum", build.Sum("data.*.value"), 60.0},
		{"plain average", build.Div(build.Sum("data.*.value"), build.Count("data.*.value")), 20.0},
		{"uncorrelated average", build.Div(build.Sum("data.*A.value"), build.Count("data.*B.value")), 20.0},
		{"count", "count data.*.key", 3.0},
		{"array", "array data.*.value", a{10.0, 20.0, 30.0}},
		{"join", "join data.*.key", "ABA"},
		{"sum of sum", build.Sum(build.Sum("data.*.value")), 60.0},
		{"plus", "sum data.*.value + 1", 61.0},
		{"integral div truncates", "div (sum data.*.value) 7", 8.0},
		{"fdiv", "fdiv (sum data.*.value) 8", 7.5},
		{"nothing to reduce", "sum data.*.missing", nil},
		{"count of nothing", "count data.*.missing", 0.0},
		{"count of nothing per key", "{data.*.key: count data.*.missing}", m{"A": 0.0, "B": 0.0}},
		{"literal", "42", 42.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evalPlain(t, tt.query, data))
		})
	}
}

func TestArrays(t *testing.T) {
	data := m{"data": decode(t, dataJSON)}
	query := build.Obj(
		"query1", build.Array(build.Array("data.*.value")),
		"query2", build.Array(build.Sum("data.*.value")),
		"query2A", build.Array(build.Obj("v", build.Sum("data.*.value"))),
		"query3", build.Join(build.Array("data.*.value")),
		"query4", build.Sum(build.Sum("data.*.value")),
	)
	want := m{
		"query1":  a{a{10.0, 20.0, 30.0}},
		"query2":  a{60.0},
		"query2A": a{m{"v": 60.0}},
		"query3":  "10,20,30",
		"query4":  60.0,
	}
	assert.Equal(t, want, evalPlain(t, query, data))

	// nested array literals
	got := evalPlain(t, m{"total": build.Sum(build.Sum("data.*.value")), "all": a{a{"data.*.value"}}}, data)
	assert.Equal(t, m{"total": 60.0, "all": a{a{10.0, 20.0, 30.0}}}, got)

	assert.Equal(t, a{}, evalPlain(t, "[]", data))
	assert.Nil(t, evalPlain(t, "[data.*.missing]", data))
}

func TestGroupBy(t *testing.T) {
	data := m{"data": decode(t, dataJSON)}
	avg := func(p string) interface{} { return build.Div(build.Sum(p), build.Count(p)) }
	tests := []struct {
		name  string
		query interface{}
		want  interface{}
	}{
		{"sum", build.Obj("total", build.Sum("data.*.value"), "data.*.key", build.Sum("data.*.value")), m{"total": 60.0, "A": 40.0, "B": 20.0}},
		{"average", build.Obj("total", build.Sum("data.*.value"), "data.*.key", avg("data.*.value")), m{"total": 60.0, "A": 20.0, "B": 20.0}},
		{"plus zero", build.Obj("total", build.Sum("data.*.value"), "data.*.key", build.Plus(build.Sum("data.*.value"), 0)), m{"total": 60.0, "A": 40.0, "B": 20.0}},
		{"double sum", build.Obj("total", build.Sum(build.Sum("data.*.value")), "data.*.key", build.Sum(build.Sum("data.*.value"))), m{"total": 60.0, "A": 40.0, "B": 20.0}},
		{"nested arrays", build.Obj("total", build.Sum(build.Sum("data.*.value")), "data.*.key", a{a{"data.*.value"}}), m{"total": 60.0, "A": a{a{10.0, 30.0}}, "B": a{a{20.0}}}},
		{"count per key", "{data.*.key: count data.*.value}", m{"A": 2.0, "B": 1.0}},
		{"array per key", "{data.*.key: array data.*.value}", m{"A": a{10.0, 30.0}, "B": a{20.0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evalPlain(t, tt.query, data))
		})
	}
}

func TestGroupByRelativeSum(t *testing.T) {
	data := m{"data": decode(t, dataJSON)}
	query := build.Obj(
		"total", build.Sum("data.*.value"),
		"data.*.key", build.FDiv(build.Sum("data.*.value"), build.Sum("data.*B.value")),
	)
	got, ok := evalPlain(t, query, data).(m)
	require.True(t, ok)
	assert.Equal(t, 60.0, got["total"])
	assert.InDelta(t, 0.6666666666666666, got["A"], 1e-12)
	assert.InDelta(t, 0.3333333333333333, got["B"], 1e-12)
}

func TestNestedGroups(t *testing.T) {
	data := m{"data": decode(t, countryJSON)}
	query := build.Obj(
		"total", build.Sum("data.*.population"),
		"data.*.region", build.Obj(
			"total", build.Sum("data.*.population"),
			"data.*.city", build.Sum("data.*.population"),
		),
	)
	res := evalRaw(t, query, data)
	want := m{
		"total":  70.0,
		"Asia":   m{"total": 50.0, "Tokyo": 30.0, "Beijing": 20.0},
		"Europe": m{"total": 20.0, "Paris": 10.0, "London": 10.0},
	}
	assert.Equal(t, want, types.ToPlain(res.Value))

	// keys follow first appearance
	obj, ok := res.Value.(*types.Object)
	require.True(t, ok)
	assert.Equal(t, []string{"total", "Asia", "Europe"}, obj.Keys())
	asia, _ := obj.Get("Asia")
	assert.Equal(t, []string{"total", "Tokyo", "Beijing"}, asia.(*types.Object).Keys())
}

func TestJoins(t *testing.T) {
	data := m{"data": decode(t, countryJSON), "other": decode(t, regionJSON)}
	q1 := build.Obj("other.*O.country", "other.*O.region")

	t.Run("simple", func(t *testing.T) {
		query := build.Obj("-", build.Merge(build.Get(q1, "data.*.country"), build.Obj(
			"data.*.city", build.Sum("data.*.population"),
		)))
		want := m{
			"Asia":   m{"Tokyo": 30.0, "Beijing": 20.0},
			"Europe": m{"Paris": 10.0, "London": 10.0},
		}
		assert.Equal(t, want, evalPlain(t, query, data))
	})

	t.Run("with aggregates", func(t *testing.T) {
		query := build.Obj(
			"total", build.Sum("data.*.population"),
			"-", build.Merge(build.Get(q1, "data.*.country"), build.Obj(
				"total", build.Sum("data.*.population"),
				"data.*.city", build.Sum("data.*.population"),
			)),
		)
		want := m{
			"total":  70.0,
			"Asia":   m{"total": 50.0, "Tokyo": 30.0, "Beijing": 20.0},
			"Europe": m{"total": 20.0, "Paris": 10.0, "London": 10.0},
		}
		assert.Equal(t, want, evalPlain(t, query, data))
	})

	t.Run("structural", func(t *testing.T) {
		d := m{
			"left":  decode(t, `[{"v": 1}, {"v": 2}]`),
			"right": decode(t, `[{"w": 10}]`),
		}
		query := build.Merge(
			build.Obj("*K", build.Obj("a", "left.*K.v")),
			build.Obj("*K", build.Obj("b", "right.*K.w")),
		)
		assert.Equal(t, m{"0": m{"a": 1.0, "b": 10.0}}, evalPlain(t, query, d))
	})

	t.Run("get sub-queries merge like their trees", func(t *testing.T) {
		regions := build.Obj("other.*O.country", build.Obj("region", "other.*O.region"))
		pops := build.Obj("data.*D.country", build.Obj("pop", build.Sum("data.*D.population")))
		want := m{
			"Japan":  m{"region": "Asia", "pop": 30.0},
			"China":  m{"region": "Asia", "pop": 20.0},
			"France": m{"region": "Europe", "pop": 10.0},
			"UK":     m{"region": "Europe", "pop": 10.0},
		}
		assert.Equal(t, want, evalPlain(t, build.Merge(regions, pops), data))
		assert.Equal(t, want, evalPlain(t, build.Merge(build.Get(regions), build.Get(pops)), data))
		assert.Equal(t, want, evalPlain(t, build.Merge(build.Get(regions), pops), data))

		// a get reaching an object through its steps
		nested := build.Obj("byCountry", regions)
		assert.Equal(t, want, evalPlain(t, build.Merge(build.Get(nested, build.Lit("byCountry")), build.Get(pops)), data))
	})

	t.Run("merge of a merge", func(t *testing.T) {
		left := build.Merge(build.Obj("x", build.Sum("data.*.population")), build.Obj("y", build.Count("data.*.city")))
		query := build.Merge(build.Get(left), build.Obj("z", build.Array("other.*.region")))
		assert.Equal(t, m{
			"x": 70.0,
			"y": 4.0,
			"z": a{"Asia", "Asia", "Europe", "Europe"},
		}, evalPlain(t, query, data))
	})

	t.Run("disjoint objects", func(t *testing.T) {
		d := m{"data": decode(t, dataJSON)}
		query := "merge {x: sum data.*.value} {y: count data.*.value}"
		assert.Equal(t, m{"x": 60.0, "y": 3.0}, evalPlain(t, query, d))
	})
}

func TestGetQueries(t *testing.T) {
	data := m{"data": decode(t, `[
		{"key1": "A", "key2": "x", "value": 10},
		{"key1": "A", "key2": "y", "value": 30},
		{"key1": "B", "key2": "x", "value": 20}
	]`)}
	total := build.Sum("data.*A.value")
	totalPerKey1 := build.Obj("data.*A.key1", build.Sum("data.*A.value"))
	query := build.Obj(
		"total", build.Get(total),
		"data.*.key1", build.Obj(
			"totalProportion", build.FDiv(build.Get(totalPerKey1, "data.*.key1"), build.Get(total)),
			"data.*.key2", build.FDiv(build.Sum("data.*.value"), build.Get(totalPerKey1, "data.*.key1")),
		),
	)
	got, ok := evalPlain(t, query, data).(m)
	require.True(t, ok)
	assert.Equal(t, 60.0, got["total"])

	groupA, ok := got["A"].(m)
	require.True(t, ok)
	assert.InDelta(t, 40.0/60.0, groupA["totalProportion"], 1e-12)
	assert.Equal(t, 0.25, groupA["x"])
	assert.Equal(t, 0.75, groupA["y"])

	groupB, ok := got["B"].(m)
	require.True(t, ok)
	assert.InDelta(t, 20.0/60.0, groupB["totalProportion"], 1e-12)
	assert.Equal(t, 1.0, groupB["x"])
}

func TestUDF(t *testing.T) {
	formatDollar := func(_ context.Context, args ...interface{}) (interface{}, error) {
		return fmt.Sprintf("$%s.00", types.StringOf(args[0])), nil
	}
	data := decode(t, `[{"item": "iPhone", "price": 1200}, {"item": "Galaxy", "price": 800}]`)
	query := a{m{
		"item":  "data.*.item",
		"price": build.Apply("udf.formatDollar", "data.*.price"),
	}}
	want := a{
		m{"item": "iPhone", "price": "$1200.00"},
		m{"item": "Galaxy", "price": "$800.00"},
	}

	t.Run("udf in data context", func(t *testing.T) {
		got := evalPlain(t, query, m{"data": data, "udf": m{"formatDollar": formatDollar}})
		assert.Equal(t, want, got)
	})

	t.Run("udf option", func(t *testing.T) {
		got := evalPlain(t, query, m{"data": data}, evaluator.WithUDF("formatDollar", formatDollar))
		assert.Equal(t, want, got)
	})

	t.Run("udf table", func(t *testing.T) {
		got := evalPlain(t, query, m{"data": data}, evaluator.WithUDFs(functions.Table{"formatDollar": formatDollar}))
		assert.Equal(t, want, got)
	})
}

func TestNestedGroupWithGuards(t *testing.T) {
	data := m{"data3": decode(t, data3JSON)}
	udfs := evaluator.WithUDF("guard", guard)
	want := m{
		"A": a{a{110.0, 330.0}, a{120.0}},
		"B": a{a{200.0}},
	}

	t.Run("grouped", func(t *testing.T) {
		query := build.Obj("data3.*.key", build.Obj(
			"items", build.Rh("array (udf.guard *B (array data3.*.sub.*B))"),
		))
		got := evalPlain(t, query, data, udfs)
		assert.Equal(t, m{
			"A": m{"items": a{a{110.0, 330.0}, a{120.0}}},
			"B": m{"items": a{a{200.0}}},
		}, got)
	})

	t.Run("encoding 1", func(t *testing.T) {
		q0 := build.Obj("data3.*A.key", build.Obj("*A", "data3.*A"))
		query := build.Rh("udf.guard *K (array (udf.guard *B (array $1.*K.*.sub.*B)))", q0)
		assert.Equal(t, want, evalPlain(t, query, data, udfs))
	})

	t.Run("encoding 2", func(t *testing.T) {
		q0 := build.Obj("data3.*A.key", build.Obj("*A", true))
		query := build.Rh("udf.guard *K (array (udf.guard *B (array (udf.guard $1.*K.*C data3.*C.sub.*B))))", q0)
		assert.Equal(t, want, evalPlain(t, query, data, udfs))
	})

	t.Run("encoding 3", func(t *testing.T) {
		q0 := build.Obj("data3.*A.key", build.Obj("*A", true))
		query := build.Obj("data3.*C.key", build.Rh("array (udf.guard *B (array (udf.guard $1.(data3.*C.key).*C data3.*C.sub.*B)))", q0))
		assert.Equal(t, want, evalPlain(t, query, data, udfs))
	})
}

func TestFreeVariables(t *testing.T) {
	data := m{"data": decode(t, dataJSON), "data3": decode(t, data3JSON)}

	assert.Equal(t, m{"0": 10.0, "1": 20.0, "2": 30.0}, evalPlain(t, "data.*K.value", data))
	assert.Equal(t, m{
		"0": m{"0": 110.0, "1": 120.0},
		"1": m{"0": 330.0},
		"2": m{"0": 200.0},
	}, evalPlain(t, "data3.*A.sub.*B", data))
	assert.Nil(t, evalPlain(t, "missing.*K.value", data))
}

func TestSpread(t *testing.T) {
	data := m{"data": decode(t, dataJSON)}
	query := build.Obj("-", build.Obj("data.*.key", build.Sum("data.*.value")), "total", build.Sum("data.*.value"))
	res := evalRaw(t, query, data)
	obj, ok := res.Value.(*types.Object)
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B", "total"}, obj.Keys())
}

func TestObjects(t *testing.T) {
	data := m{"data": decode(t, dataJSON)}
	assert.Equal(t, m{}, evalPlain(t, "{}", data))
	assert.Nil(t, evalPlain(t, "{x: sum data.*.missing}", data))
	assert.Equal(t, m{"x": 1.0}, evalPlain(t, "{x: 1, y: sum data.*.missing}", data))
	// a value identical for every binding merges without conflict
	assert.Equal(t, m{"A": "A", "B": "B"}, evalPlain(t, "{data.*.key: data.*.key}", data))
}

func TestEvalErrors(t *testing.T) {
	data := m{"data": decode(t, dataJSON)}
	tests := []struct {
		name  string
		query interface{}
		code  types.ErrorCode
		class types.ErrorClass
	}{
		{"sum over strings", "sum data.*.key", types.ErrNonNumeric, types.TypeError},
		{"division by zero", "div (sum data.*.value) 0", types.ErrDivisionByZero, types.TypeError},
		{"spread of a number", build.Obj("-", "data.0.value"), types.ErrInvalidSpread, types.TypeError},
		{"missing function", "udf.nope data.*.value", types.ErrUndefinedFunction, types.UdfInvocationError},
		{"conflicting values", "{data.*.key: data.*.value}", types.ErrMergeConflict, types.MergeConflictError},
		{"object as key", "{(data.0): sum data.*.value}", types.ErrNonScalarKey, types.TypeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := evalErr(t, tt.query, data)
			var qe *types.Error
			require.ErrorAs(t, err, &qe)
			assert.Equal(t, tt.code, qe.Code, qe.Error())
			assert.True(t, errors.Is(err, tt.class))
		})
	}
}

func TestNonScalarMergeKey(t *testing.T) {
	data := m{"data": decode(t, dataJSON)}
	wrap := func(_ context.Context, args ...interface{}) (interface{}, error) {
		return types.ObjectOf("key", args[0]), nil
	}
	err := evalErr(t, "merge (udf.wrap data.*.key) (sum data.*.value)", data, evaluator.WithUDF("wrap", wrap))
	var qe *types.Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, types.ErrNonScalarKey, qe.Code)
	assert.True(t, errors.Is(err, types.TypeError))
}

func TestUDFFailure(t *testing.T) {
	data := m{"data": decode(t, dataJSON)}
	cause := errors.New("boom")
	fail := func(context.Context, ...interface{}) (interface{}, error) { return nil, cause }

	err := evalErr(t, "array (udf.fail data.*.value)", data, evaluator.WithUDF("fail", fail))
	assert.True(t, errors.Is(err, types.UdfInvocationError))
	assert.True(t, errors.Is(err, cause))
}

func TestExplain(t *testing.T) {
	data := m{"data": decode(t, dataJSON)}
	query := build.Obj("total", build.Sum("data.*.value"), "data.*.key", build.Sum("data.*.value"))

	res := evalRaw(t, query, data, evaluator.WithExplain(true))
	require.NotNil(t, res.Explain)
	assert.NotEqual(t, uuid.Nil, res.Explain.ID)
	assert.Contains(t, res.Explain.Plan, "group by [data.*]")
	assert.Contains(t, res.Explain.Trace, "sum over [data.*]: 3 bindings")
	assert.Contains(t, res.Explain.Trace, "group by [data.*]: 3 bindings, 2 keys")

	// each evaluation owns its artifact
	again := evalRaw(t, query, data, evaluator.WithExplain(true))
	assert.NotEqual(t, res.Explain.ID, again.Explain.ID)

	plain := evalRaw(t, query, data)
	assert.Nil(t, plain.Explain)
}

func TestEvalMany(t *testing.T) {
	plan, err := compiler.Compile("sum data.*.value")
	require.NoError(t, err)

	docs := make([]interface{}, 20)
	for i := range docs {
		docs[i] = m{"data": a{m{"value": i}, m{"value": 1}}}
	}
	ev := evaluator.New(evaluator.WithConcurrency(4))
	results, err := ev.EvalMany(context.Background(), plan, docs)
	require.NoError(t, err)
	require.Len(t, results, len(docs))
	for i, res := range results {
		assert.Equal(t, float64(i+1), res.Value)
	}

	docs[7] = m{"data": a{m{"value": "x"}}}
	_, err = ev.EvalMany(context.Background(), plan, docs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document 7")
}

func TestEvalStream(t *testing.T) {
	plan, err := compiler.Compile("{data.*.key: sum data.*.value}")
	require.NoError(t, err)

	input := `{"data": [{"key": "A", "value": 1}, {"key": "A", "value": 2}]}
{"data": [{"key": "B", "value": "x"}]}
{"data": [{"key": "C", "value": 5}]}
not json`
	ch, err := evaluator.New().EvalStream(context.Background(), plan, strings.NewReader(input))
	require.NoError(t, err)

	var results []evaluator.StreamResult
	for r := range ch {
		results = append(results, r)
	}
	require.Len(t, results, 4)
	assert.Equal(t, m{"A": 3.0}, types.ToPlain(results[0].Value))
	assert.True(t, errors.Is(results[1].Err, types.TypeError))
	assert.Equal(t, m{"C": 5.0}, types.ToPlain(results[2].Value))
	assert.Error(t, results[3].Err)
}

func TestEvalStreamStopsAfterCancel(t *testing.T) {
	plan, err := compiler.Compile("sum data.*.value")
	require.NoError(t, err)

	input := strings.Repeat(`{"data": [{"value": 1}]}`+"\n", 500)
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := evaluator.New().EvalStream(ctx, plan, strings.NewReader(input))
	require.NoError(t, err)

	first := <-ch
	require.NoError(t, first.Err)
	assert.Equal(t, 1.0, first.Value)
	cancel()

	// the producer stops once the consumer cancels, so the channel closes
	// well before all documents were evaluated
	done := make(chan int)
	go func() {
		n := 0
		for range ch {
			n++
		}
		done <- n
	}()
	select {
	case n := <-done:
		assert.Less(t, n, 499)
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed after cancel")
	}
}

func TestCancellation(t *testing.T) {
	plan, err := compiler.Compile("sum data.*.value")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = evaluator.New().Eval(ctx, plan, m{"data": decode(t, dataJSON)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDebugLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	plan, err := compiler.Compile("sum data.*.value")
	require.NoError(t, err)

	ev := evaluator.New(evaluator.WithDebug(true), evaluator.WithLogger(logger))
	_, err = ev.Eval(context.Background(), plan, m{"data": decode(t, dataJSON)})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "evaluated")
}

func TestPlanReuse(t *testing.T) {
	plan, err := compiler.Compile("{data.*.key: sum data.*.value}")
	require.NoError(t, err)
	ev := evaluator.New()
	first, err := ev.Eval(context.Background(), plan, m{"data": decode(t, dataJSON)})
	require.NoError(t, err)
	second, err := ev.Eval(context.Background(), plan, m{"data": decode(t, dataJSON)})
	require.NoError(t, err)
	assert.Equal(t, types.ToPlain(first.Value), types.ToPlain(second.Value))
}
