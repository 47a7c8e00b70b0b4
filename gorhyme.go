// Package gorhyme provides a Go implementation of the Rhyme query language.
//
// Rhyme is a declarative query language in which nested object literals,
// path expressions with wildcard variables, and aggregation operators
// implicitly encode grouping, reduction and joining over JSON-like data:
//
//	{
//	  "total":      sum data.*.value,   // 60
//	  "data.*.key": sum data.*.value    // {"A": 40, "B": 20}
//	}
//
// A wildcard used in an object key becomes a grouping key; an aggregation
// below it reduces only the variables the key does not fix.
//
// # Quick Start
//
//	// Compile and evaluate in one call
//	result, err := gorhyme.Eval(ctx, "{total: sum data.*.value, data.*.key: sum data.*.value}", data)
//
//	// Build queries programmatically, compile once, evaluate many times
//	plan, err := gorhyme.Compile(gorhyme.Obj(
//	    "data.*.key", gorhyme.Div(gorhyme.Sum("data.*.value"), gorhyme.Count("data.*.value")),
//	))
//	res, _ := gorhyme.EvalPlan(ctx, plan, data1)
//	res, _ = gorhyme.EvalPlan(ctx, plan, data2)
//
//	// User-defined functions
//	result, err := gorhyme.Eval(ctx, `udf.format data.*.price`, data,
//	    gorhyme.WithUDF("format", format),
//	)
//
// # More Information
//
// For detailed documentation, see:
//   - Builder: github.com/sandrolain/gorhyme/pkg/build
//   - Parser: github.com/sandrolain/gorhyme/pkg/parser
//   - Compiler: github.com/sandrolain/gorhyme/pkg/compiler
//   - Evaluator: github.com/sandrolain/gorhyme/pkg/evaluator
//   - Types: github.com/sandrolain/gorhyme/pkg/types
package gorhyme

import (
	"context"
	"fmt"

	"github.com/sandrolain/gorhyme/pkg/build"
	"github.com/sandrolain/gorhyme/pkg/cache"
	"github.com/sandrolain/gorhyme/pkg/compiler"
	"github.com/sandrolain/gorhyme/pkg/evaluator"
	"github.com/sandrolain/gorhyme/pkg/planner"
)

// Version returns the current version of gorhyme.
func Version() string {
	return "v0.1.0-dev"
}

// plans caches the plans compiled from query text by Eval.
var plans = cache.New(cache.DefaultCapacity, 0)

// Compile compiles a query for repeated evaluation. query is rh text, a JSON
// query document ([]byte), a tree built with the builder functions, or a
// query value (maps, slices and path strings).
//
// The plan can be evaluated many times against different data. It is safe
// for concurrent use.
//
// Example:
//
//	plan, err := gorhyme.Compile("{data.*.key: sum data.*.value}")
//	if err != nil {
//	    log.Fatal(err)
//	}
func Compile(query interface{}, opts ...compiler.Option) (*planner.Plan, error) {
	return compiler.Compile(query, opts...)
}

// MustCompile is like Compile but panics if the query cannot be compiled.
// It simplifies safe initialization of global variables.
func MustCompile(query interface{}, opts ...compiler.Option) *planner.Plan {
	plan, err := Compile(query, opts...)
	if err != nil {
		panic(fmt.Sprintf("gorhyme: Compile(%v): %v", query, err))
	}
	return plan
}

// Eval is a convenience function that compiles and evaluates a query in a
// single call. Plans compiled from query text are cached.
//
// For repeated evaluations of a built query, use Compile and EvalPlan.
//
// Example:
//
//	result, err := gorhyme.Eval(ctx, "sum data.*.value", map[string]interface{}{"data": rows})
func Eval(ctx context.Context, query interface{}, data interface{}, opts ...evaluator.EvalOption) (interface{}, error) {
	plan, err := compileCached(query)
	if err != nil {
		return nil, err
	}
	res, err := EvalPlan(ctx, plan, data, opts...)
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

// EvalPlan evaluates a compiled plan.
func EvalPlan(ctx context.Context, plan *planner.Plan, data interface{}, opts ...evaluator.EvalOption) (*evaluator.Result, error) {
	return evaluator.New(opts...).Eval(ctx, plan, data)
}

// ClearCache drops the plans cached by Eval.
func ClearCache() {
	plans.Clear()
}

func compileCached(query interface{}) (*planner.Plan, error) {
	var key string
	switch q := query.(type) {
	case string:
		key = "rh:" + q
	case []byte:
		key = "json:" + string(q)
	default:
		return Compile(query)
	}
	return plans.GetOrCompile(key, func() (*planner.Plan, error) {
		return Compile(query)
	})
}

// Builder functions, see package build.
var (
	Lit   = build.Lit
	Path  = build.Path
	Obj   = build.Obj
	Arr   = build.Arr
	Sum   = build.Sum
	Count = build.Count
	Array = build.Array
	Join  = build.Join
	Plus  = build.Plus
	Div   = build.Div
	FDiv  = build.FDiv
	Merge = build.Merge
	Get   = build.Get
	Apply = build.Apply
	Rh    = build.Rh
)

// EvalOption configures an evaluation, see package evaluator.
type EvalOption = evaluator.EvalOption

// Evaluation options, see package evaluator.
var (
	WithUDF         = evaluator.WithUDF
	WithUDFs        = evaluator.WithUDFs
	WithExplain     = evaluator.WithExplain
	WithDebug       = evaluator.WithDebug
	WithLogger      = evaluator.WithLogger
	WithConcurrency = evaluator.WithConcurrency
)
