// Package build provides the programmatic query construction API.
//
// Builders accept query values wherever a sub-query is expected: strings
// are path expressions, maps and Obj results are objects, slices are array
// literals, and *types.ASTNode values are used as they are.
//
//	q := build.Obj(
//		"total", build.Sum("data.*.value"),
//		"data.*.key", build.Sum("data.*.value"),
//	)
//
// Builders never fail. A malformed argument yields a node carrying the
// ParseError, which is reported when the query is compiled.
package build

import (
	"fmt"

	"github.com/sandrolain/gorhyme/pkg/parser"
	"github.com/sandrolain/gorhyme/pkg/types"
)

// From converts a query value into a query tree.
func From(v interface{}) *types.ASTNode {
	n, err := parser.FromValue(v)
	if err != nil {
		return types.NewBad(err)
	}
	return n
}

// Lit returns a literal. Unlike From, strings are kept as text.
func Lit(v interface{}) *types.ASTNode {
	switch x := types.Normalize(v).(type) {
	case nil, string, bool, float64:
		return types.NewLiteral(x)
	}
	return types.NewBad(types.Errorf(types.ErrBadSurface, "literal of type %T", v))
}

// Path returns the path expression p.
func Path(p string) *types.ASTNode {
	n, err := parser.ParsePath(p)
	if err != nil {
		return types.NewBad(err)
	}
	return n
}

// Obj returns an object with entries given as alternating keys and values,
// in order. String keys follow the surface key rule: keys containing a
// wildcard group by that path, "-" spreads the value into the parent, other
// keys are literal. A *types.ASTNode key is used as key expression.
func Obj(kv ...interface{}) *types.ASTNode {
	if len(kv)%2 != 0 {
		return types.NewBad(types.Errorf(types.ErrBadSurface, "object needs key/value pairs, got %d values", len(kv)))
	}
	entries := make([]types.Entry, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		var key *types.ASTNode
		switch k := kv[i].(type) {
		case string:
			n, err := parser.KeyNode(k)
			if err != nil {
				return types.NewBad(err)
			}
			key = n
		case *types.ASTNode:
			key = k
		default:
			return types.NewBad(types.Errorf(types.ErrBadSurface, "object key of type %T", kv[i]))
		}
		entries = append(entries, types.Entry{Key: key, Value: From(kv[i+1])})
	}
	return types.NewObject(entries...)
}

// Arr returns an array literal. Each element is collected like Array.
func Arr(elems ...interface{}) *types.ASTNode {
	nodes := make([]*types.ASTNode, len(elems))
	for i, e := range elems {
		nodes[i] = From(e)
	}
	return types.NewArray(nodes...)
}

// Sum adds up the numbers produced by x.
func Sum(x interface{}) *types.ASTNode { return types.NewAggregate(types.AggSum, From(x)) }

// Count counts the values produced by x.
func Count(x interface{}) *types.ASTNode { return types.NewAggregate(types.AggCount, From(x)) }

// Array collects the values produced by x in iteration order.
func Array(x interface{}) *types.ASTNode { return types.NewAggregate(types.AggArray, From(x)) }

// Join concatenates the string forms of the values produced by x.
func Join(x interface{}) *types.ASTNode { return types.NewAggregate(types.AggJoin, From(x)) }

// Plus adds a and b.
func Plus(a, b interface{}) *types.ASTNode { return types.NewOp(types.OpPlus, From(a), From(b)) }

// Div divides a by b; the quotient is truncated when both are integral.
func Div(a, b interface{}) *types.ASTNode { return types.NewOp(types.OpDiv, From(a), From(b)) }

// FDiv divides a by b in floating point.
func FDiv(a, b interface{}) *types.ASTNode { return types.NewOp(types.OpFDiv, From(a), From(b)) }

// Merge joins left and right on their shared variables.
func Merge(left, right interface{}) *types.ASTNode {
	return types.NewMerge(From(left), From(right))
}

// Get reads the result of query. Every key argument is evaluated and used
// to index into the result, so Get(q, "data.*.key") is q[data.*.key]. The
// query is referenced, not copied: using one query in several places
// evaluates it once.
func Get(query interface{}, keys ...interface{}) *types.ASTNode {
	steps := make([]types.Segment, len(keys))
	for i, k := range keys {
		steps[i] = types.Dyn(From(k))
	}
	return types.NewGet(From(query), steps...)
}

// Apply calls the function fn, e.g. "udf.format", with the values of args.
func Apply(fn string, args ...interface{}) *types.ASTNode {
	if fn == "" {
		return types.NewBad(types.Errorf(types.ErrBadOperator, "apply needs a function name"))
	}
	nodes := make([]*types.ASTNode, len(args))
	for i, a := range args {
		nodes[i] = From(a)
	}
	return types.NewApply(fn, nodes...)
}

// Rh parses template text. The placeholders $1..$n refer to args, which must
// be built queries (nodes or object values).
//
//	q1 := build.Rh("udf.guard *K (array (udf.guard *B (array $1.*K.*.sub.*B)))", q0)
func Rh(template string, args ...interface{}) *types.ASTNode {
	slots := make([]*types.ASTNode, len(args))
	for i, a := range args {
		switch a.(type) {
		case *types.ASTNode, map[string]interface{}, *types.Object:
			slots[i] = From(a)
		default:
			return types.NewBad(types.Errorf(types.ErrBadSlot, "slot $%d is %s, not a built query", i+1, describe(a)))
		}
	}
	q, err := parser.Parse(template, parser.WithSlots(slots...))
	if err != nil {
		return types.NewBad(err)
	}
	return q.AST()
}

func describe(v interface{}) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("a %T", v)
}
