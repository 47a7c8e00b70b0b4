package parser

import (
	"strings"

	"github.com/sandrolain/gorhyme/pkg/types"
)

// KeyNode converts an object key given as string. Keys containing a
// wildcard are path expressions and act as grouping keys; any other key,
// including the spread key "-", is a literal.
func KeyNode(key string) (*types.ASTNode, error) {
	if key == types.SpreadKey || !strings.Contains(key, "*") {
		return types.NewLiteral(key), nil
	}
	return ParsePath(key)
}

// FromValue converts a query value into a query tree.
//
// Strings are path expressions. Objects become object nodes whose keys follow
// KeyNode; *types.Object keeps its key order, map[string]interface{} is read
// in sorted key order. Slices become array literals. An object with a single
// key starting with "$" is an operator:
//
//	{"$sum": "data.*.value"}
//	{"$div": [{"$sum": "data.*.value"}, {"$count": "data.*.value"}]}
//	{"$get": [query, "data.*.key"]}
//	{"$apply": ["udf.format", "data.*.price"]}
//	{"$rh": "sum data.*.value"}
func FromValue(v interface{}, opts ...CompileOption) (*types.ASTNode, error) {
	switch x := v.(type) {
	case *types.ASTNode:
		if x == nil {
			return nil, types.Errorf(types.ErrBadSurface, "nil query node")
		}
		return x, nil
	case string:
		return ParsePath(x, opts...)
	case nil, bool, float64:
		return types.NewLiteral(x), nil
	case []interface{}:
		elems := make([]*types.ASTNode, len(x))
		for i, e := range x {
			n, err := FromValue(e, opts...)
			if err != nil {
				return nil, err
			}
			elems[i] = n
		}
		return types.NewArray(elems...), nil
	case *types.Object:
		if x.Len() == 1 {
			k := x.Keys()[0]
			if strings.HasPrefix(k, "$") {
				arg, _ := x.Get(k)
				return fromOperator(k[1:], arg, opts)
			}
		}
		var entries []types.Entry
		var err error
		x.Range(func(k string, e interface{}) bool {
			var entry types.Entry
			entry, err = fromEntry(k, e, opts)
			entries = append(entries, entry)
			return err == nil
		})
		if err != nil {
			return nil, err
		}
		return types.NewObject(entries...), nil
	case map[string]interface{}:
		keys := types.SortedKeys(x)
		if len(keys) == 1 && strings.HasPrefix(keys[0], "$") {
			return fromOperator(keys[0][1:], x[keys[0]], opts)
		}
		entries := make([]types.Entry, 0, len(keys))
		for _, k := range keys {
			entry, err := fromEntry(k, x[k], opts)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
		return types.NewObject(entries...), nil
	}

	switch n := types.Normalize(v).(type) {
	case float64:
		return types.NewLiteral(n), nil
	case []interface{}, map[string]interface{}, *types.Object:
		return FromValue(n, opts...)
	}
	return nil, types.Errorf(types.ErrBadSurface, "unsupported query value of type %T", v)
}

func fromEntry(k string, v interface{}, opts []CompileOption) (types.Entry, error) {
	key, err := KeyNode(k)
	if err != nil {
		return types.Entry{}, err
	}
	value, err := FromValue(v, opts...)
	if err != nil {
		return types.Entry{}, err
	}
	return types.Entry{Key: key, Value: value}, nil
}

func fromOperator(op string, arg interface{}, opts []CompileOption) (*types.ASTNode, error) {
	if op == "rh" {
		text, ok := arg.(string)
		if !ok {
			return nil, types.Errorf(types.ErrBadSurface, "$rh expects template text")
		}
		q, err := Parse(text, opts...)
		if err != nil {
			return nil, err
		}
		return q.AST(), nil
	}

	var raw []interface{}
	if list, ok := arg.([]interface{}); ok {
		raw = list
	} else {
		raw = []interface{}{arg}
	}

	if op == "apply" {
		if len(raw) == 0 {
			return nil, types.Errorf(types.ErrBadOperator, "$apply expects a function name")
		}
		fn, ok := raw[0].(string)
		if !ok {
			return nil, types.Errorf(types.ErrBadOperator, "$apply expects a function name")
		}
		args, err := fromValues(raw[1:], opts)
		if err != nil {
			return nil, err
		}
		return types.NewApply(fn, args...), nil
	}

	if _, ok := builtins[op]; !ok {
		return nil, types.Errorf(types.ErrBadOperator, "unknown operator $%s", op)
	}
	args, err := fromValues(raw, opts)
	if err != nil {
		return nil, err
	}
	p := &Parser{}
	return p.makeCall(op, args, -1)
}

func fromValues(raw []interface{}, opts []CompileOption) ([]*types.ASTNode, error) {
	out := make([]*types.ASTNode, len(raw))
	for i, r := range raw {
		n, err := FromValue(r, opts...)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// ParseJSON parses a JSON query document.
func ParseJSON(data []byte, opts ...CompileOption) (*types.ASTNode, error) {
	v, err := types.DecodeJSON(data)
	if err != nil {
		return nil, types.Errorf(types.ErrBadSurface, "invalid query document").WithCause(err)
	}
	return FromValue(v, opts...)
}
