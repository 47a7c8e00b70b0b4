package evaluator

import (
	"context"
	"fmt"

	"github.com/sandrolain/gorhyme/pkg/functions"
	"github.com/sandrolain/gorhyme/pkg/planner"
	"github.com/sandrolain/gorhyme/pkg/types"
)

// run holds the state of one evaluation.
type run struct {
	ctx  context.Context
	plan *planner.Plan
	data interface{}
	udfs functions.Table

	// scope results, computed at most once per evaluation
	results map[int]interface{}
	active  map[int]bool

	trace *Explain
	steps int
}

func (r *run) tracef(format string, args ...interface{}) {
	if r.trace != nil {
		r.trace.Trace = append(r.trace.Trace, fmt.Sprintf(format, args...))
	}
}

// checkContext reports cancellation, checking the context every few hundred
// steps.
func (r *run) checkContext() error {
	r.steps++
	if r.steps&255 != 0 {
		return nil
	}
	return r.ctx.Err()
}

// scopeResult returns the value of a scope's query.
func (r *run) scopeResult(id int) (interface{}, error) {
	if v, ok := r.results[id]; ok {
		return v, nil
	}
	if r.active[id] {
		return nil, types.Errorf(types.ErrCyclicVariable, "query %d references itself", id)
	}
	r.active[id] = true
	defer delete(r.active, id)

	scope := r.plan.Scopes[id]
	v, err := r.evalRoot(scope)
	if err != nil {
		return nil, err
	}
	r.results[id] = v
	return v, nil
}

// evalRoot evaluates the root of a scope, materializing its free variables
// as nested objects keyed by their values.
func (r *run) evalRoot(scope *planner.Scope) (interface{}, error) {
	root := scope.Root
	e := newEnv(scope)
	if root.Free.Empty() {
		return r.eval(root.Body, e)
	}

	bindings, err := r.enumerate(e, root.Free)
	if err != nil {
		return nil, err
	}
	r.tracef("root for %s: %d bindings", r.plan.Format(root.Free), len(bindings))

	var out *types.Object
	for _, b := range bindings {
		v, err := r.eval(root.Body, e.with(b))
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		if out == nil {
			out = types.EmptyObject()
		}
		// nest by the free variables in order
		obj := out
		for i, id := range root.Free {
			key := types.KeyString(b[id])
			if i == len(root.Free)-1 {
				if err := put(obj, key, v); err != nil {
					return nil, err
				}
				break
			}
			next, ok := obj.Get(key)
			child, isObj := next.(*types.Object)
			if !ok || !isObj {
				child = types.EmptyObject()
				obj.Set(key, child)
			}
			obj = child
		}
	}
	if out == nil {
		return nil, nil
	}
	return out, nil
}

// eval evaluates an operation. A nil result means undefined.
func (r *run) eval(op planner.Op, e *env) (interface{}, error) {
	switch o := op.(type) {
	case *planner.Const:
		return o.Value, nil

	case *planner.Scan:
		return r.walk(r.data, o.Steps, e)

	case *planner.Get:
		base, err := r.scopeResult(o.Scope)
		if err != nil {
			return nil, err
		}
		return r.walk(base, o.Steps, e)

	case *planner.Arith:
		left, err := r.eval(o.Left, e)
		if err != nil {
			return nil, err
		}
		right, err := r.eval(o.Right, e)
		if err != nil {
			return nil, err
		}
		return functions.Arith(o.Kind, left, right)

	case *planner.Call:
		args := make([]interface{}, len(o.Args))
		for i, a := range o.Args {
			v, err := r.eval(a, e)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return r.udfs.Invoke(r.ctx, o.Func, args)

	case *planner.Reduce:
		return r.evalReduce(o, e)

	case *planner.Concat:
		return r.evalConcat(o, e)

	case *planner.Object:
		obj, _, err := r.evalObject(o, e)
		if err != nil || obj == nil {
			return nil, err
		}
		return obj, nil

	case *planner.Merge:
		return r.evalMerge(o, e)
	}
	return nil, fmt.Errorf("unsupported plan operation %T", op)
}

// walk follows steps from base. Variable steps read their bound value,
// computed steps evaluate their expression.
func (r *run) walk(base interface{}, steps []planner.Step, e *env) (interface{}, error) {
	cur := base
	for _, s := range steps {
		if cur == nil {
			return nil, nil
		}
		switch s.Kind {
		case types.SegField:
			cur = types.Index(cur, s.Name)
		case types.SegVar:
			v, ok := e.lookup(s.Var)
			if !ok {
				return nil, nil
			}
			cur = types.Index(cur, v)
		case types.SegExpr:
			k, err := r.eval(s.Expr, e)
			if err != nil {
				return nil, err
			}
			if k == nil {
				return nil, nil
			}
			cur = types.Index(cur, k)
		}
	}
	return cur, nil
}

func (r *run) evalReduce(o *planner.Reduce, e *env) (interface{}, error) {
	acc := newAccumulator(o.Kind)
	if o.NoOp {
		x, err := r.eval(o.Operand, e)
		if err != nil {
			return nil, err
		}
		return acc.pack(x)
	}

	inner := e.without(o.Reduced)
	bindings, err := r.enumerate(inner, o.Reduced)
	if err != nil {
		return nil, err
	}
	r.tracef("%s over %s: %d bindings", o.Kind, r.plan.Format(o.Reduced), len(bindings))

	for _, b := range bindings {
		x, err := r.eval(o.Operand, inner.with(b))
		if err != nil {
			return nil, err
		}
		if err := acc.add(x); err != nil {
			return nil, err
		}
	}
	return acc.result(), nil
}

func (r *run) evalConcat(o *planner.Concat, e *env) (interface{}, error) {
	if len(o.Elems) == 0 {
		return []interface{}{}, nil
	}
	var out []interface{}
	for _, elem := range o.Elems {
		v, err := r.eval(elem, e)
		if err != nil {
			return nil, err
		}
		if items, ok := v.([]interface{}); ok {
			if out == nil {
				out = []interface{}{}
			}
			out = append(out, items...)
		}
	}
	if out == nil {
		return nil, nil
	}
	return out, nil
}

// evalObject evaluates an object. It returns nil when no entry produced a
// value, and the keys produced by joined entries.
func (r *run) evalObject(o *planner.Object, e *env) (*types.Object, map[string]bool, error) {
	if len(o.Entries) == 0 {
		return types.EmptyObject(), nil, nil
	}
	out := types.EmptyObject()
	var joinedKeys map[string]bool
	for i, g := range o.Entries {
		joined := i < len(o.Joined) && o.Joined[i]
		err := r.evalGroup(g, e, func(key string, v interface{}) error {
			if joined {
				if joinedKeys == nil {
					joinedKeys = make(map[string]bool)
				}
				joinedKeys[key] = true
			}
			return put(out, key, v)
		})
		if err != nil {
			return nil, nil, err
		}
	}
	if out.Len() == 0 {
		return nil, joinedKeys, nil
	}
	return out, joinedKeys, nil
}

// evalGroup evaluates one object entry and emits its key/value pairs.
func (r *run) evalGroup(g *planner.Group, e *env, emit func(key string, v interface{}) error) error {
	if !g.Grouping() {
		if g.Spread {
			v, err := r.eval(g.Value, e)
			if err != nil || v == nil {
				return err
			}
			return spread(v, emit)
		}
		k, err := r.eval(g.Key, e)
		if err != nil || k == nil {
			return err
		}
		key, err := types.GroupKey(k)
		if err != nil {
			return err
		}
		v, err := r.eval(g.Value, e)
		if err != nil || v == nil {
			return err
		}
		return emit(key, v)
	}

	inner := e.without(g.KeyVars)
	bindings, err := r.enumerate(inner, g.KeyVars)
	if err != nil {
		return err
	}

	// distinct keys in first-seen order
	var order []string
	groups := make(map[string][]binding)
	for _, b := range bindings {
		k, err := r.eval(g.Key, inner.with(b))
		if err != nil {
			return err
		}
		if k == nil {
			continue
		}
		kv, err := types.GroupKey(k)
		if err != nil {
			return err
		}
		if _, ok := groups[kv]; !ok {
			order = append(order, kv)
		}
		groups[kv] = append(groups[kv], b)
	}
	r.tracef("group by %s: %d bindings, %d keys", r.plan.Format(g.KeyVars), len(bindings), len(order))

	for _, kv := range order {
		ce := inner.constrain(&constraint{key: g.Key, kv: kv, deps: g.KeyDeps, outer: inner.cons})
		var v interface{}
		if !g.PerBinding {
			v, err = r.eval(g.Value, ce)
			if err != nil {
				return err
			}
		} else {
			for _, b := range groups[kv] {
				x, err := r.eval(g.Value, ce.with(b))
				if err != nil {
					return err
				}
				if v, err = deepMerge(v, x); err != nil {
					return err
				}
			}
		}
		if v == nil {
			continue
		}
		if err := emit(kv, v); err != nil {
			return err
		}
	}
	return nil
}

func spread(v interface{}, emit func(key string, v interface{}) error) error {
	obj, ok := asObject(v)
	if !ok {
		return types.Errorf(types.ErrInvalidSpread, "the \"-\" entry must produce an object, got %s", describeValue(v))
	}
	var err error
	obj.Range(func(k string, x interface{}) bool {
		err = emit(k, x)
		return err == nil
	})
	return err
}

func describeValue(v interface{}) string {
	switch v.(type) {
	case string:
		return "a string"
	case float64:
		return "a number"
	case bool:
		return "a boolean"
	case []interface{}:
		return "an array"
	}
	return fmt.Sprintf("%T", v)
}
