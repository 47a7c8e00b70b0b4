package evaluator

import (
	"github.com/sandrolain/gorhyme/pkg/planner"
	"github.com/sandrolain/gorhyme/pkg/types"
)

func (r *run) evalMerge(m *planner.Merge, e *env) (interface{}, error) {
	if m.Keyed != nil {
		out := types.EmptyObject()
		err := r.evalGroup(m.Keyed, e, func(key string, v interface{}) error {
			return put(out, key, v)
		})
		if err != nil {
			return nil, err
		}
		if out.Len() == 0 {
			return nil, nil
		}
		return out, nil
	}

	left, lj, err := r.evalSide(m.Left, e)
	if err != nil {
		return nil, err
	}
	right, rj, err := r.evalSide(m.Right, e)
	if err != nil {
		return nil, err
	}

	// joined keys survive only when both sides produced them
	if lo, ok := m.Left.(*planner.Object); ok && len(lo.Joined) > 0 {
		left = dropUnmatched(left, lj, rj)
	}
	if ro, ok := m.Right.(*planner.Object); ok && len(ro.Joined) > 0 {
		right = dropUnmatched(right, rj, lj)
	}
	return deepMerge(left, right)
}

// evalSide evaluates one side of a structural merge, reporting the keys
// produced by joined entries of an object side.
func (r *run) evalSide(op planner.Op, e *env) (interface{}, map[string]bool, error) {
	if o, ok := op.(*planner.Object); ok {
		obj, joined, err := r.evalObject(o, e)
		if err != nil || obj == nil {
			return nil, joined, err
		}
		return obj, joined, nil
	}
	v, err := r.eval(op, e)
	return v, nil, err
}

func dropUnmatched(v interface{}, own, other map[string]bool) interface{} {
	obj, ok := v.(*types.Object)
	if !ok || len(own) == 0 {
		return v
	}
	var out *types.Object
	for k := range own {
		if other[k] {
			continue
		}
		if out == nil {
			out = obj.Copy()
		}
		out.Delete(k)
	}
	if out == nil {
		return v
	}
	if out.Len() == 0 {
		return nil
	}
	return out
}

// put stores v under key, deep-merging with a value already there.
func put(obj *types.Object, key string, v interface{}) error {
	if prev, ok := obj.Get(key); ok {
		merged, err := deepMerge(prev, v)
		if err != nil {
			return err
		}
		v = merged
	}
	obj.Set(key, v)
	return nil
}

// deepMerge combines two values. Undefined yields the other side, objects
// merge key by key, and anything else must be equal.
func deepMerge(a, b interface{}) (interface{}, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}
	ao, aok := asObject(a)
	bo, bok := asObject(b)
	if aok && bok {
		out := ao.Copy()
		var err error
		bo.Range(func(k string, v interface{}) bool {
			err = put(out, k, v)
			return err == nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	if types.DeepEqual(a, b) {
		return a, nil
	}
	return nil, types.Errorf(types.ErrMergeConflict, "cannot merge %s with %s", types.StringOf(a), types.StringOf(b))
}

// asObject views an object value as *types.Object.
func asObject(v interface{}) (*types.Object, bool) {
	switch x := v.(type) {
	case *types.Object:
		return x, true
	case map[string]interface{}:
		obj := types.EmptyObject()
		for _, k := range types.SortedKeys(x) {
			obj.Set(k, x[k])
		}
		return obj, true
	}
	return nil, false
}
