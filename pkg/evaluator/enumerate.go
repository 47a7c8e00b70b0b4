package evaluator

import (
	"strings"

	"github.com/sandrolain/gorhyme/pkg/planner"
	"github.com/sandrolain/gorhyme/pkg/types"
)

// check is a condition on a binding, tested once every variable of needed
// is bound.
type check struct {
	needed types.VarSet
	gen    *planner.Generator
	con    *constraint
}

// level binds one variable by iterating the keys of its source generator.
type level struct {
	v      types.VarID
	src    *planner.Generator
	checks []check
}

// enumerate returns the distinct bindings of target that are consistent
// with every generator and constraint in force, in input order.
//
// Variables not in target that constrain it (generator dependencies and
// constraint keys) are enumerated too and projected away.
func (r *run) enumerate(e *env, target types.VarSet) ([]binding, error) {
	bound := e.bound()
	want := target.Minus(bound)
	if want.Empty() {
		return []binding{{}}, nil
	}

	w := r.closure(e, bound, want)
	levels, err := r.schedule(e, bound, w)
	if err != nil {
		return nil, err
	}

	cur := e.with(nil)
	seen := make(map[string]bool)
	var out []binding
	var visit func(i int) error
	visit = func(i int) error {
		if err := r.checkContext(); err != nil {
			return err
		}
		if i == len(levels) {
			key := projectionKey(cur.vals, want)
			if seen[key] {
				return nil
			}
			seen[key] = true
			b := make(binding, len(want))
			for _, id := range want {
				b[id] = cur.vals[id]
			}
			out = append(out, b)
			return nil
		}
		lv := levels[i]
		prefix, err := r.prefixValue(lv.src, cur)
		if err != nil {
			return err
		}
		for _, k := range types.Keys(prefix) {
			cur.vals[lv.v] = k
			ok, err := r.passes(lv.checks, cur)
			if err != nil {
				return err
			}
			if ok {
				if err := visit(i + 1); err != nil {
					return err
				}
			}
		}
		delete(cur.vals, lv.v)
		return nil
	}
	if err := visit(0); err != nil {
		return nil, err
	}
	return out, nil
}

// closure extends want with every unbound variable that restricts it.
func (r *run) closure(e *env, bound, want types.VarSet) types.VarSet {
	w := want
	for {
		next := w
		for _, id := range w {
			for _, g := range e.scope.ByVar[id] {
				next = next.Union(g.Deps.Minus(bound))
			}
		}
		for _, id := range bound {
			for _, g := range e.scope.ByVar[id] {
				if g.Deps.Overlaps(next) {
					next = next.Union(g.Deps.Minus(bound))
				}
			}
		}
		for _, c := range e.cons {
			if c.deps.Overlaps(next) {
				next = next.Union(c.deps.Minus(bound))
			}
		}
		if next.Equal(w) {
			return w
		}
		w = next
	}
}

// schedule orders the variables of w and attaches every check to the level
// binding its last variable.
func (r *run) schedule(e *env, bound, w types.VarSet) ([]level, error) {
	var levels []level
	assigned := bound
	pos := make(map[types.VarID]int)
	for len(levels) < len(w) {
		found := false
		for _, id := range w {
			if assigned.Has(id) {
				continue
			}
			for _, g := range e.scope.ByVar[id] {
				if g.Deps.SubsetOf(assigned) {
					pos[id] = len(levels)
					levels = append(levels, level{v: id, src: g})
					assigned = assigned.Add(id)
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			rest := w.Minus(assigned)
			return nil, types.Errorf(types.ErrUnboundVariable, "variables %s cannot be enumerated", r.plan.Format(rest))
		}
	}

	all := bound.Union(w)
	attach := func(c check) {
		if !c.needed.SubsetOf(all) || !c.needed.Overlaps(w) {
			return
		}
		last := -1
		for _, id := range c.needed {
			if p, ok := pos[id]; ok && p > last {
				last = p
			}
		}
		if c.gen != nil && levels[last].src == c.gen {
			return
		}
		levels[last].checks = append(levels[last].checks, c)
	}
	for _, g := range e.scope.Generators {
		attach(check{needed: g.Deps.Add(g.Var), gen: g})
	}
	for _, c := range e.cons {
		attach(check{needed: c.deps, con: c})
	}
	return levels, nil
}

// prefixValue evaluates the path a generator iterates.
func (r *run) prefixValue(g *planner.Generator, e *env) (interface{}, error) {
	base := r.data
	if g.Base >= 0 {
		v, err := r.scopeResult(g.Base)
		if err != nil {
			return nil, err
		}
		base = v
	}
	return r.walk(base, g.Prefix, e)
}

// passes tests the checks against the current binding.
func (r *run) passes(checks []check, e *env) (bool, error) {
	for _, c := range checks {
		if c.gen != nil {
			prefix, err := r.prefixValue(c.gen, e)
			if err != nil {
				return false, err
			}
			v, _ := e.lookup(c.gen.Var)
			if types.Index(prefix, v) == nil {
				return false, nil
			}
			continue
		}
		k, err := r.eval(c.con.key, &env{scope: e.scope, vals: e.vals, cons: c.con.outer})
		if err != nil {
			return false, err
		}
		if k == nil || types.KeyString(k) != c.con.kv {
			return false, nil
		}
	}
	return true, nil
}

// projectionKey identifies a binding restricted to ids. Values carry their
// type so that position 1 and key "1" stay distinct.
func projectionKey(vals binding, ids types.VarSet) string {
	var b strings.Builder
	for _, id := range ids {
		switch v := vals[id].(type) {
		case float64:
			b.WriteByte('n')
			b.WriteString(types.FormatNumber(v))
		case string:
			b.WriteByte('s')
			b.WriteString(v)
		}
		b.WriteByte(0)
	}
	return b.String()
}
