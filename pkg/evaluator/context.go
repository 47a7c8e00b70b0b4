package evaluator

import (
	"fmt"

	"github.com/sandrolain/gorhyme/pkg/planner"
	"github.com/sandrolain/gorhyme/pkg/types"
)

// binding maps variables to their values: array positions as float64,
// object keys as strings.
type binding map[types.VarID]interface{}

// constraint restricts enumerations below a grouping entry to the bindings
// for which key evaluates to kv.
type constraint struct {
	key  planner.Op
	kv   string
	deps types.VarSet
	// constraints in force where the key was evaluated
	outer []*constraint
}

// env is the evaluation environment of one scope. Environments are never
// modified once shared; the with/without/constrain helpers copy.
type env struct {
	scope *planner.Scope
	vals  binding
	cons  []*constraint
}

func newEnv(scope *planner.Scope) *env {
	return &env{scope: scope, vals: binding{}}
}

// bound returns the bound variables.
func (e *env) bound() types.VarSet {
	ids := make([]types.VarID, 0, len(e.vals))
	for id := range e.vals {
		ids = append(ids, id)
	}
	return types.NewVarSet(ids...)
}

// lookup returns the value of a variable.
func (e *env) lookup(id types.VarID) (interface{}, bool) {
	v, ok := e.vals[id]
	return v, ok
}

// with returns an environment that also binds b.
func (e *env) with(b binding) *env {
	vals := make(binding, len(e.vals)+len(b))
	for k, v := range e.vals {
		vals[k] = v
	}
	for k, v := range b {
		vals[k] = v
	}
	return &env{scope: e.scope, vals: vals, cons: e.cons}
}

// without returns an environment in which vars are unbound.
func (e *env) without(vars types.VarSet) *env {
	if !e.bound().Overlaps(vars) {
		return e
	}
	vals := make(binding, len(e.vals))
	for k, v := range e.vals {
		if !vars.Has(k) {
			vals[k] = v
		}
	}
	return &env{scope: e.scope, vals: vals, cons: e.cons}
}

// constrain returns an environment with the additional constraint c.
func (e *env) constrain(c *constraint) *env {
	cons := make([]*constraint, len(e.cons)+1)
	copy(cons, e.cons)
	cons[len(e.cons)] = c
	return &env{scope: e.scope, vals: e.vals, cons: cons}
}

// String returns a string representation of the environment.
func (e *env) String() string {
	return fmt.Sprintf("env{scope=%d, bound=%s, constraints=%d}", e.scope.ID, e.bound(), len(e.cons))
}
