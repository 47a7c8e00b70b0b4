// Package resolver assigns identities to the wildcard variables of a query.
//
// Correlation rules, per query scope:
//   - named variables (*K) with the same name are the same variable
//   - anonymous variables (*) are the same variable when they follow the same
//     path prefix, so data.*.key and data.*.value range over one dimension,
//     while data.*.items.* introduces a second one
//   - every query referenced through get is a scope of its own; variables
//     never correlate across scopes
//
// Every variable occurrence that follows a non-empty prefix is a generator:
// the variable ranges over the keys of the prefix value. A variable occurring
// in several paths has several generators, all of which must hold, which is
// how shared variables join paths.
package resolver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sandrolain/gorhyme/pkg/types"
)

// NoVar marks path steps that are not variables.
const NoVar types.VarID = -1

// Var describes a resolved variable.
type Var struct {
	ID    types.VarID
	Name  string // empty for anonymous variables
	Scope int
	Label string // display form, e.g. *K or data.*
}

// Generator states that Var ranges over the keys of the value of
// Node.Steps[:Index], based on the data context for paths and on the
// referenced query result for get nodes.
type Generator struct {
	Var   types.VarID
	Node  *types.ASTNode
	Index int
	Deps  types.VarSet // variables needed to evaluate the prefix
}

// Scope holds the variables and generators of one query.
type Scope struct {
	ID         int
	Root       *types.ASTNode
	Vars       types.VarSet
	Generators []*Generator
	ByVar      map[types.VarID][]*Generator
}

// Resolution is the result of resolving a query and the queries it references.
type Resolution struct {
	Vars   []*Var   // indexed by VarID
	Scopes []*Scope // Scopes[0] is the root query

	scopeOf map[*types.ASTNode]*Scope
	steps   map[*types.ASTNode][]types.VarID
	active  map[*types.ASTNode]bool
}

// ScopeOf returns the scope of a query root.
func (r *Resolution) ScopeOf(query *types.ASTNode) *Scope {
	return r.scopeOf[query]
}

// StepVars returns the variable of every step of a path or get node, NoVar
// for steps that are not variables.
func (r *Resolution) StepVars(n *types.ASTNode) []types.VarID {
	return r.steps[n]
}

// Var returns the variable with the given id.
func (r *Resolution) Var(id types.VarID) *Var {
	return r.Vars[id]
}

// Label returns the display name of a variable.
func (r *Resolution) Label(id types.VarID) string {
	if id < 0 || int(id) >= len(r.Vars) {
		return "?"
	}
	return r.Vars[id].Label
}

// Format renders a variable set with labels.
func (r *Resolution) Format(s types.VarSet) string {
	return s.Format(r.Label)
}

// Resolve resolves the variables of root and of all queries it references.
func Resolve(root *types.ASTNode) (*Resolution, error) {
	r := &Resolution{
		scopeOf: make(map[*types.ASTNode]*Scope),
		steps:   make(map[*types.ASTNode][]types.VarID),
		active:  make(map[*types.ASTNode]bool),
	}
	if _, err := r.resolveScope(root); err != nil {
		return nil, err
	}
	return r, nil
}

type scopeState struct {
	scope *Scope
	named map[string]types.VarID
	anon  map[string]types.VarID
}

func (r *Resolution) resolveScope(q *types.ASTNode) (*Scope, error) {
	if s, ok := r.scopeOf[q]; ok {
		if r.active[q] {
			return nil, types.Errorf(types.ErrCyclicVariable, "query references itself through get")
		}
		return s, nil
	}
	r.active[q] = true
	defer delete(r.active, q)

	st := &scopeState{
		scope: &Scope{ID: len(r.Scopes), Root: q, ByVar: make(map[types.VarID][]*Generator)},
		named: make(map[string]types.VarID),
		anon:  make(map[string]types.VarID),
	}
	r.Scopes = append(r.Scopes, st.scope)
	r.scopeOf[q] = st.scope

	// first pass: variable identities
	var refs []*types.ASTNode
	var err error
	types.Walk(q, func(n *types.ASTNode) bool {
		if err != nil {
			return false
		}
		switch n.Type {
		case types.NodeGet:
			var sub *Scope
			if sub, err = r.resolveScope(n.Query); err != nil {
				return false
			}
			r.assign(st, n, "@"+strconv.Itoa(sub.ID))
			refs = append(refs, n)
		case types.NodePath:
			r.assign(st, n, "")
			refs = append(refs, n)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	// second pass: generators, whose dependencies need the identities of
	// variables inside computed segments
	for _, n := range refs {
		ids := r.steps[n]
		var deps types.VarSet
		for i, s := range n.Steps {
			if s.Kind == types.SegVar && (i > 0 || n.Type == types.NodeGet) {
				g := &Generator{Var: ids[i], Node: n, Index: i, Deps: deps}
				st.scope.Generators = append(st.scope.Generators, g)
				st.scope.ByVar[g.Var] = append(st.scope.ByVar[g.Var], g)
			}
			switch s.Kind {
			case types.SegVar:
				deps = deps.Add(ids[i])
			case types.SegExpr:
				deps = deps.Union(r.Direct(s.Expr, nil))
			}
		}
	}

	if err := r.checkBindable(st.scope); err != nil {
		return nil, err
	}
	return st.scope, nil
}

// assign gives every variable step of n its identity. base distinguishes
// paths into the data context from paths into query results.
func (r *Resolution) assign(st *scopeState, n *types.ASTNode, base string) {
	ids := make([]types.VarID, len(n.Steps))
	key := base
	var label strings.Builder
	for i, s := range n.Steps {
		ids[i] = NoVar
		switch s.Kind {
		case types.SegField:
			key += "." + strconv.Quote(s.Name)
		case types.SegExpr:
			key += ".(" + s.Expr.String() + ")"
		case types.SegVar:
			if s.Name != "" {
				id, ok := st.named[s.Name]
				if !ok {
					id = r.newVar(st.scope, s.Name, "*"+s.Name)
					st.named[s.Name] = id
				}
				ids[i] = id
				key += ".*" + s.Name
			} else {
				id, ok := st.anon[key]
				if !ok {
					lbl := "*"
					if label.Len() > 0 {
						lbl = label.String() + ".*"
					}
					id = r.newVar(st.scope, "", lbl)
					st.anon[key] = id
				}
				ids[i] = id
				key += ".*#" + strconv.Itoa(int(id))
			}
		}
		if i > 0 {
			label.WriteByte('.')
		}
		label.WriteString(s.String())
	}
	r.steps[n] = ids
}

func (r *Resolution) newVar(s *Scope, name, label string) types.VarID {
	id := types.VarID(len(r.Vars))
	r.Vars = append(r.Vars, &Var{ID: id, Name: name, Scope: s.ID, Label: label})
	s.Vars = s.Vars.Add(id)
	return id
}

// checkBindable verifies that an evaluation order exists in which every
// variable is bound by a generator whose prefix only needs variables bound
// before it.
func (r *Resolution) checkBindable(s *Scope) error {
	var bound types.VarSet
	for {
		progress := false
		for _, v := range s.Vars {
			if bound.Has(v) {
				continue
			}
			for _, g := range s.ByVar[v] {
				if g.Deps.SubsetOf(bound) {
					bound = bound.Add(v)
					progress = true
					break
				}
			}
		}
		if !progress {
			break
		}
	}

	for _, v := range s.Vars.Minus(bound) {
		pos := r.firstOccurrence(s, v)
		if len(s.ByVar[v]) == 0 {
			return types.NewError(types.ErrNoGenerator,
				fmt.Sprintf("variable %s is never iterated: it must follow a path prefix, e.g. data.%s", r.Label(v), r.Label(v)), pos)
		}
		return types.NewError(types.ErrCyclicVariable,
			fmt.Sprintf("variable %s cannot be bound: every path iterating it depends on unbound variables", r.Label(v)), pos)
	}
	return nil
}

func (r *Resolution) firstOccurrence(s *Scope, v types.VarID) int {
	pos := -1
	types.Walk(s.Root, func(n *types.ASTNode) bool {
		if pos >= 0 {
			return false
		}
		for _, id := range r.steps[n] {
			if id == v {
				pos = n.Position
				if pos < 0 {
					pos = 0
				}
				return false
			}
		}
		return true
	})
	return pos
}

// Direct returns the variables n depends on outside nested aggregations.
// Variables bound by grouping keys of n are excluded unless they are in
// hard, in which case their key is a plain value.
func (r *Resolution) Direct(n *types.ASTNode, hard types.VarSet) types.VarSet {
	if n == nil {
		return nil
	}
	switch n.Type {
	case types.NodePath, types.NodeGet:
		var out types.VarSet
		for i, s := range n.Steps {
			switch s.Kind {
			case types.SegVar:
				out = out.Add(r.steps[n][i])
			case types.SegExpr:
				out = out.Union(r.Direct(s.Expr, hard))
			}
		}
		return out
	case types.NodeAggregate, types.NodeArray, types.NodeLiteral, types.NodeBad:
		return nil
	case types.NodeObject:
		var out types.VarSet
		for _, e := range n.Entries {
			out = out.Union(r.directEntry(e.Key, e.Value, hard))
		}
		return out
	case types.NodeMerge:
		if !n.LHS.ProducesObject() {
			return r.directEntry(n.LHS, n.RHS, hard)
		}
		return r.Direct(n.LHS, hard).Union(r.Direct(n.RHS, hard))
	default:
		var out types.VarSet
		for _, a := range n.Arguments {
			out = out.Union(r.Direct(a, hard))
		}
		return out
	}
}

func (r *Resolution) directEntry(k, v *types.ASTNode, hard types.VarSet) types.VarSet {
	kd := r.Direct(k, hard)
	kv := kd.Minus(hard)
	return kd.Union(r.Direct(v, hard)).Minus(kv)
}

// AllVars returns every variable occurring in n, including occurrences under
// aggregations. Queries referenced by get are not entered.
func (r *Resolution) AllVars(n *types.ASTNode) types.VarSet {
	var out types.VarSet
	types.Walk(n, func(x *types.ASTNode) bool {
		for _, id := range r.steps[x] {
			if id != NoVar {
				out = out.Add(id)
			}
		}
		return true
	})
	return out
}
