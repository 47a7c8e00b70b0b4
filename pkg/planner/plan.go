// Package planner lowers an analyzed query into an executable plan.
//
// A plan is a tree of operations per query scope plus the generator table of
// that scope. Plans are immutable once built and may be evaluated
// concurrently.
package planner

import (
	"github.com/sandrolain/gorhyme/pkg/resolver"
	"github.com/sandrolain/gorhyme/pkg/types"
)

// Op is a node of an executable plan.
type Op interface {
	opName() string
}

// Const yields a literal value.
type Const struct {
	Value interface{}
}

func (c *Const) opName() string { return "Const" }

// Step is one lowered path segment.
type Step struct {
	Kind types.SegmentKind
	Name string      // SegField
	Var  types.VarID // SegVar
	Expr Op          // SegExpr
}

// Scan projects a path from the data context. Every variable step must be
// bound when it is evaluated.
type Scan struct {
	Steps []Step
	Text  string
}

func (s *Scan) opName() string { return "Scan" }

// Get projects a path from the result of another scope.
type Get struct {
	Scope int
	Steps []Step
	Text  string
}

func (g *Get) opName() string { return "Get" }

// Call invokes a user-defined function.
type Call struct {
	Func string
	Args []Op
}

func (c *Call) opName() string { return "Call" }

// Arith applies a binary primitive elementwise.
type Arith struct {
	Kind        string
	Left, Right Op
}

func (a *Arith) opName() string { return "Arith" }

// Reduce aggregates the values of Operand over every binding of Reduced.
// A NoOp reduce evaluates its operand once and packages it.
type Reduce struct {
	Kind    string
	Operand Op
	Reduced types.VarSet
	NoOp    bool
}

func (r *Reduce) opName() string { return "Reduce" }

// Concat concatenates the arrays collected by its elements.
type Concat struct {
	Elems []Op
}

func (c *Concat) opName() string { return "Concat" }

// Group is one object entry. A grouping entry enumerates KeyVars, and
// evaluates Value once per distinct key under the constraint Key == key.
type Group struct {
	Key        Op
	KeyDeps    types.VarSet
	KeyVars    types.VarSet
	Value      Op
	PerBinding bool
	Spread     bool
}

func (g *Group) opName() string { return "Group" }

// Grouping reports whether the entry enumerates key variables.
func (g *Group) Grouping() bool {
	return !g.KeyVars.Empty()
}

// Object builds an object from its entries. Entries producing the same key
// are deep-merged.
type Object struct {
	Entries []*Group
	// Joined flags the entries taking part in a structural merge join.
	Joined []bool
}

func (o *Object) opName() string { return "Object" }

// Merge combines two sides. A keyed merge is a single grouping entry;
// a structural merge deep-merges two objects joining the flagged entries.
type Merge struct {
	Keyed       *Group
	Left, Right Op
}

func (m *Merge) opName() string { return "Merge" }

// Root materializes the free variables of a scope as nested objects around
// the value of Body.
type Root struct {
	Scope int
	Free  types.VarSet
	Body  Op
}

func (r *Root) opName() string { return "Root" }

// Generator states that Var ranges over the keys of the value at Prefix,
// read from the data context when Base is negative and from the result of
// scope Base otherwise.
type Generator struct {
	Var    types.VarID
	Base   int
	Prefix []Step
	Deps   types.VarSet
	Text   string
}

// Scope is the executable form of one query.
type Scope struct {
	ID         int
	Vars       types.VarSet
	Generators []*Generator
	ByVar      map[types.VarID][]*Generator
	Root       *Root
}

// Plan is a compiled query.
type Plan struct {
	Scopes []*Scope
	Vars   []*resolver.Var

	ast    *types.ASTNode
	source string
}

// Root returns the root operation of the top-level query.
func (p *Plan) Root() *Root {
	return p.Scopes[0].Root
}

// AST returns the query tree the plan was built from.
func (p *Plan) AST() *types.ASTNode {
	return p.ast
}

// Source returns the query text, if the plan was compiled from text.
func (p *Plan) Source() string {
	return p.source
}

// Label returns the display name of a variable.
func (p *Plan) Label(id types.VarID) string {
	if id < 0 || int(id) >= len(p.Vars) {
		return "?"
	}
	return p.Vars[id].Label
}

// Format renders a variable set with labels.
func (p *Plan) Format(s types.VarSet) string {
	return s.Format(p.Label)
}
