package planner

import (
	"github.com/sandrolain/gorhyme/pkg/analyzer"
	"github.com/sandrolain/gorhyme/pkg/resolver"
	"github.com/sandrolain/gorhyme/pkg/types"
)

// Build lowers an analyzed query. source is the query text, if any.
func Build(a *analyzer.Analysis, source string) (*Plan, error) {
	b := &builder{a: a, res: a.Res}
	p := &Plan{
		Vars:   a.Res.Vars,
		ast:    a.Res.Scopes[0].Root,
		source: source,
	}
	for _, s := range a.Res.Scopes {
		scope, err := b.scope(s)
		if err != nil {
			return nil, err
		}
		p.Scopes = append(p.Scopes, scope)
	}
	return p, nil
}

type builder struct {
	a   *analyzer.Analysis
	res *resolver.Resolution
	// lowered steps per path or get node, shared by scans and generators
	steps map[*types.ASTNode][]Step
}

func (b *builder) scope(s *resolver.Scope) (*Scope, error) {
	if b.steps == nil {
		b.steps = make(map[*types.ASTNode][]Step)
	}
	body, err := b.lower(s.Root)
	if err != nil {
		return nil, err
	}
	out := &Scope{
		ID:    s.ID,
		Vars:  s.Vars,
		ByVar: make(map[types.VarID][]*Generator),
		Root:  &Root{Scope: s.ID, Free: b.a.Free(s.ID), Body: body},
	}
	for _, g := range s.Generators {
		steps, err := b.lowerSteps(g.Node)
		if err != nil {
			return nil, err
		}
		gen := &Generator{
			Var:    g.Var,
			Base:   -1,
			Prefix: steps[:g.Index:g.Index],
			Deps:   g.Deps,
			Text:   prefixText(g.Node, g.Index),
		}
		if g.Node.Type == types.NodeGet {
			gen.Base = b.res.ScopeOf(g.Node.Query).ID
		}
		out.Generators = append(out.Generators, gen)
		out.ByVar[gen.Var] = append(out.ByVar[gen.Var], gen)
	}
	return out, nil
}

func prefixText(n *types.ASTNode, index int) string {
	var text string
	if n.Type == types.NodeGet {
		text = "(get)"
	}
	for i, s := range n.Steps[:index] {
		if i > 0 || text != "" {
			text += "."
		}
		text += s.String()
	}
	if text == "" {
		return "<data>"
	}
	return text
}

func (b *builder) lower(n *types.ASTNode) (Op, error) {
	switch n.Type {
	case types.NodeLiteral:
		return &Const{Value: n.Value}, nil

	case types.NodePath:
		steps, err := b.lowerSteps(n)
		if err != nil {
			return nil, err
		}
		return &Scan{Steps: steps, Text: n.String()}, nil

	case types.NodeGet:
		steps, err := b.lowerSteps(n)
		if err != nil {
			return nil, err
		}
		return &Get{Scope: b.res.ScopeOf(n.Query).ID, Steps: steps, Text: n.String()}, nil

	case types.NodeAggregate:
		x, err := b.lower(n.Operand())
		if err != nil {
			return nil, err
		}
		info := b.a.Info(n)
		return &Reduce{Kind: n.Kind, Operand: x, Reduced: info.Reduced, NoOp: info.NoOp}, nil

	case types.NodeArray:
		elems, err := b.lowerAll(n.Arguments)
		if err != nil {
			return nil, err
		}
		return &Concat{Elems: elems}, nil

	case types.NodeOp:
		args, err := b.lowerAll(n.Arguments)
		if err != nil {
			return nil, err
		}
		return &Arith{Kind: n.Kind, Left: args[0], Right: args[1]}, nil

	case types.NodeApply:
		args, err := b.lowerAll(n.Arguments)
		if err != nil {
			return nil, err
		}
		return &Call{Func: n.Func, Args: args}, nil

	case types.NodeObject:
		return b.lowerObject(n, nil)

	case types.NodeMerge:
		m := b.a.Merge(n)
		if m.Keyed {
			g, err := b.lowerEntry(m.Entry)
			if err != nil {
				return nil, err
			}
			return &Merge{Keyed: g}, nil
		}
		left, err := b.lowerSide(n.LHS, m.JoinedLeft, m.JoinedRight)
		if err != nil {
			return nil, err
		}
		right, err := b.lowerSide(n.RHS, m.JoinedRight, m.JoinedLeft)
		if err != nil {
			return nil, err
		}
		return &Merge{Left: left, Right: right}, nil

	case types.NodeBad:
		return nil, n.Err
	}
	return nil, types.Errorf(types.ErrSyntaxError, "unknown node type %q", n.Type)
}

// lowerSide lowers one side of a structural merge. Join filtering only
// applies when both sides have joined entries.
func (b *builder) lowerSide(n *types.ASTNode, joined, other []bool) (Op, error) {
	if n.Type == types.NodeObject && analyzer.HasJoined(joined) && analyzer.HasJoined(other) {
		return b.lowerObject(n, joined)
	}
	return b.lower(n)
}

func (b *builder) lowerObject(n *types.ASTNode, joined []bool) (Op, error) {
	obj := &Object{Joined: joined}
	for _, e := range b.a.Entries(n) {
		g, err := b.lowerEntry(e)
		if err != nil {
			return nil, err
		}
		obj.Entries = append(obj.Entries, g)
	}
	return obj, nil
}

func (b *builder) lowerEntry(e *analyzer.EntryInfo) (*Group, error) {
	key, err := b.lower(e.Key)
	if err != nil {
		return nil, err
	}
	value, err := b.lower(e.Value)
	if err != nil {
		return nil, err
	}
	return &Group{
		Key:        key,
		KeyDeps:    e.KeyDeps,
		KeyVars:    e.KeyVars,
		Value:      value,
		PerBinding: e.PerBinding,
		Spread:     e.Spread,
	}, nil
}

func (b *builder) lowerAll(nodes []*types.ASTNode) ([]Op, error) {
	out := make([]Op, len(nodes))
	for i, n := range nodes {
		op, err := b.lower(n)
		if err != nil {
			return nil, err
		}
		out[i] = op
	}
	return out, nil
}

func (b *builder) lowerSteps(n *types.ASTNode) ([]Step, error) {
	if steps, ok := b.steps[n]; ok {
		return steps, nil
	}
	ids := b.res.StepVars(n)
	steps := make([]Step, len(n.Steps))
	for i, s := range n.Steps {
		steps[i] = Step{Kind: s.Kind, Name: s.Name, Var: ids[i]}
		if s.Kind == types.SegExpr {
			op, err := b.lower(s.Expr)
			if err != nil {
				return nil, err
			}
			steps[i].Expr = op
		}
	}
	b.steps[n] = steps
	return steps, nil
}
