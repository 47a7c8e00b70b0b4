package planner

import (
	"fmt"
	"strings"

	"github.com/sandrolain/gorhyme/pkg/types"
)

// Explain renders the plan as readable pseudo code, one scope after the
// other, the top-level query first.
func (p *Plan) Explain() string {
	var b strings.Builder
	for i, s := range p.Scopes {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "scope %d vars %s\n", s.ID, p.Format(s.Vars))
		for _, g := range s.Generators {
			fmt.Fprintf(&b, "  gen %s in keys(%s)", p.Label(g.Var), g.Text)
			if !g.Deps.Empty() {
				fmt.Fprintf(&b, " needs %s", p.Format(g.Deps))
			}
			b.WriteByte('\n')
		}
		p.explain(&b, s.Root, 1)
	}
	return b.String()
}

func (p *Plan) explain(b *strings.Builder, op Op, depth int) {
	indent := strings.Repeat("  ", depth)
	switch o := op.(type) {
	case *Root:
		fmt.Fprintf(b, "%sroot", indent)
		if !o.Free.Empty() {
			fmt.Fprintf(b, " for %s", p.Format(o.Free))
		}
		b.WriteByte('\n')
		p.explain(b, o.Body, depth+1)
	case *Const:
		fmt.Fprintf(b, "%sconst %s\n", indent, types.NewLiteral(o.Value))
	case *Scan:
		fmt.Fprintf(b, "%sscan %s\n", indent, o.Text)
	case *Get:
		fmt.Fprintf(b, "%sget scope %d %s\n", indent, o.Scope, o.Text)
	case *Call:
		fmt.Fprintf(b, "%scall %s\n", indent, o.Func)
		for _, a := range o.Args {
			p.explain(b, a, depth+1)
		}
	case *Arith:
		fmt.Fprintf(b, "%s%s\n", indent, o.Kind)
		p.explain(b, o.Left, depth+1)
		p.explain(b, o.Right, depth+1)
	case *Reduce:
		if o.NoOp {
			fmt.Fprintf(b, "%s%s (no-op)\n", indent, o.Kind)
		} else {
			fmt.Fprintf(b, "%s%s over %s\n", indent, o.Kind, p.Format(o.Reduced))
		}
		p.explain(b, o.Operand, depth+1)
	case *Concat:
		fmt.Fprintf(b, "%sconcat\n", indent)
		for _, e := range o.Elems {
			p.explain(b, e, depth+1)
		}
	case *Object:
		fmt.Fprintf(b, "%sobject\n", indent)
		for i, e := range o.Entries {
			joined := len(o.Joined) > i && o.Joined[i]
			p.explainGroup(b, e, depth+1, joined)
		}
	case *Merge:
		if o.Keyed != nil {
			fmt.Fprintf(b, "%smerge keyed\n", indent)
			p.explainGroup(b, o.Keyed, depth+1, false)
			return
		}
		fmt.Fprintf(b, "%smerge\n", indent)
		p.explain(b, o.Left, depth+1)
		p.explain(b, o.Right, depth+1)
	}
}

func (p *Plan) explainGroup(b *strings.Builder, g *Group, depth int, joined bool) {
	indent := strings.Repeat("  ", depth)
	switch {
	case g.Spread:
		fmt.Fprintf(b, "%sspread\n", indent)
	case g.Grouping():
		fmt.Fprintf(b, "%sgroup by %s", indent, p.Format(g.KeyVars))
		if g.PerBinding {
			b.WriteString(" per binding")
		}
		if joined {
			b.WriteString(" joined")
		}
		b.WriteByte('\n')
		p.explain(b, g.Key, depth+1)
	default:
		fmt.Fprintf(b, "%sentry\n", indent)
		p.explain(b, g.Key, depth+1)
	}
	p.explain(b, g.Value, depth+1)
}
