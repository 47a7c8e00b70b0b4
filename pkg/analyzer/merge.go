package analyzer

import "github.com/sandrolain/gorhyme/pkg/types"

// MergeInfo describes a merge node.
//
// A keyed merge has a left side producing scalars: it groups the right side
// by the left side's values exactly like an object entry does, so variables
// shared by both sides unify on their runtime values and a right side
// independent of them is broadcast to every key.
//
// A structural merge has a node producing an object on the left: an object
// literal, another merge, or a get reaching an object. Both sides are evaluated in
// the same context and deep-merged. Entries grouping by a variable both
// sides share are joined: when both sides have joined entries, a joined key
// is kept only if both sides produce it.
type MergeInfo struct {
	Keyed bool
	Entry *EntryInfo // keyed merges

	Shared      types.VarSet
	JoinedLeft  []bool // per entry of an object left side
	JoinedRight []bool // per entry of an object right side
}

func (a *Analysis) analyzeMerge(n *types.ASTNode, hard types.VarSet) types.VarSet {
	m := &MergeInfo{}
	a.merges[n] = m

	if !n.LHS.ProducesObject() {
		m.Keyed = true
		m.Entry = a.analyzeEntry(n.LHS, n.RHS, hard)
		m.Shared = m.Entry.KeyVars.Intersect(a.Res.AllVars(n.RHS))
		return m.Entry.Deps
	}

	deps := a.analyze(n.LHS, hard).Union(a.analyze(n.RHS, hard))
	m.Shared = a.Res.AllVars(n.LHS).Intersect(a.Res.AllVars(n.RHS))
	m.JoinedLeft = a.joined(n.LHS, m.Shared)
	m.JoinedRight = a.joined(n.RHS, m.Shared)
	return deps
}

func (a *Analysis) joined(n *types.ASTNode, shared types.VarSet) []bool {
	if n.Type != types.NodeObject {
		return nil
	}
	list := a.entries[n]
	out := make([]bool, len(list))
	for i, e := range list {
		out[i] = e.KeyVars.Overlaps(shared)
	}
	return out
}

// HasJoined reports whether any entry is joined.
func HasJoined(joined []bool) bool {
	for _, j := range joined {
		if j {
			return true
		}
	}
	return false
}
