// Package analyzer decides, for every node of a resolved query, which
// variables it depends on and which ones it reduces.
//
// Analysis runs top-down with the hard set H: the variables whose values
// identify distinct output slots at a point of the tree. Free variables of
// the query root are hard, and so are the variables an enclosing aggregation
// reduces, since the aggregation enumerates them and evaluates its operand
// once per binding.
//
// An aggregation reduces the variables its operand depends on directly,
// minus H. When that set is empty the aggregation has nothing left to
// collapse: it is a no-op that only packages its operand, so sum(sum(x))
// equals sum(x) and array(array(x)) wraps the inner array once.
//
// Object keys that depend on variables outside H group by them. The value of
// such an entry is evaluated under the constraint key == kv for every key
// value kv, which scopes the aggregations below it to the group.
package analyzer

import (
	"github.com/sandrolain/gorhyme/pkg/resolver"
	"github.com/sandrolain/gorhyme/pkg/types"
)

// NodeInfo holds the analysis result of one node.
type NodeInfo struct {
	// Deps are the variables the node's value depends on. They must be
	// bound whenever the node is evaluated.
	Deps types.VarSet
	// Reduced are the variables an aggregation enumerates.
	Reduced types.VarSet
	// NoOp marks aggregations with nothing to reduce.
	NoOp bool
}

// EntryInfo describes one grouping position: an object entry or a keyed
// merge.
type EntryInfo struct {
	Key   *types.ASTNode
	Value *types.ASTNode
	// KeyDeps are the variables of the key expression.
	KeyDeps types.VarSet
	// KeyVars are the key variables outside the hard set; the entry groups
	// by them. Empty for plain entries.
	KeyVars types.VarSet
	// PerBinding is set when the value itself depends on key variables: it
	// is evaluated per binding of KeyVars and the results are deep-merged.
	PerBinding bool
	// Deps are the variables the entry depends on from its context.
	Deps types.VarSet
	// Spread marks the "-" key, whose object value is merged into the parent.
	Spread bool
}

// Grouping reports whether the entry groups by key variables.
func (e *EntryInfo) Grouping() bool {
	return !e.KeyVars.Empty()
}

// Analysis is the result of analyzing a resolved query and the queries it
// references.
type Analysis struct {
	Res *resolver.Resolution

	info    map[*types.ASTNode]*NodeInfo
	entries map[*types.ASTNode][]*EntryInfo
	merges  map[*types.ASTNode]*MergeInfo
	free    map[int]types.VarSet
}

// Analyze analyzes every scope of res.
func Analyze(res *resolver.Resolution) *Analysis {
	a := &Analysis{
		Res:     res,
		info:    make(map[*types.ASTNode]*NodeInfo),
		entries: make(map[*types.ASTNode][]*EntryInfo),
		merges:  make(map[*types.ASTNode]*MergeInfo),
		free:    make(map[int]types.VarSet),
	}
	for _, s := range res.Scopes {
		free := res.Direct(s.Root, nil)
		a.free[s.ID] = free
		a.analyze(s.Root, free)
	}
	return a
}

// Info returns the analysis of n.
func (a *Analysis) Info(n *types.ASTNode) *NodeInfo {
	if info, ok := a.info[n]; ok {
		return info
	}
	return &NodeInfo{}
}

// Entries returns the entry analysis of an object node.
func (a *Analysis) Entries(n *types.ASTNode) []*EntryInfo {
	return a.entries[n]
}

// Merge returns the analysis of a merge node.
func (a *Analysis) Merge(n *types.ASTNode) *MergeInfo {
	return a.merges[n]
}

// Free returns the variables the root of a scope is materialized over.
func (a *Analysis) Free(scope int) types.VarSet {
	return a.free[scope]
}

func (a *Analysis) analyze(n *types.ASTNode, hard types.VarSet) types.VarSet {
	if n == nil {
		return nil
	}
	info := &NodeInfo{}
	a.info[n] = info

	switch n.Type {
	case types.NodeLiteral, types.NodeBad:

	case types.NodePath, types.NodeGet:
		ids := a.Res.StepVars(n)
		for i, s := range n.Steps {
			switch s.Kind {
			case types.SegVar:
				info.Deps = info.Deps.Add(ids[i])
			case types.SegExpr:
				info.Deps = info.Deps.Union(a.analyze(s.Expr, hard))
			}
		}

	case types.NodeAggregate:
		x := n.Operand()
		info.Reduced = a.Res.Direct(x, hard).Minus(hard)
		info.NoOp = info.Reduced.Empty()
		info.Deps = a.analyze(x, hard.Union(info.Reduced)).Intersect(hard)

	case types.NodeObject:
		list := make([]*EntryInfo, len(n.Entries))
		for i, e := range n.Entries {
			list[i] = a.analyzeEntry(e.Key, e.Value, hard)
			info.Deps = info.Deps.Union(list[i].Deps)
		}
		a.entries[n] = list

	case types.NodeMerge:
		info.Deps = a.analyzeMerge(n, hard)

	default:
		// arrays, operators and applications
		for _, arg := range n.Arguments {
			info.Deps = info.Deps.Union(a.analyze(arg, hard))
		}
	}
	return info.Deps
}

func (a *Analysis) analyzeEntry(k, v *types.ASTNode, hard types.VarSet) *EntryInfo {
	e := &EntryInfo{Key: k, Value: v}
	if s, ok := k.StaticKey(); ok && s == types.SpreadKey {
		e.Spread = true
	}
	e.KeyDeps = a.analyze(k, hard)
	e.KeyVars = e.KeyDeps.Minus(hard)
	vd := a.analyze(v, hard)
	e.PerBinding = vd.Overlaps(e.KeyVars)
	e.Deps = e.KeyDeps.Union(vd).Minus(e.KeyVars)
	return e
}
