package types

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeType identifies the type of an AST node.
type NodeType string

// AST node types.
const (
	NodeLiteral   NodeType = "literal"   // constant value
	NodePath      NodeType = "path"      // data.*.key
	NodeObject    NodeType = "object"    // {k: v, ...}
	NodeArray     NodeType = "array"     // [a, b]
	NodeAggregate NodeType = "aggregate" // sum, count, array, join
	NodeOp        NodeType = "op"        // plus, div, fdiv
	NodeMerge     NodeType = "merge"     // merge(left, right)
	NodeApply     NodeType = "apply"     // udf.fn(args...)
	NodeGet       NodeType = "get"       // get(query, path...)
	NodeBad       NodeType = "bad"       // deferred construction error
)

// Aggregate kinds.
const (
	AggSum   = "sum"
	AggCount = "count"
	AggArray = "array"
	AggJoin  = "join"
)

// Elementwise operator kinds.
const (
	OpPlus = "plus"
	OpDiv  = "div"
	OpFDiv = "fdiv"
)

// SpreadKey is the object key whose value is spliced into the parent object.
const SpreadKey = "-"

// SegmentKind identifies the kind of a path segment.
type SegmentKind uint8

const (
	SegField SegmentKind = iota // fixed key
	SegVar                      // *NAME or anonymous *
	SegExpr                     // (expr): key computed at runtime
)

// Segment is one step of a path expression.
type Segment struct {
	Kind SegmentKind
	Name string   // field name or variable name ("" for anonymous *)
	Expr *ASTNode // SegExpr only
}

// Field returns a fixed-key segment.
func Field(name string) Segment { return Segment{Kind: SegField, Name: name} }

// Var returns a variable segment. An empty name is the anonymous wildcard.
func Var(name string) Segment { return Segment{Kind: SegVar, Name: name} }

// Dyn returns a segment whose key is computed by expr.
func Dyn(expr *ASTNode) Segment { return Segment{Kind: SegExpr, Expr: expr} }

// String renders the segment in path syntax.
func (s Segment) String() string {
	switch s.Kind {
	case SegVar:
		return "*" + s.Name
	case SegExpr:
		return "(" + s.Expr.String() + ")"
	default:
		return s.Name
	}
}

// Entry is one key/value pair of an object node.
type Entry struct {
	Key   *ASTNode
	Value *ASTNode
}

// ASTNode represents a node in the Abstract Syntax Tree.
//
// A node is owned by the tree that contains it, except for Query on a get
// node, which references a separately built query without owning it.
type ASTNode struct {
	Type     NodeType
	Value    interface{} // literal value
	Kind     string      // aggregate or operator kind
	Func     string      // function reference of an apply node, e.g. "udf.format"
	Position int

	Steps     []Segment  // path and get segments
	Entries   []Entry    // object entries
	Arguments []*ASTNode // array elements, aggregate operand, operator and apply arguments
	LHS       *ASTNode   // merge left side
	RHS       *ASTNode   // merge right side
	Query     *ASTNode   // get: referenced query

	Err error // bad nodes only
}

// NewLiteral returns a literal node.
func NewLiteral(v interface{}) *ASTNode {
	return &ASTNode{Type: NodeLiteral, Value: v, Position: -1}
}

// NewPath returns a path node.
func NewPath(steps ...Segment) *ASTNode {
	return &ASTNode{Type: NodePath, Steps: steps, Position: -1}
}

// NewObject returns an object node with the given entries in order.
func NewObject(entries ...Entry) *ASTNode {
	return &ASTNode{Type: NodeObject, Entries: entries, Position: -1}
}

// NewArray returns an array literal. Every element is collected as an array
// aggregation of itself, so [x] behaves like array(x).
func NewArray(elems ...*ASTNode) *ASTNode {
	args := make([]*ASTNode, len(elems))
	for i, e := range elems {
		args[i] = NewAggregate(AggArray, e)
	}
	return &ASTNode{Type: NodeArray, Arguments: args, Position: -1}
}

// NewAggregate returns an aggregation node.
func NewAggregate(kind string, operand *ASTNode) *ASTNode {
	return &ASTNode{Type: NodeAggregate, Kind: kind, Arguments: []*ASTNode{operand}, Position: -1}
}

// NewOp returns a binary elementwise operator node.
func NewOp(kind string, lhs, rhs *ASTNode) *ASTNode {
	return &ASTNode{Type: NodeOp, Kind: kind, Arguments: []*ASTNode{lhs, rhs}, Position: -1}
}

// NewMerge returns a merge node.
func NewMerge(lhs, rhs *ASTNode) *ASTNode {
	return &ASTNode{Type: NodeMerge, LHS: lhs, RHS: rhs, Position: -1}
}

// NewApply returns a function application node.
func NewApply(fn string, args ...*ASTNode) *ASTNode {
	return &ASTNode{Type: NodeApply, Func: fn, Arguments: args, Position: -1}
}

// NewGet returns a node reading path from the result of query.
func NewGet(query *ASTNode, steps ...Segment) *ASTNode {
	return &ASTNode{Type: NodeGet, Query: query, Steps: steps, Position: -1}
}

// NewBad returns a node carrying a construction error, reported by the compiler.
func NewBad(err error) *ASTNode {
	return &ASTNode{Type: NodeBad, Err: err, Position: -1}
}

// Operand returns the operand of an aggregate node.
func (n *ASTNode) Operand() *ASTNode {
	if len(n.Arguments) == 0 {
		return nil
	}
	return n.Arguments[0]
}

// StaticKey reports whether the node is a literal usable as a fixed object key.
func (n *ASTNode) StaticKey() (string, bool) {
	if n == nil || n.Type != NodeLiteral {
		return "", false
	}
	s, ok := n.Value.(string)
	return s, ok
}

// ProducesObject reports whether the node always evaluates to an object:
// an object literal, a merge, or a get reaching an object through the
// referenced query. Merges with such a node on the left are structural.
func (n *ASTNode) ProducesObject() bool {
	return producesObject(n, 0, map[*ASTNode]bool{})
}

// producesObject reports whether n, indexed by depth further keys, is an
// object.
func producesObject(n *ASTNode, depth int, seen map[*ASTNode]bool) bool {
	if n == nil || seen[n] {
		return false
	}
	switch n.Type {
	case NodeMerge:
		return depth == 0
	case NodeGet:
		seen[n] = true
		defer delete(seen, n)
		return producesObject(n.Query, depth+len(n.Steps), seen)
	case NodeObject:
		if depth == 0 {
			return true
		}
		if len(n.Entries) == 0 {
			return false
		}
		for _, e := range n.Entries {
			d := depth - 1
			if k, ok := e.Key.StaticKey(); ok && k == SpreadKey {
				// spread keys sit at the level of the parent
				d = depth
			}
			if !producesObject(e.Value, d, seen) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the node in rh syntax.
func (n *ASTNode) String() string {
	if n == nil {
		return "<nil>"
	}
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *ASTNode) write(b *strings.Builder) {
	switch n.Type {
	case NodeLiteral:
		switch v := n.Value.(type) {
		case string:
			b.WriteString(strconv.Quote(v))
		case float64:
			b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		default:
			fmt.Fprint(b, v)
		}
	case NodePath:
		writeSteps(b, n.Steps)
	case NodeObject:
		b.WriteByte('{')
		for i, e := range n.Entries {
			if i > 0 {
				b.WriteString(", ")
			}
			if k, ok := e.Key.StaticKey(); ok && isIdent(k) {
				b.WriteString(k)
			} else {
				e.Key.write(b)
			}
			b.WriteString(": ")
			e.Value.write(b)
		}
		b.WriteByte('}')
	case NodeArray:
		b.WriteByte('[')
		for i, a := range n.Arguments {
			if i > 0 {
				b.WriteString(", ")
			}
			a.Operand().write(b)
		}
		b.WriteByte(']')
	case NodeAggregate, NodeOp:
		b.WriteByte('(')
		b.WriteString(n.Kind)
		for _, a := range n.Arguments {
			b.WriteByte(' ')
			a.write(b)
		}
		b.WriteByte(')')
	case NodeMerge:
		b.WriteString("(merge ")
		n.LHS.write(b)
		b.WriteByte(' ')
		n.RHS.write(b)
		b.WriteByte(')')
	case NodeApply:
		b.WriteByte('(')
		b.WriteString(n.Func)
		for _, a := range n.Arguments {
			b.WriteByte(' ')
			a.write(b)
		}
		b.WriteByte(')')
	case NodeGet:
		b.WriteString("(get ")
		n.Query.write(b)
		b.WriteByte(')')
		for _, s := range n.Steps {
			b.WriteByte('.')
			b.WriteString(s.String())
		}
	case NodeBad:
		b.WriteString("<bad: ")
		if n.Err != nil {
			b.WriteString(n.Err.Error())
		}
		b.WriteByte('>')
	}
}

func writeSteps(b *strings.Builder, steps []Segment) {
	for i, s := range steps {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the tree rooted at n.
//
// The same node may be shared between several places of a built query; the
// copy gives every position its own node. Queries referenced by get nodes
// are copied once and stay shared between all get nodes that reference them.
func Clone(n *ASTNode) *ASTNode {
	c := cloner{queries: make(map[*ASTNode]*ASTNode)}
	return c.clone(n)
}

type cloner struct {
	queries map[*ASTNode]*ASTNode
}

func (c *cloner) clone(n *ASTNode) *ASTNode {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Steps != nil {
		cp.Steps = make([]Segment, len(n.Steps))
		for i, s := range n.Steps {
			cp.Steps[i] = s
			if s.Kind == SegExpr {
				cp.Steps[i].Expr = c.clone(s.Expr)
			}
		}
	}
	if n.Entries != nil {
		cp.Entries = make([]Entry, len(n.Entries))
		for i, e := range n.Entries {
			cp.Entries[i] = Entry{Key: c.clone(e.Key), Value: c.clone(e.Value)}
		}
	}
	if n.Arguments != nil {
		cp.Arguments = make([]*ASTNode, len(n.Arguments))
		for i, a := range n.Arguments {
			cp.Arguments[i] = c.clone(a)
		}
	}
	cp.LHS = c.clone(n.LHS)
	cp.RHS = c.clone(n.RHS)
	if n.Query != nil {
		q, ok := c.queries[n.Query]
		if !ok {
			// register before descending so self references terminate
			q = &ASTNode{}
			c.queries[n.Query] = q
			*q = *c.clone(n.Query)
		}
		cp.Query = q
	}
	return &cp
}

// Walk calls fn for n and every node below it, depth first. Queries
// referenced by get nodes are not entered. Walk stops descending into a
// node when fn returns false.
func Walk(n *ASTNode, fn func(*ASTNode) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, s := range n.Steps {
		if s.Kind == SegExpr {
			Walk(s.Expr, fn)
		}
	}
	for _, e := range n.Entries {
		Walk(e.Key, fn)
		Walk(e.Value, fn)
	}
	for _, a := range n.Arguments {
		Walk(a, fn)
	}
	Walk(n.LHS, fn)
	Walk(n.RHS, fn)
}

// FirstError returns the error of the first bad node reachable from n,
// including nodes of referenced queries.
func FirstError(n *ASTNode) error {
	seen := make(map[*ASTNode]bool)
	var err error
	var visit func(*ASTNode)
	visit = func(root *ASTNode) {
		if root == nil || seen[root] {
			return
		}
		seen[root] = true
		Walk(root, func(x *ASTNode) bool {
			if err != nil {
				return false
			}
			switch x.Type {
			case NodeBad:
				err = x.Err
				return false
			case NodeGet:
				visit(x.Query)
			}
			return true
		})
	}
	visit(n)
	return err
}
