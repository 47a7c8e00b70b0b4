package parser

// Package parser turns the textual query surfaces into query trees.
//
// Three surfaces share one tree representation:
//   - path strings such as "data.*.key" (ParsePath)
//   - rh template text such as "sum data.*.value" (Parse), where $1..$n
//     slots refer to previously built trees
//   - query values and JSON query documents (FromValue, ParseJSON), where
//     strings are path expressions and single-key "$op" objects are operators
//
// # Architecture
//
// The parser consists of two main components:
//   - Lexer: Tokenizes the template text into a stream of tokens
//   - Parser: Builds the tree from tokens; juxtaposition applies a built-in
//     or udf function to the terms that follow it, + and / are infix
//
// # Example
//
//	q, err := parser.Parse("udf.guard *K (array $1.*K.*.sub.*B)", parser.WithSlots(q0))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ast := q.AST()

import (
	"github.com/sandrolain/gorhyme/pkg/types"
)

// Parse parses rh template text and returns the query.
//
// The function tokenizes the input, builds the tree, and validates the syntax.
// If parsing fails, it returns a ParseError with position information.
//
// Example:
//
//	q, err := parser.Parse("div (sum data.*.value) (count data.*.value)")
//	if err != nil {
//	    fmt.Printf("parse error: %v\n", err)
//	    return
//	}
func Parse(query string, opts ...CompileOption) (*types.Query, error) {
	p := NewParser(query, opts...)
	return p.Parse()
}

// ParsePath parses a path expression such as "data.*A.items.*" or
// "q.(data.*C.key).*C".
func ParsePath(path string, opts ...CompileOption) (*types.ASTNode, error) {
	p := NewParser(path, opts...)
	return p.ParsePath()
}

// CompileOption configures parsing behavior.
type CompileOption func(*CompileOptions)

// CompileOptions holds parser configuration.
type CompileOptions struct {
	// MaxDepth limits nesting depth to prevent stack overflow.
	MaxDepth int
	// Slots are the trees referenced by $1..$n, in order.
	Slots []*types.ASTNode
}

// WithMaxDepth sets the maximum parsing depth.
func WithMaxDepth(depth int) CompileOption {
	return func(opts *CompileOptions) {
		opts.MaxDepth = depth
	}
}

// WithSlots sets the trees referenced by template slots.
func WithSlots(slots ...*types.ASTNode) CompileOption {
	return func(opts *CompileOptions) {
		opts.Slots = slots
	}
}
