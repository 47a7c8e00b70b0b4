// Package types defines the core types shared by the query packages.
//
// This package contains type definitions for:
//   - ASTNode: query trees built by the parser and the builder API
//   - Segment: path steps (fields, variables, computed keys)
//   - VarID and VarSet: resolved variables and their sets
//   - Object: insertion ordered JSON objects used for results
//   - Error types: structured errors with codes and classes
package types

// Query is a query tree together with the source text it was parsed from.
// Queries built with the builder API have no source.
type Query struct {
	ast    *ASTNode
	source string
}

// NewQuery creates a new Query from an AST.
func NewQuery(ast *ASTNode, source string) *Query {
	return &Query{
		ast:    ast,
		source: source,
	}
}

// AST returns the root node of the query.
func (q *Query) AST() *ASTNode {
	return q.ast
}

// Source returns the source text of the query.
func (q *Query) Source() string {
	return q.source
}

// String returns the source text, or the rh rendering of the tree when the
// query has no source.
func (q *Query) String() string {
	if q.source != "" {
		return q.source
	}
	return q.ast.String()
}
