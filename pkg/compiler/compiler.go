// Package compiler runs the compile pipeline: it turns a query surface into
// a query tree, resolves its variables, analyzes aggregation scopes and
// builds the executable plan.
//
// Queries may be given as rh template text, JSON query documents, query
// values or trees built with the build package:
//
//	plan, err := compiler.Compile("sum data.*.value")
//	plan, err := compiler.Compile([]byte(`{"data.*.key": {"$sum": "data.*.value"}}`))
//	plan, err := compiler.Compile(build.Obj("total", build.Sum("data.*.value")))
//
// The input tree is never modified; plans are immutable.
package compiler

import (
	"log/slog"
	"time"

	"github.com/sandrolain/gorhyme/pkg/analyzer"
	"github.com/sandrolain/gorhyme/pkg/parser"
	"github.com/sandrolain/gorhyme/pkg/planner"
	"github.com/sandrolain/gorhyme/pkg/resolver"
	"github.com/sandrolain/gorhyme/pkg/types"
)

// Options configures compilation.
type Options struct {
	// MaxDepth limits the nesting depth of parsed surfaces.
	MaxDepth int
	// Slots are the trees referenced by $1..$n in rh text.
	Slots []*types.ASTNode
	// Debug enables debug logging.
	Debug bool
	// Logger for structured logging.
	Logger *slog.Logger
}

// Option configures compilation.
type Option func(*Options)

// WithMaxDepth sets the maximum nesting depth of parsed surfaces.
func WithMaxDepth(depth int) Option {
	return func(o *Options) {
		o.MaxDepth = depth
	}
}

// WithSlots sets the trees referenced by $1..$n in rh text.
func WithSlots(slots ...*types.ASTNode) Option {
	return func(o *Options) {
		o.Slots = slots
	}
}

// WithDebug enables or disables debug logging.
func WithDebug(enabled bool) Option {
	return func(o *Options) {
		o.Debug = enabled
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Compile compiles a query. Accepted forms:
//   - string: rh template text (a bare path is valid rh text)
//   - []byte: a JSON query document
//   - *types.Query: a parsed query
//   - *types.ASTNode or any query value accepted by parser.FromValue
//
// Errors raised while building the tree (Bad nodes) surface here as
// ParseError; unbindable variables as UnboundVariableError.
func Compile(query interface{}, opts ...Option) (*planner.Plan, error) {
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	start := time.Now()
	root, source, err := toTree(query, o)
	if err != nil {
		return nil, err
	}
	if err := types.FirstError(root); err != nil {
		return nil, err
	}

	// the pipeline annotates its own copy of the tree
	root = types.Clone(root)
	res, err := resolver.Resolve(root)
	if err != nil {
		return nil, err
	}
	a := analyzer.Analyze(res)
	plan, err := planner.Build(a, source)
	if err != nil {
		return nil, err
	}

	if o.Debug {
		o.Logger.Debug("compiled",
			"scopes", len(plan.Scopes),
			"vars", len(plan.Vars),
			"duration", time.Since(start))
	}
	return plan, nil
}

// MustCompile is like Compile but panics if the query cannot be compiled.
func MustCompile(query interface{}, opts ...Option) *planner.Plan {
	plan, err := Compile(query, opts...)
	if err != nil {
		panic("compiler: Compile: " + err.Error())
	}
	return plan
}

func toTree(query interface{}, o Options) (*types.ASTNode, string, error) {
	var popts []parser.CompileOption
	if o.MaxDepth > 0 {
		popts = append(popts, parser.WithMaxDepth(o.MaxDepth))
	}
	if len(o.Slots) > 0 {
		popts = append(popts, parser.WithSlots(o.Slots...))
	}

	switch q := query.(type) {
	case string:
		parsed, err := parser.Parse(q, popts...)
		if err != nil {
			return nil, "", err
		}
		return parsed.AST(), q, nil
	case []byte:
		n, err := parser.ParseJSON(q, popts...)
		if err != nil {
			return nil, "", err
		}
		return n, string(q), nil
	case *types.Query:
		if q == nil || q.AST() == nil {
			return nil, "", types.Errorf(types.ErrBadSurface, "nil query")
		}
		return q.AST(), q.Source(), nil
	}
	n, err := parser.FromValue(query, popts...)
	if err != nil {
		return nil, "", err
	}
	return n, "", nil
}
