// Package evaluator executes compiled query plans.
//
// The evaluator receives an immutable plan from the planner and evaluates it
// against a data context: a mapping from top-level names to input data. It
// supports:
//   - Enumeration of variable bindings in input order
//   - Grouping, reduction and joins as decided by the analyzer
//   - User-defined functions passed per evaluation
//   - An optional explain artifact owned by the evaluation
//   - Concurrent evaluation of one plan over many data contexts
//
// # Example
//
//	ev := evaluator.New(evaluator.WithUDF("guard", guard))
//	res, err := ev.Eval(ctx, plan, data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Value)
//
// # Concurrency
//
// Plans are immutable; an Evaluator holds no per-evaluation state. Both may
// be shared between goroutines.
//
//	results, err := ev.EvalMany(ctx, plan, docs)
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sandrolain/gorhyme/pkg/functions"
	"github.com/sandrolain/gorhyme/pkg/planner"
	"github.com/sandrolain/gorhyme/pkg/types"
)

// Evaluator evaluates compiled plans against data.
type Evaluator struct {
	opts   EvalOptions
	logger *slog.Logger
}

// EvalOptions configures evaluator behavior.
type EvalOptions struct {
	// UDFs holds the user-defined functions available to queries.
	UDFs functions.Table
	// Explain requests the explain artifact in the result.
	Explain bool
	// Concurrency limits the goroutines used by EvalMany.
	// Defaults to GOMAXPROCS.
	Concurrency int
	// Debug enables debug logging.
	Debug bool
	// Logger for structured logging.
	Logger *slog.Logger
}

// Result is the outcome of one evaluation.
type Result struct {
	// Value is the query result, nil when the query produced nothing.
	Value interface{}
	// Explain is set when explain was requested.
	Explain *Explain
}

// Explain describes one evaluation for diagnostics.
type Explain struct {
	// ID identifies the evaluation.
	ID uuid.UUID
	// Plan is the pseudo code of the evaluated plan.
	Plan string
	// Trace lists the reductions and groupings performed, in order.
	Trace []string
}

// New creates a new Evaluator with default options.
func New(opts ...EvalOption) *Evaluator {
	options := EvalOptions{
		UDFs:        functions.Table{},
		Concurrency: runtime.GOMAXPROCS(0),
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	return &Evaluator{
		opts:   options,
		logger: options.Logger,
	}
}

// Eval evaluates plan against data. Options given here extend the
// evaluator's options for this evaluation only.
//
// data is usually a map from top-level names to input collections. A "udf"
// entry holding functions is moved into the function table.
func (e *Evaluator) Eval(ctx context.Context, plan *planner.Plan, data interface{}, opts ...EvalOption) (*Result, error) {
	if plan == nil || len(plan.Scopes) == 0 {
		return nil, fmt.Errorf("invalid plan")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	options := e.opts
	options.UDFs = e.opts.UDFs.Clone()
	for _, opt := range opts {
		opt(&options)
	}

	data, udfs := splitUDFs(data)
	for name, fn := range udfs {
		options.UDFs[name] = fn
	}

	r := &run{
		ctx:     ctx,
		plan:    plan,
		data:    types.Normalize(data),
		udfs:    options.UDFs,
		results: make(map[int]interface{}),
		active:  make(map[int]bool),
	}
	res := &Result{}
	if options.Explain {
		res.Explain = &Explain{ID: uuid.New(), Plan: plan.Explain()}
		r.trace = res.Explain
	}

	logger := options.Logger
	if logger == nil {
		logger = e.logger
	}
	start := time.Now()
	if options.Debug {
		logger.Debug("evaluate", "scopes", len(plan.Scopes), "vars", len(plan.Vars), "udfs", len(options.UDFs))
	}

	value, err := r.scopeResult(0)
	if err != nil {
		if options.Debug {
			logger.Debug("evaluation failed", "error", err, "duration", time.Since(start))
		}
		return nil, err
	}
	res.Value = value

	if options.Debug {
		logger.Debug("evaluated", "duration", time.Since(start))
	}
	return res, nil
}

// EvalMany evaluates plan against every data context concurrently. Results
// are returned in input order; the first error cancels the remaining
// evaluations.
func (e *Evaluator) EvalMany(ctx context.Context, plan *planner.Plan, docs []interface{}, opts ...EvalOption) ([]*Result, error) {
	results := make([]*Result, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	limit := e.opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)

	for i, doc := range docs {
		g.Go(func() error {
			res, err := e.Eval(gctx, plan, doc, opts...)
			if err != nil {
				return fmt.Errorf("document %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// EvalOption configures evaluation behavior.
type EvalOption func(*EvalOptions)

// WithUDF registers a user-defined function, referenced as "udf.<name>".
func WithUDF(name string, fn functions.UDF) EvalOption {
	return func(opts *EvalOptions) {
		if opts.UDFs == nil {
			opts.UDFs = functions.Table{}
		}
		opts.UDFs[name] = fn
	}
}

// WithUDFs registers every function of table.
func WithUDFs(table functions.Table) EvalOption {
	return func(opts *EvalOptions) {
		if opts.UDFs == nil {
			opts.UDFs = functions.Table{}
		}
		for name, fn := range table {
			opts.UDFs[name] = fn
		}
	}
}

// WithExplain enables or disables the explain artifact.
func WithExplain(enabled bool) EvalOption {
	return func(opts *EvalOptions) {
		opts.Explain = enabled
	}
}

// WithConcurrency sets the number of goroutines EvalMany may use.
func WithConcurrency(n int) EvalOption {
	return func(opts *EvalOptions) {
		opts.Concurrency = n
	}
}

// WithDebug enables or disables debug logging.
func WithDebug(enabled bool) EvalOption {
	return func(opts *EvalOptions) {
		opts.Debug = enabled
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) EvalOption {
	return func(opts *EvalOptions) {
		opts.Logger = logger
	}
}

// splitUDFs moves a "udf" entry of a map data context into a function table.
func splitUDFs(data interface{}) (interface{}, functions.Table) {
	m, ok := data.(map[string]interface{})
	if !ok {
		return data, nil
	}
	raw, ok := m["udf"]
	if !ok {
		return data, nil
	}
	table := functions.Table{}
	switch x := raw.(type) {
	case functions.Table:
		table = x
	case map[string]functions.UDF:
		for k, fn := range x {
			table[k] = fn
		}
	case map[string]interface{}:
		for k, v := range x {
			switch fn := v.(type) {
			case functions.UDF:
				table[k] = fn
			case func(context.Context, ...interface{}) (interface{}, error):
				table[k] = fn
			default:
				// not a function table, keep the entry as data
				return data, nil
			}
		}
	default:
		return data, nil
	}
	rest := make(map[string]interface{}, len(m)-1)
	for k, v := range m {
		if k != "udf" {
			rest[k] = v
		}
	}
	return rest, table
}
