// Package functions provides the runtime support of the evaluator: the table
// of user-defined functions and the arithmetic primitives.
//
// User-defined functions are passed per evaluation and referenced from
// queries with the "udf." prefix.
//
// # Example
//
//	res, err := gorhyme.Eval(ctx, build.Apply("udf.formatDollar", "data.*.price"), data,
//	    gorhyme.WithUDF("formatDollar", func(ctx context.Context, args ...interface{}) (interface{}, error) {
//	        return fmt.Sprintf("$%v.00", args[0]), nil
//	    }),
//	)
package functions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sandrolain/gorhyme/pkg/types"
)

// Prefix is the namespace of user-defined functions in queries.
const Prefix = "udf."

// UDF is the signature for user-defined functions.
// args contains the evaluated arguments in order, nil for undefined ones.
// The function should return a JSON-compatible value or an error.
type UDF func(ctx context.Context, args ...interface{}) (interface{}, error)

// Table maps function names, without the "udf." prefix, to implementations.
type Table map[string]UDF

// Lookup returns the function a query references, e.g. "udf.guard".
func (t Table) Lookup(ref string) (UDF, bool) {
	fn, ok := t[strings.TrimPrefix(ref, Prefix)]
	return fn, ok && fn != nil
}

// Clone returns a copy of the table.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Invoke calls the function ref with args. A missing function, an error
// returned by the function and a panic inside it are UdfInvocationErrors.
// The result is normalized to the value model.
func (t Table) Invoke(ctx context.Context, ref string, args []interface{}) (result interface{}, err error) {
	fn, ok := t.Lookup(ref)
	if !ok {
		return nil, types.Errorf(types.ErrUndefinedFunction, "function %s is not defined", ref).WithToken(ref)
	}
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = types.Errorf(types.ErrFunctionFailed, "function %s panicked: %v", ref, r).WithToken(ref)
		}
	}()
	out, err := fn(ctx, args...)
	if err != nil {
		return nil, types.Errorf(types.ErrFunctionFailed, "function %s failed: %v", ref, err).WithToken(ref).WithCause(err)
	}
	return types.Normalize(out), nil
}

// Names returns the registered names with the query prefix, sorted.
func (t Table) Names() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, fmt.Sprintf("%s%s", Prefix, k))
	}
	sort.Strings(out)
	return out
}
