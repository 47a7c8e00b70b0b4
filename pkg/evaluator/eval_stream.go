package evaluator

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sandrolain/gorhyme/pkg/planner"
	"github.com/sandrolain/gorhyme/pkg/types"
)

// StreamResult holds the output of a single streaming evaluation step.
type StreamResult struct {
	// Value is the evaluated result for one input document, or nil when Err is set.
	Value interface{}
	// Explain is set when explain was requested.
	Explain *Explain
	// Err is non-nil when evaluation of a single document failed.
	// After a fatal I/O or JSON-decode error the channel is closed; per-document
	// evaluation errors are sent individually and the stream continues.
	Err error
}

// EvalStream reads a sequence of JSON values from r (e.g. NDJSON) and
// evaluates plan against each one, sending results on the returned channel.
//
// The channel is closed when all input has been consumed or the context is cancelled.
// A fatal I/O or JSON-decode error is sent as a StreamResult with a non-nil Err and
// then the channel is closed. Per-document evaluation errors are sent as individual
// StreamResult values and the stream continues to the next document.
//
// A caller that stops reading early must cancel ctx; the producer then
// exits without sending further results.
func (e *Evaluator) EvalStream(ctx context.Context, plan *planner.Plan, r io.Reader, opts ...EvalOption) (<-chan StreamResult, error) {
	if plan == nil || len(plan.Scopes) == 0 {
		return nil, fmt.Errorf("invalid plan")
	}

	ch := make(chan StreamResult, 16)

	// send gives up when the consumer went away and cancelled ctx
	send := func(res StreamResult) bool {
		select {
		case ch <- res:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(ch)

		next := types.NewDecoder(r)
		for {
			if err := ctx.Err(); err != nil {
				send(StreamResult{Err: err})
				return
			}

			data, err := next()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					send(StreamResult{Err: err})
				}
				return
			}

			res, err := e.Eval(ctx, plan, data, opts...)
			if err != nil {
				if !send(StreamResult{Err: err}) {
					return
				}
				continue
			}
			if !send(StreamResult{Value: res.Value, Explain: res.Explain}) {
				return
			}
		}
	}()

	return ch, nil
}
