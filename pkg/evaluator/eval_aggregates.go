package evaluator

import (
	"strings"

	"github.com/sandrolain/gorhyme/pkg/functions"
	"github.com/sandrolain/gorhyme/pkg/types"
)

// accumulator folds the contributions of a reduction.
type accumulator struct {
	kind  string
	n     int
	sum   float64
	items []interface{}
	text  strings.Builder
}

func newAccumulator(kind string) *accumulator {
	return &accumulator{kind: kind}
}

// add folds one contribution. Undefined values do not contribute.
func (a *accumulator) add(x interface{}) error {
	if x == nil {
		return nil
	}
	switch a.kind {
	case types.AggSum:
		n, err := functions.ToNumber(x)
		if err != nil {
			return types.Errorf(types.ErrNonNumeric, "sum over %s", describeValue(x)).WithCause(err)
		}
		a.sum += n
	case types.AggArray:
		a.items = append(a.items, x)
	case types.AggJoin:
		a.text.WriteString(types.StringOf(x))
	}
	a.n++
	return nil
}

// result returns the folded value. Without contributions count is zero and
// the other kinds are undefined.
func (a *accumulator) result() interface{} {
	if a.n == 0 {
		if a.kind == types.AggCount {
			return 0.0
		}
		return nil
	}
	switch a.kind {
	case types.AggSum:
		return a.sum
	case types.AggCount:
		return float64(a.n)
	case types.AggArray:
		return a.items
	case types.AggJoin:
		return a.text.String()
	}
	return nil
}

// pack packages the operand of a no-op reduction.
func (a *accumulator) pack(x interface{}) (interface{}, error) {
	if err := a.add(x); err != nil {
		return nil, err
	}
	return a.result(), nil
}
