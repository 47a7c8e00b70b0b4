package functions

import (
	"math"

	"github.com/sandrolain/gorhyme/pkg/types"
)

// ToNumber converts a value of the value model, or any Go number, to
// float64. Other values are a TypeError.
func ToNumber(v interface{}) (float64, error) {
	switch n := types.Normalize(v).(type) {
	case float64:
		return n, nil
	case nil:
		return 0, types.Errorf(types.ErrNonNumeric, "expected a number, got nothing")
	default:
		return 0, types.Errorf(types.ErrNonNumeric, "expected a number, got %s", describe(n))
	}
}

// Plus adds two numbers. An undefined operand makes the result undefined.
func Plus(a, b interface{}) (interface{}, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	x, y, err := operands("plus", a, b)
	if err != nil {
		return nil, err
	}
	return x + y, nil
}

// Div divides a by b. The quotient is truncated when both operands are
// integral.
func Div(a, b interface{}) (interface{}, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	x, y, err := operands("div", a, b)
	if err != nil {
		return nil, err
	}
	if y == 0 {
		return nil, types.Errorf(types.ErrDivisionByZero, "div by zero")
	}
	if x == math.Trunc(x) && y == math.Trunc(y) {
		return math.Trunc(x / y), nil
	}
	return x / y, nil
}

// FDiv divides a by b in floating point.
func FDiv(a, b interface{}) (interface{}, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	x, y, err := operands("fdiv", a, b)
	if err != nil {
		return nil, err
	}
	if y == 0 {
		return nil, types.Errorf(types.ErrDivisionByZero, "fdiv by zero")
	}
	return x / y, nil
}

// Arith dispatches on the operator kind.
func Arith(kind string, a, b interface{}) (interface{}, error) {
	switch kind {
	case types.OpPlus:
		return Plus(a, b)
	case types.OpDiv:
		return Div(a, b)
	case types.OpFDiv:
		return FDiv(a, b)
	}
	return nil, types.Errorf(types.ErrBadOperator, "unknown operator %s", kind)
}

func operands(op string, a, b interface{}) (float64, float64, error) {
	x, err := ToNumber(a)
	if err != nil {
		return 0, 0, types.Errorf(types.ErrNonNumeric, "left operand of %s is %s", op, describe(a)).WithCause(err)
	}
	y, err := ToNumber(b)
	if err != nil {
		return 0, 0, types.Errorf(types.ErrNonNumeric, "right operand of %s is %s", op, describe(b)).WithCause(err)
	}
	return x, y, nil
}

func describe(v interface{}) string {
	switch x := v.(type) {
	case string:
		return "the string " + quote(x)
	case bool:
		return "a boolean"
	case []interface{}:
		return "an array"
	case *types.Object, map[string]interface{}:
		return "an object"
	case nil:
		return "nothing"
	}
	return "a non-numeric value"
}

func quote(s string) string {
	if len(s) > 20 {
		s = s[:20] + "..."
	}
	return `"` + s + `"`
}
