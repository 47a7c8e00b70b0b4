package types

import "fmt"

// ErrorCode represents a query error code.
type ErrorCode string

// Error codes. The first letter selects the error class.
const (
	// S0xxx: surface syntax errors (ParseError)
	ErrStringNotClosed  ErrorCode = "S0101"
	ErrNumberOutOfRange ErrorCode = "S0102"
	ErrUnexpectedEnd    ErrorCode = "S0104"
	ErrSyntaxError      ErrorCode = "S0201"
	ErrExpectedToken    ErrorCode = "S0202"
	ErrMalformedPath    ErrorCode = "S0203"
	ErrBadSlot          ErrorCode = "S0204"
	ErrBadOperator      ErrorCode = "S0205"
	ErrTooDeep          ErrorCode = "S0206"
	ErrBadSurface       ErrorCode = "S0207"

	// V0xxx: variable resolution errors (UnboundVariableError)
	ErrNoGenerator     ErrorCode = "V0101"
	ErrCyclicVariable  ErrorCode = "V0102"
	ErrUnboundVariable ErrorCode = "V0103"

	// M0xxx: merge errors (MergeConflictError)
	ErrMergeConflict ErrorCode = "M0101"

	// U0xxx: function errors (UdfInvocationError)
	ErrUndefinedFunction ErrorCode = "U1001"
	ErrFunctionFailed    ErrorCode = "U1002"

	// T0xxx: runtime type errors (TypeError)
	ErrNonNumeric     ErrorCode = "T1001"
	ErrDivisionByZero ErrorCode = "T1002"
	ErrInvalidSpread  ErrorCode = "T1003"
	ErrInvalidInput   ErrorCode = "T1004"
	ErrNonScalarKey   ErrorCode = "T1005"
)

// ErrorClass groups error codes into the error taxonomy. A class can be used
// as errors.Is target:
//
//	if errors.Is(err, types.TypeError) { ... }
type ErrorClass string

// Error classes.
const (
	ParseError           ErrorClass = "ParseError"
	UnboundVariableError ErrorClass = "UnboundVariableError"
	MergeConflictError   ErrorClass = "MergeConflictError"
	UdfInvocationError   ErrorClass = "UdfInvocationError"
	TypeError            ErrorClass = "TypeError"
)

// Error implements the error interface.
func (c ErrorClass) Error() string { return string(c) }

// Class returns the class of the code.
func (c ErrorCode) Class() ErrorClass {
	if c == "" {
		return ""
	}
	switch c[0] {
	case 'S':
		return ParseError
	case 'V':
		return UnboundVariableError
	case 'M':
		return MergeConflictError
	case 'U':
		return UdfInvocationError
	default:
		return TypeError
	}
}

// Compile reports whether errors of this code are raised by compilation.
func (c ErrorCode) Compile() bool {
	cl := c.Class()
	return cl == ParseError || cl == UnboundVariableError
}

// Error represents a structured query error.
type Error struct {
	Code     ErrorCode
	Message  string
	Position int
	Token    string
	Err      error
}

// NewError creates a new query error.
func NewError(code ErrorCode, message string, position int) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Position: position,
	}
}

// Errorf creates a query error without position.
func Errorf(code ErrorCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...), -1)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("%s %s at position %d: %s", e.Code.Class(), e.Code, e.Position, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Code.Class(), e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches error classes and errors with the same code.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case ErrorClass:
		return e.Code.Class() == t
	case *Error:
		return t.Code == e.Code
	}
	return false
}

// WithToken adds token information to the error.
func (e *Error) WithToken(token string) *Error {
	e.Token = token
	return e
}

// WithCause wraps another error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}
