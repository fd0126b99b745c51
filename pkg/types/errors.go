package types

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a binding-layer failure.
type ErrorCode string

// The closed error taxonomy of the binding layer.
const (
	// ErrArgument: nil/missing required input, wrong declared type, empty
	// source.
	ErrArgument ErrorCode = "argument"
	// ErrType: a map key or collection element of a disallowed kind, or an
	// unsupported host type during encode.
	ErrType ErrorCode = "type"
	// ErrLimit: a defensive size/depth/cardinality ceiling was exceeded.
	ErrLimit ErrorCode = "limit"
	// ErrFormat: malformed JSON on decode, or a malformed symbol-marker
	// object.
	ErrFormat ErrorCode = "format"
	// ErrCompile: the engine rejected the source; carries the native
	// message.
	ErrCompile ErrorCode = "compile"
	// ErrEval: the engine failed to evaluate, or returned an empty success
	// payload.
	ErrEval ErrorCode = "eval"
	// ErrContract: an operation was attempted on a disposed or invalid
	// handle.
	ErrContract ErrorCode = "contract"
	// ErrAlloc: engine-side memory allocation failed while staging data.
	ErrAlloc ErrorCode = "alloc"
)

// Error is a structured binding-layer error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// NewError creates an error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates an error with the given code and a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithCause wraps another error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// CodeOf returns the code of err, unwrapping as needed, or the empty code
// when err is not a binding-layer error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
