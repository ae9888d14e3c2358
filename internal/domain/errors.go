// Package domain defines core types, interfaces, and errors for the
// tabular job service.
package domain

import "fmt"

// NotFoundError indicates a resource (path, file, or job token) was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// UnsupportedFormatError indicates a file extension or output encoding
// outside the supported set.
type UnsupportedFormatError struct {
	Message string
}

func (e *UnsupportedFormatError) Error() string { return e.Message }

// UnsupportedOperatorError indicates a filter operator the interpreter
// does not implement.
type UnsupportedOperatorError struct {
	Message string
}

func (e *UnsupportedOperatorError) Error() string { return e.Message }

// UnknownColumnError indicates a plan referenced a column that does not
// exist in the source table.
type UnknownColumnError struct {
	Message string
}

func (e *UnknownColumnError) Error() string { return e.Message }

// ComputationError indicates a failure during loading or interpreting that
// is not covered by a more specific error type.
type ComputationError struct {
	Message string
}

func (e *ComputationError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrUnsupportedFormat creates an UnsupportedFormatError with a formatted message.
func ErrUnsupportedFormat(format string, args ...interface{}) *UnsupportedFormatError {
	return &UnsupportedFormatError{Message: fmt.Sprintf(format, args...)}
}

// ErrUnsupportedOperator creates an UnsupportedOperatorError with a formatted message.
func ErrUnsupportedOperator(format string, args ...interface{}) *UnsupportedOperatorError {
	return &UnsupportedOperatorError{Message: fmt.Sprintf(format, args...)}
}

// ErrUnknownColumn creates an UnknownColumnError with a formatted message.
func ErrUnknownColumn(format string, args ...interface{}) *UnknownColumnError {
	return &UnknownColumnError{Message: fmt.Sprintf(format, args...)}
}

// ErrComputation creates a ComputationError with a formatted message.
func ErrComputation(format string, args ...interface{}) *ComputationError {
	return &ComputationError{Message: fmt.Sprintf(format, args...)}
}
