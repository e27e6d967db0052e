// Package errors provides structured error types for the BOM manager.
//
// Every failure that leaves a core operation carries a machine-readable
// [Code], which lets the result envelope, the CLI and the HTTP API classify
// it without string matching:
//   - VALIDATION_ERROR: missing required field, non-positive quantity
//   - CYCLE_ERROR: an edge insertion would close a directed cycle
//   - DANGLING_REFERENCE: a relationship endpoint is absent from the catalog
//   - NOT_FOUND: a part, relationship or snapshot id is absent
//   - CONFLICT: a create collided with an existing id
//   - INTERNAL_ERROR: anything unexpected, including recovered panics
//
// # Usage
//
//	err := errors.New(errors.ErrCodeValidation, "qty must be > 0")
//	if errors.Is(err, errors.ErrCodeValidation) {
//	    // reject input
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInternal, ioErr, "save state")
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeValidation    Code = "VALIDATION_ERROR"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"

	// Graph invariant errors
	ErrCodeCycle             Code = "CYCLE_ERROR"
	ErrCodeDanglingReference Code = "DANGLING_REFERENCE"

	// Lookup errors
	ErrCodeNotFound Code = "NOT_FOUND"
	ErrCodeConflict Code = "CONFLICT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error or *CycleError with a
// matching code.
func Is(err error, code Code) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error carries no code.
func GetCode(err error) Code {
	var ce *CycleError
	if errors.As(err, &ce) {
		return ErrCodeCycle
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For coded errors, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var ce *CycleError
	if errors.As(err, &ce) {
		return ce.message()
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s", e.Message, UserMessage(e.Cause))
		}
		return e.Message
	}
	return err.Error()
}

// CycleError reports an edge insertion that would close a directed cycle.
// Path starts and ends at the same part number.
type CycleError struct {
	Path []string
}

// NewCycle returns a CycleError for the given closed path.
func NewCycle(path []string) *CycleError {
	return &CycleError{Path: append([]string(nil), path...)}
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCodeCycle, e.message())
}

func (e *CycleError) message() string {
	return "Cycle detected: " + strings.Join(e.Path, " -> ")
}

// Code returns the error code for this error type.
func (e *CycleError) Code() Code {
	return ErrCodeCycle
}
