// Package errors provides coded domain errors for the campuslib services.
//
// Usage:
//
//	// In services - return typed errors
//	if total > 0 {
//	    return false, errors.ErrUnpaidFine
//	}
//
//	// In callers - check with errors.Is
//	if errors.Is(err, errors.ErrUnpaidFine) {
//	    fmt.Println("pay your fines first")
//	}
//
//	// Or switch on the Code
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    os.Exit(domainErr.Code.ExitCode())
//	}
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is  = errors.Is
	As  = errors.As
	New = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeValidation         Code = "VALIDATION"
	CodeInternal           Code = "INTERNAL"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"

	// Circulation codes.
	CodeUnpaidFine     Code = "UNPAID_FINE"
	CodeItemNotFound   Code = "ITEM_NOT_FOUND"
	CodeNoActiveBorrow Code = "NO_ACTIVE_BORROW"
	CodeInvalidAmount  Code = "INVALID_AMOUNT"
	CodeOutOfStock     Code = "OUT_OF_STOCK"
)

// ExitCode returns the process exit status the command line uses for a code.
// 1 is reserved for unexpected failures.
func (c Code) ExitCode() int {
	switch c {
	case CodeValidation, CodeInvalidAmount:
		return 2
	case CodeNotFound, CodeItemNotFound, CodeNoActiveBorrow:
		return 3
	case CodeUnpaidFine:
		return 4
	case CodeOutOfStock:
		return 5
	case CodeAlreadyExists:
		return 6
	case CodeInvalidCredentials:
		return 7
	default:
		return 1
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// ExitCode returns the exit status for this error.
func (e *Error) ExitCode() int {
	return e.Code.ExitCode()
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists      = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrValidation         = &Error{Code: CodeValidation, Message: "validation error"}
	ErrInternal           = &Error{Code: CodeInternal, Message: "internal error"}
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials, Message: "invalid credentials"}

	ErrUnpaidFine     = &Error{Code: CodeUnpaidFine, Message: "unpaid fines must be settled first"}
	ErrItemNotFound   = &Error{Code: CodeItemNotFound, Message: "item not found"}
	ErrNoActiveBorrow = &Error{Code: CodeNoActiveBorrow, Message: "no active borrow for this item and student"}
	ErrInvalidAmount  = &Error{Code: CodeInvalidAmount, Message: "payment must be positive"}
	ErrOutOfStock     = &Error{Code: CodeOutOfStock, Message: "item is out of stock"}
)

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// AlreadyExists creates an already exists error.
func AlreadyExists(msg string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// ItemNotFoundf creates an item not found error naming the ISBN.
func ItemNotFoundf(isbn string) *Error {
	return &Error{Code: CodeItemNotFound, Message: fmt.Sprintf("item %s not found", isbn)}
}

// InvalidCredentials creates an invalid credentials error.
func InvalidCredentials(msg string) *Error {
	return &Error{Code: CodeInvalidCredentials, Message: msg}
}

// CodeOf returns the code carried by err, or CodeInternal when err is not a
// domain error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
