// Package errors provides structured error types for crateindex.
//
// Every failure that ends a run carries a machine-readable [Code] so the CLI
// can pick an exit status and the HTTP API can pick a response status without
// string matching:
//   - SOURCE_LOAD: the snapshot archive is missing, unreadable or corrupt
//   - VERSION_PARSE: a version row is not a valid semantic version
//   - DECODE: a binary artifact is truncated or malformed
//   - NOT_MODIFIED / NO_LAST_MODIFIED: outcomes of the conditional download
//   - INVALID_*: bad user input or configuration
//
// # Usage
//
//	err := errors.Wrap(errors.ErrCodeSourceLoad, cause, "open %s", path)
//	if errors.Is(err, errors.ErrCodeSourceLoad) {
//	    // no output was written
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Pipeline errors
	ErrCodeSourceLoad   Code = "SOURCE_LOAD"
	ErrCodeVersionParse Code = "VERSION_PARSE"
	ErrCodeDecode       Code = "DECODE"

	// Download outcomes
	ErrCodeNotModified    Code = "NOT_MODIFIED"
	ErrCodeNoLastModified Code = "NO_LAST_MODIFIED"
	ErrCodeNetwork        Code = "NETWORK_ERROR"

	// Input validation errors
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidPackage Code = "INVALID_PACKAGE"
	ErrCodeInvalidConfig  Code = "INVALID_CONFIG"

	// Resource errors
	ErrCodeNotFound Code = "NOT_FOUND"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
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

// Is reports whether any *Error in err's chain carries code.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
