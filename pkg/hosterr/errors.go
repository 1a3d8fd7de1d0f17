// Package hosterr provides the coded error type shared by the tree,
// connector and instance packages.
//
// Every failure that is surfaced to a caller carries an ErrorCode so that an
// API layer can translate each kind into a distinct response status without
// string matching (see GRPCStatus).
package hosterr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error represents an error with additional context for troubleshooting.
type Error struct {
	// Code identifies the error type
	Code ErrorCode

	// Message is the primary error message
	Message string

	// Context provides additional details
	Context map[string]interface{}

	// Cause is the underlying error (if any)
	Cause error

	// Suggestion provides actionable guidance for resolving the error
	Suggestion string
}

// ErrorCode identifies categories of errors
type ErrorCode string

const (
	// Tree structure errors
	ErrorCodeInvalidName     ErrorCode = "INVALID_NAME"
	ErrorCodeInvalidDatatype ErrorCode = "INVALID_DATATYPE"
	ErrorCodeNotAContainer   ErrorCode = "NOT_A_CONTAINER"

	// Process lifecycle errors
	ErrorCodeExecutableNotFound ErrorCode = "EXECUTABLE_NOT_FOUND"
	ErrorCodeProcessNotRunning  ErrorCode = "PROCESS_NOT_RUNNING"
	ErrorCodeProcessStartFailed ErrorCode = "PROCESS_START_FAILED"

	// Connector errors
	ErrorCodeSchemaNotFound   ErrorCode = "SCHEMA_NOT_FOUND"
	ErrorCodeInvalidManifest  ErrorCode = "INVALID_MANIFEST"
	ErrorCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"

	// Instance management errors
	ErrorCodeInstanceExists    ErrorCode = "INSTANCE_EXISTS"
	ErrorCodeInstanceNotFound  ErrorCode = "INSTANCE_NOT_FOUND"
	ErrorCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrorCodeInvalidArgument   ErrorCode = "INVALID_ARGUMENT"
	ErrorCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
	ErrorCodeConversionFailed  ErrorCode = "CONVERSION_FAILED"
)

// Error implements the error interface
func (e *Error) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(contextParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause: %v", e.Cause))
	}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, "; ")
}

// Unwrap returns the underlying error for errors.Is/As compatibility
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code. This lets
// callers compare against the zero-context values returned by the
// constructors below, e.g. errors.Is(err, &Error{Code: ErrorCodeInvalidName}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error with the given code and message
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCause adds the underlying cause to the error
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithSuggestion adds an actionable suggestion to the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// IsErrorCode checks if an error (or anything it wraps) has the specified error code
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// GetErrorCode returns the error code from an error, or empty string if not an *Error
func GetErrorCode(err error) ErrorCode {
	var hostErr *Error
	if errors.As(err, &hostErr) {
		return hostErr.Code
	}
	return ""
}

// GetSuggestion returns the suggestion from an error, or empty string if not available
func GetSuggestion(err error) string {
	var hostErr *Error
	if errors.As(err, &hostErr) {
		return hostErr.Suggestion
	}
	return ""
}
