// Package errors provides the typed error taxonomy used across the pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Type identifies the category of error
type Type string

const (
	// TypeConfig is a fatal misconfiguration (bad bounding box, unknown dataset or tool)
	TypeConfig Type = "CONFIG_ERROR"

	// TypeCredential is a missing or empty access token
	TypeCredential Type = "CREDENTIAL_ERROR"

	// TypeFetch is a network or HTTP failure talking to the elevation service
	TypeFetch Type = "FETCH_ERROR"

	// TypeFormat is an unreadable or unexpected raster/header
	TypeFormat Type = "FORMAT_ERROR"

	// TypeToolchain is a failure of the external analysis executable
	TypeToolchain Type = "TOOLCHAIN_ERROR"

	// TypeInternal indicates an internal error
	TypeInternal Type = "INTERNAL_ERROR"
)

// Error represents a domain error with context
type Error struct {
	Type    Type                   `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Type, e.Message)
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, e.Context[k])
		}
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e *Error) Is(t Type) bool {
	return e.Type == t
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new error
func New(errType Type, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new formatted error
func Newf(errType Type, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with context
func Wrap(errType Type, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// IsType reports whether any error in err's chain is a *Error of type t.
func IsType(err error, t Type) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// TypeOf returns the type of the first *Error in err's chain, or TypeInternal.
func TypeOf(err error) Type {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return TypeInternal
}

// Configuration creates a configuration error
func Configuration(format string, args ...interface{}) *Error {
	return Newf(TypeConfig, format, args...)
}

// Credential creates a credential error
func Credential(message string, cause error) *Error {
	return Wrap(TypeCredential, message, cause)
}

// Fetch creates a fetch error; url must already be redacted.
func Fetch(message, url string, cause error) *Error {
	return Wrap(TypeFetch, message, cause).WithContext("url", url)
}

// Format creates a format error for the offending file
func Format(path, message string, cause error) *Error {
	return Wrap(TypeFormat, message, cause).WithContext("path", path)
}

// Toolchain creates a toolchain error
func Toolchain(tool, message string, cause error) *Error {
	return Wrap(TypeToolchain, message, cause).WithContext("tool", tool)
}

// Internal creates an internal error
func Internal(message string, cause error) *Error {
	return Wrap(TypeInternal, message, cause)
}
