// Package errors provides structured error handling for the REST client
// scaffolding. Every error carries a type from a small taxonomy so callers can
// tell configuration mistakes from bad remote data.
package errors

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeRateLimit represents rate limit errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConnection represents connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeData represents malformed remote payloads
	ErrorTypeData ErrorType = "data"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
	// ErrorTypeLocator represents a path that cannot be applied to the shape of a record
	ErrorTypeLocator ErrorType = "locator"
	// ErrorTypeCoercion represents a present value that cannot become the target type
	ErrorTypeCoercion ErrorType = "coercion"
	// ErrorTypeSplit represents an invalid window or a broken partition
	ErrorTypeSplit ErrorType = "split"
	// ErrorTypeColumnImport represents a failure attributed to one column
	ErrorTypeColumnImport ErrorType = "column_import"
)

// Error represents a structured error with context. Origin is the file:line
// that first raised the failure; wrapping keeps it.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Origin  string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Origin:  caller(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Origin:  caller(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	return wrap(err, errType, message)
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return wrap(err, errType, fmt.Sprintf(format, args...))
}

func wrap(err error, errType ErrorType, message string) *Error {
	e := &Error{Type: errType, Message: message, Cause: err}
	var inner *Error
	if errors.As(err, &inner) {
		e.Origin = inner.Origin
	} else {
		e.Origin = caller(3)
	}
	return e
}

// IsRetryable returns true if the error is retryable. Locator, coercion and
// split errors describe the data or the configuration and never are.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeTimeout, ErrorTypeConnection:
		return true
	default:
		return false
	}
}

// IsType checks if any error in the chain is of the given type
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetType returns the type of the outermost structured error, or
// ErrorTypeInternal for plain errors.
func GetType(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// Detail returns the value stored under key by the outermost error in the
// chain that carries it, so a wrapper can add context without hiding the
// attribution of the error it wraps.
func Detail(err error, key string) (interface{}, bool) {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return nil, false
		}
		if v, ok := e.Details[key]; ok {
			return v, true
		}
		err = e.Cause
	}
	return nil, false
}

// Is and As re-export the standard library helpers so callers need one import.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Join combines several errors into one.
func Join(errs ...error) error { return errors.Join(errs...) }

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
