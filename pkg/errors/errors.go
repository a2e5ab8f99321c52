// SPDX-License-Identifier: Apache-2.0
// Package errors provides the typed errors produced by the role dispatch runtime.
//
// Three disjoint categories exist: structural errors raised while wiring or
// resolving roles, usage errors raised at a context boundary and domain errors
// raised by role logic. Dispatch and context code never produce domain errors.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies runtime errors for callers and telemetry.
type ErrorCode string

const (
	// CodeMethodNotFound indicates no declared capability lists the method.
	CodeMethodNotFound ErrorCode = "METHOD_NOT_FOUND"

	// CodeRoleProviderMissing indicates a capability matched but no provider is registered for it.
	CodeRoleProviderMissing ErrorCode = "ROLE_PROVIDER_MISSING"

	// CodeRoleImplementationMissing indicates the provider lacks the method.
	CodeRoleImplementationMissing ErrorCode = "ROLE_IMPLEMENTATION_MISSING"

	// CodeConformanceMismatch indicates the receiver does not satisfy the capability contract.
	CodeConformanceMismatch ErrorCode = "CONFORMANCE_MISMATCH"

	// CodeArityMismatch indicates the call argument count does not match the signature.
	CodeArityMismatch ErrorCode = "ARITY_MISMATCH"

	// CodeRegistration indicates a provider could not be registered.
	CodeRegistration ErrorCode = "REGISTRATION_ERROR"

	// CodeInvalidInput indicates invalid arguments at a context boundary.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Category groups error codes into the kinds callers act on.
type Category string

const (
	CategoryStructural Category = "structural"
	CategoryDomain     Category = "domain"
	CategoryUsage      Category = "usage"
	CategoryUnknown    Category = "unknown"
)

// Error is a typed structural or usage error with context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type Error struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code, so sentinel comparisons work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *Error) MarshalJSON() ([]byte, error) {
	type Alias Error
	errText := ""
	if e.Err != nil {
		errText = e.Err.Error()
	}
	return json.Marshal(&struct {
		Message     string `json:"message"`
		Code        string `json:"code"`
		Category    string `json:"category"`
		Err         string `json:"error,omitempty"`
		Recoverable bool   `json:"recoverable"`
		*Alias
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Category:    string(e.Category()),
		Err:         errText,
		Recoverable: e.Recoverable,
		Alias:       (*Alias)(e),
	})
}

// New creates a new Error with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		Attributes: make(map[string]string),
	}
}

// Newf creates a new Error with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
// Returns the error for method chaining.
func (e *Error) WithAttribute(key, value string) *Error {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

// Category reports which kind of failure the code belongs to.
func (e *Error) Category() Category {
	return categoryOf(e.Code)
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *Error) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// AsError attempts to convert an error to an *Error.
// Domain errors and foreign errors are wrapped as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return New(CodeInternal, "wrapped error", err)
}

// Is reports whether err carries an *Error with the given code.
func Is(err error, code ErrorCode) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// CodeOf returns the code of err, "DOMAIN" for domain errors, or "" when unknown.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	if d, ok := AsDomain(err); ok {
		return "DOMAIN:" + d.Kind
	}
	var e *Error
	if stderrors.As(err, &e) {
		return string(e.Code)
	}
	return "UNKNOWN"
}

// CategoryOf classifies any error returned by the runtime.
func CategoryOf(err error) Category {
	if err == nil {
		return CategoryUnknown
	}
	if IsDomain(err) {
		return CategoryDomain
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Category()
	}
	return CategoryUnknown
}

func categoryOf(code ErrorCode) Category {
	switch code {
	case CodeMethodNotFound, CodeRoleProviderMissing, CodeRoleImplementationMissing,
		CodeConformanceMismatch, CodeArityMismatch, CodeRegistration:
		return CategoryStructural
	case CodeInvalidInput:
		return CategoryUsage
	default:
		return CategoryUnknown
	}
}
