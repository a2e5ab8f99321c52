package errors

import (
	stderrors "errors"
	"fmt"
)

// DomainError signals a business-rule violation raised by role logic.
// Kind is the symbolic title (for example "Insufficient Funds") and Detail a
// human readable explanation that may include the offending values.
type DomainError struct {
	Kind   string
	Detail string
	Values map[string]any
}

// NewDomain creates a DomainError.
func NewDomain(kind, detail string) *DomainError {
	return &DomainError{Kind: kind, Detail: detail}
}

// NewDomainf creates a DomainError with a formatted detail.
func NewDomainf(kind, format string, args ...any) *DomainError {
	return NewDomain(kind, fmt.Sprintf(format, args...))
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Detail == "" {
		return e.Kind
	}
	return e.Kind + ": " + e.Detail
}

// WithValue attaches an offending value. Returns the error for method chaining.
func (e *DomainError) WithValue(key string, value any) *DomainError {
	if e.Values == nil {
		e.Values = make(map[string]any)
	}
	e.Values[key] = value
	return e
}

// Is matches another *DomainError by kind.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Kind == e.Kind
}

// AsDomain extracts a *DomainError from the chain of err.
func AsDomain(err error) (*DomainError, bool) {
	var d *DomainError
	if stderrors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// IsDomain reports whether err is, or wraps, a *DomainError.
func IsDomain(err error) bool {
	_, ok := AsDomain(err)
	return ok
}
