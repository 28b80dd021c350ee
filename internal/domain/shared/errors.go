package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind classifies a domain error so callers can decide whether to retry,
// surface the error to a user, or treat it as a bug.
type ErrorKind string

const (
	KindValidation        ErrorKind = "VALIDATION_ERROR"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindDuplicate         ErrorKind = "DUPLICATE"
	KindInsufficientStock ErrorKind = "INSUFFICIENT_STOCK"
	KindConflict          ErrorKind = "CONFLICT"
	KindInvalidTransition ErrorKind = "INVALID_TRANSITION"
)

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind         `json:"kind"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Cause   error             `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Details[k])
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, ", "))
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the same error code, or a kind sentinel of the same kind.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	if t.Code == e.Code {
		return true
	}
	return t.Code == string(t.Kind) && t.Kind == e.Kind
}

// WithDetail returns a copy of the error carrying an extra detail entry
func (e *DomainError) WithDetail(key, value string) *DomainError {
	details := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	cp := *e
	cp.Details = details
	return &cp
}

// WithCause returns a copy of the error wrapping cause
func (e *DomainError) WithCause(cause error) *DomainError {
	cp := *e
	cp.Cause = cause
	return &cp
}

// NewDomainError creates a new domain error of the given kind
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *DomainError {
	return NewDomainError(KindValidation, code, message)
}

// NewNotFoundError creates a not-found error
func NewNotFoundError(code, message string) *DomainError {
	return NewDomainError(KindNotFound, code, message)
}

// NewDuplicateError creates a duplicate error
func NewDuplicateError(code, message string) *DomainError {
	return NewDomainError(KindDuplicate, code, message)
}

// NewInsufficientStockError creates an insufficient stock error
func NewInsufficientStockError(code, message string) *DomainError {
	return NewDomainError(KindInsufficientStock, code, message)
}

// NewConflictError creates a concurrency conflict error
func NewConflictError(code, message string) *DomainError {
	return NewDomainError(KindConflict, code, message)
}

// NewInvalidTransitionError creates an invalid state transition error
func NewInvalidTransitionError(code, message string) *DomainError {
	return NewDomainError(KindInvalidTransition, code, message)
}

// Kind sentinels. errors.Is(err, ErrNotFound) matches every NOT_FOUND error.
var (
	ErrValidation        = NewValidationError(string(KindValidation), "Invalid input provided")
	ErrNotFound          = NewNotFoundError(string(KindNotFound), "Resource not found")
	ErrDuplicate         = NewDuplicateError(string(KindDuplicate), "Resource already exists")
	ErrInsufficientStock = NewInsufficientStockError(string(KindInsufficientStock), "Insufficient stock available")
	ErrConflict          = NewConflictError(string(KindConflict), "Resource was modified by another process")
	ErrInvalidTransition = NewInvalidTransitionError(string(KindInvalidTransition), "Operation not allowed in current state")
)

// KindOf returns the kind of the first DomainError in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err carries a DomainError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
