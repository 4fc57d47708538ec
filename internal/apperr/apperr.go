package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport-level mapping
type Kind int

const (
	// KindValidation is a missing, malformed or out-of-range input field
	KindValidation Kind = iota
	// KindNotFound covers both absent entities and ownership mismatches,
	// so callers cannot probe for existence
	KindNotFound
	// KindConflict is a uniqueness violation (duplicate email)
	KindConflict
	// KindAuth is invalid credentials or an invalid/expired token
	KindAuth
	// KindDependency is an unexpected failure of a store or repository
	KindDependency
)

// Error is the typed error surfaced to the request gateway
type Error struct {
	Kind    Kind
	Message string
	// Fields maps field name to reason for validation errors
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindValidation && len(e.Fields) > 0 {
		return fmt.Sprintf("validation failed: %v", e.Fields)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation builds a field-level validation error
func Validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

// ValidationField builds a validation error for a single field
func ValidationField(field, reason string) *Error {
	return Validation(map[string]string{field: reason})
}

// NotFound builds an absent-or-not-authorized error
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict builds a uniqueness-violation error
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// Auth builds a credential or token error
func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

// Dependency wraps an unexpected store or repository failure; the cause is
// logged by the caller, never exposed in the message
func Dependency(message string, err error) *Error {
	return &Error{Kind: KindDependency, Message: message, Err: err}
}

// KindOf extracts the kind of err, defaulting to KindDependency
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindDependency
}

// FieldsOf extracts the validation field map of err, if any
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
