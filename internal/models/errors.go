package models

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError is returned when caller input is rejected before any remote
// call is made.
type ValidationError struct {
	Fields []FieldError
}

// Add records a problem with field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns e as an error when it holds at least one field, nil otherwise.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: e.Fields}
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// StoreError is returned when the remote document store rejects an operation.
type StoreError struct {
	// Op is the store operation that failed (list, create, update, delete).
	Op string
	// Reason is a short machine-readable cause: permission, not_found, invalid, transport.
	Reason string
	Err    error
}

// Store error reasons.
const (
	ReasonPermission = "permission"
	ReasonNotFound   = "not_found"
	ReasonInvalid    = "invalid"
	ReasonTransport  = "transport"
)

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Op, e.Reason, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreError reports whether err is or wraps a *StoreError.
func IsStoreError(err error) bool {
	var serr *StoreError
	return errors.As(err, &serr)
}

// Authentication failures surfaced by the identity provider.
var (
	ErrInvalidCredential = errors.New("invalid email or password")
	ErrNetwork           = errors.New("network error")
	ErrPopupClosed       = errors.New("sign-in was cancelled")
	ErrEmailInUse        = errors.New("email already registered")
	ErrWeakPassword      = errors.New("password must be at least 6 characters")
)

// AuthError wraps one of the authentication sentinels with detail from the provider.
type AuthError struct {
	Kind   error
	Detail string
}

func (e *AuthError) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Detail)
}

func (e *AuthError) Unwrap() error {
	return e.Kind
}
