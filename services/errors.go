package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies service failures for the HTTP boundary
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindPermissionDenied
	KindValidation
	KindInvariant
)

// Error is a service-level error carrying its taxonomy kind
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound builds an error for a missing entity
func NotFound(format string, v ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, v...)}
}

// PermissionDenied builds an error for a failed role or ownership check
func PermissionDenied(format string, v ...interface{}) *Error {
	return &Error{Kind: KindPermissionDenied, Message: fmt.Sprintf(format, v...)}
}

// Validation builds an error for bad input data
func Validation(format string, v ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, v...)}
}

// Invariant builds an error for a rejected state transition
func Invariant(format string, v ...interface{}) *Error {
	return &Error{Kind: KindInvariant, Message: fmt.Sprintf(format, v...)}
}

// Internal wraps an unexpected storage or infrastructure error
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf extracts the taxonomy kind from an error chain
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
