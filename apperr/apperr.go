package apperr

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies an error for the transport layer.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindNotReady     Kind = "not_ready"
	KindConflict     Kind = "conflict"
	KindTransient    Kind = "transient"
	KindInternal     Kind = "internal"
)

// Error carries a user facing message and, for validation errors, the per-field messages.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Unauthorized(message string) *Error { return New(KindUnauthorized, message, nil) }
func Forbidden(message string) *Error    { return New(KindForbidden, message, nil) }
func NotFound(message string) *Error     { return New(KindNotFound, message, nil) }
func NotReady(message string) *Error     { return New(KindNotReady, message, nil) }
func Conflict(message string) *Error     { return New(KindConflict, message, nil) }

// Transient marks a rolled back operation the caller may retry.
func Transient(message string, err error) *Error { return New(KindTransient, message, err) }

func Internal(message string, err error) *Error { return New(KindInternal, message, err) }

// Validation builds a validation error from field -> message pairs.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// Field is shorthand for a validation error on a single field.
func Field(field, message string) *Error {
	return Validation(message, map[string]string{field: message})
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the kind of err; errors outside the taxonomy are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
