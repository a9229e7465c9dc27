// Package apperr carries the error taxonomy shared by the billing core:
// every failure that crosses a service boundary is an *Error with a Kind
// the HTTP layer can map without string matching.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindIntegrity  Kind = "integrity"
	KindNotFound   Kind = "not_found"
	KindSecurity   Kind = "security"
	KindExternal   Kind = "external"
	KindInternal   Kind = "internal"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Field   string // validation: offending field
	Entity  string // integrity/not_found: conflicting entity
	Detail  string
	Err     error
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(code, message string) *Error { return New(KindValidation, code, message) }
func Integrity(code, message string) *Error  { return New(KindIntegrity, code, message) }
func NotFound(code, message string) *Error   { return New(KindNotFound, code, message) }
func Security(code, message string) *Error   { return New(KindSecurity, code, message) }
func External(code, message string) *Error   { return New(KindExternal, code, message) }

func (e *Error) Error() string {
	msg := e.Code + ": " + e.Message
	if e.Field != "" {
		msg += " (field=" + e.Field + ")"
	}
	if e.Entity != "" {
		msg += " (entity=" + e.Entity + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so decorated copies still satisfy errors.Is against
// their sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func (e *Error) clone() *Error {
	c := *e
	return &c
}

func (e *Error) WithField(field string) *Error {
	c := e.clone()
	c.Field = field
	return c
}

func (e *Error) WithEntity(entity string) *Error {
	c := e.clone()
	c.Entity = entity
	return c
}

func (e *Error) WithDetail(format string, args ...any) *Error {
	c := e.clone()
	c.Detail = fmt.Sprintf(format, args...)
	return c
}

func (e *Error) Wrap(err error) *Error {
	c := e.clone()
	c.Err = err
	return c
}

// Retryable reports whether the caller may retry with its own backoff.
func (e *Error) Retryable() bool { return e.Kind == KindExternal }

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As is a shorthand for errors.As into *Error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
