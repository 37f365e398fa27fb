// Package errors defines the failure taxonomy shared by the executor and the
// desktop collaborators it drives.
package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"sync"
)

// Code identifies a failure kind.
type Code string

const (
	CodeActionFailed     Code = "ACTION_FAILED"
	CodeAppNotFound      Code = "APP_NOT_FOUND"
	CodeValidationFailed Code = "VALIDATION_FAILED"
	CodeTimeout          Code = "TIMEOUT"
	CodeNotFound         Code = "NOT_FOUND"
	CodeUnknownAction    Code = "UNKNOWN_ACTION"
	CodeCanceled         Code = "CANCELED"
)

// Attributes are the default properties of a code.
type Attributes struct {
	Message     string
	Recoverable bool
}

var (
	registryMu sync.RWMutex
	registry   = map[Code]Attributes{
		CodeActionFailed:     {Message: "action failed", Recoverable: true},
		CodeAppNotFound:      {Message: "application not found", Recoverable: false},
		CodeValidationFailed: {Message: "plan rejected by safety policy", Recoverable: false},
		CodeTimeout:          {Message: "timed out", Recoverable: false},
		CodeNotFound:         {Message: "not found on screen", Recoverable: false},
		CodeUnknownAction:    {Message: "unknown action", Recoverable: false},
		CodeCanceled:         {Message: "canceled", Recoverable: false},
	}
)

// Register adds or replaces the attributes of a code.
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[code] = attr
}

// AttributesOf returns the attributes for code, falling back to ActionFailed.
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if attr, ok := registry[code]; ok {
		return attr
	}
	return registry[CodeActionFailed]
}

// Error is the normalized failure of one action attempt.
type Error struct {
	code        Code
	message     string
	cause       error
	recoverable *bool
}

// Option customizes a new Error.
type Option func(*Error)

// WithRecoverable overrides the code's default recoverability.
func WithRecoverable(recoverable bool) Option {
	return func(e *Error) {
		e.recoverable = &recoverable
	}
}

// New creates an error of the given code. An empty message uses the code's
// default message.
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = AttributesOf(code).Message
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Wrap creates an error of the given code around cause.
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

// ActionFailed is shorthand for a recoverable or fatal adapter failure.
func ActionFailed(message string, recoverable bool) *Error {
	return New(CodeActionFailed, message, WithRecoverable(recoverable))
}

// Errorf is ActionFailed with formatting, recoverable by default.
func Errorf(format string, args ...any) *Error {
	return New(CodeActionFailed, fmt.Sprintf(format, args...))
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches another *Error by code.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeActionFailed
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Recoverable reports whether the executor may retry after this failure.
func (e *Error) Recoverable() bool {
	if e == nil {
		return false
	}
	if e.recoverable != nil {
		return *e.recoverable
	}
	return AttributesOf(e.code).Recoverable
}

// From extracts an *Error from err's chain.
func From(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var target *Error
	if stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the code of err, or ActionFailed for foreign errors.
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	return CodeActionFailed
}

// Normalize converts any error raised by a collaborator into an *Error so the
// executor can treat every failure uniformly. Foreign errors become
// recoverable ActionFailed; context cancellation is never recoverable.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := From(err); ok {
		return e
	}
	if stdErrors.Is(err, context.Canceled) {
		return Wrap(CodeCanceled, err, "canceled")
	}
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return Wrap(CodeTimeout, err, "deadline exceeded")
	}
	return Wrap(CodeActionFailed, err, "action failed", WithRecoverable(true))
}

// IsRecoverable reports whether err permits another attempt.
func IsRecoverable(err error) bool {
	return Normalize(err).Recoverable()
}

// Sentinels for errors.Is comparisons by code.
var (
	ErrActionFailed  = New(CodeActionFailed, "")
	ErrAppNotFound   = New(CodeAppNotFound, "")
	ErrTimeout       = New(CodeTimeout, "")
	ErrNotFound      = New(CodeNotFound, "")
	ErrUnknownAction = New(CodeUnknownAction, "")
)
