package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/c360studio/tagmirror/backend"
)

// ErrorKind classifies workflow failures. The set is closed; anything a
// caller cannot match falls into ErrUnknown.
type ErrorKind string

const (
	ErrInvalidInput       ErrorKind = "invalid_input"
	ErrNotFound           ErrorKind = "not_found"
	ErrTransport          ErrorKind = "transport"
	ErrRateLimit          ErrorKind = "rate_limit"
	ErrDuplicateName      ErrorKind = "duplicate_name"
	ErrAnalysisFailed     ErrorKind = "analysis_failed"
	ErrCircularDependency ErrorKind = "circular_dependency"
	ErrMissingDependency  ErrorKind = "missing_dependency"
	ErrCreationFailed     ErrorKind = "creation_failed"
	ErrValidationFailed   ErrorKind = "validation_failed"
	ErrWorkflowAborted    ErrorKind = "workflow_aborted"
	ErrStateInvalid       ErrorKind = "state_invalid"
	ErrUnknown            ErrorKind = "unknown"
)

// IsValid reports whether the kind is a member of the closed set.
func (k ErrorKind) IsValid() bool {
	switch k {
	case ErrInvalidInput, ErrNotFound, ErrTransport, ErrRateLimit,
		ErrDuplicateName, ErrAnalysisFailed, ErrCircularDependency,
		ErrMissingDependency, ErrCreationFailed, ErrValidationFailed,
		ErrWorkflowAborted, ErrStateInvalid, ErrUnknown:
		return true
	}
	return false
}

// Error is a classified workflow failure. Recoverable errors let the run
// continue; everything else is fatal to the session.
type Error struct {
	Kind        ErrorKind      `json:"kind"`
	Component   string         `json:"component"`
	Message     string         `json:"message"`
	Details     map[string]any `json:"details,omitempty"`
	Recoverable bool           `json:"recoverable"`
	Err         error          `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (kind %s)", e.Component, e.Message, e.Kind)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified error. An invalid kind is normalized to
// ErrUnknown rather than widening the set.
func NewError(kind ErrorKind, component, message string) *Error {
	if !kind.IsValid() {
		kind = ErrUnknown
	}
	return &Error{Kind: kind, Component: component, Message: message}
}

// WrapError lifts an arbitrary error into a workflow error, mapping
// backend classifications onto workflow kinds. Duplicate names are the
// only recoverable backend failure.
func WrapError(component string, err error) *Error {
	var we *Error
	if errors.As(err, &we) {
		return we
	}

	var be *backend.Error
	if errors.As(err, &be) {
		kind := ErrCreationFailed
		recoverable := false
		switch be.Kind {
		case backend.ErrorKindRateLimit:
			kind = ErrRateLimit
		case backend.ErrorKindDuplicateName:
			kind = ErrDuplicateName
			recoverable = true
		case backend.ErrorKindNotFound:
			kind = ErrNotFound
		case backend.ErrorKindTransport:
			kind = ErrTransport
		case backend.ErrorKindOther:
			kind = ErrCreationFailed
		}
		return &Error{
			Kind:        kind,
			Component:   component,
			Message:     err.Error(),
			Recoverable: recoverable,
			Err:         err,
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Kind:      ErrWorkflowAborted,
			Component: component,
			Message:   err.Error(),
			Err:       err,
		}
	}

	return &Error{
		Kind:      ErrUnknown,
		Component: component,
		Message:   err.Error(),
		Err:       err,
	}
}

// KindOf extracts the workflow kind from any error in a chain.
func KindOf(err error) ErrorKind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return ErrUnknown
}
