package backend

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies backend failures. The set is closed.
type ErrorKind string

const (
	// ErrorKindRateLimit marks quota and throttling responses.
	ErrorKindRateLimit ErrorKind = "rate_limit"
	// ErrorKindDuplicateName marks name-uniqueness violations.
	ErrorKindDuplicateName ErrorKind = "duplicate_name"
	// ErrorKindNotFound marks missing entities.
	ErrorKindNotFound ErrorKind = "not_found"
	// ErrorKindTransport marks network-level failures.
	ErrorKindTransport ErrorKind = "transport"
	// ErrorKindOther marks everything else.
	ErrorKindOther ErrorKind = "other"
)

// Error is a classified backend failure.
type Error struct {
	Kind    ErrorKind
	Op      string // e.g. "createTag"
	Status  int    // HTTP status when known, 0 otherwise
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d, kind %s)", e.Op, e.Message, e.Status, e.Kind)
	}
	return fmt.Sprintf("%s: %s (kind %s)", e.Op, e.Message, e.Kind)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified error. When kind is empty it is derived from
// the status and message.
func NewError(kind ErrorKind, op string, status int, message string) *Error {
	if kind == "" {
		kind = Classify(status, message)
	}
	return &Error{Kind: kind, Op: op, Status: status, Message: message}
}

// rateLimitMarkers are the substrings that identify throttling responses.
// Detection is substring-based because backends report quota exhaustion in
// inconsistent shapes, including 403s with quota text.
var rateLimitMarkers = []string{"429", "rate", "quota", "too many requests", "exceeded"}

// Classify derives an error kind from an HTTP status and message text.
func Classify(status int, message string) ErrorKind {
	lower := strings.ToLower(message)
	switch status {
	case 429:
		return ErrorKindRateLimit
	case 404:
		return ErrorKindNotFound
	case 403:
		for _, marker := range rateLimitMarkers {
			if strings.Contains(lower, marker) {
				return ErrorKindRateLimit
			}
		}
		return ErrorKindOther
	case 409:
		return ErrorKindDuplicateName
	}
	for _, marker := range rateLimitMarkers {
		if strings.Contains(lower, marker) {
			return ErrorKindRateLimit
		}
	}
	if strings.Contains(lower, "duplicate") || strings.Contains(lower, "already exists") {
		return ErrorKindDuplicateName
	}
	if strings.Contains(lower, "not found") {
		return ErrorKindNotFound
	}
	if strings.Contains(lower, "connection") || strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "unreachable") {
		return ErrorKindTransport
	}
	return ErrorKindOther
}

// KindOf returns the classified kind of an error, or ErrorKindOther for
// unclassified errors.
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	if err != nil {
		return Classify(0, err.Error())
	}
	return ErrorKindOther
}

// IsRateLimit reports whether the error is rate-limit classified.
func IsRateLimit(err error) bool {
	return KindOf(err) == ErrorKindRateLimit
}

// IsDuplicateName reports whether the error is a name-uniqueness violation.
func IsDuplicateName(err error) bool {
	return KindOf(err) == ErrorKindDuplicateName
}

// IsNotFound reports whether the error marks a missing entity.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrorKindNotFound
}
