package backend

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
		want    ErrorKind
	}{
		{"429 status", 429, "slow down", ErrorKindRateLimit},
		{"403 with quota marker", 403, "Quota exceeded for requests per minute", ErrorKindRateLimit},
		{"403 without marker", 403, "insufficient permissions", ErrorKindOther},
		{"404", 404, "no such tag", ErrorKindNotFound},
		{"409", 409, "conflict", ErrorKindDuplicateName},
		{"rate substring", 0, "rate limit hit", ErrorKindRateLimit},
		{"too many requests substring", 0, "Too Many Requests", ErrorKindRateLimit},
		{"duplicate substring", 0, "duplicate entity name", ErrorKindDuplicateName},
		{"already exists substring", 0, "tag already exists", ErrorKindDuplicateName},
		{"not found substring", 0, "entity not found", ErrorKindNotFound},
		{"connection refused", 0, "connection refused", ErrorKindTransport},
		{"unclassified", 500, "internal server error", ErrorKindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.status, tt.message); got != tt.want {
				t.Errorf("Classify(%d, %q) = %s, want %s", tt.status, tt.message, got, tt.want)
			}
		})
	}
}

func TestKindOfWrappedError(t *testing.T) {
	inner := NewError(ErrorKindRateLimit, "createTag", 429, "quota exceeded")
	wrapped := fmt.Errorf("step 3: %w", inner)

	if !IsRateLimit(wrapped) {
		t.Error("IsRateLimit() = false for wrapped rate-limit error")
	}

	var be *Error
	if !errors.As(wrapped, &be) {
		t.Fatal("errors.As failed to unwrap backend error")
	}
	if be.Op != "createTag" {
		t.Errorf("unwrapped Op = %q, want createTag", be.Op)
	}
}

func TestNewErrorDerivesKind(t *testing.T) {
	err := NewError("", "createTrigger", 403, "user rate limit exceeded")
	if err.Kind != ErrorKindRateLimit {
		t.Errorf("derived kind = %s, want rate_limit", err.Kind)
	}
}
