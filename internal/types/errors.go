package types

import (
	"errors"
	"fmt"
)

// ErrKind classifies a failed call.
type ErrKind string

const (
	ErrTransport        ErrKind = "transport_failure"
	ErrServer           ErrKind = "server_error"
	ErrRateLimited      ErrKind = "rate_limited"
	ErrClient           ErrKind = "client_error"
	ErrRetriesExhausted ErrKind = "retries_exhausted"
	ErrPinningRejected  ErrKind = "certificate_pinning_rejected"
)

// CallError is the error type surfaced to callers. Kind tells the caller
// whether the failure was transient (retried and exhausted) or a rejection.
type CallError struct {
	Kind    ErrKind
	Message string
	Cause   error
}

func (e *CallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CallError) Unwrap() error {
	return e.Cause
}

// NewCallError builds a CallError without an underlying cause.
func NewCallError(kind ErrKind, message string) *CallError {
	return &CallError{Kind: kind, Message: message}
}

// WrapCallError builds a CallError around an underlying cause.
func WrapCallError(kind ErrKind, message string, cause error) *CallError {
	return &CallError{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the error kind from an error chain.
func KindOf(err error) (ErrKind, bool) {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}
