package maestro

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrorKind classifies runtime and builder failures. Dispositions:
// tool failures are always recovered into tool messages; agent failures
// obey the conductor's ErrorMode; everything else propagates.
type ErrorKind string

const (
	ErrInvalidInput        ErrorKind = "invalid-input"
	ErrMissingRequired     ErrorKind = "missing-required"
	ErrDuplicateID         ErrorKind = "duplicate-id"
	ErrNotFound            ErrorKind = "not-found"
	ErrQuorumNotMet        ErrorKind = "quorum-not-met"
	ErrInsufficientOptions ErrorKind = "insufficient-options"
	ErrCancelled           ErrorKind = "cancelled"
	ErrTimeout             ErrorKind = "timeout"
	ErrBackendFailure      ErrorKind = "backend-failure"
	ErrToolFailure         ErrorKind = "tool-failure"
	ErrMaxDelegations      ErrorKind = "max-delegations"
)

// Error is a kind-tagged runtime error. Use KindOf to classify an error
// chain and errors.As to retrieve the full value.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Errf creates a kind-tagged error with a formatted message.
func Errf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// wrapErr tags err with kind, preserving the chain for errors.Is/As.
func wrapErr(kind ErrorKind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the ErrorKind of the first *Error in err's chain.
// Context cancellation and deadline errors without an explicit tag map to
// ErrCancelled and ErrTimeout respectively; anything else returns "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ""
}

// cancelErr wraps a context error as a cancellation failure.
func cancelErr(err error) *Error {
	return wrapErr(ErrCancelled, err, "run cancelled")
}

// checkCancel returns a cancellation error when ctx is done. Conductors
// call this at every natural suspension point; the agent loop calls it at
// the top of every iteration.
func checkCancel(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return cancelErr(err)
	}
	return nil
}

// --- Transport errors ---

// ErrHTTP is a failed HTTP exchange with an LLM service. The retry
// middleware treats 429 and 503 as transient and honors RetryAfter.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ParseRetryAfter parses an HTTP Retry-After header value given in
// seconds. Returns 0 for empty or unparseable values.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
