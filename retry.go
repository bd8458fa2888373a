package maestro

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

// retryBackend wraps a Backend and automatically retries transient HTTP
// errors (429 Too Many Requests, 503 Service Unavailable) with
// exponential backoff.
type retryBackend struct {
	inner       Backend
	maxAttempts int
	baseDelay   time.Duration
	timeout     time.Duration // overall timeout across all attempts; 0 = no limit
	logger      *slog.Logger
}

// RetryOption configures a retryBackend.
type RetryOption func(*retryBackend)

// RetryMaxAttempts sets the maximum number of attempts (default: 3).
func RetryMaxAttempts(n int) RetryOption {
	return func(r *retryBackend) { r.maxAttempts = n }
}

// RetryBaseDelay sets the initial backoff delay before the second attempt
// (default: 1s). Each subsequent delay doubles.
func RetryBaseDelay(d time.Duration) RetryOption {
	return func(r *retryBackend) { r.baseDelay = d }
}

// RetryTimeout sets the overall deadline for the entire retry sequence.
// The zero value (default) disables it.
func RetryTimeout(d time.Duration) RetryOption {
	return func(r *retryBackend) { r.timeout = d }
}

// RetryLogger sets the structured logger for retry warnings.
func RetryLogger(l *slog.Logger) RetryOption {
	return func(r *retryBackend) { r.logger = l }
}

// WithRetry wraps b with automatic retry on transient HTTP errors.
// Retries use exponential backoff with jitter; when the error carries a
// Retry-After duration, the delay is at least that long. Compose with
// any Backend:
//
//	be = maestro.WithRetry(openaicompat.New(apiKey, model, baseURL))
//	be = maestro.WithRetry(be, maestro.RetryMaxAttempts(5))
func WithRetry(b Backend, opts ...RetryOption) Backend {
	r := &retryBackend{
		inner:       b,
		maxAttempts: 3,
		baseDelay:   time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = orNop(r.logger)
	return r
}

// Name delegates to the inner backend.
func (r *retryBackend) Name() string { return r.inner.Name() }

// Generate implements Backend with retry.
func (r *retryBackend) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var last error
	for i := 0; i < r.maxAttempts; i++ {
		resp, err := r.inner.Generate(ctx, req)
		if err == nil || !isTransient(err) {
			return resp, err
		}
		last = err
		r.logger.Warn("transient backend error, retrying",
			"backend", r.inner.Name(), "status", statusOf(err), "attempt", i+1, "max", r.maxAttempts)
		if i < r.maxAttempts-1 {
			timer := time.NewTimer(retryDelay(r.baseDelay, i, err))
			select {
			case <-ctx.Done():
				timer.Stop()
				return GenerateResponse{}, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return GenerateResponse{}, last
}

// withTimeout returns a child context with a deadline if the overall
// timeout is set and ctx does not already have an earlier one.
func (r *retryBackend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	deadline := time.Now().Add(r.timeout)
	if existing, ok := ctx.Deadline(); ok && existing.Before(deadline) {
		return ctx, func() {}
	}
	return context.WithDeadline(ctx, deadline)
}

// isTransient reports whether err is a retryable HTTP error (429 or 503).
func isTransient(err error) bool {
	var e *ErrHTTP
	return errors.As(err, &e) && (e.Status == 429 || e.Status == 503)
}

// statusOf extracts the HTTP status code from an ErrHTTP, or 0.
func statusOf(err error) int {
	var e *ErrHTTP
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// retryDelay computes the delay before retry attempt i, using
// exponential backoff as a floor and the server's Retry-After (if
// present) as a minimum.
func retryDelay(base time.Duration, i int, err error) time.Duration {
	backoff := retryBackoff(base, i)
	var e *ErrHTTP
	if errors.As(err, &e) && e.RetryAfter > backoff {
		return e.RetryAfter
	}
	return backoff
}

// retryBackoff returns the delay for retry i (0-indexed).
// Exponential: base * 2^i, plus up to 50% random jitter.
func retryBackoff(base time.Duration, i int) time.Duration {
	exp := base * (1 << i)
	jitter := time.Duration(rand.Int63n(int64(exp)/2 + 1))
	return exp + jitter
}

// compile-time check
var _ Backend = (*retryBackend)(nil)
