package maestro

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestKindOf(t *testing.T) {
	if KindOf(Errf(ErrNotFound, "x")) != ErrNotFound {
		t.Error("direct kind not detected")
	}
	wrapped := fmt.Errorf("outer: %w", Errf(ErrQuorumNotMet, "x"))
	if KindOf(wrapped) != ErrQuorumNotMet {
		t.Error("wrapped kind not detected")
	}
	if KindOf(context.Canceled) != ErrCancelled {
		t.Error("context.Canceled not mapped to cancelled")
	}
	if KindOf(context.DeadlineExceeded) != ErrTimeout {
		t.Error("deadline not mapped to timeout")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("plain error should have no kind")
	}
	if KindOf(nil) != "" {
		t.Error("nil should have no kind")
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := wrapErr(ErrBackendFailure, inner, "call failed")
	if !errors.Is(err, inner) {
		t.Error("wrapped error lost its chain")
	}
	var e *Error
	if !errors.As(err, &e) || e.Kind != ErrBackendFailure {
		t.Error("errors.As failed")
	}
}

func TestParseRetryAfter(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{"0", 0},
		{"-3", 0},
		{"soon", 0},
	}
	for _, c := range cases {
		if got := ParseRetryAfter(c.in); got != c.want {
			t.Errorf("ParseRetryAfter(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
