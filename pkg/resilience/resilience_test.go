// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/jllopis/dci/pkg/errors"
)

func fastRetry() RetryConfig {
	return DefaultRetryConfig().WithInitialDelay(time.Millisecond)
}

func TestRetrySuccess(t *testing.T) {
	attempts := 0
	err := fastRetry().Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return stderrors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Errorf("expected success, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	last := stderrors.New("always fails")
	err := fastRetry().WithMaxAttempts(2).Do(context.Background(), func() error {
		attempts++
		return last
	})
	if err != last {
		t.Errorf("expected the last error unchanged, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetryStopsOnUnrecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"domain", errors.NewDomain("Insufficient Funds", "")},
		{"runtime", errors.New(errors.CodeInvalidInput, "bad entry", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := fastRetry().Do(context.Background(), func() error {
				attempts++
				return tt.err
			})
			if err != tt.err || attempts != 1 {
				t.Errorf("expected one attempt returning %v, got %d attempts and %v", tt.err, attempts, err)
			}
		})
	}

	attempts := 0
	_ = fastRetry().WithIsRecoverable(func(error) bool { return false }).
		Do(context.Background(), func() error {
			attempts++
			return stderrors.New("transient")
		})
	if attempts != 1 {
		t.Errorf("custom predicate ignored, %d attempts", attempts)
	}
}

func TestRetryRecoverableRuntimeError(t *testing.T) {
	attempts := 0
	err := fastRetry().Do(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return errors.New(errors.CodeInternal, "busy", nil).WithRecoverable(true)
		}
		return nil
	})
	if err != nil || attempts != 2 {
		t.Errorf("expected retry to succeed on attempt 2, got %d: %v", attempts, err)
	}
}

func TestRetryContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := DefaultRetryConfig().WithInitialDelay(time.Hour)

	attempts := 0
	err := cfg.Do(ctx, func() error {
		attempts++
		cancel()
		return stderrors.New("transient")
	})
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 10 * time.Millisecond, MaxDelay: 30 * time.Millisecond}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond, 30 * time.Millisecond}
	for i, w := range want {
		if got := cfg.backoff(i + 1); got != w {
			t.Errorf("backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestBreaker(threshold, successes int) (*CircuitBreaker, *clock) {
	c := &clock{t: time.Unix(0, 0)}
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: threshold,
		SuccessThreshold: successes,
		Timeout:          time.Minute,
		Name:             "journal",
	})
	cb.now = c.now
	return cb, c
}

func TestCircuitBreakerStaysClosedOnSuccess(t *testing.T) {
	cb, _ := newTestBreaker(3, 1)
	for i := 0; i < 5; i++ {
		if err := cb.Call(context.Background(), func() error { return nil }); err != nil {
			t.Errorf("call %d failed: %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("expected Closed, got %s", cb.State())
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	cb, _ := newTestBreaker(2, 1)
	fail := func() error { return stderrors.New("disk full") }

	_ = cb.Call(context.Background(), fail)
	_ = cb.Call(context.Background(), func() error { return nil })
	_ = cb.Call(context.Background(), fail)
	if cb.State() != StateClosed {
		t.Fatalf("a success must reset the failure count")
	}
	_ = cb.Call(context.Background(), fail)
	if cb.State() != StateOpen {
		t.Fatalf("expected Open after 2 consecutive failures")
	}

	err := cb.Call(context.Background(), func() error {
		t.Fatal("must not run while open")
		return nil
	})
	if !errors.Is(err, errors.CodeInternal) {
		t.Errorf("expected internal error, got %v", err)
	}
	if IsRecoverable(err) {
		t.Errorf("open circuit must not be retried")
	}
}

func TestCircuitBreakerHalfOpen(t *testing.T) {
	cb, c := newTestBreaker(1, 2)
	_ = cb.Call(context.Background(), func() error { return stderrors.New("fail") })

	c.t = c.t.Add(time.Minute)
	_ = cb.Call(context.Background(), func() error { return nil })
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected HalfOpen after one trial call, got %s", cb.State())
	}
	_ = cb.Call(context.Background(), func() error { return nil })
	if cb.State() != StateClosed {
		t.Fatalf("expected Closed after two trial calls, got %s", cb.State())
	}

	cb.Open()
	c.t = c.t.Add(time.Minute)
	_ = cb.Call(context.Background(), func() error { return stderrors.New("still down") })
	if cb.State() != StateOpen {
		t.Errorf("a failure while half-open must reopen the circuit")
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb, _ := newTestBreaker(1, 1)
	_ = cb.Call(context.Background(), func() error { return stderrors.New("fail") })
	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("expected Closed after reset")
	}
	if err := cb.Call(context.Background(), func() error { return nil }); err != nil {
		t.Errorf("call failed after reset: %v", err)
	}
}
