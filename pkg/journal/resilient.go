// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"context"

	"github.com/jllopis/dci/pkg/resilience"
)

// ResilientRecorder retries failed writes and stops writing for a while
// once the underlying recorder keeps failing. Interactions never wait on
// an open circuit.
type ResilientRecorder struct {
	next    Recorder
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewResilientRecorder wraps next. attempts bounds the writes per entry and
// threshold is the number of failed entries that opens the circuit.
func NewResilientRecorder(next Recorder, attempts, threshold int) *ResilientRecorder {
	return &ResilientRecorder{
		next:  next,
		retry: resilience.DefaultRetryConfig().WithMaxAttempts(attempts),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: threshold,
			Name:             "journal",
		}),
	}
}

// Record implements Recorder.
func (r *ResilientRecorder) Record(ctx context.Context, entry Entry) error {
	return r.breaker.Call(ctx, func() error {
		return r.retry.Do(ctx, func() error {
			return r.next.Record(ctx, entry)
		})
	})
}

// State reports the circuit state, for diagnostics.
func (r *ResilientRecorder) State() resilience.CircuitBreakerState {
	return r.breaker.State()
}
