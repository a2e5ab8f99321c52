// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/dci/pkg/errors"
)

// DispatchMetrics tracks role dispatch volume, failures and latency.
type DispatchMetrics struct {
	// dispatchCounter counts dispatched role calls by capability, method and outcome
	dispatchCounter metric.Int64Counter

	// errorCounter counts failed dispatches and interactions by code and component
	errorCounter metric.Int64Counter

	// cacheCounter counts resolution cache lookups by result (hit, miss)
	cacheCounter metric.Int64Counter

	// durationHistogram records role call latency in milliseconds
	durationHistogram metric.Float64Histogram

	// interactionCounter counts context executions by use case and outcome
	interactionCounter metric.Int64Counter
}

// NewDispatchMetrics creates dispatch instruments on the global meter provider.
func NewDispatchMetrics(ctx context.Context) (*DispatchMetrics, error) {
	meter := otel.Meter("dci/dispatch")

	dispatchCounter, err := meter.Int64Counter(
		"dci.dispatch.total",
		metric.WithDescription("Role calls routed through the dispatcher"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"dci.errors.total",
		metric.WithDescription("Failed role calls and interactions by code and component"),
	)
	if err != nil {
		return nil, err
	}

	cacheCounter, err := meter.Int64Counter(
		"dci.dispatch.cache",
		metric.WithDescription("Resolution cache lookups by result"),
	)
	if err != nil {
		return nil, err
	}

	durationHistogram, err := meter.Float64Histogram(
		"dci.dispatch.duration",
		metric.WithDescription("Role call latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	interactionCounter, err := meter.Int64Counter(
		"dci.interactions.total",
		metric.WithDescription("Context executions by use case and outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &DispatchMetrics{
		dispatchCounter:    dispatchCounter,
		errorCounter:       errorCounter,
		cacheCounter:       cacheCounter,
		durationHistogram:  durationHistogram,
		interactionCounter: interactionCounter,
	}, nil
}

// RecordDispatch records one routed role call and its latency.
func (m *DispatchMetrics) RecordDispatch(ctx context.Context, capability, method string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("capability", capability),
		attribute.String("method", method),
		attribute.String("outcome", OutcomeOf(err)),
	)
	m.dispatchCounter.Add(ctx, 1, attrs)
	m.durationHistogram.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	m.RecordError(ctx, err, "dispatcher")
}

// RecordCache records a resolution cache lookup.
func (m *DispatchMetrics) RecordCache(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordInteraction records one context execution.
func (m *DispatchMetrics) RecordInteraction(ctx context.Context, useCase string, err error) {
	if m == nil {
		return
	}
	m.interactionCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("usecase", useCase),
			attribute.String("outcome", OutcomeOf(err)),
		),
	)
	m.RecordError(ctx, err, "interaction")
}

// RecordError increments the error counter for err. Nil errors are ignored.
func (m *DispatchMetrics) RecordError(ctx context.Context, err error, component string) {
	if m == nil || err == nil {
		return
	}
	m.errorCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error.code", errors.CodeOf(err)),
			attribute.String("error.category", string(errors.CategoryOf(err))),
			attribute.String("component", component),
		),
	)
}

// OutcomeOf maps an error to the outcome label used on spans and metrics.
func OutcomeOf(err error) string {
	if err == nil {
		return OutcomeOK
	}
	switch errors.CategoryOf(err) {
	case errors.CategoryStructural:
		return OutcomeStructural
	case errors.CategoryDomain:
		return OutcomeDomain
	case errors.CategoryUsage:
		return OutcomeUsage
	default:
		return OutcomeError
	}
}
