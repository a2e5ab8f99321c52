package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jllopis/dci/pkg/errors"
)

func TestInit(t *testing.T) {
	shutdown, err := Init("test-service", "v0.0.1")
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if shutdown == nil {
		t.Fatal("Shutdown function should not be nil")
	}

	// Ensure shutdown works
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestInitWithConfigNone(t *testing.T) {
	shutdown, err := InitWithConfig("test-service", "v0.0.1", Config{Exporter: "none"})
	if err != nil {
		t.Fatalf("InitWithConfig failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestInitWithConfigErrors(t *testing.T) {
	if _, err := InitWithConfig("svc", "v", Config{Exporter: "otlp"}); err == nil {
		t.Fatalf("expected error for otlp without endpoint")
	}
	if _, err := InitWithConfig("svc", "v", Config{Exporter: "carrier-pigeon"}); err == nil {
		t.Fatalf("expected error for unknown exporter")
	}
}

func TestEndSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	_, okSpan := tracer.Start(context.Background(), "ok")
	EndSpan(okSpan, nil)
	_, failedSpan := tracer.Start(context.Background(), "failed")
	domainErr := errors.NewDomain("Insufficient Funds", "short")
	EndSpan(failedSpan, domainErr)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 ended spans, got %d", len(spans))
	}
	found := map[string]string{}
	for _, kv := range spans[1].Attributes() {
		found[string(kv.Key)] = kv.Value.Emit()
	}
	if found[AttrOutcome] != OutcomeDomain {
		t.Errorf("expected domain outcome, got %q", found[AttrOutcome])
	}
	if found[AttrDomainKind] != "Insufficient Funds" {
		t.Errorf("expected domain kind attribute, got %q", found[AttrDomainKind])
	}
	if len(spans[1].Events()) == 0 {
		t.Errorf("expected the error to be recorded as a span event")
	}
}
