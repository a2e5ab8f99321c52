package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/sdk/trace"
)

func TestNewLoggerJSONWithTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "debug", "json")

	tp := trace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.DebugContext(ctx, "role resolved", slog.String("method", "TransferFunds"))
	span.End()

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected json output: %v", err)
	}
	if record["method"] != "TransferFunds" {
		t.Errorf("missing method attribute: %v", record)
	}
	if record["trace_id"] == nil || record["span_id"] == nil {
		t.Errorf("expected trace and span ids: %v", record)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "text")

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info must be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn must be emitted: %q", out)
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(NewLogger(&buf, "info", "text"), "dispatcher")
	logger.Info("ready")
	if !strings.Contains(buf.String(), "component=dispatcher") {
		t.Errorf("expected component attribute: %q", buf.String())
	}
	if Component(nil, "x") == nil {
		t.Errorf("expected default logger fallback")
	}
}

func TestConfigureSlog(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(ParseLevel("warn"))
	logger := ConfigureSlog(&buf, level, "text")
	if slog.Default() != logger {
		t.Error("expected the logger to become the default")
	}

	logger.Debug("before")
	level.Set(ParseLevel("debug"))
	logger.Debug("after")

	out := buf.String()
	if strings.Contains(out, "before") || !strings.Contains(out, "after") {
		t.Errorf("level change not applied: %q", out)
	}
	if ParseLevel("bogus") != slog.LevelInfo || ParseLevel("WARNING") != slog.LevelWarn {
		t.Error("unexpected ParseLevel mapping")
	}
}
