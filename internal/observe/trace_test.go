package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// newTestTracerProvider returns a TracerProvider with an in-memory exporter
// for inspecting recorded spans.
func newTestTracerProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exp
}

// captureLogs swaps the default slog logger for one writing to the returned
// buffer, restoring the original at cleanup.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func TestCorrelationID_EmptyByDefault(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}
}

func TestCorrelationID_ReturnsTraceID(t *testing.T) {
	tp, _ := newTestTracerProvider(t)

	ctx, span := tp.Tracer("test").Start(context.Background(), "utterance.process")
	defer span.End()

	cid := CorrelationID(ctx)
	if len(cid) != 32 {
		t.Errorf("correlation ID length = %d, want 32", len(cid))
	}
	if strings.Trim(cid, "0123456789abcdef") != "" {
		t.Errorf("correlation ID %q is not lowercase hex", cid)
	}
}

func TestStartSpan_CreatesSpan(t *testing.T) {
	tp, exp := newTestTracerProvider(t)

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	ctx, span := StartSpan(context.Background(), "stt.transcribe")
	if CorrelationID(ctx) == "" {
		t.Error("StartSpan did not create a span with a trace ID")
	}

	span.End()
	spans := exp.GetSpans()
	if len(spans) == 0 {
		t.Fatal("no spans recorded")
	}
	if spans[0].Name != "stt.transcribe" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "stt.transcribe")
	}
}

func TestCorrelationID_Unique(t *testing.T) {
	tp, _ := newTestTracerProvider(t)
	tracer := tp.Tracer("test")

	ids := make(map[string]struct{}, 100)
	for range 100 {
		ctx, span := tracer.Start(context.Background(), "utterance.process")
		cid := CorrelationID(ctx)
		span.End()
		if _, dup := ids[cid]; dup {
			t.Fatalf("duplicate correlation ID: %s", cid)
		}
		ids[cid] = struct{}{}
	}
}

func TestLogger_IncludesTraceID(t *testing.T) {
	tp, _ := newTestTracerProvider(t)
	buf := captureLogs(t)

	ctx, span := tp.Tracer("test").Start(context.Background(), "turn")
	defer span.End()

	Logger(ctx).Info("utterance transcribed")

	logged := buf.String()
	if !strings.Contains(logged, "trace_id=") {
		t.Errorf("log output missing trace_id, got: %s", logged)
	}
	if !strings.Contains(logged, "span_id=") {
		t.Errorf("log output missing span_id, got: %s", logged)
	}
}

func TestLogger_NoSpan(t *testing.T) {
	buf := captureLogs(t)

	Logger(context.Background()).Info("utterance transcribed")

	if logged := buf.String(); strings.Contains(logged, "trace_id") {
		t.Errorf("log output should not contain trace_id, got: %s", logged)
	}
}

func TestTracer_ReturnsValidTracer(t *testing.T) {
	tr := Tracer()
	if tr == nil {
		t.Fatal("Tracer() returned nil")
	}
	_ = trace.Tracer(tr)
}
