package observability

import (
	"context"
	"testing"
	"time"

	"github.com/signalsfoundry/refraction-simulator/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracingConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("REFRACTION_TRACING_ENABLED", "")
	t.Setenv("REFRACTION_TRACING_EXPORTER", "")
	t.Setenv("REFRACTION_TRACING_SERVICE_NAME", "")
	t.Setenv("REFRACTION_TRACING_SAMPLE_RATIO", "")

	cfg := TracingConfigFromEnv()
	if cfg.Enabled {
		t.Fatalf("tracing enabled by default")
	}
	if cfg.Exporter != "stdout" || cfg.ServiceName != "refraction-simulator" || cfg.SampleRatio != 1.0 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestTracingConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("REFRACTION_TRACING_ENABLED", "TRUE")
	t.Setenv("REFRACTION_TRACING_EXPORTER", "OTLP")
	t.Setenv("REFRACTION_TRACING_SERVICE_NAME", "sim-test")
	t.Setenv("REFRACTION_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("REFRACTION_OTLP_ENDPOINT", "collector:4317")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.ServiceName != "sim-test" ||
		cfg.SampleRatio != 0.25 || cfg.Endpoint != "collector:4317" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	t.Setenv("REFRACTION_TRACING_SAMPLE_RATIO", "7")
	if got := TracingConfigFromEnv().SampleRatio; got != 1.0 {
		t.Fatalf("out-of-range ratio should fall back to 1.0, got %v", got)
	}
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{Enabled: false}, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	_, span := StartSpan(context.Background(), "Engine/RenderFrame", attribute.Int("rays", 1))
	if span.SpanContext().IsValid() {
		t.Fatalf("noop provider produced a valid span context")
	}
	span.End()
	if otel.GetTracerProvider() == nil {
		t.Fatalf("no tracer provider installed")
	}
}

func TestInitTracingUnsupportedExporter(t *testing.T) {
	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil); err == nil {
		t.Fatalf("expected error for unsupported exporter")
	}
}

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestFrameSpanCarriesRayOutcomes(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartFrameSpan(context.Background(), 100)
	EndFrameSpan(span, FrameSample{
		Index: 12, Rays: 100, Lit: 60, Shadowed: 30, Discarded: 10,
		Hits: 4, Apparent: true, Duration: 3 * time.Millisecond,
	})

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	got := ended[0]
	if got.Name() != SpanRenderFrame {
		t.Fatalf("span name = %q, want %q", got.Name(), SpanRenderFrame)
	}
	attrs := spanAttrs(got)
	wantInts := map[attribute.Key]int64{
		"frame":          12,
		"rays.requested": 100,
		"rays.traced":    100,
		"rays.lit":       60,
		"rays.shadowed":  30,
		"rays.discarded": 10,
		"observer.hits":  4,
	}
	for k, want := range wantInts {
		if v, ok := attrs[k]; !ok || v.AsInt64() != want {
			t.Fatalf("%s = %v, want %d", k, v.Emit(), want)
		}
	}
	if !attrs["apparent_source"].AsBool() {
		t.Fatalf("apparent_source = false, want true")
	}
	if d := attrs["frame.duration_ms"].AsFloat64(); d != 3 {
		t.Fatalf("frame.duration_ms = %v, want 3", d)
	}
	if got.Status().Code == codes.Error {
		t.Fatalf("healthy frame marked as error: %+v", got.Status())
	}
}

func TestFrameSpanAllDiscardedIsError(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartFrameSpan(context.Background(), 8)
	EndFrameSpan(span, FrameSample{Index: 1, Rays: 8, Discarded: 8})

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	if st := ended[0].Status(); st.Code != codes.Error || st.Description != "every ray discarded" {
		t.Fatalf("status = %+v, want error every ray discarded", st)
	}
}
