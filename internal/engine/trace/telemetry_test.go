package trace

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

func TestInitWithConfig_DisabledIsNoop(t *testing.T) {
	shutdown, err := InitWithConfig(context.Background(), &Config{Enabled: false})
	if err != nil {
		t.Fatalf("InitWithConfig: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("noop shutdown returned error: %v", err)
	}
}

// useRecordingProvider installs a real, always-sampling SDK
// TracerProvider for the duration of the test so RunSpan/FragmentSpan
// produce spans with valid contexts instead of the package default
// no-op provider.
func useRecordingProvider(t *testing.T) {
	t.Helper()
	prev := otel.GetTracerProvider()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
}

func TestRunSpan_CarriesRunID(t *testing.T) {
	useRecordingProvider(t)

	_, span := RunSpan(context.Background(), "run-abc")
	defer span.End()

	if !span.SpanContext().IsValid() {
		t.Error("RunSpan should produce a valid span context under a recording provider")
	}
}

func TestFragmentSpan_NestsUnderRunSpan(t *testing.T) {
	useRecordingProvider(t)

	runCtx, runSpan := RunSpan(context.Background(), "run-xyz")
	defer runSpan.End()

	fragCtx, fragSpan := FragmentSpan(runCtx, 7, 3)
	defer fragSpan.End()

	runTrace := oteltrace.SpanContextFromContext(runCtx).TraceID()
	fragTrace := oteltrace.SpanContextFromContext(fragCtx).TraceID()
	if runTrace != fragTrace {
		t.Error("fragment span should share the run span's trace id")
	}
}
