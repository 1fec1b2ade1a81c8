// Package trace wires the scheduler's fragment lifecycle into
// OpenTelemetry: Init (or InitWithConfig, when the caller has already
// merged engconfig.TelemetryConfig over the OTEL_* env defaults) sets
// up a gRPC OTLP TracerProvider, and RunSpan/FragmentSpan open the one
// root span per run and one child span per fragment cycle the
// scheduler emits.
//
// Environment Variables:
//
//	OTEL_ENABLED                    - Enable/disable tracing (default: false)
//	OTEL_SERVICE_NAME               - Service name (default: graphine)
//	OTEL_SERVICE_VERSION            - Service version (default: unknown)
//	OTEL_EXPORTER_OTLP_ENDPOINT     - OTLP collector endpoint (gRPC)
//	OTEL_EXPORTER_OTLP_HEADERS      - Headers for authentication (e.g., Authorization=Bearer xxx)
//	OTEL_EXPORTER_OTLP_INSECURE     - Use insecure connection (default: false)
//	OTEL_TRACES_SAMPLER_ARG         - Sample ratio in [0,1] (default: 1.0, always sample)
//
// Usage:
//
//	shutdown, err := trace.Init(ctx)
//	defer shutdown(ctx)
//	ctx, span := trace.RunSpan(ctx, runID)
//	defer span.End()
package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"
)

// ShutdownFunc flushes and shuts down the TracerProvider Init created.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(_ context.Context) error {
	return nil
}

// Init loads Config from OTEL_* environment variables and calls
// InitWithConfig. Most callers that don't layer engconfig overrides on
// top of the environment want this entry point.
func Init(ctx context.Context) (ShutdownFunc, error) {
	return InitWithConfig(ctx, LoadFromEnv())
}

// InitWithConfig sets up the global TracerProvider from an explicit
// Config. If cfg.Enabled is false, it returns a no-op shutdown and
// leaves the SDK's default no-op TracerProvider in place, so callers
// downstream of RunSpan/FragmentSpan never need to branch on whether
// tracing is on.
func InitWithConfig(ctx context.Context, cfg *Config) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return noopShutdown, err
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return noopShutdown, err
	}

	tp := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithBatcher(exporter),
		trace.WithSampler(trace.TraceIDRatioBased(cfg.SampleRatio)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		return tp.Shutdown(ctx)
	}, nil
}
