package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/graphine/graphine/internal/scheduler"

// RunSpan opens the root span for one engine invocation. When tracing
// is disabled (Init never called, or OTEL_ENABLED unset) the returned
// span is the SDK's no-op implementation, so callers never need to
// branch on whether tracing is on.
func RunSpan(ctx context.Context, runID string) (context.Context, oteltrace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "engine.run",
		oteltrace.WithAttributes(attribute.String("run.id", runID)))
}

// FragmentSpan opens a child span covering one fragment's
// PEval/IncEval -> Discharge cycle for the given epoch; the scheduler
// opens it once the fragment is loaded, so the load is not inside it.
func FragmentSpan(ctx context.Context, gid int64, epoch uint64) (context.Context, oteltrace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "fragment.cycle",
		oteltrace.WithAttributes(
			attribute.Int64("gid", gid),
			attribute.Int64("epoch", int64(epoch)),
		))
}
