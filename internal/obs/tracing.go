package obs

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerScope = "promptopt.pipeline"

// StartStageSpan opens a span for one pipeline stage, tagging it with the
// request's trace id so stage timings can be correlated in a trace
// viewer. Mirrors the teacher's per-iteration react span helper.
func StartStageSpan(ctx context.Context, stage, traceID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("promptopt.stage", stage),
	}
	if traceID != "" {
		attrs = append(attrs, attribute.String("promptopt.trace_id", traceID))
	}
	return otel.Tracer(tracerScope).Start(ctx, "promptopt."+stage, trace.WithAttributes(attrs...))
}

// EndSpan records err (if any) onto span and closes it.
func EndSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
