package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope of every span voicememo starts.
const tracerName = "github.com/MrWong99/voicememo"

// Tracer returns the voicememo [trace.Tracer]. It is looked up on the
// global [trace.TracerProvider] each call, so a provider installed later by
// [InitProvider] takes effect without re-wiring callers.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span named name as a child of any span in ctx and
// returns the derived context with it. The caller must end the span, either
// with span.End or through [EndSpan].
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// EndSpan ends span. A non-nil err is recorded as a span event and the
// span status is set to [codes.Error] with the error text as description.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CorrelationID returns the hex trace ID of the span context in ctx. The
// trace ID doubles as the request correlation identifier echoed by
// [Middleware] and attached to log lines by [Logger].
//
// Returns "" when ctx carries no span with a valid trace ID.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns an [slog.Logger] for ctx. When ctx carries a span with a
// valid trace ID the logger is the default one enriched with trace_id and
// span_id attributes; otherwise it is [slog.Default] unchanged.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
