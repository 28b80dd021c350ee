package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of ledger spans
const TracerName = "github.com/erp/stockledger"

// Span attribute keys
var (
	AttrTrigger     = attribute.Key("ledger.trigger")
	AttrTransitions = attribute.Key("ledger.transitions")
	AttrReferenceID = attribute.Key("ledger.reference_id")
	AttrQuantity    = attribute.Key("ledger.quantity")
)

// Start opens an internal span named component.operation on the global
// tracer. The caller ends it.
func Start(ctx context.Context, component, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartKind(ctx, trace.SpanKindInternal, component+"."+operation, attrs...)
}

func StartKind(ctx context.Context, kind trace.SpanKind, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	opts := []trace.SpanStartOption{trace.WithSpanKind(kind)}
	if len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	return otel.Tracer(TracerName).Start(ctx, name, opts...)
}

// Fail records err on span and marks it as an error. A nil err is ignored.
func Fail(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func Succeed(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// TraceID is the hex trace id active in ctx, or "" outside a sampled span
func TraceID(ctx context.Context) string {
	id := trace.SpanContextFromContext(ctx).TraceID()
	if !id.IsValid() {
		return ""
	}
	return id.String()
}
