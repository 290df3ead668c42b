package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dejobratic/storefront/internal/apperr"
)

const tracerName = "github.com/dejobratic/storefront"

func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, opts...)
}

func AddSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}

// RecordSpanError tags the span with the error kind. Only server-side kinds
// mark the span as failed; rejected requests such as validation errors or a
// bad signature are recorded but keep the span status unset.
func RecordSpanError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	kind := apperr.KindOf(err)
	span.SetAttributes(attribute.String("error.kind", string(kind)))
	span.RecordError(err)
	if serverSide(kind) {
		span.SetStatus(codes.Error, err.Error())
	}
}

func serverSide(kind apperr.Kind) bool {
	switch kind {
	case apperr.KindInternal, apperr.KindGatewayUnavailable, apperr.KindLedgerInconsistency:
		return true
	default:
		return false
	}
}

func SetSpanSuccess(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

func TraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

func SpanID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasSpanID() {
		return sc.SpanID().String()
	}
	return ""
}
