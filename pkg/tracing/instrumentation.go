package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Domain span attributes
const (
	PlayerIDKey        = attribute.Key("player.id")
	CandidateCountKey  = attribute.Key("match.candidates")
	CourtIDKey         = attribute.Key("court.id")
	CourtCountKey      = attribute.Key("court.results")
	SharedBookingIDKey = attribute.Key("shared_booking.id")
	SharedStatusKey    = attribute.Key("shared_booking.status")
	GeocodeSourceKey   = attribute.Key("geocode.source")
)

// TraceBusinessLogic runs fn inside an internal span named operation.
func TraceBusinessLogic(ctx context.Context, tracerName, operation string, attrs []attribute.KeyValue, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, tracerName, operation, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}

	start := time.Now()
	err := fn(ctx)
	span.SetAttributes(attribute.Int64("duration_ms", time.Since(start).Milliseconds()))
	finish(span, err)
	return err
}

// TraceExternalAPI wraps a call to a third-party service in a client span.
func TraceExternalAPI(ctx context.Context, tracerName, serviceName, operation string, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, tracerName, fmt.Sprintf("%s.%s", serviceName, operation),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(
		attribute.String("external.service", serviceName),
		attribute.String("external.operation", operation),
	)

	err := fn(ctx)
	finish(span, err)
	return err
}

// SharedBookingAttributes tags spans for negotiation transitions.
func SharedBookingAttributes(id, status, actorID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{SharedBookingIDKey.String(id)}
	if status != "" {
		attrs = append(attrs, SharedStatusKey.String(status))
	}
	if actorID != "" {
		attrs = append(attrs, PlayerIDKey.String(actorID))
	}
	return attrs
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
