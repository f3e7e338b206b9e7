package middleware

import (
	"net/http"

	"github.com/courtmate/tennis-platform/pkg/tracing"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware opens a server span per request, continuing any trace
// the caller propagated, and tags it with the route, status and player.
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	tracer := otel.Tracer(serviceName)

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
				attribute.String("http.request_id", c.GetString(CorrelationIDKey)),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		if sc := span.SpanContext(); sc.HasTraceID() {
			c.Header("X-Trace-ID", sc.TraceID().String())
		}

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if playerID, err := GetUserID(c); err == nil {
			span.SetAttributes(tracing.PlayerIDKey.String(playerID.String()))
		}

		switch {
		case len(c.Errors) > 0:
			for _, e := range c.Errors {
				span.RecordError(e.Err)
			}
			span.SetStatus(codes.Error, c.Errors.Last().Error())
		case status >= http.StatusInternalServerError:
			span.SetStatus(codes.Error, http.StatusText(status))
		default:
			// 4xx responses are the caller's fault and leave the span unset.
		}
	}
}

// AddSpanAttributes tags the request span.
func AddSpanAttributes(c *gin.Context, attrs ...attribute.KeyValue) {
	tracing.AddSpanAttributes(c.Request.Context(), attrs...)
}
