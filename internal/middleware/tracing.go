package middleware

import (
	"confessional/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware opens a server span per request, continuing any trace the
// gateway propagated, and echoes the trace id in X-Trace-ID.
func TracingMiddleware() fiber.Handler {
	propagator := otel.GetTextMapPropagator()
	return func(c *fiber.Ctx) error {
		parent := propagator.Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))
		ctx, span := observability.Tracer.Start(parent, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.target", c.OriginalURL()),
				attribute.String("net.peer.ip", c.IP()),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		if rid, ok := c.Locals("requestid").(string); ok {
			span.SetAttributes(attribute.String("request.id", rid))
		}
		c.Set("X-Trace-ID", traceID)
		c.SetUserContext(WithTraceID(ctx, traceID))

		err := c.Next()

		status := c.Response().StatusCode()
		span.SetAttributes(attribute.Int("http.status_code", status))
		// Set by the auth middleware and the action endpoint further down.
		if userID, ok := c.Locals("userID").(int64); ok {
			span.SetAttributes(attribute.Int64("actor.id", userID))
		}
		if kind, ok := c.Locals("actionKind").(string); ok {
			span.SetAttributes(attribute.String("action.kind", kind))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, "server error")
		}
		return err
	}
}
