package middleware

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is the process logger. Records logged with a *Context method carry
// the request, actor and trace ids found in the context.
var Logger *slog.Logger

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
	TraceIDKey   contextKey = "trace_id"
)

func init() {
	Logger = NewLogger(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
}

// NewLogger returns a JSON logger in production and a text logger otherwise.
// Unknown level names fall back to info.
func NewLogger(env, levelName string) *slog.Logger {
	level := slog.LevelInfo
	if levelName != "" {
		_ = level.UnmarshalText([]byte(levelName))
	}
	opts := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	switch strings.ToLower(env) {
	case "production", "prod":
		base = slog.NewJSONHandler(os.Stdout, opts)
	default:
		base = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(requestHandler{base})
}

// requestHandler copies request scoped ids from the context onto each record.
type requestHandler struct {
	slog.Handler
}

func (h requestHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, key := range []contextKey{RequestIDKey, TraceIDKey} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			r.AddAttrs(slog.String(string(key), v))
		}
	}
	if uid, ok := ctx.Value(UserIDKey).(int64); ok {
		r.AddAttrs(slog.Int64(string(UserIDKey), uid))
	}
	return h.Handler.Handle(ctx, r)
}

func (h requestHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return requestHandler{h.Handler.WithAttrs(attrs)}
}

func (h requestHandler) WithGroup(name string) slog.Handler {
	return requestHandler{h.Handler.WithGroup(name)}
}

// WithUserID tags ctx with the acting chat user.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithTraceID tags ctx with the current trace id.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// ContextMiddleware moves the request id assigned by requestid into the user
// context. It must run after requestid.New.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			c.SetUserContext(context.WithValue(c.UserContext(), RequestIDKey, rid))
		}
		return c.Next()
	}
}

// StructuredLogger logs one line per request. Server errors log at error,
// client errors at warn, and health probes are not logged at all.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/health") {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.IP()),
		}
		if kind, ok := c.Locals("actionKind").(string); ok {
			attrs = append(attrs, slog.String("action", kind))
		}

		ctx := c.UserContext()
		switch {
		case err != nil || status >= fiber.StatusInternalServerError:
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			Logger.ErrorContext(ctx, "request failed", attrs...)
		case status >= fiber.StatusBadRequest:
			Logger.WarnContext(ctx, "request rejected", attrs...)
		default:
			Logger.InfoContext(ctx, "request", attrs...)
		}
		return err
	}
}
