package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Logger
	Logger = slog.New(requestHandler{slog.NewJSONHandler(&buf, nil)})
	t.Cleanup(func() { Logger = prev })
	return &buf
}

func TestRequestHandlerAddsContextIDs(t *testing.T) {
	buf := captureLogger(t)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = WithTraceID(WithUserID(ctx, 42), "trace-1")
	Logger.With("component", "test").InfoContext(ctx, "hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "trace-1", line["trace_id"])
	assert.EqualValues(t, 42, line["user_id"])
	assert.Equal(t, "test", line["component"])
}

func TestStructuredLoggerLevels(t *testing.T) {
	buf := captureLogger(t)

	app := fiber.New()
	app.Use(requestid.New())
	app.Use(ContextMiddleware())
	app.Use(StructuredLogger())
	app.Get("/health/live", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/missing", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNotFound) })

	resp, err := app.Test(httptest.NewRequest("GET", "/health/live", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Zero(t, buf.Len())

	resp, err = app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "request rejected", line["msg"])
	assert.EqualValues(t, 404, line["status"])
	assert.NotEmpty(t, line["request_id"])
}

func TestNewLoggerLevel(t *testing.T) {
	l := NewLogger("production", "warn")
	assert.False(t, l.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, l.Enabled(context.Background(), slog.LevelWarn))

	l = NewLogger("development", "nonsense")
	assert.True(t, l.Enabled(context.Background(), slog.LevelInfo))
}
