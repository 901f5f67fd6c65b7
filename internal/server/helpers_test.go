package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"confessional/internal/models"
	"confessional/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"userId", "user ID"},
		{"chatRequestId", "chat request ID"},
		{"token", "token"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

func TestParsePagination(t *testing.T) {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		p := parsePagination(c, 20)
		return c.JSON(fiber.Map{"limit": p.Limit, "offset": p.Offset})
	})

	tests := []struct {
		query         string
		limit, offset float64
	}{
		{"", 20, 0},
		{"?limit=10&offset=30", 10, 30},
		{"?limit=5000", 100, 0},
		{"?limit=-1&offset=-4", 20, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil))
			require.NoError(t, err)
			var body map[string]float64
			decodeBody(t, resp, &body)
			assert.Equal(t, tt.limit, body["limit"])
			assert.Equal(t, tt.offset, body["offset"])
		})
	}
}

func TestParseUUID(t *testing.T) {
	app := fiber.New()
	app.Get("/confessions/:id", func(c *fiber.Ctx) error {
		id, err := parseUUID(c, "id")
		if err != nil {
			return nil
		}
		return c.JSON(fiber.Map{"id": id})
	})

	id := uuid.New()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/confessions/"+id.String(), nil))
	require.NoError(t, err)
	var ok map[string]string
	decodeBody(t, resp, &ok)
	assert.Equal(t, id.String(), ok["id"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/confessions/42", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var bad models.ErrorResponse
	decodeBody(t, resp, &bad)
	assert.Equal(t, "Invalid ID", bad.Error)
	assert.Equal(t, models.CodeValidation, bad.Code)
}

func TestParseUserID(t *testing.T) {
	app := fiber.New()
	app.Get("/users/:userId", func(c *fiber.Ctx) error {
		id, err := parseUserID(c, "userId")
		if err != nil {
			return nil
		}
		return c.JSON(fiber.Map{"id": id})
	})

	for _, raw := range []string{"abc", "0", "-3"} {
		t.Run(raw, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/users/"+raw, nil))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body models.ErrorResponse
			decodeBody(t, resp, &body)
			assert.Equal(t, "Invalid user ID", body.Error)
		})
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/users/7001310702", nil))
	require.NoError(t, err)
	var body map[string]int64
	decodeBody(t, resp, &body)
	assert.Equal(t, int64(7001310702), body["id"])
}

func TestAdminRequired(t *testing.T) {
	s := &Server{admins: service.Admins{900}}

	newApp := func(userID int64) *fiber.App {
		app := fiber.New()
		app.Use(func(c *fiber.Ctx) error {
			c.Locals("userID", userID)
			return c.Next()
		})
		app.Get("/admin", s.AdminRequired(), func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"ok": true})
		})
		return app
	}

	resp, err := newApp(900).Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = newApp(101).Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	var body models.ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Admin access required", body.Error)
	assert.Equal(t, models.CodeForbidden, body.Code)
}

func TestRespondErrorMapsCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", models.NewNotFoundError("Confession", 7), http.StatusNotFound, models.CodeNotFound},
		{"self vote", models.NewSelfVoteError(), http.StatusForbidden, models.CodeSelfVote},
		{"not approved", models.NewNotApprovedError("x"), http.StatusConflict, models.CodeNotApproved},
		{"rate limited", models.NewRateLimitedError("slow down", 90*time.Second), http.StatusTooManyRequests, models.CodeRateLimited},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, models.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return respondError(c, tt.err) })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.code == models.CodeRateLimited {
				assert.Equal(t, "90", resp.Header.Get("Retry-After"))
			}
			var body models.ErrorResponse
			decodeBody(t, resp, &body)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}
