package server

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"confessional/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret-key-12345678901234567890123456789012"

func gatewayToken(t *testing.T, userID int64, jti string, exp time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"iss": "confessional",
		"aud": "confessional-gateway",
		"exp": time.Now().Add(exp).Unix(),
		"jti": jti,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func authConfig() *config.Config {
	return &config.Config{
		JWTSecret:   testJWTSecret,
		JWTIssuer:   "confessional",
		JWTAudience: "confessional-gateway",
	}
}

func TestServer_AuthRequired(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, mr.Set("blacklist:revoked-jti", "1"))

	s := &Server{config: authConfig(), redis: rdb}

	app := fiber.New()
	echo := func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userID": actorID(c)})
	}
	app.Get("/protected", s.AuthRequired(), echo)
	app.Get("/feed", s.WebSocketAuthRequired(), echo)

	tests := []struct {
		name           string
		path           string
		authHeader     string
		expectedStatus int
	}{
		{
			name:           "valid header",
			path:           "/protected",
			authHeader:     "Bearer " + gatewayToken(t, 7001310702, "jti-1", time.Hour),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "query token ignored outside the feed",
			path:           "/protected?token=" + gatewayToken(t, 7001310702, "jti-2", time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "query token accepted on the feed",
			path:           "/feed?token=" + gatewayToken(t, 7001310702, "jti-3", time.Hour),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "expired",
			path:           "/protected",
			authHeader:     "Bearer " + gatewayToken(t, 7001310702, "jti-4", -time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "revoked token id",
			path:           "/protected",
			authHeader:     "Bearer " + gatewayToken(t, 7001310702, "revoked-jti", time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "malformed header",
			path:           "/protected",
			authHeader:     "BearerTokenOnly",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "missing",
			path:           "/protected",
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var body map[string]int64
				decodeBody(t, resp, &body)
				assert.Equal(t, int64(7001310702), body["userID"])
				return
			}
			_ = resp.Body.Close()
		})
	}
}

func TestServer_AuthRequiredWithoutRedisSkipsRevocation(t *testing.T) {
	s := &Server{config: authConfig()}
	app := fiber.New()
	app.Get("/protected", s.AuthRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+gatewayToken(t, 55, "revoked-jti", time.Hour))
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
