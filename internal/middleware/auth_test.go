package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"confessional/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestAuthRequired(t *testing.T) {
	app := fiber.New()
	InitMiddleware(&config.Config{JWTSecret: testSecret, JWTIssuer: "confessional", JWTAudience: "gateway"})

	app.Get("/test", AuthRequired, func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"userID": c.Locals("userID")})
	})

	valid := func(sub string, exp time.Duration) string {
		return signToken(t, jwt.MapClaims{
			"sub": sub,
			"iss": "confessional",
			"aud": "gateway",
			"exp": time.Now().Add(exp).Unix(),
		})
	}

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedUserID int64
	}{
		{
			name:           "Happy Path",
			authHeader:     "Bearer " + valid("7001310702", time.Hour),
			expectedStatus: http.StatusOK,
			expectedUserID: 7001310702,
		},
		{
			name:           "Missing Header",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Format",
			authHeader:     "Basic dXNlcjpwYXNz",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Malformed Token",
			authHeader:     "Bearer malformed.token.here",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Expired Token",
			authHeader:     "Bearer " + valid("123", -time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Non Numeric Subject",
			authHeader:     "Bearer " + valid("abc", time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "Wrong Audience",
			authHeader: "Bearer " + signToken(t, jwt.MapClaims{
				"sub": "123", "iss": "confessional", "aud": "someone-else",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var body map[string]any
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, float64(tt.expectedUserID), body["userID"])
			}
		})
	}
}

func TestWebSocketAuthRequired_QueryToken(t *testing.T) {
	app := fiber.New()
	InitMiddleware(&config.Config{JWTSecret: testSecret})
	app.Get("/ws", WebSocketAuthRequired, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	token := signToken(t, jwt.MapClaims{"sub": "42", "exp": time.Now().Add(time.Hour).Unix()})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSignActorTokenRoundTrip(t *testing.T) {
	c := &config.Config{JWTSecret: testSecret, JWTIssuer: "confessional", JWTAudience: "gateway"}

	signed, err := SignActorToken(c, 7001310702, "jti-9", time.Minute)
	require.NoError(t, err)

	claims, err := ParseActorToken(c, signed)
	require.NoError(t, err)
	assert.Equal(t, int64(7001310702), claims.UserID)
	assert.Equal(t, "jti-9", claims.TokenID)

	expired, err := SignActorToken(c, 1, "", -time.Minute)
	require.NoError(t, err)
	_, err = ParseActorToken(c, expired)
	assert.Error(t, err)
}
