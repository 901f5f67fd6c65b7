// Package middleware provides authentication, logging, tracing, metrics and rate limiting for the HTTP binding.
package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"confessional/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

// ActorClaims is what a verified gateway token says about the acting user.
type ActorClaims struct {
	UserID  int64
	TokenID string
}

var (
	errMissingToken = errors.New("authorization token required")
	errBadHeader    = errors.New("invalid authorization header format")
)

// BearerToken pulls the token from the Authorization header, or from ?token=
// when allowQuery is set.
func BearerToken(c *fiber.Ctx, allowQuery bool) (string, error) {
	if allowQuery {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
	}
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", errMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errBadHeader
	}
	return parts[1], nil
}

// ParseActorToken validates an HMAC JWT and extracts the numeric subject.
// Issuer and audience are enforced when configured.
func ParseActorToken(c *config.Config, tokenString string) (*ActorClaims, error) {
	if c == nil {
		return nil, errors.New("auth middleware not initialized")
	}

	var opts []jwt.ParserOption
	if c.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(c.JWTIssuer))
	}
	if c.JWTAudience != "" {
		opts = append(opts, jwt.WithAudience(c.JWTAudience))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(c.JWTSecret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	// Subject claim per RFC 7519, carrying the chat platform user id.
	subStr, ok := claims["sub"].(string)
	if !ok || subStr == "" {
		return nil, errors.New("invalid token structure - missing subject")
	}
	userID, err := strconv.ParseInt(subStr, 10, 64)
	if err != nil || userID <= 0 {
		return nil, errors.New("invalid user ID in token")
	}

	jti, _ := claims["jti"].(string)
	return &ActorClaims{UserID: userID, TokenID: jti}, nil
}

func authenticate(c *fiber.Ctx, allowQuery bool) error {
	tokenString, err := BearerToken(c, allowQuery)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	claims, err := ParseActorToken(cfg, tokenString)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Locals("userID", claims.UserID)
	c.Locals("tokenID", claims.TokenID)
	c.SetUserContext(WithUserID(c.UserContext(), claims.UserID))

	return c.Next()
}

// AuthRequired is a middleware that enforces authentication for protected routes.
func AuthRequired(c *fiber.Ctx) error {
	return authenticate(c, false)
}

// WebSocketAuthRequired also accepts the token as a query parameter, since
// browsers and most gateway websocket clients cannot set headers on upgrade.
func WebSocketAuthRequired(c *fiber.Ctx) error {
	return authenticate(c, true)
}

// SignActorToken mints a gateway token for userID. The gateway normally does
// this; the load tool and tests use it to act as arbitrary users.
func SignActorToken(c *config.Config, userID int64, tokenID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if tokenID != "" {
		claims["jti"] = tokenID
	}
	if c.JWTIssuer != "" {
		claims["iss"] = c.JWTIssuer
	}
	if c.JWTAudience != "" {
		claims["aud"] = c.JWTAudience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.JWTSecret))
}
