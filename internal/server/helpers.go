package server

import (
	"errors"
	"strings"
	"unicode"

	"confessional/internal/middleware"
	"confessional/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	maxPaginationLimit = 100
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// parseUUID extracts a route parameter as a uuid.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func parseUUID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return uuid.Nil, errResponseWritten
	}
	return id, nil
}

// parseUserID extracts a route parameter as a positive chat user id.
func parseUserID(c *fiber.Ctx, param string) (int64, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return int64(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "userId" -> "user ID", "requestId" -> "request ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		prefix := param[:len(param)-2]
		words := splitCamel(prefix)
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// actorID is the authenticated caller set by AuthRequired.
func actorID(c *fiber.Ctx) int64 {
	id, _ := c.Locals("userID").(int64)
	return id
}

// respondError renders err with the status its code maps to.
func respondError(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status == fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			"path", c.Path(), "error", err.Error())
	}
	return models.RespondWithError(c, status, err)
}

func (s *Server) isAdmin(userID int64) bool {
	return s.admins.Contains(userID)
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !s.isAdmin(actorID(c)) {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// AuthRequired validates the gateway token and rejects revoked token ids.
func (s *Server) AuthRequired() fiber.Handler {
	return s.authenticate(false)
}

// WebSocketAuthRequired also accepts ?token= since websocket clients cannot
// always set headers on upgrade.
func (s *Server) WebSocketAuthRequired() fiber.Handler {
	return s.authenticate(true)
}

func (s *Server) authenticate(allowQuery bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := middleware.BearerToken(c, allowQuery)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := middleware.ParseActorToken(s.config, tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		// Check JTI for revocation
		if claims.TokenID != "" && s.redis != nil {
			revoked, err := s.redis.Exists(c.Context(), "blacklist:"+claims.TokenID).Result()
			if err == nil && revoked > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		c.Locals("userID", claims.UserID)
		c.Locals("tokenID", claims.TokenID)
		c.SetUserContext(middleware.WithUserID(c.UserContext(), claims.UserID))
		return c.Next()
	}
}
