package server

import (
	"strings"

	"confessional/internal/action"
	"confessional/internal/models"

	"github.com/gofiber/fiber/v2"
)

// PersonaMessageRequest addresses a persona token with a message.
type PersonaMessageRequest struct {
	Target string `json:"target"`
	Text   string `json:"text"`
}

// ReportUser godoc
// @Summary Report the user behind a persona token
// @Tags social
// @Accept json
// @Produce json
// @Param request body PersonaMessageRequest true "Report"
// @Success 200 {object} models.Report
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /reports [post]
// @Security BearerAuth
func (s *Server) ReportUser(c *fiber.Ctx) error {
	return s.personaMessage(c, action.ReportUser)
}

// RequestChat godoc
// @Summary Ask the user behind a persona token to chat
// @Tags social
// @Accept json
// @Produce json
// @Param request body PersonaMessageRequest true "Chat request"
// @Success 200 {object} models.ChatRequest
// @Failure 403 {object} models.ErrorResponse
// @Router /chat-requests [post]
// @Security BearerAuth
func (s *Server) RequestChat(c *fiber.Ctx) error {
	return s.personaMessage(c, action.RequestChat)
}

// AcceptChat godoc
// @Summary Accept a chat request
// @Tags social
// @Produce json
// @Param id path string true "Chat request ID"
// @Success 200 {object} models.ChatRequest
// @Failure 409 {object} models.ErrorResponse
// @Router /chat-requests/{id}/accept [post]
// @Security BearerAuth
func (s *Server) AcceptChat(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	return s.run(c, action.AcceptChat, id.String(), nil)
}

// DeclineChat godoc
// @Summary Decline a chat request
// @Tags social
// @Produce json
// @Param id path string true "Chat request ID"
// @Success 200 {object} models.ChatRequest
// @Failure 409 {object} models.ErrorResponse
// @Router /chat-requests/{id}/decline [post]
// @Security BearerAuth
func (s *Server) DeclineChat(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	return s.run(c, action.DeclineChat, id.String(), nil)
}

func (s *Server) personaMessage(c *fiber.Ctx, kind action.Kind) error {
	var req PersonaMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if strings.TrimSpace(req.Target) == "" || strings.TrimSpace(req.Text) == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("target and text are required"))
	}
	return s.run(c, kind, strings.TrimSpace(req.Target), map[string]string{"text": req.Text})
}
