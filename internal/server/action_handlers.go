package server

import (
	"encoding/json"
	"strings"

	"confessional/internal/action"
	"confessional/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ActionRequest is the body of POST /api/actions.
type ActionRequest struct {
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	TargetRef string          `json:"target_ref,omitempty"`
}

// ActionResponse wraps a handler result.
type ActionResponse struct {
	Kind   action.Kind `json:"kind"`
	Result any         `json:"result"`
}

// ActionInfo describes one available kind.
type ActionInfo = action.Info

// DispatchAction godoc
// @Summary Run an action
// @Description Runs one action from the closed set on behalf of the token subject.
// @Tags actions
// @Accept json
// @Produce json
// @Param request body ActionRequest true "Action"
// @Success 200 {object} ActionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /actions [post]
// @Security BearerAuth
func (s *Server) DispatchAction(c *fiber.Ctx) error {
	var req ActionRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	kind := action.Kind(strings.TrimSpace(req.Kind))
	c.Locals("actionKind", string(kind))
	result, err := s.router.Dispatch(c.UserContext(), action.Request{
		Kind:      kind,
		Payload:   req.Payload,
		TargetRef: req.TargetRef,
		ActorID:   actorID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ActionResponse{Kind: kind, Result: result})
}

// ListActions godoc
// @Summary List actions
// @Description Lists the kinds the caller may run.
// @Tags actions
// @Produce json
// @Success 200 {array} ActionInfo
// @Router /actions [get]
// @Security BearerAuth
func (s *Server) ListActions(c *fiber.Ctx) error {
	out := s.router.Available(actorID(c))
	if out == nil {
		out = []ActionInfo{}
	}
	return c.JSON(out)
}

// GetCatalog godoc
// @Summary Tags, persona emoji, genders and rules
// @Description The choices a client renders for the submission and profile flows.
// @Tags actions
// @Produce json
// @Success 200 {object} action.CatalogResult
// @Router /catalog [get]
// @Security BearerAuth
func (s *Server) GetCatalog(c *fiber.Ctx) error {
	return s.run(c, action.Catalog, "", nil)
}

// GetRules godoc
// @Summary Community rules
// @Tags actions
// @Produce json
// @Success 200 {object} object
// @Router /rules [get]
// @Security BearerAuth
func (s *Server) GetRules(c *fiber.Ctx) error {
	return s.run(c, action.Rules, "", nil)
}

// run dispatches one action for the REST routes, which are thin aliases.
func (s *Server) run(c *fiber.Ctx, kind action.Kind, targetRef string, payload any) error {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return respondError(c, models.NewInternalError(err))
		}
		raw = b
	}
	c.Locals("actionKind", string(kind))
	result, err := s.router.Dispatch(c.UserContext(), action.Request{
		Kind:      kind,
		Payload:   raw,
		TargetRef: targetRef,
		ActorID:   actorID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// runWithBody forwards the raw body as the action payload.
func (s *Server) runWithBody(c *fiber.Ctx, kind action.Kind, targetRef string) error {
	body := c.Body()
	var raw json.RawMessage
	if len(body) > 0 {
		if !json.Valid(body) {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
		raw = append(raw, body...)
	}
	c.Locals("actionKind", string(kind))
	result, err := s.router.Dispatch(c.UserContext(), action.Request{
		Kind:      kind,
		Payload:   raw,
		TargetRef: targetRef,
		ActorID:   actorID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}
