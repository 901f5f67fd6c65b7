package server

import (
	"confessional/internal/action"
	"confessional/internal/models"

	"github.com/gofiber/fiber/v2"
)

// TextRequest carries a free-text edit.
type TextRequest struct {
	Text string `json:"text"`
}

// ChoiceRequest carries one value from a fixed set.
type ChoiceRequest struct {
	Value string `json:"value"`
}

// GetMyProfile godoc
// @Summary Own profile
// @Tags profiles
// @Produce json
// @Success 200 {object} service.OwnProfile
// @Router /profiles/me [get]
// @Security BearerAuth
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	return s.run(c, action.ProfileView, "", nil)
}

// GetMyKarma godoc
// @Summary Own aura
// @Tags profiles
// @Produce json
// @Success 200 {object} object
// @Router /profiles/me/karma [get]
// @Security BearerAuth
func (s *Server) GetMyKarma(c *fiber.Ctx) error {
	return s.run(c, action.MyKarma, "", nil)
}

// GetPublicProfile godoc
// @Summary Public profile behind a persona token
// @Tags profiles
// @Produce json
// @Param token path string true "Persona token"
// @Success 200 {object} service.Persona
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/{token} [get]
// @Security BearerAuth
func (s *Server) GetPublicProfile(c *fiber.Ctx) error {
	return s.run(c, action.ProfilePublic, c.Params("token"), nil)
}

// UpdateNickname godoc
// @Summary Change nickname
// @Tags profiles
// @Accept json
// @Produce json
// @Param request body TextRequest true "Nickname"
// @Success 200 {object} object
// @Failure 400 {object} models.ErrorResponse
// @Router /profiles/me/nickname [put]
// @Security BearerAuth
func (s *Server) UpdateNickname(c *fiber.Ctx) error {
	return s.editText(c, action.EditNickname)
}

// UpdateBio godoc
// @Summary Change bio
// @Tags profiles
// @Accept json
// @Produce json
// @Param request body TextRequest true "Bio"
// @Success 200 {object} object
// @Failure 400 {object} models.ErrorResponse
// @Router /profiles/me/bio [put]
// @Security BearerAuth
func (s *Server) UpdateBio(c *fiber.Ctx) error {
	return s.editText(c, action.EditBio)
}

// UpdateEmoji godoc
// @Summary Pick a profile emoji
// @Tags profiles
// @Accept json
// @Produce json
// @Param request body ChoiceRequest true "Emoji"
// @Success 200 {object} object
// @Router /profiles/me/emoji [put]
// @Security BearerAuth
func (s *Server) UpdateEmoji(c *fiber.Ctx) error {
	return s.choose(c, action.SetEmoji)
}

// UpdateGender godoc
// @Summary Pick a gender
// @Tags profiles
// @Accept json
// @Produce json
// @Param request body ChoiceRequest true "Gender"
// @Success 200 {object} object
// @Router /profiles/me/gender [put]
// @Security BearerAuth
func (s *Server) UpdateGender(c *fiber.Ctx) error {
	return s.choose(c, action.SetGender)
}

// TogglePrivacy godoc
// @Summary Flip one privacy field
// @Tags profiles
// @Produce json
// @Param field path string true "Privacy field"
// @Success 200 {object} object
// @Router /profiles/me/privacy/{field} [post]
// @Security BearerAuth
func (s *Server) TogglePrivacy(c *fiber.Ctx) error {
	return s.run(c, action.TogglePrivacy, "", map[string]string{"value": c.Params("field")})
}

// AgreeToRules godoc
// @Summary Accept the community rules
// @Tags profiles
// @Produce json
// @Success 200 {object} object
// @Router /profiles/me/rules [post]
// @Security BearerAuth
func (s *Server) AgreeToRules(c *fiber.Ctx) error {
	return s.run(c, action.AgreeRules, "", nil)
}

// editText runs a direct edit. An empty body text would open a draft, which
// the REST surface does not support.
func (s *Server) editText(c *fiber.Ctx, kind action.Kind) error {
	var req TextRequest
	if err := c.BodyParser(&req); err != nil || req.Text == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("text is required"))
	}
	return s.run(c, kind, "", map[string]string{"text": req.Text})
}

func (s *Server) choose(c *fiber.Ctx, kind action.Kind) error {
	var req ChoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	return s.run(c, kind, "", map[string]string{"value": req.Value})
}
