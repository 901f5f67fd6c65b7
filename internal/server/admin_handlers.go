package server

import (
	"confessional/internal/action"
	"confessional/internal/models"

	"github.com/gofiber/fiber/v2"
)

// BlockRequest carries an optional reason.
type BlockRequest struct {
	Reason string `json:"reason"`
}

// MaintenanceResponse reports one manual janitor pass.
type MaintenanceResponse struct {
	PurgedDrafts int64 `json:"purged_drafts"`
	Republished  int   `json:"republished"`
}

// GetPending godoc
// @Summary Pending confessions
// @Tags admin
// @Produce json
// @Success 200 {array} models.Confession
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/pending [get]
// @Security BearerAuth
func (s *Server) GetPending(c *fiber.Ctx) error {
	return s.run(c, action.PendingList, "", nil)
}

// GetPendingConfession godoc
// @Summary One pending confession with its author
// @Tags admin
// @Produce json
// @Param id path string true "Confession ID"
// @Success 200 {object} service.PendingView
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/pending/{id} [get]
// @Security BearerAuth
func (s *Server) GetPendingConfession(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	return s.run(c, action.PendingList, id.String(), nil)
}

// ApproveConfession godoc
// @Summary Approve and publish a confession
// @Tags admin
// @Produce json
// @Param id path string true "Confession ID"
// @Success 200 {object} service.ApproveResult
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/confessions/{id}/approve [post]
// @Security BearerAuth
func (s *Server) ApproveConfession(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	return s.run(c, action.Approve, id.String(), nil)
}

// RejectConfession godoc
// @Summary Reject a pending confession
// @Tags admin
// @Produce json
// @Param id path string true "Confession ID"
// @Success 200 {object} object
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/confessions/{id}/reject [post]
// @Security BearerAuth
func (s *Server) RejectConfession(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	return s.run(c, action.Reject, id.String(), nil)
}

// ReplyToConfessor godoc
// @Summary Message the author of a pending confession
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Confession ID"
// @Param request body TextRequest true "Reply"
// @Success 200 {object} object
// @Router /admin/confessions/{id}/reply [post]
// @Security BearerAuth
func (s *Server) ReplyToConfessor(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	var req TextRequest
	if err := c.BodyParser(&req); err != nil || req.Text == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("text is required"))
	}
	return s.run(c, action.AdminReply, id.String(), map[string]string{"text": req.Text})
}

// ToggleAutoApprove godoc
// @Summary Flip the auto-approve switch
// @Tags admin
// @Produce json
// @Success 200 {object} object
// @Router /admin/auto-approve [post]
// @Security BearerAuth
func (s *Server) ToggleAutoApprove(c *fiber.Ctx) error {
	return s.run(c, action.ToggleAutoApprove, "", nil)
}

// GetAutoApprove godoc
// @Summary Read the auto-approve switch
// @Tags admin
// @Produce json
// @Success 200 {object} object
// @Router /admin/auto-approve [get]
// @Security BearerAuth
func (s *Server) GetAutoApprove(c *fiber.Ctx) error {
	enabled, err := s.svc.Moderation.AutoApprove(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"enabled": enabled})
}

// BlockUser godoc
// @Summary Block a user from every action
// @Tags admin
// @Accept json
// @Produce json
// @Param userId path int true "Chat user ID"
// @Param request body BlockRequest false "Reason"
// @Success 200 {object} object
// @Router /admin/users/{userId}/block [post]
// @Security BearerAuth
func (s *Server) BlockUser(c *fiber.Ctx) error {
	userID, err := parseUserID(c, "userId")
	if err != nil {
		return nil
	}
	var req BlockRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
	}
	return s.run(c, action.BlockUser, "", map[string]any{"user_id": userID, "reason": req.Reason})
}

// UnblockUser godoc
// @Summary Lift a block
// @Tags admin
// @Produce json
// @Param userId path int true "Chat user ID"
// @Success 200 {object} object
// @Router /admin/users/{userId}/block [delete]
// @Security BearerAuth
func (s *Server) UnblockUser(c *fiber.Ctx) error {
	userID, err := parseUserID(c, "userId")
	if err != nil {
		return nil
	}
	return s.run(c, action.UnblockUser, "", map[string]any{"user_id": userID})
}

// ListBlocked godoc
// @Summary Blocked users
// @Tags admin
// @Produce json
// @Success 200 {array} models.BlockedUser
// @Router /admin/blocked [get]
// @Security BearerAuth
func (s *Server) ListBlocked(c *fiber.Ctx) error {
	blocked, err := s.svc.Moderation.ListBlocked(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(blocked)
}

// ListReports godoc
// @Summary Open reports
// @Tags admin
// @Produce json
// @Param limit query int false "Page size"
// @Success 200 {array} models.Report
// @Router /admin/reports [get]
// @Security BearerAuth
func (s *Server) ListReports(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	reports, err := s.svc.Reports.ListOpenReports(c.UserContext(), page.Limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reports)
}

// GetFeatureFlags godoc
// @Summary Feature flags as configured and as they apply to the caller
// @Tags admin
// @Produce json
// @Success 200 {object} object
// @Router /admin/feature-flags [get]
// @Security BearerAuth
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"raw":       s.graph.Flags.Raw(),
		"effective": s.graph.Flags.Snapshot(actorID(c)),
	})
}

// RunMaintenance godoc
// @Summary Purge expired drafts and retry unpublished approvals now
// @Tags admin
// @Produce json
// @Success 200 {object} MaintenanceResponse
// @Router /admin/maintenance [post]
// @Security BearerAuth
func (s *Server) RunMaintenance(c *fiber.Ctx) error {
	purged, republished, err := s.graph.Maintenance(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(MaintenanceResponse{PurgedDrafts: purged, Republished: republished})
}
