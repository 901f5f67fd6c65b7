package server

import (
	"strconv"

	"confessional/internal/action"
	"confessional/internal/models"
	"confessional/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SubmitConfessionRequest is a one-shot submission without the draft flow.
type SubmitConfessionRequest struct {
	Text     string   `json:"text"`
	MediaRef *string  `json:"media_ref,omitempty"`
	Tags     []string `json:"tags"`
}

// AddCommentRequest appends a comment; parent_index -1 or absent replies to the confession.
type AddCommentRequest struct {
	Text        string  `json:"text"`
	MediaRef    *string `json:"media_ref,omitempty"`
	ParentIndex *int    `json:"parent_index,omitempty"`
}

// VoteRequest carries like, dislike or none.
type VoteRequest struct {
	Value string `json:"value"`
}

// GetLatest godoc
// @Summary Latest confessions
// @Tags confessions
// @Produce json
// @Success 200 {array} models.Confession
// @Router /confessions/latest [get]
// @Security BearerAuth
func (s *Server) GetLatest(c *fiber.Ctx) error {
	return s.run(c, action.Latest, "", nil)
}

// GetRandom godoc
// @Summary Random approved confession
// @Tags confessions
// @Produce json
// @Success 200 {object} models.Confession
// @Router /confessions/random [get]
// @Security BearerAuth
func (s *Server) GetRandom(c *fiber.Ctx) error {
	return s.run(c, action.Random, "", nil)
}

// GetByNumber godoc
// @Summary Find a confession by its public number
// @Tags confessions
// @Produce json
// @Param number path int true "Confession number"
// @Success 200 {object} models.Confession
// @Failure 404 {object} models.ErrorResponse
// @Router /confessions/number/{number} [get]
// @Security BearerAuth
func (s *Server) GetByNumber(c *fiber.Ctx) error {
	n, err := strconv.ParseInt(c.Params("number"), 10, 64)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid confession number"))
	}
	return s.run(c, action.Find, "", map[string]int64{"number": n})
}

// GetThread godoc
// @Summary Thread view of an approved confession
// @Tags confessions
// @Produce json
// @Param id path string true "Confession ID"
// @Success 200 {object} service.ThreadView
// @Failure 404 {object} models.ErrorResponse
// @Router /confessions/{id}/thread [get]
// @Security BearerAuth
func (s *Server) GetThread(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	return s.run(c, action.ViewThread, id.String(), nil)
}

// SubmitConfession godoc
// @Summary Submit a confession for review
// @Tags confessions
// @Accept json
// @Produce json
// @Param request body SubmitConfessionRequest true "Confession"
// @Success 201 {object} service.SubmitResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /confessions [post]
// @Security BearerAuth
func (s *Server) SubmitConfession(c *fiber.Ctx) error {
	var req SubmitConfessionRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	result, err := s.svc.Submissions.Submit(c.UserContext(), service.SubmitInput{
		AuthorID: actorID(c),
		Text:     req.Text,
		MediaRef: req.MediaRef,
		Tags:     req.Tags,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// AddComment godoc
// @Summary Comment on an approved confession
// @Tags confessions
// @Accept json
// @Produce json
// @Param id path string true "Confession ID"
// @Param request body AddCommentRequest true "Comment"
// @Success 201 {object} models.Comment
// @Failure 409 {object} models.ErrorResponse
// @Router /confessions/{id}/comments [post]
// @Security BearerAuth
func (s *Server) AddComment(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	var req AddCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	parent := models.NoParent
	if req.ParentIndex != nil {
		parent = *req.ParentIndex
	}
	comment, err := s.svc.Comments.AddComment(c.UserContext(), service.AddCommentInput{
		ConfessionID: id,
		AuthorID:     actorID(c),
		ParentIndex:  parent,
		Text:         req.Text,
		MediaRef:     req.MediaRef,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// VoteConfession godoc
// @Summary Vote on a confession
// @Tags votes
// @Accept json
// @Produce json
// @Param id path string true "Confession ID"
// @Param request body VoteRequest true "Vote"
// @Success 200 {object} models.VoteResult
// @Failure 403 {object} models.ErrorResponse
// @Router /confessions/{id}/vote [post]
// @Security BearerAuth
func (s *Server) VoteConfession(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	var req VoteRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	return s.run(c, action.Vote, id.String(), map[string]any{"value": req.Value})
}

// VoteComment godoc
// @Summary Vote on a comment
// @Tags votes
// @Accept json
// @Produce json
// @Param id path string true "Confession ID"
// @Param index path int true "Comment index"
// @Param request body VoteRequest true "Vote"
// @Success 200 {object} models.VoteResult
// @Router /confessions/{id}/comments/{index}/vote [post]
// @Security BearerAuth
func (s *Server) VoteComment(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	index, err := c.ParamsInt("index")
	if err != nil || index < 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid comment index"))
	}
	var req VoteRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	return s.run(c, action.CommentVote, id.String(), map[string]any{"value": req.Value, "comment_index": index})
}

// OpenLink godoc
// @Summary Resolve a deep link token
// @Description comment_ tokens open a thread, persona_ tokens a public profile.
// @Tags links
// @Produce json
// @Param token path string true "Deep link token"
// @Success 200 {object} object
// @Failure 404 {object} models.ErrorResponse
// @Router /links/{token} [get]
// @Security BearerAuth
func (s *Server) OpenLink(c *fiber.Ctx) error {
	return s.run(c, action.OpenLink, c.Params("token"), nil)
}
