package service

import (
	"context"
	"fmt"
	"log/slog"

	"confessional/internal/cache"
	"confessional/internal/models"
	"confessional/internal/observability"
	"confessional/internal/repository"
	"confessional/internal/validation"

	"github.com/google/uuid"
)

type AddCommentInput struct {
	ConfessionID uuid.UUID
	AuthorID     int64
	ParentIndex  int
	Text         string
	MediaRef     *string
}

type CommentService struct {
	confessions repository.ConfessionRepository
	blocks      repository.BlockRepository
	notifier    Notifier
	links       ThreadLinker
	markup      MarkupRefresher
}

func NewCommentService(
	confessions repository.ConfessionRepository,
	blocks repository.BlockRepository,
	notifier Notifier,
	links ThreadLinker,
	markup MarkupRefresher,
) *CommentService {
	return &CommentService{
		confessions: confessions,
		blocks:      blocks,
		notifier:    notifier,
		links:       links,
		markup:      markup,
	}
}

// CanComment fails unless the confession is approved.
func (s *CommentService) CanComment(ctx context.Context, confessionID uuid.UUID) (*models.Confession, error) {
	confession, err := s.confessions.GetByID(ctx, confessionID)
	if err != nil {
		return nil, err
	}
	if !confession.IsApproved() {
		return nil, models.NewNotApprovedError(confessionID)
	}
	return confession, nil
}

// AddComment appends a comment and notifies whoever it answers.
func (s *CommentService) AddComment(ctx context.Context, in AddCommentInput) (*models.Comment, error) {
	text, err := validation.CommentText(in.Text, in.MediaRef != nil)
	if err != nil {
		return nil, err
	}
	if err := ensureNotBlocked(ctx, s.blocks, in.AuthorID); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ConfessionID: in.ConfessionID,
		AuthorID:     in.AuthorID,
		Text:         text,
		MediaRef:     in.MediaRef,
		ParentIndex:  in.ParentIndex,
	}
	if _, err := s.confessions.AppendComment(ctx, in.ConfessionID, comment); err != nil {
		return nil, err
	}
	cache.InvalidateThread(ctx, in.ConfessionID.String())

	s.notifyRecipient(ctx, comment)
	if s.markup != nil {
		s.markup.RefreshPublishedMarkup(ctx, in.ConfessionID)
	}
	return comment, nil
}

func (s *CommentService) notifyRecipient(ctx context.Context, comment *models.Comment) {
	confession, err := s.confessions.GetByID(ctx, comment.ConfessionID)
	if err != nil {
		logWarn(ctx, "comment notification: load confession", err,
			slog.String("confession_id", comment.ConfessionID.String()))
		return
	}
	link := ""
	if s.links != nil {
		link = s.links.ThreadURL(confession.ID)
	}

	if comment.IsTopLevel() {
		if confession.AuthorID != comment.AuthorID {
			s.notifier.Notify(ctx, confession.AuthorID,
				fmt.Sprintf("💬 New comment on your confession #%d:\n\n%s", numberOf(confession), preview(comment.Text, 100)), link)
		}
		return
	}

	parent, err := s.confessions.GetComment(ctx, comment.ConfessionID, comment.ParentIndex)
	if err != nil {
		logWarn(ctx, "comment notification: load parent", err, slog.Int("parent_index", comment.ParentIndex))
		return
	}
	if parent.AuthorID != comment.AuthorID {
		s.notifier.Notify(ctx, parent.AuthorID,
			fmt.Sprintf("↩️ Someone replied to your comment on confession #%d:\n\n%s", numberOf(confession), preview(comment.Text, 100)), link)
	}
	observability.GlobalLogger.DebugContext(ctx, "reply notification sent",
		slog.String("confession_id", comment.ConfessionID.String()), slog.Int("index", comment.Index))
}
