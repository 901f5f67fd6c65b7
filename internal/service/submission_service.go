package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"confessional/internal/catalog"
	"confessional/internal/cooldown"
	"confessional/internal/models"
	"confessional/internal/observability"
	"confessional/internal/repository"
	"confessional/internal/validation"
)

type SubmitInput struct {
	AuthorID int64
	Text     string
	MediaRef *string
	Tags     []string
}

// SubmitResult carries the approval when auto-approve handled the confession.
type SubmitResult struct {
	Confession *models.Confession `json:"confession"`
	Approval   *ApproveResult     `json:"approval,omitempty"`
}

type SubmissionService struct {
	confessions repository.ConfessionRepository
	profiles    repository.ProfileRepository
	blocks      repository.BlockRepository
	guard       *cooldown.Guard
	catalog     *catalog.Catalog
	moderation  *ModerationService
}

func NewSubmissionService(
	confessions repository.ConfessionRepository,
	profiles repository.ProfileRepository,
	blocks repository.BlockRepository,
	guard *cooldown.Guard,
	cat *catalog.Catalog,
	moderation *ModerationService,
) *SubmissionService {
	return &SubmissionService{
		confessions: confessions,
		profiles:    profiles,
		blocks:      blocks,
		guard:       guard,
		catalog:     cat,
		moderation:  moderation,
	}
}

// Submit validates, reserves the author's cooldown window and stores a
// pending confession. Nothing is stored when validation fails.
func (s *SubmissionService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	result, err := s.submit(ctx, in)
	observability.SubmissionsTotal.WithLabelValues(observability.ResultLabel(codeOf(err))).Inc()
	return result, err
}

func (s *SubmissionService) submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	text, err := validation.ConfessionText(in.Text, in.MediaRef != nil)
	if err != nil {
		return nil, err
	}
	tags, err := validation.Tags(in.Tags, s.catalog.IsTag)
	if err != nil {
		return nil, err
	}
	if err := ensureNotBlocked(ctx, s.blocks, in.AuthorID); err != nil {
		return nil, err
	}

	now := s.guard.Now()
	previous, err := s.reserve(ctx, in.AuthorID, now)
	if err != nil {
		return nil, err
	}

	confession := &models.Confession{
		AuthorID: in.AuthorID,
		Text:     text,
		MediaRef: in.MediaRef,
		Tags:     tags,
		Status:   models.ConfessionStatusPending,
	}
	if err := s.confessions.Create(ctx, confession); err != nil {
		s.release(ctx, in.AuthorID, now, previous)
		return nil, err
	}
	observability.GlobalLogger.InfoContext(ctx, "confession submitted",
		slog.String("confession_id", confession.ID.String()), slog.Int("tags", len(tags)))

	result := &SubmitResult{Confession: confession}
	if s.moderation != nil {
		approval, err := s.moderation.SubmitForReview(ctx, confession)
		if err != nil {
			// the confession stays pending for operators
			logWarn(ctx, "auto-approve failed", err, slog.String("confession_id", confession.ID.String()))
		}
		result.Approval = approval
	}
	return result, nil
}

// reserve checks the profile snapshot first, then claims the window with a
// conditional update so concurrent submits cannot both pass. It returns the
// stamp it replaced.
func (s *SubmissionService) reserve(ctx context.Context, authorID int64, now time.Time) (*time.Time, error) {
	profile, err := s.profiles.GetOrCreate(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CheckSubmission(profile, now); err != nil {
		return nil, err
	}
	err = s.profiles.ReserveSubmission(ctx, authorID, now, s.guard.SubmissionWindow())
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Code == models.CodeRateLimited {
		return nil, cooldown.SubmissionError(appErr.RetryAfter)
	}
	if err != nil {
		return nil, err
	}
	return profile.LastSubmissionAt, nil
}

// release hands the window back after a failed store so the caller can retry.
// It runs even when ctx was cancelled.
func (s *SubmissionService) release(ctx context.Context, authorID int64, reservedAt time.Time, previous *time.Time) {
	ctx = context.WithoutCancel(ctx)
	if err := s.profiles.ReleaseSubmission(ctx, authorID, reservedAt, previous); err != nil {
		logWarn(ctx, "release submission window", err, slog.Int64("user_id", authorID))
	}
}
