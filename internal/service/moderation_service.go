package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"confessional/internal/cache"
	"confessional/internal/models"
	"confessional/internal/observability"
	"confessional/internal/publish"
	"confessional/internal/repository"
	"confessional/internal/validation"

	"github.com/google/uuid"
)

// Sleeper waits between publish attempts. It returns early with ctx.Err().
type Sleeper func(ctx context.Context, d time.Duration) error

func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const (
	pendingListLimit   = 10
	republishBatch     = 20
	republishMinAge    = time.Minute
	alertPreviewLength = 300
)

// ApproveResult reports the approval and the outcome of the publish step.
// PublishErr is set when publishing gave up; the approval itself stands.
// PublishErrorCode is its AppError code for clients.
type ApproveResult struct {
	Confession       *models.Confession `json:"confession"`
	PublishedRef     string             `json:"published_ref,omitempty"`
	Attempts         int                `json:"attempts"`
	PublishErr       error              `json:"-"`
	PublishErrorCode string             `json:"publish_error_code,omitempty"`
}

// PendingView is what operators see for a queued confession.
type PendingView struct {
	Confession *models.Confession `json:"confession"`
	AuthorID   int64              `json:"author_id"`
}

type ModerationConfig struct {
	Admins      Admins
	MaxAttempts int
	BackoffBase time.Duration
}

// ModerationService runs the Pending -> Approved | Rejected workflow, the
// publish side effect and the operator switches.
type ModerationService struct {
	confessions repository.ConfessionRepository
	settings    repository.SettingsRepository
	blocks      repository.BlockRepository
	publisher   publish.Publisher
	notifier    Notifier
	links       ThreadLinker
	cfg         ModerationConfig
	sleep       Sleeper
	now         func() time.Time

	// confessions with a publish running in this process
	inflight sync.Map
}

func NewModerationService(
	confessions repository.ConfessionRepository,
	settings repository.SettingsRepository,
	blocks repository.BlockRepository,
	publisher publish.Publisher,
	notifier Notifier,
	links ThreadLinker,
	cfg ModerationConfig,
) *ModerationService {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	return &ModerationService{
		confessions: confessions,
		settings:    settings,
		blocks:      blocks,
		publisher:   publisher,
		notifier:    notifier,
		links:       links,
		cfg:         cfg,
		sleep:       contextSleep,
		now:         systemNow,
	}
}

// WithSleeper replaces the backoff sleeper.
func (s *ModerationService) WithSleeper(sleep Sleeper) *ModerationService {
	s.sleep = sleep
	return s
}

// WithClock replaces the clock used for moderation timestamps.
func (s *ModerationService) WithClock(now func() time.Time) *ModerationService {
	s.now = func() time.Time { return now().UTC() }
	return s
}

func (s *ModerationService) IsAdmin(userID int64) bool {
	return s.cfg.Admins.Contains(userID)
}

func (s *ModerationService) threadURL(id uuid.UUID) string {
	if s.links == nil {
		return ""
	}
	return s.links.ThreadURL(id)
}

// Approve numbers the confession and then publishes it with bounded retries.
// Exactly one concurrent caller wins; the others see ALREADY_PROCESSED.
func (s *ModerationService) Approve(ctx context.Context, confessionID uuid.UUID, moderatorID int64) (*ApproveResult, error) {
	span, ctx := observability.NewSpan(ctx, "moderation.approve")
	defer span.End()

	confession, err := s.confessions.Approve(ctx, confessionID, moderatorID, s.now())
	observability.ModerationTransitions.WithLabelValues(string(models.ModerationApprove), observability.ResultLabel(codeOf(err))).Inc()
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	cache.Invalidate(ctx, cache.LatestKey)

	result := &ApproveResult{Confession: confession}
	s.inflight.Store(confession.ID, struct{}{})
	ref, attempts, pubErr := s.publishWithRetry(ctx, confession, true)
	s.inflight.Delete(confession.ID)
	result.Attempts = attempts
	if pubErr != nil {
		result.PublishErr = pubErr
		result.PublishErrorCode = models.ErrorCode(pubErr)
	} else {
		result.PublishedRef = ref
		confession.PublishedRef = &ref
	}

	s.notifier.Notify(ctx, confession.AuthorID,
		fmt.Sprintf("✅ Your confession #%d has been approved.", numberOf(confession)),
		s.threadURL(confession.ID))
	return result, nil
}

// Reject deletes a pending confession and tells the author.
func (s *ModerationService) Reject(ctx context.Context, confessionID uuid.UUID, moderatorID int64) error {
	span, ctx := observability.NewSpan(ctx, "moderation.reject")
	defer span.End()

	confession, err := s.confessions.Reject(ctx, confessionID, moderatorID, s.now())
	observability.ModerationTransitions.WithLabelValues(string(models.ModerationReject), observability.ResultLabel(codeOf(err))).Inc()
	if err != nil {
		span.SetError(err)
		return err
	}
	s.notifier.Notify(ctx, confession.AuthorID, "❌ Your confession was not approved by the admins.", "")
	return nil
}

// SubmitForReview auto-approves when the switch is on, otherwise queues the
// confession for operators. The returned result is nil when queued.
func (s *ModerationService) SubmitForReview(ctx context.Context, confession *models.Confession) (*ApproveResult, error) {
	auto, err := s.AutoApprove(ctx)
	if err != nil {
		logWarn(ctx, "auto-approve lookup failed, queueing confession", err, slog.String("confession_id", confession.ID.String()))
		auto = false
	}
	if auto {
		return s.Approve(ctx, confession.ID, models.SystemModeratorID)
	}

	s.notifier.Alert(ctx, s.cfg.Admins, fmt.Sprintf(
		"🆕 New confession pending review\n\n%s\n\nTags: %s\nID: %s",
		preview(confession.Text, alertPreviewLength), strings.Join(confession.Tags, ", "), confession.ID))
	return nil, nil
}

// publishWithRetry is never called inside a transaction. A permanent gateway
// error stops early.
func (s *ModerationService) publishWithRetry(ctx context.Context, confession *models.Confession, alert bool) (string, int, error) {
	var lastErr error
	attempt := 0
	for attempt < s.cfg.MaxAttempts {
		attempt++
		attemptCtx, span := observability.TracePublish(ctx, confession.ID.String(), attempt)
		ref, err := s.publisher.Publish(attemptCtx, confession)
		if err == nil {
			span.End()
			observability.PublishAttempts.WithLabelValues("ok").Inc()
			if err := s.confessions.SetPublishedRef(ctx, confession.ID, ref); err != nil {
				observability.GlobalLogger.ErrorContext(ctx, "published confession but could not store its ref",
					slog.String("confession_id", confession.ID.String()),
					slog.String("published_ref", ref),
					slog.String("error", err.Error()))
				s.notifier.Alert(ctx, s.cfg.Admins, fmt.Sprintf(
					"⚠️ Confession #%d (%s) was posted as %s but the ref could not be saved: %v",
					numberOf(confession), confession.ID, ref, err))
				return ref, attempt, nil
			}
			cache.InvalidateThread(ctx, confession.ID.String())
			return ref, attempt, nil
		}

		observability.RecordErrorInContext(attemptCtx, err)
		span.End()
		lastErr = err
		if errors.Is(err, publish.ErrPermanent) {
			observability.PublishAttempts.WithLabelValues("permanent").Inc()
			break
		}
		observability.PublishAttempts.WithLabelValues("error").Inc()
		if attempt < s.cfg.MaxAttempts {
			backoff := s.cfg.BackoffBase << (attempt - 1)
			if err := s.sleep(ctx, backoff); err != nil {
				lastErr = errors.Join(lastErr, err)
				break
			}
		}
	}

	observability.GlobalLogger.ErrorContext(ctx, "publish failed",
		slog.String("confession_id", confession.ID.String()),
		slog.Int64("number", numberOf(confession)),
		slog.Int("attempts", attempt),
		slog.String("error", lastErr.Error()))
	if alert {
		s.notifier.Alert(ctx, s.cfg.Admins, fmt.Sprintf(
			"⚠️ Posting failure: confession #%d (%s) failed to post after %d attempt(s).\nLast error: %v",
			numberOf(confession), confession.ID, attempt, lastErr))
	}
	return "", attempt, models.NewPublishFailureError(lastErr)
}

// RepublishPending retries approved confessions that never got a published
// ref. It returns how many were published.
func (s *ModerationService) RepublishPending(ctx context.Context) (int, error) {
	pending, err := s.confessions.ListUnpublished(ctx, s.now().Add(-republishMinAge), republishBatch)
	if err != nil {
		return 0, err
	}
	published, skipped := 0, 0
	for i := range pending {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}
		id := pending[i].ID
		if _, busy := s.inflight.LoadOrStore(id, struct{}{}); busy {
			skipped++
			continue
		}
		_, _, err := s.publishWithRetry(ctx, &pending[i], false)
		s.inflight.Delete(id)
		if err == nil {
			published++
		}
	}
	if failed := len(pending) - published - skipped; failed > 0 {
		s.notifier.Alert(ctx, s.cfg.Admins, fmt.Sprintf("⚠️ %d approved confession(s) are still unpublished.", failed))
	}
	return published, nil
}

// RefreshPublishedMarkup is best-effort; failures are logged.
func (s *ModerationService) RefreshPublishedMarkup(ctx context.Context, confessionID uuid.UUID) {
	confession, err := s.confessions.GetByID(ctx, confessionID)
	if err != nil {
		logWarn(ctx, "markup refresh: load confession", err, slog.String("confession_id", confessionID.String()))
		return
	}
	if !confession.IsPublished() {
		return
	}
	if err := s.publisher.UpdateMarkup(ctx, *confession.PublishedRef, confession.Likes, confession.Dislikes, confession.CommentCount); err != nil {
		logWarn(ctx, "markup refresh failed", err, slog.String("confession_id", confessionID.String()))
	}
}

// AutoApprove reads the persisted switch through the cache.
func (s *ModerationService) AutoApprove(ctx context.Context) (bool, error) {
	var enabled bool
	err := cache.Aside(ctx, cache.AutoApproveKey, &enabled, cache.AutoApproveTTL, func() error {
		v, err := s.settings.GetBool(ctx, models.SettingAutoApprove)
		enabled = v
		return err
	})
	return enabled, err
}

func (s *ModerationService) ToggleAutoApprove(ctx context.Context, operatorID int64) (bool, error) {
	enabled, err := s.settings.ToggleBool(ctx, models.SettingAutoApprove, operatorID)
	if err != nil {
		return false, err
	}
	cache.Invalidate(ctx, cache.AutoApproveKey)
	observability.GlobalLogger.InfoContext(ctx, "auto-approve toggled",
		slog.Bool("enabled", enabled), slog.Int64("operator_id", operatorID))
	return enabled, nil
}

func (s *ModerationService) ListPending(ctx context.Context) ([]models.Confession, error) {
	return s.confessions.ListPending(ctx, pendingListLimit)
}

// ViewPending includes the true author id, for operators only.
func (s *ModerationService) ViewPending(ctx context.Context, confessionID uuid.UUID) (*PendingView, error) {
	confession, err := s.confessions.GetPendingByID(ctx, confessionID)
	if err != nil {
		return nil, err
	}
	return &PendingView{Confession: confession, AuthorID: confession.AuthorID}, nil
}

// ReplyToConfessor messages the author of a pending confession without
// revealing who they are.
func (s *ModerationService) ReplyToConfessor(ctx context.Context, confessionID uuid.UUID, operatorID int64, text string) error {
	text, err := validation.ChatMessage(text)
	if err != nil {
		return err
	}
	confession, err := s.confessions.GetPendingByID(ctx, confessionID)
	if err != nil {
		return err
	}
	s.notifier.Notify(ctx, confession.AuthorID, "✉️ Reply from admins regarding your confession:\n\n"+text, "")
	observability.GlobalLogger.InfoContext(ctx, "operator replied to confessor",
		slog.String("confession_id", confessionID.String()), slog.Int64("operator_id", operatorID))
	return nil
}

func (s *ModerationService) BlockUser(ctx context.Context, userID, operatorID int64, reason string) error {
	if s.IsAdmin(userID) {
		return models.NewValidationError("Operators cannot be blocked")
	}
	return s.blocks.Block(ctx, userID, operatorID, strings.TrimSpace(reason))
}

// UnblockUser reports whether the user was blocked.
func (s *ModerationService) UnblockUser(ctx context.Context, userID int64) (bool, error) {
	return s.blocks.Unblock(ctx, userID)
}

func (s *ModerationService) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	return s.blocks.IsBlocked(ctx, userID)
}

func (s *ModerationService) ListBlocked(ctx context.Context) ([]models.BlockedUser, error) {
	return s.blocks.List(ctx)
}

func codeOf(err error) string {
	if err == nil {
		return ""
	}
	return models.ErrorCode(err)
}
