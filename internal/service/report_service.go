package service

import (
	"context"
	"fmt"
	"time"

	"confessional/internal/featureflags"
	"confessional/internal/models"
	"confessional/internal/repository"
	"confessional/internal/validation"

	"github.com/google/uuid"
)

// ReportService handles persona reports and chat requests between users.
type ReportService struct {
	reports  repository.ReportRepository
	chats    repository.ChatRequestRepository
	blocks   repository.BlockRepository
	notifier Notifier
	flags    *featureflags.Manager
	admins   Admins
	now      func() time.Time
}

func NewReportService(
	reports repository.ReportRepository,
	chats repository.ChatRequestRepository,
	blocks repository.BlockRepository,
	notifier Notifier,
	flags *featureflags.Manager,
	admins Admins,
) *ReportService {
	return &ReportService{
		reports:  reports,
		chats:    chats,
		blocks:   blocks,
		notifier: notifier,
		flags:    flags,
		admins:   admins,
		now:      systemNow,
	}
}

// WithClock replaces the clock used for chat request timestamps.
func (s *ReportService) WithClock(now func() time.Time) *ReportService {
	s.now = func() time.Time { return now().UTC() }
	return s
}

// ReportUser stores the report and alerts operators with both user ids.
func (s *ReportService) ReportUser(ctx context.Context, reporterID, targetUserID int64, reason string) (*models.Report, error) {
	if reporterID == targetUserID {
		return nil, models.NewValidationError("You cannot report yourself")
	}
	reason, err := validation.ReportReason(reason)
	if err != nil {
		return nil, err
	}
	report := &models.Report{ReporterID: reporterID, TargetUserID: targetUserID, Reason: reason}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}
	s.notifier.Alert(ctx, s.admins, fmt.Sprintf(
		"🚩 New user report\n\nReported user: %d\nReporter: %d\nReason: %s\nReport: %s",
		targetUserID, reporterID, reason, report.ID))
	return report, nil
}

func (s *ReportService) ListOpenReports(ctx context.Context, limit int) ([]models.Report, error) {
	return s.reports.ListOpen(ctx, limit)
}

// ChatsEnabled fails FORBIDDEN when the chat request flow is switched off.
func (s *ReportService) ChatsEnabled(userID int64) error {
	return s.flags.Require(featureflags.ChatRequests, userID)
}

// RequestChat stores a pending request and tells the target.
func (s *ReportService) RequestChat(ctx context.Context, requesterID, targetUserID int64, message string) (*models.ChatRequest, error) {
	if err := s.ChatsEnabled(requesterID); err != nil {
		return nil, err
	}
	if requesterID == targetUserID {
		return nil, models.NewValidationError("You cannot send a chat request to yourself")
	}
	if err := ensureNotBlocked(ctx, s.blocks, requesterID); err != nil {
		return nil, err
	}
	message, err := validation.ChatMessage(message)
	if err != nil {
		return nil, err
	}
	request := &models.ChatRequest{RequesterID: requesterID, TargetUserID: targetUserID, Message: message}
	if err := s.chats.Create(ctx, request); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, targetUserID, "💌 Someone wants to chat with you:\n\n"+message, "")
	return request, nil
}

// AcceptChatRequest connects both users. Only the target may answer, once.
func (s *ReportService) AcceptChatRequest(ctx context.Context, requestID uuid.UUID, actorID int64) (*models.ChatRequest, error) {
	if err := s.ChatsEnabled(actorID); err != nil {
		return nil, err
	}
	request, err := s.chats.Respond(ctx, requestID, actorID, models.ChatRequestAccepted, s.now())
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, request.RequesterID, "✅ Your chat request was accepted.", userLink(request.TargetUserID))
	s.notifier.Notify(ctx, request.TargetUserID, "✅ You accepted the chat request.", userLink(request.RequesterID))
	return request, nil
}

func (s *ReportService) DeclineChatRequest(ctx context.Context, requestID uuid.UUID, actorID int64) (*models.ChatRequest, error) {
	if err := s.ChatsEnabled(actorID); err != nil {
		return nil, err
	}
	request, err := s.chats.Respond(ctx, requestID, actorID, models.ChatRequestDeclined, s.now())
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, request.RequesterID, "Your chat request was declined.", "")
	return request, nil
}

func userLink(userID int64) string {
	return fmt.Sprintf("tg://user?id=%d", userID)
}
