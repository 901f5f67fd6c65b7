package repository

import (
	"context"
	"errors"
	"time"

	"confessional/internal/models"
	"confessional/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReportRepository stores user reports for operators.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	ListOpen(ctx context.Context, limit int) ([]models.Report, error)
}

type reportRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewReportRepository creates a new ReportRepository
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db, log: observability.NewRepoLogger("reports")}
}

func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	report.Status = models.ReportStatusOpen
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return classify(err, "Report", report.ID)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"report_id": report.ID})
	return nil
}

func (r *reportRepository) ListOpen(ctx context.Context, limit int) ([]models.Report, error) {
	var reports []models.Report
	err := r.db.WithContext(ctx).
		Where("status = ?", models.ReportStatusOpen).
		Order("created_at desc").
		Limit(clampLimit(limit, 20, 100)).
		Find(&reports).Error
	if err != nil {
		return nil, classify(err, "Report", nil)
	}
	return reports, nil
}

// ChatRequestRepository stores chat requests between personas.
type ChatRequestRepository interface {
	Create(ctx context.Context, request *models.ChatRequest) error
	Get(ctx context.Context, id uuid.UUID) (*models.ChatRequest, error)
	Respond(ctx context.Context, id uuid.UUID, actorID int64, status models.ChatRequestStatus, now time.Time) (*models.ChatRequest, error)
}

type chatRequestRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewChatRequestRepository creates a new ChatRequestRepository
func NewChatRequestRepository(db *gorm.DB) ChatRequestRepository {
	return &chatRequestRepository{db: db, log: observability.NewRepoLogger("chat_requests")}
}

func (r *chatRequestRepository) Create(ctx context.Context, request *models.ChatRequest) error {
	request.Status = models.ChatRequestPending
	if err := r.db.WithContext(ctx).Create(request).Error; err != nil {
		return classify(err, "ChatRequest", request.ID)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"chat_request_id": request.ID})
	return nil
}

func (r *chatRequestRepository) Get(ctx context.Context, id uuid.UUID) (*models.ChatRequest, error) {
	var request models.ChatRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, classify(err, "ChatRequest", id)
	}
	return &request, nil
}

var errRequestNotOpen = errors.New("chat request not open to this actor")

// Respond moves a pending request to accepted or declined. Only the target
// may respond, and only once.
func (r *chatRequestRepository) Respond(
	ctx context.Context, id uuid.UUID, actorID int64, status models.ChatRequestStatus, now time.Time,
) (*models.ChatRequest, error) {
	if status != models.ChatRequestAccepted && status != models.ChatRequestDeclined {
		return nil, models.NewValidationError("invalid chat request response")
	}
	now = utc(now)

	var request models.ChatRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ChatRequest{}).
			Where("id = ? AND target_user_id = ? AND status = ?", id, actorID, models.ChatRequestPending).
			UpdateColumns(map[string]interface{}{"status": status, "responded_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errRequestNotOpen
		}
		return tx.Where("id = ?", id).First(&request).Error
	})
	if errors.Is(err, errRequestNotOpen) {
		existing, getErr := r.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if existing.TargetUserID != actorID {
			return nil, models.NewForbiddenError("Only the recipient can answer this request")
		}
		return nil, models.NewAlreadyProcessedError(id)
	}
	if err != nil {
		return nil, classify(err, "ChatRequest", id)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"chat_request_id": id, "status": status})
	return &request, nil
}
