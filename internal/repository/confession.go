package repository

import (
	"context"
	"errors"
	"time"

	"confessional/internal/models"
	"confessional/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConfessionRepository owns confession and comment mutation.
type ConfessionRepository interface {
	Create(ctx context.Context, confession *models.Confession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Confession, error)
	Approve(ctx context.Context, id uuid.UUID, moderatorID int64, now time.Time) (*models.Confession, error)
	Reject(ctx context.Context, id uuid.UUID, moderatorID int64, now time.Time) (*models.Confession, error)
	AppendComment(ctx context.Context, confessionID uuid.UUID, comment *models.Comment) (int, error)
	GetThread(ctx context.Context, id uuid.UUID) (*models.Confession, []models.Comment, error)
	GetComment(ctx context.Context, confessionID uuid.UUID, index int) (*models.Comment, error)
	SetPublishedRef(ctx context.Context, id uuid.UUID, ref string) error
	ListPending(ctx context.Context, limit int) ([]models.Confession, error)
	GetPendingByID(ctx context.Context, id uuid.UUID) (*models.Confession, error)
	FindByNumber(ctx context.Context, number int64) (*models.Confession, error)
	Latest(ctx context.Context, limit int) ([]models.Confession, error)
	Random(ctx context.Context) (*models.Confession, error)
	ListUnpublished(ctx context.Context, olderThan time.Time, limit int) ([]models.Confession, error)
}

type confessionRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewConfessionRepository creates a new ConfessionRepository
func NewConfessionRepository(db *gorm.DB) ConfessionRepository {
	return &confessionRepository{db: db, log: observability.NewRepoLogger("confessions")}
}

// errNotPending aborts a moderation transaction whose guarded update matched nothing.
var errNotPending = errors.New("confession is not pending")

func (r *confessionRepository) Create(ctx context.Context, confession *models.Confession) error {
	ctx, done := observability.TraceQuery(ctx, "create", "confessions")
	defer done()

	confession.Status = models.ConfessionStatusPending
	confession.Number = nil
	confession.PublishedRef = nil
	if err := r.db.WithContext(ctx).Create(confession).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return classify(err, "Confession", confession.ID)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"confession_id": confession.ID})
	return nil
}

func (r *confessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Confession, error) {
	var confession models.Confession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&confession).Error; err != nil {
		return nil, classify(err, "Confession", id)
	}
	return &confession, nil
}

// Approve assigns the next sequence number and records the decision in one
// transaction. Only one concurrent caller can move a confession out of pending.
func (r *confessionRepository) Approve(
	ctx context.Context, id uuid.UUID, moderatorID int64, now time.Time,
) (*models.Confession, error) {
	ctx, done := observability.TraceQuery(ctx, "approve", "confessions")
	defer done()
	now = utc(now)

	var approved models.Confession
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := models.Counter{Name: models.ConfessionSequence, Value: 0}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Counter{}).
			Where("name = ?", models.ConfessionSequence).
			UpdateColumn("value", gorm.Expr("value + ?", 1)).Error; err != nil {
			return err
		}
		var counter models.Counter
		if err := tx.Where("name = ?", models.ConfessionSequence).First(&counter).Error; err != nil {
			return err
		}

		number := counter.Value
		res := tx.Model(&models.Confession{}).
			Where("id = ? AND status = ?", id, models.ConfessionStatusPending).
			Updates(map[string]interface{}{
				"status":      models.ConfessionStatusApproved,
				"number":      number,
				"approved_at": now,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNotPending
		}

		record := models.ModerationRecord{
			ConfessionID:     id,
			ConfessionNumber: &number,
			ModeratorID:      moderatorID,
			Action:           models.ModerationApprove,
			CreatedAt:        now,
		}
		if err := tx.Create(&record).Error; err != nil {
			if isUniqueConstraintError(err) {
				return models.NewAlreadyProcessedError(id)
			}
			return err
		}

		return tx.Where("id = ?", id).First(&approved).Error
	})
	if errors.Is(err, errNotPending) {
		return nil, r.guardFailure(ctx, id)
	}
	if err != nil {
		r.log.LogError(ctx, err, "approve")
		return nil, classify(err, "Confession", id)
	}

	r.log.LogUpdate(ctx, map[string]interface{}{
		"confession_id": id,
		"number":        *approved.Number,
		"moderator_id":  moderatorID,
	})
	return &approved, nil
}

// Reject records the decision and purges the confession with its comments and votes.
// The returned snapshot is the confession as it was before deletion.
func (r *confessionRepository) Reject(
	ctx context.Context, id uuid.UUID, moderatorID int64, now time.Time,
) (*models.Confession, error) {
	ctx, done := observability.TraceQuery(ctx, "reject", "confessions")
	defer done()
	now = utc(now)

	var snapshot models.Confession
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).Where("id = ?", id).First(&snapshot).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errNotPending
			}
			return err
		}
		if snapshot.Status != models.ConfessionStatusPending {
			return errNotPending
		}

		record := models.ModerationRecord{
			ConfessionID: id,
			ModeratorID:  moderatorID,
			Action:       models.ModerationReject,
			CreatedAt:    now,
		}
		if err := tx.Create(&record).Error; err != nil {
			if isUniqueConstraintError(err) {
				return models.NewAlreadyProcessedError(id)
			}
			return err
		}

		if err := tx.Where("confession_id = ?", id).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("confession_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND status = ?", id, models.ConfessionStatusPending).Delete(&models.Confession{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNotPending
		}
		return nil
	})
	if errors.Is(err, errNotPending) {
		return nil, r.guardFailure(ctx, id)
	}
	if err != nil {
		r.log.LogError(ctx, err, "reject")
		return nil, classify(err, "Confession", id)
	}

	r.log.LogDelete(ctx, map[string]interface{}{"confession_id": id, "moderator_id": moderatorID})
	return &snapshot, nil
}

// guardFailure tells a missing confession apart from one a moderator already
// resolved. Rejected confessions are gone, but their ModerationRecord stays.
func (r *confessionRepository) guardFailure(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)

	var confession models.Confession
	err := db.Where("id = ?", id).Limit(1).Find(&confession).Error
	if err != nil {
		return classify(err, "Confession", id)
	}
	if confession.ID != uuid.Nil {
		return models.NewAlreadyProcessedError(id)
	}

	var records int64
	if err := db.Model(&models.ModerationRecord{}).Where("confession_id = ?", id).Count(&records).Error; err != nil {
		return classify(err, "Confession", id)
	}
	if records > 0 {
		return models.NewAlreadyProcessedError(id)
	}
	return models.NewNotFoundError("Confession", id)
}

// AppendComment serializes appenders on the confession row so every comment
// gets the next free index.
func (r *confessionRepository) AppendComment(
	ctx context.Context, confessionID uuid.UUID, comment *models.Comment,
) (int, error) {
	ctx, done := observability.TraceQuery(ctx, "append", "comments")
	defer done()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var confession models.Confession
		if err := tx.Clauses(forUpdate).Where("id = ?", confessionID).First(&confession).Error; err != nil {
			return err
		}
		if !confession.IsApproved() {
			return models.NewNotApprovedError(confessionID)
		}
		if comment.ParentIndex < models.NoParent || comment.ParentIndex >= confession.CommentCount {
			return models.NewValidationError("Reply target does not exist")
		}

		comment.ID = 0
		comment.ConfessionID = confessionID
		comment.Index = confession.CommentCount
		comment.Likes, comment.Dislikes = 0, 0
		if comment.CreatedAt.IsZero() {
			comment.CreatedAt = time.Now()
		}
		comment.CreatedAt = utc(comment.CreatedAt)
		if err := tx.Create(comment).Error; err != nil {
			return err
		}

		return tx.Model(&models.Confession{}).
			Where("id = ?", confessionID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + ?", 1)).Error
	})
	if err != nil {
		r.log.LogError(ctx, err, "append_comment")
		return 0, classify(err, "Confession", confessionID)
	}

	observability.CommentsAppended.Inc()
	r.log.LogCreate(ctx, map[string]interface{}{"confession_id": confessionID, "index": comment.Index})
	return comment.Index, nil
}

func (r *confessionRepository) approved(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Where("status = ?", models.ConfessionStatusApproved)
}

// GetThread returns an approved confession and its comments in append order.
func (r *confessionRepository) GetThread(
	ctx context.Context, id uuid.UUID,
) (*models.Confession, []models.Comment, error) {
	ctx, done := observability.TraceQuery(ctx, "get_thread", "confessions")
	defer done()

	var confession models.Confession
	if err := r.approved(ctx).Where("id = ?", id).First(&confession).Error; err != nil {
		return nil, nil, classify(err, "Confession", id)
	}
	var comments []models.Comment
	if err := r.db.WithContext(ctx).
		Where("confession_id = ?", id).
		Order("idx asc").
		Find(&comments).Error; err != nil {
		return nil, nil, classify(err, "Confession", id)
	}
	return &confession, comments, nil
}

func (r *confessionRepository) GetComment(
	ctx context.Context, confessionID uuid.UUID, index int,
) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).
		Where("confession_id = ? AND idx = ?", confessionID, index).
		First(&comment).Error; err != nil {
		return nil, classify(err, "Comment", index)
	}
	return &comment, nil
}

func (r *confessionRepository) SetPublishedRef(ctx context.Context, id uuid.UUID, ref string) error {
	res := r.db.WithContext(ctx).Model(&models.Confession{}).
		Where("id = ?", id).
		UpdateColumn("published_ref", ref)
	if res.Error != nil {
		return classify(res.Error, "Confession", id)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Confession", id)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"confession_id": id, "published_ref": ref})
	return nil
}

// ListPending returns the newest pending confessions.
func (r *confessionRepository) ListPending(ctx context.Context, limit int) ([]models.Confession, error) {
	var pending []models.Confession
	err := r.db.WithContext(ctx).
		Where("status = ?", models.ConfessionStatusPending).
		Order("created_at desc").
		Limit(clampLimit(limit, 10, 50)).
		Find(&pending).Error
	if err != nil {
		return nil, classify(err, "Confession", nil)
	}
	return pending, nil
}

func (r *confessionRepository) GetPendingByID(ctx context.Context, id uuid.UUID) (*models.Confession, error) {
	var confession models.Confession
	err := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, models.ConfessionStatusPending).
		First(&confession).Error
	if err != nil {
		return nil, classify(err, "Confession", id)
	}
	return &confession, nil
}

func (r *confessionRepository) FindByNumber(ctx context.Context, number int64) (*models.Confession, error) {
	var confession models.Confession
	if err := r.approved(ctx).Where("number = ?", number).First(&confession).Error; err != nil {
		return nil, classify(err, "Confession", number)
	}
	return &confession, nil
}

func (r *confessionRepository) Latest(ctx context.Context, limit int) ([]models.Confession, error) {
	var latest []models.Confession
	if err := r.approved(ctx).Order("number desc").Limit(clampLimit(limit, 5, 50)).Find(&latest).Error; err != nil {
		return nil, classify(err, "Confession", nil)
	}
	return latest, nil
}

func (r *confessionRepository) Random(ctx context.Context) (*models.Confession, error) {
	var confession models.Confession
	if err := r.approved(ctx).Order("RANDOM()").Take(&confession).Error; err != nil {
		return nil, classify(err, "Confession", "random")
	}
	return &confession, nil
}

// ListUnpublished returns approved confessions that never reached the channel,
// approved at or before olderThan, oldest number first.
func (r *confessionRepository) ListUnpublished(
	ctx context.Context, olderThan time.Time, limit int,
) ([]models.Confession, error) {
	var unpublished []models.Confession
	err := r.approved(ctx).
		Where("published_ref IS NULL AND approved_at <= ?", utc(olderThan)).
		Order("number asc").
		Limit(clampLimit(limit, 20, 100)).
		Find(&unpublished).Error
	if err != nil {
		return nil, classify(err, "Confession", nil)
	}
	return unpublished, nil
}
