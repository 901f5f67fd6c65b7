package repository

import (
	"context"
	"time"

	"confessional/internal/models"
	"confessional/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DraftRepository stores the single in-progress flow of each user.
type DraftRepository interface {
	Get(ctx context.Context, userID int64, now time.Time) (*models.Draft, error)
	Save(ctx context.Context, draft *models.Draft) error
	Delete(ctx context.Context, userID int64) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type draftRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewDraftRepository creates a new DraftRepository
func NewDraftRepository(db *gorm.DB) DraftRepository {
	return &draftRepository{db: db, log: observability.NewRepoLogger("drafts")}
}

// Get returns NOT_FOUND for absent and expired drafts alike.
func (r *draftRepository) Get(ctx context.Context, userID int64, now time.Time) (*models.Draft, error) {
	var draft models.Draft
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&draft).Error; err != nil {
		return nil, classify(err, "Draft", userID)
	}
	if draft.Expired(utc(now)) {
		_ = r.Delete(ctx, userID)
		return nil, models.NewNotFoundError("Draft", userID)
	}
	return &draft, nil
}

// Save replaces the user's draft.
func (r *draftRepository) Save(ctx context.Context, draft *models.Draft) error {
	draft.ExpiresAt = utc(draft.ExpiresAt)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(draft).Error; err != nil {
		return classify(err, "Draft", draft.UserID)
	}
	return nil
}

func (r *draftRepository) Delete(ctx context.Context, userID int64) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Draft{}).Error; err != nil {
		return classify(err, "Draft", userID)
	}
	return nil
}

func (r *draftRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", utc(now)).Delete(&models.Draft{})
	if res.Error != nil {
		return 0, classify(res.Error, "Draft", nil)
	}
	if res.RowsAffected > 0 {
		r.log.LogDelete(ctx, map[string]interface{}{"expired": res.RowsAffected})
	}
	return res.RowsAffected, nil
}
