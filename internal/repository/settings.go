package repository

import (
	"context"
	"strconv"
	"time"

	"confessional/internal/models"
	"confessional/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsRepository persists operator toggles such as auto-approve.
type SettingsRepository interface {
	GetBool(ctx context.Context, key string) (bool, error)
	SetBool(ctx context.Context, key string, value bool, updatedBy int64) error
	ToggleBool(ctx context.Context, key string, updatedBy int64) (bool, error)
}

type settingsRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewSettingsRepository creates a new SettingsRepository
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db, log: observability.NewRepoLogger("settings")}
}

// GetBool returns false for a missing key.
func (r *settingsRepository) GetBool(ctx context.Context, key string) (bool, error) {
	var setting models.Setting
	if err := r.db.WithContext(ctx).Where(&models.Setting{Key: key}).Limit(1).Find(&setting).Error; err != nil {
		return false, classify(err, "Setting", key)
	}
	if setting.Key == "" {
		return false, nil
	}
	v, _ := strconv.ParseBool(setting.Value)
	return v, nil
}

func upsertSetting(tx *gorm.DB, key string, value bool, updatedBy int64) error {
	setting := models.Setting{
		Key:       key,
		Value:     strconv.FormatBool(value),
		UpdatedBy: updatedBy,
		UpdatedAt: utc(time.Now()),
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
	}).Create(&setting).Error
}

func (r *settingsRepository) SetBool(ctx context.Context, key string, value bool, updatedBy int64) error {
	if err := upsertSetting(r.db.WithContext(ctx), key, value, updatedBy); err != nil {
		return classify(err, "Setting", key)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"key": key, "value": value, "updated_by": updatedBy})
	return nil
}

// ToggleBool flips a flag under a row lock and returns the new value.
func (r *settingsRepository) ToggleBool(ctx context.Context, key string, updatedBy int64) (bool, error) {
	var next bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var setting models.Setting
		if err := tx.Clauses(forUpdate).Where(&models.Setting{Key: key}).Limit(1).Find(&setting).Error; err != nil {
			return err
		}
		current, _ := strconv.ParseBool(setting.Value)
		next = !current
		return upsertSetting(tx, key, next, updatedBy)
	})
	if err != nil {
		return false, classify(err, "Setting", key)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"key": key, "value": next, "updated_by": updatedBy})
	return next, nil
}

// BlockRepository persists the blocked-user list.
type BlockRepository interface {
	Block(ctx context.Context, userID, blockedBy int64, reason string) error
	Unblock(ctx context.Context, userID int64) (bool, error)
	IsBlocked(ctx context.Context, userID int64) (bool, error)
	List(ctx context.Context) ([]models.BlockedUser, error)
}

type blockRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewBlockRepository creates a new BlockRepository
func NewBlockRepository(db *gorm.DB) BlockRepository {
	return &blockRepository{db: db, log: observability.NewRepoLogger("blocked_users")}
}

func (r *blockRepository) Block(ctx context.Context, userID, blockedBy int64, reason string) error {
	entry := models.BlockedUser{UserID: userID, BlockedBy: blockedBy, Reason: reason, CreatedAt: utc(time.Now())}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error; err != nil {
		return classify(err, "BlockedUser", userID)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"user_id": userID, "blocked_by": blockedBy})
	return nil
}

// Unblock reports whether the user was blocked.
func (r *blockRepository) Unblock(ctx context.Context, userID int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.BlockedUser{})
	if res.Error != nil {
		return false, classify(res.Error, "BlockedUser", userID)
	}
	if res.RowsAffected > 0 {
		r.log.LogDelete(ctx, map[string]interface{}{"user_id": userID})
	}
	return res.RowsAffected > 0, nil
}

func (r *blockRepository) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BlockedUser{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return false, classify(err, "BlockedUser", userID)
	}
	return count > 0, nil
}

func (r *blockRepository) List(ctx context.Context) ([]models.BlockedUser, error) {
	var blocked []models.BlockedUser
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&blocked).Error; err != nil {
		return nil, classify(err, "BlockedUser", nil)
	}
	return blocked, nil
}
