package repository

import (
	"context"
	"fmt"
	"time"

	"confessional/internal/models"
	"confessional/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository owns persona, privacy and cooldown fields of user profiles.
// Aura is only written by the VoteRepository.
type ProfileRepository interface {
	GetOrCreate(ctx context.Context, userID int64) (*models.UserProfile, error)
	UpdatePersona(ctx context.Context, userID int64, emoji string) error
	UpdateNickname(ctx context.Context, userID int64, nickname string, now time.Time, cooldown time.Duration) error
	UpdateBio(ctx context.Context, userID int64, bio string) error
	UpdateGender(ctx context.Context, userID int64, gender string) error
	TogglePrivacy(ctx context.Context, userID int64, field models.PrivacyField) (bool, error)
	SetAgreedToRules(ctx context.Context, userID int64) error
	ReserveSubmission(ctx context.Context, userID int64, now time.Time, cooldown time.Duration) error
	ReleaseSubmission(ctx context.Context, userID int64, reservedAt time.Time, previous *time.Time) error
	GetByPersonaToken(ctx context.Context, token string) (*models.UserProfile, error)
	EnsurePersonaToken(ctx context.Context, userID int64, token string) error
	Aura(ctx context.Context, userID int64) (int, error)
}

type profileRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewProfileRepository creates a new ProfileRepository
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db, log: observability.NewRepoLogger("user_profiles")}
}

func (r *profileRepository) ensure(ctx context.Context, userID int64) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(models.NewDefaultProfile(userID)).Error
	return classify(err, "Profile", userID)
}

// GetOrCreate lazily creates the profile with defaults on first interaction.
func (r *profileRepository) GetOrCreate(ctx context.Context, userID int64) (*models.UserProfile, error) {
	if err := r.ensure(ctx, userID); err != nil {
		return nil, err
	}
	return r.get(ctx, userID)
}

func (r *profileRepository) get(ctx context.Context, userID int64) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&profile).Error; err != nil {
		return nil, classify(err, "Profile", userID)
	}
	normalizeProfileTimes(&profile)
	return &profile, nil
}

func normalizeProfileTimes(p *models.UserProfile) {
	if p.LastNicknameChange != nil {
		t := p.LastNicknameChange.UTC()
		p.LastNicknameChange = &t
	}
	if p.LastSubmissionAt != nil {
		t := p.LastSubmissionAt.UTC()
		p.LastSubmissionAt = &t
	}
}

func (r *profileRepository) update(ctx context.Context, userID int64, fields map[string]interface{}) error {
	if err := r.ensure(ctx, userID); err != nil {
		return err
	}
	fields["updated_at"] = utc(time.Now())
	if err := r.db.WithContext(ctx).Model(&models.UserProfile{}).
		Where("id = ?", userID).
		UpdateColumns(fields).Error; err != nil {
		r.log.LogError(ctx, err, "update")
		return classify(err, "Profile", userID)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"user_id": userID})
	return nil
}

// UpdatePersona sets the persona emoji.
func (r *profileRepository) UpdatePersona(ctx context.Context, userID int64, emoji string) error {
	return r.update(ctx, userID, map[string]interface{}{"emoji": emoji})
}

func (r *profileRepository) UpdateBio(ctx context.Context, userID int64, bio string) error {
	return r.update(ctx, userID, map[string]interface{}{"bio": bio})
}

func (r *profileRepository) UpdateGender(ctx context.Context, userID int64, gender string) error {
	return r.update(ctx, userID, map[string]interface{}{"gender": gender})
}

func (r *profileRepository) SetAgreedToRules(ctx context.Context, userID int64) error {
	return r.update(ctx, userID, map[string]interface{}{"agreed_to_rules": true})
}

// TogglePrivacy flips one visibility flag and returns its new value.
func (r *profileRepository) TogglePrivacy(ctx context.Context, userID int64, field models.PrivacyField) (bool, error) {
	column, ok := field.Column()
	if !ok {
		return false, models.NewValidationError(fmt.Sprintf("unknown privacy field %q", field))
	}
	if err := r.ensure(ctx, userID); err != nil {
		return false, err
	}

	var visible bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.UserProfile{}).Where("id = ?", userID).
			UpdateColumn(column, gorm.Expr("NOT "+column)).Error; err != nil {
			return err
		}
		return tx.Model(&models.UserProfile{}).Select(column).
			Where("id = ?", userID).Scan(&visible).Error
	})
	if err != nil {
		return false, classify(err, "Profile", userID)
	}
	return visible, nil
}

// UpdateNickname changes the nickname only when the cooldown has elapsed. The
// check and the write are one conditional UPDATE, so two racing edits cannot
// both pass.
func (r *profileRepository) UpdateNickname(
	ctx context.Context, userID int64, nickname string, now time.Time, cooldown time.Duration,
) error {
	if err := r.ensure(ctx, userID); err != nil {
		return err
	}
	now = utc(now)
	cutoff := now.Add(-cooldown)

	res := r.db.WithContext(ctx).Model(&models.UserProfile{}).
		Where("id = ? AND (last_nickname_change IS NULL OR last_nickname_change <= ?)", userID, cutoff).
		UpdateColumns(map[string]interface{}{
			"nickname":             nickname,
			"last_nickname_change": now,
			"updated_at":           now,
		})
	if res.Error != nil {
		return classify(res.Error, "Profile", userID)
	}
	if res.RowsAffected == 0 {
		profile, err := r.get(ctx, userID)
		if err != nil {
			return err
		}
		return models.NewRateLimitedError("nickname cooldown active",
			remaining(profile.LastNicknameChange, cooldown, now))
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"user_id": userID, "field": "nickname"})
	return nil
}

// ReserveSubmission stamps last_submission_at when the submission window is
// open. On conflict the RATE_LIMITED error carries the remaining wait.
func (r *profileRepository) ReserveSubmission(
	ctx context.Context, userID int64, now time.Time, cooldown time.Duration,
) error {
	if err := r.ensure(ctx, userID); err != nil {
		return err
	}
	now = utc(now)
	cutoff := now.Add(-cooldown)

	res := r.db.WithContext(ctx).Model(&models.UserProfile{}).
		Where("id = ? AND (last_submission_at IS NULL OR last_submission_at <= ?)", userID, cutoff).
		UpdateColumns(map[string]interface{}{
			"last_submission_at": now,
			"updated_at":         now,
		})
	if res.Error != nil {
		return classify(res.Error, "Profile", userID)
	}
	if res.RowsAffected == 0 {
		profile, err := r.get(ctx, userID)
		if err != nil {
			return err
		}
		return models.NewRateLimitedError("submission cooldown active",
			remaining(profile.LastSubmissionAt, cooldown, now))
	}
	return nil
}

// ReleaseSubmission puts last_submission_at back to previous, but only while
// it still holds the reservation made at reservedAt.
func (r *profileRepository) ReleaseSubmission(
	ctx context.Context, userID int64, reservedAt time.Time, previous *time.Time,
) error {
	var restored interface{}
	if previous != nil {
		restored = previous.UTC()
	}
	err := r.db.WithContext(ctx).Model(&models.UserProfile{}).
		Where("id = ? AND last_submission_at = ?", userID, utc(reservedAt)).
		UpdateColumn("last_submission_at", restored).Error
	if err != nil {
		return classify(err, "Profile", userID)
	}
	return nil
}

func remaining(last *time.Time, window time.Duration, now time.Time) time.Duration {
	if last == nil {
		return 0
	}
	left := last.UTC().Add(window).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

func (r *profileRepository) GetByPersonaToken(ctx context.Context, token string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.db.WithContext(ctx).Where("persona_token = ?", token).First(&profile).Error; err != nil {
		return nil, classify(err, "Persona", token)
	}
	normalizeProfileTimes(&profile)
	return &profile, nil
}

// EnsurePersonaToken stores the persona token once; an existing token is kept.
func (r *profileRepository) EnsurePersonaToken(ctx context.Context, userID int64, token string) error {
	if err := r.ensure(ctx, userID); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Model(&models.UserProfile{}).
		Where("id = ? AND persona_token IS NULL", userID).
		UpdateColumn("persona_token", token).Error
	return classify(err, "Profile", userID)
}

func (r *profileRepository) Aura(ctx context.Context, userID int64) (int, error) {
	profile, err := r.GetOrCreate(ctx, userID)
	if err != nil {
		return 0, err
	}
	return profile.AuraPoints, nil
}
