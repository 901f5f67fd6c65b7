package models

import "time"

// Profile defaults applied on lazy creation.
const (
	DefaultNickname = "anonymous"
	DefaultEmoji    = "👤"
	DefaultBio      = "Default bio: Tell us about yourself!"
	DefaultGender   = "Not specified"
)

// Nickname and bio limits.
const (
	MinNicknameLength = 3
	MaxNicknameLength = 24
	MinBioLength      = 5
	MaxBioLength      = 200
)

// UserProfile is the durable per-user identity. ID is the chat platform user id.
// Profiles are never deleted.
type UserProfile struct {
	ID                 int64      `gorm:"primaryKey;autoIncrement:false" json:"-"`
	Nickname           string     `gorm:"size:32;not null" json:"nickname"`
	Emoji              string     `gorm:"size:16;not null" json:"emoji"`
	Bio                string     `gorm:"type:text;not null" json:"bio"`
	Gender             string     `gorm:"size:32;not null" json:"gender"`
	BioVisible         bool       `gorm:"not null" json:"bio_visible"`
	GenderVisible      bool       `gorm:"not null" json:"gender_visible"`
	AuraPoints         int        `gorm:"not null" json:"aura_points"`
	AgreedToRules      bool       `gorm:"not null" json:"agreed_to_rules"`
	LastNicknameChange *time.Time `json:"last_nickname_change,omitempty"`
	LastSubmissionAt   *time.Time `json:"-"`
	PersonaToken       *string    `gorm:"size:64;uniqueIndex" json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// NewDefaultProfile returns the profile a user gets on first interaction.
func NewDefaultProfile(userID int64) *UserProfile {
	return &UserProfile{
		ID:       userID,
		Nickname: DefaultNickname,
		Emoji:    DefaultEmoji,
		Bio:      DefaultBio,
		Gender:   DefaultGender,
	}
}

// PrivacyField names a toggleable visibility flag.
type PrivacyField string

const (
	PrivacyBio    PrivacyField = "bio"
	PrivacyGender PrivacyField = "gender"
)

// Column returns the profile column backing the flag.
func (f PrivacyField) Column() (string, bool) {
	switch f {
	case PrivacyBio:
		return "bio_visible", true
	case PrivacyGender:
		return "gender_visible", true
	default:
		return "", false
	}
}

// PublicProfile is what another user sees; hidden fields are empty.
type PublicProfile struct {
	Nickname   string `json:"nickname"`
	Emoji      string `json:"emoji"`
	AuraPoints int    `json:"aura_points"`
	Bio        string `json:"bio,omitempty"`
	Gender     string `json:"gender,omitempty"`
	Token      string `json:"token"`
}

// Public projects the profile honoring its privacy flags.
func (p *UserProfile) Public(token string) PublicProfile {
	view := PublicProfile{
		Nickname:   p.Nickname,
		Emoji:      p.Emoji,
		AuraPoints: p.AuraPoints,
		Token:      token,
	}
	if p.BioVisible {
		view.Bio = p.Bio
	}
	if p.GenderVisible {
		view.Gender = p.Gender
	}
	return view
}

// Setting is a persisted operator switch.
type Setting struct {
	Key       string    `gorm:"primaryKey;size:64" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedBy int64     `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SettingAutoApprove stores "true" or "false".
const SettingAutoApprove = "auto_approve_status"

// BlockedUser prevents a user from submitting, commenting and voting.
type BlockedUser struct {
	UserID    int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	BlockedBy int64     `gorm:"not null" json:"blocked_by"`
	Reason    string    `gorm:"type:text" json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
