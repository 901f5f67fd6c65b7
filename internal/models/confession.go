// Package models contains data structures for the confession service's domain models.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConfessionStatus defines the moderation lifecycle of a confession.
type ConfessionStatus string

const (
	// ConfessionStatusPending indicates the confession awaits moderation.
	ConfessionStatusPending ConfessionStatus = "pending"
	// ConfessionStatusApproved indicates the confession was accepted and numbered.
	ConfessionStatusApproved ConfessionStatus = "approved"
)

// Submission limits, counted in runes after trimming.
const (
	MinConfessionLength = 10
	MaxConfessionLength = 4000
	MinCommentLength    = 5
	MaxCommentLength    = 4000
)

// ImagePlaceholder is stored as the text of a media-only confession.
const ImagePlaceholder = "(image confession)"

// Confession is an anonymous submission. Rejected confessions are deleted, so
// only pending and approved rows exist.
type Confession struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	AuthorID     int64            `gorm:"not null;index" json:"-"`
	Text         string           `gorm:"type:text;not null" json:"text"`
	MediaRef     *string          `gorm:"size:255" json:"media_ref,omitempty"`
	Tags         []string         `gorm:"type:text;serializer:json" json:"tags"`
	Status       ConfessionStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	Number       *int64           `gorm:"uniqueIndex" json:"number,omitempty"`
	Likes        int              `gorm:"not null" json:"likes"`
	Dislikes     int              `gorm:"not null" json:"dislikes"`
	CommentCount int              `gorm:"not null" json:"comment_count"`
	PublishedRef *string          `gorm:"size:255" json:"published_ref,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	ApprovedAt   *time.Time       `json:"approved_at,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// BeforeCreate assigns an id when the caller left it empty.
func (c *Confession) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsApproved reports whether the confession is visible to consumers.
func (c *Confession) IsApproved() bool {
	return c.Status == ConfessionStatusApproved
}

// IsPublished reports whether the broadcast copy exists.
func (c *Confession) IsPublished() bool {
	return c.PublishedRef != nil && *c.PublishedRef != ""
}

// Comment is an append-only entry under an approved confession. Index is its
// position in the confession's comment list.
type Comment struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	ConfessionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_comments_position" json:"confession_id"`
	Index        int       `gorm:"column:idx;not null;uniqueIndex:idx_comments_position" json:"index"`
	AuthorID     int64     `gorm:"not null;index" json:"-"`
	Text         string    `gorm:"type:text;not null" json:"text"`
	MediaRef     *string   `gorm:"size:255" json:"media_ref,omitempty"`
	// ParentIndex is -1 for a reply to the confession, otherwise an earlier Index.
	ParentIndex int       `gorm:"not null" json:"parent_index"`
	Likes       int       `gorm:"not null" json:"likes"`
	Dislikes    int       `gorm:"not null" json:"dislikes"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsTopLevel reports whether the comment replies to the confession itself.
func (c *Comment) IsTopLevel() bool {
	return c.ParentIndex == NoParent
}

// NoParent marks a comment that replies to the confession.
const NoParent = -1

// Counter is a named monotonically increasing sequence.
type Counter struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value int64  `gorm:"not null"`
}

// ConfessionSequence numbers approved confessions.
const ConfessionSequence = "confession_sequence"

// ModerationAction is the terminal decision on a confession.
type ModerationAction string

const (
	ModerationApprove ModerationAction = "approve"
	ModerationReject  ModerationAction = "reject"
)

// SystemModeratorID is recorded when auto-approve resolved the confession.
const SystemModeratorID int64 = 0

// ModerationRecord is written once when a confession leaves Pending. It
// outlives rejected confessions.
type ModerationRecord struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	ConfessionID     uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex" json:"confession_id"`
	ConfessionNumber *int64           `json:"confession_number,omitempty"`
	ModeratorID      int64            `gorm:"not null;index" json:"moderator_id"`
	Action           ModerationAction `gorm:"type:varchar(16);not null" json:"action"`
	CreatedAt        time.Time        `json:"created_at"`
}
