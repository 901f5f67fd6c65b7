package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DraftKind is the flow a pending draft belongs to.
type DraftKind string

const (
	DraftConfession  DraftKind = "confession"
	DraftComment     DraftKind = "comment"
	DraftReport      DraftKind = "report"
	DraftChatRequest DraftKind = "chat_request"
	DraftNickname    DraftKind = "nickname"
	DraftBio         DraftKind = "bio"
	DraftAdminReply  DraftKind = "admin_reply"
)

// DraftState is a named state of the per-user draft machine.
type DraftState string

const (
	DraftAwaitingText    DraftState = "awaiting_text"
	DraftAwaitingTags    DraftState = "awaiting_tags"
	DraftAwaitingConfirm DraftState = "awaiting_confirm"
)

var singleStep = map[DraftState][]DraftState{
	DraftAwaitingText: {DraftAwaitingConfirm},
}

var draftTransitions = map[DraftKind]map[DraftState][]DraftState{
	DraftConfession: {
		DraftAwaitingText:    {DraftAwaitingTags},
		DraftAwaitingTags:    {DraftAwaitingTags, DraftAwaitingConfirm},
		DraftAwaitingConfirm: {DraftAwaitingTags},
	},
	DraftComment:     singleStep,
	DraftReport:      singleStep,
	DraftChatRequest: singleStep,
	DraftNickname:    singleStep,
	DraftBio:         singleStep,
	DraftAdminReply:  singleStep,
}

// Draft is the single in-progress multi-step flow of a user. Nothing reaches
// the content tables until the draft is confirmed.
type Draft struct {
	UserID             int64      `gorm:"primaryKey;autoIncrement:false" json:"-"`
	Kind               DraftKind  `gorm:"type:varchar(24);not null" json:"kind"`
	State              DraftState `gorm:"type:varchar(24);not null" json:"state"`
	Text               string     `gorm:"type:text" json:"text"`
	MediaRef           *string    `gorm:"size:255" json:"media_ref,omitempty"`
	Tags               []string   `gorm:"type:text;serializer:json" json:"tags"`
	TargetConfessionID *uuid.UUID `gorm:"type:uuid" json:"target_confession_id,omitempty"`
	ParentIndex        int        `gorm:"not null" json:"parent_index"`
	TargetUserID       *int64     `json:"-"`
	ExpiresAt          time.Time  `gorm:"not null;index" json:"expires_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Expired reports whether the draft is past its TTL at now.
func (d *Draft) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

// Transition moves the draft to next or fails with a validation error.
func (d *Draft) Transition(next DraftState) error {
	for _, allowed := range draftTransitions[d.Kind][d.State] {
		if allowed == next {
			d.State = next
			return nil
		}
	}
	return NewValidationError(fmt.Sprintf("cannot move %s draft from %s to %s", d.Kind, d.State, next))
}

// HasTag reports whether tag is selected on the draft.
func (d *Draft) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ToggleTag selects or unselects tag.
func (d *Draft) ToggleTag(tag string) {
	for i, t := range d.Tags {
		if t == tag {
			d.Tags = append(d.Tags[:i], d.Tags[i+1:]...)
			return
		}
	}
	d.Tags = append(d.Tags, tag)
}
