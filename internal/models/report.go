package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Report reason limits.
const (
	MinReportReasonLength = 5
	MaxReportReasonLength = 1000
	MaxChatMessageLength  = 500
)

// ReportStatus tracks operator handling of a report.
type ReportStatus string

const (
	ReportStatusOpen     ReportStatus = "open"
	ReportStatusResolved ReportStatus = "resolved"
)

// Report is a user complaint about another user's persona.
type Report struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	ReporterID   int64        `gorm:"not null;index" json:"-"`
	TargetUserID int64        `gorm:"not null;index" json:"-"`
	Reason       string       `gorm:"type:text;not null" json:"reason"`
	Status       ReportStatus `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
}

func (r *Report) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ChatRequestStatus is the lifecycle of a chat request.
type ChatRequestStatus string

const (
	ChatRequestPending  ChatRequestStatus = "pending"
	ChatRequestAccepted ChatRequestStatus = "accepted"
	ChatRequestDeclined ChatRequestStatus = "declined"
)

// ChatRequest asks another user to start a private conversation.
type ChatRequest struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	RequesterID  int64             `gorm:"not null;index" json:"-"`
	TargetUserID int64             `gorm:"not null;index" json:"-"`
	Message      string            `gorm:"type:text;not null" json:"message"`
	Status       ChatRequestStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	RespondedAt  *time.Time        `json:"responded_at,omitempty"`
}

func (r *ChatRequest) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
