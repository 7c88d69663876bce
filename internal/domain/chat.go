package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	SessionStatusActive   = "ACTIVE"
	SessionStatusClosed   = "CLOSED"
	SessionStatusArchived = "ARCHIVED"
)

const (
	RoleUser      = "USER"
	RoleAssistant = "ASSISTANT"
	RoleSystem    = "SYSTEM"
)

// ChatSession is one persisted conversation between a patient and the
// assistant. The title is derived from the first message of the session.
type ChatSession struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PatientID uuid.UUID `gorm:"type:uuid;not null;index" json:"patient_id"`

	Title  string `gorm:"type:varchar(500)" json:"title"`
	Status string `gorm:"type:varchar(20);not null;default:'ACTIVE';index" json:"status"`

	CreatedAt     time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`
	LastMessageAt *time.Time `gorm:"index" json:"last_message_at,omitempty"`
}

func (ChatSession) TableName() string { return "chat_session" }

// ChatMessage is immutable once written. Ordering within a session is by
// (CreatedAt, ID), with time-ordered UUIDv7 ids breaking timestamp ties;
// tool-call traffic inside a turn is never persisted as rows.
type ChatMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;index" json:"session_id"`

	Role    string `gorm:"type:varchar(20);not null;index" json:"role"`
	Content string `gorm:"type:text;not null" json:"content"`

	Metadata datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_message" }

// MessageMetadata is the shape persisted in ChatMessage.Metadata for
// ASSISTANT rows.
type MessageMetadata struct {
	RiskAssessment      string   `json:"risk_assessment,omitempty"`
	ShouldSeeDoctor     bool     `json:"should_see_doctor,omitempty"`
	ToolsUsed           []string `json:"tools_used,omitempty"`
	ThinkingSummary     string   `json:"thinking_summary,omitempty"`
	ImageInterpretation any      `json:"image_interpretation,omitempty"`
	Timestamp           string   `json:"timestamp,omitempty"`
}
