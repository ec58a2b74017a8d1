package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SessionSnapshot is the durable mirror of one session. The full state lives
// in the JSONB payload; the scalar columns exist for listing and ownership
// checks without deserializing.
type SessionSnapshot struct {
	Id         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserId     uuid.UUID      `gorm:"type:uuid;not null;index"`
	WorkflowId string         `gorm:"type:text;not null"`
	Status     string         `gorm:"type:text;not null"`
	Snapshot   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time      `gorm:"autoCreateTime"`
	LastActive time.Time      `gorm:"index:idx_sessions_user_active,priority:2"`
}

func (SessionSnapshot) TableName() string {
	return "sessions"
}
