package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Job status values. dead_letter is terminal: the payload was bad and the
// job will never be retried; the error column records why.
const (
	JobStatusQueued     = "queued"
	JobStatusRunning    = "running"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"
	JobStatusDeadLetter = "dead_letter"
)

type GenerationJob struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ModuleID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"module_id"`
	RoadmapID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"roadmap_id"`
	IdempotencyKey string         `gorm:"column:idempotency_key;not null;uniqueIndex" json:"idempotency_key"`
	Payload        datatypes.JSON `gorm:"type:jsonb;column:payload;not null" json:"payload"`
	Status         string         `gorm:"column:status;not null;index" json:"status"`
	Attempts       int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	MaxAttempts    int            `gorm:"column:max_attempts;not null;default:3" json:"max_attempts"`
	Error          string         `gorm:"column:error" json:"error"`
	LastErrorAt    *time.Time     `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	LockedAt       *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt    *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (GenerationJob) TableName() string { return "generation_job" }
