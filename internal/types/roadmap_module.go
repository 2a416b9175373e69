package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Generation status values for RoadmapModule. Transitions only move
// not_started -> queued -> in_progress -> {completed|failed}; the two
// terminal states stay put until an operator resets the module.
const (
	ModuleStatusNotStarted = "not_started"
	ModuleStatusQueued     = "queued"
	ModuleStatusInProgress = "in_progress"
	ModuleStatusCompleted  = "completed"
	ModuleStatusFailed     = "failed"
)

type RoadmapModule struct {
	ID                    uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RoadmapID             uuid.UUID      `gorm:"type:uuid;not null;index" json:"roadmap_id"`
	Title                 string         `gorm:"column:title;not null" json:"title"`
	Description           string         `gorm:"column:description" json:"description"`
	Difficulty            string         `gorm:"column:difficulty;not null" json:"difficulty"` // beginner|intermediate|expert
	// NumLessonsTarget zero means "derive from difficulty" (3/4/5); a DB
	// default here would shadow that fallback.
	NumLessonsTarget      int            `gorm:"column:num_lessons_target;not null" json:"num_lessons_target"`
	GenerationStatus      string         `gorm:"column:generation_status;not null;default:not_started;index" json:"generation_status"`
	GenerationStartedAt   *time.Time     `gorm:"column:generation_started_at" json:"generation_started_at,omitempty"`
	GenerationCompletedAt *time.Time     `gorm:"column:generation_completed_at" json:"generation_completed_at,omitempty"`
	GenerationError       string         `gorm:"column:generation_error" json:"generation_error"`
	IdempotencyKey        string         `gorm:"column:idempotency_key;index" json:"idempotency_key"`
	CreatedAt             time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"updated_at"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (RoadmapModule) TableName() string { return "roadmap_module" }
