package types

import (
	"time"

	"github.com/google/uuid"
)

// One row per orchestrated AI call that contributed to a persisted lesson.
// Inserted in the same transaction as the lesson so usage survives restarts.
type AICallLog struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LessonID     uuid.UUID `gorm:"type:uuid;not null;index" json:"lesson_id"`
	ModuleID     uuid.UUID `gorm:"type:uuid;not null;index" json:"module_id"`
	Component    string    `gorm:"column:component;not null" json:"component"`
	Provider     string    `gorm:"column:provider;not null;index" json:"provider"`
	Model        string    `gorm:"column:model" json:"model"`
	InputTokens  int       `gorm:"column:input_tokens;not null;default:0" json:"input_tokens"`
	OutputTokens int       `gorm:"column:output_tokens;not null;default:0" json:"output_tokens"`
	ElapsedMS    int64     `gorm:"column:elapsed_ms;not null;default:0" json:"elapsed_ms"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

func (AICallLog) TableName() string { return "ai_call_log" }
