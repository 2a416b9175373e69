package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type LessonContent struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ModuleID           uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:ux_lesson_module_hash;uniqueIndex:ux_lesson_module_number" json:"module_id"`
	LessonNumber       int            `gorm:"column:lesson_number;not null;uniqueIndex:ux_lesson_module_number" json:"lesson_number"`
	Title              string         `gorm:"column:title;not null" json:"title"`
	ContentHash        string         `gorm:"column:content_hash;not null;index;uniqueIndex:ux_lesson_module_hash" json:"content_hash"`
	Components         datatypes.JSON `gorm:"type:jsonb;column:components;not null" json:"components"`
	SourceAttribution  datatypes.JSON `gorm:"type:jsonb;column:source_attribution" json:"source_attribution"`
	GenerationMetadata datatypes.JSON `gorm:"type:jsonb;column:generation_metadata" json:"generation_metadata"`
	AIModelUsed        string         `gorm:"column:ai_model_used" json:"ai_model_used"`
	IsApproved         bool           `gorm:"column:is_approved;not null;default:false;index" json:"is_approved"`
	Upvotes            int            `gorm:"column:upvotes;not null;default:0" json:"upvotes"`
	Downvotes          int            `gorm:"column:downvotes;not null;default:0" json:"downvotes"`
	ApprovalRate       float64        `gorm:"column:approval_rate;not null;default:0" json:"approval_rate"`
	CreatedAt          time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (LessonContent) TableName() string { return "lesson_content" }

type LessonVote struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LessonID  uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:ux_vote_lesson_voter" json:"lesson_id"`
	VoterID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_vote_lesson_voter" json:"voter_id"`
	Value     int       `gorm:"column:value;not null" json:"value"` // +1 or -1
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (LessonVote) TableName() string { return "lesson_vote" }
