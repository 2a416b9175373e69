package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pathwise/pathwise-backend/internal/logger"
	"github.com/pathwise/pathwise-backend/internal/types"
)

const (
	approvalMinUpvotes = 10
	approvalMinRate    = 0.8
)

type LessonContentRepo interface {
	// GetApprovedByContentHash is the global cache lookup: only an approved
	// lesson is reusable across modules.
	GetApprovedByContentHash(ctx context.Context, tx *gorm.DB, contentHash string) (*types.LessonContent, error)
	// GetByModuleAndNumber supports idempotent resume within one module: a
	// lesson already persisted for this slot is reused regardless of approval.
	GetByModuleAndNumber(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID, lessonNumber int) (*types.LessonContent, error)
	ListByModule(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) ([]*types.LessonContent, error)
	// InsertWithCallLogs persists the lesson and its per-call usage rows in
	// one transaction.
	InsertWithCallLogs(ctx context.Context, lesson *types.LessonContent, callLogs []*types.AICallLog) error
	// ApplyVote upserts the voter's vote, recomputes the tallies and applies
	// the approval rule. Approval is monotonic: it is never revoked here.
	ApplyVote(ctx context.Context, lessonID, voterID uuid.UUID, value int) (*types.LessonContent, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.LessonContent, error)
}

type lessonContentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLessonContentRepo(db *gorm.DB, baseLog *logger.Logger) LessonContentRepo {
	return &lessonContentRepo{
		db:  db,
		log: baseLog.With("repo", "LessonContentRepo"),
	}
}

func (r *lessonContentRepo) GetApprovedByContentHash(ctx context.Context, tx *gorm.DB, contentHash string) (*types.LessonContent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if contentHash == "" {
		return nil, nil
	}
	var lesson types.LessonContent
	err := transaction.WithContext(ctx).
		Where("content_hash = ? AND is_approved = ?", contentHash, true).
		Order("created_at ASC").
		First(&lesson).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (r *lessonContentRepo) GetByModuleAndNumber(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID, lessonNumber int) (*types.LessonContent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if moduleID == uuid.Nil || lessonNumber < 1 {
		return nil, nil
	}
	var lesson types.LessonContent
	err := transaction.WithContext(ctx).
		Where("module_id = ? AND lesson_number = ?", moduleID, lessonNumber).
		First(&lesson).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (r *lessonContentRepo) ListByModule(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) ([]*types.LessonContent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.LessonContent
	if moduleID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("module_id = ?", moduleID).
		Order("lesson_number ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *lessonContentRepo) InsertWithCallLogs(ctx context.Context, lesson *types.LessonContent, callLogs []*types.AICallLog) error {
	if lesson == nil {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Create(lesson).Error; err != nil {
			return err
		}
		for _, cl := range callLogs {
			if cl.ID == uuid.Nil {
				cl.ID = uuid.New()
			}
			cl.LessonID = lesson.ID
			cl.ModuleID = lesson.ModuleID
		}
		if len(callLogs) > 0 {
			if err := txx.Create(&callLogs).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *lessonContentRepo) ApplyVote(ctx context.Context, lessonID, voterID uuid.UUID, value int) (*types.LessonContent, error) {
	if lessonID == uuid.Nil || voterID == uuid.Nil {
		return nil, errors.New("lesson id and voter id are required")
	}
	if value != 1 && value != -1 {
		return nil, errors.New("vote value must be +1 or -1")
	}
	var updated types.LessonContent
	err := r.db.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		now := time.Now()
		var existing types.LessonVote
		vErr := txx.Where("lesson_id = ? AND voter_id = ?", lessonID, voterID).First(&existing).Error
		switch {
		case errors.Is(vErr, gorm.ErrRecordNotFound):
			vote := types.LessonVote{
				ID:        uuid.New(),
				LessonID:  lessonID,
				VoterID:   voterID,
				Value:     value,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := txx.Create(&vote).Error; err != nil {
				return err
			}
		case vErr != nil:
			return vErr
		default:
			if existing.Value == value {
				// Re-voting the same way is a no-op on the tallies.
				return txx.Where("id = ?", lessonID).First(&updated).Error
			}
			if err := txx.Model(&types.LessonVote{}).
				Where("id = ?", existing.ID).
				Updates(map[string]interface{}{"value": value, "updated_at": now}).Error; err != nil {
				return err
			}
		}

		var upvotes, downvotes int64
		if err := txx.Model(&types.LessonVote{}).
			Where("lesson_id = ? AND value = ?", lessonID, 1).
			Count(&upvotes).Error; err != nil {
			return err
		}
		if err := txx.Model(&types.LessonVote{}).
			Where("lesson_id = ? AND value = ?", lessonID, -1).
			Count(&downvotes).Error; err != nil {
			return err
		}
		rate := 0.0
		if upvotes+downvotes > 0 {
			rate = float64(upvotes) / float64(upvotes+downvotes)
		}
		updates := map[string]interface{}{
			"upvotes":       upvotes,
			"downvotes":     downvotes,
			"approval_rate": rate,
			"updated_at":    now,
		}
		if upvotes >= approvalMinUpvotes && rate >= approvalMinRate {
			updates["is_approved"] = true
		}
		if err := txx.Model(&types.LessonContent{}).
			Where("id = ?", lessonID).
			Updates(updates).Error; err != nil {
			return err
		}
		return txx.Where("id = ?", lessonID).First(&updated).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *lessonContentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.LessonContent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var lesson types.LessonContent
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&lesson).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}
