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

type ModuleRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.RoadmapModule, error)
	// TransitionStatus performs a guarded UPDATE: the row moves to `to` only
	// if its current generation_status is one of `from`. Returns false when
	// the guard did not match (stale or concurrent transition).
	TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from []string, to string, extra map[string]interface{}) (bool, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type moduleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewModuleRepo(db *gorm.DB, baseLog *logger.Logger) ModuleRepo {
	return &moduleRepo{
		db:  db,
		log: baseLog.With("repo", "ModuleRepo"),
	}
}

func (r *moduleRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.RoadmapModule, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var module types.RoadmapModule
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&module).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &module, nil
}

func (r *moduleRepo) TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from []string, to string, extra map[string]interface{}) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || to == "" {
		return false, nil
	}
	updates := map[string]interface{}{
		"generation_status": to,
		"updated_at":        time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	res := transaction.WithContext(ctx).
		Model(&types.RoadmapModule{}).
		Where("id = ? AND generation_status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *moduleRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.RoadmapModule{}).
		Where("id = ?", id).
		Updates(updates).Error
}
