package repos

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pathwise/pathwise-backend/internal/logger"
	"github.com/pathwise/pathwise-backend/internal/types"
)

type GenerationJobRepo interface {
	// Enqueue inserts the job unless a job with the same idempotency key
	// already exists; in that case the existing job is returned and
	// created is false.
	Enqueue(ctx context.Context, tx *gorm.DB, job *types.GenerationJob) (created bool, existing *types.GenerationJob, err error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.GenerationJob, error)
	// ClaimNextRunnable picks the oldest runnable job under FOR UPDATE SKIP
	// LOCKED and marks it running. Runnable means queued, or failed with
	// attempts remaining past the retry delay, or running with a heartbeat
	// older than staleRunning (worker died mid-flight) and attempts
	// remaining. A failed or stale-running job out of attempts is moved to
	// dead_letter on the way through.
	ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.GenerationJob, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	// Heartbeat renews the claim on a running job; the lock stays alive only
	// while the worker is healthy.
	Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type generationJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationJobRepo(db *gorm.DB, baseLog *logger.Logger) GenerationJobRepo {
	return &generationJobRepo{
		db:  db,
		log: baseLog.With("repo", "GenerationJobRepo"),
	}
}

func (r *generationJobRepo) Enqueue(ctx context.Context, tx *gorm.DB, job *types.GenerationJob) (bool, *types.GenerationJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if job == nil || job.IdempotencyKey == "" {
		return false, nil, errors.New("job with idempotency key is required")
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	err := transaction.WithContext(ctx).Create(job).Error
	if err == nil {
		return true, job, nil
	}
	if !isUniqueViolation(err) {
		return false, nil, err
	}
	var existing types.GenerationJob
	gErr := transaction.WithContext(ctx).
		Where("idempotency_key = ?", job.IdempotencyKey).
		First(&existing).Error
	if gErr != nil {
		return false, nil, gErr
	}
	return false, &existing, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

func (r *generationJobRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.GenerationJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var job types.GenerationJob
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *generationJobRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.GenerationJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	retryCutoff := now.Add(-retryDelay)
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.GenerationJob
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		// A job out of attempts dead-letters instead of circling forever:
		// this covers both recorded failures and workers that keep dying
		// mid-run (stale heartbeat on every redelivery).
		if err := txx.Model(&types.GenerationJob{}).
			Where(`
					attempts >= ?
					AND (
						status = ?
						OR (
							status = ?
							AND heartbeat_at IS NOT NULL
							AND heartbeat_at < ?
						)
					)
				`, maxAttempts, types.JobStatusFailed, types.JobStatusRunning, staleCutoff).
			Updates(map[string]interface{}{
				"status":     types.JobStatusDeadLetter,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		var job types.GenerationJob
		q := txx
		// SKIP LOCKED needs postgres; sqlite (tests) serializes anyway.
		if txx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		q = q.Where(`
				(
					status = ?
					OR (
						status = ?
						AND attempts < ?
						AND (last_error_at IS NULL OR last_error_at < ?)
					)
					OR (
						status = ?
						AND attempts < ?
						AND heartbeat_at IS NOT NULL
						AND heartbeat_at < ?
					)
				)
			`, types.JobStatusQueued, types.JobStatusFailed, maxAttempts, retryCutoff, types.JobStatusRunning, maxAttempts, staleCutoff).
			Order("created_at ASC")
		qErr := q.First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.GenerationJob{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":       types.JobStatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *generationJobRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.GenerationJob{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *generationJobRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&types.GenerationJob{}).
		Where("id = ? AND status = ?", id, types.JobStatusRunning).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}
