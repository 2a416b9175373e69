package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pathwise/pathwise-backend/internal/lessongen"
	"github.com/pathwise/pathwise-backend/internal/logger"
	"github.com/pathwise/pathwise-backend/internal/repos"
	"github.com/pathwise/pathwise-backend/internal/types"
)

// BadMessageError marks a payload the worker can never process: malformed
// JSON, missing idempotency key, unknown module id. These dead-letter
// instead of retrying.
type BadMessageError struct {
	Reason string
}

func (e *BadMessageError) Error() string { return "bad message: " + e.Reason }

type WorkerConfig struct {
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	MaxAttempts       int
	RetryDelay        time.Duration
	StaleRunning      time.Duration
	AssemblyDeadline  time.Duration
	Concurrency       int
}

func (c *WorkerConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 30 * time.Second
	}
	if c.StaleRunning <= 0 {
		c.StaleRunning = 2 * time.Minute
	}
	if c.AssemblyDeadline <= 0 {
		c.AssemblyDeadline = 10 * time.Minute
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
}

type ModuleGenerationService interface {
	// Enqueue records a job for the module, deduplicated on idempotency
	// key, and moves the module not_started -> queued.
	Enqueue(ctx context.Context, msg types.JobMessage) (*types.GenerationJob, error)
	// StartWorker runs claim loops until ctx is canceled.
	StartWorker(ctx context.Context)
	// ProcessNextJob claims and fully processes at most one job. Returns
	// whether a job was claimed.
	ProcessNextJob(ctx context.Context) (bool, error)
}

type moduleGenerationService struct {
	db        *gorm.DB
	modules   repos.ModuleRepo
	lessons   repos.LessonContentRepo
	jobs      repos.GenerationJobRepo
	assembler *lessongen.Assembler
	notifier  ProgressNotifier
	cfg       WorkerConfig
	log       *logger.Logger
}

func NewModuleGenerationService(db *gorm.DB, modules repos.ModuleRepo, lessons repos.LessonContentRepo, jobs repos.GenerationJobRepo, assembler *lessongen.Assembler, notifier ProgressNotifier, cfg WorkerConfig, baseLog *logger.Logger) ModuleGenerationService {
	cfg.applyDefaults()
	return &moduleGenerationService{
		db:        db,
		modules:   modules,
		lessons:   lessons,
		jobs:      jobs,
		assembler: assembler,
		notifier:  notifier,
		cfg:       cfg,
		log:       baseLog.With("service", "ModuleGenerationService"),
	}
}

func (s *moduleGenerationService) Enqueue(ctx context.Context, msg types.JobMessage) (*types.GenerationJob, error) {
	moduleID, err := uuid.Parse(msg.ModuleID)
	if err != nil {
		return nil, &BadMessageError{Reason: "module_id is not a uuid"}
	}
	roadmapID, err := uuid.Parse(msg.RoadmapID)
	if err != nil {
		return nil, &BadMessageError{Reason: "roadmap_id is not a uuid"}
	}
	if msg.IdempotencyKey == "" {
		return nil, &BadMessageError{Reason: "idempotency_key is required"}
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	job := &types.GenerationJob{
		ID:             uuid.New(),
		ModuleID:       moduleID,
		RoadmapID:      roadmapID,
		IdempotencyKey: msg.IdempotencyKey,
		Payload:        datatypes.JSON(payload),
		Status:         types.JobStatusQueued,
		MaxAttempts:    s.cfg.MaxAttempts,
	}
	created, existing, err := s.jobs.Enqueue(ctx, nil, job)
	if err != nil {
		return nil, err
	}
	if !created {
		s.log.Info("Duplicate enqueue ignored", "module_id", msg.ModuleID, "idempotency_key", msg.IdempotencyKey)
		return existing, nil
	}

	moved, err := s.modules.TransitionStatus(ctx, nil, moduleID,
		[]string{types.ModuleStatusNotStarted}, types.ModuleStatusQueued,
		map[string]interface{}{"idempotency_key": msg.IdempotencyKey})
	if err != nil {
		return nil, err
	}
	if moved {
		s.log.Info("Module state transition", "module_id", msg.ModuleID, "from", types.ModuleStatusNotStarted, "to", types.ModuleStatusQueued)
	}
	return existing, nil
}

func (s *moduleGenerationService) StartWorker(ctx context.Context) {
	s.log.Info("Starting generation workers", "concurrency", s.cfg.Concurrency, "poll_interval", s.cfg.PollInterval.String())
	for i := 0; i < s.cfg.Concurrency; i++ {
		go s.workerLoop(ctx, i)
	}
}

func (s *moduleGenerationService) workerLoop(ctx context.Context, workerID int) {
	log := s.log.With("worker", workerID)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("Worker stopping", "reason", ctx.Err().Error())
			return
		case <-ticker.C:
			for {
				// Claiming stops with ctx; a job already claimed runs to
				// completion on its own deadline so an in-flight module can
				// finish inside the shutdown grace period.
				claimed, err := s.ProcessNextJob(context.Background())
				if err != nil {
					log.Error("Job processing error", "error", err)
					break
				}
				if !claimed {
					break
				}
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

func (s *moduleGenerationService) ProcessNextJob(ctx context.Context) (claimed bool, err error) {
	job, err := s.jobs.ClaimNextRunnable(ctx, nil, s.cfg.MaxAttempts, s.cfg.RetryDelay, s.cfg.StaleRunning)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	defer func() {
		if r := recover(); r != nil {
			// A panic is an infrastructure error: the job row stays
			// claimable after the stale-heartbeat window.
			s.log.Error("Panic in job handler", "job_id", job.ID.String(), "panic", fmt.Sprint(r))
			err = fmt.Errorf("panic in job handler: %v", r)
			s.markJobFailed(job.ID, err)
		}
	}()

	s.processJob(ctx, job)
	return true, nil
}

// processJob owns the job outcome: terminal module states ack the job
// (succeeded), bad payloads dead-letter it, infrastructure errors leave it
// failed-retryable for redelivery.
func (s *moduleGenerationService) processJob(ctx context.Context, job *types.GenerationJob) {
	log := s.log.With("job_id", job.ID.String(), "module_id", job.ModuleID.String())

	stopHeartbeat := s.startHeartbeat(job.ID)
	defer stopHeartbeat()

	var msg types.JobMessage
	if err := json.Unmarshal(job.Payload, &msg); err != nil {
		s.deadLetter(log, job.ID, &BadMessageError{Reason: "payload is not valid JSON: " + err.Error()})
		return
	}
	if err := validateMessage(msg); err != nil {
		s.deadLetter(log, job.ID, err)
		return
	}

	module, err := s.modules.GetByID(ctx, nil, job.ModuleID)
	if err != nil {
		s.markJobFailed(job.ID, err)
		return
	}
	if module == nil {
		s.deadLetter(log, job.ID, &BadMessageError{Reason: "unknown module id"})
		return
	}

	// Terminal states make redelivery a no-op.
	if module.GenerationStatus == types.ModuleStatusCompleted || module.GenerationStatus == types.ModuleStatusFailed {
		log.Info("Module already terminal, acking redelivery", "status", module.GenerationStatus)
		s.markJobSucceeded(job.ID)
		return
	}

	if module.GenerationStatus == types.ModuleStatusInProgress && module.IdempotencyKey == msg.IdempotencyKey {
		// A prior worker died mid-module (the claim was stale). Resume:
		// persisted lessons are reused through the assembler's slot check.
		log.Info("Resuming in-progress module after redelivery")
	} else {
		now := time.Now()
		moved, err := s.modules.TransitionStatus(ctx, nil, module.ID,
			[]string{types.ModuleStatusQueued, types.ModuleStatusNotStarted}, types.ModuleStatusInProgress,
			map[string]interface{}{
				"generation_started_at": now,
				"generation_error":      "",
				"idempotency_key":       msg.IdempotencyKey,
			})
		if err != nil {
			s.markJobFailed(job.ID, err)
			return
		}
		if !moved {
			log.Warn("Module state transition refused, acking stale message",
				"from", module.GenerationStatus, "to", types.ModuleStatusInProgress, "reason", "stale")
			s.markJobSucceeded(job.ID)
			return
		}
		log.Info("Module state transition", "from", module.GenerationStatus, "to", types.ModuleStatusInProgress)
	}

	s.runModule(ctx, log, job, module, msg)
}

func (s *moduleGenerationService) runModule(ctx context.Context, log *logger.Logger, job *types.GenerationJob, module *types.RoadmapModule, msg types.JobMessage) {
	assemblyCtx, cancel := context.WithTimeout(ctx, s.cfg.AssemblyDeadline)
	defer cancel()

	failModule := func(lessonNumber int, cause error) {
		log.Warn("Module generation failed", "lesson_number", lessonNumber, "reason", cause.Error())
		_, terr := s.modules.TransitionStatus(context.Background(), nil, module.ID,
			[]string{types.ModuleStatusInProgress}, types.ModuleStatusFailed,
			map[string]interface{}{"generation_error": truncateErr(cause, 1000)})
		if terr != nil {
			log.Error("Failed to record module failure", "error", terr)
		} else {
			log.Info("Module state transition", "from", types.ModuleStatusInProgress, "to", types.ModuleStatusFailed)
		}
		s.markJobSucceeded(job.ID)
		s.notify(ProgressEvent{
			Event:     "module.failed",
			ModuleID:  module.ID.String(),
			RoadmapID: msg.RoadmapID,
			Error:     truncateErr(cause, 500),
		})
	}

	target := lessonTarget(module, msg)
	for lessonNumber := 1; lessonNumber <= target; lessonNumber++ {
		req := types.LessonRequest{
			ModuleID:       module.ID.String(),
			StepTitle:      lessonTitle(msg.Title, lessonNumber),
			LessonNumber:   lessonNumber,
			LearningStyle:  msg.UserProfile.LearningStyle,
			Difficulty:     msg.Difficulty,
			Industry:       msg.UserProfile.Industry,
			Profile:        msg.UserProfile,
			EnableResearch: true,
		}
		_, err := s.assembler.AssembleLesson(assemblyCtx, module.ID, req)
		if err != nil {
			if isInfraErr(err) {
				// Not a lesson-level failure: leave the module in_progress
				// and let redelivery resume it.
				log.Warn("Infrastructure error mid-module, leaving for redelivery", "lesson_number", lessonNumber, "reason", err.Error())
				s.markJobFailed(job.ID, err)
				return
			}
			failModule(lessonNumber, err)
			return
		}
		s.notify(ProgressEvent{
			Event:        "module.progress",
			ModuleID:     module.ID.String(),
			RoadmapID:    msg.RoadmapID,
			LessonNumber: lessonNumber,
			TotalLessons: target,
		})
	}

	now := time.Now()
	moved, err := s.modules.TransitionStatus(context.Background(), nil, module.ID,
		[]string{types.ModuleStatusInProgress}, types.ModuleStatusCompleted,
		map[string]interface{}{"generation_completed_at": now, "generation_error": ""})
	if err != nil {
		s.markJobFailed(job.ID, err)
		return
	}
	if moved {
		log.Info("Module state transition", "from", types.ModuleStatusInProgress, "to", types.ModuleStatusCompleted)
	}
	s.markJobSucceeded(job.ID)
	s.notify(ProgressEvent{
		Event:        "module.completed",
		ModuleID:     module.ID.String(),
		RoadmapID:    msg.RoadmapID,
		TotalLessons: target,
	})
}

func (s *moduleGenerationService) startHeartbeat(jobID uuid.UUID) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.jobs.Heartbeat(ctx, nil, jobID); err != nil && !errors.Is(err, context.Canceled) {
					s.log.Warn("Heartbeat failed", "job_id", jobID.String(), "reason", err.Error())
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (s *moduleGenerationService) deadLetter(log *logger.Logger, jobID uuid.UUID, cause error) {
	log.Warn("Dead-lettering job", "reason", cause.Error())
	now := time.Now()
	if err := s.jobs.UpdateFields(context.Background(), nil, jobID, map[string]interface{}{
		"status":        types.JobStatusDeadLetter,
		"error":         truncateErr(cause, 1000),
		"last_error_at": now,
	}); err != nil {
		log.Error("Failed to dead-letter job", "error", err)
	}
}

func (s *moduleGenerationService) markJobSucceeded(jobID uuid.UUID) {
	if err := s.jobs.UpdateFields(context.Background(), nil, jobID, map[string]interface{}{
		"status": types.JobStatusSucceeded,
		"error":  "",
	}); err != nil {
		s.log.Error("Failed to mark job succeeded", "job_id", jobID.String(), "error", err)
	}
}

func (s *moduleGenerationService) markJobFailed(jobID uuid.UUID, cause error) {
	now := time.Now()
	if err := s.jobs.UpdateFields(context.Background(), nil, jobID, map[string]interface{}{
		"status":        types.JobStatusFailed,
		"error":         truncateErr(cause, 1000),
		"last_error_at": now,
	}); err != nil {
		s.log.Error("Failed to mark job failed", "job_id", jobID.String(), "error", err)
	}
}

func (s *moduleGenerationService) notify(event ProgressEvent) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.notifier.Publish(ctx, event)
}

func validateMessage(msg types.JobMessage) error {
	if msg.Title == "" {
		return &BadMessageError{Reason: "title is required"}
	}
	if msg.IdempotencyKey == "" {
		return &BadMessageError{Reason: "idempotency_key is required"}
	}
	switch msg.Difficulty {
	case "beginner", "intermediate", "expert":
	default:
		return &BadMessageError{Reason: "difficulty must be beginner, intermediate or expert"}
	}
	switch msg.UserProfile.LearningStyle {
	case "hands_on", "video", "reading", "mixed":
	default:
		return &BadMessageError{Reason: "learning_style must be hands_on, video, reading or mixed"}
	}
	return nil
}

func lessonTarget(module *types.RoadmapModule, msg types.JobMessage) int {
	if module.NumLessonsTarget >= 3 && module.NumLessonsTarget <= 5 {
		return module.NumLessonsTarget
	}
	switch msg.Difficulty {
	case "expert":
		return 5
	case "intermediate":
		return 4
	default:
		return 3
	}
}

// lessonTitle encodes the lesson number so consecutive lessons in one
// module differ in both fingerprint and generated content.
func lessonTitle(moduleTitle string, lessonNumber int) string {
	return fmt.Sprintf("%s - Lesson %d", moduleTitle, lessonNumber)
}

func isInfraErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func truncateErr(err error, n int) string {
	msg := err.Error()
	if len(msg) > n {
		return msg[:n]
	}
	return msg
}
