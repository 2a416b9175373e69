package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pathwise/pathwise-backend/internal/logger"
	"github.com/pathwise/pathwise-backend/internal/repos"
)

// ModuleHandler is the status-polling surface: callers poll module state
// while generation runs asynchronously. Enqueueing stays with the platform
// gateway.
type ModuleHandler struct {
	modules repos.ModuleRepo
	lessons repos.LessonContentRepo
	log     *logger.Logger
}

func NewModuleHandler(modules repos.ModuleRepo, lessons repos.LessonContentRepo, baseLog *logger.Logger) *ModuleHandler {
	return &ModuleHandler{
		modules: modules,
		lessons: lessons,
		log:     baseLog.With("handler", "ModuleHandler"),
	}
}

func (h *ModuleHandler) GetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid module id"})
		return
	}
	module, err := h.modules.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		h.log.Error("Failed to load module", "module_id", id.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load module"})
		return
	}
	if module == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "module not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"module_id":               module.ID,
		"generation_status":       module.GenerationStatus,
		"generation_started_at":   module.GenerationStartedAt,
		"generation_completed_at": module.GenerationCompletedAt,
		"generation_error":        module.GenerationError,
		"num_lessons_target":      module.NumLessonsTarget,
	})
}

func (h *ModuleHandler) ListLessons(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid module id"})
		return
	}
	lessons, err := h.lessons.ListByModule(c.Request.Context(), nil, id)
	if err != nil {
		h.log.Error("Failed to list lessons", "module_id", id.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list lessons"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lessons": lessons})
}

type voteRequest struct {
	VoterID string `json:"voter_id" binding:"required"`
	Value   int    `json:"value" binding:"required"`
}

func (h *ModuleHandler) Vote(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lesson id"})
		return
	}
	var body voteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "voter_id and value (+1/-1) are required"})
		return
	}
	voterID, err := uuid.Parse(body.VoterID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid voter id"})
		return
	}
	lesson, err := h.lessons.ApplyVote(c.Request.Context(), lessonID, voterID, body.Value)
	if err != nil {
		h.log.Error("Failed to apply vote", "lesson_id", lessonID.String(), "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"lesson_id":     lesson.ID,
		"upvotes":       lesson.Upvotes,
		"downvotes":     lesson.Downvotes,
		"approval_rate": lesson.ApprovalRate,
		"is_approved":   lesson.IsApproved,
	})
}
