package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pathwise/pathwise-backend/internal/logger"
	"github.com/pathwise/pathwise-backend/internal/repos"
	"github.com/pathwise/pathwise-backend/internal/types"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.RoadmapModule{}, &types.LessonContent{}, &types.LessonVote{}, &types.AICallLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	h := NewModuleHandler(repos.NewModuleRepo(db, testLogger()), repos.NewLessonContentRepo(db, testLogger()), testLogger())
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/v1/modules/:id/status", h.GetStatus)
	r.GET("/v1/modules/:id/lessons", h.ListLessons)
	r.POST("/v1/lessons/:id/vote", h.Vote)
	return r, db
}

func TestGetStatus(t *testing.T) {
	r, db := newTestRouter(t)

	module := &types.RoadmapModule{
		ID:               uuid.New(),
		RoadmapID:        uuid.New(),
		Title:            "Go Concurrency",
		Difficulty:       "intermediate",
		NumLessonsTarget: 4,
		GenerationStatus: types.ModuleStatusInProgress,
	}
	if err := db.Create(module).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/modules/"+module.ID.String()+"/status", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body struct {
		ModuleID         uuid.UUID `json:"module_id"`
		GenerationStatus string    `json:"generation_status"`
		NumLessonsTarget int       `json:"num_lessons_target"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ModuleID != module.ID || body.GenerationStatus != types.ModuleStatusInProgress || body.NumLessonsTarget != 4 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestGetStatusNotFoundAndBadID(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/modules/"+uuid.New().String()+"/status", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown module: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/modules/not-a-uuid/status", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status = %d", w.Code)
	}
}

func TestListLessonsOrdered(t *testing.T) {
	r, db := newTestRouter(t)

	moduleID := uuid.New()
	for _, n := range []int{2, 1} {
		lesson := &types.LessonContent{
			ID:           uuid.New(),
			ModuleID:     moduleID,
			LessonNumber: n,
			Title:        fmt.Sprintf("Lesson %d", n),
			ContentHash:  fmt.Sprintf("hash-%d", n),
			Components:   []byte(`{}`),
		}
		if err := db.Create(lesson).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/modules/"+moduleID.String()+"/lessons", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body struct {
		Lessons []struct {
			LessonNumber int `json:"lesson_number"`
		} `json:"lessons"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Lessons) != 2 || body.Lessons[0].LessonNumber != 1 || body.Lessons[1].LessonNumber != 2 {
		t.Fatalf("lessons out of order: %+v", body.Lessons)
	}
}

func TestVote(t *testing.T) {
	r, db := newTestRouter(t)

	lesson := &types.LessonContent{
		ID:           uuid.New(),
		ModuleID:     uuid.New(),
		LessonNumber: 1,
		Title:        "Lesson 1",
		ContentHash:  "hash-1",
		Components:   []byte(`{}`),
	}
	if err := db.Create(lesson).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	payload, _ := json.Marshal(map[string]interface{}{"voter_id": uuid.New().String(), "value": 1})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/lessons/"+lesson.ID.String()+"/vote", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body struct {
		Upvotes      int     `json:"upvotes"`
		Downvotes    int     `json:"downvotes"`
		ApprovalRate float64 `json:"approval_rate"`
		IsApproved   bool    `json:"is_approved"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Upvotes != 1 || body.Downvotes != 0 || body.IsApproved {
		t.Fatalf("unexpected tallies: %+v", body)
	}
}

func TestVoteRejectsBadValue(t *testing.T) {
	r, db := newTestRouter(t)

	lesson := &types.LessonContent{
		ID:           uuid.New(),
		ModuleID:     uuid.New(),
		LessonNumber: 1,
		Title:        "Lesson 1",
		ContentHash:  "hash-1",
		Components:   []byte(`{}`),
	}
	if err := db.Create(lesson).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	payload, _ := json.Marshal(map[string]interface{}{"voter_id": uuid.New().String(), "value": 5})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/lessons/"+lesson.ID.String()+"/vote", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}
