package repos

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pathwise/pathwise-backend/internal/logger"
	"github.com/pathwise/pathwise-backend/internal/types"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.RoadmapModule{},
		&types.LessonContent{},
		&types.LessonVote{},
		&types.AICallLog{},
		&types.GenerationJob{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedModule(t *testing.T, db *gorm.DB, status string) *types.RoadmapModule {
	t.Helper()
	module := &types.RoadmapModule{
		ID:               uuid.New(),
		RoadmapID:        uuid.New(),
		Title:            "Python Generators",
		Difficulty:       "beginner",
		NumLessonsTarget: 3,
		GenerationStatus: status,
	}
	if err := db.Create(module).Error; err != nil {
		t.Fatalf("seed module: %v", err)
	}
	return module
}

func seedLesson(t *testing.T, db *gorm.DB, moduleID uuid.UUID, number int, hash string) *types.LessonContent {
	t.Helper()
	lesson := &types.LessonContent{
		ID:           uuid.New(),
		ModuleID:     moduleID,
		LessonNumber: number,
		Title:        fmt.Sprintf("Lesson %d", number),
		ContentHash:  hash,
		Components:   []byte(`{"version": 1, "introduction": "hi"}`),
	}
	if err := db.Create(lesson).Error; err != nil {
		t.Fatalf("seed lesson: %v", err)
	}
	return lesson
}
