package server

import (
	"github.com/gin-gonic/gin"

	"github.com/pathwise/pathwise-backend/internal/handlers"
	"github.com/pathwise/pathwise-backend/internal/logger"
	"github.com/pathwise/pathwise-backend/internal/utils"
)

func NewRouter(moduleHandler *handlers.ModuleHandler, log *logger.Logger) *gin.Engine {
	mode := utils.GetEnv("GIN_MODE", gin.ReleaseMode, log)
	gin.SetMode(mode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	{
		v1.GET("/modules/:id/status", moduleHandler.GetStatus)
		v1.GET("/modules/:id/lessons", moduleHandler.ListLessons)
		v1.POST("/lessons/:id/vote", moduleHandler.Vote)
	}
	return r
}
