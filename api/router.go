package api

import (
	"context"
	"log/slog"

	"anytrack/config"
	"anytrack/operation"

	"github.com/gin-gonic/gin"
)

// SetupRouter exposes one session. ctx bounds operations started over HTTP;
// they outlive the request that submitted them.
func SetupRouter(ctx context.Context, ctrl *operation.Controller, cfg *config.Config, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	h := NewHandler(ctx, ctrl, cfg, logger)

	r.GET("/health", h.handleHealth)

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg))
	{
		v1.GET("/session", h.handleGetSession)
		v1.PUT("/session/mode", h.handleSetMode)
		v1.PATCH("/session/form", h.handleUpdateForm)
		v1.POST("/session/file", h.handleUploadFile)
		v1.POST("/session/submit", h.handleSubmit)
		v1.POST("/session/download", h.handleDownload)
		v1.GET("/session/events", h.handleEvents)
	}
	return r
}
