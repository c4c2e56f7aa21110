package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/deck-recovery/api/handlers"
	"github.com/feichai0017/deck-recovery/api/middleware"
	"github.com/feichai0017/deck-recovery/pkg/logger"
)

type Options struct {
	AllowOrigins []string
	MaxBodyBytes int64
}

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, log logger.Logger, opts Options) {
	// 全局中间件
	r.Use(middleware.RequestID(), middleware.AccessLog(log), middleware.CORS(opts.AllowOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(middleware.MaxBodySize(opts.MaxBodyBytes))

	recoveries := v1.Group("/recoveries")
	{
		recoveries.POST("", h.Recovery.Submit)
		recoveries.POST("/batch", h.Recovery.SubmitBatch)
		recoveries.GET("/:taskId", h.Recovery.GetStatus)
		recoveries.GET("/:taskId/manifest", h.Recovery.GetManifest)
		recoveries.GET("/:taskId/archives/:name", h.Recovery.DownloadArchive)
		recoveries.DELETE("/:taskId", h.Recovery.CancelTask)
	}
}
