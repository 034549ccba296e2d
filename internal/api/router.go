// Package api is the HTTP surface of the engine: the trigger boundary, a
// production lookup and a JSON view of the render queue.
package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	Handler *Handler
	Debug   bool
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/", Index)
	router.GET("/healthcheck", HealthCheck)

	router.POST("/trigger", cfg.Handler.Trigger)
	router.GET("/productions", cfg.Handler.ListProductions)
	router.GET("/productions/:id", cfg.Handler.GetProduction)

	admin := router.Group("/admin/queues")
	{
		admin.GET("", cfg.Handler.QueueDashboard)
		admin.GET("/jobs/:id", cfg.Handler.GetJob)
	}

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
			slog.Error("HTTP request failed", attrs...)
			return
		}
		slog.Debug("HTTP request", attrs...)
	}
}
