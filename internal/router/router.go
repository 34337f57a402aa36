package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/taskbook/internal/config"
	"github.com/stemsi/taskbook/internal/handler"
	"github.com/stemsi/taskbook/internal/metrics"
	"github.com/stemsi/taskbook/internal/middleware"
	"github.com/stemsi/taskbook/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Command *handler.CommandHandler
	Subject *handler.SubjectHandler
	WS      *handler.WSHandler // nil when Redis is not configured
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.AccessLog(log))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// ─── 1. API Group (Rate Limited) ───────────────────────────────────
	api := router.Group("/api/v1")
	if cfg.RateLimitPerMinute > 0 {
		api.Use(middleware.NewRateLimiter(cfg.RateLimitPerMinute).Middleware())
	}
	{
		api.POST("/commands", handlers.Command.Execute)

		subjects := api.Group("/subjects")
		{
			subjects.GET("", handlers.Subject.List)
			subjects.POST("", handlers.Subject.Create)
			subjects.GET("/:name", handlers.Subject.Get)
			subjects.DELETE("/:name", handlers.Subject.Delete)
			subjects.GET("/:name/free", handlers.Subject.ListFree)
			subjects.POST("/:name/book", handlers.Subject.Book)
		}
	}

	// ─── 2. WebSocket Group (Redis only) ───────────────────────────────
	if handlers.WS != nil {
		ws := router.Group("/ws/v1")
		{
			ws.GET("/events", handlers.WS.EventStream)
		}
	}

	return router
}
