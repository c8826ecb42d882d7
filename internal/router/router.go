package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/nexusedu/exam-agent/internal/config"
	"github.com/nexusedu/exam-agent/internal/handler"
	"github.com/nexusedu/exam-agent/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	WS      *handler.WSHandler
}

// SetupRouter configures the Gin routes the local UI consumes.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── Session API ───────────────────────────────────────────────────
	sessionAPI := router.Group("/api/v1/session")
	{
		sessionAPI.GET("", handlers.Session.GetState)
		sessionAPI.POST("/start", handlers.Session.Start)
		sessionAPI.POST("/answer", handlers.Session.SelectAnswer)
		sessionAPI.POST("/navigate", handlers.Session.Navigate)
		sessionAPI.POST("/submit", handlers.Session.Submit)
	}

	// ─── WebSocket ─────────────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/session/stream", handlers.WS.SessionStream)
	}

	return router
}
