package api

import (
	"github.com/gin-gonic/gin"
	"github.com/playmatatu/arena/internal/api/handlers"
	"github.com/playmatatu/arena/internal/auth"
	"github.com/playmatatu/arena/internal/config"
	"github.com/playmatatu/arena/internal/middleware"
	"go.uber.org/zap"
)

// Deps carries what the routes need.
type Deps struct {
	Config      *config.Config
	Matchmaker  handlers.Matchmaker
	Games       handlers.GameLister
	Verifier    *auth.Verifier
	WebSocket   gin.HandlerFunc
	Connections func() int
	Logger      *zap.Logger
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, d Deps) {
	log := d.Logger.Named("api")

	router.Use(middleware.CORSMiddleware(d.Config, log))

	// No-cache in development so the frontend always sees fresh state
	if d.Config.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Debug("no-cache headers enabled")
	}

	router.GET("/health", handlers.HealthCheck(d.Connections))

	// The token is checked by the handler itself; browsers can only send it
	// in the query string or a cookie.
	router.GET("/ws", middleware.WebSocketCORSCheck(d.Config), d.WebSocket)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(d.Connections))
		v1.GET("/config", handlers.GetConfig(d.Config))
		v1.GET("/games", handlers.ListGames(d.Games, log))

		authed := v1.Group("", auth.Middleware(d.Verifier))
		{
			queue := authed.Group("/matchmaking/queue")
			queue.GET("", handlers.GetQueue(d.Matchmaker, log))
			queue.POST("", handlers.JoinQueue(d.Matchmaker, log))
			queue.DELETE("", handlers.LeaveQueue(d.Matchmaker, log))

			authed.GET("/matches/active", handlers.ActiveMatches(d.Matchmaker, log))
		}
	}
}
