package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/arena/internal/config"
)

// GetConfig returns the timing values the frontend needs
func GetConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"challenge_timeout_ms":   cfg.ChallengeTimeout.Milliseconds(),
			"session_tick_ms":        cfg.SessionTickInterval.Milliseconds(),
			"matchmaker_interval_ms": cfg.MatchmakerInterval.Milliseconds(),
			"default_rating":         cfg.DefaultRating,
		})
	}
}
