package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/arena/internal/models"
	"go.uber.org/zap"
)

// GameLister is satisfied by store.Matches.
type GameLister interface {
	ListGames(ctx context.Context) ([]models.Game, error)
}

// ListGames returns the enabled games
func ListGames(games GameLister, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		all, err := games.ListGames(c.Request.Context())
		if err != nil {
			respondError(c, log, err)
			return
		}

		enabled := make([]models.Game, 0, len(all))
		for _, g := range all {
			if g.Enabled {
				enabled = append(enabled, g)
			}
		}
		c.JSON(http.StatusOK, gin.H{"games": enabled})
	}
}
