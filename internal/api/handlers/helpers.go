package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/arena/internal/arena"
	"github.com/playmatatu/arena/internal/auth"
	"github.com/playmatatu/arena/internal/game"
	"github.com/playmatatu/arena/internal/matchmaking"
	"github.com/playmatatu/arena/internal/store"
	"go.uber.org/zap"
)

// statusFor maps engine errors to HTTP status codes. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, game.ErrNoSuchSession):
		return http.StatusNotFound
	case errors.Is(err, matchmaking.ErrAlreadyQueued),
		errors.Is(err, matchmaking.ErrNotEligible),
		errors.Is(err, matchmaking.ErrDuplicateChallenge),
		errors.Is(err, matchmaking.ErrOpponentElsewhere):
		return http.StatusConflict
	case errors.Is(err, matchmaking.ErrSelfChallenge),
		errors.Is(err, matchmaking.ErrStaleChallenge),
		errors.Is(err, matchmaking.ErrGameUnavailable):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, arena.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": ...}; internal errors are logged and
// hidden from the caller.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// currentPlayer reads the id set by auth.Middleware.
func currentPlayer(c *gin.Context) (int64, bool) {
	id, ok := auth.PlayerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
	return id, ok
}
