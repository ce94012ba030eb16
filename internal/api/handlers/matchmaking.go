package handlers

import (
	"context"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/arena/internal/models"
	"go.uber.org/zap"
)

// Matchmaker is the part of the arena engine the HTTP handlers use.
type Matchmaker interface {
	JoinQueue(ctx context.Context, playerID int64) error
	LeaveQueue(ctx context.Context, playerID int64) (bool, error)
	QueueIDs(ctx context.Context) ([]int64, error)
	ActiveMatches(ctx context.Context) ([]models.Match, error)
}

// GetQueue lists the queued player ids and whether the caller is among them.
func GetQueue(mm Matchmaker, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID, ok := currentPlayer(c)
		if !ok {
			return
		}

		ids, err := mm.QueueIDs(c.Request.Context())
		if err != nil {
			respondError(c, log, err)
			return
		}
		if ids == nil {
			ids = []int64{}
		}

		c.JSON(http.StatusOK, gin.H{
			"players": ids,
			"queued":  slices.Contains(ids, playerID),
		})
	}
}

// JoinQueue puts the caller in the ranked queue.
func JoinQueue(mm Matchmaker, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID, ok := currentPlayer(c)
		if !ok {
			return
		}

		if err := mm.JoinQueue(c.Request.Context(), playerID); err != nil {
			respondError(c, log, err)
			return
		}

		log.Debug("player joined queue over http", zap.Int64("player_id", playerID))
		c.JSON(http.StatusCreated, gin.H{"queued": true})
	}
}

// LeaveQueue removes the caller from the queue. Leaving twice is not an error.
func LeaveQueue(mm Matchmaker, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID, ok := currentPlayer(c)
		if !ok {
			return
		}

		left, err := mm.LeaveQueue(c.Request.Context(), playerID)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"left": left})
	}
}

// ActiveMatches lists matches that have not finished yet.
func ActiveMatches(mm Matchmaker, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		matches, err := mm.ActiveMatches(c.Request.Context())
		if err != nil {
			respondError(c, log, err)
			return
		}
		if matches == nil {
			matches = []models.Match{}
		}
		c.JSON(http.StatusOK, gin.H{"matches": matches})
	}
}
