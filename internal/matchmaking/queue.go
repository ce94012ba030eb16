// Package matchmaking pairs queued players by rating and negotiates direct
// challenges. Nothing here is safe for concurrent use: the arena engine owns
// these values and drives them from a single goroutine.
package matchmaking

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/playmatatu/arena/internal/clock"
	"github.com/playmatatu/arena/internal/events"
	"github.com/playmatatu/arena/internal/models"
	"github.com/playmatatu/arena/internal/store"
	"go.uber.org/zap"
)

const (
	// widenPerSecond opens 100 rating points of tolerance per minute waited.
	widenPerSecond = 100.0 / 60.0
	// MaxWidth is reached after three minutes in the queue.
	MaxWidth = 300.0
)

// QueuedPlayer represents a player waiting in the matchmaking queue
type QueuedPlayer struct {
	ID       int64
	Rating   int
	JoinTime time.Time
	// MatchedWith is the paired opponent id, 0 while unmatched.
	MatchedWith int64
}

// Width returns the half-width of the acceptance window after waiting for
// elapsed.
func Width(elapsed time.Duration) float64 {
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Min(elapsed.Seconds()*widenPerSecond, MaxWidth)
}

// Range is the rating window the player accepts at now.
func (qp *QueuedPlayer) Range(now time.Time) (lo, hi float64) {
	w := Width(now.Sub(qp.JoinTime))
	r := float64(qp.Rating)
	return r - w, r + w
}

// Queue holds the players waiting for a ranked match, in join order.
type Queue struct {
	players  []*QueuedPlayer
	statuses store.Statuses
	notify   events.Notifier
	clock    clock.Clock
	log      *zap.Logger
}

func NewQueue(statuses store.Statuses, notify events.Notifier, clk clock.Clock, log *zap.Logger) *Queue {
	return &Queue{
		statuses: statuses,
		notify:   notify,
		clock:    clk,
		log:      log.Named("queue"),
	}
}

// Join adds the player with joinTime now. Only available players may queue.
func (q *Queue) Join(ctx context.Context, player models.Player) error {
	if q.Contains(player.ID) {
		q.log.Warn("player requested joining queue but is already in it", zap.Int64("player_id", player.ID))
		return ErrAlreadyQueued
	}

	status, err := q.statuses.GetPlayerStatus(ctx, player.ID)
	if err != nil {
		return fmt.Errorf("queue join: %w", err)
	}
	if status != models.PlayerAvailable {
		q.log.Info("player not available, refusing queue join",
			zap.Int64("player_id", player.ID),
			zap.String("status", status))
		return ErrNotEligible
	}

	// The status lookup may have raced another join for the same player.
	if q.Contains(player.ID) {
		return ErrAlreadyQueued
	}

	q.players = append(q.players, &QueuedPlayer{
		ID:       player.ID,
		Rating:   player.Rating,
		JoinTime: q.clock.Now(),
	})
	q.log.Debug("player joined queue",
		zap.Int64("player_id", player.ID),
		zap.Int("rating", player.Rating),
		zap.Int("queued", len(q.players)))
	q.notify.SendToPlayer(player.ID, events.QueueJoined, nil)
	return nil
}

// Leave removes the player. It reports false, after logging, when the
// player was not queued.
func (q *Queue) Leave(id int64) bool {
	i := q.indexOf(id)
	if i < 0 {
		q.log.Warn("player not in queue", zap.Int64("player_id", id))
		return false
	}
	q.players = append(q.players[:i], q.players[i+1:]...)
	q.log.Debug("player left queue", zap.Int64("player_id", id), zap.Int("queued", len(q.players)))
	q.notify.SendToPlayer(id, events.QueueLeft, nil)
	return true
}

// IDs returns queued player ids in join order.
func (q *Queue) IDs() []int64 {
	ids := make([]int64, len(q.players))
	for i, p := range q.players {
		ids[i] = p.ID
	}
	return ids
}

func (q *Queue) Len() int { return len(q.players) }

func (q *Queue) Contains(id int64) bool { return q.indexOf(id) >= 0 }

// snapshot copies the current order so a pairing pass can remove entries
// while iterating.
func (q *Queue) snapshot() []*QueuedPlayer {
	return append([]*QueuedPlayer(nil), q.players...)
}

func (q *Queue) indexOf(id int64) int {
	for i, p := range q.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}
