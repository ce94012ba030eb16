package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playmatatu/arena/internal/clock"
	"github.com/playmatatu/arena/internal/events"
	"github.com/playmatatu/arena/internal/models"
	"github.com/playmatatu/arena/internal/rating"
	"github.com/playmatatu/arena/internal/store"
	"go.uber.org/zap"
)

// RankedGame is the game type ranked queue matches are created for.
const RankedGame = "pong"

// Pairer scans the queue once per matchmaking tick and turns overlapping
// rating windows into matches.
type Pairer struct {
	queue  *Queue
	store  store.Store
	notify events.Notifier
	clock  clock.Clock
	log    *zap.Logger
}

func NewPairer(queue *Queue, st store.Store, notify events.Notifier, clk clock.Clock, log *zap.Logger) *Pairer {
	return &Pairer{
		queue:  queue,
		store:  st,
		notify: notify,
		clock:  clk,
		log:    log.Named("matchmaker"),
	}
}

// Tick runs one pairing pass and returns the matches it created.
func (p *Pairer) Tick(ctx context.Context) []*models.Match {
	if p.queue.Len() < 2 {
		return nil
	}

	game, err := p.store.FindGameByName(ctx, RankedGame)
	if err != nil {
		p.log.Error("ranked game type not resolvable, skipping pairing",
			zap.String("game", RankedGame), zap.Error(err))
		return nil
	}
	if !game.Enabled {
		p.log.Warn("ranked game type is disabled, skipping pairing", zap.String("game", RankedGame))
		return nil
	}

	now := p.clock.Now()
	var created []*models.Match
	// Players whose pairing failed wait for the next tick.
	failed := make(map[int64]bool)

	queued := p.queue.snapshot()
	for _, lhs := range queued {
		if lhs.MatchedWith != 0 || failed[lhs.ID] || !p.queue.Contains(lhs.ID) {
			continue
		}

		rhs := p.bestCandidate(lhs, queued, failed, now)
		if rhs == nil {
			continue
		}

		if m := p.pair(ctx, game, lhs, rhs); m != nil {
			created = append(created, m)
		} else {
			failed[lhs.ID] = true
			failed[rhs.ID] = true
		}
	}

	if len(created) > 0 {
		p.log.Info("matchmaking pass completed",
			zap.Int("matches_created", len(created)),
			zap.Int("still_queued", p.queue.Len()))
	}
	return created
}

// bestCandidate returns the unmatched player whose window overlaps lhs's with
// the smallest rating gap. Ties go to whoever joined first.
func (p *Pairer) bestCandidate(lhs *QueuedPlayer, queued []*QueuedPlayer, failed map[int64]bool, now time.Time) *QueuedPlayer {
	lhsMin, lhsMax := lhs.Range(now)

	var best *QueuedPlayer
	bestGap := 0
	for _, rhs := range queued {
		if rhs == lhs || rhs.MatchedWith != 0 || failed[rhs.ID] || !p.queue.Contains(rhs.ID) {
			continue
		}
		rhsMin, rhsMax := rhs.Range(now)
		if rhsMax < lhsMin || rhsMin > lhsMax {
			continue
		}
		gap := abs(rhs.Rating - lhs.Rating)
		if best == nil || gap < bestGap {
			best, bestGap = rhs, gap
		}
	}
	return best
}

// pair creates the match for lhs and rhs. Any failure leaves both unmatched
// so the next tick retries them, except for players whose record is gone,
// who are dropped from the queue.
func (p *Pairer) pair(ctx context.Context, game *models.Game, lhs, rhs *QueuedPlayer) (match *models.Match) {
	lhs.MatchedWith = rhs.ID
	rhs.MatchedWith = lhs.ID

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("pairing panicked",
				zap.Int64("player1_id", lhs.ID),
				zap.Int64("player2_id", rhs.ID),
				zap.Any("panic", r))
			match = nil
		}
		if match == nil {
			lhs.MatchedWith = 0
			rhs.MatchedWith = 0
		}
	}()

	p1, err := p.resolve(ctx, lhs.ID)
	if err != nil {
		return nil
	}
	p2, err := p.resolve(ctx, rhs.ID)
	if err != nil {
		return nil
	}

	lhsWins, rhsWins := rating.Shifts(lhs.Rating, rhs.Rating)
	p.log.Debug("match found",
		zap.Int64("player1_id", lhs.ID),
		zap.Int64("player2_id", rhs.ID),
		zap.Int("rank_shift_p1", lhsWins),
		zap.Int("rank_shift_p2", rhsWins))

	m, err := p.store.CreateMatch(ctx,
		models.MatchSpec{Game: *game, Status: models.MatchWaiting},
		models.Seat{Player: *p1, RankShift: lhsWins},
		models.Seat{Player: *p2, RankShift: rhsWins},
	)
	if err != nil {
		p.log.Error("failed to create match",
			zap.Int64("player1_id", lhs.ID),
			zap.Int64("player2_id", rhs.ID),
			zap.Error(err))
		return nil
	}

	p.queue.Leave(lhs.ID)
	p.queue.Leave(rhs.ID)

	for _, id := range []int64{lhs.ID, rhs.ID} {
		if err := p.store.SetPlayerStatus(ctx, id, models.PlayerBusy); err != nil {
			p.log.Error("failed to mark player busy", zap.Int64("player_id", id), zap.Error(err))
		}
		p.notify.SendToPlayer(id, events.MatchCreated, events.MatchData{MatchID: m.ID, Match: *m})
	}

	p.log.Info("match created",
		zap.Int64("match_id", m.ID),
		zap.Int64("player1_id", lhs.ID),
		zap.Int64("player2_id", rhs.ID),
		zap.Int("rating_gap", abs(lhs.Rating-rhs.Rating)))
	return m
}

func (p *Pairer) resolve(ctx context.Context, id int64) (*models.Player, error) {
	player, err := p.store.FindPlayer(ctx, id)
	if err == nil {
		return player, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		p.log.Warn("queued player not found, dropping from queue", zap.Int64("player_id", id))
		p.queue.Leave(id)
		return nil, err
	}
	p.log.Error("failed to load queued player", zap.Int64("player_id", id), zap.Error(err))
	return nil, fmt.Errorf("resolve player %d: %w", id, err)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
