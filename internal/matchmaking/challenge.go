package matchmaking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/playmatatu/arena/internal/clock"
	"github.com/playmatatu/arena/internal/events"
	"github.com/playmatatu/arena/internal/models"
	"github.com/playmatatu/arena/internal/store"
	"go.uber.org/zap"
)

// Challenge is a pending direct invitation from one player to another.
type Challenge struct {
	ID           string
	GameID       int64
	ChallengerID int64
	ChallengedID int64
	ExpireAt     time.Time
}

// ChallengeID builds the "<challenger>-<challenged>-<game>" key.
func ChallengeID(challengerID, challengedID, gameID int64) string {
	return fmt.Sprintf("%d-%d-%d", challengerID, challengedID, gameID)
}

func (c *Challenge) Expired(now time.Time) bool {
	return c.ExpireAt.Before(now)
}

func (c *Challenge) HasPlayer(id int64) bool {
	return c.ChallengerID == id || c.ChallengedID == id
}

// Challenges tracks live challenges keyed by id.
type Challenges struct {
	pending map[string]*Challenge
	store   store.Store
	notify  events.Notifier
	clock   clock.Clock
	log     *zap.Logger
}

func NewChallenges(st store.Store, notify events.Notifier, clk clock.Clock, log *zap.Logger) *Challenges {
	return &Challenges{
		pending: make(map[string]*Challenge),
		store:   st,
		notify:  notify,
		clock:   clk,
		log:     log.Named("challenges"),
	}
}

// Create registers a challenge and notifies the challenged player. A live
// challenge between the same two players for the same game, in either
// direction, is a duplicate.
func (cs *Challenges) Create(gameID, challengerID, challengedID int64, timeout time.Duration) (*Challenge, error) {
	if challengerID == challengedID {
		cs.log.Warn("player tried to challenge themselves", zap.Int64("player_id", challengerID))
		return nil, ErrSelfChallenge
	}

	now := cs.clock.Now()
	for _, id := range []string{
		ChallengeID(challengerID, challengedID, gameID),
		ChallengeID(challengedID, challengerID, gameID),
	} {
		existing, ok := cs.pending[id]
		if !ok {
			continue
		}
		if existing.Expired(now) {
			cs.delete(existing)
			continue
		}
		cs.log.Debug("duplicate challenge",
			zap.String("challenge_id", id),
			zap.Int64("requested_by", challengerID))
		cs.notify.SendToPlayer(challengerID, events.ChallengeDuplicate,
			events.ChallengeDuplicateData{ChallengerID: existing.ChallengerID})
		return nil, ErrDuplicateChallenge
	}

	c := &Challenge{
		ID:           ChallengeID(challengerID, challengedID, gameID),
		GameID:       gameID,
		ChallengerID: challengerID,
		ChallengedID: challengedID,
		ExpireAt:     now.Add(timeout),
	}
	cs.pending[c.ID] = c

	cs.log.Info("challenge created",
		zap.String("challenge_id", c.ID),
		zap.Duration("timeout", timeout))
	cs.notify.SendToPlayer(challengedID, events.ChallengeReceived, events.ChallengeReceivedData{
		OpponentID: challengerID,
		GameID:     gameID,
		TimeoutMs:  timeout.Milliseconds(),
	})
	return c, nil
}

// Respond settles the challenge from challengerID to challengedID. On accept
// an unranked match is created and returned; on decline the match is nil.
func (cs *Challenges) Respond(ctx context.Context, challengerID, challengedID, gameID int64, accept bool) (*models.Match, error) {
	id := ChallengeID(challengerID, challengedID, gameID)
	c, ok := cs.pending[id]
	if !ok || c.Expired(cs.clock.Now()) {
		cs.log.Info("response to missing or expired challenge",
			zap.String("challenge_id", id),
			zap.Bool("accept", accept))
		if ok {
			cs.delete(c)
		}
		return nil, ErrStaleChallenge
	}
	cs.delete(c)

	if !accept {
		cs.log.Debug("challenge declined", zap.String("challenge_id", id))
		return nil, nil
	}

	for _, pid := range []int64{challengerID, challengedID} {
		status, err := cs.store.GetPlayerStatus(ctx, pid)
		if err != nil {
			return nil, fmt.Errorf("accept challenge %s: %w", id, err)
		}
		if status == models.PlayerBusy {
			cs.log.Info("challenge accepted but player is busy",
				zap.String("challenge_id", id),
				zap.Int64("player_id", pid))
			return nil, ErrNotEligible
		}
	}

	game, err := cs.store.FindGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("accept challenge %s: game: %w", id, err)
	}
	if !game.Enabled {
		cs.log.Info("challenge accepted for a disabled game",
			zap.String("challenge_id", id),
			zap.String("game", game.Name))
		return nil, ErrGameUnavailable
	}
	challenger, err := cs.store.FindPlayer(ctx, challengerID)
	if err != nil {
		return nil, fmt.Errorf("accept challenge %s: challenger: %w", id, err)
	}
	challenged, err := cs.store.FindPlayer(ctx, challengedID)
	if err != nil {
		return nil, fmt.Errorf("accept challenge %s: challenged: %w", id, err)
	}

	m, err := cs.store.CreateMatch(ctx,
		models.MatchSpec{Game: *game, Status: models.MatchWaiting},
		models.Seat{Player: *challenger},
		models.Seat{Player: *challenged},
	)
	if err != nil {
		return nil, fmt.Errorf("accept challenge %s: create match: %w", id, err)
	}

	for _, pid := range []int64{challengerID, challengedID} {
		if err := cs.store.SetPlayerStatus(ctx, pid, models.PlayerBusy); err != nil {
			cs.log.Error("failed to mark player busy", zap.Int64("player_id", pid), zap.Error(err))
		}
		cs.notify.SendToPlayer(pid, events.ChallengeAccepted, events.ChallengeAcceptedData{MatchID: m.ID})
	}

	cs.log.Info("challenge accepted",
		zap.String("challenge_id", id),
		zap.Int64("match_id", m.ID))
	return m, nil
}

// Sweep drops every expired challenge and returns how many were removed.
func (cs *Challenges) Sweep() int {
	now := cs.clock.Now()
	expired := 0
	for _, c := range cs.sorted() {
		if c.Expired(now) {
			cs.log.Debug("challenge expired", zap.String("challenge_id", c.ID))
			cs.delete(c)
			expired++
		}
	}
	return expired
}

// PlayerDisconnected drops the challenges the player issued. Challenges
// addressed to the player are left to expire.
func (cs *Challenges) PlayerDisconnected(playerID int64) {
	for _, c := range cs.sorted() {
		if c.ChallengerID == playerID {
			cs.delete(c)
		}
	}
}

// Pending returns live challenges ordered by id.
func (cs *Challenges) Pending() []Challenge {
	out := make([]Challenge, 0, len(cs.pending))
	for _, c := range cs.sorted() {
		out = append(out, *c)
	}
	return out
}

func (cs *Challenges) delete(c *Challenge) {
	delete(cs.pending, c.ID)
	data := events.ChallengeDeletedData{ChallengeID: c.ID}
	cs.notify.SendToPlayer(c.ChallengerID, events.ChallengeDeleted, data)
	cs.notify.SendToPlayer(c.ChallengedID, events.ChallengeDeleted, data)
}

func (cs *Challenges) sorted() []*Challenge {
	out := make([]*Challenge, 0, len(cs.pending))
	for _, c := range cs.pending {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
