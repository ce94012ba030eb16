// Package arena runs matchmaking, challenges and game sessions on one
// goroutine. Every public method hands a closure to that goroutine and waits
// for it, so the components underneath never see concurrent calls.
package arena

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playmatatu/arena/internal/clock"
	"github.com/playmatatu/arena/internal/events"
	"github.com/playmatatu/arena/internal/game"
	"github.com/playmatatu/arena/internal/matchmaking"
	"github.com/playmatatu/arena/internal/models"
	"github.com/playmatatu/arena/internal/store"
	"go.uber.org/zap"
)

var ErrStopped = errors.New("arena engine is not running")

// Config holds the loop timings.
type Config struct {
	MatchmakerInterval     time.Duration
	ChallengeSweepInterval time.Duration
	SessionTickInterval    time.Duration
	ChallengeTimeout       time.Duration
	// StoreTimeout bounds the store calls made by one command or tick.
	StoreTimeout time.Duration
	// InstanceID marks the matches this engine creates; only those are
	// simulated here.
	InstanceID string
}

// Presence reports whether a player is connected to this instance.
type Presence interface {
	Connected(playerID int64) bool
}

type command func(ctx context.Context)

type Engine struct {
	cfg      Config
	store    store.Store
	notify   events.Notifier
	clock    clock.Clock
	registry game.Registry
	presence Presence
	log      *zap.Logger

	queue      *matchmaking.Queue
	pairer     *matchmaking.Pairer
	challenges *matchmaking.Challenges
	sessions   *game.Scheduler

	cmds chan command
	done chan struct{}
}

func New(cfg Config, st store.Store, notify events.Notifier, clk clock.Clock, registry game.Registry, log *zap.Logger) *Engine {
	log = log.Named("arena").With(zap.String("instance_id", cfg.InstanceID))
	owned := store.NewOwned(st, cfg.InstanceID)
	queue := matchmaking.NewQueue(owned, notify, clk, log)
	return &Engine{
		cfg:        cfg,
		store:      st,
		notify:     notify,
		clock:      clk,
		registry:   registry,
		log:        log,
		queue:      queue,
		pairer:     matchmaking.NewPairer(queue, owned, notify, clk, log),
		challenges: matchmaking.NewChallenges(owned, notify, clk, log),
		sessions:   game.NewScheduler(registry, owned, notify, clk, log),
		cmds:       make(chan command),
		done:       make(chan struct{}),
	}
}

// SetPresence limits challenges to opponents connected to this instance.
// Call before Run.
func (e *Engine) SetPresence(p Presence) {
	e.presence = p
}

// Run loads unfinished matches and serves commands and tickers until ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)

	e.bounded(ctx, func(ctx context.Context) {
		if err := e.sessions.Sync(ctx); err != nil {
			e.log.Error("initial session sync failed", zap.Error(err))
		}
	})

	pairing := time.NewTicker(e.cfg.MatchmakerInterval)
	defer pairing.Stop()
	sweep := time.NewTicker(e.cfg.ChallengeSweepInterval)
	defer sweep.Stop()
	tick := time.NewTicker(e.cfg.SessionTickInterval)
	defer tick.Stop()

	e.log.Info("engine started",
		zap.Duration("matchmaker_interval", e.cfg.MatchmakerInterval),
		zap.Duration("challenge_sweep_interval", e.cfg.ChallengeSweepInterval),
		zap.Duration("session_tick_interval", e.cfg.SessionTickInterval))

	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine stopped")
			return ctx.Err()
		case cmd := <-e.cmds:
			e.bounded(ctx, cmd)
		case <-pairing.C:
			e.bounded(ctx, e.pair)
		case <-sweep.C:
			e.challenges.Sweep()
		case <-tick.C:
			e.bounded(ctx, e.sessions.Tick)
		}
	}
}

func (e *Engine) bounded(ctx context.Context, fn command) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	fn(ctx)
}

func (e *Engine) pair(ctx context.Context) {
	if created := e.pairer.Tick(ctx); len(created) > 0 {
		e.syncSessions(ctx)
	}
}

func (e *Engine) syncSessions(ctx context.Context) {
	if err := e.sessions.Sync(ctx); err != nil {
		e.log.Error("session sync failed", zap.Error(err))
	}
}

// do runs fn on the engine goroutine and returns its error.
func (e *Engine) do(ctx context.Context, fn func(ctx context.Context) error) error {
	errc := make(chan error, 1)
	cmd := func(ctx context.Context) { errc <- fn(ctx) }

	select {
	case e.cmds <- cmd:
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// JoinQueue puts the player in the ranked queue.
func (e *Engine) JoinQueue(ctx context.Context, playerID int64) error {
	return e.do(ctx, func(ctx context.Context) error {
		player, err := e.store.FindPlayer(ctx, playerID)
		if err != nil {
			return fmt.Errorf("join queue: %w", err)
		}
		if e.sessions.HasPlayer(playerID) {
			return matchmaking.ErrNotEligible
		}
		return e.queue.Join(ctx, *player)
	})
}

// LeaveQueue reports whether the player was queued.
func (e *Engine) LeaveQueue(ctx context.Context, playerID int64) (bool, error) {
	var left bool
	err := e.do(ctx, func(context.Context) error {
		left = e.queue.Leave(playerID)
		return nil
	})
	return left, err
}

func (e *Engine) QueueIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := e.do(ctx, func(context.Context) error {
		ids = e.queue.IDs()
		return nil
	})
	return ids, err
}

// Challenge invites opponentID to a game of gameID.
func (e *Engine) Challenge(ctx context.Context, challengerID, opponentID, gameID int64) error {
	return e.do(ctx, func(ctx context.Context) error {
		if err := e.playable(ctx, gameID); err != nil {
			return fmt.Errorf("challenge: %w", err)
		}
		if _, err := e.store.FindPlayer(ctx, opponentID); err != nil {
			return fmt.Errorf("challenge: opponent %d: %w", opponentID, err)
		}
		if e.presence != nil && opponentID != challengerID && !e.presence.Connected(opponentID) {
			return matchmaking.ErrOpponentElsewhere
		}
		_, err := e.challenges.Create(gameID, challengerID, opponentID, e.cfg.ChallengeTimeout)
		return err
	})
}

// RespondChallenge answers the challenge challengerID sent to playerID. An
// accepted challenge starts its session right away.
func (e *Engine) RespondChallenge(ctx context.Context, playerID, challengerID, gameID int64, accept bool) (*models.Match, error) {
	var match *models.Match
	err := e.do(ctx, func(ctx context.Context) error {
		if accept {
			if err := e.playable(ctx, gameID); err != nil {
				// Settle the challenge as declined so it does not linger.
				if _, derr := e.challenges.Respond(ctx, challengerID, playerID, gameID, false); derr != nil {
					return derr
				}
				return fmt.Errorf("respond challenge: %w", err)
			}
		}
		m, err := e.challenges.Respond(ctx, challengerID, playerID, gameID, accept)
		if err != nil || m == nil {
			return err
		}
		for _, id := range []int64{challengerID, playerID} {
			if e.queue.Contains(id) {
				e.queue.Leave(id)
			}
		}
		e.syncSessions(ctx)
		match = m
		return nil
	})
	return match, err
}

// playable checks that the game exists, is enabled and has a session
// variant registered on this server.
func (e *Engine) playable(ctx context.Context, gameID int64) error {
	g, err := e.store.FindGame(ctx, gameID)
	if err != nil {
		return fmt.Errorf("game %d: %w", gameID, err)
	}
	if !g.Enabled {
		return fmt.Errorf("%w: %s is disabled", matchmaking.ErrGameUnavailable, g.Name)
	}
	if _, err := e.registry.Resolve(g.Name); err != nil {
		return fmt.Errorf("%w: %v", matchmaking.ErrGameUnavailable, err)
	}
	return nil
}

// JoinSession subscribes to a match's tick stream.
func (e *Engine) JoinSession(ctx context.Context, matchID int64, sub game.Subscriber) error {
	return e.do(ctx, func(context.Context) error {
		return e.sessions.Subscribe(matchID, sub)
	})
}

func (e *Engine) LeaveSession(ctx context.Context, matchID int64, subID string) error {
	return e.do(ctx, func(context.Context) error {
		e.sessions.Unsubscribe(matchID, subID)
		return nil
	})
}

// DropSubscriber removes a closed connection from every tick stream.
func (e *Engine) DropSubscriber(ctx context.Context, subID string) error {
	return e.do(ctx, func(context.Context) error {
		e.sessions.UnsubscribeAll(subID)
		return nil
	})
}

// Input records key frames for the player in a match.
func (e *Engine) Input(ctx context.Context, matchID, playerID int64, frames []game.InputFrame) error {
	return e.do(ctx, func(context.Context) error {
		return e.sessions.HandleInput(matchID, playerID, frames)
	})
}

// Connect marks the player available unless a match holds them.
func (e *Engine) Connect(ctx context.Context, playerID int64) error {
	return e.do(ctx, func(ctx context.Context) error {
		status, err := e.store.GetPlayerStatus(ctx, playerID)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		if status == models.PlayerBusy {
			return nil
		}
		return e.store.SetPlayerStatus(ctx, playerID, models.PlayerAvailable)
	})
}

// Disconnect cleans up after a player's connection closed: their
// subscriptions, issued challenges and queue entry go away, their running
// matches are forfeited and they are marked offline.
func (e *Engine) Disconnect(ctx context.Context, playerID int64, subID string) error {
	return e.do(ctx, func(ctx context.Context) error {
		e.sessions.UnsubscribeAll(subID)
		e.challenges.PlayerDisconnected(playerID)
		if e.queue.Contains(playerID) {
			e.queue.Leave(playerID)
		}
		e.sessions.HandleDisconnect(ctx, playerID)

		if err := e.store.SetPlayerStatus(ctx, playerID, models.PlayerOffline); err != nil {
			return fmt.Errorf("disconnect: %w", err)
		}
		e.log.Debug("player disconnected", zap.Int64("player_id", playerID))
		return nil
	})
}

// ActiveMatches lists matches that are not finished on any instance.
func (e *Engine) ActiveMatches(ctx context.Context) ([]models.Match, error) {
	return e.store.ListNonFinishedMatches(ctx)
}

// Pending lists live challenges.
func (e *Engine) Pending(ctx context.Context) ([]matchmaking.Challenge, error) {
	var out []matchmaking.Challenge
	err := e.do(ctx, func(context.Context) error {
		out = e.challenges.Pending()
		return nil
	})
	return out, err
}

// TickMatchmaking runs one pairing pass outside the ticker.
func (e *Engine) TickMatchmaking(ctx context.Context) error {
	return e.do(ctx, func(ctx context.Context) error {
		e.pair(ctx)
		return nil
	})
}

// TickSessions advances every session once outside the ticker.
func (e *Engine) TickSessions(ctx context.Context) error {
	return e.do(ctx, func(ctx context.Context) error {
		e.sessions.Tick(ctx)
		return nil
	})
}

// SweepChallenges expires challenges outside the ticker.
func (e *Engine) SweepChallenges(ctx context.Context) error {
	return e.do(ctx, func(context.Context) error {
		e.challenges.Sweep()
		return nil
	})
}
