package game

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/playmatatu/arena/internal/clock"
	"github.com/playmatatu/arena/internal/events"
	"github.com/playmatatu/arena/internal/models"
	"github.com/playmatatu/arena/internal/store"
	"go.uber.org/zap"
)

// Subscriber receives the session:tick stream of the matches it joined.
// Send reports false once the subscriber is gone.
type Subscriber interface {
	ID() string
	Send(event string, data any) bool
}

type activeSession struct {
	session Session
	match   models.Match
	// persisted is the last status written to the store.
	persisted   string
	winnerSaved bool
	last        any
	subs        map[string]Subscriber
}

// Scheduler owns every active session. Like the matchmaking types it is
// driven from a single goroutine and does no locking of its own.
type Scheduler struct {
	sessions map[int64]*activeSession
	registry Registry
	store    store.Store
	notify   events.Notifier
	clock    clock.Clock
	log      *zap.Logger
}

func NewScheduler(registry Registry, st store.Store, notify events.Notifier, clk clock.Clock, log *zap.Logger) *Scheduler {
	return &Scheduler{
		sessions: make(map[int64]*activeSession),
		registry: registry,
		store:    st,
		notify:   notify,
		clock:    clk,
		log:      log.Named("scheduler"),
	}
}

// Sync starts a session for every unfinished match that does not have one.
func (s *Scheduler) Sync(ctx context.Context) error {
	matches, err := s.store.ListNonFinishedMatches(ctx)
	if err != nil {
		return fmt.Errorf("sync sessions: %w", err)
	}

	for _, m := range matches {
		if _, ok := s.sessions[m.ID]; ok {
			continue
		}
		factory, err := s.registry.Resolve(m.GameName)
		if err != nil {
			s.log.Error("cannot start session, abandoning match",
				zap.Int64("match_id", m.ID),
				zap.String("game", m.GameName),
				zap.Error(err))
			s.abandon(ctx, m)
			continue
		}
		sess := factory(m)
		s.sessions[m.ID] = &activeSession{
			session:   sess,
			match:     m,
			persisted: m.Status,
			last:      sess.State(),
			subs:      make(map[string]Subscriber),
		}
		s.log.Info("session started",
			zap.Int64("match_id", m.ID),
			zap.String("game", m.GameName),
			zap.Int64("player1_id", m.Players[0].PlayerID),
			zap.Int64("player2_id", m.Players[1].PlayerID))
	}
	return nil
}

// Tick advances every session once, in match id order.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.clock.Now()
	for _, id := range s.ids() {
		s.guard(id, func(as *activeSession) {
			as.session.Advance(now)
			s.settle(ctx, as)
		})
	}
}

// HandleInput forwards a player's key frames to their session.
func (s *Scheduler) HandleInput(matchID, playerID int64, frames []InputFrame) error {
	as, ok := s.sessions[matchID]
	if !ok {
		return ErrNoSuchSession
	}
	return as.session.HandleInput(playerID, frames)
}

// HandleDisconnect forfeits every unfinished session the player is in and
// writes the result back straight away. It returns the forfeited match ids.
func (s *Scheduler) HandleDisconnect(ctx context.Context, playerID int64) []int64 {
	var forfeited []int64
	for _, id := range s.ids() {
		s.guard(id, func(as *activeSession) {
			if !as.session.Forfeit(playerID) {
				return
			}
			s.log.Info("player disconnected, match forfeited",
				zap.Int64("match_id", id),
				zap.Int64("player_id", playerID),
				zap.Int64("winner_id", as.session.Winner()))
			forfeited = append(forfeited, id)
			s.settle(ctx, as)
		})
	}
	return forfeited
}

// HasPlayer reports whether the player is in an unfinished session.
func (s *Scheduler) HasPlayer(playerID int64) bool {
	for _, as := range s.sessions {
		if as.session.Status() != models.MatchFinished && hasPlayer(as.session, playerID) {
			return true
		}
	}
	return false
}

// Subscribe adds sub to a match's tick stream and sends it the current state.
func (s *Scheduler) Subscribe(matchID int64, sub Subscriber) error {
	as, ok := s.sessions[matchID]
	if !ok {
		return ErrNoSuchSession
	}
	as.subs[sub.ID()] = sub
	sub.Send(events.SessionTick, events.SessionTickData{MatchID: matchID, State: as.last})
	return nil
}

func (s *Scheduler) Unsubscribe(matchID int64, subID string) {
	if as, ok := s.sessions[matchID]; ok {
		delete(as.subs, subID)
	}
}

// UnsubscribeAll removes subID from every match, used when a connection
// closes.
func (s *Scheduler) UnsubscribeAll(subID string) {
	for _, as := range s.sessions {
		delete(as.subs, subID)
	}
}

// Active returns the ids of running sessions in order.
func (s *Scheduler) Active() []int64 {
	return s.ids()
}

// settle reconciles a session with the store and its subscribers after it
// changed. A finished session is dropped once its result is fully written;
// failed writes are retried on the next tick.
func (s *Scheduler) settle(ctx context.Context, as *activeSession) {
	id := as.session.MatchID()
	status := as.session.Status()

	if status == models.MatchFinished && !as.winnerSaved {
		s.saveWinner(ctx, as)
	}

	if status != as.persisted {
		if err := s.store.UpdateMatchStatus(ctx, id, status); err != nil {
			s.log.Error("failed to persist match status",
				zap.Int64("match_id", id),
				zap.String("status", status),
				zap.Error(err))
		} else {
			s.log.Debug("match status changed",
				zap.Int64("match_id", id),
				zap.String("from", as.persisted),
				zap.String("to", status))
			as.persisted = status
			as.match.Status = status
			s.notify.Broadcast(events.MatchUpdated, events.MatchData{MatchID: id, Match: as.match})
		}
	}

	state := as.session.State()
	if !reflect.DeepEqual(state, as.last) {
		as.last = state
		s.fanout(as, state)
	}

	if status == models.MatchFinished && as.persisted == models.MatchFinished && as.winnerSaved {
		s.release(ctx, as)
	}
}

// abandon finishes a match that has no session without a winner and frees
// its players. A failed status write leaves it for the next Sync.
func (s *Scheduler) abandon(ctx context.Context, m models.Match) {
	if err := s.store.UpdateMatchStatus(ctx, m.ID, models.MatchFinished); err != nil {
		s.log.Error("failed to abandon match", zap.Int64("match_id", m.ID), zap.Error(err))
		return
	}
	for _, mp := range m.Players {
		if err := s.store.SetPlayerStatus(ctx, mp.PlayerID, models.PlayerAvailable); err != nil {
			s.log.Error("failed to release player",
				zap.Int64("match_id", m.ID),
				zap.Int64("player_id", mp.PlayerID),
				zap.Error(err))
		}
	}
	m.Status = models.MatchFinished
	s.notify.Broadcast(events.MatchUpdated, events.MatchData{MatchID: m.ID, Match: m})
}

func (s *Scheduler) saveWinner(ctx context.Context, as *activeSession) {
	id := as.session.MatchID()
	winner := as.session.Winner()
	if winner == 0 {
		as.winnerSaved = true
		return
	}
	if err := s.store.SetMatchWinner(ctx, id, winner); err != nil {
		s.log.Error("failed to persist match winner",
			zap.Int64("match_id", id),
			zap.Int64("winner_id", winner),
			zap.Error(err))
		return
	}
	as.winnerSaved = true
	for i := range as.match.Players {
		as.match.Players[i].IsWinner = as.match.Players[i].PlayerID == winner
	}
}

func (s *Scheduler) release(ctx context.Context, as *activeSession) {
	id := as.session.MatchID()
	for _, pid := range as.session.Players() {
		if err := s.store.SetPlayerStatus(ctx, pid, models.PlayerAvailable); err != nil {
			s.log.Error("failed to release player",
				zap.Int64("match_id", id),
				zap.Int64("player_id", pid),
				zap.Error(err))
		}
	}
	delete(s.sessions, id)
	s.log.Info("session finished",
		zap.Int64("match_id", id),
		zap.Int64("winner_id", as.session.Winner()))
}

func (s *Scheduler) fanout(as *activeSession, state any) {
	data := events.SessionTickData{MatchID: as.session.MatchID(), State: state}
	for subID, sub := range as.subs {
		if !sub.Send(events.SessionTick, data) {
			delete(as.subs, subID)
		}
	}
}

// guard runs fn for one session and keeps a panic from escaping the tick.
func (s *Scheduler) guard(id int64, fn func(as *activeSession)) {
	as, ok := s.sessions[id]
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			err, _ := r.(error)
			if err == nil {
				err = errors.New(fmt.Sprint(r))
			}
			s.log.Error("session panicked, skipping",
				zap.Int64("match_id", id),
				zap.Error(err))
		}
	}()
	fn(as)
}

func (s *Scheduler) ids() []int64 {
	ids := make([]int64, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
