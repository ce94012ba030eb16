package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/playmatatu/arena/internal/clock"
	"github.com/playmatatu/arena/internal/events"
	"github.com/playmatatu/arena/internal/models"
	"github.com/playmatatu/arena/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSub struct {
	id     string
	closed bool
	got    []events.SessionTickData
}

func (f *fakeSub) ID() string { return f.id }

func (f *fakeSub) Send(event string, data any) bool {
	if f.closed {
		return false
	}
	if event == events.SessionTick {
		f.got = append(f.got, data.(events.SessionTickData))
	}
	return true
}

// countingStore counts winner writes and can fail the next few.
type countingStore struct {
	*store.Memory
	winnerCalls  int
	failWinner   int
	failStatuses int
}

func (c *countingStore) SetMatchWinner(ctx context.Context, matchID, winnerID int64) error {
	c.winnerCalls++
	if c.failWinner > 0 {
		c.failWinner--
		return errors.New("db down")
	}
	return c.Memory.SetMatchWinner(ctx, matchID, winnerID)
}

func (c *countingStore) UpdateMatchStatus(ctx context.Context, matchID int64, status string) error {
	if c.failStatuses > 0 {
		c.failStatuses--
		return errors.New("db down")
	}
	return c.Memory.UpdateMatchStatus(ctx, matchID, status)
}

type schedFixture struct {
	store  *countingStore
	notify *events.Recorder
	clock  *clock.Manual
	sched  *Scheduler
	match  *models.Match
}

func newSchedFixture(t *testing.T) *schedFixture {
	t.Helper()
	ctx := context.Background()

	clk := clock.NewManual(created)
	mem := store.NewMemory().WithClock(clk.Now)
	mem.AddGame(models.Game{ID: 1, Name: PongName})
	mem.AddPlayer(models.Player{ID: 1, Rating: 1500}, models.PlayerBusy)
	mem.AddPlayer(models.Player{ID: 2, Rating: 1500}, models.PlayerBusy)

	m, err := mem.CreateMatch(ctx,
		models.MatchSpec{Game: models.Game{ID: 1, Name: PongName}},
		models.Seat{Player: models.Player{ID: 1}, RankShift: 21},
		models.Seat{Player: models.Player{ID: 2}, RankShift: 21},
	)
	require.NoError(t, err)

	f := &schedFixture{
		store:  &countingStore{Memory: mem},
		notify: &events.Recorder{},
		clock:  clk,
		match:  m,
	}
	f.sched = NewScheduler(DefaultRegistry(), f.store, f.notify, clk, zap.NewNop())
	require.NoError(t, f.sched.Sync(ctx))
	return f
}

func (f *schedFixture) pong(t *testing.T) *Pong {
	t.Helper()
	as, ok := f.sched.sessions[f.match.ID]
	require.True(t, ok)
	return as.session.(*Pong)
}

func TestScheduler_SyncStartsSessions(t *testing.T) {
	f := newSchedFixture(t)
	assert.Equal(t, []int64{f.match.ID}, f.sched.Active())
	assert.True(t, f.sched.HasPlayer(1))
	assert.False(t, f.sched.HasPlayer(3))

	// A second sync does not replace the running session.
	before := f.pong(t)
	require.NoError(t, f.sched.Sync(context.Background()))
	assert.Same(t, before, f.pong(t))
}

func TestScheduler_SyncAbandonsUnknownVariant(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddPlayer(models.Player{ID: 1, Rating: 1500}, models.PlayerBusy)
	mem.AddPlayer(models.Player{ID: 2, Rating: 1500}, models.PlayerBusy)
	m, err := mem.CreateMatch(ctx,
		models.MatchSpec{Game: models.Game{ID: 2, Name: "boundless"}},
		models.Seat{Player: models.Player{ID: 1}},
		models.Seat{Player: models.Player{ID: 2}},
	)
	require.NoError(t, err)

	notify := &events.Recorder{}
	s := NewScheduler(DefaultRegistry(), mem, notify, clock.NewManual(created), zap.NewNop())
	require.NoError(t, s.Sync(ctx))
	assert.Empty(t, s.Active())

	stored, ok := mem.Match(m.ID)
	require.True(t, ok)
	assert.Equal(t, models.MatchFinished, stored.Status)
	assert.False(t, stored.Players[0].IsWinner)
	assert.False(t, stored.Players[1].IsWinner)

	for _, id := range []int64{1, 2} {
		status, err := mem.GetPlayerStatus(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.PlayerAvailable, status)
	}
	assert.Equal(t, 1, notify.Count(events.MatchUpdated))

	// Nothing is left to abandon on the next sync.
	require.NoError(t, s.Sync(ctx))
	assert.Equal(t, 1, notify.Count(events.MatchUpdated))
}

func TestScheduler_SyncOnlyOwnMatches(t *testing.T) {
	ctx := context.Background()
	shared := store.NewMemory()
	a := store.NewOwned(shared, "instance-a")
	b := store.NewOwned(shared, "instance-b")

	_, err := a.CreateMatch(ctx,
		models.MatchSpec{Game: models.Game{ID: 1, Name: PongName}},
		models.Seat{Player: models.Player{ID: 1}},
		models.Seat{Player: models.Player{ID: 2}},
	)
	require.NoError(t, err)

	clk := clock.NewManual(created)
	schedA := NewScheduler(DefaultRegistry(), a, &events.Recorder{}, clk, zap.NewNop())
	schedB := NewScheduler(DefaultRegistry(), b, &events.Recorder{}, clk, zap.NewNop())
	require.NoError(t, schedA.Sync(ctx))
	require.NoError(t, schedB.Sync(ctx))

	assert.Equal(t, []int64{1}, schedA.Active())
	assert.Empty(t, schedB.Active())
}

func TestScheduler_TickPersistsStatusAndBroadcasts(t *testing.T) {
	f := newSchedFixture(t)
	ctx := context.Background()
	sub := &fakeSub{id: "conn-1"}

	require.NoError(t, f.sched.Subscribe(f.match.ID, sub))
	require.Len(t, sub.got, 1, "subscribing sends the current state")

	f.clock.Advance(time.Second)
	f.sched.Tick(ctx)
	assert.Len(t, sub.got, 2)
	assert.Zero(t, f.notify.Count(events.MatchUpdated))

	f.clock.Advance(StartDelay)
	f.sched.Tick(ctx)

	m, ok := f.store.Match(f.match.ID)
	require.True(t, ok)
	assert.Equal(t, models.MatchRunning, m.Status)
	assert.Equal(t, 1, f.notify.Count(events.MatchUpdated))

	last := sub.got[len(sub.got)-1]
	assert.Equal(t, f.match.ID, last.MatchID)
	assert.Equal(t, models.MatchRunning, last.State.(PongState).Status)
}

func TestScheduler_NoTickWithoutChange(t *testing.T) {
	f := newSchedFixture(t)
	ctx := context.Background()
	sub := &fakeSub{id: "conn-1"}
	require.NoError(t, f.sched.Subscribe(f.match.ID, sub))

	f.clock.Advance(StartDelay)
	f.sched.Tick(ctx)
	require.NoError(t, f.sched.HandleInput(f.match.ID, 1, []InputFrame{{KeyEscape: true}}))
	f.sched.Tick(ctx)
	n := len(sub.got)

	f.sched.Tick(ctx)
	f.sched.Tick(ctx)
	assert.Len(t, sub.got, n, "paused session sends nothing new")

	m, _ := f.store.Match(f.match.ID)
	assert.Equal(t, models.MatchPaused, m.Status)
}

func TestScheduler_FinishWritesBackOnce(t *testing.T) {
	f := newSchedFixture(t)
	ctx := context.Background()
	sub := &fakeSub{id: "conn-1"}
	require.NoError(t, f.sched.Subscribe(f.match.ID, sub))

	f.clock.Advance(StartDelay)
	f.sched.Tick(ctx)

	p := f.pong(t)
	for i := 0; i < ScoreToWin; i++ {
		p.state.Players[0].Y = 400
		p.ball, p.velocity = NewVec2(12, 50), NewVec2(-4, 4)
		f.sched.Tick(ctx)
	}

	assert.Empty(t, f.sched.Active())
	assert.Equal(t, 1, f.store.winnerCalls)

	m, _ := f.store.Match(f.match.ID)
	assert.Equal(t, models.MatchFinished, m.Status)
	assert.False(t, m.Players[0].IsWinner)
	assert.True(t, m.Players[1].IsWinner)

	for _, id := range []int64{1, 2} {
		status, err := f.store.GetPlayerStatus(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.PlayerAvailable, status)
	}

	final := sub.got[len(sub.got)-1].State.(PongState)
	assert.Equal(t, models.MatchFinished, final.Status)
	assert.Equal(t, int64(2), final.WinnerID)

	f.sched.Tick(ctx)
	assert.Equal(t, 1, f.store.winnerCalls)
}

func TestScheduler_DisconnectForfeitsExactlyOnce(t *testing.T) {
	f := newSchedFixture(t)
	ctx := context.Background()

	f.clock.Advance(StartDelay)
	f.sched.Tick(ctx)

	assert.Equal(t, []int64{f.match.ID}, f.sched.HandleDisconnect(ctx, 1))
	assert.Empty(t, f.sched.HandleDisconnect(ctx, 1))
	f.sched.Tick(ctx)

	assert.Equal(t, 1, f.store.winnerCalls)
	assert.Empty(t, f.sched.Active())
	assert.False(t, f.sched.HasPlayer(2))

	m, _ := f.store.Match(f.match.ID)
	assert.Equal(t, models.MatchFinished, m.Status)
	assert.True(t, m.Players[1].IsWinner)

	var updates int
	for _, s := range f.notify.Events() {
		if s.Event != events.MatchUpdated {
			continue
		}
		updates++
		data := s.Data.(events.MatchData)
		if data.Match.Status == models.MatchFinished {
			assert.True(t, data.Match.Players[1].IsWinner)
		}
	}
	assert.Equal(t, 2, updates, "running, then finished")
}

func TestScheduler_FailedWritesRetryNextTick(t *testing.T) {
	f := newSchedFixture(t)
	ctx := context.Background()
	f.store.failWinner = 1
	f.store.failStatuses = 1

	f.sched.HandleDisconnect(ctx, 2)
	assert.Equal(t, []int64{f.match.ID}, f.sched.Active(), "kept until written")

	m, _ := f.store.Match(f.match.ID)
	assert.Equal(t, models.MatchWaiting, m.Status)

	f.sched.Tick(ctx)
	assert.Empty(t, f.sched.Active())
	assert.Equal(t, 2, f.store.winnerCalls)

	m, _ = f.store.Match(f.match.ID)
	assert.Equal(t, models.MatchFinished, m.Status)
	assert.True(t, m.Players[0].IsWinner)
}

func TestScheduler_HandleInputUnknownMatch(t *testing.T) {
	f := newSchedFixture(t)
	assert.ErrorIs(t, f.sched.HandleInput(999, 1, nil), ErrNoSuchSession)
	assert.ErrorIs(t, f.sched.HandleInput(f.match.ID, 99, nil), ErrNotParticipant)
	assert.ErrorIs(t, f.sched.Subscribe(999, &fakeSub{id: "x"}), ErrNoSuchSession)
}

func TestScheduler_DeadSubscriberIsDropped(t *testing.T) {
	f := newSchedFixture(t)
	ctx := context.Background()
	alive := &fakeSub{id: "a"}
	dead := &fakeSub{id: "b"}
	require.NoError(t, f.sched.Subscribe(f.match.ID, alive))
	require.NoError(t, f.sched.Subscribe(f.match.ID, dead))
	dead.closed = true

	f.clock.Advance(time.Second)
	f.sched.Tick(ctx)
	assert.NotContains(t, f.sched.sessions[f.match.ID].subs, "b")
	assert.Contains(t, f.sched.sessions[f.match.ID].subs, "a")

	f.sched.UnsubscribeAll("a")
	assert.Empty(t, f.sched.sessions[f.match.ID].subs)
}

// panicky blows up on every Advance.
type panicky struct{ *Pong }

func (p panicky) Advance(time.Time) { panic("corrupt state") }

func TestScheduler_PanicDoesNotStopOtherSessions(t *testing.T) {
	f := newSchedFixture(t)
	ctx := context.Background()

	bad := models.Match{ID: 0, CreatedAt: created}
	bad.Players[0].PlayerID, bad.Players[1].PlayerID = 5, 6
	f.sched.sessions[bad.ID] = &activeSession{
		session:   panicky{NewPong(bad)},
		match:     bad,
		persisted: models.MatchWaiting,
		subs:      map[string]Subscriber{},
	}

	f.clock.Advance(StartDelay)
	assert.NotPanics(t, func() { f.sched.Tick(ctx) })

	m, _ := f.store.Match(f.match.ID)
	assert.Equal(t, models.MatchRunning, m.Status)
}
