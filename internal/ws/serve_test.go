package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/playmatatu/arena/internal/arena"
	"github.com/playmatatu/arena/internal/auth"
	"github.com/playmatatu/arena/internal/clock"
	"github.com/playmatatu/arena/internal/events"
	"github.com/playmatatu/arena/internal/game"
	"github.com/playmatatu/arena/internal/matchmaking"
	"github.com/playmatatu/arena/internal/models"
	"github.com/playmatatu/arena/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{matchmaking.ErrAlreadyQueued, "already_queued"},
		{fmt.Errorf("join queue: %w", store.ErrNotFound), "not_found"},
		{matchmaking.ErrDuplicateChallenge, "duplicate_challenge"},
		{game.ErrNotParticipant, "not_participant"},
		{fmt.Errorf("challenge: %w: boundless", matchmaking.ErrGameUnavailable), "game_unavailable"},
		{matchmaking.ErrOpponentElsewhere, "opponent_elsewhere"},
		{errBadPayload, "bad_request"},
		{context.DeadlineExceeded, "timeout"},
		{fmt.Errorf("boom"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.err))
		})
	}
}

// stubEngine records calls and returns err for every one of them.
type stubEngine struct {
	Engine
	calls []string
	err   error
}

func (s *stubEngine) JoinQueue(context.Context, int64) error {
	s.calls = append(s.calls, "join")
	return s.err
}

func (s *stubEngine) Challenge(_ context.Context, challengerID, opponentID, gameID int64) error {
	s.calls = append(s.calls, fmt.Sprintf("challenge %d->%d game %d", challengerID, opponentID, gameID))
	return s.err
}

func (s *stubEngine) Input(_ context.Context, matchID, playerID int64, frames []game.InputFrame) error {
	s.calls = append(s.calls, fmt.Sprintf("input %d %d %v", matchID, playerID, frames[0][game.KeyW]))
	return s.err
}

func TestDispatch(t *testing.T) {
	eng := &stubEngine{}
	s := &Server{engine: eng, log: zap.NewNop()}
	c := testClient("a", 5)

	s.dispatch(c, Message{Type: events.QueueJoin})
	s.dispatch(c, Message{Type: events.ChallengeCreate, Data: json.RawMessage(`{"gameId":1,"opponentId":9}`)})
	s.dispatch(c, Message{Type: events.SessionInput, Data: json.RawMessage(`{"matchId":3,"frames":[{"87":true}]}`)})
	assert.Equal(t, []string{"join", "challenge 5->9 game 1", "input 3 5 true"}, eng.calls)
	assert.Empty(t, drain(t, c))

	eng.err = matchmaking.ErrDuplicateChallenge
	s.dispatch(c, Message{Type: events.ChallengeCreate, Data: json.RawMessage(`{"gameId":1,"opponentId":9}`)})
	s.dispatch(c, Message{Type: events.ChallengeCreate})
	s.dispatch(c, Message{Type: "nope"})

	got := drain(t, c)
	require.Len(t, got, 3)
	codes := make([]string, len(got))
	for i, m := range got {
		assert.Equal(t, events.Error, m.Type)
		var data events.ErrorData
		require.NoError(t, json.Unmarshal(m.Data.(json.RawMessage), &data))
		codes[i] = data.Code
	}
	assert.Equal(t, []string{"duplicate_challenge", "bad_request", "unknown_type"}, codes)
}

type wsHarness struct {
	url      string
	verifier *auth.Verifier
	store    *store.Memory
	engine   *arena.Engine
}

func newWSHarness(t *testing.T) *wsHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)

	mem := store.NewMemory()
	mem.AddGame(models.Game{ID: 1, Name: game.PongName, Enabled: true})
	mem.AddPlayer(models.Player{ID: 1, Rating: 1500}, models.PlayerOffline)
	mem.AddPlayer(models.Player{ID: 2, Rating: 1500}, models.PlayerOffline)

	hub := NewHub(log)
	eng := arena.New(arena.Config{
		MatchmakerInterval:     time.Hour,
		ChallengeSweepInterval: time.Hour,
		SessionTickInterval:    time.Hour,
		ChallengeTimeout:       5 * time.Second,
		StoreTimeout:           time.Second,
	}, mem, hub, clock.Real(), game.DefaultRegistry(), log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = eng.Run(ctx)
	}()

	verifier := auth.NewVerifier("secret")
	srv := NewServer(hub, eng, verifier, func(string) bool { return true }, log)
	r := gin.New()
	r.GET("/ws", srv.HandleWebSocket)
	ts := httptest.NewServer(r)

	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
	})

	return &wsHarness{
		url:      "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
		verifier: verifier,
		store:    mem,
		engine:   eng,
	}
}

func (h *wsHarness) dial(t *testing.T, playerID int64) *websocket.Conn {
	t.Helper()
	token, err := h.verifier.Sign(playerID, time.Hour)
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(h.url+"?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Message{Type: typ, Data: raw}))
}

// expect reads until a message of type typ arrives.
func expect(t *testing.T, conn *websocket.Conn, typ string) json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var m struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&m), "waiting for %s", typ)
		if m.Type == typ {
			return m.Data
		}
	}
}

func TestServer_ChallengeFlow(t *testing.T) {
	h := newWSHarness(t)
	alice := h.dial(t, 1)
	bob := h.dial(t, 2)

	require.Eventually(t, func() bool {
		s1, _ := h.store.GetPlayerStatus(context.Background(), 1)
		s2, _ := h.store.GetPlayerStatus(context.Background(), 2)
		return s1 == models.PlayerAvailable && s2 == models.PlayerAvailable
	}, 5*time.Second, 10*time.Millisecond)

	send(t, alice, events.ChallengeCreate, map[string]int64{"gameId": 1, "opponentId": 2})
	var received events.ChallengeReceivedData
	require.NoError(t, json.Unmarshal(expect(t, bob, events.ChallengeReceived), &received))
	assert.Equal(t, events.ChallengeReceivedData{OpponentID: 1, GameID: 1, TimeoutMs: 5000}, received)

	send(t, bob, events.ChallengeCreate, map[string]int64{"gameId": 1, "opponentId": 1})
	expect(t, bob, events.ChallengeDuplicate)
	var errData events.ErrorData
	require.NoError(t, json.Unmarshal(expect(t, bob, events.Error), &errData))
	assert.Equal(t, "duplicate_challenge", errData.Code)

	send(t, bob, events.ChallengeRespond, map[string]any{"gameId": 1, "opponentId": 1, "accept": true})
	var accepted events.ChallengeAcceptedData
	require.NoError(t, json.Unmarshal(expect(t, alice, events.ChallengeAccepted), &accepted))
	assert.NotZero(t, accepted.MatchID)

	send(t, alice, events.SessionJoin, map[string]int64{"matchId": accepted.MatchID})
	var tick events.SessionTickData
	require.NoError(t, json.Unmarshal(expect(t, alice, events.SessionTick), &tick))
	assert.Equal(t, accepted.MatchID, tick.MatchID)

	// Bob leaving forfeits the match to alice.
	bob.Close()
	require.Eventually(t, func() bool {
		m, ok := h.store.Match(accepted.MatchID)
		return ok && m.Status == models.MatchFinished && m.Players[0].IsWinner
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServer_RejectsBadToken(t *testing.T) {
	h := newWSHarness(t)
	_, resp, err := websocket.DefaultDialer.Dial(h.url+"?token=nope", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}
