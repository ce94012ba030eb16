package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/playmatatu/arena/internal/arena"
	"github.com/playmatatu/arena/internal/auth"
	"github.com/playmatatu/arena/internal/events"
	"github.com/playmatatu/arena/internal/game"
	"github.com/playmatatu/arena/internal/matchmaking"
	"github.com/playmatatu/arena/internal/models"
	"github.com/playmatatu/arena/internal/store"
	"go.uber.org/zap"
)

// commandTimeout bounds how long a message waits on the engine.
const commandTimeout = 5 * time.Second

// Engine is the part of arena.Engine the websocket layer drives.
type Engine interface {
	JoinQueue(ctx context.Context, playerID int64) error
	LeaveQueue(ctx context.Context, playerID int64) (bool, error)
	Challenge(ctx context.Context, challengerID, opponentID, gameID int64) error
	RespondChallenge(ctx context.Context, playerID, challengerID, gameID int64, accept bool) (*models.Match, error)
	JoinSession(ctx context.Context, matchID int64, sub game.Subscriber) error
	LeaveSession(ctx context.Context, matchID int64, subID string) error
	Input(ctx context.Context, matchID, playerID int64, frames []game.InputFrame) error
	Connect(ctx context.Context, playerID int64) error
	Disconnect(ctx context.Context, playerID int64, subID string) error
	DropSubscriber(ctx context.Context, subID string) error
}

type challengeData struct {
	GameID     int64 `json:"gameId"`
	OpponentID int64 `json:"opponentId"`
}

type respondData struct {
	GameID     int64 `json:"gameId"`
	OpponentID int64 `json:"opponentId"`
	Accept     bool  `json:"accept"`
}

type sessionData struct {
	MatchID int64 `json:"matchId"`
}

type inputData struct {
	MatchID int64             `json:"matchId"`
	Frames  []game.InputFrame `json:"frames"`
}

// Server upgrades authenticated requests and routes their messages to the
// engine.
type Server struct {
	hub      *Hub
	engine   Engine
	verifier *auth.Verifier
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewServer(hub *Hub, engine Engine, verifier *auth.Verifier, checkOrigin func(origin string) bool, log *zap.Logger) *Server {
	return &Server{
		hub:      hub,
		engine:   engine,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return checkOrigin(r.Header.Get("Origin"))
			},
		},
		log: log.Named("ws"),
	}
}

// HandleWebSocket authenticates the player and starts the connection pumps.
func (s *Server) HandleWebSocket(c *gin.Context) {
	playerID, err := s.verifier.PlayerID(auth.FromRequest(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("upgrade error", zap.Int64("player_id", playerID), zap.Error(err))
		return
	}

	client := newClient(uuid.NewString(), playerID, conn, s.log)
	s.hub.Register(client)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	if err := s.engine.Connect(ctx, playerID); err != nil {
		s.log.Error("connect failed", zap.Int64("player_id", playerID), zap.Error(err))
	}
	cancel()

	go client.writePump()
	go s.readPump(client)
}

func (s *Server) readPump(c *Client) {
	defer func() {
		s.closed(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Info("websocket closed unexpectedly", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			sendError(c, "bad_request", "invalid message")
			continue
		}
		s.dispatch(c, msg)
	}
}

// closed cleans up after a connection ends. A connection that was already
// replaced only loses its subscriptions; the player stays online.
func (s *Server) closed(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if !s.hub.Unregister(c) {
		if err := s.engine.DropSubscriber(ctx, c.id); err != nil {
			c.log.Warn("drop subscriber failed", zap.Error(err))
		}
		return
	}
	if err := s.engine.Disconnect(ctx, c.playerID, c.id); err != nil {
		c.log.Error("disconnect failed", zap.Error(err))
	}
}

func (s *Server) dispatch(c *Client, msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var err error
	switch msg.Type {
	case events.QueueJoin:
		err = s.engine.JoinQueue(ctx, c.playerID)

	case events.QueueLeave:
		_, err = s.engine.LeaveQueue(ctx, c.playerID)

	case events.ChallengeCreate:
		var data challengeData
		if err = decode(msg.Data, &data); err == nil {
			err = s.engine.Challenge(ctx, c.playerID, data.OpponentID, data.GameID)
		}

	case events.ChallengeRespond:
		var data respondData
		if err = decode(msg.Data, &data); err == nil {
			_, err = s.engine.RespondChallenge(ctx, c.playerID, data.OpponentID, data.GameID, data.Accept)
		}

	case events.SessionJoin:
		var data sessionData
		if err = decode(msg.Data, &data); err == nil {
			err = s.engine.JoinSession(ctx, data.MatchID, c)
		}

	case events.SessionLeave:
		var data sessionData
		if err = decode(msg.Data, &data); err == nil {
			err = s.engine.LeaveSession(ctx, data.MatchID, c.id)
		}

	case events.SessionInput:
		var data inputData
		if err = decode(msg.Data, &data); err == nil {
			err = s.engine.Input(ctx, data.MatchID, c.playerID, data.Frames)
		}

	default:
		sendError(c, "unknown_type", "unknown message type")
		return
	}

	if err != nil {
		code := errorCode(err)
		if code == "internal" {
			c.log.Error("message failed", zap.String("type", msg.Type), zap.Error(err))
			sendError(c, code, "internal error")
			return
		}
		sendError(c, code, err.Error())
	}
}

var errBadPayload = errors.New("invalid message data")

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errBadPayload
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errBadPayload
	}
	return nil
}

var errorCodes = []struct {
	err  error
	code string
}{
	{errBadPayload, "bad_request"},
	{matchmaking.ErrAlreadyQueued, "already_queued"},
	{matchmaking.ErrNotEligible, "not_eligible"},
	{matchmaking.ErrSelfChallenge, "self_challenge"},
	{matchmaking.ErrDuplicateChallenge, "duplicate_challenge"},
	{matchmaking.ErrStaleChallenge, "stale_challenge"},
	{matchmaking.ErrGameUnavailable, "game_unavailable"},
	{matchmaking.ErrOpponentElsewhere, "opponent_elsewhere"},
	{game.ErrNoSuchSession, "no_such_session"},
	{game.ErrNotParticipant, "not_participant"},
	{store.ErrNotFound, "not_found"},
	{arena.ErrStopped, "unavailable"},
	{context.DeadlineExceeded, "timeout"},
}

// errorCode maps user errors to protocol codes; anything else is internal.
func errorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal"
}

func sendError(c *Client, code, message string) {
	c.Send(events.Error, events.ErrorData{Code: code, Message: message})
}
