package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 65536
	sendBuffer     = 256
)

// Message is the inbound envelope.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// OutMessage is the outbound envelope.
type OutMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func encode(event string, data any) ([]byte, error) {
	return json.Marshal(OutMessage{Type: event, Data: data})
}

// Relay carries events to other server instances.
type Relay interface {
	Publish(env Envelope)
}

// Client represents a connected WebSocket client
type Client struct {
	id       string
	playerID int64
	conn     *websocket.Conn
	send     chan []byte
	log      *zap.Logger

	mu     sync.Mutex
	closed bool
}

func newClient(id string, playerID int64, conn *websocket.Conn, log *zap.Logger) *Client {
	return &Client{
		id:       id,
		playerID: playerID,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		log:      log.With(zap.String("conn_id", id), zap.Int64("player_id", playerID)),
	}
}

// ID identifies the connection; it is the subscriber id for session ticks.
func (c *Client) ID() string { return c.id }

func (c *Client) PlayerID() int64 { return c.playerID }

// Send queues an event. It reports false once the connection is closed.
func (c *Client) Send(event string, data any) bool {
	msg, err := encode(event, data)
	if err != nil {
		c.log.Error("error marshaling message", zap.String("event", event), zap.Error(err))
		return true
	}
	return c.enqueue(msg)
}

func (c *Client) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
	default:
		c.log.Warn("client send buffer full, dropping message")
	}
	return true
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub maintains the set of active clients, one per player.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]*Client
	relay   Relay
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[int64]*Client),
		log:     log.Named("ws"),
	}
}

// SetRelay enables cross-instance delivery. Call before serving.
func (h *Hub) SetRelay(r Relay) {
	h.relay = r
}

// Register makes c the player's connection and returns the one it replaced.
func (h *Hub) Register(c *Client) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	old := h.clients[c.playerID]
	h.clients[c.playerID] = c
	if old != nil {
		h.log.Info("player reconnecting, closing old connection",
			zap.Int64("player_id", c.playerID),
			zap.String("old_conn_id", old.id))
		old.close()
	}
	h.log.Debug("player connected", zap.Int64("player_id", c.playerID), zap.String("conn_id", c.id))
	return old
}

// Unregister drops c and reports whether it was still the player's current
// connection.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.close()
	if cur, ok := h.clients[c.playerID]; ok && cur == c {
		delete(h.clients, c.playerID)
		h.log.Debug("player disconnected", zap.Int64("player_id", c.playerID), zap.String("conn_id", c.id))
		return true
	}
	return false
}

func (h *Hub) Connected(playerID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[playerID]
	return ok
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SendToPlayer sends an event to a specific player. Players connected to
// another instance are reached through the relay.
func (h *Hub) SendToPlayer(playerID int64, event string, data any) {
	msg, err := encode(event, data)
	if err != nil {
		h.log.Error("error marshaling message", zap.String("event", event), zap.Error(err))
		return
	}
	if h.sendLocal(playerID, msg) {
		return
	}
	if h.relay != nil {
		h.relay.Publish(Envelope{PlayerID: playerID, Message: json.RawMessage(msg)})
		return
	}
	h.log.Debug("no client for player", zap.Int64("player_id", playerID), zap.String("event", event))
}

// Broadcast sends an event to every connected client, here and on other
// instances.
func (h *Hub) Broadcast(event string, data any) {
	msg, err := encode(event, data)
	if err != nil {
		h.log.Error("error marshaling message", zap.String("event", event), zap.Error(err))
		return
	}
	h.broadcastLocal(msg)
	if h.relay != nil {
		h.relay.Publish(Envelope{Message: json.RawMessage(msg)})
	}
}

// deliver hands a relayed envelope to local clients only.
func (h *Hub) deliver(env Envelope) {
	if env.PlayerID == 0 {
		h.broadcastLocal(env.Message)
		return
	}
	h.sendLocal(env.PlayerID, env.Message)
}

func (h *Hub) sendLocal(playerID int64, msg []byte) bool {
	h.mu.RLock()
	c, ok := h.clients[playerID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.enqueue(msg)
}

func (h *Hub) broadcastLocal(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.enqueue(msg)
	}
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Replaced or cleaned up; the close frame is best effort.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug("websocket write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("websocket ping error", zap.Error(err))
				return
			}
		}
	}
}
