// Package events defines the websocket protocol shared by matchmaking, the
// session scheduler and the transport.
package events

import "github.com/playmatatu/arena/internal/models"

// Inbound (client -> server).
const (
	QueueJoin        = "queue:join"
	QueueLeave       = "queue:leave"
	ChallengeCreate  = "challenge:create"
	ChallengeRespond = "challenge:respond"
	SessionJoin      = "session:join"
	SessionLeave     = "session:leave"
	SessionInput     = "session:input"
)

// Outbound (server -> client).
const (
	QueueJoined        = "queue:joined"
	QueueLeft          = "queue:left"
	ChallengeReceived  = "challenge:received"
	ChallengeDuplicate = "challenge:duplicate"
	ChallengeDeleted   = "challenge:deleted"
	ChallengeAccepted  = "challenge:accepted"
	SessionTick        = "session:tick"
	MatchCreated       = "match:created"
	MatchUpdated       = "match:updated"
	Error              = "error"
)

// Notifier delivers outbound events. Implementations must not block.
type Notifier interface {
	SendToPlayer(playerID int64, event string, data any)
	Broadcast(event string, data any)
}

type ChallengeReceivedData struct {
	OpponentID int64 `json:"opponentId"`
	GameID     int64 `json:"gameId"`
	TimeoutMs  int64 `json:"timeoutMs"`
}

type ChallengeDuplicateData struct {
	ChallengerID int64 `json:"challenger"`
}

type ChallengeDeletedData struct {
	ChallengeID string `json:"challengeId"`
}

type ChallengeAcceptedData struct {
	MatchID int64 `json:"matchId"`
}

type SessionTickData struct {
	MatchID int64 `json:"matchId"`
	State   any   `json:"state"`
}

type MatchData struct {
	MatchID int64        `json:"matchId"`
	Match   models.Match `json:"match"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
