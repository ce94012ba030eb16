package models

import (
	"time"
)

// Player availability values kept by the status store.
const (
	PlayerAvailable = "available"
	PlayerBusy      = "busy"
	PlayerOffline   = "offline"
)

// Match status values. They mirror the session lifecycle.
const (
	MatchWaiting  = "waiting"
	MatchRunning  = "running"
	MatchPaused   = "paused"
	MatchFinished = "finished"
)

// Player represents a user as seen by matchmaking
type Player struct {
	ID        int64     `db:"id" json:"id"`
	Nickname  string    `db:"nickname" json:"nickname"`
	Rating    int       `db:"rating" json:"rating"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Game is a playable game type (pong, ...)
type Game struct {
	ID      int64  `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	Title   string `db:"title" json:"title"`
	Enabled bool   `db:"enabled" json:"enabled"`
}

// MatchPlayer is one side of a match
type MatchPlayer struct {
	ID        int64 `db:"id" json:"id"`
	MatchID   int64 `db:"match_id" json:"match_id"`
	PlayerID  int64 `db:"player_id" json:"player_id"`
	RankShift int   `db:"rank_shift" json:"rank_shift"`
	IsWinner  bool  `db:"is_winner" json:"is_winner"`
}

// Match is a persisted game between exactly two players. Owner is the
// instance that runs its session.
type Match struct {
	ID        int64          `db:"id" json:"id"`
	GameID    int64          `db:"game_id" json:"game_id"`
	GameName  string         `db:"game_name" json:"game_name"`
	Status    string         `db:"status" json:"status"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	Owner     string         `db:"owner" json:"owner"`
	Players   [2]MatchPlayer `db:"-" json:"players"`
}

// MatchSpec describes the match to create.
type MatchSpec struct {
	Game   Game
	Status string
	Owner  string
}

// Seat is a player entering a match with the rank shift they earn on a win.
type Seat struct {
	Player    Player
	RankShift int
}

// HasPlayer reports whether id plays in the match.
func (m *Match) HasPlayer(id int64) bool {
	return m.Players[0].PlayerID == id || m.Players[1].PlayerID == id
}

// Ranked reports whether the match moves ratings.
func (m *Match) Ranked() bool {
	return m.Players[0].RankShift != 0 || m.Players[1].RankShift != 0
}
