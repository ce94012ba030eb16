// Package store holds the persistence contract consumed by matchmaking and
// the session scheduler, with Postgres, Redis and in-memory implementations.
package store

import (
	"context"
	"errors"

	"github.com/playmatatu/arena/internal/models"
)

var (
	ErrNotFound = errors.New("store: not found")
)

// Players resolves player records.
type Players interface {
	FindPlayer(ctx context.Context, id int64) (*models.Player, error)
}

// Statuses tracks player availability (available, busy, offline).
type Statuses interface {
	GetPlayerStatus(ctx context.Context, id int64) (string, error)
	SetPlayerStatus(ctx context.Context, id int64, status string) error
}

// Matches persists games and matches.
type Matches interface {
	FindGame(ctx context.Context, id int64) (*models.Game, error)
	FindGameByName(ctx context.Context, name string) (*models.Game, error)
	ListGames(ctx context.Context) ([]models.Game, error)
	CreateMatch(ctx context.Context, spec models.MatchSpec, p1, p2 models.Seat) (*models.Match, error)
	UpdateMatchStatus(ctx context.Context, matchID int64, status string) error
	SetMatchWinner(ctx context.Context, matchID, winnerID int64) error
	ListNonFinishedMatches(ctx context.Context) ([]models.Match, error)
}

// Store is the full collaborator contract.
type Store interface {
	Players
	Statuses
	Matches
}

// Composite joins a record store with a separate status store, e.g. Postgres
// records and Redis presence.
type Composite struct {
	Players
	Matches
	Statuses
}
