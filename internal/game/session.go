// Package game runs authoritative game sessions and the fixed-rate scheduler
// that advances them.
package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/playmatatu/arena/internal/models"
)

var (
	ErrUnknownVariant = errors.New("unknown game variant")
	ErrNoSuchSession  = errors.New("no active session for match")
	ErrNotParticipant = errors.New("player is not part of this match")
)

// Session is one running match. Advance is the only call that moves the
// simulation; HandleInput only records what the player pressed.
type Session interface {
	MatchID() int64
	Players() [2]int64
	Status() string
	// Winner is 0 until the session is finished.
	Winner() int64
	Advance(now time.Time)
	HandleInput(playerID int64, frames []InputFrame) error
	// State returns a copy safe to hand to other goroutines.
	State() any
	// Forfeit ends the session with the other player as winner. It reports
	// false if the session was already finished or the player is not in it.
	Forfeit(playerID int64) bool
}

// Factory builds a session for a freshly loaded match.
type Factory func(match models.Match) Session

// Registry maps game names to session factories.
type Registry map[string]Factory

// DefaultRegistry knows every variant this server can run.
func DefaultRegistry() Registry {
	return Registry{
		PongName: func(m models.Match) Session { return NewPong(m) },
	}
}

func (r Registry) Resolve(name string) (Factory, error) {
	f, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
	return f, nil
}

func hasPlayer(s Session, playerID int64) bool {
	p := s.Players()
	return p[0] == playerID || p[1] == playerID
}
