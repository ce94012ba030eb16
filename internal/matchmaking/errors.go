package matchmaking

import "errors"

// Errors signaled back to the requesting player.
var (
	ErrAlreadyQueued      = errors.New("player already in queue")
	ErrNotEligible        = errors.New("player not available for matchmaking")
	ErrSelfChallenge      = errors.New("player cannot challenge themselves")
	ErrDuplicateChallenge = errors.New("challenge already pending between players")
	ErrStaleChallenge     = errors.New("no pending challenge to respond to")
	ErrGameUnavailable    = errors.New("game is not available on this server")
	// ErrOpponentElsewhere means the opponent is connected to another
	// instance; challenges live in the memory of one instance.
	ErrOpponentElsewhere = errors.New("opponent is not connected to this server")
)
