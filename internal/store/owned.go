package store

import (
	"context"

	"github.com/playmatatu/arena/internal/models"
)

// Owned scopes a Store to one server instance. Matches created through it
// carry the instance id, and only those are listed as unfinished, so every
// match is simulated by exactly one instance.
type Owned struct {
	Store
	owner string
}

func NewOwned(st Store, owner string) *Owned {
	return &Owned{Store: st, owner: owner}
}

func (o *Owned) Owner() string { return o.owner }

func (o *Owned) CreateMatch(ctx context.Context, spec models.MatchSpec, p1, p2 models.Seat) (*models.Match, error) {
	spec.Owner = o.owner
	return o.Store.CreateMatch(ctx, spec, p1, p2)
}

// ListNonFinishedMatches returns the unfinished matches this instance owns.
func (o *Owned) ListNonFinishedMatches(ctx context.Context) ([]models.Match, error) {
	all, err := o.Store.ListNonFinishedMatches(ctx)
	if err != nil {
		return nil, err
	}
	mine := all[:0]
	for _, m := range all {
		if m.Owner == o.owner {
			mine = append(mine, m)
		}
	}
	return mine, nil
}
