package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/playmatatu/arena/internal/models"
)

// Memory is an in-process Store used by tests and local runs without
// Postgres. Ratings are taken as stored, not derived from history.
type Memory struct {
	mu       sync.Mutex
	players  map[int64]models.Player
	statuses map[int64]string
	games    map[int64]models.Game
	matches  map[int64]*models.Match
	nextID   int64
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		players:  make(map[int64]models.Player),
		statuses: make(map[int64]string),
		games:    make(map[int64]models.Game),
		matches:  make(map[int64]*models.Match),
		now:      time.Now,
	}
}

// WithClock makes created matches use now for CreatedAt.
func (s *Memory) WithClock(now func() time.Time) *Memory {
	s.now = now
	return s
}

func (s *Memory) AddPlayer(p models.Player, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[p.ID] = p
	s.statuses[p.ID] = status
}

func (s *Memory) AddGame(g models.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[g.ID] = g
}

func (s *Memory) FindPlayer(_ context.Context, id int64) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *Memory) GetPlayerStatus(_ context.Context, id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.statuses[id]
	if !ok {
		return models.PlayerOffline, nil
	}
	return status, nil
}

func (s *Memory) SetPlayerStatus(_ context.Context, id int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = status
	return nil
}

func (s *Memory) FindGame(_ context.Context, id int64) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &g, nil
}

func (s *Memory) FindGameByName(_ context.Context, name string) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.games {
		if g.Name == name {
			g := g
			return &g, nil
		}
	}
	return nil, ErrNotFound
}

func (s *Memory) ListGames(_ context.Context) ([]models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	games := make([]models.Game, 0, len(s.games))
	for _, g := range s.games {
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	return games, nil
}

func (s *Memory) CreateMatch(_ context.Context, spec models.MatchSpec, p1, p2 models.Seat) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	status := spec.Status
	if status == "" {
		status = models.MatchWaiting
	}
	m := &models.Match{
		ID:        s.nextID,
		GameID:    spec.Game.ID,
		GameName:  spec.Game.Name,
		Status:    status,
		CreatedAt: s.now(),
		Owner:     spec.Owner,
	}
	m.Players[0] = models.MatchPlayer{ID: 2*m.ID - 1, MatchID: m.ID, PlayerID: p1.Player.ID, RankShift: p1.RankShift}
	m.Players[1] = models.MatchPlayer{ID: 2 * m.ID, MatchID: m.ID, PlayerID: p2.Player.ID, RankShift: p2.RankShift}
	s.matches[m.ID] = m

	out := *m
	return &out, nil
}

func (s *Memory) UpdateMatchStatus(_ context.Context, matchID int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return ErrNotFound
	}
	m.Status = status
	return nil
}

func (s *Memory) SetMatchWinner(_ context.Context, matchID, winnerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return ErrNotFound
	}
	for i := range m.Players {
		if m.Players[i].PlayerID == winnerID {
			m.Players[i].IsWinner = true
			return nil
		}
	}
	return ErrNotFound
}

func (s *Memory) ListNonFinishedMatches(_ context.Context) ([]models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Match
	for _, m := range s.matches {
		if m.Status != models.MatchFinished {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Match returns a copy of a stored match.
func (s *Memory) Match(id int64) (models.Match, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return models.Match{}, false
	}
	return *m, true
}
