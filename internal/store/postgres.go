package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/playmatatu/arena/internal/models"
)

// Postgres is the SQL-backed store. Player status lives in the players table
// unless a dedicated status store is composed on top.
type Postgres struct {
	db            *sqlx.DB
	defaultRating int
}

func NewPostgres(db *sqlx.DB, defaultRating int) *Postgres {
	return &Postgres{db: db, defaultRating: defaultRating}
}

// FindPlayer loads a player and derives their rating from finished ranked
// matches: the winner's rank shift is added to the winner and taken from the
// loser. Players without ranked matches get the default rating.
func (s *Postgres) FindPlayer(ctx context.Context, id int64) (*models.Player, error) {
	var row struct {
		models.Player
		Ranked int           `db:"ranked"`
		Delta  sql.NullInt64 `db:"delta"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT p.id, p.nickname, p.created_at,
		       COUNT(w.id) AS ranked,
		       SUM(CASE WHEN w.player_id = p.id THEN w.rank_shift ELSE -w.rank_shift END) AS delta
		FROM players p
		LEFT JOIN match_players me ON me.player_id = p.id
		LEFT JOIN matches m ON m.id = me.match_id AND m.status = 'finished'
		LEFT JOIN match_players w ON w.match_id = m.id AND w.is_winner AND w.rank_shift <> 0
		WHERE p.id = $1
		GROUP BY p.id, p.nickname, p.created_at
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find player %d: %w", id, err)
	}

	player := row.Player
	player.Rating = s.defaultRating
	if row.Ranked > 0 && row.Delta.Valid {
		player.Rating += int(row.Delta.Int64)
	}
	return &player, nil
}

// UpsertPlayer creates the player if the nickname is new and returns it
// with its current rating.
func (s *Postgres) UpsertPlayer(ctx context.Context, nickname string) (*models.Player, error) {
	var id int64
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO players (nickname) VALUES ($1)
		ON CONFLICT (nickname) DO UPDATE SET nickname = EXCLUDED.nickname
		RETURNING id
	`, nickname).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("upsert player %q: %w", nickname, err)
	}
	return s.FindPlayer(ctx, id)
}

func (s *Postgres) GetPlayerStatus(ctx context.Context, id int64) (string, error) {
	var status string
	err := s.db.GetContext(ctx, &status, `SELECT status FROM players WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get status of player %d: %w", id, err)
	}
	return status, nil
}

func (s *Postgres) SetPlayerStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE players SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("set status of player %d: %w", id, err)
	}
	return expectRows(res)
}

func (s *Postgres) FindGame(ctx context.Context, id int64) (*models.Game, error) {
	var g models.Game
	err := s.db.GetContext(ctx, &g, `SELECT id, name, title, enabled FROM games WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find game %d: %w", id, err)
	}
	return &g, nil
}

func (s *Postgres) FindGameByName(ctx context.Context, name string) (*models.Game, error) {
	var g models.Game
	err := s.db.GetContext(ctx, &g, `SELECT id, name, title, enabled FROM games WHERE name = $1`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find game %q: %w", name, err)
	}
	return &g, nil
}

func (s *Postgres) ListGames(ctx context.Context) ([]models.Game, error) {
	var games []models.Game
	if err := s.db.SelectContext(ctx, &games, `SELECT id, name, title, enabled FROM games ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return games, nil
}

// CreateMatch inserts the match and both seats in one transaction.
func (s *Postgres) CreateMatch(ctx context.Context, spec models.MatchSpec, p1, p2 models.Seat) (*models.Match, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create match: %w", err)
	}
	defer tx.Rollback()

	status := spec.Status
	if status == "" {
		status = models.MatchWaiting
	}

	m := models.Match{GameID: spec.Game.ID, GameName: spec.Game.Name, Status: status, Owner: spec.Owner}
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO matches (game_id, status, owner, created_at) VALUES ($1, $2, $3, NOW()) RETURNING id, created_at`,
		spec.Game.ID, status, spec.Owner,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert match: %w", err)
	}

	for i, seat := range []models.Seat{p1, p2} {
		mp := models.MatchPlayer{MatchID: m.ID, PlayerID: seat.Player.ID, RankShift: seat.RankShift}
		err = tx.QueryRowxContext(ctx,
			`INSERT INTO match_players (match_id, player_id, rank_shift, is_winner) VALUES ($1, $2, $3, false) RETURNING id`,
			mp.MatchID, mp.PlayerID, mp.RankShift,
		).Scan(&mp.ID)
		if err != nil {
			return nil, fmt.Errorf("insert match player %d: %w", seat.Player.ID, err)
		}
		m.Players[i] = mp
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit match: %w", err)
	}
	return &m, nil
}

func (s *Postgres) UpdateMatchStatus(ctx context.Context, matchID int64, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE matches SET status = $1 WHERE id = $2`, status, matchID)
	if err != nil {
		return fmt.Errorf("update match %d status: %w", matchID, err)
	}
	return expectRows(res)
}

func (s *Postgres) SetMatchWinner(ctx context.Context, matchID, winnerID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE match_players SET is_winner = true WHERE match_id = $1 AND player_id = $2`,
		matchID, winnerID,
	)
	if err != nil {
		return fmt.Errorf("set winner of match %d: %w", matchID, err)
	}
	return expectRows(res)
}

// ListNonFinishedMatches returns active matches ordered by id, seats ordered
// by insertion so player one is always the first seat.
func (s *Postgres) ListNonFinishedMatches(ctx context.Context) ([]models.Match, error) {
	var matches []models.Match
	err := s.db.SelectContext(ctx, &matches, `
		SELECT m.id, m.game_id, g.name AS game_name, m.status, m.owner, m.created_at
		FROM matches m
		JOIN games g ON g.id = m.game_id
		WHERE m.status <> 'finished'
		ORDER BY m.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list active matches: %w", err)
	}
	if len(matches) == 0 {
		return matches, nil
	}

	ids := make([]int64, len(matches))
	index := make(map[int64]int, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
		index[m.ID] = i
	}

	var seats []models.MatchPlayer
	err = s.db.SelectContext(ctx, &seats, `
		SELECT id, match_id, player_id, rank_shift, is_winner
		FROM match_players
		WHERE match_id = ANY($1)
		ORDER BY match_id, id
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list active match players: %w", err)
	}

	filled := make(map[int64]int, len(matches))
	for _, seat := range seats {
		i := index[seat.MatchID]
		n := filled[seat.MatchID]
		if n >= 2 {
			continue
		}
		matches[i].Players[n] = seat
		filled[seat.MatchID] = n + 1
	}
	return matches, nil
}

func expectRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
