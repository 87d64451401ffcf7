package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tabletrouble/spyx-backend/internal"
)

// ErrCodeTaken reports a game insert that hit the unique constraint on
// game_code. The caller regenerates the code and retries.
var ErrCodeTaken = errors.New("game code already taken")

const uniqueViolation = "23505"

// SessionRecord is what a session id resolves to.
type SessionRecord struct {
	GameCode         string
	PlayerName       string
	CreatorSessionID string
}

// GameRecord is the durable creation record of a room.
type GameRecord struct {
	ID               int64
	Code             string
	CreatorSessionID string
}

type Store struct {
	db *DB
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// InsertGame creates the durable game record and returns its id.
// Returns ErrCodeTaken when the code collides with a live game.
func (s *Store) InsertGame(ctx context.Context, code string) (int64, error) {
	var id int64
	err := s.db.Pool.QueryRow(ctx,
		`INSERT INTO spyx_games (game_code) VALUES ($1) RETURNING id`,
		code,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, ErrCodeTaken
		}
		return 0, fmt.Errorf("%w: insert game: %v", internal.ErrOperationFailed, err)
	}
	return id, nil
}

// InsertPlayer adds a player row to a game and returns its id.
func (s *Store) InsertPlayer(ctx context.Context, gameID int64, name, sessionID string) (int64, error) {
	var id int64
	err := s.db.Pool.QueryRow(ctx,
		`INSERT INTO spyx_players (name, game_id, session_id) VALUES ($1, $2, $3) RETURNING id`,
		name, gameID, sessionID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: insert player: %v", internal.ErrOperationFailed, err)
	}
	return id, nil
}

// SetCreator marks the player row as the game's creator.
func (s *Store) SetCreator(ctx context.Context, gameID, playerID int64) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE spyx_games SET creator_id = $1 WHERE id = $2`,
		playerID, gameID,
	)
	if err != nil {
		return fmt.Errorf("%w: set creator: %v", internal.ErrOperationFailed, err)
	}
	return nil
}

// DeletePlayer removes a player row by session id within a game.
func (s *Store) DeletePlayer(ctx context.Context, gameID int64, sessionID string) error {
	_, err := s.db.Pool.Exec(ctx,
		`DELETE FROM spyx_players WHERE session_id = $1 AND game_id = $2`,
		sessionID, gameID,
	)
	if err != nil {
		return fmt.Errorf("%w: delete player: %v", internal.ErrOperationFailed, err)
	}
	return nil
}

// DeleteGame removes the game record; player rows cascade.
func (s *Store) DeleteGame(ctx context.Context, gameID int64) error {
	_, err := s.db.Pool.Exec(ctx,
		`DELETE FROM spyx_games WHERE id = $1`, gameID,
	)
	if err != nil {
		return fmt.Errorf("%w: delete game: %v", internal.ErrOperationFailed, err)
	}
	return nil
}

// LookupGameByCode returns the durable record for a room code.
func (s *Store) LookupGameByCode(ctx context.Context, code string) (*GameRecord, error) {
	var rec GameRecord
	err := s.db.Pool.QueryRow(ctx,
		`SELECT g.id, g.game_code, COALESCE(p.session_id, '')
		 FROM spyx_games g
		 LEFT JOIN spyx_players p ON p.id = g.creator_id
		 WHERE g.game_code = $1`,
		code,
	).Scan(&rec.ID, &rec.Code, &rec.CreatorSessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, internal.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lookup game: %v", internal.ErrOperationFailed, err)
	}
	return &rec, nil
}

// LookupBySession resolves a session id to its room code and player name.
// Invoked once per physical connection lacking a live binding.
func (s *Store) LookupBySession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	var rec SessionRecord
	err := s.db.Pool.QueryRow(ctx,
		`SELECT g.game_code, p.name, COALESCE(c.session_id, '')
		 FROM spyx_players p
		 JOIN spyx_games g ON p.game_id = g.id
		 LEFT JOIN spyx_players c ON c.id = g.creator_id
		 WHERE p.session_id = $1`,
		sessionID,
	).Scan(&rec.GameCode, &rec.PlayerName, &rec.CreatorSessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, internal.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lookup session: %v", internal.ErrOperationFailed, err)
	}
	return &rec, nil
}

// LookupRolesByLocation returns the role names for a catalog location, in
// catalog order.
func (s *Store) LookupRolesByLocation(ctx context.Context, locationID int64) ([]string, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT role_name FROM spyx_roles WHERE location_id = $1 ORDER BY id`,
		locationID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup roles: %v", internal.ErrOperationFailed, err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("%w: scan role: %v", internal.ErrOperationFailed, err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: lookup roles: %v", internal.ErrOperationFailed, err)
	}
	return roles, nil
}

// ListLocations returns the read-only location catalog.
func (s *Store) ListLocations(ctx context.Context) ([]internal.Location, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, name, COALESCE(picture, '') FROM spyx_locations ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list locations: %v", internal.ErrOperationFailed, err)
	}
	defer rows.Close()

	var locations []internal.Location
	for rows.Next() {
		var loc internal.Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Picture); err != nil {
			return nil, fmt.Errorf("%w: scan location: %v", internal.ErrOperationFailed, err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list locations: %v", internal.ErrOperationFailed, err)
	}
	return locations, nil
}
