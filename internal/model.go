package internal

import (
	"time"
)

const (
	// RoomTTL is the sliding expiry window for a room snapshot. Every
	// committed write resets it from the write instant.
	RoomTTL = 30 * time.Minute

	GameCodeLength = 4
	GameCodeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	MinNameLength = 3
	MaxNameLength = 15

	// SpyRole is the single withheld role per round.
	SpyRole = "Spy"
	// PlaceholderRole is assigned when the location's role set runs out
	// before the roster does. The holder still shares the location.
	PlaceholderRole = "No Role"
)

// Location is a catalog entry the round's common location is drawn from.
type Location struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// Player is one member of a room snapshot.
type Player struct {
	Name      string `json:"player_name"`
	SessionID string `json:"player_session_id"`

	// ConnectionID is the last known live socket binding for this
	// session, empty until the player connects. The ConnectionRegistry
	// is the live truth; this field is only ever a hint.
	ConnectionID string `json:"connection_id,omitempty"`

	// Role and Location stay empty until a round is assigned. The Spy
	// keeps an empty Location.
	Role     string    `json:"role,omitempty"`
	Location *Location `json:"location,omitempty"`
}

// IsSpy reports whether the player drew the Spy role this round.
func (p *Player) IsSpy() bool {
	return p.Role == SpyRole
}

// Room is the canonical snapshot of a live room as held in the shared
// store. Version is the optimistic-concurrency stamp: a commit only lands
// when the stored version still matches the one the snapshot was read at.
type Room struct {
	Version          int64     `json:"version"`
	Code             string    `json:"game_code"`
	CreatorSessionID string    `json:"creator_session_id"`
	Players          []Player  `json:"players"`
	LastUpdated      time.Time `json:"last_updated"`
}

// FindPlayer returns the index of the player with the given session id,
// or -1 when absent.
func (r *Room) FindPlayer(sessionID string) int {
	for i := range r.Players {
		if r.Players[i].SessionID == sessionID {
			return i
		}
	}
	return -1
}

// HasPlayer reports membership by session id.
func (r *Room) HasPlayer(sessionID string) bool {
	return r.FindPlayer(sessionID) >= 0
}

// RemovePlayer deletes the player with the given session id, preserving
// roster order. Reports whether anything was removed.
func (r *Room) RemovePlayer(sessionID string) bool {
	i := r.FindPlayer(sessionID)
	if i < 0 {
		return false
	}
	r.Players = append(r.Players[:i], r.Players[i+1:]...)
	return true
}

// Clone returns a deep copy, so a mutation can be abandoned on a failed
// commit without having touched the snapshot it was read from.
func (r *Room) Clone() *Room {
	out := *r
	out.Players = make([]Player, len(r.Players))
	copy(out.Players, r.Players)
	for i := range out.Players {
		if out.Players[i].Location != nil {
			loc := *out.Players[i].Location
			out.Players[i].Location = &loc
		}
	}
	return &out
}

// PlayerView is the membership projection shared with every client.
type PlayerView struct {
	Name      string `json:"player_name"`
	SessionID string `json:"player_session_id"`
}

// RoomProjection is the request-style view of a room for one requester:
// public membership plus the requester's own role and location.
type RoomProjection struct {
	GameCode  string       `json:"game_code"`
	Players   []PlayerView `json:"players"`
	IsCreator bool         `json:"is_creator"`
	Role      string       `json:"role,omitempty"`
	Location  *Location    `json:"location,omitempty"`
}

// Project builds the projection for the given session id. Roles and
// locations of other players are never exposed.
func (r *Room) Project(sessionID string) RoomProjection {
	proj := RoomProjection{
		GameCode:  r.Code,
		Players:   make([]PlayerView, 0, len(r.Players)),
		IsCreator: r.CreatorSessionID == sessionID,
	}
	for i := range r.Players {
		p := &r.Players[i]
		proj.Players = append(proj.Players, PlayerView{
			Name:      p.Name,
			SessionID: p.SessionID,
		})
		if p.SessionID == sessionID {
			proj.Role = p.Role
			proj.Location = p.Location
		}
	}
	return proj
}
