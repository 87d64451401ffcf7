package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tabletrouble/spyx-backend/internal"
	"github.com/tabletrouble/spyx-backend/internal/db"
	"github.com/tabletrouble/spyx-backend/internal/store"
)

// =============================================================================
// ROOM COORDINATION
// =============================================================================

// Persistence is the slice of the durable store the room engine calls:
// creation/join writes, session resolution and the role-name lookup.
type Persistence interface {
	InsertGame(ctx context.Context, code string) (int64, error)
	InsertPlayer(ctx context.Context, gameID int64, name, sessionID string) (int64, error)
	SetCreator(ctx context.Context, gameID, playerID int64) error
	DeletePlayer(ctx context.Context, gameID int64, sessionID string) error
	DeleteGame(ctx context.Context, gameID int64) error
	LookupGameByCode(ctx context.Context, code string) (*db.GameRecord, error)
	LookupBySession(ctx context.Context, sessionID string) (*db.SessionRecord, error)
	LookupRolesByLocation(ctx context.Context, locationID int64) ([]string, error)
}

// Rooms is the serialization point for room mutations. Every
// read-modify-write against a room code goes through mutate, which holds
// an in-process per-code lock and commits through the store's
// compare-and-swap, so two concurrent joins can never lose one another's
// append even across server processes. Operations on different rooms do
// not order against each other.
type Rooms struct {
	store       store.RoomStore
	db          Persistence
	registry    *Registry
	broadcaster *Broadcaster
	watcher     *ExpiryWatcher
	engine      *RoleEngine
	ttl         time.Duration

	locksMu sync.Mutex
	locks   map[string]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

const (
	// Conflict retries only fire when another process committed between
	// our read and swap; the local lock already serializes this process.
	casAttempts = 3

	codeAttempts = 5
)

func NewRooms(s store.RoomStore, d Persistence, registry *Registry, broadcaster *Broadcaster, watcher *ExpiryWatcher, engine *RoleEngine, ttl time.Duration) *Rooms {
	if ttl <= 0 {
		ttl = internal.RoomTTL
	}
	return &Rooms{
		store:       s,
		db:          d,
		registry:    registry,
		broadcaster: broadcaster,
		watcher:     watcher,
		engine:      engine,
		ttl:         ttl,
		locks:       make(map[string]*roomLock),
	}
}

// TTL returns the sliding expiry window applied to snapshot writes.
func (r *Rooms) TTL() time.Duration {
	return r.ttl
}

func (r *Rooms) lockRoom(code string) func() {
	r.locksMu.Lock()
	l := r.locks[code]
	if l == nil {
		l = &roomLock{}
		r.locks[code] = l
	}
	l.refs++
	r.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, code)
		}
		r.locksMu.Unlock()
	}
}

// mutate runs fn against a private copy of the snapshot and commits the
// result. fn may do collaborator I/O; any error it returns aborts the
// commit with the stored snapshot untouched. A mutation that empties the
// player list deletes the room instead of committing. The returned
// snapshot is the authoritative post-mutation state - callers build
// responses and broadcasts from it, never from pre-mutation reads.
func (r *Rooms) mutate(ctx context.Context, code string, fn func(ctx context.Context, room *internal.Room) error) (*internal.Room, error) {
	return r.mutateOrSeed(ctx, code, fn, nil)
}

// mutateOrSeed is mutate with a recovery path for an absent snapshot:
// when onMissing is given, the room it builds is committed via
// compare-and-swap at version zero, under the same per-room lock as any
// other write. Losing that swap to a concurrent creator just sends the
// next attempt down the normal mutation path against the winner's
// snapshot.
func (r *Rooms) mutateOrSeed(ctx context.Context, code string, fn func(ctx context.Context, room *internal.Room) error, onMissing func() *internal.Room) (*internal.Room, error) {
	unlock := r.lockRoom(code)
	defer unlock()

	for attempt := 0; attempt < casAttempts; attempt++ {
		cur, err := r.store.Get(ctx, code)
		if errors.Is(err, internal.ErrNotFound) && onMissing != nil {
			next := onMissing()
			next.Version = 1
			next.LastUpdated = time.Now().UTC()

			err = r.store.CompareAndSwap(ctx, next, 0, r.ttl)
			if errors.Is(err, store.ErrVersionConflict) {
				log.Debug().Str("room", code).Int("attempt", attempt+1).Msg("snapshot appeared during recreate, retrying")
				continue
			}
			if err != nil {
				return nil, err
			}

			r.watcher.Schedule(code, r.ttl)
			log.Info().Str("room", code).Msg("snapshot rehydrated from durable record")
			return next, nil
		}
		if err != nil {
			return nil, err
		}

		next := cur.Clone()
		if err := fn(ctx, next); err != nil {
			return nil, err
		}

		if len(next.Players) == 0 {
			if err := r.store.Delete(ctx, code); err != nil {
				return nil, err
			}
			r.watcher.Cancel(code)
			log.Info().Str("room", code).Msg("room emptied, snapshot deleted")
			return next, nil
		}

		next.Version = cur.Version + 1
		next.LastUpdated = time.Now().UTC()

		err = r.store.CompareAndSwap(ctx, next, cur.Version, r.ttl)
		if errors.Is(err, store.ErrVersionConflict) {
			log.Debug().Str("room", code).Int("attempt", attempt+1).Msg("commit lost to concurrent writer, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}

		r.watcher.Schedule(code, r.ttl)
		return next, nil
	}

	return nil, fmt.Errorf("%w: room %s: gave up after %d conflicting commits", internal.ErrOperationFailed, code, casAttempts)
}

// seed writes a brand-new snapshot and arms its expiry check.
func (r *Rooms) seed(ctx context.Context, room *internal.Room) error {
	room.Version = 1
	room.LastUpdated = time.Now().UTC()
	if err := r.store.Put(ctx, room, r.ttl); err != nil {
		return err
	}
	r.watcher.Schedule(room.Code, r.ttl)
	return nil
}

// =============================================================================
// CREATE / JOIN
// =============================================================================

// Create makes a new room with the caller as creator: durable record
// first, then the snapshot seed. If the seed fails the durable record is
// rolled back and the whole operation is reported as failed, never left
// half-applied. Code collisions with live games regenerate and retry.
func (r *Rooms) Create(ctx context.Context, playerName string) (*internal.Room, string, error) {
	if err := internal.ValidatePlayerName(playerName); err != nil {
		return nil, "", err
	}

	sessionID := uuid.NewString()

	var (
		code   string
		gameID int64
	)
	for attempt := 0; ; attempt++ {
		code = r.engine.GenerateGameCode()
		id, err := r.db.InsertGame(ctx, code)
		if errors.Is(err, db.ErrCodeTaken) {
			if attempt+1 >= codeAttempts {
				return nil, "", fmt.Errorf("%w: could not find a free game code", internal.ErrOperationFailed)
			}
			continue
		}
		if err != nil {
			return nil, "", err
		}
		gameID = id
		break
	}

	playerID, err := r.db.InsertPlayer(ctx, gameID, playerName, sessionID)
	if err != nil {
		r.rollbackGame(gameID, code)
		return nil, "", err
	}
	if err := r.db.SetCreator(ctx, gameID, playerID); err != nil {
		r.rollbackGame(gameID, code)
		return nil, "", err
	}

	room := &internal.Room{
		Code:             code,
		CreatorSessionID: sessionID,
		Players: []internal.Player{
			{Name: playerName, SessionID: sessionID},
		},
	}
	if err := r.seed(ctx, room); err != nil {
		r.rollbackGame(gameID, code)
		return nil, "", err
	}

	log.Info().Str("room", code).Str("player", playerName).Msg("room created")
	return room, sessionID, nil
}

func (r *Rooms) rollbackGame(gameID int64, code string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.db.DeleteGame(ctx, gameID); err != nil {
		log.Error().Err(err).Str("room", code).Msg("rollback of half-created game failed")
	}
}

// Join adds a new player to an existing room: persistent insert first,
// then snapshot refresh, rolled back together on failure. Returns the
// authoritative post-join snapshot and the freshly issued session id.
func (r *Rooms) Join(ctx context.Context, code, playerName string) (*internal.Room, string, error) {
	if err := internal.ValidatePlayerName(playerName); err != nil {
		return nil, "", err
	}
	if err := internal.ValidateGameCode(code); err != nil {
		return nil, "", err
	}

	rec, err := r.db.LookupGameByCode(ctx, code)
	if err != nil {
		return nil, "", err
	}

	sessionID := uuid.NewString()
	if _, err := r.db.InsertPlayer(ctx, rec.ID, playerName, sessionID); err != nil {
		return nil, "", err
	}

	room, err := r.appendPlayer(ctx, code, playerName, sessionID, "", rec.CreatorSessionID)
	if err != nil {
		rbCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if derr := r.db.DeletePlayer(rbCtx, rec.ID, sessionID); derr != nil {
			log.Error().Err(derr).Str("room", code).Msg("rollback of half-joined player failed")
		}
		return nil, "", err
	}

	r.broadcaster.Broadcast(code, internal.EventUpdateGameData, internal.NewGameData(room))
	log.Info().Str("room", code).Str("player", playerName).Msg("player joined")
	return room, sessionID, nil
}

// appendPlayer puts the player into the snapshot, idempotently per
// session id. When the snapshot was evicted but a durable record exists,
// it rehydrates a minimal snapshot holding just this player, committed at
// the same serialization point as any other write; membership rebuilds as
// the other members reconnect.
func (r *Rooms) appendPlayer(ctx context.Context, code, playerName, sessionID, connectionID, creatorSessionID string) (*internal.Room, error) {
	return r.mutateOrSeed(ctx, code, func(_ context.Context, room *internal.Room) error {
		if i := room.FindPlayer(sessionID); i >= 0 {
			// Already a member: refresh the binding hint only, and only
			// when the caller actually carries one.
			if connectionID != "" {
				room.Players[i].ConnectionID = connectionID
			}
			return nil
		}
		room.Players = append(room.Players, internal.Player{
			Name:         playerName,
			SessionID:    sessionID,
			ConnectionID: connectionID,
		})
		return nil
	}, func() *internal.Room {
		return &internal.Room{
			Code:             code,
			CreatorSessionID: creatorSessionID,
			Players: []internal.Player{
				{Name: playerName, SessionID: sessionID, ConnectionID: connectionID},
			},
		}
	})
}

// JoinSession handles the socket joinRoom command for a session that
// already holds membership (or was just issued one over REST). The
// session must resolve to a durable row for this room; the snapshot entry
// carries the durable name, never the command's. Idempotent per session
// id.
func (r *Rooms) JoinSession(ctx context.Context, code, playerName, sessionID, connectionID string) (*internal.Room, error) {
	if err := internal.ValidateGameCode(code); err != nil {
		return nil, err
	}
	if err := internal.ValidatePlayerName(playerName); err != nil {
		return nil, err
	}

	rec, err := r.db.LookupBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rec.GameCode != code {
		return nil, fmt.Errorf("%w: session does not belong to this room", internal.ErrConflict)
	}

	room, err := r.appendPlayer(ctx, code, rec.PlayerName, sessionID, connectionID, rec.CreatorSessionID)
	if err != nil {
		return nil, err
	}

	r.broadcaster.Broadcast(code, internal.EventUpdateGameData, internal.NewGameData(room))
	return room, nil
}

// =============================================================================
// KICK / SHUFFLE / ROLE ASSIGNMENT
// =============================================================================

// Kick removes the target from the room. Only the creator may kick, and
// the creator can never be the target. The kicked player's live socket,
// if any, gets a targeted kickedFromRoom before the membership update
// fans out, and its binding is dropped.
func (r *Rooms) Kick(ctx context.Context, code, requesterSessionID, targetSessionID string) (*internal.Room, error) {
	room, err := r.mutate(ctx, code, func(ctx context.Context, room *internal.Room) error {
		if room.CreatorSessionID != requesterSessionID {
			return fmt.Errorf("%w: only the creator can kick players", internal.ErrConflict)
		}
		if targetSessionID == room.CreatorSessionID {
			return fmt.Errorf("%w: the creator cannot be kicked", internal.ErrConflict)
		}
		if !room.HasPlayer(targetSessionID) {
			return fmt.Errorf("%w: player is not in the room", internal.ErrNotFound)
		}

		// Drop the durable row before committing so a kicked session can
		// no longer resolve back into the room.
		rec, err := r.db.LookupGameByCode(ctx, code)
		if err != nil {
			return err
		}
		if err := r.db.DeletePlayer(ctx, rec.ID, targetSessionID); err != nil {
			return err
		}

		room.RemovePlayer(targetSessionID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c, ok := r.registry.LookupConnection(code, targetSessionID); ok {
		r.broadcaster.BroadcastToOne(c.ID, internal.EventKickedFromRoom, internal.KickedFromRoomData{GameCode: code})
		r.registry.Unbind(c.ID)
	}
	r.broadcaster.Broadcast(code, internal.EventUpdateGameData, internal.NewGameData(room))

	log.Info().Str("room", code).Str("session", targetSessionID).Msg("player kicked")
	return room, nil
}

// Shuffle applies a uniform-random permutation to the roster order and
// fans the result out.
func (r *Rooms) Shuffle(ctx context.Context, code string) (*internal.Room, error) {
	room, err := r.mutate(ctx, code, func(_ context.Context, room *internal.Room) error {
		room.Players = r.engine.ShufflePlayers(room.Players)
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.broadcaster.Broadcast(code, internal.EventUpdateGameData, internal.NewGameData(room))
	return room, nil
}

// AssignRoles runs a round: picks the common location from the submitted
// catalog, loads its role names from the persistent store, partitions the
// roster through the role engine and commits. The role lookup always
// completes before anything is broadcast. Each bound player receives only
// their own role; the room then gets the start feedback.
func (r *Rooms) AssignRoles(ctx context.Context, code string, locations []internal.Location) (*internal.Room, error) {
	if len(locations) == 0 {
		return nil, &internal.ValidationError{
			Field:  "locations",
			Reason: "no locations available",
		}
	}

	location := r.engine.PickLocation(locations)

	room, err := r.mutate(ctx, code, func(ctx context.Context, room *internal.Room) error {
		roles, err := r.db.LookupRolesByLocation(ctx, location.ID)
		if err != nil {
			return err
		}
		updated, err := r.engine.Assign(room.Players, location, roles)
		if err != nil {
			return err
		}
		room.Players = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range room.Players {
		p := &room.Players[i]
		c, ok := r.registry.LookupConnection(code, p.SessionID)
		if !ok {
			continue
		}
		r.broadcaster.BroadcastToOne(c.ID, internal.EventRoleAssigned, internal.RoleAssignedData{
			GameCode: code,
			Role:     p.Role,
			Location: p.Location,
		})
	}
	r.broadcaster.Broadcast(code, internal.EventStartGameFeedback, internal.StartGameFeedbackData{
		WaitingMessage: "Your fate has been determined",
		MessageClass:   "role-assigned",
	})

	log.Info().Str("room", code).Int64("location", location.ID).Msg("roles assigned")
	return room, nil
}

// =============================================================================
// SESSION RESOLUTION / CONNECTION LIFECYCLE
// =============================================================================

// ResolveAndBind maps a session id to its room via the persistent record,
// rehydrating the snapshot if it was evicted, then binds the connection
// (replacing any stale binding for the session) and pushes the full
// current state to just that socket.
func (r *Rooms) ResolveAndBind(ctx context.Context, sessionID string, client *Client) (*internal.Room, error) {
	rec, err := r.db.LookupBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	room, err := r.appendPlayer(ctx, rec.GameCode, rec.PlayerName, sessionID, client.ID, rec.CreatorSessionID)
	if err != nil {
		return nil, err
	}

	if stale := r.registry.Bind(rec.GameCode, sessionID, client); stale != nil {
		log.Debug().
			Str("room", rec.GameCode).
			Str("session", sessionID).
			Str("stale_connection", stale.ID).
			Msg("reconnect replaced stale binding")
		_ = stale.Close()
	}

	// Last-state-wins catch-up push for this socket only.
	r.sendStateTo(client, room, sessionID)

	log.Info().
		Str("room", rec.GameCode).
		Str("session", sessionID).
		Str("connection", client.ID).
		Msg("session resolved and bound")
	return room, nil
}

func (r *Rooms) sendStateTo(client *Client, room *internal.Room, sessionID string) {
	r.broadcaster.BroadcastToOne(client.ID, internal.EventUpdateGameData, internal.NewGameData(room))
	if i := room.FindPlayer(sessionID); i >= 0 && room.Players[i].Role != "" {
		p := &room.Players[i]
		r.broadcaster.BroadcastToOne(client.ID, internal.EventRoleAssigned, internal.RoleAssignedData{
			GameCode: room.Code,
			Role:     p.Role,
			Location: p.Location,
		})
	}
}

// Disconnect drops the connection's bindings. Membership survives in the
// snapshot; the player just misses events until reconnect.
func (r *Rooms) Disconnect(client *Client) {
	r.registry.Unbind(client.ID)
	log.Debug().
		Str("connection", client.ID).
		Str("session", client.SessionID).
		Msg("connection unbound")
}

// Snapshot returns the current room state for read-only projections.
func (r *Rooms) Snapshot(ctx context.Context, code string) (*internal.Room, error) {
	if err := internal.ValidateGameCode(code); err != nil {
		return nil, err
	}
	return r.store.Get(ctx, code)
}
