package game

import (
	"sync"
)

type binding struct {
	roomCode  string
	sessionID string
}

// Registry tracks live socket bindings per session per room. Binding a
// session that already has a connection replaces the stale binding, which
// is what makes reconnects work. Entries mutate independently per
// connection lifecycle event; no cross-room interference.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Client // room code -> session id -> client
	conns map[string]binding            // connection id -> where it is bound
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[string]*Client),
		conns: make(map[string]binding),
	}
}

// Bind registers the client for (roomCode, sessionID) and returns the
// replaced stale client, if any, so the caller can close it.
func (r *Registry) Bind(roomCode, sessionID string, c *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	c.RoomCode = roomCode
	c.SessionID = sessionID

	room := r.rooms[roomCode]
	if room == nil {
		room = make(map[string]*Client)
		r.rooms[roomCode] = room
	}

	stale := room[sessionID]
	if stale != nil {
		delete(r.conns, stale.ID)
	}

	room[sessionID] = c
	r.conns[c.ID] = binding{roomCode: roomCode, sessionID: sessionID}
	return stale
}

// Unbind removes every binding held by the connection, across all rooms.
func (r *Registry) Unbind(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.conns[connectionID]
	if !ok {
		return
	}
	delete(r.conns, connectionID)

	room := r.rooms[b.roomCode]
	if room == nil {
		return
	}
	// Only drop the session entry if it still points at this connection;
	// a reconnect may already have replaced it.
	if cur := room[b.sessionID]; cur != nil && cur.ID == connectionID {
		delete(room, b.sessionID)
	}
	if len(room) == 0 {
		delete(r.rooms, b.roomCode)
	}
}

// LookupConnection returns the live client bound for the session in the
// room, used to target a single socket.
func (r *Registry) LookupConnection(roomCode, sessionID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[roomCode]
	if room == nil {
		return nil, false
	}
	c, ok := room[sessionID]
	return c, ok
}

// Lookup resolves a connection id to its client.
func (r *Registry) Lookup(connectionID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.conns[connectionID]
	if !ok {
		return nil, false
	}
	c, ok := r.rooms[b.roomCode][b.sessionID]
	return c, ok
}

// Clients snapshots the live bindings of a room.
func (r *Registry) Clients(roomCode string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[roomCode]
	out := make([]*Client, 0, len(room))
	for _, c := range room {
		out = append(out, c)
	}
	return out
}

// DropRoom removes every binding of a room and returns the dropped
// clients. Used when a room is gone for good.
func (r *Registry) DropRoom(roomCode string) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[roomCode]
	out := make([]*Client, 0, len(room))
	for _, c := range room {
		out = append(out, c)
		delete(r.conns, c.ID)
	}
	delete(r.rooms, roomCode)
	return out
}
