package game

import (
	"github.com/rs/zerolog/log"

	"github.com/tabletrouble/spyx-backend/internal"
)

// Broadcaster fans events out over the live bindings of a room. Delivery
// is fire-and-forget, at most once per currently connected socket: write
// errors are logged and swallowed, never rolled back into the snapshot. A
// disconnected player catches up through the full-snapshot push on
// reconnect.
type Broadcaster struct {
	registry *Registry
}

func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// Broadcast delivers the event to every connection bound to the room.
func (b *Broadcaster) Broadcast(roomCode string, kind internal.EventKind, payload any) {
	clients := b.registry.Clients(roomCode)
	for _, c := range clients {
		b.send(c, kind, payload)
	}
	log.Debug().
		Str("room", roomCode).
		Str("event", string(kind)).
		Int("connections", len(clients)).
		Msg("broadcast")
}

// BroadcastToOne targets exactly one binding by connection id.
func (b *Broadcaster) BroadcastToOne(connectionID string, kind internal.EventKind, payload any) {
	c, ok := b.registry.Lookup(connectionID)
	if !ok {
		log.Debug().
			Str("connection", connectionID).
			Str("event", string(kind)).
			Msg("targeted event dropped, connection gone")
		return
	}
	b.send(c, kind, payload)
}

func (b *Broadcaster) send(c *Client, kind internal.EventKind, payload any) {
	if err := c.WriteEvent(kind, payload); err != nil {
		log.Warn().
			Err(err).
			Str("connection", c.ID).
			Str("session", c.SessionID).
			Str("event", string(kind)).
			Msg("socket write failed, dropping event")
	}
}
