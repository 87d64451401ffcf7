package game

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tabletrouble/spyx-backend/internal"
)

// eventConn is what a client needs from its transport. *websocket.Conn
// satisfies it; tests substitute a recorder.
type eventConn interface {
	WriteJSON(v any) error
	Close() error
}

// Client is one live socket binding: a physical connection resolved to a
// session and a room.
type Client struct {
	ID        string
	SessionID string
	RoomCode  string

	conn    eventConn
	ws      *websocket.Conn // nil for test clients
	limiter *rate.Limiter

	// Serializes writes; gorilla connections allow one concurrent writer.
	mu sync.Mutex
}

const (
	commandsPerSecond = 10
	commandBurst      = 20
)

func NewClient(conn *websocket.Conn) *Client {
	c := newClient(conn)
	c.ws = conn
	return c
}

func newClient(conn eventConn) *Client {
	return &Client{
		ID:      uuid.NewString(),
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(commandsPerSecond), commandBurst),
	}
}

// Allow reports whether the connection is within its command budget.
func (c *Client) Allow() bool {
	return c.limiter.Allow()
}

// WriteEvent pushes one tagged event to the socket.
func (c *Client) WriteEvent(kind internal.EventKind, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(internal.Message[any]{Type: kind, Data: payload})
}

func (c *Client) Close() error {
	return c.conn.Close()
}
