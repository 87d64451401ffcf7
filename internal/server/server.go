package server

import (
	"context"
	"net/http"
	"time"

	"github.com/tabletrouble/spyx-backend/internal"
	"github.com/tabletrouble/spyx-backend/internal/game"
)

// Catalog is the read-only location listing the REST surface passes
// through.
type Catalog interface {
	ListLocations(ctx context.Context) ([]internal.Location, error)
}

// Server is the HTTP surface: the REST endpoints plus the websocket
// upgrade route.
type Server struct {
	rooms         *game.Rooms
	db            Catalog
	socket        *game.SocketHandler
	allowedOrigin string
}

func New(rooms *game.Rooms, dbStore Catalog, socket *game.SocketHandler, allowedOrigin string) *Server {
	return &Server{
		rooms:         rooms,
		db:            dbStore,
		socket:        socket,
		allowedOrigin: allowedOrigin,
	}
}

// NewHTTPServer wraps the routes in an http.Server ready to listen.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
