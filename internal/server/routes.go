package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	// Apply CORS middleware
	r.Use(s.corsMiddleware)

	r.HandleFunc("/api/create-game", s.CreateGame).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/join-game", s.JoinGame).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/kick-player", s.KickPlayer).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/game/{gameCode}", s.GetGame).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/locations", s.GetLocations).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/ws", s.socket.HandleWebSocket)

	return r
}

// CORS middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		// If it's a websocket upgrade, skip further CORS checks
		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
