package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tabletrouble/spyx-backend/internal"
)

type createGameRequest struct {
	PlayerName string `json:"playerName"`
}

type joinGameRequest struct {
	PlayerName string `json:"playerName"`
	GameCode   string `json:"gameCode"`
}

type kickPlayerRequest struct {
	PlayerSessionID string `json:"playerSessionId"`
	GameCode        string `json:"gameCode"`
}

type gameResponse struct {
	Message  string `json:"message,omitempty"`
	GameCode string `json:"gameCode"`
	internal.RoomProjection
	SessionID string `json:"sessionId,omitempty"`
}

func setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "session_id",
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// CreateGame makes a new room with the caller as creator and issues the
// session cookie.
func (s *Server) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "player name is required")
		return
	}

	room, sessionID, err := s.rooms.Create(r.Context(), req.PlayerName)
	if err != nil {
		respondErr(w, err)
		return
	}

	setSessionCookie(w, sessionID)
	writeJSON(w, http.StatusOK, gameResponse{
		Message:        "Game created successfully",
		GameCode:       room.Code,
		RoomProjection: room.Project(sessionID),
		SessionID:      sessionID,
	})
}

// JoinGame adds a player to an existing room and issues their session
// cookie.
func (s *Server) JoinGame(w http.ResponseWriter, r *http.Request) {
	var req joinGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "player name and game code are required")
		return
	}

	room, sessionID, err := s.rooms.Join(r.Context(), req.GameCode, req.PlayerName)
	if err != nil {
		respondErr(w, err)
		return
	}

	setSessionCookie(w, sessionID)
	writeJSON(w, http.StatusOK, gameResponse{
		GameCode:       room.Code,
		RoomProjection: room.Project(sessionID),
		SessionID:      sessionID,
	})
}

// KickPlayer removes a player on behalf of the room's creator.
func (s *Server) KickPlayer(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("session_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "session cookie required")
		return
	}

	var req kickPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerSessionID == "" || req.GameCode == "" {
		writeError(w, http.StatusBadRequest, "player session id and game code are required")
		return
	}

	room, err := s.rooms.Kick(r.Context(), req.GameCode, cookie.Value, req.PlayerSessionID)
	if err != nil {
		respondErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"updatedGameData": room.Project(cookie.Value),
	})
}

// GetGame returns the snapshot projection for the requesting member:
// public membership, the creator flag and the requester's own role and
// location.
func (s *Server) GetGame(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("session_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "session cookie required")
		return
	}
	code := mux.Vars(r)["gameCode"]

	room, err := s.rooms.Snapshot(r.Context(), code)
	if err != nil {
		respondErr(w, err)
		return
	}
	if !room.HasPlayer(cookie.Value) {
		writeError(w, http.StatusForbidden, "session is not associated with this game")
		return
	}

	writeJSON(w, http.StatusOK, room.Project(cookie.Value))
}

// GetLocations returns the read-only location catalog.
func (s *Server) GetLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := s.db.ListLocations(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, locations)
}
