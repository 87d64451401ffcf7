package game

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tabletrouble/spyx-backend/internal"
)

// =============================================================================
// WEBSOCKET CONNECTION HANDLING
// =============================================================================

// SocketHandler owns the bidirectional event channel: it upgrades
// connections, resolves their session cookie into a room binding and
// routes inbound commands to the room coordinator.
type SocketHandler struct {
	rooms    *Rooms
	upgrader websocket.Upgrader
}

func NewSocketHandler(rooms *Rooms) *SocketHandler {
	return &SocketHandler{
		rooms: rooms,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWebSocket upgrades the HTTP connection and binds it to the room
// its session cookie resolves to. The session identifier arrives
// pre-validated from the cookie mechanism; connections without one are
// closed right away.
func (h *SocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("session_id")
	if err != nil {
		http.Error(w, "session cookie required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(conn)
	if _, err := h.rooms.ResolveAndBind(r.Context(), cookie.Value, client); err != nil {
		log.Warn().Err(err).Str("connection", client.ID).Msg("session resolution failed, closing socket")
		_ = client.Close()
		return
	}

	go h.readLoop(client)
}

// readLoop processes inbound commands for one connection, in receipt
// order. The room coordinator re-serializes per room; no stronger
// ordering is assumed here.
func (h *SocketHandler) readLoop(client *Client) {
	defer func() {
		_ = client.Close()
		h.rooms.Disconnect(client)
	}()

	for {
		var cmd internal.Command[json.RawMessage]
		if err := client.ws.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("connection", client.ID).Msg("socket read error")
			}
			return
		}

		if !client.Allow() {
			log.Warn().Str("connection", client.ID).Str("command", string(cmd.Type)).Msg("command rate limit exceeded, dropping")
			continue
		}

		h.dispatch(client, cmd)
	}
}

func (h *SocketHandler) dispatch(client *Client, cmd internal.Command[json.RawMessage]) {
	ctx := context.Background()

	switch cmd.Type {
	case internal.CommandJoinRoom:
		var data internal.JoinRoomData
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			h.reject(client, cmd.Type, err)
			return
		}
		sessionID := data.SessionID
		if sessionID == "" {
			sessionID = client.SessionID
		}
		if _, err := h.rooms.JoinSession(ctx, data.GameCode, data.PlayerName, sessionID, client.ID); err != nil {
			h.reject(client, cmd.Type, err)
		}

	case internal.CommandKickPlayer:
		var data internal.KickPlayerData
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			h.reject(client, cmd.Type, err)
			return
		}
		if !h.boundTo(client, data.GameCode) {
			return
		}
		if _, err := h.rooms.Kick(ctx, data.GameCode, client.SessionID, data.PlayerSessionID); err != nil {
			h.reject(client, cmd.Type, err)
		}

	case internal.CommandAssignRoles:
		var data internal.AssignRolesData
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			h.reject(client, cmd.Type, err)
			return
		}
		if !h.boundTo(client, data.GameCode) {
			return
		}
		if _, err := h.rooms.AssignRoles(ctx, data.GameCode, data.Locations); err != nil {
			h.reject(client, cmd.Type, err)
		}

	case internal.CommandShufflePlayers:
		var data internal.ShufflePlayersData
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			h.reject(client, cmd.Type, err)
			return
		}
		if !h.boundTo(client, data.GameCode) {
			return
		}
		if _, err := h.rooms.Shuffle(ctx, data.GameCode); err != nil {
			h.reject(client, cmd.Type, err)
		}

	default:
		log.Debug().Str("connection", client.ID).Str("command", string(cmd.Type)).Msg("unknown command ignored")
	}
}

// boundTo guards commands against targeting a room the connection is not
// bound to.
func (h *SocketHandler) boundTo(client *Client, code string) bool {
	if client.RoomCode == code {
		return true
	}
	log.Warn().
		Str("connection", client.ID).
		Str("bound_room", client.RoomCode).
		Str("target_room", code).
		Msg("command for foreign room rejected")
	return false
}

// reject reports a failed command back to just the issuing socket. A
// rejected command never mutated the snapshot, so there is nothing to
// fan out.
func (h *SocketHandler) reject(client *Client, cmd internal.CommandKind, err error) {
	log.Warn().Err(err).Str("connection", client.ID).Str("command", string(cmd)).Msg("command rejected")

	msg := "something went wrong, please try again"
	switch {
	case internal.IsValidation(err):
		msg = err.Error()
	case errors.Is(err, internal.ErrConflict):
		msg = err.Error()
	case errors.Is(err, internal.ErrNotFound):
		msg = "room or player not found"
	}

	werr := client.WriteEvent(internal.EventStartGameFeedback, internal.StartGameFeedbackData{
		WaitingMessage: msg,
		MessageClass:   "error",
	})
	if werr != nil {
		log.Warn().Err(werr).Str("connection", client.ID).Msg("feedback write failed")
	}
}
