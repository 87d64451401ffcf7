package internal

// EventKind tags every message pushed over the event channel. The set is
// closed: clients can rely on never seeing an untagged payload.
type EventKind string

const (
	EventUpdateGameData    EventKind = "updateGameData"
	EventRoleAssigned      EventKind = "roleAssigned"
	EventStartGameFeedback EventKind = "startGameFeedback"
	EventKickedFromRoom    EventKind = "kickedFromRoom"
	EventRoomExpired       EventKind = "roomExpired"
)

// CommandKind tags every inbound socket command.
type CommandKind string

const (
	CommandJoinRoom       CommandKind = "joinRoom"
	CommandKickPlayer     CommandKind = "kickPlayer"
	CommandAssignRoles    CommandKind = "assignRoles"
	CommandShufflePlayers CommandKind = "shufflePlayers"
)

type Message[T any] struct {
	Type EventKind `json:"type"`
	Data T         `json:"data"`
}

type Command[T any] struct {
	Type CommandKind `json:"type"`
	Data T           `json:"data"`
}

// GameData carries the authoritative post-mutation membership of a room.
// Both membership changes and roster shuffles are pushed with this shape.
type GameData struct {
	GameCode string       `json:"game_code"`
	Players  []PlayerView `json:"players"`
}

// RoleAssignedData is pushed to one connection after a round assignment
// with that player's private role and location.
type RoleAssignedData struct {
	GameCode string    `json:"game_code"`
	Role     string    `json:"role"`
	Location *Location `json:"location,omitempty"`
}

type StartGameFeedbackData struct {
	WaitingMessage string `json:"waiting_message"`
	MessageClass   string `json:"message_class"`
}

type KickedFromRoomData struct {
	GameCode string `json:"game_code"`
}

type RoomExpiredData struct {
	GameCode string `json:"game_code"`
}

// Inbound command payloads.

type JoinRoomData struct {
	GameCode   string `json:"game_code"`
	PlayerName string `json:"player_name"`
	SessionID  string `json:"session_id"`
}

type KickPlayerData struct {
	GameCode        string `json:"game_code"`
	PlayerSessionID string `json:"player_session_id"`
}

type AssignRolesData struct {
	GameCode  string     `json:"game_code"`
	Locations []Location `json:"locations"`
}

type ShufflePlayersData struct {
	GameCode string `json:"game_code"`
}

func NewGameData(room *Room) GameData {
	players := make([]PlayerView, 0, len(room.Players))
	for i := range room.Players {
		players = append(players, PlayerView{
			Name:      room.Players[i].Name,
			SessionID: room.Players[i].SessionID,
		})
	}
	return GameData{GameCode: room.Code, Players: players}
}
