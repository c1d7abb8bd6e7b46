package network

import (
	"encoding/json"
	"time"

	"github.com/wtfashwin/Quiz-App/models"
)

// Inbound event names.
const (
	EventAuthenticate = "authenticate"
	EventCreateRoom   = "create_room"
	EventJoinRoom     = "join_room"
	EventLeaveRoom    = "leave_room"
	EventStartGame    = "start_game"
	EventSubmitAnswer = "submit_answer"
	EventGetRooms     = "get_rooms"
	EventGetRoom      = "get_room"
	EventSendMessage  = "send_message"
	EventDisconnect   = "disconnect"
)

// Outbound event names.
const (
	EventAuthenticated  = "authenticated"
	EventRoomCreated    = "room_created"
	EventRoomsUpdated   = "rooms_updated"
	EventRoomJoined     = "room_joined"
	EventRoomState      = "room_state"
	EventPlayerJoined   = "player_joined"
	EventPlayerLeft     = "player_left"
	EventGameStarted    = "game_started"
	EventNextQuestion   = "next_question"
	EventScoresUpdated  = "scores_updated"
	EventGameEnded      = "game_ended"
	EventReceiveMessage = "receive_message"
	EventError          = "error"
)

// Inbound is the envelope for frames coming from a WebSocket client.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is the envelope for frames sent to a WebSocket client.
type Outbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// UserPayload is a self-declared identity, accepted only when auth is not required.
type UserPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

type AuthenticateRequest struct {
	Token string       `json:"token,omitempty"`
	User  *UserPayload `json:"user,omitempty"`
}

type CreateRoomRequest struct {
	Name        string             `json:"name"`
	HostID      string             `json:"hostId"`
	Host        *models.PlayerInfo `json:"host,omitempty"`
	QuestionSet string             `json:"questionSet,omitempty"`
}

type JoinRoomRequest struct {
	RoomID string            `json:"roomId"`
	Player models.PlayerInfo `json:"player"`
}

type LeaveRoomRequest struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

type StartGameRequest struct {
	RoomID      string `json:"roomId"`
	RequesterID string `json:"requesterId"`
}

// SubmitAnswerRequest uses pointers so a missing index is distinguishable
// from index zero.
type SubmitAnswerRequest struct {
	RoomID        string `json:"roomId"`
	PlayerID      string `json:"playerId"`
	QuestionIndex *int   `json:"questionIndex"`
	AnswerIndex   *int   `json:"answerIndex"`
}

type GetRoomRequest struct {
	RoomID string `json:"roomId"`
}

type SendMessageRequest struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Text     string `json:"text"`
}

// QuestionView is a question as shown to players; it never carries the
// correct option.
type QuestionView struct {
	Index     int       `json:"index"`
	Total     int       `json:"total"`
	Prompt    string    `json:"question"`
	Options   []string  `json:"options"`
	TimeLimit int       `json:"timeLimit"`
	Deadline  time.Time `json:"deadline"`
}

type AuthenticatedEvent struct {
	User UserPayload `json:"user"`
}

type RoomCreatedEvent struct {
	RoomID string             `json:"roomId"`
	Room   models.RoomSummary `json:"room"`
}

// RoomView is the full state of a room as seen by a member.
type RoomView struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	HostID          string              `json:"hostId"`
	Phase           string              `json:"state"`
	Players         []models.PlayerInfo `json:"players"`
	Scores          []models.ScoreEntry `json:"scores"`
	QuestionCount   int                 `json:"questionCount"`
	CurrentQuestion *QuestionView       `json:"currentQuestion,omitempty"`
}

type PlayerJoinedEvent struct {
	RoomID  string              `json:"roomId"`
	Player  models.PlayerInfo   `json:"player"`
	Players []models.PlayerInfo `json:"players"`
}

type PlayerLeftEvent struct {
	RoomID   string              `json:"roomId"`
	Player   models.PlayerInfo   `json:"player"`
	Username string              `json:"username"`
	Players  []models.PlayerInfo `json:"players"`
}

type QuestionEvent struct {
	RoomID   string              `json:"roomId"`
	Question QuestionView        `json:"question"`
	Players  []models.PlayerInfo `json:"players,omitempty"`
}

type AnswerResult struct {
	PlayerID      string `json:"playerId"`
	QuestionIndex int    `json:"questionIndex"`
	Correct       bool   `json:"correct"`
	Awarded       int    `json:"awarded"`
}

type ScoresUpdatedEvent struct {
	RoomID     string              `json:"roomId"`
	Scores     []models.ScoreEntry `json:"scores"`
	LastAnswer *AnswerResult       `json:"lastAnswer,omitempty"`
}

type GameEndedEvent struct {
	RoomID      string              `json:"roomId"`
	FinalScores []models.ScoreEntry `json:"finalScores"`
}

type ChatMessageEvent struct {
	RoomID   string    `json:"roomId"`
	PlayerID string    `json:"playerId"`
	Name     string    `json:"name"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sentAt"`
}

type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
