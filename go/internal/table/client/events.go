package client

import (
	"time"

	"github.com/mcdev12/tablesync/go/internal/table/gamestate"
)

// EventType names an application event emitted by the client
type EventType string

const (
	EventConnect      EventType = "connect"
	EventDisconnect   EventType = "disconnect"
	EventReconnect    EventType = "reconnect"
	EventError        EventType = "error"
	EventGameState    EventType = "gameState"
	EventGameUpdate   EventType = "gameUpdate"
	EventPlayerAction EventType = "playerAction"
	EventRoomUpdate   EventType = "roomUpdate"
	EventChat         EventType = "chat"
	EventPlayerJoined EventType = "playerJoined"
	EventPlayerLeft   EventType = "playerLeft"
	EventGameHistory  EventType = "game_history"
	EventTimerUpdate  EventType = "timerUpdate"
)

// Event is what subscribers receive. Data holds one of the payload types below,
// a gamestate.State, or the raw object of a pass-through message.
type Event struct {
	Type   EventType `json:"type"`
	RoomID string    `json:"room_id,omitempty"`
	Data   any       `json:"data,omitempty"`
}

// ConnectPayload is delivered with EventConnect
type ConnectPayload struct {
	RoomID       string `json:"room_id"`
	ConnectionID string `json:"connection_id"`
	Reconnected  bool   `json:"reconnected"`
}

// DisconnectPayload is delivered with EventDisconnect
type DisconnectPayload struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// ReconnectPayload is delivered with EventReconnect when an attempt is scheduled
type ReconnectPayload struct {
	Attempt     int           `json:"attempt"`
	MaxAttempts int           `json:"max_attempts"`
	Delay       time.Duration `json:"delay"`
}

// ErrorPayload is delivered with EventError
type ErrorPayload struct {
	Kind    ErrorKind `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code,omitempty"`
	Fatal   bool      `json:"fatal"`
}

// RoomUpdatePayload is delivered with EventRoomUpdate
type RoomUpdatePayload struct {
	State gamestate.State `json:"state"`
	Raw   map[string]any  `json:"raw"`
}

// TimerUpdate is delivered with EventTimerUpdate once per tick
type TimerUpdate struct {
	PlayerIndex int `json:"player_index"`
	Remaining   int `json:"remaining"`
	Total       int `json:"total"`
}
