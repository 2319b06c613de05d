package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedFrame is returned when an inbound frame is not a valid envelope
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrEmptyType is returned when an envelope or command carries no type
	ErrEmptyType = errors.New("envelope type is empty")
)

// MessageType is the `type` tag of a wire message
type MessageType string

// Inbound message types (server -> client)
const (
	TypeGameState          MessageType = "game_state"
	TypeGameUpdate         MessageType = "game_update"
	TypePlayerConnected    MessageType = "player_connected"
	TypePlayerJoined       MessageType = "player_joined"
	TypePlayerDisconnected MessageType = "player_disconnected"
	TypeRoomUpdate         MessageType = "room_update"
	TypeChat               MessageType = "chat"
	TypeError              MessageType = "error"
	TypePong               MessageType = "pong"
	TypeGameHistory        MessageType = "game_history"
)

// Outbound message types (client -> server)
const (
	TypePing       MessageType = "ping"
	TypeGameAction MessageType = "game_action"
	TypeRoomAction MessageType = "room_action"
)

var inboundTypes = map[MessageType]bool{
	TypeGameState:          true,
	TypeGameUpdate:         true,
	TypePlayerConnected:    true,
	TypePlayerJoined:       true,
	TypePlayerDisconnected: true,
	TypeRoomUpdate:         true,
	TypeChat:               true,
	TypeError:              true,
	TypePong:               true,
	TypeGameHistory:        true,
}

// IsInbound reports whether t is a type the server is known to send
func (t MessageType) IsInbound() bool {
	return inboundTypes[t]
}

// Envelope is the {type, data} wrapper every inbound frame arrives in
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode parses a raw frame into an envelope. It does not check the type
// against the known inbound set; that is the dispatcher's job.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedFrame, ErrEmptyType)
	}
	return env, nil
}

// Payload decodes the envelope data as a JSON object. Missing or null data
// yields an empty map.
func (e Envelope) Payload() (map[string]any, error) {
	trimmed := bytes.TrimSpace(e.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}

	var payload map[string]any
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, fmt.Errorf("%w: data for %q is not an object: %v", ErrMalformedFrame, e.Type, err)
	}
	return payload, nil
}
