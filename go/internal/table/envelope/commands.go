package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownAction is returned when a command names an action the server does not accept
var ErrUnknownAction = errors.New("unknown action")

// Command is an outbound message. Every command encodes to one flat JSON object
// whose `type` field is CommandType().
type Command interface {
	CommandType() MessageType
}

// GameActionKind is a player action inside a hand
type GameActionKind string

const (
	ActionFold    GameActionKind = "fold"
	ActionCheck   GameActionKind = "check"
	ActionCall    GameActionKind = "call"
	ActionBet     GameActionKind = "bet"
	ActionRaise   GameActionKind = "raise"
	ActionDiscard GameActionKind = "discard"
)

// RoomActionKind is a seat or table management action
type RoomActionKind string

const (
	RoomSitDown        RoomActionKind = "sit_down"
	RoomBuyIn          RoomActionKind = "buy_in"
	RoomStandUp        RoomActionKind = "stand_up"
	RoomChangeSeat     RoomActionKind = "change_seat"
	RoomStartGame      RoomActionKind = "start_game"
	RoomGetGameHistory RoomActionKind = "get_game_history"
	RoomGetGameState   RoomActionKind = "get_game_state"
	RoomExitGame       RoomActionKind = "exit_game"
)

var gameActions = map[GameActionKind]bool{
	ActionFold: true, ActionCheck: true, ActionCall: true,
	ActionBet: true, ActionRaise: true, ActionDiscard: true,
}

var roomActions = map[RoomActionKind]bool{
	RoomSitDown: true, RoomBuyIn: true, RoomStandUp: true, RoomChangeSeat: true,
	RoomStartGame: true, RoomGetGameHistory: true, RoomGetGameState: true, RoomExitGame: true,
}

// Ping is the heartbeat command
type Ping struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`
}

// NewPing creates a ping stamped with at in unix milliseconds
func NewPing(at time.Time) Ping {
	return Ping{Type: TypePing, Timestamp: at.UnixMilli()}
}

func (p Ping) CommandType() MessageType { return p.Type }

// Chat sends a table chat line
type Chat struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// NewChat creates a chat command
func NewChat(message string) Chat {
	return Chat{Type: TypeChat, Message: message}
}

func (c Chat) CommandType() MessageType { return c.Type }

// GameAction is a player's in-hand action
type GameAction struct {
	Type      MessageType    `json:"type"`
	Action    GameActionKind `json:"action"`
	Amount    *int           `json:"amount,omitempty"`
	CardIndex *int           `json:"card_index,omitempty"`
}

// NewGameAction creates an action without amount or card
func NewGameAction(action GameActionKind) GameAction {
	return GameAction{Type: TypeGameAction, Action: action}
}

// WithAmount returns a copy of the action carrying amount
func (a GameAction) WithAmount(amount int) GameAction {
	a.Amount = &amount
	return a
}

// WithCard returns a copy of the action carrying a hand card index
func (a GameAction) WithCard(index int) GameAction {
	a.CardIndex = &index
	return a
}

func (a GameAction) CommandType() MessageType { return a.Type }

// RoomAction is a request about the room rather than the hand. Fields beyond
// Action and RoomID are only sent when the action uses them.
type RoomAction struct {
	Type     MessageType    `json:"type"`
	Action   RoomActionKind `json:"action"`
	RoomID   string         `json:"room_id"`
	Position *int           `json:"position,omitempty"`
	Amount   *int           `json:"amount,omitempty"`
	Username string         `json:"username,omitempty"`
	Limit    *int           `json:"limit,omitempty"`
}

// NewRoomAction creates a room action for roomID
func NewRoomAction(action RoomActionKind, roomID string) RoomAction {
	return RoomAction{Type: TypeRoomAction, Action: action, RoomID: roomID}
}

func (a RoomAction) CommandType() MessageType { return a.Type }

// Encode serializes an outbound command. Commands with an empty type or an
// unknown action are rejected before anything reaches the socket.
func Encode(cmd Command) ([]byte, error) {
	if cmd == nil || cmd.CommandType() == "" {
		return nil, ErrEmptyType
	}

	switch c := cmd.(type) {
	case GameAction:
		if !gameActions[c.Action] {
			return nil, fmt.Errorf("%w: game action %q", ErrUnknownAction, c.Action)
		}
	case RoomAction:
		if !roomActions[c.Action] {
			return nil, fmt.Errorf("%w: room action %q", ErrUnknownAction, c.Action)
		}
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd.CommandType(), err)
	}
	return data, nil
}
