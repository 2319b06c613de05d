package client

import (
	"github.com/mcdev12/tablesync/go/internal/table/envelope"
	"github.com/mcdev12/tablesync/go/internal/table/gamestate"
	"github.com/rs/zerolog"
)

// Dispatcher decodes inbound frames and routes them to the coalescer or
// straight to subscribers. It is the only place a wire payload becomes a
// canonical state.
type Dispatcher struct {
	listeners *ListenerRegistry
	coalescer *Coalescer
	detector  *ChangeDetector
	timers    *TurnTimerSynchronizer
	notifier  Notifier
	alive     func()
	logger    zerolog.Logger
}

// NewDispatcher wires a dispatcher. alive is called for every pong.
func NewDispatcher(listeners *ListenerRegistry, detector *ChangeDetector, timers *TurnTimerSynchronizer, notifier Notifier, alive func(), logger zerolog.Logger) *Dispatcher {
	if alive == nil {
		alive = func() {}
	}
	return &Dispatcher{
		listeners: listeners,
		detector:  detector,
		timers:    timers,
		notifier:  notifier,
		alive:     alive,
		logger:    logger,
	}
}

// SetCoalescer installs the queue that game_state and game_update frames go through
func (d *Dispatcher) SetCoalescer(c *Coalescer) {
	d.coalescer = c
}

// HandleFrame processes one inbound text frame received on the socket of
// socketRoom. Malformed frames become a protocol error event; nothing panics
// back into the read loop.
func (d *Dispatcher) HandleFrame(socketRoom string, raw []byte) {
	env, err := envelope.Decode(raw)
	if err != nil {
		d.protocolError(socketRoom, err)
		return
	}
	if !env.Type.IsInbound() {
		d.logger.Warn().
			Str("room_id", socketRoom).
			Str("message_type", string(env.Type)).
			Msg("dropping unknown message type")
		return
	}
	payload, err := env.Payload()
	if err != nil {
		d.protocolError(socketRoom, err)
		return
	}
	roomID := gamestate.RoomIDOf(payload, socketRoom)

	d.logger.Debug().
		Str("room_id", roomID).
		Str("message_type", string(env.Type)).
		Msg("inbound frame")

	switch env.Type {
	case envelope.TypeGameState:
		d.coalescer.Enqueue(roomID, KindGameState, payload)

	case envelope.TypeGameUpdate:
		if _, ok := payload["action"]; ok {
			d.coalescer.Enqueue(roomID, KindPlayerAction, payload)
		} else {
			d.coalescer.Enqueue(roomID, KindGameUpdate, payload)
		}
		if nested, ok := payload["game_state"].(map[string]any); ok {
			d.coalescer.Enqueue(roomID, KindGameState, nested)
		}

	case envelope.TypePlayerConnected, envelope.TypePlayerJoined:
		d.emit(EventPlayerJoined, roomID, payload)

	case envelope.TypePlayerDisconnected:
		d.emit(EventPlayerLeft, roomID, payload)

	case envelope.TypeRoomUpdate:
		d.handleRoomUpdate(roomID, payload)

	case envelope.TypeChat:
		d.emit(EventChat, roomID, payload)

	case envelope.TypeGameHistory:
		d.emit(EventGameHistory, roomID, payload)

	case envelope.TypeError:
		d.handleServerError(roomID, payload)

	case envelope.TypePong:
		d.alive()
	}
}

// Apply is the coalescer's flush function
func (d *Dispatcher) Apply(roomID string, kind UpdateKind, payload map[string]any) {
	switch kind {
	case KindGameState:
		state := gamestate.Normalize(roomID, payload)
		d.timers.Sync(roomID, state)
		if d.detector.ShouldDeliver(roomID, state) {
			d.deliverState(roomID, state)
		}

	case KindGameUpdate:
		d.emit(EventGameUpdate, roomID, payload)

	case KindPlayerAction:
		d.emit(EventPlayerAction, roomID, payload)
	}
}

// deliverState hands a canonical state to subscribers. The change detector
// calls it too, for throttled changes whose spacing window has passed.
func (d *Dispatcher) deliverState(roomID string, state gamestate.State) {
	d.emit(EventGameState, roomID, state)
	d.listeners.EmitRoomState(roomID, state)
}

// room_update is an authoritative snapshot and is never held behind a
// pending coalescing window
func (d *Dispatcher) handleRoomUpdate(roomID string, payload map[string]any) {
	state := gamestate.Normalize(roomID, payload)
	d.detector.Observe(roomID, state)
	d.timers.Sync(roomID, state)

	d.emit(EventRoomUpdate, roomID, RoomUpdatePayload{State: state, Raw: payload})
	d.listeners.EmitRoomState(roomID, state)
}

func (d *Dispatcher) handleServerError(roomID string, payload map[string]any) {
	message, _ := payload["message"].(string)
	if message == "" {
		message, _ = payload["error"].(string)
	}
	if message == "" {
		message = "server error"
	}

	d.logger.Warn().Str("room_id", roomID).Str("message", message).Msg("server reported error")
	d.emit(EventError, roomID, ErrorPayload{Kind: ErrorServer, Message: message})
	if d.notifier != nil {
		d.notifier.Notify(message)
	}
}

func (d *Dispatcher) protocolError(roomID string, err error) {
	d.logger.Warn().Err(err).Str("room_id", roomID).Msg("dropping malformed frame")
	d.emit(EventError, roomID, ErrorPayload{Kind: ErrorProtocol, Message: err.Error()})
}

func (d *Dispatcher) emit(t EventType, roomID string, data any) {
	d.listeners.Emit(Event{Type: t, RoomID: roomID, Data: data})
}
