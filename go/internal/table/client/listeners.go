package client

import (
	"sync"

	"github.com/mcdev12/tablesync/go/internal/table/gamestate"
	"github.com/rs/zerolog"
)

// Handler receives emitted events
type Handler func(Event)

// RoomHandler receives the coalesced, deduplicated state of one room
type RoomHandler func(gamestate.State)

type listener struct {
	id uint64
	fn Handler
}

// Subscription identifies one On registration
type Subscription struct {
	id       uint64
	event    EventType
	registry *ListenerRegistry
}

// Unsubscribe removes the handler. Calling it more than once is harmless.
func (s Subscription) Unsubscribe() {
	if s.registry != nil {
		s.registry.Off(s)
	}
}

// ListenerRegistry keeps event subscriptions and the per-room state handlers.
// Listener slices are replaced on every change and never modified in place, so an
// emission iterates a stable snapshot even if handlers subscribe or unsubscribe.
type ListenerRegistry struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[EventType][]listener
	rooms     map[string]RoomHandler
	logger    zerolog.Logger
}

// NewListenerRegistry creates an empty registry
func NewListenerRegistry(logger zerolog.Logger) *ListenerRegistry {
	return &ListenerRegistry{
		listeners: make(map[EventType][]listener),
		rooms:     make(map[string]RoomHandler),
		logger:    logger,
	}
}

// On appends a handler for event
func (r *ListenerRegistry) On(event EventType, h Handler) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	cur := r.listeners[event]
	next := make([]listener, len(cur), len(cur)+1)
	copy(next, cur)
	r.listeners[event] = append(next, listener{id: r.nextID, fn: h})

	return Subscription{id: r.nextID, event: event, registry: r}
}

// Off removes the handler registered by sub
func (r *ListenerRegistry) Off(sub Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.listeners[sub.event]
	next := make([]listener, 0, len(cur))
	for _, l := range cur {
		if l.id != sub.id {
			next = append(next, l)
		}
	}
	if len(next) == 0 {
		delete(r.listeners, sub.event)
		return
	}
	r.listeners[sub.event] = next
}

// Count returns the number of handlers for event
func (r *ListenerRegistry) Count(event EventType) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners[event])
}

// RegisterRoomHandler binds the single state handler of a room, replacing any
// earlier registration for the same id
func (r *ListenerRegistry) RegisterRoomHandler(roomID string, h RoomHandler) {
	r.mu.Lock()
	_, replaced := r.rooms[roomID]
	r.rooms[roomID] = h
	r.mu.Unlock()

	if replaced {
		r.logger.Debug().Str("room_id", roomID).Msg("room handler replaced")
	}
}

// UnregisterRoomHandler removes the state handler of a room
func (r *ListenerRegistry) UnregisterRoomHandler(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.rooms[roomID]
	delete(r.rooms, roomID)
	return ok
}

// Emit invokes every handler for ev.Type. A panicking handler is logged and
// does not stop the remaining handlers.
func (r *ListenerRegistry) Emit(ev Event) {
	r.mu.RLock()
	snapshot := r.listeners[ev.Type]
	r.mu.RUnlock()

	for _, l := range snapshot {
		r.invoke(ev, l)
	}
}

// EmitRoomState delivers state to the room's handler, if one is registered
func (r *ListenerRegistry) EmitRoomState(roomID string, state gamestate.State) bool {
	r.mu.RLock()
	h, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Interface("panic", rec).
				Str("room_id", roomID).
				Msg("room handler panicked")
		}
	}()
	h(state)
	return true
}

// Clear drops every subscription and room handler
func (r *ListenerRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = make(map[EventType][]listener)
	r.rooms = make(map[string]RoomHandler)
}

func (r *ListenerRegistry) invoke(ev Event, l listener) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Interface("panic", rec).
				Str("event_type", string(ev.Type)).
				Uint64("listener_id", l.id).
				Msg("event handler panicked")
		}
	}()
	l.fn(ev)
}
