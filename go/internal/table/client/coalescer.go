package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// UpdateKind is the category an update is coalesced under. Lower values flush first.
type UpdateKind int

const (
	KindGameState UpdateKind = iota
	KindGameUpdate
	KindPlayerAction
)

var flushOrder = []UpdateKind{KindGameState, KindGameUpdate, KindPlayerAction}

func (k UpdateKind) String() string {
	switch k {
	case KindGameState:
		return "gameState"
	case KindGameUpdate:
		return "gameUpdate"
	case KindPlayerAction:
		return "playerAction"
	}
	return fmt.Sprintf("UpdateKind(%d)", int(k))
}

// FlushFunc applies one coalesced update
type FlushFunc func(roomID string, kind UpdateKind, payload map[string]any)

// Coalescer buffers rapid updates per room and applies the latest payload of
// each kind once per debounce window, in fixed kind order.
type Coalescer struct {
	mu     sync.Mutex
	window time.Duration
	clock  clockwork.Clock
	apply  FlushFunc
	rooms  map[string]*roomQueue
	logger zerolog.Logger
}

type roomQueue struct {
	pending map[UpdateKind]map[string]any
	timer   clockwork.Timer
	seq     uint64

	// held for the whole of a flush so flushes of one room never overlap
	flushMu sync.Mutex
}

// NewCoalescer creates a coalescer that hands flushed updates to apply
func NewCoalescer(window time.Duration, clock clockwork.Clock, apply FlushFunc, logger zerolog.Logger) *Coalescer {
	return &Coalescer{
		window: window,
		clock:  clock,
		apply:  apply,
		rooms:  make(map[string]*roomQueue),
		logger: logger,
	}
}

// Enqueue stores payload as the latest update of kind for roomID and restarts
// the room's debounce timer
func (c *Coalescer) Enqueue(roomID string, kind UpdateKind, payload map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.rooms[roomID]
	if !ok {
		q = &roomQueue{pending: make(map[UpdateKind]map[string]any)}
		c.rooms[roomID] = q
	}

	if _, overwritten := q.pending[kind]; overwritten {
		c.logger.Debug().
			Str("room_id", roomID).
			Str("kind", kind.String()).
			Msg("coalesced update")
	}
	q.pending[kind] = payload

	if q.timer != nil {
		q.timer.Stop()
	}
	q.seq++
	seq := q.seq
	q.timer = c.clock.AfterFunc(c.window, func() { c.fire(roomID, q, seq) })
}

// Pending returns the number of kinds waiting for roomID
func (c *Coalescer) Pending(roomID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if q, ok := c.rooms[roomID]; ok {
		return len(q.pending)
	}
	return 0
}

func (c *Coalescer) fire(roomID string, q *roomQueue, seq uint64) {
	c.mu.Lock()
	stale := c.rooms[roomID] != q || q.seq != seq
	c.mu.Unlock()
	if stale {
		return
	}
	c.Flush(roomID)
}

// Flush applies every queued kind of roomID now, in priority order, and clears
// the queue. It returns the number of updates applied.
func (c *Coalescer) Flush(roomID string) int {
	c.mu.Lock()
	q, ok := c.rooms[roomID]
	c.mu.Unlock()
	if !ok {
		return 0
	}

	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	c.mu.Lock()
	pending := q.pending
	q.pending = make(map[UpdateKind]map[string]any)
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.seq++
	c.mu.Unlock()

	applied := 0
	for _, kind := range flushOrder {
		payload, ok := pending[kind]
		if !ok {
			continue
		}
		c.apply(roomID, kind, payload)
		applied++
	}

	if applied > 0 {
		c.logger.Debug().
			Str("room_id", roomID).
			Int("updates", applied).
			Msg("flushed coalesced updates")
	}
	return applied
}

// Drop discards the queue and timer of roomID without applying anything
func (c *Coalescer) Drop(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if q, ok := c.rooms[roomID]; ok {
		if q.timer != nil {
			q.timer.Stop()
		}
		delete(c.rooms, roomID)
	}
}

// Stop discards every queue
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, q := range c.rooms {
		if q.timer != nil {
			q.timer.Stop()
		}
		delete(c.rooms, id)
	}
}
