package client

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tablesync/go/internal/table/gamestate"
	"github.com/rs/zerolog"
)

// ChangeDetector suppresses re-delivery of states that did not change anything
// an observer cares about. Key updates are never suppressed. A changed state
// throttled by the spacing window is owed: the latest one is handed to the
// trailing handler once the window has passed.
type ChangeDetector struct {
	mu         sync.Mutex
	clock      clockwork.Clock
	minSpacing time.Duration
	rooms      map[string]roomSnapshot
	trailing   map[string]*trailingDelivery
	onTrailing func(roomID string, state gamestate.State)
	stopped    bool
	logger     zerolog.Logger
}

// roomSnapshot is replaced as a whole after every decision
type roomSnapshot struct {
	fingerprint   gamestate.Fingerprint
	state         gamestate.State
	lastDelivered time.Time
	owed          bool // state changed but was throttled
}

type trailingDelivery struct {
	timer clockwork.Timer
}

// NewChangeDetector creates a detector that throttles non-key changes closer than minSpacing
func NewChangeDetector(minSpacing time.Duration, clock clockwork.Clock, logger zerolog.Logger) *ChangeDetector {
	return &ChangeDetector{
		clock:      clock,
		minSpacing: minSpacing,
		rooms:      make(map[string]roomSnapshot),
		trailing:   make(map[string]*trailingDelivery),
		logger:     logger,
	}
}

// SetTrailingHandler installs the receiver of owed states. Call before use.
func (d *ChangeDetector) SetTrailingHandler(fn func(roomID string, state gamestate.State)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onTrailing = fn
}

// ShouldDeliver decides whether state reaches subscribers. The stored
// fingerprint and state are replaced with the current ones either way. A
// throttled change schedules one trailing delivery of the latest state.
func (d *ChangeDetector) ShouldDeliver(roomID string, state gamestate.State) bool {
	fp := gamestate.FingerprintOf(state)
	now := d.clock.Now()

	d.mu.Lock()
	prev, seen := d.rooms[roomID]

	var deliver bool
	var reason string
	switch {
	case !seen:
		deliver, reason = true, "first"
	case gamestate.IsKeyUpdate(prev.state, state):
		deliver, reason = true, "key_update"
	case fp == prev.fingerprint:
		deliver, reason = false, "unchanged"
	case now.Sub(prev.lastDelivered) < d.minSpacing:
		deliver, reason = false, "throttled"
	default:
		deliver, reason = true, "changed"
	}

	next := roomSnapshot{fingerprint: fp, state: state, lastDelivered: prev.lastDelivered, owed: prev.owed}
	switch {
	case deliver:
		next.lastDelivered = now
		next.owed = false
		d.cancelTrailingLocked(roomID)
	case reason == "throttled":
		next.owed = true
		d.scheduleTrailingLocked(roomID, prev.lastDelivered.Add(d.minSpacing).Sub(now))
	}
	d.rooms[roomID] = next
	d.mu.Unlock()

	d.logger.Debug().
		Str("room_id", roomID).
		Bool("deliver", deliver).
		Str("reason", reason).
		Msg("change detection")

	return deliver
}

// Observe records state as delivered without making a decision. Used for
// authoritative snapshots that bypass suppression.
func (d *ChangeDetector) Observe(roomID string, state gamestate.State) {
	snap := roomSnapshot{
		fingerprint:   gamestate.FingerprintOf(state),
		state:         state,
		lastDelivered: d.clock.Now(),
	}

	d.mu.Lock()
	d.cancelTrailingLocked(roomID)
	d.rooms[roomID] = snap
	d.mu.Unlock()
}

// Last returns the most recent state seen for roomID
func (d *ChangeDetector) Last(roomID string) (gamestate.State, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	snap, ok := d.rooms[roomID]
	return snap.state, ok
}

// Forget drops what is known about roomID
func (d *ChangeDetector) Forget(roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelTrailingLocked(roomID)
	delete(d.rooms, roomID)
}

// Stop cancels every pending trailing delivery. Later throttled changes are
// dropped without one.
func (d *ChangeDetector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for id := range d.trailing {
		d.cancelTrailingLocked(id)
	}
}

// scheduleTrailingLocked arms the room's trailing timer unless one is pending.
// The pending timer delivers whatever state is latest when it fires.
func (d *ChangeDetector) scheduleTrailingLocked(roomID string, delay time.Duration) {
	if d.stopped {
		return
	}
	if _, ok := d.trailing[roomID]; ok {
		return
	}
	td := &trailingDelivery{}
	td.timer = d.clock.AfterFunc(max(0, delay), func() { d.deliverOwed(roomID, td) })
	d.trailing[roomID] = td
}

func (d *ChangeDetector) cancelTrailingLocked(roomID string) {
	if td, ok := d.trailing[roomID]; ok {
		td.timer.Stop()
		delete(d.trailing, roomID)
	}
}

func (d *ChangeDetector) deliverOwed(roomID string, td *trailingDelivery) {
	d.mu.Lock()
	if d.trailing[roomID] != td {
		d.mu.Unlock()
		return
	}
	delete(d.trailing, roomID)
	snap, ok := d.rooms[roomID]
	if !ok || !snap.owed {
		d.mu.Unlock()
		return
	}
	snap.owed = false
	snap.lastDelivered = d.clock.Now()
	d.rooms[roomID] = snap
	handler := d.onTrailing
	d.mu.Unlock()

	d.logger.Debug().
		Str("room_id", roomID).
		Str("reason", "trailing").
		Msg("change detection")

	if handler != nil {
		handler(roomID, snap.state)
	}
}
