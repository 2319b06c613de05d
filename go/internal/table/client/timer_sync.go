package client

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tablesync/go/internal/table/gamestate"
	"github.com/rs/zerolog"
)

// Turn timer synchronization
//
// The server reports how many seconds the current player has left. The client
// records that value together with the local instant it was learned (the
// anchor) and derives every displayed value from wall-clock time elapsed since
// the anchor. A tick only triggers a recomputation, so a late or skipped tick
// (suspended process, GC pause) never makes the countdown drift.

// TurnTimerAnchor is a server remaining-time snapshot pinned to a local instant
type TurnTimerAnchor struct {
	PlayerIndex             int       `json:"player_index"`
	AnchorTimestamp         time.Time `json:"anchor_timestamp"`
	InitialRemainingSeconds int       `json:"initial_remaining_seconds"`
	TotalSeconds            int       `json:"total_seconds"`
}

// RemainingAt returns the seconds left at now, never negative
func (a TurnTimerAnchor) RemainingAt(now time.Time) int {
	elapsed := int(now.Sub(a.AnchorTimestamp) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	return max(0, a.InitialRemainingSeconds-elapsed)
}

type armedAnchor struct {
	TurnTimerAnchor
	turn turnKey
	done chan struct{}
}

// turnKey identifies one turn. The same player acting again on a later
// street with the same reported time is a new turn.
type turnKey struct {
	player    int
	phase     string
	cards     int
	remaining int
}

// TurnTimerSynchronizer owns the turn anchors of each room and emits
// EventTimerUpdate. Nothing else decrements a countdown.
type TurnTimerSynchronizer struct {
	mu           sync.Mutex
	clock        clockwork.Clock
	tick         time.Duration
	defaultTotal int
	active       map[string]*armedAnchor
	stopped      bool
	listeners    *ListenerRegistry
	logger       zerolog.Logger
}

// NewTurnTimerSynchronizer creates a synchronizer ticking every tick
func NewTurnTimerSynchronizer(tick time.Duration, defaultTotal int, clock clockwork.Clock, listeners *ListenerRegistry, logger zerolog.Logger) *TurnTimerSynchronizer {
	return &TurnTimerSynchronizer{
		clock:        clock,
		tick:         tick,
		defaultTotal: defaultTotal,
		active:       make(map[string]*armedAnchor),
		listeners:    listeners,
		logger:       logger,
	}
}

// Sync arms, keeps or discards the room's anchor based on a canonical state
func (t *TurnTimerSynchronizer) Sync(roomID string, state gamestate.State) {
	if !state.InBettingRound() || state.CurrentPlayerIndex == gamestate.NoPlayer {
		t.Disarm(roomID)
		return
	}
	if !state.HasTurn() {
		return
	}

	turn := turnKey{
		player:    state.CurrentPlayerIndex,
		phase:     state.Phase,
		cards:     state.CommunityCardCount,
		remaining: *state.TurnTimeRemaining,
	}
	total := state.TurnTimeTotal
	if total <= 0 {
		total = t.defaultTotal
	}

	t.mu.Lock()
	cur, ok := t.active[roomID]
	t.mu.Unlock()
	if ok && cur.turn == turn {
		return
	}
	t.arm(roomID, turn, total)
}

// Arm replaces the room's anchor and restarts the tick loop
func (t *TurnTimerSynchronizer) Arm(roomID string, playerIndex, remainingSeconds, totalSeconds int) {
	t.arm(roomID, turnKey{player: playerIndex, remaining: remainingSeconds}, totalSeconds)
}

func (t *TurnTimerSynchronizer) arm(roomID string, turn turnKey, totalSeconds int) {
	anchor := &armedAnchor{
		TurnTimerAnchor: TurnTimerAnchor{
			PlayerIndex:             turn.player,
			AnchorTimestamp:         t.clock.Now(),
			InitialRemainingSeconds: max(0, turn.remaining),
			TotalSeconds:            totalSeconds,
		},
		turn: turn,
		done: make(chan struct{}),
	}

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	if old, ok := t.active[roomID]; ok {
		close(old.done)
	}
	running := anchor.InitialRemainingSeconds > 0
	if running {
		t.active[roomID] = anchor
	} else {
		delete(t.active, roomID)
	}
	var ticker clockwork.Ticker
	if running {
		ticker = t.clock.NewTicker(t.tick)
	}
	t.mu.Unlock()

	t.logger.Debug().
		Str("room_id", roomID).
		Int("player_index", turn.player).
		Str("phase", turn.phase).
		Int("remaining", anchor.InitialRemainingSeconds).
		Msg("turn timer armed")

	t.emit(roomID, anchor.TurnTimerAnchor, anchor.InitialRemainingSeconds)
	if running {
		go t.run(roomID, anchor, ticker)
	}
}

// Disarm discards the room's anchor, if any
func (t *TurnTimerSynchronizer) Disarm(roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if a, ok := t.active[roomID]; ok {
		close(a.done)
		delete(t.active, roomID)
		t.logger.Debug().Str("room_id", roomID).Msg("turn timer disarmed")
	}
}

// Current returns the room's live anchor
func (t *TurnTimerSynchronizer) Current(roomID string) (TurnTimerAnchor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if a, ok := t.active[roomID]; ok {
		return a.TurnTimerAnchor, true
	}
	return TurnTimerAnchor{}, false
}

// Stop discards every anchor. Later arms are ignored.
func (t *TurnTimerSynchronizer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for id, a := range t.active {
		close(a.done)
		delete(t.active, id)
	}
}

func (t *TurnTimerSynchronizer) run(roomID string, anchor *armedAnchor, ticker clockwork.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-anchor.done:
			return
		case <-ticker.Chan():
		}

		t.mu.Lock()
		if t.active[roomID] != anchor {
			// superseded by a newer anchor
			t.mu.Unlock()
			return
		}
		remaining := anchor.RemainingAt(t.clock.Now())
		if remaining == 0 {
			delete(t.active, roomID)
		}
		t.mu.Unlock()

		t.emit(roomID, anchor.TurnTimerAnchor, remaining)
		if remaining == 0 {
			return
		}
	}
}

func (t *TurnTimerSynchronizer) emit(roomID string, anchor TurnTimerAnchor, remaining int) {
	t.listeners.Emit(Event{
		Type:   EventTimerUpdate,
		RoomID: roomID,
		Data: TimerUpdate{
			PlayerIndex: anchor.PlayerIndex,
			Remaining:   remaining,
			Total:       anchor.TotalSeconds,
		},
	})
}
