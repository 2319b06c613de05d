package client

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushed struct {
	roomID  string
	kind    UpdateKind
	payload map[string]any
}

type flushLog struct {
	mu  sync.Mutex
	all []flushed
	ch  chan flushed
}

func newFlushLog() *flushLog {
	return &flushLog{ch: make(chan flushed, 64)}
}

func (l *flushLog) apply(roomID string, kind UpdateKind, payload map[string]any) {
	l.mu.Lock()
	l.all = append(l.all, flushed{roomID, kind, payload})
	l.mu.Unlock()
	l.ch <- flushed{roomID, kind, payload}
}

func (l *flushLog) wait(t *testing.T) flushed {
	t.Helper()
	select {
	case f := <-l.ch:
		return f
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for flush")
		return flushed{}
	}
}

func (l *flushLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.all)
}

func TestCoalescerCollapsesWindowToLatest(t *testing.T) {
	clock := clockwork.NewFakeClock()
	log := newFlushLog()
	c := NewCoalescer(100*time.Millisecond, clock, log.apply, testLogger())

	for _, pot := range []int{10, 12, 14, 16, 18} {
		c.Enqueue("R1", KindGameState, map[string]any{"pot": pot})
		clock.Advance(10 * time.Millisecond)
	}
	assert.Equal(t, 1, c.Pending("R1"))
	assert.Equal(t, 0, log.count())

	blockUntil(t, clock, 1)
	clock.Advance(100 * time.Millisecond)

	f := log.wait(t)
	assert.Equal(t, "R1", f.roomID)
	assert.Equal(t, KindGameState, f.kind)
	assert.Equal(t, 18, f.payload["pot"])

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, log.count(), "exactly one flush")
	assert.Equal(t, 0, c.Pending("R1"))
}

func TestCoalescerFlushesInKindOrder(t *testing.T) {
	clock := clockwork.NewFakeClock()
	log := newFlushLog()
	c := NewCoalescer(100*time.Millisecond, clock, log.apply, testLogger())

	c.Enqueue("R1", KindPlayerAction, map[string]any{"action": "fold"})
	c.Enqueue("R1", KindGameUpdate, map[string]any{"n": 1})
	c.Enqueue("R1", KindGameState, map[string]any{"pot": 5})
	c.Enqueue("R1", KindGameUpdate, map[string]any{"n": 2})

	assert.Equal(t, 3, c.Flush("R1"))
	require.Len(t, log.all, 3)
	assert.Equal(t, KindGameState, log.all[0].kind)
	assert.Equal(t, KindGameUpdate, log.all[1].kind)
	assert.Equal(t, 2, log.all[1].payload["n"])
	assert.Equal(t, KindPlayerAction, log.all[2].kind)

	assert.Equal(t, 0, c.Flush("R1"), "queue is cleared")
}

func TestCoalescerRoomsAreIndependent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	log := newFlushLog()
	c := NewCoalescer(100*time.Millisecond, clock, log.apply, testLogger())

	c.Enqueue("R1", KindGameState, map[string]any{"pot": 1})
	clock.Advance(60 * time.Millisecond)
	c.Enqueue("R2", KindGameState, map[string]any{"pot": 2})

	blockUntil(t, clock, 2)
	clock.Advance(50 * time.Millisecond)
	f := log.wait(t)
	assert.Equal(t, "R1", f.roomID, "R2's window restart does not delay R1")
	assert.Equal(t, 1, c.Pending("R2"))

	clock.Advance(60 * time.Millisecond)
	f = log.wait(t)
	assert.Equal(t, "R2", f.roomID)
}

func TestCoalescerDropDiscardsQueue(t *testing.T) {
	clock := clockwork.NewFakeClock()
	log := newFlushLog()
	c := NewCoalescer(100*time.Millisecond, clock, log.apply, testLogger())

	c.Enqueue("R1", KindGameState, map[string]any{"pot": 1})
	c.Drop("R1")
	clock.Advance(time.Second)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, log.count())
	assert.Equal(t, 0, c.Pending("R1"))
}

func TestUpdateKindString(t *testing.T) {
	assert.Equal(t, "gameState", KindGameState.String())
	assert.Equal(t, "playerAction", KindPlayerAction.String())
	assert.Equal(t, "UpdateKind(9)", UpdateKind(9).String())
}
