package client

import (
	"testing"

	"github.com/mcdev12/tablesync/go/internal/table/gamestate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitUsesSnapshotOfHandlers(t *testing.T) {
	r := NewListenerRegistry(testLogger())

	var calls []string
	var late Subscription
	first := r.On(EventChat, func(Event) {
		calls = append(calls, "first")
		late = r.On(EventChat, func(Event) { calls = append(calls, "late") })
	})
	r.On(EventChat, func(Event) { calls = append(calls, "second") })

	r.Emit(Event{Type: EventChat})
	assert.Equal(t, []string{"first", "second"}, calls, "handler added during emission does not run in that emission")

	first.Unsubscribe()
	calls = nil
	r.Emit(Event{Type: EventChat})
	assert.Equal(t, []string{"second", "late"}, calls)

	late.Unsubscribe()
	late.Unsubscribe()
	assert.Equal(t, 1, r.Count(EventChat))
}

func TestUnsubscribeDuringEmission(t *testing.T) {
	r := NewListenerRegistry(testLogger())

	var calls int
	var second Subscription
	r.On(EventChat, func(Event) {
		calls++
		second.Unsubscribe()
	})
	second = r.On(EventChat, func(Event) { calls++ })

	r.Emit(Event{Type: EventChat})
	assert.Equal(t, 2, calls, "removal takes effect from the next emission")

	calls = 0
	r.Emit(Event{Type: EventChat})
	assert.Equal(t, 1, calls)
}

func TestPanickingHandlerDoesNotStopOthers(t *testing.T) {
	r := NewListenerRegistry(testLogger())

	var ran bool
	r.On(EventError, func(Event) { panic("boom") })
	r.On(EventError, func(Event) { ran = true })

	require.NotPanics(t, func() { r.Emit(Event{Type: EventError}) })
	assert.True(t, ran)
}

func TestRegisterRoomHandlerReplaces(t *testing.T) {
	r := NewListenerRegistry(testLogger())

	var h1, h2 int
	r.RegisterRoomHandler("R1", func(gamestate.State) { h1++ })
	r.RegisterRoomHandler("R1", func(gamestate.State) { h2++ })

	assert.True(t, r.EmitRoomState("R1", gamestate.State{RoomID: "R1"}))
	assert.Equal(t, 0, h1)
	assert.Equal(t, 1, h2)

	assert.False(t, r.EmitRoomState("R2", gamestate.State{}))

	assert.True(t, r.UnregisterRoomHandler("R1"))
	assert.False(t, r.UnregisterRoomHandler("R1"))
	assert.False(t, r.EmitRoomState("R1", gamestate.State{}))
}

func TestRoomHandlerPanicIsRecovered(t *testing.T) {
	r := NewListenerRegistry(testLogger())
	r.RegisterRoomHandler("R1", func(gamestate.State) { panic("render failed") })

	assert.NotPanics(t, func() { r.EmitRoomState("R1", gamestate.State{}) })
}

func TestClearDropsEverything(t *testing.T) {
	r := NewListenerRegistry(testLogger())
	r.On(EventChat, func(Event) {})
	r.RegisterRoomHandler("R1", func(gamestate.State) {})

	r.Clear()
	assert.Equal(t, 0, r.Count(EventChat))
	assert.False(t, r.EmitRoomState("R1", gamestate.State{}))
}
