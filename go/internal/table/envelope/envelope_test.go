package envelope

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeGameState(t *testing.T) {
	env, err := Decode([]byte(`{"type":"game_state","data":{"pot":10}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeGameState, env.Type)
	assert.True(t, env.Type.IsInbound())

	payload, err := env.Payload()
	require.NoError(t, err)
	assert.Equal(t, float64(10), payload["pot"])
}

func TestDecodeRejectsBadFrames(t *testing.T) {
	cases := map[string]string{
		"not json":     `{"type":`,
		"missing type": `{"data":{}}`,
		"empty type":   `{"type":"","data":{}}`,
		"array":        `[1,2,3]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			assert.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestPayloadNullAndNonObject(t *testing.T) {
	env, err := Decode([]byte(`{"type":"pong"}`))
	require.NoError(t, err)
	payload, err := env.Payload()
	require.NoError(t, err)
	assert.Empty(t, payload)

	env, err = Decode([]byte(`{"type":"chat","data":"hello"}`))
	require.NoError(t, err)
	_, err = env.Payload()
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestUnknownTypeIsNotInbound(t *testing.T) {
	assert.False(t, MessageType("table_exploded").IsInbound())
	assert.False(t, TypePing.IsInbound())
}

func TestEncodePing(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	data, err := Encode(NewPing(at))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ping","timestamp":1700000000123}`, string(data))
}

func TestEncodeGameActionOmitsUnusedFields(t *testing.T) {
	data, err := Encode(NewGameAction(ActionFold))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"game_action","action":"fold"}`, string(data))

	data, err = Encode(NewGameAction(ActionRaise).WithAmount(40))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"game_action","action":"raise","amount":40}`, string(data))

	data, err = Encode(NewGameAction(ActionDiscard).WithCard(0))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"game_action","action":"discard","card_index":0}`, string(data))
}

func TestEncodeRoomAction(t *testing.T) {
	seat := 3
	cmd := NewRoomAction(RoomChangeSeat, "R1")
	cmd.Position = &seat

	data, err := Encode(cmd)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "room_action", decoded["type"])
	assert.Equal(t, "change_seat", decoded["action"])
	assert.Equal(t, "R1", decoded["room_id"])
	assert.Equal(t, float64(3), decoded["position"])
	assert.NotContains(t, decoded, "amount")
}

func TestEncodeRejectsEmptyTypeAndUnknownAction(t *testing.T) {
	_, err := Encode(nil)
	assert.ErrorIs(t, err, ErrEmptyType)

	_, err = Encode(Chat{Message: "no type"})
	assert.ErrorIs(t, err, ErrEmptyType)

	_, err = Encode(NewGameAction("shove"))
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = Encode(NewRoomAction("flip_table", "R1"))
	assert.ErrorIs(t, err, ErrUnknownAction)
}
