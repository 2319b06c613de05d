package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelay(t *testing.T) {
	cfg := DefaultConnectionConfig()

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second, 8 * time.Second}
	for attempt, d := range want {
		assert.Equal(t, d, cfg.BackoffDelay(attempt), "attempt %d", attempt)
	}

	for attempt := 1; attempt <= 10; attempt++ {
		assert.GreaterOrEqual(t, cfg.BackoffDelay(attempt), cfg.BackoffDelay(attempt-1))
	}
	assert.Equal(t, time.Second, cfg.BackoffDelay(-3))
}

func TestURLFor(t *testing.T) {
	cfg := DefaultConnectionConfig()
	cfg.BaseURL = "wss://poker.example.com/api"

	u, err := cfg.URLFor("room 7", "a+b")
	require.NoError(t, err)
	assert.Equal(t, "wss://poker.example.com/api/ws/game/room%207?token=a%2Bb", u)

	cfg.BaseURL = "://bad"
	_, err = cfg.URLFor("R1", "tok")
	assert.Error(t, err)
}

func TestClassifyClose(t *testing.T) {
	for _, tc := range []struct {
		code   int
		reason string
		want   ErrorKind
	}{
		{1008, "Invalid token", ErrorAuth},
		{1008, "Authentication failed", ErrorAuth},
		{403, "Token expired", ErrorAuth},
		{1008, "Not a member of this room", ErrorRoomAccess},
		{403, "Access denied", ErrorRoomAccess},
		{401, "", ErrorAuth},
		{1008, "rate limited", ErrorConnection},
		{1006, "Invalid token", ErrorConnection},
		{1000, "", ErrorConnection},
		{1011, "room crashed", ErrorConnection},
	} {
		assert.Equal(t, tc.want, classifyClose(tc.code, tc.reason), "%d %q", tc.code, tc.reason)
	}
}

func TestCloseDetails(t *testing.T) {
	code, reason := closeDetails(&websocket.CloseError{Code: 1008, Text: "Invalid token"})
	assert.Equal(t, 1008, code)
	assert.Equal(t, "Invalid token", reason)

	code, reason = closeDetails(errors.New("connection reset"))
	assert.Equal(t, websocket.CloseAbnormalClosure, code)
	assert.Equal(t, "connection reset", reason)
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebsocketDialerHandshakeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not a member of this room", http.StatusForbidden)
	}))
	defer server.Close()

	d := NewWebsocketDialer(DefaultConnectionConfig())
	_, err := d.Dial(context.Background(), wsURL(server)+"/ws/game/R1?token=tok")

	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, http.StatusForbidden, ce.Code)
	assert.Equal(t, "not a member of this room", ce.Text)
	assert.Equal(t, ErrorRoomAccess, classifyClose(closeDetails(err)))
}

func TestWebsocketDialerExchangesFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, msg)
	}))
	defer server.Close()

	d := NewWebsocketDialer(DefaultConnectionConfig())

	_, err := d.Dial(context.Background(), wsURL(server)+"/ws/game/R1?token=nope")
	assert.Equal(t, ErrorAuth, classifyClose(closeDetails(err)))

	sock, err := d.Dial(context.Background(), wsURL(server)+"/ws/game/R1?token=tok")
	require.NoError(t, err)
	defer sock.Close()

	require.NoError(t, sock.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","timestamp":1}`)))
	mt, msg, err := sock.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.JSONEq(t, `{"type":"ping","timestamp":1}`, string(msg))
}
