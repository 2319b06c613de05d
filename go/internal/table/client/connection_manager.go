package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tablesync/go/internal/table/envelope"
	"github.com/rs/zerolog"
)

// ConnectionState is the lifecycle state of the table socket
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	case StateReconnecting:
		return "RECONNECTING"
	}
	return fmt.Sprintf("ConnectionState(%d)", int(s))
}

const clientDisconnectReason = "client disconnect"

// ConnectionManager owns the one socket of a client: dialing, heartbeat,
// close classification and bounded reconnection.
type ConnectionManager struct {
	mu sync.Mutex

	config    ConnectionConfig
	dialer    Dialer
	clock     clockwork.Clock
	creds     CredentialStore
	listeners *ListenerRegistry
	logger    zerolog.Logger
	onFrame   func(roomID string, raw []byte)

	ctx    context.Context
	cancel context.CancelFunc

	state      ConnectionState
	roomID     string
	conn       *connection
	generation uint64 // bumped per dial; callbacks from older sockets are ignored

	attempts       int
	reconnectTimer clockwork.Timer
	reconnectSeq   uint64
	explicitClose  bool
	exhausted      bool
	closed         bool
	lastPong       time.Time
}

// connection is one live socket and its pumps
type connection struct {
	id          string
	generation  uint64
	roomID      string
	socket      Socket
	send        chan []byte
	done        chan struct{}
	closeOnce   sync.Once
	connectedAt time.Time
}

func (c *connection) stop() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.socket.Close()
	})
}

// ConnectionStats is a point-in-time view of the connection manager
type ConnectionStats struct {
	State        string    `json:"state"`
	RoomID       string    `json:"room_id"`
	ConnectionID string    `json:"connection_id,omitempty"`
	ConnectedAt  time.Time `json:"connected_at,omitempty"`
	Attempts     int       `json:"reconnect_attempts"`
	LastPong     time.Time `json:"last_pong,omitempty"`
}

// NewConnectionManager creates an idle connection manager
func NewConnectionManager(config ConnectionConfig, dialer Dialer, clock clockwork.Clock, creds CredentialStore, listeners *ListenerRegistry, logger zerolog.Logger) *ConnectionManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &ConnectionManager{
		config:    config,
		dialer:    dialer,
		clock:     clock,
		creds:     creds,
		listeners: listeners,
		logger:    logger,
		onFrame:   func(string, []byte) {},
		ctx:       ctx,
		cancel:    cancel,
		state:     StateIdle,
	}
}

// SetFrameHandler installs the callback receiving every inbound text frame
// along with the room the socket belongs to. Call before Connect.
func (cm *ConnectionManager) SetFrameHandler(fn func(roomID string, raw []byte)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.onFrame = fn
}

// State returns the current connection state
func (cm *ConnectionManager) State() ConnectionState {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.state
}

// RoomID returns the room the manager is bound to
func (cm *ConnectionManager) RoomID() string {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.roomID
}

// Connect opens one socket for roomID, tearing down any prior socket first.
// The dial completes asynchronously and is reported through EventConnect or
// EventDisconnect.
func (cm *ConnectionManager) Connect(roomID string) error {
	if roomID == "" {
		return ErrNoRoom
	}

	cm.mu.Lock()
	if cm.closed {
		cm.mu.Unlock()
		return ErrClientClosed
	}
	prev := cm.conn
	cm.conn = nil
	cm.stopReconnectLocked()
	cm.explicitClose = false
	cm.exhausted = false
	cm.attempts = 0
	cm.roomID = roomID
	err := cm.dialLocked()
	cm.mu.Unlock()

	if prev != nil {
		cm.logger.Info().
			Str("connection_id", prev.id).
			Str("room_id", prev.roomID).
			Msg("tearing down previous socket")
		prev.stop()
	}
	if err != nil {
		cm.failDial(roomID, err)
	}
	return err
}

// Disconnect closes the socket. An explicit disconnect is user-initiated and
// cancels the heartbeat, any pending reconnect and future reconnection.
func (cm *ConnectionManager) Disconnect(explicit bool) {
	cm.mu.Lock()
	if explicit {
		cm.explicitClose = true
		cm.stopReconnectLocked()
	}
	conn := cm.conn
	prevState := cm.state
	cm.conn = nil
	cm.generation++
	gen := cm.generation
	if prevState == StateIdle || prevState == StateClosed || prevState == StateReconnecting {
		if prevState == StateReconnecting && explicit {
			cm.state = StateClosed
		}
		cm.mu.Unlock()
		return
	}
	cm.state = StateClosing
	room := cm.roomID
	cm.mu.Unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, clientDisconnectReason)
		if err := conn.socket.WriteControl(websocket.CloseMessage, msg, time.Now().Add(cm.config.WriteTimeout)); err != nil {
			cm.logger.Debug().Err(err).Str("connection_id", conn.id).Msg("failed to send close frame")
		}
		conn.stop()
	}

	// a Connect while the close frame was being written owns the state now
	cm.mu.Lock()
	superseded := gen != cm.generation
	if !superseded {
		cm.state = StateClosed
	}
	cm.mu.Unlock()

	cm.logger.Info().
		Str("room_id", room).
		Bool("explicit", explicit).
		Msg("socket disconnected by client")

	cm.listeners.Emit(Event{
		Type:   EventDisconnect,
		RoomID: room,
		Data:   DisconnectPayload{Code: websocket.CloseNormalClosure, Reason: clientDisconnectReason},
	})

	if !explicit && !superseded {
		cm.attemptReconnect()
	}
}

// Close disposes the manager. It cannot be reconnected afterwards.
func (cm *ConnectionManager) Close() {
	cm.Disconnect(true)

	cm.mu.Lock()
	cm.closed = true
	cm.mu.Unlock()
	cm.cancel()
}

// Send queues an outbound command. It fails without blocking when the socket is not open.
func (cm *ConnectionManager) Send(cmd envelope.Command) error {
	data, err := envelope.Encode(cmd)
	if err != nil {
		return err
	}

	cm.mu.Lock()
	conn := cm.conn
	state := cm.state
	cm.mu.Unlock()

	if state != StateOpen || conn == nil {
		return ErrNotConnected
	}

	select {
	case <-conn.done:
		return ErrNotConnected
	default:
	}

	select {
	case conn.send <- data:
		return nil
	default:
		cm.logger.Warn().Str("connection_id", conn.id).Msg("send buffer full, dropping frame")
		return ErrSendBufferFull
	}
}

// MarkAlive records an inbound pong
func (cm *ConnectionManager) MarkAlive() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.lastPong = cm.clock.Now()
}

// Stats returns statistics about the connection
func (cm *ConnectionManager) Stats() ConnectionStats {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	stats := ConnectionStats{
		State:    cm.state.String(),
		RoomID:   cm.roomID,
		Attempts: cm.attempts,
		LastPong: cm.lastPong,
	}
	if cm.conn != nil {
		stats.ConnectionID = cm.conn.id
		stats.ConnectedAt = cm.conn.connectedAt
	}
	return stats
}

// dialLocked starts an asynchronous dial for cm.roomID
func (cm *ConnectionManager) dialLocked() error {
	token := cm.creds.Token()
	if token == "" {
		cm.state = StateClosed
		return ErrNoToken
	}

	url, err := cm.config.URLFor(cm.roomID, token)
	if err != nil {
		cm.state = StateClosed
		return err
	}

	cm.generation++
	cm.state = StateConnecting
	go cm.dial(cm.generation, cm.roomID, url)
	return nil
}

func (cm *ConnectionManager) dial(gen uint64, roomID, url string) {
	ctx := cm.ctx
	if cm.config.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cm.config.HandshakeTimeout)
		defer cancel()
	}

	cm.logger.Debug().Str("room_id", roomID).Uint64("generation", gen).Msg("dialing table socket")

	socket, err := cm.dialer.Dial(ctx, url)
	if err != nil {
		code, reason := closeDetails(err)
		cm.logger.Warn().
			Err(err).
			Str("room_id", roomID).
			Int("close_code", code).
			Msg("failed to open table socket")
		cm.handleClose(gen, code, reason)
		return
	}
	cm.handleOpen(gen, roomID, socket)
}

func (cm *ConnectionManager) handleOpen(gen uint64, roomID string, socket Socket) {
	cm.mu.Lock()
	if gen != cm.generation || cm.state != StateConnecting {
		cm.mu.Unlock()
		cm.logger.Debug().Str("room_id", roomID).Msg("discarding superseded socket")
		socket.Close()
		return
	}

	conn := &connection{
		id:          uuid.New().String(),
		generation:  gen,
		roomID:      roomID,
		socket:      socket,
		send:        make(chan []byte, cm.config.SendBufferSize),
		done:        make(chan struct{}),
		connectedAt: cm.clock.Now(),
	}
	reconnected := cm.attempts > 0
	cm.conn = conn
	cm.state = StateOpen
	cm.attempts = 0
	cm.lastPong = time.Time{}
	heartbeat := cm.clock.NewTicker(cm.config.PingInterval)
	onFrame := cm.onFrame
	cm.mu.Unlock()

	go cm.writePump(conn, heartbeat)
	go cm.readPump(conn, onFrame)

	cm.logger.Info().
		Str("connection_id", conn.id).
		Str("room_id", roomID).
		Bool("reconnected", reconnected).
		Msg("table socket connection established")

	cm.listeners.Emit(Event{
		Type:   EventConnect,
		RoomID: roomID,
		Data:   ConnectPayload{RoomID: roomID, ConnectionID: conn.id, Reconnected: reconnected},
	})
}

// handleClose runs once per socket generation, for dial failures and closed sockets alike
func (cm *ConnectionManager) handleClose(gen uint64, code int, reason string) {
	cm.mu.Lock()
	if gen != cm.generation || (cm.state != StateConnecting && cm.state != StateOpen) {
		cm.mu.Unlock()
		return
	}
	conn := cm.conn
	cm.conn = nil
	cm.state = StateClosed
	room := cm.roomID
	explicit := cm.explicitClose
	cm.mu.Unlock()

	if conn != nil {
		conn.stop()
	}

	cm.logger.Info().
		Str("room_id", room).
		Int("close_code", code).
		Str("reason", reason).
		Msg("table socket closed")

	cm.listeners.Emit(Event{
		Type:   EventDisconnect,
		RoomID: room,
		Data:   DisconnectPayload{Code: code, Reason: reason},
	})

	if explicit {
		return
	}

	switch kind := classifyClose(code, reason); kind {
	case ErrorAuth:
		cm.creds.ClearToken()
		cm.logger.Error().Str("room_id", room).Str("reason", reason).Msg("authentication rejected")
		cm.emitError(room, ErrorPayload{Kind: kind, Message: reason, Code: code, Fatal: true})
	case ErrorRoomAccess:
		cm.logger.Error().Str("room_id", room).Str("reason", reason).Msg("room access rejected")
		cm.emitError(room, ErrorPayload{Kind: kind, Message: reason, Code: code, Fatal: true})
	default:
		cm.emitError(room, ErrorPayload{Kind: ErrorConnection, Message: reason, Code: code})
		cm.attemptReconnect()
	}
}

// attemptReconnect schedules the next reconnect, or raises the single terminal
// error once attempts are exhausted. At most one reconnect timer is pending.
func (cm *ConnectionManager) attemptReconnect() {
	cm.mu.Lock()
	if cm.explicitClose || cm.closed {
		cm.mu.Unlock()
		return
	}
	room := cm.roomID

	if cm.attempts >= cm.config.MaxReconnectAttempts {
		cm.stopReconnectLocked()
		alreadyRaised := cm.exhausted
		cm.exhausted = true
		attempts := cm.attempts
		cm.mu.Unlock()

		if !alreadyRaised {
			cm.logger.Error().
				Str("room_id", room).
				Int("attempts", attempts).
				Msg("reconnect attempts exhausted")
			cm.emitError(room, ErrorPayload{
				Kind:    ErrorReconnectFailed,
				Message: fmt.Sprintf("could not reconnect after %d attempts", attempts),
				Fatal:   true,
			})
		}
		return
	}

	cm.attempts++
	attempt := cm.attempts
	delay := cm.config.BackoffDelay(attempt)
	cm.stopReconnectLocked()
	cm.reconnectSeq++
	seq := cm.reconnectSeq
	cm.state = StateReconnecting
	cm.reconnectTimer = cm.clock.AfterFunc(delay, func() { cm.reconnectNow(seq) })
	cm.mu.Unlock()

	cm.logger.Info().
		Str("room_id", room).
		Int("attempt", attempt).
		Dur("delay", delay).
		Msg("scheduled reconnect")

	cm.listeners.Emit(Event{
		Type:   EventReconnect,
		RoomID: room,
		Data:   ReconnectPayload{Attempt: attempt, MaxAttempts: cm.config.MaxReconnectAttempts, Delay: delay},
	})
}

func (cm *ConnectionManager) reconnectNow(seq uint64) {
	cm.mu.Lock()
	if seq != cm.reconnectSeq || cm.explicitClose || cm.closed || cm.state != StateReconnecting {
		cm.mu.Unlock()
		return
	}
	cm.reconnectTimer = nil
	room := cm.roomID
	err := cm.dialLocked()
	cm.mu.Unlock()

	if err != nil {
		cm.failDial(room, err)
	}
}

// stopReconnectLocked cancels any pending reconnect timer
func (cm *ConnectionManager) stopReconnectLocked() {
	cm.reconnectSeq++
	if cm.reconnectTimer != nil {
		cm.reconnectTimer.Stop()
		cm.reconnectTimer = nil
	}
}

func (cm *ConnectionManager) failDial(roomID string, err error) {
	cm.logger.Error().Err(err).Str("room_id", roomID).Msg("cannot open table socket")
	kind := ErrorConnection
	if errors.Is(err, ErrNoToken) {
		kind = ErrorAuth
	}
	cm.emitError(roomID, ErrorPayload{Kind: kind, Message: err.Error(), Fatal: true})
}

func (cm *ConnectionManager) emitError(roomID string, payload ErrorPayload) {
	cm.listeners.Emit(Event{Type: EventError, RoomID: roomID, Data: payload})
}

// writePump sends queued frames and the heartbeat ping
func (cm *ConnectionManager) writePump(c *connection, heartbeat clockwork.Ticker) {
	defer heartbeat.Stop()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			if err := cm.write(c, message); err != nil {
				cm.logger.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to write message to table socket")
				c.socket.Close()
				return
			}

		case <-heartbeat.Chan():
			ping, err := envelope.Encode(envelope.NewPing(cm.clock.Now()))
			if err != nil {
				continue
			}
			if err := cm.write(c, ping); err != nil {
				cm.logger.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to send ping")
				c.socket.Close()
				return
			}
		}
	}
}

func (cm *ConnectionManager) write(c *connection, message []byte) error {
	if cm.config.WriteTimeout > 0 {
		c.socket.SetWriteDeadline(time.Now().Add(cm.config.WriteTimeout))
	}
	return c.socket.WriteMessage(websocket.TextMessage, message)
}

// readPump feeds inbound frames to the dispatcher until the socket closes
func (cm *ConnectionManager) readPump(c *connection, onFrame func(string, []byte)) {
	for {
		messageType, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				cm.logger.Debug().
					Err(err).
					Str("connection_id", c.id).
					Msg("unexpected table socket close")
			}
			code, reason := closeDetails(err)
			cm.handleClose(c.generation, code, reason)
			c.stop()
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		onFrame(c.roomID, message)
	}
}
