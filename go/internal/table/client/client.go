package client

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tablesync/go/internal/table/envelope"
	"github.com/mcdev12/tablesync/go/internal/table/gamestate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Client is one table sync session. Everything it owns hangs off the
// instance, so several clients can live side by side.
type Client struct {
	id     string
	config Config
	logger zerolog.Logger

	clock    clockwork.Clock
	dialer   Dialer
	creds    CredentialStore
	notifier Notifier

	listeners  *ListenerRegistry
	conn       *ConnectionManager
	dispatcher *Dispatcher
	coalescer  *Coalescer
	detector   *ChangeDetector
	timers     *TurnTimerSynchronizer

	mu     sync.Mutex
	closed bool
}

// Option configures a Client
type Option func(*Client)

// WithClock replaces the wall clock, mostly for tests
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithDialer replaces the websocket dialer
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithCredentials sets where the bearer token and username come from
func WithCredentials(creds CredentialStore) Option {
	return func(c *Client) { c.creds = creds }
}

// WithNotifier sets the receiver of server error notifications
func WithNotifier(n Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// ClientStats is a point-in-time view of a client
type ClientStats struct {
	ClientID   string          `json:"client_id"`
	Connection ConnectionStats `json:"connection"`
	Listeners  map[string]int  `json:"listeners"`
}

// NewClient creates a client. It does not connect.
func NewClient(config Config, opts ...Option) *Client {
	c := &Client{
		id:     uuid.New().String(),
		config: config,
		logger: log.Logger,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = NewWebsocketDialer(config.Connection)
	}
	if c.creds == nil {
		c.creds = NewStaticCredentials("", "")
	}
	c.logger = c.logger.With().Str("client_id", c.id).Logger()
	if c.notifier == nil {
		c.notifier = NewLogNotifier(c.logger)
	}

	c.listeners = NewListenerRegistry(c.logger)
	c.detector = NewChangeDetector(config.MinDeliverySpacing, c.clock, c.logger)
	c.timers = NewTurnTimerSynchronizer(config.TurnTick, config.DefaultTurnSeconds, c.clock, c.listeners, c.logger)
	c.conn = NewConnectionManager(config.Connection, c.dialer, c.clock, c.creds, c.listeners, c.logger)
	c.dispatcher = NewDispatcher(c.listeners, c.detector, c.timers, c.notifier, c.conn.MarkAlive, c.logger)
	c.coalescer = NewCoalescer(config.CoalesceWindow, c.clock, c.dispatcher.Apply, c.logger)
	c.dispatcher.SetCoalescer(c.coalescer)
	c.detector.SetTrailingHandler(c.dispatcher.deliverState)
	c.conn.SetFrameHandler(c.dispatcher.HandleFrame)

	return c
}

// ID returns the instance id used in logs
func (c *Client) ID() string {
	return c.id
}

// Connect opens the socket for roomID, replacing any current one
func (c *Client) Connect(roomID string) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	return c.conn.Connect(roomID)
}

// Disconnect closes the socket. Pass explicit=true for a user-initiated
// disconnect, which suppresses reconnection.
func (c *Client) Disconnect(explicit bool) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	c.conn.Disconnect(explicit)
	return nil
}

// Close disconnects and releases every timer and subscription. The client
// cannot be used afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.closed = true
	c.mu.Unlock()

	c.conn.Close()
	c.coalescer.Stop()
	c.detector.Stop()
	c.timers.Stop()
	c.listeners.Clear()

	c.logger.Info().Msg("table client closed")
	return nil
}

// On subscribes h to event
func (c *Client) On(event EventType, h Handler) Subscription {
	return c.listeners.On(event, h)
}

// Off removes a subscription
func (c *Client) Off(sub Subscription) {
	c.listeners.Off(sub)
}

// RegisterRoomHandler sets the single state handler of roomID
func (c *Client) RegisterRoomHandler(roomID string, h RoomHandler) {
	c.listeners.RegisterRoomHandler(roomID, h)
}

// UnregisterRoomHandler ends the room subscription and drops its queued
// updates, fingerprint and turn timer
func (c *Client) UnregisterRoomHandler(roomID string) {
	c.listeners.UnregisterRoomHandler(roomID)
	c.coalescer.Drop(roomID)
	c.detector.Forget(roomID)
	c.timers.Disarm(roomID)
}

// State returns the connection state
func (c *Client) State() ConnectionState {
	return c.conn.State()
}

// LastState returns the last canonical state seen for roomID
func (c *Client) LastState(roomID string) (gamestate.State, bool) {
	return c.detector.Last(roomID)
}

// Stats returns statistics about the client
func (c *Client) Stats() ClientStats {
	counts := make(map[string]int)
	for _, t := range []EventType{
		EventConnect, EventDisconnect, EventReconnect, EventError,
		EventGameState, EventGameUpdate, EventPlayerAction, EventRoomUpdate,
		EventChat, EventPlayerJoined, EventPlayerLeft, EventGameHistory, EventTimerUpdate,
	} {
		if n := c.listeners.Count(t); n > 0 {
			counts[string(t)] = n
		}
	}
	return ClientStats{
		ClientID:   c.id,
		Connection: c.conn.Stats(),
		Listeners:  counts,
	}
}

// SendChat sends a chat message to the room
func (c *Client) SendChat(message string) error {
	return c.send(envelope.NewChat(message))
}

// Fold gives up the current hand
func (c *Client) Fold() error {
	return c.send(envelope.NewGameAction(envelope.ActionFold))
}

// Check passes the action without betting
func (c *Client) Check() error {
	return c.send(envelope.NewGameAction(envelope.ActionCheck))
}

// Call matches the current bet
func (c *Client) Call() error {
	return c.send(envelope.NewGameAction(envelope.ActionCall))
}

// Bet opens the betting with amount
func (c *Client) Bet(amount int) error {
	return c.send(envelope.NewGameAction(envelope.ActionBet).WithAmount(amount))
}

// Raise raises the current bet to amount
func (c *Client) Raise(amount int) error {
	return c.send(envelope.NewGameAction(envelope.ActionRaise).WithAmount(amount))
}

// Discard discards the card at cardIndex of the player's hand
func (c *Client) Discard(cardIndex int) error {
	return c.send(envelope.NewGameAction(envelope.ActionDiscard).WithCard(cardIndex))
}

// SitDown takes the seat at position
func (c *Client) SitDown(position int) error {
	a := c.roomAction(envelope.RoomSitDown)
	a.Position = &position
	a.Username = c.creds.Username()
	return c.send(a)
}

// BuyIn adds amount chips to the player's stack
func (c *Client) BuyIn(amount int) error {
	a := c.roomAction(envelope.RoomBuyIn)
	a.Amount = &amount
	return c.send(a)
}

// StandUp leaves the seat but stays in the room
func (c *Client) StandUp() error {
	return c.send(c.roomAction(envelope.RoomStandUp))
}

// ChangeSeat moves the player to position
func (c *Client) ChangeSeat(position int) error {
	a := c.roomAction(envelope.RoomChangeSeat)
	a.Position = &position
	return c.send(a)
}

// StartGame asks the server to deal the first hand
func (c *Client) StartGame() error {
	return c.send(c.roomAction(envelope.RoomStartGame))
}

// GetGameHistory asks for the last limit hands; limit <= 0 leaves it to the server
func (c *Client) GetGameHistory(limit int) error {
	a := c.roomAction(envelope.RoomGetGameHistory)
	if limit > 0 {
		a.Limit = &limit
	}
	return c.send(a)
}

// GetGameState asks the server for a fresh game_state snapshot
func (c *Client) GetGameState() error {
	return c.send(c.roomAction(envelope.RoomGetGameState))
}

// ExitGame leaves the room
func (c *Client) ExitGame() error {
	return c.send(c.roomAction(envelope.RoomExitGame))
}

func (c *Client) roomAction(action envelope.RoomActionKind) envelope.RoomAction {
	return envelope.NewRoomAction(action, c.conn.RoomID())
}

func (c *Client) send(cmd envelope.Command) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	if err := c.conn.Send(cmd); err != nil {
		c.logger.Debug().Err(err).Str("message_type", string(cmd.CommandType())).Msg("send rejected")
		return err
	}
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
