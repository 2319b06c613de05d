package relay

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/tablesync/go/internal/table/client"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Config holds configuration for the NATS relay
type Config struct {
	URL           string        `yaml:"url"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	MaxReconnects int           `yaml:"max_reconnects"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// DefaultConfig returns default relay configuration
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "table.events",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// DefaultEvents are relayed unless told otherwise. Timer ticks stay local.
var DefaultEvents = []client.EventType{
	client.EventConnect,
	client.EventDisconnect,
	client.EventReconnect,
	client.EventError,
	client.EventGameState,
	client.EventGameUpdate,
	client.EventPlayerAction,
	client.EventRoomUpdate,
	client.EventChat,
	client.EventPlayerJoined,
	client.EventPlayerLeft,
	client.EventGameHistory,
}

// Publisher is the part of *nats.Conn the relay needs
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

// EventSource is anything client events can be subscribed on
type EventSource interface {
	On(event client.EventType, h client.Handler) client.Subscription
}

// Connect dials NATS with reconnect logging
func Connect(cfg Config, logger zerolog.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// Relay republishes client events on <prefix>.<room>.<event>
type Relay struct {
	pub    Publisher
	prefix string
	logger zerolog.Logger

	mu        sync.Mutex
	subs      []client.Subscription
	published uint64
	failed    uint64
}

// Message is the body of every relayed NATS message
type Message struct {
	EventID   string           `json:"eventId"`
	EventType client.EventType `json:"eventType"`
	RoomID    string           `json:"roomId,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Payload   any              `json:"payload,omitempty"`
}

// New creates a relay publishing through pub
func New(pub Publisher, prefix string, logger zerolog.Logger) *Relay {
	return &Relay{
		pub:    pub,
		prefix: strings.TrimSuffix(prefix, "."),
		logger: logger,
	}
}

// Attach subscribes the relay to events on source. With no events given,
// DefaultEvents are relayed.
func (r *Relay) Attach(source EventSource, events ...client.EventType) {
	if len(events) == 0 {
		events = DefaultEvents
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range events {
		r.subs = append(r.subs, source.On(ev, r.handle))
	}
}

// Detach removes every subscription made by Attach
func (r *Relay) Detach() {
	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// Stats returns how many messages were published and how many failed
func (r *Relay) Stats() (published, failed uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.published, r.failed
}

// Subject returns the subject an event type of roomID is published on
func (r *Relay) Subject(roomID string, event client.EventType) string {
	room := subjectToken(roomID)
	if room == "" {
		room = "_"
	}
	return fmt.Sprintf("%s.%s.%s", r.prefix, room, subjectToken(string(event)))
}

func (r *Relay) handle(ev client.Event) {
	msg := Message{
		EventID:   uuid.New().String(),
		EventType: ev.Type,
		RoomID:    ev.RoomID,
		Timestamp: time.Now().UTC(),
		Payload:   ev.Data,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error().Err(err).Str("event_type", string(ev.Type)).Msg("failed to marshal relayed event")
		r.count(false)
		return
	}

	err = r.pub.PublishMsg(&nats.Msg{
		Subject: r.Subject(ev.RoomID, ev.Type),
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{string(ev.Type)},
			"Room-ID":    []string{ev.RoomID},
			"Event-ID":   []string{msg.EventID},
		},
	})
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("event_type", string(ev.Type)).
			Str("room_id", ev.RoomID).
			Msg("failed to publish relayed event")
		r.count(false)
		return
	}
	r.count(true)
}

func (r *Relay) count(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.published++
	} else {
		r.failed++
	}
}

// subjectToken replaces characters NATS treats as separators or wildcards
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
