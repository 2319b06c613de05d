package client

import (
	"fmt"
	"math"
	"net/url"
	"time"
)

// ConnectionConfig holds configuration for the table socket
type ConnectionConfig struct {
	BaseURL          string        `yaml:"base_url"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	MaxMessageSize   int64         `yaml:"max_message_size"`
	ReadBufferSize   int           `yaml:"read_buffer_size"`
	WriteBufferSize  int           `yaml:"write_buffer_size"`
	SendBufferSize   int           `yaml:"send_buffer_size"`

	// Reconnection
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectInterval    time.Duration `yaml:"reconnect_interval"`
	BackoffMultiplier    float64       `yaml:"backoff_multiplier"`
	BackoffMaxExponent   int           `yaml:"backoff_max_exponent"`
}

// Config holds configuration for a table client
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`

	CoalesceWindow     time.Duration `yaml:"coalesce_window"`
	MinDeliverySpacing time.Duration `yaml:"min_delivery_spacing"`
	TurnTick           time.Duration `yaml:"turn_tick"`
	DefaultTurnSeconds int           `yaml:"default_turn_seconds"`
}

// DefaultConnectionConfig returns default socket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		BaseURL:              "ws://localhost:8000",
		PingInterval:         30 * time.Second,
		WriteTimeout:         10 * time.Second,
		HandshakeTimeout:     10 * time.Second,
		MaxMessageSize:       512 * 1024,
		ReadBufferSize:       4096,
		WriteBufferSize:      1024,
		SendBufferSize:       64,
		MaxReconnectAttempts: 5,
		ReconnectInterval:    time.Second,
		BackoffMultiplier:    2,
		BackoffMaxExponent:   3,
	}
}

// DefaultConfig returns default configuration for a table client
func DefaultConfig() Config {
	return Config{
		Connection:         DefaultConnectionConfig(),
		CoalesceWindow:     100 * time.Millisecond,
		MinDeliverySpacing: time.Second,
		TurnTick:           time.Second,
		DefaultTurnSeconds: 30,
	}
}

// BackoffDelay returns the wait before reconnect attempt n (1-based). Growth is
// multiplicative and stops after BackoffMaxExponent attempts.
func (c ConnectionConfig) BackoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	exp := min(attempt, c.BackoffMaxExponent)
	return time.Duration(float64(c.ReconnectInterval) * math.Pow(c.BackoffMultiplier, float64(exp)))
}

// URLFor builds the socket URL for a room. The bearer token travels as a query parameter.
func (c ConnectionConfig) URLFor(roomID, token string) (string, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u := base.JoinPath("ws", "game", roomID)
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
