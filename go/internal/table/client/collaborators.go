package client

import (
	"sync"

	"github.com/rs/zerolog"
)

// CredentialStore provides the bearer token and username. The client only
// clears the token, after the server rejects it.
type CredentialStore interface {
	Token() string
	Username() string
	ClearToken()
}

// Notifier shows server-reported errors to the user
type Notifier interface {
	Notify(message string)
}

// StaticCredentials is an in-memory CredentialStore
type StaticCredentials struct {
	mu       sync.RWMutex
	token    string
	username string
}

// NewStaticCredentials creates an in-memory credential store
func NewStaticCredentials(token, username string) *StaticCredentials {
	return &StaticCredentials{token: token, username: username}
}

// Token returns the bearer token, empty once cleared
func (c *StaticCredentials) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Username returns the display name sent when sitting down
func (c *StaticCredentials) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

// ClearToken forgets the token
func (c *StaticCredentials) ClearToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
}

// LogNotifier writes notifications to a logger
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier backed by logger
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs message at warn level
func (n *LogNotifier) Notify(message string) {
	n.logger.Warn().Str("notification", message).Msg("server error")
}
