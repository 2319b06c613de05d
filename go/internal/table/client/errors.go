package client

import (
	"errors"
	"net/http"
	"regexp"
)

var (
	// ErrNotConnected is returned by every sender while the socket is not open
	ErrNotConnected = errors.New("not connected")
	// ErrSendBufferFull is returned when the outbound queue cannot take another frame
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrNoToken is returned when connecting without a bearer token
	ErrNoToken = errors.New("no auth token")
	// ErrNoRoom is returned when connecting without a room id
	ErrNoRoom = errors.New("room id is required")
	// ErrClientClosed is returned after Close
	ErrClientClosed = errors.New("client closed")
)

// ErrorKind classifies an EventError
type ErrorKind string

const (
	ErrorProtocol        ErrorKind = "protocol"
	ErrorConnection      ErrorKind = "connection"
	ErrorAuth            ErrorKind = "auth"
	ErrorRoomAccess      ErrorKind = "room_access"
	ErrorReconnectFailed ErrorKind = "reconnect_failed"
	ErrorServer          ErrorKind = "server"
)

// Policy-violation close code the server uses for auth and membership failures
const closePolicyViolation = 1008

var (
	authReason = regexp.MustCompile(`(?i)auth|token|credential|unauthori[sz]ed|expired|login`)
	roomReason = regexp.MustCompile(`(?i)room|member|not (a )?(player|participant)|access`)
)

// classifyClose decides whether a closure is terminal. Only policy-violation and
// forbidden closures with an auth or membership reason end the session.
func classifyClose(code int, reason string) ErrorKind {
	switch code {
	case closePolicyViolation, http.StatusForbidden, http.StatusUnauthorized:
	default:
		return ErrorConnection
	}

	switch {
	case authReason.MatchString(reason):
		return ErrorAuth
	case roomReason.MatchString(reason):
		return ErrorRoomAccess
	case code == http.StatusUnauthorized:
		return ErrorAuth
	}
	return ErrorConnection
}
