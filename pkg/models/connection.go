package models

import (
	"fmt"
	"time"
)

// ConnectionState is the lifecycle state of the hub connection.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ConnectionState) UnmarshalText(text []byte) error {
	for _, c := range []ConnectionState{StateDisconnected, StateConnecting, StateConnected, StateReconnecting} {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown connection state %q", string(text))
}

// SessionInfo describes the authenticated hub session, when known.
type SessionInfo struct {
	UID       string    `json:"uid,omitempty"`
	Alias     string    `json:"alias,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// ConnectionStateChanged is published on every state transition.
type ConnectionStateChanged struct {
	From ConnectionState
	To   ConnectionState
}

// ConnectionClosed is published when an established connection ends.
type ConnectionClosed struct {
	Reason string
}

// Reconnecting is published before each automatic reconnect attempt.
type Reconnecting struct {
	Reason  string
	Attempt int
	Delay   time.Duration
}

// Reconnected is published when a connection is (re)established. Recovered
// is set when the episode that ended had escalated to Disconnected.
type Reconnected struct {
	Session   *SessionInfo
	Recovered bool
}

// Disconnected is the escalation published once per reconnect episode after
// repeated failed attempts.
type Disconnected struct {
	Attempt int
	Reason  string
}
