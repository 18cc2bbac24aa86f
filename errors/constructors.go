package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *PeerError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *PeerError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// BuildFailed wraps the error returned by a build pass.
func BuildFailed(passID string, err error) *PeerError {
	return Wrap(err, ErrCodeBuildFailed, fmt.Sprintf("build pass %s failed", passID)).
		WithDetail("pass", passID)
}

// EndpointInvalid creates an invalid hub endpoint error
func EndpointInvalid(endpoint string, reason string) *PeerError {
	return New(ErrCodeEndpointInvalid, fmt.Sprintf("invalid hub endpoint '%s': %s", endpoint, reason)).
		WithDetail("endpoint", endpoint)
}

// ConnectFailed wraps a dial or handshake failure against the hub
func ConnectFailed(endpoint string, err error) *PeerError {
	return Wrap(err, ErrCodeConnectFailed, fmt.Sprintf("failed to connect to %s", endpoint)).
		WithDetail("endpoint", endpoint)
}

// NotConnected is returned when sending while no hub connection is live
func NotConnected() *PeerError {
	return New(ErrCodeNotConnected, "no live hub connection")
}

// Disposed is returned by operations on a disposed connection manager
func Disposed() *PeerError {
	return New(ErrCodeDisposed, "connection manager disposed")
}

// LedgerPersist wraps a storage failure in the notification ledger
func LedgerPersist(backend string, err error) *PeerError {
	return Wrap(err, ErrCodeLedgerPersist, "failed to persist notifications").
		WithDetail("backend", backend)
}

// DaemonUnavailable creates an error for an unreachable daemon socket
func DaemonUnavailable(socketPath string, err error) *PeerError {
	return Wrap(err, ErrCodeDaemonUnavailable, "daemon is not running").
		WithDetail("socket", socketPath)
}
