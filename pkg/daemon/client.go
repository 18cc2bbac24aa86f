// Package daemon provides a client for the peersync daemon's unix-socket API.
// When the daemon is not running, a local fallback serves the operations that
// only need persisted state.
package daemon

import (
	"context"
	"time"

	"github.com/grovetools/peersync/pkg/models"
)

// Client defines the interface for interacting with the peersync daemon.
// Both RemoteClient (socket) and LocalClient (persisted state) implement it.
type Client interface {
	// GetState returns the daemon's current view.
	GetState(ctx context.Context) (*State, error)

	// Notifications returns the stored notifications, oldest first.
	Notifications(ctx context.Context) ([]models.NotificationEntry, error)

	// Dismiss removes one notification. It reports whether the entry existed.
	Dismiss(ctx context.Context, category models.NotificationCategory, id string) (bool, error)

	// Signal injects a raw change signal into the collector.
	Signal(ctx context.Context, req SignalRequest) error

	// SetHalt suspends or resumes build passes.
	SetHalt(ctx context.Context, halted bool) error

	// ResetRetry restarts the reconnect schedule from the first delay.
	ResetRetry(ctx context.Context) error

	// StreamState subscribes to real-time state updates from the daemon.
	// The channel is closed when ctx is cancelled or the connection is lost.
	StreamState(ctx context.Context) (<-chan StateUpdate, error)

	// IsRunning returns true if the daemon is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}

// State mirrors the daemon's read model as served by /api/state.
type State struct {
	Connection     models.ConnectionState `json:"connection"`
	Endpoint       string                 `json:"endpoint,omitempty"`
	Session        *models.SessionInfo    `json:"session,omitempty"`
	Halted         bool                   `json:"halted"`
	Snapshot       *models.Snapshot       `json:"snapshot,omitempty"`
	LastBuildError *BuildError            `json:"last_build_error,omitempty"`
	Notifications  int                    `json:"notifications"`
	StartedAt      time.Time              `json:"started_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// BuildError describes the most recent failed build pass.
type BuildError struct {
	PassID string              `json:"pass_id"`
	Kinds  []models.ChangeKind `json:"kinds"`
	Reason string              `json:"reason"`
	At     time.Time           `json:"at"`
}

// StateUpdate represents an update pushed from the daemon to subscribers.
// Only the field matching UpdateType is set.
type StateUpdate struct {
	UpdateType    string                  `json:"update_type"`
	Source        string                  `json:"source,omitempty"`
	State         *State                  `json:"state,omitempty"`
	Snapshot      *models.Snapshot        `json:"snapshot,omitempty"`
	BuildError    *BuildError             `json:"build_error,omitempty"`
	Connection    *models.ConnectionState `json:"connection,omitempty"`
	Session       *models.SessionInfo     `json:"session,omitempty"`
	Halted        *bool                   `json:"halted,omitempty"`
	Notifications *int                    `json:"notifications,omitempty"`
	Toast         *models.Toast           `json:"toast,omitempty"`
	Endpoint      string                  `json:"endpoint,omitempty"`
	ConfigFile    string                  `json:"config_file,omitempty"`
}

// SignalRequest is the body of POST /api/signal.
type SignalRequest struct {
	Kind    string `json:"kind"`
	Handle  string `json:"handle"`
	DelayMs int    `json:"delay_ms,omitempty"`
}

// HaltRequest is the body of POST /api/halt and the response of GET /api/halt.
type HaltRequest struct {
	Halted bool `json:"halted"`
}
