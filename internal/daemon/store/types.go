// Package store provides the in-memory read model served by the daemon API.
package store

import (
	"time"

	"github.com/grovetools/peersync/pkg/models"
)

// State is the daemon's current view of the pipeline, connection and ledger.
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

// UpdateType defines what kind of data changed.
type UpdateType string

const (
	UpdateSnapshot      UpdateType = "snapshot"
	UpdateBuildFailed   UpdateType = "build_failed"
	UpdateConnection    UpdateType = "connection"
	UpdateSession       UpdateType = "session"
	UpdateHalt          UpdateType = "halt"
	UpdateNotifications UpdateType = "notifications"
	UpdateToast         UpdateType = "toast"
	UpdateEndpoint      UpdateType = "endpoint"
	UpdateConfigReload  UpdateType = "config_reload"
)

// Update represents a change to the state.
type Update struct {
	Type    UpdateType
	Source  string // Which component sent this update (e.g., "pipeline", "hub", "ledger")
	Payload interface{}
}
