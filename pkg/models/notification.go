package models

import (
	"fmt"
	"time"
)

// NotificationCategory groups ledger entries. IDs are unique within a category.
type NotificationCategory string

const (
	CategoryPairing    NotificationCategory = "pairing"
	CategorySyncshell  NotificationCategory = "syncshell"
	CategoryConnection NotificationCategory = "connection"
)

// KnownCategories lists the categories the current build understands.
var KnownCategories = []NotificationCategory{CategoryPairing, CategorySyncshell, CategoryConnection}

// ParseCategory resolves a persisted category tag.
func ParseCategory(s string) (NotificationCategory, error) {
	for _, c := range KnownCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown notification category %q", s)
}

// NotificationEntry is one durable notification shown in the sidebar list.
type NotificationEntry struct {
	Category    NotificationCategory `json:"category"`
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Description string               `json:"description,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

// NotificationCountChanged is republished after every ledger mutation.
type NotificationCountChanged struct {
	Count int
}

// ToastLevel is the severity of a transient notification.
type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastSuccess ToastLevel = "success"
	ToastWarning ToastLevel = "warning"
	ToastError   ToastLevel = "error"
)

// Toast is a transient notification for the UI layer.
type Toast struct {
	Level   ToastLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message,omitempty"`
	At      time.Time  `json:"at"`
}

// PairingRequested is published when a remote user asks to pair.
type PairingRequested struct {
	UID   string
	Alias string
	At    time.Time
}

// PairingResolved is published when a pairing request is accepted or declined.
type PairingResolved struct {
	UID string
}

// SyncshellVisibilityChanged is published when a syncshell becomes visible or hidden.
type SyncshellVisibilityChanged struct {
	GroupID string
	Name    string
	Visible bool
	At      time.Time
}
