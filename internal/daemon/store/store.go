package store

import (
	"sync"
	"time"

	"github.com/grovetools/peersync/pkg/models"
)

// Store is the in-memory state store for the daemon.
// It is thread-safe and supports pub/sub for real-time updates.
type Store struct {
	mu          sync.RWMutex
	state       *State
	subscribers map[chan Update]struct{}
	now         func() time.Time
}

// New creates a new Store instance.
func New() *Store {
	now := time.Now
	return &Store{
		state: &State{
			Connection: models.StateDisconnected,
			StartedAt:  now(),
			UpdatedAt:  now(),
		},
		subscribers: make(map[chan Update]struct{}),
		now:         now,
	}
}

// Get returns a copy of the current state.
func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Return shallow copy
	return *s.state
}

// ApplyUpdate modifies the state and notifies subscribers.
func (s *Store) ApplyUpdate(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch u.Type {
	case UpdateSnapshot:
		if snap, ok := u.Payload.(*models.Snapshot); ok {
			s.state.Snapshot = snap
			s.state.LastBuildError = nil
		}
	case UpdateBuildFailed:
		if be, ok := u.Payload.(*BuildError); ok {
			s.state.LastBuildError = be
		}
	case UpdateConnection:
		if cs, ok := u.Payload.(models.ConnectionState); ok {
			s.state.Connection = cs
			if cs != models.StateConnected {
				s.state.Session = nil
			}
		}
	case UpdateSession:
		if session, ok := u.Payload.(*models.SessionInfo); ok {
			s.state.Session = session
		}
	case UpdateHalt:
		if halted, ok := u.Payload.(bool); ok {
			s.state.Halted = halted
		}
	case UpdateNotifications:
		if count, ok := u.Payload.(int); ok {
			s.state.Notifications = count
		}
	case UpdateEndpoint:
		if endpoint, ok := u.Payload.(string); ok {
			s.state.Endpoint = endpoint
		}
	}
	if u.Type != UpdateToast && u.Type != UpdateConfigReload {
		s.state.UpdatedAt = s.now()
	}

	s.broadcastLocked(u)
}

// Subscribe creates a new subscription channel for state updates.
func (s *Store) Subscribe() chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Update, 100) // Buffered
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; !ok {
		return
	}
	delete(s.subscribers, ch)
	close(ch)
}

// BroadcastConfigReload notifies subscribers that the config file was reloaded.
func (s *Store) BroadcastConfigReload(file string) {
	s.ApplyUpdate(Update{
		Type:    UpdateConfigReload,
		Source:  "config",
		Payload: file,
	})
}

func (s *Store) broadcastLocked(u Update) {
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// Non-blocking send to prevent slow clients from stalling the daemon
		}
	}
}
