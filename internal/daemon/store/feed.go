package store

import (
	"context"

	"github.com/grovetools/peersync/pkg/bus"
	"github.com/grovetools/peersync/pkg/models"
)

// Feed mirrors bus messages into a Store.
type Feed struct {
	store *Store

	builds   *bus.Subscription[models.BuildCompleted]
	failures *bus.Subscription[models.BuildFailed]
	states   *bus.Subscription[models.ConnectionStateChanged]
	sessions *bus.Subscription[models.Reconnected]
	halts    *bus.Subscription[models.HaltChanged]
	counts   *bus.Subscription[models.NotificationCountChanged]
	toasts   *bus.Subscription[models.Toast]
}

// NewFeed subscribes to b immediately.
func NewFeed(st *Store, b *bus.Bus) *Feed {
	return &Feed{
		store:    st,
		builds:   bus.Subscribe[models.BuildCompleted](b),
		failures: bus.Subscribe[models.BuildFailed](b),
		states:   bus.Subscribe[models.ConnectionStateChanged](b),
		sessions: bus.Subscribe[models.Reconnected](b),
		halts:    bus.Subscribe[models.HaltChanged](b),
		counts:   bus.Subscribe[models.NotificationCountChanged](b),
		toasts:   bus.Subscribe[models.Toast](b),
	}
}

// Run applies updates until ctx is done or the bus closes.
func (f *Feed) Run(ctx context.Context) {
	defer f.close()

	for {
		var u Update
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-f.builds.Events():
			if !ok {
				return
			}
			u = Update{Type: UpdateSnapshot, Source: "pipeline", Payload: msg.Snapshot}
		case msg, ok := <-f.failures.Events():
			if !ok {
				return
			}
			u = Update{Type: UpdateBuildFailed, Source: "pipeline", Payload: &BuildError{
				PassID: msg.PassID,
				Kinds:  msg.Kinds,
				Reason: msg.Reason,
				At:     msg.At,
			}}
		case msg, ok := <-f.states.Events():
			if !ok {
				return
			}
			u = Update{Type: UpdateConnection, Source: "hub", Payload: msg.To}
		case msg, ok := <-f.sessions.Events():
			if !ok {
				return
			}
			u = Update{Type: UpdateSession, Source: "hub", Payload: msg.Session}
		case msg, ok := <-f.halts.Events():
			if !ok {
				return
			}
			u = Update{Type: UpdateHalt, Source: "pipeline", Payload: msg.Halted}
		case msg, ok := <-f.counts.Events():
			if !ok {
				return
			}
			u = Update{Type: UpdateNotifications, Source: "ledger", Payload: msg.Count}
		case msg, ok := <-f.toasts.Events():
			if !ok {
				return
			}
			u = Update{Type: UpdateToast, Source: "ledger", Payload: msg}
		}
		f.store.ApplyUpdate(u)
	}
}

func (f *Feed) close() {
	f.builds.Close()
	f.failures.Close()
	f.states.Close()
	f.sessions.Close()
	f.halts.Close()
	f.counts.Close()
	f.toasts.Close()
}
