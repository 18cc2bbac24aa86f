package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/grovetools/peersync/pkg/bus"
	"github.com/grovetools/peersync/pkg/models"
	"github.com/grovetools/peersync/util/sanitize"
	"github.com/sirupsen/logrus"
)

// ConnectionLostID is the id of the durable connection-lost entry.
const ConnectionLostID = "hub"

// Watcher turns domain events into ledger entries and toasts.
type Watcher struct {
	ledger *Ledger
	bus    *bus.Bus
	logger *logrus.Entry
	now    func() time.Time

	pairing      *bus.Subscription[models.PairingRequested]
	resolved     *bus.Subscription[models.PairingResolved]
	syncshell    *bus.Subscription[models.SyncshellVisibilityChanged]
	disconnected *bus.Subscription[models.Disconnected]
	reconnected  *bus.Subscription[models.Reconnected]
}

// NewWatcher subscribes to the bus immediately so no event published after it
// returns is missed.
func NewWatcher(l *Ledger, b *bus.Bus, logger *logrus.Entry) *Watcher {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Watcher{
		ledger:       l,
		bus:          b,
		logger:       logger,
		now:          time.Now,
		pairing:      bus.Subscribe[models.PairingRequested](b),
		resolved:     bus.Subscribe[models.PairingResolved](b),
		syncshell:    bus.Subscribe[models.SyncshellVisibilityChanged](b),
		disconnected: bus.Subscribe[models.Disconnected](b),
		reconnected:  bus.Subscribe[models.Reconnected](b),
	}
}

// Run handles events until ctx is done or the bus closes.
func (w *Watcher) Run(ctx context.Context) {
	defer w.close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.pairing.Events():
			if !ok {
				return
			}
			w.onPairingRequested(ev)
		case ev, ok := <-w.resolved.Events():
			if !ok {
				return
			}
			w.ledger.Remove(models.CategoryPairing, ev.UID)
		case ev, ok := <-w.syncshell.Events():
			if !ok {
				return
			}
			w.onSyncshell(ev)
		case ev, ok := <-w.disconnected.Events():
			if !ok {
				return
			}
			w.onDisconnected(ev)
		case ev, ok := <-w.reconnected.Events():
			if !ok {
				return
			}
			w.onReconnected(ev)
		}
	}
}

func (w *Watcher) close() {
	w.pairing.Close()
	w.resolved.Close()
	w.syncshell.Close()
	w.disconnected.Close()
	w.reconnected.Close()
}

func (w *Watcher) onPairingRequested(ev models.PairingRequested) {
	at := ev.At
	if at.IsZero() {
		at = w.now()
	}
	name := sanitize.OrDefault(ev.Alias, ev.UID, sanitize.MaxNameLen)
	w.ledger.Upsert(models.NotificationEntry{
		Category:    models.CategoryPairing,
		ID:          ev.UID,
		Title:       "Pairing request",
		Description: fmt.Sprintf("%s wants to pair with you", name),
		CreatedAt:   at,
	})
	w.toast(models.ToastInfo, "Pairing request", fmt.Sprintf("%s wants to pair with you", name))
}

func (w *Watcher) onSyncshell(ev models.SyncshellVisibilityChanged) {
	at := ev.At
	if at.IsZero() {
		at = w.now()
	}
	name := sanitize.OrDefault(ev.Name, ev.GroupID, sanitize.MaxNameLen)
	state := "hidden"
	if ev.Visible {
		state = "visible"
	}
	desc := fmt.Sprintf("Syncshell %s is now %s", name, state)
	w.ledger.Upsert(models.NotificationEntry{
		Category:    models.CategorySyncshell,
		ID:          ev.GroupID,
		Title:       "Syncshell visibility changed",
		Description: desc,
		CreatedAt:   at,
	})
	w.toast(models.ToastInfo, "Syncshell", desc)
}

func (w *Watcher) onDisconnected(ev models.Disconnected) {
	desc := "Unable to reach the sync hub, still retrying"
	if ev.Reason != "" {
		desc = fmt.Sprintf("%s: %s", desc, sanitize.ForDisplay(ev.Reason, sanitize.MaxReasonLen))
	}
	w.ledger.Upsert(models.NotificationEntry{
		Category:    models.CategoryConnection,
		ID:          ConnectionLostID,
		Title:       "Connection lost",
		Description: desc,
		CreatedAt:   w.now(),
	})
	w.toast(models.ToastWarning, "Connection lost", desc)
	w.logger.WithField("attempt", ev.Attempt).Warn("Recorded connection loss")
}

func (w *Watcher) onReconnected(ev models.Reconnected) {
	if !ev.Recovered {
		return
	}
	w.toast(models.ToastSuccess, "Reconnected", "Connection to the sync hub restored")
}

func (w *Watcher) toast(level models.ToastLevel, title, msg string) {
	w.bus.Publish(models.Toast{Level: level, Title: title, Message: msg, At: w.now()})
}
