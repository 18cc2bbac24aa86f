package source

import (
	"context"

	"github.com/grovetools/peersync/pkg/bus"
	"github.com/grovetools/peersync/pkg/models"
)

// BusSource forwards ChangeObserved messages from the bus.
type BusSource struct {
	sub *bus.Subscription[models.ChangeObserved]
}

// NewBusSource subscribes immediately so no message published after it
// returns is lost.
func NewBusSource(b *bus.Bus) *BusSource {
	return &BusSource{sub: bus.Subscribe[models.ChangeObserved](b)}
}

// Name returns the source's name.
func (s *BusSource) Name() string { return "bus" }

// Run forwards messages until ctx is cancelled or the bus closes.
func (s *BusSource) Run(ctx context.Context, n Notifier) error {
	defer s.sub.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-s.sub.Events():
			if !ok {
				return nil
			}
			if msg.Kind.Valid() {
				n.Notify(msg.Kind, msg.Handle)
			}
		}
	}
}
