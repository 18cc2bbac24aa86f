package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/grovetools/peersync/errors"
	"github.com/grovetools/peersync/pkg/models"
	"github.com/sirupsen/logrus"
)

// Sender writes a frame to the hub.
type Sender interface {
	Send(ctx context.Context, data []byte) error
}

// SnapshotFrame is the wire envelope for a pushed snapshot.
type SnapshotFrame struct {
	Type     string           `json:"type"`
	Snapshot *models.Snapshot `json:"snapshot"`
}

// SnapshotPublisher pushes built snapshots to the hub. A snapshot whose
// fingerprint matches the last one delivered is not sent again, except after
// a reconnect when the hub may have lost it.
type SnapshotPublisher struct {
	sender      Sender
	logger      *logrus.Entry
	sendTimeout time.Duration

	mu       sync.Mutex
	latest   *models.Snapshot
	lastSent string
}

// NewSnapshotPublisher creates a publisher writing through sender.
func NewSnapshotPublisher(sender Sender, logger *logrus.Entry) *SnapshotPublisher {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &SnapshotPublisher{
		sender:      sender,
		logger:      logger,
		sendTimeout: 10 * time.Second,
	}
}

// Run consumes build results and reconnect notices until ctx is done or both
// channels are closed.
func (p *SnapshotPublisher) Run(ctx context.Context, builds <-chan models.BuildCompleted, reconnects <-chan models.Reconnected) {
	for builds != nil || reconnects != nil {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-builds:
			if !ok {
				builds = nil
				continue
			}
			p.Offer(ctx, msg.Snapshot)
		case _, ok := <-reconnects:
			if !ok {
				reconnects = nil
				continue
			}
			p.Resync(ctx)
		}
	}
}

// Offer records snap as the latest snapshot and pushes it if it differs from
// what the hub already has.
func (p *SnapshotPublisher) Offer(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil {
		return nil
	}
	p.mu.Lock()
	p.latest = snap
	p.mu.Unlock()
	return p.push(ctx, false)
}

// Resync pushes the latest snapshot regardless of what was sent before.
func (p *SnapshotPublisher) Resync(ctx context.Context) error {
	return p.push(ctx, true)
}

// LastSent returns the fingerprint of the last delivered snapshot.
func (p *SnapshotPublisher) LastSent() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSent
}

func (p *SnapshotPublisher) push(ctx context.Context, force bool) error {
	p.mu.Lock()
	snap := p.latest
	unchanged := snap != nil && snap.Fingerprint == p.lastSent
	p.mu.Unlock()

	if snap == nil {
		return nil
	}
	if unchanged && !force {
		p.logger.WithField("pass", snap.PassID).Debug("Snapshot unchanged, skipping push")
		return nil
	}

	frame, err := json.Marshal(SnapshotFrame{Type: "snapshot", Snapshot: snap})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode snapshot")
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	defer cancel()
	if err := p.sender.Send(sendCtx, frame); err != nil {
		if errors.Is(err, errors.ErrCodeNotConnected) {
			p.logger.WithField("pass", snap.PassID).Debug("Hub not connected, snapshot held until reconnect")
		} else {
			p.logger.WithError(err).Warn("Failed to push snapshot")
		}
		return err
	}

	p.mu.Lock()
	p.lastSent = snap.Fingerprint
	p.mu.Unlock()
	p.logger.WithFields(logrus.Fields{
		"pass":        snap.PassID,
		"fingerprint": snap.Fingerprint,
	}).Debug("Snapshot pushed")
	return nil
}
