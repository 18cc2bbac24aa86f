package daemon

import (
	"context"
	"io"

	"github.com/grovetools/peersync/config"
	"github.com/grovetools/peersync/errors"
	"github.com/grovetools/peersync/pkg/ledger"
	"github.com/grovetools/peersync/pkg/models"
	"github.com/grovetools/peersync/pkg/paths"
	"github.com/sirupsen/logrus"
)

// LocalClient implements Client against the persisted ledger. It is used when
// the daemon is not running: notifications can still be listed and
// dismissed, everything that needs the live pipeline fails with
// DAEMON_UNAVAILABLE.
type LocalClient struct {
	cfg    config.LedgerConfig
	logger *logrus.Entry
}

// NewLocalClient creates a new LocalClient for the given ledger settings.
func NewLocalClient(cfg config.LedgerConfig) *LocalClient {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &LocalClient{cfg: cfg, logger: logrus.NewEntry(logger)}
}

func (c *LocalClient) unavailable() error {
	return errors.DaemonUnavailable(paths.SocketPath(), nil)
}

// withLedger loads the persisted ledger, runs fn and closes the backend.
func (c *LocalClient) withLedger(fn func(l *ledger.Ledger)) error {
	store, closeStore, err := ledger.OpenStore(c.cfg.Backend, c.cfg.Path)
	if err != nil {
		return err
	}
	defer closeStore()

	l := ledger.New(store, nil, c.logger, ledger.WithMaxStored(c.cfg.MaxStored))
	l.Load()
	fn(l)
	return nil
}

// GetState is only served by the daemon.
func (c *LocalClient) GetState(ctx context.Context) (*State, error) {
	return nil, c.unavailable()
}

// Notifications reads the persisted ledger.
func (c *LocalClient) Notifications(ctx context.Context) ([]models.NotificationEntry, error) {
	var entries []models.NotificationEntry
	err := c.withLedger(func(l *ledger.Ledger) {
		entries = l.Entries()
	})
	return entries, err
}

// Dismiss removes an entry from the persisted ledger.
func (c *LocalClient) Dismiss(ctx context.Context, category models.NotificationCategory, id string) (bool, error) {
	var removed bool
	err := c.withLedger(func(l *ledger.Ledger) {
		removed = l.Remove(category, id)
	})
	return removed, err
}

// Signal requires the daemon.
func (c *LocalClient) Signal(ctx context.Context, req SignalRequest) error {
	return c.unavailable()
}

// SetHalt requires the daemon.
func (c *LocalClient) SetHalt(ctx context.Context, halted bool) error {
	return c.unavailable()
}

// ResetRetry requires the daemon.
func (c *LocalClient) ResetRetry(ctx context.Context) error {
	return c.unavailable()
}

// StreamState returns an error for LocalClient since streaming is only available via daemon.
func (c *LocalClient) StreamState(ctx context.Context) (<-chan StateUpdate, error) {
	return nil, c.unavailable()
}

// IsRunning returns false since this is the local fallback client.
func (c *LocalClient) IsRunning() bool {
	return false
}

// Close is a no-op for LocalClient.
func (c *LocalClient) Close() error {
	return nil
}

// Ensure LocalClient implements Client interface.
var _ Client = (*LocalClient)(nil)
