package daemon

import (
	"net"
	"os"
	"time"

	"github.com/grovetools/peersync/config"
	"github.com/grovetools/peersync/pkg/paths"
)

// New returns a Client that will use the daemon if available,
// otherwise falls back to LocalClient.
func New(cfg *config.Config) Client {
	socketPath := paths.SocketPath()
	if _, err := os.Stat(socketPath); err == nil {
		conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return NewRemoteClient(socketPath)
		}
	}

	if cfg == nil {
		cfg = config.Default()
	}
	return NewLocalClient(cfg.Ledger)
}
