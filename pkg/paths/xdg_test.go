package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortableHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("PEERSYNC_HOME", home)

	assert.Equal(t, filepath.Join(home, "config", "peersync"), ConfigDir())
	assert.Equal(t, filepath.Join(home, "state", "peersync"), StateDir())
	assert.Equal(t, filepath.Join(home, "run", "peersyncd.sock"), SocketPath())
	assert.Equal(t, filepath.Join(home, "state", "peersync", "notifications.json"), LedgerPath("json"))

	require.NoError(t, EnsureDirs())
	assert.DirExists(t, LogDir())
}

func TestXDGFallback(t *testing.T) {
	t.Setenv("PEERSYNC_HOME", "")
	t.Setenv("XDG_STATE_HOME", "/tmp/xdg-state")
	t.Setenv("XDG_RUNTIME_DIR", "")

	assert.Equal(t, "/tmp/xdg-state/peersync", StateDir())
	assert.Equal(t, "/tmp/xdg-state/peersync", RuntimeDir())
}
