package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("PEERSYNC_TEST_DIR", "/var/tmp/peersync")

	tests := []struct {
		in   string
		want string
	}{
		{"~/logs/a.log", filepath.Join(home, "logs", "a.log")},
		{"~", home},
		{"$PEERSYNC_TEST_DIR/x.json", "/var/tmp/peersync/x.json"},
		{"/abs/path", "/abs/path"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Expand(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	rel, err := Expand("relative/file")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(rel))
}

func TestSamePathFollowsSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.yml")
	link := filepath.Join(dir, "link.yml")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0644))
	require.NoError(t, os.Symlink(target, link))

	assert.True(t, SamePath(target, link))
	assert.True(t, SamePath(target, filepath.Join(dir, ".", "real.yml")))
	assert.False(t, SamePath(target, filepath.Join(dir, "other.yml")))
}
