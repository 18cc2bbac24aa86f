package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/peersync/errors"
	"github.com/grovetools/peersync/pkg/ledger"
	"github.com/grovetools/peersync/pkg/models"
	"github.com/grovetools/peersync/pkg/paths"
	"github.com/grovetools/peersync/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "peersync.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConfigShowFormats(t *testing.T) {
	testutil.IsolateHome(t)
	cfgPath := writeConfig(t, "hub:\n  endpoint: ws://hub.local/sync\n")

	out, err := run(t, "config", "show", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "# Source: "+cfgPath)
	assert.Contains(t, out, "endpoint: ws://hub.local/sync")

	out, err = run(t, "config", "show", "--config", cfgPath, "--json")
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	hub, ok := doc["hub"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ws://hub.local/sync", hub["endpoint"])

	_, err = run(t, "config", "show", "--config", cfgPath, "--format", "ini")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestConfigSchemaIsJSON(t *testing.T) {
	out, err := run(t, "config", "schema")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))
}

func TestPathsFollowHome(t *testing.T) {
	home := testutil.IsolateHome(t)

	out, err := run(t, "paths")
	require.NoError(t, err)

	var p PathsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.True(t, strings.HasPrefix(p.Ledger, home))
	assert.Equal(t, paths.SocketPath(), p.Socket)
}

func TestNotificationsWorkWithoutDaemon(t *testing.T) {
	testutil.IsolateHome(t)
	cfgPath := writeConfig(t, "ledger:\n  backend: file\n")

	l := ledger.New(ledger.NewFileStore(paths.LedgerPath("json")), nil, nil)
	l.Upsert(models.NotificationEntry{
		Category:  models.CategoryPairing,
		ID:        "peer-7",
		Title:     "Pairing request from peer-7",
		CreatedAt: time.Now(),
	})

	out, err := run(t, "notifications", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "peer-7")
	assert.Contains(t, out, "CATEGORY")

	out, err = run(t, "notifications", "dismiss", "pairing", "peer-7", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Dismissed pairing/peer-7")

	out, err = run(t, "notifications", "list", "--config", cfgPath, "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))

	_, err = run(t, "notifications", "dismiss", "bogus", "x", "--config", cfgPath)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestLiveCommandsNeedDaemon(t *testing.T) {
	testutil.IsolateHome(t)
	cfgPath := writeConfig(t, "ledger:\n  backend: memory\n")

	_, err := run(t, "signal", "pet", "0x1", "--config", cfgPath)
	assert.True(t, errors.Is(err, errors.ErrCodeDaemonUnavailable))

	_, err = run(t, "signal", "dragon", "0x1", "--config", cfgPath)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	_, err = run(t, "halt", "on", "--config", cfgPath)
	assert.True(t, errors.Is(err, errors.ErrCodeDaemonUnavailable))

	_, err = run(t, "retry", "reset", "--config", cfgPath)
	assert.True(t, errors.Is(err, errors.ErrCodeDaemonUnavailable))
}

func TestLogsTailAndRender(t *testing.T) {
	testutil.IsolateHome(t)
	logPath := filepath.Join(t.TempDir(), "peersync.log")
	lines := []string{
		`{"level":"info","msg":"first","component":"hub","time":"2026-01-02T10:00:00Z"}`,
		`{"level":"warning","msg":"second","component":"ledger","time":"2026-01-02T10:00:01Z","count":3}`,
		`plain text line`,
	}
	require.NoError(t, os.WriteFile(logPath, []byte(strings.Join(lines, "\n")+"\n"), 0644))

	out, err := run(t, "logs", "--file", logPath, "--tail", "2")
	require.NoError(t, err)
	assert.NotContains(t, out, "first")
	assert.Contains(t, out, "second")
	assert.Contains(t, out, "[ledger]")
	assert.Contains(t, out, "count")
	assert.Contains(t, out, "plain text line")

	out, err = run(t, "logs", "--file", logPath, "--json")
	require.NoError(t, err)
	outLines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, outLines, 3)
	for _, l := range outLines {
		assert.True(t, json.Valid([]byte(l)), l)
	}
}

func TestFindLatestLogFileSkipsEmpty(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "peersync-2026-01-01.log")
	empty := filepath.Join(dir, "peersync-2026-01-02.log")
	require.NoError(t, os.WriteFile(older, []byte("x\n"), 0644))
	require.NoError(t, os.WriteFile(empty, nil, 0644))

	found, err := findLatestLogFile(dir)
	require.NoError(t, err)
	assert.Equal(t, older, found)

	_, err = findLatestLogFile(t.TempDir())
	assert.Error(t, err)
}
