package cli

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/grovetools/peersync/errors"
	"github.com/grovetools/peersync/schema"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestErrorHandlerMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"daemon", errors.DaemonUnavailable("/run/d.sock", nil), "daemon is not running"},
		{"endpoint", errors.EndpointInvalid("ftp://x", "bad"), "ftp://x"},
		{"config", errors.ConfigNotFound("/etc/peersync.yml"), "/etc/peersync.yml"},
		{"generic", fmt.Errorf("kaboom"), "Error: kaboom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := NewErrorHandler(&buf, false).Handle(tt.err)
			assert.Equal(t, tt.err, err)
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestErrorHandlerListsSchemaIssues(t *testing.T) {
	err := errors.New(errors.ErrCodeConfigValidation, "schema validation failed").
		WithDetail("issues", []schema.Issue{{Path: "/hub", Message: "additionalProperties 'endpont' not allowed"}})

	var buf bytes.Buffer
	NewErrorHandler(&buf, false).Handle(err)
	assert.Contains(t, buf.String(), "does not match the schema")
	assert.Contains(t, buf.String(), "/hub: additionalProperties 'endpont' not allowed")
}

func TestErrorHandlerVerboseShowsDetails(t *testing.T) {
	var buf bytes.Buffer
	NewErrorHandler(&buf, true).Handle(errors.EndpointInvalid("ftp://x", "bad"))
	assert.Contains(t, buf.String(), `"code": "ENDPOINT_INVALID"`)
}

func TestWrapText(t *testing.T) {
	out := wrapText("one two three four five six", 9)
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, len(line), 9)
	}
	assert.Equal(t, "short", wrapText("short", 20))
}

func TestParseChoices(t *testing.T) {
	desc, choices := parseChoices("Ledger backend: file, sqlite, or memory (default: file)")
	assert.Equal(t, "Ledger backend: (default: file)", desc)
	assert.Equal(t, []string{"file", "sqlite", "memory"}, choices)

	desc, choices = parseChoices("Path: a, b")
	assert.Equal(t, "Path: a, b", desc)
	assert.Nil(t, choices)
}

func TestStyledHelpListsCommands(t *testing.T) {
	root := NewStandardCommand("peersync", "Sync local changes to a hub")
	root.AddCommand(&cobra.Command{Use: "signal", Short: "Send a change signal", Run: func(*cobra.Command, []string) {}})
	ApplyStyledHelpRecursive(root)

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"--help"})
	assert.NoError(t, root.Execute())

	out := buf.String()
	assert.Contains(t, out, "PEERSYNC")
	assert.Contains(t, out, "COMMANDS")
	assert.Contains(t, out, "signal")
}
