package profiling

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeClock() (*time.Time, func() time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &now, func() time.Time { return now }
}

func TestDisabledProfilerIsNoop(t *testing.T) {
	p := &Profiler{now: time.Now}
	p.Start("build").Stop()

	var buf bytes.Buffer
	p.Summarize(&buf)
	assert.Empty(t, buf.String())
}

func TestSpansAggregateByName(t *testing.T) {
	now, clock := fakeClock()
	p := &Profiler{now: clock}
	p.enable()

	for _, d := range []time.Duration{10 * time.Millisecond, 30 * time.Millisecond} {
		s := p.Start("build")
		*now = now.Add(d)
		s.Stop()
		s.Stop()
	}
	s := p.Start("ledger.persist")
	*now = now.Add(5 * time.Millisecond)
	s.Stop()

	st := p.stats["build"]
	require.NotNil(t, st)
	assert.Equal(t, 2, st.count)
	assert.Equal(t, 40*time.Millisecond, st.total)
	assert.Equal(t, 30*time.Millisecond, st.max)

	var buf bytes.Buffer
	p.Summarize(&buf)
	out := buf.String()
	assert.Contains(t, out, "SPAN")
	assert.Less(t, strings.Index(out, "build"), strings.Index(out, "ledger.persist"))
	assert.Contains(t, out, "20ms")
}

func TestCobraProfilerTiming(t *testing.T) {
	defer Reset()

	cmd := &cobra.Command{
		Use: "test",
		Run: func(cmd *cobra.Command, args []string) {
			Start("work").Stop()
		},
	}
	NewCobraProfiler().Attach(cmd)

	var errOut bytes.Buffer
	cmd.SetErr(&errOut)
	memPath := filepath.Join(t.TempDir(), "mem.pprof")
	cmd.SetArgs([]string{"--timing", "--mem-profile", memPath})
	require.NoError(t, cmd.Execute())

	assert.True(t, Enabled())
	assert.Contains(t, errOut.String(), "work")
	assert.Contains(t, errOut.String(), "Memory profile written")
	_, err := os.Stat(memPath)
	assert.NoError(t, err)
}
