package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/peersync/cli"
	"github.com/grovetools/peersync/logging"
	"github.com/grovetools/peersync/pkg/paths"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// NewLogsCmd returns the command that prints the daemon log.
func NewLogsCmd() *cobra.Command {
	var (
		follow bool
		lines  int
		file   string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the peersync log",
		Long: `Show the peersync log.

Reads the configured file sink, or the newest log in the log directory.

Examples:
  peersync logs --tail 50
  peersync logs -f`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := file
			if path == "" {
				var err error
				path, err = resolveLogFile(logging.LoadConfig())
				if err != nil {
					return err
				}
			}

			p := newLogPrinter(cmd.OutOrStdout(), cli.GetOptions(cmd).JSONOutput)
			offset, err := printLastLines(path, lines, p)
			if err != nil {
				return err
			}
			if !follow {
				return nil
			}
			return followLog(cmd, path, offset, p)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow new log lines")
	cmd.Flags().IntVarP(&lines, "tail", "n", 100, "Number of trailing lines to show (0 for all)")
	cmd.Flags().StringVar(&file, "file", "", "Read this log file instead of the configured one")
	return cmd
}

// resolveLogFile prefers today's sink file and falls back to the newest
// non-empty file in the log directory.
func resolveLogFile(cfg logging.Config) (string, error) {
	current := logging.SinkPath(cfg, time.Now())
	if info, err := os.Stat(current); err == nil && info.Size() > 0 {
		return current, nil
	}
	return findLatestLogFile(filepath.Dir(current))
}

// findLatestLogFile finds the most recently modified non-empty file in dir.
func findLatestLogFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("could not read log directory %s: %w", dir, err)
	}

	var latestPath string
	var latestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		if latestPath == "" || info.ModTime().After(latestMod) {
			latestPath = filepath.Join(dir, entry.Name())
			latestMod = info.ModTime()
		}
	}
	if latestPath == "" {
		return "", fmt.Errorf("no log files found in %s (default: %s)", dir, paths.LogDir())
	}
	return latestPath, nil
}

// printLastLines prints the final n lines of path and returns the offset
// reading stopped at.
func printLastLines(path string, n int, p *logPrinter) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var ring []string
	var offset int64
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			// A partial final line is left for the follower.
			break
		}
		if err != nil {
			return 0, err
		}
		offset += int64(len(line))
		ring = append(ring, strings.TrimRight(line, "\r\n"))
		if n > 0 && len(ring) > n {
			ring = ring[1:]
		}
	}

	for _, line := range ring {
		p.print(line)
	}
	return offset, nil
}

func followLog(cmd *cobra.Command, path string, offset int64, p *logPrinter) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Location: &tail.SeekInfo{Offset: offset, Whence: io.SeekStart},
		Logger:   stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return err
	}
	defer t.Cleanup()

	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			return t.Stop()
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				continue
			}
			p.print(line.Text)
		}
	}
}

type logPrinter struct {
	out      io.Writer
	jsonOut  bool
	muted    lipgloss.Style
	accent   lipgloss.Style
	levelFor func(level string) lipgloss.Style
}

func newLogPrinter(out io.Writer, jsonOut bool) *logPrinter {
	r := lipgloss.NewRenderer(out)
	errStyle := r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warnStyle := r.NewStyle().Foreground(lipgloss.Color("11"))
	infoStyle := r.NewStyle().Foreground(lipgloss.Color("12"))
	muted := r.NewStyle().Foreground(lipgloss.Color("8"))

	return &logPrinter{
		out:     out,
		jsonOut: jsonOut,
		muted:   muted,
		accent:  r.NewStyle().Foreground(lipgloss.Color("13")),
		levelFor: func(level string) lipgloss.Style {
			switch strings.ToLower(level) {
			case "error", "fatal", "panic":
				return errStyle
			case "warning", "warn":
				return warnStyle
			case "info":
				return infoStyle
			default:
				return muted
			}
		},
	}
}

// print renders one sink line. JSON lines are pretty-printed; anything else
// is passed through.
func (p *logPrinter) print(line string) {
	if line == "" {
		return
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		if p.jsonOut {
			data, _ := json.Marshal(map[string]string{"raw_line": line})
			fmt.Fprintln(p.out, string(data))
			return
		}
		fmt.Fprintln(p.out, line)
		return
	}

	if p.jsonOut {
		fmt.Fprintln(p.out, line)
		return
	}

	ts, _ := entry["time"].(string)
	level, _ := entry["level"].(string)
	msg, _ := entry["msg"].(string)
	component, _ := entry["component"].(string)

	timeStr := ts
	if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		timeStr = parsed.Local().Format("15:04:05")
	}

	keys := make([]string, 0, len(entry))
	for k := range entry {
		switch k {
		case "time", "level", "msg", "component":
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, fmt.Sprintf("%s=%v", p.muted.Render(k), entry[k]))
	}

	parts := []string{
		p.muted.Render(timeStr),
		p.levelFor(level).Render(strings.ToUpper(level)),
	}
	if component != "" {
		parts = append(parts, p.accent.Render("["+component+"]"))
	}
	parts = append(parts, msg)
	if len(fields) > 0 {
		parts = append(parts, strings.Join(fields, " "))
	}
	fmt.Fprintln(p.out, strings.Join(parts, " "))
}
