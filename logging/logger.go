package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/peersync/config"
	"github.com/grovetools/peersync/pkg/paths"
	"github.com/grovetools/peersync/util/pathutil"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
)

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	entry := newLogger(component, loadConfig())
	loggers[component] = entry
	return entry
}

// Reset drops every cached logger so the next NewLogger re-reads configuration.
func Reset() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	loggers = make(map[string]*logrus.Entry)
}

// LogFilePath returns the daily log file shared by all components.
func LogFilePath(day time.Time) string {
	return filepath.Join(paths.LogDir(), fmt.Sprintf("peersync-%s.log", day.Format("2006-01-02")))
}

// SinkPath returns the file the sink writes to on the given day.
func SinkPath(cfg Config, day time.Time) string {
	if cfg.File.Path != "" {
		return pathutil.MustExpand(cfg.File.Path)
	}
	return LogFilePath(day)
}

// LoadConfig reads the "logging" section of the default peersync config.
func LoadConfig() Config {
	return loadConfig()
}

func loadConfig() Config {
	var logCfg Config
	cfg, _, err := config.LoadDefault()
	if err != nil {
		return logCfg
	}
	// Use UnmarshalExtension to safely decode the logging part
	if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
		// Log a warning if parsing fails, but continue with defaults
		logrus.Warnf("Failed to parse 'logging' config: %v", err)
	}
	return logCfg
}

func newLogger(component string, logCfg Config) *logrus.Entry {
	logger := logrus.New()

	// Configure Level
	levelStr := "info" // Default level
	if os.Getenv("PEERSYNC_LOG_LEVEL") != "" {
		levelStr = os.Getenv("PEERSYNC_LOG_LEVEL")
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Configure Caller Reporting
	if os.Getenv("PEERSYNC_LOG_CALLER") == "true" || logCfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	// Configure Formatter
	switch logCfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		logger.SetFormatter(&TextFormatter{Config: logCfg.Format})
	}

	// Configure File Sink
	if !logCfg.File.Disabled {
		logFilePath := SinkPath(logCfg, time.Now())
		if hook, err := newFileHook(logFilePath, logCfg.File.Format); err == nil {
			logger.AddHook(hook)
		}
	}

	// Determine if we should write structured logs to stderr
	shouldLogToStderr := false
	stderrMode := "auto"
	if logCfg.Format.StructuredToStderr != "" {
		stderrMode = logCfg.Format.StructuredToStderr
	}

	switch stderrMode {
	case "always":
		shouldLogToStderr = true
	case "never":
		shouldLogToStderr = false
	case "auto":
		// Log to stderr if debug is enabled, or if not in an interactive terminal
		isDebug := os.Getenv("PEERSYNC_DEBUG") == "1" || logger.GetLevel() >= logrus.DebugLevel
		isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
		if isDebug || !isInteractive {
			shouldLogToStderr = true
		}
	}

	if shouldLogToStderr {
		logger.SetOutput(GetGlobalOutput())
	} else {
		logger.SetOutput(io.Discard)
	}

	return logger.WithField("component", component)
}

// fileHook writes every entry to a log file with its own formatter, so the
// file keeps a stable format regardless of the stderr preset.
type fileHook struct {
	mu        sync.Mutex
	file      *os.File
	formatter logrus.Formatter
}

func newFileHook(path, format string) (*fileHook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	var formatter logrus.Formatter = &logrus.TextFormatter{DisableColors: true, FullTimestamp: true}
	if format == "json" {
		formatter = &logrus.JSONFormatter{}
	}
	return &fileHook{file: file, formatter: formatter}, nil
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.file.Write(line)
	return err
}

