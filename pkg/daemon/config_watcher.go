package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/peersync/config"
	"github.com/grovetools/peersync/logging"
	"github.com/grovetools/peersync/pkg/paths"
	"github.com/grovetools/peersync/util/pathutil"
	"github.com/sirupsen/logrus"
)

// ReloadFunc receives a freshly loaded configuration and the file it came from.
type ReloadFunc func(cfg *config.Config, file string)

// EndpointSetter accepts a new hub endpoint. The engine implements it.
type EndpointSetter interface {
	SetEndpoint(endpoint string) bool
}

// PushEndpoint returns a ReloadFunc that forwards the hub endpoint of every
// reloaded configuration to s.
func PushEndpoint(s EndpointSetter) ReloadFunc {
	return func(cfg *config.Config, _ string) {
		s.SetEndpoint(cfg.Hub.Endpoint)
	}
}

// ConfigWatcher watches the configuration file for changes and reloads it.
type ConfigWatcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *logrus.Entry
	onReload []ReloadFunc

	// file is the watched config file; empty means any peersync config
	// file appearing in dir.
	file         string
	dir          string
	targetToLink map[string]string // Maps symlink targets to the watched link path

	mu      sync.Mutex
	timer   *time.Timer
	pending string
}

// NewConfigWatcher creates a ConfigWatcher for configPath. With an empty path
// it watches the peersync config directory for a config file to appear.
// Rapid writes within debounceMs are collapsed into one reload of the last
// written file.
func NewConfigWatcher(configPath string, debounceMs int, onReload ...ReloadFunc) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger("config-watcher")

	dir := paths.ConfigDir()
	if configPath != "" {
		dir = filepath.Dir(configPath)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	// fsnotify doesn't follow symlinks, so the target directory is watched too
	targetToLink := make(map[string]string)
	if configPath != "" {
		if info, err := os.Lstat(configPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
			if target, err := filepath.EvalSymlinks(configPath); err == nil {
				targetToLink[target] = configPath
				targetDir := filepath.Dir(target)
				if targetDir != dir {
					if err := watcher.Add(targetDir); err != nil {
						logger.WithError(err).Warnf("Failed to watch symlink target dir %s", targetDir)
					} else {
						logger.Debugf("Watching symlink target directory: %s", targetDir)
					}
				}
			} else {
				logger.WithError(err).Warnf("Failed to resolve symlink %s", configPath)
			}
		}
	}

	if debounceMs <= 0 {
		debounceMs = config.DefaultConfigDebounceMs
	}

	return &ConfigWatcher{
		watcher:      watcher,
		debounce:     time.Duration(debounceMs) * time.Millisecond,
		logger:       logger,
		onReload:     onReload,
		file:         configPath,
		dir:          dir,
		targetToLink: targetToLink,
	}, nil
}

// Start begins watching for config changes. It blocks until the context is cancelled.
func (w *ConfigWatcher) Start(ctx context.Context) {
	defer w.stopTimer()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if file, ok := w.match(event.Name); ok {
				w.schedule(file)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			w.watcher.Close()
			return
		}
	}
}

// match maps an event path to the config file it affects.
func (w *ConfigWatcher) match(name string) (string, bool) {
	if link, ok := w.targetToLink[name]; ok {
		w.logger.Debugf("Mapped symlink target %s -> %s", name, link)
		return link, true
	}
	if w.file != "" {
		return w.file, pathutil.SamePath(name, w.file)
	}
	return name, filepath.Dir(name) == w.dir && config.IsConfigFileName(filepath.Base(name))
}

// schedule restarts the debounce timer for file.
func (w *ConfigWatcher) schedule(file string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = file
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *ConfigWatcher) fire() {
	w.mu.Lock()
	file := w.pending
	w.pending = ""
	w.mu.Unlock()
	if file != "" {
		w.reload(file)
	}
}

func (w *ConfigWatcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pending = ""
}

// reload loads file and hands it to every callback. A file that fails to
// parse is reported and the previous configuration stays in effect.
func (w *ConfigWatcher) reload(file string) {
	cfg, err := config.Load(file)
	if err != nil {
		w.logger.WithError(err).Warnf("Ignoring invalid config change in %s", filepath.Base(file))
		return
	}

	w.logger.Infof("Config changed: %s", filepath.Base(file))
	for _, fn := range w.onReload {
		fn(cfg, file)
	}
}

// Close stops the watcher and releases resources.
func (w *ConfigWatcher) Close() error {
	w.stopTimer()
	return w.watcher.Close()
}
