package source

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/peersync/pkg/models"
	"github.com/grovetools/peersync/util/pathutil"
	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"
)

// WatchSource turns filesystem changes under a set of paths into signals of
// one kind. The changed path is the signal's handle.
type WatchSource struct {
	kind   models.ChangeKind
	paths  []string
	ignore *patternmatcher.PatternMatcher
	logger *logrus.Entry
}

// NewWatchSource creates a source for kind watching paths. Events for files
// whose name matches an ignore pattern (e.g. "*.swp", "*~", "!keep.tmp") are
// dropped.
func NewWatchSource(kind models.ChangeKind, paths, ignore []string, logger *logrus.Entry) (*WatchSource, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &WatchSource{kind: kind, paths: paths, logger: logger}
	if len(ignore) > 0 {
		pm, err := patternmatcher.New(ignore)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern for %s: %w", kind, err)
		}
		s.ignore = pm
	}
	return s, nil
}

// Ignored reports whether an event for name is filtered out. fsnotify watches
// are not recursive, so only the base name is matched.
func (s *WatchSource) Ignored(name string) bool {
	if s.ignore == nil {
		return false
	}
	ok, err := s.ignore.MatchesOrParentMatches(filepath.Base(name))
	if err != nil {
		s.logger.WithError(err).WithField("path", name).Debug("Ignore pattern match failed")
		return false
	}
	return ok
}

// Name returns the source's name.
func (s *WatchSource) Name() string { return "watch:" + s.kind.String() }

// Run watches until ctx is cancelled. It fails only if no path could be watched.
func (s *WatchSource) Run(ctx context.Context, n Notifier) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	added := 0
	for _, p := range s.paths {
		abs := pathutil.MustExpand(p)
		if err := watcher.Add(abs); err != nil {
			s.logger.WithError(err).WithField("path", abs).Warn("Failed to watch path")
			continue
		}
		added++
	}
	if added == 0 {
		return fmt.Errorf("no watchable paths for %s", s.kind)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if s.Ignored(event.Name) {
				continue
			}
			s.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			n.Notify(s.kind, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Errorf("Watcher error: %v", err)
		}
	}
}
