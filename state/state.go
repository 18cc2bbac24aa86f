// Package state persists the few daemon settings that must survive a restart,
// such as the halt flag.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/grovetools/peersync/pkg/paths"
	"gopkg.in/yaml.v3"
)

// KeyHalted records whether snapshot builds were halted.
const KeyHalted = "halted"

// State is the decoded content of a state file.
type State map[string]interface{}

// File is a YAML state file. Each operation re-reads the file, so several
// handles on the same path stay consistent.
type File struct {
	path string
	mu   sync.Mutex
}

// DefaultPath returns state.yml in the peersync state directory.
func DefaultPath() string {
	return filepath.Join(paths.StateDir(), "state.yml")
}

// Open returns a handle on path. The file is created on first write.
func Open(path string) *File {
	if path == "" {
		path = DefaultPath()
	}
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string { return f.path }

// Load returns the stored state, or an empty one if the file doesn't exist.
func (f *File) Load() (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *File) load() (State, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(State), nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var s State
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	if s == nil {
		s = make(State)
	}
	return s, nil
}

// Save replaces the stored state.
func (f *File) Save(s State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.save(s)
}

func (f *File) save(s State) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// Get retrieves a value by key.
func (f *File) Get(key string) (interface{}, bool, error) {
	s, err := f.Load()
	if err != nil {
		return nil, false, err
	}
	val, ok := s[key]
	return val, ok, nil
}

// GetBool returns the value of key, or false if it is missing or not a bool.
func (f *File) GetBool(key string) (bool, error) {
	val, ok, err := f.Get(key)
	if err != nil || !ok {
		return false, err
	}
	b, _ := val.(bool)
	return b, nil
}

// GetString returns the value of key, or "" if it is missing or not a string.
func (f *File) GetString(key string) (string, error) {
	val, ok, err := f.Get(key)
	if err != nil || !ok {
		return "", err
	}
	str, _ := val.(string)
	return str, nil
}

// Set stores value under key.
func (f *File) Set(key string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, err := f.load()
	if err != nil {
		return err
	}
	s[key] = value
	return f.save(s)
}

// Delete removes key.
func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := s[key]; !ok {
		return nil
	}
	delete(s, key)
	return f.save(s)
}
