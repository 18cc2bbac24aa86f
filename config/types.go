package config

import (
	"fmt"
	"time"

	"github.com/grovetools/peersync/pkg/models"
	"github.com/mitchellh/mapstructure"
)

//go:generate sh -c "cd .. && go run ./tools/schema-generator/"

// Default values applied by SetDefaults.
const (
	DefaultVersion          = "1.0"
	DefaultTokenEnv         = "PEERSYNC_TOKEN"
	DefaultHandshakeTimeout = "10s"
	DefaultPingInterval     = "15s"
	DefaultDebounce         = "1s"
	DefaultFastDebounce     = "500ms"
	DefaultTickInterval     = "250ms"
	DefaultLedgerBackend    = "file"
	DefaultMaxStored        = 100
	DefaultConfigDebounceMs = 100
)

// HubConfig configures the connection to the sync hub.
type HubConfig struct {
	Endpoint         string `yaml:"endpoint,omitempty" toml:"endpoint,omitempty" jsonschema:"description=Hub URL (ws://, wss://, http:// or https://)" jsonschema_extras:"x-priority=1,x-important=true"`
	TokenEnv         string `yaml:"token_env,omitempty" toml:"token_env,omitempty" jsonschema:"description=Environment variable holding the hub auth token (default: PEERSYNC_TOKEN)"`
	HandshakeTimeout string `yaml:"handshake_timeout,omitempty" toml:"handshake_timeout,omitempty" jsonschema:"description=Websocket handshake timeout (default: 10s)"`
	PingInterval     string `yaml:"ping_interval,omitempty" toml:"ping_interval,omitempty" jsonschema:"description=Keepalive ping interval (default: 15s)"`
}

// PipelineConfig configures the change collector and builder.
type PipelineConfig struct {
	Debounce     string   `yaml:"debounce,omitempty" toml:"debounce,omitempty" jsonschema:"description=Quiet period before a build pass fires (default: 1s)"`
	FastDebounce string   `yaml:"fast_debounce,omitempty" toml:"fast_debounce,omitempty" jsonschema:"description=Quiet period for fast kinds (default: 500ms)"`
	TickInterval string   `yaml:"tick_interval,omitempty" toml:"tick_interval,omitempty" jsonschema:"description=Builder poll interval (default: 250ms)"`
	FastKinds    []string `yaml:"fast_kinds,omitempty" toml:"fast_kinds,omitempty" jsonschema:"description=Change kinds that use the fast debounce window"`
}

// LedgerConfig configures notification persistence.
type LedgerConfig struct {
	Backend   string `yaml:"backend,omitempty" toml:"backend,omitempty" jsonschema:"description=Persistence backend,enum=file,enum=sqlite,enum=memory"`
	Path      string `yaml:"path,omitempty" toml:"path,omitempty" jsonschema:"description=Ledger file location (default: state dir)"`
	MaxStored int    `yaml:"max_stored,omitempty" toml:"max_stored,omitempty" jsonschema:"description=Maximum number of stored notifications (default: 100),minimum=1"`
}

// WatchConfig maps filesystem paths to a change kind.
type WatchConfig struct {
	Kind  string   `yaml:"kind" toml:"kind" jsonschema:"description=Change kind emitted for events under these paths"`
	Paths []string `yaml:"paths" toml:"paths" jsonschema:"description=Files or directories to watch"`
	// Ignore uses .dockerignore syntax and is matched against file names.
	Ignore []string `yaml:"ignore,omitempty" toml:"ignore,omitempty" jsonschema:"description=File name patterns whose events are dropped (e.g. *.swp)"`
}

// SourcesConfig lists raw signal sources.
type SourcesConfig struct {
	Watch []WatchConfig `yaml:"watch,omitempty" toml:"watch,omitempty" jsonschema:"description=Filesystem watch sources"`
}

// DaemonConfig holds configuration for the peersync daemon.
type DaemonConfig struct {
	ConfigWatch      *bool `yaml:"config_watch,omitempty" toml:"config_watch,omitempty" jsonschema:"description=Reload the hub endpoint when the config file changes (default: true)"`
	ConfigDebounceMs int   `yaml:"config_debounce_ms,omitempty" toml:"config_debounce_ms,omitempty" jsonschema:"description=Debounce window for rapid config changes in milliseconds (default: 100)"`
}

// Config represents the peersync configuration file.
type Config struct {
	Version  string         `yaml:"version,omitempty" toml:"version,omitempty" jsonschema:"description=Configuration version (e.g. 1.0)"`
	Hub      HubConfig      `yaml:"hub,omitempty" toml:"hub,omitempty" jsonschema:"description=Sync hub connection"`
	Pipeline PipelineConfig `yaml:"pipeline,omitempty" toml:"pipeline,omitempty" jsonschema:"description=Change aggregation and build settings"`
	Ledger   LedgerConfig   `yaml:"ledger,omitempty" toml:"ledger,omitempty" jsonschema:"description=Notification ledger settings"`
	Sources  SourcesConfig  `yaml:"sources,omitempty" toml:"sources,omitempty" jsonschema:"description=Raw change signal sources"`
	Daemon   DaemonConfig   `yaml:"daemon,omitempty" toml:"daemon,omitempty" jsonschema:"description=Daemon behaviour"`

	// Extensions captures all other top-level keys for extensibility.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" jsonschema:"-"`
}

// knownKeys are the top-level keys decoded into Config fields.
var knownKeys = map[string]bool{
	"version":  true,
	"hub":      true,
	"pipeline": true,
	"ledger":   true,
	"sources":  true,
	"daemon":   true,
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.SetDefaults()
	return c
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.Hub.TokenEnv == "" {
		c.Hub.TokenEnv = DefaultTokenEnv
	}
	if c.Hub.HandshakeTimeout == "" {
		c.Hub.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Hub.PingInterval == "" {
		c.Hub.PingInterval = DefaultPingInterval
	}
	if c.Pipeline.Debounce == "" {
		c.Pipeline.Debounce = DefaultDebounce
	}
	if c.Pipeline.FastDebounce == "" {
		c.Pipeline.FastDebounce = DefaultFastDebounce
	}
	if c.Pipeline.TickInterval == "" {
		c.Pipeline.TickInterval = DefaultTickInterval
	}
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = DefaultLedgerBackend
	}
	if c.Ledger.MaxStored == 0 {
		c.Ledger.MaxStored = DefaultMaxStored
	}
	if c.Daemon.ConfigWatch == nil {
		trueVal := true
		c.Daemon.ConfigWatch = &trueVal
	}
	if c.Daemon.ConfigDebounceMs == 0 {
		c.Daemon.ConfigDebounceMs = DefaultConfigDebounceMs
	}
}

// HandshakeTimeoutDuration returns the parsed handshake timeout.
func (h HubConfig) HandshakeTimeoutDuration() time.Duration {
	return mustDuration(h.HandshakeTimeout, DefaultHandshakeTimeout)
}

// PingIntervalDuration returns the parsed ping interval.
func (h HubConfig) PingIntervalDuration() time.Duration {
	return mustDuration(h.PingInterval, DefaultPingInterval)
}

// DebounceDuration returns the parsed normal debounce window.
func (p PipelineConfig) DebounceDuration() time.Duration {
	return mustDuration(p.Debounce, DefaultDebounce)
}

// FastDebounceDuration returns the parsed fast debounce window.
func (p PipelineConfig) FastDebounceDuration() time.Duration {
	return mustDuration(p.FastDebounce, DefaultFastDebounce)
}

// TickIntervalDuration returns the parsed builder tick interval.
func (p PipelineConfig) TickIntervalDuration() time.Duration {
	return mustDuration(p.TickInterval, DefaultTickInterval)
}

// Kinds resolves FastKinds. Unknown names are skipped; Validate reports them.
func (p PipelineConfig) Kinds() []models.ChangeKind {
	var kinds []models.ChangeKind
	for _, name := range p.FastKinds {
		if k, err := models.ParseChangeKind(name); err == nil {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// ConfigWatchEnabled reports whether config reloading is on.
func (d DaemonConfig) ConfigWatchEnabled() bool {
	return d.ConfigWatch == nil || *d.ConfigWatch
}

// mustDuration parses s, falling back to def on error. Validate rejects
// malformed values before they reach here.
func mustDuration(s, def string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	d, _ := time.ParseDuration(def)
	return d
}

// UnmarshalExtension decodes a specific extension's configuration into the
// provided target struct. The target must be a pointer.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// It's not an error if the key doesn't exist.
		// The target struct will simply remain zero-valued.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
