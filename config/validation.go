package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/grovetools/peersync/errors"
	"github.com/grovetools/peersync/pkg/models"
	"github.com/moby/patternmatcher"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Hub.Endpoint != "" {
		u, err := url.Parse(c.Hub.Endpoint)
		if err != nil || u.Host == "" {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("hub.endpoint is not a valid URL: %s", c.Hub.Endpoint)).
				WithDetail("field", "hub.endpoint")
		}
		switch u.Scheme {
		case "ws", "wss", "http", "https":
		default:
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("hub.endpoint has unsupported scheme %q", u.Scheme)).
				WithDetail("field", "hub.endpoint")
		}
	}

	durations := []struct {
		field string
		value string
	}{
		{"hub.handshake_timeout", c.Hub.HandshakeTimeout},
		{"hub.ping_interval", c.Hub.PingInterval},
		{"pipeline.debounce", c.Pipeline.Debounce},
		{"pipeline.fast_debounce", c.Pipeline.FastDebounce},
		{"pipeline.tick_interval", c.Pipeline.TickInterval},
	}
	for _, d := range durations {
		if err := validateDuration(d.field, d.value); err != nil {
			return err
		}
	}

	for _, name := range c.Pipeline.FastKinds {
		if _, err := models.ParseChangeKind(name); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid pipeline.fast_kinds entry").
				WithDetail("kind", name)
		}
	}

	switch c.Ledger.Backend {
	case "file", "sqlite", "memory":
	default:
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("unknown ledger.backend %q", c.Ledger.Backend)).
			WithDetail("field", "ledger.backend")
	}
	if c.Ledger.MaxStored < 1 {
		return errors.New(errors.ErrCodeConfigValidation, "ledger.max_stored must be at least 1")
	}

	for i, w := range c.Sources.Watch {
		if _, err := models.ParseChangeKind(w.Kind); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigValidation, fmt.Sprintf("invalid kind in sources.watch[%d]", i)).
				WithDetail("kind", w.Kind)
		}
		if len(w.Paths) == 0 {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("sources.watch[%d] has no paths", i))
		}
		if _, err := patternmatcher.New(w.Ignore); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigValidation, fmt.Sprintf("invalid ignore pattern in sources.watch[%d]", i)).
				WithDetail("ignore", w.Ignore)
		}
	}

	return nil
}

func validateDuration(field, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigValidation, fmt.Sprintf("%s is not a duration", field)).
			WithDetail("field", field)
	}
	if d <= 0 {
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s must be positive", field)).
			WithDetail("field", field)
	}
	return nil
}
