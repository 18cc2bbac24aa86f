package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grovetools/peersync/errors"
	"github.com/grovetools/peersync/pkg/paths"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// configNames are searched in order in every directory.
var configNames = []string{
	"peersync.yml",
	"peersync.yaml",
	"peersync.toml",
	".peersync.yml",
	".peersync.yaml",
	".peersync.toml",
}

// IsConfigFileName reports whether name is one of the searched file names.
func IsConfigFileName(name string) bool {
	for _, n := range configNames {
		if n == name {
			return true
		}
	}
	return false
}

// FormatForPath picks the syntax from the file extension. YAML is the default.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Load reads and parses a peersync configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	cfg, err := LoadFromBytes(data, FormatForPath(path))
	if err != nil {
		if pe, ok := err.(*errors.PeerError); ok {
			return nil, pe.WithDetail("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// LoadDefault finds and loads the configuration starting at the working
// directory. When no file exists the defaults are returned with an empty path.
func LoadDefault() (*Config, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}

	path, err := FindConfigFile(cwd)
	if err != nil {
		if errors.Is(err, errors.ErrCodeConfigNotFound) {
			return Default(), "", nil
		}
		return nil, "", err
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// LoadFromBytes parses, schema-checks, defaults and validates a configuration.
func LoadFromBytes(data []byte, format Format) (*Config, error) {
	// Expand environment variables
	expanded := []byte(expandEnvVars(string(data)))

	raw := map[string]interface{}{}
	if err := decode(expanded, format, &raw); err != nil {
		return nil, err
	}

	// Validate against schema before the typed decode so type mismatches are
	// reported as validation errors.
	if err := ValidateDocument(raw); err != nil {
		return nil, err
	}

	var config Config
	if err := decode(expanded, format, &config); err != nil {
		return nil, err
	}
	if format == FormatTOML {
		// go-toml has no inline capture; collect unknown tables by hand.
		for k, v := range raw {
			if knownKeys[k] {
				continue
			}
			if config.Extensions == nil {
				config.Extensions = make(map[string]interface{})
			}
			config.Extensions[k] = v
		}
	}

	config.SetDefaults()

	if err := config.Validate(); err != nil {
		return nil, err // Already returns structured error from validation
	}

	return &config, nil
}

func decode(data []byte, format Format, target interface{}) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, target); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML configuration")
		}
	default:
		if err := yaml.Unmarshal(data, target); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML configuration")
		}
	}
	return nil
}

// FindConfigFile searches for peersync configuration files with the following precedence:
// 1. Current directory up to filesystem root
// 2. Config directory (PEERSYNC_HOME or XDG)
func FindConfigFile(startDir string) (string, error) {
	dir := startDir
	for {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	for _, name := range configNames[:3] {
		path := filepath.Join(paths.ConfigDir(), name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}

	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
}

// Marshal renders the configuration in the given syntax.
func (c *Config) Marshal(format Format) ([]byte, error) {
	switch format {
	case FormatTOML:
		return toml.Marshal(c)
	default:
		return yaml.Marshal(c)
	}
}

// JSON renders the configuration as indented JSON using the YAML field names.
func (c *Config) JSON() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, err
	}
	var generic map[string]interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return json.MarshalIndent(generic, "", "  ")
}

// expandEnvVars replaces ${VAR} with environment variable values
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		// Handle default values: ${VAR:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}
