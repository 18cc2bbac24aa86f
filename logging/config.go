package logging

// Config is the "logging" extension section of peersync.yml. Environment
// variables PEERSYNC_LOG_LEVEL and PEERSYNC_LOG_CALLER take precedence.
type Config struct {
	Level        string         `yaml:"level" jsonschema:"description=Minimum level,enum=trace,enum=debug,enum=info,enum=warn,enum=warning,enum=error"`
	ReportCaller bool           `yaml:"report_caller" jsonschema:"description=Include file and line of the log call"`
	File         FileSinkConfig `yaml:"file" jsonschema:"description=Daily log file sink"`
	Format       FormatConfig   `yaml:"format" jsonschema:"description=Console output format"`
}

// FileSinkConfig configures the file sink. By default one file per day is
// written to the log directory.
type FileSinkConfig struct {
	Disabled bool   `yaml:"disabled" jsonschema:"description=Turn the file sink off"`
	Path     string `yaml:"path" jsonschema:"description=Fixed log file instead of the daily file (~ and $VARS expand)"`
	Format   string `yaml:"format,omitempty" jsonschema:"description=Line format of the file sink,enum=text,enum=json"`
}

// FormatConfig controls console output.
type FormatConfig struct {
	// Preset is "default", "simple" or "json".
	Preset           string `yaml:"preset" jsonschema:"enum=default,enum=simple,enum=json"`
	DisableTimestamp bool   `yaml:"disable_timestamp"`
	DisableComponent bool   `yaml:"disable_component"`
	// StructuredToStderr is "auto" (debug level or non-TTY stderr), "always" or "never".
	StructuredToStderr string `yaml:"structured_to_stderr" jsonschema:"enum=auto,enum=always,enum=never"`
}
