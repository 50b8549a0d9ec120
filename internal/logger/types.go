// Package logger provides the structured logging interface used across
// the archive pipeline's processes (worker, watchdogs, CLI).
package logger

// Config is the logger configuration.
type Config struct {
	// Level is the minimum logging level (debug, info, warn, error, fatal).
	Level string `env:"LOG_LEVEL" yaml:"level"`
	// Format is always "json"; kept so a config file can still set it
	// explicitly without failing validation.
	Format string `env:"LOG_FORMAT" yaml:"format"`
	// Development disables log sampling.
	Development bool `yaml:"development"`
	// OutputPaths is a list of sinks ("stdout", file paths) to write to.
	OutputPaths []string `yaml:"output_paths"`
}

// Default configuration values.
const (
	DefaultLevel  = "info"
	DefaultFormat = "json"
)

// DefaultOutputPaths is the default sink list.
var DefaultOutputPaths = []string{"stdout"}

// SetDefaults fills unset fields with their defaults.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = DefaultLevel
	}
	if c.Format == "" {
		c.Format = DefaultFormat
	}
	if len(c.OutputPaths) == 0 {
		c.OutputPaths = DefaultOutputPaths
	}
}
