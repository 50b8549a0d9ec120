package config

import (
	"errors"
	"fmt"
)

// ValidationError is a single field-level configuration problem.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	ErrRequired     = errors.New("field is required")
	ErrInvalidLevel = errors.New("invalid log level")
)

// ValidateRequired checks a non-empty field.
func ValidateRequired(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// ValidatePort checks a port is in the valid range.
func ValidatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return &ValidationError{Field: field, Message: "must be between 1 and 65535"}
	}
	return nil
}

// ValidateLogLevel checks level is one zap understands.
func ValidateLogLevel(level string) error {
	switch level {
	case "debug", "info", "warn", "warning", "error", "fatal":
		return nil
	default:
		return &ValidationError{Field: "level", Message: "must be one of: debug, info, warn, error, fatal"}
	}
}

// ValidateLogFormat checks format. "console" is accepted so a config
// file that sets it still validates, but logger.New ignores the value
// and always writes JSON.
func ValidateLogFormat(format string) error {
	switch format {
	case "json", "console":
		return nil
	default:
		return &ValidationError{Field: "format", Message: "must be one of: json, console"}
	}
}

// Validator is implemented by any sub-config that can validate itself.
type Validator interface {
	Validate() error
}

func (c *ServerConfig) Validate() error {
	if c.Port != 0 {
		return ValidatePort("server.port", c.Port)
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return &ValidationError{Field: "database.host", Message: "is required"}
	}
	if err := ValidatePort("database.port", c.Port); err != nil {
		return err
	}
	if c.User == "" {
		return &ValidationError{Field: "database.user", Message: "is required"}
	}
	if c.Database == "" {
		return &ValidationError{Field: "database.database", Message: "is required"}
	}
	return nil
}

func (c *WorkerConfig) Validate() error {
	if c.StorageRoot == "" {
		return &ValidationError{Field: "worker.storage_root", Message: "is required"}
	}
	if c.LockDir == "" {
		return &ValidationError{Field: "worker.lock_dir", Message: "is required"}
	}
	if c.MaxRetries < 0 {
		return &ValidationError{Field: "worker.max_retries", Message: "must not be negative"}
	}
	return nil
}

func (c *WatchdogConfig) Validate() error {
	if c.ConfirmRuns < 1 {
		return &ValidationError{Field: "watchdog.confirm_runs", Message: "must be at least 1"}
	}
	if c.SentinelDir == "" {
		return &ValidationError{Field: "watchdog.sentinel_dir", Message: "is required"}
	}
	return nil
}

func (c *LoggingConfig) Validate() error {
	if c.Level != "" {
		if err := ValidateLogLevel(c.Level); err != nil {
			return err
		}
	}
	if c.Format != "" {
		if err := ValidateLogFormat(c.Format); err != nil {
			return err
		}
	}
	return nil
}
