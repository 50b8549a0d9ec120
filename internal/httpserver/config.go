// Package httpserver is the small Gin server a long-running process
// exposes for liveness, readiness, and Prometheus scraping; start-worker
// is the only verb that runs one. It carries no public-facing routes.
package httpserver

import "time"

const (
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
)

// Config holds the ops server configuration.
type Config struct {
	Port            int
	Debug           bool
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	ServiceName     string
	ServiceVersion  string
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "dev"
	}
}

// NewConfig returns a Config for serviceName listening on port.
func NewConfig(serviceName string, port int) *Config {
	cfg := &Config{Port: port, ServiceName: serviceName}
	cfg.SetDefaults()
	return cfg
}
