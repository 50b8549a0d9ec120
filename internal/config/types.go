package config

import (
	"strconv"
	"time"
)

// Config is the top-level configuration shared by the worker, watchdog,
// and CLI processes (each loads the same file, reads only the sections
// it needs).
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Worker   WorkerConfig   `yaml:"worker"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	Logging  LoggingConfig  `yaml:"logging"`
	Crawler  CrawlerConfig  `yaml:"crawler"`
}

// SetDefaults fills in every sub-config's defaults.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Database.SetDefaults()
	c.Redis.SetDefaults()
	c.Worker.SetDefaults()
	c.Watchdog.SetDefaults()
	c.Logging.SetDefaults()
	c.Crawler.SetDefaults()
}

// Validate validates every sub-config.
func (c *Config) Validate() error {
	for _, v := range []Validator{&c.Server, &c.Database, &c.Worker, &c.Watchdog, &c.Logging} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ServerConfig configures the ops HTTP server (/healthz, /readyz,
// /metrics) each long-running process exposes.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port" env:"OPS_PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// Address returns the listen address in host:port form.
func (c *ServerConfig) Address() string {
	if c.Host == "" {
		return ":" + strconv.Itoa(c.Port)
	}
	return c.Host + ":" + strconv.Itoa(c.Port)
}

func (c *ServerConfig) SetDefaults() {
	if c.Port == 0 {
		c.Port = 9090
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
}

// DatabaseConfig configures the Postgres job store connection.
type DatabaseConfig struct {
	Host            string        `yaml:"host" env:"DB_HOST"`
	Port            int           `yaml:"port" env:"DB_PORT"`
	User            string        `yaml:"user" env:"DB_USER"`
	Password        string        `yaml:"password" env:"DB_PASSWORD"`
	Database        string        `yaml:"database" env:"DB_NAME"`
	SSLMode         string        `yaml:"sslmode" env:"DB_SSLMODE"`
	MaxConnections  int           `yaml:"max_connections"`
	MaxIdleConns    int           `yaml:"max_idle_connections"`
	ConnMaxLifetime time.Duration `yaml:"connection_max_lifetime"`
}

// DSN returns the lib/pq connection string.
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Database +
		" sslmode=" + c.SSLMode
}

func (c *DatabaseConfig) SetDefaults() {
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = 10
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 2
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = 5 * time.Minute
	}
}

// RedisConfig configures the job-lifecycle event stream.
type RedisConfig struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	// Stream is the Redis stream name events are XAdd'd to. SetDefaults
	// fills an empty value with "healtharchive:job-events". Publishing is
	// off (nil publisher, no-op) when Address is empty or the server
	// cannot be reached.
	Stream string `yaml:"stream" env:"REDIS_STREAM"`
}

func (c *RedisConfig) SetDefaults() {
	if c.Stream == "" {
		c.Stream = "healtharchive:job-events"
	}
}

// WorkerConfig configures the single-writer scheduling loop (C4).
type WorkerConfig struct {
	// PollInterval is how often the loop checks for a pickable job when
	// idle.
	PollInterval time.Duration `yaml:"poll_interval" env:"WORKER_POLL_INTERVAL"`
	// MinFreeDiskBytes is the disk watermark guardrail: below this, the
	// loop refuses to pick new jobs.
	MinFreeDiskBytes int64 `yaml:"min_free_disk_bytes" env:"WORKER_MIN_FREE_DISK_BYTES"`
	// StorageRoot is the filesystem root the disk watermark checks and
	// the guardrail against writing onto the OS root volume compares
	// mount points with.
	StorageRoot string `yaml:"storage_root" env:"WORKER_STORAGE_ROOT"`
	// LockDir holds per-job O_EXCL lock files.
	LockDir string `yaml:"lock_dir" env:"WORKER_LOCK_DIR"`
	// InfraCooldown is how long a job that went back to retryable with
	// crawler_status=infra_error stays ineligible for pickup.
	InfraCooldown time.Duration `yaml:"infra_cooldown" env:"WORKER_INFRA_COOLDOWN"`
	// GracePeriod is how long the loop waits after sending SIGTERM to a
	// crawler subprocess before escalating to SIGKILL.
	GracePeriod time.Duration `yaml:"grace_period" env:"WORKER_GRACE_PERIOD"`
	// MaxRetries caps automatic re-queues of a crawl-failed job.
	MaxRetries int `yaml:"max_retries" env:"WORKER_MAX_RETRIES"`
}

func (c *WorkerConfig) SetDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = 15 * time.Second
	}
	if c.MinFreeDiskBytes == 0 {
		c.MinFreeDiskBytes = 5 * 1024 * 1024 * 1024 // 5 GiB
	}
	if c.StorageRoot == "" {
		c.StorageRoot = "/data/archive"
	}
	if c.LockDir == "" {
		c.LockDir = "/var/run/healtharchive/locks"
	}
	if c.InfraCooldown == 0 {
		c.InfraCooldown = 60 * time.Second
	}
	if c.GracePeriod == 0 {
		c.GracePeriod = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// WatchdogConfig configures the three watchdog loops (C5): stall
// detection, storage hot-path recovery, and DB/runtime reconciliation.
type WatchdogConfig struct {
	// TickInterval is how often each watchdog loop runs its checks.
	TickInterval time.Duration `yaml:"tick_interval" env:"WATCHDOG_TICK_INTERVAL"`
	// StallThreshold is how long a Running job may go without a progress
	// signal before the stall detector flags it.
	StallThreshold time.Duration `yaml:"stall_threshold" env:"WATCHDOG_STALL_THRESHOLD"`
	// ConfirmRuns is the number of consecutive ticks a condition must
	// hold before the watchdog acts, to absorb noise.
	ConfirmRuns int `yaml:"confirm_runs" env:"WATCHDOG_CONFIRM_RUNS"`
	// SentinelDir holds the apply-mode gating sentinel file; watchdogs
	// run in dry-run mode unless the sentinel is present.
	SentinelDir string `yaml:"sentinel_dir" env:"WATCHDOG_SENTINEL_DIR"`
	// RemountScript is invoked by the storage recovery loop, wrapped in
	// the circuit breaker.
	RemountScript string `yaml:"remount_script" env:"WATCHDOG_REMOUNT_SCRIPT"`
	// MaxActionsPerWindow rate-limits recovery actions.
	MaxActionsPerWindow int           `yaml:"max_actions_per_window" env:"WATCHDOG_MAX_ACTIONS"`
	RateLimitWindow     time.Duration `yaml:"rate_limit_window" env:"WATCHDOG_RATE_LIMIT_WINDOW"`
}

func (c *WatchdogConfig) SetDefaults() {
	if c.TickInterval == 0 {
		c.TickInterval = 30 * time.Second
	}
	if c.StallThreshold == 0 {
		c.StallThreshold = 20 * time.Minute
	}
	if c.ConfirmRuns == 0 {
		c.ConfirmRuns = 2
	}
	if c.SentinelDir == "" {
		c.SentinelDir = "/var/run/healtharchive/sentinel"
	}
	if c.MaxActionsPerWindow == 0 {
		c.MaxActionsPerWindow = 3
	}
	if c.RateLimitWindow == 0 {
		c.RateLimitWindow = time.Hour
	}
}

// CrawlerConfig locates the external crawler binary the driver (C2)
// shells out to.
type CrawlerConfig struct {
	Binary string `yaml:"binary" env:"CRAWLER_BINARY"`
}

func (c *CrawlerConfig) SetDefaults() {
	if c.Binary == "" {
		c.Binary = "archive-crawler"
	}
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
	}
}
