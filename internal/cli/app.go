// Package cli wires the health archive's operator-facing subcommands
// (seed-sources, create-job, start-worker, the watchdog-adjacent
// recovery verbs, and the rest of the external CLI surface) on top of
// spf13/cobra. patch-job-config, reset-retry-count, recover-stale-jobs,
// dedupe-snapshots and restore-deduped-snapshots carry an --apply flag;
// the other verbs have none.
package cli

import (
	"context"
	"fmt"

	"github.com/jonesrussell/healtharchive/internal/config"
	"github.com/jonesrussell/healtharchive/internal/crawlerdriver"
	"github.com/jonesrussell/healtharchive/internal/database"
	"github.com/jonesrussell/healtharchive/internal/health"
	"github.com/jonesrussell/healtharchive/internal/httpserver"
	"github.com/jonesrussell/healtharchive/internal/indexpipeline"
	"github.com/jonesrussell/healtharchive/internal/jobevents"
	"github.com/jonesrussell/healtharchive/internal/jobstore"
	"github.com/jonesrussell/healtharchive/internal/logger"
	"github.com/jonesrussell/healtharchive/internal/metrics"
	"github.com/jonesrussell/healtharchive/internal/redisclient"
)

// app bundles the dependencies most subcommands need: the job store and
// a logger at minimum, the crawler driver and index pipeline for the
// verbs that actually run or index a job. Built once per process
// invocation from the loaded config file.
type app struct {
	cfg *config.Config
	log logger.Logger

	db    *database.DB
	store *jobstore.Store

	publisher *jobevents.Publisher
	metrics   *metrics.Collector

	driver   *crawlerdriver.Driver
	pipeline *indexpipeline.Pipeline

	checker *health.Checker
}

// newApp loads configPath, connects to the database, and builds every
// dependency a subcommand might reach for. Subcommands that don't need
// the crawler driver or publisher simply leave them unused; building
// them eagerly keeps this one bootstrap path instead of one per verb.
func newApp(configPath string) (*app, error) {
	cfg, err := config.LoadWithDefaults[config.Config](configPath, func(c *config.Config) { c.SetDefaults() })
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	log = log.With(logger.String("service", "healtharchive"))

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	store := jobstore.New(db.DB(), log)
	collector := metrics.NewCollector()

	var publisher *jobevents.Publisher
	if cfg.Redis.Stream != "" {
		redisCli, err := redisclient.New(cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, job events will not be published", logger.Error(err))
		} else {
			publisher = jobevents.NewPublisher(redisCli, cfg.Redis.Stream, log)
		}
	}

	driver := crawlerdriver.New(store, crawlerdriver.Config{
		Binary:      cfg.Crawler.Binary,
		GracePeriod: cfg.Worker.GracePeriod,
	}, publisher, log)

	pipeline := indexpipeline.New(store, publisher, log)

	checker := health.NewChecker()
	checker.RegisterFunc("database", func(ctx context.Context) error {
		return db.DB().PingContext(ctx)
	})

	return &app{
		cfg:       cfg,
		log:       log,
		db:        db,
		store:     store,
		publisher: publisher,
		metrics:   collector,
		driver:    driver,
		pipeline:  pipeline,
		checker:   checker,
	}, nil
}

// opsServer builds the /healthz, /readyz, /metrics server every
// long-running invocation (currently just start-worker) exposes
// alongside its main loop.
func (a *app) opsServer() *httpserver.Server {
	cfg := httpserver.NewConfig("healtharchive-worker", a.cfg.Server.Port)
	cfg.ReadTimeout = a.cfg.Server.ReadTimeout
	cfg.WriteTimeout = a.cfg.Server.WriteTimeout
	cfg.IdleTimeout = a.cfg.Server.IdleTimeout
	return httpserver.New(cfg, a.log, a.checker, a.metrics)
}

// Close releases the database connection. Subcommands defer this right
// after a successful newApp.
func (a *app) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
