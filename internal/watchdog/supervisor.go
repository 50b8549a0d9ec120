package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/jonesrussell/healtharchive/internal/circuitbreaker"
	"github.com/jonesrussell/healtharchive/internal/config"
	"github.com/jonesrussell/healtharchive/internal/jobstore"
	"github.com/jonesrussell/healtharchive/internal/logger"
	"github.com/jonesrussell/healtharchive/internal/metrics"
)

// Supervisor runs the stall detector, storage recovery, and reconciler
// loops concurrently, each on its own ticker, sharing one Sentinel and
// one RateLimiter so the three loops draw from a single operator-
// configured action budget rather than three independent ones.
type Supervisor struct {
	tickInterval time.Duration
	sentinel     *Sentinel
	stall        *StallDetector
	storage      *StorageRecovery
	reconciler   *Reconciler
	log          logger.Logger
}

// NewSupervisor builds a Supervisor from cfg. hotPaths names the
// storage mount points the storage recovery loop probes each tick
// (typically the configured WARC output root).
func NewSupervisor(store *jobstore.Store, cfg config.WatchdogConfig, lockDir string, hotPaths []string, collector *metrics.Collector, log logger.Logger) *Supervisor {
	sentinel := NewSentinel(cfg.SentinelDir)
	limiter := NewRateLimiter(cfg.StallThreshold, cfg.RateLimitWindow, cfg.MaxActionsPerWindow)
	breaker := circuitbreaker.New(circuitbreaker.Config{
		OnStateChange: func(_, to circuitbreaker.State) {
			if collector != nil {
				collector.SetBreakerState("storage_remount", int(to))
			}
		},
	})

	return &Supervisor{
		tickInterval: cfg.TickInterval,
		sentinel:     sentinel,
		stall:        NewStallDetector(store, lockDir, cfg.StallThreshold, sentinel, limiter, collector, log),
		storage:      NewStorageRecovery(hotPaths, cfg.ConfirmRuns, cfg.RemountScript, sentinel, limiter, breaker, collector, log),
		reconciler:   NewReconciler(store, lockDir, sentinel, limiter, collector, log),
		log:          log,
	}
}

// Close releases the sentinel's directory watch. Call after Run
// returns.
func (s *Supervisor) Close() error {
	return s.sentinel.Close()
}

// Run blocks, driving all three loops until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() { defer wg.Done(); s.runTicked(ctx, "stall", s.stall.Tick) }()
	go func() { defer wg.Done(); s.runTicked(ctx, "storage", func(ctx context.Context) error { s.storage.Tick(ctx); return nil }) }()
	go func() { defer wg.Done(); s.runTicked(ctx, "reconciler", s.reconciler.Tick) }()

	wg.Wait()
	return nil
}

func (s *Supervisor) runTicked(ctx context.Context, name string, tick func(context.Context) error) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := tick(ctx); err != nil && s.log != nil {
				s.log.Error("watchdog tick failed", logger.String("loop", name), logger.Error(err))
			}
		}
	}
}
