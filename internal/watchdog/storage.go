package watchdog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/jonesrussell/healtharchive/internal/circuitbreaker"
	"github.com/jonesrussell/healtharchive/internal/logger"
	"github.com/jonesrussell/healtharchive/internal/metrics"
)

// StorageRecovery watches a fixed set of hot paths (storage mount
// points the worker writes WARC output under) for a stale-mount
// condition and, in apply mode, invokes an operator-provided remount
// script to recover. The remount script is wrapped in a circuit
// breaker so a broken script is not retried on every tick once it has
// already failed repeatedly.
type StorageRecovery struct {
	hotPaths      []string
	confirmRuns   int
	remountScript string
	sentinel      *Sentinel
	limiter       *RateLimiter
	breaker       *circuitbreaker.Breaker
	metrics       *metrics.Collector
	log           logger.Logger

	staleRuns map[string]int
}

// NewStorageRecovery builds a StorageRecovery over hotPaths. breaker
// may be nil, in which case a breaker with default thresholds is used.
func NewStorageRecovery(hotPaths []string, confirmRuns int, remountScript string, sentinel *Sentinel, limiter *RateLimiter, breaker *circuitbreaker.Breaker, collector *metrics.Collector, log logger.Logger) *StorageRecovery {
	if confirmRuns <= 0 {
		confirmRuns = 2
	}
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.DefaultConfig())
	}
	return &StorageRecovery{
		hotPaths:      hotPaths,
		confirmRuns:   confirmRuns,
		remountScript: remountScript,
		sentinel:      sentinel,
		limiter:       limiter,
		breaker:       breaker,
		metrics:       collector,
		log:           log,
		staleRuns:     make(map[string]int),
	}
}

// Tick probes every hot path once.
func (r *StorageRecovery) Tick(ctx context.Context) {
	for _, path := range r.hotPaths {
		r.tickPath(ctx, path)
	}
}

func (r *StorageRecovery) tickPath(ctx context.Context, path string) {
	if !isStale(path) {
		r.staleRuns[path] = 0
		return
	}

	r.staleRuns[path]++
	if r.staleRuns[path] < r.confirmRuns {
		return
	}

	if r.log != nil {
		r.log.Warn("hot path appears stale", logger.String("path", path), logger.Int("confirm_runs", r.staleRuns[path]))
	}
	if r.metrics != nil {
		r.metrics.RecordWatchdogAction("storage", "stale_path_detected")
	}

	if r.sentinel == nil || !r.sentinel.ApplyMode() {
		return
	}
	if r.remountScript == "" {
		return
	}
	if !r.limiter.Allow(path, time.Now()) {
		return
	}

	err := r.breaker.Execute(ctx, func() error {
		return r.runRemount(ctx, path)
	})
	if err != nil {
		if r.log != nil {
			r.log.Error("remount action failed", logger.String("path", path), logger.Error(err))
		}
		return
	}

	r.staleRuns[path] = 0
	if r.metrics != nil {
		r.metrics.RecordWatchdogAction("storage", "remounted")
	}
	if r.log != nil {
		r.log.Warn("remounted hot path", logger.String("path", path))
	}
}

func (r *StorageRecovery) runRemount(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, r.remountScript, path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("remount %s: %w: %s", path, err, output)
	}
	return nil
}

// isStale reports whether path's mount looks dead: a stat failure with
// ENOTCONN (the classic stale-NFS-handle errno) or EIO.
func isStale(path string) bool {
	_, err := os.Stat(path)
	if err == nil {
		return false
	}
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	return errno == syscall.ENOTCONN || errno == syscall.EIO
}
