package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/healtharchive/internal/httpserver"
	"github.com/jonesrussell/healtharchive/internal/logger"
	"github.com/jonesrussell/healtharchive/internal/watchdog"
	"github.com/jonesrussell/healtharchive/internal/worker"
)

func newStartWorkerCommand() *cobra.Command {
	var (
		pollInterval string
		once         bool
		annualOnly   bool
	)

	cmd := &cobra.Command{
		Use:   "start-worker",
		Short: "Run the single-writer scheduling loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configFile)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.cfg.Worker
			if pollInterval != "" {
				d, parseErr := time.ParseDuration(pollInterval)
				if parseErr != nil {
					return fmt.Errorf("invalid --poll-interval: %w", parseErr)
				}
				cfg.PollInterval = d
			}

			loop := worker.New(a.store, a.driver, a.pipeline, a.publisher, a.metrics, cfg, annualOnly, a.log)

			if once {
				_, err := loop.RunOnce(cmd.Context())
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			ops := a.opsServer()
			opsErrCh := ops.StartAsync()
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpserver.DefaultShutdownTimeout)
				defer shutdownCancel()
				if err := ops.Shutdown(shutdownCtx); err != nil {
					a.log.Warn("ops server shutdown", logger.Error(err))
				}
			}()

			go func() {
				if err := <-opsErrCh; err != nil {
					a.log.Error("ops server failed", logger.Error(err))
				}
			}()

			return loop.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&pollInterval, "poll-interval", "", "override worker.poll_interval (e.g. \"15s\")")
	cmd.Flags().BoolVar(&once, "once", false, "pick and run at most one job, then exit")
	cmd.Flags().BoolVar(&annualOnly, "annual-only", false, "restrict this worker to campaign_kind=annual jobs")

	return cmd
}

func newRecoverStaleJobsCommand() *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "recover-stale-jobs",
		Short: "Run one reconciliation pass over stale locks and stalled jobs",
		Long: `recover-stale-jobs runs one pass of the stall detector and the
reconciler (the checks the watchdog loops run on every tick), so an
operator can force a pass without waiting for the next tick. Without
--apply the pass changes nothing. With --apply it first writes the
apply-enabled sentinel file into the watchdog sentinel directory, where
it stays after the command exits; a deploy.lock file in that directory
still suppresses every action, and the watchdog rate limits still apply.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configFile)
			if err != nil {
				return err
			}
			defer a.Close()

			// A nil sentinel keeps both loops in dry-run mode.
			var sentinel *watchdog.Sentinel
			if apply {
				if enableErr := enableSentinel(a.cfg.Watchdog.SentinelDir); enableErr != nil {
					return fmt.Errorf("enable apply mode: %w", enableErr)
				}
				sentinel = watchdog.NewSentinel(a.cfg.Watchdog.SentinelDir)
				defer sentinel.Close()
			}

			limiter := watchdog.NewRateLimiter(a.cfg.Watchdog.StallThreshold, a.cfg.Watchdog.RateLimitWindow, a.cfg.Watchdog.MaxActionsPerWindow)
			stall := watchdog.NewStallDetector(a.store, a.cfg.Worker.LockDir, a.cfg.Watchdog.StallThreshold, sentinel, limiter, a.metrics, a.log)
			reconciler := watchdog.NewReconciler(a.store, a.cfg.Worker.LockDir, sentinel, limiter, a.metrics, a.log)

			if err := stall.Tick(cmd.Context()); err != nil {
				return fmt.Errorf("stall detector pass: %w", err)
			}
			return reconciler.Tick(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "actually apply recovery actions instead of a dry run")
	return cmd
}

// sentinelFileName mirrors watchdog.Sentinel's gating convention: its
// presence in the configured sentinel directory switches the watchdog
// loops (and this one-shot recovery pass) from dry-run to apply mode.
const sentinelFileName = "apply-enabled"

// enableSentinel drops the apply-mode marker file recover-stale-jobs
// --apply needs before running a pass, creating the sentinel directory
// if it doesn't exist yet.
func enableSentinel(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, sentinelFileName), nil, 0o644)
}
