// Package worker implements the single-writer scheduling loop: pick an
// eligible job, hold its per-job lock for the full crawl-plus-index
// duration, run the crawler driver, index on success, apply retry
// policy, release the lock, repeat.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/healtharchive/internal/config"
	"github.com/jonesrussell/healtharchive/internal/crawlerdriver"
	"github.com/jonesrussell/healtharchive/internal/errorsx"
	"github.com/jonesrussell/healtharchive/internal/indexpipeline"
	"github.com/jonesrussell/healtharchive/internal/jobevents"
	"github.com/jonesrussell/healtharchive/internal/jobstore"
	"github.com/jonesrussell/healtharchive/internal/logger"
	"github.com/jonesrussell/healtharchive/internal/metrics"
	"github.com/jonesrussell/healtharchive/internal/models"
)

// Loop is the single-writer scheduler. One Loop runs per host; multi-host
// coordination is out of scope (the per-job lock is a local file, not a
// distributed one).
type Loop struct {
	store     *jobstore.Store
	driver    *crawlerdriver.Driver
	pipeline  *indexpipeline.Pipeline
	publisher *jobevents.Publisher
	metrics   *metrics.Collector
	log       logger.Logger

	cfg        config.WorkerConfig
	annualOnly bool
}

// New builds a Loop. metrics may be nil (no-op recording).
func New(store *jobstore.Store, driver *crawlerdriver.Driver, pipeline *indexpipeline.Pipeline,
	publisher *jobevents.Publisher, collector *metrics.Collector, cfg config.WorkerConfig, annualOnly bool, log logger.Logger) *Loop {
	return &Loop{
		store:      store,
		driver:     driver,
		pipeline:   pipeline,
		publisher:  publisher,
		metrics:    collector,
		log:        log,
		cfg:        cfg,
		annualOnly: annualOnly,
	}
}

// Run blocks, executing the scheduling loop until ctx is cancelled. A
// cancellation mid-crawl propagates into the crawler driver's subprocess
// handling (SIGTERM, grace period, SIGKILL); the job row is left
// running for a watchdog to reconcile, per the documented shutdown
// sequence.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		exceeded, err := diskWatermarkExceeded(l.cfg.StorageRoot, l.cfg.MinFreeDiskBytes)
		if err != nil && l.log != nil {
			l.log.Warn("disk watermark probe failed", logger.Error(err))
		}
		if exceeded {
			l.log.Warn("disk watermark exceeded, holding new work",
				logger.String("storage_root", l.cfg.StorageRoot))
			if l.sleep(ctx, l.cfg.PollInterval) {
				return nil
			}
			continue
		}

		picked, err := l.runOnce(ctx)
		if err != nil && l.log != nil {
			l.log.Error("worker iteration failed", logger.Error(err))
		}
		if !picked {
			if l.sleep(ctx, l.cfg.PollInterval) {
				return nil
			}
		}
		// picked==true: sleep(0), try the next job immediately.
	}
}

// RunOnce picks and drives at most one job to completion, then returns
// without polling — the --once entry point for start-worker, useful for
// a cron-style invocation instead of a long-running process.
func (l *Loop) RunOnce(ctx context.Context) (picked bool, err error) {
	return l.runOnce(ctx)
}

// runOnce picks at most one job and drives it to completion. It returns
// picked=false when there was nothing eligible to do, so Run knows
// whether to poll-sleep or immediately retry.
func (l *Loop) runOnce(ctx context.Context) (picked bool, err error) {
	job, err := l.store.PickNextJob(ctx, l.annualOnly, l.cfg.InfraCooldown)
	if err != nil {
		return false, fmt.Errorf("pick next job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if guardErr := checkAnnualRootGuardrail(job.OutputDir, job.IsAnnual()); guardErr != nil {
		l.log.Error("guardrail refused job", logger.Int64("job_id", job.ID), logger.Error(guardErr))
		if transErr := l.store.TransitionJob(ctx, job.ID, models.StatusRunning, models.StatusRetryable, jobstore.TransitionFields{
			FinishedAt:    jobstore.NowField(),
			CrawlerStatus: models.CrawlerStatusInfraError,
		}); transErr != nil && l.log != nil {
			l.log.Error("failed to return guardrail-refused job to retryable",
				logger.Int64("job_id", job.ID), logger.Error(transErr))
		}
		l.recordInfraHeld()
		return true, guardErr
	}

	lock, err := crawlerdriver.Acquire(l.cfg.LockDir, job.ID)
	if err != nil {
		l.log.Warn("job lock held, deferring to next poll", logger.Int64("job_id", job.ID))
		return false, nil
	}
	defer func() {
		if relErr := lock.Release(); relErr != nil && l.log != nil {
			l.log.Warn("failed to release job lock", logger.Int64("job_id", job.ID), logger.Error(relErr))
		}
	}()

	l.recordPicked()
	l.publisher.PublishAsync(jobevents.Event{
		EventType:  jobevents.JobStarted,
		JobID:      job.ID,
		SourceCode: job.SourceCode,
		Payload:    jobevents.StartedPayload{Attempt: job.RetryCount + 1},
	})

	crawlStart := time.Now()
	runErr := l.driver.Run(ctx, job)
	l.observeCrawlDuration(time.Since(crawlStart))

	switch {
	case runErr == nil:
		l.recordCompleted()
		indexStart := time.Now()
		result, idxErr := l.pipeline.Run(ctx, job.ID)
		l.observeIndexDuration(time.Since(indexStart))
		if idxErr != nil {
			l.log.Error("indexing failed", logger.Int64("job_id", job.ID), logger.Error(idxErr))
			return true, idxErr
		}
		l.recordSnapshotsIndexed(result.SnapshotsInserted)
		return true, nil

	case errorsx.IsInfra(runErr):
		l.recordInfraHeld()
		return true, nil

	case errorsx.IsStaleTransition(runErr):
		// Another process already moved this job (e.g. a watchdog); not
		// an error this loop needs to act on further.
		return true, nil

	default:
		l.recordFailed()
		return true, runErr
	}
}

func (l *Loop) sleep(ctx context.Context, d time.Duration) (cancelled bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}

func (l *Loop) recordPicked() {
	if l.metrics != nil {
		l.metrics.RecordJobPicked()
	}
}

func (l *Loop) recordCompleted() {
	if l.metrics != nil {
		l.metrics.RecordJobCompleted()
	}
}

func (l *Loop) recordFailed() {
	if l.metrics != nil {
		l.metrics.RecordJobFailed()
	}
}

func (l *Loop) recordInfraHeld() {
	if l.metrics != nil {
		l.metrics.RecordJobInfraHeld()
	}
}

func (l *Loop) recordSnapshotsIndexed(n int) {
	if l.metrics != nil {
		l.metrics.RecordSnapshotsIndexed(n)
	}
}

func (l *Loop) observeCrawlDuration(d time.Duration) {
	if l.metrics != nil {
		l.metrics.ObserveCrawlDuration(d.Seconds())
	}
}

func (l *Loop) observeIndexDuration(d time.Duration) {
	if l.metrics != nil {
		l.metrics.ObserveIndexDuration(d.Seconds())
	}
}
