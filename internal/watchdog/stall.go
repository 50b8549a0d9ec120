package watchdog

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jonesrussell/healtharchive/internal/crawlerdriver"
	"github.com/jonesrussell/healtharchive/internal/jobstore"
	"github.com/jonesrussell/healtharchive/internal/logger"
	"github.com/jonesrussell/healtharchive/internal/metrics"
	"github.com/jonesrussell/healtharchive/internal/models"
)

// logObservation is the combined log's size the last time a job was
// ticked, used to tell "stalled" apart from "slow but still writing".
type logObservation struct {
	size       int64
	observedAt time.Time
}

// StallDetector runs every tick over every running job: a job is
// stalled when its state file's last-progress timestamp is older than
// threshold AND its combined log has not grown since the previous
// tick. A stalled job whose per-job lock is no longer held (the worker
// that was running it has crashed or exited) is returned to retryable
// without consuming a retry attempt — this is infrastructure-driven
// recovery, not a crawl failure.
type StallDetector struct {
	store     *jobstore.Store
	lockDir   string
	threshold time.Duration
	sentinel  *Sentinel
	limiter   *RateLimiter
	metrics   *metrics.Collector
	log       logger.Logger

	mu       sync.Mutex
	lastSeen map[int64]logObservation
}

// NewStallDetector builds a StallDetector. sentinel gates whether a
// detected stall is actually transitioned (nil means dry-run always);
// limiter enforces the per-job/global recovery rate limit; collector
// may be nil.
func NewStallDetector(store *jobstore.Store, lockDir string, threshold time.Duration, sentinel *Sentinel, limiter *RateLimiter, collector *metrics.Collector, log logger.Logger) *StallDetector {
	return &StallDetector{
		store:     store,
		lockDir:   lockDir,
		threshold: threshold,
		sentinel:  sentinel,
		limiter:   limiter,
		metrics:   collector,
		log:       log,
		lastSeen:  make(map[int64]logObservation),
	}
}

// Tick scans every running job once.
func (d *StallDetector) Tick(ctx context.Context) error {
	jobs, err := d.store.ListRunningJobs(ctx)
	if err != nil {
		return fmt.Errorf("list running jobs: %w", err)
	}

	seenIDs := make(map[int64]bool, len(jobs))
	for i := range jobs {
		job := &jobs[i]
		seenIDs[job.ID] = true
		d.tickOne(ctx, job)
	}
	d.forgetMissing(seenIDs)
	return nil
}

func (d *StallDetector) tickOne(ctx context.Context, job *models.ArchiveJob) {
	state, ok := crawlerdriver.ReadStateFile(job.OutputDir)
	if !ok {
		return
	}
	lastProgress, err := time.Parse(time.RFC3339, state.LastProgressAt)
	if err != nil {
		return
	}
	if time.Since(lastProgress) < d.threshold {
		d.forget(job.ID)
		return
	}

	if d.logGrew(job) {
		return
	}

	if crawlerdriver.LockHeld(d.lockDir, job.ID) {
		// A worker still holds the lock; truth-is-runtime recovery is
		// the reconciler's job, not this loop's.
		return
	}

	if d.sentinel == nil || !d.sentinel.ApplyMode() {
		return
	}
	if !d.limiter.Allow(fmt.Sprintf("job-%d", job.ID), time.Now()) {
		return
	}

	err = d.store.TransitionJob(ctx, job.ID, models.StatusRunning, models.StatusRetryable, jobstore.TransitionFields{
		FinishedAt:    jobstore.NowField(),
		CrawlerStatus: models.CrawlerStatusOther,
	})
	if err != nil {
		if d.log != nil {
			d.log.Error("stall recovery transition failed", logger.Int64("job_id", job.ID), logger.Error(err))
		}
		return
	}
	d.forget(job.ID)
	if d.log != nil {
		d.log.Warn("recovered stalled job", logger.Int64("job_id", job.ID))
	}
	if d.metrics != nil {
		d.metrics.RecordWatchdogAction("stall", "job_marked_stalled")
	}
}

// logGrew reports whether job's combined log has grown since the
// previous tick, recording the current size either way. A job seen for
// the first time is assumed to still be progressing, since there is no
// prior size to compare against.
func (d *StallDetector) logGrew(job *models.ArchiveJob) bool {
	var size int64
	if info, err := os.Stat(job.CombinedLogPath); err == nil {
		size = info.Size()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	prev, ok := d.lastSeen[job.ID]
	d.lastSeen[job.ID] = logObservation{size: size, observedAt: time.Now()}
	if !ok {
		return true
	}
	return size > prev.size
}

func (d *StallDetector) forget(jobID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.lastSeen, jobID)
}

func (d *StallDetector) forgetMissing(seen map[int64]bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id := range d.lastSeen {
		if !seen[id] {
			delete(d.lastSeen, id)
		}
	}
}
