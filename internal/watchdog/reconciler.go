package watchdog

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonesrussell/healtharchive/internal/crawlerdriver"
	"github.com/jonesrussell/healtharchive/internal/jobstore"
	"github.com/jonesrussell/healtharchive/internal/logger"
	"github.com/jonesrussell/healtharchive/internal/metrics"
	"github.com/jonesrussell/healtharchive/internal/models"
)

// Reconciler reconciles the job table against what is actually running
// on disk, in the truth-is-runtime direction only: a lock file that
// still names a live PID but whose job row has drifted away from
// running (a crash between the lock's acquisition and the row's first
// write, or an operator edit) is corrected back to running. The
// opposite direction — a running row with no live lock — is the stall
// detector's responsibility, not this loop's; acting on it here would
// race the very same condition the stall detector already owns.
type Reconciler struct {
	store    *jobstore.Store
	lockDir  string
	sentinel *Sentinel
	limiter  *RateLimiter
	metrics  *metrics.Collector
	log      logger.Logger
}

// NewReconciler builds a Reconciler. sentinel gates whether a detected
// drift is actually corrected (nil means dry-run always).
func NewReconciler(store *jobstore.Store, lockDir string, sentinel *Sentinel, limiter *RateLimiter, collector *metrics.Collector, log logger.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		lockDir:  lockDir,
		sentinel: sentinel,
		limiter:  limiter,
		metrics:  collector,
		log:      log,
	}
}

// Tick scans the lock directory once.
func (r *Reconciler) Tick(ctx context.Context) error {
	entries, err := os.ReadDir(r.lockDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read lock dir: %w", err)
	}

	for _, entry := range entries {
		id, ok := parseLockFilename(entry.Name())
		if !ok {
			continue
		}
		r.reconcileOne(ctx, id)
	}
	return nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, jobID int64) {
	if !crawlerdriver.LockHeld(r.lockDir, jobID) {
		return
	}

	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		if r.log != nil {
			r.log.Warn("reconciler failed to load job", logger.Int64("job_id", jobID), logger.Error(err))
		}
		return
	}
	if job == nil || job.Status == models.StatusRunning || job.IsTerminal() {
		return
	}

	if r.sentinel == nil || !r.sentinel.ApplyMode() {
		return
	}
	if !r.limiter.Allow(fmt.Sprintf("reconcile-%d", jobID), time.Now()) {
		return
	}

	err = r.store.TransitionJob(ctx, jobID, job.Status, models.StatusRunning, jobstore.TransitionFields{})
	if err != nil {
		if r.log != nil {
			r.log.Warn("reconciler transition failed", logger.Int64("job_id", jobID), logger.Error(err))
		}
		return
	}

	if r.log != nil {
		r.log.Warn("reconciled job row to running", logger.Int64("job_id", jobID), logger.String("previous_status", string(job.Status)))
	}
	if r.metrics != nil {
		r.metrics.RecordWatchdogAction("reconciler", "row_reconciled_to_running")
	}
}

func parseLockFilename(name string) (int64, bool) {
	if !strings.HasPrefix(name, "job-") || !strings.HasSuffix(name, ".lock") {
		return 0, false
	}
	idStr := strings.TrimSuffix(strings.TrimPrefix(name, "job-"), ".lock")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
