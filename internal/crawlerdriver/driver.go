// Package crawlerdriver runs one crawl attempt for a job to completion
// and records its outcome: spawns the crawler subprocess, streams its
// output to the job's combined log, waits for exit (or cancellation),
// classifies the result, and transitions the job row accordingly.
package crawlerdriver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jonesrussell/healtharchive/internal/crawlerconfig"
	"github.com/jonesrussell/healtharchive/internal/errorsx"
	"github.com/jonesrussell/healtharchive/internal/jobevents"
	"github.com/jonesrussell/healtharchive/internal/jobstore"
	"github.com/jonesrussell/healtharchive/internal/logger"
	"github.com/jonesrussell/healtharchive/internal/models"
)

// logTailLines is how much of the combined log is kept in memory for
// classification; the file itself is never buffered in memory, only
// this bounded tail.
const logTailLines = 200

// Driver runs crawl attempts against the store and a configured crawler
// binary. Lock and job-pickup concerns belong to the worker loop that
// owns a Driver, not to the Driver itself.
type Driver struct {
	store     *jobstore.Store
	binary    string
	publisher *jobevents.Publisher
	log       logger.Logger
	gracePeriod time.Duration
}

// Config configures a Driver.
type Config struct {
	Binary      string
	GracePeriod time.Duration
}

// New builds a Driver.
func New(store *jobstore.Store, cfg Config, publisher *jobevents.Publisher, log logger.Logger) *Driver {
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = 30 * time.Second
	}
	return &Driver{
		store:       store,
		binary:      cfg.Binary,
		publisher:   publisher,
		log:         log,
		gracePeriod: grace,
	}
}

// Run executes job's crawl attempt to completion: steps 1-10 of the
// crawler driver algorithm. The job must already be status=running
// (the worker loop's PickNextJob already performed the queued/retryable
// -> running transition); Run only drives the transitions from running
// onward. The caller is expected to already hold job's per-job lock —
// acquired once, outside Run, so the same lock spans both the crawl and
// the subsequent indexing pass.
func (d *Driver) Run(ctx context.Context, job *models.ArchiveJob) error {
	if err := ensureWritableDir(job.OutputDir); err != nil {
		return d.failInfra(ctx, job, "output_dir_not_writable", err)
	}

	seeds := job.Config.Seeds
	args, err := crawlerconfig.BuildCommandLine(job.Config, seeds, job.Name, job.OutputDir)
	if err != nil {
		return d.configError(ctx, job, err)
	}

	logPath := filepath.Join(job.OutputDir, "combined.log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return d.failInfra(ctx, job, "combined_log_unwritable", err)
	}
	defer logFile.Close()

	tail := newTailBuffer(logTailLines)
	exitCode, runErr := d.runSubprocess(ctx, args, io.MultiWriter(logFile, tail))

	stateFile, statePresent := readStateFile(job.OutputDir)

	outcome := Classify(exitCode, tail.String(), statePresent)
	if runErr != nil && outcome == OutcomeSuccess {
		outcome = OutcomeCrawlFailure
	}

	return d.transitionForOutcome(ctx, job, outcome, exitCode, logPath, stateFile)
}

func (d *Driver) runSubprocess(ctx context.Context, args []string, out io.Writer) (int, error) {
	cmd := exec.CommandContext(ctx, d.binary, args...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("start crawler: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return exitCodeOf(cmd, err), err
	case <-ctx.Done():
		d.terminateProcessGroup(cmd)
		select {
		case <-done:
		case <-time.After(d.gracePeriod):
			d.killProcessGroup(cmd)
			<-done
		}
		return exitCodeOf(cmd, ctx.Err()), ctx.Err()
	}
}

func (d *Driver) terminateProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
}

func (d *Driver) killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}

func exitCodeOf(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

func (d *Driver) transitionForOutcome(ctx context.Context, job *models.ArchiveJob, outcome Outcome, exitCode int, logPath string, state *StateFile) error {
	warcCount := countWARCFiles(job.OutputDir)

	switch outcome {
	case OutcomeSuccess:
		err := d.store.TransitionJob(ctx, job.ID, models.StatusRunning, models.StatusCompleted, jobstore.TransitionFields{
			FinishedAt:      jobstore.NowField(),
			CrawlerExitCode: &exitCode,
			CrawlerStatus:   models.CrawlerStatusOK,
			CombinedLogPath: logPath,
			WARCFileCount:   &warcCount,
		})
		if err == nil {
			d.publisher.PublishAsync(jobevents.Event{
				EventType: jobevents.JobCompleted, JobID: job.ID, SourceCode: job.SourceCode,
				Payload: jobevents.CompletedPayload{SnapshotCount: 0},
			})
		}
		return err

	case OutcomeCrawlFailure:
		next := models.StatusFailed
		retryCount := job.RetryCount
		if job.RetryCount+1 <= job.MaxRetries {
			next = models.StatusRetryable
			retryCount++
		}
		err := d.store.TransitionJob(ctx, job.ID, models.StatusRunning, next, jobstore.TransitionFields{
			FinishedAt:      jobstore.NowField(),
			CrawlerExitCode: &exitCode,
			CrawlerStatus:   models.CrawlerStatusOther,
			CombinedLogPath: logPath,
			WARCFileCount:   &warcCount,
			RetryCount:      &retryCount,
		})
		if err == nil {
			d.publisher.PublishAsync(jobevents.Event{
				EventType: eventTypeFor(next), JobID: job.ID, SourceCode: job.SourceCode,
				Payload: jobevents.FailedPayload{Reason: "crawl_failure"},
			})
		}
		return err

	case OutcomeInfraError:
		err := d.store.TransitionJob(ctx, job.ID, models.StatusRunning, models.StatusRetryable, jobstore.TransitionFields{
			FinishedAt:      jobstore.NowField(),
			CrawlerExitCode: &exitCode,
			CrawlerStatus:   models.CrawlerStatusInfraError,
			CombinedLogPath: logPath,
			WARCFileCount:   &warcCount,
		})
		if err == nil {
			d.publisher.PublishAsync(jobevents.Event{
				EventType: jobevents.JobRetryable, JobID: job.ID, SourceCode: job.SourceCode,
				Payload: jobevents.FailedPayload{Reason: "infra_error", InfraHold: true},
			})
		}
		return err

	case OutcomeConfigError:
		err := d.store.TransitionJob(ctx, job.ID, models.StatusRunning, models.StatusInfraErrorConfig, jobstore.TransitionFields{
			FinishedAt:      jobstore.NowField(),
			CrawlerExitCode: &exitCode,
			CrawlerStatus:   models.CrawlerStatusInfraErrorConfig,
			CombinedLogPath: logPath,
		})
		return err
	}

	return fmt.Errorf("unhandled outcome %q", outcome)
}

func eventTypeFor(status models.JobStatus) jobevents.EventType {
	if status == models.StatusRetryable {
		return jobevents.JobRetryable
	}
	return jobevents.JobFailed
}

func (d *Driver) failInfra(ctx context.Context, job *models.ArchiveJob, reason string, cause error) error {
	err := d.store.TransitionJob(ctx, job.ID, models.StatusRunning, models.StatusRetryable, jobstore.TransitionFields{
		FinishedAt:    jobstore.NowField(),
		CrawlerStatus: models.CrawlerStatusInfraError,
	})
	if err != nil {
		return err
	}
	return errorsx.NewInfraError(reason, cause)
}

func (d *Driver) configError(ctx context.Context, job *models.ArchiveJob, cause error) error {
	err := d.store.TransitionJob(ctx, job.ID, models.StatusRunning, models.StatusInfraErrorConfig, jobstore.TransitionFields{
		FinishedAt:    jobstore.NowField(),
		CrawlerStatus: models.CrawlerStatusInfraErrorConfig,
	})
	if err != nil {
		return err
	}
	return errorsx.NewConfigError("config", cause)
}

func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	probe := filepath.Join(dir, ".write-probe")
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("output dir not writable: %w", err)
	}
	f.Close()
	return os.Remove(probe)
}

func readStateFile(outputDir string) (*StateFile, bool) {
	return ReadStateFile(outputDir)
}

// ReadStateFile reads and parses a job's .archive_state.json, used by
// both the driver's post-crawl classification and the watchdog's stall
// detector.
func ReadStateFile(outputDir string) (*StateFile, bool) {
	data, err := os.ReadFile(filepath.Join(outputDir, ".archive_state.json"))
	if err != nil {
		return nil, false
	}
	var state StateFile
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false
	}
	return &state, true
}

func countWARCFiles(outputDir string) int {
	entries, err := os.ReadDir(filepath.Join(outputDir, "warcs"))
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".warc.gz") {
			count++
		}
	}
	return count
}

// tailBuffer keeps the last N lines written to it, bounded, so
// classification never requires holding a whole (possibly large)
// combined log in memory.
type tailBuffer struct {
	lines    []string
	maxLines int
}

func newTailBuffer(maxLines int) *tailBuffer {
	return &tailBuffer{maxLines: maxLines}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	scanner := bufio.NewScanner(strings.NewReader(string(p)))
	for scanner.Scan() {
		t.lines = append(t.lines, scanner.Text())
		if len(t.lines) > t.maxLines {
			t.lines = t.lines[len(t.lines)-t.maxLines:]
		}
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return strings.Join(t.lines, "\n")
}
