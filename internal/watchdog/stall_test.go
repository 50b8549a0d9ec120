package watchdog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/healtharchive/internal/jobstore"
	"github.com/jonesrussell/healtharchive/internal/logger"
)

var jobRowColumns = []string{
	"id", "source_code", "name", "output_dir", "status", "config",
	"retry_count", "max_retries", "queued_at", "started_at", "finished_at", "cleaned_at",
	"crawler_exit_code", "crawler_status", "combined_log_path",
	"cleanup_status", "warc_file_count", "indexed_pages",
	"campaign_kind", "campaign_year",
}

func writeStateFile(t *testing.T, dir string, lastProgress time.Time) {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"pages_crawled":           3,
		"last_progress_timestamp": lastProgress.Format(time.RFC3339),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".archive_state.json"), data, 0o644))
}

// newApplySentinel returns a Sentinel whose directory already has the
// apply-enabled marker in place, so ApplyMode() reports true for the
// life of the test.
func newApplySentinel(t *testing.T) *Sentinel {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, sentinelFile), nil, 0o644))
	s := NewSentinel(dir)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func jobRow(id int64, outputDir string) *sqlmock.Rows {
	return sqlmock.NewRows(jobRowColumns).AddRow(
		id, "src", "job-name", outputDir, "running", []byte(`{"seeds":["https://example.gov"]}`),
		0, 3, time.Now(), time.Now(), nil, nil,
		nil, nil, nil,
		"none", 0, 0,
		nil, nil,
	)
}

func TestStallDetector_FreshProgressNeverStalls(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	outDir := t.TempDir()
	writeStateFile(t, outDir, time.Now())

	mock.ExpectQuery(`SELECT.*FROM archive_jobs WHERE status`).WillReturnRows(jobRow(1, outDir))

	store := jobstore.New(db, logger.NewNop())
	detector := NewStallDetector(store, t.TempDir(), 20*time.Minute, nil, NewRateLimiter(time.Hour, time.Hour, 10), nil, logger.NewNop())

	require.NoError(t, detector.Tick(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStallDetector_StaleProgressNoLogGrowthNoLiveLockRecovers(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	outDir := t.TempDir()
	writeStateFile(t, outDir, time.Now().Add(-time.Hour))
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "combined.log"), []byte("log line"), 0o644))

	lockDir := t.TempDir()
	store := jobstore.New(db, logger.NewNop())
	detector := NewStallDetector(store, lockDir, 20*time.Minute, newApplySentinel(t), NewRateLimiter(time.Hour, time.Hour, 10), nil, logger.NewNop())

	// First tick only establishes the log-size baseline; it must not act.
	mock.ExpectQuery(`SELECT.*FROM archive_jobs WHERE status`).WillReturnRows(jobRow(1, outDir))
	require.NoError(t, detector.Tick(context.Background()))

	// Second tick: log size unchanged, no lock held -> recovers the job.
	mock.ExpectQuery(`SELECT.*FROM archive_jobs WHERE status`).WillReturnRows(jobRow(1, outDir))
	mock.ExpectExec(`UPDATE archive_jobs SET status`).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, detector.Tick(context.Background()))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStallDetector_LiveLockDefersRecovery(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	outDir := t.TempDir()
	writeStateFile(t, outDir, time.Now().Add(-time.Hour))

	lockDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(lockDir, "job-1.lock"), []byte(strconv.Itoa(os.Getpid())), 0o644))

	store := jobstore.New(db, logger.NewNop())
	detector := NewStallDetector(store, lockDir, 20*time.Minute, newApplySentinel(t), NewRateLimiter(time.Hour, time.Hour, 10), nil, logger.NewNop())

	mock.ExpectQuery(`SELECT.*FROM archive_jobs WHERE status`).WillReturnRows(jobRow(1, outDir))
	require.NoError(t, detector.Tick(context.Background()))
	mock.ExpectQuery(`SELECT.*FROM archive_jobs WHERE status`).WillReturnRows(jobRow(1, outDir))
	require.NoError(t, detector.Tick(context.Background()))

	// The lock file names this test process's own pid, which is
	// always signalable by itself — LockHeld reports true, so no
	// UPDATE should ever have been issued.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStallDetector_NoSentinelNeverTransitionsEvenWhenStalled(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	outDir := t.TempDir()
	writeStateFile(t, outDir, time.Now().Add(-time.Hour))
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "combined.log"), []byte("log line"), 0o644))

	lockDir := t.TempDir()
	store := jobstore.New(db, logger.NewNop())
	detector := NewStallDetector(store, lockDir, 20*time.Minute, nil, NewRateLimiter(time.Hour, time.Hour, 10), nil, logger.NewNop())

	mock.ExpectQuery(`SELECT.*FROM archive_jobs WHERE status`).WillReturnRows(jobRow(1, outDir))
	require.NoError(t, detector.Tick(context.Background()))
	mock.ExpectQuery(`SELECT.*FROM archive_jobs WHERE status`).WillReturnRows(jobRow(1, outDir))
	require.NoError(t, detector.Tick(context.Background()))

	// No sentinel means dry-run, even though the job looks stalled on
	// both ticks: no UPDATE should ever have been issued.
	require.NoError(t, mock.ExpectationsWereMet())
}
