package jobstore

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/healtharchive/internal/errorsx"
	"github.com/jonesrussell/healtharchive/internal/models"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, nil), mock
}

func TestCreateJob_Success(t *testing.T) {
	store, mock := newTestStore(t)

	job := &models.ArchiveJob{
		SourceCode: "hc",
		Name:       "hc-20260730",
		OutputDir:  "/data/archive/hc-20260730",
		RetryCount: 0,
		MaxRetries: 3,
		QueuedAt:   time.Now(),
		Config:     models.JobConfig{Seeds: []string{"https://example.gov"}},
	}

	mock.ExpectQuery(`INSERT INTO archive_jobs`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := store.CreateJob(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateJob_DuplicateName(t *testing.T) {
	store, mock := newTestStore(t)

	job := &models.ArchiveJob{SourceCode: "hc", Name: "hc-20260730", QueuedAt: time.Now()}

	mock.ExpectQuery(`INSERT INTO archive_jobs`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "archive_jobs_name_key"})

	_, err := store.CreateJob(context.Background(), job)
	require.Error(t, err)
	var dup *errorsx.DuplicateName
	assert.ErrorAs(t, err, &dup)
}

func TestPickNextJob_NoneEligible(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT.*FROM archive_jobs`).
		WillReturnRows(sqlmock.NewRows(jobColumnNames()))
	mock.ExpectRollback()

	job, err := store.PickNextJob(context.Background(), false, 60*time.Second)
	require.NoError(t, err)
	assert.Nil(t, job)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPickNextJob_TransitionsToRunning(t *testing.T) {
	store, mock := newTestStore(t)
	queuedAt := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT.*FROM archive_jobs`).
		WillReturnRows(jobRow(1, "hc", "hc-20260730", models.StatusQueued, queuedAt))
	mock.ExpectExec(`UPDATE archive_jobs`).
		WithArgs(models.StatusRunning, int64(1), models.StatusQueued).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	job, err := store.PickNextJob(context.Background(), false, 60*time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, models.StatusRunning, job.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionJob_StaleTransition(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`UPDATE archive_jobs SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.TransitionJob(context.Background(), 7, models.StatusRunning, models.StatusCompleted, TransitionFields{
		FinishedAt: NowField(),
	})
	require.Error(t, err)
	var stale *errorsx.StaleTransition
	assert.ErrorAs(t, err, &stale)
}

func TestTransitionJob_Success(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`UPDATE archive_jobs SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.TransitionJob(context.Background(), 7, models.StatusRunning, models.StatusCompleted, TransitionFields{
		FinishedAt: NowField(),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertSnapshots_SkipsDuplicates(t *testing.T) {
	store, mock := newTestStore(t)

	batch := []models.Snapshot{
		{JobID: 1, SourceCode: "hc", URL: "https://a", CaptureTimestamp: time.Now()},
		{JobID: 1, SourceCode: "hc", URL: "https://b", CaptureTimestamp: time.Now()},
	}

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO snapshots`)
	mock.ExpectExec(`INSERT INTO snapshots`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO snapshots`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	inserted, err := store.InsertSnapshots(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountByStatus(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM archive_jobs`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow(string(models.StatusQueued), 3).
			AddRow(string(models.StatusRunning), 1))

	counts, err := store.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, counts[models.StatusQueued])
	assert.Equal(t, 1, counts[models.StatusRunning])
}

// jobColumnNames mirrors the SELECT list used by scanJob, for building
// sqlmock row sets without repeating the column list at every call site.
func jobColumnNames() []string {
	return []string{
		"id", "source_code", "name", "output_dir", "status", "config",
		"retry_count", "max_retries", "queued_at", "started_at", "finished_at", "cleaned_at",
		"crawler_exit_code", "crawler_status", "combined_log_path",
		"cleanup_status", "warc_file_count", "indexed_pages",
		"campaign_kind", "campaign_year",
	}
}

func jobRow(id int64, sourceCode, name string, status models.JobStatus, queuedAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(jobColumnNames()).AddRow(
		id, sourceCode, name, "/data/archive/"+name, string(status), []byte(`{"seeds":["https://example.gov"]}`),
		0, 3, queuedAt, nil, nil, nil,
		nil, nil, nil,
		string(models.CleanupNone), 0, 0,
		nil, nil,
	)
}
