package indexpipeline

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/healtharchive/internal/jobstore"
	"github.com/jonesrussell/healtharchive/internal/logger"
	"github.com/jonesrussell/healtharchive/internal/models"
	"github.com/jonesrussell/healtharchive/internal/warc"
)

func writeRecord(t *testing.T, path, recordType, targetURI, body string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	defer f.Close()

	gz := gzip.NewWriter(f)
	header := "WARC/1.0\r\n" +
		"WARC-Type: " + recordType + "\r\n" +
		"WARC-Target-URI: " + targetURI + "\r\n" +
		"WARC-Date: 2026-01-15T12:00:00Z\r\n" +
		"Content-Length: " + itoaTest(len(body)) + "\r\n" +
		"\r\n"
	_, err = gz.Write([]byte(header + body + "\r\n\r\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
}

func itoaTest(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestPipelineRun_IndexesResponseRecordsAndFinalizes(t *testing.T) {
	outputDir := t.TempDir()
	stableDir := filepath.Join(outputDir, "warcs")
	require.NoError(t, os.MkdirAll(stableDir, 0o755))

	warcPath := filepath.Join(stableDir, "part-0001.warc.gz")
	writeRecord(t, warcPath, "response", "https://example.gov/health",
		"HTTP/1.1 200 OK\r\nContent-Type: text/html\r\n\r\n<html><head><title>Health</title></head><body><main>Flu shot info.</main></body></html>")
	writeRecord(t, warcPath, "response", "https://example.gov/style.css",
		"HTTP/1.1 200 OK\r\nContent-Type: text/css\r\n\r\nbody{color:red}")

	content, err := os.ReadFile(warcPath)
	require.NoError(t, err)
	sum := warc.ContentHash(string(content))
	manifest := warc.Manifest{Records: []warc.ManifestEntry{
		{StableName: "part-0001.warc.gz", SizeBytes: int64(len(content)), SHA256: sum},
	}}
	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(stableDir, "manifest.json"), data, 0o644))

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	store := jobstore.New(db, logger.NewNop())
	pipeline := New(store, nil, logger.NewNop())

	queuedAt := time.Now()
	jobCols := []string{
		"id", "source_code", "name", "output_dir", "status", "config",
		"retry_count", "max_retries", "queued_at", "started_at", "finished_at", "cleaned_at",
		"crawler_exit_code", "crawler_status", "combined_log_path",
		"cleanup_status", "warc_file_count", "indexed_pages",
		"campaign_kind", "campaign_year",
	}
	mock.ExpectQuery(`SELECT.*FROM archive_jobs WHERE id`).WithArgs(int64(7)).WillReturnRows(
		sqlmock.NewRows(jobCols).AddRow(
			int64(7), "hc", "hc-job", outputDir, string(models.StatusCompleted), []byte(`{"seeds":["https://example.gov"]}`),
			0, 3, queuedAt, nil, nil, nil,
			nil, nil, nil,
			string(models.CleanupNone), 1, 0,
			nil, nil,
		),
	)

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO snapshots`)
	mock.ExpectExec(`INSERT INTO snapshots`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM snapshots`).WithArgs(int64(7)).WillReturnRows(
		sqlmock.NewRows([]string{"count"}).AddRow(1),
	)
	mock.ExpectExec(`UPDATE archive_jobs`).WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := pipeline.Run(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 1, result.SnapshotsInserted)
	require.Equal(t, 1, result.FilesDiscovered)

	require.NoError(t, mock.ExpectationsWereMet())
}
