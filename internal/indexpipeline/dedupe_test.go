package indexpipeline

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/healtharchive/internal/jobstore"
)

func newMockStore(t *testing.T) (*jobstore.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return jobstore.New(db, nil), mock
}

func snapshotRowColumns() []string {
	return []string{
		"id", "job_id", "source_code", "url", "normalized_url", "normalized_url_group",
		"capture_timestamp", "warc_path", "warc_record_offset", "warc_record_length",
		"title", "text", "snippet", "language", "content_hash",
		"is_archived", "deduplicated", "http_status", "content_type",
	}
}

func TestDedupe_DryRunDoesNotPersist(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	later := now.Add(2 * time.Hour)

	rows := sqlmock.NewRows(snapshotRowColumns()).
		AddRow(int64(1), int64(99), "hc", "https://example.gov/a", "https://example.gov/a", "https://example.gov/a",
			now, "/data/a.warc.gz", int64(0), int64(100), "Title", "text", "snip", nil, "hash-1",
			nil, false, 200, "text/html").
		AddRow(int64(2), int64(99), "hc", "https://example.gov/a", "https://example.gov/a", "https://example.gov/a",
			later, "/data/b.warc.gz", int64(0), int64(100), "Title", "text", "snip", nil, "hash-1",
			nil, false, 200, "text/html")

	mock.ExpectQuery(`SELECT.*FROM snapshots`).WithArgs(int64(99)).WillReturnRows(rows)

	report, err := Dedupe(ctx, store, 99, false)
	require.NoError(t, err)
	require.Len(t, report.Pairs, 1)
	require.Equal(t, int64(1), report.Pairs[0].CanonicalID)
	require.Equal(t, int64(2), report.Pairs[0].DedupedID)
	require.False(t, report.Applied)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDedupe_ApplyPersistsMerge(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	later := now.Add(2 * time.Hour)

	rows := sqlmock.NewRows(snapshotRowColumns()).
		AddRow(int64(1), int64(99), "hc", "https://example.gov/a", "https://example.gov/a", "https://example.gov/a",
			now, "/data/a.warc.gz", int64(0), int64(100), "Title", "text", "snip", nil, "hash-1",
			nil, false, 200, "text/html").
		AddRow(int64(2), int64(99), "hc", "https://example.gov/a", "https://example.gov/a", "https://example.gov/a",
			later, "/data/b.warc.gz", int64(0), int64(100), "Title", "text", "snip", nil, "hash-1",
			nil, false, 200, "text/html")

	mock.ExpectQuery(`SELECT.*FROM snapshots`).WithArgs(int64(99)).WillReturnRows(rows)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE snapshots SET deduplicated`).WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO snapshot_deduplications`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	report, err := Dedupe(ctx, store, 99, true)
	require.NoError(t, err)
	require.True(t, report.Applied)
	require.Len(t, report.Pairs, 1)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDedupe_DifferentContentHashesAreNotMerged(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	later := now.Add(2 * time.Hour)

	rows := sqlmock.NewRows(snapshotRowColumns()).
		AddRow(int64(1), int64(99), "hc", "https://example.gov/a", "https://example.gov/a", "https://example.gov/a",
			now, "/data/a.warc.gz", int64(0), int64(100), "Title", "text", "snip", nil, "hash-1",
			nil, false, 200, "text/html").
		AddRow(int64(2), int64(99), "hc", "https://example.gov/a", "https://example.gov/a", "https://example.gov/a",
			later, "/data/b.warc.gz", int64(0), int64(100), "Title2", "text2", "snip2", nil, "hash-2",
			nil, false, 200, "text/html")

	mock.ExpectQuery(`SELECT.*FROM snapshots`).WithArgs(int64(99)).WillReturnRows(rows)

	report, err := Dedupe(ctx, store, 99, false)
	require.NoError(t, err)
	require.Empty(t, report.Pairs)

	require.NoError(t, mock.ExpectationsWereMet())
}
