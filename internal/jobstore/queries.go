package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jonesrussell/healtharchive/internal/models"
)

// ErrJobNotFound is returned by GetJob when no row matches the id.
var ErrJobNotFound = errors.New("job not found")

// GetJob fetches a single job by id.
func (s *Store) GetJob(ctx context.Context, id int64) (*models.ArchiveJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM archive_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, toStoreErr(fmt.Errorf("get job %d: %w", id, err))
	}
	return job, nil
}

// ListFilter restricts ListJobs to a status and/or source, with simple
// limit/offset pagination.
type ListFilter struct {
	Status     models.JobStatus
	SourceCode string
	Limit      int
	Offset     int
}

// ListJobs returns jobs matching filter, newest queued_at first.
func (s *Store) ListJobs(ctx context.Context, filter ListFilter) ([]models.ArchiveJob, error) {
	var clauses []string
	var args []any
	pos := 1

	if filter.Status != "" {
		clauses = append(clauses, fmt.Sprintf("status = $%d", pos))
		args = append(args, filter.Status)
		pos++
	}
	if filter.SourceCode != "" {
		clauses = append(clauses, fmt.Sprintf("source_code = $%d", pos))
		args = append(args, filter.SourceCode)
		pos++
	}

	query := `SELECT ` + jobColumns + ` FROM archive_jobs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY queued_at DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", pos, pos+1)
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, toStoreErr(fmt.Errorf("list jobs: %w", err))
	}
	defer rows.Close()

	jobs := make([]models.ArchiveJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, toStoreErr(fmt.Errorf("iterate jobs: %w", err))
	}
	return jobs, nil
}

// CountByStatus returns the number of jobs in each JobStatus.
func (s *Store) CountByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM archive_jobs GROUP BY status`)
	if err != nil {
		return nil, toStoreErr(fmt.Errorf("count by status: %w", err))
	}
	defer rows.Close()

	counts := make(map[models.JobStatus]int)
	for rows.Next() {
		var status models.JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, toStoreErr(fmt.Errorf("iterate status counts: %w", err))
	}
	return counts, nil
}

// ListRunningJobs returns every job currently in StatusRunning, the
// candidate set the watchdog's stall detector scans each tick.
func (s *Store) ListRunningJobs(ctx context.Context) ([]models.ArchiveJob, error) {
	return s.ListJobs(ctx, ListFilter{Status: models.StatusRunning, Limit: 10000})
}

// GetSnapshotCountForJob returns the number of snapshot rows currently
// attributed to jobID, used to populate indexed_pages and to verify the
// "indexed_pages reflects Snapshot row count" invariant.
func (s *Store) GetSnapshotCountForJob(ctx context.Context, jobID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM snapshots WHERE job_id = $1`, jobID,
	).Scan(&count)
	if err != nil {
		return 0, toStoreErr(fmt.Errorf("count snapshots for job %d: %w", jobID, err))
	}
	return count, nil
}

// ListSnapshotsForJob returns every snapshot row attributed to jobID,
// oldest capture first, the working set the same-day dedup pass
// partitions by (normalized_url, capture date).
func (s *Store) ListSnapshotsForJob(ctx context.Context, jobID int64) ([]models.Snapshot, error) {
	const query = `
		SELECT id, job_id, source_code, url, normalized_url, normalized_url_group,
			capture_timestamp, warc_path, warc_record_offset, warc_record_length,
			title, text, snippet, language, content_hash,
			is_archived, deduplicated, http_status, content_type
		FROM snapshots
		WHERE job_id = $1
		ORDER BY capture_timestamp ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, toStoreErr(fmt.Errorf("list snapshots for job %d: %w", jobID, err))
	}
	defer rows.Close()

	snapshots := make([]models.Snapshot, 0)
	for rows.Next() {
		var snap models.Snapshot
		if err := rows.Scan(
			&snap.ID, &snap.JobID, &snap.SourceCode, &snap.URL, &snap.NormalizedURL, &snap.NormalizedURLGroup,
			&snap.CaptureTimestamp, &snap.WARCPath, &snap.WARCRecordOffset, &snap.WARCRecordLength,
			&snap.Title, &snap.Text, &snap.Snippet, &snap.Language, &snap.ContentHash,
			&snap.IsArchived, &snap.Deduplicated, &snap.HTTPStatus, &snap.ContentType,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, toStoreErr(fmt.Errorf("iterate snapshots: %w", err))
	}
	return snapshots, nil
}

// InsertSnapshots bulk-inserts a batch within a single transaction,
// silently skipping rows that collide on the (job_id, url,
// capture_timestamp) unique key so a partial re-index of the same WARC
// is idempotent. Returns the number of rows actually inserted.
func (s *Store) InsertSnapshots(ctx context.Context, batch []models.Snapshot) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, toStoreErr(fmt.Errorf("begin snapshot batch: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const stmt = `
		INSERT INTO snapshots (
			job_id, source_code, url, normalized_url, normalized_url_group,
			capture_timestamp, warc_path, warc_record_offset, warc_record_length,
			title, text, snippet, language, content_hash,
			is_archived, deduplicated, http_status, content_type, search_vector
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (job_id, url, capture_timestamp) DO NOTHING
	`

	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return 0, toStoreErr(fmt.Errorf("prepare snapshot insert: %w", err))
	}
	defer prepared.Close()

	inserted := 0
	for i := range batch {
		snap := &batch[i]
		res, err := prepared.ExecContext(ctx,
			snap.JobID, snap.SourceCode, snap.URL, snap.NormalizedURL, snap.NormalizedURLGroup,
			snap.CaptureTimestamp, snap.WARCPath, snap.WARCRecordOffset, snap.WARCRecordLength,
			snap.Title, snap.Text, snap.Snippet, snap.Language, snap.ContentHash,
			snap.IsArchived, snap.Deduplicated, snap.HTTPStatus, snap.ContentType, snap.SearchVector,
		)
		if err != nil {
			return 0, toStoreErr(fmt.Errorf("insert snapshot %s: %w", snap.URL, err))
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, toStoreErr(fmt.Errorf("rows affected: %w", err))
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, toStoreErr(fmt.Errorf("commit snapshot batch: %w", err))
	}
	return inserted, nil
}

// UpdateJobConfig overwrites a job's stored config column, for the
// patch-job-config operator verb. It does not touch status or retry
// bookkeeping.
func (s *Store) UpdateJobConfig(ctx context.Context, jobID int64, cfg models.JobConfig) error {
	configJSON, err := encodeJobConfig(cfg)
	if err != nil {
		return fmt.Errorf("encode job config: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE archive_jobs SET config = $1 WHERE id = $2`, configJSON, jobID)
	if err != nil {
		return toStoreErr(fmt.Errorf("update job config: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return toStoreErr(fmt.Errorf("rows affected: %w", err))
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// ResetRetryCount zeroes a job's retry_count, for the reset-retry-count
// operator verb (an operator judgment call that a job deserves a fresh
// retry budget, independent of the worker's own retry bookkeeping).
func (s *Store) ResetRetryCount(ctx context.Context, jobID int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE archive_jobs SET retry_count = 0 WHERE id = $1`, jobID)
	if err != nil {
		return toStoreErr(fmt.Errorf("reset retry count: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return toStoreErr(fmt.Errorf("rows affected: %w", err))
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// UpdateJobIndexResult records the final indexed_pages count and moves
// the job to newStatus (StatusIndexed or StatusIndexFailed) without a
// compare-and-set, since indexing only ever runs once per job per
// attempt and callers already hold the per-job lock.
func (s *Store) UpdateJobIndexResult(ctx context.Context, jobID int64, indexedPages int, newStatus models.JobStatus) error {
	const query = `
		UPDATE archive_jobs
		SET indexed_pages = $1, status = $2, finished_at = COALESCE(finished_at, now())
		WHERE id = $3
	`
	res, err := s.db.ExecContext(ctx, query, indexedPages, newStatus, jobID)
	if err != nil {
		return toStoreErr(fmt.Errorf("update job index result: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return toStoreErr(fmt.Errorf("rows affected: %w", err))
	}
	if affected == 0 {
		return fmt.Errorf("update job index result: %w", ErrJobNotFound)
	}
	return nil
}

// RecordDeduplication marks dedupedID as deduplicated in favor of
// canonicalID and writes the audit row that makes the merge reversible.
func (s *Store) RecordDeduplication(ctx context.Context, dedupedID, canonicalID int64, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return toStoreErr(fmt.Errorf("begin dedup: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`UPDATE snapshots SET deduplicated = true WHERE id = $1`, dedupedID,
	); err != nil {
		return toStoreErr(fmt.Errorf("mark snapshot deduplicated: %w", err))
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshot_deduplications (deduped_snapshot_id, canonical_snapshot_id, reason, deduped_at)
		 VALUES ($1, $2, $3, now())`,
		dedupedID, canonicalID, reason,
	); err != nil {
		return toStoreErr(fmt.Errorf("insert dedup audit row: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return toStoreErr(fmt.Errorf("commit dedup: %w", err))
	}
	return nil
}

// RestoreDeduplication reverses a prior RecordDeduplication: clears the
// snapshot's deduplicated flag and removes the audit row.
func (s *Store) RestoreDeduplication(ctx context.Context, dedupedID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return toStoreErr(fmt.Errorf("begin dedup restore: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`UPDATE snapshots SET deduplicated = false WHERE id = $1`, dedupedID,
	); err != nil {
		return toStoreErr(fmt.Errorf("clear snapshot deduplicated: %w", err))
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM snapshot_deduplications WHERE deduped_snapshot_id = $1`, dedupedID,
	); err != nil {
		return toStoreErr(fmt.Errorf("delete dedup audit row: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return toStoreErr(fmt.Errorf("commit dedup restore: %w", err))
	}
	return nil
}
