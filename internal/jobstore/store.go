// Package jobstore provides transactional operations over the job,
// snapshot, and source tables with the minimum locking needed for a
// single-writer worker alongside read-mostly API and watchdog queries.
package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/jonesrussell/healtharchive/internal/errorsx"
	"github.com/jonesrussell/healtharchive/internal/logger"
	"github.com/jonesrussell/healtharchive/internal/models"
)

// pqUniqueViolation is the SQLSTATE for a unique_violation, used to turn
// a name collision on job creation into a typed DuplicateName error
// instead of a raw driver error leaking to callers.
const pqUniqueViolation = "23505"

// Store wraps a *sql.DB with the job/snapshot/source operations the
// worker loop, watchdog, and HTTP API all share.
type Store struct {
	db  *sql.DB
	log logger.Logger
}

// New builds a Store over an already-connected database handle.
func New(db *sql.DB, log logger.Logger) *Store {
	return &Store{db: db, log: log}
}

// toStoreErr classifies a raw driver/sql error into the typed error the
// rest of the system reasons about: connection-level failures become
// StoreUnavailable so callers treat them as infra_error without
// consuming a retry budget.
func toStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errorsx.NewStoreUnavailable(err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return errorsx.NewStoreUnavailable(err)
	}
	return err
}

// isUniqueViolation reports whether err is a Postgres unique-key
// violation, including the engine's specific constraint name so callers
// can tell a job-name collision apart from any other unique index.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// CreateJob inserts a queued row with the caller's job.QueuedAt. The
// create-job command sets that to now plus the source's PickStagger, so
// jobs queued in the same instant from different sources break
// PickNextJob ties deterministically. Returns DuplicateName if the job's name template collides with an
// existing row.
func (s *Store) CreateJob(ctx context.Context, job *models.ArchiveJob) (int64, error) {
	configJSON, err := encodeJobConfig(job.Config)
	if err != nil {
		return 0, fmt.Errorf("encode job config: %w", err)
	}

	const query = `
		INSERT INTO archive_jobs (
			source_code, name, output_dir, status, config,
			retry_count, max_retries, queued_at,
			cleanup_status, campaign_kind, campaign_year
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	var id int64
	err = s.db.QueryRowContext(ctx, query,
		job.SourceCode,
		job.Name,
		job.OutputDir,
		models.StatusQueued,
		configJSON,
		job.RetryCount,
		job.MaxRetries,
		job.QueuedAt,
		models.CleanupNone,
		nullString(job.CampaignKind),
		nullInt(job.CampaignYear),
	).Scan(&id)

	if err != nil {
		if isUniqueViolation(err, "archive_jobs_name_key") {
			return 0, errorsx.NewDuplicateName("job", job.Name)
		}
		return 0, toStoreErr(fmt.Errorf("insert job: %w", err))
	}

	return id, nil
}

// PickNextJob returns the lowest-queued_at job with status in
// {queued, retryable}, tie-broken by lowest id, and atomically
// transitions it to running. Returns (nil, nil) when no job is
// eligible — callers treat that as "nothing to do", not an error.
//
// annualOnly, when true, restricts the candidate set to
// campaign_kind='annual' jobs (used by a dedicated annual-only worker
// lane, if configured).
//
// infraCooldown excludes a retryable job from picking until this long
// after it last finished with crawler_status=infra_error, so the same
// unrepaired infra fault (e.g. a stale mount) doesn't cause a fast
// re-pick loop.
func (s *Store) PickNextJob(ctx context.Context, annualOnly bool, infraCooldown time.Duration) (*models.ArchiveJob, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, toStoreErr(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		SELECT ` + jobColumns + `
		FROM archive_jobs
		WHERE status IN ($1, $2)
		  AND (crawler_status IS DISTINCT FROM $3 OR finished_at <= now() - $4::interval)
	`
	cooldownArg := fmt.Sprintf("%d seconds", int(infraCooldown.Seconds()))
	args := []any{models.StatusQueued, models.StatusRetryable, models.CrawlerStatusInfraError, cooldownArg}
	if annualOnly {
		query += ` AND campaign_kind = 'annual'`
	}
	query += ` ORDER BY queued_at ASC, id ASC LIMIT 1 FOR UPDATE SKIP LOCKED`

	row := tx.QueryRowContext(ctx, query, args...)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, toStoreErr(fmt.Errorf("select next job: %w", err))
	}

	const update = `
		UPDATE archive_jobs
		SET status = $1, started_at = now()
		WHERE id = $2 AND status = $3
	`
	res, err := tx.ExecContext(ctx, update, models.StatusRunning, job.ID, job.Status)
	if err != nil {
		return nil, toStoreErr(fmt.Errorf("mark job running: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, toStoreErr(fmt.Errorf("rows affected: %w", err))
	}
	if affected == 0 {
		// Lost the race between SELECT and UPDATE to another picker;
		// the caller's next poll will find a different candidate.
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, toStoreErr(fmt.Errorf("commit pick: %w", err))
	}

	job.Status = models.StatusRunning
	return job, nil
}

// TransitionFields carries the optional column updates that accompany a
// status change; zero-valued fields are left untouched unless their
// presence is signaled via the pointer fields below.
type TransitionFields struct {
	FinishedAt      *timeOrNil
	CleanedAt       *timeOrNil
	CrawlerExitCode *int
	CrawlerStatus   models.CrawlerStatus
	CombinedLogPath string
	CleanupStatus   models.CleanupStatus
	WARCFileCount   *int
	IndexedPages    *int
	RetryCount      *int
}

// timeOrNil exists only so TransitionFields can distinguish "leave
// finished_at untouched" from "set finished_at to now"; see NowField
// below.
type timeOrNil struct {
	setNow bool
}

// NowField marks a timestamp field to be set to the database's current
// time in this transition.
func NowField() *timeOrNil { return &timeOrNil{setNow: true} }

// TransitionJob is the single compare-and-set primitive every status
// change goes through. It fails with StaleTransition if the row's
// current status does not equal expected, so a caller racing the
// watchdog or another worker learns the world moved instead of
// silently clobbering it.
func (s *Store) TransitionJob(ctx context.Context, jobID int64, expected, next models.JobStatus, fields TransitionFields) error {
	setClauses := []string{"status = $1"}
	args := []any{next}
	pos := 2

	if fields.FinishedAt != nil && fields.FinishedAt.setNow {
		setClauses = append(setClauses, "finished_at = now()")
	}
	if fields.CleanedAt != nil && fields.CleanedAt.setNow {
		setClauses = append(setClauses, "cleaned_at = now()")
	}
	if fields.CrawlerExitCode != nil {
		setClauses = append(setClauses, fmt.Sprintf("crawler_exit_code = $%d", pos))
		args = append(args, *fields.CrawlerExitCode)
		pos++
	}
	if fields.CrawlerStatus != "" {
		setClauses = append(setClauses, fmt.Sprintf("crawler_status = $%d", pos))
		args = append(args, fields.CrawlerStatus)
		pos++
	}
	if fields.CombinedLogPath != "" {
		setClauses = append(setClauses, fmt.Sprintf("combined_log_path = $%d", pos))
		args = append(args, fields.CombinedLogPath)
		pos++
	}
	if fields.CleanupStatus != "" {
		setClauses = append(setClauses, fmt.Sprintf("cleanup_status = $%d", pos))
		args = append(args, fields.CleanupStatus)
		pos++
	}
	if fields.WARCFileCount != nil {
		setClauses = append(setClauses, fmt.Sprintf("warc_file_count = $%d", pos))
		args = append(args, *fields.WARCFileCount)
		pos++
	}
	if fields.IndexedPages != nil {
		setClauses = append(setClauses, fmt.Sprintf("indexed_pages = $%d", pos))
		args = append(args, *fields.IndexedPages)
		pos++
	}
	if fields.RetryCount != nil {
		setClauses = append(setClauses, fmt.Sprintf("retry_count = $%d", pos))
		args = append(args, *fields.RetryCount)
		pos++
	}

	idArg := pos
	expectedArg := pos + 1
	args = append(args, jobID, expected)

	query := "UPDATE archive_jobs SET " + joinClauses(setClauses) +
		fmt.Sprintf(" WHERE id = $%d AND status = $%d", idArg, expectedArg)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return toStoreErr(fmt.Errorf("transition job %d: %w", jobID, err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return toStoreErr(fmt.Errorf("rows affected: %w", err))
	}
	if affected == 0 {
		actual := "unknown"
		var current string
		if err := s.db.QueryRowContext(ctx, `SELECT status FROM archive_jobs WHERE id = $1`, jobID).Scan(&current); err == nil {
			actual = current
		}
		return errorsx.NewStaleTransition(strconv.FormatInt(jobID, 10), string(expected), actual)
	}
	return nil
}

func joinClauses(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += ", " + c
	}
	return out
}
