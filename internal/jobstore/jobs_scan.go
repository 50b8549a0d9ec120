package jobstore

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jonesrussell/healtharchive/internal/models"
)

// jobColumns is the fixed column list shared by every query that scans
// a full ArchiveJob row, so SELECT order and scanJob's Scan order can
// never silently drift apart.
const jobColumns = `
	id, source_code, name, output_dir, status, config,
	retry_count, max_retries, queued_at, started_at, finished_at, cleaned_at,
	crawler_exit_code, crawler_status, combined_log_path,
	cleanup_status, warc_file_count, indexed_pages,
	campaign_kind, campaign_year
`

// rowScanner is satisfied by both *sql.Row and *sql.Rows, letting
// scanJob serve single-row and multi-row callers alike.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.ArchiveJob, error) {
	var job models.ArchiveJob
	var configJSON []byte
	var campaignKind sql.NullString
	var campaignYear sql.NullInt64
	var crawlerExitCode sql.NullInt64
	var crawlerStatus sql.NullString
	var combinedLogPath sql.NullString

	err := row.Scan(
		&job.ID,
		&job.SourceCode,
		&job.Name,
		&job.OutputDir,
		&job.Status,
		&configJSON,
		&job.RetryCount,
		&job.MaxRetries,
		&job.QueuedAt,
		&job.StartedAt,
		&job.FinishedAt,
		&job.CleanedAt,
		&crawlerExitCode,
		&crawlerStatus,
		&combinedLogPath,
		&job.CleanupStatus,
		&job.WARCFileCount,
		&job.IndexedPages,
		&campaignKind,
		&campaignYear,
	)
	if err != nil {
		return nil, err
	}

	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &job.Config); err != nil {
			return nil, fmt.Errorf("unmarshal job config: %w", err)
		}
	}
	if campaignKind.Valid {
		job.CampaignKind = campaignKind.String
	}
	if campaignYear.Valid {
		job.CampaignYear = int(campaignYear.Int64)
	}
	if crawlerExitCode.Valid {
		code := int(crawlerExitCode.Int64)
		job.CrawlerExitCode = &code
	}
	if crawlerStatus.Valid {
		job.CrawlerStatus = models.CrawlerStatus(crawlerStatus.String)
	}
	if combinedLogPath.Valid {
		job.CombinedLogPath = combinedLogPath.String
	}

	return &job, nil
}

// encodeJobConfig marshals a JobConfig to JSON for storage in the
// config column.
func encodeJobConfig(cfg models.JobConfig) ([]byte, error) {
	return json.Marshal(cfg)
}

// DecodeJobConfigStrict parses raw JSON into a JobConfig, rejecting any
// key not recognized by the struct. create-job and patch-job-config
// both route through this so a typo'd option name fails loudly instead
// of being silently ignored.
func DecodeJobConfigStrict(raw []byte) (models.JobConfig, error) {
	var cfg models.JobConfig
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return models.JobConfig{}, fmt.Errorf("decode job config: %w", err)
	}
	return cfg, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(i int) any {
	if i == 0 {
		return nil
	}
	return i
}
