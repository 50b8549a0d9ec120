package models

import (
	"time"
)

// JobStatus is one of the ArchiveJob lifecycle states.
type JobStatus string

const (
	StatusQueued            JobStatus = "queued"
	StatusRunning           JobStatus = "running"
	StatusCompleted         JobStatus = "completed"
	StatusFailed            JobStatus = "failed"
	StatusRetryable         JobStatus = "retryable"
	StatusIndexed           JobStatus = "indexed"
	StatusIndexFailed       JobStatus = "index_failed"
	StatusInfraError        JobStatus = "infra_error"
	StatusInfraErrorConfig  JobStatus = "infra_error_config"
)

// CrawlerStatus is the string summary of the crawler subprocess's exit,
// distinct from JobStatus: it records what the crawler reported, while
// JobStatus records where the job sits in the lifecycle.
type CrawlerStatus string

const (
	CrawlerStatusOK                CrawlerStatus = "ok"
	CrawlerStatusInfraError        CrawlerStatus = "infra_error"
	CrawlerStatusInfraErrorConfig  CrawlerStatus = "infra_error_config"
	CrawlerStatusTimeout           CrawlerStatus = "timeout"
	CrawlerStatusOther             CrawlerStatus = "other"
)

// CleanupStatus tracks whether a job's temp crawl artifacts have been
// removed after consolidation.
type CleanupStatus string

const (
	CleanupNone        CleanupStatus = "none"
	CleanupTempCleaned CleanupStatus = "temp_cleaned"
)

// ArchiveJob is a single crawl attempt for one Source.
type ArchiveJob struct {
	ID         int64     `db:"id" json:"id"`
	SourceCode string    `db:"source_code" json:"source_code"`
	Name       string    `db:"name" json:"name"`
	OutputDir  string    `db:"output_dir" json:"output_dir"`
	Status     JobStatus `db:"status" json:"status"`

	Config JobConfig `db:"config" json:"config"`

	RetryCount int `db:"retry_count" json:"retry_count"`
	MaxRetries int `db:"max_retries" json:"max_retries"`

	QueuedAt   time.Time  `db:"queued_at" json:"queued_at"`
	StartedAt  *time.Time `db:"started_at" json:"started_at,omitempty"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	CleanedAt  *time.Time `db:"cleaned_at" json:"cleaned_at,omitempty"`

	CrawlerExitCode  *int          `db:"crawler_exit_code" json:"crawler_exit_code,omitempty"`
	CrawlerStatus    CrawlerStatus `db:"crawler_status" json:"crawler_status,omitempty"`
	CombinedLogPath  string        `db:"combined_log_path" json:"combined_log_path,omitempty"`

	CleanupStatus CleanupStatus `db:"cleanup_status" json:"cleanup_status"`
	WARCFileCount int           `db:"warc_file_count" json:"warc_file_count"`
	IndexedPages  int           `db:"indexed_pages" json:"indexed_pages"`

	CampaignKind string `db:"campaign_kind" json:"campaign_kind,omitempty"`
	CampaignYear int    `db:"campaign_year" json:"campaign_year,omitempty"`
}

// IsTerminal reports whether status requires operator action to leave.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusFailed, StatusInfraErrorConfig, StatusIndexed:
		return true
	default:
		return false
	}
}

// IsPickable reports whether a job in this status is eligible for
// PickNextJob.
func (s JobStatus) IsPickable() bool {
	return s == StatusQueued || s == StatusRetryable
}

// IsAnnual reports whether this job belongs to the "annual" campaign
// class the root-filesystem guardrail treats specially, refusing to
// start an annual job whose output dir resolves to the host's root
// filesystem device.
func (j *ArchiveJob) IsAnnual() bool {
	return j.CampaignKind == "annual"
}
