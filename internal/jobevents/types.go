// Package jobevents publishes job lifecycle events to a Redis stream for
// external dashboards and alerting to consume. Publishing is
// fire-and-forget: a dashboard outage must never block the worker loop
// or a watchdog tick.
package jobevents

import (
	"time"

	"github.com/google/uuid"
)

// ConsumerGroup is the suggested consumer group name for dashboard
// readers of the job event stream.
const ConsumerGroup = "healtharchive-dashboards"

// EventType identifies what happened to a job.
type EventType string

const (
	JobQueued    EventType = "JOB_QUEUED"
	JobStarted   EventType = "JOB_STARTED"
	JobCompleted EventType = "JOB_COMPLETED"
	JobFailed    EventType = "JOB_FAILED"
	JobIndexed   EventType = "JOB_INDEXED"
	JobRetryable EventType = "JOB_RETRYABLE"
)

// Event is the envelope published for every job lifecycle transition.
type Event struct {
	EventID    uuid.UUID `json:"event_id"`
	EventType  EventType `json:"event_type"`
	JobID      int64     `json:"job_id"`
	SourceCode string    `json:"source_code"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    any       `json:"payload"`
}

// StartedPayload accompanies JobStarted.
type StartedPayload struct {
	Attempt int `json:"attempt"`
}

// CompletedPayload accompanies JobCompleted.
type CompletedPayload struct {
	SnapshotCount int           `json:"snapshot_count"`
	Duration      time.Duration `json:"duration"`
}

// FailedPayload accompanies JobFailed and JobRetryable.
type FailedPayload struct {
	Reason    string `json:"reason"`
	InfraHold bool   `json:"infra_hold"`
}

// IndexedPayload accompanies JobIndexed.
type IndexedPayload struct {
	PagesIndexed  int `json:"pages_indexed"`
	Deduplicated  int `json:"deduplicated"`
}
