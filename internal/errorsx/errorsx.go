// Package errorsx provides the typed error taxonomy shared by every
// component of the archive pipeline: the job store, the crawler driver,
// the indexing pipeline, the worker loop, and the watchdogs.
package errorsx

import (
	"errors"
	"fmt"
)

// InfraError marks a failure as environmental (disk, network, mount,
// subprocess exec) rather than a problem with the crawl target itself.
// The crawler driver and worker loop use this to decide whether a job
// goes back to retryable under the infra cooldown (retry_count
// unchanged) instead of being marked Failed.
type InfraError struct {
	Op  string
	Err error
}

func (e *InfraError) Error() string {
	return fmt.Sprintf("infra error during %s: %v", e.Op, e.Err)
}

func (e *InfraError) Unwrap() error { return e.Err }

// NewInfraError wraps err as an InfraError tagged with the operation that
// failed.
func NewInfraError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &InfraError{Op: op, Err: err}
}

// ConfigError marks a failure parsing or validating configuration: a YAML
// file, environment overrides, or a JobConfig payload.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config error: %v", e.Err)
	}
	return fmt.Sprintf("config error (%s): %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError wraps err as a ConfigError tagged with the offending
// field, if known.
func NewConfigError(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ConfigError{Field: field, Err: err}
}

// CrawlFailure marks a failure attributable to the crawl target or the
// crawler tool itself (bad seed, parse error, disallowed by robots) as
// opposed to the environment running it.
type CrawlFailure struct {
	JobID  string
	Reason string
	Err    error
}

func (e *CrawlFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("crawl failure for job %s (%s): %v", e.JobID, e.Reason, e.Err)
	}
	return fmt.Sprintf("crawl failure for job %s: %s", e.JobID, e.Reason)
}

func (e *CrawlFailure) Unwrap() error { return e.Err }

// NewCrawlFailure builds a CrawlFailure for jobID with a human-readable
// reason and, optionally, an underlying error.
func NewCrawlFailure(jobID, reason string, err error) error {
	return &CrawlFailure{JobID: jobID, Reason: reason, Err: err}
}

// DuplicateName is returned when a create operation collides with a
// unique constraint (source code, job name) already present in the store.
type DuplicateName struct {
	Kind string
	Name string
}

func (e *DuplicateName) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Name)
}

// NewDuplicateName builds a DuplicateName error for the given kind
// ("source", "job") and name.
func NewDuplicateName(kind, name string) error {
	return &DuplicateName{Kind: kind, Name: name}
}

// StaleTransition is returned by TransitionJob when the job's current
// status no longer matches the caller's expected status — a lost
// compare-and-set race, not a store failure.
type StaleTransition struct {
	JobID    string
	Expected string
	Actual   string
}

func (e *StaleTransition) Error() string {
	return fmt.Sprintf("job %s: expected status %q, found %q", e.JobID, e.Expected, e.Actual)
}

// NewStaleTransition builds a StaleTransition error.
func NewStaleTransition(jobID, expected, actual string) error {
	return &StaleTransition{JobID: jobID, Expected: expected, Actual: actual}
}

// StoreUnavailable marks the job store as unreachable — distinct from a
// StaleTransition so callers can tell "nothing changed" apart from
// "couldn't find out".
type StoreUnavailable struct {
	Err error
}

func (e *StoreUnavailable) Error() string {
	return fmt.Sprintf("job store unavailable: %v", e.Err)
}

func (e *StoreUnavailable) Unwrap() error { return e.Err }

// NewStoreUnavailable wraps err as a StoreUnavailable error.
func NewStoreUnavailable(err error) error {
	if err == nil {
		return nil
	}
	return &StoreUnavailable{Err: err}
}

// GuardrailError marks a job the worker loop refused to start because a
// safety guardrail tripped (disk watermark, annual job writing onto the
// root filesystem) rather than any failure of the crawl itself.
type GuardrailError struct {
	Guardrail string
	Detail    string
}

func (e *GuardrailError) Error() string {
	return fmt.Sprintf("guardrail %q tripped: %s", e.Guardrail, e.Detail)
}

// NewGuardrailError builds a GuardrailError for the named guardrail.
func NewGuardrailError(guardrail, detail string) error {
	return &GuardrailError{Guardrail: guardrail, Detail: detail}
}

// IsGuardrail reports whether err is, or wraps, a GuardrailError.
func IsGuardrail(err error) bool {
	var target *GuardrailError
	return errors.As(err, &target)
}

// WrapWithContext wraps err with a context string, unless err is nil.
func WrapWithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// WrapWithContextf wraps err with a formatted context string, unless err
// is nil.
func WrapWithContextf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// IsInfra reports whether err is, or wraps, an InfraError.
func IsInfra(err error) bool {
	var target *InfraError
	return errors.As(err, &target)
}

// IsCrawlFailure reports whether err is, or wraps, a CrawlFailure.
func IsCrawlFailure(err error) bool {
	var target *CrawlFailure
	return errors.As(err, &target)
}

// IsStaleTransition reports whether err is, or wraps, a StaleTransition.
func IsStaleTransition(err error) bool {
	var target *StaleTransition
	return errors.As(err, &target)
}

// IsStoreUnavailable reports whether err is, or wraps, a StoreUnavailable.
func IsStoreUnavailable(err error) bool {
	var target *StoreUnavailable
	return errors.As(err, &target)
}
