// Package models holds the data model entities shared by the job store,
// crawler driver, and indexing pipeline: Source, ArchiveJob, Snapshot,
// Topic, and their auxiliary tables.
package models

import (
	"time"
)

// Source is a logical content origin identified by a short code (e.g.
// "hc", "phac"). Seeded once, rarely mutated, referenced by jobs and
// snapshots.
type Source struct {
	Code  string `db:"code" json:"code"`
	Label string `db:"label" json:"label"`
	// BaseURL is optional context, not used to build the crawl; the
	// job's own config.Seeds is the source of truth for what gets
	// crawled.
	BaseURL string `db:"base_url" json:"base_url,omitempty"`

	// DefaultSeeds and DefaultScopeRules are the crawl-scope defaults a
	// job's config is filled in from when create-job supplies only
	// overrides, mirroring how per-source extraction selectors are
	// merged with defaults at read time.
	DefaultSeeds      StringArray `db:"default_seeds" json:"default_seeds,omitempty"`
	DefaultScopeRules StringArray `db:"default_scope_rules" json:"default_scope_rules,omitempty"`

	// PickStagger is added to queued_at at job creation so that jobs
	// queued in the same instant from different sources break ties
	// deterministically (hc=0s, phac=1s, cihr=2s, ...).
	PickStagger time.Duration `db:"pick_stagger" json:"pick_stagger"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// MergeSeeds returns cfgSeeds if non-empty, else the source's default
// seed list — the same empty-field merge pattern used throughout the
// config layer for scope-rule defaults.
func (s *Source) MergeSeeds(cfgSeeds []string) []string {
	if len(cfgSeeds) > 0 {
		return cfgSeeds
	}
	return []string(s.DefaultSeeds)
}

// MergeScopeRules returns cfgRules if non-empty, else the source's
// default scope rules.
func (s *Source) MergeScopeRules(cfgRules []string) []string {
	if len(cfgRules) > 0 {
		return cfgRules
	}
	return []string(s.DefaultScopeRules)
}
