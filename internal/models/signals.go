package models

import "time"

// SnapshotOutlink is one outbound link discovered in a snapshot's HTML,
// populated by the post-index recompute step and consumed by ranking.
type SnapshotOutlink struct {
	ID         int64  `db:"id" json:"id"`
	SnapshotID int64  `db:"snapshot_id" json:"snapshot_id"`
	TargetURL  string `db:"target_url" json:"target_url"`
	// TargetURLGroup is the normalized_url_group of the link target, if
	// it resolves to a page group already known to this source.
	TargetURLGroup string `db:"target_url_group" json:"target_url_group,omitempty"`
	AnchorText     string `db:"anchor_text" json:"anchor_text,omitempty"`
}

// PageSignals is a per-normalized_url_group aggregate, rebuilt by the
// recompute step from the current set of non-deduplicated snapshots.
type PageSignals struct {
	NormalizedURLGroup string  `db:"normalized_url_group" json:"normalized_url_group"`
	SourceCode         string  `db:"source_code" json:"source_code"`
	InlinkCount        int     `db:"inlink_count" json:"inlink_count"`
	OutlinkCount       int     `db:"outlink_count" json:"outlink_count"`
	PageRank           *float64 `db:"page_rank" json:"page_rank,omitempty"`
	ComputedAt         time.Time `db:"computed_at" json:"computed_at"`
}

// SnapshotDeduplication is an audit row recording that one snapshot was
// marked deduplicated in favor of a canonical one. The dedup pass is
// reversible: deleting (or flagging) this row and flipping
// Snapshot.Deduplicated back to false undoes the merge.
type SnapshotDeduplication struct {
	ID                 int64     `db:"id" json:"id"`
	DedupedSnapshotID  int64     `db:"deduped_snapshot_id" json:"deduped_snapshot_id"`
	CanonicalSnapshotID int64    `db:"canonical_snapshot_id" json:"canonical_snapshot_id"`
	Reason             string    `db:"reason" json:"reason"`
	DedupedAt          time.Time `db:"deduped_at" json:"deduped_at"`
}

// Dedup reasons recorded by the same-day consolidation pass.
const (
	DedupReasonSameDayDuplicate = "same_day_duplicate"
	DedupReasonContentHashMatch = "content_hash_match"
)

// Pages is an optional materialized aggregate, one row per
// (source_code, normalized_url_group), rebuildable from Snapshot.
type Pages struct {
	SourceCode         string    `db:"source_code" json:"source_code"`
	NormalizedURLGroup string    `db:"normalized_url_group" json:"normalized_url_group"`
	LatestSnapshotID   int64     `db:"latest_snapshot_id" json:"latest_snapshot_id"`
	LatestCaptureAt    time.Time `db:"latest_capture_at" json:"latest_capture_at"`
	CaptureCount       int       `db:"capture_count" json:"capture_count"`
}
