package indexpipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/jonesrussell/healtharchive/internal/jobstore"
	"github.com/jonesrussell/healtharchive/internal/models"
)

// DedupePair is one planned (or applied) merge: dedupedID folded into
// canonicalID.
type DedupePair struct {
	DedupedID   int64
	CanonicalID int64
	URL         string
	Date        string
}

// DedupeReport is the outcome of a Dedupe pass: what it would do (dry
// run) or what it did (apply).
type DedupeReport struct {
	Applied bool
	Pairs   []DedupePair
}

// Dedupe partitions jobID's snapshots by (normalized_url, capture date)
// and, within each partition sharing an identical content_hash, keeps
// the earliest capture as canonical and folds the rest into it. Dry
// run by default; apply=true persists the merge via
// Store.RecordDeduplication.
func Dedupe(ctx context.Context, store *jobstore.Store, jobID int64, apply bool) (*DedupeReport, error) {
	snapshots, err := store.ListSnapshotsForJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots for dedupe: %w", err)
	}

	type partitionKey struct {
		url  string
		date string
	}
	partitions := make(map[partitionKey][]models.Snapshot)
	for _, snap := range snapshots {
		if snap.Deduplicated {
			continue
		}
		key := partitionKey{url: snap.NormalizedURL, date: snap.CaptureTimestamp.Format("2006-01-02")}
		partitions[key] = append(partitions[key], snap)
	}

	report := &DedupeReport{Applied: apply}
	for key, group := range partitions {
		if len(group) < 2 {
			continue
		}
		byHash := make(map[string][]models.Snapshot)
		for _, snap := range group {
			byHash[snap.ContentHash] = append(byHash[snap.ContentHash], snap)
		}
		for hash, matches := range byHash {
			if hash == "" || len(matches) < 2 {
				continue
			}
			sort.Slice(matches, func(i, j int) bool {
				return matches[i].CaptureTimestamp.Before(matches[j].CaptureTimestamp)
			})
			canonical := matches[0]
			for _, dup := range matches[1:] {
				report.Pairs = append(report.Pairs, DedupePair{
					DedupedID:   dup.ID,
					CanonicalID: canonical.ID,
					URL:         key.url,
					Date:        key.date,
				})
				if apply {
					if err := store.RecordDeduplication(ctx, dup.ID, canonical.ID, models.DedupReasonSameDayDuplicate); err != nil {
						return report, fmt.Errorf("record dedup for snapshot %d: %w", dup.ID, err)
					}
				}
			}
		}
	}

	return report, nil
}
