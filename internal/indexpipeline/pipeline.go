// Package indexpipeline transforms a completed job's WARC files into
// Snapshot rows: discovery, manifest verification, streaming
// extraction, batch insert, and an optional same-day dedup pass.
package indexpipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonesrussell/healtharchive/internal/errorsx"
	"github.com/jonesrussell/healtharchive/internal/jobevents"
	"github.com/jonesrussell/healtharchive/internal/jobstore"
	"github.com/jonesrussell/healtharchive/internal/logger"
	"github.com/jonesrussell/healtharchive/internal/models"
	"github.com/jonesrussell/healtharchive/internal/warc"
)

// batchSize is how many Snapshot rows are inserted per round trip.
const batchSize = 500

// Pipeline runs the indexing pass for one completed job.
type Pipeline struct {
	store     *jobstore.Store
	publisher *jobevents.Publisher
	log       logger.Logger
}

// New builds a Pipeline over store, publishing lifecycle events through
// publisher (nil-safe no-op if unconfigured).
func New(store *jobstore.Store, publisher *jobevents.Publisher, log logger.Logger) *Pipeline {
	return &Pipeline{store: store, publisher: publisher, log: log}
}

// Result summarizes one Run.
type Result struct {
	SnapshotsInserted int
	FilesDiscovered   int
	FilesSkipped      int
	Warnings          []string
}

// Run indexes job's WARC output, transitioning it to indexed or
// index_failed. The caller is responsible for ensuring only one Run
// executes per job at a time (the worker loop's per-job lock already
// provides this, so indexing does not introduce its own CAS-guarded
// "indexing" status — the job simply stays completed until Run
// finalizes it to indexed or index_failed).
func (p *Pipeline) Run(ctx context.Context, jobID int64) (*Result, error) {
	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job %d: %w", jobID, err)
	}
	if job.Status != models.StatusCompleted {
		return nil, fmt.Errorf("job %d is not completed (status=%s)", jobID, job.Status)
	}

	discovered, warnings, err := warc.Discover(job.OutputDir)
	if err != nil {
		p.failJob(ctx, jobID, fmt.Errorf("discover warc files: %w", err))
		return nil, errorsx.NewInfraError("discover_warc_files", err)
	}
	for _, w := range warnings {
		p.log.Warn("warc discovery warning", logger.Int64("job_id", jobID), logger.String("warning", w))
	}

	result := &Result{FilesDiscovered: len(discovered), Warnings: warnings}

	var batch []models.Snapshot
	for _, file := range discovered {
		if file.Warning != "" && !file.Verified {
			result.FilesSkipped++
			p.log.Warn("skipping unverified warc file", logger.String("path", file.Path), logger.String("reason", file.Warning))
			continue
		}

		inserted, err := p.indexFile(ctx, job, file.Path, &batch)
		if err != nil {
			p.log.Warn("warc file read failed, skipping", logger.String("path", file.Path), logger.Error(err))
			result.FilesSkipped++
			continue
		}
		result.SnapshotsInserted += inserted
	}

	if len(batch) > 0 {
		n, err := p.store.InsertSnapshots(ctx, batch)
		if err != nil {
			p.failJob(ctx, jobID, err)
			return result, fmt.Errorf("flush final snapshot batch: %w", err)
		}
		result.SnapshotsInserted += n
	}

	if job.Config.AutoDedupe {
		if _, err := Dedupe(ctx, p.store, jobID, true); err != nil {
			p.log.Warn("auto-dedupe failed", logger.Int64("job_id", jobID), logger.Error(err))
		}
	}

	count, err := p.store.GetSnapshotCountForJob(ctx, jobID)
	if err != nil {
		p.failJob(ctx, jobID, err)
		return result, fmt.Errorf("count snapshots for job %d: %w", jobID, err)
	}

	if err := p.store.UpdateJobIndexResult(ctx, jobID, count, models.StatusIndexed); err != nil {
		return result, fmt.Errorf("finalize job %d as indexed: %w", jobID, err)
	}

	p.publisher.PublishAsync(jobevents.Event{
		EventType:  jobevents.JobIndexed,
		JobID:      jobID,
		SourceCode: job.SourceCode,
		Payload:    jobevents.IndexedPayload{PagesIndexed: count},
	})

	return result, nil
}

func (p *Pipeline) failJob(ctx context.Context, jobID int64, cause error) {
	if err := p.store.UpdateJobIndexResult(ctx, jobID, 0, models.StatusIndexFailed); err != nil {
		p.log.Error("failed to transition job to index_failed", logger.Int64("job_id", jobID), logger.String("cause", cause.Error()), logger.Error(err))
	}
}

// indexFile streams one WARC file's response records into batch,
// flushing to the store whenever batch reaches batchSize.
func (p *Pipeline) indexFile(ctx context.Context, job *models.ArchiveJob, path string, batch *[]models.Snapshot) (int, error) {
	reader, err := warc.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer reader.Close()

	inserted := 0
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return inserted, fmt.Errorf("read record in %s: %w", path, err)
		}

		if rec.Type != "response" {
			_, _ = io.Copy(io.Discard, rec.Body())
			continue
		}

		snap, ok, err := p.extractSnapshot(job, rec, path)
		if err != nil {
			p.log.Warn("record extraction failed, skipping", logger.String("url", rec.TargetURI), logger.Error(err))
			continue
		}
		if !ok {
			continue
		}

		*batch = append(*batch, snap)
		if len(*batch) >= batchSize {
			n, err := p.store.InsertSnapshots(ctx, *batch)
			if err != nil {
				return inserted, fmt.Errorf("insert snapshot batch: %w", err)
			}
			inserted += n
			*batch = (*batch)[:0]
		}
	}
	return inserted, nil
}

// extractSnapshot builds a Snapshot from a response record, or reports
// ok=false when the record is out of scope (non-HTML, non-2xx without
// include_non_2xx).
func (p *Pipeline) extractSnapshot(job *models.ArchiveJob, rec *warc.Record, warcPath string) (models.Snapshot, bool, error) {
	resp, err := warc.ParseHTTPResponse(rec.Body())
	if err != nil {
		return models.Snapshot{}, false, fmt.Errorf("parse http response: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if !job.Config.IncludeNon2xx {
			_, _ = io.Copy(io.Discard, resp.Body)
			return models.Snapshot{}, false, nil
		}
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		_, _ = io.Copy(io.Discard, resp.Body)
		return models.Snapshot{}, false, nil
	}

	htmlBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Snapshot{}, false, fmt.Errorf("read html body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(htmlBytes))

	extracted, err := warc.Extract(resp)
	if err != nil {
		return models.Snapshot{}, false, fmt.Errorf("extract content: %w", err)
	}

	normalizedURL, normalizedGroup, err := warc.Normalize(rec.TargetURI)
	if err != nil {
		return models.Snapshot{}, false, fmt.Errorf("normalize url: %w", err)
	}

	captureTime, err := parseWARCDate(rec.Date)
	if err != nil {
		captureTime = time.Now().UTC()
	}

	snap := models.Snapshot{
		JobID:              job.ID,
		SourceCode:         job.SourceCode,
		URL:                rec.TargetURI,
		NormalizedURL:      normalizedURL,
		NormalizedURLGroup: normalizedGroup,
		CaptureTimestamp:   captureTime,
		WARCPath:           warcPath,
		WARCRecordOffset:   rec.Offset,
		WARCRecordLength:   rec.Length,
		Title:              extracted.Title,
		Text:               extracted.Text,
		Snippet:            extracted.Snippet,
		Language:           extracted.Language,
		ContentHash:        warc.ContentHash(extracted.Text),
		IsArchived:         extracted.IsArchived,
		HTTPStatus:         resp.StatusCode,
		ContentType:        contentType,
		SearchVector:       URLTokens(normalizedURL),
	}
	return snap, true, nil
}

func parseWARCDate(date string) (time.Time, error) {
	if date == "" {
		return time.Time{}, fmt.Errorf("empty warc-date")
	}
	return time.Parse(time.RFC3339, date)
}
