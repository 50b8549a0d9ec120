package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/healtharchive/internal/jobstore"
	"github.com/jonesrussell/healtharchive/internal/models"
)

func newCreateJobCommand() *cobra.Command {
	var (
		sourceCode   string
		name         string
		seeds        []string
		scopeRules   []string
		outputDir    string
		campaignKind string
		campaignYear int
	)

	cmd := &cobra.Command{
		Use:   "create-job",
		Short: "Queue a new archive job for a seeded source",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configFile)
			if err != nil {
				return err
			}
			defer a.Close()

			src, err := a.store.GetSource(cmd.Context(), sourceCode)
			if err != nil {
				return err
			}
			seeds = src.MergeSeeds(seeds)
			scopeRules = src.MergeScopeRules(scopeRules)
			if len(seeds) == 0 {
				return fmt.Errorf("at least one --seed is required (source %q has no default seeds)", sourceCode)
			}
			if outputDir == "" {
				outputDir = filepath.Join(a.cfg.Worker.StorageRoot, sourceCode, name)
			}

			job := &models.ArchiveJob{
				SourceCode: sourceCode,
				Name:       name,
				OutputDir:  outputDir,
				MaxRetries: a.cfg.Worker.MaxRetries,
				QueuedAt:   time.Now().Add(src.PickStagger),
				Config: models.JobConfig{
					Seeds:        seeds,
					CampaignKind: campaignKind,
					CampaignYear: campaignYear,
					ToolOptions: models.ToolOptions{
						ScopeRules: scopeRules,
					},
				},
			}

			id, err := a.store.CreateJob(cmd.Context(), job)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created job %d\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceCode, "source", "", "source code to crawl (required)")
	cmd.Flags().StringVar(&name, "name", "", "unique job name (required)")
	cmd.Flags().StringArrayVar(&seeds, "seed", nil, "starting URL, repeatable (defaults to the source's default seeds)")
	cmd.Flags().StringArrayVar(&scopeRules, "scope-rule", nil, "crawl scope rule, repeatable (defaults to the source's default scope rules)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory (defaults under worker.storage_root)")
	cmd.Flags().StringVar(&campaignKind, "campaign-kind", "", "campaign kind, e.g. \"annual\"")
	cmd.Flags().IntVar(&campaignYear, "campaign-year", 0, "campaign year")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newRunDBJobCommand() *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "run-db-job",
		Short: "Run the crawler for a single job already in the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configFile)
			if err != nil {
				return err
			}
			defer a.Close()

			job, err := a.store.GetJob(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.driver.Run(cmd.Context(), job)
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "job id (required)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newIndexJobCommand() *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "index-job",
		Short: "Index the WARC output of a job that finished crawling",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configFile)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.pipeline.Run(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d pages for job %d (%d files skipped)\n",
				result.SnapshotsInserted, id, result.FilesSkipped)
			return nil
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "job id (required)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newRetryJobCommand() *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "retry-job",
		Short: "Move a retryable or failed job back to queued",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configFile)
			if err != nil {
				return err
			}
			defer a.Close()

			job, err := a.store.GetJob(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.store.TransitionJob(cmd.Context(), id, job.Status, models.StatusQueued, jobstore.TransitionFields{})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "job id (required)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newListJobsCommand() *cobra.Command {
	var (
		status     string
		sourceCode string
		limit      int
		offset     int
	)

	cmd := &cobra.Command{
		Use:   "list-jobs",
		Short: "List jobs, optionally filtered by status and source",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configFile)
			if err != nil {
				return err
			}
			defer a.Close()

			jobs, err := a.store.ListJobs(cmd.Context(), jobstore.ListFilter{
				Status:     models.JobStatus(status),
				SourceCode: sourceCode,
				Limit:      limit,
				Offset:     offset,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(jobs)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by job status")
	cmd.Flags().StringVar(&sourceCode, "source", "", "filter by source code")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows returned")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func newShowJobCommand() *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "show-job",
		Short: "Print one job as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configFile)
			if err != nil {
				return err
			}
			defer a.Close()

			job, err := a.store.GetJob(cmd.Context(), id)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(job)
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "job id (required)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
