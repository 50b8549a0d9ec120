package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/healtharchive/internal/jobstore"
)

var configFile string

// BuildCLI assembles the root command and every subcommand. Run
// executes the result and returns the code ExitCodeFor reports for
// whatever error comes back; main.go exits with that code.
func BuildCLI() *cobra.Command {
	root := &cobra.Command{
		Use:   "healtharchive",
		Short: "Archive pipeline for government health web-crawl jobs",
		Long: `healtharchive orchestrates crawl jobs against seeded sources, drives
an external crawler binary, indexes the resulting WARC files into a
relational store of page snapshots, and exposes recovery tooling for
jobs the worker loop or watchdogs couldn't resolve on their own.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yml", "path to configuration file")

	root.AddCommand(
		newSeedSourcesCommand(),
		newCreateJobCommand(),
		newRunDBJobCommand(),
		newIndexJobCommand(),
		newRetryJobCommand(),
		newListJobsCommand(),
		newShowJobCommand(),
		newStartWorkerCommand(),
		newPatchJobConfigCommand(),
		newResetRetryCountCommand(),
		newRecoverStaleJobsCommand(),
		newVerifyWARCManifestCommand(),
		newDedupeSnapshotsCommand(),
		newRestoreDedupedSnapshotsCommand(),
		newCleanupJobCommand(),
	)

	return root
}

// Exit codes per the documented CLI contract: 0 success, 1
// validation/operational failure, 2 missing required state (a job,
// source, or snapshot the caller named by id doesn't exist).
const (
	ExitSuccess            = 0
	ExitOperationalFailure = 1
	ExitMissingState       = 2
)

// ExitCodeFor classifies err into one of the three documented exit
// codes. nil maps to ExitSuccess.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, jobstore.ErrJobNotFound) || errors.Is(err, jobstore.ErrSourceNotFound) {
		return ExitMissingState
	}
	return ExitOperationalFailure
}

// Run executes the CLI and returns the process exit code, printing any
// error to stderr itself since SilenceErrors keeps cobra quiet.
func Run(args []string) int {
	root := BuildCLI()
	root.SetArgs(args)

	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return ExitCodeFor(err)
}
