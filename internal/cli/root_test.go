package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/healtharchive/internal/jobstore"
)

func TestBuildCLI_RegistersEveryVerb(t *testing.T) {
	root := BuildCLI()

	require.Equal(t, "healtharchive", root.Use)

	want := []string{
		"seed-sources", "create-job", "run-db-job", "index-job", "retry-job",
		"list-jobs", "show-job", "start-worker", "patch-job-config",
		"reset-retry-count", "recover-stale-jobs", "verify-warc-manifest",
		"dedupe-snapshots", "restore-deduped-snapshots", "cleanup-job",
	}

	got := make(map[string]bool)
	for _, c := range root.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, got[name], "expected subcommand %q to be registered", name)
	}

	configFlag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "config.yml", configFlag.DefValue)
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCodeFor(nil))
	assert.Equal(t, ExitMissingState, ExitCodeFor(jobstore.ErrJobNotFound))
	assert.Equal(t, ExitMissingState, ExitCodeFor(jobstore.ErrSourceNotFound))
	assert.Equal(t, ExitMissingState, ExitCodeFor(fmtWrap(jobstore.ErrJobNotFound)))
	assert.Equal(t, ExitOperationalFailure, ExitCodeFor(errors.New("boom")))
}

func fmtWrap(err error) error {
	return errors.Join(errors.New("context"), err)
}
