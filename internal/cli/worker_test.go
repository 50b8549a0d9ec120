package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStartWorkerCommand_Shape(t *testing.T) {
	cmd := newStartWorkerCommand()
	assert.Equal(t, "start-worker", cmd.Use)
	require.NotNil(t, cmd.RunE)

	once := cmd.Flags().Lookup("once")
	require.NotNil(t, once)
	assert.Equal(t, "false", once.DefValue)

	assert.NotNil(t, cmd.Flags().Lookup("poll-interval"))
	assert.NotNil(t, cmd.Flags().Lookup("annual-only"))
}

func TestNewRecoverStaleJobsCommand_Shape(t *testing.T) {
	cmd := newRecoverStaleJobsCommand()
	assert.Equal(t, "recover-stale-jobs", cmd.Use)
	require.NotNil(t, cmd.RunE)

	apply := cmd.Flags().Lookup("apply")
	require.NotNil(t, apply)
	assert.Equal(t, "false", apply.DefValue)
}

func TestEnableSentinel_CreatesDirAndMarkerFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sentinel")

	require.NoError(t, enableSentinel(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = os.Stat(filepath.Join(dir, sentinelFileName))
	require.NoError(t, err)
}

func TestEnableSentinel_IdempotentOnExistingDir(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, enableSentinel(dir))
	require.NoError(t, enableSentinel(dir))

	_, err := os.Stat(filepath.Join(dir, sentinelFileName))
	require.NoError(t, err)
}
