package watchdog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSentinel_AbsentDirectoryIsNeverApplyMode(t *testing.T) {
	s := NewSentinel(filepath.Join(t.TempDir(), "does-not-exist"))
	defer s.Close()
	require.False(t, s.ApplyMode())
}

func TestSentinel_SentinelFilePresentEnablesApplyMode(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, sentinelFile), []byte("1"), 0o644))

	s := NewSentinel(dir)
	defer s.Close()
	require.True(t, s.ApplyMode())
}

func TestSentinel_DeployLockSuppressesApplyModeEvenWithSentinel(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, sentinelFile), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, deployLockFile), []byte("1"), 0o644))

	s := NewSentinel(dir)
	defer s.Close()
	require.False(t, s.ApplyMode())
}

func TestSentinel_WatchedDirectoryPicksUpLaterChange(t *testing.T) {
	dir := t.TempDir()
	s := NewSentinel(dir)
	defer s.Close()
	require.False(t, s.ApplyMode())

	require.NoError(t, os.WriteFile(filepath.Join(dir, sentinelFile), []byte("1"), 0o644))

	require.Eventually(t, func() bool {
		return s.ApplyMode()
	}, time.Second, 5*time.Millisecond)
}
