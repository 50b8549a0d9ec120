package worker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/healtharchive/internal/errorsx"
)

func TestCheckRootGuardrail_NonAnnualNeverTrips(t *testing.T) {
	err := checkRootGuardrail("/anything", false, "/")
	assert.NoError(t, err)
}

func TestCheckRootGuardrail_AnnualOnSameDeviceAsRootTrips(t *testing.T) {
	dir := t.TempDir()
	err := checkRootGuardrail(dir, true, dir)
	require.Error(t, err)
	assert.True(t, errorsx.IsGuardrail(err))
}

func TestSameDevice_SubdirectoryIsSameDevice(t *testing.T) {
	dir := t.TempDir()
	other := filepath.Join(dir, "not-root-marker")
	require.NoError(t, os.Mkdir(other, 0o755))

	// A directory and a subdirectory on the same filesystem share a
	// device. A genuinely different mount is not reproducible inside a
	// test sandbox, so the case where an annual job on another device
	// passes checkRootGuardrail is not exercised here.
	sameDevice, err := sameDevice(dir, other)
	require.NoError(t, err)
	assert.True(t, sameDevice)
}

func TestSameDevice_IdenticalPathIsSameDevice(t *testing.T) {
	dir := t.TempDir()
	same, err := sameDevice(dir, dir)
	require.NoError(t, err)
	assert.True(t, same)
}

func TestDeviceOf_WalksUpToExistingAncestor(t *testing.T) {
	dir := t.TempDir()
	notYetCreated := filepath.Join(dir, "does", "not", "exist", "yet")

	dev, err := deviceOf(notYetCreated)
	require.NoError(t, err)

	dirDev, err := deviceOf(dir)
	require.NoError(t, err)
	assert.Equal(t, dirDev, dev)
}

func TestDiskWatermarkExceeded_LowWatermarkNeverTrips(t *testing.T) {
	exceeded, err := diskWatermarkExceeded(t.TempDir(), 1)
	require.NoError(t, err)
	assert.False(t, exceeded)
}

func TestDiskWatermarkExceeded_ImpossiblyHighWatermarkTrips(t *testing.T) {
	exceeded, err := diskWatermarkExceeded(t.TempDir(), 1<<62)
	require.NoError(t, err)
	assert.True(t, exceeded)
}

func TestDiskWatermarkExceeded_UnreadablePathErrors(t *testing.T) {
	_, err := diskWatermarkExceeded("/nonexistent/does/not/exist", 0)
	assert.Error(t, err)
}
