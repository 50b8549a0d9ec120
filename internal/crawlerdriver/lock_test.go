package crawlerdriver

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_CreatesLockFile(t *testing.T) {
	dir := t.TempDir()
	lock, err := Acquire(dir, 42)
	require.NoError(t, err)
	defer lock.Release()

	_, err = os.Stat(filepath.Join(dir, "job-42.lock"))
	assert.NoError(t, err)
}

func TestAcquire_SecondAcquireFailsWhileHeld(t *testing.T) {
	dir := t.TempDir()
	lock, err := Acquire(dir, 7)
	require.NoError(t, err)
	defer lock.Release()

	_, err = Acquire(dir, 7)
	assert.ErrorIs(t, err, ErrLockHeld)
}

func TestAcquire_ReclaimsStaleLockFromDeadPID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job-9.lock")
	// A PID essentially guaranteed not to be running, simulating a
	// crashed prior worker process.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(999999)), 0o644))

	lock, err := Acquire(dir, 9)
	require.NoError(t, err)
	defer lock.Release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestAcquire_DoesNotReclaimLiveProcessLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job-3.lock")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644))

	_, err := Acquire(dir, 3)
	assert.ErrorIs(t, err, ErrLockHeld)
}

func TestRelease_NilLockIsSafe(t *testing.T) {
	var lock *Lock
	assert.NoError(t, lock.Release())
}

func TestRelease_RemovesLockFile(t *testing.T) {
	dir := t.TempDir()
	lock, err := Acquire(dir, 1)
	require.NoError(t, err)

	require.NoError(t, lock.Release())
	_, err = os.Stat(filepath.Join(dir, "job-1.lock"))
	assert.True(t, os.IsNotExist(err))
}
