package crawlerdriver

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Lock is a per-job advisory lock implemented as a file created with
// O_EXCL in a dedicated lock directory. It is held for the entire
// Run+Index duration — a single lock covers both the crawl and the
// subsequent indexing pass, never released and reacquired between them.
type Lock struct {
	path string
}

// ErrLockHeld is returned by Acquire when the lock file already exists
// and its owning PID is still alive.
var ErrLockHeld = fmt.Errorf("lock held")

// Acquire creates the lock file for jobID under dir, reclaiming it
// first if the file is stale: present but naming a PID that is no
// longer running (a crash of a prior worker process, not a live
// holder).
func Acquire(dir string, jobID int64) (*Lock, error) {
	path := filepath.Join(dir, fmt.Sprintf("job-%d.lock", jobID))

	if err := tryCreate(path); err == nil {
		return &Lock{path: path}, nil
	} else if !os.IsExist(err) {
		return nil, fmt.Errorf("create lock file: %w", err)
	}

	if reclaimStale(path) {
		if err := tryCreate(path); err == nil {
			return &Lock{path: path}, nil
		}
	}

	return nil, ErrLockHeld
}

func tryCreate(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(strconv.Itoa(os.Getpid()))
	return err
}

// reclaimStale reports whether it removed path because the PID
// recorded inside it no longer corresponds to a live process.
func reclaimStale(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false
	}
	if pid <= 0 || processAlive(pid) {
		return false
	}
	return os.Remove(path) == nil
}

// processAlive sends signal 0, the standard liveness probe: it performs
// permission and existence checks without actually signaling anything.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}

// LockHeld reports whether jobID's lock file exists under dir and names
// a still-live PID — used by the reconciler watchdog to tell "crashed
// worker, lock is stale" apart from "genuinely still running" without
// attempting to acquire (and thus reclaim) it.
func LockHeld(dir string, jobID int64) bool {
	path := filepath.Join(dir, fmt.Sprintf("job-%d.lock", jobID))
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false
	}
	return pid > 0 && processAlive(pid)
}

// Release removes the lock file. Safe to call on a nil Lock.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	return os.Remove(l.path)
}
