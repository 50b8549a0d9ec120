// Package watchdog implements the three periodic reconciliation loops
// that run alongside the worker: a stall detector, storage hot-path
// recovery, and a DB/runtime reconciler. Every loop is sentinel-gated —
// apply-mode actions only happen when an operator has dropped the
// sentinel file in place — and every apply-mode action is idempotent,
// bounded, and logged with a reason code.
package watchdog

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// sentinelFile is the well-known name checked under a watchdog's
// configured sentinel directory; its presence is the operator's opt-in
// to apply mode.
const sentinelFile = "apply-enabled"

// deployLockFile, when present alongside sentinelFile, suppresses
// apply-mode actions regardless of the sentinel — a global deploy-lock
// an operator drops before a deploy and removes after.
const deployLockFile = "deploy.lock"

// Sentinel gates a watchdog loop between dry-run and apply mode. It
// watches its directory with fsnotify so the common "nothing changed
// since last tick" case costs nothing; every ApplyMode call falls back
// to a direct stat only when the watch could not be established (the
// directory does not exist yet, or the platform's watch queue is
// exhausted).
type Sentinel struct {
	dir     string
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	applyOK bool
}

// NewSentinel builds a Sentinel rooted at dir and starts watching it.
func NewSentinel(dir string) *Sentinel {
	s := &Sentinel{dir: dir}
	s.applyOK = s.statApplyMode()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return s
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return s
	}
	s.watcher = watcher
	go s.watchLoop()
	return s
}

func (s *Sentinel) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			if name == sentinelFile || name == deployLockFile {
				s.mu.Lock()
				s.applyOK = s.statApplyMode()
				s.mu.Unlock()
			}
		case _, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the background watch, if one was established. Safe to
// call on a Sentinel that never got a watcher.
func (s *Sentinel) Close() error {
	if s == nil || s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

// ApplyMode reports whether apply-mode actions are currently permitted:
// the sentinel file is present and the deploy lock is not.
func (s *Sentinel) ApplyMode() bool {
	if s == nil || s.dir == "" {
		return false
	}
	if s.watcher == nil {
		return s.statApplyMode()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applyOK
}

func (s *Sentinel) statApplyMode() bool {
	if _, err := os.Stat(filepath.Join(s.dir, deployLockFile)); err == nil {
		return false
	}
	_, err := os.Stat(filepath.Join(s.dir, sentinelFile))
	return err == nil
}
