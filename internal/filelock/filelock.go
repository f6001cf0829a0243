// Package filelock guards maestro's persisted run files against concurrent
// writers. Run state is rewritten once per iteration and may be read by
// status tooling at any time, so every write goes through an exclusive flock
// plus an atomic temp-file rename.
package filelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// ErrLockTimeout is returned by LockWithTimeout when the lock could not be
// acquired before the deadline.
var ErrLockTimeout = errors.New("timed out waiting for file lock")

// lockRetryInterval is the poll interval used by LockWithTimeout between
// non-blocking acquisition attempts.
const lockRetryInterval = 10 * time.Millisecond

// LockMetrics describes a single acquisition attempt sequence.
type LockMetrics struct {
	Attempts int
	Wait     time.Duration
	TimedOut bool
}

// MonitorFunc receives lock metrics after each acquisition attempt
// completes, successfully or not.
type MonitorFunc func(path string, metrics LockMetrics)

// FileLock is an advisory exclusive lock on a path, shared across processes.
type FileLock struct {
	flock *flock.Flock
	path  string

	mu      sync.Mutex
	monitor MonitorFunc
	last    LockMetrics
}

// New creates a lock handle for the given lock-file path. The file is
// created on first acquisition.
func New(path string) *FileLock {
	return &FileLock{
		flock: flock.New(path),
		path:  path,
	}
}

// SetMonitor installs a callback invoked with metrics after every Lock or
// LockWithTimeout call. Passing nil removes the monitor.
func (fl *FileLock) SetMonitor(m MonitorFunc) {
	fl.mu.Lock()
	fl.monitor = m
	fl.mu.Unlock()
}

// LastMetrics returns the metrics recorded by the most recent Lock or
// LockWithTimeout call.
func (fl *FileLock) LastMetrics() LockMetrics {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.last
}

func (fl *FileLock) record(m LockMetrics) {
	fl.mu.Lock()
	fl.last = m
	monitor := fl.monitor
	fl.mu.Unlock()

	if monitor != nil {
		monitor(fl.path, m)
	}
}

// Lock blocks until the exclusive lock is acquired.
func (fl *FileLock) Lock() error {
	start := time.Now()
	err := fl.flock.Lock()
	fl.record(LockMetrics{Attempts: 1, Wait: time.Since(start)})
	if err != nil {
		return fmt.Errorf("acquire lock on %s: %w", fl.path, err)
	}
	return nil
}

// LockWithTimeout polls for the exclusive lock until it is acquired or the
// timeout elapses. On timeout the returned error wraps ErrLockTimeout.
func (fl *FileLock) LockWithTimeout(timeout time.Duration) error {
	start := time.Now()
	deadline := start.Add(timeout)

	var attempts int
	for {
		attempts++
		acquired, err := fl.flock.TryLock()
		if err != nil {
			fl.record(LockMetrics{Attempts: attempts, Wait: time.Since(start)})
			return fmt.Errorf("try lock on %s: %w", fl.path, err)
		}
		if acquired {
			fl.record(LockMetrics{Attempts: attempts, Wait: time.Since(start)})
			return nil
		}
		if time.Now().After(deadline) {
			fl.record(LockMetrics{Attempts: attempts, Wait: time.Since(start), TimedOut: true})
			return fmt.Errorf("acquire lock on %s: %w (waited %v, %d attempts)",
				fl.path, ErrLockTimeout, timeout, attempts)
		}
		time.Sleep(lockRetryInterval)
	}
}

// TryLock attempts the lock without blocking. It reports whether the lock
// was acquired.
func (fl *FileLock) TryLock() (bool, error) {
	acquired, err := fl.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("try lock on %s: %w", fl.path, err)
	}
	return acquired, nil
}

// Unlock releases the lock.
func (fl *FileLock) Unlock() error {
	if err := fl.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock on %s: %w", fl.path, err)
	}
	return nil
}

// Path returns the lock-file path.
func (fl *FileLock) Path() string {
	return fl.path
}

// AtomicWrite writes data to path so readers never observe a partial file.
// The data lands in a temp file in the target's directory (same filesystem,
// so the final rename is atomic) and is synced before the rename. On any
// failure the original file is left untouched.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}

	tmp = nil // renamed, skip cleanup
	return nil
}

// LockAndWrite takes the exclusive lock for path (lock file is path +
// ".lock"), performs an atomic write, releases the lock, and removes the
// lock file.
func LockAndWrite(path string, data []byte) error {
	lockPath := path + ".lock"
	lock := New(lockPath)
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() {
		lock.Unlock()
		os.Remove(lockPath)
	}()

	return AtomicWrite(path, data)
}
