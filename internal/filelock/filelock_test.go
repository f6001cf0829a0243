package filelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "state.json.lock")

	lock := New(lockPath)
	if lock == nil {
		t.Fatal("New should not return nil")
	}
	if lock.Path() != lockPath {
		t.Errorf("Expected lock path %s, got %s", lockPath, lock.Path())
	}
}

func TestLockUnlock(t *testing.T) {
	lock := New(filepath.Join(t.TempDir(), "state.json.lock"))

	if err := lock.Lock(); err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if err := lock.Unlock(); err != nil {
		t.Fatalf("Failed to release lock: %v", err)
	}
}

func TestConcurrentLocking(t *testing.T) {
	tmpDir := t.TempDir()
	lockPath := filepath.Join(tmpDir, "counter.lock")

	const goroutines = 5
	const iterations = 10

	// A shared counter file catches lost updates if the lock does not
	// actually serialize the read-modify-write cycle.
	counterPath := filepath.Join(tmpDir, "counter.txt")
	os.WriteFile(counterPath, []byte("0"), 0644)

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()

			for j := 0; j < iterations; j++ {
				lock := New(lockPath)

				if err := lock.Lock(); err != nil {
					t.Errorf("Failed to acquire lock: %v", err)
					return
				}

				data, err := os.ReadFile(counterPath)
				if err != nil {
					t.Errorf("Failed to read counter: %v", err)
					lock.Unlock()
					return
				}

				var counter int
				fmt.Sscanf(string(data), "%d", &counter)
				time.Sleep(1 * time.Millisecond)
				counter++

				if err := os.WriteFile(counterPath, []byte(fmt.Sprintf("%d", counter)), 0644); err != nil {
					t.Errorf("Failed to write counter: %v", err)
					lock.Unlock()
					return
				}

				if err := lock.Unlock(); err != nil {
					t.Errorf("Failed to release lock: %v", err)
					return
				}
			}
		}()
	}

	wg.Wait()

	data, err := os.ReadFile(counterPath)
	if err != nil {
		t.Fatalf("Failed to read final counter: %v", err)
	}

	var finalCounter int
	fmt.Sscanf(string(data), "%d", &finalCounter)

	expected := goroutines * iterations
	if finalCounter != expected {
		t.Errorf("Expected counter %d, got %d (race condition detected)", expected, finalCounter)
	}
}

func TestTryLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "state.json.lock")

	lock1 := New(lockPath)
	lock2 := New(lockPath)

	acquired, err := lock1.TryLock()
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	if !acquired {
		t.Fatal("First TryLock should succeed")
	}

	acquired, err = lock2.TryLock()
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	if acquired {
		t.Error("Second TryLock should fail when lock is held")
	}

	if err := lock1.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	acquired, err = lock2.TryLock()
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	if !acquired {
		t.Error("TryLock should succeed after unlock")
	}

	lock2.Unlock()
}

func TestLockWithTimeoutSuccess(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "state.json.lock")

	holder := New(lockPath)
	if err := holder.Lock(); err != nil {
		t.Fatalf("failed to acquire holder lock: %v", err)
	}

	released := make(chan struct{})
	go func() {
		time.Sleep(100 * time.Millisecond)
		if err := holder.Unlock(); err != nil {
			t.Errorf("failed to release holder lock: %v", err)
		}
		close(released)
	}()

	contender := New(lockPath)
	start := time.Now()
	if err := contender.LockWithTimeout(500 * time.Millisecond); err != nil {
		t.Fatalf("LockWithTimeout should succeed: %v", err)
	}

	wait := time.Since(start)
	if wait < 90*time.Millisecond {
		t.Fatalf("expected to wait for lock, waited only %v", wait)
	}

	metrics := contender.LastMetrics()
	if metrics.Attempts < 2 {
		t.Fatalf("expected multiple attempts, got %d", metrics.Attempts)
	}
	if metrics.TimedOut {
		t.Fatal("metrics should not report timeout")
	}

	if err := contender.Unlock(); err != nil {
		t.Fatalf("failed to release contender lock: %v", err)
	}

	<-released
}

func TestLockWithTimeoutTimeout(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "state.json.lock")

	holder := New(lockPath)
	if err := holder.Lock(); err != nil {
		t.Fatalf("failed to acquire holder lock: %v", err)
	}

	contender := New(lockPath)
	err := contender.LockWithTimeout(100 * time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}

	metrics := contender.LastMetrics()
	if !metrics.TimedOut {
		t.Fatal("metrics should report timeout")
	}
	if metrics.Attempts == 0 {
		t.Fatal("expected at least one lock attempt")
	}

	if err := holder.Unlock(); err != nil {
		t.Fatalf("failed to release holder lock: %v", err)
	}
}

func TestSetMonitorReceivesMetrics(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "state.json.lock")

	lock := New(lockPath)

	metricsCh := make(chan LockMetrics, 1)
	lock.SetMonitor(func(path string, metrics LockMetrics) {
		if path != lockPath {
			t.Errorf("unexpected path in monitor: %s", path)
		}
		metricsCh <- metrics
	})

	if err := lock.Lock(); err != nil {
		t.Fatalf("failed to acquire lock: %v", err)
	}
	if err := lock.Unlock(); err != nil {
		t.Fatalf("failed to release lock: %v", err)
	}

	select {
	case metrics := <-metricsCh:
		if metrics.Attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", metrics.Attempts)
		}
	case <-time.After(time.Second):
		t.Fatal("monitor did not receive metrics")
	}

	lock.SetMonitor(nil)
}

func TestMonitorReceivesTimeoutMetrics(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "state.json.lock")

	holder := New(lockPath)
	if err := holder.Lock(); err != nil {
		t.Fatalf("failed to acquire holder lock: %v", err)
	}

	contender := New(lockPath)
	metricsCh := make(chan LockMetrics, 1)
	contender.SetMonitor(func(path string, metrics LockMetrics) {
		metricsCh <- metrics
	})

	err := contender.LockWithTimeout(100 * time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}

	select {
	case metrics := <-metricsCh:
		if !metrics.TimedOut {
			t.Fatal("monitor metrics should indicate timeout")
		}
	case <-time.After(time.Second):
		t.Fatal("monitor did not capture timeout metrics")
	}

	if err := holder.Unlock(); err != nil {
		t.Fatalf("failed to release holder lock: %v", err)
	}
}

func TestAtomicWrite(t *testing.T) {
	targetPath := filepath.Join(t.TempDir(), "state.json")

	content := []byte(`{"run_id": "run-20260101-120000-abcd1234"}`)
	if err := AtomicWrite(targetPath, content); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}

	readContent, err := os.ReadFile(targetPath)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(readContent) != string(content) {
		t.Errorf("Expected content %q, got %q", string(content), string(readContent))
	}
}

func TestAtomicWriteOverwrite(t *testing.T) {
	targetPath := filepath.Join(t.TempDir(), "state.json")

	if err := os.WriteFile(targetPath, []byte("initial"), 0644); err != nil {
		t.Fatalf("Failed to write initial file: %v", err)
	}

	newContent := []byte("replaced")
	if err := AtomicWrite(targetPath, newContent); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}

	readContent, err := os.ReadFile(targetPath)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(readContent) != string(newContent) {
		t.Errorf("Expected content %q, got %q", string(newContent), string(readContent))
	}
}

func TestConcurrentAtomicWrites(t *testing.T) {
	targetPath := filepath.Join(t.TempDir(), "state.json")

	const goroutines = 10
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()

			content := []byte(string(rune('A' + id)))
			if err := AtomicWrite(targetPath, content); err != nil {
				t.Errorf("AtomicWrite failed for goroutine %d: %v", id, err)
			}
		}(i)
	}

	wg.Wait()

	content, err := os.ReadFile(targetPath)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}

	// One complete write must win; a torn write would show as a longer blob.
	if len(content) != 1 {
		t.Errorf("Expected 1 byte, got %d bytes: %q", len(content), string(content))
	}
}

func TestAtomicWritePermissions(t *testing.T) {
	targetPath := filepath.Join(t.TempDir(), "state.json")

	if err := AtomicWrite(targetPath, []byte("{}")); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}

	info, err := os.Stat(targetPath)
	if err != nil {
		t.Fatalf("Failed to stat file: %v", err)
	}

	if info.Mode().Perm() != os.FileMode(0644) {
		t.Errorf("Expected permissions 0644, got %v", info.Mode().Perm())
	}
}

func TestAtomicWriteNoTempFileLeftBehind(t *testing.T) {
	tmpDir := t.TempDir()
	targetPath := filepath.Join(tmpDir, "state.json")

	if err := AtomicWrite(targetPath, []byte("{}")); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("Failed to read directory: %v", err)
	}

	if len(entries) != 1 {
		var files []string
		for _, entry := range entries {
			files = append(files, entry.Name())
		}
		t.Errorf("Expected only 1 file, found %d: %v", len(entries), files)
	}
	if entries[0].Name() != "state.json" {
		t.Errorf("Expected file state.json, got %s", entries[0].Name())
	}
}

func TestAtomicWriteCreateDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	targetPath := filepath.Join(tmpDir, "runs", "run-x", "state.json")

	content := []byte("{}")
	if err := AtomicWrite(targetPath, content); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}

	readContent, err := os.ReadFile(targetPath)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(readContent) != string(content) {
		t.Errorf("Expected content %q, got %q", string(content), string(readContent))
	}

	dirPath := filepath.Join(tmpDir, "runs", "run-x")
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		t.Error("Directory should have been created")
	}
}

func TestLockAndWrite(t *testing.T) {
	targetPath := filepath.Join(t.TempDir(), "state.json")

	content := []byte(`{"phase": "PLAN"}`)
	if err := LockAndWrite(targetPath, content); err != nil {
		t.Fatalf("LockAndWrite failed: %v", err)
	}

	readContent, err := os.ReadFile(targetPath)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(readContent) != string(content) {
		t.Errorf("Expected content %q, got %q", string(content), string(readContent))
	}
}

func TestLockAndWriteDeletesLockFile(t *testing.T) {
	targetPath := filepath.Join(t.TempDir(), "state.json")
	lockPath := targetPath + ".lock"

	if err := LockAndWrite(targetPath, []byte("{}")); err != nil {
		t.Fatalf("LockAndWrite failed: %v", err)
	}

	if _, err := os.Stat(targetPath); os.IsNotExist(err) {
		t.Fatalf("Target file %s was not created", targetPath)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Errorf("Lock file %s was not deleted", lockPath)
	}
}

func TestLockAndWriteDeletesLockFileOnError(t *testing.T) {
	// Root bypasses permission checks, so the forced write failure below
	// cannot happen.
	if os.Getuid() == 0 {
		t.Skip("Skipping permission test when running as root")
	}

	tmpDir := t.TempDir()
	readOnlyDir := filepath.Join(tmpDir, "readonly")
	if err := os.Mkdir(readOnlyDir, 0555); err != nil {
		t.Fatalf("Failed to create read-only directory: %v", err)
	}
	defer os.Chmod(readOnlyDir, 0755)

	targetPath := filepath.Join(readOnlyDir, "state.json")
	lockPath := targetPath + ".lock"

	err := LockAndWrite(targetPath, []byte("{}"))
	if err == nil {
		t.Fatal("Expected LockAndWrite to fail when writing to read-only directory")
	}

	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Errorf("Lock file %s was not deleted after error", lockPath)
	}
}

func TestConcurrentLockAndWrite(t *testing.T) {
	targetPath := filepath.Join(t.TempDir(), "state.json")
	lockPath := targetPath + ".lock"

	const goroutines = 10
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()

			content := []byte(fmt.Sprintf(`{"writer": %d}`, id))
			if err := LockAndWrite(targetPath, content); err != nil {
				t.Errorf("LockAndWrite failed for goroutine %d: %v", id, err)
			}
		}(i)
	}

	wg.Wait()

	data, err := os.ReadFile(targetPath)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if len(data) == 0 || data[0] != '{' || data[len(data)-1] != '}' {
		t.Errorf("Target file is not one complete document: %q", data)
	}

	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Errorf("Lock file %s was not deleted after concurrent writes", lockPath)
	}
}
