package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harrison/maestro/internal/filelock"
)

const (
	stateFileName      = "state.json"
	decisionsFileName  = "decisions.md"
	lastOutputFileName = "last-output.txt"
	runLockFileName    = "run.lock"
	runIDPrefix        = "run-"

	// stateLockTimeout bounds waiting for the state document lock. Writers
	// hold it for milliseconds, so a long wait means a stuck process.
	stateLockTimeout = 5 * time.Second

	// runLockTimeout bounds waiting for the run owner lock.
	runLockTimeout = 5 * time.Second
)

// Latest is the pseudo run reference accepted by Resolve.
const Latest = "latest"

// ErrNoRuns is returned when the runs directory holds no runs yet.
var ErrNoRuns = errors.New("no runs found")

// RunNotFoundError is returned when a referenced run has no state on disk.
type RunNotFoundError struct {
	RunID string
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("run %s not found", e.RunID)
}

// IsRunNotFound checks if an error is a RunNotFoundError.
func IsRunNotFound(err error) bool {
	var target *RunNotFoundError
	return errors.As(err, &target)
}

// CorruptStateError is returned when a run's state document exists but
// cannot be decoded. It names the offending file and how to recover.
type CorruptStateError struct {
	Path string
	Err  error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("run state %s is corrupt: %v (repair the JSON by hand, or delete the run directory to discard the run)", e.Path, e.Err)
}

func (e *CorruptStateError) Unwrap() error {
	return e.Err
}

// IsCorruptState checks if an error is a CorruptStateError.
func IsCorruptState(err error) bool {
	var target *CorruptStateError
	return errors.As(err, &target)
}

// NewRunID returns a fresh unique run identifier.
// Format: run-YYYYMMDD-HHMMSS-xxxxxxxx
// Example: run-20260821-143045-9f86d081
// The timestamp keeps directory listings chronological; the uuid suffix
// keeps IDs unique when runs start within the same second.
func NewRunID() string {
	now := time.Now()
	return fmt.Sprintf("%s%s-%s", runIDPrefix, now.Format("20060102-150405"), uuid.New().String()[:8])
}

// Store persists run state documents and per-run artifacts. Each run owns
// one subdirectory of the runs directory:
//
//	<runs-dir>/<run-id>/state.json       the durable RunState document
//	<runs-dir>/<run-id>/decisions.md     append-only per-iteration notes
//	<runs-dir>/<run-id>/last-output.txt  latest raw agent output (overwritten)
//	<runs-dir>/<run-id>/plan-cycle-N.md  checklist archives per cycle
//	<runs-dir>/<run-id>/run.lock         owner lock while an engine drives the run
type Store struct {
	runsDir     string
	lockMonitor filelock.MonitorFunc
}

// NewStore creates a Store over the given runs directory.
func NewStore(runsDir string) *Store {
	return &Store{runsDir: runsDir}
}

// SetLockMonitor installs a callback that receives acquisition metrics for
// every file lock the store takes, so lock contention can be surfaced in
// debug logs.
func (s *Store) SetLockMonitor(m filelock.MonitorFunc) {
	s.lockMonitor = m
}

// RunsDir returns the root directory holding all runs.
func (s *Store) RunsDir() string {
	return s.runsDir
}

// RunDir returns the directory owned by the given run.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.runsDir, runID)
}

// StatePath returns the path of the run's state document.
func (s *Store) StatePath(runID string) string {
	return filepath.Join(s.runsDir, runID, stateFileName)
}

// Create materializes the run directory and writes the initial state
// document. It fails if the run already exists.
func (s *Store) Create(st *RunState) error {
	if st == nil || st.RunID == "" {
		return errors.New("run state has no run ID")
	}

	dir := s.RunDir(st.RunID)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("run %s already exists", st.RunID)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}

	return s.Save(st)
}

// Save persists the state document. Callers issue exactly one Save per
// iteration; the write is atomic (temp file + rename) and serialized by a
// lock file next to the document.
func (s *Store) Save(st *RunState) error {
	if st == nil || st.RunID == "" {
		return errors.New("run state has no run ID")
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}
	data = append(data, '\n')

	path := s.StatePath(st.RunID)
	lock := filelock.New(path + ".lock")
	if s.lockMonitor != nil {
		lock.SetMonitor(s.lockMonitor)
	}

	if err := lock.LockWithTimeout(stateLockTimeout); err != nil {
		return fmt.Errorf("persist run %s: %w", st.RunID, err)
	}
	defer func() {
		lock.Unlock()
		os.Remove(lock.Path())
	}()

	if err := filelock.AtomicWrite(path, data); err != nil {
		return fmt.Errorf("persist run %s: %w", st.RunID, err)
	}

	return nil
}

// Load reads and decodes a run's state document. A missing document yields
// RunNotFoundError; an undecodable one yields CorruptStateError with an
// operator diagnostic.
func (s *Store) Load(runID string) (*RunState, error) {
	path := s.StatePath(runID)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &RunNotFoundError{RunID: runID}
		}
		return nil, fmt.Errorf("read run state: %w", err)
	}

	var st RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, &CorruptStateError{Path: path, Err: err}
	}

	if st.RunID == "" {
		return nil, &CorruptStateError{Path: path, Err: errors.New("document has no run_id")}
	}
	if st.RunID != runID {
		return nil, &CorruptStateError{Path: path, Err: fmt.Errorf("document belongs to run %s", st.RunID)}
	}

	return &st, nil
}

// List returns all run IDs in the runs directory, oldest first. Run IDs
// start with a timestamp, so lexical order is chronological order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read runs directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), runIDPrefix) {
			ids = append(ids, entry.Name())
		}
	}

	sort.Strings(ids)
	return ids, nil
}

// FindLatest returns the most recently started run's ID.
func (s *Store) FindLatest() (string, error) {
	ids, err := s.List()
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", ErrNoRuns
	}
	return ids[len(ids)-1], nil
}

// Resolve maps a run reference to a concrete run ID. An empty reference or
// "latest" resolves to the most recent run; anything else must name an
// existing run.
func (s *Store) Resolve(ref string) (string, error) {
	if ref == "" || ref == Latest {
		return s.FindLatest()
	}

	if _, err := os.Stat(s.RunDir(ref)); err != nil {
		if os.IsNotExist(err) {
			return "", &RunNotFoundError{RunID: ref}
		}
		return "", fmt.Errorf("stat run directory: %w", err)
	}

	return ref, nil
}

// AcquireRunLock takes the run's exclusive owner lock. Exactly one engine
// process may drive a run at a time; a second process times out here.
// The caller must Unlock the returned lock and remove its file when done.
func (s *Store) AcquireRunLock(runID string) (*filelock.FileLock, error) {
	lock := filelock.New(filepath.Join(s.RunDir(runID), runLockFileName))
	if s.lockMonitor != nil {
		lock.SetMonitor(s.lockMonitor)
	}

	if err := lock.LockWithTimeout(runLockTimeout); err != nil {
		return nil, fmt.Errorf("run %s appears to be owned by another maestro process: %w", runID, err)
	}

	return lock, nil
}

// AppendDecision appends one entry to the run's decisions log. Entries are
// free-form markdown; the engine writes one per iteration.
func (s *Store) AppendDecision(runID string, entry string) error {
	path := filepath.Join(s.RunDir(runID), decisionsFileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open decisions log: %w", err)
	}
	defer f.Close()

	if !strings.HasSuffix(entry, "\n") {
		entry += "\n"
	}

	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("append decision: %w", err)
	}

	return nil
}

// WriteLastOutput replaces the run's last-output artifact with the latest
// raw agent output.
func (s *Store) WriteLastOutput(runID string, output []byte) error {
	path := filepath.Join(s.RunDir(runID), lastOutputFileName)
	if err := filelock.AtomicWrite(path, output); err != nil {
		return fmt.Errorf("write last output: %w", err)
	}
	return nil
}

// ArchiveChecklist stores the cycle's checklist snapshot under
// plan-cycle-N.md so completed cycles stay inspectable.
func (s *Store) ArchiveChecklist(runID string, cycle int, content []byte) error {
	path := filepath.Join(s.RunDir(runID), fmt.Sprintf("plan-cycle-%d.md", cycle))
	if err := filelock.AtomicWrite(path, content); err != nil {
		return fmt.Errorf("archive checklist: %w", err)
	}
	return nil
}
