// Package history maintains a cross-run SQLite index of runs and their
// iterations. The index is derived data: each run's state.json stays
// authoritative, rows are rebuildable from run directories, and callers
// treat write failures as warnings rather than loop-stopping errors.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/maestro/internal/state"
)

//go:embed schema.sql
var schemaSQL string

// DefaultFileName is the index file name under the state directory.
const DefaultFileName = "history.db"

// Run is one indexed run, newest state last written wins.
type Run struct {
	RunID      string
	Task       string
	Mode       string
	Phase      string
	Cycle      int
	Iteration  int
	CostUSD    float64
	StopReason string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Running reports whether the indexed run had not stopped at last update.
func (r Run) Running() bool {
	return r.StopReason == ""
}

// Index is a handle to the history database.
type Index struct {
	db     *sql.DB
	dbPath string
}

// Open opens (creating if needed) the index at dbPath and applies the
// schema. The parent directory is created for file-backed databases.
func Open(dbPath string) (*Index, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	// busy_timeout first so the remaining pragmas wait on locks held by
	// a concurrent maestro process.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := execWithRetry(db, schemaSQL, 5, 10*time.Millisecond); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Index{db: db, dbPath: dbPath}, nil
}

// execWithRetry executes a statement with exponential backoff on
// "database is locked" errors from concurrent initialization.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database handle. Safe on a nil index.
func (ix *Index) Close() error {
	if ix == nil || ix.db == nil {
		return nil
	}
	return ix.db.Close()
}

// Path returns the database file path.
func (ix *Index) Path() string {
	return ix.dbPath
}

// Record indexes a run's current state plus its most recent iteration.
// Called after every persisted iteration; idempotent per (run, seq).
func (ix *Index) Record(ctx context.Context, st *state.RunState) error {
	if st == nil || st.RunID == "" {
		return fmt.Errorf("run state is missing a run_id")
	}

	if err := ix.upsertRun(ctx, st); err != nil {
		return err
	}
	if rec := st.LastRecord(); rec != nil {
		if err := ix.upsertIteration(ctx, st.RunID, rec); err != nil {
			return err
		}
	}
	return nil
}

// Reindex rewrites a run's row and every iteration row from its state.
// Used on resume so an index lost or created late catches up.
func (ix *Index) Reindex(ctx context.Context, st *state.RunState) error {
	if st == nil || st.RunID == "" {
		return fmt.Errorf("run state is missing a run_id")
	}

	if err := ix.upsertRun(ctx, st); err != nil {
		return err
	}
	for i := range st.Records {
		if err := ix.upsertIteration(ctx, st.RunID, &st.Records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Index) upsertRun(ctx context.Context, st *state.RunState) error {
	query := `INSERT INTO runs
		(run_id, task, mode, phase, cycle, iteration, cost_usd, stop_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			task=excluded.task,
			mode=excluded.mode,
			phase=excluded.phase,
			cycle=excluded.cycle,
			iteration=excluded.iteration,
			cost_usd=excluded.cost_usd,
			stop_reason=excluded.stop_reason,
			updated_at=excluded.updated_at`

	_, err := ix.db.ExecContext(ctx, query,
		st.RunID,
		st.Task,
		st.Mode,
		st.Phase.String(),
		st.Cycle,
		st.Iteration,
		st.CostUSD,
		string(st.StopReason),
		st.CreatedAt.Format(time.RFC3339),
		st.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("index run %s: %w", st.RunID, err)
	}
	return nil
}

func (ix *Index) upsertIteration(ctx context.Context, runID string, rec *state.IterationRecord) error {
	query := `INSERT OR REPLACE INTO iterations
		(run_id, seq, cycle, phase, exit_signal, files_changed, error_signature, cost_delta, degraded, duration_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := ix.db.ExecContext(ctx, query,
		runID,
		rec.Seq,
		rec.Cycle,
		rec.Phase.String(),
		rec.ExitSignal,
		rec.FileCount(),
		rec.ErrorSignature,
		rec.CostDelta,
		rec.Degraded,
		rec.Duration.Milliseconds(),
		rec.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("index run %s iteration %d: %w", runID, rec.Seq, err)
	}
	return nil
}

// ListRuns returns all indexed runs, most recently updated first.
func (ix *Index) ListRuns(ctx context.Context) ([]Run, error) {
	query := `SELECT run_id, task, mode, phase, cycle, iteration, cost_usd, stop_reason, created_at, updated_at
		FROM runs
		ORDER BY updated_at DESC, run_id DESC`

	rows, err := ix.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var createdAt, updatedAt string
		if err := rows.Scan(&r.RunID, &r.Task, &r.Mode, &r.Phase, &r.Cycle, &r.Iteration,
			&r.CostUSD, &r.StopReason, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.CreatedAt = parseIndexedTime(createdAt)
		r.UpdatedAt = parseIndexedTime(updatedAt)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// parseIndexedTime parses a stored timestamp, zero time when malformed.
// The index is derived data so a bad timestamp degrades display only.
func parseIndexedTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
