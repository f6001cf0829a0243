// Package state holds the durable record of a supervised run: the RunState
// document, its per-iteration history, and the Store that persists both under
// the maestro state directory.
package state

import (
	"time"

	"github.com/harrison/maestro/internal/phase"
)

// StopReason explains why a run stopped. Empty means the run is still active.
type StopReason string

const (
	// StopNoMoreWork means the first phase signalled exit: nothing left to plan.
	StopNoMoreWork StopReason = "no_more_work"

	// StopMaxCycles means the cycle ceiling was reached at a cycle boundary.
	StopMaxCycles StopReason = "max_cycles_reached"

	// StopCostLimit means accumulated spend reached the configured ceiling.
	StopCostLimit StopReason = "cost_limit_reached"

	// StopRepeatedError means the breaker saw the same error signature across
	// the whole window.
	StopRepeatedError StopReason = "repeated_error"

	// StopTestOnlyLoop means every iteration in the window changed only test files.
	StopTestOnlyLoop StopReason = "test_only_loop"

	// StopStagnation means no files changed anywhere in the window.
	StopStagnation StopReason = "stagnation"

	// StopStalled means the working tree went quiet past the stall timeout,
	// twice in a row.
	StopStalled StopReason = "stalled"

	// StopCancelled means the operator interrupted the run.
	StopCancelled StopReason = "cancelled"
)

// String returns the wire value of the stop reason.
func (r StopReason) String() string {
	return string(r)
}

// Valid reports whether r is one of the known stop reasons.
func (r StopReason) Valid() bool {
	switch r {
	case StopNoMoreWork, StopMaxCycles, StopCostLimit, StopRepeatedError,
		StopTestOnlyLoop, StopStagnation, StopStalled, StopCancelled:
		return true
	}
	return false
}

// ModelSelection records which models the run invokes per phase kind. It is
// set from the config at start and refreshed from the current config on
// resume.
type ModelSelection struct {
	Default string `json:"default"`
	Plan    string `json:"plan,omitempty"`
	Review  string `json:"review,omitempty"`
}

// PlanModel returns the planning model, falling back to Default.
func (m ModelSelection) PlanModel() string {
	if m.Plan != "" {
		return m.Plan
	}
	return m.Default
}

// ReviewModel returns the review model, falling back to Default.
func (m ModelSelection) ReviewModel() string {
	if m.Review != "" {
		return m.Review
	}
	return m.Default
}

// IterationRecord is one completed agent iteration. Records are append-only
// and never modified once added to the run history.
type IterationRecord struct {
	// Seq is the 1-based position of this record in the run history
	Seq int `json:"seq"`

	// Timestamp is when the iteration started
	Timestamp time.Time `json:"timestamp"`

	// Phase is the phase the iteration ran in
	Phase phase.Phase `json:"phase"`

	// Cycle is the cycle counter at the time the iteration ran
	Cycle int `json:"cycle"`

	// Status is the advisory STATUS value reported by the agent
	Status string `json:"status,omitempty"`

	// ExitSignal is the parsed EXIT_SIGNAL value
	ExitSignal bool `json:"exit_signal"`

	// FilesChanged lists the paths the agent reported touching
	FilesChanged []string `json:"files_changed,omitempty"`

	// ErrorSignature is the normalized ERROR value; empty means no error
	ErrorSignature string `json:"error_signature,omitempty"`

	// Recommendation is the advisory RECOMMENDATION value
	Recommendation string `json:"recommendation,omitempty"`

	// CostDelta is the incremental spend attributed to this iteration, in USD
	CostDelta float64 `json:"cost_delta"`

	// Degraded marks records built from output with no parseable status block
	Degraded bool `json:"degraded,omitempty"`

	// DegradedReason says why the parse degraded
	DegradedReason string `json:"degraded_reason,omitempty"`

	// Duration is how long the agent invocation took
	Duration time.Duration `json:"duration,omitempty"`
}

// HasError reports whether the iteration carried an error signature.
func (r IterationRecord) HasError() bool {
	return r.ErrorSignature != ""
}

// FileCount returns how many files the iteration reported changing.
func (r IterationRecord) FileCount() int {
	return len(r.FilesChanged)
}

// RunState is the durable record of one supervised run. It is owned by a
// single engine goroutine; everything else sees it through snapshots or the
// persisted file.
type RunState struct {
	// RunID uniquely identifies the run and names its artifact directory
	RunID string `json:"run_id"`

	// Task is the operator-supplied task prompt the run was started with
	Task string `json:"task"`

	// Mode is the phase sequence the run uses (standard or comprehensive)
	Mode string `json:"mode"`

	// Phase is the phase the next iteration will run in
	Phase phase.Phase `json:"phase"`

	// Cycle counts completed full passes through the phase list. It is 0
	// while the first pass is underway; displays add 1 for the pass number.
	Cycle int `json:"cycle"`

	// Iteration counts appended iteration records across all cycles
	Iteration int `json:"iteration"`

	// CostUSD is the accumulated spend across all iterations
	CostUSD float64 `json:"cost_usd"`

	// MaxCycles is the cycle ceiling the run was started with
	MaxCycles int `json:"max_cycles"`

	// CostLimitUSD is the spend ceiling the run was started with
	CostLimitUSD float64 `json:"cost_limit_usd"`

	// Models records the model selection the run was started with
	Models ModelSelection `json:"models"`

	// StopReason is set exactly once, when the run stops
	StopReason StopReason `json:"stop_reason,omitempty"`

	// Records is the append-only iteration history
	Records []IterationRecord `json:"records"`

	// CreatedAt is when the run was started
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the state was last persisted
	UpdatedAt time.Time `json:"updated_at"`
}

// Running reports whether the run is still active.
func (s *RunState) Running() bool {
	return s.StopReason == ""
}

// Append assigns the next sequence number to rec, adds it to the history,
// and rolls the iteration counter and accumulated cost forward. It returns
// the completed record.
func (s *RunState) Append(rec IterationRecord) IterationRecord {
	s.Iteration++
	rec.Seq = s.Iteration
	rec.Cycle = s.Cycle
	s.CostUSD += rec.CostDelta
	s.Records = append(s.Records, rec)
	s.UpdatedAt = time.Now()
	return rec
}

// PhaseIterations counts the trailing records that share the current phase
// and cycle: how many iterations the run has spent in its phase since
// entering it. The count is derived from history so it survives a resume.
func (s *RunState) PhaseIterations() int {
	count := 0
	for i := len(s.Records) - 1; i >= 0; i-- {
		rec := s.Records[i]
		if rec.Phase != s.Phase || rec.Cycle != s.Cycle {
			break
		}
		count++
	}
	return count
}

// Tail returns the most recent n records, oldest first. Fewer are returned
// when the history is shorter than n.
func (s *RunState) Tail(n int) []IterationRecord {
	if n <= 0 || len(s.Records) == 0 {
		return nil
	}
	if n > len(s.Records) {
		n = len(s.Records)
	}
	return s.Records[len(s.Records)-n:]
}

// LastRecord returns the most recent iteration record, or nil if the run has
// no history yet.
func (s *RunState) LastRecord() *IterationRecord {
	if len(s.Records) == 0 {
		return nil
	}
	return &s.Records[len(s.Records)-1]
}

// Snapshot is a read-only view of a run for status reporting.
type Snapshot struct {
	RunID        string     `json:"run_id"`
	Task         string     `json:"task"`
	Mode         string     `json:"mode"`
	Phase        string     `json:"phase"`
	Cycle        int        `json:"cycle"`
	Iteration    int        `json:"iteration"`
	CostUSD      float64    `json:"cost_usd"`
	CostLimitUSD float64    `json:"cost_limit_usd"`
	MaxCycles    int        `json:"max_cycles"`
	Running      bool       `json:"running"`
	StopReason   StopReason `json:"stop_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// LastIteration is a copy of the most recent record, if any
	LastIteration *IterationRecord `json:"last_iteration,omitempty"`
}

// Snapshot builds a point-in-time view of the run.
func (s *RunState) Snapshot() *Snapshot {
	snap := &Snapshot{
		RunID:        s.RunID,
		Task:         s.Task,
		Mode:         s.Mode,
		Phase:        s.Phase.String(),
		Cycle:        s.Cycle,
		Iteration:    s.Iteration,
		CostUSD:      s.CostUSD,
		CostLimitUSD: s.CostLimitUSD,
		MaxCycles:    s.MaxCycles,
		Running:      s.Running(),
		StopReason:   s.StopReason,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	if last := s.LastRecord(); last != nil {
		rec := *last
		snap.LastIteration = &rec
	}
	return snap
}
