// Package breaker detects non-progress patterns in a run's recent iteration
// history. A trip is a safety stop, not a code error: the run halts with the
// rule name as its stop reason and the offending window attached for human
// inspection, and an operator can resume it later.
package breaker

import (
	"fmt"

	"github.com/harrison/maestro/internal/phase"
	"github.com/harrison/maestro/internal/state"
)

// DefaultWindow is how many trailing records each rule inspects.
const DefaultWindow = 3

// Trip describes one fired rule. Reason is the stop reason the engine
// persists; the remaining fields feed the operator-facing display.
type Trip struct {
	Reason      state.StopReason
	Description string
	Evidence    []string
	Suggestion  string

	// Window holds the records the rule matched on, oldest first.
	Window []state.IterationRecord
}

// GetReason returns the human-readable trip description.
func (t *Trip) GetReason() string {
	return t.Description
}

// GetEvidence returns one formatted line per window record.
func (t *Trip) GetEvidence() []string {
	return t.Evidence
}

// GetSuggestion returns the suggested operator action.
func (t *Trip) GetSuggestion() string {
	return t.Suggestion
}

// Breaker evaluates the rolling window after each appended record.
type Breaker struct {
	window int
}

// New creates a Breaker inspecting the given number of trailing records.
// Sizes below 1 fall back to DefaultWindow.
func New(window int) *Breaker {
	if window < 1 {
		window = DefaultWindow
	}
	return &Breaker{window: window}
}

// Window returns the configured window size.
func (b *Breaker) Window() int {
	return b.window
}

// Check inspects the most recent records and returns a Trip when a rule
// matches, nil otherwise. At most one rule fires, highest priority first:
// repeated_error, then test_only_loop, then stagnation. The breaker never
// fires while the history holds fewer than the window size.
func (b *Breaker) Check(st *state.RunState) *Trip {
	window := st.Tail(b.window)
	if len(window) < b.window {
		return nil
	}

	if trip := b.checkRepeatedError(window); trip != nil {
		return trip
	}
	if trip := b.checkTestOnlyLoop(window); trip != nil {
		return trip
	}
	return b.checkStagnation(window)
}

// checkRepeatedError fires when every record in the window carries the same
// non-empty normalized error signature.
func (b *Breaker) checkRepeatedError(window []state.IterationRecord) *Trip {
	sig := window[0].ErrorSignature
	if sig == "" {
		return nil
	}
	for _, rec := range window[1:] {
		if rec.ErrorSignature != sig {
			return nil
		}
	}

	return &Trip{
		Reason:      state.StopRepeatedError,
		Description: fmt.Sprintf("Repeated error detected (same error signature %d times)", len(window)),
		Evidence:    describeWindow(window),
		Suggestion:  fmt.Sprintf("The same error repeated across %d iterations: %s. Fix it by hand, then resume the run.", len(window), sig),
		Window:      window,
	}
}

// checkTestOnlyLoop fires when every record in the window ran in the TEST
// phase, changed no files, and reported no error.
func (b *Breaker) checkTestOnlyLoop(window []state.IterationRecord) *Trip {
	for _, rec := range window {
		if rec.Phase != phase.Test || rec.FileCount() > 0 || rec.HasError() {
			return nil
		}
	}

	return &Trip{
		Reason:      state.StopTestOnlyLoop,
		Description: fmt.Sprintf("Test-only loop detected (%d TEST iterations with no file changes)", len(window)),
		Evidence:    describeWindow(window),
		Suggestion:  fmt.Sprintf("%d TEST iterations ran without changing files or reporting errors. Review the plan checklist before resuming.", len(window)),
		Window:      window,
	}
}

// checkStagnation fires when every record in the window sits in the same
// phase with no file changes. Degraded records count as zero-files records,
// so a run whose agent stops emitting status blocks lands here.
func (b *Breaker) checkStagnation(window []state.IterationRecord) *Trip {
	p := window[0].Phase
	for _, rec := range window {
		if rec.Phase != p || rec.FileCount() > 0 {
			return nil
		}
	}

	return &Trip{
		Reason:      state.StopStagnation,
		Description: fmt.Sprintf("No progress detected (%d %s iterations with no file changes)", len(window), p),
		Evidence:    describeWindow(window),
		Suggestion:  fmt.Sprintf("Nothing changed across %d consecutive %s iterations. Review the run's decisions log before resuming.", len(window), p),
		Window:      window,
	}
}

func describeWindow(window []state.IterationRecord) []string {
	lines := make([]string, 0, len(window))
	for _, rec := range window {
		lines = append(lines, describeRecord(rec))
	}
	return lines
}

func describeRecord(rec state.IterationRecord) string {
	switch {
	case rec.HasError():
		return fmt.Sprintf("#%d %s: %s", rec.Seq, rec.Phase, rec.ErrorSignature)
	case rec.Degraded:
		return fmt.Sprintf("#%d %s: no files changed (degraded: %s)", rec.Seq, rec.Phase, rec.DegradedReason)
	default:
		return fmt.Sprintf("#%d %s: %d files changed", rec.Seq, rec.Phase, rec.FileCount())
	}
}
