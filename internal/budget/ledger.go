// Package budget tracks accumulated agent spend for a single run and
// enforces the configured cost ceiling. The ceiling blocks the next
// iteration from starting; it never aborts an iteration in flight.
package budget

import (
	"time"

	"github.com/harrison/maestro/internal/phase"
)

// Source identifies where an iteration's cost figure came from.
type Source int

const (
	// SourceNone means neither the provider nor the agent reported cost.
	SourceNone Source = iota

	// SourceProvider means the cost came from the CLI result envelope.
	SourceProvider

	// SourceAgent means the cost came from the agent's COST_DELTA line.
	SourceAgent
)

// String returns a short name for the source.
func (s Source) String() string {
	switch s {
	case SourceProvider:
		return "provider"
	case SourceAgent:
		return "agent"
	default:
		return "none"
	}
}

// ResolveDelta picks the authoritative cost for one iteration. The
// provider-reported figure wins whenever present; the agent's COST_DELTA
// line is the fallback. Zero and negative figures count as absent.
func ResolveDelta(providerUSD, agentUSD float64) (float64, Source) {
	if providerUSD > 0 {
		return providerUSD, SourceProvider
	}
	if agentUSD > 0 {
		return agentUSD, SourceAgent
	}
	return 0, SourceNone
}

// Entry records one iteration's resolved spend.
type Entry struct {
	Timestamp time.Time
	Phase     phase.Phase
	Model     string
	CostUSD   float64
	Source    Source
}

// Ledger accumulates spend against an optional ceiling. A zero or
// negative limit disables the ceiling. The ledger is owned by the
// engine's loop goroutine and is not safe for concurrent use; on resume
// it is rebuilt from the run's iteration history so spend velocity
// spans the whole run.
type Ledger struct {
	limitUSD float64
	totalUSD float64
	entries  []Entry
	models   []string
}

// NewLedger creates an empty ledger with the given ceiling in USD.
func NewLedger(limitUSD float64) *Ledger {
	return &Ledger{limitUSD: limitUSD}
}

// Add records one iteration's spend.
func (l *Ledger) Add(e Entry) {
	l.entries = append(l.entries, e)
	l.totalUSD += e.CostUSD

	if e.Model == "" {
		return
	}
	for _, m := range l.models {
		if m == e.Model {
			return
		}
	}
	l.models = append(l.models, e.Model)
}

// Total returns the accumulated spend in USD.
func (l *Ledger) Total() float64 {
	return l.totalUSD
}

// Limit returns the configured ceiling in USD, zero when unlimited.
func (l *Ledger) Limit() float64 {
	if l.limitUSD <= 0 {
		return 0
	}
	return l.limitUSD
}

// HasLimit reports whether a ceiling is configured.
func (l *Ledger) HasLimit() bool {
	return l.limitUSD > 0
}

// Remaining returns how much budget is left before the ceiling, zero
// when already at or past it or when no ceiling is configured.
func (l *Ledger) Remaining() float64 {
	if !l.HasLimit() {
		return 0
	}
	remaining := l.limitUSD - l.totalUSD
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Exceeded reports whether accumulated spend has reached the ceiling.
// The engine checks this before starting an iteration, so a ceiling
// crossed mid-iteration only stops the run at the next boundary.
func (l *Ledger) Exceeded() bool {
	return l.limitUSD > 0 && l.totalUSD >= l.limitUSD
}

// Entries returns a copy of the recorded entries, oldest first.
func (l *Ledger) Entries() []Entry {
	if len(l.entries) == 0 {
		return nil
	}
	return append([]Entry(nil), l.entries...)
}

// Models returns the distinct model names seen so far, in first-use order.
func (l *Ledger) Models() []string {
	if len(l.models) == 0 {
		return nil
	}
	return append([]string(nil), l.models...)
}

// CostPerHour returns the spend velocity in USD per hour, computed from
// the first and last entry timestamps. Returns zero until two entries
// span a measurable interval.
func (l *Ledger) CostPerHour() float64 {
	if len(l.entries) < 2 {
		return 0
	}

	first := l.entries[0]
	last := l.entries[len(l.entries)-1]

	minutes := last.Timestamp.Sub(first.Timestamp).Minutes()
	if minutes <= 0 {
		return 0
	}

	return (l.totalUSD / minutes) * 60
}
