// Package phase defines the ordered work phases of a maestro cycle and the
// transition rules between them.
//
// A cycle is one complete pass through all enabled phases. The standard set
// runs PLAN through COMMIT; comprehensive mode adds DISCOVER before PLAN and
// ROADMAP after COMMIT. Phase values are stable ordinals and are persisted
// in run state, so they must never be renumbered.
package phase

import "fmt"

// Phase identifies one stage of the work cycle.
type Phase int

const (
	// Discover surveys the codebase before planning (comprehensive mode only).
	Discover Phase = iota
	// Plan decides what to work on this cycle.
	Plan
	// Implement writes the code.
	Implement
	// Review inspects the implementation.
	Review
	// Test runs and repairs the test suite.
	Test
	// FinalReview is the last inspection before committing.
	FinalReview
	// Commit lands the cycle's work.
	Commit
	// Roadmap records follow-up work after committing (comprehensive mode only).
	Roadmap
)

// String returns the canonical upper-case phase name.
func (p Phase) String() string {
	switch p {
	case Discover:
		return "DISCOVER"
	case Plan:
		return "PLAN"
	case Implement:
		return "IMPLEMENT"
	case Review:
		return "REVIEW"
	case Test:
		return "TEST"
	case FinalReview:
		return "FINAL_REVIEW"
	case Commit:
		return "COMMIT"
	case Roadmap:
		return "ROADMAP"
	default:
		return fmt.Sprintf("PHASE(%d)", int(p))
	}
}

// ModelKind selects which configured model serves a phase.
type ModelKind int

const (
	// ModelDefault is the general-purpose model.
	ModelDefault ModelKind = iota
	// ModelPlan is the model used for planning-heavy phases.
	ModelPlan
	// ModelReview is the model used for review phases.
	ModelReview
)

// Descriptor describes one phase's place in the cycle.
type Descriptor struct {
	Phase    Phase
	Name     string
	Optional bool      // enabled only in comprehensive mode
	Model    ModelKind // which configured model this phase uses
}

// descriptors is the full ordered phase table. Control flow is driven by
// this table, never by comparing ordinals directly.
var descriptors = []Descriptor{
	{Phase: Discover, Name: "DISCOVER", Optional: true, Model: ModelPlan},
	{Phase: Plan, Name: "PLAN", Model: ModelPlan},
	{Phase: Implement, Name: "IMPLEMENT", Model: ModelDefault},
	{Phase: Review, Name: "REVIEW", Model: ModelReview},
	{Phase: Test, Name: "TEST", Model: ModelDefault},
	{Phase: FinalReview, Name: "FINAL_REVIEW", Model: ModelReview},
	{Phase: Commit, Name: "COMMIT", Model: ModelDefault},
	{Phase: Roadmap, Name: "ROADMAP", Optional: true, Model: ModelPlan},
}

// Mode selects which phases are enabled for a run.
type Mode string

const (
	// ModeStandard enables PLAN through COMMIT.
	ModeStandard Mode = "standard"
	// ModeComprehensive additionally enables DISCOVER and ROADMAP.
	ModeComprehensive Mode = "comprehensive"
)

var validModes = map[Mode]bool{
	ModeStandard:      true,
	ModeComprehensive: true,
}

// IsValid reports whether the mode is a known mode.
func (m Mode) IsValid() bool {
	return validModes[m]
}

// List returns the ordered enabled phases for the given mode.
func List(mode Mode) []Descriptor {
	out := make([]Descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Optional && mode != ModeComprehensive {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Lookup returns the descriptor for p from the full table.
func Lookup(p Phase) (Descriptor, bool) {
	for _, d := range descriptors {
		if d.Phase == p {
			return d, true
		}
	}
	return Descriptor{}, false
}
