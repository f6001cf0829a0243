package engine

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/harrison/maestro/internal/breaker"
	"github.com/harrison/maestro/internal/checklist"
	"github.com/harrison/maestro/internal/phase"
	"github.com/harrison/maestro/internal/state"
	"github.com/harrison/maestro/internal/status"
)

// systemPrompt frames every invocation. The status reporting contract lives
// in the status package so the prompt and the parser cannot drift apart.
func systemPrompt() string {
	return `You are one phase of a supervised engineering loop. Each invocation you
complete one focused unit of work for the current phase, then stop.

Rules:
- Stay inside the current phase's responsibility.
- Keep changes minimal and scoped to the task.
- Execute and verify; do not just describe.
- Maintain plan.md as a markdown task checklist and keep finished items marked [x].

` + status.Contract()
}

// buildPrompt assembles the user prompt for one iteration: the task, where
// the loop stands, the phase brief, and the current checklist as advisory
// context. The engine never acts on the checklist itself; it is included
// only so the agent sees its own plan.
func buildPrompt(st *state.RunState, list *checklist.Checklist) string {
	var b strings.Builder

	b.WriteString("TASK:\n")
	b.WriteString(st.Task)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "LOOP CONTEXT (cycle %d, iteration %d):\n", st.Cycle+1, st.Iteration+1)
	fmt.Fprintf(&b, "- Completed cycles: %d\n", st.Cycle)
	fmt.Fprintf(&b, "- Iterations so far: %d\n", st.Iteration)
	fmt.Fprintf(&b, "- Iterations already spent in the current phase: %d\n", st.PhaseIterations())
	if list != nil {
		fmt.Fprintf(&b, "- Plan checklist: %s\n", list.Tally)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "CURRENT PHASE: %s\n\n", st.Phase)
	b.WriteString(phaseInstructions(st.Phase))
	b.WriteString("\n")

	if list != nil && len(list.Content) > 0 {
		b.WriteString("\nCurrent plan.md:\n\n")
		b.Write(list.Content)
		if !bytes.HasSuffix(list.Content, []byte("\n")) {
			b.WriteString("\n")
		}
	}

	return b.String()
}

// phaseInstructions returns the working brief for one phase. The briefs stay
// short; the exit condition is the part the loop depends on.
func phaseInstructions(p phase.Phase) string {
	switch p {
	case phase.Discover:
		return `DISCOVER: research the codebase and report factual findings: structure,
entry points, conventions, and code related to the task. Document what
exists; change nothing and recommend nothing.
Set EXIT_SIGNAL: true when the findings are complete, or immediately if
there is nothing left to discover.`
	case phase.Plan:
		return `PLAN: maintain plan.md, a markdown checklist of small verifiable tasks for
the current task. Break remaining work into "- [ ]" items one sitting can
finish.
Set EXIT_SIGNAL: true when the plan is ready for implementation. If no work
remains to plan at all, set it true without adding items.`
	case phase.Implement:
		return `IMPLEMENT: complete exactly ONE unchecked task from plan.md, then stop.
Make the change production-ready and mark the item "- [x]".
Set EXIT_SIGNAL: true when every implementation task in plan.md is checked.`
	case phase.Review:
		return `REVIEW: review the changes made this cycle. Fix small problems directly;
add new plan.md items for anything larger.
Set EXIT_SIGNAL: true when the changes pass review.`
	case phase.Test:
		return `TEST: run the project's test suite. Fix one failure at a time and re-run.
Set EXIT_SIGNAL: true only when the tests pass.`
	case phase.FinalReview:
		return `FINAL REVIEW: take a last holistic look at the cycle's work: completeness
against plan.md, stray debug output, missed edge cases.
Set EXIT_SIGNAL: true when the work is ready to commit.`
	case phase.Commit:
		return `COMMIT: stage and commit the cycle's work with a clear message. Stage only
source, tests, and config; never commit scratch files.
Set EXIT_SIGNAL: true once the commit exists.`
	case phase.Roadmap:
		return `ROADMAP: update the long-horizon notes: what this cycle delivered and what
the next cycle should target.
Set EXIT_SIGNAL: true when the notes are current.`
	default:
		return fmt.Sprintf("Work the %s phase, then report.", p)
	}
}

// modelFor maps a phase to the model the run was started with.
func modelFor(m *phase.Machine, p phase.Phase, models state.ModelSelection) string {
	switch m.Model(p) {
	case phase.ModelPlan:
		return models.PlanModel()
	case phase.ModelReview:
		return models.ReviewModel()
	default:
		return models.Default
	}
}

// decisionEntry renders one completed iteration as a decisions.md block.
func decisionEntry(rec state.IterationRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Iteration %d: %s (cycle %d)\n", rec.Seq, rec.Phase, rec.Cycle+1)
	fmt.Fprintf(&b, "%s | files: %d | cost: $%.4f | exit: %t\n",
		rec.Timestamp.Format(time.RFC3339), rec.FileCount(), rec.CostDelta, rec.ExitSignal)

	if rec.Status != "" {
		fmt.Fprintf(&b, "Status: %s\n", rec.Status)
	}
	if rec.HasError() {
		fmt.Fprintf(&b, "Error: %s\n", rec.ErrorSignature)
	}
	if rec.Degraded {
		fmt.Fprintf(&b, "Degraded: %s\n", rec.DegradedReason)
	}
	if rec.Recommendation != "" {
		fmt.Fprintf(&b, "Recommendation: %s\n", rec.Recommendation)
	}

	return b.String()
}

// tripEntry renders a breaker trip and its evidence window as a decisions.md
// block.
func tripEntry(trip *breaker.Trip) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Circuit breaker: %s\n", trip.Reason)
	fmt.Fprintf(&b, "%s\n", trip.Description)
	for _, line := range trip.Evidence {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	if trip.Suggestion != "" {
		fmt.Fprintf(&b, "Suggestion: %s\n", trip.Suggestion)
	}

	return b.String()
}
