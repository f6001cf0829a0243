package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/harrison/maestro/internal/breaker"
	"github.com/harrison/maestro/internal/checklist"
	"github.com/harrison/maestro/internal/phase"
	"github.com/harrison/maestro/internal/state"
	"github.com/harrison/maestro/internal/status"
)

func TestSystemPromptCarriesStatusContract(t *testing.T) {
	prompt := systemPrompt()

	if !strings.Contains(prompt, status.StartMarker) {
		t.Fatal("system prompt should include the status block start marker")
	}
	if !strings.Contains(prompt, status.EndMarker) {
		t.Fatal("system prompt should include the status block end marker")
	}
	if !strings.Contains(prompt, "EXIT_SIGNAL") {
		t.Fatal("system prompt should explain the exit signal")
	}
}

func TestBuildPromptLaysOutIterationContext(t *testing.T) {
	st := &state.RunState{
		Task:      "rename the widget",
		Phase:     phase.Implement,
		Cycle:     1,
		Iteration: 3,
		Records: []state.IterationRecord{
			{Phase: phase.Plan, Cycle: 1},
			{Phase: phase.Implement, Cycle: 1},
			{Phase: phase.Implement, Cycle: 1},
		},
	}

	prompt := buildPrompt(st, nil)

	for _, want := range []string{
		"TASK:\nrename the widget",
		"LOOP CONTEXT (cycle 2, iteration 4):",
		"- Completed cycles: 1",
		"- Iterations so far: 3",
		"- Iterations already spent in the current phase: 2",
		"CURRENT PHASE: IMPLEMENT",
		"exactly ONE unchecked task",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "Plan checklist") {
		t.Fatal("prompt should omit the checklist line when there is no checklist")
	}
}

func TestBuildPromptIncludesChecklist(t *testing.T) {
	st := &state.RunState{Task: "ship it", Phase: phase.Plan}
	list := &checklist.Checklist{
		Content: []byte("- [x] parse input\n- [ ] write output"),
		Tally:   checklist.Tally{Checked: 1, Unchecked: 1},
	}

	prompt := buildPrompt(st, list)

	if !strings.Contains(prompt, "- Plan checklist: 1/2 tasks checked") {
		t.Fatalf("prompt missing the tally line:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Current plan.md:\n\n- [x] parse input") {
		t.Fatalf("prompt missing the checklist body:\n%s", prompt)
	}
	if !strings.HasSuffix(prompt, "- [ ] write output\n") {
		t.Fatalf("prompt should end the checklist with a newline:\n%q", prompt)
	}
}

func TestModelSelectionFollowsPhase(t *testing.T) {
	machine := phase.NewMachine(phase.ModeComprehensive)
	models := state.ModelSelection{Default: "sonnet", Plan: "opus", Review: "haiku"}

	tests := []struct {
		phase phase.Phase
		want  string
	}{
		{phase.Discover, "opus"},
		{phase.Plan, "opus"},
		{phase.Implement, "sonnet"},
		{phase.Review, "haiku"},
		{phase.Test, "sonnet"},
		{phase.FinalReview, "haiku"},
		{phase.Commit, "sonnet"},
		{phase.Roadmap, "opus"},
	}
	for _, tt := range tests {
		if got := modelFor(machine, tt.phase, models); got != tt.want {
			t.Errorf("modelFor(%s) = %q, want %q", tt.phase, got, tt.want)
		}
	}

	defaultOnly := state.ModelSelection{Default: "sonnet"}
	if got := modelFor(machine, phase.Plan, defaultOnly); got != "sonnet" {
		t.Errorf("modelFor(PLAN) without a plan model = %q, want the default", got)
	}
	if got := modelFor(machine, phase.Review, defaultOnly); got != "sonnet" {
		t.Errorf("modelFor(REVIEW) without a review model = %q, want the default", got)
	}
}

func TestDecisionEntryFormatsRecord(t *testing.T) {
	rec := state.IterationRecord{
		Seq:            3,
		Timestamp:      time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC),
		Phase:          phase.Test,
		Cycle:          0,
		Status:         "IN_PROGRESS",
		FilesChanged:   []string{"a.go", "b.go"},
		CostDelta:      0.0425,
		Recommendation: "rerun the suite",
	}

	entry := decisionEntry(rec)

	for _, want := range []string{
		"## Iteration 3: TEST (cycle 1)",
		"2026-02-14T09:30:00Z",
		"files: 2",
		"cost: $0.0425",
		"exit: false",
		"Status: IN_PROGRESS",
		"Recommendation: rerun the suite",
	} {
		if !strings.Contains(entry, want) {
			t.Fatalf("entry missing %q:\n%s", want, entry)
		}
	}
}

func TestDecisionEntryCarriesErrorAndDegradedLines(t *testing.T) {
	rec := state.IterationRecord{
		Seq:            4,
		Phase:          phase.Implement,
		ErrorSignature: "build failed: undefined symbol",
		Degraded:       true,
		DegradedReason: "no status block found",
	}

	entry := decisionEntry(rec)

	if !strings.Contains(entry, "Error: build failed: undefined symbol") {
		t.Fatalf("entry missing the error line:\n%s", entry)
	}
	if !strings.Contains(entry, "Degraded: no status block found") {
		t.Fatalf("entry missing the degraded line:\n%s", entry)
	}
}

func TestTripEntryRendersEvidenceWindow(t *testing.T) {
	trip := &breaker.Trip{
		Reason:      state.StopRepeatedError,
		Description: "Repeated error detected (same error signature 3 times)",
		Evidence: []string{
			"#4 IMPLEMENT: build failed: undefined symbol",
			"#5 IMPLEMENT: build failed: undefined symbol",
			"#6 IMPLEMENT: build failed: undefined symbol",
		},
		Suggestion: "Fix it by hand, then resume the run.",
	}

	entry := tripEntry(trip)

	for _, want := range []string{
		"## Circuit breaker: repeated_error",
		"Repeated error detected (same error signature 3 times)",
		"- #5 IMPLEMENT: build failed: undefined symbol",
		"Suggestion: Fix it by hand, then resume the run.",
	} {
		if !strings.Contains(entry, want) {
			t.Fatalf("entry missing %q:\n%s", want, entry)
		}
	}
}
