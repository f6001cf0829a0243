package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/harrison/maestro/internal/phase"
	"github.com/harrison/maestro/internal/state"
)

func TestConsoleLogger_LogIterationResult_BasicDisplay(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "debug")

	rec := state.IterationRecord{
		Seq:          7,
		Phase:        phase.Implement,
		FilesChanged: []string{"main.go", "main_test.go"},
		CostDelta:    0.0431,
	}

	if err := logger.LogIterationResult(rec); err != nil {
		t.Fatalf("LogIterationResult() error = %v", err)
	}

	output := buf.String()

	if !strings.Contains(output, "IMPLEMENT #7") {
		t.Errorf("expected phase and sequence header, got %q", output)
	}
	if !strings.Contains(output, "files: 2") {
		t.Errorf("expected file count, got %q", output)
	}
	if !strings.Contains(output, "cost: $0.0431") {
		t.Errorf("expected cost metric, got %q", output)
	}
	if !strings.HasPrefix(output, "[") {
		t.Error("expected output to start with timestamp [")
	}
}

func TestConsoleLogger_LogIterationResult_ExitSignal(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "debug")

	rec := state.IterationRecord{
		Seq:        3,
		Phase:      phase.FinalReview,
		ExitSignal: true,
	}

	if err := logger.LogIterationResult(rec); err != nil {
		t.Fatalf("LogIterationResult() error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "FINAL_REVIEW #3") {
		t.Errorf("expected header, got %q", output)
	}
	if !strings.Contains(output, "exit") {
		t.Errorf("expected exit marker, got %q", output)
	}
}

func TestConsoleLogger_LogIterationResult_ErrorSignature(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "debug")

	rec := state.IterationRecord{
		Seq:            4,
		Phase:          phase.Test,
		ErrorSignature: "TestFoo assertion failed at foo_test.go:N",
	}

	if err := logger.LogIterationResult(rec); err != nil {
		t.Fatalf("LogIterationResult() error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "error: TestFoo assertion failed") {
		t.Errorf("expected error signature in output, got %q", output)
	}
}

func TestConsoleLogger_LogIterationResult_Degraded(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "debug")

	rec := state.IterationRecord{
		Seq:            5,
		Phase:          phase.Review,
		Degraded:       true,
		DegradedReason: "missing status block",
	}

	if err := logger.LogIterationResult(rec); err != nil {
		t.Fatalf("LogIterationResult() error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "degraded") {
		t.Errorf("expected degraded marker, got %q", output)
	}
}

func TestConsoleLogger_LogIterationResult_NoMetrics(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "debug")

	// A record with nothing notable still logs the phase header.
	rec := state.IterationRecord{
		Seq:   1,
		Phase: phase.Plan,
	}

	if err := logger.LogIterationResult(rec); err != nil {
		t.Fatalf("LogIterationResult() error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "PLAN #1") {
		t.Errorf("expected bare header, got %q", output)
	}
	if strings.Contains(output, "PLAN #1:") {
		t.Errorf("expected no metrics separator for empty record, got %q", output)
	}
}

func TestConsoleLogger_LogIterationResult_FilteredAtInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "info")

	rec := state.IterationRecord{
		Seq:       2,
		Phase:     phase.Implement,
		CostDelta: 0.05,
	}

	if err := logger.LogIterationResult(rec); err != nil {
		t.Fatalf("LogIterationResult() error = %v", err)
	}

	if buf.Len() != 0 {
		t.Errorf("expected iteration detail to be filtered at info level, got %q", buf.String())
	}
}

func TestConsoleLogger_LogIterationResult_MultipleIterations(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "debug")

	records := []state.IterationRecord{
		{Seq: 1, Phase: phase.Plan, CostDelta: 0.01},
		{Seq: 2, Phase: phase.Implement, FilesChanged: []string{"a.go"}, CostDelta: 0.08},
		{Seq: 3, Phase: phase.Test, ErrorSignature: "build failed: pkg/a.go:N", CostDelta: 0.02},
		{Seq: 4, Phase: phase.Implement, FilesChanged: []string{"a.go"}, CostDelta: 0.03},
	}

	for _, rec := range records {
		if err := logger.LogIterationResult(rec); err != nil {
			t.Fatalf("LogIterationResult() error = %v", err)
		}
	}

	output := buf.String()
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) != len(records) {
		t.Errorf("expected %d lines, got %d: %q", len(records), len(lines), output)
	}

	for _, expect := range []string{"PLAN #1", "IMPLEMENT #2", "TEST #3", "IMPLEMENT #4"} {
		if !strings.Contains(output, expect) {
			t.Errorf("expected output to contain %q", expect)
		}
	}
}

func TestConsoleLogger_LogIterationResult_CostPrecision(t *testing.T) {
	tests := []struct {
		name     string
		cost     float64
		expected string
	}{
		{name: "sub-cent", cost: 0.0007, expected: "cost: $0.0007"},
		{name: "cents", cost: 0.0431, expected: "cost: $0.0431"},
		{name: "dollars", cost: 1.5, expected: "cost: $1.5000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := NewConsoleLogger(buf, "debug")

			rec := state.IterationRecord{
				Seq:       1,
				Phase:     phase.Implement,
				CostDelta: tt.cost,
			}

			if err := logger.LogIterationResult(rec); err != nil {
				t.Fatalf("LogIterationResult() error = %v", err)
			}

			if !strings.Contains(buf.String(), tt.expected) {
				t.Errorf("expected %q in output, got %q", tt.expected, buf.String())
			}
		})
	}
}

func TestConsoleLogger_LogIterationResult_DurationIgnoredInLine(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "debug")

	// Wall-clock duration is persisted but not rendered on the metric line.
	rec := state.IterationRecord{
		Seq:      1,
		Phase:    phase.Plan,
		Duration: 42 * time.Second,
	}

	if err := logger.LogIterationResult(rec); err != nil {
		t.Fatalf("LogIterationResult() error = %v", err)
	}

	output := buf.String()
	if strings.Contains(output, "42s") {
		t.Errorf("expected duration to be omitted from metric line, got %q", output)
	}
}
