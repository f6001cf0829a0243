package logger

import (
	"bytes"
	"strings"
	"testing"
)

// mockBreakerTrip implements BreakerTripDisplay for testing
type mockBreakerTrip struct {
	reason     string
	evidence   []string
	suggestion string
}

func (m *mockBreakerTrip) GetReason() string     { return m.reason }
func (m *mockBreakerTrip) GetEvidence() []string { return m.evidence }
func (m *mockBreakerTrip) GetSuggestion() string { return m.suggestion }

// TestLogBreakerTripRepeatedError verifies repeated error trips are displayed.
func TestLogBreakerTripRepeatedError(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "info")

	trip := &mockBreakerTrip{
		reason: "repeated_error",
		evidence: []string{
			"#4 TEST: undefined: parseConfig",
			"#5 TEST: undefined: parseConfig",
			"#6 TEST: undefined: parseConfig",
		},
		suggestion: "The same failure occurred three times in a row. Inspect the run log and fix the underlying error before resuming.",
	}

	logger.LogBreakerTrip(trip)

	output := buf.String()
	if output == "" {
		t.Fatal("LogBreakerTrip: expected output, got empty string")
	}

	// Verify key elements are present
	if !strings.Contains(output, "Circuit Breaker Tripped") {
		t.Error("LogBreakerTrip: missing header 'Circuit Breaker Tripped'")
	}
	if !strings.Contains(output, "repeated_error") {
		t.Error("LogBreakerTrip: missing reason 'repeated_error'")
	}
	if !strings.Contains(output, "undefined: parseConfig") {
		t.Error("LogBreakerTrip: missing evidence text")
	}
	if !strings.Contains(output, "💡 Suggestion") {
		t.Error("LogBreakerTrip: missing suggestion header")
	}
	if !strings.Contains(output, "Inspect the run log") {
		t.Error("LogBreakerTrip: missing suggestion text")
	}
}

// TestLogBreakerTripTestOnlyLoop verifies test-only loop trips are displayed.
func TestLogBreakerTripTestOnlyLoop(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "info")

	trip := &mockBreakerTrip{
		reason: "test_only_loop",
		evidence: []string{
			"#7 TEST: files: parser_test.go",
			"#8 TEST: files: parser_test.go",
			"#9 TEST: files: parser_test.go",
		},
		suggestion: "Only test files changed for several iterations. The task may need a clearer goal.",
	}

	logger.LogBreakerTrip(trip)

	output := buf.String()
	if output == "" {
		t.Fatal("LogBreakerTrip: expected output, got empty string")
	}

	if !strings.Contains(output, "test_only_loop") {
		t.Error("LogBreakerTrip: missing reason 'test_only_loop'")
	}
	if !strings.Contains(output, "parser_test.go") {
		t.Error("LogBreakerTrip: missing evidence text")
	}
}

// TestLogBreakerTripStagnation verifies stagnation trips are displayed.
func TestLogBreakerTripStagnation(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "info")

	trip := &mockBreakerTrip{
		reason: "stagnation",
		evidence: []string{
			"#3 IMPLEMENT: no files changed, no error",
			"#4 REVIEW: no files changed, no error",
			"#5 TEST: no files changed, no error",
		},
		suggestion: "No progress for several iterations. Review the task description for missing context.",
	}

	logger.LogBreakerTrip(trip)

	output := buf.String()
	if output == "" {
		t.Fatal("LogBreakerTrip: expected output, got empty string")
	}

	if !strings.Contains(output, "stagnation") {
		t.Error("LogBreakerTrip: missing reason 'stagnation'")
	}
	if !strings.Contains(output, "no files changed") {
		t.Error("LogBreakerTrip: missing evidence text")
	}
}

// TestLogBreakerTripNil verifies nil trip is handled gracefully.
func TestLogBreakerTripNil(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "info")

	logger.LogBreakerTrip(nil)

	output := buf.String()
	if output != "" {
		t.Error("LogBreakerTrip: expected no output for nil trip, got:", output)
	}
}

// TestLogBreakerTripNilWriter verifies nil writer is handled gracefully.
func TestLogBreakerTripNilWriter(t *testing.T) {
	logger := NewConsoleLogger(nil, "info")

	trip := &mockBreakerTrip{
		reason:     "repeated_error",
		evidence:   []string{"#1 TEST: boom"},
		suggestion: "test suggestion",
	}

	// Should not panic
	logger.LogBreakerTrip(trip)
}

// TestLogBreakerTripLogLevelFiltering verifies log level filtering works.
func TestLogBreakerTripLogLevelFiltering(t *testing.T) {
	trip := &mockBreakerTrip{
		reason:     "repeated_error",
		evidence:   []string{"#1 TEST: boom"},
		suggestion: "test suggestion",
	}

	// WARN level - should log
	buf1 := &bytes.Buffer{}
	logger1 := NewConsoleLogger(buf1, "warn")
	logger1.LogBreakerTrip(trip)
	if buf1.Len() == 0 {
		t.Error("LogBreakerTrip: expected output at WARN level")
	}

	// ERROR level - should not log
	buf2 := &bytes.Buffer{}
	logger2 := NewConsoleLogger(buf2, "error")
	logger2.LogBreakerTrip(trip)
	if buf2.Len() != 0 {
		t.Error("LogBreakerTrip: expected no output at ERROR level (WARN should be filtered)")
	}
}

// TestLogBreakerTripWithLongSuggestion verifies text wrapping for long suggestions.
func TestLogBreakerTripWithLongSuggestion(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "info")

	longSuggestion := "This is a very long suggestion that should be wrapped across multiple lines to fit within the terminal width. It contains many words to test the word wrapping functionality properly."

	trip := &mockBreakerTrip{
		reason:     "stagnation",
		evidence:   []string{"#1 PLAN: no progress"},
		suggestion: longSuggestion,
	}

	logger.LogBreakerTrip(trip)

	output := buf.String()
	if output == "" {
		t.Fatal("LogBreakerTrip: expected output, got empty string")
	}

	// Verify the suggestion text is present (even if wrapped)
	if !strings.Contains(output, "This is a very long suggestion") {
		t.Error("LogBreakerTrip: missing beginning of suggestion text")
	}
}

// TestLogBreakerTripBoxedFormat verifies box characters are present.
func TestLogBreakerTripBoxedFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "info")

	trip := &mockBreakerTrip{
		reason:     "repeated_error",
		evidence:   []string{"#1 TEST: boom"},
		suggestion: "test suggestion",
	}

	logger.LogBreakerTrip(trip)

	output := buf.String()

	if !strings.Contains(output, "┌") || !strings.Contains(output, "│") || !strings.Contains(output, "└") {
		t.Error("LogBreakerTrip: missing box drawing characters")
	}
}

// TestLogBreakerTripNoEvidence verifies trips without evidence omit the section.
func TestLogBreakerTripNoEvidence(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "info")

	trip := &mockBreakerTrip{
		reason:     "stagnation",
		evidence:   nil,
		suggestion: "test suggestion",
	}

	logger.LogBreakerTrip(trip)

	output := buf.String()
	if strings.Contains(output, "Evidence:") {
		t.Error("LogBreakerTrip: expected no evidence section for empty evidence")
	}
	if !strings.Contains(output, "stagnation") {
		t.Error("LogBreakerTrip: missing reason")
	}
}

// TestLogBreakerTripConcurrency verifies thread-safe logging of trips.
func TestLogBreakerTripConcurrency(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "info")

	trip := &mockBreakerTrip{
		reason:     "repeated_error",
		evidence:   []string{"#1 TEST: boom"},
		suggestion: "test suggestion",
	}

	// Log from multiple goroutines
	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			logger.LogBreakerTrip(trip)
			done <- true
		}()
	}

	// Wait for all goroutines
	for i := 0; i < 10; i++ {
		<-done
	}

	// Should not crash and should have output
	if buf.Len() == 0 {
		t.Error("LogBreakerTrip: expected output from concurrent logging")
	}
}

// TestWordWrapText verifies text wrapping utility function.
func TestWordWrapText(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   []string
	}{
		{
			name:   "short text",
			text:   "short text",
			maxLen: 20,
			want:   []string{"short text"},
		},
		{
			name:   "exact fit",
			text:   "exactly twenty chars",
			maxLen: 20,
			want:   []string{"exactly twenty chars"},
		},
		{
			name:   "wrapped text",
			text:   "This is a longer text that should wrap",
			maxLen: 15,
			want:   []string{"This is a", "longer text", "that should", "wrap"},
		},
		{
			name:   "empty string",
			text:   "",
			maxLen: 20,
			want:   []string{},
		},
		{
			name:   "only whitespace",
			text:   "   ",
			maxLen: 20,
			want:   []string{},
		},
		{
			name:   "single long word",
			text:   "verylongword",
			maxLen: 5,
			want:   []string{"verylongword"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wordWrapText(tt.text, tt.maxLen)
			if len(got) != len(tt.want) {
				t.Errorf("wordWrapText() returned %d lines, want %d", len(got), len(tt.want))
			}
			for i, line := range got {
				if i < len(tt.want) && line != tt.want[i] {
					t.Errorf("wordWrapText() line %d = %q, want %q", i, line, tt.want[i])
				}
			}
		})
	}
}
