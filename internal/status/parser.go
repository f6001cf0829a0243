// Package status extracts the structured progress signal from raw agent
// output.
//
// The agent self-reports between marker lines, one KEY: value pair per line:
//
//	---MAESTRO_STATUS---
//	STATUS: IN_PROGRESS
//	EXIT_SIGNAL: false
//	FILES_CHANGED: internal/engine/engine.go, internal/engine/engine_test.go
//	COST_DELTA: 0.042
//	RECOMMENDATION: wire the breaker into the loop next
//	---END_MAESTRO_STATUS---
//
// Parsing is deliberately forgiving: a missing block degrades to a
// zero-progress signal instead of failing, unknown keys are ignored, and
// when several blocks appear the last complete one wins. The only parse
// error is a truly malformed block (a start marker with no end marker
// anywhere after it).
package status

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// StartMarker opens a status block in agent output.
	StartMarker = "---MAESTRO_STATUS---"
	// EndMarker closes a status block.
	EndMarker = "---END_MAESTRO_STATUS---"

	// DegradedNoBlock is the reason recorded when output carries no status block.
	DegradedNoBlock = "no status block found"
)

// Signal is the structured result of one iteration's agent output.
//
// A degraded Signal (Degraded=true) is still a valid signal: it reports no
// exit, no files, and no error, and exists so the iteration can be recorded
// as zero progress rather than dropped.
type Signal struct {
	// ExitSignal reports whether the agent believes the current phase is done.
	// Its meaning (advance vs. stop) depends on which phase emitted it.
	ExitSignal bool

	// FilesChanged is the deduplicated set of paths the agent reports
	// touching this iteration, in first-seen order.
	FilesChanged []string

	// CostDelta is the agent-reported incremental cost in USD. The
	// provider-measured cost takes precedence when both are available.
	CostDelta float64

	// ErrorSignature is the normalized error the agent reported, empty when
	// none.
	ErrorSignature string

	// Status is the agent's advisory state label (IN_PROGRESS, COMPLETE,
	// BLOCKED). It is logged but carries no transition semantics.
	Status string

	// Recommendation is the agent's advisory one-line next step.
	Recommendation string

	// Degraded marks a default signal synthesized because no status block
	// was found. DegradedReason says why.
	Degraded       bool
	DegradedReason string

	// RawBlock preserves the block text for the run's decisions log.
	RawBlock string
}

// HasError reports whether the signal carries an error signature.
func (s *Signal) HasError() bool {
	return s.ErrorSignature != ""
}

// FileCount returns the number of distinct files reported changed.
func (s *Signal) FileCount() int {
	return len(s.FilesChanged)
}

// MalformedBlockError reports a status block that opened but never closed.
type MalformedBlockError struct {
	// Offset is the byte index of the unterminated start marker.
	Offset int
}

// Error implements the error interface.
func (e *MalformedBlockError) Error() string {
	return fmt.Sprintf("malformed status block: start marker at offset %d has no end marker", e.Offset)
}

// Parse extracts the status signal from raw agent output.
//
// Outcomes:
//   - output contains at least one complete block: the LAST complete block
//     is parsed and returned (multiple blocks are a policy case, never an
//     error).
//   - output contains no start marker: a degraded zero-progress signal is
//     returned with DegradedReason set.
//   - output contains start markers but no complete block: a
//     *MalformedBlockError is returned.
//
// Parse never blocks and has no side effects. It does not validate the
// semantic truthfulness of the agent's claims.
func Parse(output string) (*Signal, error) {
	blocks, lastOpen := extractBlocks(output)
	if len(blocks) == 0 {
		if lastOpen >= 0 {
			return nil, &MalformedBlockError{Offset: lastOpen}
		}
		return &Signal{Degraded: true, DegradedReason: DegradedNoBlock}, nil
	}
	return parseBlock(blocks[len(blocks)-1]), nil
}

// extractBlocks returns every complete block body in order of occurrence,
// plus the offset of the last unterminated start marker (-1 if none).
func extractBlocks(output string) (blocks []string, lastOpen int) {
	lastOpen = -1
	rest := output
	base := 0
	for {
		start := strings.Index(rest, StartMarker)
		if start < 0 {
			return blocks, lastOpen
		}
		bodyStart := start + len(StartMarker)
		end := strings.Index(rest[bodyStart:], EndMarker)
		if end < 0 {
			lastOpen = base + start
			return blocks, lastOpen
		}
		blocks = append(blocks, strings.TrimSpace(rest[bodyStart:bodyStart+end]))
		advance := bodyStart + end + len(EndMarker)
		rest = rest[advance:]
		base += advance
	}
}

// parseBlock interprets one block body. Missing or unparsable fields degrade
// to zero values; nothing inside a found block is an error.
func parseBlock(raw string) *Signal {
	fields := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	sig := &Signal{
		ExitSignal:     parseBool(fields["exit_signal"]),
		FilesChanged:   parseFileList(fields["files_changed"]),
		CostDelta:      parseCost(fields["cost_delta"]),
		ErrorSignature: NormalizeErrorSignature(fields["error"]),
		Status:         fields["status"],
		Recommendation: fields["recommendation"],
		RawBlock:       raw,
	}
	return sig
}

// parseBool accepts the agent's loose booleans: "true", "1", "yes".
func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// parseFileList splits a comma-separated path list, dropping empties and
// duplicates while preserving first-seen order.
func parseFileList(v string) []string {
	if v == "" {
		return nil
	}
	seen := make(map[string]bool)
	var files []string
	for _, part := range strings.Split(v, ",") {
		p := strings.TrimSpace(part)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		files = append(files, p)
	}
	return files
}

// parseCost parses a dollar amount, tolerating a leading "$". Invalid or
// negative values degrade to zero.
func parseCost(v string) float64 {
	v = strings.TrimPrefix(strings.TrimSpace(v), "$")
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

// Contract returns the reporting instructions injected into every iteration
// prompt. The format definition lives next to the parser so the two cannot
// drift apart.
func Contract() string {
	return `At the very end of your response, report your progress in exactly this format:

` + StartMarker + `
STATUS: IN_PROGRESS|COMPLETE|BLOCKED
EXIT_SIGNAL: true|false
FILES_CHANGED: comma-separated paths you created or modified (leave empty if none)
COST_DELTA: estimated cost of this step in USD (optional)
ERROR: one-line description if this step failed (omit if no error)
RECOMMENDATION: one-line suggested next step
` + EndMarker + `

Set EXIT_SIGNAL: true only when the current phase has no work left.`
}
