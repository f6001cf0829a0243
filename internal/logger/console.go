// Package logger provides logging implementations for maestro run
// supervision.
//
// The logger package offers structured logging of run progress at the
// iteration and summary levels. Implementations are thread-safe and support
// various output destinations (console, file, etc.).
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/harrison/maestro/internal/state"
	"github.com/mattn/go-isatty"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs run progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps for tracking execution flow.
// It supports log level filtering to control message verbosity.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// logLevel determines the minimum log level for messages to be output.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
// Color output is automatically enabled when writing to os.Stdout or os.Stderr with TTY support.
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	normalizedLevel := normalizeLogLevel(logLevel)
	useColor := isTerminal(writer)

	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizedLevel,
		mutex:       sync.Mutex{},
		colorOutput: useColor,
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
// Returns true for *os.File writers attached to a TTY.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if validLevels[normalized] {
		return normalized
	}

	return "info" // Default level
}

// shouldLog checks if a message at the given level should be logged.
// Returns true if messageLevel >= configured logLevel.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	configuredLevel := logLevelToInt(cl.logLevel)
	msgLevel := logLevelToInt(messageLevel)
	return msgLevel >= configuredLevel
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo // Default to info if unknown
	}
}

// LogTrace logs a trace-level message (most verbose).
// Format: "[HH:MM:SS] [TRACE] <message>"
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
// Format: "[HH:MM:SS] [DEBUG] <message>"
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
// Format: "[HH:MM:SS] [INFO] <message>"
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
// Format: "[HH:MM:SS] [WARN] <message>"
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
// Format: "[HH:MM:SS] [ERROR] <message>"
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

// logWithLevel is a helper that logs a message at the specified level if filtering allows it.
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil {
		return
	}

	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var formatted string

	if cl.colorOutput {
		formatted = cl.formatWithColor(ts, level, message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}

	cl.writer.Write([]byte(formatted))
}

// formatWithColor formats a log message with ANSI color codes.
func (cl *ConsoleLogger) formatWithColor(ts, level, message string) string {
	var coloredLevel string

	switch strings.ToUpper(level) {
	case "TRACE":
		coloredLevel = color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		coloredLevel = color.New(color.FgCyan).Sprint(level)
	case "INFO":
		coloredLevel = color.New(color.FgBlue).Sprint(level)
	case "WARN":
		coloredLevel = color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		coloredLevel = color.New(color.FgRed).Sprint(level)
	default:
		coloredLevel = level
	}

	return fmt.Sprintf("[%s] [%s] %s\n", ts, coloredLevel, message)
}

// LogPhaseStart logs the start of an iteration at INFO level.
// Format: "[HH:MM:SS] Starting PLAN (cycle 2, iteration 7)"
func (cl *ConsoleLogger) LogPhaseStart(phaseName string, cycle, iteration int) {
	if cl.writer == nil {
		return
	}

	if !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()

	var message string
	if cl.colorOutput {
		// Bold/bright for phase headers
		name := color.New(color.Bold).Sprint(phaseName)
		message = fmt.Sprintf("[%s] Starting %s (cycle %d, iteration %d)\n", ts, name, cycle, iteration)
	} else {
		message = fmt.Sprintf("[%s] Starting %s (cycle %d, iteration %d)\n", ts, phaseName, cycle, iteration)
	}

	cl.writer.Write([]byte(message))
}

// LogIterationResult logs the outcome of a completed iteration at DEBUG level.
// Format: "[HH:MM:SS] PLAN #7: files: 2, cost: $0.0431"
// Returns nil for successful logging, or an error if logging failed.
func (cl *ConsoleLogger) LogIterationResult(rec state.IterationRecord) error {
	if cl.writer == nil {
		return nil
	}

	if !cl.shouldLog("debug") {
		return nil
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	head := fmt.Sprintf("%s #%d", rec.Phase, rec.Seq)

	var metrics string
	if cl.colorOutput {
		metrics = formatColorizedIterationMetrics(rec)
	} else {
		metrics = formatIterationMetrics(rec)
	}

	var message string
	if metrics != "" {
		message = fmt.Sprintf("[%s] %s: %s\n", ts, head, metrics)
	} else {
		message = fmt.Sprintf("[%s] %s\n", ts, head)
	}

	_, err := cl.writer.Write([]byte(message))
	return err
}

// LogCycleProgress logs how far the current cycle has advanced at INFO level.
// Format: "[HH:MM:SS] Cycle 2: [====      ] 2/6 (33%)"
func (cl *ConsoleLogger) LogCycleProgress(cycle, completed, total int) {
	if cl.writer == nil {
		return
	}

	if !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()

	pb := NewProgressBar(total, 10, cl.colorOutput)
	pb.Update(completed)

	message := fmt.Sprintf("[%s] Cycle %d: %s\n", ts, cycle, pb.Render())
	cl.writer.Write([]byte(message))
}

// LogRunSummary logs the final run statistics at INFO level.
// Format: "[HH:MM:SS] === Run Summary ===" followed by one line per metric.
func (cl *ConsoleLogger) LogRunSummary(snap *state.Snapshot, duration time.Duration) {
	if cl.writer == nil || snap == nil {
		return
	}

	if !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	durationStr := formatDuration(duration)

	var output string

	if cl.colorOutput {
		header := color.New(color.Bold).Sprint("=== Run Summary ===")
		output = fmt.Sprintf("[%s] %s\n", ts, header)
		output += fmt.Sprintf("[%s] Run: %s\n", ts, snap.RunID)

		reason := string(snap.StopReason)
		switch snap.StopReason {
		case state.StopNoMoreWork:
			reason = color.New(color.FgGreen).Sprint(reason)
		case state.StopRepeatedError, state.StopTestOnlyLoop, state.StopStagnation, state.StopStalled:
			reason = color.New(color.FgRed).Sprint(reason)
		default:
			reason = color.New(color.FgYellow).Sprint(reason)
		}
		output += fmt.Sprintf("[%s] Stop reason: %s\n", ts, reason)

		output += fmt.Sprintf("[%s] Cycles: %d\n", ts, snap.Cycle)
		output += fmt.Sprintf("[%s] Iterations: %d\n", ts, snap.Iteration)
		output += fmt.Sprintf("[%s] Cost: $%.4f of $%.2f\n", ts, snap.CostUSD, snap.CostLimitUSD)
		output += fmt.Sprintf("[%s] Duration: %s\n", ts, durationStr)
	} else {
		output = fmt.Sprintf("[%s] === Run Summary ===\n", ts)
		output += fmt.Sprintf("[%s] Run: %s\n", ts, snap.RunID)
		output += fmt.Sprintf("[%s] Stop reason: %s\n", ts, snap.StopReason)
		output += fmt.Sprintf("[%s] Cycles: %d\n", ts, snap.Cycle)
		output += fmt.Sprintf("[%s] Iterations: %d\n", ts, snap.Iteration)
		output += fmt.Sprintf("[%s] Cost: $%.4f of $%.2f\n", ts, snap.CostUSD, snap.CostLimitUSD)
		output += fmt.Sprintf("[%s] Duration: %s\n", ts, durationStr)
	}

	cl.writer.Write([]byte(output))
}

// BreakerTripDisplay is the subset of a circuit breaker trip needed for
// console display. Defined here so the logger does not depend on the
// breaker package.
type BreakerTripDisplay interface {
	GetReason() string
	GetEvidence() []string
	GetSuggestion() string
}

// LogBreakerTrip logs a boxed circuit breaker notice at WARN level.
// The box shows the trip reason, the evidence window that triggered it,
// and a suggestion for the operator.
func (cl *ConsoleLogger) LogBreakerTrip(trip BreakerTripDisplay) {
	if cl.writer == nil || trip == nil {
		return
	}

	if !cl.shouldLog("warn") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	const boxWidth = 72

	reason := trip.GetReason()
	if cl.colorOutput {
		reason = color.New(color.FgRed).Sprint(reason)
	}

	var b strings.Builder
	b.WriteString("┌" + strings.Repeat("─", boxWidth) + "\n")
	b.WriteString("│ ⚡ Circuit Breaker Tripped\n")
	b.WriteString("│ Reason: " + reason + "\n")

	evidence := trip.GetEvidence()
	if len(evidence) > 0 {
		b.WriteString("│ Evidence:\n")
		for _, ev := range evidence {
			for _, line := range wordWrapText(ev, boxWidth-4) {
				b.WriteString("│   " + line + "\n")
			}
		}
	}

	if suggestion := trip.GetSuggestion(); suggestion != "" {
		b.WriteString("│ 💡 Suggestion:\n")
		for _, line := range wordWrapText(suggestion, boxWidth-4) {
			b.WriteString("│   " + line + "\n")
		}
	}

	b.WriteString("└" + strings.Repeat("─", boxWidth) + "\n")

	cl.writer.Write([]byte(b.String()))
}

// wordWrapText splits text into lines no longer than maxLen, breaking on
// word boundaries. A single word longer than maxLen stays on its own line.
func wordWrapText(text string, maxLen int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{}
	}

	var lines []string
	current := words[0]

	for _, word := range words[1:] {
		if len(current)+1+len(word) <= maxLen {
			current += " " + word
		} else {
			lines = append(lines, current)
			current = word
		}
	}
	lines = append(lines, current)

	return lines
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		remainder := d % time.Hour
		if remainder == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		minutes := remainder / time.Minute
		remainder = remainder % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	case d >= time.Minute:
		minutes := d / time.Minute
		remainder := d % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	}
}

// NoOpLogger is a Logger implementation that discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// LogTrace is a no-op implementation.
func (n *NoOpLogger) LogTrace(message string) {
}

// LogDebug is a no-op implementation.
func (n *NoOpLogger) LogDebug(message string) {
}

// LogInfo is a no-op implementation.
func (n *NoOpLogger) LogInfo(message string) {
}

// LogWarn is a no-op implementation.
func (n *NoOpLogger) LogWarn(message string) {
}

// LogError is a no-op implementation.
func (n *NoOpLogger) LogError(message string) {
}

// LogPhaseStart is a no-op implementation.
func (n *NoOpLogger) LogPhaseStart(phaseName string, cycle, iteration int) {
}

// LogIterationResult is a no-op implementation.
func (n *NoOpLogger) LogIterationResult(rec state.IterationRecord) error {
	return nil
}

// LogCycleProgress is a no-op implementation.
func (n *NoOpLogger) LogCycleProgress(cycle, completed, total int) {
}

// LogRunSummary is a no-op implementation.
func (n *NoOpLogger) LogRunSummary(snap *state.Snapshot, duration time.Duration) {
}

// LogBreakerTrip is a no-op implementation.
func (n *NoOpLogger) LogBreakerTrip(trip BreakerTripDisplay) {
}
