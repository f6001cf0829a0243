package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/maestro/internal/state"
)

// FileLogger logs engine events to files in the .maestro/logs/ directory.
// It creates timestamped per-run log files and maintains a latest.log
// symlink pointing to the most recent run.
// It is thread-safe and implements the engine.Logger interface.
// It supports log level filtering to control message verbosity.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a new FileLogger that writes to .maestro/logs/.
// It creates the log directory if it doesn't exist, opens a timestamped
// run log file, and creates/updates the latest.log symlink.
// Uses default log level "info".
func NewFileLogger() (*FileLogger, error) {
	logDir := filepath.Join(".maestro", "logs")
	return NewFileLoggerWithDirAndLevel(logDir, "info")
}

// NewFileLoggerWithDir creates a new FileLogger with a custom log directory.
// This is useful for testing or custom deployments.
// Uses default log level "info".
func NewFileLoggerWithDir(logDir string) (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(logDir, "info")
}

// NewFileLoggerWithDirAndLevel creates a new FileLogger with a custom log directory and log level.
// This is useful for testing or custom deployments.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Timestamped filename: run-YYYYMMDD-HHMMSS.log
	timestamp := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", timestamp))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	// Create/update latest.log symlink
	symlinkPath := filepath.Join(logDir, "latest.log")

	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}

	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	normalizedLevel := normalizeLogLevel(logLevel)

	logger := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		logLevel: normalizedLevel,
		mu:       sync.Mutex{},
	}

	// Write header to run log
	logger.writeRunLog("=== Maestro Run Log ===\n")
	logger.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return logger, nil
}

// shouldLog checks if a message at the given level should be logged.
// Returns true if messageLevel >= configured logLevel.
func (fl *FileLogger) shouldLog(messageLevel string) bool {
	configuredLevel := logLevelToInt(fl.logLevel)
	msgLevel := logLevelToInt(messageLevel)
	return msgLevel >= configuredLevel
}

// LogTrace logs a trace-level message (most verbose).
func (fl *FileLogger) LogTrace(message string) {
	fl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) {
	fl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	fl.logWithLevel("ERROR", message)
}

// logWithLevel is a helper that logs a message at the specified level if filtering allows it.
func (fl *FileLogger) logWithLevel(level string, message string) {
	levelLower := strings.ToLower(level)
	if !fl.shouldLog(levelLower) {
		return
	}

	formatted := fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("15:04:05"), level, message)
	fl.writeRunLog(formatted)
}

// LogPhaseStart logs the start of an iteration at INFO level.
func (fl *FileLogger) LogPhaseStart(phaseName string, cycle, iteration int) {
	if !fl.shouldLog("info") {
		return
	}

	message := fmt.Sprintf(
		"[%s] Starting %s (cycle %d, iteration %d)\n",
		time.Now().Format("15:04:05"),
		phaseName,
		cycle,
		iteration,
	)

	fl.writeRunLog(message)
}

// LogIterationResult logs the outcome of a completed iteration at DEBUG level.
func (fl *FileLogger) LogIterationResult(rec state.IterationRecord) error {
	if !fl.shouldLog("debug") {
		return nil
	}

	head := fmt.Sprintf("%s #%d", rec.Phase, rec.Seq)
	metrics := formatIterationMetrics(rec)

	var message string
	if metrics != "" {
		message = fmt.Sprintf("[%s] %s: %s\n", time.Now().Format("15:04:05"), head, metrics)
	} else {
		message = fmt.Sprintf("[%s] %s\n", time.Now().Format("15:04:05"), head)
	}

	fl.writeRunLog(message)
	return nil
}

// LogCycleProgress logs the current cycle progress (no-op for file logger).
// Progress is displayed on console but not written to log files.
func (fl *FileLogger) LogCycleProgress(cycle, completed, total int) {
	// No-op: progress bars are console-only
}

// LogRunSummary logs the final run statistics at INFO level.
func (fl *FileLogger) LogRunSummary(snap *state.Snapshot, duration time.Duration) {
	if snap == nil {
		return
	}

	if !fl.shouldLog("info") {
		return
	}

	timestamp := time.Now().Format("15:04:05")

	message := fmt.Sprintf(
		"\n[%s] === RUN SUMMARY ===\n"+
			"[%s] Run:          %s\n"+
			"[%s] Stop reason:  %s\n"+
			"[%s] Cycles:       %d\n"+
			"[%s] Iterations:   %d\n"+
			"[%s] Cost:         $%.4f of $%.2f\n"+
			"[%s] Total time:   %.1fs\n"+
			"[%s] Completed at: %s\n",
		timestamp,
		timestamp,
		snap.RunID,
		timestamp,
		snap.StopReason,
		timestamp,
		snap.Cycle,
		timestamp,
		snap.Iteration,
		timestamp,
		snap.CostUSD,
		snap.CostLimitUSD,
		timestamp,
		duration.Seconds(),
		timestamp,
		time.Now().Format(time.RFC3339),
	)

	fl.writeRunLog(message)
}

// LogBreakerTrip logs a boxed circuit breaker notice at WARN level.
func (fl *FileLogger) LogBreakerTrip(trip BreakerTripDisplay) {
	if trip == nil {
		return
	}

	if !fl.shouldLog("warn") {
		return
	}

	const boxWidth = 72

	var b strings.Builder
	b.WriteString("┌" + strings.Repeat("─", boxWidth) + "\n")
	b.WriteString("│ ⚡ Circuit Breaker Tripped\n")
	b.WriteString("│ Reason: " + trip.GetReason() + "\n")

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

	fl.writeRunLog(b.String())
}

// Close flushes and closes the run log file.
// It should be called when the logger is no longer needed.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}

	return nil
}

// writeRunLog is a thread-safe helper to write to the run log file.
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		// Flush after each write for real-time logging
		fl.runLog.Sync()
	}
}
