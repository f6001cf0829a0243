package logger

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/harrison/maestro/internal/state"
)

// colorScheme defines consistent colors for different metric types.
// Green: success/positive metrics
// Red: failure/error metrics
// Yellow: warning/threshold metrics
// Cyan: labels and identifiers
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	value   *color.Color
}

// newColorScheme creates the standard color scheme for metrics.
func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		value:   color.New(color.FgWhite),
	}
}

// formatColorizedMetric formats a single metric with colorized label and value.
// Label is colored cyan, value is colored white.
// Format: "label: value"
func formatColorizedMetric(label string, value interface{}, scheme *colorScheme) string {
	labelColored := scheme.label.Sprint(label)
	valueColored := scheme.value.Sprintf("%v", value)
	return fmt.Sprintf("%s: %s", labelColored, valueColored)
}

// highCostThreshold is the per-iteration spend above which the cost metric
// is rendered as a warning.
const highCostThreshold = 0.10

// formatIterationMetrics formats iteration metrics without color.
// Format: "exit, files: 2, cost: $0.0431, error: <sig>, degraded"
func formatIterationMetrics(rec state.IterationRecord) string {
	var parts []string

	if rec.ExitSignal {
		parts = append(parts, "exit")
	}
	if n := rec.FileCount(); n > 0 {
		parts = append(parts, fmt.Sprintf("files: %d", n))
	}
	if rec.CostDelta > 0 {
		parts = append(parts, fmt.Sprintf("cost: $%.4f", rec.CostDelta))
	}
	if rec.HasError() {
		parts = append(parts, fmt.Sprintf("error: %s", rec.ErrorSignature))
	}
	if rec.Degraded {
		parts = append(parts, "degraded")
	}

	return strings.Join(parts, ", ")
}

// formatColorizedIterationMetrics formats iteration metrics with color coding.
// Returns empty string if the record carries no notable metrics.
// Exit signals and file counts are colored green, cost is yellow above the
// high-cost threshold, errors are red, degraded parses are yellow.
// Colors are automatically disabled when output is not a TTY via fatih/color's built-in detection.
func formatColorizedIterationMetrics(rec state.IterationRecord) string {
	scheme := newColorScheme()
	var parts []string

	if rec.ExitSignal {
		parts = append(parts, scheme.success.Sprint("exit"))
	}

	if n := rec.FileCount(); n > 0 {
		labelColored := scheme.success.Sprint("files")
		valueColored := scheme.value.Sprintf("%d", n)
		parts = append(parts, fmt.Sprintf("%s: %s", labelColored, valueColored))
	}

	if rec.CostDelta > 0 {
		costStr := fmt.Sprintf("$%.4f", rec.CostDelta)
		if rec.CostDelta > highCostThreshold {
			labelColored := scheme.warn.Sprint("cost")
			valueColored := scheme.warn.Sprint(costStr)
			parts = append(parts, fmt.Sprintf("%s: %s", labelColored, valueColored))
		} else {
			parts = append(parts, formatColorizedMetric("cost", costStr, scheme))
		}
	}

	if rec.HasError() {
		labelColored := scheme.fail.Sprint("error")
		valueColored := scheme.fail.Sprint(rec.ErrorSignature)
		parts = append(parts, fmt.Sprintf("%s: %s", labelColored, valueColored))
	}

	if rec.Degraded {
		parts = append(parts, scheme.warn.Sprint("degraded"))
	}

	if len(parts) == 0 {
		return ""
	}

	return strings.Join(parts, ", ")
}
