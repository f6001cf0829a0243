package logger

import (
	"fmt"
	"strings"
	"sync"
)

// ProgressBar represents an ASCII progress bar with color support
type ProgressBar struct {
	current     int
	total       int
	width       int
	enableColor bool
	prefix      string
	mu          sync.RWMutex
}

// NewProgressBar creates a new progress bar
func NewProgressBar(total, width int, enableColor bool) *ProgressBar {
	if width < 1 {
		width = 10
	}
	return &ProgressBar{
		current:     0,
		total:       total,
		width:       width,
		enableColor: enableColor,
		prefix:      "",
	}
}

// Update sets the current progress value
func (pb *ProgressBar) Update(current int) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current = current
}

// Increment increments the current progress by 1
func (pb *ProgressBar) Increment() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current++
}

// Current returns the current progress value
func (pb *ProgressBar) Current() int {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.current
}

// Total returns the total progress value
func (pb *ProgressBar) Total() int {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.total
}

// Percentage returns the progress percentage (0-100)
func (pb *ProgressBar) Percentage() int {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.percentage()
}

// percentage computes the clamped progress percentage. Callers must hold the lock.
func (pb *ProgressBar) percentage() int {
	if pb.total == 0 {
		return 0
	}

	perc := (pb.current * 100) / pb.total
	if perc > 100 {
		perc = 100
	}
	if perc < 0 {
		perc = 0
	}
	return perc
}

// SetPrefix sets a custom prefix for the progress bar
func (pb *ProgressBar) SetPrefix(prefix string) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.prefix = prefix
}

// Render generates the ASCII progress bar string
func (pb *ProgressBar) Render() string {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	perc := pb.percentage()

	filled := (perc * pb.width) / 100
	if filled > pb.width {
		filled = pb.width
	}
	if filled < 0 {
		filled = 0
	}

	var bar strings.Builder
	bar.WriteString("[")
	bar.WriteString(strings.Repeat("=", filled))
	bar.WriteString(strings.Repeat(" ", pb.width-filled))
	bar.WriteString("]")

	result := fmt.Sprintf("%s%s %d/%d (%d%%)", pb.prefix, bar.String(), pb.current, pb.total, perc)

	// Raw escapes rather than a color library: the caller decides via
	// enableColor, independent of whether stdout is a TTY.
	if pb.enableColor && perc < 100 {
		result = fmt.Sprintf("\033[36m%s\033[0m", result) // Cyan for in-progress
	} else if pb.enableColor && perc == 100 {
		result = fmt.Sprintf("\033[32m%s\033[0m", result) // Green for complete
	}

	return result
}
