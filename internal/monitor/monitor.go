// Package monitor supervises long-running agent invocations by watching
// the working tree for file activity. An invocation that produces no
// activity for the stall timeout is cancelled through its context, and
// periodic heartbeats are logged while it runs.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/harrison/maestro/internal/fileutil"
)

// Default supervision intervals.
const (
	// DefaultPollInterval is how often the working tree is probed for
	// file activity.
	DefaultPollInterval = 2 * time.Second

	// DefaultStallTimeout is the duration of no file activity before an
	// invocation is treated as stalled and killed.
	DefaultStallTimeout = 15 * time.Minute

	// DefaultHeartbeatInterval is how often a heartbeat line is logged
	// while an invocation runs.
	DefaultHeartbeatInterval = 60 * time.Second
)

// Outcome classifies how a supervised invocation ended.
type Outcome int

const (
	// OutcomeCompleted means the invocation returned on its own.
	OutcomeCompleted Outcome = iota

	// OutcomeStalled means the monitor cancelled the invocation after
	// the stall timeout elapsed with no file activity.
	OutcomeStalled

	// OutcomeCancelled means the caller's context was cancelled while
	// the invocation ran.
	OutcomeCancelled
)

// String returns a human-readable name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeStalled:
		return "stalled"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Logger is the logging surface the monitor needs. Both ConsoleLogger
// and FileLogger satisfy it.
type Logger interface {
	LogDebug(message string)
	LogWarn(message string)
}

// nopLogger discards everything. Used when no logger is configured.
type nopLogger struct{}

func (nopLogger) LogDebug(message string) {}
func (nopLogger) LogWarn(message string)  {}

// Config configures a Monitor.
type Config struct {
	// WorkDir is the directory tree probed for file activity. Required.
	WorkDir string

	// PollInterval is how often the tree is probed.
	PollInterval time.Duration

	// StallTimeout is the duration of no activity before the invocation
	// is cancelled.
	StallTimeout time.Duration

	// HeartbeatInterval is how often a heartbeat line is logged.
	HeartbeatInterval time.Duration

	// ExcludeDirs are directory names skipped during probing. Defaults
	// to the standard build-artifact excludes.
	ExcludeDirs []string

	// Logger receives heartbeat and stall messages. Optional.
	Logger Logger
}

// Monitor watches a working tree while agent invocations run. It reads
// filesystem metadata only and never modifies run state.
type Monitor struct {
	workDir           string
	pollInterval      time.Duration
	stallTimeout      time.Duration
	heartbeatInterval time.Duration
	excludeDirs       []string
	logger            Logger
}

// New creates a Monitor, applying defaults for any unset intervals.
func New(cfg Config) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = DefaultStallTimeout
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.ExcludeDirs == nil {
		cfg.ExcludeDirs = fileutil.DefaultExcludes()
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}

	return &Monitor{
		workDir:           cfg.WorkDir,
		pollInterval:      cfg.PollInterval,
		stallTimeout:      cfg.StallTimeout,
		heartbeatInterval: cfg.HeartbeatInterval,
		excludeDirs:       cfg.ExcludeDirs,
		logger:            cfg.Logger,
	}
}

// StallTimeout returns the configured stall timeout.
func (m *Monitor) StallTimeout() time.Duration {
	return m.stallTimeout
}

// Supervise runs invoke under liveness supervision. The invocation
// receives a child context that is cancelled if the working tree shows
// no file activity for the stall timeout; invoke must return promptly
// once its context is cancelled.
//
// The caller's context cancelling mid-flight yields OutcomeCancelled
// with the context error. A stall kill yields OutcomeStalled with a nil
// error (the invocation's abort error is expected and discarded). In
// all other cases the outcome is OutcomeCompleted and the error is
// whatever invoke returned.
func (m *Monitor) Supervise(ctx context.Context, invoke func(context.Context) error) (Outcome, error) {
	inner, cancel := context.WithCancel(ctx)
	defer cancel()

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	stalledCh := make(chan struct{})

	go m.watch(cancel, stopCh, doneCh, stalledCh)

	err := invoke(inner)

	close(stopCh)
	<-doneCh

	if ctx.Err() != nil {
		return OutcomeCancelled, ctx.Err()
	}
	select {
	case <-stalledCh:
		return OutcomeStalled, nil
	default:
	}
	return OutcomeCompleted, err
}

// watch is the supervision loop. It probes the working tree on every
// tick, closes stalledCh and cancels the invocation when the stall
// timeout elapses, and logs heartbeats while waiting.
func (m *Monitor) watch(cancel context.CancelFunc, stopCh, doneCh, stalledCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	start := time.Now()
	lastActivity := start
	lastHeartbeat := start

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			now := time.Now()

			// Probe errors are tolerated: a transiently unreadable tree
			// keeps the previous activity time.
			opts := fileutil.ProbeOptions{ExcludeDirs: m.excludeDirs}
			if mtime, err := fileutil.LatestModTime(m.workDir, opts); err == nil && mtime.After(lastActivity) {
				lastActivity = mtime
			}

			idle := now.Sub(lastActivity)
			if idle >= m.stallTimeout {
				m.logger.LogWarn(fmt.Sprintf("No file activity for %s, treating the agent as stalled", idle.Round(time.Second)))
				close(stalledCh)
				cancel()
				return
			}

			if now.Sub(lastHeartbeat) >= m.heartbeatInterval {
				m.logger.LogDebug(fmt.Sprintf("Heartbeat: running for %s, last file activity %s ago", now.Sub(start).Round(time.Second), idle.Round(time.Second)))
				lastHeartbeat = now
			}
		}
	}
}
