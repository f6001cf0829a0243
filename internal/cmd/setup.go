package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harrison/maestro/internal/claude"
	"github.com/harrison/maestro/internal/config"
	"github.com/harrison/maestro/internal/engine"
	"github.com/harrison/maestro/internal/history"
	"github.com/harrison/maestro/internal/logger"
	"github.com/harrison/maestro/internal/state"
	"github.com/spf13/cobra"
)

// registerRunFlags adds the flags shared by start and resume. Every flag
// overrides the corresponding .maestro/config.yaml value when set.
func registerRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Path to config file (default: .maestro/config.yaml)")
	cmd.Flags().String("mode", "", "Phase mode: standard or comprehensive")
	cmd.Flags().Int("max-cycles", 0, "Maximum full cycles before stopping")
	cmd.Flags().Float64("cost-limit", 0, "Cost ceiling in USD")
	cmd.Flags().String("stall-timeout", "", "No-activity window before a stall (e.g. 10m, 1h)")
	cmd.Flags().String("work-dir", "", "Working tree the agent operates on")
	cmd.Flags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.Flags().String("model", "", "Default model for all phases")
	cmd.Flags().Bool("verbose", false, "Shorthand for --log-level debug")
}

// registerConfigFlag adds just the config path flag, for the read-only
// commands that never override individual settings.
func registerConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Path to config file (default: .maestro/config.yaml)")
}

// loadMergedConfig loads configuration from the --config path or the default
// location and applies flag overrides, flags winning over the file.
func loadMergedConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	var modePtr *string
	if cmd.Flags().Changed("mode") {
		v, _ := cmd.Flags().GetString("mode")
		modePtr = &v
	}

	var maxCyclesPtr *int
	if cmd.Flags().Changed("max-cycles") {
		v, _ := cmd.Flags().GetInt("max-cycles")
		maxCyclesPtr = &v
	}

	var costLimitPtr *float64
	if cmd.Flags().Changed("cost-limit") {
		v, _ := cmd.Flags().GetFloat64("cost-limit")
		costLimitPtr = &v
	}

	var stallTimeoutPtr *time.Duration
	if cmd.Flags().Changed("stall-timeout") {
		raw, _ := cmd.Flags().GetString("stall-timeout")
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid stall-timeout %q: %w", raw, err)
		}
		stallTimeoutPtr = &d
	}

	var workDirPtr *string
	if cmd.Flags().Changed("work-dir") {
		v, _ := cmd.Flags().GetString("work-dir")
		workDirPtr = &v
	}

	var logLevelPtr *string
	if cmd.Flags().Changed("log-level") {
		v, _ := cmd.Flags().GetString("log-level")
		logLevelPtr = &v
	}

	var modelPtr *string
	if cmd.Flags().Changed("model") {
		v, _ := cmd.Flags().GetString("model")
		modelPtr = &v
	}

	cfg.MergeWithFlags(modePtr, maxCyclesPtr, costLimitPtr, stallTimeoutPtr, workDirPtr, logLevelPtr, modelPtr)

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// buildRunEngine wires everything a live run needs: console and file
// logging, the Claude invoker, the history index, and the engine itself.
// The returned cleanup closes the file logger and the index.
func buildRunEngine(cmd *cobra.Command, cfg *config.Config) (*engine.Engine, func(), error) {
	consoleLog := logger.NewConsoleLogger(os.Stdout, cfg.LogLevel)

	fileLog, err := logger.NewFileLoggerWithDirAndLevel(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create file logger: %w", err)
	}

	multiLog := &multiLogger{loggers: []engine.Logger{consoleLog, fileLog}}

	// The history index is convenience tooling; a run proceeds without it.
	idx, err := history.Open(filepath.Join(cfg.StateDir, history.DefaultFileName))
	if err != nil {
		fmt.Fprintf(cmd.OutOrStderr(), "Warning: history index unavailable: %v\n", err)
		idx = nil
	}

	invoker := claude.NewInvoker(cfg.WorkDir)
	invoker.ClaudePath = cfg.ClaudePath

	eng, err := engine.New(engine.Options{
		Config:   cfg,
		Provider: invoker,
		Index:    idx,
		Logger:   multiLog,
	})
	if err != nil {
		fileLog.Close()
		idx.Close()
		return nil, nil, err
	}

	cleanup := func() {
		fileLog.Close()
		idx.Close()
	}
	return eng, cleanup, nil
}

// reportStop prints the final state of a finished run and passes the
// engine's verdict through: failure stops are the command's error, boundary
// stops are a clean exit.
func reportStop(cmd *cobra.Command, eng *engine.Engine, ref string, runErr error) error {
	if _, ok := engine.IsStop(runErr); runErr != nil && !ok {
		return runErr
	}

	snap, err := eng.Status(ref)
	if err != nil {
		if runErr != nil {
			return runErr
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nRun %s stopped: %s (%d iterations, %d cycles, $%.4f)\n",
		snap.RunID, snap.StopReason, snap.Iteration, snap.Cycle, snap.CostUSD)
	fmt.Fprintf(cmd.OutOrStdout(), "Run directory: %s\n", eng.Store().RunDir(snap.RunID))
	return runErr
}

// multiLogger implements engine.Logger by delegating to multiple loggers
type multiLogger struct {
	loggers []engine.Logger
}

func (ml *multiLogger) LogTrace(message string) {
	for _, l := range ml.loggers {
		l.LogTrace(message)
	}
}

func (ml *multiLogger) LogDebug(message string) {
	for _, l := range ml.loggers {
		l.LogDebug(message)
	}
}

func (ml *multiLogger) LogInfo(message string) {
	for _, l := range ml.loggers {
		l.LogInfo(message)
	}
}

func (ml *multiLogger) LogWarn(message string) {
	for _, l := range ml.loggers {
		l.LogWarn(message)
	}
}

func (ml *multiLogger) LogError(message string) {
	for _, l := range ml.loggers {
		l.LogError(message)
	}
}

func (ml *multiLogger) LogPhaseStart(phaseName string, cycle, iteration int) {
	for _, l := range ml.loggers {
		l.LogPhaseStart(phaseName, cycle, iteration)
	}
}

// LogIterationResult forwards to all loggers and reports the last failure.
func (ml *multiLogger) LogIterationResult(rec state.IterationRecord) error {
	var lastErr error
	for _, l := range ml.loggers {
		if err := l.LogIterationResult(rec); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (ml *multiLogger) LogCycleProgress(cycle, completed, total int) {
	for _, l := range ml.loggers {
		l.LogCycleProgress(cycle, completed, total)
	}
}

func (ml *multiLogger) LogRunSummary(snap *state.Snapshot, duration time.Duration) {
	for _, l := range ml.loggers {
		l.LogRunSummary(snap, duration)
	}
}

func (ml *multiLogger) LogBreakerTrip(trip logger.BreakerTripDisplay) {
	for _, l := range ml.loggers {
		l.LogBreakerTrip(trip)
	}
}
