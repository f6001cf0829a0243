package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/harrison/maestro/internal/engine"
	"github.com/harrison/maestro/internal/state"
	"github.com/spf13/cobra"
)

// NewResumeCommand creates the resume command
func NewResumeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume [run-id]",
		Short: "Resume a persisted run",
		Long: `Resume a run from its persisted state. With no argument the most recent
run is resumed.

A run that stopped at a limit or a circuit breaker is revived: the stop
reason is cleared and the loop re-evaluates its limits with the current
configuration. Raise --max-cycles or --cost-limit to give a limit-stopped
run more room; an unchanged limit stops it again immediately.

The run's mode and phase always come from its persisted state; --mode has
no effect here.

Examples:
  maestro resume                      # most recent run
  maestro resume latest
  maestro resume run-20260214-093000-1a2b3c4d
  maestro resume --max-cycles 20      # revive a run that hit max_cycles`,
		Args: cobra.MaximumNArgs(1),
		RunE: resumeCommand,
	}

	registerRunFlags(cmd)
	return cmd
}

// resumeCommand implements the resume command logic
func resumeCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadMergedConfig(cmd)
	if err != nil {
		return err
	}

	eng, cleanup, err := buildRunEngine(cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ref := state.Latest
	if len(args) > 0 {
		ref = args[0]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = eng.Resume(ctx, ref)
	if _, ok := engine.IsStop(err); err != nil && !ok {
		return err
	}
	return reportStop(cmd, eng, ref, err)
}
