package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// NewStartCommand creates the start command
func NewStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start \"<task prompt>\"",
		Short: "Start a new supervised run",
		Long: `Start a new run: maestro invokes the agent in a phase loop until the task
is complete or a safety limit stops it.

Each run gets a directory under <state-dir>/runs/<run-id>/ holding its
state.json, a decisions.md iteration log, the latest raw agent output, and
per-cycle archives of plan.md.

The run stops with one of: no_more_work, max_cycles_reached,
cost_limit_reached, repeated_error, test_only_loop, stagnation, stalled,
or cancelled. Every stopped run can be continued with "maestro resume".

Examples:
  # Run until the task is done or limits apply
  maestro start "add pagination to the /users endpoint"

  # One focused pass with a tight budget
  maestro start --max-cycles 1 --cost-limit 2.50 "fix the flaky TestRetry"

  # Full pipeline with discovery and roadmap phases
  maestro start --mode comprehensive "migrate the storage layer to sqlite"

  # Watch every decision
  maestro start --verbose "refactor the config loader"`,
		Args: cobra.MinimumNArgs(1),
		RunE: startCommand,
	}

	registerRunFlags(cmd)
	return cmd
}

// startCommand implements the start command logic
func startCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadMergedConfig(cmd)
	if err != nil {
		return err
	}

	eng, cleanup, err := buildRunEngine(cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	task := strings.Join(args, " ")
	runID, err := eng.Start(ctx, task)
	if runID == "" {
		return err
	}
	return reportStop(cmd, eng, runID, err)
}
