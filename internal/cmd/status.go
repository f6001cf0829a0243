package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/harrison/maestro/internal/engine"
	"github.com/harrison/maestro/internal/state"
	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [run-id]",
		Short: "Show a run's current state",
		Long: `Show a snapshot of a run: phase, cycles, iterations, cost, and how it
stopped. With no argument the most recent run is shown.

The snapshot is read from the run's state.json without locking, so it works
while another maestro process drives the run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: statusCommand,
	}

	registerConfigFlag(cmd)
	return cmd
}

// statusCommand implements the status command logic
func statusCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadMergedConfig(cmd)
	if err != nil {
		return err
	}

	eng, err := engine.New(engine.Options{Config: cfg})
	if err != nil {
		return err
	}

	ref := state.Latest
	if len(args) > 0 {
		ref = args[0]
	}

	snap, err := eng.Status(ref)
	if err != nil {
		return err
	}

	renderSnapshot(cmd.OutOrStdout(), snap)
	return nil
}

// renderSnapshot prints one run snapshot as aligned label/value lines.
func renderSnapshot(w io.Writer, snap *state.Snapshot) {
	fmt.Fprintf(w, "Run:        %s\n", snap.RunID)
	fmt.Fprintf(w, "Task:       %s\n", truncate(snap.Task, 96))
	fmt.Fprintf(w, "Mode:       %s\n", snap.Mode)

	if snap.Running {
		fmt.Fprintf(w, "State:      running in %s (cycle %d)\n", snap.Phase, snap.Cycle+1)
	} else {
		fmt.Fprintf(w, "State:      stopped: %s\n", snap.StopReason)
	}

	fmt.Fprintf(w, "Cycles:     %d of %d completed\n", snap.Cycle, snap.MaxCycles)
	fmt.Fprintf(w, "Iterations: %d\n", snap.Iteration)
	if snap.CostLimitUSD > 0 {
		fmt.Fprintf(w, "Cost:       $%.4f of $%.2f\n", snap.CostUSD, snap.CostLimitUSD)
	} else {
		fmt.Fprintf(w, "Cost:       $%.4f\n", snap.CostUSD)
	}
	fmt.Fprintf(w, "Created:    %s\n", snap.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Updated:    %s\n", snap.UpdatedAt.Format(time.RFC3339))

	if last := snap.LastIteration; last != nil {
		line := fmt.Sprintf("Last:       #%d %s, %d file(s), exit=%t",
			last.Seq, last.Phase, last.FileCount(), last.ExitSignal)
		if last.HasError() {
			line += ", error: " + truncate(last.ErrorSignature, 60)
		}
		if last.Degraded {
			line += ", degraded"
		}
		fmt.Fprintln(w, line)
	}
}

// truncate collapses whitespace and shortens s to at most n runes.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
