package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/harrison/maestro/internal/history"
	"github.com/spf13/cobra"
)

// NewRunsCommand creates the runs command
func NewRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Long: `List runs from the history index, newest first.

The index is a convenience view; the authoritative record of each run is its
state.json. A run missing from the index can still be inspected with
"maestro status <run-id>" and resumed by ID (resuming also reindexes it).`,
		Args: cobra.NoArgs,
		RunE: runsCommand,
	}

	registerConfigFlag(cmd)
	cmd.Flags().Int("limit", 0, "Show at most this many runs (0 = all)")
	return cmd
}

// runsCommand implements the runs command logic
func runsCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadMergedConfig(cmd)
	if err != nil {
		return err
	}

	idx, err := history.Open(filepath.Join(cfg.StateDir, history.DefaultFileName))
	if err != nil {
		return fmt.Errorf("failed to open history index: %w", err)
	}
	defer idx.Close()

	runs, err := idx.ListRuns(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet.")
		return nil
	}

	fmt.Fprintf(w, "%-30s %-20s %-13s %6s %6s %10s  %s\n",
		"RUN", "STATE", "PHASE", "CYCLES", "ITERS", "COST", "UPDATED")
	for _, r := range runs {
		runState := "running"
		if !r.Running() {
			runState = r.StopReason
		}
		fmt.Fprintf(w, "%-30s %-20s %-13s %6d %6d %10s  %s\n",
			r.RunID, runState, r.Phase, r.Cycle, r.Iteration,
			fmt.Sprintf("$%.4f", r.CostUSD), r.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}
