package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Long: `Load the configuration, apply any flag overrides, and validate the result.

Prints the effective settings a run started right now would use, so
"maestro validate --max-cycles 3" shows the merged outcome before
committing to a run.

Exit code: 0 if valid, 1 if errors found`,
		Args: cobra.NoArgs,
		RunE: validateCommand,
	}

	registerRunFlags(cmd)
	return cmd
}

// validateCommand implements the validate command logic
func validateCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadMergedConfig(cmd)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "Configuration is valid.")
	fmt.Fprintf(w, "  Mode:           %s\n", cfg.Mode)
	fmt.Fprintf(w, "  Max cycles:     %d\n", cfg.MaxCycles)
	fmt.Fprintf(w, "  Cost limit:     $%.2f\n", cfg.CostLimitUSD)
	fmt.Fprintf(w, "  Stall timeout:  %s\n", cfg.StallTimeout)
	fmt.Fprintf(w, "  Poll interval:  %s\n", cfg.PollInterval)
	fmt.Fprintf(w, "  Breaker window: %d\n", cfg.BreakerWindow)
	fmt.Fprintf(w, "  Log level:      %s\n", cfg.LogLevel)
	fmt.Fprintf(w, "  Work dir:       %s\n", cfg.WorkDir)
	fmt.Fprintf(w, "  State dir:      %s\n", cfg.StateDir)
	fmt.Fprintf(w, "  Claude path:    %s\n", cfg.ClaudePath)
	fmt.Fprintf(w, "  Models:         default=%s plan=%s review=%s\n",
		cfg.Models.Default,
		orDefault(cfg.Models.Plan, cfg.Models.Default),
		orDefault(cfg.Models.Review, cfg.Models.Default))
	return nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
