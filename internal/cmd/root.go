package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for maestro
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maestro",
		Short: "Supervisor for long-running autonomous agent work",
		Long: `Maestro drives a Claude Code agent through repeated plan/implement/review
cycles until the work is done or a safety limit stops the run.

Each iteration invokes the agent once, parses the status block from its
output, and advances a phase state machine. Run state is persisted after
every iteration, so an interrupted run resumes exactly where it left off.

Configuration is loaded from .maestro/config.yaml if present.
CLI flags override configuration file settings.`,
		Version:      Version,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewStartCommand())
	cmd.AddCommand(NewResumeCommand())
	cmd.AddCommand(NewStatusCommand())
	cmd.AddCommand(NewRunsCommand())
	cmd.AddCommand(NewValidateCommand())

	return cmd
}
