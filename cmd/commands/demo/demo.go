package demo

import (
	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a synthetic query service",
		Long: `Run a query service that serves deterministic synthetic processes, measures
and log entries. Point backend-url at it to try sirius without a real
telemetry pipeline.`,
	}

	cmd.AddCommand(ServeCommand())

	return cmd
}
