package process

import (
	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "process",
		Aliases: []string{"ps"},
		Short:   "Browse monitored processes",
		Long:    `List the processes known to the query service and inspect one of them.`,
	}

	cmd.AddCommand(ListCommand())
	cmd.AddCommand(ShowCommand())

	return cmd
}
