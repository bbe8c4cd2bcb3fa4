package cmd

import (
	"os"

	"nathanbeddoewebdev/sirius/cmd/commands/auth"
	cfgcmd "nathanbeddoewebdev/sirius/cmd/commands/config"
	"nathanbeddoewebdev/sirius/cmd/commands/demo"
	logcmd "nathanbeddoewebdev/sirius/cmd/commands/log"
	"nathanbeddoewebdev/sirius/cmd/commands/metrics"
	"nathanbeddoewebdev/sirius/cmd/commands/process"
	"nathanbeddoewebdev/sirius/internal/services"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
func rootCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:     "sirius",
		Short:   "Explore the measures and logs of instrumented processes",
		Version: services.Version,
		Long: `sirius is a terminal explorer for the telemetry of instrumented processes.
It charts measures over a pannable, zoomable time window and pages through
log entries, fetching only what the terminal can show.

Quick start:
  sirius demo serve                # Start a synthetic query service
  sirius process list              # List recent processes
  sirius metrics                   # Pick a process and chart its measures
  sirius log --follow              # Tail the log of a process`,
	}

	cmd.AddCommand(process.NewCommand())
	cmd.AddCommand(metrics.NewCommand())
	cmd.AddCommand(logcmd.NewCommand())
	cmd.AddCommand(cfgcmd.NewCommand())
	cmd.AddCommand(auth.NewCommand())
	cmd.AddCommand(demo.NewCommand())

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	var root = rootCmd()
	err := root.Execute()
	if err != nil {
		os.Exit(1)
	}
}
