package config

import (
	"nathanbeddoewebdev/sirius/internal/config"

	"github.com/spf13/cobra"
)

// NewCommand returns the "config" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage sirius configuration",
		Long: "View and modify persistent sirius settings.\n\n" +
			"Configuration is stored at ~/.config/sirius/config.json. Any key can be\n" +
			"overridden for one run with a SIRIUS_* environment variable, e.g.\n" +
			"SIRIUS_BACKEND_URL.\n\n" +
			config.KeysHelp(),
	}

	cmd.AddCommand(SetCommand())
	cmd.AddCommand(GetCommand())

	return cmd
}
