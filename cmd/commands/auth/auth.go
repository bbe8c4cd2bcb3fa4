package auth

import (
	"fmt"

	"nathanbeddoewebdev/sirius/internal/config"

	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the query service token",
		Long: `Manage the bearer token sent to the query service.

The token is kept in the OS keychain, never in the configuration file.`,
	}

	cmd.AddCommand(LoginCommand())
	cmd.AddCommand(LogoutCommand())
	cmd.AddCommand(StatusCommand())

	return cmd
}

// backendURL returns the configured query service address.
func backendURL() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	settings, err := cfg.Settings()
	if err != nil {
		return "", err
	}
	return settings.BackendURL, nil
}
