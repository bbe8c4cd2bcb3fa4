package auth

import (
	"errors"
	"fmt"

	"nathanbeddoewebdev/sirius/internal/services/auth"

	"github.com/spf13/cobra"
)

func LogoutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored query service token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := auth.DefaultStore().DeleteToken(auth.TokenKey)
			switch {
			case errors.Is(err, auth.ErrTokenNotFound):
				fmt.Fprintln(cmd.OutOrStdout(), "No token stored.")
				return nil
			case err != nil:
				return fmt.Errorf("failed to remove token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Token removed.")
			return nil
		},
		SilenceUsage: true,
	}

	return cmd
}
