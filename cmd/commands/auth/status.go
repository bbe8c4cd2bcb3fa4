package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"nathanbeddoewebdev/sirius/internal/backend"
	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/services/auth"
	"nathanbeddoewebdev/sirius/internal/tui"

	"golang.org/x/term"

	"github.com/spf13/cobra"
)

const statusTimeout = 10 * time.Second

func StatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether a token is stored and accepted",
		Long: `Show whether a query service token is stored, and check that the
service answers with it.

Example:
  sirius auth status`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := backendURL()
			if err != nil {
				return err
			}
			store := auth.DefaultStore()
			client, err := backend.NewFromStore(url, store)
			if err != nil {
				return err
			}

			// Use TUI in interactive terminal.
			if term.IsTerminal(int(os.Stdout.Fd())) {
				if err := tui.RunAuthStatus(store, client, url); err != nil {
					return fmt.Errorf("auth status failed: %w", err)
				}
				return nil
			}

			// Non-interactive fallback.
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "query service: %s\n", url)

			_, err = store.GetToken(auth.TokenKey)
			switch {
			case err == nil:
				fmt.Fprintln(out, "token: stored")
			case errors.Is(err, auth.ErrTokenNotFound):
				fmt.Fprintln(out, "token: not stored")
			default:
				fmt.Fprintf(out, "token: error (%v)\n", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
			defer cancel()
			procs, err := client.ListProcesses(ctx)
			switch {
			case err == nil:
				fmt.Fprintf(out, "reachable: yes (%d processes)\n", len(procs))
			case errors.Is(err, domain.ErrUnauthorized):
				fmt.Fprintln(out, "reachable: token rejected")
			default:
				fmt.Fprintf(out, "reachable: no (%v)\n", err)
			}
			return nil
		},
		SilenceUsage: true,
	}

	return cmd
}
