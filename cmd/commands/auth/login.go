package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"nathanbeddoewebdev/sirius/internal/backend"
	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/services/auth"
	"nathanbeddoewebdev/sirius/internal/tui"

	"golang.org/x/term"

	"github.com/spf13/cobra"
)

const verifyTimeout = 10 * time.Second

func LoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the query service token",
		Long: `Store the query service bearer token in the local keychain.

In a terminal the token is asked for interactively. Otherwise it is read from
the first line of stdin. The token is checked against the query service first;
a rejected token is not stored.

Examples:
  sirius auth login
  sirius auth login --token "$SIRIUS_TOKEN"
  vault read -field=token secret/sirius | sirius auth login`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			url, err := backendURL()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return
			}
			store := auth.DefaultStore()

			var verify tui.TokenVerifier
			if skip, _ := cmd.Flags().GetBool("no-verify"); !skip {
				verify = verifier(url)
			}

			token, _ := cmd.Flags().GetString("token")
			token = strings.TrimSpace(token)
			if token == "" {
				if term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())) {
					result, err := tui.RunAuthLogin(url, store, verify)
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
						return
					}
					if result.Warning != "" {
						fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", result.Warning)
					}
					if result.Saved {
						fmt.Fprintf(cmd.OutOrStdout(), "Saved token for %s\n", url)
					}
					return
				}

				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					fmt.Fprintln(cmd.ErrOrStderr(), "Error: no token on stdin")
					return
				}
				token = strings.TrimSpace(line)
			}

			if token == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "Error: token cannot be empty")
				return
			}

			if verify != nil {
				ctx, cancel := context.WithTimeout(cmd.Context(), verifyTimeout)
				err := verify(ctx, token)
				cancel()
				var be *domain.BackendError
				switch {
				case err == nil:
				case errors.Is(err, domain.ErrUnauthorized):
					fmt.Fprintf(cmd.ErrOrStderr(), "Error: token rejected by %s\n", url)
					return
				case errors.As(err, &be):
					fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
					return
				default:
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not reach the query service, saving unverified: %v\n", err)
				}
			}

			if err := store.SetToken(auth.TokenKey, token); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved token for %s\n", url)
		},
	}

	cmd.Flags().String("token", "", "Token (optional, skips the prompt)")
	cmd.Flags().Bool("no-verify", false, "Store the token without checking it")

	return cmd
}

// verifier lists processes with the candidate token.
func verifier(url string) tui.TokenVerifier {
	return func(ctx context.Context, token string) error {
		_, err := backend.New(url, backend.WithToken(token)).ListProcesses(ctx)
		return err
	}
}
