package process

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nathanbeddoewebdev/sirius/internal/services"
	"nathanbeddoewebdev/sirius/internal/swrcache"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent processes",
		Long: `List the most recently started processes known to the query service.

The list is cached on disk for a short while; --refresh bypasses the cache.

Examples:
  sirius process list
  sirius process list -o json`,
		Args:         cobra.NoArgs,
		RunE:         runList,
		SilenceUsage: true,
	}

	cmd.Flags().StringP("output", "o", formatTable, "Output format: table, json or yaml")
	cmd.Flags().Bool("refresh", false, "Ignore the cached process list")

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("output")
	if err := validateFormat(format); err != nil {
		return err
	}

	ctx := context.Background()
	s, err := services.Open(ctx, services.Options{})
	if err != nil {
		return err
	}
	defer s.Close()

	if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
		if err := s.Cache.Invalidate(swrcache.Key(s.Settings.BackendURL, "processes")); err != nil {
			s.Logger.Debug().Err(err).Msg("failed to invalidate process cache")
		}
	}

	entry, err := s.Processes(ctx)
	switch {
	case errors.Is(err, swrcache.ErrStale):
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: query service unreachable, showing processes from %s\n",
			humanize.Time(entry.FetchedAt))
	case err != nil:
		return fmt.Errorf("failed to list processes: %w", err)
	}

	if format != formatTable {
		return printStructured(cmd, format, entry.Data)
	}
	if len(entry.Data) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No processes found.")
		return nil
	}
	printProcessTable(cmd.OutOrStdout(), entry.Data, time.Now())
	return nil
}
