package process

import (
	"context"

	"nathanbeddoewebdev/sirius/internal/services"

	"github.com/spf13/cobra"
)

// ShowCommand returns a cobra.Command that displays details for one process.
func ShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [process-id]",
		Short: "Show details for a process",
		Long: `Display the metadata of one process and the metrics it reports.

Without a process id, a picker lists recent processes when running in a
terminal.

Examples:
  sirius process show 3f2a9c1e-5b7d-4e0a-9c1e-5b7d4e0a9c1e
  sirius process show 3f2a9c1e-5b7d-4e0a-9c1e-5b7d4e0a9c1e -o yaml`,
		Args:         cobra.MaximumNArgs(1),
		RunE:         runShow,
		SilenceUsage: true,
	}

	cmd.Flags().StringP("output", "o", formatTable, "Output format: table, json or yaml")

	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
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

	proc, err := Resolve(ctx, s.Backend, args)
	if err != nil {
		return err
	}

	detail := processDetail{ProcessSummary: proc}
	metrics, err := s.Backend.ListMetrics(ctx, proc.ProcessID)
	if err != nil {
		s.Logger.Warn().Err(err).Str("process", proc.ProcessID).Msg("failed to list metrics")
	}
	detail.Metrics = metrics

	if format != formatTable {
		return printStructured(cmd, format, detail)
	}
	printProcessDetail(cmd.OutOrStdout(), detail)
	return nil
}
