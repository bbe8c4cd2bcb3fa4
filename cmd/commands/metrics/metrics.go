package metrics

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"nathanbeddoewebdev/sirius/cmd/commands/process"
	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/services"
	"nathanbeddoewebdev/sirius/internal/tui"
	"nathanbeddoewebdev/sirius/internal/util"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics [process-id]",
		Short: "Chart the measures of a process",
		Long: `Chart the measures a process reports.

In a terminal this opens an interactive chart: scroll or +/- to zoom around
the pointer, drag or the arrow keys to pan, hover for exact values, f to
follow the live edge. Otherwise, or with --summary, it prints a compact chart
and the current, minimum and maximum value of each measure.

Without --metric the measures last charted for the process are used, or a
picker is shown.

Examples:
  sirius metrics
  sirius metrics 3f2a9c1e-5b7d-4e0a-9c1e-5b7d4e0a9c1e --metric cpu_usage --since 15m
  sirius metrics 3f2a9c1e-5b7d-4e0a-9c1e-5b7d4e0a9c1e --summary`,
		Args:         cobra.MaximumNArgs(1),
		RunE:         runMetrics,
		SilenceUsage: true,
	}

	cmd.Flags().StringArrayP("metric", "m", nil, "Metric to chart (repeatable)")
	cmd.Flags().Duration("since", 0, "Span to show, ending now (default: last used, or default-window)")
	cmd.Flags().Bool("summary", false, "Print a summary instead of opening the interactive chart")
	cmd.Flags().String("until", "", "End of the summary span as RFC 3339 (default: now)")

	return cmd
}

func runMetrics(cmd *cobra.Command, args []string) error {
	names, _ := cmd.Flags().GetStringArray("metric")
	for _, n := range names {
		if err := util.ValidateMetricName(n); err != nil {
			return err
		}
	}
	since, _ := cmd.Flags().GetDuration("since")
	if since < 0 {
		return fmt.Errorf("--since must be positive, got %s", since)
	}
	summary, _ := cmd.Flags().GetBool("summary")
	until, err := parseUntil(cmd)
	if err != nil {
		return err
	}
	interactive := !summary && term.IsTerminal(int(os.Stdout.Fd()))

	ctx := context.Background()
	s, err := services.Open(ctx, services.Options{Interactive: interactive})
	if err != nil {
		return err
	}
	defer s.Close()

	proc, err := process.Resolve(ctx, s.Backend, args)
	if err != nil {
		return err
	}
	pid := proc.ProcessID

	if since == 0 {
		since = s.Prefs.Span(pid, s.Settings.DefaultWindow)
	}

	catalog, err := s.Backend.ListMetrics(ctx, pid)
	if err != nil {
		return fmt.Errorf("failed to list metrics: %w", err)
	}
	selected, err := selectMetrics(catalog, names, s.Prefs.Metrics(pid), pid, interactive, s.Backend)
	if err != nil {
		return err
	}

	if !interactive {
		width := outputWidth()
		return printSummary(ctx, cmd, s, proc, selected, summaryWindow(until, since, width), width)
	}

	s.Logger.Info().Str("process", pid).Dur("span", since).Int("metrics", len(selected)).Msg("opening metrics view")
	return tui.RunMetricsView(tui.MetricsViewOptions{
		Backend:    s.Backend,
		BackendURL: s.Settings.BackendURL,
		ProcessID:  pid,
		Metrics:    selected,
		Span:       since,
		Scheduler:  s.SchedulerConfig(),
		Telemetry:  s.Metrics,
		Prefs:      s.Prefs,
		Logger:     s.Logger.With().Str("view", "metrics").Logger(),
	})
}

// selectMetrics resolves which measures to chart: explicit names win, then
// the remembered selection, then a picker on a terminal, then everything.
func selectMetrics(catalog []domain.MetricInfo, names, remembered []string, pid string, interactive bool, picker domain.MetricCatalog) ([]domain.MetricInfo, error) {
	if len(names) > 0 {
		var unknown []string
		for _, n := range names {
			if !slices.ContainsFunc(catalog, func(m domain.MetricInfo) bool { return m.Name == n }) {
				unknown = append(unknown, n)
			}
		}
		if len(unknown) > 0 {
			return nil, fmt.Errorf("process %s has no metric %s", pid, strings.Join(unknown, ", "))
		}
		return tui.SelectMetrics(catalog, names), nil
	}

	if picked := tui.SelectMetrics(catalog, remembered); len(picked) > 0 {
		return picked, nil
	}
	if len(catalog) == 0 {
		return nil, fmt.Errorf("process %s reports no metrics", pid)
	}
	if interactive {
		return tui.PickMetrics(picker, pid, nil)
	}
	return catalog, nil
}

func parseUntil(cmd *cobra.Command) (time.Time, error) {
	v, _ := cmd.Flags().GetString("until")
	if v == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--until must be an RFC 3339 time: %w", err)
	}
	return t, nil
}

// outputWidth is the terminal width, or 80 columns when stdout is not a
// terminal.
func outputWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// spanLabel formats a span without trailing zero units, e.g. 1h instead of
// 1h0m0s.
func spanLabel(d time.Duration) string {
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = s[:len(s)-2]
	}
	if strings.HasSuffix(s, "h0m") {
		s = s[:len(s)-2]
	}
	return s
}
