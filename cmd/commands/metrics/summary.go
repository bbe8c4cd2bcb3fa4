package metrics

import (
	"context"
	"fmt"
	"time"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/retry"
	"nathanbeddoewebdev/sirius/internal/services"
	"nathanbeddoewebdev/sirius/internal/timewindow"
	"nathanbeddoewebdev/sirius/internal/tui/components"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentFetches bounds the summary fetches in flight at once.
const maxConcurrentFetches = 4

// summaryWindow is the span ending at end, at the coarsest tier that still
// gives every plot column at least one bucket.
func summaryWindow(end time.Time, span time.Duration, width int) timewindow.Window {
	w := timewindow.Window{Start: end.Add(-span), End: end}
	tier := timewindow.DefaultLadder.ResolutionForPixelWidth(w, width)
	return w.WithResolution(timewindow.DefaultLadder.Duration(tier))
}

// fetchSeries fetches every metric concurrently. Transient failures are
// retried with the configured backoff.
func fetchSeries(ctx context.Context, b domain.Backend, cfg retry.Config, pid string, metrics []domain.MetricInfo, w timewindow.Window) ([]components.SummarySeries, error) {
	series := make([]components.SummarySeries, len(metrics))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, m := range metrics {
		g.Go(func() error {
			var batch domain.SampleBatch
			err := retry.Do(ctx, cfg, domain.IsTransient, func() error {
				var err error
				batch, err = b.FetchSamples(ctx, domain.MetricID{ProcessID: pid, Name: m.Name}, w)
				return err
			})
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", m.Name, err)
			}

			values := make([]float64, len(batch.Points))
			for j, p := range batch.Points {
				values[j] = p.Value
			}
			series[i] = components.SummarySeries{Name: m.Name, Unit: m.Unit, Values: values}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return series, nil
}

// groupByUnit keeps series order and gathers series sharing a unit, so they
// can share one set of axes.
func groupByUnit(series []components.SummarySeries) [][]components.SummarySeries {
	var groups [][]components.SummarySeries
	index := map[string]int{}
	for _, s := range series {
		i, ok := index[s.Unit]
		if !ok {
			i = len(groups)
			index[s.Unit] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], s)
	}
	return groups
}

func printSummary(ctx context.Context, cmd *cobra.Command, s *services.Session, proc domain.ProcessSummary, metrics []domain.MetricInfo, w timewindow.Window, width int) error {
	series, err := fetchSeries(ctx, s.Backend, s.Settings.Retry, proc.ProcessID, metrics, w)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s on %s, last %s\n\n", proc.Exe, proc.Computer, spanLabel(w.Duration()))

	points := 0
	for _, group := range groupByUnit(series) {
		if len(group) == 1 {
			g := group[0]
			fmt.Fprintln(out, components.MetricsChart(g.Name, g.Values, width, g.Unit))
		} else {
			fmt.Fprintln(out, components.MetricsOverlay(group[0].Unit, group, width))
		}
		fmt.Fprintln(out)
		for _, g := range group {
			points += len(g.Values)
		}
	}

	fmt.Fprintf(out, "Time range: %s to %s (step: %s, %s points)\n",
		w.Start.UTC().Format("2006-01-02 15:04:05 UTC"),
		w.End.UTC().Format("2006-01-02 15:04:05 UTC"),
		w.Resolution,
		humanize.Comma(int64(points)),
	)
	return nil
}
