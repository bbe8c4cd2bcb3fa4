package components

import (
	"fmt"
	"strings"

	"nathanbeddoewebdev/sirius/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"
)

// chartHeight is the fixed height for all summary charts.
const chartHeight = 5

// seriesColors are the asciigraph colors summary lines cycle through.
var seriesColors = []asciigraph.AnsiColor{
	asciigraph.DodgerBlue,
	asciigraph.LightCoral,
	asciigraph.MediumSeaGreen,
	asciigraph.Gold,
	asciigraph.Orchid,
	asciigraph.DarkCyan,
}

// SummarySeries is one named line of a summary chart.
type SummarySeries struct {
	Name   string
	Unit   string
	Values []float64
}

// MetricsChart renders a single-series chart with a label header and a
// cur/min/max line. Returns a muted placeholder if data is empty.
func MetricsChart(label string, data []float64, width int, unit string) string {
	if len(data) == 0 {
		return styles.MutedText.Render(label + ": no data")
	}

	chart := asciigraph.Plot(data,
		asciigraph.Height(chartHeight),
		asciigraph.Width(plotWidth(width)),
		asciigraph.Precision(1),
		asciigraph.SeriesColors(seriesColors[0]),
		asciigraph.LabelColor(asciigraph.Default),
	)

	summary := styles.MutedText.Render("  " + summarize(data, unit))
	header := styles.Label.Render(label)
	return lipgloss.JoinVertical(lipgloss.Left, header, chart, summary)
}

// MetricsOverlay renders several series on one set of axes with a legend
// and a summary line per series. Series shorter than the longest are padded
// with their last value so every line spans the full width.
func MetricsOverlay(label string, series []SummarySeries, width int) string {
	var (
		data    [][]float64
		legends []string
		colors  []asciigraph.AnsiColor
		lines   []string
		longest int
	)
	for _, s := range series {
		longest = max(longest, len(s.Values))
	}
	if longest == 0 {
		return styles.MutedText.Render(label + ": no data")
	}

	for i, s := range series {
		if len(s.Values) == 0 {
			continue
		}
		values := s.Values
		for len(values) < longest {
			values = append(values, values[len(values)-1])
		}
		data = append(data, values)
		legends = append(legends, s.Name)
		colors = append(colors, seriesColors[i%len(seriesColors)])
		lines = append(lines, fmt.Sprintf("  %s  %s", s.Name, summarize(s.Values, s.Unit)))
	}

	chart := asciigraph.PlotMany(data,
		asciigraph.Height(chartHeight),
		asciigraph.Width(plotWidth(width)),
		asciigraph.Precision(1),
		asciigraph.SeriesColors(colors...),
		asciigraph.SeriesLegends(legends...),
		asciigraph.LabelColor(asciigraph.Default),
	)

	summary := styles.MutedText.Render(strings.Join(lines, "\n"))
	header := styles.Label.Render(label)
	return lipgloss.JoinVertical(lipgloss.Left, header, chart, summary)
}

// plotWidth reserves space for the Y-axis labels (number + " ┤" ≈ 9 chars).
func plotWidth(width int) int {
	return max(width-9, 10)
}

func summarize(data []float64, unit string) string {
	lo, hi := minMax(data)
	return fmt.Sprintf("cur: %s  min: %s  max: %s",
		FormatValue(data[len(data)-1], unit),
		FormatValue(lo, unit),
		FormatValue(hi, unit),
	)
}

// minMax returns the minimum and maximum values from a slice.
func minMax(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}
	lo, hi := data[0], data[0]
	for _, v := range data[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}

// FormatValue renders v with its unit, using an SI prefix from 1000 up and
// binary prefixes for bytes.
func FormatValue(v float64, unit string) string {
	switch unit {
	case "percent":
		return fmt.Sprintf("%.1f%%", v)
	case "bytes":
		if v < 0 {
			return "-" + humanize.IBytes(uint64(-v))
		}
		return humanize.IBytes(uint64(v))
	}
	if v > -1000 && v < 1000 {
		return strings.TrimSpace(fmt.Sprintf("%.1f %s", v, unit))
	}
	return strings.TrimSpace(humanize.SIWithDigits(v, 1, unit))
}
