package components

import (
	"fmt"
	"time"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/timewindow"

	"github.com/NimbleMarkets/ntcharts/linechart"
	"github.com/NimbleMarkets/ntcharts/linechart/timeserieslinechart"
	"github.com/charmbracelet/lipgloss"
)

const (
	// YLabelWidth is the fixed width of the value labels left of the plot.
	YLabelWidth = 8
	// PlotOffset is the first column of the plot area: the labels plus the
	// axis line.
	PlotOffset = YLabelWidth + 1
	// XAxisRows is the number of rows below the plot area: the axis line
	// plus the time labels.
	XAxisRows = 2
)

// ChartSeries is one line of a TimeChart.
type ChartSeries struct {
	Name   string
	Unit   string
	Color  lipgloss.Color
	Points []domain.DataPoint
}

// TimeChart renders series over window. The plot area is plotWidth columns
// wide starting at PlotOffset and plotHeight rows tall starting at row 0,
// with the value axis spanning [lo, hi]. Buckets are drawn at their average.
func TimeChart(window timewindow.Window, plotWidth, plotHeight int, lo, hi float64, series []ChartSeries) string {
	unit := ""
	if len(series) > 0 {
		unit = series[0].Unit
	}

	chart := timeserieslinechart.New(plotWidth+PlotOffset, plotHeight+XAxisRows,
		timeserieslinechart.WithXLabelFormatter(timeLabels(window.Duration())),
		timeserieslinechart.WithYLabelFormatter(valueLabels(unit)),
	)
	chart.SetTimeRange(window.Start, window.End)
	chart.SetViewTimeRange(window.Start, window.End)
	chart.SetYRange(lo, hi)
	chart.SetViewYRange(lo, hi)

	for _, s := range series {
		for _, p := range s.Points {
			chart.PushDataSet(s.Name, timeserieslinechart.TimePoint{Time: p.Time, Value: p.Value})
		}
		chart.SetDataSetStyle(s.Name, lipgloss.NewStyle().Foreground(s.Color))
	}
	chart.DrawBrailleAll()
	return chart.View()
}

func timeLabels(span time.Duration) linechart.LabelFormatter {
	if span <= 24*time.Hour {
		return timeserieslinechart.HourTimeLabelFormatter()
	}
	return timeserieslinechart.DateTimeLabelFormatter()
}

func valueLabels(unit string) linechart.LabelFormatter {
	return func(_ int, v float64) string {
		label := FormatValue(v, unit)
		if len(label) > YLabelWidth {
			label = label[:YLabelWidth]
		}
		return fmt.Sprintf("%*s", YLabelWidth, label)
	}
}
