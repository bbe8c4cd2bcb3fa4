package components

import (
	"math"
	"strings"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/timewindow"
	"nathanbeddoewebdev/sirius/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
	plot "github.com/chriskim06/drawille-go"
)

// Resample reduces points to one value per column of a width-column strip
// spanning window. A column holding several points gets their average; an
// empty column repeats the previous column. Columns before the first point
// take its value. ok is false when no point falls inside window.
func Resample(points []domain.DataPoint, window timewindow.Window, width int) (values []float64, ok bool) {
	if width <= 0 || !window.Valid() {
		return nil, false
	}
	sums := make([]float64, width)
	counts := make([]int, width)
	span := float64(window.Duration())
	for _, p := range points {
		if !window.Contains(p.Time) {
			continue
		}
		col := int(float64(p.Time.Sub(window.Start)) / span * float64(width))
		col = min(col, width-1)
		sums[col] += p.Value
		counts[col]++
		ok = true
	}
	if !ok {
		return nil, false
	}

	values = make([]float64, width)
	last := math.NaN()
	for i := range values {
		if counts[i] > 0 {
			last = sums[i] / float64(counts[i])
		}
		values[i] = last
	}
	first := math.NaN()
	for _, v := range values {
		if !math.IsNaN(v) {
			first = v
			break
		}
	}
	for i := range values {
		if !math.IsNaN(values[i]) {
			break
		}
		values[i] = first
	}
	return values, true
}

// Overview renders a braille strip of series across extent with the columns
// of visible underlined. The first series is highlighted, the rest dimmed.
func Overview(extent, visible timewindow.Window, width, height int, series [][]domain.DataPoint) string {
	if width < 10 || height < 1 || !extent.Valid() {
		return ""
	}

	var (
		data   [][]float64
		colors []plot.Color
	)
	for i, points := range series {
		values, ok := Resample(points, extent, width*2)
		if !ok {
			continue
		}
		data = append(data, values)
		if i == 0 {
			colors = append(colors, plot.Red)
		} else {
			colors = append(colors, plot.DimGray)
		}
	}
	if len(data) == 0 {
		return styles.MutedText.Render(strings.Repeat("·", width))
	}

	canvas := plot.NewCanvas(width, height)
	canvas.NumDataPoints = width * 2
	canvas.ShowAxis = false
	canvas.LineColors = colors
	canvas.Fill(data)

	return lipgloss.JoinVertical(lipgloss.Left, canvas.String(), visibleMarker(extent, visible, width))
}

// visibleMarker underlines the columns of extent that visible covers.
func visibleMarker(extent, visible timewindow.Window, width int) string {
	span := float64(extent.Duration())
	from := int(float64(visible.Start.Sub(extent.Start)) / span * float64(width))
	to := int(math.Ceil(float64(visible.End.Sub(extent.Start)) / span * float64(width)))
	from = min(max(from, 0), width-1)
	to = min(max(to, from+1), width)

	return styles.MutedText.Render(strings.Repeat("─", from)) +
		styles.AccentText.Render(strings.Repeat("▔", to-from)) +
		styles.MutedText.Render(strings.Repeat("─", width-to))
}
