// Package styles holds the palette and the lipgloss styles shared by every
// sirius screen.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	White   = lipgloss.Color("#E2E2E2")
	Gray    = lipgloss.Color("#888888")
	Muted   = lipgloss.Color("#555555")
	DimGray = lipgloss.Color("#444444")

	Blue   = lipgloss.Color("#5FAFFF")
	Green  = lipgloss.Color("#5FD787")
	Yellow = lipgloss.Color("#FFD787")
	Red    = lipgloss.Color("#FF8787")
	Violet = lipgloss.Color("#D787FF")
	Teal   = lipgloss.Color("#87D7D7")
)

// Series is the palette chart lines cycle through, in metric order.
var Series = []lipgloss.Color{Blue, Red, Green, Yellow, Violet, Teal}

// SeriesColor returns the palette color of the i-th series.
func SeriesColor(i int) lipgloss.Color {
	return Series[i%len(Series)]
}
