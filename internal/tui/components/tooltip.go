package components

import (
	"fmt"
	"strings"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

// TooltipRow is one hit shown in a tooltip.
type TooltipRow struct {
	Name  string
	Unit  string
	Color lipgloss.Color
	Point domain.DataPoint
}

// Tooltip renders the samples under the pointer, one row per series. Bucket
// rows show their range and sample count.
func Tooltip(rows []TooltipRow) string {
	if len(rows) == 0 {
		return ""
	}

	at := rows[0].Point.Time
	lines := []string{styles.Label.Render(at.Local().Format("2006-01-02 15:04:05.000"))}
	for _, r := range rows {
		marker := lipgloss.NewStyle().Foreground(r.Color).Render("●")
		p := r.Point
		line := fmt.Sprintf("%s %s %s", marker, styles.Subtitle.Render(r.Name), styles.Value.Render(FormatValue(p.Value, r.Unit)))
		if p.Kind == domain.PointBucket {
			line += styles.MutedText.Render(fmt.Sprintf("  [%s, %s] n=%d",
				FormatValue(p.Min, r.Unit), FormatValue(p.Max, r.Unit), p.Count))
		}
		lines = append(lines, line)
	}

	return lipgloss.NewStyle().
		Border(styles.Border).
		BorderForeground(styles.DimGray).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}
