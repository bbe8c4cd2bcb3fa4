package styles

import (
	"github.com/charmbracelet/lipgloss"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/scheduler"
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

// Text styles.
var (
	Title      = fg(White).Bold(true)
	Subtitle   = fg(Gray)
	Label      = fg(Gray).Bold(true)
	Value      = fg(White)
	MutedText  = fg(Muted)
	AccentText = fg(Blue)

	ErrorText   = fg(Red).Bold(true)
	SuccessText = fg(Green).Bold(true)
	WarningText = fg(Yellow).Bold(true)

	// TableHeader labels the columns of the config and process tables.
	TableHeader = fg(Gray).Bold(true).Padding(0, 1)
)

// Border frames cards and tooltips.
var Border = lipgloss.RoundedBorder()

// Card is a bordered panel around a block of content.
var Card = lipgloss.NewStyle().
	Border(Border).
	BorderForeground(DimGray).
	Padding(1, 2)

// Footer key hints.
var (
	KeyStyle     = fg(Blue).Bold(true)
	KeyDescStyle = fg(Muted)
	KeySepStyle  = fg(DimGray)
)

// FormatKeyBinding renders one footer hint such as "q quit".
func FormatKeyBinding(key, desc string) string {
	return KeyStyle.Render(key) + " " + KeyDescStyle.Render(desc)
}

// LevelStyle colors a log level badge by severity.
func LevelStyle(level domain.Level) lipgloss.Style {
	switch level {
	case domain.LevelFatal, domain.LevelError:
		return ErrorText
	case domain.LevelWarn:
		return WarningText
	case domain.LevelInfo:
		return fg(Green)
	case domain.LevelDebug:
		return fg(Blue)
	default:
		return fg(Gray)
	}
}

// FetchStateStyle colors the per-pane fetch badge.
func FetchStateStyle(state scheduler.State) lipgloss.Style {
	switch state {
	case scheduler.Fulfilled:
		return fg(Green)
	case scheduler.Inflight:
		return fg(Yellow)
	case scheduler.Failed:
		return ErrorText
	default:
		return fg(Gray)
	}
}

// StatusIndicator renders a colored dot followed by the state name.
func StatusIndicator(state scheduler.State) string {
	return FetchStateStyle(state).Render("● " + state.String())
}
