package tui

import (
	"fmt"
	"strings"

	"nathanbeddoewebdev/sirius/internal/config"
	"nathanbeddoewebdev/sirius/internal/tui/components"
	"nathanbeddoewebdev/sirius/internal/tui/styles"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const (
	configNameWidth   = 20
	configValueWidth  = 30
	configSourceWidth = 22
)

type configSavedMsg struct {
	spec config.KeySpec
	// value is what was written; empty means the key was reset.
	value string
}

type configSaveErrorMsg struct {
	err error
}

// configViewModel edits the persisted configuration. Each row shows the
// value sirius would use and where it comes from.
type configViewModel struct {
	cfg  *config.Config
	keys []config.KeySpec
	path string

	cursor  int
	editing bool
	editor  textinput.Model

	width  int
	height int

	status  string
	isError bool
}

// RunConfigView lists every configuration key and lets the user edit them in
// place. Values are validated before they are written.
func RunConfigView() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	p := tea.NewProgram(newConfigViewModel(cfg), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func newConfigViewModel(cfg *config.Config) configViewModel {
	ti := textinput.New()
	ti.Width = configValueWidth
	ti.CharLimit = 512
	path, _ := config.Path()
	return configViewModel{cfg: cfg, keys: config.Keys, path: path, editor: ti}
}

func (m configViewModel) Init() tea.Cmd {
	return nil
}

func (m configViewModel) selected() config.KeySpec {
	return m.keys[m.cursor]
}

func (m configViewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.editing {
			return m.handleEditKey(msg)
		}
		return m.handleKey(msg)

	case configSavedMsg:
		m.editing = false
		m.isError = false
		if msg.value == "" {
			m.status = msg.spec.Name + " reset"
		} else {
			m.status = msg.spec.Name + " saved"
		}
		if _, src := msg.spec.Effective(m.cfg); src == config.SourceEnv {
			m.status += ", but " + msg.spec.EnvVar() + " overrides it"
		}
		return m, nil

	case configSaveErrorMsg:
		m.status = "Error: " + msg.err.Error()
		m.isError = true
		return m, nil
	}

	if m.editing {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m configViewModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit
	case "up", "k":
		m.cursor = max(m.cursor-1, 0)
	case "down", "j":
		m.cursor = min(m.cursor+1, len(m.keys)-1)
	case "enter", "e":
		spec := m.selected()
		m.editor.SetValue(spec.Get(m.cfg))
		m.editor.Placeholder = spec.Default
		m.editor.CursorEnd()
		m.editing = true
		m.status = ""
		return m, m.editor.Focus()
	case "d":
		spec := m.selected()
		if spec.Get(m.cfg) == "" {
			m.status = spec.Name + " is already unset"
			m.isError = false
			return m, nil
		}
		return m, m.save(spec, "")
	}
	return m, nil
}

func (m configViewModel) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editing = false
		m.editor.Blur()
		return m, nil
	case "enter":
		spec := m.selected()
		value, err := spec.Prepare(m.editor.Value())
		if err != nil {
			m.status = err.Error()
			m.isError = true
			return m, nil
		}
		m.editor.Blur()
		return m, m.save(spec, value)
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

// save applies value to the in-memory config and writes it out.
func (m configViewModel) save(spec config.KeySpec, value string) tea.Cmd {
	spec.Set(m.cfg, value)
	cfg := m.cfg
	return func() tea.Msg {
		if err := cfg.Save(); err != nil {
			return configSaveErrorMsg{err: err}
		}
		return configSavedMsg{spec: spec, value: value}
	}
}

func (m configViewModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	header := components.Header(m.width, "config", m.path)

	bindings := []components.KeyBinding{
		{Key: "j/k", Desc: "navigate"},
		{Key: "e", Desc: "edit"},
		{Key: "d", Desc: "reset"},
		{Key: "q", Desc: "quit"},
	}
	if m.editing {
		bindings = []components.KeyBinding{
			{Key: "enter", Desc: "save"},
			{Key: "esc", Desc: "cancel"},
		}
	}
	footer := components.Footer(m.width, bindings)

	parts := []string{header}
	used := lipgloss.Height(header) + lipgloss.Height(footer)
	var statusBar string
	if m.status != "" {
		statusBar = components.StatusBar(m.width, m.status, m.isError)
		used += lipgloss.Height(statusBar)
	}
	parts = append(parts, m.renderTable(max(m.height-used, 1)))
	if statusBar != "" {
		parts = append(parts, statusBar)
	}
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m configViewModel) renderTable(height int) string {
	title := styles.Title.Render("Configuration")

	rows := make([]string, 0, len(m.keys)+2)
	rows = append(rows, "  "+
		styles.TableHeader.Width(configNameWidth).Render("KEY")+
		styles.TableHeader.Width(configValueWidth+2).Render("VALUE")+
		styles.TableHeader.Render("SOURCE"))

	for i, spec := range m.keys {
		value, src := spec.Effective(m.cfg)
		if src == config.SourceUnset {
			value = "-"
		}
		source := src.String()
		if src == config.SourceEnv {
			source = spec.EnvVar()
		}

		nameStyle, valueStyle := styles.MutedText, styles.MutedText
		prefix := "  "
		if i == m.cursor {
			prefix = styles.AccentText.Render("> ")
			nameStyle, valueStyle = styles.Label, styles.Value.Bold(true)
		}

		cell := valueStyle.Width(configValueWidth + 2).Render(ansi.Truncate(value, configValueWidth, "…"))
		if i == m.cursor && m.editing {
			cell = lipgloss.NewStyle().Width(configValueWidth + 2).Render(m.editor.View())
		}
		rows = append(rows, prefix+
			nameStyle.Width(configNameWidth).Render(spec.Name)+
			cell+
			sourceStyle(src).Render(ansi.Truncate(source, configSourceWidth, "…")))
	}

	desc := m.selected().Description
	if d := m.selected().Default; d != "" {
		desc += " (default " + d + ")"
	}
	rows = append(rows, "", "  "+styles.MutedText.Italic(true).Render(desc))

	width := configNameWidth + configValueWidth + configSourceWidth + 8
	card := styles.Card.Width(width).Render(strings.Join(rows, "\n"))
	return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, title, "", card))
}

func sourceStyle(src config.Source) lipgloss.Style {
	switch src {
	case config.SourceEnv:
		return styles.WarningText
	case config.SourceFile:
		return styles.SuccessText
	default:
		return styles.MutedText
	}
}
