package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/services/auth"
	"nathanbeddoewebdev/sirius/internal/tui/components"
	"nathanbeddoewebdev/sirius/internal/tui/styles"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const statusCheckTimeout = 10 * time.Second

// --- Status rows ---

type statusRow struct {
	name   string
	status string
	ok     bool
}

type reachabilityMsg struct {
	processes int
	err       error
}

// --- Auth status model ---

type authStatusModel struct {
	backend    domain.Backend
	backendURL string

	rows     []statusRow
	checking bool
	spinner  spinner.Model

	width  int
	height int
}

// RunAuthStatus shows whether a token is stored and whether the query service
// answers with it.
func RunAuthStatus(store auth.Store, backend domain.Backend, backendURL string) error {
	m := newAuthStatusModel(store, backend, backendURL)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func newAuthStatusModel(store auth.Store, backend domain.Backend, backendURL string) authStatusModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Blue)

	return authStatusModel{
		backend:    backend,
		backendURL: backendURL,
		rows:       []statusRow{tokenStatus(store)},
		checking:   backend != nil,
		spinner:    s,
	}
}

func tokenStatus(store auth.Store) statusRow {
	_, err := store.GetToken(auth.TokenKey)
	switch {
	case err == nil:
		return statusRow{name: "token", status: "stored", ok: true}
	case errors.Is(err, auth.ErrTokenNotFound):
		return statusRow{name: "token", status: "not stored"}
	default:
		return statusRow{name: "token", status: fmt.Sprintf("error: %v", err)}
	}
}

func (m authStatusModel) Init() tea.Cmd {
	if !m.checking {
		return nil
	}
	return tea.Batch(m.spinner.Tick, m.checkReachable())
}

func (m authStatusModel) checkReachable() tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), statusCheckTimeout)
		defer cancel()
		procs, err := b.ListProcesses(ctx)
		return reachabilityMsg{processes: len(procs), err: err}
	}
}

func (m authStatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case reachabilityMsg:
		m.checking = false
		row := statusRow{name: "query service"}
		switch {
		case msg.err == nil:
			row.status = fmt.Sprintf("reachable, %d processes", msg.processes)
			row.ok = true
		case errors.Is(msg.err, domain.ErrUnauthorized):
			row.status = "token rejected"
		default:
			row.status = msg.err.Error()
		}
		m.rows = append(m.rows, row)
		return m, nil

	case spinner.TickMsg:
		if !m.checking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m authStatusModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	header := components.Header(m.width, "auth status", m.backendURL)
	footer := components.Footer(m.width, []components.KeyBinding{
		{Key: "q", Desc: "quit"},
	})

	contentH := max(m.height-lipgloss.Height(header)-lipgloss.Height(footer), 1)
	return lipgloss.JoinVertical(lipgloss.Left, header, m.renderContent(contentH), footer)
}

func (m authStatusModel) renderContent(height int) string {
	title := styles.Title.Render("Query Service Authentication")

	labelWidth := 16
	lines := make([]string, 0, len(m.rows)+1)
	for _, r := range m.rows {
		name := styles.Label.Width(labelWidth).Render(r.name)
		status := styles.MutedText.Render(r.status)
		if r.ok {
			status = styles.SuccessText.Render(r.status)
		}
		lines = append(lines, name+status)
	}
	if m.checking {
		lines = append(lines, styles.Label.Width(labelWidth).Render("query service")+m.spinner.View()+" checking…")
	}

	card := styles.Card.Width(48).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(
		m.width, height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, title, "", card),
	)
}
