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
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const verifyTimeout = 10 * time.Second

// TokenVerifier sends one request to the query service with token.
type TokenVerifier func(ctx context.Context, token string) error

type tokenCheckedMsg struct {
	token string
	err   error
}

type tokenStoredMsg struct {
	// unverified holds the network error that kept the token from being
	// checked, if any.
	unverified error
}

type tokenStoreFailedMsg struct {
	err error
}

type loginStage int

const (
	stageInput loginStage = iota
	stageVerifying
	stageDone
)

type authLoginModel struct {
	backendURL string
	store      auth.Store
	verify     TokenVerifier

	input   textinput.Model
	spinner spinner.Model
	stage   loginStage

	width  int
	height int

	err    error
	result AuthLoginResult
}

// AuthLoginResult holds the outcome of the login TUI.
type AuthLoginResult struct {
	Saved bool
	// Verified is false when the token was stored without the query service
	// confirming it.
	Verified bool
	// Warning explains why a saved token is unverified.
	Warning string
}

// RunAuthLogin asks for the query service bearer token, checks it with verify
// and stores it under auth.TokenKey. A token the service rejects is not
// stored. A nil verify stores the token unchecked.
func RunAuthLogin(backendURL string, store auth.Store, verify TokenVerifier) (*AuthLoginResult, error) {
	p := tea.NewProgram(newAuthLoginModel(backendURL, store, verify), tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to run auth login: %w", err)
	}
	final := result.(authLoginModel).result
	return &final, nil
}

func newAuthLoginModel(backendURL string, store auth.Store, verify TokenVerifier) authLoginModel {
	ti := textinput.New()
	ti.Placeholder = "paste your query service token here"
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '*'
	ti.Width = 50
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Blue)

	return authLoginModel{
		backendURL: backendURL,
		store:      store,
		verify:     verify,
		input:      ti,
		spinner:    s,
	}
}

func (m authLoginModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m authLoginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tokenCheckedMsg:
		var be *domain.BackendError
		switch {
		case msg.err == nil:
			m.result.Verified = true
			return m, m.saveToken(msg.token, nil)
		case errors.As(msg.err, &be):
			m.stage = stageInput
			m.err = msg.err
			if errors.Is(msg.err, domain.ErrUnauthorized) {
				m.err = fmt.Errorf("token rejected by %s", m.backendURL)
			}
			return m, m.input.Focus()
		default:
			return m, m.saveToken(msg.token, msg.err)
		}

	case tokenStoredMsg:
		m.stage = stageDone
		m.result.Saved = true
		if msg.unverified != nil {
			m.result.Warning = "could not reach the query service: " + msg.unverified.Error()
		}
		return m, tea.Quit

	case tokenStoreFailedMsg:
		m.stage = stageInput
		m.err = msg.err
		return m, m.input.Focus()

	case spinner.TickMsg:
		if m.stage != stageVerifying {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m authLoginModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" || msg.String() == "esc" {
		return m, tea.Quit
	}
	if m.stage != stageInput {
		return m, nil
	}

	if msg.String() == "enter" {
		token := strings.TrimSpace(m.input.Value())
		if token == "" {
			m.err = fmt.Errorf("token cannot be empty")
			return m, nil
		}
		m.err = nil
		m.input.Blur()
		m.stage = stageVerifying
		if m.verify == nil {
			return m, m.saveToken(token, nil)
		}
		return m, tea.Batch(m.spinner.Tick, m.check(token))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.err = nil
	return m, cmd
}

func (m authLoginModel) check(token string) tea.Cmd {
	verify := m.verify
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
		defer cancel()
		return tokenCheckedMsg{token: token, err: verify(ctx, token)}
	}
}

// saveToken writes the token. unverified is carried through to the result.
func (m authLoginModel) saveToken(token string, unverified error) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		if err := store.SetToken(auth.TokenKey, token); err != nil {
			return tokenStoreFailedMsg{err: err}
		}
		return tokenStoredMsg{unverified: unverified}
	}
}

func (m authLoginModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	header := components.Header(m.width, "auth login", m.backendURL)
	footer := components.Footer(m.width, []components.KeyBinding{
		{Key: "enter", Desc: "verify and save"},
		{Key: "esc", Desc: "cancel"},
	})

	contentH := max(m.height-lipgloss.Height(header)-lipgloss.Height(footer), 1)
	return lipgloss.JoinVertical(lipgloss.Left, header, m.renderForm(contentH), footer)
}

func (m authLoginModel) renderForm(height int) string {
	lines := []string{
		styles.Title.Render("Query Service Token"),
		styles.MutedText.Render("Sent as a bearer token to " + m.backendURL),
		"",
		m.input.View(),
	}
	switch {
	case m.stage == stageVerifying:
		lines = append(lines, "", m.spinner.View()+" checking token…")
	case m.err != nil:
		lines = append(lines, "", styles.ErrorText.Render(m.err.Error()))
	}

	return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, lines...))
}
