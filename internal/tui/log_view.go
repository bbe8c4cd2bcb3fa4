package tui

import (
	"fmt"
	"strings"
	"time"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/logstore"
	"nathanbeddoewebdev/sirius/internal/samplestore"
	"nathanbeddoewebdev/sirius/internal/scheduler"
	"nathanbeddoewebdev/sirius/internal/services/viewprefs"
	"nathanbeddoewebdev/sirius/internal/telemetry"
	"nathanbeddoewebdev/sirius/internal/timewindow"
	"nathanbeddoewebdev/sirius/internal/tui/components"
	"nathanbeddoewebdev/sirius/internal/tui/styles"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

const (
	pollInterval  = time.Second
	targetWidth   = 18
	topTargetsLen = 3
)

// --- Messages ---

type logsChangedMsg struct{}

type pollTickMsg time.Time

// LogViewOptions configures the log list.
type LogViewOptions struct {
	Backend    domain.Backend
	BackendURL string
	ProcessID  string
	Cap        int
	// Follow keeps polling for new entries after the end of the log.
	Follow bool
	// Span is how far back from now the view is interested in; entries
	// older than that are flagged as possibly incomplete after eviction.
	Span      time.Duration
	Scheduler scheduler.Config
	Telemetry *telemetry.Metrics
	Prefs     *viewprefs.Service
	Logger    zerolog.Logger
	Now       func() time.Time
}

// logSession owns the log store and scheduler of one log view.
type logSession struct {
	opts    LogViewOptions
	now     func() time.Time
	store   *logstore.Store
	sched   *scheduler.Scheduler
	changed chan struct{}
}

func newLogSession(opts LogViewOptions) *logSession {
	s := &logSession{
		opts:    opts,
		now:     opts.Now,
		changed: make(chan struct{}, 1),
	}
	if s.now == nil {
		s.now = time.Now
	}
	capOpt := logstore.WithCap(opts.Cap)
	if opts.Cap <= 0 {
		capOpt = logstore.WithCap(logstore.DefaultCap)
	}
	s.store = logstore.New(capOpt, logstore.WithLogger(opts.Logger))
	s.sched = scheduler.New(opts.Backend, samplestore.New(),
		scheduler.WithConfig(opts.Scheduler),
		scheduler.WithLogger(opts.Logger),
		scheduler.WithMetrics(opts.Telemetry),
		scheduler.WithNotify(s.signal),
		scheduler.WithLogs(opts.ProcessID, s.store),
	)
	return s
}

func (s *logSession) signal() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *logSession) waitForChange() tea.Cmd {
	return func() tea.Msg {
		<-s.changed
		return logsChangedMsg{}
	}
}

func (s *logSession) window() timewindow.Window {
	end := s.now()
	return timewindow.Window{Start: end.Add(-s.opts.Span), End: end, Resolution: time.Second}
}

// more requests the next page unless the log is exhausted or failed.
func (s *logSession) more() {
	if s.sched.LogStatus().State == scheduler.Failed {
		return
	}
	s.sched.RequestLogs(s.window())
}

// poll re-opens an exhausted log and asks for anything written since.
func (s *logSession) poll() {
	if s.store.Exhausted() {
		s.sched.FollowLogs()
	}
	s.more()
}

// --- Log view model ---

type logViewModel struct {
	session *logSession

	width  int
	height int

	entries []domain.LogEntry
	offset  int
	tail    bool
	follow  bool

	filter    string
	filtering bool
	input     textinput.Model

	quitting bool
}

// RunLogView starts the full-window log list and blocks until the user quits.
func RunLogView(opts LogViewOptions) error {
	m := newLogViewModel(opts)
	defer m.session.sched.Close()

	p := tea.NewProgram(m, tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return fmt.Errorf("failed to run log view: %w", err)
	}

	final := result.(logViewModel)
	if opts.Prefs != nil {
		opts.Prefs.SaveLogFilter(opts.ProcessID, final.filter)
	}
	return nil
}

func newLogViewModel(opts LogViewOptions) logViewModel {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "fuzzy filter on target and message"
	ti.CharLimit = 200

	m := logViewModel{
		session: newLogSession(opts),
		tail:    true,
		follow:  opts.Follow,
		input:   ti,
	}
	if opts.Prefs != nil {
		m.filter = opts.Prefs.LogFilter(opts.ProcessID)
		m.input.SetValue(m.filter)
	}
	m.session.more()
	return m
}

func (m logViewModel) Init() tea.Cmd {
	return tea.Batch(m.session.waitForChange(), pollTick())
}

func pollTick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return pollTickMsg(t) })
}

// listRows is the number of entry lines that fit between header and footer.
func (m logViewModel) listRows() int {
	rows := m.height - headerRows - statusRows - footerRows
	if m.filtering {
		rows--
	}
	return max(rows, 1)
}

func (m logViewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	s := m.session
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-8, 10)
		m = m.refresh()
		return m, nil

	case logsChangedMsg:
		m = m.refresh()
		if !s.store.Exhausted() {
			s.more()
		}
		return m, s.waitForChange()

	case pollTickMsg:
		if m.follow {
			s.poll()
		}
		return m, pollTick()

	case tea.KeyMsg:
		if m.filtering {
			return m.handleFilterKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

// refresh re-applies the filter to the store and keeps the tail in view.
func (m logViewModel) refresh() logViewModel {
	m.entries = m.session.store.Filter(m.filter)
	m.offset = m.clampOffset(m.offset)
	if m.tail {
		m.offset = m.maxOffset()
	}
	return m
}

func (m logViewModel) maxOffset() int {
	return max(len(m.entries)-m.listRows(), 0)
}

func (m logViewModel) clampOffset(o int) int {
	return min(max(o, 0), m.maxOffset())
}

func (m logViewModel) scroll(delta int) logViewModel {
	m.offset = m.clampOffset(m.offset + delta)
	m.tail = m.offset == m.maxOffset()
	return m
}

func (m logViewModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.session
	page := m.listRows()

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "esc":
		if m.filter == "" {
			m.quitting = true
			return m, tea.Quit
		}
		m.filter = ""
		m.input.SetValue("")
		return m.refresh(), nil
	case "up", "k":
		return m.scroll(-1), nil
	case "down", "j":
		return m.scroll(1), nil
	case "pgup", "ctrl+u":
		return m.scroll(-page), nil
	case "pgdown", "ctrl+d":
		return m.scroll(page), nil
	case "home", "g":
		m.tail = false
		m.offset = 0
		return m, nil
	case "end", "G":
		m.tail = true
		return m.refresh(), nil
	case "f":
		m.follow = !m.follow
		if m.follow {
			s.poll()
		}
		return m, nil
	case "r":
		s.sched.RetryLogs()
		s.more()
		return m, nil
	case "/":
		m.filtering = true
		m.input.SetValue(m.filter)
		m.input.CursorEnd()
		return m, m.input.Focus()
	}
	return m, nil
}

func (m logViewModel) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filtering = false
		m.input.Blur()
		m.filter = strings.TrimSpace(m.input.Value())
		return m.refresh(), nil
	case "esc":
		m.filtering = false
		m.input.Blur()
		m.input.SetValue(m.filter)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// --- Rendering ---

func (m logViewModel) View() string {
	if m.quitting || m.width == 0 {
		return ""
	}
	s := m.session

	header := components.Header(m.width, "log "+shortID(s.opts.ProcessID), s.opts.BackendURL)

	rows := m.listRows()
	end := min(m.offset+rows, len(m.entries))
	lines := make([]string, 0, rows)
	for _, e := range m.entries[m.offset:end] {
		lines = append(lines, m.renderEntry(e))
	}
	if len(lines) == 0 {
		lines = append(lines, styles.MutedText.Render("  "+m.emptyText()))
	}
	list := lipgloss.NewStyle().Height(rows).MaxHeight(rows).Render(strings.Join(lines, "\n"))

	parts := []string{header, list}
	if m.filtering {
		parts = append(parts, "  "+m.input.View())
	}

	status, isErr := m.statusLine()
	parts = append(parts,
		components.StatusBar(m.width, status, isErr),
		components.Footer(m.width, []components.KeyBinding{
			{Key: "↑/↓", Desc: "scroll"},
			{Key: "g/G", Desc: "top/tail"},
			{Key: "/", Desc: "filter"},
			{Key: "f", Desc: "follow"},
			{Key: "r", Desc: "retry"},
			{Key: "q", Desc: "quit"},
		}),
	)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m logViewModel) renderEntry(e domain.LogEntry) string {
	ts := styles.MutedText.Render(e.Time.Local().Format("15:04:05.000"))
	level := styles.LevelStyle(e.Level).Render(fmt.Sprintf("%-5s", e.Level))
	target := styles.Subtitle.Render(fmt.Sprintf("%-*s", targetWidth, ansi.Truncate(e.Target, targetWidth, "…")))
	line := fmt.Sprintf("  %s %s %s %s", ts, level, target, e.Message)
	return ansi.Truncate(line, m.width, "…")
}

func (m logViewModel) emptyText() string {
	switch {
	case m.filter != "" && m.session.store.Len() > 0:
		return "no entries match " + fmt.Sprintf("%q", m.filter)
	case m.session.store.Exhausted():
		return "no entries"
	default:
		return "loading…"
	}
}

func (m logViewModel) statusLine() (string, bool) {
	s := m.session
	st := s.sched.LogStatus()
	if st.State == scheduler.Failed && st.Err != nil {
		return "failed to load entries: " + st.Err.Error() + " (r to retry)", true
	}

	parts := []string{humanize.Comma(int64(s.store.Len())) + " entries"}
	if n := s.store.Evicted(); n > 0 {
		evicted := humanize.Comma(int64(n)) + " evicted"
		if st.PossiblyIncomplete {
			evicted += ", window may be incomplete"
		}
		parts = append(parts, evicted)
	}
	if m.filter != "" {
		parts = append(parts, fmt.Sprintf("%s matching %q", humanize.Comma(int64(len(m.entries))), m.filter))
	}

	switch {
	case st.State == scheduler.Inflight && st.Attempts > 0:
		parts = append(parts, fmt.Sprintf("retrying (attempt %d)", st.Attempts+1))
	case s.store.Exhausted() && m.follow:
		parts = append(parts, "following")
	case s.store.Exhausted():
		parts = append(parts, domain.ErrCursorExhausted.Error())
	case st.State == scheduler.Inflight:
		parts = append(parts, "loading")
	}

	if top := s.store.TopTargets(topTargetsLen); len(top) > 0 {
		names := make([]string, len(top))
		for i, it := range top {
			names[i] = fmt.Sprintf("%s %s", it.Item, humanize.Comma(int64(it.Count)))
		}
		parts = append(parts, "top: "+strings.Join(names, ", "))
	}
	return strings.Join(parts, " · "), false
}
