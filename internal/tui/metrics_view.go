package tui

import (
	"fmt"
	"strings"
	"time"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/hittest"
	"nathanbeddoewebdev/sirius/internal/samplestore"
	"nathanbeddoewebdev/sirius/internal/scheduler"
	"nathanbeddoewebdev/sirius/internal/services/viewprefs"
	"nathanbeddoewebdev/sirius/internal/telemetry"
	"nathanbeddoewebdev/sirius/internal/timewindow"
	"nathanbeddoewebdev/sirius/internal/tui/components"
	"nathanbeddoewebdev/sirius/internal/tui/styles"
	"nathanbeddoewebdev/sirius/internal/viewport"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

const (
	headerRows    = 2
	footerRows    = 2
	statusRows    = 1
	overviewRows  = 2
	paneTitleRows = 1
	minPlotRows   = 3

	liveInterval  = time.Second
	frameInterval = 16 * time.Millisecond
	animateAlpha  = 0.35
)

// --- Messages ---

// samplesChangedMsg is sent whenever the scheduler merged, failed or
// cancelled something the chart shows.
type samplesChangedMsg struct{}

type liveTickMsg time.Time

type frameMsg struct{}

// MetricsViewOptions configures the metrics chart.
type MetricsViewOptions struct {
	Backend    domain.Backend
	BackendURL string
	ProcessID  string
	Metrics    []domain.MetricInfo
	Span       time.Duration
	Scheduler  scheduler.Config
	Telemetry  *telemetry.Metrics
	Prefs      *viewprefs.Service
	Logger     zerolog.Logger
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// metricsSession owns the stores and controllers of one chart. It is shared
// by every copy of the bubbletea model.
type metricsSession struct {
	opts    MetricsViewOptions
	now     func() time.Time
	store   *samplestore.Store
	sched   *scheduler.Scheduler
	ctrl    *viewport.Controller
	tester  *hittest.Tester
	ids     []domain.MetricID
	changed chan struct{}
}

func newMetricsSession(opts MetricsViewOptions) *metricsSession {
	s := &metricsSession{
		opts:    opts,
		now:     opts.Now,
		tester:  hittest.New(hittest.DefaultMaxDistance),
		changed: make(chan struct{}, 1),
	}
	if s.now == nil {
		s.now = time.Now
	}
	for _, m := range opts.Metrics {
		s.ids = append(s.ids, domain.MetricID{ProcessID: opts.ProcessID, Name: m.Name})
	}

	s.store = samplestore.New(samplestore.WithLogger(opts.Logger))
	s.sched = scheduler.New(opts.Backend, s.store,
		scheduler.WithConfig(opts.Scheduler),
		scheduler.WithLogger(opts.Logger),
		scheduler.WithMetrics(opts.Telemetry),
		scheduler.WithNotify(s.signal),
	)

	end := s.now()
	initial := timewindow.Window{Start: end.Add(-opts.Span), End: end, Resolution: time.Second}
	s.ctrl = viewport.New(initial, 80, 10,
		viewport.WithLive(s.now),
		viewport.WithObserver(s.request),
	)
	s.request(s.ctrl.Window())
	return s
}

// signal wakes the model without blocking the scheduler.
func (s *metricsSession) signal() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *metricsSession) waitForChange() tea.Cmd {
	return func() tea.Msg {
		<-s.changed
		return samplesChangedMsg{}
	}
}

// request loads w for every metric and cancels what scrolled away.
func (s *metricsSession) request(w timewindow.Window) {
	s.sched.SetVisible(w)
	for _, id := range s.ids {
		s.sched.Request(id, w)
	}
}

// retryFailed clears terminal failures at the current tier and requests
// again.
func (s *metricsSession) retryFailed() {
	tier := s.ctrl.Tier()
	for _, id := range s.ids {
		s.sched.Retry(id, tier)
	}
	s.request(s.ctrl.Window())
}

// atLiveEdge reports whether the window ends within two buckets of now.
func (s *metricsSession) atLiveEdge() bool {
	return s.now().Sub(s.ctrl.Window().End) <= 2*s.ctrl.Stats().Bucket
}

// --- Layout ---

type metricsLayout struct {
	plotWidth int
	plotRows  int
	paneRows  int
	chartTop  int
}

func (m metricsViewModel) layout() metricsLayout {
	n := max(len(m.session.ids), 1)
	tooltipRows := len(m.session.ids) + 3
	avail := m.height - headerRows - footerRows - statusRows - (overviewRows + 1) - tooltipRows
	paneRows := max(avail/n, paneTitleRows+minPlotRows+components.XAxisRows)
	return metricsLayout{
		plotWidth: max(m.width-components.PlotOffset-1, 10),
		plotRows:  paneRows - paneTitleRows - components.XAxisRows,
		paneRows:  paneRows,
		chartTop:  headerRows,
	}
}

// --- Metrics view model ---

type metricsViewModel struct {
	session *metricsSession

	width  int
	height int

	follow   bool
	dragging bool
	lastX    int

	hovering bool
	hoverX   int
	hoverY   int

	quitting bool
}

// RunMetricsView starts the full-window metrics chart and blocks until the
// user quits.
func RunMetricsView(opts MetricsViewOptions) error {
	m := newMetricsViewModel(opts)
	defer m.session.sched.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion())
	result, err := p.Run()
	if err != nil {
		return fmt.Errorf("failed to run metrics view: %w", err)
	}

	final := result.(metricsViewModel)
	final.savePrefs()
	return nil
}

func newMetricsViewModel(opts MetricsViewOptions) metricsViewModel {
	return metricsViewModel{
		session: newMetricsSession(opts),
		follow:  true,
	}
}

func (m metricsViewModel) Init() tea.Cmd {
	return tea.Batch(m.session.waitForChange(), liveTick())
}

func liveTick() tea.Cmd {
	return tea.Tick(liveInterval, func(t time.Time) tea.Msg { return liveTickMsg(t) })
}

func frameTick() tea.Cmd {
	return tea.Tick(frameInterval, func(time.Time) tea.Msg { return frameMsg{} })
}

func (m metricsViewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	s := m.session
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		l := m.layout()
		s.ctrl.Resize(l.plotWidth, l.plotRows)
		return m, nil

	case samplesChangedMsg:
		return m, s.waitForChange()

	case liveTickMsg:
		if m.follow && !s.ctrl.Animating() {
			w := s.ctrl.Window()
			if d := s.now().Sub(w.End); d > 0 {
				s.ctrl.Pan(d)
			} else {
				s.request(w)
			}
		}
		return m, liveTick()

	case frameMsg:
		if s.ctrl.Step(animateAlpha) {
			return m, frameTick()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}
	return m, nil
}

func (m metricsViewModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.session
	w := s.ctrl.Window()
	center := float64(m.layout().plotWidth) / 2

	switch msg.String() {
	case "q", "esc", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "left", "h":
		s.ctrl.Pan(-w.Duration() / 10)
		m.follow = false
	case "right", "l":
		s.ctrl.Pan(w.Duration() / 10)
		m.follow = s.atLiveEdge()
	case "+", "=", "up", "k":
		s.ctrl.Scroll(-1, center)
	case "-", "down", "j":
		s.ctrl.Scroll(1, center)
		m.follow = m.follow || s.atLiveEdge()
	case "f":
		m.follow = !m.follow
		if m.follow {
			return m, m.jumpToNow(w.Duration())
		}
	case "0":
		m.follow = true
		return m, m.jumpToNow(s.opts.Span)
	case "r":
		s.retryFailed()
	}
	return m, nil
}

// jumpToNow animates to a window of span ending now.
func (m metricsViewModel) jumpToNow(span time.Duration) tea.Cmd {
	s := m.session
	end := s.now()
	s.ctrl.AnimateTo(timewindow.Window{Start: end.Add(-span), End: end, Resolution: s.ctrl.Window().Resolution})
	return frameTick()
}

func (m metricsViewModel) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	s := m.session
	l := m.layout()
	x := float64(msg.X - components.PlotOffset)

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		s.ctrl.Scroll(-1, x)
		return m, nil
	case tea.MouseButtonWheelDown:
		s.ctrl.Scroll(1, x)
		m.follow = m.follow || s.atLiveEdge()
		return m, nil
	case tea.MouseButtonWheelLeft:
		s.ctrl.Drag(float64(l.plotWidth) / 20)
		m.follow = false
		return m, nil
	case tea.MouseButtonWheelRight:
		s.ctrl.Drag(-float64(l.plotWidth) / 20)
		m.follow = s.atLiveEdge()
		return m, nil
	}

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button == tea.MouseButtonLeft {
			m.dragging = true
			m.lastX = msg.X
		}
	case tea.MouseActionRelease:
		m.dragging = false
	case tea.MouseActionMotion:
		if m.dragging {
			s.ctrl.Drag(float64(msg.X - m.lastX))
			m.lastX = msg.X
			m.follow = s.atLiveEdge()
		}
	}
	m.hovering = true
	m.hoverX, m.hoverY = msg.X, msg.Y
	return m, nil
}

// --- Rendering ---

// paneFrame holds what one pane draws, computed from a single snapshot.
type paneFrame struct {
	id     domain.MetricID
	info   domain.MetricInfo
	color  lipgloss.Color
	points []domain.DataPoint
	// valueLo and valueHi are the controller range; lo and hi include the
	// padding and are what the chart axis spans.
	valueLo, valueHi float64
	lo, hi           float64
}

// frames reads the snapshot once per render. It leaves the controller's value
// range set to the last pane.
func (m metricsViewModel) frames(snap samplestore.Snapshot, l metricsLayout) []paneFrame {
	s := m.session
	w := s.ctrl.Window()
	ladder := s.store.Ladder()

	out := make([]paneFrame, len(s.ids))
	for i, id := range s.ids {
		f := paneFrame{id: id, info: s.opts.Metrics[i], color: styles.SeriesColor(i)}
		f.points = snap.VisiblePoints(id, w, ladder)
		lo, hi, ok := snap.Extent([]domain.MetricID{id}, w, ladder)
		if !ok {
			lo, hi = 0, 1
		}
		s.ctrl.SetValueRange(lo, hi)
		f.valueLo, f.valueHi = s.ctrl.ValueRange()
		f.lo, f.hi = s.ctrl.YToValue(float64(l.plotRows)), s.ctrl.YToValue(0)
		out[i] = f
	}
	return out
}

// hits runs the hit test for every pane at the hovered column. Y coordinates
// are translated to screen rows so Nearest compares across panes.
func (m metricsViewModel) hits(frames []paneFrame, l metricsLayout) []hittest.Hit {
	if !m.hovering {
		return nil
	}
	s := m.session
	x := float64(m.hoverX - components.PlotOffset)
	if x < 0 || x >= float64(l.plotWidth) {
		return nil
	}
	y := float64(m.hoverY - l.chartTop)
	if y < 0 || y >= float64(len(frames)*l.paneRows) {
		return nil
	}

	var out []hittest.Hit
	for i, f := range frames {
		top := float64(i*l.paneRows + paneTitleRows)
		s.ctrl.SetValueRange(f.valueLo, f.valueHi)
		for _, h := range s.tester.HitTest(s.ctrl, []hittest.Series{{Metric: f.id, Points: f.points}}, x, y-top) {
			h.Y += top
			out = append(out, h)
		}
	}
	return out
}

func (m metricsViewModel) View() string {
	if m.quitting || m.width == 0 {
		return ""
	}
	s := m.session
	l := m.layout()
	snap := s.store.Snapshot()
	w := s.ctrl.Window()

	header := components.Header(m.width, "metrics "+shortID(s.opts.ProcessID), s.opts.BackendURL)

	frames := m.frames(snap, l)
	hits := m.hits(frames, l)

	var panes []string
	for _, f := range frames {
		title := m.paneTitle(f)
		chart := components.TimeChart(w, l.plotWidth, l.plotRows, f.lo, f.hi, []components.ChartSeries{{
			Name:   f.info.Name,
			Unit:   f.info.Unit,
			Color:  f.color,
			Points: f.points,
		}})
		panes = append(panes, lipgloss.JoinVertical(lipgloss.Left, title, chart))
	}
	if len(panes) == 0 {
		panes = append(panes, styles.MutedText.Render("  no metrics selected"))
	}

	overview := m.overview(snap, l)
	tooltip := m.tooltip(frames, hits)
	status := components.StatusBar(m.width, m.statusLine(snap), false)
	footer := components.Footer(m.width, []components.KeyBinding{
		{Key: "←/→", Desc: "pan"},
		{Key: "+/-", Desc: "zoom"},
		{Key: "f", Desc: "follow"},
		{Key: "0", Desc: "reset"},
		{Key: "r", Desc: "retry"},
		{Key: "q", Desc: "quit"},
	})

	content := lipgloss.JoinVertical(lipgloss.Left, append(panes, overview, tooltip)...)
	contentHeight := m.height - lipgloss.Height(header) - lipgloss.Height(status) - lipgloss.Height(footer)
	content = lipgloss.NewStyle().Height(max(contentHeight, 0)).MaxHeight(max(contentHeight, 0)).Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, status, footer)
}

func (m metricsViewModel) paneTitle(f paneFrame) string {
	s := m.session
	st := s.sched.Status(f.id, s.ctrl.Tier())
	marker := lipgloss.NewStyle().Foreground(f.color).Render("●")
	title := fmt.Sprintf("%s %s %s  %s", marker, styles.Label.Render(f.info.Name),
		styles.MutedText.Render("("+f.info.Unit+")"), styles.StatusIndicator(st.State))

	switch {
	case st.State == scheduler.Failed && st.Err != nil:
		title += "  " + styles.ErrorText.Render(st.Err.Error())
	case st.State == scheduler.Inflight && st.Attempts > 0 && !st.RetryAt.IsZero():
		title += "  " + styles.WarningText.Render(fmt.Sprintf("attempt %d, retrying %s",
			st.Attempts+1, humanize.RelTime(st.RetryAt, s.now(), "ago", "from now")))
	default:
		if n := len(s.sched.PendingRegions(f.id)); n > 0 {
			title += "  " + styles.MutedText.Render(fmt.Sprintf("%d regions loading", n))
		}
	}
	return title
}

// overview draws the coarsest loaded series of each metric across everything
// covered so far.
func (m metricsViewModel) overview(snap samplestore.Snapshot, l metricsLayout) string {
	s := m.session
	w := s.ctrl.Window()
	extent := w

	coarsest := map[domain.MetricID]*samplestore.Series{}
	for _, k := range snap.Keys() {
		ser, ok := snap.Series(k.Metric, k.Tier)
		if !ok || ser.Len() == 0 {
			continue
		}
		coarsest[k.Metric] = ser
		extent = extent.Hull(ser.Covered)
	}

	var series [][]domain.DataPoint
	for _, id := range s.ids {
		if ser, ok := coarsest[id]; ok {
			series = append(series, ser.Points)
		}
	}
	return components.Overview(extent, w, l.plotWidth+components.PlotOffset, overviewRows, series)
}

func (m metricsViewModel) tooltip(frames []paneFrame, hits []hittest.Hit) string {
	nearest, ok := hittest.Nearest(hits, float64(m.hoverX-components.PlotOffset), float64(m.hoverY-headerRows))
	if !ok {
		return ""
	}
	byID := map[domain.MetricID]paneFrame{}
	for _, f := range frames {
		byID[f.id] = f
	}

	rows := []components.TooltipRow{}
	add := func(h hittest.Hit) {
		f := byID[h.Metric]
		rows = append(rows, components.TooltipRow{Name: f.info.Name, Unit: f.info.Unit, Color: f.color, Point: h.Point})
	}
	add(nearest)
	for _, h := range hits {
		if h.Metric != nearest.Metric {
			add(h)
		}
	}
	return components.Tooltip(rows)
}

func (m metricsViewModel) statusLine(snap samplestore.Snapshot) string {
	s := m.session
	stats := s.ctrl.Stats()
	parts := []string{
		"span " + stats.Span.String(),
		fmt.Sprintf("tier %d (%s)", stats.Tier, stats.Bucket),
		humanize.Comma(int64(snap.TotalPoints())) + " points",
	}
	if m.follow {
		parts = append(parts, "live")
	}
	return strings.Join(parts, " · ")
}

func (m metricsViewModel) savePrefs() {
	s := m.session
	if s.opts.Prefs == nil {
		return
	}
	names := make([]string, len(s.opts.Metrics))
	for i, info := range s.opts.Metrics {
		names[i] = info.Name
	}
	s.opts.Prefs.SaveChart(s.opts.ProcessID, s.ctrl.Window().Duration(), names)
}

// shortID abbreviates a process id for the header.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
