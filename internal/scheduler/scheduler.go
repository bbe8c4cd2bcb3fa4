// Package scheduler decides what to fetch for the visible window, keeps
// overlapping requests from reaching the backend twice, and merges results
// into the stores.
//
// The scheduler is the only writer of the stores it is given. Each fetch runs
// in its own goroutine, so the UI loop never waits on the network.
package scheduler

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/logstore"
	"nathanbeddoewebdev/sirius/internal/retry"
	"nathanbeddoewebdev/sirius/internal/samplestore"
	"nathanbeddoewebdev/sirius/internal/telemetry"
	"nathanbeddoewebdev/sirius/internal/timewindow"
)

var (
	// ErrClosed is returned for requests made after Close.
	ErrClosed = errors.New("scheduler closed")

	// ErrDiscarded is reported by a fetch whose result arrived after its key
	// was invalidated or the viewport moved away.
	ErrDiscarded = errors.New("fetch result discarded")

	errNoLogStore = errors.New("scheduler has no log store")
)

// Config tunes the scheduler.
type Config struct {
	Retry retry.Config
	// PrefetchMargin is the fraction of the visible span, on each side, that
	// in-flight fetches may cover before they are cancelled.
	PrefetchMargin float64
	// SampleBudget is the point count the sample store is evicted down to
	// after every merge.
	SampleBudget int
	// LogPageSize is the number of entries requested per log page.
	LogPageSize int
}

// DefaultConfig returns the scheduler defaults.
func DefaultConfig() Config {
	return Config{
		Retry:          retry.DefaultConfig(),
		PrefetchMargin: 0.25,
		SampleBudget:   200_000,
		LogPageSize:    1000,
	}
}

// Scheduler coordinates fetches for one view.
type Scheduler struct {
	backend   domain.Backend
	samples   *samplestore.Store
	logs      *logstore.Store
	processID string

	cfg     Config
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
	now     func() time.Time
	notify  func()

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu         sync.Mutex
	keys       map[samplestore.Key]*keyState
	nextID     uint64
	visible    timewindow.Window
	hasVisible bool
	closed     bool

	logGroup  singleflight.Group
	logMu         sync.Mutex
	logStatus     KeyStatus
	logIncomplete bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(s *Scheduler) { s.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithMetrics records fetch outcomes into m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithTracer overrides the tracer used for backend spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) { s.tracer = t }
}

// WithClock overrides the clock used for retry timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithNotify registers a callback run after every change a view should
// redraw for. It is called without any scheduler lock held.
func WithNotify(fn func()) Option {
	return func(s *Scheduler) { s.notify = fn }
}

// WithLogs attaches the log store of processID.
func WithLogs(processID string, store *logstore.Store) Option {
	return func(s *Scheduler) {
		s.processID = processID
		s.logs = store
	}
}

// New returns a scheduler that fills samples from backend.
func New(backend domain.Backend, samples *samplestore.Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		backend: backend,
		samples: samples,
		cfg:     DefaultConfig(),
		logger:  zerolog.Nop(),
		tracer:  telemetry.Tracer(),
		now:     time.Now,
		notify:  func() {},
		keys:    map[samplestore.Key]*keyState{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.Retry.MaxAttempts <= 0 {
		s.cfg.Retry.MaxAttempts = 1
	}
	if s.cfg.LogPageSize <= 0 {
		s.cfg.LogPageSize = DefaultConfig().LogPageSize
	}
	s.ctx, s.stop = context.WithCancel(context.Background())
	return s
}

// Request makes sure window is being loaded for metric at the window's tier.
// Parts already stored are skipped, parts already in flight are coalesced
// onto the running fetch, and only the remainder is fetched.
func (s *Scheduler) Request(metric domain.MetricID, window timewindow.Window) *Ticket {
	plan := s.samples.EnsureCoverage(metric, window)
	key := samplestore.Key{Metric: metric, Tier: plan.Tier}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return &Ticket{err: ErrClosed}
	}
	ks := s.keyStateLocked(key)
	if ks.status.State == Failed {
		return &Ticket{err: ks.status.Err}
	}

	t := &Ticket{}
	if plan.Empty() {
		return t
	}

	var busy []timewindow.Window
	for _, f := range ks.liveFetches() {
		busy = append(busy, f.window)
		for _, g := range plan.Gaps {
			if f.window.Intersects(g) {
				t.fetches = append(t.fetches, f)
				t.coalesced++
				break
			}
		}
	}
	for _, g := range plan.Gaps {
		for _, rem := range g.Subtract(busy...) {
			t.fetches = append(t.fetches, s.startLocked(ks, rem))
			t.issued++
		}
	}
	s.metrics.Coalesced(t.coalesced)
	if t.issued > 0 || t.coalesced > 0 {
		s.logger.Debug().
			Str("metric", metric.String()).
			Int("tier", int(plan.Tier)).
			Int("issued", t.issued).
			Int("coalesced", t.coalesced).
			Msg("coverage requested")
	}
	return t
}

// SetVisible records the window on screen and cancels in-flight fetches that
// no longer intersect it plus the prefetch margin. It returns the number of
// fetches cancelled.
func (s *Scheduler) SetVisible(w timewindow.Window) int {
	s.samples.SetVisible(w)

	s.mu.Lock()
	s.visible = w
	s.hasVisible = true
	keep := w.Expand(s.cfg.PrefetchMargin)
	cancelled := 0
	for _, ks := range s.keys {
		for _, f := range ks.inflight {
			if f.cancelled || f.window.Intersects(keep) {
				continue
			}
			f.cancelled = true
			f.cancel()
			cancelled++
		}
	}
	s.mu.Unlock()

	s.metrics.Cancelled(cancelled)
	if cancelled > 0 {
		s.logger.Debug().Int("cancelled", cancelled).Str("visible", w.String()).Msg("cancelled off-screen fetches")
	}
	return cancelled
}

// Status returns the state of (metric, tier).
func (s *Scheduler) Status(metric domain.MetricID, tier timewindow.Tier) KeyStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ks, ok := s.keys[samplestore.Key{Metric: metric, Tier: tier}]; ok {
		return ks.status
	}
	return KeyStatus{}
}

// PendingRegions returns the windows of metric still being fetched, at any
// tier, ordered by start.
func (s *Scheduler) PendingRegions(metric domain.MetricID) []timewindow.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []timewindow.Window
	for key, ks := range s.keys {
		if key.Metric != metric {
			continue
		}
		for _, f := range ks.liveFetches() {
			out = append(out, f.window)
		}
	}
	slices.SortFunc(out, func(a, b timewindow.Window) int { return a.Start.Compare(b.Start) })
	return out
}

// Retry clears a terminal failure so the key fetches again on the next
// request.
func (s *Scheduler) Retry(metric domain.MetricID, tier timewindow.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ks, ok := s.keys[samplestore.Key{Metric: metric, Tier: tier}]; ok && ks.status.State == Failed {
		ks.status = KeyStatus{}
	}
}

// Invalidate drops everything stored for metric and discards the result of
// any fetch still running for it. Used to reload a live view.
func (s *Scheduler) Invalidate(metric domain.MetricID) {
	s.mu.Lock()
	for key, ks := range s.keys {
		if key.Metric != metric {
			continue
		}
		ks.gen++
		for _, f := range ks.inflight {
			f.cancelled = true
			f.cancel()
		}
		ks.parked = nil
		ks.status = KeyStatus{}
	}
	for _, key := range s.samples.Snapshot().Keys() {
		if key.Metric == metric {
			s.samples.Reset(key.Metric, key.Tier)
		}
	}
	s.mu.Unlock()
	s.notify()
}

// Close cancels every fetch and waits for their goroutines to exit.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stop()
	s.wg.Wait()
}

func (s *Scheduler) keyStateLocked(key samplestore.Key) *keyState {
	ks, ok := s.keys[key]
	if !ok {
		ks = newKeyState(key)
		s.keys[key] = ks
	}
	return ks
}

func (s *Scheduler) startLocked(ks *keyState, w timewindow.Window) *fetch {
	s.nextID++
	ctx, cancel := context.WithCancel(s.ctx)
	f := &fetch{id: s.nextID, window: w, gen: ks.gen, cancel: cancel, done: make(chan struct{})}
	ks.inflight[f.id] = f
	ks.status.State = Inflight

	s.wg.Add(1)
	go s.runSamples(ctx, ks.key, f)
	return f
}

// liveFetches returns the fetches that have not been cancelled, oldest first.
func (ks *keyState) liveFetches() []*fetch {
	out := make([]*fetch, 0, len(ks.inflight))
	for _, f := range ks.inflight {
		if !f.cancelled {
			out = append(out, f)
		}
	}
	slices.SortFunc(out, func(a, b *fetch) int { return cmp.Compare(a.id, b.id) })
	return out
}

// settleLocked moves a key out of Inflight once nothing is running for it.
func (ks *keyState) settleLocked(success bool) {
	if len(ks.liveFetches()) > 0 || ks.status.State == Failed {
		return
	}
	if success {
		ks.status = KeyStatus{State: Fulfilled}
		return
	}
	if ks.status.State == Inflight {
		ks.status.State = Idle
		ks.status.RetryAt = time.Time{}
	}
}

func (s *Scheduler) relevantLocked(w timewindow.Window) bool {
	if !s.hasVisible {
		return true
	}
	return w.Intersects(s.visible.Expand(s.cfg.PrefetchMargin))
}
