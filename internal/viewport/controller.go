// Package viewport turns pan and zoom gestures into time windows and maps
// between data space and screen space.
//
// A Controller is driven from the UI loop only and is not safe for concurrent
// use.
package viewport

import (
	"math"
	"time"

	"nathanbeddoewebdev/sirius/internal/timewindow"
)

const (
	// DefaultZoomStep is the fraction the span shrinks by per wheel notch.
	DefaultZoomStep = 0.1
	// DefaultPadding is the fraction of the height left empty above and
	// below the plotted values.
	DefaultPadding = 0.1
	// DefaultMaxSpan is the widest window a user can zoom out to.
	DefaultMaxSpan = 10 * 365 * 24 * time.Hour
)

// Observer is notified with the new window after every change.
type Observer func(timewindow.Window)

// Controller owns the visible window of one chart.
type Controller struct {
	ladder timewindow.Ladder
	window timewindow.Window
	width  int
	height int

	target    timewindow.Window
	animating bool

	valueLo, valueHi float64

	live    bool
	now     func() time.Time
	oldest  time.Time
	minSpan time.Duration
	maxSpan time.Duration

	zoomStep  float64
	padding   float64
	observers []Observer
}

// Option configures a Controller.
type Option func(*Controller)

// WithLadder sets the tier ladder. The default is timewindow.DefaultLadder.
func WithLadder(l timewindow.Ladder) Option {
	return func(c *Controller) { c.ladder = l }
}

// WithLive keeps the window's end at or before now().
func WithLive(now func() time.Time) Option {
	return func(c *Controller) {
		c.live = true
		c.now = now
	}
}

// WithOldest keeps the window's start at or after t.
func WithOldest(t time.Time) Option {
	return func(c *Controller) { c.oldest = t }
}

// WithZoomStep sets how much one wheel notch zooms.
func WithZoomStep(step float64) Option {
	return func(c *Controller) {
		if step > 0 && step < 1 {
			c.zoomStep = step
		}
	}
}

// WithPadding sets the vertical padding fraction used by ValueToY.
func WithPadding(p float64) Option {
	return func(c *Controller) {
		if p >= 0 && p < 0.5 {
			c.padding = p
		}
	}
}

// WithSpanLimits overrides the narrowest and widest allowed span.
func WithSpanLimits(minSpan, maxSpan time.Duration) Option {
	return func(c *Controller) {
		c.minSpan = minSpan
		c.maxSpan = maxSpan
	}
}

// WithObserver registers fn to be told about every window change.
func WithObserver(fn Observer) Option {
	return func(c *Controller) { c.observers = append(c.observers, fn) }
}

// New returns a controller showing w on a width x height surface.
func New(w timewindow.Window, width, height int, opts ...Option) *Controller {
	c := &Controller{
		ladder:   timewindow.DefaultLadder,
		width:    max(width, 1),
		height:   max(height, 1),
		now:      time.Now,
		maxSpan:  DefaultMaxSpan,
		zoomStep: DefaultZoomStep,
		padding:  DefaultPadding,
		valueLo:  0,
		valueHi:  1,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.minSpan <= 0 {
		c.minSpan = 10 * c.ladder.Duration(timewindow.Raw)
	}
	c.window = c.retier(c.clamp(c.clampSpan(w, w.Start)))
	return c
}

// Observe registers fn for window changes.
func (c *Controller) Observe(fn Observer) {
	c.observers = append(c.observers, fn)
}

// Window returns the current window.
func (c *Controller) Window() timewindow.Window { return c.window }

// Ladder returns the tier ladder used to pick resolutions.
func (c *Controller) Ladder() timewindow.Ladder { return c.ladder }

// Size returns the surface size in pixels.
func (c *Controller) Size() (width, height int) { return c.width, c.height }

// Tier returns the tier of the current window.
func (c *Controller) Tier() timewindow.Tier { return c.ladder.Floor(c.window.Resolution) }

// Resize changes the surface size. The tier is recomputed since the number
// of pixel columns changed.
func (c *Controller) Resize(width, height int) {
	width, height = max(width, 1), max(height, 1)
	if width == c.width && height == c.height {
		return
	}
	c.width, c.height = width, height
	c.set(c.retier(c.window))
}

// Drag pans by dx pixels. Dragging right moves the window back in time.
func (c *Controller) Drag(dx float64) {
	if dx == 0 {
		return
	}
	d := time.Duration(-dx / float64(c.width) * float64(c.window.Duration()))
	c.Pan(d)
}

// Pan translates the window by d, keeping its tier.
func (c *Controller) Pan(d time.Duration) {
	c.animating = false
	c.set(c.clamp(c.window.Shift(d)))
}

// Scroll zooms around pixel column x. Negative dy (wheel up) zooms in, one
// zoom step per unit.
func (c *Controller) Scroll(dy, x float64) {
	if dy == 0 {
		return
	}
	c.ZoomAt(math.Pow(1-c.zoomStep, -dy), x)
}

// Pinch zooms around x by a gesture scale; scale > 1 zooms in.
func (c *Controller) Pinch(scale, x float64) {
	if scale <= 0 {
		return
	}
	c.ZoomAt(1/scale, x)
}

// ZoomAt multiplies the span by factor while keeping the time under pixel x
// at the same pixel.
func (c *Controller) ZoomAt(factor, x float64) {
	if factor <= 0 || factor == 1 {
		return
	}
	c.animating = false
	x = min(max(x, 0), float64(c.width))
	anchor := c.XToTime(x)
	frac := x / float64(c.width)

	scaled := float64(c.window.Duration()) * factor
	span := time.Duration(min(max(scaled, float64(c.minSpan)), float64(c.maxSpan)))
	start := anchor.Add(-time.Duration(frac * float64(span)))
	next := timewindow.Window{Start: start, End: start.Add(span), Resolution: c.window.Resolution}
	c.set(c.retier(c.clamp(next)))
}

// SetWindow jumps to w.
func (c *Controller) SetWindow(w timewindow.Window) {
	c.animating = false
	c.set(c.retier(c.clamp(c.clampSpan(w, w.Start))))
}

// AnimateTo sets a desired window that Step moves towards.
func (c *Controller) AnimateTo(w timewindow.Window) {
	c.target = c.clamp(c.clampSpan(w, w.Start))
	c.animating = true
}

// Animating reports whether a desired window is still pending.
func (c *Controller) Animating() bool { return c.animating }

// Step moves the current window a fraction alpha of the way to the desired
// window and reports whether more steps are needed.
func (c *Controller) Step(alpha float64) bool {
	if !c.animating {
		return false
	}
	alpha = min(max(alpha, 0), 1)
	lerp := func(a, b time.Time) time.Time {
		return a.Add(time.Duration(alpha * float64(b.Sub(a))))
	}
	next := timewindow.Window{
		Start:      lerp(c.window.Start, c.target.Start),
		End:        lerp(c.window.End, c.target.End),
		Resolution: c.window.Resolution,
	}
	tolerance := c.window.Duration() / time.Duration(c.width)
	if alpha >= 1 || (absDur(next.Start.Sub(c.target.Start)) <= tolerance && absDur(next.End.Sub(c.target.End)) <= tolerance) {
		next = c.target
		c.animating = false
	}
	c.set(c.retier(next))
	return c.animating
}

// clampSpan keeps the span of w within limits, anchored at anchor.
func (c *Controller) clampSpan(w timewindow.Window, anchor time.Time) timewindow.Window {
	span := w.Duration()
	if span >= c.minSpan && span <= c.maxSpan {
		return w
	}
	span = min(max(span, c.minSpan), c.maxSpan)
	return timewindow.Window{Start: anchor, End: anchor.Add(span), Resolution: w.Resolution}
}

// clamp shifts w so it ends no later than now on a live view and starts no
// earlier than the oldest known data. The live bound wins when both cannot
// hold.
func (c *Controller) clamp(w timewindow.Window) timewindow.Window {
	if !c.oldest.IsZero() && w.Start.Before(c.oldest) {
		w = w.Shift(c.oldest.Sub(w.Start))
	}
	if c.live {
		if now := c.now(); w.End.After(now) {
			w = w.Shift(now.Sub(w.End))
		}
	}
	return w
}

func (c *Controller) retier(w timewindow.Window) timewindow.Window {
	return w.WithResolution(c.ladder.Duration(c.ladder.ResolutionForPixelWidth(w, c.width)))
}

func (c *Controller) set(w timewindow.Window) {
	if w == c.window {
		return
	}
	c.window = w
	for _, fn := range c.observers {
		fn(w)
	}
}

func absDur(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
