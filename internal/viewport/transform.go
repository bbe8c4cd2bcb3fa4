package viewport

import (
	"time"

	"nathanbeddoewebdev/sirius/internal/timewindow"
)

// Viewport is the per-frame description of what is drawn where.
type Viewport struct {
	Window  timewindow.Window
	ValueLo float64
	ValueHi float64
	Width   int
	Height  int
}

// Stats describes the level of detail of the current window.
type Stats struct {
	Span         time.Duration
	Tier         timewindow.Tier
	Bucket       time.Duration
	FirstSegment int64
	LastSegment  int64
}

// Viewport returns the current frame description.
func (c *Controller) Viewport() Viewport {
	return Viewport{Window: c.window, ValueLo: c.valueLo, ValueHi: c.valueHi, Width: c.width, Height: c.height}
}

// Stats returns the level of detail of the current window.
func (c *Controller) Stats() Stats {
	tier := c.Tier()
	first, last := c.ladder.SegmentRange(c.window, tier)
	return Stats{
		Span:         c.window.Duration(),
		Tier:         tier,
		Bucket:       c.ladder.Duration(tier),
		FirstSegment: first,
		LastSegment:  last,
	}
}

// TimeToX maps t to a pixel column.
func (c *Controller) TimeToX(t time.Time) float64 {
	return float64(t.Sub(c.window.Start)) / float64(c.window.Duration()) * float64(c.width)
}

// XToTime maps a pixel column back to a time.
func (c *Controller) XToTime(x float64) time.Time {
	return c.window.Start.Add(time.Duration(x / float64(c.width) * float64(c.window.Duration())))
}

// SetValueRange sets the value extent ValueToY maps onto the height. A flat
// range is widened so every value still maps to a finite row.
func (c *Controller) SetValueRange(lo, hi float64) {
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi == lo {
		pad := max(abs(lo)*0.1, 1)
		lo, hi = lo-pad, hi+pad
	}
	c.valueLo, c.valueHi = lo, hi
}

// ValueRange returns the current value extent.
func (c *Controller) ValueRange() (lo, hi float64) { return c.valueLo, c.valueHi }

// ValueToY maps v to a pixel row, 0 at the top. The padding fraction of the
// height is kept clear at the top and bottom.
func (c *Controller) ValueToY(v float64) float64 {
	h := float64(c.height)
	margin := c.padding * h
	frac := (v - c.valueLo) / (c.valueHi - c.valueLo)
	return h - margin - frac*(h-2*margin)
}

// YToValue maps a pixel row back to a value.
func (c *Controller) YToValue(y float64) float64 {
	h := float64(c.height)
	margin := c.padding * h
	frac := (h - margin - y) / (h - 2*margin)
	return c.valueLo + frac*(c.valueHi-c.valueLo)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
