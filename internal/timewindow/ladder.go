package timewindow

import (
	"errors"
	"fmt"
	"time"
)

// Tier indexes a rung of a Ladder. Tier 0 is raw data.
type Tier int

// Raw is the finest tier: points are returned as recorded.
const Raw Tier = 0

// Ladder is a fixed geometric sequence of bucket durations. Rung i has a
// bucket duration of base * factor^i.
type Ladder struct {
	base   time.Duration
	factor int64
	count  int
}

// DefaultLadder starts at one second and multiplies by four for twelve tiers,
// so the coarsest bucket is a little over 48 days.
var DefaultLadder = Ladder{base: time.Second, factor: 4, count: 12}

// NewLadder returns a ladder with count tiers.
func NewLadder(base time.Duration, factor int64, count int) (Ladder, error) {
	if base <= 0 {
		return Ladder{}, errors.New("ladder base must be positive")
	}
	if factor < 2 {
		return Ladder{}, fmt.Errorf("ladder factor must be at least 2, got %d", factor)
	}
	if count < 1 {
		return Ladder{}, fmt.Errorf("ladder needs at least one tier, got %d", count)
	}
	return Ladder{base: base, factor: factor, count: count}, nil
}

// Tiers returns the number of rungs.
func (l Ladder) Tiers() int { return l.count }

// Coarsest returns the last tier.
func (l Ladder) Coarsest() Tier { return Tier(l.count - 1) }

// Duration returns the bucket duration of t, clamped to the ladder.
func (l Ladder) Duration(t Tier) time.Duration {
	t = l.clamp(t)
	d := l.base
	for range int(t) {
		d *= time.Duration(l.factor)
	}
	return d
}

// TierOf maps a resolution to its tier. ok is false when res is not exactly a
// rung of the ladder.
func (l Ladder) TierOf(res time.Duration) (Tier, bool) {
	for t := Raw; t <= l.Coarsest(); t++ {
		if l.Duration(t) == res {
			return t, true
		}
	}
	return Raw, false
}

// Floor returns the coarsest tier whose bucket duration is <= res, or Raw.
func (l Ladder) Floor(res time.Duration) Tier {
	best := Raw
	for t := Raw; t <= l.Coarsest(); t++ {
		if l.Duration(t) > res {
			break
		}
		best = t
	}
	return best
}

// ResolutionForPixelWidth picks the coarsest tier whose bucket is no wider
// than one pixel column of w, falling back to raw when even the base bucket is
// too wide.
func (l Ladder) ResolutionForPixelWidth(w Window, pixelWidth int) Tier {
	if pixelWidth <= 0 || w.Duration() <= 0 {
		return Raw
	}
	return l.Floor(w.Duration() / time.Duration(pixelWidth))
}

// Snap returns w with its resolution set to the tier it maps to.
func (l Ladder) Snap(w Window) Window {
	return w.WithResolution(l.Duration(l.Floor(w.Resolution)))
}

// Compatible reports whether two windows fall on the same tier and can
// therefore be merged into one series.
func (l Ladder) Compatible(a, b Window) bool {
	return l.Floor(a.Resolution) == l.Floor(b.Resolution)
}

// SegmentRange returns the indices of the first and last bucket of tier t
// that overlap w, counted from the Unix epoch.
func (l Ladder) SegmentRange(w Window, t Tier) (first, last int64) {
	d := int64(l.Duration(t))
	first = floorDiv(w.Start.UnixNano(), d)
	last = floorDiv(w.End.UnixNano()-1, d)
	return first, last
}

func (l Ladder) clamp(t Tier) Tier {
	if t < Raw {
		return Raw
	}
	if t > l.Coarsest() {
		return l.Coarsest()
	}
	return t
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
