// Package timewindow defines the immutable interval that describes what a
// chart is currently showing, and the fixed ladder of resolution tiers used to
// choose its level of detail.
//
// All windows are half-open: Start is included, End is not.
package timewindow

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrInvalidWindow is returned when a window does not satisfy Start < End and
// Resolution > 0.
var ErrInvalidWindow = errors.New("invalid time window")

// Window is a half-open time interval plus the resolution the data inside it
// should be fetched at. Window is a value type; every operation returns a new
// window.
type Window struct {
	Start      time.Time
	End        time.Time
	Resolution time.Duration
}

// New validates and returns a window.
func New(start, end time.Time, resolution time.Duration) (Window, error) {
	w := Window{Start: start, End: end, Resolution: resolution}
	if !w.Valid() {
		return Window{}, fmt.Errorf("%w: [%s, %s) at %s", ErrInvalidWindow,
			start.Format(time.RFC3339Nano), end.Format(time.RFC3339Nano), resolution)
	}
	return w, nil
}

// Valid reports whether Start < End and Resolution > 0.
func (w Window) Valid() bool {
	return w.Start.Before(w.End) && w.Resolution > 0
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Contains reports whether t lies inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Covers reports whether o lies entirely inside w. Resolution is ignored.
func (w Window) Covers(o Window) bool {
	return !o.Start.Before(w.Start) && !o.End.After(w.End)
}

// Intersects reports whether the two windows share at least one instant.
func (w Window) Intersects(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Touches reports whether the windows intersect or are directly adjacent, in
// which case their union is a single contiguous interval.
func (w Window) Touches(o Window) bool {
	return !w.Start.After(o.End) && !o.Start.After(w.End)
}

// Intersection returns the shared part of both windows, keeping w's
// resolution. ok is false when they do not intersect.
func (w Window) Intersection(o Window) (Window, bool) {
	if !w.Intersects(o) {
		return Window{}, false
	}
	return Window{Start: laterOf(w.Start, o.Start), End: earlierOf(w.End, o.End), Resolution: w.Resolution}, true
}

// Union returns the smallest window containing both, keeping w's resolution.
// ok is false when the union would contain a gap.
func (w Window) Union(o Window) (Window, bool) {
	if !w.Touches(o) {
		return Window{}, false
	}
	return w.Hull(o), true
}

// Hull returns the smallest window containing both, gaps included.
func (w Window) Hull(o Window) Window {
	return Window{Start: earlierOf(w.Start, o.Start), End: laterOf(w.End, o.End), Resolution: w.Resolution}
}

// Shift translates both ends by d.
func (w Window) Shift(d time.Duration) Window {
	return Window{Start: w.Start.Add(d), End: w.End.Add(d), Resolution: w.Resolution}
}

// WithResolution returns a copy of w at resolution r.
func (w Window) WithResolution(r time.Duration) Window {
	w.Resolution = r
	return w
}

// Expand grows the window on both sides by frac of its duration.
func (w Window) Expand(frac float64) Window {
	if frac <= 0 {
		return w
	}
	margin := time.Duration(float64(w.Duration()) * frac)
	return Window{Start: w.Start.Add(-margin), End: w.End.Add(margin), Resolution: w.Resolution}
}

// Align widens w outward so both ends fall on multiples of d counted from
// the Unix epoch. A non-positive d returns w unchanged.
func (w Window) Align(d time.Duration) Window {
	if d <= 0 {
		return w
	}
	return Window{Start: AlignDown(w.Start, d), End: AlignUp(w.End, d), Resolution: w.Resolution}
}

// AlignDown returns the latest multiple of d since the Unix epoch at or before
// t. Unlike time.Truncate, which counts from year one, the grid matches the
// bucket boundaries the query service aggregates on.
func AlignDown(t time.Time, d time.Duration) time.Time {
	if d <= 0 {
		return t
	}
	rem := t.UnixNano() % int64(d)
	if rem < 0 {
		rem += int64(d)
	}
	return t.Add(-time.Duration(rem))
}

// AlignUp returns the earliest multiple of d since the Unix epoch at or after
// t.
func AlignUp(t time.Time, d time.Duration) time.Time {
	down := AlignDown(t, d)
	if down.Equal(t) {
		return t
	}
	return down.Add(d)
}

// Distance returns the time between the closest ends of two windows, or zero
// when they intersect.
func (w Window) Distance(o Window) time.Duration {
	switch {
	case w.Intersects(o):
		return 0
	case !o.End.After(w.Start):
		return w.Start.Sub(o.End)
	default:
		return o.Start.Sub(w.End)
	}
}

// Subtract returns the parts of w not covered by any of others, in time
// order. Each returned window keeps w's resolution.
func (w Window) Subtract(others ...Window) []Window {
	sorted := make([]Window, 0, len(others))
	for _, o := range others {
		if o.Start.Before(o.End) {
			sorted = append(sorted, o)
		}
	}
	slices.SortFunc(sorted, func(a, b Window) int { return a.Start.Compare(b.Start) })

	var gaps []Window
	cursor := w.Start
	for _, o := range sorted {
		if !o.End.After(cursor) {
			continue
		}
		if !o.Start.Before(w.End) {
			break
		}
		if o.Start.After(cursor) {
			gaps = append(gaps, Window{Start: cursor, End: o.Start, Resolution: w.Resolution})
		}
		cursor = o.End
		if !cursor.Before(w.End) {
			return gaps
		}
	}
	if cursor.Before(w.End) {
		gaps = append(gaps, Window{Start: cursor, End: w.End, Resolution: w.Resolution})
	}
	return gaps
}

// String formats the window for logs and debug overlays.
func (w Window) String() string {
	return fmt.Sprintf("[%s, %s) @%s",
		w.Start.UTC().Format(time.RFC3339Nano), w.End.UTC().Format(time.RFC3339Nano), w.Resolution)
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
