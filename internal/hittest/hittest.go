// Package hittest finds the samples under the pointer for tooltips.
package hittest

import (
	"math"
	"slices"
	"time"

	"nathanbeddoewebdev/sirius/internal/domain"
)

// DefaultMaxDistance is the pixel radius within which a point counts as hit.
const DefaultMaxDistance = 8.0

// Transform maps between data and screen space. *viewport.Controller
// satisfies it.
type Transform interface {
	TimeToX(t time.Time) float64
	XToTime(x float64) time.Time
	ValueToY(v float64) float64
}

// Series is one drawn line. Points must be ordered by time.
type Series struct {
	Metric domain.MetricID
	Points []domain.DataPoint
}

// Hit is the point of one series nearest the pointer.
type Hit struct {
	Metric domain.MetricID
	Index  int
	Point  domain.DataPoint
	X, Y   float64
	// Distance is the horizontal pixel distance from the pointer.
	Distance float64
}

// Tester answers pointer queries. The zero value uses DefaultMaxDistance.
type Tester struct {
	MaxDistance float64
}

// New returns a tester that accepts points within maxDistance pixels.
func New(maxDistance float64) *Tester {
	return &Tester{MaxDistance: maxDistance}
}

// HitTest returns, for each series in order, the point nearest pixel column
// x if it lies within the maximum distance. Each lookup is a binary search.
func (t *Tester) HitTest(tr Transform, series []Series, x, y float64) []Hit {
	limit := t.MaxDistance
	if limit <= 0 {
		limit = DefaultMaxDistance
	}
	at := tr.XToTime(x)

	var hits []Hit
	for _, s := range series {
		idx, ok := nearest(s.Points, at)
		if !ok {
			continue
		}
		p := s.Points[idx]
		px := tr.TimeToX(p.Time)
		dist := math.Abs(px - x)
		if dist > limit {
			continue
		}
		hits = append(hits, Hit{
			Metric:   s.Metric,
			Index:    idx,
			Point:    p,
			X:        px,
			Y:        tr.ValueToY(p.Value),
			Distance: dist,
		})
	}
	return hits
}

// Nearest picks the hit closest to (x, y) on screen.
func Nearest(hits []Hit, x, y float64) (Hit, bool) {
	if len(hits) == 0 {
		return Hit{}, false
	}
	return slices.MinFunc(hits, func(a, b Hit) int {
		da := math.Hypot(a.X-x, a.Y-y)
		db := math.Hypot(b.X-x, b.Y-y)
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		default:
			return 0
		}
	}), true
}

// nearest returns the index of the point closest in time to t.
func nearest(points []domain.DataPoint, t time.Time) (int, bool) {
	if len(points) == 0 {
		return 0, false
	}
	i, _ := slices.BinarySearchFunc(points, t, func(p domain.DataPoint, t time.Time) int {
		return p.Time.Compare(t)
	})
	switch {
	case i == 0:
		return 0, true
	case i == len(points):
		return i - 1, true
	}
	if t.Sub(points[i-1].Time) <= points[i].Time.Sub(t) {
		return i - 1, true
	}
	return i, true
}
