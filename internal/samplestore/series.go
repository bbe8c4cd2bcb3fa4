package samplestore

import (
	"slices"
	"time"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/timewindow"
)

// Key addresses one series in the store.
type Key struct {
	Metric domain.MetricID
	Tier   timewindow.Tier
}

// Series is the materialised data of one metric at one tier. A published
// Series is never mutated; writers replace it.
//
// Points are strictly increasing in time and Covered is one contiguous range.
// Covered may extend past the first and last point when the backend reported
// an empty stretch.
type Series struct {
	Metric  domain.MetricID
	Tier    timewindow.Tier
	Kind    domain.PointKind
	Points  []domain.DataPoint
	Covered timewindow.Window
}

// Key returns the store key of s.
func (s *Series) Key() Key { return Key{Metric: s.Metric, Tier: s.Tier} }

// Len returns the number of points.
func (s *Series) Len() int { return len(s.Points) }

// Window returns the points whose time lies in w, plus the nearest point on
// each side so a line drawn through them reaches the edges of w.
func (s *Series) Window(w timewindow.Window) []domain.DataPoint {
	lo := s.search(w.Start)
	hi := s.search(w.End)
	if lo > 0 {
		lo--
	}
	if hi < len(s.Points) {
		hi++
	}
	return s.Points[lo:hi]
}

// search returns the index of the first point at or after t.
func (s *Series) search(t time.Time) int {
	i, _ := slices.BinarySearchFunc(s.Points, t, func(p domain.DataPoint, t time.Time) int {
		return p.Time.Compare(t)
	})
	return i
}

// mergePoints splices two time-ordered runs. On equal timestamps the point
// from incoming wins.
func mergePoints(existing, incoming []domain.DataPoint) []domain.DataPoint {
	out := make([]domain.DataPoint, 0, len(existing)+len(incoming))
	i, j := 0, 0
	for i < len(existing) && j < len(incoming) {
		switch existing[i].Time.Compare(incoming[j].Time) {
		case -1:
			out = append(out, existing[i])
			i++
		case 1:
			out = append(out, incoming[j])
			j++
		default:
			out = append(out, incoming[j])
			i++
			j++
		}
	}
	out = append(out, existing[i:]...)
	return append(out, incoming[j:]...)
}

// normalise sorts a backend batch by time, keeps the last point for each
// timestamp and drops anything outside covered.
func normalise(points []domain.DataPoint, covered timewindow.Window) []domain.DataPoint {
	sorted := slices.Clone(points)
	slices.SortStableFunc(sorted, func(a, b domain.DataPoint) int { return a.Time.Compare(b.Time) })

	out := sorted[:0]
	for _, p := range sorted {
		if !covered.Contains(p.Time) {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Time.Equal(p.Time) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}
