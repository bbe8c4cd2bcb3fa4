package samplestore

import (
	"cmp"
	"math"
	"slices"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/timewindow"
)

// Snapshot is a stable, read-only view of the store taken at one instant.
// A render frame takes one snapshot and reads only from it.
type Snapshot struct {
	st *state
}

// Series returns the series for (metric, tier).
func (s Snapshot) Series(metric domain.MetricID, tier timewindow.Tier) (*Series, bool) {
	ser, ok := s.st.series[Key{Metric: metric, Tier: tier}]
	return ser, ok
}

// Keys returns every stored key ordered by metric then tier.
func (s Snapshot) Keys() []Key {
	keys := make([]Key, 0, len(s.st.series))
	for k := range s.st.series {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b Key) int {
		return cmp.Or(
			cmp.Compare(a.Metric.ProcessID, b.Metric.ProcessID),
			cmp.Compare(a.Metric.Name, b.Metric.Name),
			cmp.Compare(a.Tier, b.Tier),
		)
	})
	return keys
}

// TotalPoints returns the number of points across all series.
func (s Snapshot) TotalPoints() int { return s.st.points }

// Visible returns the window last passed to SetVisible.
func (s Snapshot) Visible() (timewindow.Window, bool) {
	return s.st.visible, s.st.hasVisible
}

// Best returns the series to draw for metric over w: the series at w's tier
// when it intersects w, otherwise the finest other tier that does. Falling
// back lets a chart show coarse data while finer data is loading.
func (s Snapshot) Best(metric domain.MetricID, w timewindow.Window, ladder timewindow.Ladder) (*Series, bool) {
	return s.st.best(metric, w, ladder.Floor(w.Resolution))
}

func (st *state) best(metric domain.MetricID, w timewindow.Window, want timewindow.Tier) (*Series, bool) {
	if ser, ok := st.series[Key{Metric: metric, Tier: want}]; ok && ser.Covered.Intersects(w) && ser.Len() > 0 {
		return ser, true
	}
	var best *Series
	for k, ser := range st.series {
		if k.Metric != metric || k.Tier == want || ser.Len() == 0 || !ser.Covered.Intersects(w) {
			continue
		}
		if best == nil || k.Tier < best.Tier {
			best = ser
		}
	}
	return best, best != nil
}

// VisiblePoints returns the points of the best series for metric inside w,
// with one neighbour on each side.
func (s Snapshot) VisiblePoints(metric domain.MetricID, w timewindow.Window, ladder timewindow.Ladder) []domain.DataPoint {
	ser, ok := s.Best(metric, w, ladder)
	if !ok {
		return nil
	}
	return ser.Window(w)
}

// Extent returns the smallest and largest value drawn for metrics over w. ok
// is false when no point is visible.
func (s Snapshot) Extent(metrics []domain.MetricID, w timewindow.Window, ladder timewindow.Ladder) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, m := range metrics {
		for _, p := range s.VisiblePoints(m, w, ladder) {
			lo = min(lo, p.Low())
			hi = max(hi, p.High())
			ok = true
		}
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}
