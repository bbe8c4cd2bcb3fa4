package samplestore

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/timewindow"
)

var (
	t0  = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cpu = domain.MetricID{ProcessID: "p1", Name: "cpu"}
	mem = domain.MetricID{ProcessID: "p1", Name: "mem"}
)

func at(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

func window(startSec, endSec int, res time.Duration) timewindow.Window {
	return timewindow.Window{Start: at(startSec), End: at(endSec), Resolution: res}
}

// rawSeconds returns one raw point per second in [startSec, endSec).
func rawSeconds(startSec, endSec int, value float64) []domain.DataPoint {
	var pts []domain.DataPoint
	for s := startSec; s < endSec; s++ {
		pts = append(pts, domain.RawPoint(at(s), value+float64(s)))
	}
	return pts
}

func TestEnsureCoverage_SixtySecondScenario(t *testing.T) {
	s := New()
	w := window(0, 60, time.Second)

	plan := s.EnsureCoverage(cpu, w)
	if diff := cmp.Diff([]timewindow.Window{w}, plan.Gaps); diff != "" {
		t.Fatalf("empty store gaps mismatch (-want +got):\n%s", diff)
	}
	if plan.Tier != timewindow.Raw {
		t.Fatalf("plan tier = %d, want raw", plan.Tier)
	}

	if err := s.Ingest(cpu, timewindow.Raw, rawSeconds(0, 60, 0), w); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got := s.TotalPoints(); got != 60 {
		t.Fatalf("TotalPoints = %d, want 60", got)
	}

	plan = s.EnsureCoverage(cpu, window(10, 50, time.Second))
	if !plan.Empty() {
		t.Fatalf("expected no gaps inside coverage, got %v", plan.Gaps)
	}
}

func TestEnsureCoverage_PanForwardOneMinute(t *testing.T) {
	s := New()
	res := 4 * time.Second
	tier, _ := s.Ladder().TierOf(res)
	if err := s.Ingest(cpu, tier, nil, window(0, 600, res)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	plan := s.EnsureCoverage(cpu, window(60, 660, res))
	want := []timewindow.Window{window(600, 660, res)}
	if diff := cmp.Diff(want, plan.Gaps); diff != "" {
		t.Errorf("gaps mismatch (-want +got):\n%s", diff)
	}
}

func TestEnsureCoverage_OtherTierDoesNotCount(t *testing.T) {
	s := New()
	if err := s.Ingest(cpu, timewindow.Raw, rawSeconds(0, 60, 0), window(0, 60, time.Second)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	plan := s.EnsureCoverage(cpu, window(0, 60, 16*time.Second))
	if plan.Tier != 2 || len(plan.Gaps) != 1 {
		t.Fatalf("expected one gap at tier 2, got tier %d gaps %v", plan.Tier, plan.Gaps)
	}
}

func TestIngest_ArrivalOrderConverges(t *testing.T) {
	ranges := [][2]int{{0, 10}, {10, 20}, {20, 30}}
	orders := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

	var want *Series
	for _, order := range orders {
		s := New()
		pending := order
		// Batches that arrive ahead of their neighbour are held back and
		// retried, the way the scheduler parks them.
		for len(pending) > 0 {
			var parked []int
			for _, idx := range pending {
				r := ranges[idx]
				err := s.Ingest(cpu, timewindow.Raw, rawSeconds(r[0], r[1], 0), window(r[0], r[1], time.Second))
				var discontinuous *domain.DiscontinuousRangeError
				switch {
				case errors.As(err, &discontinuous):
					parked = append(parked, idx)
				case err != nil:
					t.Fatalf("order %v: Ingest: %v", order, err)
				}
			}
			if len(parked) == len(pending) {
				t.Fatalf("order %v: no progress", order)
			}
			pending = parked
		}

		got, ok := s.Series(cpu, timewindow.Raw)
		if !ok {
			t.Fatalf("order %v: series missing", order)
		}
		if want == nil {
			want = got
			continue
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("order %v differs (-want +got):\n%s", order, diff)
		}
	}
	if want.Len() != 30 {
		t.Errorf("expected 30 points, got %d", want.Len())
	}
}

func TestIngest_LastWriterWinsOnEqualTimestamps(t *testing.T) {
	s := New()
	if err := s.Ingest(cpu, timewindow.Raw, rawSeconds(0, 10, 0), window(0, 10, time.Second)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := s.Ingest(cpu, timewindow.Raw, rawSeconds(5, 15, 100), window(5, 15, time.Second)); err != nil {
		t.Fatalf("Ingest overlap: %v", err)
	}

	ser, _ := s.Series(cpu, timewindow.Raw)
	if ser.Len() != 15 {
		t.Fatalf("expected 15 points, got %d", ser.Len())
	}
	if got := ser.Points[5].Value; got != 105 {
		t.Errorf("point at 5s = %v, want 105", got)
	}
	if got := ser.Points[4].Value; got != 4 {
		t.Errorf("point at 4s = %v, want 4", got)
	}
	for i := 1; i < ser.Len(); i++ {
		if !ser.Points[i-1].Time.Before(ser.Points[i].Time) {
			t.Fatalf("points not strictly increasing at %d", i)
		}
	}
	if diff := cmp.Diff(window(0, 15, time.Second), ser.Covered); diff != "" {
		t.Errorf("covered mismatch (-want +got):\n%s", diff)
	}
}

func TestIngest_DiscontinuousRange(t *testing.T) {
	s := New()
	if err := s.Ingest(cpu, timewindow.Raw, nil, window(0, 10, time.Second)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	err := s.Ingest(cpu, timewindow.Raw, nil, window(20, 30, time.Second))
	var discontinuous *domain.DiscontinuousRangeError
	if !errors.As(err, &discontinuous) {
		t.Fatalf("expected DiscontinuousRangeError, got %v", err)
	}
	ser, _ := s.Series(cpu, timewindow.Raw)
	if diff := cmp.Diff(window(0, 10, time.Second), ser.Covered); diff != "" {
		t.Errorf("failed ingest changed coverage (-want +got):\n%s", diff)
	}
}

func TestIngest_RejectsMixedPoints(t *testing.T) {
	s := New()
	mixed := []domain.DataPoint{
		domain.RawPoint(at(0), 1),
		domain.BucketPoint(at(1), at(2), 0, 2, 1, 3),
	}
	if err := s.Ingest(cpu, timewindow.Raw, mixed, window(0, 10, time.Second)); !errors.Is(err, ErrMixedPoints) {
		t.Fatalf("expected ErrMixedPoints, got %v", err)
	}

	if err := s.Ingest(cpu, timewindow.Raw, rawSeconds(0, 5, 0), window(0, 5, time.Second)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	buckets := []domain.DataPoint{domain.BucketPoint(at(5), at(6), 0, 1, 0.5, 2)}
	if err := s.Ingest(cpu, timewindow.Raw, buckets, window(5, 10, time.Second)); !errors.Is(err, ErrMixedPoints) {
		t.Fatalf("expected ErrMixedPoints against stored kind, got %v", err)
	}
}

func TestIngest_DropsPointsOutsideCoverage(t *testing.T) {
	s := New()
	if err := s.Ingest(cpu, timewindow.Raw, rawSeconds(0, 20, 0), window(5, 10, time.Second)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got := s.TotalPoints(); got != 5 {
		t.Errorf("TotalPoints = %d, want 5", got)
	}
}

func TestSnapshot_IsStableAcrossWrites(t *testing.T) {
	s := New()
	if err := s.Ingest(cpu, timewindow.Raw, rawSeconds(0, 10, 0), window(0, 10, time.Second)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	snap := s.Snapshot()
	if err := s.Ingest(cpu, timewindow.Raw, rawSeconds(10, 20, 0), window(10, 20, time.Second)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	old, _ := snap.Series(cpu, timewindow.Raw)
	if old.Len() != 10 || snap.TotalPoints() != 10 {
		t.Errorf("snapshot changed after ingest: len %d total %d", old.Len(), snap.TotalPoints())
	}
	if s.TotalPoints() != 20 {
		t.Errorf("store TotalPoints = %d, want 20", s.TotalPoints())
	}
}

func TestSnapshot_VisiblePointsIncludesNeighbours(t *testing.T) {
	s := New()
	if err := s.Ingest(cpu, timewindow.Raw, rawSeconds(0, 60, 0), window(0, 60, time.Second)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	pts := s.Snapshot().VisiblePoints(cpu, window(10, 20, time.Second), s.Ladder())
	if len(pts) != 12 {
		t.Fatalf("expected 12 points, got %d", len(pts))
	}
	if !pts[0].Time.Equal(at(9)) || !pts[len(pts)-1].Time.Equal(at(20)) {
		t.Errorf("unexpected edges %s .. %s", pts[0].Time, pts[len(pts)-1].Time)
	}
}

func TestSnapshot_BestFallsBackToCoarserTier(t *testing.T) {
	s := New()
	coarse := []domain.DataPoint{domain.BucketPoint(at(0), at(16), 1, 5, 3, 16)}
	if err := s.Ingest(cpu, 2, coarse, window(0, 64, 16*time.Second)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	ser, ok := s.Snapshot().Best(cpu, window(0, 60, time.Second), s.Ladder())
	if !ok || ser.Tier != 2 {
		t.Fatalf("expected fallback to tier 2, got %v %v", ser, ok)
	}

	lo, hi, ok := s.Snapshot().Extent([]domain.MetricID{cpu}, window(0, 60, time.Second), s.Ladder())
	if !ok || lo != 1 || hi != 5 {
		t.Errorf("Extent = %v, %v, %v; want 1, 5, true", lo, hi, ok)
	}
}

func TestEvict_NeverDropsVisibleSeries(t *testing.T) {
	s := New()
	visible := window(0, 60, time.Second)
	s.SetVisible(visible)
	if err := s.Ingest(cpu, timewindow.Raw, rawSeconds(0, 60, 0), visible); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if evicted := s.Evict(10); len(evicted) != 0 {
		t.Fatalf("visible series evicted: %v", evicted)
	}
	if s.TotalPoints() != 60 {
		t.Fatalf("TotalPoints = %d, want 60", s.TotalPoints())
	}
}

func TestEvict_FarthestFirstCoarsestLast(t *testing.T) {
	s := New()
	s.SetVisible(window(0, 60, time.Second))

	// Visible and protected.
	mustIngest(t, s, cpu, timewindow.Raw, rawSeconds(0, 60, 0), window(0, 60, time.Second))
	// Far away, raw.
	mustIngest(t, s, mem, timewindow.Raw, rawSeconds(3600, 3610, 0), window(3600, 3610, time.Second))
	// Near, tier 1.
	mustIngest(t, s, cpu, 1, bucketsEvery(120, 160, 4), window(120, 160, 4*time.Second))
	// Same distance as the near raw series but coarser.
	mustIngest(t, s, cpu, 2, bucketsEvery(120, 184, 16), window(120, 184, 16*time.Second))

	total := s.TotalPoints() // 60 + 10 + 10 + 4
	evicted := s.Evict(total - 15)
	want := []Key{
		{Metric: mem, Tier: timewindow.Raw},
		{Metric: cpu, Tier: 1},
	}
	if diff := cmp.Diff(want, evicted); diff != "" {
		t.Fatalf("evicted mismatch (-want +got):\n%s", diff)
	}
	if _, ok := s.Series(cpu, 2); !ok {
		t.Error("coarsest series should survive")
	}
	if _, ok := s.Series(cpu, timewindow.Raw); !ok {
		t.Error("visible series should survive")
	}
}

func TestEvict_UnderBudgetIsNoop(t *testing.T) {
	s := New()
	mustIngest(t, s, cpu, timewindow.Raw, rawSeconds(0, 10, 0), window(0, 10, time.Second))
	if evicted := s.Evict(100); evicted != nil {
		t.Errorf("expected no eviction, got %v", evicted)
	}
}

func TestReset(t *testing.T) {
	s := New()
	mustIngest(t, s, cpu, timewindow.Raw, rawSeconds(0, 10, 0), window(0, 10, time.Second))
	s.Reset(cpu, timewindow.Raw)
	if _, ok := s.Series(cpu, timewindow.Raw); ok {
		t.Error("series should be gone after Reset")
	}
	if s.TotalPoints() != 0 {
		t.Errorf("TotalPoints = %d, want 0", s.TotalPoints())
	}
}

func mustIngest(t *testing.T, s *Store, m domain.MetricID, tier timewindow.Tier, pts []domain.DataPoint, w timewindow.Window) {
	t.Helper()
	if err := s.Ingest(m, tier, pts, w); err != nil {
		t.Fatalf("Ingest %s tier %d: %v", m, tier, err)
	}
}

func bucketsEvery(startSec, endSec, step int) []domain.DataPoint {
	var pts []domain.DataPoint
	for s := startSec; s < endSec; s += step {
		pts = append(pts, domain.BucketPoint(at(s), at(s+step), 0, 1, 0.5, int64(step)))
	}
	return pts
}

func TestEvict_KeepsFallbackDrawnWhileTierLoads(t *testing.T) {
	s := New()
	s.SetVisible(window(0, 60, time.Second))

	// The raw tier is still loading; the chart draws the tier 2 series.
	mustIngest(t, s, cpu, 2, bucketsEvery(0, 64, 16), window(0, 64, 16*time.Second))
	// An extra coarse series for the same window is not drawn.
	mustIngest(t, s, cpu, 3, bucketsEvery(0, 64, 64), window(0, 64, 64*time.Second))
	mustIngest(t, s, mem, timewindow.Raw, rawSeconds(3600, 3610, 0), window(3600, 3610, time.Second))

	evicted := s.Evict(0)
	want := []Key{
		{Metric: mem, Tier: timewindow.Raw},
		{Metric: cpu, Tier: 3},
	}
	if diff := cmp.Diff(want, evicted); diff != "" {
		t.Fatalf("evicted mismatch (-want +got):\n%s", diff)
	}
	if _, ok := s.Series(cpu, 2); !ok {
		t.Error("the series on screen was evicted")
	}
}
