package viewport

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"nathanbeddoewebdev/sirius/internal/timewindow"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func span(startSec, endSec int) timewindow.Window {
	return timewindow.Window{
		Start:      t0.Add(time.Duration(startSec) * time.Second),
		End:        t0.Add(time.Duration(endSec) * time.Second),
		Resolution: time.Second,
	}
}

func TestZoom_KeepsPointerAnchored(t *testing.T) {
	tests := []struct {
		name   string
		x      float64
		scroll float64
	}{
		{"zoom in at left third", 100, -1},
		{"zoom out at right edge", 299, 3},
		{"zoom in far", 42.5, -8},
		{"zoom in at origin", 0, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(span(0, 3600), 300, 100)
			anchor := c.XToTime(tt.x)
			before := c.TimeToX(anchor)

			c.Scroll(tt.scroll, tt.x)

			after := c.TimeToX(anchor)
			if math.Abs(after-before) > 1 {
				t.Fatalf("anchor moved from %.3f to %.3f px", before, after)
			}
		})
	}
}

func TestScroll_DirectionAndInverse(t *testing.T) {
	c := New(span(0, 3600), 300, 100)
	c.Scroll(-1, 150)
	if got := c.Window().Duration(); got >= time.Hour {
		t.Fatalf("wheel up should zoom in, span %s", got)
	}
	c.Scroll(1, 150)
	if got := c.Window().Duration(); absDur(got-time.Hour) > time.Millisecond {
		t.Fatalf("zoom in then out should restore the span, got %s", got)
	}
}

func TestZoom_RecomputesTier(t *testing.T) {
	c := New(span(0, 3600), 100, 20)
	if c.Tier() != 2 {
		t.Fatalf("initial tier = %d, want 2", c.Tier())
	}
	c.ZoomAt(1.0/60, 50)
	if c.Tier() != timewindow.Raw {
		t.Errorf("tier after zooming to one minute = %d, want raw", c.Tier())
	}
}

func TestPan_KeepsTierAndSpan(t *testing.T) {
	c := New(span(0, 600), 100, 20)
	tier := c.Tier()
	c.Pan(time.Minute)

	if diff := cmp.Diff(span(60, 660).Start, c.Window().Start); diff != "" {
		t.Errorf("start mismatch (-want +got):\n%s", diff)
	}
	if c.Window().Duration() != 10*time.Minute {
		t.Errorf("span = %s, want 10m", c.Window().Duration())
	}
	if c.Tier() != tier {
		t.Errorf("tier changed from %d to %d", tier, c.Tier())
	}
}

func TestDrag_RightMovesBackInTime(t *testing.T) {
	c := New(span(0, 100), 100, 20)
	c.Drag(10)
	if want := t0.Add(-10 * time.Second); !c.Window().Start.Equal(want) {
		t.Errorf("start = %s, want %s", c.Window().Start, want)
	}
}

func TestPan_ClampsToNowAndOldest(t *testing.T) {
	now := t0.Add(time.Hour)
	c := New(span(0, 600), 100, 20,
		WithLive(func() time.Time { return now }),
		WithOldest(t0),
	)

	c.Pan(2 * time.Hour)
	if !c.Window().End.Equal(now) {
		t.Errorf("end = %s, want clamped to now %s", c.Window().End, now)
	}
	if c.Window().Duration() != 10*time.Minute {
		t.Errorf("clamping changed the span to %s", c.Window().Duration())
	}

	c.Pan(-3 * time.Hour)
	if !c.Window().Start.Equal(t0) {
		t.Errorf("start = %s, want clamped to oldest %s", c.Window().Start, t0)
	}
}

func TestZoom_RespectsSpanLimits(t *testing.T) {
	c := New(span(0, 60), 100, 20)
	c.ZoomAt(0.0001, 50)
	if got := c.Window().Duration(); got != 10*time.Second {
		t.Errorf("min span = %s, want 10s", got)
	}
	c.ZoomAt(1e12, 50)
	if got := c.Window().Duration(); got != DefaultMaxSpan {
		t.Errorf("max span = %s, want %s", got, DefaultMaxSpan)
	}
}

func TestObserver_NotifiedOnChange(t *testing.T) {
	var seen []timewindow.Window
	c := New(span(0, 600), 100, 20, WithObserver(func(w timewindow.Window) { seen = append(seen, w) }))

	c.Pan(time.Minute)
	c.Scroll(-1, 50)
	c.Resize(100, 20)
	c.Resize(400, 20)

	if len(seen) != 3 {
		t.Fatalf("observer called %d times, want 3", len(seen))
	}
	if diff := cmp.Diff(c.Window(), seen[len(seen)-1]); diff != "" {
		t.Errorf("last notification mismatch (-want +got):\n%s", diff)
	}
}

func TestAnimate_ConvergesToTarget(t *testing.T) {
	c := New(span(0, 600), 100, 20)
	target := span(3600, 4200)
	c.AnimateTo(target)

	steps := 0
	for c.Step(0.5) {
		steps++
		if steps > 100 {
			t.Fatal("animation did not converge")
		}
	}
	if !c.Window().Start.Equal(target.Start) || !c.Window().End.Equal(target.End) {
		t.Errorf("window = %s, want %s", c.Window(), target)
	}
	if c.Animating() {
		t.Error("should not be animating after convergence")
	}
}

func TestTransforms_RoundTrip(t *testing.T) {
	c := New(span(0, 100), 200, 50)
	c.SetValueRange(0, 10)

	if x := c.TimeToX(t0.Add(50 * time.Second)); x != 100 {
		t.Errorf("TimeToX(mid) = %v, want 100", x)
	}
	if got := c.XToTime(100); !got.Equal(t0.Add(50 * time.Second)) {
		t.Errorf("XToTime(100) = %s", got)
	}

	if y := c.ValueToY(10); y != 5 {
		t.Errorf("ValueToY(max) = %v, want 5 (top padding)", y)
	}
	if y := c.ValueToY(0); y != 45 {
		t.Errorf("ValueToY(min) = %v, want 45 (bottom padding)", y)
	}
	if v := c.YToValue(c.ValueToY(7)); math.Abs(v-7) > 1e-9 {
		t.Errorf("YToValue(ValueToY(7)) = %v", v)
	}
}

func TestSetValueRange_FlatIsWidened(t *testing.T) {
	c := New(span(0, 100), 200, 50)
	c.SetValueRange(5, 5)
	lo, hi := c.ValueRange()
	if !(lo < 5 && hi > 5) {
		t.Errorf("flat range not widened: %v..%v", lo, hi)
	}
	if y := c.ValueToY(5); math.IsNaN(y) || math.IsInf(y, 0) {
		t.Errorf("ValueToY on flat range = %v", y)
	}
}

func TestStats(t *testing.T) {
	start := time.Unix(1000, 0)
	c := New(timewindow.Window{Start: start, End: start.Add(time.Hour), Resolution: time.Second}, 100, 20)
	st := c.Stats()
	if st.Tier != 2 || st.Bucket != 16*time.Second {
		t.Errorf("Stats = %+v, want tier 2 / 16s", st)
	}
	if st.FirstSegment != 62 || st.LastSegment != 287 {
		t.Errorf("segments %d..%d, want 62..287", st.FirstSegment, st.LastSegment)
	}
}
