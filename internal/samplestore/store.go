// Package samplestore holds the bounded in-memory cache of metric samples a
// chart draws from.
//
// The store has a single writer (the fetch scheduler) and any number of
// readers. Every write publishes a new immutable snapshot, so readers never
// lock and never observe a half-applied ingest.
package samplestore

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/timewindow"
)

// ErrMixedPoints is returned when a batch mixes raw samples and buckets, or
// does not match the kind already stored for the series.
var ErrMixedPoints = errors.New("raw samples and buckets cannot share a series")

// FetchPlan lists the parts of a requested window the store cannot answer.
type FetchPlan struct {
	Metric domain.MetricID
	Tier   timewindow.Tier
	Gaps   []timewindow.Window
}

// Empty reports whether nothing needs fetching.
func (p FetchPlan) Empty() bool { return len(p.Gaps) == 0 }

type state struct {
	series      map[Key]*Series
	points      int
	visible     timewindow.Window
	visibleTier timewindow.Tier
	hasVisible  bool
}

// Store is a per-view cache of series keyed by metric and tier.
type Store struct {
	mu     sync.Mutex
	cur    atomic.Pointer[state]
	ladder timewindow.Ladder
	logger zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLadder sets the tier ladder. The default is timewindow.DefaultLadder.
func WithLadder(l timewindow.Ladder) Option {
	return func(s *Store) { s.ladder = l }
}

// WithLogger sets the logger used for eviction and reset events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{ladder: timewindow.DefaultLadder, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.cur.Store(&state{series: map[Key]*Series{}})
	return s
}

// Ladder returns the tier ladder the store buckets windows by.
func (s *Store) Ladder() timewindow.Ladder { return s.ladder }

// Snapshot returns the current immutable view of the store.
func (s *Store) Snapshot() Snapshot { return Snapshot{st: s.cur.Load()} }

// EnsureCoverage returns the sub-windows of w, at w's tier, that no stored
// series covers. Above the raw tier each gap is widened to whole buckets so
// the backend never returns a bucket narrower than the tier. It never mutates
// the store.
func (s *Store) EnsureCoverage(metric domain.MetricID, w timewindow.Window) FetchPlan {
	tier := s.ladder.Floor(w.Resolution)
	res := s.ladder.Duration(tier)
	w = w.WithResolution(res)
	plan := FetchPlan{Metric: metric, Tier: tier}

	gaps := []timewindow.Window{w}
	if ser, ok := s.cur.Load().series[Key{Metric: metric, Tier: tier}]; ok {
		gaps = w.Subtract(ser.Covered)
	}
	if tier == timewindow.Raw {
		plan.Gaps = gaps
		return plan
	}
	for _, g := range gaps {
		g = g.Align(res)
		if n := len(plan.Gaps); n > 0 && plan.Gaps[n-1].Touches(g) {
			plan.Gaps[n-1] = plan.Gaps[n-1].Hull(g)
			continue
		}
		plan.Gaps = append(plan.Gaps, g)
	}
	return plan
}

// Ingest merges a fetched batch into the series for (metric, tier).
//
// Points are spliced in time order; a point with the same timestamp as a
// stored one replaces it. The series' covered range grows to the union of the
// old range and covered, and Ingest fails with *domain.DiscontinuousRangeError
// if that union would contain a gap.
func (s *Store) Ingest(metric domain.MetricID, tier timewindow.Tier, points []domain.DataPoint, covered timewindow.Window) error {
	covered = covered.WithResolution(s.ladder.Duration(tier))
	if !covered.Valid() {
		return fmt.Errorf("ingest %s tier %d: %w", metric, tier, timewindow.ErrInvalidWindow)
	}
	kind, err := batchKind(points)
	if err != nil {
		return fmt.Errorf("ingest %s tier %d: %w", metric, tier, err)
	}
	incoming := normalise(points, covered)

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.cur.Load()
	key := Key{Metric: metric, Tier: tier}
	next := &Series{Metric: metric, Tier: tier, Kind: kind, Points: incoming, Covered: covered}

	if existing, ok := cur.series[key]; ok {
		if !existing.Covered.Touches(covered) {
			return &domain.DiscontinuousRangeError{Metric: metric, Tier: tier, Covered: existing.Covered, Got: covered}
		}
		if len(points) > 0 && len(existing.Points) > 0 && existing.Kind != kind {
			return fmt.Errorf("ingest %s tier %d: %w", metric, tier, ErrMixedPoints)
		}
		if len(existing.Points) > 0 {
			next.Kind = existing.Kind
		}
		next.Points = mergePoints(existing.Points, incoming)
		next.Covered = existing.Covered.Hull(covered)
	}

	s.publish(cur, func(st *state) {
		if old, ok := st.series[key]; ok {
			st.points -= old.Len()
		}
		st.series[key] = next
		st.points += next.Len()
	})
	return nil
}

// SetVisible records the window currently on screen. Series drawn for it are
// protected from eviction.
func (s *Store) SetVisible(w timewindow.Window) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish(s.cur.Load(), func(st *state) {
		st.visible = w
		st.visibleTier = s.ladder.Floor(w.Resolution)
		st.hasVisible = true
	})
}

// Evict drops whole series until the store holds at most budget points. It
// picks the series farthest from the visible window first and, at equal
// distance, the finest tier first so coarse series go last. Series that are
// on screen, including a coarser fallback shown while the visible tier loads,
// are never evicted, so the store may stay over budget. It returns the evicted keys.
func (s *Store) Evict(budget int) []Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.cur.Load()
	if cur.points <= budget {
		return nil
	}

	type candidate struct {
		ser  *Series
		dist int64
	}
	var candidates []candidate
	for _, ser := range cur.series {
		if cur.protects(ser) {
			continue
		}
		var dist int64
		if cur.hasVisible {
			dist = int64(ser.Covered.Distance(cur.visible))
		}
		candidates = append(candidates, candidate{ser: ser, dist: dist})
	}
	slices.SortFunc(candidates, func(a, b candidate) int {
		return cmp.Or(
			cmp.Compare(b.dist, a.dist),
			cmp.Compare(a.ser.Tier, b.ser.Tier),
			cmp.Compare(a.ser.Metric.String(), b.ser.Metric.String()),
		)
	})

	remaining := cur.points
	var evicted []Key
	for _, c := range candidates {
		if remaining <= budget {
			break
		}
		evicted = append(evicted, c.ser.Key())
		remaining -= c.ser.Len()
	}
	if len(evicted) == 0 {
		return nil
	}

	s.publish(cur, func(st *state) {
		for _, k := range evicted {
			st.points -= st.series[k].Len()
			delete(st.series, k)
		}
	})
	s.logger.Debug().
		Int("series", len(evicted)).
		Int("points", remaining).
		Int("budget", budget).
		Msg("evicted series")
	return evicted
}

// Reset drops the series for (metric, tier), if any.
func (s *Store) Reset(metric domain.MetricID, tier timewindow.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := Key{Metric: metric, Tier: tier}
	cur := s.cur.Load()
	if _, ok := cur.series[key]; !ok {
		return
	}
	s.publish(cur, func(st *state) {
		st.points -= st.series[key].Len()
		delete(st.series, key)
	})
	s.logger.Warn().Str("metric", metric.String()).Int("tier", int(tier)).Msg("series reset")
}

// Series returns the current series for (metric, tier).
func (s *Store) Series(metric domain.MetricID, tier timewindow.Tier) (*Series, bool) {
	return s.Snapshot().Series(metric, tier)
}

// TotalPoints returns the number of points held across all series.
func (s *Store) TotalPoints() int { return s.cur.Load().points }

// publish copies the current state, applies fn and swaps it in. Callers hold
// s.mu.
func (s *Store) publish(cur *state, fn func(*state)) {
	next := *cur
	next.series = maps.Clone(cur.series)
	fn(&next)
	s.cur.Store(&next)
}

// protects reports whether ser is on screen: either it is at the visible tier
// and intersects the visible window, or it is the fallback Best would draw
// while that tier loads.
func (st *state) protects(ser *Series) bool {
	if !st.hasVisible || !ser.Covered.Intersects(st.visible) {
		return false
	}
	if ser.Tier == st.visibleTier {
		return true
	}
	drawn, ok := st.best(ser.Metric, st.visible, st.visibleTier)
	return ok && drawn == ser
}

func batchKind(points []domain.DataPoint) (domain.PointKind, error) {
	if len(points) == 0 {
		return domain.PointRaw, nil
	}
	kind := points[0].Kind
	for _, p := range points[1:] {
		if p.Kind != kind {
			return 0, ErrMixedPoints
		}
	}
	return kind, nil
}
