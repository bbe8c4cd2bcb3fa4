// Package logstore keeps the bounded, cursor-ordered window of log entries a
// log view shows for one process.
package logstore

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/timewindow"
)

// DefaultCap is the number of entries retained when no cap is configured.
const DefaultCap = 5000

// Gap tells the scheduler where to resume pagination.
type Gap struct {
	// After is the cursor to continue from. Nil means from the first entry.
	After *domain.Cursor
	// PossiblyIncomplete is set when entries the window needs may have been
	// evicted; forward pagination cannot bring them back.
	PossiblyIncomplete bool
}

// AppendResult reports what AppendPage did.
type AppendResult struct {
	Added      int
	Duplicates int
	Evicted    int
}

type state struct {
	entries    []domain.LogEntry
	highWater  domain.Cursor
	hasCursor  bool
	exhausted  bool
	evicted    int
	evictedTop domain.Cursor
}

// Store is a deduplicated, capped sequence of log entries ordered by cursor.
// AppendPage is the only writer; readers use snapshots and never lock.
type Store struct {
	mu     sync.Mutex
	cur    atomic.Pointer[state]
	cap    int
	logger zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCap sets the maximum number of retained entries.
func WithCap(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.cap = n
		}
	}
}

// WithLogger sets the logger used for eviction events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{cap: DefaultCap, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.cur.Store(&state{})
	return s
}

// Cap returns the maximum number of retained entries.
func (s *Store) Cap() int { return s.cap }

// AppendPage merges a page into the store. Entries whose cursor is already
// held, or older than anything evicted, are skipped. When the store grows past
// its cap the entries with the lowest cursors are dropped.
func (s *Store) AppendPage(page domain.LogPage) AppendResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.cur.Load()
	next := *cur
	var res AppendResult

	seen := make(map[domain.Cursor]struct{}, len(cur.entries))
	for _, e := range cur.entries {
		seen[e.Cursor] = struct{}{}
	}
	fresh := make([]domain.LogEntry, 0, len(page.Entries))
	for _, e := range page.Entries {
		if _, dup := seen[e.Cursor]; dup || (cur.evicted > 0 && e.Cursor <= cur.evictedTop) {
			res.Duplicates++
			continue
		}
		seen[e.Cursor] = struct{}{}
		fresh = append(fresh, e)
	}
	slices.SortFunc(fresh, func(a, b domain.LogEntry) int { return cmp.Compare(a.Cursor, b.Cursor) })
	res.Added = len(fresh)

	merged := make([]domain.LogEntry, 0, len(cur.entries)+len(fresh))
	merged = append(merged, cur.entries...)
	merged = append(merged, fresh...)
	if len(cur.entries) > 0 && len(fresh) > 0 && fresh[0].Cursor < cur.entries[len(cur.entries)-1].Cursor {
		slices.SortStableFunc(merged, func(a, b domain.LogEntry) int { return cmp.Compare(a.Cursor, b.Cursor) })
	}

	if over := len(merged) - s.cap; over > 0 {
		next.evictedTop = merged[over-1].Cursor
		next.evicted += over
		res.Evicted = over
		merged = merged[over:]
	}
	next.entries = merged

	for _, e := range fresh {
		if !next.hasCursor || e.Cursor > next.highWater {
			next.highWater = e.Cursor
			next.hasCursor = true
		}
	}
	if page.NextCursor != nil {
		if !next.hasCursor || *page.NextCursor > next.highWater {
			next.highWater = *page.NextCursor
			next.hasCursor = true
		}
		next.exhausted = false
	} else {
		next.exhausted = true
	}

	s.cur.Store(&next)
	if res.Evicted > 0 {
		s.logger.Debug().Int("evicted", res.Evicted).Int("retained", len(merged)).Msg("log entries evicted")
	}
	return res
}

// CursorForGap returns where to resume pagination to fill w. It never points
// before an entry the store already holds. It returns domain.ErrCursorExhausted
// once the backend reported there is nothing after the last page.
func (s *Store) CursorForGap(w timewindow.Window) (Gap, error) {
	st := s.cur.Load()
	if st.exhausted {
		return Gap{}, domain.ErrCursorExhausted
	}

	var gap Gap
	if st.hasCursor {
		c := st.highWater
		gap.After = &c
	}
	if st.evicted > 0 && (len(st.entries) == 0 || w.Start.Before(st.entries[0].Time)) {
		gap.PossiblyIncomplete = true
	}
	return gap, nil
}

// ResumeTail clears the exhausted flag so a following view can poll for
// entries written after the last page.
func (s *Store) ResumeTail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.cur.Load()
	if !cur.exhausted {
		return
	}
	next := *cur
	next.exhausted = false
	s.cur.Store(&next)
}

// Exhausted reports whether the backend has no entries after the last page.
func (s *Store) Exhausted() bool { return s.cur.Load().exhausted }

// Evicted returns how many entries have been dropped to honour the cap.
func (s *Store) Evicted() int { return s.cur.Load().evicted }

// Entries returns the retained entries in cursor order. The slice is shared
// and must not be modified.
func (s *Store) Entries() []domain.LogEntry { return s.cur.Load().entries }

// Len returns the number of retained entries.
func (s *Store) Len() int { return len(s.cur.Load().entries) }

// Range returns the earliest and latest timestamps retained. Timestamps are
// not guaranteed to follow cursor order, so every entry is inspected.
func (s *Store) Range() (start, end time.Time, ok bool) {
	entries := s.cur.Load().entries
	if len(entries) == 0 {
		return time.Time{}, time.Time{}, false
	}
	start, end = entries[0].Time, entries[0].Time
	for _, e := range entries[1:] {
		if e.Time.Before(start) {
			start = e.Time
		}
		if e.Time.After(end) {
			end = e.Time
		}
	}
	return start, end, true
}
