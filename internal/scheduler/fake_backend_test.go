package scheduler

import (
	"context"
	"slices"
	"sync"
	"time"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/timewindow"
)

type fakeBackend struct {
	mu          sync.Mutex
	sampleCalls []timewindow.Window
	logCalls    []*domain.Cursor

	samples func(ctx context.Context, w timewindow.Window) (domain.SampleBatch, error)
	logs    func(ctx context.Context, after *domain.Cursor, limit int) (domain.LogPage, error)
}

func (b *fakeBackend) FetchSamples(ctx context.Context, _ domain.MetricID, w timewindow.Window) (domain.SampleBatch, error) {
	b.mu.Lock()
	b.sampleCalls = append(b.sampleCalls, w)
	b.mu.Unlock()
	if b.samples == nil {
		return rawBatch(w), nil
	}
	return b.samples(ctx, w)
}

func (b *fakeBackend) FetchLogPage(ctx context.Context, _ string, after *domain.Cursor, limit int) (domain.LogPage, error) {
	b.mu.Lock()
	b.logCalls = append(b.logCalls, after)
	b.mu.Unlock()
	return b.logs(ctx, after, limit)
}

func (b *fakeBackend) ListProcesses(context.Context) ([]domain.ProcessSummary, error) {
	return nil, nil
}

func (b *fakeBackend) calls() []timewindow.Window {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := slices.Clone(b.sampleCalls)
	slices.SortFunc(out, func(a, b timewindow.Window) int { return a.Start.Compare(b.Start) })
	return out
}

func (b *fakeBackend) logCallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.logCalls)
}

// rawBatch returns one point per resolution step across w.
func rawBatch(w timewindow.Window) domain.SampleBatch {
	var pts []domain.DataPoint
	for ts := w.Start; ts.Before(w.End); ts = ts.Add(w.Resolution) {
		pts = append(pts, domain.RawPoint(ts, float64(ts.Unix()%60)))
	}
	return domain.SampleBatch{Points: pts, Covered: w}
}

// logPages serves entries with cursors 1..total, limit at a time.
func logPages(total int) func(context.Context, *domain.Cursor, int) (domain.LogPage, error) {
	return func(_ context.Context, after *domain.Cursor, limit int) (domain.LogPage, error) {
		first := 1
		if after != nil {
			first = int(*after) + 1
		}
		var page domain.LogPage
		last := min(first+limit-1, total)
		for c := first; c <= last; c++ {
			page.Entries = append(page.Entries, domain.LogEntry{
				Time:    t0.Add(time.Duration(c) * time.Millisecond),
				Cursor:  domain.Cursor(c),
				Level:   domain.LevelInfo,
				Target:  "app",
				Message: "entry",
			})
		}
		if last < total {
			next := domain.Cursor(last)
			page.NextCursor = &next
		}
		return page, nil
	}
}
