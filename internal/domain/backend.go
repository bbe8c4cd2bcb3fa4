package domain

import (
	"context"

	"nathanbeddoewebdev/sirius/internal/timewindow"
)

// Backend is the remote query service the viewer reads from.
//
// Implementations must be safe for concurrent use; the scheduler issues
// fetches from many goroutines.
type Backend interface {
	// FetchSamples returns the points of metric inside window, aggregated by
	// the server to window.Resolution.
	FetchSamples(ctx context.Context, metric MetricID, window timewindow.Window) (SampleBatch, error)

	// FetchLogPage returns up to limit entries recorded strictly after the
	// given cursor, or from the first entry when after is nil.
	FetchLogPage(ctx context.Context, processID string, after *Cursor, limit int) (LogPage, error)

	// ListProcesses returns the most recently started processes.
	ListProcesses(ctx context.Context) ([]ProcessSummary, error)
}

// MetricCatalog is implemented by backends that can enumerate the measures a
// process emits. Callers type-assert for it.
type MetricCatalog interface {
	ListMetrics(ctx context.Context, processID string) ([]MetricInfo, error)
}
