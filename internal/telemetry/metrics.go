// Package telemetry holds the Prometheus collectors and OpenTelemetry tracing
// setup shared by the fetch path and the demo service.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch kinds and outcomes used as label values.
const (
	KindSamples   = "samples"
	KindLogPage   = "log_page"
	KindProcesses = "processes"

	OutcomeOK        = "ok"
	OutcomeRetry     = "retry"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeDiscarded = "discarded"
)

// Metrics groups the collectors of one viewer. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	FetchTotal     *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
	FetchCoalesced prometheus.Counter
	FetchCancelled prometheus.Counter
	EvictedSeries  prometheus.Counter
	StorePoints    prometheus.Gauge
	LogEntries     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FetchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sirius_fetch_total",
				Help: "Total number of backend fetches by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sirius_fetch_duration_seconds",
				Help:    "Duration of backend fetches",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"kind"},
		),
		FetchCoalesced: factory.NewCounter(prometheus.CounterOpts{
			Name: "sirius_fetch_coalesced_total",
			Help: "Requests answered by a fetch that was already in flight",
		}),
		FetchCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "sirius_fetch_cancelled_total",
			Help: "In-flight fetches cancelled because the viewport moved away",
		}),
		EvictedSeries: factory.NewCounter(prometheus.CounterOpts{
			Name: "sirius_store_evicted_series_total",
			Help: "Series dropped from the sample store to honour the point budget",
		}),
		StorePoints: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sirius_store_points",
			Help: "Points currently held by the sample store",
		}),
		LogEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sirius_log_entries",
			Help: "Entries currently held by the log store",
		}),
	}
}

// ObserveFetch records one backend call.
func (m *Metrics) ObserveFetch(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(kind, outcome).Inc()
	m.FetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// CountFetch records a fetch outcome that did not involve a backend call.
func (m *Metrics) CountFetch(kind, outcome string) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Coalesced(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.FetchCoalesced.Add(float64(n))
}

func (m *Metrics) Cancelled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.FetchCancelled.Add(float64(n))
}

func (m *Metrics) Evicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.EvictedSeries.Add(float64(n))
}

func (m *Metrics) SetPoints(n int) {
	if m == nil {
		return
	}
	m.StorePoints.Set(float64(n))
}

func (m *Metrics) SetLogEntries(n int) {
	if m == nil {
		return
	}
	m.LogEntries.Set(float64(n))
}
