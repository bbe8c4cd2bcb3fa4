package domain

import (
	"time"

	"nathanbeddoewebdev/sirius/internal/timewindow"
)

// MetricID identifies one measure emitted by one process.
type MetricID struct {
	ProcessID string `json:"process_id"`
	Name      string `json:"name"`
}

func (m MetricID) String() string { return m.ProcessID + "/" + m.Name }

// PointKind distinguishes raw samples from aggregated buckets.
type PointKind uint8

const (
	// PointRaw is a single recorded sample.
	PointRaw PointKind = iota
	// PointBucket summarises every sample in [Time, End).
	PointBucket
)

func (k PointKind) String() string {
	if k == PointBucket {
		return "bucket"
	}
	return "raw"
}

// DataPoint is either a raw sample or an aggregated bucket. For a bucket, Time
// is the bucket start and Value is the average.
type DataPoint struct {
	Kind  PointKind `json:"kind"`
	Time  time.Time `json:"time"`
	End   time.Time `json:"end,omitzero"`
	Value float64   `json:"value"`
	Min   float64   `json:"min,omitempty"`
	Max   float64   `json:"max,omitempty"`
	Count int64     `json:"count,omitempty"`
}

// RawPoint returns a raw sample.
func RawPoint(ts time.Time, value float64) DataPoint {
	return DataPoint{Kind: PointRaw, Time: ts, Value: value}
}

// BucketPoint returns an aggregated bucket.
func BucketPoint(start, end time.Time, min, max, avg float64, count int64) DataPoint {
	return DataPoint{Kind: PointBucket, Time: start, End: end, Value: avg, Min: min, Max: max, Count: count}
}

// Low returns the smallest value the point represents.
func (p DataPoint) Low() float64 {
	if p.Kind == PointBucket {
		return p.Min
	}
	return p.Value
}

// High returns the largest value the point represents.
func (p DataPoint) High() float64 {
	if p.Kind == PointBucket {
		return p.Max
	}
	return p.Value
}

// SampleBatch is one backend answer for a metric and window: the points and
// the range they are authoritative for. Covered may be wider than the span of
// Points when the range holds no data.
type SampleBatch struct {
	Points  []DataPoint       `json:"points"`
	Covered timewindow.Window `json:"covered"`
}

// MetricInfo describes a measure available for a process.
type MetricInfo struct {
	Name string `json:"name" yaml:"name"`
	Unit string `json:"unit" yaml:"unit"`
}
