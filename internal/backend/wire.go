package backend

import (
	"time"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/timewindow"
)

// Paths of the query service endpoints. Every endpoint takes a JSON POST body.
const (
	PathPrefix    = "/analytics/"
	PathSamples   = PathPrefix + "samples"
	PathLogPage   = PathPrefix + "log_page"
	PathProcesses = PathPrefix + "processes"
	PathMetrics   = PathPrefix + "metrics"
)

// EncodingZstd is the Content-Encoding token for zstd-compressed bodies.
const EncodingZstd = "zstd"

// DefaultProcessLimit is the number of processes ListProcesses asks for.
const DefaultProcessLimit = 100

// MaxLogPageSize is the largest page the service returns.
const MaxLogPageSize = 5000

// --- API request/response types ---

// SamplesRequest asks for the points of one metric inside [Begin, End),
// aggregated to ResolutionMS.
type SamplesRequest struct {
	ProcessID    string    `json:"process_id"`
	Metric       string    `json:"metric"`
	Begin        time.Time `json:"begin"`
	End          time.Time `json:"end"`
	ResolutionMS int64     `json:"resolution_ms"`
}

// Window returns the requested window.
func (r SamplesRequest) Window() (timewindow.Window, error) {
	return timewindow.New(r.Begin, r.End, time.Duration(r.ResolutionMS)*time.Millisecond)
}

// WireWindow is a covered range on the wire. A zero value means the service
// has nothing authoritative for the request yet.
type WireWindow struct {
	Begin time.Time `json:"begin"`
	End   time.Time `json:"end"`
}

// SamplesResponse carries the points and the range they are authoritative for.
type SamplesResponse struct {
	Points  []domain.DataPoint `json:"points"`
	Covered WireWindow         `json:"covered"`
}

// LogPageRequest asks for up to Limit entries recorded after After.
type LogPageRequest struct {
	ProcessID string         `json:"process_id"`
	After     *domain.Cursor `json:"after,omitempty"`
	Limit     int            `json:"limit"`
}

// ProcessesRequest asks for the most recently started processes.
type ProcessesRequest struct {
	Limit int `json:"limit"`
}

type ProcessesResponse struct {
	Processes []domain.ProcessSummary `json:"processes"`
}

type MetricsRequest struct {
	ProcessID string `json:"process_id"`
}

type MetricsResponse struct {
	Metrics []domain.MetricInfo `json:"metrics"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}
